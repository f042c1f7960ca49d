package gateway

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/typerace/internal/matchmaking"
	"github.com/mcdev12/typerace/internal/race"
	"github.com/mcdev12/typerace/internal/race/events"
)

// Service translates inbound client events into engine commands. Unknown
// sessions, malformed payloads, and non-participants are dropped without
// surfacing an error to the sender; only unparseable envelopes get a
// client-visible error event.
type Service struct {
	queue  *matchmaking.Queue
	engine *race.Engine
	cm     *ConnectionManager
}

// NewService creates the gateway service and wires it as the connection
// manager's inbound handler.
func NewService(queue *matchmaking.Queue, engine *race.Engine, cm *ConnectionManager) *Service {
	s := &Service{
		queue:  queue,
		engine: engine,
		cm:     cm,
	}
	cm.SetHandler(s)
	return s
}

// HandleClientMessage routes one inbound websocket message.
func (s *Service) HandleClientMessage(ctx context.Context, conn *Connection, data []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Debug().
			Err(err).
			Str("connection_id", conn.ID).
			Msg("unparseable client message")
		s.cm.SendToConn(conn.ID, events.Event{
			Type: events.EventTypeError,
			Data: events.ErrorPayload{Message: "malformed message"},
		})
		return
	}

	switch msg.Type {
	case ClientMessageJoinQueue:
		s.handleJoinQueue(ctx, conn, msg.Data)
	case ClientMessageRaceProgress:
		s.handleRaceProgress(conn, msg.Data)
	case ClientMessageRaceFinished:
		s.handleRaceFinished(ctx, conn, msg.Data)
	default:
		log.Debug().
			Str("connection_id", conn.ID).
			Str("type", string(msg.Type)).
			Msg("unknown client message type, ignoring")
	}
}

func (s *Service) handleJoinQueue(ctx context.Context, conn *Connection, data []byte) {
	var payload JoinQueuePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		log.Debug().Err(err).Str("connection_id", conn.ID).Msg("bad join-queue payload dropped")
		return
	}
	// The connection's authenticated identity wins over the payload.
	if payload.UserID != uuid.Nil && payload.UserID != conn.UserID {
		log.Debug().
			Str("connection_id", conn.ID).
			Str("claimed_user_id", payload.UserID.String()).
			Msg("join-queue user mismatch, using connection identity")
	}

	pair := s.queue.Enqueue(conn.UserID, conn.ID)
	if pair == nil {
		s.cm.SendToConn(conn.ID, events.Event{Type: events.EventTypeWaitingForOpponent})
		return
	}

	if _, err := s.engine.CreateSession(ctx, pair); err != nil {
		log.Error().Err(err).Msg("failed to create session for matched pair")
	}
}

func (s *Service) handleRaceProgress(conn *Connection, data []byte) {
	var payload RaceProgressPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		log.Debug().Err(err).Str("connection_id", conn.ID).Msg("bad race-progress payload dropped")
		return
	}
	// Unknown session or non-participant; nothing to send back.
	_ = s.engine.ReportProgress(payload.SessionID, conn.UserID, payload.CurrentIndex, payload.WPM, payload.Accuracy)
}

func (s *Service) handleRaceFinished(ctx context.Context, conn *Connection, data []byte) {
	var payload RaceFinishedPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		log.Debug().Err(err).Str("connection_id", conn.ID).Msg("bad race-finished payload dropped")
		return
	}
	_ = s.engine.ReportCompletion(ctx, payload.SessionID, conn.UserID, race.CompletionReport{
		WPM:       payload.WPM,
		Accuracy:  payload.Accuracy,
		Errors:    payload.Errors,
		TimeTaken: payload.TimeTaken,
	})
}

// HandleDisconnect cleans up after a closed connection: a waiting entry
// leaves the queue, and a mid-race participant takes the session onto the
// abort path.
func (s *Service) HandleDisconnect(connID string) {
	if s.queue.Remove(connID) {
		return
	}
	s.engine.HandleDisconnect(connID)
}
