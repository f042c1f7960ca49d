package main

import (
	"database/sql"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/typerace/internal/api"
	"github.com/mcdev12/typerace/internal/gateway"
	"github.com/mcdev12/typerace/internal/matchmaking"
	"github.com/mcdev12/typerace/internal/models"
	"github.com/mcdev12/typerace/internal/race"
	"github.com/mcdev12/typerace/internal/races"
	"github.com/mcdev12/typerace/internal/stats"
	"github.com/mcdev12/typerace/internal/stream"
	"github.com/mcdev12/typerace/internal/texts"
)

type Services struct {
	REST      *api.Handlers
	WebSocket *gateway.WebSocketHandler
	Manager   *gateway.ConnectionManager
	Stream    race.StreamPublisher
}

func setupServices(database *sql.DB, config *Config) (*Services, error) {
	// Wire up dependency injection chain
	// Database layer → Repository layer → App layer → Engine/Gateway layer

	clock := clockwork.NewRealClock()

	// Texts
	textsRepo := texts.NewRepository(database)
	textsApp := texts.NewApp(textsRepo)

	// Stats
	statsRepo := stats.NewRepository(database)
	statsApp := stats.NewApp(statsRepo)

	// Races
	racesRepo := races.NewRepository(database)
	racesApp := races.NewApp(database, racesRepo, statsRepo, clock)

	// Event stream
	var publisher race.StreamPublisher
	if config.Stream.Enabled {
		streamCfg := stream.DefaultJetStreamConfig()
		streamCfg.URL = config.Stream.URL
		js, err := stream.NewJetStreamPublisher(streamCfg)
		if err != nil {
			return nil, err
		}
		publisher = js
	} else {
		log.Info().Msg("event stream disabled, using noop publisher")
		publisher = stream.NoopPublisher{}
	}

	// Connection manager doubles as the engine's broadcaster.
	manager := gateway.NewConnectionManager(gateway.DefaultConnectionConfig())

	ceiling, err := config.completionCeiling()
	if err != nil {
		return nil, err
	}
	engineCfg := race.DefaultConfig()
	engineCfg.CountdownDuration = time.Duration(config.Race.CountdownMs) * time.Millisecond
	engineCfg.CompletionCeiling = ceiling
	engineCfg.TextDifficulty = models.TextDifficulty(config.Race.TextDifficulty)

	engine := race.NewEngine(engineCfg, clock, textsApp, racesApp, statsApp, manager, publisher)

	// Matchmaking and the gateway service
	queue := matchmaking.NewQueue(clock)
	gateway.NewService(queue, engine, manager)

	return &Services{
		REST:      api.NewHandlers(racesApp, textsApp, statsApp),
		WebSocket: gateway.NewWebSocketHandler(manager),
		Manager:   manager,
		Stream:    publisher,
	}, nil
}
