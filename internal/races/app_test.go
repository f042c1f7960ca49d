package races

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestValidateSoloResult(t *testing.T) {
	valid := SoloResultRequest{
		TextID:    uuid.New(),
		WPM:       65,
		Accuracy:  97.2,
		Errors:    3,
		TimeTaken: 42.5,
	}

	tests := []struct {
		name    string
		mutate  func(*SoloResultRequest)
		wantErr bool
	}{
		{name: "valid", mutate: func(r *SoloResultRequest) {}},
		{name: "zero wpm is fine", mutate: func(r *SoloResultRequest) { r.WPM = 0 }},
		{name: "boundary accuracy", mutate: func(r *SoloResultRequest) { r.Accuracy = 100 }},
		{name: "missing text", mutate: func(r *SoloResultRequest) { r.TextID = uuid.Nil }, wantErr: true},
		{name: "negative wpm", mutate: func(r *SoloResultRequest) { r.WPM = -1 }, wantErr: true},
		{name: "accuracy over 100", mutate: func(r *SoloResultRequest) { r.Accuracy = 100.1 }, wantErr: true},
		{name: "negative accuracy", mutate: func(r *SoloResultRequest) { r.Accuracy = -0.5 }, wantErr: true},
		{name: "negative errors", mutate: func(r *SoloResultRequest) { r.Errors = -2 }, wantErr: true},
		{name: "zero time", mutate: func(r *SoloResultRequest) { r.TimeTaken = 0 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid
			tt.mutate(&req)
			err := validateSoloResult(req)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidResult)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
