package leaderboard

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateScore(t *testing.T) {
	tests := []struct {
		name   string
		input  ValidationInput
		valid  bool
		reason string
	}{
		{
			name: "plausible run",
			input: ValidationInput{
				Score:        1200,
				Floor:        40,
				PerfectCount: 10,
				MaxCombo:     8,
				PlayTimeMs:   120000,
			},
			valid: true,
		},
		{
			name:   "negative score",
			input:  ValidationInput{Score: -1, Floor: 10, PlayTimeMs: 60000},
			reason: ReasonInvalidData,
		},
		{
			name:   "negative floor",
			input:  ValidationInput{Score: 100, Floor: -1, PlayTimeMs: 60000},
			reason: ReasonInvalidData,
		},
		{
			name:   "play time too short",
			input:  ValidationInput{Score: 100, Floor: 10, PlayTimeMs: 3000},
			reason: ReasonPlayTimeTooShort,
		},
		{
			name:   "climbing faster than possible",
			input:  ValidationInput{Score: 100, Floor: 500, PlayTimeMs: 60000},
			reason: ReasonFloorRateTooHigh,
		},
		{
			name:   "score too high for floor",
			input:  ValidationInput{Score: 100000, Floor: 10, PlayTimeMs: 60000},
			reason: ReasonScoreTooHigh,
		},
		{
			name:   "more perfects than floors",
			input:  ValidationInput{Score: 1000, Floor: 10, PerfectCount: 11, PlayTimeMs: 60000},
			reason: ReasonPerfectCountInvalid,
		},
		{
			name:   "combo longer than run",
			input:  ValidationInput{Score: 1000, Floor: 10, MaxCombo: 11, PlayTimeMs: 60000},
			reason: ReasonComboInvalid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ValidateScore(tt.input)
			assert.Equal(t, tt.valid, result.Valid)
			assert.Equal(t, tt.reason, result.Reason)
		})
	}
}

func TestValidateScore_BotTiming(t *testing.T) {
	// Ten taps exactly 200ms apart: machine-like.
	var robotic []Action
	for i := 0; i < 10; i++ {
		robotic = append(robotic, Action{Type: "jump", Time: int64(i) * 200})
	}
	result := ValidateScore(ValidationInput{
		Score:      1000,
		Floor:      30,
		PlayTimeMs: 90000,
		Actions:    robotic,
	})
	assert.False(t, result.Valid)
	assert.Equal(t, ReasonBotDetected, result.Reason)

	// Same cadence with human jitter passes.
	jitter := []int64{0, 210, 395, 640, 850, 1110, 1290, 1560, 1740, 2010}
	var human []Action
	for _, ts := range jitter {
		human = append(human, Action{Type: "jump", Time: ts})
	}
	result = ValidateScore(ValidationInput{
		Score:      1000,
		Floor:      30,
		PlayTimeMs: 90000,
		Actions:    human,
	})
	assert.True(t, result.Valid)
}

func TestValidateScore_ShortActionLogNotFlagged(t *testing.T) {
	actions := []Action{
		{Type: "jump", Time: 0},
		{Type: "jump", Time: 200},
		{Type: "jump", Time: 400},
	}
	result := ValidateScore(ValidationInput{
		Score:      500,
		Floor:      20,
		PlayTimeMs: 60000,
		Actions:    actions,
	})
	assert.True(t, result.Valid)
}
