package leaderboard

// Server-side plausibility bounds. These are cost-raising heuristics, not
// exact cheat detection: legitimate runs stay well inside the slack.
const (
	maxScorePerFloor   = 500 // perfect + combo + golden can bonus
	maxFloorsPerMin    = 30
	minPlayTimeMs      = 5000
	floorRateSlack     = 1.5
	scorePerFloorSlack = 1.2
)

// Rejection reasons for implausible submissions.
const (
	ReasonInvalidData         = "INVALID_DATA"
	ReasonPlayTimeTooShort    = "PLAY_TIME_TOO_SHORT"
	ReasonFloorRateTooHigh    = "FLOOR_RATE_TOO_HIGH"
	ReasonScoreTooHigh        = "SCORE_TOO_HIGH"
	ReasonPerfectCountInvalid = "PERFECT_COUNT_INVALID"
	ReasonComboInvalid        = "COMBO_INVALID"
	ReasonBotDetected         = "BOT_DETECTED"
)

// Action is one input event from the client's action log, used by the bot
// heuristic.
type Action struct {
	Type string `json:"type"`
	Time int64  `json:"time"`
}

type ValidationInput struct {
	Score        int64
	Floor        int64
	PerfectCount int64
	MaxCombo     int64
	PlayTimeMs   int64
	Actions      []Action
}

type ValidationResult struct {
	Valid  bool
	Reason string
}

// ValidateScore checks a submission against the plausibility bounds.
func ValidateScore(in ValidationInput) ValidationResult {
	if in.Score < 0 || in.Floor < 0 {
		return ValidationResult{Reason: ReasonInvalidData}
	}

	if in.PlayTimeMs < minPlayTimeMs {
		return ValidationResult{Reason: ReasonPlayTimeTooShort}
	}

	playTimeMinutes := float64(in.PlayTimeMs) / 60000
	maxPossibleFloors := playTimeMinutes * maxFloorsPerMin
	if float64(in.Floor) > maxPossibleFloors*floorRateSlack {
		return ValidationResult{Reason: ReasonFloorRateTooHigh}
	}

	maxPossibleScore := float64(in.Floor) * maxScorePerFloor
	if float64(in.Score) > maxPossibleScore*scorePerFloorSlack {
		return ValidationResult{Reason: ReasonScoreTooHigh}
	}

	if in.PerfectCount > in.Floor {
		return ValidationResult{Reason: ReasonPerfectCountInvalid}
	}

	if in.MaxCombo > in.Floor {
		return ValidationResult{Reason: ReasonComboInvalid}
	}

	if reason := checkActionLog(in.Actions); reason != "" {
		return ValidationResult{Reason: reason}
	}

	return ValidationResult{Valid: true}
}

// checkActionLog flags suspiciously regular input timing. Human taps have
// interval variance well above 100ms².
func checkActionLog(actions []Action) string {
	var intervals []float64
	for i := 1; i < len(actions) && i < 20; i++ {
		intervals = append(intervals, float64(actions[i].Time-actions[i-1].Time))
	}
	if len(intervals) <= 5 {
		return ""
	}

	var sum float64
	for _, interval := range intervals {
		sum += interval
	}
	avg := sum / float64(len(intervals))

	var variance float64
	for _, interval := range intervals {
		variance += (interval - avg) * (interval - avg)
	}
	variance /= float64(len(intervals))

	if variance < 100 && avg < 500 {
		return ReasonBotDetected
	}
	return ""
}
