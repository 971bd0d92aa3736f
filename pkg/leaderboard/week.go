package leaderboard

import (
	"fmt"
	"time"
)

// weekTimezone anchors week boundaries; rotations and week ids follow KST
// like the rest of the reward calendar.
var weekTimezone = time.FixedZone("KST", 9*60*60)

// WeekID returns the ISO-8601 year-week identifier (YYYY-Wnn) for t.
func WeekID(t time.Time) string {
	year, week := t.In(weekTimezone).ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}
