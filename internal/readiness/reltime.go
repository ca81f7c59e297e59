package readiness

import (
	"fmt"
	"time"
)

// RelativeTime renders how long ago t happened, relative to now. Anything
// under a minute is "Just now", anything a week or older falls back to an
// absolute date.
func RelativeTime(now, t time.Time) string {
	if t.IsZero() {
		return "Never"
	}
	diff := now.Sub(t)
	mins := int(diff.Minutes())
	hours := int(diff.Hours())
	days := int(diff.Hours() / 24)

	switch {
	case mins < 1:
		return "Just now"
	case mins < 60:
		return fmt.Sprintf("%d min%s ago", mins, plural(mins))
	case hours < 24:
		return fmt.Sprintf("%d hour%s ago", hours, plural(hours))
	case days < 7:
		return fmt.Sprintf("%d day%s ago", days, plural(days))
	default:
		return t.Format("2 Jan 2006")
	}
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
