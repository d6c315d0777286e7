package report

import (
	"fmt"
	"time"
)

// FormatUptime formats seconds as whole minutes, e.g. "30 min".
func FormatUptime(secs int64) string {
	return fmt.Sprintf("%d min", secs/60)
}

// FormatLatency formats a latency in milliseconds.
func FormatLatency(ms float64) string {
	return fmt.Sprintf("%.1fms", ms)
}

// FormatBalance formats a reward amount at persisted precision.
func FormatBalance(v float64) string {
	return fmt.Sprintf("%.4f", v)
}

// FormatDuration formats a duration into human-readable form.
func FormatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
}

// FormatAge formats the time between t and now, or "never" for a zero t.
func FormatAge(t, now time.Time) string {
	if t.IsZero() {
		return "never"
	}
	age := now.Sub(t)
	if age < 0 {
		age = 0
	}
	return FormatDuration(age) + " ago"
}
