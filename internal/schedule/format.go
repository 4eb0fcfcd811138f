package schedule

import (
	"fmt"
	"strings"
)

const bodyPreviewRunes = 50

// Truncate cuts s to n runes and appends "..." when it was longer.
func Truncate(s string, n int) string {
	rs := []rune(s)
	if n <= 0 || len(rs) <= n {
		return s
	}
	return string(rs[:n]) + "..."
}

// TestPayload is the marked test message sent before a definition is scheduled.
func TestPayload(body string, day Day, hour, minute int) string {
	return fmt.Sprintf("TEST MESSAGE: %s\n\nThis is a test. This message will be sent automatically every %s at %s.",
		body, day, FormatClock(hour, minute))
}

// FormatList renders an owner's definitions for the list command.
func FormatList(defs []Definition) string {
	if len(defs) == 0 {
		return "You don't have any scheduled messages."
	}
	var b strings.Builder
	b.WriteString("Your scheduled messages:\n")
	for _, d := range defs {
		fmt.Fprintf(&b, "\nID: %d\nDay: %s\nTime: %s\nTarget: %s\nMessage: %s\n",
			d.ID, d.Day, d.Clock(), d.TargetLabel, Truncate(d.Body, bodyPreviewRunes))
	}
	return strings.TrimRight(b.String(), "\n")
}
