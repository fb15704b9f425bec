package task

import (
	"strings"
	"time"

	"github.com/dukerupert/flatmate/internal/apperr"
)

var deadlineLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseDeadline accepts ISO-8601 date-times with or without a zone, with a
// space or T separator, and bare dates. Values without a zone are UTC.
func ParseDeadline(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if len(s) > 10 && s[10] == ' ' {
		s = s[:10] + "T" + s[11:]
	}
	for _, layout := range deadlineLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, apperr.ErrInvalidDeadline
}
