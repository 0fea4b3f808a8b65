package records

import (
	"fmt"
	"strings"
	"time"

	"github.com/ehr/hms/internal/platform/persistence"
)

const dateLayout = "2006-01-02"

// ParseTime reads an RFC 3339 timestamp or a YYYY-MM-DD date for field and
// returns it in UTC, truncated to the second.
func ParseTime(field, raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, fmt.Errorf("%w: %s is required", persistence.ErrInvalid, field)
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		if t, err = time.Parse(dateLayout, raw); err != nil {
			return time.Time{}, fmt.Errorf("%w: %s must be RFC 3339 or YYYY-MM-DD, got %q", persistence.ErrInvalid, field, raw)
		}
	}
	return t.UTC().Truncate(time.Second), nil
}

// ParseDate is ParseTime truncated to midnight UTC.
func ParseDate(field, raw string) (time.Time, error) {
	t, err := ParseTime(field, raw)
	if err != nil {
		return t, err
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}
