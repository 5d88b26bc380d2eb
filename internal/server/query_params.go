package server

import (
	"errors"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

const dateOnlyLayout = "2006-01-02"

// parseOptionalTime accepts RFC 3339 timestamps or YYYY-MM-DD dates. Dates resolve
// to the start of the UTC day, or to its last instant when endOfDay is set.
func parseOptionalTime(value string, endOfDay bool) (*time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	if parsed, err := time.Parse(time.RFC3339, trimmed); err == nil {
		parsed = parsed.UTC()
		return &parsed, nil
	}
	if parsed, err := time.Parse(dateOnlyLayout, trimmed); err == nil {
		if endOfDay {
			parsed = time.Date(parsed.Year(), parsed.Month(), parsed.Day(), 23, 59, 59, int(time.Second-time.Nanosecond), time.UTC)
		} else {
			parsed = time.Date(parsed.Year(), parsed.Month(), parsed.Day(), 0, 0, 0, 0, time.UTC)
		}
		return &parsed, nil
	}
	return nil, errors.New("invalid_time")
}

// parseDateField parses an optional body date and aborts with a field error when
// it is malformed.
func parseDateField(c *gin.Context, field string, value *string) (*time.Time, bool) {
	if value == nil {
		return nil, true
	}
	parsed, err := parseOptionalTime(*value, false)
	if err != nil {
		AbortWithError(c, newValidationError(field, "invalid_"+field, "invalid "+field))
		return nil, false
	}
	return parsed, true
}

func trimmedPtr(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	return &trimmed
}
