package common

import (
	"net/http"
	"strings"
	"time"
)

// DateRange is a half-open [From, To) window.
type DateRange struct {
	From time.Time
	To   time.Time
}

// ParseDateRange reads "from" and "to" query parameters. Each accepts
// RFC3339 or a calendar date (YYYY-MM-DD) interpreted in loc; a calendar "to"
// covers that whole day. Missing bounds fall back to the last defaultDays
// days ending at now ("days" overrides defaultDays).
func ParseDateRange(r *http.Request, now time.Time, defaultDays int, loc *time.Location) (DateRange, error) {
	if loc == nil {
		loc = time.UTC
	}
	q := r.URL.Query()
	days := defaultDays
	if days <= 0 {
		days = 30
	}
	if parsed := AtoiDefault(q.Get("days"), days); parsed > 0 {
		days = parsed
	}

	rng := DateRange{To: now, From: now.AddDate(0, 0, -days)}
	if raw := strings.TrimSpace(q.Get("to")); raw != "" {
		to, dateOnly, err := parseInstant(raw, loc)
		if err != nil {
			return DateRange{}, InvalidRequest("invalid to date", err)
		}
		if dateOnly {
			to = to.AddDate(0, 0, 1)
		}
		rng.To = to
		if q.Get("from") == "" {
			rng.From = to.AddDate(0, 0, -days)
		}
	}
	if raw := strings.TrimSpace(q.Get("from")); raw != "" {
		from, _, err := parseInstant(raw, loc)
		if err != nil {
			return DateRange{}, InvalidRequest("invalid from date", err)
		}
		rng.From = from
	}
	if !rng.From.Before(rng.To) {
		return DateRange{}, InvalidRequest("from must be before to", nil)
	}
	return rng, nil
}

func parseInstant(raw string, loc *time.Location) (time.Time, bool, error) {
	if t, err := time.ParseInLocation(time.DateOnly, raw, loc); err == nil {
		return t, true, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	return t, false, err
}

// QueryBool reads a boolean query parameter.
func QueryBool(r *http.Request, key string) bool {
	switch strings.ToLower(strings.TrimSpace(r.URL.Query().Get(key))) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
