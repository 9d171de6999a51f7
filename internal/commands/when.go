package commands

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"time"
)

var unitWords = strings.NewReplacer(
	"minutes", "m", "minute", "m", "mins", "m", "min", "m",
	"hours", "h", "hour", "h", "hrs", "h", "hr", "h",
	"days", "d", "day", "d",
	"weeks", "w", "week", "w",
)

var absoluteLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02 3:04PM",
	"2006-01-02 3PM",
}

// ParseDuration accepts Go durations plus whole days and weeks: "90m",
// "1h30m", "2d", "1w", "+3h", "2 days".
func ParseDuration(raw string) (time.Duration, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.TrimPrefix(s, "+")
	s = unitWords.Replace(strings.Join(strings.Fields(s), ""))
	if s == "" {
		return 0, invalid("duration is empty")
	}
	if d, err := time.ParseDuration(s); err == nil {
		if d <= 0 {
			return 0, invalid("duration must be positive, got %q", raw)
		}
		return d, nil
	}

	var total time.Duration
	for s != "" {
		i := 0
		for i < len(s) && s[i] >= '0' && s[i] <= '9' {
			i++
		}
		if i == 0 || i == len(s) {
			return 0, invalid("bad duration %q", raw)
		}
		n, err := strconv.ParseInt(s[:i], 10, 64)
		if err != nil {
			return 0, invalid("duration too large %q", raw)
		}
		unit := s[i]
		s = s[i+1:]
		var size time.Duration
		switch unit {
		case 'w':
			size = 7 * 24 * time.Hour
		case 'd':
			size = 24 * time.Hour
		case 'h':
			size = time.Hour
		case 'm':
			size = time.Minute
		default:
			return 0, invalid("bad duration %q", raw)
		}
		if n > int64(math.MaxInt64-total)/int64(size) {
			return 0, invalid("duration too large %q", raw)
		}
		total += time.Duration(n) * size
	}
	if total <= 0 {
		return 0, invalid("duration must be positive, got %q", raw)
	}
	return total, nil
}

// ParseWhen resolves a deadline expression relative to now. Relative forms
// ("in 2h", "+1d", "3d") add to now; "today 17:00" and "tomorrow 9:30" pick a
// clock time; a bare date means the last minute of that day. Absolute forms
// are read in now's location.
func ParseWhen(raw string, now time.Time) (time.Time, error) {
	s := strings.TrimSpace(raw)
	lower := strings.ToLower(s)
	if lower == "" {
		return time.Time{}, invalid("time is empty")
	}

	if rest, ok := strings.CutPrefix(lower, "in "); ok {
		d, err := ParseDuration(rest)
		if err != nil {
			return time.Time{}, err
		}
		return now.Add(d).Truncate(time.Minute), nil
	}
	if d, err := ParseDuration(lower); err == nil {
		return now.Add(d).Truncate(time.Minute), nil
	}

	for _, day := range []struct {
		word  string
		shift int
	}{{"today", 0}, {"tomorrow", 1}} {
		rest, ok := strings.CutPrefix(lower, day.word)
		if !ok {
			continue
		}
		base := now.AddDate(0, 0, day.shift)
		rest = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(rest), "at"))
		if rest == "" {
			return endOfDay(base), nil
		}
		clock, err := parseClock(rest)
		if err != nil {
			return time.Time{}, err
		}
		y, m, d := base.Date()
		return time.Date(y, m, d, clock.Hour(), clock.Minute(), 0, 0, now.Location()), nil
	}

	upper := strings.ToUpper(s)
	for _, layout := range absoluteLayouts {
		if t, err := time.ParseInLocation(layout, upper, now.Location()); err == nil {
			return t, nil
		}
	}
	if t, err := time.ParseInLocation("2006-01-02", s, now.Location()); err == nil {
		return endOfDay(t), nil
	}
	return time.Time{}, invalid("unrecognised time %q", raw)
}

func parseClock(raw string) (time.Time, error) {
	s := strings.ToUpper(strings.ReplaceAll(raw, " ", ""))
	for _, layout := range []string{"15:04", "3:04PM", "3PM", "15"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, invalid("unrecognised clock time %q", raw)
}

func endOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 0, 0, t.Location())
}

// Describe renders a parse or execute failure for the status line.
func Describe(err error) string {
	if err == nil {
		return ""
	}
	var ce *CommandError
	if errors.As(err, &ce) {
		return ce.Message
	}
	return err.Error()
}
