package model

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"
)

var ErrInvalidOffset = errors.New("model: invalid reminder offset")

// MaxOffsetMinutes is the largest offset whose time.Duration fits in int64.
const MaxOffsetMinutes = math.MaxInt64 / int64(time.Minute)

// Predefined reminder offsets, in minutes before the deadline.
const (
	OffsetOneMinute      = 1
	OffsetFiveMinutes    = 5
	OffsetFifteenMinutes = 15
	OffsetThirtyMinutes  = 30
	OffsetOneHour        = 60
	OffsetTwoHours       = 120
	OffsetOneDay         = 1440
	OffsetTwoDays        = 2880
	OffsetOneWeek        = 10080
	OffsetTwoWeeks       = 20160
)

type OffsetChoice struct {
	Minutes int
	Label   string
}

var OffsetChoices = []OffsetChoice{
	{OffsetTwoWeeks, "2 weeks before"},
	{OffsetOneWeek, "1 week before"},
	{OffsetTwoDays, "2 days before"},
	{OffsetOneDay, "1 day before"},
	{OffsetTwoHours, "2 hours before"},
	{OffsetOneHour, "1 hour before"},
	{OffsetThirtyMinutes, "30 minutes before"},
	{OffsetFifteenMinutes, "15 minutes before"},
	{OffsetFiveMinutes, "5 minutes before"},
	{OffsetOneMinute, "1 minute before"},
}

func DefaultOffsets() Offsets {
	return Offsets{OffsetOneDay}
}

// IsPredefinedOffset reports whether minutes is one of OffsetChoices.
func IsPredefinedOffset(minutes int) bool {
	for _, c := range OffsetChoices {
		if c.Minutes == minutes {
			return true
		}
	}
	return false
}

// Offsets is a set of minute counts before a deadline. Order and duplicates
// carry no meaning; Normalize gives the canonical form.
type Offsets []int

func (o Offsets) Validate() error {
	for _, m := range o {
		if m <= 0 || int64(m) > MaxOffsetMinutes {
			return fmt.Errorf("%w: %d", ErrInvalidOffset, m)
		}
	}
	return nil
}

// Normalize drops non-positive or oversized values and duplicates and sorts descending
// (furthest reminder first). The result is never nil.
func (o Offsets) Normalize() Offsets {
	out := make(Offsets, 0, len(o))
	for _, m := range o {
		if m > 0 && int64(m) <= MaxOffsetMinutes && !slices.Contains(out, m) {
			out = append(out, m)
		}
	}
	slices.SortFunc(out, func(a, b int) int { return b - a })
	return out
}

// Equal compares two offset sets.
func (o Offsets) Equal(other Offsets) bool {
	return slices.Equal(o.Normalize(), other.Normalize())
}

func (o Offsets) String() string {
	parts := make([]string, 0, len(o))
	for _, m := range o.Normalize() {
		parts = append(parts, strconv.Itoa(m))
	}
	return strings.Join(parts, ",")
}

// ParseOffsets reads a comma separated list such as "60,1440" or "1h,1d".
func ParseOffsets(raw string) (Offsets, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.EqualFold(raw, "none") {
		return Offsets{}, nil
	}
	out := make(Offsets, 0, 4)
	for _, token := range strings.Split(raw, ",") {
		token = strings.TrimSpace(strings.ToLower(token))
		if token == "" {
			continue
		}
		minutes, err := parseOffsetToken(token)
		if err != nil {
			return nil, err
		}
		out = append(out, minutes)
	}
	if err := out.Validate(); err != nil {
		return nil, err
	}
	return out.Normalize(), nil
}

func parseOffsetToken(token string) (int, error) {
	if v, err := strconv.Atoi(token); err == nil {
		return v, nil
	}
	mult := 0
	switch {
	case strings.HasSuffix(token, "w"):
		mult = 7 * 24 * 60
	case strings.HasSuffix(token, "d"):
		mult = 24 * 60
	case strings.HasSuffix(token, "h"):
		mult = 60
	case strings.HasSuffix(token, "m"):
		mult = 1
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidOffset, token)
	}
	v, err := strconv.Atoi(token[:len(token)-1])
	if err != nil || v <= 0 || int64(v) > MaxOffsetMinutes/int64(mult) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidOffset, token)
	}
	return v * mult, nil
}

// ScheduledReminder is one handle the reconciler believes is live in the
// notification scheduler, along with what it was scheduled for.
type ScheduledReminder struct {
	Handle        string
	OffsetMinutes int
	TriggerAt     time.Time
}

func (r ScheduledReminder) Validate() error {
	if strings.TrimSpace(r.Handle) == "" {
		return errors.New("model: reminder handle is required")
	}
	if r.OffsetMinutes <= 0 || int64(r.OffsetMinutes) > MaxOffsetMinutes {
		return fmt.Errorf("%w: %d", ErrInvalidOffset, r.OffsetMinutes)
	}
	if r.TriggerAt.IsZero() {
		return errors.New("model: reminder trigger_at is required")
	}
	return nil
}
