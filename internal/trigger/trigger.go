// Package trigger turns a deadline and a set of minute offsets into the
// absolute times reminders should fire.
package trigger

import (
	"math"
	"sort"
	"time"
)

// offsets above this overflow time.Duration
const maxOffsetMinutes = math.MaxInt64 / int64(time.Minute)

// Trigger is one offset resolved against one deadline.
type Trigger struct {
	OffsetMinutes int
	At            time.Time
}

// Compute returns a trigger for every positive offset whose fire time is
// strictly after now, earliest first. Offsets already elapsed, or too large
// to express as a time.Duration, are dropped; a reminder is never produced
// for a moment in the past. Repeated offsets yield a single trigger.
func Compute(deadline time.Time, offsets []int, now time.Time) []Trigger {
	out := make([]Trigger, 0, len(offsets))
	seen := make(map[int]bool, len(offsets))
	for _, m := range offsets {
		if m <= 0 || int64(m) > maxOffsetMinutes || seen[m] {
			continue
		}
		seen[m] = true
		at := deadline.Add(-time.Duration(m) * time.Minute)
		if !at.After(now) {
			continue
		}
		out = append(out, Trigger{OffsetMinutes: m, At: at})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].At.Before(out[j].At)
	})
	return out
}

// Next returns the earliest pending trigger, if any.
func Next(deadline time.Time, offsets []int, now time.Time) (Trigger, bool) {
	list := Compute(deadline, offsets, now)
	if len(list) == 0 {
		return Trigger{}, false
	}
	return list[0], true
}
