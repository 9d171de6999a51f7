// Package timemath derives countdown, progress and urgency values from a
// task's creation time, deadline and the current instant. Every function is
// pure; callers pass now explicitly.
package timemath

import (
	"fmt"
	"strings"
	"time"
)

const (
	day            = 24 * time.Hour
	urgentWindow   = 24 * time.Hour
	criticalWindow = time.Hour
	warningDays    = 3
)

// Remaining is the signed time left until a deadline, broken into whole
// components of its absolute value.
type Remaining struct {
	Total      time.Duration
	Days       int
	Hours      int
	Minutes    int
	Seconds    int
	IsOverdue  bool
	IsUrgent   bool
	IsCritical bool
}

func ComputeRemaining(deadline, now time.Time) Remaining {
	left := deadline.Sub(now)
	abs := left
	if abs < 0 {
		abs = -abs
	}
	overdue := left < 0
	return Remaining{
		Total:      left,
		Days:       int(abs / day),
		Hours:      int((abs % day) / time.Hour),
		Minutes:    int((abs % time.Hour) / time.Minute),
		Seconds:    int((abs % time.Minute) / time.Second),
		IsOverdue:  overdue,
		IsUrgent:   !overdue && abs < urgentWindow,
		IsCritical: !overdue && abs < criticalWindow,
	}
}

// Progress is how far now sits between creation and deadline.
type Progress struct {
	Fraction float64
	Elapsed  time.Duration
	Total    time.Duration
	Left     time.Duration
}

// ComputeProgress clamps Fraction to [0, 1]. A deadline at or before
// createdAt is degenerate and reports 1.
func ComputeProgress(createdAt, deadline, now time.Time) Progress {
	total := deadline.Sub(createdAt)
	elapsed := now.Sub(createdAt)
	p := Progress{
		Elapsed: elapsed,
		Total:   total,
		Left:    deadline.Sub(now),
	}
	if total <= 0 {
		p.Fraction = 1
		return p
	}
	f := float64(elapsed) / float64(total)
	switch {
	case f < 0:
		f = 0
	case f > 1:
		f = 1
	}
	p.Fraction = f
	return p
}

// Percent is Fraction rounded to a whole percentage.
func (p Progress) Percent() int {
	return int(p.Fraction*100 + 0.5)
}

type Level string

const (
	LevelNormal   Level = "normal"
	LevelWarning  Level = "warning"
	LevelUrgent   Level = "urgent"
	LevelCritical Level = "critical"
	LevelOverdue  Level = "overdue"
)

func (l Level) Label() string {
	switch l {
	case LevelOverdue:
		return "Overdue"
	case LevelCritical:
		return "Critical"
	case LevelUrgent:
		return "Urgent"
	case LevelWarning:
		return "Soon"
	default:
		return "On Track"
	}
}

func Classify(r Remaining) Level {
	switch {
	case r.IsOverdue:
		return LevelOverdue
	case r.IsCritical:
		return LevelCritical
	case r.IsUrgent:
		return LevelUrgent
	case r.Days <= warningDays:
		return LevelWarning
	default:
		return LevelNormal
	}
}

// FormatRemaining renders "3d", "5h", "12m" or, when detailed,
// "3d 4h remaining" / "2h 5m overdue".
func FormatRemaining(r Remaining, detailed bool) string {
	if r.IsOverdue && !detailed {
		return "Overdue"
	}
	suffix := "remaining"
	if r.IsOverdue {
		suffix = "overdue"
	}
	if detailed {
		switch {
		case r.Days > 0:
			return fmt.Sprintf("%dd %dh %s", r.Days, r.Hours, suffix)
		case r.Hours > 0:
			return fmt.Sprintf("%dh %dm %s", r.Hours, r.Minutes, suffix)
		default:
			return fmt.Sprintf("%dm %s", r.Minutes, suffix)
		}
	}
	switch {
	case r.Days > 0:
		return fmt.Sprintf("%dd", r.Days)
	case r.Hours > 0:
		return fmt.Sprintf("%dh", r.Hours)
	default:
		return fmt.Sprintf("%dm", r.Minutes)
	}
}

// FormatCountdown renders the full countdown, seconds included once less
// than an hour is left.
func FormatCountdown(r Remaining) string {
	parts := make([]string, 0, 4)
	if r.Days > 0 {
		parts = append(parts, plural(r.Days, "day"))
	}
	if r.Days > 0 || r.Hours > 0 {
		parts = append(parts, plural(r.Hours, "hour"))
	}
	if r.Days > 0 || r.Hours > 0 || r.Minutes > 0 {
		parts = append(parts, plural(r.Minutes, "minute"))
	}
	if r.Days == 0 && r.Hours == 0 {
		parts = append(parts, plural(r.Seconds, "second"))
	}
	out := strings.Join(parts, ", ")
	if r.IsOverdue {
		return out + " overdue"
	}
	return out + " remaining"
}

// FormatOffset renders a reminder offset such as "2 hours before due".
func FormatOffset(minutes int) string {
	switch {
	case minutes < 60:
		return plural(minutes, "minute") + " before due"
	case minutes < 1440:
		return plural(minutes/60, "hour") + " before due"
	default:
		return plural(minutes/1440, "day") + " before due"
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
