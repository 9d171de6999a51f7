package timemath

import "time"

// Deadline is the subset of a task Summarize needs.
type Deadline struct {
	Deadline  time.Time
	Completed bool
}

type Stats struct {
	Total            int
	Completed        int
	Overdue          int
	Urgent           int
	Critical         int
	AverageRemaining time.Duration
}

// Summarize counts open tasks by urgency. Critical tasks are not counted as
// urgent; overdue tasks are excluded from the average.
func Summarize(items []Deadline, now time.Time) Stats {
	s := Stats{Total: len(items)}
	var sum time.Duration
	active := 0
	for _, it := range items {
		if it.Completed {
			s.Completed++
			continue
		}
		r := ComputeRemaining(it.Deadline, now)
		if r.IsOverdue {
			s.Overdue++
			continue
		}
		active++
		sum += r.Total
		switch {
		case r.IsCritical:
			s.Critical++
		case r.IsUrgent:
			s.Urgent++
		}
	}
	if active > 0 {
		s.AverageRemaining = sum / time.Duration(active)
	}
	return s
}
