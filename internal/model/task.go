package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidPriority  = errors.New("model: invalid task priority")
	ErrTitleRequired    = errors.New("model: task title is required")
	ErrDeadlineRequired = errors.New("model: task deadline is required")
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent}

func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	default:
		return false
	}
}

func ParsePriority(raw string) (Priority, error) {
	p := Priority(strings.ToLower(strings.TrimSpace(raw)))
	if p == "" {
		return PriorityMedium, nil
	}
	if !p.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidPriority, raw)
	}
	return p, nil
}

// Task is the persisted task record. ScheduledReminders is owned by the
// reconciler; everything else is written by callers through Draft and Patch.
type Task struct {
	ID                 int64
	Title              string
	Description        string
	Priority           Priority
	CategoryID         *int64
	Deadline           time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
	Completed          bool
	ReminderOffsets    Offsets
	ScheduledReminders []ScheduledReminder
}

// Handles returns the handle set the reconciler believes is live.
func (t Task) Handles() []string {
	out := make([]string, 0, len(t.ScheduledReminders))
	for _, r := range t.ScheduledReminders {
		out = append(out, r.Handle)
	}
	return out
}

func (t Task) Validate() error {
	if t.ID <= 0 {
		return errors.New("model: task id is required")
	}
	if strings.TrimSpace(t.Title) == "" {
		return ErrTitleRequired
	}
	if t.Deadline.IsZero() {
		return ErrDeadlineRequired
	}
	if !t.Priority.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidPriority, t.Priority)
	}
	if t.CreatedAt.IsZero() {
		return errors.New("model: task created_at is required")
	}
	if t.Completed && len(t.ScheduledReminders) > 0 {
		return errors.New("model: completed task must not hold scheduled reminders")
	}
	return nil
}

// Draft is the input for creating a task. A nil ReminderOffsets inherits the
// default reminder policy; an empty non-nil slice means no reminders.
type Draft struct {
	Title           string
	Description     string
	Priority        Priority
	CategoryID      *int64
	Deadline        time.Time
	Completed       bool
	ReminderOffsets Offsets
}

func (d Draft) Validate() error {
	if strings.TrimSpace(d.Title) == "" {
		return ErrTitleRequired
	}
	if d.Deadline.IsZero() {
		return ErrDeadlineRequired
	}
	if d.Priority != "" && !d.Priority.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidPriority, d.Priority)
	}
	return d.ReminderOffsets.Validate()
}

// WithDefaults fills the priority and, when unset, the reminder offsets.
func (d Draft) WithDefaults(defaultOffsets Offsets) Draft {
	out := d
	out.Title = strings.TrimSpace(out.Title)
	out.Description = strings.TrimSpace(out.Description)
	if out.Priority == "" {
		out.Priority = PriorityMedium
	}
	if out.ReminderOffsets == nil {
		out.ReminderOffsets = defaultOffsets.Normalize()
	} else {
		out.ReminderOffsets = out.ReminderOffsets.Normalize()
	}
	return out
}

// Patch describes a partial update. Nil fields are left unchanged.
// ClearCategory takes precedence over CategoryID.
type Patch struct {
	Title           *string
	Description     *string
	Priority        *Priority
	CategoryID      *int64
	ClearCategory   bool
	Deadline        *time.Time
	Completed       *bool
	ReminderOffsets *Offsets
}

func (p Patch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.Priority == nil &&
		p.CategoryID == nil && !p.ClearCategory && p.Deadline == nil &&
		p.Completed == nil && p.ReminderOffsets == nil
}

func (p Patch) Validate() error {
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return ErrTitleRequired
	}
	if p.Deadline != nil && p.Deadline.IsZero() {
		return ErrDeadlineRequired
	}
	if p.Priority != nil && !p.Priority.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidPriority, *p.Priority)
	}
	if p.ReminderOffsets != nil {
		return p.ReminderOffsets.Validate()
	}
	return nil
}

// Apply returns a copy of t with the patch applied. ScheduledReminders is
// carried over untouched.
func (p Patch) Apply(t Task) Task {
	out := t
	if p.Title != nil {
		out.Title = strings.TrimSpace(*p.Title)
	}
	if p.Description != nil {
		out.Description = strings.TrimSpace(*p.Description)
	}
	if p.Priority != nil {
		out.Priority = *p.Priority
	}
	if p.ClearCategory {
		out.CategoryID = nil
	} else if p.CategoryID != nil {
		id := *p.CategoryID
		out.CategoryID = &id
	}
	if p.Deadline != nil {
		out.Deadline = *p.Deadline
	}
	if p.Completed != nil {
		out.Completed = *p.Completed
	}
	if p.ReminderOffsets != nil {
		out.ReminderOffsets = p.ReminderOffsets.Normalize()
	}
	return out
}

// ScheduleChanged reports whether the fields that drive reminder scheduling
// differ between two snapshots.
func ScheduleChanged(prev, next Task) bool {
	if !prev.Deadline.Equal(next.Deadline) {
		return true
	}
	return !prev.ReminderOffsets.Equal(next.ReminderOffsets)
}

// TaskFilter narrows a task listing. The zero value lists everything,
// earliest deadline first.
type TaskFilter struct {
	Completed  *bool
	CategoryID *int64
	DueBefore  *time.Time
	Limit      int
	Offset     int
}
