package notify

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/sandeepkv93/timelock/internal/model"
	"github.com/sandeepkv93/timelock/internal/scheduler"
	"github.com/sandeepkv93/timelock/internal/storage"
	"github.com/sandeepkv93/timelock/internal/timemath"
)

type TaskLookup interface {
	GetTask(ctx context.Context, id int64) (model.Task, error)
}

type SkipReason string

const (
	SkipNone            SkipReason = ""
	SkipDeleted         SkipReason = "task deleted"
	SkipCompleted       SkipReason = "task completed"
	SkipDeadlineChanged SkipReason = "deadline changed"
	SkipOffsetRemoved   SkipReason = "offset removed"
	SkipBannerOff       SkipReason = "banners disabled"
)

// Delivery reports what the handler did with one fired reminder.
type Delivery struct {
	Event        scheduler.Event
	Task         model.Task
	Notification Notification
	Sent         bool
	Skipped      SkipReason
}

type HandlerOption func(*Handler)

func WithLogger(l *log.Logger) HandlerOption {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}

func WithClock(now func() time.Time) HandlerOption {
	return func(h *Handler) {
		if now != nil {
			h.now = now
		}
	}
}

// WithLocation sets the zone used to print the deadline in the body.
func WithLocation(loc *time.Location) HandlerOption {
	return func(h *Handler) {
		if loc != nil {
			h.loc = loc
		}
	}
}

// Handler runs when the scheduler fires. It re-reads the task and stays
// quiet when the reminder no longer applies, which covers edits whose
// reconciliation has not run yet.
type Handler struct {
	tasks    TaskLookup
	notifier Notifier
	policy   Policy
	logger   *log.Logger
	now      func() time.Time
	loc      *time.Location
	badge    atomic.Int64
}

func NewHandler(tasks TaskLookup, notifier Notifier, policy Policy, opts ...HandlerOption) *Handler {
	if notifier == nil {
		notifier = NoopNotifier{}
	}
	h := &Handler{
		tasks:    tasks,
		notifier: notifier,
		policy:   policy,
		logger:   log.Default(),
		now:      func() time.Time { return time.Now().UTC() },
		loc:      time.Local,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) Policy() Policy { return h.policy }

// Badge is the number of reminders delivered since the last ClearBadge.
func (h *Handler) Badge() int { return int(h.badge.Load()) }

func (h *Handler) ClearBadge() { h.badge.Store(0) }

func (h *Handler) Handle(ctx context.Context, ev scheduler.Event) (Delivery, error) {
	d := Delivery{Event: ev}
	p := ev.Payload

	task, err := h.tasks.GetTask(ctx, p.TaskID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			d.Skipped = SkipDeleted
			h.logger.Printf("reminder %s skipped: %s", ev.Handle, d.Skipped)
			return d, nil
		}
		return d, fmt.Errorf("load task %d: %w", p.TaskID, err)
	}
	d.Task = task

	switch {
	case task.Completed:
		d.Skipped = SkipCompleted
	case !task.Deadline.Equal(p.Deadline):
		d.Skipped = SkipDeadlineChanged
	case !slices.Contains(task.ReminderOffsets, p.OffsetMinutes):
		d.Skipped = SkipOffsetRemoved
	}
	if d.Skipped != SkipNone {
		h.logger.Printf("reminder %s for task %d skipped: %s", ev.Handle, task.ID, d.Skipped)
		return d, nil
	}

	now := h.now()
	d.Notification = Build(task, p.OffsetMinutes, now, h.loc)
	d.Notification.Sound = h.policy.Sound
	if h.policy.Badge {
		d.Notification.Badge = int(h.badge.Add(1))
	}
	if !h.policy.Banner {
		d.Skipped = SkipBannerOff
		return d, nil
	}
	if err := h.notifier.Send(ctx, d.Notification); err != nil {
		return d, fmt.Errorf("send reminder for task %d: %w", task.ID, err)
	}
	d.Sent = true
	return d, nil
}

var priorityMarks = map[model.Priority]string{
	model.PriorityLow:    "🟢",
	model.PriorityMedium: "🟡",
	model.PriorityHigh:   "🟠",
	model.PriorityUrgent: "🔴",
}

// Build renders the notification content for one reminder of t.
func Build(t model.Task, offsetMinutes int, now time.Time, loc *time.Location) Notification {
	if loc == nil {
		loc = time.UTC
	}
	mark, ok := priorityMarks[t.Priority]
	if !ok {
		mark = priorityMarks[model.PriorityMedium]
	}
	due := t.Deadline.In(loc)
	return Notification{
		TaskID:   t.ID,
		Title:    "⏰ " + t.Title,
		Subtitle: timemath.FormatOffset(offsetMinutes),
		Body:     fmt.Sprintf("%s %s • Due %s at %s", mark, strings.ToUpper(string(t.Priority)), due.Format("Jan 2"), due.Format("3:04 PM")),
		Level:    timemath.Classify(timemath.ComputeRemaining(t.Deadline, now)),
		At:       now,
	}
}

// Run handles events until ctx is done or events is closed. onDelivery, if
// set, sees every delivery including skipped ones.
func (h *Handler) Run(ctx context.Context, events <-chan scheduler.Event, onDelivery func(Delivery)) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			d, err := h.Handle(ctx, ev)
			if err != nil {
				h.logger.Printf("warning: %v", err)
			}
			if onDelivery != nil {
				onDelivery(d)
			}
		}
	}
}
