package reconcile

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/sandeepkv93/timelock/internal/model"
	"github.com/sandeepkv93/timelock/internal/scheduler"
	"github.com/sandeepkv93/timelock/internal/trigger"
)

// Action is the reminder work one task transition calls for.
type Action int

const (
	ActionNone Action = iota
	ActionSchedule
	ActionCancel
	ActionReschedule
)

func (a Action) String() string {
	switch a {
	case ActionSchedule:
		return "schedule"
	case ActionCancel:
		return "cancel"
	case ActionReschedule:
		return "reschedule"
	default:
		return "none"
	}
}

// Decide maps a transition between two task snapshots to the reminder work it
// needs. A nil prev means the task is being created, a nil next that it is
// being deleted.
func Decide(prev, next *model.Task) Action {
	switch {
	case next == nil:
		if prev == nil {
			return ActionNone
		}
		return ActionCancel
	case prev == nil:
		if next.Completed {
			return ActionNone
		}
		return ActionSchedule
	case next.Completed:
		if prev.Completed {
			return ActionNone
		}
		return ActionCancel
	case prev.Completed:
		return ActionSchedule
	case model.ScheduleChanged(*prev, *next):
		return ActionReschedule
	default:
		return ActionNone
	}
}

// Result is the outcome of scheduling one trigger. Exactly one of Handle and
// Err is set.
type Result struct {
	Trigger trigger.Trigger
	Handle  scheduler.Handle
	Err     error
}

func (r Result) OK() bool { return r.Err == nil }

// Outcome describes one reconciliation pass. Reminders is derived only from
// successful results; Persist says whether the caller must write it back.
type Outcome struct {
	Action       Action
	Cancelled    []scheduler.Handle
	CancelErrors []error
	Results      []Result
	Reminders    []model.ScheduledReminder
	Persist      bool
}

// Failed returns the results whose schedule call did not succeed.
func (o Outcome) Failed() []Result {
	out := make([]Result, 0)
	for _, r := range o.Results {
		if !r.OK() {
			out = append(out, r)
		}
	}
	return out
}

// Option configures a Reconciler.
type Option func(*Reconciler)

func WithLogger(l *log.Logger) Option {
	return func(r *Reconciler) {
		if l != nil {
			r.logger = l
		}
	}
}

// Reconciler keeps the handle set stored on a task in line with what is live
// in the notification scheduler.
type Reconciler struct {
	port   scheduler.Port
	logger *log.Logger
}

// New returns a Reconciler that schedules and cancels through port.
func New(port scheduler.Port, opts ...Option) *Reconciler {
	r := &Reconciler{port: port, logger: log.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reconcile brings the scheduler in line with next. It runs to completion
// even if ctx is cancelled and never fails: every problem is recorded in the
// returned Outcome and logged.
func (r *Reconciler) Reconcile(ctx context.Context, prev, next *model.Task, now time.Time) Outcome {
	ctx = context.WithoutCancel(ctx)
	out := Outcome{
		Action:    Decide(prev, next),
		Reminders: []model.ScheduledReminder{},
	}

	switch out.Action {
	case ActionNone:
		switch {
		case prev == nil && next != nil:
			// created already completed: store the empty set explicitly
			out.Persist = true
		case prev != nil && next != nil && !next.Completed:
			out.Reminders = append(out.Reminders, prev.ScheduledReminders...)
		}
	case ActionCancel:
		out.Cancelled, out.CancelErrors = r.cancelAll(ctx, prev.ScheduledReminders)
		out.Persist = next != nil
	case ActionSchedule, ActionReschedule:
		if prev != nil {
			out.Cancelled, out.CancelErrors = r.cancelAll(ctx, prev.ScheduledReminders)
		}
		out.Results, out.Reminders = r.scheduleAll(ctx, *next, now)
		out.Persist = true
	}
	return out
}

func (r *Reconciler) cancelAll(ctx context.Context, reminders []model.ScheduledReminder) ([]scheduler.Handle, []error) {
	cancelled := make([]scheduler.Handle, 0, len(reminders))
	var errs []error
	for _, rem := range reminders {
		h := scheduler.Handle(rem.Handle)
		if err := r.port.Cancel(ctx, h); err != nil {
			var ce *scheduler.CancellationError
			if !errors.As(err, &ce) {
				err = &scheduler.CancellationError{Handle: h, Err: err}
			}
			r.logger.Printf("warning: %v", err)
			errs = append(errs, err)
		}
		cancelled = append(cancelled, h)
	}
	return cancelled, errs
}

func (r *Reconciler) scheduleAll(ctx context.Context, task model.Task, now time.Time) ([]Result, []model.ScheduledReminder) {
	return r.scheduleTriggers(ctx, task, trigger.Compute(task.Deadline, task.ReminderOffsets, now))
}

func (r *Reconciler) scheduleTriggers(ctx context.Context, task model.Task, triggers []trigger.Trigger) ([]Result, []model.ScheduledReminder) {
	results := make([]Result, 0, len(triggers))
	reminders := make([]model.ScheduledReminder, 0, len(triggers))
	for _, tr := range triggers {
		payload := scheduler.Payload{
			TaskID:        task.ID,
			OffsetMinutes: tr.OffsetMinutes,
			Deadline:      task.Deadline,
			Title:         task.Title,
		}
		h, err := r.port.Schedule(ctx, tr.At, payload)
		if err != nil {
			var se *scheduler.SchedulingError
			if !errors.As(err, &se) {
				err = &scheduler.SchedulingError{TriggerAt: tr.At, OffsetMinutes: tr.OffsetMinutes, Err: err}
			}
			r.logger.Printf("warning: task %d: %v", task.ID, err)
			results = append(results, Result{Trigger: tr, Err: err})
			continue
		}
		results = append(results, Result{Trigger: tr, Handle: h})
		reminders = append(reminders, model.ScheduledReminder{
			Handle:        string(h),
			OffsetMinutes: tr.OffsetMinutes,
			TriggerAt:     tr.At,
		})
	}
	return results, reminders
}
