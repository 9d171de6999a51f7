package reconcile

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/sandeepkv93/timelock/internal/model"
	"github.com/sandeepkv93/timelock/internal/scheduler"
	"github.com/sandeepkv93/timelock/internal/trigger"
)

// SweepStore is the slice of the task store a sweep needs.
type SweepStore interface {
	ListTasks(ctx context.Context, filter model.TaskFilter) ([]model.Task, error)
	SetReminders(ctx context.Context, taskID int64, reminders []model.ScheduledReminder) error
}

// SweepReport summarises one sweep. Repaired lists tasks whose stored
// handle set was rewritten.
type SweepReport struct {
	Tasks    int
	Live     int
	Orphans  []scheduler.Handle
	Pruned   int
	Repaired []int64
	Errors   []error
}

func (r SweepReport) Clean() bool {
	return len(r.Orphans) == 0 && r.Pruned == 0 && len(r.Repaired) == 0 && len(r.Errors) == 0
}

// Sweep re-validates every task's stored handle set against the scheduler's
// live entries. Live entries no task can use are cancelled, reminders that
// already fired are dropped, and any task whose stored set no longer matches
// what is live or what its deadline and offsets call for is repaired.
func (r *Reconciler) Sweep(ctx context.Context, store SweepStore, now time.Time) SweepReport {
	ctx = context.WithoutCancel(ctx)
	var report SweepReport

	live, err := r.port.ListAll(ctx)
	if err != nil {
		report.Errors = append(report.Errors, fmt.Errorf("list scheduled: %w", err))
		return report
	}
	tasks, err := store.ListTasks(ctx, model.TaskFilter{})
	if err != nil {
		report.Errors = append(report.Errors, fmt.Errorf("list tasks: %w", err))
		return report
	}
	report.Live = len(live)
	report.Tasks = len(tasks)

	liveByHandle := make(map[scheduler.Handle]scheduler.Scheduled, len(live))
	for _, s := range live {
		liveByHandle[s.Handle] = s
	}
	byID := make(map[int64]model.Task, len(tasks))
	claimed := make(map[scheduler.Handle]struct{})
	for _, t := range tasks {
		byID[t.ID] = t
		for _, rem := range t.ScheduledReminders {
			claimed[scheduler.Handle(rem.Handle)] = struct{}{}
		}
	}

	// An unclaimed entry that still matches its open task may belong to a
	// mutation that scheduled it and has not stored the handle yet. Such
	// entries are offered to the task's repair instead of being cancelled.
	spare := make(map[int64][]scheduler.Scheduled)
	for _, s := range live {
		if _, ok := claimed[s.Handle]; ok {
			continue
		}
		if t, ok := byID[s.Payload.TaskID]; ok && matchesTask(t, s, now) {
			spare[t.ID] = append(spare[t.ID], s)
			continue
		}
		r.cancelOrphan(ctx, s.Handle, &report)
	}

	for _, t := range tasks {
		if t.Completed {
			if len(t.ScheduledReminders) == 0 {
				continue
			}
			_, errs := r.cancelAll(ctx, t.ScheduledReminders)
			report.Errors = append(report.Errors, errs...)
			r.persist(ctx, store, t.ID, []model.ScheduledReminder{}, &report)
			report.Repaired = append(report.Repaired, t.ID)
			continue
		}

		pending := make([]model.ScheduledReminder, 0, len(t.ScheduledReminders))
		for _, rem := range t.ScheduledReminders {
			if rem.TriggerAt.After(now) {
				pending = append(pending, rem)
			}
		}
		pruned := len(t.ScheduledReminders) - len(pending)
		report.Pruned += pruned

		if consistent(t, pending, liveByHandle, now) {
			if pruned > 0 {
				r.persist(ctx, store, t.ID, pending, &report)
			}
			for _, s := range spare[t.ID] {
				r.cancelOrphan(ctx, s.Handle, &report)
			}
			continue
		}
		r.repair(ctx, store, t, pending, spare[t.ID], liveByHandle, now, &report)
	}
	return report
}

// repair keeps one live entry per offset at the time the task calls for,
// preferring stored handles over spare ones, cancels everything else and
// schedules whatever is still missing.
func (r *Reconciler) repair(ctx context.Context, store SweepStore, t model.Task, pending []model.ScheduledReminder, spare []scheduler.Scheduled, live map[scheduler.Handle]scheduler.Scheduled, now time.Time, report *SweepReport) {
	expected := trigger.Compute(t.Deadline, t.ReminderOffsets, now)
	want := make(map[int]time.Time, len(expected))
	for _, tr := range expected {
		want[tr.OffsetMinutes] = tr.At
	}

	kept := make(map[int]model.ScheduledReminder, len(expected))
	var stale []model.ScheduledReminder
	for _, rem := range pending {
		s, isLive := live[scheduler.Handle(rem.Handle)]
		at, wanted := want[rem.OffsetMinutes]
		_, dup := kept[rem.OffsetMinutes]
		if isLive && wanted && !dup && at.Equal(rem.TriggerAt) && s.TriggerAt.Equal(at) {
			kept[rem.OffsetMinutes] = rem
			continue
		}
		stale = append(stale, rem)
	}
	adopted := 0
	for _, s := range spare {
		if _, dup := kept[s.Payload.OffsetMinutes]; dup {
			r.cancelOrphan(ctx, s.Handle, report)
			continue
		}
		kept[s.Payload.OffsetMinutes] = model.ScheduledReminder{
			Handle:        string(s.Handle),
			OffsetMinutes: s.Payload.OffsetMinutes,
			TriggerAt:     s.TriggerAt,
		}
		adopted++
	}
	_, errs := r.cancelAll(ctx, stale)
	report.Errors = append(report.Errors, errs...)

	reminders := make([]model.ScheduledReminder, 0, len(expected))
	missing := make([]trigger.Trigger, 0, len(expected))
	for _, tr := range expected {
		if rem, ok := kept[tr.OffsetMinutes]; ok {
			reminders = append(reminders, rem)
			continue
		}
		missing = append(missing, tr)
	}
	results, scheduled := r.scheduleTriggers(ctx, t, missing)
	for _, res := range results {
		if res.Err != nil {
			report.Errors = append(report.Errors, res.Err)
		}
	}
	reminders = append(reminders, scheduled...)
	sort.Slice(reminders, func(i, j int) bool {
		return reminders[i].TriggerAt.Before(reminders[j].TriggerAt)
	})

	r.persist(ctx, store, t.ID, reminders, report)
	report.Repaired = append(report.Repaired, t.ID)
	r.logger.Printf("sweep: task %d repaired: %d kept, %d adopted, %d scheduled",
		t.ID, len(reminders)-len(scheduled)-adopted, adopted, len(scheduled))
}

func (r *Reconciler) cancelOrphan(ctx context.Context, h scheduler.Handle, report *SweepReport) {
	if err := r.port.Cancel(ctx, h); err != nil {
		r.logger.Printf("warning: sweep: cancel orphan %s: %v", h, err)
		report.Errors = append(report.Errors, err)
		return
	}
	report.Orphans = append(report.Orphans, h)
}

// matchesTask reports whether a live entry is exactly one of the reminders
// the open task t still calls for.
func matchesTask(t model.Task, s scheduler.Scheduled, now time.Time) bool {
	if t.Completed || !s.Payload.Deadline.Equal(t.Deadline) {
		return false
	}
	for _, tr := range trigger.Compute(t.Deadline, t.ReminderOffsets, now) {
		if tr.OffsetMinutes == s.Payload.OffsetMinutes {
			return tr.At.Equal(s.TriggerAt)
		}
	}
	return false
}

func (r *Reconciler) persist(ctx context.Context, store SweepStore, id int64, reminders []model.ScheduledReminder, report *SweepReport) {
	if err := store.SetReminders(ctx, id, reminders); err != nil {
		r.logger.Printf("warning: sweep: persist reminders for task %d: %v", id, err)
		report.Errors = append(report.Errors, err)
	}
}

// consistent reports whether the pending reminders are all live at their
// recorded times and cover exactly the triggers the task calls for.
func consistent(t model.Task, pending []model.ScheduledReminder, live map[scheduler.Handle]scheduler.Scheduled, now time.Time) bool {
	expected := trigger.Compute(t.Deadline, t.ReminderOffsets, now)
	if len(expected) != len(pending) {
		return false
	}
	want := make(map[int]time.Time, len(expected))
	for _, tr := range expected {
		want[tr.OffsetMinutes] = tr.At
	}
	for _, rem := range pending {
		s, ok := live[scheduler.Handle(rem.Handle)]
		if !ok || !s.TriggerAt.Equal(rem.TriggerAt) {
			return false
		}
		at, ok := want[rem.OffsetMinutes]
		if !ok || !at.Equal(rem.TriggerAt) {
			return false
		}
		delete(want, rem.OffsetMinutes)
	}
	return len(want) == 0
}
