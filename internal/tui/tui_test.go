package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sandeepkv93/timelock/internal/model"
	"github.com/sandeepkv93/timelock/internal/notify"
	"github.com/sandeepkv93/timelock/internal/reconcile"
	"github.com/sandeepkv93/timelock/internal/scheduler"
	"github.com/sandeepkv93/timelock/internal/tasks"
)

var now = time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)

type fakeBackend struct {
	tasks   map[int64]model.Task
	nextID  int64
	drafts  []model.Draft
	patches map[int64]model.Patch
	sweeps  int
	failAll error
}

func newFakeBackend(list ...model.Task) *fakeBackend {
	b := &fakeBackend{tasks: map[int64]model.Task{}, patches: map[int64]model.Patch{}, nextID: 100}
	for _, t := range list {
		b.tasks[t.ID] = t
	}
	return b
}

func (b *fakeBackend) Get(_ context.Context, id int64) (model.Task, error) {
	t, ok := b.tasks[id]
	if !ok {
		return model.Task{}, fmt.Errorf("task %d: not found", id)
	}
	return t, nil
}

func (b *fakeBackend) List(context.Context, model.TaskFilter) ([]model.Task, error) {
	if b.failAll != nil {
		return nil, b.failAll
	}
	out := make([]model.Task, 0, len(b.tasks))
	for _, t := range b.tasks {
		out = append(out, t)
	}
	return out, nil
}

func (b *fakeBackend) Create(_ context.Context, d model.Draft) (tasks.Mutation, error) {
	if b.failAll != nil {
		return tasks.Mutation{}, b.failAll
	}
	b.drafts = append(b.drafts, d)
	b.nextID++
	t := model.Task{ID: b.nextID, Title: d.Title, Priority: d.Priority, Deadline: d.Deadline, CreatedAt: now}
	b.tasks[t.ID] = t
	return tasks.Mutation{Task: t, Outcome: reconcile.Outcome{
		Action:    reconcile.ActionSchedule,
		Reminders: []model.ScheduledReminder{{Handle: "h", OffsetMinutes: 60}},
		Results:   []reconcile.Result{{Handle: "h"}, {Err: errors.New("boom")}},
	}}, nil
}

func (b *fakeBackend) Update(ctx context.Context, id int64, p model.Patch) (tasks.Mutation, error) {
	t, err := b.Get(ctx, id)
	if err != nil {
		return tasks.Mutation{}, err
	}
	b.patches[id] = p
	t = p.Apply(t)
	b.tasks[id] = t
	return tasks.Mutation{Task: t, Outcome: reconcile.Outcome{Action: reconcile.ActionReschedule}}, nil
}

func (b *fakeBackend) ToggleCompletion(ctx context.Context, id int64) (tasks.Mutation, error) {
	t, err := b.Get(ctx, id)
	if err != nil {
		return tasks.Mutation{}, err
	}
	done := !t.Completed
	return b.Update(ctx, id, model.Patch{Completed: &done})
}

func (b *fakeBackend) Delete(ctx context.Context, id int64) (tasks.Mutation, error) {
	t, err := b.Get(ctx, id)
	if err != nil {
		return tasks.Mutation{}, err
	}
	delete(b.tasks, id)
	return tasks.Mutation{Task: t, Outcome: reconcile.Outcome{Action: reconcile.ActionCancel}}, nil
}

func (b *fakeBackend) Sweep(context.Context) reconcile.SweepReport {
	b.sweeps++
	return reconcile.SweepReport{Tasks: len(b.tasks)}
}

func newTestModel(b *fakeBackend) Model {
	return NewModel(context.Background(), b, Options{
		Now:      func() time.Time { return now },
		Location: time.UTC,
	})
}

func task(id int64, title string, due time.Time) model.Task {
	return model.Task{ID: id, Title: title, Priority: model.PriorityMedium, Deadline: due, CreatedAt: now.Add(-time.Hour)}
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestTasksLoadedSelectsFirst(t *testing.T) {
	m := newTestModel(newFakeBackend())
	m, _ = update(t, m, TasksLoadedMsg{Tasks: []model.Task{task(1, "a", now.Add(time.Hour)), task(2, "b", now.Add(2*time.Hour))}})
	if m.SelectedID != 1 {
		t.Fatalf("selected = %d, want 1", m.SelectedID)
	}

	m, _ = update(t, m, runes("j"))
	m, _ = update(t, m, runes("j"))
	if m.SelectedID != 2 {
		t.Fatalf("selected after j j = %d, want 2", m.SelectedID)
	}
	m, _ = update(t, m, runes("k"))
	if m.SelectedID != 1 {
		t.Fatalf("selected after k = %d, want 1", m.SelectedID)
	}

	m, _ = update(t, m, TasksLoadedMsg{Err: errors.New("db gone")})
	if !m.Status.IsError || m.LastError == nil {
		t.Fatalf("expected load error status, got %+v", m.Status)
	}
}

func TestPaletteAddCreatesTask(t *testing.T) {
	b := newFakeBackend()
	m := newTestModel(b)

	m, _ = update(t, m, runes("/"))
	if !m.PaletteActive {
		t.Fatal("expected palette to open")
	}
	m, _ = update(t, m, runes("add write report in 2h remind:30m"))
	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.PaletteActive {
		t.Fatal("expected palette to close after enter")
	}
	if len(b.drafts) != 1 {
		t.Fatalf("expected one draft, got %d (status %+v)", len(b.drafts), m.Status)
	}
	d := b.drafts[0]
	if d.Title != "write report" || !d.Deadline.Equal(now.Add(2*time.Hour)) || !d.ReminderOffsets.Equal(model.Offsets{30}) {
		t.Fatalf("unexpected draft: %+v", d)
	}
	if !strings.Contains(m.Status.Text, "added #101") || !strings.Contains(m.Status.Text, "1 failed") {
		t.Fatalf("unexpected status: %q", m.Status.Text)
	}
	if cmd == nil {
		t.Fatal("expected reload command")
	}
	if loaded, ok := cmd().(TasksLoadedMsg); !ok || len(loaded.Tasks) != 1 {
		t.Fatalf("expected reload with one task, got %#v", cmd())
	}
}

func TestPaletteEscapeCloses(t *testing.T) {
	m := newTestModel(newFakeBackend())
	m, _ = update(t, m, runes("/"))
	m, _ = update(t, m, runes("done 1"))
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	if m.PaletteActive || m.commandInput.Value() != "" {
		t.Fatalf("palette not reset: active=%v value=%q", m.PaletteActive, m.commandInput.Value())
	}
}

func TestToggleKeyCompletesSelected(t *testing.T) {
	b := newFakeBackend(task(4, "pay rent", now.Add(time.Hour)))
	m := newTestModel(b)
	m, _ = update(t, m, TasksLoadedMsg{Tasks: []model.Task{b.tasks[4]}})
	m, _ = update(t, m, runes("x"))
	if !b.tasks[4].Completed {
		t.Fatal("expected task to be completed")
	}
	if !strings.HasPrefix(m.Status.Text, "completed #4") {
		t.Fatalf("unexpected status: %q", m.Status.Text)
	}
}

func TestSnoozeOverdueStartsFromNow(t *testing.T) {
	b := newFakeBackend(task(5, "late", now.Add(-3*time.Hour)), task(6, "future", now.Add(time.Hour)))
	m := newTestModel(b)

	m2, _ := m.runCommand("snooze 5 1h")
	m = m2.(Model)
	if got := *b.patches[5].Deadline; !got.Equal(now.Add(time.Hour)) {
		t.Fatalf("overdue snooze deadline = %v, want %v", got, now.Add(time.Hour))
	}

	m2, _ = m.runCommand("snooze 6 2d")
	m = m2.(Model)
	if got := *b.patches[6].Deadline; !got.Equal(now.Add(49 * time.Hour)) {
		t.Fatalf("future snooze deadline = %v, want %v", got, now.Add(49*time.Hour))
	}
	if !strings.HasPrefix(m.Status.Text, "snoozed #6") {
		t.Fatalf("unexpected status: %q", m.Status.Text)
	}
}

func TestRescheduleAndErrors(t *testing.T) {
	b := newFakeBackend(task(7, "demo", now.Add(time.Hour)))
	m := newTestModel(b)

	next, _ := m.runCommand("reschedule 7 tomorrow 10:30")
	m = next.(Model)
	want := time.Date(2026, 6, 2, 10, 30, 0, 0, time.UTC)
	if got := *b.patches[7].Deadline; !got.Equal(want) {
		t.Fatalf("reschedule deadline = %v, want %v", got, want)
	}

	next, _ = m.runCommand("reschedule 7 whenever")
	m = next.(Model)
	if !m.Status.IsError || !strings.Contains(m.Status.Text, "whenever") {
		t.Fatalf("expected parse error status, got %+v", m.Status)
	}

	next, _ = m.runCommand("delete 99")
	m = next.(Model)
	if !m.Status.IsError || m.LastError == nil {
		t.Fatalf("expected backend error status, got %+v", m.Status)
	}

	next, _ = m.runCommand("frobnicate")
	m = next.(Model)
	if !m.Status.IsError {
		t.Fatalf("expected unknown command error, got %+v", m.Status)
	}
}

func TestSweepCommand(t *testing.T) {
	b := newFakeBackend(task(1, "a", now.Add(time.Hour)))
	m := newTestModel(b)
	next, cmd := m.runCommand("/sweep")
	m = next.(Model)
	if cmd == nil {
		t.Fatal("expected sweep command")
	}
	done, ok := cmd().(SweepDoneMsg)
	if !ok || b.sweeps != 1 {
		t.Fatalf("expected sweep to run once, got %#v sweeps=%d", done, b.sweeps)
	}
	m, _ = update(t, m, done)
	if m.LastSweep == nil || !strings.Contains(m.Status.Text, "all in sync") {
		t.Fatalf("unexpected sweep status: %+v", m.Status)
	}

	m, _ = update(t, m, SweepDoneMsg{Report: reconcile.SweepReport{Orphans: []scheduler.Handle{"x"}, Errors: []error{errors.New("e")}}})
	if !m.Status.IsError || !strings.Contains(m.Status.Text, "1 orphan(s)") {
		t.Fatalf("unexpected drift status: %+v", m.Status)
	}
}

func TestDeliveryLogCapped(t *testing.T) {
	ch := make(chan notify.Delivery)
	b := newFakeBackend()
	m := NewModel(context.Background(), b, Options{Deliveries: ch, Now: func() time.Time { return now }})

	for i := 0; i < maxFired+5; i++ {
		m, _ = update(t, m, DeliveryMsg{Delivery: notify.Delivery{
			Sent:         true,
			Notification: notify.Notification{Title: fmt.Sprintf("⏰ task %d", i), Subtitle: "1 hour before due"},
		}})
	}
	if len(m.Fired) != maxFired {
		t.Fatalf("fired log = %d, want %d", len(m.Fired), maxFired)
	}
	if m.Fired[len(m.Fired)-1].Title != fmt.Sprintf("⏰ task %d", maxFired+4) {
		t.Fatalf("unexpected last item: %+v", m.Fired[len(m.Fired)-1])
	}

	m, _ = update(t, m, DeliveryMsg{Delivery: notify.Delivery{
		Event:   scheduler.Event{Scheduled: scheduler.Scheduled{Payload: scheduler.Payload{Title: "gone"}}},
		Skipped: notify.SkipDeleted,
	}})
	last := m.Fired[len(m.Fired)-1]
	if last.Title != "gone" || last.Skipped != string(notify.SkipDeleted) {
		t.Fatalf("unexpected skipped item: %+v", last)
	}
}

func TestViewAndQuit(t *testing.T) {
	b := newFakeBackend()
	m := newTestModel(b)
	m, _ = update(t, m, TasksLoadedMsg{Tasks: []model.Task{task(1, "render me", now.Add(30*time.Minute))}})
	view := m.View()
	for _, want := range []string{"timelock", "render me", "Critical", "reminders:", "selected:", "30 minutes, 0 seconds remaining", "no reminders pending"} {
		if !strings.Contains(view, want) {
			t.Fatalf("view missing %q:\n%s", want, view)
		}
	}

	m, cmd := update(t, m, runes("q"))
	if !m.Quitting || cmd == nil {
		t.Fatal("expected quit")
	}
	if m.View() != "" {
		t.Fatal("expected empty view after quit")
	}
}
