package storage

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/sandeepkv93/timelock/internal/model"
	"github.com/sandeepkv93/timelock/internal/scheduler"
)

var fixedNow = time.Date(2026, 2, 9, 12, 0, 0, 0, time.UTC)

func setupRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "timelock-test.db")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := MigrateUp(db); err != nil {
		t.Fatalf("migrate up: %v", err)
	}

	repo, err := NewSQLiteRepository(db, WithClock(func() time.Time { return fixedNow }))
	if err != nil {
		t.Fatalf("new repo: %v", err)
	}
	return repo
}

func parseRFC3339(t *testing.T, value string) time.Time {
	t.Helper()
	out, err := time.Parse(time.RFC3339, value)
	if err != nil {
		t.Fatalf("parse time: %v", err)
	}
	return out
}

func TestTaskCRUDAndList(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	deadline := parseRFC3339(t, "2026-02-11T09:30:00Z")

	task, err := repo.CreateTask(ctx, model.Draft{
		Title:           "Write schema",
		Description:     "Design storage layout",
		Priority:        model.PriorityHigh,
		Deadline:        deadline,
		ReminderOffsets: model.Offsets{60, 1440},
	})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	if task.ID <= 0 || !task.CreatedAt.Equal(fixedNow) {
		t.Fatalf("unexpected created task: %#v", task)
	}
	if !task.ReminderOffsets.Equal(model.Offsets{1440, 60}) {
		t.Fatalf("offsets not persisted: %v", task.ReminderOffsets)
	}
	if task.ScheduledReminders == nil || len(task.ScheduledReminders) != 0 {
		t.Fatalf("new task must have an empty, non-nil reminder set: %#v", task.ScheduledReminders)
	}

	title := "Write schema v2"
	done := true
	updated, err := repo.UpdateTask(ctx, task.ID, model.Patch{Title: &title, Completed: &done})
	if err != nil {
		t.Fatalf("update task: %v", err)
	}
	if updated.Title != title || !updated.Completed || !updated.Deadline.Equal(deadline) {
		t.Fatalf("unexpected update result: %#v", updated)
	}

	completed := true
	list, err := repo.ListTasks(ctx, model.TaskFilter{Completed: &completed})
	if err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	if len(list) != 1 || list[0].ID != task.ID {
		t.Fatalf("unexpected completed list: %#v", list)
	}

	if err := repo.DeleteTask(ctx, task.ID); err != nil {
		t.Fatalf("delete task: %v", err)
	}
	_, err = repo.GetTask(ctx, task.ID)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got: %v", err)
	}
	if err := repo.DeleteTask(ctx, task.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got: %v", err)
	}
}

func TestUpdateMissingTaskReturnsNotFound(t *testing.T) {
	repo := setupRepo(t)
	title := "ghost"
	_, err := repo.UpdateTask(context.Background(), 404, model.Patch{Title: &title})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListTasksOrdersByDeadline(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	for _, d := range []string{"2026-03-01T00:00:00Z", "2026-02-10T00:00:00Z", "2026-02-20T00:00:00Z"} {
		if _, err := repo.CreateTask(ctx, model.Draft{Title: "t " + d, Deadline: parseRFC3339(t, d)}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	list, err := repo.ListTasks(ctx, model.TaskFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("expected 3 tasks, got %d", len(list))
	}
	for i := 1; i < len(list); i++ {
		if list[i].Deadline.Before(list[i-1].Deadline) {
			t.Fatalf("tasks not ordered by deadline: %v then %v", list[i-1].Deadline, list[i].Deadline)
		}
	}

	cutoff := parseRFC3339(t, "2026-02-25T00:00:00Z")
	due, err := repo.ListTasks(ctx, model.TaskFilter{DueBefore: &cutoff, Limit: 1, Offset: 1})
	if err != nil {
		t.Fatalf("list due: %v", err)
	}
	if len(due) != 1 || !due[0].Deadline.Equal(parseRFC3339(t, "2026-02-20T00:00:00Z")) {
		t.Fatalf("unexpected paged list: %#v", due)
	}
}

func TestSetRemindersReplacesHandleSet(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	deadline := parseRFC3339(t, "2026-02-11T12:00:00Z")

	task, err := repo.CreateTask(ctx, model.Draft{Title: "Ship", Deadline: deadline, ReminderOffsets: model.Offsets{60, 1440}})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}

	first := []model.ScheduledReminder{
		{Handle: "ntf-a", OffsetMinutes: 1440, TriggerAt: deadline.Add(-1440 * time.Minute)},
		{Handle: "ntf-b", OffsetMinutes: 60, TriggerAt: deadline.Add(-60 * time.Minute)},
	}
	if err := repo.SetReminders(ctx, task.ID, first); err != nil {
		t.Fatalf("set reminders: %v", err)
	}
	got, err := repo.GetTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if len(got.ScheduledReminders) != 2 || got.ScheduledReminders[0].Handle != "ntf-a" {
		t.Fatalf("unexpected reminders: %#v", got.ScheduledReminders)
	}
	if !got.ScheduledReminders[1].TriggerAt.Equal(deadline.Add(-time.Hour)) {
		t.Fatalf("trigger time not preserved: %v", got.ScheduledReminders[1].TriggerAt)
	}

	if err := repo.SetReminders(ctx, task.ID, nil); err != nil {
		t.Fatalf("clear reminders: %v", err)
	}
	got, _ = repo.GetTask(ctx, task.ID)
	if len(got.ScheduledReminders) != 0 {
		t.Fatalf("expected empty reminder set, got %#v", got.ScheduledReminders)
	}

	if err := repo.SetReminders(ctx, 999, first); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing task, got %v", err)
	}
	if err := repo.SetReminders(ctx, task.ID, []model.ScheduledReminder{{OffsetMinutes: 5}}); err == nil {
		t.Fatal("expected validation error for reminder without handle")
	}
}

func TestDeleteTaskRemovesReminders(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	deadline := parseRFC3339(t, "2026-02-11T12:00:00Z")

	task, _ := repo.CreateTask(ctx, model.Draft{Title: "Temp", Deadline: deadline})
	_ = repo.SetReminders(ctx, task.ID, []model.ScheduledReminder{{Handle: "ntf-x", OffsetMinutes: 60, TriggerAt: deadline.Add(-time.Hour)}})

	if err := repo.DeleteTask(ctx, task.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	var n int
	if err := repo.db.QueryRow(`SELECT COUNT(*) FROM task_reminders`).Scan(&n); err != nil {
		t.Fatalf("count reminders: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected reminders removed with task, got %d", n)
	}
}

func TestCategoryCRUDAndTaskLink(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	cat, err := repo.CreateCategory(ctx, Category{Name: "work", Color: "#ff8800"})
	if err != nil {
		t.Fatalf("create category: %v", err)
	}
	if _, err := repo.CreateCategory(ctx, Category{Name: "work"}); err == nil {
		t.Fatal("expected duplicate category name to fail")
	}

	task, err := repo.CreateTask(ctx, model.Draft{Title: "Report", Deadline: fixedNow.Add(48 * time.Hour), CategoryID: &cat.ID})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	if task.CategoryID == nil || *task.CategoryID != cat.ID {
		t.Fatalf("category not linked: %#v", task.CategoryID)
	}

	cat.Name = "office"
	if err := repo.UpdateCategory(ctx, cat); err != nil {
		t.Fatalf("update category: %v", err)
	}
	list, err := repo.ListCategories(ctx, CategoryListFilter{})
	if err != nil {
		t.Fatalf("list categories: %v", err)
	}
	if len(list) != 1 || list[0].Name != "office" {
		t.Fatalf("unexpected categories: %#v", list)
	}

	if err := repo.DeleteCategory(ctx, cat.ID); err != nil {
		t.Fatalf("delete category: %v", err)
	}
	got, err := repo.GetTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if got.CategoryID != nil {
		t.Fatalf("expected category cleared on delete, got %v", *got.CategoryID)
	}
	if _, err := repo.GetCategory(ctx, cat.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateTaskRejectsInvalidDraft(t *testing.T) {
	repo := setupRepo(t)
	_, err := repo.CreateTask(context.Background(), model.Draft{Title: "  ", Deadline: fixedNow})
	if !errors.Is(err, model.ErrTitleRequired) {
		t.Fatalf("expected ErrTitleRequired, got %v", err)
	}
}

func TestNotificationQueueRoundTrip(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	deadline := parseRFC3339(t, "2026-02-11T12:00:00Z")

	later := scheduler.Scheduled{
		Handle:    "ntf-later",
		TriggerAt: deadline.Add(-time.Hour),
		Payload:   scheduler.Payload{TaskID: 7, OffsetMinutes: 60, Deadline: deadline, Title: "Ship"},
	}
	sooner := scheduler.Scheduled{
		Handle:    "ntf-sooner",
		TriggerAt: deadline.Add(-24 * time.Hour),
		Payload:   scheduler.Payload{TaskID: 7, OffsetMinutes: 1440, Deadline: deadline, Title: "Ship"},
	}
	for _, s := range []scheduler.Scheduled{later, sooner} {
		if err := repo.EnqueueNotification(ctx, s); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}

	list, err := repo.ListNotifications(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].Handle != sooner.Handle {
		t.Fatalf("unexpected queue order: %#v", list)
	}
	got := list[1]
	if got.Payload.TaskID != 7 || got.Payload.OffsetMinutes != 60 || got.Payload.Title != "Ship" ||
		!got.Payload.Deadline.Equal(deadline) || !got.TriggerAt.Equal(later.TriggerAt) {
		t.Fatalf("payload not preserved: %#v", list[1])
	}

	if err := repo.DequeueNotification(ctx, sooner.Handle); err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	if err := repo.DequeueNotification(ctx, sooner.Handle); err != nil {
		t.Fatalf("dequeue must be idempotent: %v", err)
	}
	list, _ = repo.ListNotifications(ctx)
	if len(list) != 1 || list[0].Handle != later.Handle {
		t.Fatalf("unexpected queue after dequeue: %#v", list)
	}
}

func TestEngineBackedBySQLiteQueue(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	engine := scheduler.NewEngine(1, scheduler.WithClock(func() time.Time { return fixedNow }), scheduler.WithQueueStore(repo))

	h, err := engine.Schedule(ctx, fixedNow.Add(time.Hour), scheduler.Payload{TaskID: 3, OffsetMinutes: 60, Deadline: fixedNow.Add(2 * time.Hour)})
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}

	other := scheduler.NewEngine(1, scheduler.WithQueueStore(repo))
	if err := other.Reload(ctx); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if other.Pending() != 1 {
		t.Fatalf("second engine should see the queued entry, pending=%d", other.Pending())
	}

	if err := engine.Cancel(ctx, h); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	list, err := other.ListAll(ctx)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("expected queue drained after cancel, got %#v", list)
	}
}
