package model

import (
	"errors"
	"testing"
	"time"
)

func TestTaskValidateSuccess(t *testing.T) {
	now := time.Date(2026, 2, 9, 12, 0, 0, 0, time.UTC)
	task := Task{
		ID:        1,
		Title:     "File taxes",
		Priority:  PriorityHigh,
		Deadline:  now.Add(48 * time.Hour),
		CreatedAt: now,
	}
	if err := task.Validate(); err != nil {
		t.Fatalf("expected valid task, got error: %v", err)
	}
}

func TestTaskValidateCompletedHoldsNoReminders(t *testing.T) {
	now := time.Date(2026, 2, 9, 12, 0, 0, 0, time.UTC)
	task := Task{
		ID:        1,
		Title:     "Done task",
		Priority:  PriorityMedium,
		Deadline:  now.Add(time.Hour),
		CreatedAt: now,
		Completed: true,
		ScheduledReminders: []ScheduledReminder{
			{Handle: "ntf-1", OffsetMinutes: 30, TriggerAt: now.Add(30 * time.Minute)},
		},
	}
	err := task.Validate()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if err.Error() != "model: completed task must not hold scheduled reminders" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestTaskValidateInvalidPriority(t *testing.T) {
	now := time.Date(2026, 2, 9, 12, 0, 0, 0, time.UTC)
	task := Task{
		ID:        1,
		Title:     "Bad priority",
		Priority:  Priority("whenever"),
		Deadline:  now,
		CreatedAt: now,
	}
	if err := task.Validate(); !errors.Is(err, ErrInvalidPriority) {
		t.Fatalf("expected ErrInvalidPriority, got: %v", err)
	}
}

func TestDraftWithDefaults(t *testing.T) {
	deadline := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	d := Draft{Title: "  Pay rent ", Deadline: deadline}.WithDefaults(Offsets{60, 1440})
	if d.Title != "Pay rent" || d.Priority != PriorityMedium {
		t.Fatalf("unexpected defaults: %+v", d)
	}
	if d.ReminderOffsets.String() != "1440,60" {
		t.Fatalf("expected inherited offsets, got %v", d.ReminderOffsets)
	}

	explicit := Draft{Title: "x", Deadline: deadline, ReminderOffsets: Offsets{}}.WithDefaults(Offsets{60})
	if len(explicit.ReminderOffsets) != 0 {
		t.Fatalf("expected explicit empty offsets to stay empty, got %v", explicit.ReminderOffsets)
	}
}

func TestDraftValidate(t *testing.T) {
	if err := (Draft{Deadline: time.Now()}).Validate(); !errors.Is(err, ErrTitleRequired) {
		t.Fatalf("expected ErrTitleRequired, got %v", err)
	}
	if err := (Draft{Title: "x"}).Validate(); !errors.Is(err, ErrDeadlineRequired) {
		t.Fatalf("expected ErrDeadlineRequired, got %v", err)
	}
	if err := (Draft{Title: "x", Deadline: time.Now(), ReminderOffsets: Offsets{-1}}).Validate(); !errors.Is(err, ErrInvalidOffset) {
		t.Fatalf("expected ErrInvalidOffset, got %v", err)
	}
}

func TestPatchApplyAndScheduleChanged(t *testing.T) {
	now := time.Date(2026, 2, 9, 12, 0, 0, 0, time.UTC)
	base := Task{
		ID:              7,
		Title:           "Write report",
		Priority:        PriorityLow,
		Deadline:        now.Add(24 * time.Hour),
		CreatedAt:       now,
		ReminderOffsets: Offsets{60},
		ScheduledReminders: []ScheduledReminder{
			{Handle: "ntf-a", OffsetMinutes: 60, TriggerAt: now.Add(23 * time.Hour)},
		},
	}

	title := "Write final report"
	renamed := Patch{Title: &title}.Apply(base)
	if renamed.Title != title || ScheduleChanged(base, renamed) {
		t.Fatalf("title change must not affect scheduling: %+v", renamed)
	}
	if len(renamed.ScheduledReminders) != 1 {
		t.Fatal("patch must carry reminders over")
	}

	deadline := now.Add(48 * time.Hour)
	moved := Patch{Deadline: &deadline}.Apply(base)
	if !ScheduleChanged(base, moved) {
		t.Fatal("expected deadline change to be detected")
	}

	offsets := Offsets{60, 60}
	same := Patch{ReminderOffsets: &offsets}.Apply(base)
	if ScheduleChanged(base, same) {
		t.Fatal("duplicate offsets must compare equal")
	}

	cat := int64(3)
	withCat := Patch{CategoryID: &cat}.Apply(base)
	if withCat.CategoryID == nil || *withCat.CategoryID != 3 {
		t.Fatalf("expected category 3, got %v", withCat.CategoryID)
	}
	cleared := Patch{ClearCategory: true, CategoryID: &cat}.Apply(withCat)
	if cleared.CategoryID != nil {
		t.Fatal("expected category cleared")
	}
}

func TestParsePriority(t *testing.T) {
	p, err := ParsePriority(" HIGH ")
	if err != nil || p != PriorityHigh {
		t.Fatalf("unexpected parse: %v %v", p, err)
	}
	p, err = ParsePriority("")
	if err != nil || p != PriorityMedium {
		t.Fatalf("expected default medium, got %v %v", p, err)
	}
	if _, err := ParsePriority("asap"); !errors.Is(err, ErrInvalidPriority) {
		t.Fatalf("expected ErrInvalidPriority, got %v", err)
	}
}
