package storage

import "time"

// Category groups tasks for display. Deleting a category leaves its tasks
// uncategorized.
type Category struct {
	ID        int64
	Name      string
	Color     string
	CreatedAt time.Time
}

type CategoryListFilter struct {
	Limit  int
	Offset int
}

// taskRow mirrors the tasks table before offsets and timestamps are decoded.
type taskRow struct {
	id          int64
	title       string
	description string
	priority    string
	categoryID  *int64
	deadline    string
	createdAt   string
	updatedAt   string
	completed   int
	offsets     string
}

type reminderRow struct {
	taskID        int64
	handle        string
	offsetMinutes int
	triggerAt     string
}
