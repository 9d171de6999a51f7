package storage

import (
	"context"
	"errors"

	"github.com/sandeepkv93/timelock/internal/model"
	"github.com/sandeepkv93/timelock/internal/scheduler"
)

var ErrNotFound = errors.New("storage: not found")

// Repository is everything the SQLite store offers: the task store used by
// the mutation service, the category catalogue, and the durable queue behind
// the notification engine.
type Repository interface {
	CreateTask(ctx context.Context, in model.Draft) (model.Task, error)
	GetTask(ctx context.Context, id int64) (model.Task, error)
	UpdateTask(ctx context.Context, id int64, patch model.Patch) (model.Task, error)
	DeleteTask(ctx context.Context, id int64) error
	ListTasks(ctx context.Context, filter model.TaskFilter) ([]model.Task, error)
	SetReminders(ctx context.Context, taskID int64, reminders []model.ScheduledReminder) error

	CreateCategory(ctx context.Context, in Category) (Category, error)
	GetCategory(ctx context.Context, id int64) (Category, error)
	UpdateCategory(ctx context.Context, in Category) error
	DeleteCategory(ctx context.Context, id int64) error
	ListCategories(ctx context.Context, filter CategoryListFilter) ([]Category, error)

	scheduler.QueueStore
}
