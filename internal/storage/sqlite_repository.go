package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/sandeepkv93/timelock/internal/model"
)

// Fixed width so that text ordering in SQL matches chronological ordering.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Option func(*SQLiteRepository)

func WithClock(now func() time.Time) Option {
	return func(r *SQLiteRepository) {
		if now != nil {
			r.now = now
		}
	}
}

type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

var _ Repository = (*SQLiteRepository)(nil)

func NewSQLiteRepository(db *sql.DB, opts ...Option) (*SQLiteRepository, error) {
	if db == nil {
		return nil, errors.New("storage: nil db")
	}
	// foreign_keys is a per-connection pragma; pin the pool to one connection
	// so it holds for every statement.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	r := &SQLiteRepository{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// OpenSQLite opens the database at path, applies pending migrations and
// returns a ready repository.
func OpenSQLite(path string, opts ...Option) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	repo, err := NewSQLiteRepository(db, opts...)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := MigrateUp(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

func (r *SQLiteRepository) CreateTask(ctx context.Context, in model.Draft) (model.Task, error) {
	if err := in.Validate(); err != nil {
		return model.Task{}, err
	}
	priority := in.Priority
	if priority == "" {
		priority = model.PriorityMedium
	}
	now := mustTime(r.now())
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO tasks (title, description, priority, category_id, deadline, created_at, updated_at, completed, reminder_offsets)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		strings.TrimSpace(in.Title), strings.TrimSpace(in.Description), string(priority), nullInt(in.CategoryID),
		mustTime(in.Deadline), now, now, boolInt(in.Completed), in.ReminderOffsets.String(),
	)
	if err != nil {
		return model.Task{}, fmt.Errorf("insert task: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Task{}, fmt.Errorf("insert task: %w", err)
	}
	return getTask(ctx, r.db, id)
}

func (r *SQLiteRepository) GetTask(ctx context.Context, id int64) (model.Task, error) {
	return getTask(ctx, r.db, id)
}

// UpdateTask applies patch to the stored task in a single transaction and
// returns the new snapshot. Scheduled reminders are left untouched.
func (r *SQLiteRepository) UpdateTask(ctx context.Context, id int64, patch model.Patch) (model.Task, error) {
	if err := patch.Validate(); err != nil {
		return model.Task{}, err
	}
	var out model.Task
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		current, err := getTask(ctx, tx, id)
		if err != nil {
			return err
		}
		next := patch.Apply(current)
		next.UpdatedAt = r.now()
		res, err := tx.ExecContext(ctx, `
			UPDATE tasks
			SET title = ?, description = ?, priority = ?, category_id = ?, deadline = ?, updated_at = ?, completed = ?, reminder_offsets = ?
			WHERE id = ?`,
			next.Title, next.Description, string(next.Priority), nullInt(next.CategoryID), mustTime(next.Deadline),
			mustTime(next.UpdatedAt), boolInt(next.Completed), next.ReminderOffsets.String(), id,
		)
		if err != nil {
			return fmt.Errorf("update task %d: %w", id, err)
		}
		if err := checkRowsAffected(res); err != nil {
			return err
		}
		out, err = getTask(ctx, tx, id)
		return err
	})
	return out, err
}

func (r *SQLiteRepository) DeleteTask(ctx context.Context, id int64) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM task_reminders WHERE task_id = ?`, id); err != nil {
			return fmt.Errorf("delete reminders of task %d: %w", id, err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete task %d: %w", id, err)
		}
		return checkRowsAffected(res)
	})
}

func (r *SQLiteRepository) ListTasks(ctx context.Context, filter model.TaskFilter) ([]model.Task, error) {
	query := `SELECT id, title, description, priority, category_id, deadline, created_at, updated_at, completed, reminder_offsets FROM tasks`
	clauses := make([]string, 0, 3)
	args := make([]any, 0, 5)
	if filter.Completed != nil {
		clauses = append(clauses, "completed = ?")
		args = append(args, boolInt(*filter.Completed))
	}
	if filter.CategoryID != nil {
		clauses = append(clauses, "category_id = ?")
		args = append(args, *filter.CategoryID)
	}
	if filter.DueBefore != nil {
		clauses = append(clauses, "deadline < ?")
		args = append(args, mustTime(*filter.DueBefore))
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += ` ORDER BY deadline ASC, id ASC`
	query += applyPagination(&args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	out := make([]model.Task, 0)
	for rows.Next() {
		row, scanErr := scanTaskRow(rows)
		if scanErr != nil {
			rows.Close()
			return nil, scanErr
		}
		task, decodeErr := row.decode()
		if decodeErr != nil {
			rows.Close()
			return nil, decodeErr
		}
		out = append(out, task)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	reminders, err := listReminders(ctx, r.db, nil)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].ScheduledReminders = reminders[out[i].ID]
		if out[i].ScheduledReminders == nil {
			out[i].ScheduledReminders = []model.ScheduledReminder{}
		}
	}
	return out, nil
}

// SetReminders replaces the stored handle set of a task.
func (r *SQLiteRepository) SetReminders(ctx context.Context, taskID int64, reminders []model.ScheduledReminder) error {
	for _, rem := range reminders {
		if err := rem.Validate(); err != nil {
			return err
		}
	}
	return r.inTx(ctx, func(tx *sql.Tx) error {
		var exists int
		if err := tx.QueryRowContext(ctx, `SELECT 1 FROM tasks WHERE id = ?`, taskID).Scan(&exists); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM task_reminders WHERE task_id = ?`, taskID); err != nil {
			return fmt.Errorf("clear reminders of task %d: %w", taskID, err)
		}
		for _, rem := range reminders {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO task_reminders (task_id, handle, offset_minutes, trigger_at)
				VALUES (?, ?, ?, ?)`,
				taskID, rem.Handle, rem.OffsetMinutes, mustTime(rem.TriggerAt),
			); err != nil {
				return fmt.Errorf("insert reminder %s: %w", rem.Handle, err)
			}
		}
		return nil
	})
}

func (r *SQLiteRepository) CreateCategory(ctx context.Context, in Category) (Category, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return Category{}, errors.New("storage: category name is required")
	}
	created := in.CreatedAt
	if created.IsZero() {
		created = r.now()
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO categories (name, color, created_at)
		VALUES (?, ?, ?)`,
		name, in.Color, mustTime(created),
	)
	if err != nil {
		return Category{}, fmt.Errorf("insert category: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Category{}, err
	}
	return r.GetCategory(ctx, id)
}

func (r *SQLiteRepository) GetCategory(ctx context.Context, id int64) (Category, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, name, color, created_at FROM categories WHERE id = ?`, id)
	item, err := scanCategory(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Category{}, ErrNotFound
		}
		return Category{}, err
	}
	return item, nil
}

func (r *SQLiteRepository) UpdateCategory(ctx context.Context, in Category) error {
	res, err := r.db.ExecContext(ctx, `UPDATE categories SET name = ?, color = ? WHERE id = ?`, strings.TrimSpace(in.Name), in.Color, in.ID)
	if err != nil {
		return err
	}
	return checkRowsAffected(res)
}

func (r *SQLiteRepository) DeleteCategory(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return checkRowsAffected(res)
}

func (r *SQLiteRepository) ListCategories(ctx context.Context, filter CategoryListFilter) ([]Category, error) {
	args := make([]any, 0, 2)
	query := `SELECT id, name, color, created_at FROM categories ORDER BY name ASC` + applyPagination(&args, filter.Limit, filter.Offset)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Category, 0)
	for rows.Next() {
		item, scanErr := scanCategory(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func getTask(ctx context.Context, q querier, id int64) (model.Task, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, title, description, priority, category_id, deadline, created_at, updated_at, completed, reminder_offsets
		FROM tasks WHERE id = ?`, id)
	raw, err := scanTaskRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Task{}, fmt.Errorf("task %d: %w", id, ErrNotFound)
		}
		return model.Task{}, err
	}
	task, err := raw.decode()
	if err != nil {
		return model.Task{}, err
	}
	reminders, err := listReminders(ctx, q, &id)
	if err != nil {
		return model.Task{}, err
	}
	task.ScheduledReminders = reminders[id]
	if task.ScheduledReminders == nil {
		task.ScheduledReminders = []model.ScheduledReminder{}
	}
	return task, nil
}

func listReminders(ctx context.Context, q querier, taskID *int64) (map[int64][]model.ScheduledReminder, error) {
	query := `SELECT task_id, handle, offset_minutes, trigger_at FROM task_reminders`
	args := make([]any, 0, 1)
	if taskID != nil {
		query += ` WHERE task_id = ?`
		args = append(args, *taskID)
	}
	query += ` ORDER BY trigger_at ASC`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int64][]model.ScheduledReminder)
	for rows.Next() {
		var row reminderRow
		if err := rows.Scan(&row.taskID, &row.handle, &row.offsetMinutes, &row.triggerAt); err != nil {
			return nil, err
		}
		at, err := parseRequiredTime(row.triggerAt)
		if err != nil {
			return nil, err
		}
		out[row.taskID] = append(out[row.taskID], model.ScheduledReminder{
			Handle:        row.handle,
			OffsetMinutes: row.offsetMinutes,
			TriggerAt:     at,
		})
	}
	return out, rows.Err()
}

func mustTime(v time.Time) string {
	return v.UTC().Format(sqliteTimeLayout)
}

func parseRequiredTime(v string) (time.Time, error) {
	return time.Parse(sqliteTimeLayout, v)
}

func nullInt(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func boolInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

func applyPagination(args *[]any, limit, offset int) string {
	sql := ""
	if limit > 0 {
		sql += " LIMIT ?"
		*args = append(*args, limit)
	} else if offset > 0 {
		sql += " LIMIT -1"
	}
	if offset > 0 {
		sql += " OFFSET ?"
		*args = append(*args, offset)
	}
	return sql
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTaskRow(s scanner) (taskRow, error) {
	var out taskRow
	var category sql.NullInt64
	if err := s.Scan(&out.id, &out.title, &out.description, &out.priority, &category, &out.deadline,
		&out.createdAt, &out.updatedAt, &out.completed, &out.offsets); err != nil {
		return taskRow{}, err
	}
	if category.Valid {
		id := category.Int64
		out.categoryID = &id
	}
	return out, nil
}

func (row taskRow) decode() (model.Task, error) {
	deadline, err := parseRequiredTime(row.deadline)
	if err != nil {
		return model.Task{}, fmt.Errorf("task %d deadline: %w", row.id, err)
	}
	created, err := parseRequiredTime(row.createdAt)
	if err != nil {
		return model.Task{}, fmt.Errorf("task %d created_at: %w", row.id, err)
	}
	updated, err := parseRequiredTime(row.updatedAt)
	if err != nil {
		return model.Task{}, fmt.Errorf("task %d updated_at: %w", row.id, err)
	}
	offsets, err := model.ParseOffsets(row.offsets)
	if err != nil {
		return model.Task{}, fmt.Errorf("task %d offsets: %w", row.id, err)
	}
	return model.Task{
		ID:              row.id,
		Title:           row.title,
		Description:     row.description,
		Priority:        model.Priority(row.priority),
		CategoryID:      row.categoryID,
		Deadline:        deadline,
		CreatedAt:       created,
		UpdatedAt:       updated,
		Completed:       row.completed == 1,
		ReminderOffsets: offsets,
	}, nil
}

func scanCategory(s scanner) (Category, error) {
	var out Category
	var created string
	if err := s.Scan(&out.ID, &out.Name, &out.Color, &created); err != nil {
		return Category{}, err
	}
	createdAt, err := parseRequiredTime(created)
	if err != nil {
		return Category{}, err
	}
	out.CreatedAt = createdAt
	return out, nil
}

func checkRowsAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
