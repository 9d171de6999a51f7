package storage

import (
	"context"
	"fmt"

	"github.com/sandeepkv93/timelock/internal/scheduler"
)

// EnqueueNotification records a pending notification so any process sharing
// the database can deliver it.
func (r *SQLiteRepository) EnqueueNotification(ctx context.Context, s scheduler.Scheduled) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO notification_queue (handle, task_id, offset_minutes, deadline, title, trigger_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		string(s.Handle), s.Payload.TaskID, s.Payload.OffsetMinutes, mustTime(s.Payload.Deadline), s.Payload.Title, mustTime(s.TriggerAt),
	)
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", s.Handle, err)
	}
	return nil
}

// DequeueNotification is idempotent; removing an unknown handle succeeds.
func (r *SQLiteRepository) DequeueNotification(ctx context.Context, h scheduler.Handle) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM notification_queue WHERE handle = ?`, string(h)); err != nil {
		return fmt.Errorf("dequeue %s: %w", h, err)
	}
	return nil
}

func (r *SQLiteRepository) ListNotifications(ctx context.Context) ([]scheduler.Scheduled, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT handle, task_id, offset_minutes, deadline, title, trigger_at
		FROM notification_queue ORDER BY trigger_at ASC, handle ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]scheduler.Scheduled, 0)
	for rows.Next() {
		var handle, deadline, trigger string
		var item scheduler.Scheduled
		if err := rows.Scan(&handle, &item.Payload.TaskID, &item.Payload.OffsetMinutes, &deadline, &item.Payload.Title, &trigger); err != nil {
			return nil, err
		}
		item.Handle = scheduler.Handle(handle)
		if item.Payload.Deadline, err = parseRequiredTime(deadline); err != nil {
			return nil, err
		}
		if item.TriggerAt, err = parseRequiredTime(trigger); err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}
