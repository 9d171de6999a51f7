package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidTriggerTime = errors.New("scheduler: invalid trigger time")
	ErrPermissionDenied   = errors.New("scheduler: notification permission denied")
	ErrEngineStopped      = errors.New("scheduler: engine stopped")
)

// Handle identifies one scheduled notification. Callers must treat it as
// opaque.
type Handle string

// Payload travels with a scheduled notification so the delivery side can
// look the task up again and decide whether firing still makes sense.
type Payload struct {
	TaskID        int64
	OffsetMinutes int
	Deadline      time.Time
	Title         string
}

// Scheduled is one live entry as reported by the scheduler.
type Scheduled struct {
	Handle    Handle
	TriggerAt time.Time
	Payload   Payload
}

// Port is the capability the reconciler needs from a notification
// scheduler.
type Port interface {
	// Schedule registers a one-shot notification. Failures are returned as
	// *SchedulingError.
	Schedule(ctx context.Context, at time.Time, p Payload) (Handle, error)
	// Cancel is idempotent: unknown or already cancelled handles are not an
	// error.
	Cancel(ctx context.Context, h Handle) error
	// ListAll is for diagnostics and sweeps, not the mutation path.
	ListAll(ctx context.Context) ([]Scheduled, error)
}

type SchedulingError struct {
	TriggerAt     time.Time
	OffsetMinutes int
	Err           error
}

func (e *SchedulingError) Error() string {
	return fmt.Sprintf("schedule %dm reminder at %s: %v", e.OffsetMinutes, e.TriggerAt.UTC().Format(time.RFC3339), e.Err)
}

func (e *SchedulingError) Unwrap() error { return e.Err }

type CancellationError struct {
	Handle Handle
	Err    error
}

func (e *CancellationError) Error() string {
	return fmt.Sprintf("cancel %s: %v", e.Handle, e.Err)
}

func (e *CancellationError) Unwrap() error { return e.Err }
