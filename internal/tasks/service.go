// Package tasks is the mutation entry point for tasks. Every operation
// writes the visible task state first and then reconciles reminders, so a
// failed reminder never fails the mutation.
package tasks

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/sandeepkv93/timelock/internal/model"
	"github.com/sandeepkv93/timelock/internal/reconcile"
)

// Store persists tasks. GetTask, UpdateTask and DeleteTask report a missing
// task with an error wrapping storage.ErrNotFound.
type Store interface {
	GetTask(ctx context.Context, id int64) (model.Task, error)
	ListTasks(ctx context.Context, filter model.TaskFilter) ([]model.Task, error)
	CreateTask(ctx context.Context, in model.Draft) (model.Task, error)
	UpdateTask(ctx context.Context, id int64, patch model.Patch) (model.Task, error)
	DeleteTask(ctx context.Context, id int64) error
	SetReminders(ctx context.Context, taskID int64, reminders []model.ScheduledReminder) error
}

// Mutation is the result of a successful write: the task as it now stands
// and what reconciliation did about its reminders.
type Mutation struct {
	Task    model.Task
	Outcome reconcile.Outcome
}

// Option configures a Service.
type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func WithLogger(l *log.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithDefaultOffsets sets the reminder policy for drafts that do not name
// their own offsets.
func WithDefaultOffsets(offsets model.Offsets) Option {
	return func(s *Service) {
		if offsets != nil {
			s.defaults = offsets.Normalize()
		}
	}
}

// Service applies task mutations and sweeps. Mutations and sweeps are
// serialized so a sweep never sees a handle that is scheduled but not yet
// stored.
type Service struct {
	mu       sync.Mutex
	store    Store
	rec      *reconcile.Reconciler
	now      func() time.Time
	logger   *log.Logger
	defaults model.Offsets
}

// NewService returns a Service writing to store and reconciling through rec.
func NewService(store Store, rec *reconcile.Reconciler, opts ...Option) *Service {
	s := &Service{
		store:    store,
		rec:      rec,
		now:      func() time.Time { return time.Now().UTC() },
		logger:   log.Default(),
		defaults: model.DefaultOffsets(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) DefaultOffsets() model.Offsets {
	return append(model.Offsets(nil), s.defaults...)
}

// Create stores a new task and schedules its reminders.
func (s *Service) Create(ctx context.Context, draft model.Draft) (Mutation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	draft = draft.WithDefaults(s.defaults)
	if err := draft.Validate(); err != nil {
		return Mutation{}, err
	}
	created, err := s.store.CreateTask(ctx, draft)
	if err != nil {
		return Mutation{}, fmt.Errorf("create task: %w", err)
	}
	out := s.rec.Reconcile(ctx, nil, &created, s.now())
	return Mutation{Task: s.persist(ctx, created, out), Outcome: out}, nil
}

// Update applies patch and reschedules if the deadline, offsets or
// completion changed.
func (s *Service) Update(ctx context.Context, id int64, patch model.Patch) (Mutation, error) {
	if err := patch.Validate(); err != nil {
		return Mutation{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, err := s.store.GetTask(ctx, id)
	if err != nil {
		return Mutation{}, fmt.Errorf("load task %d: %w", id, err)
	}
	return s.apply(ctx, prev, patch)
}

// ToggleCompletion flips the completed flag. Completing cancels every
// reminder; reopening schedules afresh from the current time.
func (s *Service) ToggleCompletion(ctx context.Context, id int64) (Mutation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, err := s.store.GetTask(ctx, id)
	if err != nil {
		return Mutation{}, fmt.Errorf("load task %d: %w", id, err)
	}
	completed := !prev.Completed
	return s.apply(ctx, prev, model.Patch{Completed: &completed})
}

// Delete cancels the task's reminders and then removes the record. The
// returned Mutation carries the task as it was before deletion.
func (s *Service) Delete(ctx context.Context, id int64) (Mutation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, err := s.store.GetTask(ctx, id)
	if err != nil {
		return Mutation{}, fmt.Errorf("load task %d: %w", id, err)
	}
	out := s.rec.Reconcile(ctx, &prev, nil, s.now())
	if err := s.store.DeleteTask(ctx, id); err != nil {
		// the handles are gone either way; keep the record honest
		if setErr := s.store.SetReminders(context.WithoutCancel(ctx), id, []model.ScheduledReminder{}); setErr != nil {
			s.logger.Printf("warning: task %d: clear reminders after failed delete: %v", id, setErr)
		}
		return Mutation{}, fmt.Errorf("delete task %d: %w", id, err)
	}
	return Mutation{Task: prev, Outcome: out}, nil
}

func (s *Service) Get(ctx context.Context, id int64) (model.Task, error) {
	t, err := s.store.GetTask(ctx, id)
	if err != nil {
		return model.Task{}, fmt.Errorf("load task %d: %w", id, err)
	}
	return t, nil
}

func (s *Service) List(ctx context.Context, filter model.TaskFilter) ([]model.Task, error) {
	list, err := s.store.ListTasks(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return list, nil
}

// Sweep repairs drift between stored handle sets and the scheduler.
func (s *Service) Sweep(ctx context.Context) reconcile.SweepReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rec.Sweep(ctx, s.store, s.now())
}

func (s *Service) apply(ctx context.Context, prev model.Task, patch model.Patch) (Mutation, error) {
	next, err := s.store.UpdateTask(ctx, prev.ID, patch)
	if err != nil {
		return Mutation{}, fmt.Errorf("update task %d: %w", prev.ID, err)
	}
	out := s.rec.Reconcile(ctx, &prev, &next, s.now())
	return Mutation{Task: s.persist(ctx, next, out), Outcome: out}, nil
}

// persist writes the reconciled handle set back. The visible write has
// already committed, so a failure here is logged and left for the next
// reconciliation to repair.
func (s *Service) persist(ctx context.Context, t model.Task, out reconcile.Outcome) model.Task {
	if !out.Persist {
		return t
	}
	if err := s.store.SetReminders(context.WithoutCancel(ctx), t.ID, out.Reminders); err != nil {
		s.logger.Printf("warning: task %d: persist %d reminder handle(s): %v", t.ID, len(out.Reminders), err)
	}
	t.ScheduledReminders = out.Reminders
	return t
}
