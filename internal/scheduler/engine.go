package scheduler

import (
	"container/heap"
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// QueueStore persists pending notifications so they outlive the process that
// scheduled them.
type QueueStore interface {
	EnqueueNotification(ctx context.Context, s Scheduled) error
	DequeueNotification(ctx context.Context, h Handle) error
	ListNotifications(ctx context.Context) ([]Scheduled, error)
}

// Event is emitted on C() when a notification comes due.
type Event struct {
	Scheduled
	FiredAt time.Time
}

type queueItem struct {
	entry Scheduled
	index int
}

type priorityQueue []*queueItem

func (pq priorityQueue) Len() int { return len(pq) }

func (pq priorityQueue) Less(i, j int) bool {
	return pq[i].entry.TriggerAt.Before(pq[j].entry.TriggerAt)
}

func (pq priorityQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index = i
	pq[j].index = j
}

func (pq *priorityQueue) Push(x any) {
	item := x.(*queueItem)
	item.index = len(*pq)
	*pq = append(*pq, item)
}

func (pq *priorityQueue) Pop() any {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*pq = old[0 : n-1]
	return item
}

type Option func(*Engine)

func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

func WithQueueStore(store QueueStore) Option {
	return func(e *Engine) { e.store = store }
}

func WithLogger(l *log.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// Engine is an in-process notification scheduler implementing Port. Due
// entries are delivered on C() without blocking; when the consumer lags they
// are dropped and counted.
type Engine struct {
	mu        sync.Mutex
	queue     priorityQueue
	byHandle  map[Handle]*queueItem
	fired     map[Handle]struct{}
	out       chan Event
	wakeup    chan struct{}
	stopCh    chan struct{}
	doneCh    chan struct{}
	started   bool
	stopped   bool
	permitted bool
	dropped   uint64

	now    func() time.Time
	store  QueueStore
	logger *log.Logger
}

var _ Port = (*Engine)(nil)

func NewEngine(bufferSize int, opts ...Option) *Engine {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	e := &Engine{
		queue:     make(priorityQueue, 0),
		byHandle:  make(map[Handle]*queueItem),
		fired:     make(map[Handle]struct{}),
		out:       make(chan Event, bufferSize),
		wakeup:    make(chan struct{}, 1),
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
		permitted: true,
		now:       func() time.Time { return time.Now().UTC() },
		logger:    log.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) C() <-chan Event {
	return e.out
}

func (e *Engine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started {
		return
	}
	e.started = true
	heap.Init(&e.queue)
	go e.loop()
}

func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.started || e.stopped {
		e.stopped = true
		e.mu.Unlock()
		return
	}
	e.stopped = true
	close(e.stopCh)
	e.mu.Unlock()
	<-e.doneCh
}

// SetPermission models the user granting or revoking notification
// permission. While revoked every Schedule call fails.
func (e *Engine) SetPermission(granted bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.permitted = granted
}

func (e *Engine) Permitted() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.permitted
}

func (e *Engine) Schedule(ctx context.Context, at time.Time, p Payload) (Handle, error) {
	fail := func(err error) (Handle, error) {
		return "", &SchedulingError{TriggerAt: at, OffsetMinutes: p.OffsetMinutes, Err: err}
	}
	if at.IsZero() || !at.After(e.now()) {
		return fail(ErrInvalidTriggerTime)
	}

	e.mu.Lock()
	stopped, permitted := e.stopped, e.permitted
	e.mu.Unlock()
	if stopped {
		return fail(ErrEngineStopped)
	}
	if !permitted {
		return fail(ErrPermissionDenied)
	}

	entry := Scheduled{
		Handle:    Handle("ntf-" + uuid.New().String()),
		TriggerAt: at.UTC(),
		Payload:   p,
	}
	if e.store != nil {
		if err := e.store.EnqueueNotification(ctx, entry); err != nil {
			return fail(fmt.Errorf("persist notification: %w", err))
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.push(entry)
	e.signalWakeup()
	return entry.Handle, nil
}

func (e *Engine) Cancel(ctx context.Context, h Handle) error {
	e.mu.Lock()
	if item, ok := e.byHandle[h]; ok {
		heap.Remove(&e.queue, item.index)
		delete(e.byHandle, h)
		e.signalWakeup()
	}
	e.mu.Unlock()

	if e.store != nil {
		if err := e.store.DequeueNotification(ctx, h); err != nil {
			return &CancellationError{Handle: h, Err: err}
		}
	}
	return nil
}

// ListAll reports the pending entries, earliest first. With a queue store
// the store is authoritative, so entries scheduled by other processes are
// included.
func (e *Engine) ListAll(ctx context.Context) ([]Scheduled, error) {
	if e.store != nil {
		out, err := e.store.ListNotifications(ctx)
		if err != nil {
			return nil, fmt.Errorf("list notifications: %w", err)
		}
		sortScheduled(out)
		return out, nil
	}

	e.mu.Lock()
	out := make([]Scheduled, 0, len(e.queue))
	for _, item := range e.queue {
		out = append(out, item.entry)
	}
	e.mu.Unlock()
	sortScheduled(out)
	return out, nil
}

// Reload replaces the in-memory queue with the contents of the queue store.
// Entries that already fired here but are not yet removed from the store
// are skipped.
func (e *Engine) Reload(ctx context.Context) error {
	if e.store == nil {
		return nil
	}
	entries, err := e.store.ListNotifications(ctx)
	if err != nil {
		return fmt.Errorf("reload notifications: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.queue = make(priorityQueue, 0, len(entries))
	e.byHandle = make(map[Handle]*queueItem, len(entries))
	for _, entry := range entries {
		if _, done := e.fired[entry.Handle]; done {
			continue
		}
		e.push(entry)
	}
	e.signalWakeup()
	return nil
}

func (e *Engine) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.queue)
}

func (e *Engine) Dropped() uint64 {
	return atomic.LoadUint64(&e.dropped)
}

func (e *Engine) push(entry Scheduled) {
	if _, dup := e.byHandle[entry.Handle]; dup {
		return
	}
	item := &queueItem{entry: entry}
	heap.Push(&e.queue, item)
	e.byHandle[entry.Handle] = item
}

func (e *Engine) loop() {
	defer close(e.doneCh)
	defer close(e.out)

	var timer *time.Timer
	for {
		next, hasNext := e.peek()
		if !hasNext {
			select {
			case <-e.wakeup:
				continue
			case <-e.stopCh:
				return
			}
		}

		wait := next.TriggerAt.Sub(e.now())
		if wait < 0 {
			wait = 0
		}
		timer = resetTimer(timer, wait)

		select {
		case <-timer.C:
			now := e.now()
			due := e.popDue(now)
			for _, entry := range due {
				select {
				case e.out <- Event{Scheduled: entry, FiredAt: now}:
				default:
					atomic.AddUint64(&e.dropped, 1)
				}
			}
			e.forget(due)
		case <-e.wakeup:
			continue
		case <-e.stopCh:
			if timer != nil {
				stopTimer(timer)
			}
			return
		}
	}
}

// forget removes fired entries from the queue store.
func (e *Engine) forget(fired []Scheduled) {
	if e.store == nil {
		return
	}
	for _, entry := range fired {
		if err := e.store.DequeueNotification(context.Background(), entry.Handle); err != nil {
			e.logger.Printf("warning: could not remove fired notification %s: %v", entry.Handle, err)
			continue
		}
		e.mu.Lock()
		delete(e.fired, entry.Handle)
		e.mu.Unlock()
	}
}

func (e *Engine) signalWakeup() {
	select {
	case e.wakeup <- struct{}{}:
	default:
	}
}

func (e *Engine) peek() (Scheduled, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.queue) == 0 {
		return Scheduled{}, false
	}
	return e.queue[0].entry, true
}

func (e *Engine) popDue(now time.Time) []Scheduled {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]Scheduled, 0)
	for len(e.queue) > 0 {
		next := e.queue[0].entry
		if next.TriggerAt.After(now) {
			break
		}
		item := heap.Pop(&e.queue).(*queueItem)
		delete(e.byHandle, item.entry.Handle)
		if e.store != nil {
			e.fired[item.entry.Handle] = struct{}{}
		}
		out = append(out, item.entry)
	}
	return out
}

func sortScheduled(list []Scheduled) {
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].TriggerAt.Before(list[j].TriggerAt)
	})
}

func resetTimer(timer *time.Timer, d time.Duration) *time.Timer {
	if timer == nil {
		return time.NewTimer(d)
	}
	stopTimer(timer)
	timer.Reset(d)
	return timer
}

func stopTimer(timer *time.Timer) {
	if timer == nil {
		return
	}
	if !timer.Stop() {
		select {
		case <-timer.C:
		default:
		}
	}
}
