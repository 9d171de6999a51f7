// Package schedulertest provides an in-memory scheduler.Port that records
// every call and can be told to fail specific offsets or handles.
package schedulertest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sandeepkv93/timelock/internal/scheduler"
)

type Port struct {
	mu      sync.Mutex
	seq     int
	live    map[scheduler.Handle]scheduler.Scheduled
	sched   []scheduler.Scheduled
	cancels []scheduler.Handle

	failOffsets map[int]error
	failCancel  map[scheduler.Handle]error
	listErr     error
}

var _ scheduler.Port = (*Port)(nil)

func New() *Port {
	return &Port{
		live:        make(map[scheduler.Handle]scheduler.Scheduled),
		failOffsets: make(map[int]error),
		failCancel:  make(map[scheduler.Handle]error),
	}
}

// FailOffset makes every Schedule call for the given offset fail with err.
func (p *Port) FailOffset(minutes int, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failOffsets[minutes] = err
}

// FailCancel makes Cancel of h fail with err. The entry stays live.
func (p *Port) FailCancel(h scheduler.Handle, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failCancel[h] = err
}

func (p *Port) FailList(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listErr = err
}

func (p *Port) Schedule(_ context.Context, at time.Time, payload scheduler.Payload) (scheduler.Handle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err, ok := p.failOffsets[payload.OffsetMinutes]; ok {
		return "", &scheduler.SchedulingError{TriggerAt: at, OffsetMinutes: payload.OffsetMinutes, Err: err}
	}
	p.seq++
	s := scheduler.Scheduled{
		Handle:    scheduler.Handle(fmt.Sprintf("fake-%d", p.seq)),
		TriggerAt: at,
		Payload:   payload,
	}
	p.live[s.Handle] = s
	p.sched = append(p.sched, s)
	return s.Handle, nil
}

func (p *Port) Cancel(_ context.Context, h scheduler.Handle) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cancels = append(p.cancels, h)
	if err, ok := p.failCancel[h]; ok {
		return &scheduler.CancellationError{Handle: h, Err: err}
	}
	delete(p.live, h)
	return nil
}

func (p *Port) ListAll(context.Context) ([]scheduler.Scheduled, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.listErr != nil {
		return nil, p.listErr
	}
	return p.liveLocked(), nil
}

// Inject adds a live entry that no Schedule call produced, as if another
// process had scheduled it.
func (p *Port) Inject(s scheduler.Scheduled) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.live[s.Handle] = s
}

// Fire removes h from the live set as the real scheduler does on delivery.
func (p *Port) Fire(h scheduler.Handle) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.live, h)
}

func (p *Port) Live() []scheduler.Scheduled {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.liveLocked()
}

func (p *Port) IsLive(h scheduler.Handle) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.live[h]
	return ok
}

// Scheduled returns every successful Schedule call in order.
func (p *Port) Scheduled() []scheduler.Scheduled {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]scheduler.Scheduled(nil), p.sched...)
}

// Cancels returns every Cancel call in order, failed ones included.
func (p *Port) Cancels() []scheduler.Handle {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]scheduler.Handle(nil), p.cancels...)
}

func (p *Port) liveLocked() []scheduler.Scheduled {
	out := make([]scheduler.Scheduled, 0, len(p.live))
	for _, s := range p.live {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TriggerAt.Equal(out[j].TriggerAt) {
			return out[i].Handle < out[j].Handle
		}
		return out[i].TriggerAt.Before(out[j].TriggerAt)
	})
	return out
}
