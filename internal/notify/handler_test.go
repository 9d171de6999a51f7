package notify

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sandeepkv93/timelock/internal/model"
	"github.com/sandeepkv93/timelock/internal/scheduler"
	"github.com/sandeepkv93/timelock/internal/storage"
	"github.com/sandeepkv93/timelock/internal/timemath"
)

var now = time.Date(2026, 2, 9, 12, 0, 0, 0, time.UTC)

type lookup map[int64]model.Task

func (l lookup) GetTask(_ context.Context, id int64) (model.Task, error) {
	t, ok := l[id]
	if !ok {
		return model.Task{}, storage.ErrNotFound
	}
	return t, nil
}

type recorder struct {
	mu   sync.Mutex
	sent []Notification
	err  error
}

func (r *recorder) Send(_ context.Context, n Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, n)
	return nil
}

func newHandler(tasks lookup, n Notifier, p Policy) *Handler {
	return NewHandler(tasks, n, p,
		WithLogger(log.New(io.Discard, "", 0)),
		WithClock(func() time.Time { return now }),
		WithLocation(time.UTC),
	)
}

func sampleTask() model.Task {
	return model.Task{
		ID:              3,
		Title:           "File taxes",
		Priority:        model.PriorityUrgent,
		Deadline:        time.Date(2026, 2, 9, 15, 4, 0, 0, time.UTC),
		ReminderOffsets: model.Offsets{60},
	}
}

func event(t model.Task, offset int) scheduler.Event {
	return scheduler.Event{
		Scheduled: scheduler.Scheduled{
			Handle:    "ntf-1",
			TriggerAt: t.Deadline.Add(-time.Duration(offset) * time.Minute),
			Payload:   scheduler.Payload{TaskID: t.ID, OffsetMinutes: offset, Deadline: t.Deadline, Title: t.Title},
		},
		FiredAt: now,
	}
}

func TestHandleSendsForLiveTask(t *testing.T) {
	rec := &recorder{}
	task := sampleTask()
	h := newHandler(lookup{3: task}, rec, DefaultPolicy())

	d, err := h.Handle(context.Background(), event(task, 60))
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if !d.Sent || len(rec.sent) != 1 {
		t.Fatalf("expected one notification, got %+v", d)
	}
	n := rec.sent[0]
	if n.Title != "⏰ File taxes" {
		t.Fatalf("unexpected title %q", n.Title)
	}
	if n.Body != "🔴 URGENT • Due Feb 9 at 3:04 PM" {
		t.Fatalf("unexpected body %q", n.Body)
	}
	if n.Subtitle != "1 hour before due" || !n.Sound || n.Badge != 1 {
		t.Fatalf("unexpected presentation: %+v", n)
	}
	if n.Level != timemath.LevelUrgent {
		t.Fatalf("expected urgent level, got %s", n.Level)
	}
}

func TestHandleSkipsStaleReminders(t *testing.T) {
	base := sampleTask()

	completed := base
	completed.Completed = true
	moved := base
	moved.Deadline = base.Deadline.Add(time.Hour)
	reoffset := base
	reoffset.ReminderOffsets = model.Offsets{15}

	cases := []struct {
		name  string
		tasks lookup
		want  SkipReason
	}{
		{"deleted", lookup{}, SkipDeleted},
		{"completed", lookup{3: completed}, SkipCompleted},
		{"deadline changed", lookup{3: moved}, SkipDeadlineChanged},
		{"offset removed", lookup{3: reoffset}, SkipOffsetRemoved},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := &recorder{}
			d, err := newHandler(tc.tasks, rec, DefaultPolicy()).Handle(context.Background(), event(base, 60))
			if err != nil {
				t.Fatalf("handle: %v", err)
			}
			if d.Sent || d.Skipped != tc.want || len(rec.sent) != 0 {
				t.Fatalf("expected skip %q, got %+v", tc.want, d)
			}
		})
	}
}

func TestPolicyControlsPresentation(t *testing.T) {
	rec := &recorder{}
	task := sampleTask()
	h := newHandler(lookup{3: task}, rec, Policy{Banner: false, Sound: false, Badge: false})

	d, err := h.Handle(context.Background(), event(task, 60))
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if d.Sent || d.Skipped != SkipBannerOff || len(rec.sent) != 0 {
		t.Fatalf("banner-off policy must not send: %+v", d)
	}
	if h.Badge() != 0 {
		t.Fatalf("badge must stay at zero, got %d", h.Badge())
	}
}

func TestBadgeCountsAndClears(t *testing.T) {
	task := sampleTask()
	h := newHandler(lookup{3: task}, &recorder{}, DefaultPolicy())
	for i := 0; i < 3; i++ {
		if _, err := h.Handle(context.Background(), event(task, 60)); err != nil {
			t.Fatalf("handle: %v", err)
		}
	}
	if h.Badge() != 3 {
		t.Fatalf("expected badge 3, got %d", h.Badge())
	}
	h.ClearBadge()
	if h.Badge() != 0 {
		t.Fatalf("expected cleared badge, got %d", h.Badge())
	}
}

func TestHandleSurfacesErrors(t *testing.T) {
	task := sampleTask()
	rec := &recorder{err: errors.New("dbus down")}
	_, err := newHandler(lookup{3: task}, rec, DefaultPolicy()).Handle(context.Background(), event(task, 60))
	if err == nil || !strings.Contains(err.Error(), "dbus down") {
		t.Fatalf("expected send error, got %v", err)
	}
}

func TestRunDrainsEvents(t *testing.T) {
	task := sampleTask()
	rec := &recorder{}
	h := newHandler(lookup{3: task}, rec, DefaultPolicy())

	events := make(chan scheduler.Event, 2)
	events <- event(task, 60)
	events <- event(task, 60)
	close(events)

	var got []Delivery
	h.Run(context.Background(), events, func(d Delivery) { got = append(got, d) })
	if len(got) != 2 || len(rec.sent) != 2 {
		t.Fatalf("expected 2 deliveries, got %d (sent %d)", len(got), len(rec.sent))
	}
}

func TestExecCommandPerPlatform(t *testing.T) {
	n := Notification{Title: `⏰ "Ship"`, Subtitle: "1 hour before due", Body: "🟠 HIGH • Due Feb 9 at 3:04 PM", Level: timemath.LevelCritical, Sound: true}

	name, args := execCommand("linux", n)
	if name != "notify-send" || args[1] != "--urgency=critical" || args[2] != n.Title {
		t.Fatalf("unexpected linux command: %s %v", name, args)
	}

	name, args = execCommand("darwin", n)
	if name != "osascript" || !strings.Contains(args[1], `\"Ship\"`) || !strings.Contains(args[1], `sound name "default"`) {
		t.Fatalf("unexpected darwin command: %s %v", name, args)
	}

	if name, _ := execCommand("plan9", n); name != "" {
		t.Fatalf("expected no command on unsupported platform, got %s", name)
	}
}
