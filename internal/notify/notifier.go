package notify

import (
	"context"
	"fmt"
	"log"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/sandeepkv93/timelock/internal/timemath"
)

type Notification struct {
	TaskID   int64
	Title    string
	Subtitle string
	Body     string
	Level    timemath.Level
	Sound    bool
	Badge    int
	At       time.Time
}

type Notifier interface {
	Send(ctx context.Context, n Notification) error
}

type NoopNotifier struct{}

func (NoopNotifier) Send(context.Context, Notification) error { return nil }

// LogNotifier writes notifications to a logger instead of the desktop.
type LogNotifier struct {
	Logger *log.Logger
}

func (l LogNotifier) Send(_ context.Context, n Notification) error {
	logger := l.Logger
	if logger == nil {
		logger = log.Default()
	}
	logger.Printf("reminder: %s | %s | %s", n.Title, n.Subtitle, n.Body)
	return nil
}

// ExecNotifier shells out to notify-send on Linux and osascript on macOS.
// Other platforms are a silent no-op.
type ExecNotifier struct{}

func (ExecNotifier) Send(ctx context.Context, n Notification) error {
	name, args := execCommand(runtime.GOOS, n)
	if name == "" {
		return nil
	}
	if err := exec.CommandContext(ctx, name, args...).Run(); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

func execCommand(goos string, n Notification) (string, []string) {
	switch goos {
	case "linux":
		args := []string{"--app-name=timelock", "--urgency=" + urgency(n.Level)}
		body := n.Body
		if n.Subtitle != "" {
			body = n.Subtitle + "\n" + body
		}
		return "notify-send", append(args, n.Title, body)
	case "darwin":
		script := fmt.Sprintf(`display notification "%s" with title "%s" subtitle "%s"`,
			escapeAppleScript(n.Body), escapeAppleScript(n.Title), escapeAppleScript(n.Subtitle))
		if n.Sound {
			script += ` sound name "default"`
		}
		return "osascript", []string{"-e", script}
	default:
		return "", nil
	}
}

func urgency(l timemath.Level) string {
	switch l {
	case timemath.LevelOverdue, timemath.LevelCritical:
		return "critical"
	case timemath.LevelNormal:
		return "low"
	default:
		return "normal"
	}
}

func escapeAppleScript(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `"`, `\"`)
}
