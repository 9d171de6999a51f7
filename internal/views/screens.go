package views

import (
	"fmt"
	"strings"
	"time"

	"github.com/sandeepkv93/timelock/internal/model"
	"github.com/sandeepkv93/timelock/internal/timemath"
	"github.com/sandeepkv93/timelock/internal/trigger"
)

type TaskRow struct {
	ID          int64
	Title       string
	Priority    model.Priority
	Due         string
	Countdown   string
	Full        string
	Next        string
	Level       timemath.Level
	ProgressPct int
	Reminders   int
	Completed   bool
}

// RowFromTask derives the display values for t at now. Due is formatted in
// loc, or UTC when loc is nil.
func RowFromTask(t model.Task, now time.Time, loc *time.Location) TaskRow {
	if loc == nil {
		loc = time.UTC
	}
	remaining := timemath.ComputeRemaining(t.Deadline, now)
	row := TaskRow{
		ID:          t.ID,
		Title:       t.Title,
		Priority:    t.Priority,
		Due:         t.Deadline.In(loc).Format("Mon Jan 2 15:04"),
		Countdown:   timemath.FormatRemaining(remaining, true),
		Full:        timemath.FormatCountdown(remaining),
		Level:       timemath.Classify(remaining),
		ProgressPct: timemath.ComputeProgress(t.CreatedAt, t.Deadline, now).Percent(),
		Reminders:   len(t.ScheduledReminders),
		Completed:   t.Completed,
	}
	if next, ok := trigger.Next(t.Deadline, t.ReminderOffsets, now); ok && !t.Completed {
		row.Next = fmt.Sprintf("%s at %s", timemath.FormatOffset(next.OffsetMinutes), next.At.In(loc).Format("Mon Jan 2 15:04"))
	}
	return row
}

// RenderSelected shows the full countdown and upcoming reminder of one row.
func RenderSelected(row TaskRow) string {
	var b strings.Builder
	fmt.Fprintf(&b, "#%d %s\n", row.ID, row.Title)
	if row.Completed {
		b.WriteString("completed")
		return b.String()
	}
	b.WriteString(LevelStyle(row.Level).Render(row.Full))
	if row.Next != "" {
		b.WriteString("\nnext reminder " + row.Next)
	} else {
		b.WriteString("\nno reminders pending")
	}
	return b.String()
}

func RenderTaskList(rows []TaskRow, selectedID int64) string {
	if len(rows) == 0 {
		return "(no tasks)"
	}
	var b strings.Builder
	for _, row := range rows {
		cursor := " "
		if row.ID == selectedID {
			cursor = ">"
		}
		if row.Completed {
			b.WriteString(fmt.Sprintf("%s #%-3d %s\n", cursor, row.ID, doneStyle.Render(row.Title)))
			continue
		}
		level := LevelStyle(row.Level).Render(fmt.Sprintf("[%s]", row.Level.Label()))
		b.WriteString(fmt.Sprintf("%s #%-3d %s %s\n", cursor, row.ID, level, row.Title))
		b.WriteString(fmt.Sprintf("       due %s | %s | %s | %s %d%% | %d reminder(s)\n",
			row.Due,
			row.Countdown,
			strings.ToUpper(string(row.Priority)),
			ProgressBar(row.ProgressPct, 10),
			row.ProgressPct,
			row.Reminders,
		))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func ProgressBar(pct, width int) string {
	pct = min(max(pct, 0), 100)
	filled := pct * width / 100
	return "[" + strings.Repeat("#", filled) + strings.Repeat(".", width-filled) + "]"
}

func RenderSummary(s timemath.Stats) string {
	avg := "-"
	if s.AverageRemaining > 0 {
		avg = s.AverageRemaining.Round(time.Minute).String()
	}
	return fmt.Sprintf("%d tasks | %d done | %s | %s | %s | avg left %s",
		s.Total,
		s.Completed,
		LevelStyle(timemath.LevelOverdue).Render(fmt.Sprintf("%d overdue", s.Overdue)),
		LevelStyle(timemath.LevelCritical).Render(fmt.Sprintf("%d critical", s.Critical)),
		LevelStyle(timemath.LevelUrgent).Render(fmt.Sprintf("%d urgent", s.Urgent)),
		avg,
	)
}

type FiredItem struct {
	At      time.Time
	Title   string
	Detail  string
	Skipped string
}

func RenderFired(items []FiredItem) string {
	var b strings.Builder
	b.WriteString("reminders:\n")
	if len(items) == 0 {
		b.WriteString("  (none fired yet)")
		return b.String()
	}
	for _, item := range items {
		line := fmt.Sprintf("%s %s", item.At.Format("15:04:05"), item.Title)
		if item.Skipped != "" {
			line = doneStyle.Render(line) + " (" + item.Skipped + ")"
		} else if item.Detail != "" {
			line += " - " + item.Detail
		}
		b.WriteString(line + "\n")
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func RenderCommandPalette(active bool, input string) string {
	if !active {
		return ""
	}
	return fmt.Sprintf("command: %s", input)
}

func RenderNotification(level string, body string) string {
	if strings.TrimSpace(body) == "" {
		return ""
	}
	return fmt.Sprintf("notification: [%s] %s", strings.ToUpper(level), body)
}
