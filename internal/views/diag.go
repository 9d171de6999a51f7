package views

import (
	"fmt"
	"strings"
	"time"

	"github.com/sandeepkv93/timelock/internal/model"
	"github.com/sandeepkv93/timelock/internal/scheduler"
)

// DiagMarkdown lays the scheduler's live entries next to the handle sets the
// store believes in. Handles on one side only are called out.
func DiagMarkdown(tasks []model.Task, live []scheduler.Scheduled, permitted bool, now time.Time) string {
	liveBy := make(map[scheduler.Handle]scheduler.Scheduled, len(live))
	for _, s := range live {
		liveBy[s.Handle] = s
	}
	claimed := make(map[scheduler.Handle]int64)

	var b strings.Builder
	b.WriteString("# timelock diagnostics\n\n")
	fmt.Fprintf(&b, "Generated %s. %d task(s), %d live reminder(s).\n\n", now.Format(time.RFC3339), len(tasks), len(live))
	if permitted {
		b.WriteString("Notification permission: granted.\n\n")
	} else {
		b.WriteString("Notification permission: **denied**. New reminders fail to schedule until notifications are enabled.\n\n")
	}

	b.WriteString("## Stored reminders\n\n")
	b.WriteString("| Task | Title | Offset | Trigger | Live |\n")
	b.WriteString("|---|---|---|---|---|\n")
	rows := 0
	for _, t := range tasks {
		for _, rem := range t.ScheduledReminders {
			h := scheduler.Handle(rem.Handle)
			claimed[h] = t.ID
			state := "yes"
			switch s, ok := liveBy[h]; {
			case !ok && !rem.TriggerAt.After(now):
				state = "fired"
			case !ok:
				state = "**missing**"
			case !s.TriggerAt.Equal(rem.TriggerAt):
				state = "**time mismatch**"
			}
			fmt.Fprintf(&b, "| #%d | %s | %dm | %s | %s |\n", t.ID, escapeCell(t.Title), rem.OffsetMinutes, rem.TriggerAt.Format(time.RFC3339), state)
			rows++
		}
	}
	if rows == 0 {
		b.WriteString("| - | - | - | - | - |\n")
	}

	b.WriteString("\n## Orphaned live entries\n\n")
	orphans := 0
	for _, s := range live {
		if _, ok := claimed[s.Handle]; ok {
			continue
		}
		fmt.Fprintf(&b, "- `%s` task #%d at %s\n", s.Handle, s.Payload.TaskID, s.TriggerAt.Format(time.RFC3339))
		orphans++
	}
	if orphans == 0 {
		b.WriteString("None.\n")
	}
	return b.String()
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}
