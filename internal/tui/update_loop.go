package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/sandeepkv93/timelock/internal/reconcile"
	"github.com/sandeepkv93/timelock/internal/timemath"
	"github.com/sandeepkv93/timelock/internal/views"
)

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.loadTasksCmd(),
		tickCmd(),
		waitForDeliveryCmd(m.opts.Deliveries),
		waitForReloadCmd(m.opts.Reloads),
		sweepTickCmd(m.opts.SweepEvery),
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch typed := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = typed.Width
		m.helpModel.Width = typed.Width
		return m, nil
	case tea.KeyMsg:
		if m.PaletteActive {
			return m.handlePaletteKey(typed)
		}
		return m.handleKey(typed)
	case TickMsg:
		m.now = time.Time(typed)
		return m, tickCmd()
	case TasksLoadedMsg:
		if typed.Err != nil {
			m.LastError = typed.Err
			m.Status = StatusBar{Text: typed.Err.Error(), IsError: true}
			return m, nil
		}
		m.setTasks(typed.Tasks)
		return m, nil
	case DeliveryMsg:
		d := typed.Delivery
		item := views.FiredItem{At: m.opts.Now(), Title: d.Event.Payload.Title, Skipped: string(d.Skipped)}
		if d.Sent || d.Skipped == "" {
			item.Title = d.Notification.Title
			item.Detail = d.Notification.Subtitle
			m.Status = StatusBar{Text: fmt.Sprintf("reminder: %s (%s)", d.Notification.Title, d.Notification.Subtitle)}
		}
		m.pushFired(item)
		return m, tea.Batch(m.loadTasksCmd(), waitForDeliveryCmd(m.opts.Deliveries))
	case ReloadMsg:
		return m, tea.Batch(m.loadTasksCmd(), waitForReloadCmd(m.opts.Reloads))
	case sweepTickMsg:
		return m, tea.Batch(m.sweepCmd(), sweepTickCmd(m.opts.SweepEvery))
	case SweepDoneMsg:
		report := typed.Report
		m.LastSweep = &report
		m.Status = sweepStatus(report)
		return m, m.loadTasksCmd()
	case SetStatusMsg:
		m.Status = StatusBar{Text: typed.Text, IsError: typed.IsError}
		return m, nil
	case ClearStatusMsg:
		m.Status = StatusBar{}
		return m, nil
	case AppErrorMsg:
		m.LastError = typed.Err
		if typed.Err != nil {
			m.Status = StatusBar{Text: typed.Err.Error(), IsError: true}
		}
		return m, nil
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.Quitting = true
		return m, tea.Quit
	case key.Matches(msg, m.keys.Palette):
		m.PaletteActive = true
		m.commandInput.SetValue("")
		m.Status = StatusBar{Text: "command palette active"}
		cmd := m.commandInput.Focus()
		return m, cmd
	case key.Matches(msg, m.keys.Help):
		m.HelpVisible = !m.HelpVisible
		return m, nil
	case key.Matches(msg, m.keys.Up):
		m.moveSelection(-1)
	case key.Matches(msg, m.keys.Down):
		m.moveSelection(1)
	case key.Matches(msg, m.keys.Refresh):
		return m, m.loadTasksCmd()
	case key.Matches(msg, m.keys.Sweep):
		m.Status = StatusBar{Text: "sweeping..."}
		return m, m.sweepCmd()
	case key.Matches(msg, m.keys.Badge):
		if m.opts.ClearBadge != nil {
			m.opts.ClearBadge()
		}
		m.Status = StatusBar{Text: "badge cleared"}
	case key.Matches(msg, m.keys.Toggle):
		if m.SelectedID != 0 {
			return m.runCommand(fmt.Sprintf("done %d", m.SelectedID))
		}
	case key.Matches(msg, m.keys.Delete):
		if m.SelectedID != 0 {
			return m.runCommand(fmt.Sprintf("delete %d", m.SelectedID))
		}
	}
	return m, nil
}

func sweepStatus(r reconcile.SweepReport) StatusBar {
	if r.Clean() {
		return StatusBar{Text: fmt.Sprintf("sweep: %d task(s), %d live reminder(s), all in sync", r.Tasks, r.Live)}
	}
	return StatusBar{
		Text: fmt.Sprintf("sweep: %d orphan(s) cancelled, %d fired pruned, %d task(s) repaired, %d error(s)",
			len(r.Orphans), r.Pruned, len(r.Repaired), len(r.Errors)),
		IsError: len(r.Errors) > 0,
	}
}

func (m Model) View() string {
	if m.Quitting {
		return ""
	}
	status := ""
	if m.Status.Text != "" {
		if m.Status.IsError {
			status = fmt.Sprintf("status: error: %s", m.Status.Text)
		} else {
			status = fmt.Sprintf("status: %s", m.Status.Text)
		}
	}

	rows := make([]views.TaskRow, 0, len(m.Tasks))
	deadlines := make([]timemath.Deadline, 0, len(m.Tasks))
	selected := ""
	for _, t := range m.Tasks {
		row := views.RowFromTask(t, m.now, m.opts.Location)
		if row.ID == m.SelectedID {
			selected = "selected:\n" + views.RenderSelected(row) + "\n\n"
		}
		rows = append(rows, row)
		deadlines = append(deadlines, timemath.Deadline{Deadline: t.Deadline, Completed: t.Completed})
	}
	left := "tasks:\n" + views.RenderTaskList(rows, m.SelectedID) + "\n\n" + views.RenderSummary(timemath.Summarize(deadlines, m.now))
	right := selected + views.RenderFired(m.Fired)
	if m.HelpVisible {
		right += "\n\nhelp:\n" + m.helpModel.FullHelpView(m.keys.FullHelp())
	}

	notification := ""
	if m.PaletteActive {
		notification = views.RenderCommandPalette(true, m.commandInput.View())
	}

	badge := 0
	if m.opts.Badge != nil {
		badge = m.opts.Badge()
	}
	header := fmt.Sprintf("timelock | %s | %d task(s)", m.now.In(m.opts.Location).Format("Mon Jan 2 15:04:05"), len(m.Tasks))
	if badge > 0 {
		header += fmt.Sprintf(" | %d new reminder(s)", badge)
	}

	return views.RenderApp(views.AppData{
		Header:       header,
		LeftPane:     strings.TrimSpace(left),
		RightPane:    right,
		StatusLine:   status,
		Notification: notification,
		Footer:       m.helpModel.ShortHelpView(m.keys.ShortHelp()),
		Width:        m.Width,
	})
}
