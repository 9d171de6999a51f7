package views

import (
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/sandeepkv93/timelock/internal/timemath"
)

type AppData struct {
	Header       string
	LeftPane     string
	RightPane    string
	StatusLine   string
	Footer       string
	Notification string
	Width        int
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	panelStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	footerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	doneStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Strikethrough(true)
)

var levelColors = map[timemath.Level]lipgloss.Color{
	timemath.LevelNormal:   lipgloss.Color("10"),
	timemath.LevelWarning:  lipgloss.Color("11"),
	timemath.LevelUrgent:   lipgloss.Color("208"),
	timemath.LevelCritical: lipgloss.Color("9"),
	timemath.LevelOverdue:  lipgloss.Color("196"),
}

// LevelStyle is the foreground style for an urgency level. Critical and
// overdue are also bold.
func LevelStyle(level timemath.Level) lipgloss.Style {
	color, ok := levelColors[level]
	if !ok {
		color = levelColors[timemath.LevelNormal]
	}
	style := lipgloss.NewStyle().Foreground(color)
	if level == timemath.LevelCritical || level == timemath.LevelOverdue {
		style = style.Bold(true)
	}
	return style
}

func RenderApp(data AppData) string {
	width := 58
	if data.Width > 0 {
		width = max(30, data.Width/2-4)
	}
	left := panelStyle.Width(width).Render(data.LeftPane)
	right := panelStyle.Width(width).Render(data.RightPane)
	row := lipgloss.JoinHorizontal(lipgloss.Top, left, right)

	status := statusStyle.Render(data.StatusLine)
	if strings.Contains(strings.ToLower(data.StatusLine), "error") {
		status = errorStyle.Render(data.StatusLine)
	}

	lines := []string{
		headerStyle.Render(data.Header),
		row,
		status,
	}
	if data.Notification != "" {
		lines = append(lines, panelStyle.Render(data.Notification))
	}
	if data.Footer != "" {
		lines = append(lines, footerStyle.Render(data.Footer))
	}
	return strings.Join(lines, "\n")
}

func RenderMarkdown(md string) string {
	if strings.TrimSpace(md) == "" {
		return ""
	}
	out, err := glamour.Render(md, "dark")
	if err != nil {
		return md
	}
	return strings.TrimSpace(out)
}
