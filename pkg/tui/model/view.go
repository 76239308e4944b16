package model

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	selectedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("229")).
			Background(lipgloss.Color("57"))

	countStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	commandStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))

	paneStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(0, 1)

	activePaneStyle = paneStyle.
			BorderForeground(lipgloss.Color("205"))

	dimStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	helpStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// View renders the dashboard.
func (a App) View() string {
	if a.width == 0 || a.height == 0 {
		return "loading..."
	}

	statusBarH := 2
	mainH := a.height - statusBarH - 2
	listW := a.width/4 - 2
	if listW < 16 {
		listW = 16
	}
	cmdW := a.width - listW - 8

	list := a.renderInstances(listW, mainH)
	listPane := a.paneBox(PaneInstances, " Instances ", list, listW, mainH)

	cmds := a.renderCommands(cmdW, mainH)
	cmdPane := a.paneBox(PaneCommands, a.commandsTitle(), cmds, cmdW, mainH)

	top := lipgloss.JoinHorizontal(lipgloss.Top, listPane, cmdPane)
	return lipgloss.JoinVertical(lipgloss.Left, top, a.renderStatusBar())
}

func (a App) paneBox(pane Pane, title, content string, w, h int) string {
	style := paneStyle
	if a.activePane == pane {
		style = activePaneStyle
	}
	return style.Width(w).Height(h).Render(
		titleStyle.Render(title) + "\n" + content,
	)
}

func (a App) renderInstances(w, h int) string {
	rows := make([]string, 0, len(a.instances)+1)
	rows = append(rows, a.instanceRow("all", a.total, w))
	for _, inst := range a.instances {
		rows = append(rows, a.instanceRow(string(inst.ID), inst.Count, w))
	}

	var b strings.Builder
	maxVisible := h - 2
	start := 0
	if a.selectedIdx >= maxVisible {
		start = a.selectedIdx - maxVisible + 1
	}
	for i := start; i < len(rows) && i-start < maxVisible; i++ {
		line := rows[i]
		if i == a.selectedIdx {
			line = selectedStyle.Width(w).Render(line)
		}
		b.WriteString(line + "\n")
	}
	return b.String()
}

func (a App) instanceRow(name string, count, w int) string {
	n := fmt.Sprintf("%d", count)
	name = truncate(name, w-len(n)-3)
	return fmt.Sprintf(" %-*s %s", w-len(n)-3, name, countStyle.Render(n))
}

func (a App) renderCommands(w, h int) string {
	cmds := a.filteredCommands()

	var b strings.Builder
	if a.mode == ModeSearch {
		b.WriteString(a.search.View() + "\n")
		h--
	}
	if len(cmds) == 0 {
		b.WriteString(dimStyle.Render("no commands recorded"))
		return b.String()
	}

	start := 0
	if len(cmds) > h-1 {
		start = len(cmds) - h + 1
	}
	for _, c := range cmds[start:] {
		b.WriteString(renderCommand(truncate(c, w)) + "\n")
	}
	return b.String()
}

// renderCommand highlights the command name.
func renderCommand(line string) string {
	name, rest, found := strings.Cut(line, " ")
	if !found {
		return commandStyle.Render(name)
	}
	return commandStyle.Render(name) + " " + rest
}

func (a App) commandsTitle() string {
	title := " Commands: all "
	if id := a.selectedInstance(); id != "" {
		title = " Commands: " + string(id) + " "
	}
	if a.paused {
		title += dimStyle.Render("[PAUSED]") + " "
	}
	if q := a.search.Value(); q != "" && a.mode != ModeSearch {
		title += dimStyle.Render("/"+q) + " "
	}
	return title
}

func (a App) renderStatusBar() string {
	left := a.statusMsg
	right := "j/k:instance tab:pane /:filter space:pause c:copy x:reset q:quit"
	if a.mode == ModeSearch {
		right = "enter:apply esc:cancel"
	}
	if a.mode == ModeConfirmReset {
		right = "y:confirm any:cancel"
	}

	gap := a.width - len(left) - len(right)
	if gap < 1 {
		gap = 1
	}
	return helpStyle.Render(left + strings.Repeat(" ", gap) + right)
}

func truncate(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
