package watch

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

func renderHeader(kernel kernelMsg, connected bool, lastEvent time.Time, theme Theme, width int) string {
	innerWidth := width - 4

	stateText := theme.StateIdle.Render("IDLE")
	switch {
	case !connected:
		stateText = theme.StateError.Render("CONNECTING")
	case kernel.ExecutionState == "busy":
		stateText = theme.StateBusy.Render("BUSY")
	}

	lastEventStr := "never"
	if !lastEvent.IsZero() {
		ago := time.Since(lastEvent).Round(time.Second)
		lastEventStr = fmt.Sprintf("%s ago", ago)
	}

	clock := theme.Dim.Render(time.Now().Format("15:04:05"))
	titleText := fmt.Sprintf(" KERNEL WATCH %s", theme.Highlight.Render(kernel.KernelID))

	titleWidth := lipgloss.Width(titleText)
	clockWidth := lipgloss.Width(clock)
	pad := innerWidth - titleWidth - clockWidth - 4
	if pad < 1 {
		pad = 1
	}
	titleLine := titleText + strings.Repeat(" ", pad) + clock + " "

	statsLine := fmt.Sprintf(" %s  session: %s  protocol: %s",
		stateText,
		shorten(kernel.SessionID, 8),
		kernel.ProtocolVersion,
	)

	activityLine := fmt.Sprintf(" Last publication: %s", lastEventStr)

	content := lipgloss.JoinVertical(lipgloss.Left,
		titleLine,
		statsLine,
		activityLine,
	)

	return theme.Border.Width(innerWidth).Render(content)
}

func shorten(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
