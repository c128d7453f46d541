package views

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"

	"github.com/regroove/regroove/internal/model"
)

// Common styles used across the perform view
type ViewStyles struct {
	Title     lipgloss.Style
	Label     lipgloss.Style
	Normal    lipgloss.Style
	Playing   lipgloss.Style
	Pinned    lipgloss.Style
	Pending   lipgloss.Style
	Muted     lipgloss.Style
	Status    lipgloss.Style
	Container lipgloss.Style
}

func getCommonStyles() *ViewStyles {
	return &ViewStyles{
		Title:     lipgloss.NewStyle().Foreground(lipgloss.Color("15")).Bold(true),
		Label:     lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
		Normal:    lipgloss.NewStyle().Foreground(lipgloss.Color("15")),
		Playing:   lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
		Pinned:    lipgloss.NewStyle().Background(lipgloss.Color("7")).Foreground(lipgloss.Color("0")),
		Pending:   lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		Muted:     lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
		Status:    lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
		Container: lipgloss.NewStyle().Padding(1, 2),
	}
}

const performHelpText = "space play · r retrig · n/p queue · j loop-till · s mode · 1-9 mute · m/u all · +/- pitch · q quit"

// RenderPerformView renders the single live-performance screen.
func RenderPerformView(m *model.Model) string {
	styles := getCommonStyles()
	st := m.Perf.State()

	var content strings.Builder
	content.WriteString(renderHeader(m, styles))
	content.WriteString("\n\n")
	content.WriteString(renderOrderLane(m, styles))
	content.WriteString("\n")
	content.WriteString(renderPositionLine(m, styles))
	content.WriteString("\n")
	content.WriteString(renderChannelLane(m, styles))
	content.WriteString("\n")
	content.WriteString(renderMeter(m, styles))
	content.WriteString("\n\n")
	content.WriteString(styles.Label.Render(performHelpText))
	content.WriteString("\n")

	status := m.StatusMessage
	if st.Dropped > 0 {
		status = fmt.Sprintf("%s (%d commands dropped)", status, st.Dropped)
	}
	content.WriteString(styles.Status.Render(status))

	return styles.Container.Render(content.String())
}

func renderHeader(m *model.Model, styles *ViewStyles) string {
	st := m.Perf.State()

	mode := "SONG"
	if st.PatternMode {
		mode = "PATTERN"
	}
	state := "playing"
	if st.Paused {
		state = "paused"
	}

	left := styles.Title.Render("regroove") + styles.Label.Render(" — "+m.SongTitle)
	right := fmt.Sprintf("[%s] %s  pitch %.2fx", mode, state, st.Pitch)

	pad := m.Width - 4 - lipgloss.Width(left) - lipgloss.Width(right)
	if pad < 1 {
		pad = 1
	}
	return left + strings.Repeat(" ", pad) + styles.Normal.Render(right)
}

// renderOrderLane draws every order slot: inverse for the pinned loop order
// (pattern mode), green for the playing one, yellow for a pending order.
func renderOrderLane(m *model.Model, styles *ViewStyles) string {
	st := m.Perf.State()

	var b strings.Builder
	b.WriteString(styles.Label.Render("order "))
	for i := 0; i < m.OrderCount; i++ {
		cell := fmt.Sprintf("%02d", i)
		switch {
		case st.PatternMode && i == st.LoopOrder:
			cell = styles.Pinned.Render(cell)
		case i == st.Order:
			cell = styles.Playing.Render(cell)
		case st.PatternMode && i == st.PendingOrder:
			cell = styles.Pending.Render(cell + "*")
		default:
			cell = styles.Normal.Render(cell)
		}
		b.WriteString(cell)
		b.WriteString(" ")
	}
	return b.String()
}

func renderPositionLine(m *model.Model, styles *ViewStyles) string {
	st := m.Perf.State()
	rows := m.Perf.Decoder().PatternRowCount(st.Pattern)

	line := fmt.Sprintf("row   %02d/%02d  pattern %02d", st.Row, rows, st.Pattern)
	if st.LoopTillRow >= 0 {
		line += styles.Pending.Render(fmt.Sprintf("  loop till row %02d", st.LoopTillRow))
	}
	return styles.Normal.Render(line)
}

func renderChannelLane(m *model.Model, styles *ViewStyles) string {
	mutes := m.Perf.Mutes()

	var b strings.Builder
	b.WriteString(styles.Label.Render("chans "))
	for ch := 0; ch < m.Channels; ch++ {
		if mutes.Muted(ch) {
			b.WriteString(styles.Muted.Render("×"))
		} else {
			b.WriteString(styles.Playing.Render(fmt.Sprintf("%d", ch+1)))
		}
		b.WriteString(" ")
	}
	return b.String()
}

// renderMeter draws the live peak bar plus a short history sparkline fed
// from the render context.
func renderMeter(m *model.Model, styles *ViewStyles) string {
	width := m.Width / 3
	if width < 10 {
		width = 10
	}
	bar := progress.New(
		progress.WithDefaultGradient(),
		progress.WithWidth(width),
		progress.WithoutPercentage(),
	)

	var b strings.Builder
	b.WriteString(styles.Label.Render("level "))
	b.WriteString(bar.ViewAs(m.Perf.Peak()))
	b.WriteString(" ")
	b.WriteString(styles.Label.Render(sparkline(m.MeterSamples())))
	return b.String()
}

var sparkRunes = []rune(" ▁▂▃▄▅▆▇█")

func sparkline(samples []float64) string {
	// Show the most recent quarter of the history.
	start := len(samples) - len(samples)/4
	var b strings.Builder
	for _, v := range samples[start:] {
		idx := int(v * float64(len(sparkRunes)-1))
		if idx < 0 {
			idx = 0
		} else if idx >= len(sparkRunes) {
			idx = len(sparkRunes) - 1
		}
		b.WriteRune(sparkRunes[idx])
	}
	return b.String()
}
