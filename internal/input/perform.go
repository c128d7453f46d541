// Package input turns key presses and remote-control messages into engine
// calls. Mute, pitch, pause and mode changes are direct scalar writes;
// anything that moves the playback position goes through the command queue
// so it lands on a quantum boundary.
package input

import (
	"log"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/regroove/regroove/internal/engine"
	"github.com/regroove/regroove/internal/model"
)

// KeyMap is the perform-view key map.
type KeyMap struct {
	PlayPause  key.Binding
	Retrigger  key.Binding
	NextOrder  key.Binding
	PrevOrder  key.Binding
	LoopTill   key.Binding
	ToggleMode key.Binding
	MuteAll    key.Binding
	UnmuteAll  key.Binding
	PitchUp    key.Binding
	PitchDown  key.Binding
	Quit       key.Binding
}

var Keys = KeyMap{
	PlayPause:  key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "play/pause")),
	Retrigger:  key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "retrigger")),
	NextOrder:  key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "queue next")),
	PrevOrder:  key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "queue prev")),
	LoopTill:   key.NewBinding(key.WithKeys("j"), key.WithHelp("j", "loop till row")),
	ToggleMode: key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "song/pattern")),
	MuteAll:    key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "mute all")),
	UnmuteAll:  key.NewBinding(key.WithKeys("u"), key.WithHelp("u", "unmute all")),
	PitchUp:    key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+", "pitch up")),
	PitchDown:  key.NewBinding(key.WithKeys("-"), key.WithHelp("-", "pitch down")),
	Quit:       key.NewBinding(key.WithKeys("q", "esc", "ctrl+c"), key.WithHelp("q", "quit")),
}

// HandlePerformInput handles input for the perform view
func HandlePerformInput(m *model.Model, msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, Keys.Quit):
		m.Quitting = true
		return tea.Quit

	case key.Matches(msg, Keys.PlayPause):
		TogglePlayback(m)

	case key.Matches(msg, Keys.Retrigger):
		RetriggerCurrent(m)

	case key.Matches(msg, Keys.NextOrder):
		QueueOrderStep(m, 1)

	case key.Matches(msg, Keys.PrevOrder):
		QueueOrderStep(m, -1)

	case key.Matches(msg, Keys.LoopTill):
		LoopTillCurrentRow(m)

	case key.Matches(msg, Keys.ToggleMode):
		ToggleMode(m)

	case key.Matches(msg, Keys.MuteAll):
		m.Perf.Mutes().MuteAll()
		m.SetStatus("all channels muted")

	case key.Matches(msg, Keys.UnmuteAll):
		m.Perf.Mutes().UnmuteAll()
		m.SetStatus("all channels unmuted")

	case key.Matches(msg, Keys.PitchUp):
		m.SetStatus("pitch %.3f", m.Perf.PitchUp())

	case key.Matches(msg, Keys.PitchDown):
		m.SetStatus("pitch %.3f", m.Perf.PitchDown())

	default:
		// Digits 1-9 toggle channel mutes.
		s := msg.String()
		if len(s) == 1 && s[0] >= '1' && s[0] <= '9' {
			ToggleChannelMute(m, int(s[0]-'1'))
		}
	}
	return nil
}

func TogglePlayback(m *model.Model) {
	if m.Perf.TogglePause() {
		m.SetStatus("paused")
	} else {
		m.SetStatus("playing")
	}
}

// RetriggerCurrent restarts the current pattern from row 0 at the next
// quantum. In pattern mode the pinned loop order restarts, not whatever
// order the decoder happens to be passing through.
func RetriggerCurrent(m *model.Model) {
	st := m.Perf.State()
	order := st.Order
	if st.PatternMode {
		order = st.LoopOrder
	}
	pushOrDrop(m, engine.Command{Kind: engine.Retrigger, Order: order})
}

// QueueOrderStep queues the order delta steps away, wrapping around the
// order list. In pattern mode consecutive presses step from the already
// pending order so "n n" lands two ahead.
func QueueOrderStep(m *model.Model, delta int) {
	st := m.Perf.State()
	base := st.Order
	if st.PatternMode {
		base = st.LoopOrder
		if st.PendingOrder != -1 {
			base = st.PendingOrder
		}
	}
	target := (base + delta) % m.OrderCount
	if target < 0 {
		target += m.OrderCount
	}
	QueueOrder(m, target)
}

// QueueOrder queues an absolute order: pending-at-wrap in pattern mode, a
// row-0 jump at the next quantum in song mode.
func QueueOrder(m *model.Model, order int) {
	if !m.ValidOrder(order) {
		log.Printf("ignoring queue of out-of-range order %d", order)
		return
	}
	if pushOrDrop(m, engine.Command{Kind: engine.QueueOrder, Order: order}) {
		m.SetStatus("queued order %d", order)
	}
}

// LoopTillCurrentRow loops the current order from row 0 until playback
// reaches the row the cursor is on now.
func LoopTillCurrentRow(m *model.Model) {
	st := m.Perf.State()
	if pushOrDrop(m, engine.Command{Kind: engine.LoopTillRow, Order: st.Order, Row: st.Row}) {
		m.SetStatus("looping order %d till row %d", st.Order, st.Row)
	}
}

func ToggleMode(m *model.Model) {
	if m.Perf.ToggleMode() {
		m.SetStatus("pattern mode")
	} else {
		m.SetStatus("song mode")
	}
}

func ToggleChannelMute(m *model.Model, ch int) {
	if ch < 0 || ch >= m.Channels {
		log.Printf("ignoring mute toggle for channel %d of %d", ch, m.Channels)
		return
	}
	if m.Perf.Mutes().Toggle(ch) {
		m.SetStatus("channel %d muted", ch+1)
	} else {
		m.SetStatus("channel %d unmuted", ch+1)
	}
}

// pushOrDrop pushes cmd and surfaces a dropped intent in the status line;
// the performer just presses again.
func pushOrDrop(m *model.Model, cmd engine.Command) bool {
	if !m.Perf.Push(cmd) {
		m.SetStatus("command queue full, try again")
		return false
	}
	return true
}
