package input

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/regroove/regroove/internal/engine"
	"github.com/regroove/regroove/internal/model"
)

// Remote surfaces (OSC, MIDI) run on their own goroutines. They never touch
// the engine directly; they forward these messages into the bubbletea
// program so the Update goroutine stays the command queue's only producer.
type (
	RemoteTogglePlayMsg struct{}
	RemoteRetriggerMsg  struct{}
	RemoteQueueOrderMsg struct{ Order int }
	RemoteStepOrderMsg  struct{ Delta int }
	RemoteLoopTillMsg   struct{ Row int } // Row < 0 means the row playing now
	RemoteToggleModeMsg struct{}
	RemoteMuteMsg       struct{ Channel int }
	RemoteMuteAllMsg    struct{}
	RemoteUnmuteAllMsg  struct{}
	RemotePitchMsg      struct{ Steps int }
)

// HandleRemoteMsg dispatches a remote-control message. Returns false when
// the message is not a remote message so the caller can keep routing it.
func HandleRemoteMsg(m *model.Model, msg tea.Msg) bool {
	switch msg := msg.(type) {
	case RemoteTogglePlayMsg:
		TogglePlayback(m)
	case RemoteRetriggerMsg:
		RetriggerCurrent(m)
	case RemoteQueueOrderMsg:
		QueueOrder(m, msg.Order)
	case RemoteStepOrderMsg:
		QueueOrderStep(m, msg.Delta)
	case RemoteLoopTillMsg:
		loopTillRow(m, msg.Row)
	case RemoteToggleModeMsg:
		ToggleMode(m)
	case RemoteMuteMsg:
		ToggleChannelMute(m, msg.Channel)
	case RemoteMuteAllMsg:
		m.Perf.Mutes().MuteAll()
		m.SetStatus("all channels muted")
	case RemoteUnmuteAllMsg:
		m.Perf.Mutes().UnmuteAll()
		m.SetStatus("all channels unmuted")
	case RemotePitchMsg:
		pitch := m.Perf.Pitch()
		for i := 0; i < msg.Steps; i++ {
			pitch = m.Perf.PitchUp()
		}
		for i := 0; i > msg.Steps; i-- {
			pitch = m.Perf.PitchDown()
		}
		m.SetStatus("pitch %.3f", pitch)
	default:
		return false
	}
	return true
}

// loopTillRow loops the current order until playback reaches row, which a
// remote can place anywhere in the pattern. A negative row means the row
// playing right now, same as the keyboard binding.
func loopTillRow(m *model.Model, row int) {
	st := m.Perf.State()
	rows := m.Perf.Decoder().PatternRowCount(st.Pattern)
	if row < 0 {
		row = st.Row
	} else if row >= rows {
		row = rows - 1
	}
	if pushOrDrop(m, engine.Command{Kind: engine.LoopTillRow, Order: st.Order, Row: row}) {
		m.SetStatus("looping order %d till row %d", st.Order, row)
	}
}
