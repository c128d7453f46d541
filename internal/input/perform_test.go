package input

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/regroove/regroove/internal/engine"
	"github.com/regroove/regroove/internal/model"
)

// fakeDecoder is a positionable stub: Render produces silence and leaves
// the position alone so each test drives it explicitly.
type fakeDecoder struct {
	order, row int
	seeks      [][2]int
	gains      map[int]float64
}

func newFakeDecoder() *fakeDecoder {
	return &fakeDecoder{gains: make(map[int]float64)}
}

func (d *fakeDecoder) Render(rate float64, out []int16) int { return len(out) / 2 }
func (d *fakeDecoder) CurrentOrder() int                    { return d.order }
func (d *fakeDecoder) CurrentRow() int                      { return d.row }
func (d *fakeDecoder) CurrentPattern() int                  { return d.order }
func (d *fakeDecoder) OrderCount() int                      { return 4 }
func (d *fakeDecoder) OrderPattern(order int) int           { return order }
func (d *fakeDecoder) PatternRowCount(pattern int) int      { return 64 }
func (d *fakeDecoder) ChannelCount() int                    { return 4 }

func (d *fakeDecoder) SetPosition(order, row int) {
	d.seeks = append(d.seeks, [2]int{order, row})
	d.order, d.row = order, row
}

func (d *fakeDecoder) SetChannelVolume(ch int, gain float64) {
	d.gains[ch] = gain
}

func testModel() (*model.Model, *fakeDecoder) {
	dec := newFakeDecoder()
	perf := engine.New(dec, 48000)
	return model.NewModel(perf, "/tmp/t.mod", "t"), dec
}

func keyMsg(s string) tea.KeyMsg {
	if s == " " {
		return tea.KeyMsg{Type: tea.KeySpace}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// quantum runs one render quantum so queued commands get applied.
func quantum(m *model.Model) {
	m.Perf.RenderQuantum(make([]int16, 64))
}

func TestSpaceTogglesPlayback(t *testing.T) {
	m, _ := testModel()
	require.True(t, m.Perf.Paused(), "playback starts paused")

	HandlePerformInput(m, keyMsg(" "))
	assert.False(t, m.Perf.Paused())
	assert.Equal(t, "playing", m.StatusMessage)

	HandlePerformInput(m, keyMsg(" "))
	assert.True(t, m.Perf.Paused())
	assert.Equal(t, "paused", m.StatusMessage)
}

func TestDigitKeysToggleMutes(t *testing.T) {
	m, dec := testModel()

	HandlePerformInput(m, keyMsg("1"))
	HandlePerformInput(m, keyMsg("3"))
	assert.True(t, m.Perf.Mutes().Muted(0))
	assert.True(t, m.Perf.Mutes().Muted(2))
	assert.Equal(t, 0.0, dec.gains[0])
	assert.Equal(t, 0.0, dec.gains[2])

	HandlePerformInput(m, keyMsg("1"))
	assert.False(t, m.Perf.Mutes().Muted(0))
	assert.Equal(t, 1.0, dec.gains[0])

	// Channel 9 does not exist on a 4-channel song.
	HandlePerformInput(m, keyMsg("9"))
	_, touched := dec.gains[8]
	assert.False(t, touched)
}

func TestQueueOrderStepWrapsInSongMode(t *testing.T) {
	m, dec := testModel()

	QueueOrderStep(m, -1)
	quantum(m)
	require.NotEmpty(t, dec.seeks)
	assert.Equal(t, [2]int{3, 0}, dec.seeks[len(dec.seeks)-1],
		"stepping back from order 0 wraps to the last order")
}

func TestQueueOrderStepChainsInPatternMode(t *testing.T) {
	m, _ := testModel()

	ToggleMode(m)
	quantum(m) // render side captures the loop target

	QueueOrderStep(m, 1)
	quantum(m)
	assert.Equal(t, 1, m.Perf.State().PendingOrder)

	QueueOrderStep(m, 1)
	quantum(m)
	assert.Equal(t, 2, m.Perf.State().PendingOrder,
		"second press steps from the pending order, not the playing one")
}

func TestQueueOrderRejectsOutOfRange(t *testing.T) {
	m, dec := testModel()

	QueueOrder(m, 17)
	quantum(m)
	assert.Empty(t, dec.seeks)
	assert.Empty(t, m.StatusMessage)
}

func TestLoopTillCurrentRow(t *testing.T) {
	m, dec := testModel()
	dec.order, dec.row = 2, 5

	LoopTillCurrentRow(m)
	quantum(m)
	require.NotEmpty(t, dec.seeks)
	assert.Equal(t, [2]int{2, 0}, dec.seeks[0], "loop-till restarts the pattern")
	assert.Equal(t, 5, m.Perf.State().LoopTillRow)
}

func TestRetriggerUsesPinnedOrderInPatternMode(t *testing.T) {
	m, dec := testModel()
	dec.order = 1

	ToggleMode(m)
	quantum(m) // pins order 1

	dec.order = 2 // decoder drifts; retrigger must still hit the pin
	RetriggerCurrent(m)
	quantum(m)
	require.NotEmpty(t, dec.seeks)
	assert.Equal(t, 1, dec.seeks[0][0])
}

func TestHandleRemoteMsg(t *testing.T) {
	m, dec := testModel()

	assert.True(t, HandleRemoteMsg(m, RemoteMuteMsg{Channel: 1}))
	assert.True(t, m.Perf.Mutes().Muted(1))

	assert.True(t, HandleRemoteMsg(m, RemotePitchMsg{Steps: 2}))
	assert.InDelta(t, 1.05*1.05, m.Perf.Pitch(), 1e-9)

	assert.True(t, HandleRemoteMsg(m, RemotePitchMsg{Steps: -2}))
	assert.InDelta(t, 1.0, m.Perf.Pitch(), 1e-9)

	assert.True(t, HandleRemoteMsg(m, RemoteLoopTillMsg{Row: 200}))
	quantum(m)
	assert.Equal(t, 63, m.Perf.State().LoopTillRow, "remote rows clamp to the pattern")

	assert.False(t, HandleRemoteMsg(m, tea.WindowSizeMsg{}),
		"non-remote messages fall through")
	assert.Empty(t, dec.gains[3])
}
