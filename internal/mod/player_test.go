package mod

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// makeNote packs one 4-byte pattern cell.
func makeNote(sample, period int, effect, param byte) [noteBytes]byte {
	return [noteBytes]byte{
		byte(sample&0xF0) | byte(period>>8)&0xF,
		byte(period),
		byte(sample&0x0F)<<4 | effect,
		param,
	}
}

// putNote writes a cell into pattern data at (row, channel).
func putNote(pattern []byte, channels, row, ch int, cell [noteBytes]byte) {
	off := (row*channels + ch) * noteBytes
	copy(pattern[off:], cell[:])
}

// testSong builds a 4-channel song with the given order list. Sample 1 is a
// looped constant-value tone so a triggered note sounds indefinitely.
func testSong(orders ...int) *Song {
	patterns := 0
	for _, o := range orders {
		if o >= patterns {
			patterns = o + 1
		}
	}
	s := &Song{
		Title:    "test",
		Channels: 4,
		Orders:   orders,
		Patterns: make([][]byte, patterns),
	}
	for i := range s.Patterns {
		s.Patterns[i] = make([]byte, RowsPerPattern*s.Channels*noteBytes)
	}

	data := make([]int8, 512)
	for i := range data {
		data[i] = 100
	}
	s.Samples[0] = Sample{
		Name:     "tone",
		Length:   len(data),
		FineTune: 8,
		Volume:   64,
		LoopLen:  len(data),
		Data:     data,
	}
	return s
}

// renderFrames pulls n frames through the player at rate.
func renderFrames(p *Player, rate float64, n int) []int16 {
	out := make([]int16, n*2)
	p.Render(rate, out)
	return out
}

// At rate 1000 and the default tempo/speed (125 BPM, 6 ticks per row) a
// tick is 20 frames and a row is 120; frame 121 lands on the next row.
const (
	testRate  = 1000.0
	rowFrames = 120
)

func TestRowAdvancement(t *testing.T) {
	p := NewPlayer(testSong(0))

	assert.Equal(t, 0, p.CurrentOrder())
	assert.Equal(t, 0, p.CurrentRow())

	renderFrames(p, testRate, rowFrames)
	assert.Equal(t, 0, p.CurrentRow(), "row should not advance until its last tick has sounded")

	renderFrames(p, testRate, 1)
	assert.Equal(t, 1, p.CurrentRow())

	renderFrames(p, testRate, rowFrames)
	assert.Equal(t, 2, p.CurrentRow())
}

func TestOrderAdvancesAtPatternEnd(t *testing.T) {
	p := NewPlayer(testSong(0, 1))

	renderFrames(p, testRate, RowsPerPattern*rowFrames+1)
	assert.Equal(t, 1, p.CurrentOrder())
	assert.Equal(t, 0, p.CurrentRow())
}

func TestSetSpeedEffect(t *testing.T) {
	song := testSong(0)
	putNote(song.Patterns[0], song.Channels, 0, 0, makeNote(0, 0, fxSetSpeed, 0x03))
	p := NewPlayer(song)

	// Speed 3 makes a row 3 ticks = 60 frames; the 61st frame is row 1.
	renderFrames(p, testRate, 61)
	assert.Equal(t, 1, p.CurrentRow())
}

func TestSetTempoEffect(t *testing.T) {
	song := testSong(0)
	putNote(song.Patterns[0], song.Channels, 0, 0, makeNote(0, 0, fxSetSpeed, 0xFA))
	p := NewPlayer(song)

	// Tempo 250 halves the tick to 10 frames; a row is 60 frames.
	renderFrames(p, testRate, 61)
	assert.Equal(t, 1, p.CurrentRow())
}

func TestHigherRateStretchesRows(t *testing.T) {
	p := NewPlayer(testSong(0))

	// Doubling the rate doubles the frames per row, which at a fixed
	// hardware rate plays the song at half speed.
	renderFrames(p, testRate*2, 2*rowFrames)
	assert.Equal(t, 0, p.CurrentRow())
	renderFrames(p, testRate*2, 1)
	assert.Equal(t, 1, p.CurrentRow())
}

func TestPatternBreak(t *testing.T) {
	song := testSong(0, 1)
	putNote(song.Patterns[0], song.Channels, 0, 0, makeNote(0, 0, fxPatternBreak, 0x15))
	p := NewPlayer(song)

	renderFrames(p, testRate, rowFrames+1)
	assert.Equal(t, 1, p.CurrentOrder())
	assert.Equal(t, 15, p.CurrentRow(), "break row parameter is decimal-coded")
}

func TestPositionJump(t *testing.T) {
	song := testSong(0, 1, 0)
	putNote(song.Patterns[0], song.Channels, 0, 0, makeNote(0, 0, fxPositionJump, 2))
	p := NewPlayer(song)

	renderFrames(p, testRate, rowFrames+1)
	assert.Equal(t, 2, p.CurrentOrder())
	assert.Equal(t, 0, p.CurrentRow())
}

func TestSetPositionClamps(t *testing.T) {
	p := NewPlayer(testSong(0, 1))

	p.SetPosition(99, 99)
	assert.Equal(t, 1, p.CurrentOrder())
	assert.Equal(t, RowsPerPattern-1, p.CurrentRow())

	p.SetPosition(-1, -1)
	assert.Equal(t, 0, p.CurrentOrder())
	assert.Equal(t, 0, p.CurrentRow())
}

func TestChannelGainSilencesOutput(t *testing.T) {
	song := testSong(0)
	putNote(song.Patterns[0], song.Channels, 0, 0, makeNote(1, 428, 0, 0))
	p := NewPlayer(song)

	out := renderFrames(p, 44100, 256)
	assert.NotEqual(t, int16(0), out[0], "triggered note should sound on the left")

	p.SetChannelVolume(0, 0)
	out = renderFrames(p, 44100, 256)
	for i, s := range out {
		require.Equal(t, int16(0), s, "frame %d should be silent at gain 0", i/2)
	}

	p.SetChannelVolume(0, 1)
	out = renderFrames(p, 44100, 256)
	assert.NotEqual(t, int16(0), out[0], "restoring the gain should restore output")
}

func TestChannelGainClampsAndIgnoresOutOfRange(t *testing.T) {
	p := NewPlayer(testSong(0))

	p.SetChannelVolume(0, 2.5)
	assert.Equal(t, 1.0, p.ChannelGain(0))
	p.SetChannelVolume(0, -1)
	assert.Equal(t, 0.0, p.ChannelGain(0))

	p.SetChannelVolume(-1, 0.5)
	p.SetChannelVolume(99, 0.5)
	assert.Equal(t, 0.0, p.ChannelGain(99))
}

func TestEndOfSongWithoutLoop(t *testing.T) {
	p := NewPlayer(testSong(0))
	p.SetLoop(false)

	// rate 100: 2-frame ticks, 12-frame rows, 768 frames for the song.
	out := make([]int16, 2000*2)
	n := p.Render(100, out)
	assert.Equal(t, 768, n, "should render exactly the song and stop")

	n = p.Render(100, out)
	assert.Equal(t, 0, n, "finished player renders nothing")
}

func TestEndOfSongLoopsByDefault(t *testing.T) {
	p := NewPlayer(testSong(0, 1))

	renderFrames(p, 100, 2*RowsPerPattern*12+1)
	assert.Equal(t, 0, p.CurrentOrder(), "playback should wrap to the first order")
	assert.Equal(t, 0, p.CurrentRow())
}

func TestSetPositionReArmsFinishedPlayer(t *testing.T) {
	p := NewPlayer(testSong(0))
	p.SetLoop(false)

	out := make([]int16, 2000*2)
	p.Render(100, out)
	require.Equal(t, 0, p.Render(100, out))

	p.SetPosition(0, 0)
	n := p.Render(100, out)
	assert.Equal(t, 768, n, "reposition should restart playback")
}

func TestDecoderContractAccessors(t *testing.T) {
	song := testSong(3, 1, 2)
	p := NewPlayer(song)

	assert.Equal(t, 3, p.OrderCount())
	assert.Equal(t, 4, p.ChannelCount())
	assert.Equal(t, 3, p.CurrentPattern())
	assert.Equal(t, 1, p.OrderPattern(1))
	assert.Equal(t, -1, p.OrderPattern(5))
	assert.Equal(t, RowsPerPattern, p.PatternRowCount(0))
	assert.Equal(t, "test", p.Title())
}
