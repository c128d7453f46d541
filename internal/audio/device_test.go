package audio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/regroove/regroove/internal/engine"
)

// toneDecoder renders a fixed sample value so byte order is observable.
type toneDecoder struct{}

func (toneDecoder) Render(rate float64, out []int16) int {
	for i := range out {
		out[i] = 0x0102
	}
	return len(out) / 2
}

func (toneDecoder) CurrentOrder() int               { return 0 }
func (toneDecoder) CurrentRow() int                 { return 0 }
func (toneDecoder) CurrentPattern() int             { return 0 }
func (toneDecoder) OrderCount() int                 { return 1 }
func (toneDecoder) OrderPattern(order int) int      { return 0 }
func (toneDecoder) PatternRowCount(pattern int) int { return 64 }
func (toneDecoder) SetPosition(order, row int)      {}
func (toneDecoder) ChannelCount() int               { return 4 }

func newTestReader() *quantumReader {
	perf := engine.New(toneDecoder{}, SampleRate)
	perf.TogglePause() // engine starts paused
	return &quantumReader{perf: perf, pcm: make([]int16, 64)}
}

func TestReadFillsLittleEndian(t *testing.T) {
	r := newTestReader()

	p := make([]byte, 16*channelCount*bytesPerSample)
	n, err := r.Read(p)
	require.NoError(t, err)
	assert.Equal(t, len(p), n)

	for i := 0; i < len(p); i += 2 {
		assert.Equal(t, byte(0x02), p[i], "low byte first at offset %d", i)
		assert.Equal(t, byte(0x01), p[i+1], "high byte second at offset %d", i)
	}
}

func TestReadGrowsScratchForOversizedPulls(t *testing.T) {
	r := newTestReader()

	p := make([]byte, 256*channelCount*bytesPerSample)
	n, err := r.Read(p)
	require.NoError(t, err)
	assert.Equal(t, len(p), n)
	assert.NotEqual(t, byte(0), p[len(p)-1], "tail of the grown buffer must be rendered")
}

func TestReadZeroFrames(t *testing.T) {
	r := newTestReader()

	n, err := r.Read(make([]byte, 3))
	require.NoError(t, err)
	assert.Equal(t, 0, n, "sub-frame reads produce nothing")
}

func TestReadSilenceWhilePaused(t *testing.T) {
	perf := engine.New(toneDecoder{}, SampleRate)
	r := &quantumReader{perf: perf, pcm: make([]int16, 64)}

	p := make([]byte, 16*channelCount*bytesPerSample)
	n, err := r.Read(p)
	require.NoError(t, err)
	assert.Equal(t, len(p), n)
	for i, b := range p {
		require.Equal(t, byte(0), b, "byte %d should be silent while paused", i)
	}
}
