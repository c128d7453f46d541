// Package audio owns the output device: an oto stream that pulls PCM from
// the engine one buffer at a time. The pull callback is the render context;
// everything it touches is preallocated here.
package audio

import (
	"fmt"
	"time"

	"github.com/ebitengine/oto/v3"

	"github.com/regroove/regroove/internal/engine"
)

const (
	// SampleRate is the fixed output rate; pitch bending happens inside
	// the decoder, not at the device.
	SampleRate = 48000

	channelCount   = 2
	bytesPerSample = 2

	// DefaultBufferFrames is the render quantum: ~21ms at 48kHz, small
	// enough that boundary-queued commands still feel immediate.
	DefaultBufferFrames = 1024
)

// quantumReader adapts a Performance to oto's pull model. Each Read is one
// render quantum.
type quantumReader struct {
	perf *engine.Performance
	pcm  []int16
}

func (r *quantumReader) Read(p []byte) (int, error) {
	frames := len(p) / (channelCount * bytesPerSample)
	if frames == 0 {
		return 0, nil
	}
	need := frames * channelCount
	if cap(r.pcm) < need {
		// Only hit when oto asks for more than the configured buffer.
		r.pcm = make([]int16, need)
	}
	buf := r.pcm[:need]
	r.perf.RenderQuantum(buf)
	for i, s := range buf {
		p[i*2] = byte(s)
		p[i*2+1] = byte(s >> 8)
	}
	return need * bytesPerSample, nil
}

// Device is the opened audio output.
type Device struct {
	ctx    *oto.Context
	player *oto.Player
}

// Open initializes the audio context and binds perf as its sample source.
// bufferFrames sets the render quantum; pass 0 for the default. The stream
// is created paused; call Start to run it.
func Open(perf *engine.Performance, bufferFrames int) (*Device, error) {
	if bufferFrames <= 0 {
		bufferFrames = DefaultBufferFrames
	}
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   SampleRate,
		ChannelCount: channelCount,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   time.Duration(bufferFrames) * time.Second / SampleRate,
	})
	if err != nil {
		return nil, fmt.Errorf("opening audio context: %w", err)
	}
	<-ready

	r := &quantumReader{
		perf: perf,
		pcm:  make([]int16, bufferFrames*channelCount),
	}
	return &Device{ctx: ctx, player: ctx.NewPlayer(r)}, nil
}

// Start begins (or resumes) pulling audio.
func (d *Device) Start() { d.player.Play() }

// Running reports whether the stream is currently pulling.
func (d *Device) Running() bool { return d.player.IsPlaying() }

// Suspend stops the pull callback without tearing the device down.
func (d *Device) Suspend() { d.player.Pause() }

// Close releases the output stream. The oto context itself has no close;
// it lives until process exit.
func (d *Device) Close() error {
	if err := d.player.Close(); err != nil {
		return fmt.Errorf("closing audio stream: %w", err)
	}
	return nil
}
