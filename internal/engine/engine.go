// Package engine is the realtime playback control core: a command queue plus
// a position/state machine that applies performer intent at pattern and row
// boundaries while audio keeps streaming. Two contexts touch it: the control
// context (key/OSC/MIDI dispatch) pushes commands and flips scalar flags, and
// the render context (the audio pull callback) drains the queue and owns all
// playback position state.
package engine

import (
	"log"
	"math"
	"sync/atomic"
)

// Decoder is the module-decoding collaborator. Render produces interleaved
// stereo int16 PCM at the given rate and may return fewer frames than
// requested (0 at end of song). Position queries must be safe from either
// context; SetPosition is only called from the render context.
type Decoder interface {
	Render(rate float64, out []int16) int
	CurrentOrder() int
	CurrentRow() int
	CurrentPattern() int
	OrderCount() int
	OrderPattern(order int) int
	PatternRowCount(pattern int) int
	SetPosition(order, row int)
	ChannelCount() int
}

const (
	defaultPitchStep = 1.05
	pitchMin         = 0.25
	pitchMax         = 4.0
)

// playbackState is owned exclusively by the render context.
type playbackState struct {
	patternActive bool // render-side mirror of the mode flag, for edge detection
	loopOrder     int
	loopPattern   int
	pendingOrder  int // order to adopt at next wrap in pattern mode, -1 = none
	jumpOrder     int
	jumpRow       int
	hasJump       bool
	loopTillRow   int
	loopingTill   bool
	prevRow       int // last observed row, -1 = unknown (suppresses wrap detection)
}

// Performance owns the command queue, the playback state machine and the
// mute table for one loaded song. Create with New, feed the control surface
// through the exported methods, and call RenderQuantum once per audio
// buffer.
type Performance struct {
	dec        Decoder
	mutes      *MuteTable
	queue      CommandQueue
	sampleRate float64
	pitchStep  float64

	// Control-context scalars, read as snapshots by the render context.
	patternMode atomic.Bool
	paused      atomic.Bool
	pitchBits   atomic.Uint64

	// Render-context exclusive.
	st playbackState

	// Display mirrors, published by the render context for the UI.
	dispLoopOrder atomic.Int32
	dispPending   atomic.Int32
	dispLoopTill  atomic.Int32
	peakBits      atomic.Uint64
}

// New wires a Performance around dec. The decoder's channel-volume
// capability is probed once here; without it mute commands degrade to
// logged no-ops.
func New(dec Decoder, sampleRate float64) *Performance {
	vol, _ := dec.(ChannelVolumer)
	p := &Performance{
		dec:        dec,
		mutes:      NewMuteTable(dec.ChannelCount(), vol),
		sampleRate: sampleRate,
		pitchStep:  defaultPitchStep,
	}
	p.pitchBits.Store(math.Float64bits(1.0))
	p.paused.Store(true) // start paused, like the original performance rig
	p.st.pendingOrder = -1
	p.st.prevRow = -1
	p.dispPending.Store(-1)
	p.dispLoopTill.Store(-1)
	return p
}

// Mutes exposes the mute table for the input dispatcher.
func (p *Performance) Mutes() *MuteTable { return p.mutes }

// Decoder exposes the decoder for position reads by the control context.
func (p *Performance) Decoder() Decoder { return p.dec }

// Push enqueues a command from the control context. False means the ring
// was full and the intent was dropped; the performer retries.
func (p *Performance) Push(cmd Command) bool { return p.queue.Push(cmd) }

// DroppedCommands reports how many intents were lost to a full queue.
func (p *Performance) DroppedCommands() uint64 { return p.queue.Dropped() }

// TogglePause flips the pause gate and returns the new state. While paused
// the render context emits silence but still drains commands.
func (p *Performance) TogglePause() bool {
	paused := !p.paused.Load()
	p.paused.Store(paused)
	return paused
}

// Paused reports the pause gate.
func (p *Performance) Paused() bool { return p.paused.Load() }

// ToggleMode flips song/pattern mode and returns true when pattern mode is
// now active. The render context captures the loop target on the next
// quantum; position state stays render-owned.
func (p *Performance) ToggleMode() bool {
	pm := !p.patternMode.Load()
	p.patternMode.Store(pm)
	return pm
}

// PatternMode reports whether pattern mode is requested.
func (p *Performance) PatternMode() bool { return p.patternMode.Load() }

// Pitch returns the playback-rate multiplier.
func (p *Performance) Pitch() float64 {
	return math.Float64frombits(p.pitchBits.Load())
}

// SetPitchStep overrides the per-press pitch ratio. Call before playback
// starts; out-of-range values are ignored.
func (p *Performance) SetPitchStep(step float64) {
	if step <= 1.0 || step > 2.0 {
		log.Printf("ignoring pitch step %v outside (1.0, 2.0]", step)
		return
	}
	p.pitchStep = step
}

// PitchUp raises the pitch factor one step, clamped to pitchMax.
func (p *Performance) PitchUp() float64 { return p.adjustPitch(p.pitchStep) }

// PitchDown lowers the pitch factor one step, clamped to pitchMin.
func (p *Performance) PitchDown() float64 { return p.adjustPitch(1 / p.pitchStep) }

func (p *Performance) adjustPitch(factor float64) float64 {
	pitch := p.Pitch() * factor
	if pitch < pitchMin {
		pitch = pitchMin
	}
	if pitch > pitchMax {
		pitch = pitchMax
	}
	p.pitchBits.Store(math.Float64bits(pitch))
	return pitch
}

// Peak returns the most recent quantum's peak sample magnitude in 0..1.
func (p *Performance) Peak() float64 {
	return math.Float64frombits(p.peakBits.Load())
}

// Snapshot is a coarse view of playback state for the UI. Values may be one
// quantum stale.
type Snapshot struct {
	Order        int
	Row          int
	Pattern      int
	LoopOrder    int
	PendingOrder int // -1 = none
	LoopTillRow  int // -1 = not looping-till
	PatternMode  bool
	Paused       bool
	Pitch        float64
	Dropped      uint64
}

// State snapshots playback for display.
func (p *Performance) State() Snapshot {
	return Snapshot{
		Order:        p.dec.CurrentOrder(),
		Row:          p.dec.CurrentRow(),
		Pattern:      p.dec.CurrentPattern(),
		LoopOrder:    int(p.dispLoopOrder.Load()),
		PendingOrder: int(p.dispPending.Load()),
		LoopTillRow:  int(p.dispLoopTill.Load()),
		PatternMode:  p.patternMode.Load(),
		Paused:       p.paused.Load(),
		Pitch:        p.Pitch(),
		Dropped:      p.queue.Dropped(),
	}
}

// RenderQuantum runs one quantum: drain commands, apply any queued jump,
// run wrap detection, then render PCM (or silence while paused) into out.
// out is interleaved stereo; the whole buffer is always written. Called
// only from the render context; must not block or allocate.
func (p *Performance) RenderQuantum(out []int16) {
	p.syncMode()
	p.queue.Drain(p.applyCommand)

	switch {
	case p.st.loopingTill:
		p.loopTillCheck()
	case p.st.patternActive:
		p.patternWrapCheck()
	case p.st.hasJump:
		p.st.hasJump = false
		p.seek(p.st.jumpOrder, p.st.jumpRow)
	}
	p.publishDisplay()

	if p.paused.Load() {
		zero(out)
		p.peakBits.Store(0)
		return
	}

	// The decoder steps through samples at hz/rate, so a higher pitch
	// factor is presented as a lower output rate.
	frames := p.dec.Render(p.sampleRate/p.Pitch(), out)
	zero(out[frames*2:])
	p.peakBits.Store(math.Float64bits(peak(out)))
}

// syncMode picks up control-context mode flips. Entering pattern mode
// captures the current order/pattern as the loop target and clears any
// pending order; leaving it just stops the wrap correction.
func (p *Performance) syncMode() {
	pm := p.patternMode.Load()
	if pm == p.st.patternActive {
		return
	}
	p.st.patternActive = pm
	if pm {
		p.st.loopOrder = p.dec.CurrentOrder()
		p.st.loopPattern = p.dec.CurrentPattern()
		p.st.pendingOrder = -1
		p.st.prevRow = -1
	}
}

func (p *Performance) applyCommand(cmd Command) {
	switch cmd.Kind {
	case QueueOrder:
		if p.st.patternActive {
			// Last writer wins; the newest queued order supersedes any
			// pending one and is adopted at the next wrap.
			p.st.pendingOrder = cmd.Order
		} else {
			p.st.jumpOrder = cmd.Order
			p.st.jumpRow = cmd.Row
			p.st.hasJump = true
		}
	case LoopTillRow:
		p.st.loopOrder = cmd.Order
		p.st.loopPattern = p.dec.OrderPattern(cmd.Order)
		p.st.loopTillRow = cmd.Row
		p.st.loopingTill = true
		p.seek(cmd.Order, 0)
	case Retrigger:
		p.seek(cmd.Order, 0)
	}
}

// patternWrapCheck keeps playback pinned to loopOrder while in pattern
// mode. On a wrap (last row -> row 0) it either adopts the pending order or
// re-asserts the loop; any drift off the pinned order snaps back.
func (p *Performance) patternWrapCheck() {
	curOrder := p.dec.CurrentOrder()
	curRow := p.dec.CurrentRow()
	rows := p.dec.PatternRowCount(p.st.loopPattern)

	if p.st.prevRow == rows-1 && curRow == 0 {
		if p.st.pendingOrder != -1 && p.st.pendingOrder != p.st.loopOrder {
			p.st.loopOrder = p.st.pendingOrder
			p.st.loopPattern = p.dec.OrderPattern(p.st.loopOrder)
			p.st.pendingOrder = -1
		}
		p.seek(p.st.loopOrder, 0)
		return
	}
	p.st.prevRow = curRow

	if curOrder != p.st.loopOrder {
		// The decoder advanced past the pinned pattern (or a jump effect
		// moved it); correct immediately. seek resets prevRow so the next
		// quantum can't see a spurious wrap.
		p.seek(p.st.loopOrder, 0)
	}
}

// loopTillCheck loops the pinned pattern from row 0 until the target row is
// reached by natural playback, then resumes free playback from there. The
// wrap usually lands on row 0 of the following order, so the wrap test runs
// before the order comparison.
func (p *Performance) loopTillCheck() {
	curOrder := p.dec.CurrentOrder()
	curRow := p.dec.CurrentRow()
	rows := p.dec.PatternRowCount(p.st.loopPattern)

	if curOrder == p.st.loopOrder && curRow == p.st.loopTillRow {
		p.st.loopingTill = false
		p.st.prevRow = curRow
		return
	}
	if p.st.prevRow == rows-1 && curRow == 0 {
		p.seek(p.st.loopOrder, 0)
		return
	}
	if curOrder == p.st.loopOrder {
		p.st.prevRow = curRow
	} else {
		p.st.prevRow = -1
	}
}

// seek repositions the decoder and immediately reapplies the mute table;
// the two are never split across quanta. prevRow goes back to unknown
// because the position was just corrected externally.
func (p *Performance) seek(order, row int) {
	p.dec.SetPosition(order, row)
	p.mutes.Reapply()
	p.st.prevRow = -1
}

func (p *Performance) publishDisplay() {
	p.dispLoopOrder.Store(int32(p.st.loopOrder))
	p.dispPending.Store(int32(p.st.pendingOrder))
	if p.st.loopingTill {
		p.dispLoopTill.Store(int32(p.st.loopTillRow))
	} else {
		p.dispLoopTill.Store(-1)
	}
}

func zero(buf []int16) {
	for i := range buf {
		buf[i] = 0
	}
}

func peak(buf []int16) float64 {
	var max int16
	for _, s := range buf {
		if s < 0 {
			s = -s
		}
		if s > max {
			max = s
		}
	}
	return float64(max) / 32768
}
