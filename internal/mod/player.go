package mod

import (
	"math"
	"sync/atomic"
)

// palClock is the Amiga PAL clock used to translate note periods into
// sample rates.
const palClock = 7093789.2

// MOD effect numbers (the subset this player sequences).
const (
	fxPortaUp       = 0x1
	fxPortaDown     = 0x2
	fxPortaToNote   = 0x3
	fxPortaVolSlide = 0x5
	fxSampleOffset  = 0x9
	fxVolSlide      = 0xA
	fxPositionJump  = 0xB
	fxSetVolume     = 0xC
	fxPatternBreak  = 0xD
	fxExtended      = 0xE
	fxSetSpeed      = 0xF

	fxExtRetrig      = 0x9
	fxExtFineVolUp   = 0xA
	fxExtFineVolDown = 0xB
	fxExtNoteCut     = 0xC
	fxExtNoteDelay   = 0xD
)

// Fine-tune scaling, .12 fixed point, index 8 = no fine tuning. From
// Micromod; a fine tune of -8 equals the next lower note.
var fineTuning = [16]int{
	4340, 4308, 4277, 4247, 4216, 4186, 4156, 4126,
	4096, 4067, 4037, 4008, 3979, 3951, 3922, 3894,
}

// voice is the mixer/sequencer state of one channel.
type voice struct {
	sample       int // playing sample index, -1 = silent
	sampleToPlay int // pending sample, for note delay
	period       int
	portaPeriod  int
	portaSpeed   int
	volume       int // 0..64
	pan          int // 0 = left, 127 = right
	fineTune     int
	pos          uint // 16.16 fixed-point sample cursor

	effect      byte
	param       byte
	effectCount int
}

// Player sequences and mixes a Song. Render is driven from the render
// context; position getters and SetChannelVolume are readable/writable
// from the control context as well (they are atomics). SetPosition and
// SetLoop belong to the render context / setup code only.
type Player struct {
	song *Song
	loop bool // wrap to order 0 at the end instead of stopping

	speed      int // ticks per row
	tempo      int // classic BPM-style tempo
	ticksLeft  int // ticks remaining in the current row
	tickFrames int // frames remaining in the current tick

	ord atomic.Int32
	rw  atomic.Int32

	advanced bool // current row has been played; next processRow steps forward
	jumpOrd  int  // pending Bxx/Dxx destination
	jumpRow  int
	hasJump  bool
	finished bool

	voices []voice
	gains  []atomic.Uint64 // per-channel gain, float64 bits
}

// NewPlayer builds a player over song. Playback starts at (0, 0) and loops
// the song at the end; SetLoop(false) restores play-once semantics for
// offline rendering.
func NewPlayer(song *Song) *Player {
	p := &Player{
		song:  song,
		loop:  true,
		speed: defaultTick,
		tempo: defaultBPM,
	}
	p.voices = make([]voice, song.Channels)
	p.gains = make([]atomic.Uint64, song.Channels)
	for i := range p.gains {
		p.gains[i].Store(math.Float64bits(1.0))
	}
	for i := range p.voices {
		v := &p.voices[i]
		v.sample = -1
		// Classic Amiga LRRL panning.
		switch i & 3 {
		case 0, 3:
			v.pan = 0
		default:
			v.pan = 127
		}
	}
	return p
}

// SetLoop controls end-of-song behavior: wrap to order 0 (live playback)
// or stop and render nothing further (offline export).
func (p *Player) SetLoop(loop bool) { p.loop = loop }

func (p *Player) CurrentOrder() int { return int(p.ord.Load()) }
func (p *Player) CurrentRow() int   { return int(p.rw.Load()) }
func (p *Player) OrderCount() int   { return len(p.song.Orders) }
func (p *Player) ChannelCount() int { return p.song.Channels }
func (p *Player) Title() string     { return p.song.Title }

// CurrentPattern returns the pattern at the current order.
func (p *Player) CurrentPattern() int {
	return p.song.Orders[p.CurrentOrder()]
}

// OrderPattern maps an order index to its pattern, -1 if out of range.
func (p *Player) OrderPattern(order int) int {
	if order < 0 || order >= len(p.song.Orders) {
		return -1
	}
	return p.song.Orders[order]
}

// PatternRowCount is fixed for MOD but part of the decoder contract.
func (p *Player) PatternRowCount(pattern int) int { return RowsPerPattern }

// SetPosition repositions playback to (order, row), clamped to the song.
// The position takes effect on the next rendered frame. A finished player
// is re-armed. Voice state is deliberately left alone so a live reposition
// doesn't cut sounding notes.
func (p *Player) SetPosition(order, row int) {
	if order < 0 {
		order = 0
	} else if order >= len(p.song.Orders) {
		order = len(p.song.Orders) - 1
	}
	if row < 0 {
		row = 0
	} else if row >= RowsPerPattern {
		row = RowsPerPattern - 1
	}
	p.ord.Store(int32(order))
	p.rw.Store(int32(row))
	p.advanced = false
	p.hasJump = false
	p.finished = false
	p.ticksLeft = 0
	p.tickFrames = 0
}

// SetChannelVolume scales channel ch by gain in 0..1. Safe from either
// context; the mixer reads the value atomically per buffer.
func (p *Player) SetChannelVolume(ch int, gain float64) {
	if ch < 0 || ch >= len(p.gains) {
		return
	}
	if gain < 0 {
		gain = 0
	} else if gain > 1 {
		gain = 1
	}
	p.gains[ch].Store(math.Float64bits(gain))
}

// ChannelGain returns the current gain of channel ch.
func (p *Player) ChannelGain(ch int) float64 {
	if ch < 0 || ch >= len(p.gains) {
		return 0
	}
	return math.Float64frombits(p.gains[ch].Load())
}

// Render mixes up to len(out)/2 frames of interleaved stereo at the given
// output rate and advances the sequencer. It returns the number of frames
// generated, which is less than requested (possibly 0) once the end of the
// song is reached with looping off. The rate is taken per call, so pitch
// bending is just a different rate on the next buffer.
func (p *Player) Render(rate float64, out []int16) int {
	if p.finished || rate <= 0 {
		return 0
	}

	want := len(out) / 2
	done := 0
	for done < want {
		if p.tickFrames <= 0 {
			if p.advanceTick() {
				break // end of song
			}
			p.tickFrames = int(rate * 2.5 / float64(p.tempo))
			if p.tickFrames < 1 {
				p.tickFrames = 1
			}
		}
		n := want - done
		if n > p.tickFrames {
			n = p.tickFrames
		}
		p.mix(out[done*2:(done+n)*2], rate)
		done += n
		p.tickFrames -= n
	}
	return done
}

// advanceTick runs one sequencer tick: a fresh row on the first tick of a
// row, per-tick effect continuation on the rest. Returns true at the end
// of the song when looping is off.
func (p *Player) advanceTick() bool {
	if p.ticksLeft <= 0 {
		if p.processRow() {
			p.finished = true
			return true
		}
		p.ticksLeft = p.speed
	} else {
		for i := range p.voices {
			p.voices[i].tickEffect()
		}
	}
	p.ticksLeft--
	return false
}

// stepPosition advances to the next row, honoring pending jump/break
// effects. Returns false at the end of the song when looping is off.
func (p *Player) stepPosition() bool {
	order := p.CurrentOrder()
	row := p.CurrentRow()

	if p.hasJump {
		p.hasJump = false
		order = p.jumpOrd
		row = p.jumpRow
		if order >= len(p.song.Orders) {
			order = 0
		}
		if row >= RowsPerPattern {
			row = 0
		}
	} else {
		row++
		if row >= RowsPerPattern {
			row = 0
			order++
			if order >= len(p.song.Orders) {
				if !p.loop {
					return false
				}
				order = 0
			}
		}
	}

	p.ord.Store(int32(order))
	p.rw.Store(int32(row))
	return true
}

// processRow triggers the notes and row effects of the current row.
// Returns true at the end of the song.
func (p *Player) processRow() bool {
	if p.advanced {
		if !p.stepPosition() {
			return true
		}
	}
	p.advanced = true

	pattern := p.song.Orders[p.CurrentOrder()]
	data := p.song.Patterns[pattern]
	idx := p.CurrentRow() * p.song.Channels * noteBytes

	for ci := 0; ci < p.song.Channels; ci++ {
		v := &p.voices[ci]
		v.effectCount = 0

		sampNum, period, effect, param := decodeNote(data[idx : idx+noteBytes])
		idx += noteBytes

		// A sample number resets volume and arms the sample; a period
		// actually (re)triggers it unless a portamento or note delay is
		// in flight. Trigger logic per Micromod.
		if sampNum > 0 && sampNum <= maxSamples {
			smp := &p.song.Samples[sampNum-1]
			v.volume = smp.Volume
			v.fineTune = smp.FineTune
			v.sampleToPlay = sampNum - 1
			v.pos = 0
		}
		if period > 0 {
			v.portaPeriod = period
			if effect != fxPortaToNote && effect != fxPortaVolSlide &&
				!(effect == fxExtended && param>>4 == fxExtNoteDelay) {
				v.pos = 0
				v.period = (period * fineTuning[v.fineTune]) >> 12
				v.sample = v.sampleToPlay
			}
		}
		v.effect = effect
		v.param = param

		switch effect {
		case fxPortaToNote:
			if param > 0 {
				v.portaSpeed = int(param)
			}
		case fxSampleOffset:
			v.pos = uint(param) << 24
		case fxSetVolume:
			v.volume = clampVolume(int(param))
		case fxSetSpeed:
			if param >= 0x20 {
				p.tempo = int(param)
			} else if param > 0 {
				p.speed = int(param)
			}
		case fxPositionJump:
			p.jumpOrd = int(param)
			p.jumpRow = 0
			p.hasJump = true
		case fxPatternBreak:
			p.jumpOrd = p.CurrentOrder() + 1
			p.jumpRow = int(param>>4)*10 + int(param&0xF)
			p.hasJump = true
		case fxExtended:
			switch param >> 4 {
			case fxExtFineVolUp:
				v.volume = clampVolume(v.volume + int(param&0xF))
			case fxExtFineVolDown:
				v.volume = clampVolume(v.volume - int(param&0xF))
			case fxExtNoteCut:
				if param&0xF == 0 {
					v.volume = 0
				}
			}
		}
	}

	return false
}

// tickEffect continues a row effect on ticks 2..speed of the row.
func (v *voice) tickEffect() {
	v.effectCount++

	switch v.effect {
	case fxPortaUp:
		v.period -= int(v.param)
		if v.period < 1 {
			v.period = 1
		}
	case fxPortaDown:
		v.period += int(v.param)
		if v.period > 65535 {
			v.period = 65535
		}
	case fxPortaToNote:
		v.portaToNote()
	case fxPortaVolSlide:
		v.portaToNote()
		v.volumeSlide()
	case fxVolSlide:
		v.volumeSlide()
	case fxExtended:
		switch v.param >> 4 {
		case fxExtRetrig:
			if v.effectCount >= int(v.param&0xF) {
				v.effectCount = 0
				v.pos = 0
			}
		case fxExtNoteCut:
			if v.effectCount == int(v.param&0xF) {
				v.volume = 0
			}
		case fxExtNoteDelay:
			if v.effectCount == int(v.param&0xF) {
				if v.portaPeriod > 0 {
					v.period = (v.portaPeriod * fineTuning[v.fineTune]) >> 12
				}
				v.sample = v.sampleToPlay
				v.pos = 0
			}
		}
	}
}

func (v *voice) portaToNote() {
	period := v.period
	if period < v.portaPeriod {
		period += v.portaSpeed
		if period > v.portaPeriod {
			period = v.portaPeriod
		}
	} else if period > v.portaPeriod {
		period -= v.portaSpeed
		if period < v.portaPeriod {
			period = v.portaPeriod
		}
	}
	v.period = period
}

func (v *voice) volumeSlide() {
	vol := v.volume
	if v.param>>4 > 0 {
		vol += int(v.param >> 4)
	} else if v.param != 0 {
		vol -= int(v.param & 0xF)
	}
	v.volume = clampVolume(vol)
}

// mix accumulates every audible voice into out (interleaved stereo).
func (p *Player) mix(out []int16, rate float64) {
	for i := range out {
		out[i] = 0
	}
	frames := len(out) / 2

	for ci := range p.voices {
		v := &p.voices[ci]
		if v.sample < 0 || v.period < 1 {
			continue
		}
		smp := &p.song.Samples[v.sample]
		if smp.Length == 0 {
			continue
		}

		hz := palClock / float64(v.period*2)
		step := uint(hz / rate * 65536)
		if step == 0 {
			continue
		}

		end := uint(smp.Length) << 16
		loopEnd := end
		if smp.LoopLen > 0 {
			loopEnd = uint(smp.LoopStart+smp.LoopLen) << 16
			if loopEnd > end {
				loopEnd = end
			}
		}

		vol := int(float64(clampVolume(v.volume)) * p.ChannelGain(ci))
		if vol <= 0 {
			// Keep the cursor moving so an unmute doesn't time-warp.
			v.pos += step * uint(frames)
			if smp.LoopLen == 0 && v.pos >= end {
				v.sample = -1
			}
			continue
		}

		lvol := ((127 - v.pan) * vol) >> 7
		rvol := (v.pan * vol) >> 7
		pos := v.pos

		for f := 0; f < frames; f++ {
			if pos >= loopEnd {
				if smp.LoopLen == 0 {
					v.sample = -1
					break
				}
				pos = uint(smp.LoopStart) << 16
			}
			sd := int(smp.Data[pos>>16])
			out[f*2] += int16(sd * lvol)
			out[f*2+1] += int16(sd * rvol)
			pos += step
		}
		v.pos = pos
	}
}

func clampVolume(vol int) int {
	if vol < 0 {
		return 0
	}
	if vol > 64 {
		return 64
	}
	return vol
}
