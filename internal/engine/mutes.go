package engine

import (
	"log"
	"sync/atomic"
)

// ChannelVolumer is the decoder's interactive capability: per-channel gain
// control callable from either execution context. Decoders that cannot set
// channel volume simply don't implement it and mutes degrade to no-ops.
type ChannelVolumer interface {
	SetChannelVolume(channel int, gain float64)
}

// MuteTable holds one flag per channel. The control context toggles flags,
// the render context re-reads them after every reposition. Flags are
// atomics so a one-quantum-stale read is the worst case.
type MuteTable struct {
	vol   ChannelVolumer // nil when the capability is unavailable
	flags []atomic.Bool
}

// NewMuteTable builds a table for channels channels. vol may be nil; the
// degradation is logged once here rather than on every keypress.
func NewMuteTable(channels int, vol ChannelVolumer) *MuteTable {
	if vol == nil {
		log.Printf("Channel volume control unavailable; mute keys are no-ops")
	}
	return &MuteTable{
		vol:   vol,
		flags: make([]atomic.Bool, channels),
	}
}

// Channels returns the channel count of the loaded song.
func (t *MuteTable) Channels() int { return len(t.flags) }

// Muted reports whether channel ch is muted. Out-of-range channels read as
// unmuted.
func (t *MuteTable) Muted(ch int) bool {
	if ch < 0 || ch >= len(t.flags) {
		return false
	}
	return t.flags[ch].Load()
}

// Toggle flips channel ch and applies the new gain immediately. Returns the
// new muted state. Out-of-range channels are ignored (false).
func (t *MuteTable) Toggle(ch int) bool {
	if ch < 0 || ch >= len(t.flags) {
		log.Printf("Channel %d out of range (channels=%d)", ch+1, len(t.flags))
		return false
	}
	muted := !t.flags[ch].Load()
	t.flags[ch].Store(muted)
	t.apply(ch, muted)
	log.Printf("Channel %d %s", ch+1, mutedWord(muted))
	return muted
}

// MuteAll silences every channel.
func (t *MuteTable) MuteAll() {
	for ch := range t.flags {
		t.flags[ch].Store(true)
		t.apply(ch, true)
	}
	log.Printf("All channels muted")
}

// UnmuteAll restores every channel to full volume.
func (t *MuteTable) UnmuteAll() {
	for ch := range t.flags {
		t.flags[ch].Store(false)
		t.apply(ch, false)
	}
	log.Printf("All channels unmuted")
}

// Reapply pushes the whole table into the decoder. Repositioning can reset
// channel volume state in the decoder, so every seek is followed by this.
func (t *MuteTable) Reapply() {
	if t.vol == nil {
		return
	}
	for ch := range t.flags {
		t.apply(ch, t.flags[ch].Load())
	}
}

func (t *MuteTable) apply(ch int, muted bool) {
	if t.vol == nil {
		return
	}
	if muted {
		t.vol.SetChannelVolume(ch, 0)
	} else {
		t.vol.SetChannelVolume(ch, 1)
	}
}

func mutedWord(muted bool) string {
	if muted {
		return "muted"
	}
	return "unmuted"
}
