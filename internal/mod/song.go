// Package mod decodes and renders ProTracker modules. It is the
// module-decoding collaborator behind the engine's Decoder interface: it
// parses MOD files, sequences rows and ticks, and mixes interleaved stereo
// PCM at an arbitrary output rate. Per-channel gain control (the
// "interactive" capability the mute table needs) is exposed through
// SetChannelVolume and is safe to call from the control context.
package mod

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"
)

const (
	// RowsPerPattern is fixed by the MOD format.
	RowsPerPattern = 64

	maxSamples  = 31
	noteBytes   = 4
	orderTable  = 128
	defaultBPM  = 125
	defaultTick = 6
)

// Sample is one instrument: metadata plus signed 8-bit PCM.
type Sample struct {
	Name      string
	Length    int
	FineTune  int // 0..15, 8 = no fine tuning
	Volume    int // 0..64
	LoopStart int
	LoopLen   int // 0 = no loop
	Data      []int8
}

// Song is a parsed MOD file: order list, pattern data and samples.
type Song struct {
	Title    string
	Channels int
	Orders   []int
	Patterns [][]byte // one flat pattern per entry, 64 rows * channels * 4 bytes
	Samples  [maxSamples]Sample
}

func readSampleHeader(r *bytes.Reader) (Sample, error) {
	raw := struct {
		Name      [22]byte
		Length    uint16
		FineTune  uint8
		Volume    uint8
		LoopStart uint16
		LoopLen   uint16
	}{}
	if err := binary.Read(r, binary.BigEndian, &raw); err != nil {
		return Sample{}, err
	}

	s := Sample{
		Name:      strings.TrimRight(string(raw.Name[:]), "\x00"),
		Length:    int(raw.Length) * 2, // stored in words
		FineTune:  int(raw.FineTune&7) - int(raw.FineTune&8) + 8,
		Volume:    int(raw.Volume),
		LoopStart: int(raw.LoopStart) * 2,
		LoopLen:   int(raw.LoopLen) * 2,
	}
	// Loop lengths below 4 bytes mean "no loop" in practice.
	if s.LoopLen < 4 {
		s.LoopLen = 0
	}
	return s, nil
}

// channelsFromTag decodes the channel count from the format signature at
// offset 1080: "M.K." is the classic 4-channel form, "6CHN"/"8CHN" style
// tags carry one digit, "10CH".."32CH" carry two.
func channelsFromTag(tag []byte) (int, error) {
	switch string(tag[2:]) {
	case "K.", "K!":
		return 4, nil
	case "HN":
		return int(tag[0] - '0'), nil
	case "CH":
		return int(tag[0]-'0')*10 + int(tag[1]-'0'), nil
	}
	return 0, fmt.Errorf("unrecognized module signature %q", string(tag))
}

// NewSongFromBytes parses a MOD file. A format error here is fatal to the
// caller; there is no partial recovery.
func NewSongFromBytes(data []byte) (*Song, error) {
	r := bytes.NewReader(data)

	title := make([]byte, 20)
	if _, err := r.Read(title); err != nil {
		return nil, fmt.Errorf("reading title: %w", err)
	}
	song := &Song{Title: strings.TrimRight(string(title), "\x00")}

	for i := 0; i < maxSamples; i++ {
		s, err := readSampleHeader(r)
		if err != nil {
			return nil, fmt.Errorf("reading sample %d header: %w", i+1, err)
		}
		song.Samples[i] = s
	}

	orders := struct {
		Count   uint8
		Restart uint8
		Data    [orderTable]byte
	}{}
	if err := binary.Read(r, binary.BigEndian, &orders); err != nil {
		return nil, fmt.Errorf("reading order table: %w", err)
	}
	if orders.Count == 0 || int(orders.Count) > orderTable {
		return nil, fmt.Errorf("invalid order count %d", orders.Count)
	}
	song.Orders = make([]int, orders.Count)
	for i := range song.Orders {
		song.Orders[i] = int(orders.Data[i])
	}

	// Pattern count is implied: one past the highest pattern referenced
	// anywhere in the full 128-entry table.
	patterns := 0
	for _, o := range orders.Data {
		if int(o) > patterns {
			patterns = int(o)
		}
	}
	patterns++

	tag := make([]byte, 4)
	if n, err := r.Read(tag); n != 4 || err != nil {
		return nil, fmt.Errorf("reading format signature: %w", err)
	}
	channels, err := channelsFromTag(tag)
	if err != nil {
		return nil, err
	}
	if channels < 1 || channels > 32 {
		return nil, fmt.Errorf("implausible channel count %d", channels)
	}
	song.Channels = channels

	song.Patterns = make([][]byte, patterns)
	patternSize := RowsPerPattern * channels * noteBytes
	for i := range song.Patterns {
		song.Patterns[i] = make([]byte, patternSize)
		if _, err := r.Read(song.Patterns[i]); err != nil {
			return nil, fmt.Errorf("reading pattern %d: %w", i, err)
		}
	}

	for i := 0; i < maxSamples; i++ {
		// Some files record a sample length longer than the bytes that
		// remain; read what is actually there.
		n := song.Samples[i].Length
		if n > r.Len() {
			n = r.Len()
		}
		song.Samples[i].Data = make([]int8, n)
		if err := binary.Read(r, binary.LittleEndian, song.Samples[i].Data); err != nil {
			return nil, fmt.Errorf("reading sample %d data: %w", i+1, err)
		}
		song.Samples[i].Length = n
	}

	return song, nil
}

// decodeNote unpacks one 4-byte note cell: sample number, Amiga period,
// effect and effect parameter.
func decodeNote(cell []byte) (sample, period int, effect, param byte) {
	sample = int(cell[0]&0xF0 | cell[2]>>4)
	period = int(cell[0]&0xF)<<8 | int(cell[1])
	effect = cell[2] & 0xF
	param = cell[3]
	return
}
