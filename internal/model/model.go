// Package model holds the shared TUI state: the engine handle, loaded-song
// metadata, the status line and the output meter history. The bubbletea
// Update loop is the only writer.
package model

import (
	"fmt"
	"log"

	"github.com/regroove/regroove/internal/engine"
)

// MeterHistorySize is how many render quanta of peak level the meter keeps.
const MeterHistorySize = 64

type Model struct {
	Perf *engine.Performance

	// Loaded song metadata, fixed after startup.
	SongPath   string
	SongTitle  string
	Channels   int
	OrderCount int

	// Terminal dimensions from the last WindowSizeMsg.
	Width  int
	Height int

	StatusMessage string

	// Ring of recent peak levels, newest at MeterPos-1.
	MeterHistory [MeterHistorySize]float64
	MeterPos     int

	Quitting bool
}

func NewModel(perf *engine.Performance, path, title string) *Model {
	return &Model{
		Perf:       perf,
		SongPath:   path,
		SongTitle:  title,
		Channels:   perf.Decoder().ChannelCount(),
		OrderCount: perf.Decoder().OrderCount(),
	}
}

// SetStatus replaces the status line and mirrors it to the log.
func (m *Model) SetStatus(format string, args ...any) {
	m.StatusMessage = fmt.Sprintf(format, args...)
	log.Printf("status: %s", m.StatusMessage)
}

// PushMeterSample records one quantum's peak level.
func (m *Model) PushMeterSample(v float64) {
	if v < 0 {
		v = 0
	} else if v > 1 {
		v = 1
	}
	m.MeterHistory[m.MeterPos] = v
	m.MeterPos = (m.MeterPos + 1) % MeterHistorySize
}

// MeterSamples returns the meter history oldest first.
func (m *Model) MeterSamples() []float64 {
	out := make([]float64, MeterHistorySize)
	for i := 0; i < MeterHistorySize; i++ {
		out[i] = m.MeterHistory[(m.MeterPos+i)%MeterHistorySize]
	}
	return out
}

// ValidOrder reports whether order is inside the song's order list.
func (m *Model) ValidOrder(order int) bool {
	return order >= 0 && order < m.OrderCount
}
