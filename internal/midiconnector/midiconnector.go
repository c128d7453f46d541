// Package midiconnector binds a MIDI input port to the perform surface:
// one octave of notes toggles channel mutes, the next octave carries
// transport actions. Like the OSC remote it forwards messages into the
// bubbletea program instead of touching the engine from the MIDI callback.
package midiconnector

import (
	"fmt"
	"log"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"github.com/regroove/regroove/internal/input"
)

// Note layout: C3..B3 toggle channel mutes 1..12, then one action octave.
const (
	muteBaseNote  = 48 // C3
	muteNoteCount = 12

	noteRetrigger = 60 // C4
	notePrevOrder = 62 // D4
	noteNextOrder = 64 // E4
	noteLoopTill  = 65 // F4
	noteMode      = 67 // G4
	notePause     = 69 // A4
)

// Sender is the slice of tea.Program the connector needs.
type Sender interface {
	Send(msg tea.Msg)
}

type Connector struct {
	port drivers.In
	stop func()
}

// Devices lists the connected MIDI input port names.
func Devices() []string {
	ins := midi.GetInPorts()
	names := make([]string, 0, len(ins))
	for _, in := range ins {
		names = append(names, in.String())
	}
	return names
}

// Open connects to the first input port whose name contains name
// (case-insensitive) and starts forwarding note-ons to send.
func Open(name string, send Sender) (*Connector, error) {
	var port drivers.In
	for _, in := range midi.GetInPorts() {
		if strings.Contains(strings.ToLower(in.String()), strings.ToLower(name)) {
			port = in
			break
		}
	}
	if port == nil {
		return nil, fmt.Errorf("MIDI input matching %q not found (have %v)", name, Devices())
	}

	stop, err := midi.ListenTo(port, func(msg midi.Message, timestampms int32) {
		var ch, key, vel uint8
		if !msg.GetNoteOn(&ch, &key, &vel) || vel == 0 {
			return
		}
		if m, ok := NoteToMsg(int(key)); ok {
			send.Send(m)
		}
	}, midi.HandleError(func(listenErr error) {
		log.Printf("MIDI listener error, device likely disconnected: %v", listenErr)
	}))
	if err != nil {
		return nil, fmt.Errorf("starting MIDI listener on %q: %w", port.String(), err)
	}

	log.Printf("MIDI input connected: %s", port.String())
	return &Connector{port: port, stop: stop}, nil
}

// NoteToMsg maps a note number to its remote message. The bool is false for
// unmapped notes.
func NoteToMsg(key int) (tea.Msg, bool) {
	if key >= muteBaseNote && key < muteBaseNote+muteNoteCount {
		return input.RemoteMuteMsg{Channel: key - muteBaseNote}, true
	}
	switch key {
	case noteRetrigger:
		return input.RemoteRetriggerMsg{}, true
	case notePrevOrder:
		return input.RemoteStepOrderMsg{Delta: -1}, true
	case noteNextOrder:
		return input.RemoteStepOrderMsg{Delta: 1}, true
	case noteLoopTill:
		return input.RemoteLoopTillMsg{Row: -1}, true
	case noteMode:
		return input.RemoteToggleModeMsg{}, true
	case notePause:
		return input.RemoteTogglePlayMsg{}, true
	}
	return nil, false
}

// Close stops the listener and releases the driver.
func (c *Connector) Close() {
	if c.stop != nil {
		c.stop()
	}
	midi.CloseDriver()
}
