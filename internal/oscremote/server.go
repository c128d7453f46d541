// Package oscremote exposes the perform surface over OSC so external gear
// (pads, sequencers, a laptop across the room) can drive the same commands
// as the keyboard. Handlers run on the OSC goroutine and only forward
// messages into the bubbletea program; the Update goroutine stays the
// command queue's sole producer.
package oscremote

import (
	"fmt"
	"log"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/hypebeast/go-osc/osc"

	"github.com/regroove/regroove/internal/input"
)

// Sender is the slice of tea.Program the remote needs.
type Sender interface {
	Send(msg tea.Msg)
}

type Server struct {
	server *osc.Server
	port   int
}

// NewServer wires the /regroove address space onto send.
func NewServer(port int, send Sender) *Server {
	return &Server{
		server: &osc.Server{Addr: fmt.Sprintf(":%d", port), Dispatcher: newDispatcher(send)},
		port:   port,
	}
}

func newDispatcher(send Sender) *osc.StandardDispatcher {
	d := osc.NewStandardDispatcher()

	d.AddMsgHandler("/regroove/pause", func(msg *osc.Message) {
		send.Send(input.RemoteTogglePlayMsg{})
	})
	d.AddMsgHandler("/regroove/retrigger", func(msg *osc.Message) {
		send.Send(input.RemoteRetriggerMsg{})
	})
	d.AddMsgHandler("/regroove/mode", func(msg *osc.Message) {
		send.Send(input.RemoteToggleModeMsg{})
	})
	d.AddMsgHandler("/regroove/queue", func(msg *osc.Message) {
		if n, ok := intArg(msg, 0); ok {
			send.Send(input.RemoteQueueOrderMsg{Order: n})
		}
	})
	d.AddMsgHandler("/regroove/step", func(msg *osc.Message) {
		if n, ok := intArg(msg, 0); ok {
			send.Send(input.RemoteStepOrderMsg{Delta: n})
		}
	})
	d.AddMsgHandler("/regroove/looptill", func(msg *osc.Message) {
		if n, ok := intArg(msg, 0); ok {
			send.Send(input.RemoteLoopTillMsg{Row: n})
		}
	})
	d.AddMsgHandler("/regroove/mute", func(msg *osc.Message) {
		if n, ok := intArg(msg, 0); ok {
			send.Send(input.RemoteMuteMsg{Channel: n})
		}
	})
	d.AddMsgHandler("/regroove/muteall", func(msg *osc.Message) {
		send.Send(input.RemoteMuteAllMsg{})
	})
	d.AddMsgHandler("/regroove/unmuteall", func(msg *osc.Message) {
		send.Send(input.RemoteUnmuteAllMsg{})
	})
	d.AddMsgHandler("/regroove/pitch", func(msg *osc.Message) {
		if n, ok := intArg(msg, 0); ok {
			send.Send(input.RemotePitchMsg{Steps: n})
		}
	})

	return d
}

// Start serves in the background. Startup errors (port taken) are logged,
// not fatal; the keyboard surface still works.
func (s *Server) Start() {
	go func() {
		log.Printf("Starting OSC server on port %d", s.port)
		if err := s.server.ListenAndServe(); err != nil {
			log.Printf("Error starting OSC server: %v", err)
		}
	}()
}

// intArg reads argument i as an integer, accepting the numeric types OSC
// clients actually send.
func intArg(msg *osc.Message, i int) (int, bool) {
	if i >= len(msg.Arguments) {
		log.Printf("OSC %s: missing argument %d", msg.Address, i)
		return 0, false
	}
	switch v := msg.Arguments[i].(type) {
	case int32:
		return int(v), true
	case int64:
		return int(v), true
	case float32:
		return int(v), true
	case float64:
		return int(v), true
	}
	log.Printf("OSC %s: argument %d is not numeric: %v", msg.Address, i, msg.Arguments[i])
	return 0, false
}
