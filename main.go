package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/regroove/regroove/internal/audio"
	"github.com/regroove/regroove/internal/config"
	"github.com/regroove/regroove/internal/engine"
	"github.com/regroove/regroove/internal/input"
	"github.com/regroove/regroove/internal/midiconnector"
	"github.com/regroove/regroove/internal/mod"
	"github.com/regroove/regroove/internal/model"
	"github.com/regroove/regroove/internal/oscremote"
	"github.com/regroove/regroove/internal/views"
)

var (
	Version = "dev"

	// Command-line configuration
	flags struct {
		debug        string
		configPath   string
		oscPort      int
		midiDevice   string
		bufferFrames int
	}
)

var rootCmd = &cobra.Command{
	Use:   "regroove song.mod",
	Short: "Live-remix performance player for tracker modules",
	Long: `Regroove plays a ProTracker module and hands you the arrangement:
queue patterns, pin and loop them, mute channels, retrigger and bend
pitch while the audio keeps running. Every repositioning lands on a
pattern or row boundary so the groove never stumbles.

Control it from the keyboard, over OSC, or from a MIDI pad.`,
	Version: Version,
	Args:    cobra.ExactArgs(1),
	RunE:    runRegroove,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flags.debug, "log", "l", "",
		"Write debug logs to specified file (empty disables)")
	rootCmd.PersistentFlags().StringVar(&flags.configPath, "config", "",
		"Path to config file (default ~/.config/regroove/config.json)")
	rootCmd.Flags().IntVar(&flags.oscPort, "osc-port", 0,
		"UDP port for the OSC remote (0 disables)")
	rootCmd.Flags().StringVar(&flags.midiDevice, "midi", "",
		"Substring of the MIDI input port to use (empty disables)")
	rootCmd.Flags().IntVar(&flags.bufferFrames, "buffer", 0,
		"Audio buffer size in frames")

	rootCmd.AddCommand(renderCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setupLogging() (*os.File, error) {
	if flags.debug == "" {
		log.SetOutput(io.Discard)
		return nil, nil
	}
	f, err := tea.LogToFile(flags.debug, "debug")
	if err != nil {
		return nil, err
	}
	log.SetOutput(f)
	// Include file and line for clickable links in editors.
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	return f, nil
}

// loadConfig merges the config file with any explicitly set flags.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path := flags.configPath
	if path == "" {
		var err error
		if path, err = config.DefaultPath(); err != nil {
			return config.Config{}, err
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}
	if cmd.Flags().Changed("osc-port") {
		cfg.OSCPort = flags.oscPort
	}
	if cmd.Flags().Changed("midi") {
		cfg.MidiDevice = flags.midiDevice
	}
	if cmd.Flags().Changed("buffer") {
		cfg.BufferFrames = flags.bufferFrames
	}
	return cfg, nil
}

func runRegroove(cmd *cobra.Command, args []string) error {
	logFile, err := setupLogging()
	if err != nil {
		return err
	}
	if logFile != nil {
		defer logFile.Close()
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log.Printf("regroove %s starting, config: %+v", Version, cfg)

	songPath := args[0]
	data, err := os.ReadFile(songPath)
	if err != nil {
		return fmt.Errorf("reading %s: %w", songPath, err)
	}
	song, err := mod.NewSongFromBytes(data)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", songPath, err)
	}
	player := mod.NewPlayer(song)
	log.Printf("loaded %q: %d channels, %d orders", song.Title, song.Channels, len(song.Orders))

	perf := engine.New(player, audio.SampleRate)
	perf.SetPitchStep(cfg.PitchStep)

	device, err := audio.Open(perf, cfg.BufferFrames)
	if err != nil {
		return err
	}
	device.Start()

	m := model.NewModel(perf, songPath, song.Title)
	pm := &PlayerModel{model: m}
	p := tea.NewProgram(pm, tea.WithAltScreen())

	if cfg.OSCPort > 0 {
		oscremote.NewServer(cfg.OSCPort, p).Start()
	}

	var midiConn *midiconnector.Connector
	if cfg.MidiDevice != "" {
		midiConn, err = midiconnector.Open(cfg.MidiDevice, p)
		if err != nil {
			// A missing pad should not stop the gig.
			log.Printf("MIDI disabled: %v", err)
		}
	}

	// Tear down in reverse order of setup, on signal or normal exit.
	cleanup := func() {
		if midiConn != nil {
			midiConn.Close()
		}
		if err := device.Close(); err != nil {
			log.Printf("closing audio: %v", err)
		}
	}
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigc
		cleanup()
		os.Exit(1)
	}()

	_, err = p.Run()
	cleanup()
	return err
}

// PlayerModel wraps the shared model for bubbletea.
type PlayerModel struct {
	model *model.Model
}

// uiTickMsg fires at a steady UI rate (30fps) to redraw the view and pull
// the meter; playback itself runs in the audio callback.
type uiTickMsg struct{}

func tickUI() tea.Cmd {
	return tea.Tick(time.Second/30, func(time.Time) tea.Msg {
		return uiTickMsg{}
	})
}

func (pm *PlayerModel) Init() tea.Cmd {
	return tickUI()
}

func (pm *PlayerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		pm.model.Width = msg.Width
		pm.model.Height = msg.Height
		return pm, nil

	case uiTickMsg:
		pm.model.PushMeterSample(pm.model.Perf.Peak())
		return pm, tickUI()

	case tea.KeyMsg:
		return pm, input.HandlePerformInput(pm.model, msg)
	}

	input.HandleRemoteMsg(pm.model, msg)
	return pm, nil
}

func (pm *PlayerModel) View() string {
	if pm.model.Quitting {
		return ""
	}
	return views.RenderPerformView(pm.model)
}
