package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/jackerseq/jacker/cmd"
	"github.com/jackerseq/jacker/listing"
	"github.com/jackerseq/jacker/oto"
	"github.com/jackerseq/jacker/tracker"
	"github.com/jackerseq/jacker/version"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var config struct {
	midiOutput string
	loop       bool
	from       int
	logLevel   string
	events     bool
	output     string
}

const (
	updateInterval = 20 * time.Millisecond
	stopTimeout    = 500 * time.Millisecond
)

var rootCmd = &cobra.Command{
	Use:   "jacker-play [flags] SONG",
	Short: "Play a jacker song to a MIDI output",
	Long: `jacker-play plays a song file (.yml or .json) to a MIDI output port.
The audio device is used as the clock of the sequencer; press Ctrl-C to stop.`,
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runPlay,
}

var listCmd = &cobra.Command{
	Use:   "list SONG",
	Short: "Print a summary of the patterns and the timeline of a song",
	Args:  cobra.ExactArgs(1),
	RunE:  runList,
}

var exportCmd = &cobra.Command{
	Use:   "export SONG",
	Short: "Render a song into a standard MIDI file",
	Args:  cobra.ExactArgs(1),
	RunE:  runExport,
}

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List the MIDI output ports",
	Args:  cobra.NoArgs,
	Run: func(c *cobra.Command, args []string) {
		_, log := setup(c)
		for _, name := range cmd.MIDIOutputNames(log) {
			fmt.Println(name)
		}
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	Run: func(c *cobra.Command, args []string) {
		fmt.Println(version.Get())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&config.logLevel, "log-level", "l", "",
		"Log level: panic, fatal, error, warn, info, debug or trace (default from preferences)")
	rootCmd.Flags().StringVarP(&config.midiOutput, "midi-output", "m", "",
		"Play to the first MIDI output whose name starts with this (default from preferences)")
	rootCmd.Flags().BoolVar(&config.loop, "loop", false,
		"Enable or disable the loop of the song (default as saved in the song)")
	rootCmd.Flags().IntVarP(&config.from, "from", "f", 0,
		"Start playing from this frame")
	listCmd.Flags().BoolVarP(&config.events, "events", "e", false,
		"List the events of each pattern")
	exportCmd.Flags().StringVarP(&config.output, "output", "o", "",
		"Output file (default: the song file with the extension .mid)")
	rootCmd.AddCommand(listCmd, exportCmd, portsCmd, versionCmd)
	rootCmd.Version = version.Get().Short()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setup(c *cobra.Command) (tracker.Preferences, *logrus.Entry) {
	prefs := tracker.MakePreferences()
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	level := prefs.LogLevel
	if config.logLevel != "" {
		level = config.logLevel
	}
	if l, err := logrus.ParseLevel(level); err == nil {
		logger.SetLevel(l)
	} else {
		logger.WithError(err).Warn("invalid log level, using info")
	}
	log := logrus.NewEntry(logger).WithField("command", c.Name())
	if prefs.YmlError != nil {
		log.WithError(prefs.YmlError).Warn("preferences.yml ignored")
	}
	if c.Flags().Changed("midi-output") {
		prefs.MIDIOutput = config.midiOutput
	}
	return prefs, log
}

func loadModel(path string, prefs tracker.Preferences, log *logrus.Entry) (*tracker.Model, *tracker.Broker, error) {
	broker := tracker.NewBroker(prefs.ToPlayerBuffer, prefs.ToModelBuffer)
	model := tracker.NewModel(broker, log)
	model.SetMaxUndo(prefs.MaxUndo)
	if err := model.Load(path); err != nil {
		return nil, nil, fmt.Errorf("could not load %v: %w", path, err)
	}
	return model, broker, nil
}

func runPlay(c *cobra.Command, args []string) error {
	prefs, log := setup(c)
	model, broker, err := loadModel(args[0], prefs, log)
	if err != nil {
		return err
	}
	if c.Flags().Changed("loop") {
		model.SetLoopEnabled(config.loop)
	}
	model.Subscribe(func(ch tracker.Change) {
		if ch.Kind == tracker.TransportChange {
			log.WithFields(logrus.Fields{"state": ch.State, "frame": ch.Frame}).Debug("transport")
		}
	})
	out, closeOutput, err := cmd.NewMIDIOutput(prefs, log)
	if err != nil {
		return err
	}
	defer closeOutput()
	player := tracker.NewPlayer(broker)
	clock := tracker.NewClock(player, out, prefs.SampleRate)
	audioContext, err := oto.NewContext(prefs.SampleRate, prefs.AudioBuffer)
	if err != nil {
		return err
	}
	defer audioContext.Close()
	stream, err := audioContext.Play(clock)
	if err != nil {
		return err
	}
	defer stream.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	model.PlayFrom(config.from)
	log.WithFields(logrus.Fields{"song": args[0], "from": config.from}).Info("playing")
	ticker := time.NewTicker(updateInterval)
	defer ticker.Stop()
	started := false
	for {
		select {
		case <-ctx.Done():
			log.Info("interrupted")
			return stopPlayback(model)
		case <-ticker.C:
			model.Update()
			if model.Playing() {
				started = true
			} else if started {
				log.Info("end of song")
				return nil
			}
		}
	}
}

// stopPlayback stops the player and waits until it has released its notes.
func stopPlayback(model *tracker.Model) error {
	model.Stop()
	deadline := time.Now().Add(stopTimeout)
	for time.Now().Before(deadline) {
		model.Update()
		if !model.Playing() {
			return nil
		}
		time.Sleep(updateInterval)
	}
	return fmt.Errorf("player did not stop within %v", stopTimeout)
}

func runList(c *cobra.Command, args []string) error {
	prefs, log := setup(c)
	model, _, err := loadModel(args[0], prefs, log)
	if err != nil {
		return err
	}
	l, err := listing.New()
	if err != nil {
		return err
	}
	l.Events = config.events
	s, err := l.Song(model.Song())
	if err != nil {
		return err
	}
	fmt.Print(s)
	return nil
}

func runExport(c *cobra.Command, args []string) error {
	prefs, log := setup(c)
	model, _, err := loadModel(args[0], prefs, log)
	if err != nil {
		return err
	}
	path := config.output
	if path == "" {
		path = strings.TrimSuffix(args[0], filepath.Ext(args[0])) + ".mid"
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("could not create %v: %w", path, err)
	}
	if err := model.ExportMIDI(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("could not write %v: %w", path, err)
	}
	log.WithField("path", path).Info("exported")
	return nil
}
