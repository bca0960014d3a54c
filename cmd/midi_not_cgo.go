//go:build !cgo

package cmd

import (
	"github.com/jackerseq/jacker/tracker"
	"github.com/sirupsen/logrus"
)

// NewMIDIOutput returns an output discarding all events: with no cgo, there
// is no MIDI driver.
func NewMIDIOutput(prefs tracker.Preferences, log *logrus.Entry) (tracker.PlayerOutput, func(), error) {
	log.Warn("built without cgo, MIDI output disabled")
	return tracker.NullOutput{}, func() {}, nil
}

func MIDIOutputNames(log *logrus.Entry) []string {
	return nil
}
