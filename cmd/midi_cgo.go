//go:build cgo

package cmd

import (
	"github.com/jackerseq/jacker/tracker"
	"github.com/jackerseq/jacker/tracker/gomidi"
	"github.com/sirupsen/logrus"
)

// NewMIDIOutput opens the MIDI output port whose name starts with
// prefs.MIDIOutput. The returned function closes the port and the driver.
func NewMIDIOutput(prefs tracker.Preferences, log *logrus.Entry) (tracker.PlayerOutput, func(), error) {
	context := gomidi.NewContext(log)
	out, err := context.OpenOutput(prefs.MIDIOutput, prefs)
	if err != nil {
		context.Close()
		return nil, nil, err
	}
	return out, func() {
		if err := out.Close(); err != nil {
			log.WithError(err).Warn("closing MIDI output failed")
		}
		context.Close()
	}, nil
}

// MIDIOutputNames lists the MIDI output ports of the system.
func MIDIOutputNames(log *logrus.Entry) []string {
	context := gomidi.NewContext(log)
	defer context.Close()
	var ret []string
	for out := range context.Outputs {
		ret = append(ret, out.String())
	}
	return ret
}
