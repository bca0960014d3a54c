package tracker_test

import (
	"testing"
	"time"

	"github.com/jackerseq/jacker/tracker"
)

func TestParsePreferences(t *testing.T) {
	tests := []struct {
		name       string
		yml        string
		sampleRate int
		velocity   int
		output     string
		valid      bool
	}{
		{"defaults", "", 44100, 100, "", true},
		{"override", "samplerate: 48000\nmidioutput: Synth", 48000, 100, "Synth", true},
		{"out of range", "velocity: 300\naudiobuffer: -1", 44100, 100, "", true},
		{"unknown key", "colour: blue", 44100, 100, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := tracker.ParsePreferences([]byte(tt.yml))
			if (err == nil) != tt.valid {
				t.Fatalf("ParsePreferences error = %v, expected valid = %v", err, tt.valid)
			}
			if p.SampleRate != tt.sampleRate || p.Velocity != tt.velocity || p.MIDIOutput != tt.output {
				t.Fatalf("got %+v", p)
			}
			if p.AudioBuffer <= 0 || p.ToPlayerBuffer < 2 || p.ToModelBuffer < 2 || p.MIDIBuffer < 2 {
				t.Fatalf("buffer sizes not positive: %+v", p)
			}
		})
	}
}

func TestAlertsNamedReplace(t *testing.T) {
	var a tracker.Alerts
	a.Add("first", tracker.Info)
	a.AddNamed("save", "saving failed", tracker.Error)
	a.AddNamed("save", "saving failed again", tracker.Error)
	if a.Len() != 2 {
		t.Fatalf("Len = %d, expected 2", a.Len())
	}
	for _, alert := range a.Iterate {
		if alert.Priority != tracker.Error || alert.Message != "saving failed again" {
			t.Fatalf("first alert = %+v, expected the latest error", alert)
		}
		break
	}
	a.Update(time.Hour)
	a.Update(time.Hour)
	if a.Len() != 0 {
		t.Fatalf("alerts did not expire, %d left", a.Len())
	}
}
