package listing_test

import (
	"strings"
	"testing"

	"github.com/jackerseq/jacker"
	"github.com/jackerseq/jacker/listing"
)

func TestSongListing(t *testing.T) {
	song := jacker.NewSong()
	song.BPM = 90
	song.EndCue = 40
	pat := jacker.NewPattern("bass line", 16, 1)
	pat.AddEvent(jacker.Event{Frame: 0, Param: jacker.ParamNote, Value: 60})
	pat.AddEvent(jacker.Event{Frame: 4, Param: jacker.ParamNote, Value: jacker.NoteOff})
	i := song.AddPattern(pat)
	song.Timeline.Add(jacker.Placement{Frame: 16, Track: 3, Pattern: i})
	song.Timeline.Add(jacker.Placement{Frame: 32, Track: 1, Pattern: i})
	song.SetTrackName(1, "bass")
	l, err := listing.New()
	if err != nil {
		t.Fatal(err)
	}
	l.Events = true
	out, err := l.Song(song)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"90 BPM", "(3 bars)", "Bass Line", "2 uses", "C-4", "---", "Track 4      Bass Line", "bass         Bass Line"} {
		if !strings.Contains(out, want) {
			t.Errorf("listing does not contain %q:\n%s", want, out)
		}
	}
}

func TestEmptySongListing(t *testing.T) {
	l, err := listing.New()
	if err != nil {
		t.Fatal(err)
	}
	out, err := l.Song(jacker.NewSong())
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "none") || !strings.Contains(out, "empty") {
		t.Errorf("empty song listing:\n%s", out)
	}
}

func TestNoteName(t *testing.T) {
	tests := []struct {
		key      int
		expected string
	}{
		{60, "C-4"},
		{61, "C#4"},
		{0, "C--1"},
		{127, "G-9"},
		{jacker.NoteOff, "---"},
		{200, "???"},
	}
	for _, tt := range tests {
		if got := listing.NoteName(tt.key); got != tt.expected {
			t.Errorf("NoteName(%d) = %q, expected %q", tt.key, got, tt.expected)
		}
	}
}
