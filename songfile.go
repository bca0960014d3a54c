package jacker

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// FormatTag identifies jacker song files and FormatVersion is the newest
// version of the file layout this package understands.
const (
	FormatTag     = "jacker-song"
	FormatVersion = 1
)

// ErrBadFormat is returned when a file does not carry the jacker song format
// tag, or has a version that is too new.
var ErrBadFormat = errors.New("not a jacker song")

type (
	songFile struct {
		Format        string          `json:"format" yaml:"format"`
		Version       int             `json:"version" yaml:"version"`
		EndCue        int             `json:"end_cue" yaml:"end_cue"`
		FramesPerBeat int             `json:"frames_per_beat" yaml:"frames_per_beat"`
		BeatsPerBar   int             `json:"beats_per_bar" yaml:"beats_per_bar"`
		BPM           int             `json:"beats_per_minute" yaml:"beats_per_minute"`
		Loop          Loop            `json:"loop" yaml:"loop,flow"`
		EnableLoop    bool            `json:"enable_loop,omitempty" yaml:"enable_loop,omitempty"`
		Tracks        []trackFile     `json:"tracks,omitempty" yaml:"tracks,omitempty"`
		Patterns      []patternFile   `json:"patterns,omitempty" yaml:"patterns,omitempty"`
		Song          []placementFile `json:"song,omitempty" yaml:"song,omitempty"`
	}

	trackFile struct {
		Name string `json:"name" yaml:"name"`
	}

	patternFile struct {
		Name         string  `json:"name" yaml:"name"`
		Length       int     `json:"length" yaml:"length"`
		ChannelCount int     `json:"channel_count" yaml:"channel_count"`
		Events       []Event `json:"events,omitempty" yaml:"events,omitempty,flow"`
	}

	placementFile struct {
		Frame   int `json:"frame" yaml:"frame"`
		Track   int `json:"track" yaml:"track"`
		Pattern int `json:"pattern" yaml:"pattern"`
	}

	// LoadReport tells what had to be dropped or defaulted while reading a
	// song file.
	LoadReport struct {
		DroppedEvents     int
		DroppedPlacements int
		DefaultedFields   []string
	}
)

// Lossy reports whether anything was dropped or defaulted.
func (r LoadReport) Lossy() bool {
	return r.DroppedEvents > 0 || r.DroppedPlacements > 0 || len(r.DefaultedFields) > 0
}

// MarshalSong encodes the song as JSON if asJSON is set, YAML otherwise.
// Patterns are written in library order, skipping deleted slots, and the
// placements refer to them by their position in the written list.
func MarshalSong(s *Song, asJSON bool) ([]byte, error) {
	f := songFile{
		Format:        FormatTag,
		Version:       FormatVersion,
		EndCue:        s.EndCue,
		FramesPerBeat: s.FramesPerBeat,
		BeatsPerBar:   s.BeatsPerBar,
		BPM:           s.BPM,
		Loop:          s.Loop,
		EnableLoop:    s.EnableLoop,
	}
	for _, t := range s.Tracks {
		f.Tracks = append(f.Tracks, trackFile{Name: t.Name})
	}
	index := make(map[int]int, len(s.Patterns))
	for i, p := range s.Patterns {
		if p == nil {
			continue
		}
		index[i] = len(f.Patterns)
		pf := patternFile{Name: p.Name, Length: p.Length(), ChannelCount: p.ChannelCount()}
		for e := range p.All() {
			pf.Events = append(pf.Events, e)
		}
		f.Patterns = append(f.Patterns, pf)
	}
	for p := range s.Timeline.All() {
		i, ok := index[p.Pattern]
		if !ok {
			continue
		}
		f.Song = append(f.Song, placementFile{Frame: p.Frame, Track: p.Track, Pattern: i})
	}
	if asJSON {
		return json.MarshalIndent(f, "", "  ")
	}
	return yaml.Marshal(f)
}

// WriteSong writes the song to w. See MarshalSong.
func WriteSong(w io.Writer, s *Song, asJSON bool) error {
	b, err := MarshalSong(s, asJSON)
	if err != nil {
		return fmt.Errorf("could not marshal song: %w", err)
	}
	if _, err := w.Write(b); err != nil {
		return fmt.Errorf("could not write song: %w", err)
	}
	return nil
}

// ReadSong reads a song written by WriteSong, in either JSON or YAML. See
// UnmarshalSong.
func ReadSong(r io.Reader) (*Song, LoadReport, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, LoadReport{}, fmt.Errorf("could not read song: %w", err)
	}
	return UnmarshalSong(b)
}

// UnmarshalSong decodes a song. JSON is valid YAML, so both are parsed by the
// same YAML decoder. Every field is extracted separately: a missing or
// mistyped field falls back to its default instead of failing the whole load.
// Events that do not fit their pattern and placements referring to a pattern
// index outside the pattern list are dropped. Only a missing or wrong format
// tag, or a version newer than FormatVersion, is an error, in which case no
// song is returned.
func UnmarshalSong(b []byte) (*Song, LoadReport, error) {
	var report LoadReport
	var doc yaml.Node
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, report, fmt.Errorf("could not parse song: %w", err)
	}
	root := &doc
	if root.Kind == yaml.DocumentNode && len(root.Content) > 0 {
		root = root.Content[0]
	}
	if root.Kind != yaml.MappingNode {
		return nil, report, fmt.Errorf("%w: top level is not a mapping", ErrBadFormat)
	}
	var format string
	if !extract(root, "format", &format) || format != FormatTag {
		return nil, report, fmt.Errorf("%w: format tag is %q", ErrBadFormat, format)
	}
	version := FormatVersion
	if extract(root, "version", &version) && version > FormatVersion {
		return nil, report, fmt.Errorf("%w: version %d is newer than %d", ErrBadFormat, version, FormatVersion)
	}
	s := NewSong()
	positive := func(key string, target *int) {
		v := *target
		if !extract(root, key, &v) || v <= 0 {
			report.DefaultedFields = append(report.DefaultedFields, key)
			return
		}
		*target = v
	}
	positive("frames_per_beat", &s.FramesPerBeat)
	positive("beats_per_bar", &s.BeatsPerBar)
	positive("beats_per_minute", &s.BPM)
	endCue := s.EndCue
	if !extract(root, "end_cue", &endCue) || endCue < 0 {
		report.DefaultedFields = append(report.DefaultedFields, "end_cue")
	} else {
		s.EndCue = endCue
	}
	if loop := field(root, "loop"); loop != nil {
		var l Loop
		extract(loop, "begin", &l.Begin)
		extract(loop, "end", &l.End)
		s.Loop = s.ClampLoop(l)
	}
	extract(root, "enable_loop", &s.EnableLoop)
	for i, tn := range sequence(root, "tracks") {
		var name string
		extract(tn, "name", &name)
		s.SetTrackName(i, name)
	}
	for _, pn := range sequence(root, "patterns") {
		var name string
		length, channelCount := DefaultPatternLength, DefaultPatternChannelCount
		extract(pn, "name", &name)
		extract(pn, "length", &length)
		extract(pn, "channel_count", &channelCount)
		p := NewPattern(name, length, channelCount)
		for _, en := range sequence(pn, "events") {
			e := Event{Frame: -1, Channel: -1, Param: ParamNote, Value: -1}
			extract(en, "frame", &e.Frame)
			extract(en, "channel", &e.Channel)
			extract(en, "param", &e.Param)
			extract(en, "value", &e.Value)
			if p.AddEvent(e) != nil {
				report.DroppedEvents++
			}
		}
		s.AddPattern(p)
	}
	for _, sn := range sequence(root, "song") {
		pl := Placement{Pattern: -1}
		extract(sn, "frame", &pl.Frame)
		extract(sn, "track", &pl.Track)
		if !extract(sn, "pattern", &pl.Pattern) || s.Pattern(pl.Pattern) == nil || pl.Frame < 0 || pl.Track < 0 {
			report.DroppedPlacements++
			continue
		}
		s.Timeline.Add(pl)
	}
	return s, report, nil
}

// field returns the value node of key in mapping node n, or nil.
func field(n *yaml.Node, key string) *yaml.Node {
	if n == nil || n.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == key {
			return n.Content[i+1]
		}
	}
	return nil
}

// extract decodes the value of key into target, leaving target untouched and
// returning false if the key is missing or has the wrong type.
func extract[T any](n *yaml.Node, key string, target *T) bool {
	v := field(n, key)
	if v == nil || v.Kind != yaml.ScalarNode {
		return false
	}
	var t T
	if err := v.Decode(&t); err != nil {
		return false
	}
	*target = t
	return true
}

func sequence(n *yaml.Node, key string) []*yaml.Node {
	v := field(n, key)
	if v == nil || v.Kind != yaml.SequenceNode {
		return nil
	}
	return v.Content
}
