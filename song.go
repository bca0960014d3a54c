package jacker

import (
	"errors"
	"fmt"
	"slices"
)

// Song is the complete arrangement: the pattern library, the timeline placing
// the patterns on tracks, and the tempo, meter, length and loop of the song.
//
// Patterns is an arena: the index of a pattern never changes for as long as
// the pattern lives, and deleted patterns leave a nil slot behind, so that
// placements can refer to patterns by index.
//
// Frames are the unit of time of the song; FramesPerBeat and BPM together
// give the duration of a frame.
type Song struct {
	Patterns      []*Pattern
	Tracks        []Track // names of the tracks; may be shorter than the number of tracks used
	Timeline      *Timeline
	EndCue        int // length of the song in frames
	FramesPerBeat int
	BeatsPerBar   int
	BPM           int
	Loop          Loop
	EnableLoop    bool
}

// Track holds the settings of a song track that are not in its placements.
type Track struct {
	Name string
}

// Song defaults.
const (
	DefaultFramesPerBeat = 4
	DefaultBeatsPerBar   = 4
	DefaultBPM           = 120
	DefaultEndCue        = 16 * DefaultBeatsPerBar * DefaultFramesPerBeat
)

var (
	// ErrPatternInUse is returned when deleting a pattern that is still
	// placed on the timeline.
	ErrPatternInUse = errors.New("pattern is in use")
	// ErrNoSuchPattern is returned for pattern indices that do not resolve
	// to a live pattern.
	ErrNoSuchPattern = errors.New("no such pattern")
)

// NewSong returns an empty song with default tempo and meter.
func NewSong() *Song {
	return &Song{
		Timeline:      NewTimeline(),
		EndCue:        DefaultEndCue,
		FramesPerBeat: DefaultFramesPerBeat,
		BeatsPerBar:   DefaultBeatsPerBar,
		BPM:           DefaultBPM,
	}
}

// AddPattern adds p to the pattern library and returns its index. Free slots
// left by deleted patterns are not reused, so stale indices never alias a new
// pattern.
func (s *Song) AddPattern(p *Pattern) int {
	s.Patterns = append(s.Patterns, p)
	return len(s.Patterns) - 1
}

// Pattern returns the pattern at index, or nil if there is none.
func (s *Song) Pattern(index int) *Pattern {
	if index < 0 || index >= len(s.Patterns) {
		return nil
	}
	return s.Patterns[index]
}

// PatternUseCount returns how many placements refer to the pattern at index.
func (s *Song) PatternUseCount(index int) int {
	count := 0
	for p := range s.Timeline.All() {
		if p.Pattern == index {
			count++
		}
	}
	return count
}

// DeletePattern removes the pattern at index from the library. A pattern that
// is still placed on the timeline is not deleted; use RemovePlacementsOf first
// to orphan it explicitly.
func (s *Song) DeletePattern(index int) error {
	if s.Pattern(index) == nil {
		return fmt.Errorf("%w: %d", ErrNoSuchPattern, index)
	}
	if n := s.PatternUseCount(index); n > 0 {
		return fmt.Errorf("%w: pattern %d has %d placements", ErrPatternInUse, index, n)
	}
	s.Patterns[index] = nil
	return nil
}

// RemovePlacementsOf deletes every placement of the pattern at index and
// returns how many were removed.
func (s *Song) RemovePlacementsOf(index int) int {
	return s.Timeline.RemoveIf(func(p Placement) bool { return p.Pattern == index })
}

// MaxPatternLength returns the length of the longest pattern in the library.
func (s *Song) MaxPatternLength() int {
	ret := 0
	for _, p := range s.Patterns {
		if p != nil && p.Length() > ret {
			ret = p.Length()
		}
	}
	return ret
}

// FramesPerBar returns the number of frames in a bar.
func (s *Song) FramesPerBar() int {
	return s.FramesPerBeat * s.BeatsPerBar
}

// SamplesPerFrame returns the duration of a frame in audio samples at the
// given sample rate.
func (s *Song) SamplesPerFrame(sampleRate int) float64 {
	return SamplesPerFrame(sampleRate, s.BPM, s.FramesPerBeat)
}

// SamplesPerFrame returns the duration of a frame in samples for the tempo
// given as bpm and framesPerBeat. It returns 0 if the tempo is not valid.
func SamplesPerFrame(sampleRate, bpm, framesPerBeat int) float64 {
	if divisor := bpm * framesPerBeat; divisor > 0 {
		return float64(sampleRate) * 60 / float64(divisor)
	}
	return 0
}

// Copy makes a deep copy of the song. The patterns and the timeline are
// cloned copy-on-write.
func (s *Song) Copy() *Song {
	ret := *s
	ret.Patterns = make([]*Pattern, len(s.Patterns))
	for i, p := range s.Patterns {
		if p != nil {
			ret.Patterns[i] = p.Clone()
		}
	}
	ret.Timeline = s.Timeline.Clone()
	ret.Tracks = slices.Clone(s.Tracks)
	return &ret
}

// TrackName returns the name of track, or "Track n" (counting from one) if
// the track has no name.
func (s *Song) TrackName(track int) string {
	if track >= 0 && track < len(s.Tracks) && s.Tracks[track].Name != "" {
		return s.Tracks[track].Name
	}
	return fmt.Sprintf("Track %d", track+1)
}

// SetTrackName names a track, growing Tracks as needed.
func (s *Song) SetTrackName(track int, name string) {
	if track < 0 {
		return
	}
	if track >= len(s.Tracks) {
		if name == "" {
			return
		}
		s.Tracks = append(s.Tracks, make([]Track, track+1-len(s.Tracks))...)
	}
	s.Tracks[track].Name = name
}

// Validate checks the invariants of the song: positive tempo and meter, loop
// within the song, and every placement referring to a live pattern.
func (s *Song) Validate() error {
	if s.FramesPerBeat <= 0 {
		return errors.New("frames per beat should be > 0")
	}
	if s.BeatsPerBar <= 0 {
		return errors.New("beats per bar should be > 0")
	}
	if s.BPM <= 0 {
		return errors.New("BPM should be > 0")
	}
	if s.EndCue < 0 {
		return errors.New("end cue should be >= 0")
	}
	if s.Loop.Begin < 0 || s.Loop.Begin > s.Loop.End || s.Loop.End > s.EndCue {
		return fmt.Errorf("loop [%d, %d) is not within the song [0, %d)", s.Loop.Begin, s.Loop.End, s.EndCue)
	}
	for p := range s.Timeline.All() {
		if p.Frame < 0 {
			return fmt.Errorf("placement %d starts at negative frame %d", p.ID, p.Frame)
		}
		if s.Pattern(p.Pattern) == nil {
			return fmt.Errorf("placement %d: %w: %d", p.ID, ErrNoSuchPattern, p.Pattern)
		}
	}
	return nil
}

// ClampLoop returns l clamped so that 0 <= Begin <= End <= EndCue.
func (s *Song) ClampLoop(l Loop) Loop {
	l.Begin = clamp(l.Begin, 0, s.EndCue)
	l.End = clamp(l.End, l.Begin, s.EndCue)
	return l
}

func clamp(x, lo, hi int) int {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
