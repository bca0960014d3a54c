package tracker

import "github.com/jackerseq/jacker"

// Snapshot is a read-only view of the song for the player. The model builds a
// new snapshot after every edit of the arrangement and sends it through the
// broker; the player swaps it in at the next block boundary. The patterns and
// the timeline are copy-on-write clones, so building a snapshot is cheap and
// the model can keep editing its own song while the player reads the
// snapshot.
type Snapshot struct {
	Song      *jacker.Song
	maxLength int
	lengthOf  func(jacker.Placement) int
}

// NewSnapshot copies song into a snapshot.
func NewSnapshot(song *jacker.Song) *Snapshot {
	s := &Snapshot{Song: song.Copy()}
	s.maxLength = s.Song.MaxPatternLength()
	s.lengthOf = func(p jacker.Placement) int {
		if pat := s.Song.Pattern(p.Pattern); pat != nil {
			return pat.Length()
		}
		return 0
	}
	return s
}
