package jacker

import (
	"iter"

	"github.com/google/btree"
)

type (
	// Placement puts an instance of a pattern on a track of the song timeline,
	// starting at Frame. Pattern is the index of the pattern in
	// Song.Patterns; many placements can share the same pattern. ID is
	// assigned by the Timeline when the placement is added and orders
	// placements starting on the same frame by insertion.
	Placement struct {
		ID      int
		Frame   int
		Track   int
		Pattern int
	}

	// Timeline is the arrangement of the song: placements ordered by start
	// frame.
	Timeline struct {
		tree   *btree.BTreeG[Placement]
		byID   map[int]Placement
		nextID int
	}
)

func placementLess(a, b Placement) bool {
	if a.Frame != b.Frame {
		return a.Frame < b.Frame
	}
	return a.ID < b.ID
}

// NewTimeline returns an empty timeline.
func NewTimeline() *Timeline {
	return &Timeline{
		tree:   btree.NewG(btreeDegree, placementLess),
		byID:   make(map[int]Placement),
		nextID: 1,
	}
}

// Len returns the number of placements.
func (t *Timeline) Len() int { return t.tree.Len() }

// Add inserts p, assigning it a fresh ID, and returns the stored placement.
// Negative frames are clamped to 0.
func (t *Timeline) Add(p Placement) Placement {
	if p.Frame < 0 {
		p.Frame = 0
	}
	p.ID = t.nextID
	t.nextID++
	t.tree.ReplaceOrInsert(p)
	t.byID[p.ID] = p
	return p
}

// Get returns the placement with the given ID.
func (t *Timeline) Get(id int) (Placement, bool) {
	p, ok := t.byID[id]
	return p, ok
}

// Remove deletes the placement with the given ID.
func (t *Timeline) Remove(id int) bool {
	p, ok := t.byID[id]
	if !ok {
		return false
	}
	t.tree.Delete(p)
	delete(t.byID, id)
	return true
}

// Move changes the start frame and track of a placement, keeping its ID.
func (t *Timeline) Move(id, frame, track int) (Placement, bool) {
	p, ok := t.byID[id]
	if !ok {
		return Placement{}, false
	}
	if frame < 0 {
		frame = 0
	}
	t.tree.Delete(p)
	p.Frame, p.Track = frame, track
	t.tree.ReplaceOrInsert(p)
	t.byID[id] = p
	return p, true
}

// RemoveIf deletes every placement for which f returns true and returns how
// many were deleted.
func (t *Timeline) RemoveIf(f func(Placement) bool) int {
	var drop []Placement
	t.tree.Ascend(func(p Placement) bool {
		if f(p) {
			drop = append(drop, p)
		}
		return true
	})
	for _, p := range drop {
		t.tree.Delete(p)
		delete(t.byID, p.ID)
	}
	return len(drop)
}

// All returns the placements ordered by frame, then insertion.
func (t *Timeline) All() iter.Seq[Placement] {
	return func(yield func(Placement) bool) {
		t.tree.Ascend(yield)
	}
}

// Intersecting returns the placements whose extent [Frame, Frame+length)
// overlaps the window [start, end), where length is given by lengthOf. The
// search starts from start-maxLength, so maxLength must be at least the length
// of every placed pattern; this keeps the cost proportional to the number of
// placements near the window instead of the size of the song.
func (t *Timeline) Intersecting(start, end, maxLength int, lengthOf func(Placement) int) iter.Seq[Placement] {
	return func(yield func(Placement) bool) {
		if start >= end {
			return
		}
		from := start - maxLength + 1
		if from < 0 {
			from = 0
		}
		t.tree.AscendRange(Placement{Frame: from}, Placement{Frame: end}, func(p Placement) bool {
			if p.Frame+lengthOf(p) <= start {
				return true
			}
			return yield(p)
		})
	}
}

// Clone returns a copy of the timeline. The placement tree is shared
// copy-on-write with t, so the copy may be read concurrently with further
// edits of t.
func (t *Timeline) Clone() *Timeline {
	byID := make(map[int]Placement, len(t.byID))
	for k, v := range t.byID {
		byID[k] = v
	}
	return &Timeline{tree: t.tree.Clone(), byID: byID, nextID: t.nextID}
}
