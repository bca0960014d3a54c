package tracker

import "github.com/jackerseq/jacker"

type (
	// activeNote is a key sounding on a column of a track. source is the
	// placement that started it; live notes have no source.
	activeNote struct {
		track, channel, key int
		source              jacker.Placement
		live                bool
	}

	// activeNotes is the table of currently sounding notes, private to the
	// player. A column sounds at most one key at a time. The table is a
	// preallocated slice searched linearly; polyphony is small enough that
	// this beats a map and it never allocates in the steady state.
	activeNotes struct {
		notes []activeNote
	}
)

const maxActiveNotes = 256

func newActiveNotes() activeNotes {
	return activeNotes{notes: make([]activeNote, 0, maxActiveNotes)}
}

func (a *activeNotes) find(track, channel int) int {
	for i, n := range a.notes {
		if n.track == track && n.channel == channel {
			return i
		}
	}
	return -1
}

// start marks key as sounding on the column. The caller must have released
// the previous key of the column.
func (a *activeNotes) start(n activeNote) {
	a.notes = append(a.notes, n)
}

// release removes the sounding note of the column and returns its key.
func (a *activeNotes) release(track, channel int) (key int, ok bool) {
	i := a.find(track, channel)
	if i < 0 {
		return 0, false
	}
	key = a.notes[i].key
	last := len(a.notes) - 1
	a.notes[i] = a.notes[last]
	a.notes = a.notes[:last]
	return key, true
}

// releaseAll empties the table, calling f for every sounding note ordered by
// track, then channel.
func (a *activeNotes) releaseAll(f func(activeNote)) {
	for len(a.notes) > 0 {
		first := 0
		for i, n := range a.notes[1:] {
			m := a.notes[first]
			if n.track < m.track || n.track == m.track && n.channel < m.channel {
				first = i + 1
			}
		}
		n := a.notes[first]
		a.notes[first] = a.notes[len(a.notes)-1]
		a.notes = a.notes[:len(a.notes)-1]
		f(n)
	}
}

// releaseIf removes the notes for which orphan returns true, calling f for
// each of them.
func (a *activeNotes) releaseIf(orphan func(activeNote) bool, f func(activeNote)) {
	for i := len(a.notes) - 1; i >= 0; i-- {
		n := a.notes[i]
		if !orphan(n) {
			continue
		}
		last := len(a.notes) - 1
		a.notes[i] = a.notes[last]
		a.notes = a.notes[:last]
		f(n)
	}
}

func (a *activeNotes) len() int { return len(a.notes) }
