package jacker

import (
	"errors"
	"fmt"
	"iter"

	"github.com/google/btree"
)

// Default dimensions of a new pattern.
const (
	DefaultPatternLength       = 64
	DefaultPatternChannelCount = 1
)

const btreeDegree = 16

// ErrOutOfBounds is returned when an event does not fit in a pattern.
var ErrOutOfBounds = errors.New("event outside pattern bounds")

// Pattern is a reusable grid of events, Length frames long and ChannelCount
// columns wide. Each (frame, channel) cell holds at most one event. The events
// are kept in a B-tree ordered by frame, then channel, so range queries are
// O(log n) and always come out in the order the player needs them.
//
// A Pattern is only mutated by the control goroutine. The player works on a
// Clone, which shares the tree nodes copy-on-write.
type Pattern struct {
	Name         string
	length       int
	channelCount int
	events       *btree.BTreeG[Event]
}

// NewPattern returns an empty pattern. Non-positive dimensions are replaced
// with the defaults.
func NewPattern(name string, length, channelCount int) *Pattern {
	if length <= 0 {
		length = DefaultPatternLength
	}
	if channelCount <= 0 {
		channelCount = DefaultPatternChannelCount
	}
	return &Pattern{
		Name:         name,
		length:       length,
		channelCount: channelCount,
		events:       btree.NewG(btreeDegree, eventLess),
	}
}

// InBounds reports whether (frame, channel) is a cell of the pattern.
func (p *Pattern) InBounds(frame, channel int) bool {
	return frame >= 0 && frame < p.length && channel >= 0 && channel < p.channelCount
}

// Length returns the length of the pattern in frames.
func (p *Pattern) Length() int { return p.length }

// ChannelCount returns the number of columns in the pattern.
func (p *Pattern) ChannelCount() int { return p.channelCount }

// Len returns the number of events in the pattern.
func (p *Pattern) Len() int { return p.events.Len() }

// AddEvent stores e at its (frame, channel) cell, replacing whatever was there
// before.
func (p *Pattern) AddEvent(e Event) error {
	if !p.InBounds(e.Frame, e.Channel) {
		return fmt.Errorf("%w: (%d, %d) in %dx%d", ErrOutOfBounds, e.Frame, e.Channel, p.length, p.channelCount)
	}
	if err := e.Validate(); err != nil {
		return err
	}
	p.events.ReplaceOrInsert(e)
	return nil
}

// RemoveEvent deletes the event at (frame, channel). It returns false if the
// cell was empty.
func (p *Pattern) RemoveEvent(frame, channel int) bool {
	_, ok := p.events.Delete(Event{Frame: frame, Channel: channel})
	return ok
}

// Event returns the event at (frame, channel), if any.
func (p *Pattern) Event(frame, channel int) (Event, bool) {
	return p.events.Get(Event{Frame: frame, Channel: channel})
}

// SetLength changes the length of the pattern. Events at or beyond the new
// length are dropped.
func (p *Pattern) SetLength(length int) error {
	if length <= 0 {
		return fmt.Errorf("pattern length must be > 0, got %d", length)
	}
	for {
		last, ok := p.events.Max()
		if !ok || last.Frame < length {
			break
		}
		p.events.DeleteMax()
	}
	p.length = length
	return nil
}

// SetChannelCount changes the number of columns. Events in removed columns are
// dropped.
func (p *Pattern) SetChannelCount(count int) error {
	if count <= 0 {
		return fmt.Errorf("pattern channel count must be > 0, got %d", count)
	}
	if count < p.channelCount {
		var drop []Event
		p.events.Ascend(func(e Event) bool {
			if e.Channel >= count {
				drop = append(drop, e)
			}
			return true
		})
		for _, e := range drop {
			p.events.Delete(e)
		}
	}
	p.channelCount = count
	return nil
}

// Range returns the events with start <= Frame < end, ordered by frame and
// then channel.
func (p *Pattern) Range(start, end int) iter.Seq[Event] {
	return func(yield func(Event) bool) {
		if start < 0 {
			start = 0
		}
		if end > p.length {
			end = p.length
		}
		if start >= end {
			return
		}
		p.events.AscendRange(Event{Frame: start}, Event{Frame: end}, yield)
	}
}

// All returns every event of the pattern in frame order. The sequence can be
// iterated any number of times.
func (p *Pattern) All() iter.Seq[Event] {
	return func(yield func(Event) bool) {
		p.events.Ascend(yield)
	}
}

// Clone returns a copy of the pattern. The copy shares storage with p
// copy-on-write, so cloning is cheap and the clone can be read from another
// goroutine while p keeps being edited.
func (p *Pattern) Clone() *Pattern {
	return &Pattern{
		Name:         p.Name,
		length:       p.length,
		channelCount: p.channelCount,
		events:       p.events.Clone(),
	}
}
