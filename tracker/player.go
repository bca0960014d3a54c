package tracker

import (
	"cmp"
	"slices"

	"github.com/jackerseq/jacker"
)

type (
	// Player is the playback scheduler of the sequencer, run in the audio
	// callback goroutine. It is controlled by messages from the model via the
	// broker and sends its status back the same way. Once per block, it walks
	// the placements of its song snapshot that intersect the block, resolves
	// them into events and writes the events to a PlayerOutput in time order.
	//
	// All the state of the player is private to it; the player never blocks,
	// never logs and does not allocate in the steady state.
	Player struct {
		broker     *Broker
		snapshot   *Snapshot
		state      PlayerState
		cursor     int // next frame to be played
		loop       jacker.Loop
		enableLoop bool
		bpm        int
		notes      activeNotes
		scratch    []scheduledEvent // events of the current sub-window
		wrapped    bool             // the current block wrapped around the loop end
		errors     int              // output errors since the last alert
		lastStatus MsgToModel
	}

	PlayerState int

	// PlayerOutput receives the events resolved by the player. WriteEvent is
	// called in order of non-decreasing Offset and FinishBlock once the block
	// is complete. Both are called from the audio goroutine and must not
	// block.
	PlayerOutput interface {
		WriteEvent(e OutputEvent) error
		FinishBlock(nframes int)
	}

	// OutputEvent is an event resolved by the player. Offset is relative to
	// the start of the current block and within [0, nframes). Track is the
	// song track, or AllTracks for events addressed to every track; Channel
	// is the column of the pattern. Notes are resolved: Param is either
	// ParamNote with Value the key to start, or ParamNoteOff with Value the
	// key to release, never ParamNote with Value NoteOff.
	OutputEvent struct {
		Offset  int
		Track   int
		Channel int
		Param   int
		Value   int
	}

	// scheduledEvent is an event of the current sub-window with the
	// placement it comes from.
	scheduledEvent struct {
		OutputEvent
		source jacker.Placement
		live   bool
	}
)

const (
	Stopped PlayerState = iota
	Playing
	// Seeking is the state between a seek message and the start of the next
	// block; it is never observed across a block boundary.
	Seeking
	// LoopWrapping is reported for blocks that wrapped around the loop end.
	LoopWrapping
)

// AllTracks as the Track of an OutputEvent addresses every track.
const AllTracks = -1

// ControllerAllNotesOff is the MIDI controller sent to every track on panic.
const ControllerAllNotesOff = 123

// Alerts sent by the player to the model. They are constants so that the
// player does not need to format strings.
const (
	AlertOutputError = "output port rejected events"
)

const scratchSize = 1024

// NewPlayer returns a stopped player without a song. The song arrives as a
// snapshot message from the model.
func NewPlayer(broker *Broker) *Player {
	return &Player{
		broker:  broker,
		bpm:     jacker.DefaultBPM,
		notes:   newActiveNotes(),
		scratch: make([]scheduledEvent, 0, scratchSize),
	}
}

func (s PlayerState) String() string {
	switch s {
	case Playing:
		return "playing"
	case Seeking:
		return "seeking"
	case LoopWrapping:
		return "loop wrapping"
	}
	return "stopped"
}

// State returns the transport state of the player. Like the other getters,
// it is meant to be called from the goroutine running the player.
func (p *Player) State() PlayerState { return p.state }

// Cursor returns the next frame to be played.
func (p *Player) Cursor() int { return p.cursor }

// BPM returns the tempo the player is playing at.
func (p *Player) BPM() int { return p.bpm }

// FramesPerBeat returns the frames per beat of the current snapshot.
func (p *Player) FramesPerBeat() int {
	if p.snapshot == nil {
		return jacker.DefaultFramesPerBeat
	}
	return p.snapshot.Song.FramesPerBeat
}

// Process plays the next block of nframes frames. First, all the pending
// messages from the model are applied, then the events of the block are
// written to out, and finally the status of the player is sent to the model.
func (p *Player) Process(nframes int, out PlayerOutput) {
	p.processMessages(out)
	p.render(nframes, out)
	out.FinishBlock(nframes)
	p.sendStatus()
}

func (p *Player) processMessages(out PlayerOutput) {
	for {
		msg, ok := p.broker.ToPlayer.Pop()
		if !ok {
			break
		}
		p.apply(msg, out)
	}
	if p.state == Seeking {
		p.state = Playing
	}
}

func (p *Player) apply(msg MsgToPlayer, out PlayerOutput) {
	switch msg.Kind {
	case MsgSnapshot:
		if msg.Snapshot == nil {
			return
		}
		p.snapshot = msg.Snapshot
		p.bpm = p.snapshot.Song.BPM
		p.loop = p.snapshot.Song.ClampLoop(p.loop)
		p.releaseOrphans(out)
	case MsgPlay:
		if p.state == Stopped {
			if p.snapshot != nil && p.cursor >= p.snapshot.Song.EndCue {
				p.cursor = 0
			}
			p.state = Playing
		}
	case MsgStop:
		p.releaseAll(0, out)
		p.state = Stopped
	case MsgSeek:
		// every seek releases the notes of the previous position, so a burst
		// of seeks within a block collapses into the last one
		p.cursor = max(msg.Frame, 0)
		if p.snapshot != nil {
			p.cursor = min(p.cursor, p.snapshot.Song.EndCue)
		}
		if p.state == Playing || p.state == Seeking {
			p.releaseAll(0, out)
			p.state = Seeking
		}
	case MsgSetTempo:
		if msg.BPM > 0 {
			p.bpm = msg.BPM
		}
	case MsgSetLoop:
		p.loop = jacker.Loop{Begin: msg.Frame, End: msg.End}
		if p.snapshot != nil {
			p.loop = p.snapshot.Song.ClampLoop(p.loop)
		}
		p.enableLoop = msg.Enable
	case MsgEnableLoop:
		p.enableLoop = msg.Enable
	case MsgToggleLoop:
		p.enableLoop = !p.enableLoop
	case MsgNoteOn:
		p.emit(scheduledEvent{OutputEvent: OutputEvent{Track: msg.Track, Channel: msg.Channel, Param: jacker.ParamNote, Value: msg.Note}, live: true}, out)
	case MsgNoteOff:
		p.emit(scheduledEvent{OutputEvent: OutputEvent{Track: msg.Track, Channel: msg.Channel, Param: jacker.ParamNote, Value: jacker.NoteOff}, live: true}, out)
	case MsgPanic:
		p.releaseAll(0, out)
		p.write(OutputEvent{Track: AllTracks, Param: jacker.ParamCC + ControllerAllNotesOff}, out)
	}
}

// render writes the events of the next nframes frames. The block is split at
// the loop end as many times as needed, so that every frame of time is
// played exactly once.
func (p *Player) render(nframes int, out PlayerOutput) {
	p.wrapped = false
	if p.snapshot == nil {
		p.state = Stopped
		return
	}
	song := p.snapshot.Song
	offset := 0
	for offset < nframes && p.state == Playing {
		looping := p.enableLoop && p.loop.Len() > 0 && p.cursor < p.loop.End
		end := p.cursor + nframes - offset
		if looping {
			end = min(end, p.loop.End)
		} else {
			end = min(end, song.EndCue)
		}
		if end > p.cursor {
			p.renderWindow(p.cursor, end, offset, out)
			offset += end - p.cursor
			p.cursor = end
		}
		if looping && p.cursor == p.loop.End {
			p.cursor = p.loop.Begin
			p.wrapped = true
			continue
		}
		if p.cursor >= song.EndCue {
			p.releaseAll(min(offset, nframes-1), out)
			p.state = Stopped
		}
	}
}

// renderWindow writes the events of the song frames [start, end), the first
// of which is at block offset base.
func (p *Player) renderWindow(start, end, base int, out PlayerOutput) {
	song := p.snapshot.Song
	p.scratch = p.scratch[:0]
	for pl := range song.Timeline.Intersecting(start, end, p.snapshot.maxLength, p.snapshot.lengthOf) {
		pat := song.Pattern(pl.Pattern)
		if pat == nil {
			continue
		}
		for e := range pat.Range(start-pl.Frame, end-pl.Frame) {
			p.scratch = append(p.scratch, scheduledEvent{
				OutputEvent: OutputEvent{
					Offset:  base + pl.Frame + e.Frame - start,
					Track:   pl.Track,
					Channel: e.Channel,
					Param:   e.Param,
					Value:   e.Value,
				},
				source: pl,
			})
		}
	}
	// placements come in start order and pattern events in frame order, so a
	// stable sort keeps overlapping instances on the same column in placement
	// order
	slices.SortStableFunc(p.scratch, compareScheduledEvents)
	for _, e := range p.scratch {
		p.emit(e, out)
	}
}

func compareScheduledEvents(a, b scheduledEvent) int {
	if c := cmp.Compare(a.Offset, b.Offset); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Track, b.Track); c != 0 {
		return c
	}
	return cmp.Compare(a.Channel, b.Channel)
}

// emit resolves notes through the active note table and writes the result.
func (p *Player) emit(s scheduledEvent, out PlayerOutput) {
	e := s.OutputEvent
	if e.Param != jacker.ParamNote {
		p.write(e, out)
		return
	}
	key, sounding := p.notes.release(e.Track, e.Channel)
	if sounding {
		p.write(OutputEvent{Offset: e.Offset, Track: e.Track, Channel: e.Channel, Param: jacker.ParamNoteOff, Value: key}, out)
	}
	if e.Value == jacker.NoteOff {
		return
	}
	p.notes.start(activeNote{track: e.Track, channel: e.Channel, key: e.Value, source: s.source, live: s.live})
	p.write(e, out)
}

func (p *Player) releaseAll(offset int, out PlayerOutput) {
	p.notes.releaseAll(func(n activeNote) {
		p.write(OutputEvent{Offset: offset, Track: n.track, Channel: n.channel, Param: jacker.ParamNoteOff, Value: n.key}, out)
	})
}

// releaseOrphans releases, at offset 0, the song notes whose placement is no
// longer in the snapshot as it was when the note started. Their note off
// events went away with the placement.
func (p *Player) releaseOrphans(out PlayerOutput) {
	song := p.snapshot.Song
	p.notes.releaseIf(func(n activeNote) bool {
		if n.live {
			return false
		}
		pl, ok := song.Timeline.Get(n.source.ID)
		if !ok || pl != n.source {
			return true
		}
		pat := song.Pattern(pl.Pattern)
		return pat == nil || n.channel >= pat.ChannelCount()
	}, func(n activeNote) {
		p.write(OutputEvent{Track: n.track, Channel: n.channel, Param: jacker.ParamNoteOff, Value: n.key}, out)
	})
}

func (p *Player) write(e OutputEvent, out PlayerOutput) {
	if err := out.WriteEvent(e); err != nil {
		p.errors++
	}
}

func (p *Player) sendStatus() {
	if p.errors > 0 {
		if TrySend(p.broker.ToModel, MsgToModel{Kind: MsgAlert, Alert: AlertOutputError, Count: p.errors}) {
			p.errors = 0
		}
	}
	status := MsgToModel{
		Kind:      MsgStatus,
		State:     p.state,
		Cursor:    p.cursor,
		Wrapped:   p.wrapped,
		Sounding:  p.notes.len(),
		Overflows: p.broker.ToModel.Overflows(),
	}
	if p.wrapped && p.state == Playing {
		status.State = LoopWrapping
	}
	if status == p.lastStatus {
		return
	}
	if TrySend(p.broker.ToModel, status) {
		p.lastStatus = status
	}
}
