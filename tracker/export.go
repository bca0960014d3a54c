package tracker

import (
	"fmt"
	"io"
	"slices"

	"github.com/jackerseq/jacker"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

type (
	// smfRecorder is a PlayerOutput collecting the events of an offline
	// playback, timestamped with the absolute frame.
	smfRecorder struct {
		start  int
		events []recordedEvent
	}

	recordedEvent struct {
		frame int
		OutputEvent
	}
)

// exportBlockSize is the number of frames rendered per block in an export.
const exportBlockSize = 256

// ExportMIDI writes the song being edited as a standard MIDI file to w.
func (m *Model) ExportMIDI(w io.Writer) error {
	if err := ExportMIDI(w, m.song, DefaultVelocity); err != nil {
		m.log.WithError(err).Error("MIDI export failed")
		m.alert("ExportMIDI", fmt.Sprintf("Error exporting MIDI: %v", err), Error)
		return err
	}
	m.alert("ExportMIDI", "Exported MIDI file", Info)
	return nil
}

// ExportMIDI plays song from start to end cue with a private player, ignoring
// the loop, and writes the result as a format 1 standard MIDI file: one
// tempo track followed by one track per song track. A tick is one frame.
func ExportMIDI(w io.Writer, song *jacker.Song, defaultVelocity int) error {
	if err := song.Validate(); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	if song.FramesPerBeat > 0x7FFF {
		return fmt.Errorf("export: %d frames per beat does not fit in a MIDI file", song.FramesPerBeat)
	}
	broker := NewBroker(8, 8)
	player := NewPlayer(broker)
	broker.ToPlayer.Push(MsgToPlayer{Kind: MsgSnapshot, Snapshot: NewSnapshot(song)})
	broker.ToPlayer.Push(LoopMsg(song.Loop, false))
	broker.ToPlayer.Push(MsgToPlayer{Kind: MsgPlay})
	rec := &smfRecorder{}
	for {
		player.Process(exportBlockSize, rec)
		broker.ToModel.Discard()
		if player.State() == Stopped {
			break
		}
	}
	s := smf.New()
	s.TimeFormat = smf.MetricTicks(uint16(song.FramesPerBeat))
	var tempo smf.Track
	tempo.Add(0, smf.MetaMeter(uint8(min(song.BeatsPerBar, 255)), 4))
	tempo.Add(0, smf.MetaTempo(float64(song.BPM)))
	tempo.Close(uint32(song.EndCue))
	if err := s.Add(tempo); err != nil {
		return fmt.Errorf("export: adding tempo track: %w", err)
	}
	tracks := rec.tracks()
	encoder := NewMIDIEncoder(defaultVelocity)
	var msgs []midi.Message
	for _, t := range tracks {
		var track smf.Track
		track.Add(0, smf.MetaTrackSequenceName(song.TrackName(t)))
		last := 0
		for _, e := range rec.events {
			if e.Track != t {
				continue
			}
			msgs = encoder.Append(msgs[:0], e.OutputEvent)
			for _, msg := range msgs {
				track.Add(uint32(e.frame-last), msg)
				last = e.frame
			}
		}
		track.Close(uint32(max(song.EndCue-last, 0)))
		if err := s.Add(track); err != nil {
			return fmt.Errorf("export: adding track %d: %w", t+1, err)
		}
	}
	if _, err := s.WriteTo(w); err != nil {
		return fmt.Errorf("export: writing MIDI file: %w", err)
	}
	return nil
}

func (r *smfRecorder) WriteEvent(e OutputEvent) error {
	r.events = append(r.events, recordedEvent{frame: r.start + e.Offset, OutputEvent: e})
	return nil
}

func (r *smfRecorder) FinishBlock(nframes int) {
	r.start += nframes
}

// tracks returns the song tracks that have events, in ascending order.
func (r *smfRecorder) tracks() []int {
	var ret []int
	for _, e := range r.events {
		if !slices.Contains(ret, e.Track) {
			ret = append(ret, e.Track)
		}
	}
	slices.Sort(ret)
	return ret
}
