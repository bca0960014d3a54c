package tracker_test

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"testing"

	"github.com/jackerseq/jacker"
	"github.com/jackerseq/jacker/tracker"
	"github.com/sirupsen/logrus"
)

type myWriteCloser struct {
	*bytes.Buffer
}

func (mwc *myWriteCloser) Close() error {
	// Noop
	return nil
}

type nullOutput struct{}

func (nullOutput) WriteEvent(tracker.OutputEvent) error { return nil }
func (nullOutput) FinishBlock(int)                      {}

func quietLog() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func newTestModel() (*tracker.Model, *tracker.Broker) {
	broker := tracker.NewBroker(64, 64)
	return tracker.NewModel(broker, quietLog()), broker
}

type modelFuzzState struct {
	model *tracker.Model
	file  []byte
}

func (s *modelFuzzState) Iterate(yield func(string, func(p string, t *testing.T)) bool, seed int) {
	m := s.model
	yield("AddPattern", func(p string, t *testing.T) {
		m.AddPattern("p", seed%40-4, seed%5)
	})
	yield("DeletePattern", func(p string, t *testing.T) {
		m.DeletePattern(seed % 8)
	})
	yield("DeletePatternCascade", func(p string, t *testing.T) {
		m.DeletePatternCascade(seed % 8)
	})
	yield("ResizePattern", func(p string, t *testing.T) {
		m.ResizePattern(seed%8, seed%70-5)
	})
	yield("SetPatternChannels", func(p string, t *testing.T) {
		m.SetPatternChannels(seed%8, seed%6-1)
	})
	yield("SetPatternEvent", func(p string, t *testing.T) {
		m.SetPatternEvent(seed%8, jacker.Event{Frame: seed % 70, Channel: seed % 4, Param: jacker.ParamNote, Value: seed % 130})
	})
	yield("RemovePatternEvent", func(p string, t *testing.T) {
		m.RemovePatternEvent(seed%8, seed%70, seed%4)
	})
	yield("AddPlacement", func(p string, t *testing.T) {
		m.AddPlacement(seed%300-10, seed%5, seed%8)
	})
	yield("MovePlacement", func(p string, t *testing.T) {
		m.MovePlacement(seed%10, seed%300-10, seed%5-1)
	})
	yield("RemovePlacement", func(p string, t *testing.T) {
		m.RemovePlacement(seed % 10)
	})
	yield("SetBPM", func(p string, t *testing.T) {
		m.SetBPM(seed%1200 - 100)
	})
	yield("SetFramesPerBeat", func(p string, t *testing.T) {
		m.SetFramesPerBeat(seed%120 - 10)
	})
	yield("SetEndCue", func(p string, t *testing.T) {
		m.SetEndCue(seed%400 - 10)
	})
	yield("SetLoop", func(p string, t *testing.T) {
		m.SetLoop(jacker.Loop{Begin: seed%300 - 10, End: seed * 7 % 300})
	})
	yield("ToggleLoop", func(p string, t *testing.T) {
		m.ToggleLoop()
	})
	yield("Play", func(p string, t *testing.T) { m.Play() })
	yield("Stop", func(p string, t *testing.T) { m.Stop() })
	yield("Seek", func(p string, t *testing.T) { m.Seek(seed%300 - 10) })
	yield("NoteOn", func(p string, t *testing.T) { m.NoteOn(seed%3, seed%2, seed%128) })
	yield("NoteOff", func(p string, t *testing.T) { m.NoteOff(seed%3, seed%2) })
	yield("Panic", func(p string, t *testing.T) { m.Panic() })
	yield("Undo", func(p string, t *testing.T) { m.Undo() })
	yield("Redo", func(p string, t *testing.T) { m.Redo() })
	yield("Update", func(p string, t *testing.T) { m.Update() })
	if s.file != nil {
		yield("ReadSong", func(p string, t *testing.T) {
			m.ReadSong(io.NopCloser(bytes.NewReader(s.file)))
		})
	}
	yield("WriteSong", func(p string, t *testing.T) {
		writer := bytes.NewBuffer(nil)
		m.WriteSong(&myWriteCloser{writer})
		s.file = writer.Bytes()
	})
}

func FuzzModel(f *testing.F) {
	seed := make([]byte, 1)
	for i := range seed {
		seed[i] = byte(i)
	}
	f.Add(seed)
	f.Fuzz(func(t *testing.T, slice []byte) {
		reader := bytes.NewReader(slice)
		model, broker := newTestModel()
		player := tracker.NewPlayer(broker)
		closeChan := make(chan struct{})
		done := make(chan struct{})
		go func() {
			defer close(done)
			for {
				select {
				case <-closeChan:
					return
				default:
					player.Process(64, nullOutput{})
				}
			}
		}()
		state := modelFuzzState{model: model}
		count := 0
		state.Iterate(func(n string, f func(p string, t *testing.T)) bool {
			count++
			return true
		}, 0)
		totalPath := ""
		for m, err := binary.ReadVarint(reader); err == nil; m, err = binary.ReadVarint(reader) {
			seed := int(m)
			if seed < 0 {
				seed = -seed
			}
			index := seed % count
			state.Iterate(func(n string, f func(p string, t *testing.T)) bool {
				if index == 0 {
					totalPath += n + ". "
					f(totalPath, t)
				}
				index--
				return index > 0
			}, seed)
			if err := model.Song().Validate(); err != nil {
				t.Errorf("Path: %s song is invalid: %v", totalPath, err)
			}
		}
		close(closeChan)
		<-done
	})
}

func TestModelEditsReachPlayer(t *testing.T) {
	model, broker := newTestModel()
	player := tracker.NewPlayer(broker)
	p := model.AddPattern("p", 4, 1)
	if err := model.SetPatternEvent(p, jacker.Event{Frame: 0, Param: jacker.ParamNote, Value: 60}); err != nil {
		t.Fatal(err)
	}
	if _, err := model.AddPlacement(0, 2, p); err != nil {
		t.Fatal(err)
	}
	model.Play()
	out := &recorder{}
	player.Process(4, out)
	if len(out.events) != 1 || out.events[0].Track != 2 || out.events[0].Value != 60 {
		t.Fatalf("player emitted %v, expected one note on track 2", out.events)
	}
	model.Update()
	if !model.Playing() || model.PlayPosition() != 4 {
		t.Fatalf("model sees playing = %v at %d, expected playing at 4", model.Playing(), model.PlayPosition())
	}
}

func TestModelEditDoesNotTouchPlayingSnapshot(t *testing.T) {
	model, broker := newTestModel()
	player := tracker.NewPlayer(broker)
	p := model.AddPattern("p", 8, 1)
	model.SetPatternEvent(p, jacker.Event{Frame: 4, Param: jacker.ParamNote, Value: 60})
	model.AddPlacement(0, 0, p)
	model.Play()
	player.Process(2, nullOutput{})
	// fill the queue with transport messages so that the snapshot of the
	// next edit is deferred
	for broker.ToPlayer.WriteAvailable() > 0 {
		broker.ToPlayer.Push(tracker.MsgToPlayer{Kind: tracker.MsgSetTempo, BPM: 120})
	}
	model.RemovePatternEvent(p, 4, 0)
	out := &recorder{}
	player.Process(4, out)
	if len(out.events) != 1 || out.events[0].Offset != 2 {
		t.Fatalf("got %v, expected the note of the old snapshot at offset 2", out.events)
	}
	model.Update()
	model.Seek(0)
	out.events = nil
	player.Process(8, out)
	if len(out.events) != 1 || out.events[0].Param != jacker.ParamNoteOff {
		t.Fatalf("got %v, expected only the release of the sounding note", out.events)
	}
}

func TestModelDeletePatternInUse(t *testing.T) {
	model, _ := newTestModel()
	p := model.AddPattern("p", 8, 1)
	model.AddPlacement(0, 0, p)
	model.AddPlacement(8, 0, p)
	if err := model.DeletePattern(p); !errors.Is(err, jacker.ErrPatternInUse) {
		t.Fatalf("DeletePattern = %v, expected ErrPatternInUse", err)
	}
	if model.Alerts().Len() == 0 {
		t.Fatal("rejected deletion was not alerted")
	}
	n, err := model.DeletePatternCascade(p)
	if err != nil || n != 2 {
		t.Fatalf("DeletePatternCascade = %d, %v; expected 2, nil", n, err)
	}
	if model.Song().Timeline.Len() != 0 || model.Song().Pattern(p) != nil {
		t.Fatal("pattern or placements survived the cascade")
	}
}

func TestModelClampsLoop(t *testing.T) {
	model, _ := newTestModel()
	model.SetEndCue(100)
	var changes []tracker.Change
	model.Subscribe(func(c tracker.Change) { changes = append(changes, c) })
	model.SetLoop(jacker.Loop{Begin: 80, End: 200})
	if l := model.Song().Loop; l.Begin != 80 || l.End != 100 {
		t.Fatalf("loop = %v, expected [80, 100)", l)
	}
	model.SetEndCue(50)
	if l := model.Song().Loop; l.Begin != 50 || l.End != 50 {
		t.Fatalf("loop after shrinking the song = %v, expected [50, 50)", l)
	}
	loopChanges := 0
	for _, c := range changes {
		if c.Kind == tracker.LoopChange {
			loopChanges++
		}
	}
	if loopChanges != 2 {
		t.Fatalf("got %d loop changes, expected 2", loopChanges)
	}
}

func TestModelUndoRedo(t *testing.T) {
	model, _ := newTestModel()
	model.SetBPM(90)
	p := model.AddPattern("p", 8, 1)
	model.AddPlacement(0, 0, p)
	model.Undo()
	if model.Song().Timeline.Len() != 0 {
		t.Fatal("undo did not remove the placement")
	}
	model.Undo()
	if model.Song().Pattern(p) != nil {
		t.Fatal("undo did not remove the pattern")
	}
	model.Redo()
	model.Redo()
	if model.Song().Timeline.Len() != 1 || model.Song().BPM != 90 {
		t.Fatal("redo did not restore the song")
	}
	if model.CanRedo() {
		t.Fatal("redo stack should be empty")
	}
}

func TestModelRejectedEventLeavesHistory(t *testing.T) {
	model, _ := newTestModel()
	p := model.AddPattern("p", 8, 1)
	model.SetChangedSinceSave(false)
	model.ClearUndoHistory()
	for _, e := range []jacker.Event{
		{Frame: 8, Channel: 0, Param: jacker.ParamNote, Value: 60},
		{Frame: 0, Channel: 1, Param: jacker.ParamNote, Value: 60},
		{Frame: 0, Channel: 0, Param: jacker.ParamNote, Value: 300},
	} {
		if err := model.SetPatternEvent(p, e); err == nil {
			t.Fatalf("SetPatternEvent(%+v) succeeded", e)
		}
	}
	if model.CanUndo() {
		t.Error("rejected events pushed an undo entry")
	}
	if model.ChangedSinceSave() {
		t.Error("rejected events marked the song changed")
	}
	err := model.SetPatternEvent(p, jacker.Event{Frame: 9, Param: jacker.ParamNote, Value: 60})
	if !errors.Is(err, jacker.ErrOutOfBounds) {
		t.Errorf("error = %v, expected ErrOutOfBounds", err)
	}
}

func TestModelSongFileRoundTrip(t *testing.T) {
	model, _ := newTestModel()
	model.SetBPM(140)
	p := model.AddPattern("lead", 16, 2)
	model.SetPatternEvent(p, jacker.Event{Frame: 3, Channel: 1, Param: jacker.ParamNote, Value: 64})
	model.AddPlacement(32, 1, p)
	model.SetTrackName(1, "melody")
	buf := bytes.NewBuffer(nil)
	if err := model.WriteSong(&myWriteCloser{buf}); err != nil {
		t.Fatal(err)
	}
	other, _ := newTestModel()
	if err := other.ReadSong(io.NopCloser(buf)); err != nil {
		t.Fatal(err)
	}
	s := other.Song()
	if s.BPM != 140 || s.Timeline.Len() != 1 || s.Pattern(0).Name != "lead" {
		t.Fatalf("loaded song differs: bpm %d, %d placements", s.BPM, s.Timeline.Len())
	}
	if s.TrackName(1) != "melody" {
		t.Fatalf("track name = %q, expected melody", s.TrackName(1))
	}
	if err := other.ReadSong(io.NopCloser(bytes.NewReader([]byte("format: nope")))); err == nil {
		t.Fatal("a file with a wrong format tag was accepted")
	}
	if other.Song().BPM != 140 {
		t.Fatal("a failed load modified the song")
	}
}
