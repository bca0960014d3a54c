package tracker

import (
	"fmt"

	"github.com/jackerseq/jacker"
	"github.com/sirupsen/logrus"
)

// Model implements the mutable state of the sequencer: the song being edited,
// the undo history and the latest known state of the player.
//
// It is owned by the control goroutine, while the player is owned by the
// audio goroutine. The model never shares its song with the player: every
// edit of the arrangement sends a new Snapshot through the broker, and
// transport commands are sent as messages. Update needs to be called
// periodically to receive the status of the player.
type (
	Model struct {
		song   *jacker.Song
		broker *Broker
		log    *logrus.Entry
		alerts Alerts

		filePath             string
		changedSinceSave     bool
		recoveryFilePath     string
		changedSinceRecovery bool

		prevUndoKind    string
		undoSkipCounter int
		undoStack       []*jacker.Song
		redoStack       []*jacker.Song
		maxUndo         int

		subscribers []func(Change)

		// pending holds the messages that did not fit in the broker; they
		// are retried in order by Update
		pending         []MsgToPlayer
		snapshotPending bool

		playerState    PlayerState
		playPosition   int
		soundingNotes  int
		modelOverflows uint64
	}

	// Change tells the subscribers of the model what changed.
	Change struct {
		Kind        ChangeKind
		Frame       int // SeekChange, TransportChange: cursor of the player
		Loop        jacker.Loop
		LoopEnabled bool
		State       PlayerState
		Alert       Alert
	}

	ChangeKind int
)

const (
	SongChange ChangeKind = iota
	SeekChange
	LoopChange
	TransportChange
	AlertChange
)

const (
	maxPendingMessages = 4096
	defaultMaxUndo     = 64
)

// Tempo and meter limits enforced by the model.
const (
	MinBPM           = 1
	MaxBPM           = 999
	MaxFramesPerBeat = 96
	MaxBeatsPerBar   = 32
)

// NewModel returns a model editing a new empty song. If log is nil, the
// standard logger is used.
func NewModel(broker *Broker, log *logrus.Entry) *Model {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	m := &Model{
		broker:  broker,
		log:     log,
		maxUndo: defaultMaxUndo,
	}
	m.setSongNoUndo(jacker.NewSong())
	m.changedSinceRecovery = false
	return m
}

// SetMaxUndo limits the length of the undo history.
func (m *Model) SetMaxUndo(value int) {
	m.maxUndo = max(value, 0)
	m.limitUndoRedoLengths()
}

// Song returns the song being edited. The caller must not modify it; use the
// methods of the model instead, so that the player sees the changes.
func (m *Model) Song() *jacker.Song { return m.song }

func (m *Model) Alerts() *Alerts { return &m.alerts }

func (m *Model) FilePath() string { return m.filePath }

func (m *Model) SetFilePath(value string) { m.filePath = value }

func (m *Model) ChangedSinceSave() bool { return m.changedSinceSave }

func (m *Model) SetChangedSinceSave(value bool) { m.changedSinceSave = value }

// Subscribe registers f to be called on the control goroutine after every
// change of the model.
func (m *Model) Subscribe(f func(Change)) {
	m.subscribers = append(m.subscribers, f)
}

// SetSong replaces the song being edited. Songs that fail validation are
// rejected with an alert.
func (m *Model) SetSong(song *jacker.Song) error {
	if err := song.Validate(); err != nil {
		m.alert("SetSong", fmt.Sprintf("Invalid song: %v", err), Error)
		return fmt.Errorf("invalid song: %w", err)
	}
	m.saveUndo("SetSong", 0)
	m.setSongNoUndo(song)
	return nil
}

// ResetSong starts over with a new empty song.
func (m *Model) ResetSong() {
	m.SetSong(jacker.NewSong())
	m.filePath = ""
	m.changedSinceSave = false
}

// AddPattern adds an empty pattern to the library and returns its index.
func (m *Model) AddPattern(name string, length, channelCount int) int {
	m.saveUndo("AddPattern", 0)
	index := m.song.AddPattern(jacker.NewPattern(name, length, channelCount))
	m.songChanged()
	return index
}

// DeletePattern deletes an unused pattern. Deleting a pattern that is still
// placed on the timeline fails with jacker.ErrPatternInUse.
func (m *Model) DeletePattern(index int) error {
	if m.song.Pattern(index) == nil {
		return fmt.Errorf("delete pattern %d: %w", index, jacker.ErrNoSuchPattern)
	}
	if n := m.song.PatternUseCount(index); n > 0 {
		m.alert("DeletePattern", fmt.Sprintf("Pattern %q is placed %d times on the timeline", m.song.Pattern(index).Name, n), Warning)
		return fmt.Errorf("delete pattern %d: %w", index, jacker.ErrPatternInUse)
	}
	m.saveUndo("DeletePattern", 0)
	if err := m.song.DeletePattern(index); err != nil {
		return err
	}
	m.songChanged()
	return nil
}

// DeletePatternCascade deletes the pattern together with all its placements
// and returns the number of placements removed.
func (m *Model) DeletePatternCascade(index int) (int, error) {
	if m.song.Pattern(index) == nil {
		return 0, fmt.Errorf("delete pattern %d: %w", index, jacker.ErrNoSuchPattern)
	}
	m.saveUndo("DeletePattern", 0)
	n := m.song.RemovePlacementsOf(index)
	if err := m.song.DeletePattern(index); err != nil {
		return n, err
	}
	m.songChanged()
	return n, nil
}

func (m *Model) RenamePattern(index int, name string) error {
	p := m.song.Pattern(index)
	if p == nil {
		return fmt.Errorf("rename pattern %d: %w", index, jacker.ErrNoSuchPattern)
	}
	if p.Name == name {
		return nil
	}
	m.saveUndo("RenamePattern", 10)
	p.Name = name
	m.songChanged()
	return nil
}

// SetTrackName names a song track.
func (m *Model) SetTrackName(track int, name string) {
	if track < 0 || m.song.TrackName(track) == name {
		return
	}
	m.saveUndo("SetTrackName", 10)
	m.song.SetTrackName(track, name)
	m.notify(Change{Kind: SongChange})
}

// ResizePattern changes the length of a pattern, dropping the events beyond
// the new length.
func (m *Model) ResizePattern(index, length int) error {
	p := m.song.Pattern(index)
	if p == nil {
		return fmt.Errorf("resize pattern %d: %w", index, jacker.ErrNoSuchPattern)
	}
	if p.Length() == length {
		return nil
	}
	if length <= 0 {
		return fmt.Errorf("resize pattern %d: length %d should be > 0", index, length)
	}
	m.saveUndo("ResizePattern", 10)
	p.SetLength(length)
	m.songChanged()
	return nil
}

// SetPatternChannels changes the channel count of a pattern, dropping the
// events of removed channels.
func (m *Model) SetPatternChannels(index, count int) error {
	p := m.song.Pattern(index)
	if p == nil {
		return fmt.Errorf("set pattern %d channels: %w", index, jacker.ErrNoSuchPattern)
	}
	if p.ChannelCount() == count {
		return nil
	}
	if count <= 0 {
		return fmt.Errorf("set pattern %d channels: count %d should be > 0", index, count)
	}
	m.saveUndo("SetPatternChannels", 10)
	p.SetChannelCount(count)
	m.songChanged()
	return nil
}

// SetPatternEvent sets the event at the cell of e, replacing any earlier
// event in the cell.
func (m *Model) SetPatternEvent(index int, e jacker.Event) error {
	p := m.song.Pattern(index)
	if p == nil {
		return fmt.Errorf("set event: %w", jacker.ErrNoSuchPattern)
	}
	if old, ok := p.Event(e.Frame, e.Channel); ok && old == e {
		return nil
	}
	if err := e.Validate(); err != nil {
		return fmt.Errorf("set event: %w", err)
	}
	if !p.InBounds(e.Frame, e.Channel) {
		m.alert("SetPatternEvent", fmt.Sprintf("Event outside pattern %q", p.Name), Warning)
		return fmt.Errorf("set event: %w: (%d, %d)", jacker.ErrOutOfBounds, e.Frame, e.Channel)
	}
	m.saveUndo("SetPatternEvent", 0)
	if err := p.AddEvent(e); err != nil {
		return fmt.Errorf("set event: %w", err)
	}
	m.songChanged()
	return nil
}

// RemovePatternEvent clears a cell of a pattern.
func (m *Model) RemovePatternEvent(index, frame, channel int) bool {
	p := m.song.Pattern(index)
	if p == nil {
		return false
	}
	if _, ok := p.Event(frame, channel); !ok {
		return false
	}
	m.saveUndo("RemovePatternEvent", 0)
	p.RemoveEvent(frame, channel)
	m.songChanged()
	return true
}

// AddPlacement places the pattern on track at frame.
func (m *Model) AddPlacement(frame, track, pattern int) (jacker.Placement, error) {
	if m.song.Pattern(pattern) == nil {
		return jacker.Placement{}, fmt.Errorf("add placement: %w: %d", jacker.ErrNoSuchPattern, pattern)
	}
	if frame < 0 || track < 0 {
		return jacker.Placement{}, fmt.Errorf("add placement: negative position (%d, %d)", frame, track)
	}
	m.saveUndo("AddPlacement", 0)
	p := m.song.Timeline.Add(jacker.Placement{Frame: frame, Track: track, Pattern: pattern})
	m.songChanged()
	return p, nil
}

func (m *Model) RemovePlacement(id int) bool {
	if _, ok := m.song.Timeline.Get(id); !ok {
		return false
	}
	m.saveUndo("RemovePlacement", 0)
	m.song.Timeline.Remove(id)
	m.songChanged()
	return true
}

// MovePlacement moves a placement to a new frame and track, clamping negative
// coordinates to 0.
func (m *Model) MovePlacement(id, frame, track int) (jacker.Placement, bool) {
	p, ok := m.song.Timeline.Get(id)
	if !ok {
		return jacker.Placement{}, false
	}
	frame, track = max(frame, 0), max(track, 0)
	if p.Frame == frame && p.Track == track {
		return p, true
	}
	m.saveUndo("MovePlacement", 10)
	p, _ = m.song.Timeline.Move(id, frame, track)
	m.songChanged()
	return p, true
}

func (m *Model) SetBPM(value int) {
	value = min(max(value, MinBPM), MaxBPM)
	if m.song.BPM == value {
		return
	}
	m.saveUndo("SetBPM", 100)
	m.song.BPM = value
	m.send(MsgToPlayer{Kind: MsgSetTempo, BPM: value})
	m.songChanged()
}

func (m *Model) SetFramesPerBeat(value int) {
	value = min(max(value, 1), MaxFramesPerBeat)
	if m.song.FramesPerBeat == value {
		return
	}
	m.saveUndo("SetFramesPerBeat", 10)
	m.song.FramesPerBeat = value
	m.songChanged()
}

func (m *Model) SetBeatsPerBar(value int) {
	value = min(max(value, 1), MaxBeatsPerBar)
	if m.song.BeatsPerBar == value {
		return
	}
	m.saveUndo("SetBeatsPerBar", 10)
	m.song.BeatsPerBar = value
	m.songChanged()
}

// SetEndCue sets the length of the song. The loop is clamped to fit in the
// song.
func (m *Model) SetEndCue(value int) {
	value = max(value, 0)
	if m.song.EndCue == value {
		return
	}
	m.saveUndo("SetEndCue", 10)
	m.song.EndCue = value
	loop := m.song.ClampLoop(m.song.Loop)
	loopChanged := loop != m.song.Loop
	m.song.Loop = loop
	m.songChanged()
	if loopChanged {
		m.loopChanged()
	}
}

// SetLoop sets the loop range, clamped so that 0 <= Begin <= End <= EndCue.
// Inverted ranges collapse to an empty loop at Begin.
func (m *Model) SetLoop(l jacker.Loop) {
	l = m.song.ClampLoop(l)
	if m.song.Loop == l {
		return
	}
	m.saveUndo("SetLoop", 10)
	m.song.Loop = l
	m.changedSinceSave = true
	m.loopChanged()
}

func (m *Model) SetLoopEnabled(value bool) {
	if m.song.EnableLoop == value {
		return
	}
	m.saveUndo("SetLoopEnabled", 0)
	m.song.EnableLoop = value
	m.send(MsgToPlayer{Kind: MsgEnableLoop, Enable: value})
	m.notify(Change{Kind: LoopChange, Loop: m.song.Loop, LoopEnabled: value})
}

func (m *Model) ToggleLoop() {
	m.saveUndo("SetLoopEnabled", 0)
	m.song.EnableLoop = !m.song.EnableLoop
	m.send(MsgToPlayer{Kind: MsgToggleLoop})
	m.notify(Change{Kind: LoopChange, Loop: m.song.Loop, LoopEnabled: m.song.EnableLoop})
}

func (m *Model) Play() { m.send(MsgToPlayer{Kind: MsgPlay}) }

func (m *Model) Stop() { m.send(MsgToPlayer{Kind: MsgStop}) }

// PlayFrom seeks to frame and starts playing.
func (m *Model) PlayFrom(frame int) {
	m.Seek(frame)
	m.Play()
}

// Seek moves the transport of the player to frame. If the player is playing,
// the notes sounding at the old position are released.
func (m *Model) Seek(frame int) {
	frame = min(max(frame, 0), m.song.EndCue)
	m.send(SeekMsg(frame))
	m.notify(Change{Kind: SeekChange, Frame: frame})
}

// NoteOn starts a note on a column of a track for auditioning, independent of
// the song.
func (m *Model) NoteOn(track, channel, key int) {
	if key < 0 || key > 127 {
		return
	}
	m.send(MsgToPlayer{Kind: MsgNoteOn, Track: track, Channel: channel, Note: key})
}

func (m *Model) NoteOff(track, channel int) {
	m.send(MsgToPlayer{Kind: MsgNoteOff, Track: track, Channel: channel})
}

// Panic releases every sounding note and sends all notes off to all tracks.
func (m *Model) Panic() { m.send(MsgToPlayer{Kind: MsgPanic}) }

func (m *Model) PlayerState() PlayerState { return m.playerState }

func (m *Model) Playing() bool { return m.playerState != Stopped }

// PlayPosition returns the last cursor position reported by the player.
func (m *Model) PlayPosition() int { return m.playPosition }

// SoundingNotes returns the number of notes sounding in the player.
func (m *Model) SoundingNotes() int { return m.soundingNotes }

// Update retries the messages that did not fit in the broker and processes
// all the messages from the player.
func (m *Model) Update() {
	m.flushPending()
	for {
		msg, ok := m.broker.ToModel.Pop()
		if !ok {
			break
		}
		m.processPlayerMessage(msg)
	}
}

func (m *Model) processPlayerMessage(msg MsgToModel) {
	switch msg.Kind {
	case MsgAlert:
		m.log.WithFields(logrus.Fields{"count": msg.Count}).Warn(msg.Alert)
		m.alert("Player", fmt.Sprintf("%s (%d)", msg.Alert, msg.Count), Error)
	case MsgStatus:
		if msg.Overflows > m.modelOverflows {
			m.log.WithField("dropped", msg.Overflows-m.modelOverflows).Warn("player status messages dropped")
			m.modelOverflows = msg.Overflows
		}
		changed := msg.State != m.playerState || msg.Cursor != m.playPosition
		m.playerState = msg.State
		m.playPosition = msg.Cursor
		m.soundingNotes = msg.Sounding
		if changed {
			m.notify(Change{Kind: TransportChange, Frame: msg.Cursor, State: msg.State})
		}
	}
}

func (m *Model) Undo() {
	if !m.CanUndo() {
		return
	}
	m.redoStack = append(m.redoStack, m.song.Copy())
	m.setSongNoUndo(m.undoStack[len(m.undoStack)-1])
	m.undoStack = m.undoStack[:len(m.undoStack)-1]
	m.limitUndoRedoLengths()
	m.prevUndoKind = ""
}

func (m *Model) CanUndo() bool { return len(m.undoStack) > 0 }

func (m *Model) Redo() {
	if !m.CanRedo() {
		return
	}
	m.undoStack = append(m.undoStack, m.song.Copy())
	m.setSongNoUndo(m.redoStack[len(m.redoStack)-1])
	m.redoStack = m.redoStack[:len(m.redoStack)-1]
	m.limitUndoRedoLengths()
	m.prevUndoKind = ""
}

func (m *Model) CanRedo() bool { return len(m.redoStack) > 0 }

func (m *Model) ClearUndoHistory() {
	m.undoStack = m.undoStack[:0]
	m.redoStack = m.redoStack[:0]
	m.prevUndoKind = ""
}

func (m *Model) limitUndoRedoLengths() {
	if len(m.undoStack) > m.maxUndo {
		m.undoStack = m.undoStack[len(m.undoStack)-m.maxUndo:]
	}
	if len(m.redoStack) > m.maxUndo {
		m.redoStack = m.redoStack[len(m.redoStack)-m.maxUndo:]
	}
}

// saveUndo pushes the current song on the undo stack. Consecutive edits of
// the same kind are merged, up to undoSkipping of them.
func (m *Model) saveUndo(undoKind string, undoSkipping int) {
	m.changedSinceSave = true
	m.changedSinceRecovery = true
	if m.prevUndoKind == undoKind && m.undoSkipCounter < undoSkipping {
		m.undoSkipCounter++
		return
	}
	m.prevUndoKind = undoKind
	m.undoSkipCounter = 0
	m.undoStack = append(m.undoStack, m.song.Copy())
	m.redoStack = m.redoStack[:0]
	m.limitUndoRedoLengths()
}

func (m *Model) setSongNoUndo(song *jacker.Song) {
	m.song = song
	m.songChanged()
	m.loopChanged()
}

func (m *Model) songChanged() {
	m.changedSinceRecovery = true
	m.sendSnapshot()
	m.notify(Change{Kind: SongChange})
}

func (m *Model) loopChanged() {
	m.send(LoopMsg(m.song.Loop, m.song.EnableLoop))
	m.notify(Change{Kind: LoopChange, Loop: m.song.Loop, LoopEnabled: m.song.EnableLoop})
}

// sendSnapshot sends the current song to the player. If the broker is full,
// the snapshot is sent by the next Update instead, so only the latest
// version of the song is ever queued.
func (m *Model) sendSnapshot() {
	if len(m.pending) > 0 {
		m.snapshotPending = true
		return
	}
	if !TrySend(m.broker.ToPlayer, MsgToPlayer{Kind: MsgSnapshot, Snapshot: NewSnapshot(m.song)}) {
		m.log.Debug("player queue full, deferring snapshot")
		m.snapshotPending = true
	}
}

// send sends a message to the player, keeping the order of the messages even
// when the broker is full.
func (m *Model) send(msg MsgToPlayer) {
	if m.snapshotPending || len(m.pending) > 0 || !TrySend(m.broker.ToPlayer, msg) {
		if len(m.pending) >= maxPendingMessages {
			m.log.WithField("message", msg.Kind).Warn("player queue full, message dropped")
			m.alert("PlayerQueue", "Player is not responding", Error)
			return
		}
		m.pending = append(m.pending, msg)
	}
}

func (m *Model) flushPending() {
	if m.snapshotPending {
		if !TrySend(m.broker.ToPlayer, MsgToPlayer{Kind: MsgSnapshot, Snapshot: NewSnapshot(m.song)}) {
			return
		}
		m.snapshotPending = false
	}
	sent := 0
	for _, msg := range m.pending {
		if !TrySend(m.broker.ToPlayer, msg) {
			break
		}
		sent++
	}
	m.pending = append(m.pending[:0], m.pending[sent:]...)
}

func (m *Model) alert(name, message string, priority AlertPriority) {
	m.alerts.AddNamed(name, message, priority)
	m.notify(Change{Kind: AlertChange, Alert: Alert{Name: name, Message: message, Priority: priority}})
}

func (m *Model) notify(c Change) {
	for _, f := range m.subscribers {
		f(c)
	}
}
