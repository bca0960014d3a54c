package tracker

import (
	"github.com/jackerseq/jacker"
	"github.com/jackerseq/jacker/ringbuffer"
)

type (
	// Broker carries all the communication between the Model, owned by the
	// control goroutine, and the Player, owned by the audio callback. There is
	// one lock-free ring buffer per direction; the Model is the only writer of
	// ToPlayer and the Player is the only writer of ToModel. A full buffer
	// never blocks the sender: the message is dropped and the overflow is
	// counted by the buffer.
	Broker struct {
		ToPlayer *ringbuffer.RingBuffer[MsgToPlayer]
		ToModel  *ringbuffer.RingBuffer[MsgToModel]
	}

	// MsgToPlayer is a transport or edit command for the player. All the
	// fields are plain values, except for Snapshot, so that messages can be
	// copied through the ring buffer without allocating.
	MsgToPlayer struct {
		Kind     PlayerMsgKind
		Frame    int // seek target; loop begin
		End      int // loop end
		BPM      int
		Enable   bool
		Track    int // live note track
		Channel  int // live note column
		Note     int // live note key
		Snapshot *Snapshot
	}

	PlayerMsgKind int

	// MsgToModel is the feedback from the player, sent at most once per
	// processed block, plus alerts.
	MsgToModel struct {
		Kind      ModelMsgKind
		State     PlayerState
		Cursor    int
		Wrapped   bool // the last block wrapped around the loop end
		Sounding  int  // number of notes sounding
		Alert     string
		Count     int    // occurrences of the alert condition
		Overflows uint64 // dropped messages to the model
	}

	ModelMsgKind int
)

const (
	MsgNone PlayerMsgKind = iota
	MsgSnapshot
	MsgPlay
	MsgStop
	MsgSeek
	MsgSetTempo
	MsgSetLoop
	MsgEnableLoop
	MsgToggleLoop
	MsgNoteOn
	MsgNoteOff
	MsgPanic
)

const (
	MsgStatus ModelMsgKind = iota
	MsgAlert
)

// Default ring buffer sizes, overridden by the preferences.
const (
	DefaultToPlayerSize = 1024
	DefaultToModelSize  = 1024
)

// NewBroker returns a broker with ring buffers of the given sizes.
func NewBroker(toPlayerSize, toModelSize int) *Broker {
	if toPlayerSize <= 0 {
		toPlayerSize = DefaultToPlayerSize
	}
	if toModelSize <= 0 {
		toModelSize = DefaultToModelSize
	}
	return &Broker{
		ToPlayer: ringbuffer.New[MsgToPlayer](toPlayerSize),
		ToModel:  ringbuffer.New[MsgToModel](toModelSize),
	}
}

// TrySend is a helper function to send a value to a ring buffer if it is not
// full. It is guaranteed to be non-blocking. Return true if the value was
// sent, false otherwise.
func TrySend[T any](r *ringbuffer.RingBuffer[T], v T) bool {
	return r.Push(v)
}

func (k PlayerMsgKind) String() string {
	switch k {
	case MsgSnapshot:
		return "snapshot"
	case MsgPlay:
		return "play"
	case MsgStop:
		return "stop"
	case MsgSeek:
		return "seek"
	case MsgSetTempo:
		return "set tempo"
	case MsgSetLoop:
		return "set loop"
	case MsgEnableLoop:
		return "enable loop"
	case MsgToggleLoop:
		return "toggle loop"
	case MsgNoteOn:
		return "note on"
	case MsgNoteOff:
		return "note off"
	case MsgPanic:
		return "panic"
	}
	return "none"
}

// SeekMsg returns a message moving the transport cursor to frame.
func SeekMsg(frame int) MsgToPlayer { return MsgToPlayer{Kind: MsgSeek, Frame: frame} }

// LoopMsg returns a message setting the loop range and whether it is enabled.
func LoopMsg(l jacker.Loop, enable bool) MsgToPlayer {
	return MsgToPlayer{Kind: MsgSetLoop, Frame: l.Begin, End: l.End, Enable: enable}
}
