package tracker

import (
	"github.com/jackerseq/jacker"
	"gitlab.com/gomidi/midi/v2"
)

type (
	// MIDIEncoder converts the events resolved by the player into MIDI
	// messages. Song track t plays on MIDI channel t mod 16. Volume events
	// produce no message; they set the velocity of the following notes of
	// their column.
	MIDIEncoder struct {
		DefaultVelocity uint8
		velocity        map[column]uint8
	}

	column struct {
		track, channel int
	}
)

const DefaultVelocity = 100

func NewMIDIEncoder(defaultVelocity int) *MIDIEncoder {
	if defaultVelocity <= 0 || defaultVelocity > 127 {
		defaultVelocity = DefaultVelocity
	}
	return &MIDIEncoder{DefaultVelocity: uint8(defaultVelocity), velocity: map[column]uint8{}}
}

// MIDIChannel returns the MIDI channel of a song track.
func MIDIChannel(track int) uint8 {
	return uint8(track & 15)
}

// Append appends the MIDI messages for e to dst.
func (c *MIDIEncoder) Append(dst []midi.Message, e OutputEvent) []midi.Message {
	if e.Track == AllTracks {
		for t := 0; t < 16; t++ {
			e.Track = t
			dst = c.Append(dst, e)
		}
		return dst
	}
	ch := MIDIChannel(e.Track)
	switch {
	case e.Param == jacker.ParamNote:
		v, ok := c.velocity[column{e.Track, e.Channel}]
		if !ok {
			v = c.DefaultVelocity
		}
		return append(dst, midi.NoteOn(ch, uint8(e.Value&127), max(v, 1)))
	case e.Param == jacker.ParamNoteOff:
		return append(dst, midi.NoteOff(ch, uint8(e.Value&127)))
	case e.Param == jacker.ParamVolume:
		c.velocity[column{e.Track, e.Channel}] = uint8(min(max(e.Value, 0), 127))
	case e.Param == jacker.ParamProgram:
		return append(dst, midi.ProgramChange(ch, uint8(e.Value&127)))
	case e.Param == jacker.ParamPitchBend:
		return append(dst, midi.Pitchbend(ch, int16(min(max(e.Value, -8192), 8191))))
	case e.Param >= jacker.ParamCC && e.Param <= jacker.ParamCCLast:
		return append(dst, midi.ControlChange(ch, uint8(e.Param-jacker.ParamCC), uint8(e.Value&127)))
	}
	return dst
}

// Reset forgets the velocities set by volume events.
func (c *MIDIEncoder) Reset() {
	clear(c.velocity)
}

// NullOutput is a PlayerOutput discarding all events.
type NullOutput struct{}

func (NullOutput) WriteEvent(OutputEvent) error { return nil }
func (NullOutput) FinishBlock(int)              {}
