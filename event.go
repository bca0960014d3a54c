package jacker

import "fmt"

type (
	// Event is the smallest timed unit of a song: at Frame (relative to the
	// start of the pattern that contains it), on Channel (a column of the
	// pattern), set Param to Value. Events are plain values and are copied
	// whenever they are passed around.
	Event struct {
		Frame   int `json:"frame" yaml:"frame"`
		Channel int `json:"channel" yaml:"channel"`
		Param   int `json:"param" yaml:"param"`
		Value   int `json:"value" yaml:"value"`
	}

	// Loop is a half-open frame range [Begin, End) of the song timeline.
	Loop struct {
		Begin int `json:"begin" yaml:"begin"`
		End   int `json:"end" yaml:"end"`
	}
)

// Event parameter kinds. Values from ParamCC upward address MIDI continuous
// controllers: Param = ParamCC + controller number.
const (
	ParamNote      = 0 // Value is a MIDI key 0..127, or NoteOff
	ParamVolume    = 1 // Value is the velocity 0..127 of following notes in the column
	ParamProgram   = 2 // Value is a MIDI program 0..127
	ParamPitchBend = 3 // Value is -8192..8191
	ParamNoteOff   = 4 // output only: Value is the key being released
	ParamCC        = 16
	ParamCCLast    = ParamCC + 127
)

// NoteOff as the Value of a ParamNote event releases whatever note is sounding
// in the column.
const NoteOff = 255

// Validate reports whether the event is a well-formed stored pattern event.
func (e Event) Validate() error {
	if e.Frame < 0 || e.Channel < 0 {
		return fmt.Errorf("event position (%d, %d) is negative", e.Frame, e.Channel)
	}
	switch {
	case e.Param == ParamNote:
		if e.Value != NoteOff && (e.Value < 0 || e.Value > 127) {
			return fmt.Errorf("note value %d out of range", e.Value)
		}
	case e.Param == ParamVolume, e.Param == ParamProgram, e.Param >= ParamCC && e.Param <= ParamCCLast:
		if e.Value < 0 || e.Value > 127 {
			return fmt.Errorf("value %d of param %s out of range", e.Value, ParamName(e.Param))
		}
	case e.Param == ParamPitchBend:
		if e.Value < -8192 || e.Value > 8191 {
			return fmt.Errorf("pitch bend %d out of range", e.Value)
		}
	default:
		return fmt.Errorf("unknown param %d", e.Param)
	}
	return nil
}

// ParamName returns a short lowercase name for the param kind, e.g. "note"
// or "cc7".
func ParamName(param int) string {
	switch {
	case param == ParamNote:
		return "note"
	case param == ParamVolume:
		return "volume"
	case param == ParamProgram:
		return "program"
	case param == ParamPitchBend:
		return "pitch bend"
	case param == ParamNoteOff:
		return "note off"
	case param >= ParamCC && param <= ParamCCLast:
		return fmt.Sprintf("cc%d", param-ParamCC)
	}
	return fmt.Sprintf("param%d", param)
}

// Len returns the number of frames in the loop.
func (l Loop) Len() int {
	return l.End - l.Begin
}

// Contains reports whether frame lies within the loop.
func (l Loop) Contains(frame int) bool {
	return frame >= l.Begin && frame < l.End
}

func eventLess(a, b Event) bool {
	if a.Frame != b.Frame {
		return a.Frame < b.Frame
	}
	return a.Channel < b.Channel
}
