package tracker

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v2"
)

// Preferences are the user settings of the sequencer that are not part of a
// song: audio and buffer sizes, the MIDI output port and logging.
type Preferences struct {
	SampleRate     int    `yaml:"samplerate"`
	AudioBuffer    int    `yaml:"audiobuffer"`
	ToPlayerBuffer int    `yaml:"toplayerbuffer"`
	ToModelBuffer  int    `yaml:"tomodelbuffer"`
	MIDIBuffer     int    `yaml:"midibuffer"`
	MIDIOutput     string `yaml:"midioutput"`
	Velocity       int    `yaml:"velocity"`
	MaxUndo        int    `yaml:"maxundo"`
	LogLevel       string `yaml:"loglevel"`

	YmlError error `yaml:"-"`
}

//go:embed preferences.yml
var defaultPreferencesYaml []byte

func loadDefaultPreferences() Preferences {
	var preferences Preferences
	err := yaml.UnmarshalStrict(defaultPreferencesYaml, &preferences)
	if err != nil {
		panic(fmt.Errorf("failed to unmarshal preferences: %w", err))
	}
	return preferences
}

// ReadCustomConfigYml reads filename from the jacker directory of the user
// config dir into target, which needs to be a pointer.
func ReadCustomConfigYml(filename string, target interface{}) (exists bool, err error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return false, err
	}
	path := filepath.Join(configDir, "jacker", filename)
	bytes, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return true, yaml.UnmarshalStrict(bytes, target)
}

// MakePreferences returns the default preferences overridden by the user's
// preferences.yml. An invalid user file is reported in YmlError and the
// defaults are kept for the fields it failed to set.
func MakePreferences() Preferences {
	preferences := loadDefaultPreferences()
	if _, err := ReadCustomConfigYml("preferences.yml", &preferences); err != nil {
		preferences.YmlError = err
	}
	preferences.clamp()
	return preferences
}

// ParsePreferences overrides the default preferences with the yaml in b.
func ParsePreferences(b []byte) (Preferences, error) {
	preferences := loadDefaultPreferences()
	if err := yaml.UnmarshalStrict(b, &preferences); err != nil {
		return loadDefaultPreferences(), fmt.Errorf("invalid preferences: %w", err)
	}
	preferences.clamp()
	return preferences, nil
}

func (p *Preferences) clamp() {
	def := loadDefaultPreferences()
	if p.SampleRate <= 0 {
		p.SampleRate = def.SampleRate
	}
	if p.AudioBuffer <= 0 {
		p.AudioBuffer = def.AudioBuffer
	}
	if p.ToPlayerBuffer < 2 {
		p.ToPlayerBuffer = def.ToPlayerBuffer
	}
	if p.ToModelBuffer < 2 {
		p.ToModelBuffer = def.ToModelBuffer
	}
	if p.MIDIBuffer < 2 {
		p.MIDIBuffer = def.MIDIBuffer
	}
	if p.Velocity < 0 || p.Velocity > 127 {
		p.Velocity = def.Velocity
	}
	if p.MaxUndo < 0 {
		p.MaxUndo = 0
	}
}
