// Package listing renders a human readable summary of a song with text
// templates.
package listing

import (
	"bytes"
	"embed"
	"fmt"
	"text/template"

	"github.com/Masterminds/sprig"
	"github.com/jackerseq/jacker"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

//go:embed templates/*.txt
var templateFS embed.FS

type (
	Lister struct {
		Template *template.Template
		// Events lists the events of every pattern, not just the patterns
		Events bool
	}

	songData struct {
		Song       *jacker.Song
		Bars       int
		Events     bool
		Patterns   []patternData
		Placements []jacker.Placement
	}

	patternData struct {
		Index    int
		Name     string
		Length   int
		Channels int
		Uses     int
		Events   []jacker.Event
	}
)

var noteNames = [12]string{"C-", "C#", "D-", "D#", "E-", "F-", "F#", "G-", "G#", "A-", "A#", "B-"}

// New returns a lister using the built-in template.
func New() (*Lister, error) {
	tmpl, err := newTemplate().ParseFS(templateFS, "templates/*.txt")
	if err != nil {
		return nil, fmt.Errorf("could not parse the built-in listing template: %v", err)
	}
	return &Lister{Template: tmpl}, nil
}

// NewFromFiles returns a lister using the templates in the files matching
// glob. The templates are executed with the name "song.txt".
func NewFromFiles(glob string) (*Lister, error) {
	tmpl, err := newTemplate().ParseGlob(glob)
	if err != nil {
		return nil, fmt.Errorf(`could not create template based on "%v": %v`, glob, err)
	}
	return &Lister{Template: tmpl}, nil
}

func newTemplate() *template.Template {
	caser := cases.Title(language.English)
	funcs := sprig.TxtFuncMap()
	funcs["title"] = caser.String
	funcs["param"] = jacker.ParamName
	funcs["value"] = eventValue
	funcs["note"] = NoteName
	funcs["patternName"] = func(index int) string { return fmt.Sprintf("pattern %d", index) }
	funcs["trackName"] = func(track int) string { return fmt.Sprintf("Track %d", track+1) }
	return template.New("base").Funcs(funcs)
}

// Song renders the listing of song.
func (l *Lister) Song(song *jacker.Song) (string, error) {
	data := songData{Song: song, Events: l.Events}
	if fpb := song.FramesPerBar(); fpb > 0 {
		data.Bars = (song.EndCue + fpb - 1) / fpb
	}
	for i, p := range song.Patterns {
		if p == nil {
			continue
		}
		pd := patternData{Index: i, Name: p.Name, Length: p.Length(), Channels: p.ChannelCount(), Uses: song.PatternUseCount(i)}
		if l.Events {
			for e := range p.All() {
				pd.Events = append(pd.Events, e)
			}
		}
		data.Patterns = append(data.Patterns, pd)
	}
	for p := range song.Timeline.All() {
		data.Placements = append(data.Placements, p)
	}
	// patternName resolves against this song
	tmpl, err := l.Template.Clone()
	if err != nil {
		return "", err
	}
	tmpl.Funcs(template.FuncMap{
		"patternName": func(index int) string {
			if p := song.Pattern(index); p != nil && p.Name != "" {
				return p.Name
			}
			return fmt.Sprintf("pattern %d", index)
		},
		"trackName": song.TrackName,
	})
	var result bytes.Buffer
	if err := tmpl.ExecuteTemplate(&result, "song.txt", data); err != nil {
		return "", fmt.Errorf(`could not execute template "song.txt": %v`, err)
	}
	return result.String(), nil
}

// NoteName returns the tracker style name of a MIDI key, e.g. "C-4" for 60.
func NoteName(key int) string {
	if key == jacker.NoteOff {
		return "---"
	}
	if key < 0 || key > 127 {
		return "???"
	}
	return fmt.Sprintf("%s%d", noteNames[key%12], key/12-1)
}

func eventValue(e jacker.Event) string {
	if e.Param == jacker.ParamNote {
		return NoteName(e.Value)
	}
	return fmt.Sprint(e.Value)
}
