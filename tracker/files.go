package tracker

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jackerseq/jacker"
	"github.com/sirupsen/logrus"
)

// ReadSong loads a song from r, replacing the song being edited. Fields that
// are missing or malformed get their default values and events or placements
// that do not fit are dropped; both are reported as a warning. A file that is
// not a song fails completely and leaves the model untouched.
func (m *Model) ReadSong(r io.ReadCloser) error {
	song, report, err := jacker.ReadSong(r)
	if cerr := r.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		m.log.WithError(err).Error("reading song failed")
		m.alert("ReadSong", fmt.Sprintf("Error reading a song file: %v", err), Error)
		return err
	}
	if report.Lossy() {
		m.log.WithFields(logrus.Fields{
			"droppedEvents":     report.DroppedEvents,
			"droppedPlacements": report.DroppedPlacements,
			"defaulted":         strings.Join(report.DefaultedFields, ","),
		}).Warn("song loaded with repairs")
		m.alert("ReadSong", fmt.Sprintf("Song repaired on load: %d events and %d placements dropped, %d fields defaulted", report.DroppedEvents, report.DroppedPlacements, len(report.DefaultedFields)), Warning)
	}
	if err := m.SetSong(song); err != nil {
		return err
	}
	if f, ok := r.(*os.File); ok {
		m.filePath = f.Name()
		// a song just loaded from a file is persisted
		m.changedSinceSave = false
	}
	return nil
}

// WriteSong saves the song being edited to w. Files ending with .json are
// written as JSON, everything else as YAML.
func (m *Model) WriteSong(w io.WriteCloser) error {
	path := ""
	if f, ok := w.(*os.File); ok {
		path = f.Name()
	}
	asJSON := strings.EqualFold(filepath.Ext(path), ".json")
	if err := jacker.WriteSong(w, m.song, asJSON); err != nil {
		w.Close()
		m.log.WithError(err).Error("writing song failed")
		m.alert("WriteSong", fmt.Sprintf("Error writing a song file: %v", err), Error)
		return err
	}
	if err := w.Close(); err != nil {
		m.alert("WriteSong", fmt.Sprintf("Error closing a song file: %v", err), Error)
		return err
	}
	if path != "" {
		m.filePath = path
		m.changedSinceSave = false
		m.DiscardRecovery()
	}
	return nil
}

// Load opens and reads the song file at path.
func (m *Model) Load(path string) error {
	f, err := os.Open(path)
	if err != nil {
		m.alert("ReadSong", fmt.Sprintf("Error opening a song file: %v", err), Error)
		return err
	}
	m.log.WithField("path", path).Info("loading song")
	return m.ReadSong(f)
}

// Save writes the song to path, or to the path it was loaded from if path is
// empty.
func (m *Model) Save(path string) error {
	if path == "" {
		path = m.filePath
	}
	if path == "" {
		return fmt.Errorf("save: no file path")
	}
	f, err := os.Create(path)
	if err != nil {
		m.alert("WriteSong", fmt.Sprintf("Error creating a song file: %v", err), Error)
		return err
	}
	m.log.WithField("path", path).Info("saving song")
	return m.WriteSong(f)
}
