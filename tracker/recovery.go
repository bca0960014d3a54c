package tracker

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jackerseq/jacker"
)

// SetRecoveryFilePath sets the file where SaveRecovery writes the song. An
// empty path disables recovery.
func (m *Model) SetRecoveryFilePath(path string) { m.recoveryFilePath = path }

func (m *Model) RecoveryFilePath() string { return m.recoveryFilePath }

// SaveRecovery writes the song to the recovery file if it has changed since
// the last recovery save.
func (m *Model) SaveRecovery() error {
	if !m.changedSinceRecovery {
		return nil
	}
	if m.recoveryFilePath == "" {
		return errors.New("no recovery file path")
	}
	out, err := jacker.MarshalSong(m.song, false)
	if err != nil {
		return fmt.Errorf("could not marshal recovery data: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(m.recoveryFilePath), os.ModePerm); err != nil {
		return fmt.Errorf("could not create recovery directory: %w", err)
	}
	if err := os.WriteFile(m.recoveryFilePath, out, 0644); err != nil {
		return fmt.Errorf("could not write recovery file: %w", err)
	}
	m.changedSinceRecovery = false
	return nil
}

// LoadRecovery replaces the song with the one in the recovery file, if there
// is one. The recovered song counts as unsaved.
func (m *Model) LoadRecovery() (bool, error) {
	if m.recoveryFilePath == "" {
		return false, nil
	}
	b, err := os.ReadFile(m.recoveryFilePath)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("could not read recovery file: %w", err)
	}
	song, report, err := jacker.UnmarshalSong(b)
	if err != nil {
		return false, fmt.Errorf("could not parse recovery file: %w", err)
	}
	if report.Lossy() {
		m.log.WithField("report", report).Warn("recovery file was partially read")
	}
	if err := m.SetSong(song); err != nil {
		return false, err
	}
	m.changedSinceRecovery = false
	m.log.WithField("path", m.recoveryFilePath).Info("song recovered")
	return true, nil
}

// DiscardRecovery removes the recovery file, e.g. after the song has been
// saved.
func (m *Model) DiscardRecovery() {
	if m.recoveryFilePath == "" {
		return
	}
	if err := os.Remove(m.recoveryFilePath); err != nil && !errors.Is(err, os.ErrNotExist) {
		m.log.WithError(err).Warn("could not remove recovery file")
	}
	m.changedSinceRecovery = false
}
