package tracker

import (
	"math"
	"time"
)

type (
	// Alerts is the queue of user-facing messages of the model: failed loads,
	// rejected edits, output errors reported by the player. Alerts expire
	// after their Duration; an alert with a Name replaces any earlier alert
	// with the same name.
	Alerts struct {
		alerts []Alert
	}

	Alert struct {
		Name      string
		Priority  AlertPriority
		Message   string
		Duration  time.Duration
		FadeLevel float64
	}

	AlertPriority int
)

const (
	Info AlertPriority = iota
	Warning
	Error
)

const defaultAlertDuration = time.Second * 3

const alertFadeTime = time.Millisecond * 150

func (p AlertPriority) String() string {
	switch p {
	case Warning:
		return "warning"
	case Error:
		return "error"
	}
	return "info"
}

// Update ages the alerts by d, removing the expired ones. It returns true if
// the alerts are still fading in or out.
func (m *Alerts) Update(d time.Duration) (animating bool) {
	for i := len(m.alerts) - 1; i >= 0; i-- {
		if m.alerts[i].Duration >= d {
			m.alerts[i].Duration -= d
			if m.alerts[i].FadeLevel < 1 {
				animating = true
				m.alerts[i].FadeLevel = math.Min(m.alerts[i].FadeLevel+float64(d)/float64(alertFadeTime), 1)
			}
		} else {
			m.alerts[i].Duration = 0
			m.alerts[i].FadeLevel = math.Max(m.alerts[i].FadeLevel-float64(d)/float64(alertFadeTime), 0)
			if m.alerts[i].FadeLevel > 0 {
				animating = true
			} else {
				m.alerts = append(m.alerts[:i], m.alerts[i+1:]...)
			}
		}
	}
	return
}

// Iterate yields the alerts, highest priority first.
func (m *Alerts) Iterate(yield func(index int, alert Alert) bool) {
	for i := len(m.alerts) - 1; i >= 0; i-- {
		if !yield(i, m.alerts[i]) {
			break
		}
	}
}

func (m *Alerts) Len() int { return len(m.alerts) }

func (m *Alerts) Add(message string, priority AlertPriority) {
	m.AddAlert(Alert{
		Priority: priority,
		Message:  message,
		Duration: defaultAlertDuration,
	})
}

func (m *Alerts) AddNamed(name, message string, priority AlertPriority) {
	m.AddAlert(Alert{
		Name:     name,
		Priority: priority,
		Message:  message,
		Duration: defaultAlertDuration,
	})
}

func (m *Alerts) AddAlert(a Alert) {
	for i := range m.alerts {
		if n := m.alerts[i].Name; n != "" && n == a.Name {
			a.FadeLevel = m.alerts[i].FadeLevel
			m.alerts = append(m.alerts[:i], m.alerts[i+1:]...)
			break
		}
	}
	i := len(m.alerts)
	for i > 0 && m.alerts[i-1].Priority > a.Priority {
		i--
	}
	m.alerts = append(m.alerts, Alert{})
	copy(m.alerts[i+1:], m.alerts[i:])
	m.alerts[i] = a
}
