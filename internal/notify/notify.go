// Copyright (c) 2026 EDMS Team
// EDMS - electronic document management system
// This source code is licensed under the MIT license found in the LICENSE file.

// Package notify delivers session lifecycle events to interested parties.
package notify

import (
	"github.com/jinkaiteo/edms-sub000/internal/logging"
)

// Event is one session lifecycle notification.
type Event struct {
	SessionID string
	Status    string
	Summary   string
}

// Notifier receives restore lifecycle events. Implementations must not
// block; delivery failures are the implementation's problem to log.
type Notifier interface {
	Notify(ev Event)
}

// LogNotifier writes events to the application log. It is the default sink
// when no external channel is configured.
type LogNotifier struct{}

func (LogNotifier) Notify(ev Event) {
	logging.Infof("session %s %s: %s", ev.SessionID, ev.Status, ev.Summary)
}

// Multi fans one event out to several notifiers.
type Multi []Notifier

func (m Multi) Notify(ev Event) {
	for _, n := range m {
		n.Notify(ev)
	}
}
