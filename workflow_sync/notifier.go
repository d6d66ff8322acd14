package workflow_sync

import (
	"github.com/rs/zerolog/log"
)

// Notifier surfaces failures to the user. It is called without any session
// lock held.
type Notifier interface {
	NotifyError(op string, err error)
}

// LogNotifier reports failures through the global logger.
type LogNotifier struct{}

func (LogNotifier) NotifyError(op string, err error) {
	log.Error().Err(err).Str("op", op).Msg("Workflow change failed")
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(op string, err error)

func (f NotifierFunc) NotifyError(op string, err error) {
	f(op, err)
}
