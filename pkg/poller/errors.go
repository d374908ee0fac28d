package poller

import "errors"

var (
	ErrAlreadyRunning = errors.New("poller: already running")
	ErrStopped        = errors.New("poller: stopped")
	ErrTaskPanicked   = errors.New("poller: task panicked")
)
