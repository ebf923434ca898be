package session

import (
	"errors"

	"github.com/MEKXH/reviewdesk/internal/approval"
)

// Level is the severity of a notice.
type Level string

const (
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Notice is a non-blocking message for the reviewer.
type Notice struct {
	Level   Level
	Op      string
	Message string
	// Retryable is set when repeating the operation may succeed.
	Retryable bool
	Err       error
}

// Notifier delivers notices. Implementations must not block on user input.
type Notifier interface {
	Notify(Notice)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notice)

func (f NotifierFunc) Notify(n Notice) {
	if f != nil {
		f(n)
	}
}

// Confirmer asks the reviewer a synchronous yes/no question.
type Confirmer interface {
	Confirm(prompt string) bool
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(prompt string) bool

func (f ConfirmFunc) Confirm(prompt string) bool {
	return f != nil && f(prompt)
}

type discardNotifier struct{}

func (discardNotifier) Notify(Notice) {}

type declineConfirmer struct{}

func (declineConfirmer) Confirm(string) bool { return false }

func failureNotice(op string, err error) Notice {
	n := Notice{Level: LevelError, Op: op, Message: err.Error(), Err: err}

	var validation *approval.ValidationError
	var conflict *approval.ConflictError
	switch {
	case errors.As(err, &validation):
		n.Level = LevelWarn
		n.Message = validation.Message
	case errors.As(err, &conflict):
		n.Level = LevelWarn
		n.Message = conflict.Error() + "; reload to see the decision"
	case approval.IsTransport(err):
		n.Retryable = true
	}
	return n
}
