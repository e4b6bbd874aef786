package errors

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is a generic sentinel for missing resources.
	ErrNotFound = errors.New("not found")
	// ErrInvalidArgument marks malformed user input (bad callback payload, unknown command argument).
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrTransient marks collaborator failures the user can retry: network, 5xx, timeouts.
	ErrTransient = errors.New("transient external failure")
	// ErrStorage marks StateStore failures.
	ErrStorage = errors.New("storage error")
	// ErrMalformed marks LLM output that failed to parse as a structured reply.
	ErrMalformed = errors.New("malformed llm payload")
	// ErrInvariant marks a broken internal invariant. Handling of the update is aborted.
	ErrInvariant = errors.New("invariant violation")
)

type Kind int

const (
	KindUnknown Kind = iota
	KindTransient
	KindBadInput
	KindMalformed
	KindNotFound
	KindInvariant
	KindStorage
)

func (k Kind) String() string {
	switch k {
	case KindTransient:
		return "transient_external"
	case KindBadInput:
		return "bad_user_input"
	case KindMalformed:
		return "llm_malformed"
	case KindNotFound:
		return "not_found"
	case KindInvariant:
		return "invariant_violation"
	case KindStorage:
		return "storage"
	default:
		return "unknown"
	}
}

// Classify maps an error chain onto the kind that drives the per-update reply policy.
// Deadline and cancellation errors count as transient.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, ErrInvariant):
		return KindInvariant
	case errors.Is(err, ErrInvalidArgument):
		return KindBadInput
	case errors.Is(err, ErrMalformed):
		return KindMalformed
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrStorage):
		return KindStorage
	case errors.Is(err, ErrTransient),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return KindTransient
	default:
		return KindUnknown
	}
}

// Is and As re-export the stdlib helpers so callers need a single errors import.
func Is(err, target error) bool { return errors.Is(err, target) }

func As(err error, target any) bool { return errors.As(err, target) }

func New(text string) error { return errors.New(text) }

type opError struct {
	op   string
	kind error
	err  error
}

func (e *opError) Error() string {
	if e.err == nil {
		return e.op + ": " + e.kind.Error()
	}
	return e.op + ": " + e.kind.Error() + ": " + e.err.Error()
}

func (e *opError) Unwrap() []error {
	if e.err == nil {
		return []error{e.kind}
	}
	return []error{e.kind, e.err}
}

// Wrap tags err with a sentinel kind and the failing operation. Both stay reachable
// through Is/As. A nil err yields a bare kind error for op.
func Wrap(kind error, op string, err error) error {
	return &opError{op: op, kind: kind, err: err}
}
