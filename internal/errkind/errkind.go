// Package errkind categorizes failures so callers can decide retry,
// fail-open, or terminal handling without string-matching error text.
package errkind

import (
	"errors"
	"fmt"
)

// Kind is a coarse classification of why an operation failed.
type Kind int

const (
	Unknown Kind = iota
	AuthFailure
	LimitExceeded
	BillingUnavailable
	BrokerUnavailable
	FetchFailure
	ClassificationFailure
	EmbeddingFailure
	StoreFailure
	MissingConfig
)

func (k Kind) String() string {
	switch k {
	case AuthFailure:
		return "auth_failure"
	case LimitExceeded:
		return "limit_exceeded"
	case BillingUnavailable:
		return "billing_unavailable"
	case BrokerUnavailable:
		return "broker_unavailable"
	case FetchFailure:
		return "fetch_failure"
	case ClassificationFailure:
		return "classification_failure"
	case EmbeddingFailure:
		return "embedding_failure"
	case StoreFailure:
		return "store_failure"
	case MissingConfig:
		return "missing_config"
	default:
		return "unknown"
	}
}

// Error wraps an underlying error with a Kind, so callers can branch on
// classification via As/Is while %w-chains stay intact for logging.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Wrap attaches a Kind and operation name to err. Returns nil if err is nil.
func Wrap(op string, kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Of extracts the Kind from err, walking the chain. Returns Unknown if
// err does not wrap an *Error.
func Of(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}
