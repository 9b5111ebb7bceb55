package monitor

import (
	"errors"
	"fmt"
)

// Kind tells callers whether an error should be retried, retired or abort
// the monitor.
type Kind int

const (
	KindUnclassified Kind = iota
	KindTransient
	KindNotIndexed
	KindInvariant
	KindPermanent
	// KindExhausted is an RPC read that failed every attempt. It stops the
	// monitor after the endpoint is rotated.
	KindExhausted
)

func (k Kind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindNotIndexed:
		return "not_indexed"
	case KindInvariant:
		return "invariant"
	case KindPermanent:
		return "permanent"
	case KindExhausted:
		return "exhausted"
	default:
		return "unclassified"
	}
}

// ErrNotIndexed is returned by a handler when a block has txs but the node
// has not indexed their results yet.
var ErrNotIndexed = errors.New("block results not indexed yet")

type Error struct {
	Kind   Kind
	Op     string
	Height int64
	Err    error
}

func (e *Error) Error() string {
	if e.Height > 0 {
		return fmt.Sprintf("%s %s at height %d: %v", e.Kind, e.Op, e.Height, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func Transient(op string, err error) error {
	return &Error{Kind: KindTransient, Op: op, Err: err}
}

func Invariant(op string, err error) error {
	return &Error{Kind: KindInvariant, Op: op, Err: err}
}

func Permanent(op string, err error) error {
	return &Error{Kind: KindPermanent, Op: op, Err: err}
}

func Unclassified(op string, err error) error {
	return &Error{Kind: KindUnclassified, Op: op, Err: err}
}

// KindOf returns the kind of the outermost classified error in err's chain.
func KindOf(err error) Kind {
	if errors.Is(err, ErrNotIndexed) {
		return KindNotIndexed
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnclassified
}

// IsFatal reports whether err should stop the monitor.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	switch KindOf(err) {
	case KindTransient, KindNotIndexed:
		return false
	default:
		return true
	}
}
