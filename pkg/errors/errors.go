// Package errors tags failures with the kind of problem behind them so
// callers branch with Is instead of matching strings.
package errors

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by lookups that legitimately find nothing.
var ErrNotFound = errors.New("not found")

// Kind classifies an Error.
type Kind uint8

const (
	KindValidation Kind = iota + 1 // missing precondition or bad input/config
	KindDB                         // persistence failure
	KindExternal                   // upstream API failure
	KindBiz                        // pipeline decision or unusable data
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindDB:
		return "db"
	case KindExternal:
		return "external"
	case KindBiz:
		return "biz"
	}
	return "unknown"
}

// Error is a failure of some Kind at Op. System names the upstream service
// for KindExternal ("google", "openai", "translate", "facebook").
type Error struct {
	Kind   Kind
	Op     string
	System string
	Msg    string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	prefix := e.Kind.String()
	if e.Kind == KindExternal && e.System != "" {
		prefix = e.System
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %s: %v", prefix, e.Op, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s: %s", prefix, e.Op, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the kind markers below, so errors.Is(err, ErrDB) works too.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Op == "" && t.Kind == e.Kind
}

func NewValidation(op, msg string, err error) error {
	return &Error{Kind: KindValidation, Op: op, Msg: msg, Err: err}
}

func NewDB(op, msg string, err error) error {
	return &Error{Kind: KindDB, Op: op, Msg: msg, Err: err}
}

func NewExternal(op, system, msg string, err error) error {
	return &Error{Kind: KindExternal, Op: op, System: system, Msg: msg, Err: err}
}

func NewBiz(op, msg string, err error) error {
	return &Error{Kind: KindBiz, Op: op, Msg: msg, Err: err}
}

// Kind markers.
// Example: if errs.Is(err, errs.ErrExternal) { ... }
var (
	ErrValidation = &Error{Kind: KindValidation}
	ErrDB         = &Error{Kind: KindDB}
	ErrExternal   = &Error{Kind: KindExternal}
	ErrBiz        = &Error{Kind: KindBiz}
)

// Is is errors.Is, kept so callers need one import.
func Is(err, target error) bool { return errors.Is(err, target) }
