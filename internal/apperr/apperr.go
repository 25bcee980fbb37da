// Package apperr carries the error kinds shared by the store, oracle and
// upstream clients. Every failure crossing a package boundary is an *Error
// with a Kind, so callers branch on the kind instead of on message text.
package apperr

import (
	"errors"
	"fmt"
)

type Kind uint8

const (
	KindInternal Kind = iota
	KindInvalid
	KindNotFound
	KindUpstream
	KindConfig
)

func (k Kind) String() string {
	switch k {
	case KindInvalid:
		return "invalid"
	case KindNotFound:
		return "not_found"
	case KindUpstream:
		return "upstream"
	case KindConfig:
		return "config"
	default:
		return "internal"
	}
}

var (
	ErrInvalid  = &Error{Kind: KindInvalid}
	ErrNotFound = &Error{Kind: KindNotFound}
	ErrUpstream = &Error{Kind: KindUpstream}
	ErrConfig   = &Error{Kind: KindConfig}
)

type Error struct {
	Op   string
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return e.Op + ": " + e.Err.Error()
	case e.Err != nil:
		return e.Err.Error()
	case e.Op != "":
		return e.Op + ": " + e.Kind.String()
	default:
		return e.Kind.String()
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, ErrNotFound)
// works regardless of Op or the wrapped cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.Err == nil
}

func E(kind Kind, op string, err error) error {
	return &Error{Op: op, Kind: kind, Err: err}
}

func Errorf(kind Kind, op string, format string, args ...any) error {
	return &Error{Op: op, Kind: kind, Err: fmt.Errorf(format, args...)}
}

// KindOf reports the kind of the outermost *Error in err's chain.
// Plain errors are internal.
func KindOf(err error) Kind {
	var target *Error
	if errors.As(err, &target) {
		return target.Kind
	}
	return KindInternal
}

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

func IsInvalid(err error) bool { return errors.Is(err, ErrInvalid) }
