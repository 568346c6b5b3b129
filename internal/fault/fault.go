// Package fault classifies failures the triage flow reports to the user.
package fault

import (
	"errors"
	"fmt"
)

// Kind is the failure category.
type Kind string

const (
	// KindNetwork means a collaborator was unreachable or refused the request.
	KindNetwork Kind = "network"

	// KindEmptyResult means a collaborator answered without usable data.
	KindEmptyResult Kind = "empty_result"

	// KindValidation means required user input was missing or out of range.
	KindValidation Kind = "validation"
)

// Sentinels for errors.Is matching against an *Error of the same kind.
var (
	ErrNetwork     = &Error{Kind: KindNetwork}
	ErrEmptyResult = &Error{Kind: KindEmptyResult}
	ErrValidation  = &Error{Kind: KindValidation}
)

// Error is a categorized failure. Op names the operation that failed.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Network wraps err as a network failure for op.
func Network(op string, err error) error {
	return &Error{Kind: KindNetwork, Op: op, Err: err}
}

// Empty reports an empty collaborator response for op.
func Empty(op, detail string) error {
	return &Error{Kind: KindEmptyResult, Op: op, Err: errors.New(detail)}
}

// Validation wraps err as a validation failure for op.
func Validation(op string, err error) error {
	return &Error{Kind: KindValidation, Op: op, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or "" if there is none.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}
