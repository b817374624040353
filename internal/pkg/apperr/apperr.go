// Package apperr holds the structured failures returned by the scheduling engine.
package apperr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindValidation         Kind = "validation"
	KindSlotUnavailable    Kind = "slot_unavailable"
	KindSchedulingConflict Kind = "scheduling_conflict"
	KindNotFound           Kind = "not_found"
	KindDependencyUnmet    Kind = "dependency_unmet"
	KindUnavailable        Kind = "unavailable"
)

// Kind-only sentinels for errors.Is checks.
var (
	Validation         = &Error{Kind: KindValidation}
	SlotUnavailable    = &Error{Kind: KindSlotUnavailable}
	SchedulingConflict = &Error{Kind: KindSchedulingConflict}
	NotFound           = &Error{Kind: KindNotFound}
	DependencyUnmet    = &Error{Kind: KindDependencyUnmet}
	Unavailable        = &Error{Kind: KindUnavailable}
)

// Error is a domain failure: a kind plus enough context to render a message.
type Error struct {
	Kind    Kind           `json:"kind"`
	Message string         `json:"message"`
	Field   string         `json:"field,omitempty"`
	Details map[string]any `json:"details,omitempty"`
	Err     error          `json:"-"`
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Field != "" {
		msg = fmt.Sprintf("%s: %s", e.Field, msg)
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// With returns a copy carrying an extra detail.
func (e *Error) With(key string, value any) *Error {
	cp := *e
	cp.Details = make(map[string]any, len(e.Details)+1)
	for k, v := range e.Details {
		cp.Details[k] = v
	}
	cp.Details[key] = value
	return &cp
}

func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Invalid(field, format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Field: field, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf reports the kind of err, or "" when err is not a domain error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
