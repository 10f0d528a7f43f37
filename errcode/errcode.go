package errcode

import "errors"

// Code is a stable, caller-facing error identifier.
// It is a string newtype, comparable, allocation-free, and implements error.
type Code string

func (c Code) Error() string { return string(c) }

// Canonical codes (short, stable).
const (
	OK            Code = "ok"
	Unsupported   Code = "unsupported"
	Failed        Code = "failed"
	InvalidParams Code = "invalid_params"

	// Driver connection.
	NotConnected      Code = "not_connected"
	NoDriver          Code = "no_driver"
	DeadObject        Code = "dead_object"
	TransactionFailed Code = "transaction_failed"
	Timeout           Code = "timeout"

	// Service/control plane.
	UnknownActuator Code = "unknown_actuator"
	InvalidTopic    Code = "invalid_topic"
	InvalidPayload  Code = "invalid_payload"
	NotReady        Code = "not_ready"
	Busy            Code = "busy"

	Error Code = "error" // generic fallback
)

// Optional wrapper when we want to keep context and a cause.
type E struct {
	C   Code
	Op  string
	Msg string
	Err error
}

func (e *E) Error() string {
	s := string(e.C)
	if e.Op != "" {
		s = e.Op + ": " + s
	}
	if e.Msg != "" {
		return s + ": " + e.Msg
	}
	if e.Err != nil && e.Err != error(e.C) {
		return s + ": " + e.Err.Error()
	}
	return s
}
func (e *E) Unwrap() error { return e.Err }
func (e *E) Code() Code    { return e.C }

// Is lets errors.Is(err, SomeCode) match a wrapper carrying that code.
func (e *E) Is(target error) bool {
	c, ok := target.(Code)
	return ok && c == e.C
}

// Wrap returns an *E carrying c for op with err as cause. nil err yields nil.
func Wrap(c Code, op string, err error) error {
	if err == nil {
		return nil
	}
	return &E{C: c, Op: op, Err: err}
}

// Of extracts a Code from an error, defaulting to Error.
func Of(err error) Code {
	if err == nil {
		return OK
	}
	type coder interface{ Code() Code }
	var x coder
	if errors.As(err, &x) {
		return x.Code()
	}
	var c Code
	if errors.As(err, &c) {
		return c
	}
	return Error
}

// Parse maps a wire string back to a known Code; unknown strings map to Error.
func Parse(s string) Code {
	switch c := Code(s); c {
	case OK, Unsupported, Failed, InvalidParams, NotConnected, NoDriver,
		DeadObject, TransactionFailed, Timeout, UnknownActuator, InvalidTopic,
		InvalidPayload, NotReady, Busy:
		return c
	default:
		return Error
	}
}
