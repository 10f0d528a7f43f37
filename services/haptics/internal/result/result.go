// Package result holds the three-way outcome of one actuator operation.
package result

import (
	"errors"
	"time"

	"haptics-go/errcode"
	"haptics-go/types"
)

// Kind discriminates a Result.
type Kind uint8

const (
	KindOK Kind = iota
	KindUnsupported
	KindFailed
)

func (k Kind) String() string {
	switch k {
	case KindOK:
		return types.StatusOK
	case KindUnsupported:
		return types.StatusUnsupported
	default:
		return types.StatusFailed
	}
}

// Result is Ok(value), Unsupported, or Failed(err). The zero value is Ok of
// the zero T.
type Result[T any] struct {
	kind  Kind
	value T
	err   error
}

func Ok[T any](v T) Result[T] { return Result[T]{kind: KindOK, value: v} }

func Unsupported[T any]() Result[T] { return Result[T]{kind: KindUnsupported} }

// Failed records err as the reason. A nil err is replaced by errcode.Failed.
func Failed[T any](err error) Result[T] {
	if err == nil {
		err = errcode.Failed
	}
	return Result[T]{kind: KindFailed, err: err}
}

func (r Result[T]) Kind() Kind          { return r.kind }
func (r Result[T]) IsOK() bool          { return r.kind == KindOK }
func (r Result[T]) IsUnsupported() bool { return r.kind == KindUnsupported }
func (r Result[T]) IsFailed() bool      { return r.kind == KindFailed }

// Value returns the payload and whether the result is Ok.
func (r Result[T]) Value() (T, bool) { return r.value, r.kind == KindOK }

// Err is nil for Ok, errcode.Unsupported for Unsupported and the failure
// cause for Failed.
func (r Result[T]) Err() error {
	switch r.kind {
	case KindOK:
		return nil
	case KindUnsupported:
		return errcode.Unsupported
	default:
		return r.err
	}
}

// Reason is a short human-readable description, empty for Ok.
func (r Result[T]) Reason() string {
	if err := r.Err(); err != nil {
		return err.Error()
	}
	return ""
}

func (r Result[T]) String() string {
	if r.kind == KindFailed {
		return "failed: " + r.err.Error()
	}
	return r.kind.String()
}

// Map converts an Ok payload, carrying Unsupported and Failed through.
func Map[T, U any](r Result[T], f func(T) U) Result[U] {
	switch r.kind {
	case KindOK:
		return Ok(f(r.value))
	case KindUnsupported:
		return Unsupported[U]()
	default:
		return Failed[U](r.err)
	}
}

// Drop discards the payload.
func Drop[T any](r Result[T]) Result[struct{}] {
	return Map(r, func(T) struct{} { return struct{}{} })
}

// FromError builds a Result from a plain call outcome.
func FromError[T any](v T, err error) Result[T] {
	switch {
	case err == nil:
		return Ok(v)
	case errors.Is(err, errcode.Unsupported):
		return Unsupported[T]()
	default:
		return Failed[T](err)
	}
}

// Millis maps a duration result to the caller convention: Ok(d) gives d in
// milliseconds, Unsupported gives 0 and Failed gives -1.
func Millis(r Result[time.Duration]) int64 {
	switch r.kind {
	case KindOK:
		return r.value.Milliseconds()
	case KindUnsupported:
		return 0
	default:
		return -1
	}
}

// Reply renders r for the control plane.
func Reply[T any](r Result[T]) types.ResultReply {
	rep := types.ResultReply{Status: r.kind.String()}
	if r.kind == KindFailed {
		rep.Reason = r.err.Error()
	}
	if d, ok := any(r.value).(time.Duration); ok && r.kind == KindOK {
		rep.DurationMs = d.Milliseconds()
	}
	return rep
}
