// Package hal is the contract between the haptics core and vendor driver
// backends. One Backend implementation exists per driver generation; the core
// selects a generation once, at connect time, and never branches on it again.
//
// Operations a generation cannot perform return ErrUnsupported. Failures that
// a reconnect may cure (the driver process died, a transaction was dropped)
// return ErrDeadObject or ErrTransactionFailed. Anything else is permanent.
package hal

import (
	"context"
	"strings"
	"time"

	"haptics-go/errcode"
	"haptics-go/types"
)

// Version identifies a driver generation. Newer generations compare greater.
type Version int

const (
	V1_0 Version = iota + 1
	V1_1
	V1_2
	V1_3
	AIDL
)

var versionNames = map[Version]string{
	V1_0: "1.0",
	V1_1: "1.1",
	V1_2: "1.2",
	V1_3: "1.3",
	AIDL: "aidl",
}

func (v Version) String() string {
	if n, ok := versionNames[v]; ok {
		return n
	}
	return "unknown"
}

// ParseVersion accepts "1.0".."1.3", "v1.2" or "aidl".
func ParseVersion(s string) (Version, bool) {
	s = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "v")
	for v, n := range versionNames {
		if n == s {
			return v, true
		}
	}
	return 0, false
}

// AllVersions lists every generation, newest first.
func AllVersions() []Version { return []Version{AIDL, V1_3, V1_2, V1_1, V1_0} }

// Sentinel errors. They are errcode.Code values so they survive being carried
// across process boundaries as strings.
var (
	ErrUnsupported       error = errcode.Unsupported
	ErrDeadObject        error = errcode.DeadObject
	ErrTransactionFailed error = errcode.TransactionFailed
	ErrInvalidArgument   error = errcode.InvalidParams
)

// CompletionFunc is invoked by a backend when an effect it started has
// finished. It may run on any goroutine.
type CompletionFunc func()

// Traits are static facts about a backend that are not capability bits.
type Traits struct {
	// AmbiguousUnsupported is set when the backend cannot tell "operation not
	// implemented" from "operation failed"; callers should treat Failed from
	// such a backend as possibly unsupported.
	AmbiguousUnsupported bool
}

// Backend is the uniform operation set every driver generation implements.
type Backend interface {
	Version() Version
	Traits() Traits

	Init(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error

	On(ctx context.Context, d time.Duration, done CompletionFunc) error
	Off(ctx context.Context) error
	SetAmplitude(ctx context.Context, amplitude float32) error
	SetExternalControl(ctx context.Context, enabled bool) error
	PerformEffect(ctx context.Context, e types.Effect, s types.EffectStrength, done CompletionFunc) (time.Duration, error)
	PerformComposedEffect(ctx context.Context, segs []types.PrimitiveSegment, done CompletionFunc) (time.Duration, error)
	AlwaysOnEnable(ctx context.Context, slot int32, e types.Effect, s types.EffectStrength) error
	AlwaysOnDisable(ctx context.Context, slot int32) error

	// Query surface. Each may independently return ErrUnsupported.
	Capabilities(ctx context.Context) (types.Capabilities, error)
	SupportedEffects(ctx context.Context) ([]types.Effect, error)
	SupportedPrimitives(ctx context.Context) ([]types.Primitive, error)
	PrimitiveDuration(ctx context.Context, p types.Primitive) (time.Duration, error)
	CompositionLimits(ctx context.Context) (delayMax time.Duration, sizeMax int, err error)
	ResonantFrequency(ctx context.Context) (float32, error)
	QFactor(ctx context.Context) (float32, error)
	FrequencyResponse(ctx context.Context) (types.FrequencyResponse, error)
}

// Unimplemented answers ErrUnsupported for every operation except Init,
// Close and Traits. Embed it and override what a generation supports.
type Unimplemented struct{}

func (Unimplemented) Traits() Traits             { return Traits{} }
func (Unimplemented) Init(context.Context) error { return nil }
func (Unimplemented) Close() error               { return nil }
func (Unimplemented) Ping(context.Context) error { return ErrUnsupported }
func (Unimplemented) Off(context.Context) error  { return ErrUnsupported }
func (Unimplemented) SetAmplitude(context.Context, float32) error {
	return ErrUnsupported
}
func (Unimplemented) On(context.Context, time.Duration, CompletionFunc) error {
	return ErrUnsupported
}
func (Unimplemented) SetExternalControl(context.Context, bool) error {
	return ErrUnsupported
}
func (Unimplemented) PerformEffect(context.Context, types.Effect, types.EffectStrength, CompletionFunc) (time.Duration, error) {
	return 0, ErrUnsupported
}
func (Unimplemented) PerformComposedEffect(context.Context, []types.PrimitiveSegment, CompletionFunc) (time.Duration, error) {
	return 0, ErrUnsupported
}
func (Unimplemented) AlwaysOnEnable(context.Context, int32, types.Effect, types.EffectStrength) error {
	return ErrUnsupported
}
func (Unimplemented) AlwaysOnDisable(context.Context, int32) error { return ErrUnsupported }
func (Unimplemented) Capabilities(context.Context) (types.Capabilities, error) {
	return 0, ErrUnsupported
}
func (Unimplemented) SupportedEffects(context.Context) ([]types.Effect, error) {
	return nil, ErrUnsupported
}
func (Unimplemented) SupportedPrimitives(context.Context) ([]types.Primitive, error) {
	return nil, ErrUnsupported
}
func (Unimplemented) PrimitiveDuration(context.Context, types.Primitive) (time.Duration, error) {
	return 0, ErrUnsupported
}
func (Unimplemented) CompositionLimits(context.Context) (time.Duration, int, error) {
	return 0, 0, ErrUnsupported
}
func (Unimplemented) ResonantFrequency(context.Context) (float32, error) {
	return 0, ErrUnsupported
}
func (Unimplemented) QFactor(context.Context) (float32, error) { return 0, ErrUnsupported }
func (Unimplemented) FrequencyResponse(context.Context) (types.FrequencyResponse, error) {
	return types.FrequencyResponse{}, ErrUnsupported
}
