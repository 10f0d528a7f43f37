// Package describe builds the capability snapshot of a freshly bound driver.
package describe

import (
	"context"
	"errors"
	"time"

	"haptics-go/services/haptics/hal"
	"haptics-go/types"
)

// Describe queries every capability field of b. A field whose query fails for
// any reason stays absent; nothing is defaulted. Transient failures are tried
// once more.
func Describe(ctx context.Context, id types.ActuatorID, b hal.Backend) types.Info {
	info := types.Info{
		ID:                   id,
		Driver:               b.Version().String(),
		AmbiguousUnsupported: b.Traits().AmbiguousUnsupported,
	}

	if c, err := query(ctx, b.Capabilities); err == nil {
		info.Capabilities = types.Some(c)
	}
	if es, err := query(ctx, b.SupportedEffects); err == nil {
		info.SupportedEffects = append([]types.Effect{}, es...)
	}
	if ps, err := query(ctx, b.SupportedPrimitives); err == nil {
		info.SupportedPrimitives = append([]types.Primitive{}, ps...)
		for _, p := range ps {
			d, err := query(ctx, func(ctx context.Context) (time.Duration, error) {
				return b.PrimitiveDuration(ctx, p)
			})
			if err != nil {
				continue
			}
			if info.PrimitiveDurations == nil {
				info.PrimitiveDurations = make(map[types.Primitive]time.Duration, len(ps))
			}
			info.PrimitiveDurations[p] = d
		}
	}

	type limits struct {
		delay time.Duration
		size  int
	}
	if l, err := query(ctx, func(ctx context.Context) (limits, error) {
		d, n, err := b.CompositionLimits(ctx)
		return limits{d, n}, err
	}); err == nil {
		info.CompositionDelayMax = types.Some(l.delay)
		info.CompositionSizeMax = types.Some(l.size)
	}

	if q, err := query(ctx, b.QFactor); err == nil {
		info.QFactor = types.Some(q)
	}
	if fr, err := query(ctx, b.FrequencyResponse); err == nil {
		info.Frequency = fr
		if fr.MaxAmplitudes != nil {
			info.Frequency.MaxAmplitudes = append([]float32{}, fr.MaxAmplitudes...)
		}
	}
	if !info.Frequency.ResonantFrequencyHz.Valid {
		if f, err := query(ctx, b.ResonantFrequency); err == nil {
			info.Frequency.ResonantFrequencyHz = types.Some(f)
		}
	}
	return info
}

func query[T any](ctx context.Context, fn func(context.Context) (T, error)) (T, error) {
	v, err := fn(ctx)
	if err != nil && transient(err) && ctx.Err() == nil {
		v, err = fn(ctx)
	}
	return v, err
}

func transient(err error) bool {
	return errors.Is(err, hal.ErrDeadObject) || errors.Is(err, hal.ErrTransactionFailed)
}
