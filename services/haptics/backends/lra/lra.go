// Package lra drives a linear resonant actuator through a DRV2605 on I²C.
package lra

import (
	"context"
	"errors"
	"sync"
	"time"

	"haptics-go/drivers/drv2605"
	"haptics-go/errcode"
	"haptics-go/services/haptics/hal"
	"haptics-go/types"
	"haptics-go/x/mathx"
)

type waveform struct {
	ids [3]uint8 // strong, medium, light
	dur time.Duration
}

func (w waveform) id(s types.EffectStrength) uint8 {
	switch s {
	case types.StrengthLight:
		return w.ids[2]
	case types.StrengthMedium:
		return w.ids[1]
	default:
		return w.ids[0]
	}
}

var effects = map[types.Effect]waveform{
	types.EffectClick:       {[3]uint8{drv2605.StrongClick100, drv2605.StrongClick60, drv2605.StrongClick30}, 60 * time.Millisecond},
	types.EffectDoubleClick: {[3]uint8{drv2605.DoubleClick100, drv2605.DoubleClick60, drv2605.DoubleClick60}, 180 * time.Millisecond},
	types.EffectTick:        {[3]uint8{drv2605.SharpTick1, drv2605.SharpTick2, drv2605.SharpTick3}, 30 * time.Millisecond},
	types.EffectThud:        {[3]uint8{drv2605.SoftBump100, drv2605.SoftBump60, drv2605.SoftBump30}, 90 * time.Millisecond},
	types.EffectPop:         {[3]uint8{drv2605.SharpClick100, drv2605.SharpClick60, drv2605.SharpClick30}, 40 * time.Millisecond},
	types.EffectHeavyClick:  {[3]uint8{drv2605.StrongClick1, drv2605.StrongClick100, drv2605.StrongClick60}, 70 * time.Millisecond},
	types.EffectTextureTick: {[3]uint8{drv2605.SharpTick3, drv2605.SharpTick3, drv2605.SharpTick3}, 20 * time.Millisecond},
}

// Primitives use the strong variant at scale >= 2/3, medium at >= 1/3.
var primitives = map[types.Primitive]waveform{
	types.PrimitiveClick:     {[3]uint8{drv2605.StrongClick100, drv2605.StrongClick60, drv2605.StrongClick30}, 60 * time.Millisecond},
	types.PrimitiveThud:      {[3]uint8{drv2605.SoftBump100, drv2605.SoftBump60, drv2605.SoftBump30}, 90 * time.Millisecond},
	types.PrimitiveSpin:      {[3]uint8{drv2605.Buzz1, drv2605.Buzz1, drv2605.SoftFuzz60}, 150 * time.Millisecond},
	types.PrimitiveQuickRise: {[3]uint8{drv2605.RampUpShortSharp1, drv2605.RampUpShortSharp1, drv2605.RampUpShortSharp1}, 100 * time.Millisecond},
	types.PrimitiveSlowRise:  {[3]uint8{drv2605.RampUpLongSmooth1, drv2605.RampUpLongSmooth1, drv2605.RampUpLongSmooth1}, 400 * time.Millisecond},
	types.PrimitiveQuickFall: {[3]uint8{drv2605.RampDownShortSharp1, drv2605.RampDownShortSharp1, drv2605.RampDownShortSharp1}, 100 * time.Millisecond},
	types.PrimitiveLightTick: {[3]uint8{drv2605.SharpTick3, drv2605.SharpTick3, drv2605.SharpTick3}, 20 * time.Millisecond},
	types.PrimitiveLowTick:   {[3]uint8{drv2605.SharpTick2, drv2605.SharpTick2, drv2605.SharpTick3}, 25 * time.Millisecond},
}

func scaleStrength(scale float32) types.EffectStrength {
	switch scale = mathx.Clamp(scale, 0, 1); {
	case scale >= 2.0/3:
		return types.StrengthStrong
	case scale >= 1.0/3:
		return types.StrengthMedium
	default:
		return types.StrengthLight
	}
}

// Each segment may take a wait slot and a waveform slot.
const compositionSizeMax = drv2605.SequenceLen / 2

const caps = types.CapAmplitudeControl | types.CapExternalControl |
	types.CapComposeEffects | types.CapGetResonantFrequency

// Backend is the native DRV2605 driver. The chip has no completion interrupt,
// so it never calls completion callbacks.
type Backend struct {
	hal.Unimplemented

	mu        sync.Mutex
	dev       drv2605.Device
	cfg       drv2605.Config
	amplitude float32
	stopAt    *time.Timer
}

var _ hal.Backend = (*Backend)(nil)

func New(dev drv2605.Device, cfg drv2605.Config) *Backend {
	return &Backend{dev: dev, cfg: cfg, amplitude: 1}
}

// busErr marks I²C failures as transient so the caller reconnects and retries.
func busErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, drv2605.ErrSequenceFull) || errors.Is(err, drv2605.ErrWaitRange) {
		return errcode.Wrap(errcode.InvalidParams, op, err)
	}
	return errcode.Wrap(errcode.TransactionFailed, op, err)
}

func (b *Backend) Version() hal.Version { return hal.AIDL }

func (b *Backend) Init(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.dev.Configure(b.cfg); err != nil {
		if errors.Is(err, drv2605.ErrUnknownDevice) {
			return errcode.Wrap(errcode.NoDriver, "init", err)
		}
		return busErr("init", err)
	}
	return nil
}

func (b *Backend) Ping(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, err := b.dev.DeviceID()
	return busErr("ping", err)
}

func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cancelStop()
	if err := b.dev.Stop(); err != nil {
		return busErr("close", err)
	}
	return busErr("close", b.dev.Standby())
}

// must hold b.mu
func (b *Backend) cancelStop() {
	if b.stopAt != nil {
		b.stopAt.Stop()
		b.stopAt = nil
	}
}

func (b *Backend) rtpLevel() uint8 {
	return uint8(mathx.Clamp(b.amplitude, 0, 1)*254 + 0.5)
}

// On drives the actuator in real-time mode and stops it after d.
func (b *Backend) On(_ context.Context, d time.Duration, _ hal.CompletionFunc) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cancelStop()
	if err := b.dev.SetRealTimeValue(b.rtpLevel()); err != nil {
		return busErr("on", err)
	}
	if err := b.dev.SetMode(drv2605.ModeRealTime); err != nil {
		return busErr("on", err)
	}
	var t *time.Timer
	t = time.AfterFunc(d, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if b.stopAt != t {
			return
		}
		b.stopAt = nil
		_ = b.idle()
	})
	b.stopAt = t
	return nil
}

// must hold b.mu
func (b *Backend) idle() error {
	if err := b.dev.SetRealTimeValue(0); err != nil {
		return err
	}
	if err := b.dev.SetMode(drv2605.ModeInternalTrigger); err != nil {
		return err
	}
	return b.dev.Stop()
}

func (b *Backend) Off(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cancelStop()
	return busErr("off", b.idle())
}

func (b *Backend) SetAmplitude(_ context.Context, a float32) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.amplitude = a
	if b.stopAt == nil {
		return nil
	}
	return busErr("set_amplitude", b.dev.SetRealTimeValue(b.rtpLevel()))
}

func (b *Backend) SetExternalControl(_ context.Context, enabled bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cancelStop()
	m := drv2605.ModeInternalTrigger
	if enabled {
		m = drv2605.ModeAudioToVibe
	}
	return busErr("set_external_control", b.dev.SetMode(m))
}

func (b *Backend) play(op string, slots []uint8) error {
	b.cancelStop()
	if err := b.dev.SetMode(drv2605.ModeInternalTrigger); err != nil {
		return busErr(op, err)
	}
	if err := b.dev.SetSequence(slots); err != nil {
		return busErr(op, err)
	}
	return busErr(op, b.dev.Go())
}

func (b *Backend) PerformEffect(_ context.Context, e types.Effect, s types.EffectStrength, _ hal.CompletionFunc) (time.Duration, error) {
	w, ok := effects[e]
	if !ok || s > types.StrengthStrong {
		return 0, hal.ErrUnsupported
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.play("perform_effect", []uint8{w.id(s)}); err != nil {
		return 0, err
	}
	return w.dur, nil
}

func (b *Backend) PerformComposedEffect(_ context.Context, segs []types.PrimitiveSegment, _ hal.CompletionFunc) (time.Duration, error) {
	if len(segs) > compositionSizeMax {
		return 0, hal.ErrInvalidArgument
	}
	var (
		slots []uint8
		total time.Duration
	)
	for _, s := range segs {
		if s.Delay > 0 {
			w, err := drv2605.Wait(s.Delay)
			if err != nil {
				return 0, busErr("perform_composed_effect", err)
			}
			slots = append(slots, w)
			total += s.Delay.Truncate(drv2605.WaitUnit)
		}
		if s.Primitive == types.PrimitiveNoop {
			continue
		}
		w, ok := primitives[s.Primitive]
		if !ok {
			return 0, hal.ErrUnsupported
		}
		slots = append(slots, w.id(scaleStrength(s.Scale)))
		total += w.dur
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.play("perform_composed_effect", slots); err != nil {
		return 0, err
	}
	return total, nil
}

func (b *Backend) Capabilities(context.Context) (types.Capabilities, error) { return caps, nil }

func (b *Backend) SupportedEffects(context.Context) ([]types.Effect, error) {
	var out []types.Effect
	for e := types.EffectClick; e <= types.EffectTextureTick; e++ {
		if _, ok := effects[e]; ok {
			out = append(out, e)
		}
	}
	return out, nil
}

func (b *Backend) SupportedPrimitives(context.Context) ([]types.Primitive, error) {
	out := []types.Primitive{types.PrimitiveNoop}
	for p := types.PrimitiveClick; p <= types.PrimitiveLowTick; p++ {
		if _, ok := primitives[p]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (b *Backend) PrimitiveDuration(_ context.Context, p types.Primitive) (time.Duration, error) {
	if p == types.PrimitiveNoop {
		return 0, nil
	}
	w, ok := primitives[p]
	if !ok {
		return 0, hal.ErrUnsupported
	}
	return w.dur, nil
}

func (b *Backend) CompositionLimits(context.Context) (time.Duration, int, error) {
	return drv2605.MaxWait, compositionSizeMax, nil
}

// ResonantFrequency derives the frequency from the measured LRA period. It is
// unsupported until the chip has driven the actuator once.
func (b *Backend) ResonantFrequency(context.Context) (float32, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, err := b.dev.ResonancePeriod()
	if err != nil {
		return 0, busErr("resonant_frequency", err)
	}
	if p <= 0 {
		return 0, hal.ErrUnsupported
	}
	return float32(time.Second) / float32(p), nil
}
