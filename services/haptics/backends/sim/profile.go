package sim

import (
	"time"

	"haptics-go/services/haptics/hal"
	"haptics-go/types"
)

// Profile is what a simulated driver advertises and how long its waveforms run.
type Profile struct {
	Version      hal.Version
	Capabilities types.Capabilities
	// Effects maps each supported effect to its playback duration.
	Effects map[types.Effect]time.Duration
	// Primitives maps each supported primitive to its duration. Only the AIDL
	// generation reports primitives.
	Primitives map[types.Primitive]time.Duration
	DelayMax   time.Duration
	SizeMax    int
	QFactor    types.Opt[float32]
	Frequency  types.FrequencyResponse
	Ambiguous  bool
}

var baseEffects = map[types.Effect]time.Duration{
	types.EffectClick:       20 * time.Millisecond,
	types.EffectDoubleClick: 120 * time.Millisecond,
}

// DefaultProfile returns the capability set typical of generation v. Each
// generation extends the one before it.
func DefaultProfile(v hal.Version) Profile {
	p := Profile{
		Version:      v,
		Capabilities: types.CapAmplitudeControl,
		Effects:      map[types.Effect]time.Duration{},
	}
	for e, d := range baseEffects {
		p.Effects[e] = d
	}
	if v >= hal.V1_1 {
		p.Effects[types.EffectTick] = 10 * time.Millisecond
	}
	if v >= hal.V1_2 {
		p.Effects[types.EffectThud] = 40 * time.Millisecond
		p.Effects[types.EffectPop] = 15 * time.Millisecond
		p.Effects[types.EffectHeavyClick] = 30 * time.Millisecond
		for e := types.EffectRingtone1; e <= types.EffectRingtone15; e++ {
			p.Effects[e] = time.Second
		}
	}
	if v >= hal.V1_3 {
		p.Effects[types.EffectTextureTick] = 5 * time.Millisecond
		p.Capabilities |= types.CapExternalControl | types.CapExternalAmplitudeControl
	}
	if v >= hal.AIDL {
		p.Capabilities |= types.CapOnCallback | types.CapPerformCallback |
			types.CapComposeEffects | types.CapAlwaysOnControl |
			types.CapGetResonantFrequency | types.CapGetQFactor | types.CapFrequencyControl
		p.Primitives = map[types.Primitive]time.Duration{
			types.PrimitiveClick:     12 * time.Millisecond,
			types.PrimitiveThud:      60 * time.Millisecond,
			types.PrimitiveSpin:      90 * time.Millisecond,
			types.PrimitiveQuickRise: 50 * time.Millisecond,
			types.PrimitiveSlowRise:  150 * time.Millisecond,
			types.PrimitiveQuickFall: 40 * time.Millisecond,
			types.PrimitiveLightTick: 8 * time.Millisecond,
			types.PrimitiveLowTick:   10 * time.Millisecond,
		}
		p.DelayMax = time.Second
		p.SizeMax = 16
		p.QFactor = types.Some(float32(22.5))
		p.Frequency = types.FrequencyResponse{
			MinFrequencyHz:        types.Some(float32(60)),
			ResonantFrequencyHz:   types.Some(float32(150)),
			FrequencyResolutionHz: types.Some(float32(10)),
			MaxAmplitudes:         []float32{0.2, 0.5, 0.9, 1, 0.9, 0.5, 0.2},
		}
	}
	return p
}
