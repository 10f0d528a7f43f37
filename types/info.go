package types

import (
	"encoding/json"
	"math"
	"time"
)

// Opt carries a value that a driver may not report. The zero value is absent.
type Opt[T any] struct {
	Value T
	Valid bool
}

// Some wraps a reported value.
func Some[T any](v T) Opt[T] { return Opt[T]{Value: v, Valid: true} }

// Get returns the value and whether it was reported.
func (o Opt[T]) Get() (T, bool) { return o.Value, o.Valid }

// Or returns the value, or d when absent.
func (o Opt[T]) Or(d T) T {
	if o.Valid {
		return o.Value
	}
	return d
}

// MarshalJSON encodes an absent value as null.
func (o Opt[T]) MarshalJSON() ([]byte, error) {
	if !o.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(o.Value)
}

func (o *Opt[T]) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*o = Opt[T]{}
		return nil
	}
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*o = Some(v)
	return nil
}

// FrequencyResponse describes the actuator's frequency mapping. Every field is
// optional; MaxAmplitudes is nil when not reported.
type FrequencyResponse struct {
	MinFrequencyHz        Opt[float32] `json:"min_frequency_hz"`
	ResonantFrequencyHz   Opt[float32] `json:"resonant_frequency_hz"`
	FrequencyResolutionHz Opt[float32] `json:"frequency_resolution_hz"`
	SuggestedSafeRangeHz  Opt[float32] `json:"suggested_safe_range_hz"`
	MaxAmplitudes         []float32    `json:"max_amplitudes"`
}

// Info is the immutable capability snapshot of one actuator, built once per
// driver connection. Absent data stays absent: nil slices and maps, invalid Opt.
type Info struct {
	ID                   ActuatorID                  `json:"id"`
	Driver               string                      `json:"driver"`
	Capabilities         Opt[Capabilities]           `json:"capabilities"`
	SupportedEffects     []Effect                    `json:"supported_effects"`
	SupportedPrimitives  []Primitive                 `json:"supported_primitives"`
	PrimitiveDurations   map[Primitive]time.Duration `json:"primitive_durations,omitempty"`
	CompositionDelayMax  Opt[time.Duration]          `json:"composition_delay_max"`
	CompositionSizeMax   Opt[int]                    `json:"composition_size_max"`
	QFactor              Opt[float32]                `json:"q_factor"`
	Frequency            FrequencyResponse           `json:"frequency"`
	AmbiguousUnsupported bool                        `json:"ambiguous_unsupported"`
}

// Has reports whether the driver advertised every bit in f. Unknown
// capabilities report false.
func (i Info) Has(f Capabilities) bool {
	c, ok := i.Capabilities.Get()
	return ok && c.Has(f)
}

// SupportsEffect reports (supported, known). known is false when the driver
// did not report its effect list.
func (i Info) SupportsEffect(e Effect) (bool, bool) {
	if i.SupportedEffects == nil {
		return false, false
	}
	for _, s := range i.SupportedEffects {
		if s == e {
			return true, true
		}
	}
	return false, true
}

// SupportsPrimitive reports (supported, known) like SupportsEffect.
func (i Info) SupportsPrimitive(p Primitive) (bool, bool) {
	if i.SupportedPrimitives == nil {
		return false, false
	}
	for _, s := range i.SupportedPrimitives {
		if s == p {
			return true, true
		}
	}
	return false, true
}

// WireInfo is Info translated to the flat caller convention: NaN for absent
// frequencies and Q-factor, empty lists for absent sets, no capabilities when
// unknown.
type WireInfo struct {
	ID                    int32     `json:"id"`
	Capabilities          int64     `json:"capabilities"`
	SupportedEffects      []int32   `json:"supported_effects"`
	SupportedPrimitives   []int32   `json:"supported_primitives"`
	QFactor               float32   `json:"-"`
	MinFrequencyHz        float32   `json:"-"`
	ResonantFrequencyHz   float32   `json:"-"`
	FrequencyResolutionHz float32   `json:"-"`
	SuggestedSafeRangeHz  float32   `json:"-"`
	MaxAmplitudes         []float32 `json:"max_amplitudes"`
}

// Wire translates absence into the caller's "not reported" convention.
func (i Info) Wire() WireInfo {
	nan := float32(math.NaN())
	w := WireInfo{
		ID:                    int32(i.ID),
		Capabilities:          int64(i.Capabilities.Or(CapNone)),
		SupportedEffects:      make([]int32, 0, len(i.SupportedEffects)),
		SupportedPrimitives:   make([]int32, 0, len(i.SupportedPrimitives)),
		QFactor:               i.QFactor.Or(nan),
		MinFrequencyHz:        i.Frequency.MinFrequencyHz.Or(nan),
		ResonantFrequencyHz:   i.Frequency.ResonantFrequencyHz.Or(nan),
		FrequencyResolutionHz: i.Frequency.FrequencyResolutionHz.Or(nan),
		SuggestedSafeRangeHz:  i.Frequency.SuggestedSafeRangeHz.Or(nan),
		MaxAmplitudes:         append([]float32{}, i.Frequency.MaxAmplitudes...),
	}
	for _, e := range i.SupportedEffects {
		w.SupportedEffects = append(w.SupportedEffects, int32(e))
	}
	for _, p := range i.SupportedPrimitives {
		w.SupportedPrimitives = append(w.SupportedPrimitives, int32(p))
	}
	return w
}
