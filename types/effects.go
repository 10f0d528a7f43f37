package types

import (
	"strconv"
	"strings"
	"time"
)

// ------------------------
// Predefined effects
// ------------------------

// Effect identifies a predefined waveform. Values are stable across driver
// generations.
type Effect int32

const (
	EffectClick Effect = iota
	EffectDoubleClick
	EffectTick
	EffectThud
	EffectPop
	EffectHeavyClick
	EffectRingtone1
	EffectRingtone2
	EffectRingtone3
	EffectRingtone4
	EffectRingtone5
	EffectRingtone6
	EffectRingtone7
	EffectRingtone8
	EffectRingtone9
	EffectRingtone10
	EffectRingtone11
	EffectRingtone12
	EffectRingtone13
	EffectRingtone14
	EffectRingtone15
	EffectTextureTick
)

var effectNames = map[Effect]string{
	EffectClick:       "click",
	EffectDoubleClick: "double_click",
	EffectTick:        "tick",
	EffectThud:        "thud",
	EffectPop:         "pop",
	EffectHeavyClick:  "heavy_click",
	EffectTextureTick: "texture_tick",
}

func (e Effect) String() string {
	if n, ok := effectNames[e]; ok {
		return n
	}
	if e >= EffectRingtone1 && e <= EffectRingtone15 {
		return "ringtone_" + strconv.Itoa(int(e-EffectRingtone1)+1)
	}
	return "effect_" + strconv.Itoa(int(e))
}

// ParseEffect accepts a name ("click", "ringtone_3") or a numeric id.
func ParseEffect(s string) (Effect, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for e, n := range effectNames {
		if n == s {
			return e, true
		}
	}
	if rest, ok := strings.CutPrefix(s, "ringtone_"); ok {
		n, err := strconv.Atoi(rest)
		if err == nil && n >= 1 && n <= 15 {
			return EffectRingtone1 + Effect(n-1), true
		}
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, false
	}
	return Effect(n), true
}

// EffectStrength scales a predefined effect.
type EffectStrength uint8

const (
	StrengthLight EffectStrength = iota
	StrengthMedium
	StrengthStrong
)

func (s EffectStrength) String() string {
	switch s {
	case StrengthLight:
		return "light"
	case StrengthMedium:
		return "medium"
	case StrengthStrong:
		return "strong"
	default:
		return "strength_" + strconv.Itoa(int(s))
	}
}

// ParseStrength accepts "light", "medium", "strong" or 0..2.
func ParseStrength(s string) (EffectStrength, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "light", "0":
		return StrengthLight, true
	case "medium", "1":
		return StrengthMedium, true
	case "strong", "2":
		return StrengthStrong, true
	default:
		return 0, false
	}
}

// ------------------------
// Composition primitives
// ------------------------

// Primitive identifies a short pre-tuned waveform usable in a composition.
type Primitive int32

const (
	PrimitiveNoop Primitive = iota
	PrimitiveClick
	PrimitiveThud
	PrimitiveSpin
	PrimitiveQuickRise
	PrimitiveSlowRise
	PrimitiveQuickFall
	PrimitiveLightTick
	PrimitiveLowTick
)

var primitiveNames = []string{
	"noop", "click", "thud", "spin", "quick_rise", "slow_rise", "quick_fall", "light_tick", "low_tick",
}

func (p Primitive) String() string {
	if p >= 0 && int(p) < len(primitiveNames) {
		return primitiveNames[p]
	}
	return "primitive_" + strconv.Itoa(int(p))
}

// ParsePrimitive accepts a primitive name or numeric id.
func ParsePrimitive(s string) (Primitive, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, n := range primitiveNames {
		if n == s {
			return Primitive(i), true
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, false
	}
	return Primitive(n), true
}

// PrimitiveSegment is one element of a composed effect. Scale is nominally in
// [0,1]; Delay precedes the primitive.
type PrimitiveSegment struct {
	Primitive Primitive     `json:"primitive"`
	Scale     float32       `json:"scale"`
	Delay     time.Duration `json:"delay"`
}
