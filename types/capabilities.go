package types

import "strings"

// ------------------------
// Capability bits
// ------------------------

// Capabilities is the bit-set a driver advertises. Bit positions are shared by
// every driver generation.
type Capabilities uint64

const (
	CapOnCallback Capabilities = 1 << iota
	CapPerformCallback
	CapAmplitudeControl
	CapExternalControl
	CapExternalAmplitudeControl
	CapComposeEffects
	CapAlwaysOnControl
	CapGetResonantFrequency
	CapGetQFactor
	CapFrequencyControl
	CapComposePWLEEffects
)

// CapNone is the empty set.
const CapNone Capabilities = 0

var capNames = []struct {
	bit  Capabilities
	name string
}{
	{CapOnCallback, "on_callback"},
	{CapPerformCallback, "perform_callback"},
	{CapAmplitudeControl, "amplitude_control"},
	{CapExternalControl, "external_control"},
	{CapExternalAmplitudeControl, "external_amplitude_control"},
	{CapComposeEffects, "compose_effects"},
	{CapAlwaysOnControl, "always_on_control"},
	{CapGetResonantFrequency, "get_resonant_frequency"},
	{CapGetQFactor, "get_q_factor"},
	{CapFrequencyControl, "frequency_control"},
	{CapComposePWLEEffects, "compose_pwle_effects"},
}

// Has reports whether every bit in f is set.
func (c Capabilities) Has(f Capabilities) bool { return f != 0 && c&f == f }

// Names lists the set bits in declaration order.
func (c Capabilities) Names() []string {
	out := make([]string, 0, len(capNames))
	for _, cn := range capNames {
		if c&cn.bit != 0 {
			out = append(out, cn.name)
		}
	}
	return out
}

func (c Capabilities) String() string {
	if c == CapNone {
		return "none"
	}
	return strings.Join(c.Names(), "|")
}
