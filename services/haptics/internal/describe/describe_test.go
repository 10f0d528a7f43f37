package describe

import (
	"context"
	"testing"
	"time"

	"haptics-go/services/haptics/backends/sim"
	"haptics-go/services/haptics/hal"
	"haptics-go/types"
)

func TestDescribeAIDLReportsEverything(t *testing.T) {
	info := Describe(context.Background(), 4, sim.New(sim.DefaultProfile(hal.AIDL)))

	if info.ID != 4 || info.Driver != "aidl" {
		t.Fatalf("id/driver = %v/%q", info.ID, info.Driver)
	}
	if !info.Has(types.CapComposeEffects | types.CapGetQFactor) {
		t.Fatalf("capabilities = %v", info.Capabilities)
	}
	if ok, known := info.SupportsEffect(types.EffectTextureTick); !ok || !known {
		t.Fatal("texture tick not listed")
	}
	if info.PrimitiveDurations[types.PrimitiveThud] != 60*time.Millisecond {
		t.Fatalf("thud duration = %v", info.PrimitiveDurations[types.PrimitiveThud])
	}
	if n, ok := info.CompositionSizeMax.Get(); !ok || n != 16 {
		t.Fatalf("size max = %v,%v", n, ok)
	}
	if f, ok := info.Frequency.ResonantFrequencyHz.Get(); !ok || f != 150 {
		t.Fatalf("resonant = %v,%v", f, ok)
	}
	// Not reported by the driver: must stay absent.
	if info.Frequency.SuggestedSafeRangeHz.Valid {
		t.Fatal("safe range synthesised")
	}
}

func TestDescribeOldGenerationLeavesFieldsAbsent(t *testing.T) {
	info := Describe(context.Background(), 1, sim.New(sim.DefaultProfile(hal.V1_0)))

	if !info.Capabilities.Valid {
		t.Fatal("capabilities should be known")
	}
	if info.SupportedEffects != nil || info.SupportedPrimitives != nil || info.PrimitiveDurations != nil {
		t.Fatalf("lists should be absent: %+v", info)
	}
	if info.QFactor.Valid || info.CompositionDelayMax.Valid || info.CompositionSizeMax.Valid {
		t.Fatalf("scalars should be absent: %+v", info)
	}
	f := info.Frequency
	if f.MinFrequencyHz.Valid || f.ResonantFrequencyHz.Valid || f.FrequencyResolutionHz.Valid ||
		f.SuggestedSafeRangeHz.Valid || f.MaxAmplitudes != nil {
		t.Fatalf("frequency response should be absent: %+v", f)
	}
}

type flakyCaps struct {
	hal.Unimplemented
	calls int
	fails int
}

func (f *flakyCaps) Version() hal.Version { return hal.V1_1 }
func (f *flakyCaps) Capabilities(context.Context) (types.Capabilities, error) {
	f.calls++
	if f.calls <= f.fails {
		return 0, hal.ErrTransactionFailed
	}
	return types.CapAmplitudeControl, nil
}

func TestDescribeRetriesTransientOnce(t *testing.T) {
	once := &flakyCaps{fails: 1}
	if info := Describe(context.Background(), 0, once); !info.Capabilities.Valid {
		t.Fatal("one transient failure should be retried")
	}
	twice := &flakyCaps{fails: 2}
	if info := Describe(context.Background(), 0, twice); info.Capabilities.Valid {
		t.Fatal("two transient failures should leave capabilities absent")
	}
	if twice.calls != 2 {
		t.Fatalf("calls = %d", twice.calls)
	}
}
