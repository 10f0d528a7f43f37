package sim

import (
	"context"
	"errors"
	"testing"
	"time"

	"haptics-go/services/haptics/hal"
	"haptics-go/types"
)

func TestGenerationsExtendEachOther(t *testing.T) {
	prev := DefaultProfile(hal.V1_0)
	for _, v := range []hal.Version{hal.V1_1, hal.V1_2, hal.V1_3, hal.AIDL} {
		p := DefaultProfile(v)
		if !p.Capabilities.Has(prev.Capabilities) {
			t.Fatalf("%v dropped capabilities of its predecessor", v)
		}
		for e := range prev.Effects {
			if _, ok := p.Effects[e]; !ok {
				t.Fatalf("%v dropped effect %v", v, e)
			}
		}
		prev = p
	}
}

func TestOlderGenerationsDoNotReportLists(t *testing.T) {
	b := New(DefaultProfile(hal.V1_2))
	ctx := context.Background()
	if _, err := b.SupportedEffects(ctx); !errors.Is(err, hal.ErrUnsupported) {
		t.Fatalf("SupportedEffects err = %v", err)
	}
	if _, err := b.PerformComposedEffect(ctx, nil, nil); !errors.Is(err, hal.ErrUnsupported) {
		t.Fatalf("compose err = %v", err)
	}
	if d, err := b.PerformEffect(ctx, types.EffectThud, types.StrengthMedium, nil); err != nil || d <= 0 {
		t.Fatalf("thud = %v, %v", d, err)
	}
}

func TestFailNextAndKill(t *testing.T) {
	b := New(DefaultProfile(hal.AIDL))
	ctx := context.Background()
	b.FailNext(OpOn, hal.ErrTransactionFailed, 1)

	if err := b.On(ctx, time.Millisecond, nil); !errors.Is(err, hal.ErrTransactionFailed) {
		t.Fatalf("first On = %v", err)
	}
	if err := b.On(ctx, time.Millisecond, nil); err != nil {
		t.Fatalf("second On = %v", err)
	}
	if b.Calls(OpOn) != 2 {
		t.Fatalf("calls = %d", b.Calls(OpOn))
	}

	b.Kill()
	if _, err := Connector(b).Connect(ctx); !errors.Is(err, hal.ErrDeadObject) {
		t.Fatalf("connect while killed = %v", err)
	}
	if err := b.Off(ctx); !errors.Is(err, hal.ErrDeadObject) {
		t.Fatalf("Off while killed = %v", err)
	}
	b.Revive()
	if _, err := Connector(b).Connect(ctx); err != nil {
		t.Fatalf("connect after revive = %v", err)
	}
}

func TestOnCallbackFires(t *testing.T) {
	b := New(DefaultProfile(hal.AIDL))
	done := make(chan struct{})
	if err := b.On(context.Background(), 5*time.Millisecond, func() { close(done) }); err != nil {
		t.Fatalf("On: %v", err)
	}
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("callback not fired")
	}
}

func TestComposeValidatesAgainstLimits(t *testing.T) {
	p := DefaultProfile(hal.AIDL)
	p.SizeMax = 2
	b := New(p)
	ctx := context.Background()

	segs := []types.PrimitiveSegment{
		{Primitive: types.PrimitiveClick, Scale: 1.4},
		{Primitive: types.PrimitiveThud, Scale: 0.5, Delay: 10 * time.Millisecond},
	}
	d, err := b.PerformComposedEffect(ctx, segs, nil)
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	if want := 12*time.Millisecond + 10*time.Millisecond + 60*time.Millisecond; d != want {
		t.Fatalf("duration = %v want %v", d, want)
	}
	if got := b.State().Last[0].Scale; got != 1 {
		t.Fatalf("scale not clamped: %v", got)
	}

	segs = append(segs, types.PrimitiveSegment{Primitive: types.PrimitiveSpin})
	if _, err := b.PerformComposedEffect(ctx, segs, nil); !errors.Is(err, hal.ErrInvalidArgument) {
		t.Fatalf("oversized compose err = %v", err)
	}
}

func TestBuilderFiltersVersions(t *testing.T) {
	bld, ok := hal.LookupBuilder("sim")
	if !ok {
		t.Fatal("sim builder not registered")
	}
	cs, err := bld.Build(context.Background(), hal.BuildInput{
		Actuator: types.ActuatorConfig{ID: 1, Backend: "sim", Versions: []string{"1.0", "1.3"}},
	})
	if err != nil || len(cs) != 2 {
		t.Fatalf("build = %d, %v", len(cs), err)
	}
}
