package lra

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"tinygo.org/x/drivers"

	"haptics-go/drivers/drv2605"
	"haptics-go/services/haptics/hal"
	"haptics-go/services/haptics/platform"
	"haptics-go/types"
)

const (
	regMode  = 0x01
	regRTP   = 0x02
	regSeq1  = 0x04
	regGo    = 0x0C
	addr     = drv2605.Address
	waitOf50 = 0x85
)

func newBackend(t *testing.T) (*Backend, *platform.HostI2C) {
	t.Helper()
	bus := platform.EmulatedDRV2605L()
	b := New(drv2605.New(bus), drv2605.Config{})
	if err := b.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return b, bus
}

func reg(t *testing.T, bus *platform.HostI2C, r uint8) uint8 {
	t.Helper()
	v, ok := bus.Reg(addr, r)
	if !ok {
		t.Fatal("device not attached")
	}
	return v
}

func TestPerformEffectLoadsWaveform(t *testing.T) {
	b, bus := newBackend(t)
	d, err := b.PerformEffect(context.Background(), types.EffectClick, types.StrengthMedium, nil)
	if err != nil || d != 60*time.Millisecond {
		t.Fatalf("PerformEffect = %v, %v", d, err)
	}
	if reg(t, bus, regSeq1) != drv2605.StrongClick60 || reg(t, bus, regSeq1+1) != 0 {
		t.Fatalf("sequence = %#x %#x", reg(t, bus, regSeq1), reg(t, bus, regSeq1+1))
	}
	if reg(t, bus, regGo) != 1 {
		t.Fatal("GO not set")
	}
	if _, err := b.PerformEffect(context.Background(), types.EffectRingtone1, types.StrengthMedium, nil); !errors.Is(err, hal.ErrUnsupported) {
		t.Fatalf("ringtone err = %v", err)
	}
}

func TestOnUsesRealTimeModeAndStops(t *testing.T) {
	b, bus := newBackend(t)
	ctx := context.Background()
	if err := b.SetAmplitude(ctx, 0.5); err != nil {
		t.Fatalf("SetAmplitude: %v", err)
	}
	if err := b.On(ctx, 10*time.Millisecond, nil); err != nil {
		t.Fatalf("On: %v", err)
	}
	if reg(t, bus, regMode) != byte(drv2605.ModeRealTime) || reg(t, bus, regRTP) != 127 {
		t.Fatalf("mode=%#x rtp=%d", reg(t, bus, regMode), reg(t, bus, regRTP))
	}
	deadline := time.After(time.Second)
	for reg(t, bus, regRTP) != 0 {
		select {
		case <-deadline:
			t.Fatal("actuator not stopped after duration")
		case <-time.After(5 * time.Millisecond):
		}
	}
	if reg(t, bus, regMode) != byte(drv2605.ModeInternalTrigger) {
		t.Fatalf("mode after stop = %#x", reg(t, bus, regMode))
	}
}

func TestComposeBuildsSequence(t *testing.T) {
	b, bus := newBackend(t)
	segs := []types.PrimitiveSegment{
		{Primitive: types.PrimitiveClick, Scale: 0.9},
		{Primitive: types.PrimitiveThud, Scale: 0.1, Delay: 55 * time.Millisecond},
	}
	d, err := b.PerformComposedEffect(context.Background(), segs, nil)
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	if want := 60*time.Millisecond + 50*time.Millisecond + 90*time.Millisecond; d != want {
		t.Fatalf("duration = %v want %v", d, want)
	}
	want := []uint8{drv2605.StrongClick100, waitOf50, drv2605.SoftBump30, 0}
	for i, w := range want {
		if got := reg(t, bus, regSeq1+uint8(i)); got != w {
			t.Fatalf("slot %d = %#x want %#x", i, got, w)
		}
	}

	five := make([]types.PrimitiveSegment, compositionSizeMax+1)
	if _, err := b.PerformComposedEffect(context.Background(), five, nil); !errors.Is(err, hal.ErrInvalidArgument) {
		t.Fatalf("oversized err = %v", err)
	}
}

func TestResonantFrequencyFromPeriod(t *testing.T) {
	b, _ := newBackend(t)
	f, err := b.ResonantFrequency(context.Background())
	if err != nil {
		t.Fatalf("ResonantFrequency: %v", err)
	}
	if math.Abs(float64(f)-175.1) > 0.5 {
		t.Fatalf("f = %v", f)
	}
	if _, err := b.QFactor(context.Background()); !errors.Is(err, hal.ErrUnsupported) {
		t.Fatalf("QFactor err = %v", err)
	}
}

type brokenBus struct{ drivers.I2C }

func (brokenBus) Tx(uint16, []byte, []byte) error { return errors.New("nack") }

func TestBusFailuresAreTransient(t *testing.T) {
	b := New(drv2605.New(brokenBus{}), drv2605.Config{})
	if err := b.Ping(context.Background()); !errors.Is(err, hal.ErrTransactionFailed) {
		t.Fatalf("Ping err = %v", err)
	}
}

func TestInitRejectsForeignChip(t *testing.T) {
	bus := platform.NewHostI2C()
	bus.Attach(addr, map[uint8]uint8{0x00: 0})
	b := New(drv2605.New(bus), drv2605.Config{})
	err := b.Init(context.Background())
	if err == nil || errors.Is(err, hal.ErrTransactionFailed) {
		t.Fatalf("Init err = %v, want permanent", err)
	}
}

func TestBuilderUsesNamedBus(t *testing.T) {
	bld, ok := hal.LookupBuilder("lra")
	if !ok {
		t.Fatal("lra builder not registered")
	}
	res := platform.Buses{"i2c1": platform.EmulatedDRV2605L()}.Resources()
	cs, err := bld.Build(context.Background(), hal.BuildInput{
		Actuator: types.ActuatorConfig{Backend: "lra", Params: map[string]any{"bus": "i2c1"}},
		Res:      res,
	})
	if err != nil || len(cs) != 1 {
		t.Fatalf("build = %d, %v", len(cs), err)
	}
	be, err := cs[0].Connect(context.Background())
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := be.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}

	_, err = bld.Build(context.Background(), hal.BuildInput{
		Actuator: types.ActuatorConfig{Backend: "lra"},
		Res:      res,
	})
	if err == nil {
		t.Fatal("missing default bus i2c0 should fail")
	}
}
