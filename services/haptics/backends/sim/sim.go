// Package sim provides in-process simulated drivers for every generation,
// with scripted fault injection.
package sim

import (
	"context"
	"sync"
	"time"

	"haptics-go/services/haptics/hal"
	"haptics-go/types"
	"haptics-go/x/mathx"
)

// Operation names accepted by FailNext and Calls.
const (
	OpInit      = "init"
	OpPing      = "ping"
	OpOn        = "on"
	OpOff       = "off"
	OpAmplitude = "set_amplitude"
	OpExternal  = "set_external_control"
	OpEffect    = "perform_effect"
	OpCompose   = "perform_composed_effect"
	OpAlwaysOn  = "always_on_enable"
	OpAlwaysOff = "always_on_disable"
	OpAnyCall   = "*"
)

// State is the observable actuator state of a simulated driver.
type State struct {
	On        bool
	Amplitude float32
	External  bool
	AlwaysOn  map[int32]types.Effect
	Last      []types.PrimitiveSegment
	// Closed is set once the core released the handle.
	Closed bool
}

type fault struct {
	op  string
	err error
	n   int
}

// Backend is a simulated driver. It is safe for concurrent use.
type Backend struct {
	mu       sync.Mutex
	p        Profile
	st       State
	faults   []fault
	calls    map[string]int
	dead     bool
	closed   bool
	connects int
	timers   []*time.Timer
}

var _ hal.Backend = (*Backend)(nil)

// New returns a driver advertising p.
func New(p Profile) *Backend {
	return &Backend{
		p:     p,
		st:    State{Amplitude: 1, AlwaysOn: map[int32]types.Effect{}},
		calls: map[string]int{},
	}
}

// Connector returns a connector that binds b, failing while b is killed.
func Connector(b *Backend) hal.Connector {
	return hal.NewConnector(b.p.Version, func(ctx context.Context) (hal.Backend, error) {
		b.mu.Lock()
		defer b.mu.Unlock()
		if b.dead {
			return nil, hal.ErrDeadObject
		}
		b.closed = false
		b.connects++
		return b, nil
	})
}

// FailNext makes the next n calls of op return err. OpAnyCall matches every
// operation.
func (b *Backend) FailNext(op string, err error, n int) {
	b.mu.Lock()
	b.faults = append(b.faults, fault{op: op, err: err, n: n})
	b.mu.Unlock()
}

// Kill simulates the driver process dying. Calls and connects fail with
// ErrDeadObject until Revive.
func (b *Backend) Kill() {
	b.mu.Lock()
	b.dead = true
	b.mu.Unlock()
}

func (b *Backend) Revive() {
	b.mu.Lock()
	b.dead = false
	b.mu.Unlock()
}

// Calls reports how many times op was invoked. OpAnyCall sums every actuation
// and configuration call; queries are not counted.
func (b *Backend) Calls(op string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if op != OpAnyCall {
		return b.calls[op]
	}
	n := 0
	for _, c := range b.calls {
		n += c
	}
	return n
}

// Connects reports how many times a connector bound b.
func (b *Backend) Connects() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connects
}

// State returns a copy of the actuator state.
func (b *Backend) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	st := b.st
	st.Closed = b.closed
	st.AlwaysOn = make(map[int32]types.Effect, len(b.st.AlwaysOn))
	for k, v := range b.st.AlwaysOn {
		st.AlwaysOn[k] = v
	}
	st.Last = append([]types.PrimitiveSegment(nil), b.st.Last...)
	return st
}

// enter records a call to op and returns the injected or liveness error.
// Must be called with b.mu held.
func (b *Backend) enter(op string) error {
	b.calls[op]++
	if b.dead || b.closed {
		return hal.ErrDeadObject
	}
	for i := range b.faults {
		f := &b.faults[i]
		if f.n > 0 && (f.op == op || f.op == OpAnyCall) {
			f.n--
			return f.err
		}
	}
	return nil
}

// alive reports the liveness error for queries.
func (b *Backend) alive() error {
	if b.dead || b.closed {
		return hal.ErrDeadObject
	}
	return nil
}

func (b *Backend) has(c types.Capabilities) bool { return b.p.Capabilities.Has(c) }

func (b *Backend) after(d time.Duration, done hal.CompletionFunc) {
	b.timers = append(b.timers, time.AfterFunc(d, done))
}

func (b *Backend) Version() hal.Version { return b.p.Version }
func (b *Backend) Traits() hal.Traits {
	return hal.Traits{AmbiguousUnsupported: b.p.Ambiguous}
}

func (b *Backend) Init(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.enter(OpInit)
}

func (b *Backend) Ping(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.enter(OpPing)
}

// Close stops pending callbacks. A later Connect reopens the driver.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, t := range b.timers {
		t.Stop()
	}
	b.timers = nil
	b.closed = true
	b.st.On = false
	return nil
}

func (b *Backend) On(_ context.Context, d time.Duration, done hal.CompletionFunc) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter(OpOn); err != nil {
		return err
	}
	b.st.On = true
	if done != nil && b.has(types.CapOnCallback) {
		b.after(d, done)
	}
	return nil
}

func (b *Backend) Off(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter(OpOff); err != nil {
		return err
	}
	b.st.On = false
	return nil
}

func (b *Backend) SetAmplitude(_ context.Context, a float32) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter(OpAmplitude); err != nil {
		return err
	}
	if !b.has(types.CapAmplitudeControl) {
		return hal.ErrUnsupported
	}
	b.st.Amplitude = a
	return nil
}

func (b *Backend) SetExternalControl(_ context.Context, on bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter(OpExternal); err != nil {
		return err
	}
	if !b.has(types.CapExternalControl) {
		return hal.ErrUnsupported
	}
	b.st.External = on
	return nil
}

func (b *Backend) PerformEffect(_ context.Context, e types.Effect, s types.EffectStrength, done hal.CompletionFunc) (time.Duration, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter(OpEffect); err != nil {
		return 0, err
	}
	d, ok := b.p.Effects[e]
	if !ok || s > types.StrengthStrong {
		return 0, hal.ErrUnsupported
	}
	b.st.On = true
	if done != nil && b.has(types.CapPerformCallback) {
		b.after(d, done)
	}
	return d, nil
}

func (b *Backend) PerformComposedEffect(_ context.Context, segs []types.PrimitiveSegment, done hal.CompletionFunc) (time.Duration, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter(OpCompose); err != nil {
		return 0, err
	}
	if !b.has(types.CapComposeEffects) {
		return 0, hal.ErrUnsupported
	}
	if b.p.SizeMax > 0 && len(segs) > b.p.SizeMax {
		return 0, hal.ErrInvalidArgument
	}
	var total time.Duration
	played := make([]types.PrimitiveSegment, 0, len(segs))
	for _, s := range segs {
		pd, ok := b.p.Primitives[s.Primitive]
		if !ok && s.Primitive != types.PrimitiveNoop {
			return 0, hal.ErrUnsupported
		}
		if s.Delay < 0 || (b.p.DelayMax > 0 && s.Delay > b.p.DelayMax) {
			return 0, hal.ErrInvalidArgument
		}
		s.Scale = mathx.Clamp(s.Scale, 0, 1)
		played = append(played, s)
		total += s.Delay + pd
	}
	b.st.On = true
	b.st.Last = played
	if done != nil && b.has(types.CapPerformCallback) {
		b.after(total, done)
	}
	return total, nil
}

func (b *Backend) AlwaysOnEnable(_ context.Context, slot int32, e types.Effect, s types.EffectStrength) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter(OpAlwaysOn); err != nil {
		return err
	}
	if !b.has(types.CapAlwaysOnControl) {
		return hal.ErrUnsupported
	}
	if _, ok := b.p.Effects[e]; !ok {
		return hal.ErrUnsupported
	}
	b.st.AlwaysOn[slot] = e
	return nil
}

func (b *Backend) AlwaysOnDisable(_ context.Context, slot int32) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter(OpAlwaysOff); err != nil {
		return err
	}
	if !b.has(types.CapAlwaysOnControl) {
		return hal.ErrUnsupported
	}
	delete(b.st.AlwaysOn, slot)
	return nil
}

// ---- queries ----

func (b *Backend) Capabilities(context.Context) (types.Capabilities, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.p.Capabilities, b.alive()
}

func (b *Backend) SupportedEffects(context.Context) ([]types.Effect, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.alive(); err != nil {
		return nil, err
	}
	if b.p.Version < hal.AIDL {
		return nil, hal.ErrUnsupported
	}
	out := make([]types.Effect, 0, len(b.p.Effects))
	for e := types.EffectClick; e <= types.EffectTextureTick; e++ {
		if _, ok := b.p.Effects[e]; ok {
			out = append(out, e)
		}
	}
	return out, nil
}

func (b *Backend) SupportedPrimitives(context.Context) ([]types.Primitive, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.alive(); err != nil {
		return nil, err
	}
	if !b.has(types.CapComposeEffects) {
		return nil, hal.ErrUnsupported
	}
	out := make([]types.Primitive, 0, len(b.p.Primitives))
	for p := types.PrimitiveNoop; p <= types.PrimitiveLowTick; p++ {
		if _, ok := b.p.Primitives[p]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (b *Backend) PrimitiveDuration(_ context.Context, p types.Primitive) (time.Duration, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.alive(); err != nil {
		return 0, err
	}
	d, ok := b.p.Primitives[p]
	if !ok {
		return 0, hal.ErrUnsupported
	}
	return d, nil
}

func (b *Backend) CompositionLimits(context.Context) (time.Duration, int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.alive(); err != nil {
		return 0, 0, err
	}
	if !b.has(types.CapComposeEffects) {
		return 0, 0, hal.ErrUnsupported
	}
	return b.p.DelayMax, b.p.SizeMax, nil
}

func (b *Backend) ResonantFrequency(context.Context) (float32, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.alive(); err != nil {
		return 0, err
	}
	f, ok := b.p.Frequency.ResonantFrequencyHz.Get()
	if !ok || !b.has(types.CapGetResonantFrequency) {
		return 0, hal.ErrUnsupported
	}
	return f, nil
}

func (b *Backend) QFactor(context.Context) (float32, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.alive(); err != nil {
		return 0, err
	}
	q, ok := b.p.QFactor.Get()
	if !ok || !b.has(types.CapGetQFactor) {
		return 0, hal.ErrUnsupported
	}
	return q, nil
}

func (b *Backend) FrequencyResponse(context.Context) (types.FrequencyResponse, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.alive(); err != nil {
		return types.FrequencyResponse{}, err
	}
	if !b.has(types.CapFrequencyControl) {
		return types.FrequencyResponse{}, hal.ErrUnsupported
	}
	fr := b.p.Frequency
	fr.MaxAmplitudes = append([]float32(nil), fr.MaxAmplitudes...)
	return fr, nil
}
