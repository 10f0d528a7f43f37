// Package haptics is the stable control surface for one haptic actuator. A
// Controller binds the newest responding driver generation, retries transient
// driver failures, reports capabilities and delivers completion notifications
// for timed effects.
package haptics

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"haptics-go/bus"
	"haptics-go/errcode"
	"haptics-go/services/haptics/hal"
	"haptics-go/services/haptics/internal/conn"
	"haptics-go/services/haptics/internal/notify"
	"haptics-go/services/haptics/internal/result"
	"haptics-go/services/haptics/internal/retry"
	"haptics-go/types"
	"haptics-go/x/mathx"
)

type (
	Result[T any] = result.Result[T]
	RetryPolicy   = retry.Policy
	Backoff       = retry.Backoff
	Sink          = notify.Sink
	SinkFunc      = notify.SinkFunc
	ChanSink      = notify.ChanSink
)

var (
	ErrNoDriver     = conn.ErrNoDriver
	ErrNotConnected = conn.ErrNotConnected
)

// ErrAmplitudeRange is the panic value for an amplitude outside (0, 1].
var ErrAmplitudeRange = &errcode.E{C: errcode.InvalidParams, Op: "set_amplitude", Msg: "amplitude must be in (0, 1]"}

func NewChanSink(size int) *ChanSink { return notify.NewChanSink(size) }

// NewBusSink publishes completions on haptics/<id>/complete.
func NewBusSink(c *bus.Connection) Sink { return notify.NewBusSink(c) }

// Millis maps a duration result to milliseconds, 0 for unsupported and -1 for
// failure.
func Millis(r Result[time.Duration]) int64 { return result.Millis(r) }

// Reply renders r for the control plane.
func Reply[T any](r Result[T]) types.ResultReply { return result.Reply(r) }

// Config configures a Controller.
type Config struct {
	ID types.ActuatorID
	// Connectors are the driver generations to probe. Order does not matter;
	// the newest is tried first.
	Connectors []hal.Connector
	Sink       Sink
	Retry      RetryPolicy
	Logger     zerolog.Logger
	// Metrics may be nil.
	Metrics *Metrics
	// OnReconnect receives the capability snapshot of every reconnected
	// driver. It must not block.
	OnReconnect func(types.Info)
}

// Controller drives one actuator. Calls are expected to be sequential; the
// controller does not queue concurrent requests.
type Controller struct {
	id    types.ActuatorID
	conn  *conn.Manager
	disp  *retry.Dispatcher
	notif *notify.Notifier
	log   zerolog.Logger
}

// New binds a driver for cfg.ID. It fails with ErrNoDriver when no configured
// generation responds.
func New(ctx context.Context, cfg Config) (*Controller, error) {
	log := cfg.Logger.With().Str("component", "haptics").Int32("actuator", int32(cfg.ID)).Logger()
	m := conn.New(conn.Options{
		ID:         cfg.ID,
		Connectors: cfg.Connectors,
		Logger:     log,
		OnReconnect: func(info types.Info) {
			cfg.Metrics.Reconnect()
			if cfg.OnReconnect != nil {
				cfg.OnReconnect(info)
			}
		},
	})
	if err := m.Connect(ctx); err != nil {
		return nil, fmt.Errorf("haptics: actuator %d: %w", cfg.ID, err)
	}
	c := &Controller{
		id:    cfg.ID,
		conn:  m,
		disp:  retry.New(m, cfg.Retry, log, cfg.Metrics),
		notif: notify.New(cfg.Sink, log, cfg.Metrics),
		log:   log,
	}
	log.Info().Str("version", m.Version().String()).Stringer("capabilities", m.Info().Capabilities.Or(types.CapNone)).Msg("controller ready")
	return c, nil
}

func (c *Controller) ID() types.ActuatorID { return c.id }

// Version is the bound driver generation, zero after Close.
func (c *Controller) Version() hal.Version { return c.conn.Version() }

// Info returns the capability snapshot. It never fails; fields the driver did
// not report are absent.
func (c *Controller) Info() types.Info { return c.conn.Info() }

// Close cancels pending completions and releases the driver.
func (c *Controller) Close() error {
	c.notif.Close()
	return c.conn.Close()
}

// IsAvailable pings the driver.
func (c *Controller) IsAvailable(ctx context.Context) Result[struct{}] {
	return retry.Do(ctx, c.disp, "ping", func(ctx context.Context, b hal.Backend) error {
		return b.Ping(ctx)
	})
}

// TurnOn vibrates for d. On success a completion tagged corr is delivered
// when the vibration ends.
func (c *Controller) TurnOn(ctx context.Context, d time.Duration, corr int64) Result[time.Duration] {
	if d < 0 {
		return result.Failed[time.Duration](&errcode.E{C: errcode.InvalidParams, Op: "on", Msg: "negative duration"})
	}
	t := c.notif.Prepare(c.id, corr)
	var callback bool
	r := retry.Call(ctx, c.disp, "on", func(ctx context.Context, b hal.Backend) (time.Duration, error) {
		var done hal.CompletionFunc
		callback, done = c.mode(t, types.CapOnCallback)
		return d, b.On(ctx, d, done)
	})
	if r.IsOK() {
		t.Commit(notify.Mode{Duration: d, Callback: callback})
	}
	return r
}

// TurnOff stops vibration and drops any pending completion. Repeating it is
// harmless.
func (c *Controller) TurnOff(ctx context.Context) Result[struct{}] {
	c.notif.Cancel(c.id)
	return retry.Do(ctx, c.disp, "off", func(ctx context.Context, b hal.Backend) error {
		return b.Off(ctx)
	})
}

// SetAmplitude sets the vibration strength. a must be in (0, 1]; anything
// else is a programming error and panics before the driver is touched.
func (c *Controller) SetAmplitude(ctx context.Context, a float32) Result[struct{}] {
	if !(a > 0) || !mathx.Between(a, 0, 1) {
		panic(fmt.Errorf("%w: got %v", ErrAmplitudeRange, a))
	}
	return retry.Do(ctx, c.disp, "set_amplitude", func(ctx context.Context, b hal.Backend) error {
		return b.SetAmplitude(ctx, a)
	})
}

// SetExternalControl hands the actuator to an external source.
func (c *Controller) SetExternalControl(ctx context.Context, enabled bool) Result[struct{}] {
	return retry.Do(ctx, c.disp, "set_external_control", func(ctx context.Context, b hal.Backend) error {
		return b.SetExternalControl(ctx, enabled)
	})
}

// PlayEffect plays a predefined effect and returns its duration.
func (c *Controller) PlayEffect(ctx context.Context, e types.Effect, s types.EffectStrength, corr int64) Result[time.Duration] {
	if ok, known := c.Info().SupportsEffect(e); known && !ok {
		return result.Unsupported[time.Duration]()
	}
	t := c.notif.Prepare(c.id, corr)
	var callback bool
	r := retry.Call(ctx, c.disp, "perform_effect", func(ctx context.Context, b hal.Backend) (time.Duration, error) {
		var done hal.CompletionFunc
		callback, done = c.mode(t, types.CapPerformCallback)
		return b.PerformEffect(ctx, e, s, done)
	})
	if d, ok := r.Value(); ok {
		t.Commit(notify.Mode{Duration: d, Callback: callback})
	}
	return r
}

// PlayComposed plays a primitive sequence and returns its duration. An empty
// sequence is Ok(0) and schedules nothing. A sequence exceeding the reported
// size or delay limits fails without reaching the driver.
func (c *Controller) PlayComposed(ctx context.Context, segs []types.PrimitiveSegment, corr int64) Result[time.Duration] {
	if len(segs) == 0 {
		return result.Ok(time.Duration(0))
	}
	info := c.Info()
	if err := checkComposition(info, segs); err != nil {
		return result.Failed[time.Duration](err)
	}
	scaled := make([]types.PrimitiveSegment, len(segs))
	for i, s := range segs {
		if math.IsNaN(float64(s.Scale)) {
			s.Scale = 0
		}
		s.Scale = mathx.Clamp(s.Scale, 0, 1)
		scaled[i] = s
	}
	t := c.notif.Prepare(c.id, corr)
	var callback bool
	r := retry.Call(ctx, c.disp, "perform_composed_effect", func(ctx context.Context, b hal.Backend) (time.Duration, error) {
		var done hal.CompletionFunc
		callback, done = c.mode(t, types.CapPerformCallback)
		return b.PerformComposedEffect(ctx, scaled, done)
	})
	if d, ok := r.Value(); ok {
		t.Commit(notify.Mode{Duration: d, Callback: callback})
	}
	return r
}

func checkComposition(info types.Info, segs []types.PrimitiveSegment) error {
	if n, ok := info.CompositionSizeMax.Get(); ok && n > 0 && len(segs) > n {
		return &errcode.E{C: errcode.InvalidParams, Op: "compose", Msg: fmt.Sprintf("%d segments exceed limit %d", len(segs), n)}
	}
	limit, limited := info.CompositionDelayMax.Get()
	for i, s := range segs {
		if s.Delay < 0 || (limited && limit > 0 && s.Delay > limit) {
			return &errcode.E{C: errcode.InvalidParams, Op: "compose", Msg: fmt.Sprintf("segment %d delay %v out of range", i, s.Delay)}
		}
	}
	return nil
}

// SetAlwaysOn binds effect e to an always-on slot.
func (c *Controller) SetAlwaysOn(ctx context.Context, slot int32, e types.Effect, s types.EffectStrength) Result[struct{}] {
	return retry.Do(ctx, c.disp, "always_on_enable", func(ctx context.Context, b hal.Backend) error {
		return b.AlwaysOnEnable(ctx, slot, e, s)
	})
}

// ClearAlwaysOn releases an always-on slot.
func (c *Controller) ClearAlwaysOn(ctx context.Context, slot int32) Result[struct{}] {
	return retry.Do(ctx, c.disp, "always_on_disable", func(ctx context.Context, b hal.Backend) error {
		return b.AlwaysOnDisable(ctx, slot)
	})
}

// mode picks the completion source for one attempt from the snapshot of the
// connection it runs on. In callback mode the ticket's Done is handed to the
// driver.
func (c *Controller) mode(t *notify.Ticket, want types.Capabilities) (bool, hal.CompletionFunc) {
	if !c.Info().Has(want) {
		return false, nil
	}
	return true, t.Done
}
