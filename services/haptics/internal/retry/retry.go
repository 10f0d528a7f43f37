// Package retry runs driver operations, reconnecting and retrying on
// transient failures, and folds the outcome into a result.
package retry

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"haptics-go/services/haptics/hal"
	"haptics-go/services/haptics/internal/conn"
	"haptics-go/services/haptics/internal/result"
)

// Class is how a failed attempt is treated.
type Class uint8

const (
	Permanent Class = iota
	Transient
	Unsupported
)

func (c Class) String() string {
	switch c {
	case Transient:
		return "transient"
	case Unsupported:
		return "unsupported"
	default:
		return "permanent"
	}
}

// Classifier maps a non-nil error to a Class.
type Classifier func(error) Class

// Classify is the default classifier.
func Classify(err error) Class {
	switch {
	case errors.Is(err, hal.ErrUnsupported):
		return Unsupported
	case errors.Is(err, hal.ErrDeadObject),
		errors.Is(err, hal.ErrTransactionFailed),
		errors.Is(err, conn.ErrNotConnected):
		return Transient
	default:
		return Permanent
	}
}

// DefaultMaxRetries gives two attempts in total.
const DefaultMaxRetries = 1

// Policy bounds retries. A zero MaxRetries selects DefaultMaxRetries; a
// negative one disables retries.
type Policy struct {
	MaxRetries int
	Backoff    Backoff
	Classify   Classifier
}

func (p Policy) retries() int {
	switch {
	case p.MaxRetries == 0:
		return DefaultMaxRetries
	case p.MaxRetries < 0:
		return 0
	default:
		return p.MaxRetries
	}
}

// Conn is the part of the connection manager the dispatcher needs.
type Conn interface {
	WithConnection(fn func(hal.Backend) error) error
	Reconnect(ctx context.Context) error
}

// Observer receives one event per finished call and per retry.
type Observer interface {
	Call(op string, outcome result.Kind, d time.Duration)
	Retry(op string)
}

type nopObserver struct{}

func (nopObserver) Call(string, result.Kind, time.Duration) {}
func (nopObserver) Retry(string)                            {}

// Dispatcher executes operations for one actuator.
type Dispatcher struct {
	conn   Conn
	policy Policy
	log    zerolog.Logger
	obs    Observer

	rngMu sync.Mutex
	rng   *rand.Rand
}

func New(c Conn, p Policy, log zerolog.Logger, obs Observer) *Dispatcher {
	if p.Classify == nil {
		p.Classify = Classify
	}
	if obs == nil {
		obs = nopObserver{}
	}
	return &Dispatcher{
		conn:   c,
		policy: p,
		log:    log,
		obs:    obs,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Call runs fn against the live backend. Transient failures trigger a
// reconnect and another attempt, up to the policy bound; exhaustion yields
// Failed with the last error. Unsupported is returned at once. Individual
// attempts are logged, never surfaced.
func Call[T any](ctx context.Context, d *Dispatcher, op string, fn func(context.Context, hal.Backend) (T, error)) result.Result[T] {
	start := time.Now()
	r := run(ctx, d, op, fn)
	d.obs.Call(op, r.Kind(), time.Since(start))
	return r
}

// Do is Call for operations without a payload.
func Do(ctx context.Context, d *Dispatcher, op string, fn func(context.Context, hal.Backend) error) result.Result[struct{}] {
	return Call(ctx, d, op, func(ctx context.Context, b hal.Backend) (struct{}, error) {
		return struct{}{}, fn(ctx, b)
	})
}

func run[T any](ctx context.Context, d *Dispatcher, op string, fn func(context.Context, hal.Backend) (T, error)) result.Result[T] {
	limit := d.policy.retries()
	var last error
	for attempt := 0; ; attempt++ {
		var v T
		err := d.conn.WithConnection(func(b hal.Backend) error {
			var err error
			v, err = fn(ctx, b)
			return err
		})
		if err == nil {
			return result.Ok(v)
		}
		last = err

		switch d.policy.Classify(err) {
		case Unsupported:
			return result.Unsupported[T]()
		case Permanent:
			d.log.Debug().Str("op", op).Err(err).Msg("driver call failed")
			return result.Failed[T](err)
		}

		if attempt >= limit {
			break
		}
		d.log.Debug().Str("op", op).Int("attempt", attempt+1).Err(err).Msg("transient driver failure, reconnecting")
		d.obs.Retry(op)
		if err := d.wait(ctx, attempt+1); err != nil {
			return result.Failed[T](err)
		}
		if err := d.conn.Reconnect(ctx); err != nil {
			last = err
		}
	}
	d.log.Warn().Str("op", op).Int("attempts", limit+1).Err(last).Msg("driver call exhausted retries")
	return result.Failed[T](last)
}

func (d *Dispatcher) wait(ctx context.Context, attempt int) error {
	d.rngMu.Lock()
	delay := d.policy.Backoff.Delay(attempt, d.rng)
	d.rngMu.Unlock()
	if delay <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
