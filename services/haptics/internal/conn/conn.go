// Package conn owns the single live handle to an actuator's driver.
package conn

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"haptics-go/errcode"
	"haptics-go/services/haptics/hal"
	"haptics-go/services/haptics/internal/describe"
	"haptics-go/types"
)

var (
	// ErrNotConnected is returned while no driver is bound. Retrying after a
	// reconnect may cure it.
	ErrNotConnected error = errcode.NotConnected
	// ErrNoDriver means no configured generation answered.
	ErrNoDriver error = errcode.NoDriver
)

// Describer builds the capability snapshot for a newly bound backend.
type Describer func(ctx context.Context, id types.ActuatorID, b hal.Backend) types.Info

// Options configure a Manager.
type Options struct {
	ID         types.ActuatorID
	Connectors []hal.Connector
	Logger     zerolog.Logger
	// Describe defaults to describe.Describe.
	Describe Describer
	// OnReconnect is called after every successful Reconnect with the
	// snapshot of the new connection. It runs with the handle locked.
	OnReconnect func(types.Info)
}

// Manager binds to the newest responding driver generation and hands the
// handle out for one call at a time. Reconnect and Close never run while a
// call holds the handle.
type Manager struct {
	id          types.ActuatorID
	connectors  []hal.Connector
	log         zerolog.Logger
	describe    Describer
	onReconnect func(types.Info)

	mu     sync.RWMutex
	b      hal.Backend
	closed bool

	// Read without mu so calls holding the handle can consult it.
	info atomic.Pointer[types.Info]
}

func New(o Options) *Manager {
	if o.Describe == nil {
		o.Describe = describe.Describe
	}
	return &Manager{
		id:          o.ID,
		connectors:  hal.NewestFirst(o.Connectors),
		log:         o.Logger.With().Int32("actuator", int32(o.ID)).Logger(),
		describe:    o.Describe,
		onReconnect: o.OnReconnect,
	}
}

// Connect probes the connectors newest first and binds the first backend that
// connects, answers Ping and initialises. Every bound connection gets a fresh
// capability snapshot. Failure of every generation wraps ErrNoDriver.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return &errcode.E{C: errcode.NotConnected, Op: "connect", Msg: "closed"}
	}
	return m.connectLocked(ctx)
}

func (m *Manager) connectLocked(ctx context.Context) error {
	var errs []error
	for _, c := range m.connectors {
		if err := ctx.Err(); err != nil {
			return err
		}
		b, err := m.probe(ctx, c)
		if err != nil {
			m.log.Debug().Str("version", c.Version().String()).Err(err).Msg("driver probe failed")
			errs = append(errs, err)
			continue
		}
		m.b = b
		info := m.describe(ctx, m.id, b)
		m.info.Store(&info)
		m.log.Info().Str("version", b.Version().String()).Msg("driver bound")
		return nil
	}
	return &errcode.E{C: errcode.NoDriver, Op: "connect", Err: errors.Join(errs...)}
}

func (m *Manager) probe(ctx context.Context, c hal.Connector) (hal.Backend, error) {
	b, err := c.Connect(ctx)
	if err != nil {
		return nil, err
	}
	for _, step := range []func(context.Context) error{b.Ping, b.Init} {
		if err := step(ctx); err != nil && !errors.Is(err, hal.ErrUnsupported) {
			_ = b.Close()
			return nil, err
		}
	}
	return b, nil
}

// WithConnection runs fn against the bound backend. It returns ErrNotConnected
// when no backend is bound.
func (m *Manager) WithConnection(fn func(hal.Backend) error) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.b == nil {
		return ErrNotConnected
	}
	return fn(m.b)
}

// Reconnect drops the current handle and probes again.
func (m *Manager) Reconnect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrNotConnected
	}
	if m.b != nil {
		_ = m.b.Close()
		m.b = nil
	}
	if err := m.connectLocked(ctx); err != nil {
		m.log.Warn().Err(err).Msg("reconnect failed")
		return err
	}
	if m.onReconnect != nil {
		m.onReconnect(*m.info.Load())
	}
	return nil
}

// Close releases the handle. Later calls see ErrNotConnected.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	if m.b == nil {
		return nil
	}
	err := m.b.Close()
	m.b = nil
	return err
}

// Connected reports whether a backend is bound.
func (m *Manager) Connected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.b != nil
}

// Version is the generation of the bound backend, zero when unbound.
func (m *Manager) Version() hal.Version {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.b == nil {
		return 0
	}
	return m.b.Version()
}

// Info returns the capability snapshot of the last bound backend.
func (m *Manager) Info() types.Info {
	if p := m.info.Load(); p != nil {
		return *p
	}
	return types.Info{}
}
