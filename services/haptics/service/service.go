// Package service hosts one haptics controller per configured actuator and
// exposes them on the bus.
//
// The service waits for a retained config/haptics message, builds a
// controller for every actuator it names and then answers requests on
// haptics/<id>/control/<verb>. Each actuator has its own worker, so a slow
// driver never stalls the others or the bus loop. Retained capability
// snapshots are published on haptics/<id>/info and refreshed on every driver
// reconnect. Link state goes to haptics/<id>/state and completions to
// haptics/<id>/complete.
package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"haptics-go/bus"
	"haptics-go/errcode"
	"haptics-go/services/haptics"
	"haptics-go/services/haptics/hal"
	"haptics-go/types"
	"haptics-go/x/timex"
)

const (
	defaultQueueLen    = 8
	defaultCallTimeout = 5 * time.Second
)

// Options configure a Service. Zero values select defaults.
type Options struct {
	Res    hal.Resources
	Logger zerolog.Logger
	// Metrics may be nil.
	Metrics *haptics.Metrics
	// QueueLen bounds pending requests per actuator; excess requests are
	// answered busy.
	QueueLen int
	// CallTimeout bounds one control request including retries.
	CallTimeout time.Duration
}

type actuator struct {
	id   types.ActuatorID
	ctrl *haptics.Controller
	reqs chan *bus.Message

	// owned by the worker goroutine
	link types.Link
}

type Service struct {
	conn *bus.Connection
	opts Options
	log  zerolog.Logger

	acts map[types.ActuatorID]*actuator
	wg   sync.WaitGroup
}

func New(conn *bus.Connection, opts Options) *Service {
	if opts.QueueLen <= 0 {
		opts.QueueLen = defaultQueueLen
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = defaultCallTimeout
	}
	return &Service{
		conn: conn,
		opts: opts,
		log:  opts.Logger.With().Str("component", "haptics-service").Logger(),
		acts: map[types.ActuatorID]*actuator{},
	}
}

// Run serves until ctx is cancelled, then stops the workers and releases
// every driver.
func (s *Service) Run(ctx context.Context) {
	cfgSub := s.conn.Subscribe(ConfigTopic())
	ctrlSub := s.conn.Subscribe(ctrlWildcard())
	defer s.conn.Unsubscribe(cfgSub)
	defer s.conn.Unsubscribe(ctrlSub)

	var hb heartbeat
	defer hb.stop()

	s.pubState("idle", "awaiting_config")
	ready := false
	for {
		select {
		case <-ctx.Done():
			s.shutdown()
			s.pubState("stopped", "context_cancelled")
			return
		case m := <-cfgSub.Channel():
			cfg, ok := payload[types.HapticsConfig](m)
			if !ok {
				s.log.Warn().Msgf("ignoring config payload of type %T", m.Payload)
				continue
			}
			s.applyConfig(ctx, cfg)
			if hb.set(cfg.Heartbeat) {
				s.log.Info().Dur("interval", hb.interval).Msg("heartbeat interval set")
			}
			if !ready {
				ready = true
				s.pubState("ready", "")
			}
		case <-hb.C():
			s.probe()
		case m := <-ctrlSub.Channel():
			if !ready {
				s.replyErr(m, errcode.NotReady)
				continue
			}
			s.dispatch(m)
		}
	}
}

// applyConfig is additive: actuators already running are left alone.
func (s *Service) applyConfig(ctx context.Context, cfg types.HapticsConfig) {
	policy := retryPolicy(cfg.Retry)
	for _, ac := range cfg.Actuators {
		if _, exists := s.acts[ac.ID]; exists {
			continue
		}
		log := s.log.With().Int32("actuator", int32(ac.ID)).Str("backend", ac.Backend).Logger()
		b, ok := hal.LookupBuilder(ac.Backend)
		if !ok {
			log.Error().Msg("no builder for backend")
			s.pubActuatorState(ac.ID, types.LinkDown, "", errcode.NoDriver)
			continue
		}
		cs, err := b.Build(ctx, hal.BuildInput{Actuator: ac, Res: s.opts.Res})
		if err != nil {
			log.Error().Err(err).Msg("build failed")
			s.pubActuatorState(ac.ID, types.LinkDown, "", err)
			continue
		}
		id := ac.ID
		ctrl, err := haptics.New(ctx, haptics.Config{
			ID:          id,
			Connectors:  cs,
			Sink:        haptics.NewBusSink(s.conn),
			Retry:       policy,
			Logger:      s.opts.Logger,
			Metrics:     s.opts.Metrics,
			OnReconnect: func(info types.Info) { s.pubInfo(id, info) },
		})
		if err != nil {
			log.Error().Err(err).Msg("no driver bound")
			s.pubActuatorState(ac.ID, types.LinkDown, "", err)
			continue
		}
		a := &actuator{
			id:   ac.ID,
			ctrl: ctrl,
			reqs: make(chan *bus.Message, s.opts.QueueLen),
			link: types.LinkUp,
		}
		s.acts[ac.ID] = a
		s.pubInfo(a.id, ctrl.Info())
		s.pubActuatorState(a.id, types.LinkUp, ctrl.Version().String(), nil)

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.work(ctx, a)
		}()
	}
}

// dispatch hands a control request to its actuator's worker without blocking.
func (s *Service) dispatch(m *bus.Message) {
	// haptics/<id>/control/<verb>
	if m.Topic.Len() != 4 {
		s.replyErr(m, errcode.InvalidTopic)
		return
	}
	id, ok := m.Topic.At(1).(int32)
	if !ok {
		s.replyErr(m, errcode.InvalidTopic)
		return
	}
	a, ok := s.acts[types.ActuatorID(id)]
	if !ok {
		s.replyErr(m, errcode.UnknownActuator)
		return
	}
	select {
	case a.reqs <- m:
	default:
		s.replyErr(m, errcode.Busy)
	}
}

func (s *Service) work(ctx context.Context, a *actuator) {
	for m := range a.reqs {
		verb, _ := m.Topic.At(3).(string)
		cctx, cancel := context.WithTimeout(ctx, s.opts.CallTimeout)
		s.handle(cctx, a, verb, m)
		cancel()
	}
}

func (s *Service) shutdown() {
	for _, a := range s.acts {
		close(a.reqs)
	}
	s.wg.Wait()
	for id, a := range s.acts {
		if err := a.ctrl.Close(); err != nil {
			s.log.Warn().Err(err).Int32("actuator", int32(id)).Msg("close failed")
		}
		s.pubActuatorState(id, types.LinkDown, "", nil)
	}
	clear(s.acts)
}

// track republishes the actuator state when the link changes. Called from the
// actuator's worker only.
func (s *Service) track(a *actuator, err error) {
	link := types.LinkUp
	if linkLost(err) {
		link = types.LinkDegraded
	}
	if link == a.link {
		return
	}
	a.link = link
	s.pubActuatorState(a.id, link, a.ctrl.Version().String(), err)
}

func linkLost(err error) bool {
	return errors.Is(err, hal.ErrDeadObject) ||
		errors.Is(err, hal.ErrTransactionFailed) ||
		errors.Is(err, haptics.ErrNotConnected) ||
		errors.Is(err, haptics.ErrNoDriver)
}

func (s *Service) pubState(level, status string) {
	s.conn.Publish(s.conn.NewMessage(
		StateTopic(),
		types.ServiceState{Level: level, Status: status, TSms: timex.NowMs()},
		true,
	))
}

func (s *Service) pubInfo(id types.ActuatorID, info types.Info) {
	s.conn.Publish(s.conn.NewMessage(InfoTopic(id), info, true))
}

func (s *Service) pubActuatorState(id types.ActuatorID, link types.Link, driver string, err error) {
	st := types.ActuatorState{Link: link, Driver: driver, TSms: timex.NowMs()}
	if err != nil {
		st.Error = string(errcode.Of(err))
	}
	s.conn.Publish(s.conn.NewMessage(ActuatorStateTopic(id), st, true))
}

func retryPolicy(rc types.RetryConfig) haptics.RetryPolicy {
	return haptics.RetryPolicy{
		MaxRetries: rc.MaxRetries,
		Backoff: haptics.Backoff{
			Initial:    time.Duration(rc.BackoffMs) * time.Millisecond,
			Max:        time.Duration(rc.MaxBackoffMs) * time.Millisecond,
			Multiplier: 2,
			Jitter:     rc.Jitter,
		},
	}
}
