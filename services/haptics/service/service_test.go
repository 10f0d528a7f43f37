package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"haptics-go/bus"
	"haptics-go/errcode"
	"haptics-go/internal/testutil/testlog"
	"haptics-go/services/haptics/backends/sim"
	"haptics-go/services/haptics/hal"
	"haptics-go/types"
)

// Backends handed out by the "svc-sim" builder, keyed by actuator. The
// connector binds whichever backend is registered when it connects, so a
// test can swap the driver behind a running actuator.
var (
	simMu   sync.Mutex
	simDrvs = map[types.ActuatorID]*sim.Backend{}
)

func currentSim(id types.ActuatorID) *sim.Backend {
	simMu.Lock()
	defer simMu.Unlock()
	drv, ok := simDrvs[id]
	if !ok {
		drv = sim.New(sim.DefaultProfile(hal.AIDL))
		simDrvs[id] = drv
	}
	return drv
}

func init() {
	hal.RegisterBuilder("svc-sim", hal.BuilderFunc(func(_ context.Context, in hal.BuildInput) ([]hal.Connector, error) {
		id := in.Actuator.ID
		return []hal.Connector{hal.NewConnector(currentSim(id).Version(), func(ctx context.Context) (hal.Backend, error) {
			return sim.Connector(currentSim(id)).Connect(ctx)
		})}, nil
	}))
}

func useSim(t *testing.T, id types.ActuatorID, v hal.Version) *sim.Backend {
	t.Helper()
	drv := sim.New(sim.DefaultProfile(v))
	simMu.Lock()
	simDrvs[id] = drv
	simMu.Unlock()
	t.Cleanup(func() {
		simMu.Lock()
		delete(simDrvs, id)
		simMu.Unlock()
	})
	return drv
}

type harness struct {
	conn   *bus.Connection
	cancel context.CancelFunc
	done   chan struct{}
}

func start(t *testing.T) *harness {
	t.Helper()
	b := bus.NewBus(16)
	svc := New(b.NewConnection("haptics"), Options{Logger: testlog.Start(t), CallTimeout: time.Second})
	ctx, cancel := context.WithCancel(context.Background())
	h := &harness{conn: b.NewConnection("test"), cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(h.done)
		svc.Run(ctx)
	}()
	t.Cleanup(h.stop)
	// Run subscribes before publishing its idle state.
	h.waitRetained(t, StateTopic(), func(p any) bool {
		st, ok := p.(types.ServiceState)
		return ok && st.Level == "idle"
	})
	return h
}

func (h *harness) stop() {
	h.cancel()
	<-h.done
}

func (h *harness) configure(t *testing.T, cfg types.HapticsConfig) {
	t.Helper()
	h.conn.Publish(h.conn.NewMessage(ConfigTopic(), cfg, true))
	h.waitRetained(t, StateTopic(), func(p any) bool {
		st, ok := p.(types.ServiceState)
		return ok && st.Level == "ready"
	})
}

func (h *harness) request(t *testing.T, id types.ActuatorID, verb string, p any) any {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	reply, err := h.conn.RequestWait(ctx, h.conn.NewMessage(ControlTopic(id, verb), p, false))
	if err != nil {
		t.Fatalf("%s on %d: %v", verb, id, err)
	}
	return reply.Payload
}

// waitRetained subscribes to topic until a message satisfies match.
func (h *harness) waitRetained(t *testing.T, topic bus.Topic, match func(any) bool) any {
	t.Helper()
	sub := h.conn.Subscribe(topic)
	defer h.conn.Unsubscribe(sub)
	deadline := time.After(2 * time.Second)
	for {
		select {
		case m := <-sub.Channel():
			if match(m.Payload) {
				return m.Payload
			}
		case <-deadline:
			t.Fatalf("timeout waiting on %v", topic)
			return nil
		}
	}
}

func wantResult(t *testing.T, got any, status string) types.ResultReply {
	t.Helper()
	r, ok := got.(types.ResultReply)
	if !ok {
		t.Fatalf("reply = %#v, want ResultReply", got)
	}
	if r.Status != status {
		t.Fatalf("status = %q (%s), want %q", r.Status, r.Reason, status)
	}
	return r
}

func wantError(t *testing.T, got any, code errcode.Code) {
	t.Helper()
	r, ok := got.(types.ErrorReply)
	if !ok || r.Error != string(code) {
		t.Fatalf("reply = %#v, want error %q", got, code)
	}
}

func oneActuator(id types.ActuatorID) types.HapticsConfig {
	return types.HapticsConfig{
		Actuators: []types.ActuatorConfig{{ID: id, Backend: "svc-sim"}},
	}
}

func TestControlRejectedBeforeConfig(t *testing.T) {
	h := start(t)
	wantError(t, h.request(t, 1, VerbOff, nil), errcode.NotReady)
}

func TestConfigPublishesInfoAndState(t *testing.T) {
	useSim(t, 1, hal.AIDL)
	h := start(t)
	h.configure(t, oneActuator(1))

	info := h.waitRetained(t, InfoTopic(1), func(p any) bool { _, ok := p.(types.Info); return ok }).(types.Info)
	if !info.Has(types.CapComposeEffects) || info.Driver != "aidl" {
		t.Fatalf("info = %+v", info)
	}
	st := h.waitRetained(t, ActuatorStateTopic(1), func(p any) bool { _, ok := p.(types.ActuatorState); return ok }).(types.ActuatorState)
	if st.Link != types.LinkUp || st.Driver != "aidl" {
		t.Fatalf("state = %+v", st)
	}
}

func TestOnRepliesAndCompletes(t *testing.T) {
	drv := useSim(t, 2, hal.V1_0)
	h := start(t)
	h.configure(t, oneActuator(2))

	sub := h.conn.Subscribe(bus.T("haptics", int32(2), "complete"))
	defer h.conn.Unsubscribe(sub)

	r := wantResult(t, h.request(t, 2, VerbOn, types.OnRequest{DurationMs: 20, Correlation: 5}), types.StatusOK)
	if r.DurationMs != 20 {
		t.Fatalf("duration = %d", r.DurationMs)
	}
	if !drv.State().On {
		t.Fatal("driver not vibrating")
	}
	select {
	case m := <-sub.Channel():
		c := m.Payload.(types.Completion)
		if c.Actuator != 2 || c.Correlation != 5 {
			t.Fatalf("completion = %+v", c)
		}
	case <-time.After(time.Second):
		t.Fatal("no completion")
	}
}

func TestRequestValidation(t *testing.T) {
	useSim(t, 3, hal.AIDL)
	h := start(t)
	h.configure(t, oneActuator(3))

	wantError(t, h.request(t, 9, VerbOff, nil), errcode.UnknownActuator)
	wantError(t, h.request(t, 3, VerbAmplitude, types.AmplitudeRequest{Amplitude: 1.5}), errcode.InvalidParams)
	wantError(t, h.request(t, 3, VerbOn, "soon"), errcode.InvalidPayload)
	wantError(t, h.request(t, 3, "wobble", nil), errcode.InvalidTopic)

	wantResult(t, h.request(t, 3, VerbAmplitude, &types.AmplitudeRequest{Amplitude: 0.5}), types.StatusOK)
}

func TestUnsupportedAndInfoVerbs(t *testing.T) {
	useSim(t, 4, hal.V1_0)
	h := start(t)
	h.configure(t, oneActuator(4))

	wantResult(t, h.request(t, 4, VerbCompose, types.ComposeRequest{
		Segments: []types.PrimitiveSegment{{Primitive: types.PrimitiveClick, Scale: 1}},
	}), types.StatusUnsupported)
	wantResult(t, h.request(t, 4, VerbAlwaysOn, types.AlwaysOnRequest{Slot: 1, Effect: types.EffectClick}), types.StatusUnsupported)

	info, ok := h.request(t, 4, VerbInfo, nil).(types.Info)
	if !ok || info.ID != 4 {
		t.Fatalf("info reply = %#v", info)
	}
}

func TestDeadDriverDegradesThenRecovers(t *testing.T) {
	drv := useSim(t, 5, hal.AIDL)
	h := start(t)
	h.configure(t, types.HapticsConfig{
		Retry:     types.RetryConfig{MaxRetries: -1},
		Actuators: []types.ActuatorConfig{{ID: 5, Backend: "svc-sim"}},
	})

	drv.Kill()
	wantResult(t, h.request(t, 5, VerbOff, nil), types.StatusFailed)
	h.waitRetained(t, ActuatorStateTopic(5), func(p any) bool {
		st, ok := p.(types.ActuatorState)
		return ok && st.Link == types.LinkDegraded
	})

	drv.Revive()
	wantResult(t, h.request(t, 5, VerbPing, nil), types.StatusOK)
	h.waitRetained(t, ActuatorStateTopic(5), func(p any) bool {
		st, ok := p.(types.ActuatorState)
		return ok && st.Link == types.LinkUp
	})
}

func TestReconnectRepublishesInfo(t *testing.T) {
	old := useSim(t, 9, hal.AIDL)
	h := start(t)
	h.configure(t, oneActuator(9))
	h.waitRetained(t, InfoTopic(9), func(p any) bool {
		info, ok := p.(types.Info)
		return ok && info.Has(types.CapComposeEffects)
	})

	p := sim.DefaultProfile(hal.AIDL)
	p.Capabilities = types.CapAmplitudeControl
	simMu.Lock()
	simDrvs[9] = sim.New(p)
	simMu.Unlock()
	old.Kill()

	wantResult(t, h.request(t, 9, VerbPing, nil), types.StatusOK)
	h.waitRetained(t, InfoTopic(9), func(p any) bool {
		info, ok := p.(types.Info)
		return ok && !info.Has(types.CapComposeEffects) && info.Has(types.CapAmplitudeControl)
	})
	wantResult(t, h.request(t, 9, VerbCompose, types.ComposeRequest{
		Segments: []types.PrimitiveSegment{{Primitive: types.PrimitiveClick, Scale: 1}},
	}), types.StatusUnsupported)
}

func TestHeartbeatNoticesDeadDriver(t *testing.T) {
	drv := useSim(t, 8, hal.AIDL)
	h := start(t)
	h.configure(t, types.HapticsConfig{
		Retry:     types.RetryConfig{MaxRetries: -1},
		Heartbeat: types.HeartbeatConfig{IntervalMs: 10},
		Actuators: []types.ActuatorConfig{{ID: 8, Backend: "svc-sim"}},
	})

	drv.Kill()
	st := h.waitRetained(t, ActuatorStateTopic(8), func(p any) bool {
		st, ok := p.(types.ActuatorState)
		return ok && st.Link == types.LinkDegraded
	}).(types.ActuatorState)
	if st.Error != string(errcode.DeadObject) {
		t.Fatalf("state = %+v", st)
	}
	if drv.Calls(sim.OpPing) == 0 {
		t.Fatal("no pings sent")
	}
}

func TestUnknownBackendReportsDown(t *testing.T) {
	h := start(t)
	h.configure(t, types.HapticsConfig{
		Actuators: []types.ActuatorConfig{{ID: 6, Backend: "nope"}},
	})
	st := h.waitRetained(t, ActuatorStateTopic(6), func(p any) bool { _, ok := p.(types.ActuatorState); return ok }).(types.ActuatorState)
	if st.Link != types.LinkDown || st.Error != string(errcode.NoDriver) {
		t.Fatalf("state = %+v", st)
	}
	wantError(t, h.request(t, 6, VerbOff, nil), errcode.UnknownActuator)
}

func TestStopReleasesDrivers(t *testing.T) {
	drv := useSim(t, 7, hal.AIDL)
	h := start(t)
	h.configure(t, oneActuator(7))
	h.stop()

	if !drv.State().Closed {
		t.Fatal("driver not closed on stop")
	}
	h.waitRetained(t, StateTopic(), func(p any) bool {
		st, ok := p.(types.ServiceState)
		return ok && st.Level == "stopped"
	})
}
