// Package notify tracks the one pending completion per actuator and hands
// finished effects to the caller's sink without blocking the firing goroutine.
package notify

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"haptics-go/types"
	"haptics-go/x/timex"
)

// Sink receives completions. Notify must not block.
type Sink interface {
	Notify(c types.Completion)
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(types.Completion)

func (f SinkFunc) Notify(c types.Completion) { f(c) }

// Mode selects how a scheduled completion fires. With Callback set the
// driver fires it through Ticket.Done; otherwise a timer fires after Duration.
type Mode struct {
	Duration time.Duration
	Callback bool
}

// Outcome labels for Observer.
const (
	Delivered  = "delivered"
	Stale      = "stale"
	Superseded = "superseded"
	Canceled   = "canceled"
)

// Observer is told what happened to each completion.
type Observer interface {
	Completion(outcome string)
}

// Notifier holds pending completions keyed by actuator.
type Notifier struct {
	sink Sink
	log  zerolog.Logger
	obs  Observer

	mu      sync.Mutex
	pending map[types.ActuatorID]*Ticket
	closed  bool
}

func New(sink Sink, log zerolog.Logger, obs Observer) *Notifier {
	if sink == nil {
		sink = SinkFunc(func(types.Completion) {})
	}
	return &Notifier{
		sink:    sink,
		log:     log,
		obs:     obs,
		pending: make(map[types.ActuatorID]*Ticket),
	}
}

// Ticket is a completion prepared before the driver call that may fire it.
// Done may run before Commit; the firing is then held until Commit.
type Ticket struct {
	n    *Notifier
	id   types.ActuatorID
	corr int64

	// guarded by n.mu
	committed bool
	early     bool
	timer     *time.Timer
}

// Prepare creates an uncommitted ticket for (id, corr).
func (n *Notifier) Prepare(id types.ActuatorID, corr int64) *Ticket {
	return &Ticket{n: n, id: id, corr: corr}
}

// Schedule installs a completion for (id, corr), superseding any pending one.
func (n *Notifier) Schedule(id types.ActuatorID, corr int64, m Mode) *Ticket {
	t := n.Prepare(id, corr)
	t.Commit(m)
	return t
}

// Commit makes t the pending completion of its actuator.
func (t *Ticket) Commit(m Mode) {
	n := t.n
	n.mu.Lock()
	if n.closed || t.committed {
		n.mu.Unlock()
		return
	}
	if old := n.pending[t.id]; old != nil {
		old.stop()
		delete(n.pending, t.id)
		n.count(Superseded)
		n.log.Debug().Int32("actuator", int32(t.id)).Int64("correlation", old.corr).Msg("completion superseded")
	}
	t.committed = true
	if t.early {
		n.mu.Unlock()
		n.deliver(t)
		return
	}
	n.pending[t.id] = t
	if !m.Callback {
		t.timer = time.AfterFunc(m.Duration, t.Done)
	}
	n.mu.Unlock()
}

// Done fires t. It is the completion callback handed to drivers and is safe
// from any goroutine. A ticket that is no longer pending is dropped.
func (t *Ticket) Done() {
	n := t.n
	n.mu.Lock()
	if !t.committed {
		t.early = true
		n.mu.Unlock()
		return
	}
	if n.pending[t.id] != t {
		n.mu.Unlock()
		n.count(Stale)
		return
	}
	delete(n.pending, t.id)
	t.stop()
	n.mu.Unlock()
	n.deliver(t)
}

// must hold n.mu
func (t *Ticket) stop() {
	if t.timer != nil {
		t.timer.Stop()
	}
}

// Fire delivers the pending completion of id if its correlation is corr.
// It reports whether a completion was delivered.
func (n *Notifier) Fire(id types.ActuatorID, corr int64) bool {
	n.mu.Lock()
	t := n.pending[id]
	if t == nil || t.corr != corr {
		n.mu.Unlock()
		n.count(Stale)
		n.log.Debug().Int32("actuator", int32(id)).Int64("correlation", corr).Msg("stale completion dropped")
		return false
	}
	delete(n.pending, id)
	t.stop()
	n.mu.Unlock()
	n.deliver(t)
	return true
}

// Cancel removes the pending completion of id without delivering it.
func (n *Notifier) Cancel(id types.ActuatorID) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	t := n.pending[id]
	if t == nil {
		return false
	}
	t.stop()
	delete(n.pending, id)
	n.count(Canceled)
	return true
}

// Pending reports the correlation of the pending completion of id.
func (n *Notifier) Pending(id types.ActuatorID) (int64, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if t := n.pending[id]; t != nil {
		return t.corr, true
	}
	return 0, false
}

// Close cancels everything pending. Later commits are ignored.
func (n *Notifier) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	for id, t := range n.pending {
		t.stop()
		delete(n.pending, id)
	}
	n.closed = true
}

func (n *Notifier) deliver(t *Ticket) {
	n.sink.Notify(types.Completion{Actuator: t.id, Correlation: t.corr, TSms: timex.NowMs()})
	n.count(Delivered)
}

func (n *Notifier) count(outcome string) {
	if n.obs != nil {
		n.obs.Completion(outcome)
	}
}
