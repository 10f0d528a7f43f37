package service

import (
	"time"

	"haptics-go/bus"
	"haptics-go/types"
)

// heartbeat pings every actuator on an interval. The pings carry no reply
// address; their only effect is on the retained link state.
type heartbeat struct {
	tick     *time.Ticker
	interval time.Duration
}

// C is nil, and so never ready, while the heartbeat is off.
func (h *heartbeat) C() <-chan time.Time {
	if h.tick == nil {
		return nil
	}
	return h.tick.C
}

func (h *heartbeat) set(cfg types.HeartbeatConfig) bool {
	d := time.Duration(cfg.IntervalMs) * time.Millisecond
	if d == h.interval {
		return false
	}
	h.interval = d
	switch {
	case d <= 0:
		h.stop()
	case h.tick == nil:
		h.tick = time.NewTicker(d)
	default:
		h.tick.Reset(d)
	}
	return true
}

func (h *heartbeat) stop() {
	if h.tick != nil {
		h.tick.Stop()
		h.tick = nil
	}
	h.interval = 0
}

// probe queues a ping on every idle actuator. Actuators with work pending are
// skipped; their requests report the link anyway.
func (s *Service) probe() {
	for id, a := range s.acts {
		if len(a.reqs) > 0 {
			continue
		}
		select {
		case a.reqs <- &bus.Message{Topic: ControlTopic(id, VerbPing)}:
		default:
		}
	}
}
