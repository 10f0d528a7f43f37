package notify

import (
	"haptics-go/bus"
	"haptics-go/types"
)

// ChanSink buffers completions on a channel. When the buffer is full the
// oldest completion is dropped.
type ChanSink struct {
	ch chan types.Completion
}

func NewChanSink(size int) *ChanSink {
	if size < 1 {
		size = 1
	}
	return &ChanSink{ch: make(chan types.Completion, size)}
}

func (s *ChanSink) C() <-chan types.Completion { return s.ch }

func (s *ChanSink) Notify(c types.Completion) {
	for {
		select {
		case s.ch <- c:
			return
		default:
		}
		select {
		case <-s.ch:
		default:
		}
	}
}

// BusSink publishes each completion on haptics/<id>/complete.
type BusSink struct {
	conn *bus.Connection
}

func NewBusSink(conn *bus.Connection) *BusSink { return &BusSink{conn: conn} }

// CompleteTopic is the topic completions for id are published on.
func CompleteTopic(id types.ActuatorID) bus.Topic {
	return bus.T("haptics", int32(id), "complete")
}

func (s *BusSink) Notify(c types.Completion) {
	s.conn.Publish(s.conn.NewMessage(CompleteTopic(c.Actuator), c, false))
}
