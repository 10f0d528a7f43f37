package service

import (
	"haptics-go/bus"
	"haptics-go/errcode"
	"haptics-go/types"
)

func (s *Service) replyErr(m *bus.Message, code errcode.Code) {
	if !m.CanReply() {
		return
	}
	if code == "" {
		code = errcode.Error
	}
	s.conn.Reply(m, types.ErrorReply{OK: false, Error: string(code)}, false)
}

func (s *Service) reply(m *bus.Message, payload any) {
	if m.CanReply() {
		s.conn.Reply(m, payload, false)
	}
}

// payload extracts a T carried by value or by pointer.
func payload[T any](m *bus.Message) (T, bool) {
	switch v := m.Payload.(type) {
	case T:
		return v, true
	case *T:
		if v != nil {
			return *v, true
		}
	}
	var zero T
	return zero, false
}
