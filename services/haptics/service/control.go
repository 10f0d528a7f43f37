package service

import (
	"context"
	"time"

	"haptics-go/bus"
	"haptics-go/errcode"
	"haptics-go/services/haptics"
	"haptics-go/types"
)

// handle runs one control request on the actuator's worker.
func (s *Service) handle(ctx context.Context, a *actuator, verb string, m *bus.Message) {
	c := a.ctrl
	switch verb {
	case VerbOn:
		req, ok := payload[types.OnRequest](m)
		if !ok || req.DurationMs < 0 {
			s.replyErr(m, errcode.InvalidPayload)
			return
		}
		done(s, a, m, c.TurnOn(ctx, time.Duration(req.DurationMs)*time.Millisecond, req.Correlation))
	case VerbOff:
		done(s, a, m, c.TurnOff(ctx))
	case VerbAmplitude:
		req, ok := payload[types.AmplitudeRequest](m)
		if !ok {
			s.replyErr(m, errcode.InvalidPayload)
			return
		}
		// The controller panics outside (0, 1]; reject here instead.
		if !(req.Amplitude > 0 && req.Amplitude <= 1) {
			s.replyErr(m, errcode.InvalidParams)
			return
		}
		done(s, a, m, c.SetAmplitude(ctx, req.Amplitude))
	case VerbExternal:
		req, ok := payload[types.ExternalControlRequest](m)
		if !ok {
			s.replyErr(m, errcode.InvalidPayload)
			return
		}
		done(s, a, m, c.SetExternalControl(ctx, req.Enabled))
	case VerbEffect:
		req, ok := payload[types.EffectRequest](m)
		if !ok {
			s.replyErr(m, errcode.InvalidPayload)
			return
		}
		done(s, a, m, c.PlayEffect(ctx, req.Effect, req.Strength, req.Correlation))
	case VerbCompose:
		req, ok := payload[types.ComposeRequest](m)
		if !ok {
			s.replyErr(m, errcode.InvalidPayload)
			return
		}
		done(s, a, m, c.PlayComposed(ctx, req.Segments, req.Correlation))
	case VerbAlwaysOn:
		req, ok := payload[types.AlwaysOnRequest](m)
		if !ok {
			s.replyErr(m, errcode.InvalidPayload)
			return
		}
		done(s, a, m, c.SetAlwaysOn(ctx, req.Slot, req.Effect, req.Strength))
	case VerbAlwaysOff:
		req, ok := payload[types.AlwaysOnRequest](m)
		if !ok {
			s.replyErr(m, errcode.InvalidPayload)
			return
		}
		done(s, a, m, c.ClearAlwaysOn(ctx, req.Slot))
	case VerbPing:
		done(s, a, m, c.IsAvailable(ctx))
	case VerbInfo:
		s.reply(m, c.Info())
	default:
		s.replyErr(m, errcode.InvalidTopic)
	}
}

// done replies with r and updates the actuator's link state.
func done[T any](s *Service, a *actuator, m *bus.Message, r haptics.Result[T]) {
	s.track(a, r.Err())
	if r.IsFailed() {
		s.log.Debug().Int32("actuator", int32(a.id)).Str("reason", r.Reason()).Msg("request failed")
	}
	s.reply(m, haptics.Reply(r))
}
