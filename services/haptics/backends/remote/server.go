package remote

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"haptics-go/services/haptics/hal"
	"haptics-go/types"
)

// Server exposes one backend to remote clients.
type Server struct {
	b   hal.Backend
	log zerolog.Logger

	mu   sync.Mutex
	subs map[chan uint64]struct{}
}

var _ driverService = (*Server)(nil)

func NewServer(b hal.Backend, log zerolog.Logger) *Server {
	return &Server{b: b, log: log, subs: map[chan uint64]struct{}{}}
}

// Register adds the driver service to gs.
func (s *Server) Register(gs *grpc.Server) {
	gs.RegisterService(&serviceDesc, s)
}

// completion returns the callback for a client token, or nil when the client
// did not ask for one.
func (s *Server) completion(m map[string]any) hal.CompletionFunc {
	tok, ok := num(m, "token")
	if !ok {
		return nil
	}
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for ch := range s.subs {
			select {
			case ch <- uint64(tok):
			default:
				s.log.Warn().Uint64("token", uint64(tok)).Msg("completion stream full, dropped")
			}
		}
	}
}

func (s *Server) completions(stream grpc.ServerStream) error {
	ch := make(chan uint64, 32)
	s.mu.Lock()
	s.subs[ch] = struct{}{}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.subs, ch)
		s.mu.Unlock()
	}()

	if err := stream.SendHeader(metadata.Pairs("ready", "1")); err != nil {
		return err
	}
	ctx := stream.Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case tok := <-ch:
			if err := stream.SendMsg(wrapperspb.UInt64(tok)); err != nil {
				return err
			}
		}
	}
}

func (s *Server) invoke(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	m := in.AsMap()
	op, _ := m["op"].(string)
	out, err := s.dispatch(ctx, op, m)
	if err != nil {
		s.log.Debug().Str("op", op).Err(err).Msg("driver call failed")
		return nil, toStatus(err)
	}
	if out == nil {
		out = args{}
	}
	res, err := structpb.NewStruct(out)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return res, nil
}

func (s *Server) dispatch(ctx context.Context, op string, m map[string]any) (args, error) {
	b := s.b
	f := func(k string) float64 { v, _ := num(m, k); return v }

	switch op {
	case opHello:
		return args{"version": float64(b.Version()), "ambiguous": b.Traits().AmbiguousUnsupported}, nil
	case opInit:
		return nil, b.Init(ctx)
	case opPing:
		return nil, b.Ping(ctx)
	case opOn:
		return nil, b.On(ctx, valueDuration(f("d_us")), s.completion(m))
	case opOff:
		return nil, b.Off(ctx)
	case opAmplitude:
		return nil, b.SetAmplitude(ctx, float32(f("amplitude")))
	case opExternal:
		on, _ := m["enabled"].(bool)
		return nil, b.SetExternalControl(ctx, on)
	case opEffect:
		d, err := b.PerformEffect(ctx, types.Effect(f("effect")), types.EffectStrength(f("strength")), s.completion(m))
		return args{"d_us": durationValue(d)}, err
	case opCompose:
		segs, err := decodeSegments(m)
		if err != nil {
			return nil, hal.ErrInvalidArgument
		}
		d, err := b.PerformComposedEffect(ctx, segs, s.completion(m))
		return args{"d_us": durationValue(d)}, err
	case opAlwaysOn:
		return nil, b.AlwaysOnEnable(ctx, int32(f("slot")), types.Effect(f("effect")), types.EffectStrength(f("strength")))
	case opAlwaysOff:
		return nil, b.AlwaysOnDisable(ctx, int32(f("slot")))
	case opCaps:
		c, err := b.Capabilities(ctx)
		return args{"bits": float64(c)}, err
	case opEffects:
		es, err := b.SupportedEffects(ctx)
		list := make([]any, 0, len(es))
		for _, e := range es {
			list = append(list, float64(e))
		}
		return args{"effects": list}, err
	case opPrimitives:
		ps, err := b.SupportedPrimitives(ctx)
		list := make([]any, 0, len(ps))
		for _, p := range ps {
			list = append(list, float64(p))
		}
		return args{"primitives": list}, err
	case opPrimDur:
		d, err := b.PrimitiveDuration(ctx, types.Primitive(f("primitive")))
		return args{"d_us": durationValue(d)}, err
	case opLimits:
		d, n, err := b.CompositionLimits(ctx)
		return args{"delay_us": durationValue(d), "size": float64(n)}, err
	case opResonant:
		hz, err := b.ResonantFrequency(ctx)
		return args{"hz": float64(hz)}, err
	case opQFactor:
		q, err := b.QFactor(ctx)
		return args{"q": float64(q)}, err
	case opFrequencies:
		fr, err := b.FrequencyResponse(ctx)
		return encodeFrequency(fr), err
	default:
		return nil, hal.ErrUnsupported
	}
}
