package remote

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"haptics-go/services/haptics/hal"
	"haptics-go/types"
)

// Client is a hal.Backend served by a remote Server.
type Client struct {
	cc      *grpc.ClientConn
	version hal.Version
	traits  hal.Traits
	log     zerolog.Logger

	cancel context.CancelFunc

	mu      sync.Mutex
	next    uint64
	waiting map[uint64]hal.CompletionFunc
}

var _ hal.Backend = (*Client)(nil)

// Dial connects to the driver at target (for example "unix:///run/vhald.sock")
// and checks it serves generation want.
func Dial(ctx context.Context, target string, want hal.Version, log zerolog.Logger, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	cc, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, err
	}
	c := &Client{cc: cc, log: log, waiting: map[uint64]hal.CompletionFunc{}}

	hello, err := c.call(ctx, opHello, nil)
	if err != nil {
		_ = cc.Close()
		return nil, err
	}
	v, _ := num(hello, "version")
	if hal.Version(v) != want {
		_ = cc.Close()
		return nil, fmt.Errorf("remote: %s serves driver %v, want %v", target, hal.Version(v), want)
	}
	c.version = want
	c.traits.AmbiguousUnsupported, _ = hello["ambiguous"].(bool)

	sctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	stream, err := cc.NewStream(sctx, &serviceDesc.Streams[0], completionsMethod)
	if err == nil {
		err = stream.SendMsg(&emptypb.Empty{})
	}
	if err == nil {
		err = stream.CloseSend()
	}
	if err == nil {
		// The header arrives once the server is subscribed.
		_, err = stream.Header()
	}
	if err != nil {
		cancel()
		_ = cc.Close()
		return nil, fromStatus("completions", err)
	}
	go c.receive(stream)
	return c, nil
}

func (c *Client) receive(stream grpc.ClientStream) {
	for {
		tok := new(wrapperspb.UInt64Value)
		if err := stream.RecvMsg(tok); err != nil {
			c.log.Debug().Err(err).Msg("completion stream closed")
			return
		}
		c.mu.Lock()
		done := c.waiting[tok.GetValue()]
		delete(c.waiting, tok.GetValue())
		c.mu.Unlock()
		if done != nil {
			done()
		}
	}
}

// callWith runs op with done registered under a wire token. The
// registration is dropped when the call fails, since no completion will
// follow.
func (c *Client) callWith(ctx context.Context, op string, a args, done hal.CompletionFunc) (map[string]any, error) {
	if done == nil {
		return c.call(ctx, op, a)
	}
	c.mu.Lock()
	c.next++
	tok := c.next
	c.waiting[tok] = done
	c.mu.Unlock()
	a["token"] = float64(tok)

	out, err := c.call(ctx, op, a)
	if err != nil {
		c.mu.Lock()
		delete(c.waiting, tok)
		c.mu.Unlock()
	}
	return out, err
}

func (c *Client) call(ctx context.Context, op string, a args) (map[string]any, error) {
	if a == nil {
		a = args{}
	}
	a["op"] = op
	in, err := structpb.NewStruct(a)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, invokeMethod, in, out); err != nil {
		return nil, fromStatus(op, err)
	}
	return out.AsMap(), nil
}

func (c *Client) exec(ctx context.Context, op string, a args) error {
	_, err := c.call(ctx, op, a)
	return err
}

func (c *Client) Version() hal.Version { return c.version }
func (c *Client) Traits() hal.Traits   { return c.traits }

func (c *Client) Init(ctx context.Context) error { return c.exec(ctx, opInit, nil) }
func (c *Client) Ping(ctx context.Context) error { return c.exec(ctx, opPing, nil) }

// Close drops the connection. Pending completions are forgotten.
func (c *Client) Close() error {
	c.cancel()
	c.mu.Lock()
	c.waiting = map[uint64]hal.CompletionFunc{}
	c.mu.Unlock()
	return c.cc.Close()
}

func (c *Client) On(ctx context.Context, d time.Duration, done hal.CompletionFunc) error {
	_, err := c.callWith(ctx, opOn, args{"d_us": durationValue(d)}, done)
	return err
}

func (c *Client) Off(ctx context.Context) error { return c.exec(ctx, opOff, nil) }

func (c *Client) SetAmplitude(ctx context.Context, a float32) error {
	return c.exec(ctx, opAmplitude, args{"amplitude": float64(a)})
}

func (c *Client) SetExternalControl(ctx context.Context, enabled bool) error {
	return c.exec(ctx, opExternal, args{"enabled": enabled})
}

func (c *Client) PerformEffect(ctx context.Context, e types.Effect, s types.EffectStrength, done hal.CompletionFunc) (time.Duration, error) {
	out, err := c.callWith(ctx, opEffect, args{"effect": float64(e), "strength": float64(s)}, done)
	if err != nil {
		return 0, err
	}
	d, _ := num(out, "d_us")
	return valueDuration(d), nil
}

func (c *Client) PerformComposedEffect(ctx context.Context, segs []types.PrimitiveSegment, done hal.CompletionFunc) (time.Duration, error) {
	out, err := c.callWith(ctx, opCompose, args{"segments": encodeSegments(segs)}, done)
	if err != nil {
		return 0, err
	}
	d, _ := num(out, "d_us")
	return valueDuration(d), nil
}

func (c *Client) AlwaysOnEnable(ctx context.Context, slot int32, e types.Effect, s types.EffectStrength) error {
	return c.exec(ctx, opAlwaysOn, args{"slot": float64(slot), "effect": float64(e), "strength": float64(s)})
}

func (c *Client) AlwaysOnDisable(ctx context.Context, slot int32) error {
	return c.exec(ctx, opAlwaysOff, args{"slot": float64(slot)})
}

func (c *Client) Capabilities(ctx context.Context) (types.Capabilities, error) {
	out, err := c.call(ctx, opCaps, nil)
	if err != nil {
		return 0, err
	}
	v, _ := num(out, "bits")
	return types.Capabilities(v), nil
}

func (c *Client) SupportedEffects(ctx context.Context) ([]types.Effect, error) {
	out, err := c.call(ctx, opEffects, nil)
	if err != nil {
		return nil, err
	}
	vs, _ := numList(out, "effects")
	es := make([]types.Effect, 0, len(vs))
	for _, v := range vs {
		es = append(es, types.Effect(v))
	}
	return es, nil
}

func (c *Client) SupportedPrimitives(ctx context.Context) ([]types.Primitive, error) {
	out, err := c.call(ctx, opPrimitives, nil)
	if err != nil {
		return nil, err
	}
	vs, _ := numList(out, "primitives")
	ps := make([]types.Primitive, 0, len(vs))
	for _, v := range vs {
		ps = append(ps, types.Primitive(v))
	}
	return ps, nil
}

func (c *Client) PrimitiveDuration(ctx context.Context, p types.Primitive) (time.Duration, error) {
	out, err := c.call(ctx, opPrimDur, args{"primitive": float64(p)})
	if err != nil {
		return 0, err
	}
	d, _ := num(out, "d_us")
	return valueDuration(d), nil
}

func (c *Client) CompositionLimits(ctx context.Context) (time.Duration, int, error) {
	out, err := c.call(ctx, opLimits, nil)
	if err != nil {
		return 0, 0, err
	}
	d, _ := num(out, "delay_us")
	n, _ := num(out, "size")
	return valueDuration(d), int(n), nil
}

func (c *Client) ResonantFrequency(ctx context.Context) (float32, error) {
	out, err := c.call(ctx, opResonant, nil)
	if err != nil {
		return 0, err
	}
	hz, _ := num(out, "hz")
	return float32(hz), nil
}

func (c *Client) QFactor(ctx context.Context) (float32, error) {
	out, err := c.call(ctx, opQFactor, nil)
	if err != nil {
		return 0, err
	}
	q, _ := num(out, "q")
	return float32(q), nil
}

func (c *Client) FrequencyResponse(ctx context.Context) (types.FrequencyResponse, error) {
	out, err := c.call(ctx, opFrequencies, nil)
	if err != nil {
		return types.FrequencyResponse{}, err
	}
	return decodeFrequency(out), nil
}
