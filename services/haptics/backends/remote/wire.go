// Package remote reaches a driver hosted in another process over gRPC on a
// unix socket. Messages are protobuf Structs; there is no generated code.
package remote

import (
	"context"
	"errors"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"haptics-go/errcode"
	"haptics-go/services/haptics/hal"
	"haptics-go/types"
)

const (
	serviceName       = "haptics.v1.Driver"
	invokeMethod      = "/" + serviceName + "/Invoke"
	completionsMethod = "/" + serviceName + "/Completions"
)

// Operation names carried in the "op" field.
const (
	opHello       = "hello"
	opInit        = "init"
	opPing        = "ping"
	opOn          = "on"
	opOff         = "off"
	opAmplitude   = "set_amplitude"
	opExternal    = "set_external_control"
	opEffect      = "perform_effect"
	opCompose     = "perform_composed_effect"
	opAlwaysOn    = "always_on_enable"
	opAlwaysOff   = "always_on_disable"
	opCaps        = "capabilities"
	opEffects     = "supported_effects"
	opPrimitives  = "supported_primitives"
	opPrimDur     = "primitive_duration"
	opLimits      = "composition_limits"
	opResonant    = "resonant_frequency"
	opQFactor     = "q_factor"
	opFrequencies = "frequency_response"
)

// driverService is the handler type checked by grpc.RegisterService.
type driverService interface {
	invoke(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	completions(stream grpc.ServerStream) error
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*driverService)(nil),
	Methods: []grpc.MethodDesc{{
		MethodName: "Invoke",
		Handler:    invokeHandler,
	}},
	Streams: []grpc.StreamDesc{{
		StreamName:    "Completions",
		Handler:       completionsHandler,
		ServerStreams: true,
	}},
}

func invokeHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(driverService).invoke(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: invokeMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(driverService).invoke(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func completionsHandler(srv any, stream grpc.ServerStream) error {
	if err := stream.RecvMsg(new(emptypb.Empty)); err != nil {
		return err
	}
	return srv.(driverService).completions(stream)
}

// ---- errors ----

// toStatus maps backend errors onto gRPC codes.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	var c codes.Code
	switch {
	case errors.Is(err, hal.ErrUnsupported):
		c = codes.Unimplemented
	case errors.Is(err, hal.ErrDeadObject):
		c = codes.Unavailable
	case errors.Is(err, hal.ErrTransactionFailed):
		c = codes.Aborted
	case errors.Is(err, hal.ErrInvalidArgument):
		c = codes.InvalidArgument
	case errors.Is(err, context.Canceled):
		c = codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		c = codes.DeadlineExceeded
	default:
		c = codes.Internal
	}
	return status.Error(c, err.Error())
}

// fromStatus maps a gRPC error back to the hal sentinels. Transport failures
// arrive as Unavailable and become ErrDeadObject.
func fromStatus(op string, err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	var c errcode.Code
	switch st.Code() {
	case codes.Unimplemented:
		c = errcode.Unsupported
	case codes.Unavailable:
		c = errcode.DeadObject
	case codes.Aborted:
		c = errcode.TransactionFailed
	case codes.InvalidArgument:
		c = errcode.InvalidParams
	case codes.Canceled:
		return context.Canceled
	case codes.DeadlineExceeded:
		return context.DeadlineExceeded
	default:
		c = errcode.Failed
	}
	return &errcode.E{C: c, Op: op, Msg: st.Message()}
}

// ---- values ----

type args map[string]any

func durationValue(d time.Duration) float64 { return float64(d.Microseconds()) }
func valueDuration(v float64) time.Duration { return time.Duration(v) * time.Microsecond }

func num(m map[string]any, k string) (float64, bool) {
	v, ok := m[k].(float64)
	return v, ok
}

func numList(m map[string]any, k string) ([]float64, bool) {
	raw, ok := m[k].([]any)
	if !ok {
		return nil, false
	}
	out := make([]float64, 0, len(raw))
	for _, v := range raw {
		f, ok := v.(float64)
		if !ok {
			return nil, false
		}
		out = append(out, f)
	}
	return out, true
}

func encodeSegments(segs []types.PrimitiveSegment) []any {
	out := make([]any, 0, len(segs))
	for _, s := range segs {
		out = append(out, map[string]any{
			"primitive": float64(s.Primitive),
			"scale":     float64(s.Scale),
			"delay_us":  durationValue(s.Delay),
		})
	}
	return out
}

func decodeSegments(m map[string]any) ([]types.PrimitiveSegment, error) {
	raw, _ := m["segments"].([]any)
	out := make([]types.PrimitiveSegment, 0, len(raw))
	for _, r := range raw {
		sm, ok := r.(map[string]any)
		if !ok {
			return nil, errcode.InvalidPayload
		}
		p, _ := num(sm, "primitive")
		sc, _ := num(sm, "scale")
		d, _ := num(sm, "delay_us")
		out = append(out, types.PrimitiveSegment{
			Primitive: types.Primitive(p),
			Scale:     float32(sc),
			Delay:     valueDuration(d),
		})
	}
	return out, nil
}

func encodeFrequency(fr types.FrequencyResponse) map[string]any {
	out := map[string]any{}
	put := func(k string, o types.Opt[float32]) {
		if v, ok := o.Get(); ok {
			out[k] = float64(v)
		}
	}
	put("min_hz", fr.MinFrequencyHz)
	put("resonant_hz", fr.ResonantFrequencyHz)
	put("resolution_hz", fr.FrequencyResolutionHz)
	put("safe_range_hz", fr.SuggestedSafeRangeHz)
	if fr.MaxAmplitudes != nil {
		amps := make([]any, 0, len(fr.MaxAmplitudes))
		for _, a := range fr.MaxAmplitudes {
			amps = append(amps, float64(a))
		}
		out["max_amplitudes"] = amps
	}
	return out
}

func decodeFrequency(m map[string]any) types.FrequencyResponse {
	var fr types.FrequencyResponse
	get := func(k string) types.Opt[float32] {
		if v, ok := num(m, k); ok {
			return types.Some(float32(v))
		}
		return types.Opt[float32]{}
	}
	fr.MinFrequencyHz = get("min_hz")
	fr.ResonantFrequencyHz = get("resonant_hz")
	fr.FrequencyResolutionHz = get("resolution_hz")
	fr.SuggestedSafeRangeHz = get("safe_range_hz")
	if amps, ok := numList(m, "max_amplitudes"); ok {
		fr.MaxAmplitudes = make([]float32, 0, len(amps))
		for _, a := range amps {
			fr.MaxAmplitudes = append(fr.MaxAmplitudes, float32(a))
		}
	}
	return fr
}
