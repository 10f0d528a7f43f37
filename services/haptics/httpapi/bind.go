package httpapi

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"haptics-go/types"
)

// Request bodies name effects, strengths and primitives by name (or number)
// and give delays in milliseconds.

type onBody struct {
	DurationMs  int64 `json:"duration_ms" binding:"min=0"`
	Correlation int64 `json:"correlation"`
}

type effectBody struct {
	Effect      string `json:"effect" binding:"required"`
	Strength    string `json:"strength"`
	Correlation int64  `json:"correlation"`
}

type segmentBody struct {
	Primitive string  `json:"primitive" binding:"required"`
	Scale     float32 `json:"scale"`
	DelayMs   int64   `json:"delay_ms"`
}

type composeBody struct {
	Segments    []segmentBody `json:"segments"`
	Correlation int64         `json:"correlation"`
}

type alwaysOnBody struct {
	Slot     int32  `json:"slot"`
	Effect   string `json:"effect" binding:"required"`
	Strength string `json:"strength"`
}

func bindJSON[T any](c *gin.Context) (any, error) {
	var v T
	if err := c.ShouldBindJSON(&v); err != nil {
		return nil, err
	}
	return v, nil
}

func bindOn(c *gin.Context) (any, error) {
	var b onBody
	if err := c.ShouldBindJSON(&b); err != nil {
		return nil, err
	}
	return types.OnRequest{DurationMs: b.DurationMs, Correlation: b.Correlation}, nil
}

func bindEffect(c *gin.Context) (any, error) {
	var b effectBody
	if err := c.ShouldBindJSON(&b); err != nil {
		return nil, err
	}
	e, s, err := parseEffect(b.Effect, b.Strength)
	if err != nil {
		return nil, err
	}
	return types.EffectRequest{Effect: e, Strength: s, Correlation: b.Correlation}, nil
}

func bindCompose(c *gin.Context) (any, error) {
	var b composeBody
	if err := c.ShouldBindJSON(&b); err != nil {
		return nil, err
	}
	segs := make([]types.PrimitiveSegment, len(b.Segments))
	for i, s := range b.Segments {
		p, ok := types.ParsePrimitive(s.Primitive)
		if !ok {
			return nil, fmt.Errorf("segment %d: unknown primitive %q", i, s.Primitive)
		}
		segs[i] = types.PrimitiveSegment{
			Primitive: p,
			Scale:     s.Scale,
			Delay:     time.Duration(s.DelayMs) * time.Millisecond,
		}
	}
	return types.ComposeRequest{Segments: segs, Correlation: b.Correlation}, nil
}

func bindAlwaysOn(c *gin.Context) (any, error) {
	var b alwaysOnBody
	if err := c.ShouldBindJSON(&b); err != nil {
		return nil, err
	}
	e, s, err := parseEffect(b.Effect, b.Strength)
	if err != nil {
		return nil, err
	}
	return types.AlwaysOnRequest{Slot: b.Slot, Effect: e, Strength: s}, nil
}

func bindSlot(c *gin.Context) (any, error) {
	n, err := strconv.ParseInt(c.Param("slot"), 10, 32)
	if err != nil {
		return nil, err
	}
	return types.AlwaysOnRequest{Slot: int32(n)}, nil
}

// parseEffect defaults an empty strength to medium.
func parseEffect(effect, strength string) (types.Effect, types.EffectStrength, error) {
	e, ok := types.ParseEffect(effect)
	if !ok {
		return 0, 0, fmt.Errorf("unknown effect %q", effect)
	}
	if strength == "" {
		return e, types.StrengthMedium, nil
	}
	s, ok := types.ParseStrength(strength)
	if !ok {
		return 0, 0, fmt.Errorf("unknown strength %q", strength)
	}
	return e, s, nil
}
