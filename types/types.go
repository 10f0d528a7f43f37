package types

// ActuatorID identifies one physical actuator on a device.
type ActuatorID int32

// ---- Actuator state (retained) ----

// Link is the driver link state reported for an actuator.
type Link string

const (
	LinkUp       Link = "up"
	LinkDown     Link = "down"
	LinkDegraded Link = "degraded"
)

type ActuatorState struct {
	Link   Link   `json:"link"`
	Driver string `json:"driver,omitempty"`
	TSms   int64  `json:"ts_ms"`
	Error  string `json:"error,omitempty"`
}

// ServiceState is the retained state of the haptics service itself.
type ServiceState struct {
	Level  string `json:"level"`  // e.g. "idle", "ready", "stopped"
	Status string `json:"status"` // freeform short code
	TSms   int64  `json:"ts_ms"`
}

// ---- Completion ----

// Completion is delivered when a timed or composed effect ends. Correlation
// lets the receiver discard notifications for superseded requests.
type Completion struct {
	Actuator    ActuatorID `json:"actuator"`
	Correlation int64      `json:"correlation"`
	TSms        int64      `json:"ts_ms"`
}

// ---- Control payloads ----

type OnRequest struct {
	DurationMs  int64 `json:"duration_ms"`
	Correlation int64 `json:"correlation"`
}

type AmplitudeRequest struct {
	Amplitude float32 `json:"amplitude"`
}

type EffectRequest struct {
	Effect      Effect         `json:"effect"`
	Strength    EffectStrength `json:"strength"`
	Correlation int64          `json:"correlation"`
}

type ComposeRequest struct {
	Segments    []PrimitiveSegment `json:"segments"`
	Correlation int64              `json:"correlation"`
}

type AlwaysOnRequest struct {
	Slot     int32          `json:"slot"`
	Effect   Effect         `json:"effect"`
	Strength EffectStrength `json:"strength"`
}

type ExternalControlRequest struct {
	Enabled bool `json:"enabled"`
}

// ---- Replies ----

// Status values mirror the three result outcomes.
const (
	StatusOK          = "ok"
	StatusUnsupported = "unsupported"
	StatusFailed      = "failed"
)

type OKReply struct {
	OK bool `json:"ok"`
}

type ErrorReply struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

// ResultReply is the translated outcome of one actuator operation.
type ResultReply struct {
	Status     string `json:"status"`
	DurationMs int64  `json:"duration_ms,omitempty"`
	Reason     string `json:"reason,omitempty"`
}
