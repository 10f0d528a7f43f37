package types

// HapticsConfig is supplied on the "config/haptics" bus topic.
type HapticsConfig struct {
	Retry     RetryConfig      `json:"retry" toml:"retry"`
	Heartbeat HeartbeatConfig  `json:"heartbeat" toml:"heartbeat"`
	Actuators []ActuatorConfig `json:"actuators" toml:"actuators"`
}

// HeartbeatConfig sets how often every actuator is pinged so a dead driver is
// noticed between requests. Zero disables probing.
type HeartbeatConfig struct {
	IntervalMs int `json:"interval_ms" toml:"interval_ms"`
}

// RetryConfig tunes the driver retry policy. Zero values select defaults.
type RetryConfig struct {
	MaxRetries   int  `json:"max_retries" toml:"max_retries"`
	BackoffMs    int  `json:"backoff_ms" toml:"backoff_ms"`
	MaxBackoffMs int  `json:"max_backoff_ms" toml:"max_backoff_ms"`
	Jitter       bool `json:"jitter" toml:"jitter"`
}

// ActuatorConfig describes one actuator and the backend that drives it.
type ActuatorConfig struct {
	ID      ActuatorID `json:"id" toml:"id"`
	Backend string     `json:"backend" toml:"backend"` // "sim", "lra", "remote"
	// Versions lists driver generations to probe, newest first. Empty probes
	// everything the backend offers.
	Versions []string       `json:"versions,omitempty" toml:"versions"`
	Params   map[string]any `json:"params,omitempty" toml:"params"`
}
