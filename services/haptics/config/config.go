// Package config loads the haptics daemon's TOML configuration and publishes
// the actuator section on the bus.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"

	"haptics-go/bus"
	"haptics-go/services/haptics/hal"
	"haptics-go/types"
)

const (
	configPrefix = "config"
	hapticsKey   = "haptics"

	DefaultListen       = "127.0.0.1:8088"
	DefaultDriverSocket = "/run/haptics/vhal.sock"
)

// Config is the whole daemon configuration.
type Config struct {
	Listen       string
	DriverSocket string
	// Buses names the host I²C buses to emulate, in addition to any the
	// actuators reference.
	Buses   []string
	Haptics types.HapticsConfig
}

type serviceSection struct {
	Listen       string   `toml:"listen"`
	DriverSocket string   `toml:"driver_socket"`
	Buses        []string `toml:"buses"`
}

type fileConfig struct {
	Service   serviceSection         `toml:"service"`
	Retry     types.RetryConfig      `toml:"retry"`
	Heartbeat types.HeartbeatConfig  `toml:"heartbeat"`
	Actuators []types.ActuatorConfig `toml:"actuators"`
}

func Default() Config {
	return Config{Listen: DefaultListen, DriverSocket: DefaultDriverSocket}
}

// Load reads path, applies defaults and validates the result.
func Load(path string) (Config, error) {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load haptics config: %w", err)
	}
	return fromFile(raw, meta)
}

// Parse is Load for an in-memory document.
func Parse(doc string) (Config, error) {
	var raw fileConfig
	meta, err := toml.Decode(doc, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("parse haptics config: %w", err)
	}
	return fromFile(raw, meta)
}

func fromFile(raw fileConfig, meta toml.MetaData) (Config, error) {
	if keys := meta.Undecoded(); len(keys) > 0 {
		names := make([]string, len(keys))
		for i, k := range keys {
			names[i] = k.String()
		}
		return Config{}, fmt.Errorf("unknown config keys: %s", strings.Join(names, ", "))
	}

	cfg := Default()
	if meta.IsDefined("service", "listen") {
		cfg.Listen = strings.TrimSpace(raw.Service.Listen)
	}
	if meta.IsDefined("service", "driver_socket") {
		cfg.DriverSocket = strings.TrimSpace(raw.Service.DriverSocket)
	}
	cfg.Buses = raw.Service.Buses
	cfg.Haptics = types.HapticsConfig{Retry: raw.Retry, Heartbeat: raw.Heartbeat, Actuators: raw.Actuators}

	for i := range cfg.Haptics.Actuators {
		a := &cfg.Haptics.Actuators[i]
		a.Backend = strings.ToLower(strings.TrimSpace(a.Backend))
		// Remote actuators without an explicit endpoint use the shared socket.
		if a.Backend == "remote" && a.Params["target"] == nil && a.Params["socket"] == nil {
			if a.Params == nil {
				a.Params = map[string]any{}
			}
			a.Params["socket"] = cfg.DriverSocket
		}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every problem found, joined.
func (c Config) Validate() error {
	var errs []error
	if c.Listen == "" {
		errs = append(errs, errors.New("service.listen is empty"))
	}
	r := c.Haptics.Retry
	if r.MaxRetries < -1 {
		errs = append(errs, fmt.Errorf("retry.max_retries %d: use -1 to disable retries", r.MaxRetries))
	}
	if r.BackoffMs < 0 || r.MaxBackoffMs < 0 {
		errs = append(errs, errors.New("retry backoff must not be negative"))
	}
	if r.MaxBackoffMs > 0 && r.MaxBackoffMs < r.BackoffMs {
		errs = append(errs, fmt.Errorf("retry.max_backoff_ms %d below backoff_ms %d", r.MaxBackoffMs, r.BackoffMs))
	}
	if c.Haptics.Heartbeat.IntervalMs < 0 {
		errs = append(errs, errors.New("heartbeat.interval_ms must not be negative"))
	}

	seen := map[types.ActuatorID]bool{}
	for i, a := range c.Haptics.Actuators {
		if a.ID < 0 {
			errs = append(errs, fmt.Errorf("actuators[%d]: negative id %d", i, a.ID))
		}
		if seen[a.ID] {
			errs = append(errs, fmt.Errorf("actuators[%d]: duplicate id %d", i, a.ID))
		}
		seen[a.ID] = true
		if a.Backend == "" {
			errs = append(errs, fmt.Errorf("actuators[%d]: backend is required", i))
		} else if _, ok := hal.LookupBuilder(a.Backend); !ok {
			errs = append(errs, fmt.Errorf("actuators[%d]: unknown backend %q", i, a.Backend))
		}
		for _, v := range a.Versions {
			if _, ok := hal.ParseVersion(v); !ok {
				errs = append(errs, fmt.Errorf("actuators[%d]: unknown driver version %q", i, v))
			}
		}
	}
	return errors.Join(errs...)
}

// Topic is the retained bus topic carrying types.HapticsConfig.
func Topic() bus.Topic { return bus.T(configPrefix, hapticsKey) }

// Publish makes cfg the retained haptics configuration. Subscribers apply it
// additively, so republishing after a reload only adds new actuators.
func Publish(conn *bus.Connection, cfg Config) {
	conn.Publish(conn.NewMessage(Topic(), cfg.Haptics, true))
}
