package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"haptics-go/bus"
	_ "haptics-go/services/haptics/backends/lra"
	_ "haptics-go/services/haptics/backends/remote"
	_ "haptics-go/services/haptics/backends/sim"
	"haptics-go/types"
)

const sample = `
[service]
listen = ":9000"
buses = ["i2c1"]

[retry]
max_retries = 2
backoff_ms = 10
max_backoff_ms = 80
jitter = true

[heartbeat]
interval_ms = 2000

[[actuators]]
id = 0
backend = "sim"
versions = ["aidl", "1.0"]

[[actuators]]
id = 1
backend = "LRA"
params = { bus = "i2c1", addr = 0x5A }

[[actuators]]
id = 2
backend = "remote"
`

func TestParseAppliesDefaultsAndSections(t *testing.T) {
	cfg, err := Parse(sample)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Listen != ":9000" || cfg.DriverSocket != DefaultDriverSocket {
		t.Fatalf("service = %q %q", cfg.Listen, cfg.DriverSocket)
	}
	if len(cfg.Buses) != 1 || cfg.Buses[0] != "i2c1" {
		t.Fatalf("buses = %v", cfg.Buses)
	}
	r := cfg.Haptics.Retry
	if r.MaxRetries != 2 || r.BackoffMs != 10 || r.MaxBackoffMs != 80 || !r.Jitter {
		t.Fatalf("retry = %+v", r)
	}
	if cfg.Haptics.Heartbeat.IntervalMs != 2000 {
		t.Fatalf("heartbeat = %+v", cfg.Haptics.Heartbeat)
	}
	acts := cfg.Haptics.Actuators
	if len(acts) != 3 {
		t.Fatalf("actuators = %d", len(acts))
	}
	if acts[1].Backend != "lra" {
		t.Fatalf("backend not normalised: %q", acts[1].Backend)
	}
	if addr, _ := acts[1].Params["addr"].(int64); addr != 0x5A {
		t.Fatalf("addr param = %#v", acts[1].Params["addr"])
	}
	if sock := acts[2].Params["socket"]; sock != DefaultDriverSocket {
		t.Fatalf("remote socket = %#v", sock)
	}
}

func TestLoadReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "haptics.toml")
	doc := "[service]\ndriver_socket = \"/tmp/v.sock\"\n\n[[actuators]]\nid = 3\nbackend = \"remote\"\n"
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Listen != DefaultListen {
		t.Fatalf("listen = %q", cfg.Listen)
	}
	if got := cfg.Haptics.Actuators[0].Params["socket"]; got != "/tmp/v.sock" {
		t.Fatalf("socket = %#v", got)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatal("missing file should fail")
	}
}

func TestValidateReportsEveryProblem(t *testing.T) {
	doc := `
[retry]
max_retries = -3
backoff_ms = 50
max_backoff_ms = 10

[[actuators]]
id = 1
backend = "sim"
versions = ["2.0"]

[[actuators]]
id = 1
backend = "piezo"
`
	_, err := Parse(doc)
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"max_retries", "max_backoff_ms", "duplicate id 1", `unknown backend "piezo"`, `unknown driver version "2.0"`} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q missing %q", err, want)
		}
	}
}

func TestUnknownKeysRejected(t *testing.T) {
	_, err := Parse("[service]\nlisten = \":1\"\nlisen = \":2\"\n")
	if err == nil || !strings.Contains(err.Error(), "service.lisen") {
		t.Fatalf("err = %v", err)
	}
}

func TestPublishIsRetained(t *testing.T) {
	cfg, err := Parse(sample)
	if err != nil {
		t.Fatal(err)
	}
	b := bus.NewBus(4)
	conn := b.NewConnection("config")
	Publish(conn, cfg)

	sub := conn.Subscribe(Topic())
	select {
	case m := <-sub.Channel():
		got, ok := m.Payload.(types.HapticsConfig)
		if !ok || !m.Retained || len(got.Actuators) != 3 {
			t.Fatalf("message = %+v", m)
		}
	case <-time.After(time.Second):
		t.Fatal("retained config not delivered")
	}
}
