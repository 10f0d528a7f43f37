package hal

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"tinygo.org/x/drivers"

	"haptics-go/types"
)

// Connector opens a backend of one generation. Connect fails when that
// generation's driver is not present.
type Connector interface {
	Version() Version
	Connect(ctx context.Context) (Backend, error)
}

type connectorFunc struct {
	v  Version
	fn func(ctx context.Context) (Backend, error)
}

func (c connectorFunc) Version() Version { return c.v }
func (c connectorFunc) Connect(ctx context.Context) (Backend, error) {
	return c.fn(ctx)
}

// NewConnector adapts a function to a Connector.
func NewConnector(v Version, fn func(ctx context.Context) (Backend, error)) Connector {
	return connectorFunc{v: v, fn: fn}
}

// NewestFirst returns a copy of cs ordered newest generation first.
func NewestFirst(cs []Connector) []Connector {
	out := append([]Connector(nil), cs...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Version() > out[j].Version() })
	return out
}

// Resources are host facilities a builder may claim.
type Resources struct {
	// I2C returns the named bus ("i2c0", ...). Nil on hosts without I²C.
	I2C func(id string) (drivers.I2C, error)
}

// BuildInput is everything a builder sees for one actuator.
type BuildInput struct {
	Actuator types.ActuatorConfig
	Res      Resources
}

// Builder turns one actuator config entry into the connectors to probe.
type Builder interface {
	Build(ctx context.Context, in BuildInput) ([]Connector, error)
}

// BuilderFunc adapts a function to a Builder.
type BuilderFunc func(ctx context.Context, in BuildInput) ([]Connector, error)

func (f BuilderFunc) Build(ctx context.Context, in BuildInput) ([]Connector, error) {
	return f(ctx, in)
}

var (
	regMu    sync.RWMutex
	builders = map[string]Builder{}
)

// RegisterBuilder makes a backend available under name. Backends call it from
// init; registering a name twice panics.
func RegisterBuilder(name string, b Builder) {
	regMu.Lock()
	defer regMu.Unlock()
	if _, exists := builders[name]; exists {
		panic(fmt.Sprintf("duplicate backend builder: %s", name))
	}
	builders[name] = b
}

// LookupBuilder returns the builder registered under name.
func LookupBuilder(name string) (Builder, bool) {
	regMu.RLock()
	defer regMu.RUnlock()
	b, ok := builders[name]
	return b, ok
}

// FilterVersions keeps the connectors whose generation is named in want.
// An empty want keeps everything. Unknown names are reported.
func FilterVersions(cs []Connector, want []string) ([]Connector, error) {
	if len(want) == 0 {
		return cs, nil
	}
	keep := map[Version]bool{}
	for _, s := range want {
		v, ok := ParseVersion(s)
		if !ok {
			return nil, fmt.Errorf("unknown driver version %q", s)
		}
		keep[v] = true
	}
	var out []Connector
	for _, c := range cs {
		if keep[c.Version()] {
			out = append(out, c)
		}
	}
	return out, nil
}
