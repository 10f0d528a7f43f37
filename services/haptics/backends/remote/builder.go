package remote

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"haptics-go/services/haptics/hal"
)

func init() { hal.RegisterBuilder("remote", hal.BuilderFunc(build)) }

// build reads params {"socket": "/run/vhald.sock"} or {"target": "..."}.
// Each entry of Versions becomes one connector to the same target; the
// server's answer to hello decides which one binds.
func build(_ context.Context, in hal.BuildInput) ([]hal.Connector, error) {
	target, _ := in.Actuator.Params["target"].(string)
	if sock, ok := in.Actuator.Params["socket"].(string); ok && target == "" {
		target = "unix://" + sock
	}
	if target == "" {
		return nil, fmt.Errorf("remote: actuator %d needs a socket or target param", in.Actuator.ID)
	}
	if !strings.Contains(target, ":") {
		target = "unix://" + target
	}
	l := log.Logger.With().Str("component", "remote").Str("target", target).Logger()

	var cs []hal.Connector
	for _, v := range hal.AllVersions() {
		cs = append(cs, hal.NewConnector(v, func(ctx context.Context) (hal.Backend, error) {
			return Dial(ctx, target, v, l)
		}))
	}
	return hal.FilterVersions(cs, in.Actuator.Versions)
}
