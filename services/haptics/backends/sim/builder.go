package sim

import (
	"context"

	"haptics-go/services/haptics/hal"
)

func init() { hal.RegisterBuilder("sim", hal.BuilderFunc(build)) }

// build offers one simulated driver per generation. The "ambiguous_unsupported"
// param marks every generation's failures as possibly unsupported.
func build(_ context.Context, in hal.BuildInput) ([]hal.Connector, error) {
	ambiguous, _ := in.Actuator.Params["ambiguous_unsupported"].(bool)
	var cs []hal.Connector
	for _, v := range hal.AllVersions() {
		p := DefaultProfile(v)
		p.Ambiguous = ambiguous
		cs = append(cs, Connector(New(p)))
	}
	return hal.FilterVersions(cs, in.Actuator.Versions)
}
