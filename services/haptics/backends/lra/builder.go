package lra

import (
	"cmp"
	"context"
	"fmt"

	"haptics-go/drivers/drv2605"
	"haptics-go/services/haptics/hal"
)

func init() { hal.RegisterBuilder("lra", hal.BuilderFunc(build)) }

// build reads params {"bus": "i2c0", "addr": 0x5A}.
func build(_ context.Context, in hal.BuildInput) ([]hal.Connector, error) {
	if in.Res.I2C == nil {
		return nil, fmt.Errorf("lra: no i2c buses on this host")
	}
	busID, _ := in.Actuator.Params["bus"].(string)
	busID = cmp.Or(busID, "i2c0")
	addr := uint16(drv2605.Address)
	switch v := in.Actuator.Params["addr"].(type) {
	case int64:
		addr = uint16(v)
	case float64:
		addr = uint16(v)
	case int:
		addr = uint16(v)
	}
	bus, err := in.Res.I2C(busID)
	if err != nil {
		return nil, fmt.Errorf("lra: %w", err)
	}
	cfg := drv2605.Config{Address: addr}
	c := hal.NewConnector(hal.AIDL, func(context.Context) (hal.Backend, error) {
		dev := drv2605.New(bus)
		dev.Address = addr
		return New(dev, cfg), nil
	})
	return hal.FilterVersions([]hal.Connector{c}, in.Actuator.Versions)
}
