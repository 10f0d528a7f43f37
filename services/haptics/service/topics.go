package service

import (
	"haptics-go/bus"
	"haptics-go/types"
)

// Control verbs accepted on haptics/<id>/control/<verb>.
const (
	VerbOn        = "on"
	VerbOff       = "off"
	VerbAmplitude = "amplitude"
	VerbExternal  = "external"
	VerbEffect    = "effect"
	VerbCompose   = "compose"
	VerbAlwaysOn  = "always_on"
	VerbAlwaysOff = "always_off"
	VerbPing      = "ping"
	VerbInfo      = "info"
)

func ConfigTopic() bus.Topic { return bus.T("config", "haptics") }

// StateTopic carries the retained service state.
func StateTopic() bus.Topic { return bus.T("haptics", "state") }

// haptics/<id>/...
func actuatorBase(id types.ActuatorID) bus.Topic { return bus.T("haptics", int32(id)) }

func InfoTopic(id types.ActuatorID) bus.Topic { return actuatorBase(id).Append("info") }
func ActuatorStateTopic(id types.ActuatorID) bus.Topic {
	return actuatorBase(id).Append("state")
}

// ControlTopic is where requests for verb on actuator id are published.
func ControlTopic(id types.ActuatorID, verb string) bus.Topic {
	return actuatorBase(id).Append("control", verb)
}

// haptics/+/control/+
func ctrlWildcard() bus.Topic { return bus.T("haptics", "+", "control", "+") }
