// v1
// internal/device/device.go
// Package device holds the clients for the remote room hardware: the
// temperature sensors the controller may poll and the heater actuators it
// commands. Both are reachable over HTTP following the simulator's URL
// patterns; heaters can alternatively be driven over MQTT.
package device

import (
	"errors"
	"strings"
)

// ErrSensor wraps any failure to obtain a reading from a room sensor.
var ErrSensor = errors.New("sensor read failed")

// ErrActuator wraps any failure to switch a room heater, including an
// explicit rejection by the device.
var ErrActuator = errors.New("actuator command failed")

// expandPattern substitutes the room id into a configured URL or topic
// pattern such as "http://sim:9001/room/{room_id}/temperature".
func expandPattern(pattern, roomID string) string {
	return strings.ReplaceAll(pattern, "{room_id}", roomID)
}
