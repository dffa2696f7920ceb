package mfi

import "time"

// Dimmer modes reported by the device for each port.
const (
	ModeSwitch = "switch"
	ModeDimmer = "dimmer"
)

// SensorReading is the reported state of one outlet port.
type SensorReading struct {
	Port        int    `json:"port"`
	Output      int    `json:"output"`
	DimmerLevel int    `json:"dimmer_level"`
	DimmerMode  string `json:"dimmer_mode"`
}

// On reports whether the port's output is energised.
func (r SensorReading) On() bool {
	return r.Output != 0
}

type PowerSwitch interface {
	WithCredentials(username, password string) PowerSwitch
	WithTimeout(d time.Duration) PowerSwitch
	SessionID() string
	Login() error
	Logout() error
	Sensor(port int) (*SensorReading, error)
	TurnOn(port int, level int) error
	TurnOff(port int) error
}
