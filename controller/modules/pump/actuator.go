package pump

import (
	"log"
	"time"

	"github.com/reef-pi/hal"
)

// RelayPin is a digital output that can also report the live pin level,
// so IsOn reflects the physical output rather than a shadow flag.
type RelayPin interface {
	hal.DigitalOutputPin
	Read() (bool, error)
}

// Actuator drives the pump relay and tracks how long it has been energized.
type Actuator struct {
	pin   RelayPin
	clock Clock
	start time.Time
}

func NewActuator(pin RelayPin, clock Clock) *Actuator {
	return &Actuator{pin: pin, clock: clock}
}

// On energizes the relay and records the start time.
func (a *Actuator) On() error {
	if err := a.pin.Write(true); err != nil {
		return err
	}
	a.start = a.clock.Now()
	return nil
}

// Off de-energizes the relay and clears the start time.
func (a *Actuator) Off() error {
	if err := a.pin.Write(false); err != nil {
		return err
	}
	a.start = time.Time{}
	return nil
}

// IsOn reads the physical output state. If the read fails we fall back to
// the pin's latched state so the control loop keeps a usable answer.
func (a *Actuator) IsOn() bool {
	on, err := a.pin.Read()
	if err != nil {
		log.Printf("pump: relay read failed, using latched state: %v", err)
		return a.pin.LastState()
	}
	return on
}

// ElapsedSeconds returns seconds since On, or 0 while the relay is off.
func (a *Actuator) ElapsedSeconds() int {
	if a.start.IsZero() || !a.IsOn() {
		return 0
	}
	return int(a.clock.Now().Sub(a.start) / time.Second)
}
