// Simulated panel hardware for development hosts without the I2C chain.
// The pieces satisfy the same pin and display contracts as the real
// drivers, so the rest of the daemon runs unchanged.
package simhw

import (
	"log"
	"math/rand"
	"sync"

	"github.com/reef-pi/hal"
)

// Relay is an in-memory output pin. It records every write, which the
// package tests lean on to assert ordering.
type Relay struct {
	name string

	mu     sync.Mutex
	state  bool
	writes []bool
}

var _ hal.DigitalOutputPin = (*Relay)(nil)

func NewRelay(name string) *Relay { return &Relay{name: name} }

func (r *Relay) Name() string { return r.name }
func (r *Relay) Number() int  { return 0 }
func (r *Relay) Close() error { return nil }

func (r *Relay) Write(on bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = on
	r.writes = append(r.writes, on)
	log.Printf("simhw: relay %s -> %v", r.name, on)
	return nil
}

func (r *Relay) LastState() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Relay) Read() (bool, error) { return r.LastState(), nil }

// Writes returns the full write history, oldest first.
func (r *Relay) Writes() []bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]bool, len(r.writes))
	copy(out, r.writes)
	return out
}

// Analog is a simulated sense channel. With a relay attached it behaves
// like a pump on a current transformer: a noisy waveform while energized,
// near-silence while off.
type Analog struct {
	relay *Relay
}

var _ hal.AnalogInputPin = (*Analog)(nil)

func NewAnalog(relay *Relay) *Analog { return &Analog{relay: relay} }

func (a *Analog) Name() string                        { return "sim-analog" }
func (a *Analog) Number() int                         { return 0 }
func (a *Analog) Close() error                        { return nil }
func (a *Analog) Calibrate(_ []hal.Measurement) error { return nil }
func (a *Analog) Measure() (float64, error)           { return a.Value() }

func (a *Analog) Value() (float64, error) {
	if a.relay != nil && a.relay.LastState() {
		return 13000 + rand.Float64()*1800, nil
	}
	return 13000 + rand.Float64()*20, nil
}

// Display logs renders instead of driving a chip. Encode mirrors the real
// driver's one-byte-per-character contract so animation frames compose the
// same way.
type Display struct {
	mu   sync.Mutex
	last string
}

func NewDisplay() *Display { return &Display{} }

func (d *Display) Show(text string) error {
	d.mu.Lock()
	d.last = text
	d.mu.Unlock()
	log.Printf("simhw: display [%s]", text)
	return nil
}

func (d *Display) Number(n int) error {
	log.Printf("simhw: display [%4d]", n)
	return nil
}

func (d *Display) Brightness(level int) error { return nil }

func (d *Display) Encode(text string) []byte { return []byte(text) }

func (d *Display) Write(segments []byte) error {
	log.Printf("simhw: display raw % X", segments)
	return nil
}

// Last returns the most recent Show text.
func (d *Display) Last() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.last
}

// Input is a settable digital input pin.
type Input struct {
	name string

	mu    sync.Mutex
	level bool
}

var _ hal.DigitalInputPin = (*Input)(nil)

func NewInput(name string, level bool) *Input { return &Input{name: name, level: level} }

func (i *Input) Name() string { return i.name }
func (i *Input) Number() int  { return 0 }
func (i *Input) Close() error { return nil }

func (i *Input) Read() (bool, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.level, nil
}

func (i *Input) Set(level bool) {
	i.mu.Lock()
	i.level = level
	i.mu.Unlock()
}
