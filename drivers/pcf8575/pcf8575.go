// PCF8575 16-bit I2C GPIO expander.
//
// The panel hardware (relay, mode switch, encoder, button) hangs off one
// expander so the whole controller runs over a single I2C bus. The chip
// has no registers: every transfer is 2 bytes (LSB first) latching or
// reading all 16 pins, so a shadow of the last latch is kept and the lock
// is held across release-write-read sequences.
package pcf8575

import (
	"fmt"
	"sync"

	"github.com/reef-pi/hal"
	"github.com/reef-pi/rpi/i2c"
)

type PCF8575 struct {
	bus     i2c.Bus
	address byte

	mu sync.Mutex
	// shadow: bit=1 released/high (input-ish), bit=0 driven low.
	shadow uint16
}

func New(bus i2c.Bus, address byte) (*PCF8575, error) {
	d := &PCF8575{bus: bus, address: address, shadow: 0xFFFF}
	// Release everything so inputs read correctly from the start.
	if err := d.write16(d.shadow); err != nil {
		return nil, err
	}
	return d, nil
}

// Pin returns an expander bit usable as digital input or output.
func (d *PCF8575) Pin(n int) (*Pin, error) {
	if n < 0 || n > 15 {
		return nil, fmt.Errorf("pcf8575 addr=0x%02X: invalid pin %d", d.address, n)
	}
	return &Pin{driver: d, pin: n}, nil
}

func (d *PCF8575) Close() error { return nil }

func (d *PCF8575) write16(v uint16) error {
	b := []byte{byte(v), byte(v >> 8)}
	if err := d.bus.WriteBytes(d.address, b); err != nil {
		return fmt.Errorf("pcf8575 addr=0x%02X: write 0x%04X: %w", d.address, v, err)
	}
	return nil
}

func (d *PCF8575) read16() (uint16, error) {
	b, err := d.bus.ReadBytes(d.address, 2)
	if err != nil {
		return 0, fmt.Errorf("pcf8575 addr=0x%02X: read: %w", d.address, err)
	}
	if len(b) < 2 {
		return 0, fmt.Errorf("pcf8575 addr=0x%02X: short read (%d bytes)", d.address, len(b))
	}
	return uint16(b[0]) | uint16(b[1])<<8, nil
}

func (d *PCF8575) writePin(pin int, high bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	mask := uint16(1) << pin
	if high {
		d.shadow |= mask
	} else {
		d.shadow &^= mask
	}
	return d.write16(d.shadow)
}

// readPin releases the bit for input semantics, then reads the live level.
func (d *PCF8575) readPin(pin int) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	mask := uint16(1) << pin
	if d.shadow&mask == 0 {
		// The bit is currently driven low; reading would just echo the
		// latch, which is what output-level reads want anyway.
		return false, nil
	}
	v, err := d.read16()
	if err != nil {
		return false, err
	}
	return v&mask != 0, nil
}

func (d *PCF8575) lastState(pin int) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.shadow&uint16(1)<<pin != 0
}

// Pin is one expander bit. It satisfies hal.DigitalInputPin and
// hal.DigitalOutputPin (and, with both, the pump relay pin contract).
type Pin struct {
	driver *PCF8575
	pin    int
}

var (
	_ hal.DigitalInputPin  = (*Pin)(nil)
	_ hal.DigitalOutputPin = (*Pin)(nil)
)

func (p *Pin) Name() string          { return fmt.Sprintf("PCF8575:%d", p.pin) }
func (p *Pin) Number() int           { return p.pin }
func (p *Pin) Close() error          { return nil }
func (p *Pin) Read() (bool, error)   { return p.driver.readPin(p.pin) }
func (p *Pin) Write(high bool) error { return p.driver.writePin(p.pin, high) }
func (p *Pin) LastState() bool       { return p.driver.lastState(p.pin) }
