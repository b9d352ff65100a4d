// HT16K33 4-digit 7-segment backpack driver.
//
// Implements the pump display collaborator: 4-char text, right-justified
// numbers, 8-step brightness, and raw segment writes for the run
// animation. Segment bit layout is the usual a..g = bits 0..6.
package ht16k33

import (
	"fmt"
	"sync"

	"github.com/reef-pi/rpi/i2c"
)

const (
	DefaultAddress = 0x70

	cmdSystemSetup = 0x20
	cmdDisplay     = 0x80
	cmdBrightness  = 0xE0

	oscillatorOn = 0x01
	displayOn    = 0x01
)

// digitRows maps display positions 0..3 to display RAM rows; row 4 is the
// colon on the common 4-digit backpack and stays dark.
var digitRows = [4]byte{0, 2, 6, 8}

var font = map[byte]byte{
	' ': 0x00, '-': 0x40,
	'0': 0x3F, '1': 0x06, '2': 0x5B, '3': 0x4F, '4': 0x66,
	'5': 0x6D, '6': 0x7D, '7': 0x07, '8': 0x7F, '9': 0x6F,
	'A': 0x77, 'B': 0x7C, 'C': 0x39, 'D': 0x5E, 'E': 0x79,
	'F': 0x71, 'H': 0x76, 'L': 0x38, 'N': 0x54, 'O': 0x3F,
	'P': 0x73, 'R': 0x50, 'T': 0x78, 'U': 0x3E, 'Y': 0x6E,
}

type HT16K33 struct {
	bus     i2c.Bus
	address byte

	mu  sync.Mutex
	buf [10]byte
}

func New(bus i2c.Bus, address byte) (*HT16K33, error) {
	d := &HT16K33{bus: bus, address: address}
	for _, cmd := range []byte{
		cmdSystemSetup | oscillatorOn,
		cmdDisplay | displayOn,
		cmdBrightness | 0x0F,
	} {
		if err := bus.WriteBytes(address, []byte{cmd}); err != nil {
			return nil, fmt.Errorf("ht16k33 addr=0x%02X: init: %w", address, err)
		}
	}
	if err := d.flush(); err != nil {
		return nil, err
	}
	return d, nil
}

// Show renders up to 4 characters, padded with blanks on the right.
// Unknown characters render blank.
func (d *HT16K33) Show(text string) error {
	return d.Write(d.Encode(text))
}

// Number renders an integer right-justified; values outside the 4-digit
// range are truncated to their low digits.
func (d *HT16K33) Number(n int) error {
	s := fmt.Sprintf("%4d", n)
	if len(s) > 4 {
		s = s[len(s)-4:]
	}
	return d.Show(s)
}

// Brightness maps the controller's 0..7 scale onto the chip's 16-step
// dimmer.
func (d *HT16K33) Brightness(level int) error {
	if level < 0 {
		level = 0
	}
	if level > 7 {
		level = 7
	}
	duty := byte(level*2 + 1)
	if err := d.bus.WriteBytes(d.address, []byte{cmdBrightness | duty}); err != nil {
		return fmt.Errorf("ht16k33 addr=0x%02X: brightness: %w", d.address, err)
	}
	return nil
}

// Encode returns raw segment bytes for text, one byte per character.
func (d *HT16K33) Encode(text string) []byte {
	out := make([]byte, 0, len(text))
	for i := 0; i < len(text); i++ {
		out = append(out, font[text[i]])
	}
	return out
}

// Write places raw segment bytes left to right, blanking the rest.
func (d *HT16K33) Write(segments []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.buf = [10]byte{}
	for i, row := range digitRows {
		if i < len(segments) {
			d.buf[row] = segments[i]
		}
	}
	return d.flush()
}

func (d *HT16K33) flush() error {
	if err := d.bus.WriteToReg(d.address, 0x00, d.buf[:]); err != nil {
		return fmt.Errorf("ht16k33 addr=0x%02X: write ram: %w", d.address, err)
	}
	return nil
}

func (d *HT16K33) Close() error { return nil }
