// ADS1115 single-ended channel exposed as a hal.AnalogInputPin.
//
// The pump current-sense algorithm works on raw peak-to-peak conversion
// counts, so unlike a voltage-domain driver this one returns the raw
// (sign-clamped) conversion value. Gain is fixed at 1 (+/-4.096V), which
// covers the 0-3.3V sense range with headroom.
package ads1115

import (
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/reef-pi/hal"
	"github.com/reef-pi/rpi/i2c"
)

const (
	regConversion = 0x00
	regConfig     = 0x01

	configOsSingle   uint16 = 0x8000
	configModeSingle uint16 = 0x0100
	configGainOne    uint16 = 0x0200 // +/-4.096V
	configRate860    uint16 = 0x00E0 // 860 SPS
	configCompOff    uint16 = 0x0003

	convTimeout  = 50 * time.Millisecond
	convPollWait = 200 * time.Microsecond
)

var muxSingle = [4]uint16{0x4000, 0x5000, 0x6000, 0x7000}

// Channel is one single-ended ADS1115 input (AINx vs GND).
type Channel struct {
	bus     i2c.Bus
	address byte
	channel int
	mux     uint16

	// One conversion at a time; the control loop and the telemetry task
	// both sample through this pin.
	mu sync.Mutex
}

func New(bus i2c.Bus, address byte, channel int) (*Channel, error) {
	if channel < 0 || channel > 3 {
		return nil, fmt.Errorf("ads1115: invalid channel %d (must be 0..3)", channel)
	}
	return &Channel{
		bus:     bus,
		address: address,
		channel: channel,
		mux:     muxSingle[channel],
	}, nil
}

func (c *Channel) Name() string { return fmt.Sprintf("ADS1115 (AIN%d)", c.channel) }
func (c *Channel) Number() int  { return c.channel }
func (c *Channel) Close() error { return nil }

// Calibrate is a no-op; the pump controller calibrates in its own domain.
func (c *Channel) Calibrate(_ []hal.Measurement) error { return nil }

func (c *Channel) Measure() (float64, error) { return c.Value() }

// Value runs one single-shot conversion and returns raw counts, clamped at
// zero for the single-ended wiring.
func (c *Channel) Value() (float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	config := configOsSingle | configModeSingle | configCompOff | c.mux | configGainOne | configRate860
	buf := []byte{byte(config >> 8), byte(config)}
	if err := c.bus.WriteToReg(c.address, regConfig, buf); err != nil {
		return 0, fmt.Errorf("ads1115: write config: %w", err)
	}

	// Poll the OS bit until the conversion completes (~1.2ms at 860SPS).
	deadline := time.Now().Add(convTimeout)
	cfg := make([]byte, 2)
	for {
		if err := c.bus.ReadFromReg(c.address, regConfig, cfg); err != nil {
			return 0, fmt.Errorf("ads1115: read config: %w", err)
		}
		if binary.BigEndian.Uint16(cfg)&configOsSingle != 0 {
			break
		}
		if time.Now().After(deadline) {
			return 0, fmt.Errorf("ads1115: conversion timeout (cfg=0x%02X%02X)", cfg[0], cfg[1])
		}
		time.Sleep(convPollWait)
	}

	b := make([]byte, 2)
	if err := c.bus.ReadFromReg(c.address, regConversion, b); err != nil {
		return 0, fmt.Errorf("ads1115: read conversion: %w", err)
	}
	raw := int16(binary.BigEndian.Uint16(b))
	if raw < 0 {
		raw = 0
	}
	return float64(raw), nil
}
