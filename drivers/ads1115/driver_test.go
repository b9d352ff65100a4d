package ads1115

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBus struct {
	config     []byte
	conversion []byte
}

func (f *fakeBus) ReadBytes(addr byte, num int) ([]byte, error) { return make([]byte, num), nil }

func (f *fakeBus) WriteBytes(addr byte, value []byte) error { return nil }

func (f *fakeBus) WriteToReg(addr, reg byte, value []byte) error {
	if reg == regConfig {
		f.config = append([]byte{}, value...)
	}
	return nil
}

func (f *fakeBus) ReadFromReg(addr, reg byte, value []byte) error {
	switch reg {
	case regConfig:
		// Conversion always reported complete.
		value[0] = 0x80
		value[1] = 0x00
	case regConversion:
		copy(value, f.conversion)
	}
	return nil
}

func (f *fakeBus) Close() error { return nil }

func (f *fakeBus) SetAddress(addr byte) error { return nil }

func TestNewRejectsBadChannel(t *testing.T) {
	_, err := New(&fakeBus{}, 0x48, 4)
	assert.Error(t, err)
	_, err = New(&fakeBus{}, 0x48, -1)
	assert.Error(t, err)
}

func TestValueReturnsRawCounts(t *testing.T) {
	bus := &fakeBus{conversion: []byte{0x07, 0xD0}} // 2000
	c, err := New(bus, 0x48, 0)
	require.NoError(t, err)

	v, err := c.Value()
	require.NoError(t, err)
	assert.Equal(t, 2000.0, v)

	// Single-shot, gain 1, AIN0, 860SPS.
	require.Len(t, bus.config, 2)
	cfg := uint16(bus.config[0])<<8 | uint16(bus.config[1])
	assert.Equal(t, configOsSingle|configModeSingle|configCompOff|muxSingle[0]|configGainOne|configRate860, cfg)
}

func TestValueClampsNegativeReadings(t *testing.T) {
	bus := &fakeBus{conversion: []byte{0xFF, 0x38}} // -200
	c, err := New(bus, 0x48, 1)
	require.NoError(t, err)

	v, err := c.Value()
	require.NoError(t, err)
	assert.Zero(t, v)
}
