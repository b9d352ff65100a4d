package pcf8575

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBus struct {
	writes [][]byte
	levels uint16
	reads  int
}

func (f *fakeBus) WriteBytes(addr byte, value []byte) error {
	b := make([]byte, len(value))
	copy(b, value)
	f.writes = append(f.writes, b)
	return nil
}

func (f *fakeBus) ReadBytes(addr byte, num int) ([]byte, error) {
	f.reads++
	return []byte{byte(f.levels), byte(f.levels >> 8)}, nil
}

func (f *fakeBus) ReadFromReg(addr, reg byte, value []byte) error { return nil }

func (f *fakeBus) WriteToReg(addr, reg byte, value []byte) error { return nil }

func (f *fakeBus) Close() error { return nil }

func (f *fakeBus) SetAddress(addr byte) error { return nil }

func (f *fakeBus) lastWrite() uint16 {
	w := f.writes[len(f.writes)-1]
	return uint16(w[0]) | uint16(w[1])<<8
}

func TestNewReleasesAllPins(t *testing.T) {
	bus := &fakeBus{}
	_, err := New(bus, 0x20)
	require.NoError(t, err)
	require.Len(t, bus.writes, 1)
	assert.Equal(t, uint16(0xFFFF), bus.lastWrite())
}

func TestPinRangeCheck(t *testing.T) {
	bus := &fakeBus{}
	d, err := New(bus, 0x20)
	require.NoError(t, err)

	_, err = d.Pin(16)
	assert.Error(t, err)
	_, err = d.Pin(-1)
	assert.Error(t, err)
}

func TestWriteLatchesOnlyTargetBit(t *testing.T) {
	bus := &fakeBus{}
	d, err := New(bus, 0x20)
	require.NoError(t, err)

	relay, err := d.Pin(0)
	require.NoError(t, err)
	other, err := d.Pin(8)
	require.NoError(t, err)

	require.NoError(t, relay.Write(false))
	assert.Equal(t, uint16(0xFFFE), bus.lastWrite())
	assert.False(t, relay.LastState())
	assert.True(t, other.LastState())

	require.NoError(t, other.Write(false))
	assert.Equal(t, uint16(0xFEFE), bus.lastWrite())

	require.NoError(t, relay.Write(true))
	assert.Equal(t, uint16(0xFEFF), bus.lastWrite())
	assert.True(t, relay.LastState())
}

func TestReadReflectsBusLevels(t *testing.T) {
	bus := &fakeBus{levels: 0x0100}
	d, err := New(bus, 0x20)
	require.NoError(t, err)

	sw, err := d.Pin(8)
	require.NoError(t, err)
	btn, err := d.Pin(9)
	require.NoError(t, err)

	high, err := sw.Read()
	require.NoError(t, err)
	assert.True(t, high)

	low, err := btn.Read()
	require.NoError(t, err)
	assert.False(t, low)
}

func TestReadOfDrivenLowPinSkipsBus(t *testing.T) {
	bus := &fakeBus{levels: 0xFFFF}
	d, err := New(bus, 0x20)
	require.NoError(t, err)

	relay, err := d.Pin(0)
	require.NoError(t, err)
	require.NoError(t, relay.Write(false))

	bus.reads = 0
	on, err := relay.Read()
	require.NoError(t, err)
	assert.False(t, on)
	assert.Zero(t, bus.reads)
}
