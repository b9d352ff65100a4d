package rotary

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pump-pi/pump-pi/controller/modules/pump"
	"github.com/pump-pi/pump-pi/drivers/simhw"
)

type captureSink struct {
	events []pump.Event
}

func (c *captureSink) Enqueue(ev pump.Event) bool {
	c.events = append(c.events, ev)
	return true
}

type harness struct {
	poller *Poller
	sink   *captureSink
	clk    *simhw.Input
	dt     *simhw.Input
	button *simhw.Input
	sw     *simhw.Input
	now    time.Time
}

func newHarness(swInvert bool) *harness {
	h := &harness{
		sink:   &captureSink{},
		clk:    simhw.NewInput("clk", true),
		dt:     simhw.NewInput("dt", true),
		button: simhw.NewInput("button", true),
		sw:     simhw.NewInput("switch", true),
		now:    time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	h.poller = NewPoller(h.clk, h.dt, h.button, h.sw, swInvert, h.sink)
	h.poller.prevSwitch = h.poller.readSwitch()
	return h
}

func (h *harness) step(advance time.Duration) {
	h.now = h.now.Add(advance)
	h.poller.step(h.now)
}

func TestKnobDirection(t *testing.T) {
	h := newHarness(false)

	// CW detent: DT still high on the CLK falling edge.
	h.clk.Set(false)
	h.step(DefaultPollInterval)
	require.Len(t, h.sink.events, 1)
	assert.Equal(t, pump.Event{Type: pump.EventKnob, Delta: 1}, h.sink.events[0])

	h.clk.Set(true)
	h.step(DefaultPollInterval)
	assert.Len(t, h.sink.events, 1)

	// CCW detent: DT already low.
	h.dt.Set(false)
	h.clk.Set(false)
	h.step(DefaultPollInterval)
	require.Len(t, h.sink.events, 2)
	assert.Equal(t, pump.Event{Type: pump.EventKnob, Delta: -1}, h.sink.events[1])
}

func TestButtonEdgeWithLockout(t *testing.T) {
	h := newHarness(false)

	h.button.Set(false)
	h.step(DefaultPollInterval)
	require.Len(t, h.sink.events, 1)
	assert.Equal(t, pump.EventButton, h.sink.events[0].Type)

	// Held down: no repeat.
	h.step(DefaultPollInterval)
	assert.Len(t, h.sink.events, 1)

	// Release and bounce back inside the lockout window.
	h.button.Set(true)
	h.step(DefaultPollInterval)
	h.button.Set(false)
	h.step(DefaultPollInterval)
	assert.Len(t, h.sink.events, 1)

	// A real second press after the lockout.
	h.button.Set(true)
	h.step(buttonLockout)
	h.button.Set(false)
	h.step(DefaultPollInterval)
	assert.Len(t, h.sink.events, 2)
}

func TestSwitchChangeEmitsPosition(t *testing.T) {
	h := newHarness(false)

	h.step(DefaultPollInterval)
	assert.Empty(t, h.sink.events)

	h.sw.Set(false)
	h.step(DefaultPollInterval)
	require.Len(t, h.sink.events, 1)
	assert.Equal(t, pump.Event{Type: pump.EventSwitch, Auto: false}, h.sink.events[0])

	h.sw.Set(true)
	h.step(DefaultPollInterval)
	require.Len(t, h.sink.events, 2)
	assert.True(t, h.sink.events[1].Auto)
}

func TestSwitchInversion(t *testing.T) {
	h := newHarness(true)

	// High line with inversion means timer position.
	assert.False(t, h.poller.readSwitch())

	h.sw.Set(false)
	h.step(DefaultPollInterval)
	require.Len(t, h.sink.events, 1)
	assert.True(t, h.sink.events[0].Auto)
}
