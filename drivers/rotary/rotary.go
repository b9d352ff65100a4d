// Rotary panel input: quadrature encoder with push button, plus the
// two-position mode switch. All three are polled digital pins (they sit
// behind the I2C expander, so there are no edge interrupts to hook) and
// every decoded change is posted to the controller queue as an event.
package rotary

import (
	"log"
	"time"

	"github.com/reef-pi/hal"

	"github.com/pump-pi/pump-pi/controller/modules/pump"
)

const (
	// DefaultPollInterval is fast enough to catch every detent of a
	// hand-turned encoder over I2C.
	DefaultPollInterval = 2 * time.Millisecond

	// buttonLockout suppresses contact bounce at the source; the
	// controller applies its own debounce on top.
	buttonLockout = 200 * time.Millisecond
)

// Sink receives decoded input events. The post must not block.
type Sink interface {
	Enqueue(pump.Event) bool
}

// Poller decodes the panel inputs. All pins are active-low with pull-ups,
// which is the natural wiring on a quasi-bidirectional expander.
type Poller struct {
	clk    hal.DigitalInputPin
	dt     hal.DigitalInputPin
	button hal.DigitalInputPin
	sw     hal.DigitalInputPin

	// swInvert flips switch polarity for boards where the auto position
	// pulls the line low.
	swInvert bool

	sink Sink

	prevClk    bool
	prevButton bool
	prevSwitch bool
	lastPress  time.Time
}

func NewPoller(clk, dt, button, sw hal.DigitalInputPin, swInvert bool, sink Sink) *Poller {
	return &Poller{
		clk:      clk,
		dt:       dt,
		button:   button,
		sw:       sw,
		swInvert: swInvert,
		sink:     sink,
		// Idle levels; the first step corrects them from hardware.
		prevClk:    true,
		prevButton: true,
	}
}

// Start primes the edge trackers, posts the initial switch position so the
// controller starts in the mode the panel shows, and begins polling.
// It never returns.
func (p *Poller) Start() {
	if v, err := p.clk.Read(); err == nil {
		p.prevClk = v
	}
	if v, err := p.button.Read(); err == nil {
		p.prevButton = v
	}
	auto := p.readSwitch()
	p.prevSwitch = auto
	p.sink.Enqueue(pump.Event{Type: pump.EventSwitch, Auto: auto})

	ticker := time.NewTicker(DefaultPollInterval)
	for range ticker.C {
		p.step(time.Now())
	}
}

// step is one poll pass. Read errors skip the input for this pass; the
// expander recovers on the next one.
func (p *Poller) step(now time.Time) {
	if clk, err := p.clk.Read(); err != nil {
		log.Printf("rotary: read clk: %v", err)
	} else {
		// One detent per CLK falling edge; DT level gives the direction.
		if p.prevClk && !clk {
			if dt, err := p.dt.Read(); err != nil {
				log.Printf("rotary: read dt: %v", err)
			} else {
				delta := 1
				if !dt {
					delta = -1
				}
				p.sink.Enqueue(pump.Event{Type: pump.EventKnob, Delta: delta})
			}
		}
		p.prevClk = clk
	}

	if btn, err := p.button.Read(); err != nil {
		log.Printf("rotary: read button: %v", err)
	} else {
		if p.prevButton && !btn && now.Sub(p.lastPress) >= buttonLockout {
			p.lastPress = now
			p.sink.Enqueue(pump.Event{Type: pump.EventButton})
		}
		p.prevButton = btn
	}

	auto := p.readSwitch()
	if auto != p.prevSwitch {
		p.prevSwitch = auto
		p.sink.Enqueue(pump.Event{Type: pump.EventSwitch, Auto: auto})
	}
}

func (p *Poller) readSwitch() bool {
	v, err := p.sw.Read()
	if err != nil {
		log.Printf("rotary: read switch: %v", err)
		return p.prevSwitch
	}
	if p.swInvert {
		return !v
	}
	return v
}
