package pump

import (
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"
)

const (
	// tickInterval drives display refresh and time-dependent state.
	tickInterval = 100 * time.Millisecond
	// buttonDebounce suppresses mechanical bounce after a press.
	buttonDebounce = 500 * time.Millisecond
	// autoReadDelay guards the completion check after an auto start, so
	// inrush and priming never read as a dry pump.
	autoReadDelay = 30 * time.Second
	// autoCheckInterval throttles the blocking completion sample.
	autoCheckInterval = 10 * time.Second
	// eventQueueSize bounds the handler-to-loop queue.
	eventQueueSize = 16

	splashHold = 1500 * time.Millisecond
	maxLogs    = 100
)

// Controller is the pump mode state machine. A single run loop drains the
// event queue and a 10 Hz tick; it is the only writer of controller state.
type Controller struct {
	display  Display
	actuator *Actuator
	sampler  LoadSampler
	store    CalibrationStore
	clock    Clock

	// heartbeat, when set, is called once per tick. The daemon wires it
	// to the systemd watchdog so a wedged loop power-cycles the service.
	heartbeat func()

	events chan Event
	snap   atomic.Pointer[Snapshot]
	st     state

	mu   sync.Mutex
	logs []string
}

func New(display Display, actuator *Actuator, sampler LoadSampler, store CalibrationStore, clock Clock) *Controller {
	c := &Controller{
		display:  display,
		actuator: actuator,
		sampler:  sampler,
		store:    store,
		clock:    clock,
		events:   make(chan Event, eventQueueSize),
		st: state{
			mode:      AutoStandby,
			submode:   SubmodeMenu,
			threshold: DefaultThreshold,
			waterLoad: DefaultWaterLoad,
		},
	}
	cal, err := store.Load()
	if err != nil {
		log.Printf("pump: load calibration, using defaults: %v", err)
	} else {
		if cal.Threshold > 0 || cal.WaterLoad > 0 {
			c.st.threshold = cal.Threshold
			c.st.waterLoad = cal.WaterLoad
		}
	}
	c.publish()
	return c
}

// SetHeartbeat installs the per-tick liveness callback. Must be called
// before Run.
func (c *Controller) SetHeartbeat(fn func()) { c.heartbeat = fn }

// Enqueue posts an event for the run loop without blocking. Handlers fire
// from hardware-edge context and must complete quickly; when the queue is
// full the event is dropped and logged.
func (c *Controller) Enqueue(ev Event) bool {
	select {
	case c.events <- ev:
		return true
	default:
		log.Printf("pump: event queue full, dropping %s event", ev.Type)
		return false
	}
}

// Run is the main loop. It never returns; there is no shutdown path short
// of a device reset.
func (c *Controller) Run() {
	c.render(c.display.Show("LOAD"))
	time.Sleep(splashHold)
	c.render(c.display.Show("DONE"))

	ticker := time.NewTicker(tickInterval)
	for {
		select {
		case ev := <-c.events:
			c.handleEvent(ev)
		case <-ticker.C:
			c.tick()
			if c.heartbeat != nil {
				c.heartbeat()
			}
		}
		c.publish()
	}
}

// Snapshot returns the latest published read-only state view.
func (c *Controller) Snapshot() Snapshot { return *c.snap.Load() }

// Logs returns a copy of the recent activity log, oldest first.
func (c *Controller) Logs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.logs))
	copy(out, c.logs)
	return out
}

func (c *Controller) handleEvent(ev Event) {
	switch ev.Type {
	case EventSwitch:
		c.handleSwitch(ev.Auto)
	case EventKnob:
		c.handleKnob(ev.Delta)
	case EventButton:
		c.handleButton()
	case EventAutoStart:
		c.handleAutoStart()
	}
}

// handleSwitch reacts to the physical mode switch. The relay is always
// released before the mode is reassigned.
func (c *Controller) handleSwitch(auto bool) {
	c.forceOff()
	if auto {
		c.st.mode = AutoStandby
		c.st.submode = SubmodeMenu
		c.render(c.display.Show(autoMenu[c.st.menuSelected]))
		c.logf("mode switch: auto")
		return
	}
	c.st.mode = TimerStandby
	c.st.remainingMinutes = 0
	c.render(c.display.Number(0))
	c.logf("mode switch: timer")
}

func (c *Controller) handleKnob(delta int) {
	switch c.st.mode {
	case TimerStandby:
		c.st.remainingMinutes += delta
		if c.st.remainingMinutes < 0 {
			c.st.remainingMinutes = 0
		}
		c.render(c.display.Number(c.st.remainingMinutes))
	case AutoStandby:
		switch c.st.submode {
		case SubmodeMenu:
			c.st.menuSelected = mod(c.st.menuSelected+delta, len(autoMenu))
			c.render(c.display.Show(autoMenu[c.st.menuSelected]))
		case SubmodeCalibThreshold:
			c.st.threshold = clamp(c.st.threshold+delta, 0, 100)
			c.render(c.display.Number(c.st.threshold))
		}
		// the knob has no effect while capturing the water baseline
	}
	// the knob has no effect while pumping
}

func (c *Controller) handleButton() {
	now := c.clock.Now()
	if !c.st.lastButton.IsZero() && now.Sub(c.st.lastButton) < buttonDebounce {
		return
	}
	c.st.lastButton = now

	switch c.st.mode {
	case TimerStandby:
		if c.st.remainingMinutes <= 0 {
			return
		}
		// SecondsToPump is fixed here and stays fixed until the next
		// transition out of TimerPumping.
		c.st.secondsToPump = c.st.remainingMinutes * 60
		if c.pumpOn() {
			c.st.mode = TimerPumping
			c.render(c.display.Brightness(brightnessFull))
			c.logf("timer run started: %d min", c.st.remainingMinutes)
		}
	case TimerPumping:
		c.forceOff()
		c.st.mode = TimerStandby
		c.st.remainingMinutes = 0
		c.render(c.display.Brightness(brightnessFull))
		c.render(c.display.Number(0))
		c.logf("timer run stopped")
	case AutoStandby:
		c.autoButton()
	case AutoPumping:
		c.forceOff()
		c.st.mode = AutoStandby
		c.st.submode = SubmodeMenu
		c.render(c.display.Show(autoMenu[c.st.menuSelected]))
		c.logf("auto run stopped")
	}
}

func (c *Controller) autoButton() {
	switch c.st.submode {
	case SubmodeMenu:
		switch c.st.menuSelected {
		case menuRun:
			c.startAutoRun("auto run started")
		case menuCalibThreshold:
			c.st.submode = SubmodeCalibThreshold
			c.render(c.display.Number(c.st.threshold))
		case menuCalibWater:
			c.st.submode = SubmodeCalibWater
		}
	case SubmodeCalibThreshold:
		c.persistCalibration("auto threshold saved")
		c.st.submode = SubmodeMenu
		c.render(c.display.Show(autoMenu[c.st.menuSelected]))
	case SubmodeCalibWater:
		c.persistCalibration("water load saved")
		c.st.submode = SubmodeMenu
		c.render(c.display.Show(autoMenu[c.st.menuSelected]))
	}
}

func (c *Controller) handleAutoStart() {
	if c.st.mode != AutoStandby || c.st.submode != SubmodeMenu {
		c.logf("scheduled auto run skipped: %s/%s", c.st.mode, c.st.submode)
		return
	}
	c.startAutoRun("scheduled auto run started")
}

func (c *Controller) startAutoRun(msg string) {
	if !c.pumpOn() {
		return
	}
	c.st.mode = AutoPumping
	c.st.lastAutoCheck = time.Time{}
	c.render(c.display.Show(" ON "))
	c.logf(msg)
}

// persistCalibration rewrites the whole calibration record. Values are
// already clamped by the knob handlers.
func (c *Controller) persistCalibration(msg string) {
	cal := Calibration{Threshold: c.st.threshold, WaterLoad: c.st.waterLoad}
	if err := c.store.Save(cal); err != nil {
		log.Printf("pump: persist calibration: %v", err)
		return
	}
	c.logf(msg)
}

func (c *Controller) tick() {
	now := c.clock.Now()
	switch c.st.mode {
	case TimerPumping:
		c.tickTimerPumping()
	case TimerStandby:
		c.tickTimerStandby(now)
	case AutoStandby:
		c.tickAutoStandby(now)
	case AutoPumping:
		c.tickAutoPumping(now)
	}
}

func (c *Controller) tickTimerPumping() {
	elapsed := c.actuator.ElapsedSeconds()
	// Ceiling-style countdown: zero is never shown while time remains.
	remaining := (c.st.secondsToPump + 59 - elapsed) / 60
	if remaining < 0 {
		remaining = 0
	}
	c.st.remainingMinutes = remaining
	c.render(c.display.Number(remaining))

	if elapsed >= c.st.secondsToPump {
		c.forceOff()
		c.st.mode = TimerStandby
		c.st.remainingMinutes = 0
		c.render(c.display.Brightness(brightnessFull))
		c.render(c.display.Number(0))
		c.logf("timer run complete")
	}
}

// tickTimerStandby flashes the countdown at ~1 s cadence.
func (c *Controller) tickTimerStandby(now time.Time) {
	if now.Unix()%2 != 0 {
		c.render(c.display.Brightness(brightnessFull))
		c.render(c.display.Number(c.st.remainingMinutes))
		return
	}
	c.render(c.display.Brightness(brightnessDim))
}

func (c *Controller) tickAutoStandby(now time.Time) {
	switch c.st.submode {
	case SubmodeMenu:
		c.render(c.display.Show(autoMenu[c.st.menuSelected]))
	case SubmodeCalibThreshold:
		c.render(c.display.Number(c.st.threshold))
	case SubmodeCalibWater:
		// Re-sample on most ticks, skipping seconds that land on an
		// exact multiple of five; the window makes this ~1 Hz anyway.
		if now.Unix()%5 != 0 {
			if s, err := c.sampler.Sample(); err != nil {
				log.Printf("pump: water calibration sample: %v", err)
			} else {
				c.st.waterLoad = float64(s)
				c.recordSample(s)
			}
		}
		c.render(c.display.Number(int(c.st.waterLoad)))
	}
}

func (c *Controller) tickAutoPumping(now time.Time) {
	elapsed := c.actuator.ElapsedSeconds()

	if elapsed > int(autoReadDelay/time.Second) {
		if c.st.lastAutoCheck.IsZero() || now.Sub(c.st.lastAutoCheck) >= autoCheckInterval {
			c.st.lastAutoCheck = now
			if s, err := c.sampler.Sample(); err != nil {
				log.Printf("pump: completion sample: %v", err)
			} else {
				c.recordSample(s)
				if c.loadBelowThreshold(s) {
					c.forceOff()
					c.st.mode = AutoStandby
					c.st.submode = SubmodeMenu
					c.render(c.display.Show(autoMenu[c.st.menuSelected]))
					c.logf("auto run complete: load %d below %d%% of %.0f", s, c.st.threshold, c.st.waterLoad)
					return
				}
			}
		}
	}

	// Liveness: flash and cycle the figure-8 glyph next to the elapsed
	// minutes, since the numeric resolution alone is too coarse.
	if now.Unix()%2 != 0 {
		c.render(c.display.Brightness(brightnessFull))
		num := fmt.Sprintf("%3d", elapsed/60)
		if len(num) > 3 {
			num = num[len(num)-3:]
		}
		enc := c.display.Encode(num)
		segs := append([]byte{autoAnimation[c.st.animIdx]}, enc...)
		c.st.animIdx = (c.st.animIdx + 1) % len(autoAnimation)
		c.render(c.display.Write(segs))
	}
}

// loadBelowThreshold applies the strict auto-stop comparison:
// 100*load/baseline < threshold.
func (c *Controller) loadBelowThreshold(load int) bool {
	if c.st.waterLoad <= 0 {
		return false
	}
	percent := float64(load) / c.st.waterLoad * 100
	return percent < float64(c.st.threshold)
}

// forceOff releases the relay. Failure to de-energize is the one fault the
// controller cannot work around; it escalates to the crash-recovery
// boundary (device reset in production).
func (c *Controller) forceOff() {
	if err := c.actuator.Off(); err != nil {
		panic(fmt.Sprintf("pump: relay off failed: %v", err))
	}
}

func (c *Controller) pumpOn() bool {
	if err := c.actuator.On(); err != nil {
		log.Printf("pump: relay on failed: %v", err)
		return false
	}
	return true
}

func (c *Controller) recordSample(s int) {
	c.st.lastSample = s
	c.st.lastSampleAt = c.clock.Now()
}

func (c *Controller) publish() {
	c.snap.Store(&Snapshot{
		Mode:             c.st.mode,
		ModeName:         c.st.mode.String(),
		Submode:          c.st.submode.String(),
		PumpOn:           c.actuator.IsOn(),
		ElapsedSeconds:   c.actuator.ElapsedSeconds(),
		RemainingMinutes: c.st.remainingMinutes,
		Threshold:        c.st.threshold,
		WaterLoad:        c.st.waterLoad,
		LastSample:       c.st.lastSample,
		LastSampleAt:     c.st.lastSampleAt,
	})
}

func (c *Controller) render(err error) {
	if err != nil {
		log.Printf("pump: display: %v", err)
	}
}

func (c *Controller) logf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	log.Printf("pump: %s", msg)

	entry := fmt.Sprintf("%s %s", c.clock.Now().Format("15:04:05"), msg)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logs = append(c.logs, entry)
	if len(c.logs) > maxLogs {
		c.logs = c.logs[len(c.logs)-maxLogs:]
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func mod(v, n int) int {
	v %= n
	if v < 0 {
		v += n
	}
	return v
}
