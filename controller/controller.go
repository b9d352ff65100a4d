package controller

import (
	"fmt"
	"log"
	"net/http"
	"net/url"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/reef-pi/hal"
	"github.com/reef-pi/rpi/i2c"

	"github.com/pump-pi/pump-pi/controller/modules/pump"
	"github.com/pump-pi/pump-pi/controller/storage"
	"github.com/pump-pi/pump-pi/controller/telemetry"
	"github.com/pump-pi/pump-pi/drivers/ads1115"
	"github.com/pump-pi/pump-pi/drivers/ht16k33"
	"github.com/pump-pi/pump-pi/drivers/pcf8575"
	"github.com/pump-pi/pump-pi/drivers/rotary"
	"github.com/pump-pi/pump-pi/drivers/simhw"
)

const (
	calibrationBucket = "calibration"
	calibrationKey    = "current"
)

// Controller assembles the daemon: hardware drivers, the pump state
// machine, persistence, telemetry and the read-only HTTP API.
type Controller struct {
	settings Settings
	store    *storage.Store
	registry *prometheus.Registry

	pump      *pump.Controller
	sensor    *pump.Sensor
	poller    *rotary.Poller
	scheduler *pump.Scheduler
	publisher *telemetry.Publisher
}

func New(s Settings, devMode bool) (*Controller, error) {
	store, err := storage.Open(s.Database)
	if err != nil {
		return nil, err
	}
	if err := store.CreateBucket(calibrationBucket); err != nil {
		return nil, fmt.Errorf("controller: create bucket: %w", err)
	}

	c := &Controller{
		settings: s,
		store:    store,
		registry: prometheus.NewRegistry(),
	}

	var hw *panelHardware
	if devMode {
		hw = simPanel()
	} else {
		hw, err = openPanel(s.Hardware)
		if err != nil {
			store.Close()
			return nil, err
		}
	}

	c.sensor = pump.NewSensor(hw.sense)
	c.pump = pump.New(
		hw.display,
		pump.NewActuator(hw.relay, pump.RealClock()),
		c.sensor,
		&calibrationStore{store: store},
		pump.RealClock(),
	)
	c.poller = rotary.NewPoller(hw.clk, hw.dt, hw.button, hw.sw, s.Hardware.InvertSwitch, c.pump)

	c.scheduler, err = pump.NewScheduler(c.pump, s.Schedules)
	if err != nil {
		store.Close()
		return nil, err
	}

	if s.Telemetry.Enable {
		if err := c.setupTelemetry(); err != nil {
			store.Close()
			return nil, err
		}
	}
	return c, nil
}

// panelHardware bundles the peripherals the daemon drives, real or
// simulated.
type panelHardware struct {
	display pump.Display
	relay   pump.RelayPin
	sense   hal.AnalogInputPin
	clk     hal.DigitalInputPin
	dt      hal.DigitalInputPin
	button  hal.DigitalInputPin
	sw      hal.DigitalInputPin
}

func simPanel() *panelHardware {
	relay := simhw.NewRelay("pump")
	return &panelHardware{
		display: simhw.NewDisplay(),
		relay:   relay,
		sense:   simhw.NewAnalog(relay),
		clk:     simhw.NewInput("clk", true),
		dt:      simhw.NewInput("dt", true),
		button:  simhw.NewInput("button", true),
		sw:      simhw.NewInput("switch", true),
	}
}

func openPanel(h HardwareSettings) (*panelHardware, error) {
	bus, err := i2c.New()
	if err != nil {
		return nil, fmt.Errorf("controller: open i2c: %w", err)
	}
	display, err := ht16k33.New(bus, h.DisplayAddress)
	if err != nil {
		return nil, err
	}
	sense, err := ads1115.New(bus, h.ADCAddress, h.ADCChannel)
	if err != nil {
		return nil, err
	}
	expander, err := pcf8575.New(bus, h.ExpanderAddress)
	if err != nil {
		return nil, err
	}
	pins := make([]*pcf8575.Pin, 0, 5)
	for _, n := range []int{h.RelayPin, h.EncoderClk, h.EncoderDt, h.ButtonPin, h.SwitchPin} {
		p, err := expander.Pin(n)
		if err != nil {
			return nil, err
		}
		pins = append(pins, p)
	}
	return &panelHardware{
		display: display,
		relay:   pins[0],
		sense:   sense,
		clk:     pins[1],
		dt:      pins[2],
		button:  pins[3],
		sw:      pins[4],
	}, nil
}

func (c *Controller) setupTelemetry() error {
	t := c.settings.Telemetry
	client := telemetry.NewInfluxClient(t.URL, t.Username, t.Password, t.Location, t.Sensor)

	probeAddr := c.settings.Network.ProbeAddr
	if probeAddr == "" {
		u, err := url.Parse(t.URL)
		if err != nil {
			return fmt.Errorf("controller: telemetry url: %w", err)
		}
		probeAddr = u.Host
	}

	var mirror *telemetry.Mirror
	if c.settings.MQTT.Enable {
		m, err := telemetry.NewMirror(c.settings.MQTT.Broker, c.settings.MQTT.ClientID, c.settings.MQTT.Topic)
		if err != nil {
			// The mirror is best-effort; the primary sink still runs.
			log.Printf("controller: mqtt mirror disabled: %v", err)
		} else {
			mirror = m
		}
	}

	c.publisher = telemetry.NewPublisher(
		client,
		mirror,
		telemetry.NewProbe(probeAddr, c.settings.Network.SSID),
		&telemetrySource{pump: c.pump, sensor: c.sensor},
		telemetry.NewMetrics(c.registry),
	)
	return nil
}

// SetHeartbeat forwards the watchdog callback to the pump run loop.
func (c *Controller) SetHeartbeat(fn func()) { c.pump.SetHeartbeat(fn) }

// Start launches every task. The pump run loop takes over the calling
// goroutine and never returns.
func (c *Controller) Start() {
	r := mux.NewRouter()
	c.loadAPI(r)
	go func() {
		log.Printf("controller: api listening on %s", c.settings.Address)
		if err := http.ListenAndServe(c.settings.Address, r); err != nil {
			log.Printf("controller: api server: %v", err)
		}
	}()

	if c.publisher != nil {
		go c.publisher.Run()
	}
	c.scheduler.Start()
	go c.poller.Start()

	c.pump.Run()
}

// calibrationStore adapts the bbolt document store to the pump module's
// persistence contract.
type calibrationStore struct {
	store *storage.Store
}

func (s *calibrationStore) Load() (pump.Calibration, error) {
	var cal pump.Calibration
	err := s.store.Get(calibrationBucket, calibrationKey, &cal)
	return cal, err
}

func (s *calibrationStore) Save(cal pump.Calibration) error {
	return s.store.Update(calibrationBucket, calibrationKey, cal)
}

// telemetrySource feeds the publisher: the mode code comes from the latest
// snapshot, the load from a fresh blocking sample through the shared
// sensor mutex.
type telemetrySource struct {
	pump   *pump.Controller
	sensor *pump.Sensor
}

func (t *telemetrySource) Mode() int { return int(t.pump.Snapshot().Mode) }

func (t *telemetrySource) Load() (float64, error) {
	s, err := t.sensor.Sample()
	return float64(s), err
}
