package telemetry

import (
	"errors"
	"log"
	"time"
)

const (
	// MeasurementLoad carries the peak-to-peak load sample.
	MeasurementLoad = "pump_load"
	// MeasurementMode carries the controller mode as its numeric code.
	MeasurementMode = "pump_mode"

	// DefaultInterval is the publish cadence while connected.
	DefaultInterval = 15 * time.Second
	// DefaultAttempts caps publish attempts per point per tick; points
	// past the cap are lost, there is no local buffering or replay.
	DefaultAttempts = 3
	// DefaultConnectWindow is how many granularity polls one connect
	// attempt waits before trying again. Attempts repeat indefinitely.
	DefaultConnectWindow = 10
)

// Source is the publisher's read-only view of the controller: the current
// mode code from the latest snapshot, and a fresh blocking load sample.
type Source interface {
	Mode() int
	Load() (float64, error)
}

// Publisher runs as its own task, fully independent of the control loop:
// it may block for seconds on network I/O and never mutates controller
// state. An unhandled error anywhere restarts it from the connectivity
// check; it has no shutdown path short of a device reset.
type Publisher struct {
	client  *InfluxClient
	mirror  *Mirror
	net     Network
	source  Source
	metrics *Metrics

	Interval      time.Duration
	Attempts      int
	ConnectWindow int
	Granularity   time.Duration
}

func NewPublisher(client *InfluxClient, mirror *Mirror, net Network, source Source, metrics *Metrics) *Publisher {
	return &Publisher{
		client:        client,
		mirror:        mirror,
		net:           net,
		source:        source,
		metrics:       metrics,
		Interval:      DefaultInterval,
		Attempts:      DefaultAttempts,
		ConnectWindow: DefaultConnectWindow,
		Granularity:   time.Second,
	}
}

// Run never returns.
func (p *Publisher) Run() {
	for {
		p.cycle()
	}
}

// cycle is one pass of the outer loop: block until connected, then publish
// on the fixed cadence until connectivity drops or something panics.
func (p *Publisher) cycle() {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("telemetry: task error, restarting: %v", r)
			p.metrics.Restarts.Inc()
		}
	}()

	p.waitConnected()

	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()
	for range ticker.C {
		if !p.net.Connected() {
			log.Printf("telemetry: connectivity lost")
			return
		}
		p.publishTick()
	}
}

// waitConnected blocks until the sink is reachable, polling at the
// configured granularity within each connect window and retrying windows
// indefinitely.
func (p *Publisher) waitConnected() {
	for !p.net.Connected() {
		if err := p.net.Connect(); err != nil {
			log.Printf("telemetry: connect: %v", err)
		}
		for i := 0; i < p.ConnectWindow; i++ {
			if p.net.Connected() {
				log.Printf("telemetry: connected")
				return
			}
			time.Sleep(p.Granularity)
		}
	}
}

// publishTick emits the two points for this cadence. A failed load sample
// skips only the load point; the mode point still goes out.
func (p *Publisher) publishTick() {
	mode := p.source.Mode()
	p.metrics.Mode.Set(float64(mode))

	if load, err := p.source.Load(); err != nil {
		log.Printf("telemetry: load sample: %v", err)
	} else {
		p.metrics.Load.Set(load)
		p.Send(MeasurementLoad, load)
	}
	p.Send(MeasurementMode, float64(mode))
}

// Send publishes one point with the per-point attempt cap. A transport
// failure aborts the point without further retries; a rejection (non-empty
// response) is terminal even with attempts remaining. Either way only this
// point is lost and the loop continues.
func (p *Publisher) Send(measurement string, value float64) bool {
	for i := 0; i < p.Attempts; i++ {
		err := p.client.Write(measurement, value)
		if err == nil {
			p.metrics.Published.WithLabelValues(measurement).Inc()
			if p.mirror != nil {
				p.mirror.Publish(measurement, value)
			}
			return true
		}
		log.Printf("telemetry: %v", err)
		if errors.Is(err, ErrRejected) {
			p.metrics.Dropped.WithLabelValues(measurement, "rejected").Inc()
		} else {
			p.metrics.Dropped.WithLabelValues(measurement, "transport").Inc()
		}
		return false
	}
	p.metrics.Dropped.WithLabelValues(measurement, "exhausted").Inc()
	return false
}
