package pump

import (
	"fmt"
	"sync"
	"time"

	"github.com/reef-pi/hal"
)

const (
	// DefaultSampleWindow covers several mains cycles of the sense signal.
	DefaultSampleWindow = 1100 * time.Millisecond
	// DefaultSampleInterval bounds the ADC poll rate at ~100 Hz.
	DefaultSampleInterval = 10 * time.Millisecond
)

// LoadSampler produces one load metric per call. Sample blocks for the
// duration of the measurement window and must never be invoked from
// event-handler context.
type LoadSampler interface {
	Sample() (int, error)
}

// Sensor measures pump motor draw as the peak-to-peak swing of an analog
// current-sense channel over a fixed window. A single mutex serializes
// windows so the control loop and the telemetry task never interleave
// conversions on the one ADC channel.
type Sensor struct {
	pin      hal.AnalogInputPin
	window   time.Duration
	interval time.Duration
	mu       sync.Mutex
}

func NewSensor(pin hal.AnalogInputPin) *Sensor {
	return &Sensor{
		pin:      pin,
		window:   DefaultSampleWindow,
		interval: DefaultSampleInterval,
	}
}

// Sample polls the channel for the full window, tracking the running
// min/max, and returns max-min in raw ADC counts.
func (s *Sensor) Sample() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, err := s.pin.Value()
	if err != nil {
		return 0, fmt.Errorf("pump: load sample: %w", err)
	}
	low, high := v, v

	deadline := time.Now().Add(s.window)
	for time.Now().Before(deadline) {
		time.Sleep(s.interval)
		v, err = s.pin.Value()
		if err != nil {
			return 0, fmt.Errorf("pump: load sample: %w", err)
		}
		if v < low {
			low = v
		}
		if v > high {
			high = v
		}
	}
	return int(high - low), nil
}
