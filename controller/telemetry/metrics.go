package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is telemetry-of-telemetry, served on the controller /metrics
// endpoint. Transport errors and server rejections are separate labels here
// even though both just drop the point.
type Metrics struct {
	Published *prometheus.CounterVec
	Dropped   *prometheus.CounterVec
	Restarts  prometheus.Counter
	Mode      prometheus.Gauge
	Load      prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Published: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pump_telemetry_points_published_total",
			Help: "Points accepted by the telemetry sink.",
		}, []string{"measurement"}),
		Dropped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pump_telemetry_points_dropped_total",
			Help: "Points dropped after a transport error or server rejection.",
		}, []string{"measurement", "reason"}),
		Restarts: f.NewCounter(prometheus.CounterOpts{
			Name: "pump_telemetry_task_restarts_total",
			Help: "Telemetry task restarts after an unhandled error.",
		}),
		Mode: f.NewGauge(prometheus.GaugeOpts{
			Name: "pump_mode",
			Help: "Controller mode code (0 auto-standby, 1 auto-pumping, 2 timer-standby, 3 timer-pumping).",
		}),
		Load: f.NewGauge(prometheus.GaugeOpts{
			Name: "pump_load",
			Help: "Last measured load sample (peak-to-peak ADC counts).",
		}),
	}
}
