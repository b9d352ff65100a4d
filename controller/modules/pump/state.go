package pump

import "time"

// Mode is the top-level controller mode. The numeric values are stable:
// they are what gets published as the pump_mode telemetry measurement.
type Mode int

const (
	AutoStandby Mode = iota
	AutoPumping
	TimerStandby
	TimerPumping
)

func (m Mode) String() string {
	switch m {
	case AutoStandby:
		return "auto-standby"
	case AutoPumping:
		return "auto-pumping"
	case TimerStandby:
		return "timer-standby"
	case TimerPumping:
		return "timer-pumping"
	default:
		return "unknown"
	}
}

// Submode selects the active auto-standby screen. Meaningful only while
// Mode == AutoStandby.
type Submode int

const (
	SubmodeMenu Submode = iota
	SubmodeCalibThreshold
	SubmodeCalibWater
)

func (s Submode) String() string {
	switch s {
	case SubmodeMenu:
		return "menu"
	case SubmodeCalibThreshold:
		return "calib-threshold"
	case SubmodeCalibWater:
		return "calib-water"
	default:
		return "unknown"
	}
}

// Menu entries shown in AutoStandby/Menu. The index doubles as the action:
// 0 starts an auto run, 1 and 2 enter the calibration screens.
var autoMenu = []string{"AUTO", "RATO", "CALR"}

const (
	menuRun            = 0
	menuCalibThreshold = 1
	menuCalibWater     = 2
)

// state is the single mutable aggregate. It is owned exclusively by the
// controller run loop; nothing outside this package touches it.
type state struct {
	mode    Mode
	submode Submode

	menuSelected     int
	remainingMinutes int
	secondsToPump    int

	threshold int     // auto stop threshold, percent of baseline [0,100]
	waterLoad float64 // calibrated wet baseline, ADC counts (> 0)

	lastSample   int
	lastSampleAt time.Time

	animIdx       int
	lastAutoCheck time.Time
	lastButton    time.Time
}

// Snapshot is the read-only view handed to the telemetry task and the API.
// It is published via an atomic pointer swap after every run-loop pass, so
// readers never contend with the control path.
type Snapshot struct {
	Mode             Mode      `json:"-"`
	ModeName         string    `json:"mode"`
	Submode          string    `json:"submode"`
	PumpOn           bool      `json:"pump_on"`
	ElapsedSeconds   int       `json:"elapsed_seconds"`
	RemainingMinutes int       `json:"remaining_minutes"`
	Threshold        int       `json:"threshold"`
	WaterLoad        float64   `json:"water_load"`
	LastSample       int       `json:"last_sample"`
	LastSampleAt     time.Time `json:"last_sample_at"`
}

// Calibration is the persisted operator calibration. It is loaded once at
// boot and written back wholesale, only on explicit confirmation.
type Calibration struct {
	Threshold int     `json:"auto_threshold"`
	WaterLoad float64 `json:"auto_water_load"`
}

const (
	DefaultThreshold = 60
	DefaultWaterLoad = 2000
)

// CalibrationStore persists calibration across device resets.
type CalibrationStore interface {
	Load() (Calibration, error)
	Save(Calibration) error
}
