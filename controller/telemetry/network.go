package telemetry

import (
	"log"
	"net"
	"time"
)

// Network reports and (re)establishes connectivity to the telemetry sink.
// Association mechanics live behind this interface.
type Network interface {
	Connected() bool
	Connect() error
}

// Probe is the shipped Network: connectivity means the sink host answers a
// TCP dial. The OS supplicant owns the WiFi association itself; Connect
// only records that we are waiting on it.
type Probe struct {
	Addr    string // host:port of the telemetry sink
	SSID    string // from boot config, for the log line only
	Timeout time.Duration
}

func NewProbe(addr, ssid string) *Probe {
	return &Probe{Addr: addr, SSID: ssid, Timeout: time.Second}
}

func (p *Probe) Connected() bool {
	conn, err := net.DialTimeout("tcp", p.Addr, p.Timeout)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

func (p *Probe) Connect() error {
	log.Printf("telemetry: waiting for network %q (association is handled by the OS)", p.SSID)
	return nil
}
