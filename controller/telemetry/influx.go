package telemetry

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// ErrRejected marks a completed publish whose response body was non-empty:
// the server accepted the request but refused the point. Rejections are
// terminal for the point even when retry attempts remain.
var ErrRejected = errors.New("telemetry: point rejected")

// InfluxClient writes single points to an InfluxDB v1 write endpoint using
// line protocol over HTTP basic auth.
type InfluxClient struct {
	URL      string
	Username string
	Password string

	// Location and Sensor tag every point.
	Location string
	Sensor   string

	// HC is the transport; attempt timeouts are its concern, not ours.
	HC *http.Client
}

func NewInfluxClient(url, username, password, location, sensor string) *InfluxClient {
	return &InfluxClient{
		URL:      url,
		Username: username,
		Password: password,
		Location: location,
		Sensor:   sensor,
		HC:       &http.Client{},
	}
}

// Line renders one point in line protocol, value to 2 significant digits.
func (c *InfluxClient) Line(measurement string, value float64) string {
	return fmt.Sprintf("%s,location=%s,sensor=%s value=%.2g", measurement, c.Location, c.Sensor, value)
}

// Write publishes one point. Success is an empty response body; anything
// else is ErrRejected.
func (c *InfluxClient) Write(measurement string, value float64) error {
	req, err := http.NewRequest(http.MethodPost, c.URL, strings.NewReader(c.Line(measurement, value)))
	if err != nil {
		return fmt.Errorf("telemetry: build request: %w", err)
	}
	req.Header.Set("Content-Type", "text/plain")
	req.SetBasicAuth(c.Username, c.Password)

	resp, err := c.HC.Do(req)
	if err != nil {
		return fmt.Errorf("telemetry: send %s: %w", measurement, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 512))
	if err != nil {
		return fmt.Errorf("telemetry: read response: %w", err)
	}
	if len(strings.TrimSpace(string(body))) > 0 {
		return fmt.Errorf("%w: %s", ErrRejected, strings.TrimSpace(string(body)))
	}
	return nil
}
