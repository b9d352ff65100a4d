package controller

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// Settings is the boot-time device configuration. It is read once at
// startup; there is no runtime reconfiguration path.
type Settings struct {
	Address  string `yaml:"address"`
	Database string `yaml:"database"`

	Network   NetworkSettings   `yaml:"network"`
	Telemetry TelemetrySettings `yaml:"telemetry"`
	MQTT      MQTTSettings      `yaml:"mqtt"`
	Hardware  HardwareSettings  `yaml:"hardware"`

	// Schedules holds cron expressions that trigger unattended auto runs.
	Schedules []string `yaml:"schedules"`
}

type NetworkSettings struct {
	SSID     string `yaml:"ssid"`
	Password string `yaml:"password"`
	// ProbeAddr is the host:port whose reachability defines "connected".
	// Empty defaults to the telemetry sink host.
	ProbeAddr string `yaml:"probe_address"`
}

type TelemetrySettings struct {
	Enable   bool   `yaml:"enable"`
	URL      string `yaml:"url"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Location string `yaml:"location"`
	Sensor   string `yaml:"sensor"`
}

type MQTTSettings struct {
	Enable   bool   `yaml:"enable"`
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
	Topic    string `yaml:"topic"`
}

// HardwareSettings pins down the I2C chain and the expander bit map.
type HardwareSettings struct {
	ADCAddress      byte `yaml:"adc_address"`
	ADCChannel      int  `yaml:"adc_channel"`
	DisplayAddress  byte `yaml:"display_address"`
	ExpanderAddress byte `yaml:"expander_address"`

	RelayPin   int `yaml:"relay_pin"`
	SwitchPin  int `yaml:"switch_pin"`
	ButtonPin  int `yaml:"button_pin"`
	EncoderClk int `yaml:"encoder_clk_pin"`
	EncoderDt  int `yaml:"encoder_dt_pin"`

	InvertSwitch bool `yaml:"invert_switch"`
}

func DefaultSettings() Settings {
	return Settings{
		Address:  "localhost:8080",
		Database: "/var/lib/pump-pi/pump-pi.db",
		Network: NetworkSettings{
			SSID: "pump-net",
		},
		Telemetry: TelemetrySettings{
			Enable:   true,
			URL:      "http://localhost:8086/write?db=pump",
			Location: "well-house",
			Sensor:   "pump-1",
		},
		MQTT: MQTTSettings{
			ClientID: "pump-pi",
			Topic:    "pump-pi",
		},
		Hardware: HardwareSettings{
			ADCAddress:      0x48,
			ADCChannel:      0,
			DisplayAddress:  0x70,
			ExpanderAddress: 0x20,
			RelayPin:        0,
			SwitchPin:       8,
			ButtonPin:       9,
			EncoderClk:      10,
			EncoderDt:       11,
		},
	}
}

// LoadSettings reads the YAML config at path over the defaults. A missing
// file is not an error; the defaults run the dev setup as-is.
func LoadSettings(path string) (Settings, error) {
	s := DefaultSettings()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return s, fmt.Errorf("controller: read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("controller: parse config %s: %w", path, err)
	}
	return s, nil
}
