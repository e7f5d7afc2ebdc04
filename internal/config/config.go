package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ConnectorType identifies which mesh backend should be used.
type ConnectorType string

const (
	ConnectorIP     ConnectorType = "ip"
	ConnectorSerial ConnectorType = "serial"
	ConnectorMock   ConnectorType = "mock"

	DefaultServerPort  = 6667
	DefaultMeshPort    = 4403
	DefaultSerialBaud  = 115200
	DefaultAckTimeout  = 30
	DefaultControlChan = "#mesh"
)

// ServerConfig defines the chat-facing listener.
type ServerConfig struct {
	Host           string `json:"host"`
	Port           int    `json:"port"`
	Name           string `json:"name"`
	ControlChannel string `json:"control_channel"`
}

// MeshConfig contains connector-specific radio link parameters.
type MeshConfig struct {
	Connector         ConnectorType `json:"connector"`
	Host              string        `json:"host"`
	Port              int           `json:"port"`
	SerialPort        string        `json:"serial_port"`
	SerialBaud        int           `json:"serial_baud"`
	DefaultChannel    uint32        `json:"default_channel"`
	AckTimeoutSeconds int           `json:"ack_timeout_seconds"`
}

// LoggingConfig defines runtime logging behavior.
type LoggingConfig struct {
	Level     string `json:"level"`
	LogToFile bool   `json:"log_to_file"`
}

// WeatherConfig enables the WEATHER command when an API key is present.
type WeatherConfig struct {
	APIKey   string `json:"api_key"`
	Location string `json:"location"`
	Units    string `json:"units"`
}

// HFConfig customizes the HFCONDITIONS data source.
type HFConfig struct {
	SourceURL string `json:"source_url"`
}

// AppConfig is the root gateway configuration.
type AppConfig struct {
	Server  ServerConfig  `json:"server"`
	Mesh    MeshConfig    `json:"mesh"`
	Logging LoggingConfig `json:"logging"`
	Weather WeatherConfig `json:"weather"`
	HF      HFConfig      `json:"hf"`
}

func Default() AppConfig {
	return AppConfig{
		Server: ServerConfig{
			Host:           "127.0.0.1",
			Port:           DefaultServerPort,
			Name:           "meshgate",
			ControlChannel: DefaultControlChan,
		},
		Mesh: MeshConfig{
			Connector:         ConnectorMock,
			Port:              DefaultMeshPort,
			SerialBaud:        DefaultSerialBaud,
			DefaultChannel:    0,
			AckTimeoutSeconds: DefaultAckTimeout,
		},
		Logging: LoggingConfig{
			Level:     "info",
			LogToFile: false,
		},
		Weather: WeatherConfig{
			Units: "metric",
		},
	}
}

// Load reads the config file at path, falling back to defaults when it does
// not exist.
func Load(path string) (AppConfig, error) {
	cfg := Default()
	cleanPath := filepath.Clean(path)
	raw, err := os.ReadFile(cleanPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}

		return AppConfig{}, fmt.Errorf("read config: %w", err)
	}

	if err := json.Unmarshal(raw, &cfg); err != nil {
		return AppConfig{}, fmt.Errorf("decode config json: %w", err)
	}

	cfg.FillMissingDefaults()

	return cfg, nil
}

func (c *AppConfig) FillMissingDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "127.0.0.1"
	}
	if c.Server.Port <= 0 {
		c.Server.Port = DefaultServerPort
	}
	if c.Server.Name == "" {
		c.Server.Name = "meshgate"
	}
	if c.Server.ControlChannel == "" {
		c.Server.ControlChannel = DefaultControlChan
	}
	if !strings.HasPrefix(c.Server.ControlChannel, "#") {
		c.Server.ControlChannel = "#" + c.Server.ControlChannel
	}
	if c.Mesh.Connector == "" {
		// No radio configured: run against the simulated mesh.
		c.Mesh.Connector = ConnectorMock
	}
	if c.Mesh.Port <= 0 {
		c.Mesh.Port = DefaultMeshPort
	}
	if c.Mesh.SerialBaud <= 0 {
		c.Mesh.SerialBaud = DefaultSerialBaud
	}
	if c.Mesh.AckTimeoutSeconds <= 0 {
		c.Mesh.AckTimeoutSeconds = DefaultAckTimeout
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Weather.Units == "" {
		c.Weather.Units = "metric"
	}
}

func (c AppConfig) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port out of range: %d", c.Server.Port)
	}
	switch c.Mesh.Connector {
	case ConnectorIP:
		if strings.TrimSpace(c.Mesh.Host) == "" {
			return errors.New("mesh host is required for the ip connector")
		}
		if c.Mesh.Port <= 0 || c.Mesh.Port > 65535 {
			return fmt.Errorf("mesh port out of range: %d", c.Mesh.Port)
		}
	case ConnectorSerial:
		if strings.TrimSpace(c.Mesh.SerialPort) == "" {
			return errors.New("serial port is required for the serial connector")
		}
		if c.Mesh.SerialBaud <= 0 {
			return errors.New("serial baud must be positive")
		}
	case ConnectorMock:
	default:
		return fmt.Errorf("unknown connector: %s", c.Mesh.Connector)
	}

	return nil
}

// Save writes the config atomically.
func Save(path string, cfg AppConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	raw, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, raw, 0o600); err != nil {
		return fmt.Errorf("write temp config: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename temp config: %w", err)
	}

	return nil
}
