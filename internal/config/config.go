// v2
// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DeviceConfig selects and parameterizes the sensor/actuator transport.
// URL patterns contain a {room_id} placeholder expanded per room.
type DeviceConfig struct {
	SensorPattern  string `yaml:"sensor_pattern"`
	HeaterPattern  string `yaml:"heater_pattern"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	Transport      string `yaml:"transport"` // "http" (default) or "mqtt"
}

// MQTTConfig configures the optional MQTT actuator transport.
type MQTTConfig struct {
	Broker             string `yaml:"broker"`
	ClientID           string `yaml:"client_id"`
	Username           string `yaml:"username"`
	Password           string `yaml:"password"`
	CommandTopicPrefix string `yaml:"command_topic_prefix"`
}

// APIConfig holds the HTTP bind address and the privileged-command secret.
type APIConfig struct {
	Host              string `yaml:"host"`
	Port              int    `yaml:"port"`
	ControlPIN        string `yaml:"control_pin"`
	AuthWindowSeconds int    `yaml:"auth_window_seconds"`
}

// LoggingConfig controls the slog sink.
type LoggingConfig struct {
	Dir   string `yaml:"dir"`
	Level string `yaml:"level"`
}

// ActionsConfig configures the structured action ledger sinks. An empty Dir
// disables the file sink; empty brokers disable the Kafka sink.
type ActionsConfig struct {
	Dir          string   `yaml:"dir"`
	KafkaBrokers []string `yaml:"kafka_brokers"`
	KafkaTopic   string   `yaml:"kafka_topic"`
}

// RoomOverride carries per-room settings layered over the per-type defaults.
type RoomOverride struct {
	TargetTemperature *float64 `yaml:"target_temperature"`
}

// Config is the full runtime configuration, loaded from config.yaml with
// environment variable overrides for deployment-specific values.
type Config struct {
	MinAllowedTemperature float64                 `yaml:"min_allowed_temperature"`
	MaxAllowedTemperature float64                 `yaml:"max_allowed_temperature"`
	CheckIntervalSeconds  int                     `yaml:"temperature_check_interval_seconds"`
	DeadbandCelsius       float64                 `yaml:"deadband_celsius"`
	DefaultTemperatures   map[string]float64      `yaml:"default_temperatures"`
	RoomOverrides         map[string]RoomOverride `yaml:"room_overrides"`
	TopologyPath          string                  `yaml:"topology_path"`
	Devices               DeviceConfig            `yaml:"device_urls"`
	MQTT                  MQTTConfig              `yaml:"mqtt"`
	API                   APIConfig               `yaml:"api"`
	Logging               LoggingConfig           `yaml:"logging"`
	Actions               ActionsConfig           `yaml:"actions"`
}

// Defaults returns a config populated with the documented fallbacks. Load
// starts from this so a sparse config.yaml still yields a runnable system.
func Defaults() *Config {
	return &Config{
		MinAllowedTemperature: 15,
		MaxAllowedTemperature: 30,
		CheckIntervalSeconds:  300,
		TopologyPath:          "./house_topology.yaml",
		Devices: DeviceConfig{
			TimeoutSeconds: 5,
			Transport:      "http",
		},
		API: APIConfig{
			Host:              "0.0.0.0",
			Port:              8000,
			AuthWindowSeconds: 30,
		},
		Logging: LoggingConfig{Dir: "./logs", Level: "info"},
		Actions: ActionsConfig{KafkaTopic: "home.actions"},
	}
}

// Load reads the YAML file at path, layers environment overrides on top and
// validates the result. The file may be absent when every required value is
// supplied via environment.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		raw, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(raw, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		case os.IsNotExist(err):
			// fall through to env-only configuration
		default:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if cfg.MinAllowedTemperature >= cfg.MaxAllowedTemperature {
		return nil, fmt.Errorf("invalid allowed range %.1f..%.1f", cfg.MinAllowedTemperature, cfg.MaxAllowedTemperature)
	}
	if cfg.DeadbandCelsius < 0 {
		return nil, fmt.Errorf("deadband must not be negative, got %.2f", cfg.DeadbandCelsius)
	}
	if cfg.Devices.Transport != "http" && cfg.Devices.Transport != "mqtt" {
		return nil, fmt.Errorf("unknown device transport %q", cfg.Devices.Transport)
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.MinAllowedTemperature = getEnvFloat("HC_MIN_ALLOWED_TEMPERATURE", c.MinAllowedTemperature)
	c.MaxAllowedTemperature = getEnvFloat("HC_MAX_ALLOWED_TEMPERATURE", c.MaxAllowedTemperature)
	c.DeadbandCelsius = getEnvFloat("HC_DEADBAND_CELSIUS", c.DeadbandCelsius)
	c.TopologyPath = getEnv("HC_TOPOLOGY_PATH", c.TopologyPath)
	c.API.Host = getEnv("HC_HTTP_HOST", c.API.Host)
	c.API.Port = getEnvInt("HC_HTTP_PORT", c.API.Port)
	c.API.ControlPIN = getEnv("HC_CONTROL_PIN", c.API.ControlPIN)
	c.API.AuthWindowSeconds = getEnvInt("HC_AUTH_WINDOW_SECONDS", c.API.AuthWindowSeconds)
	c.CheckIntervalSeconds = getEnvInt("HC_CHECK_INTERVAL_SECONDS", c.CheckIntervalSeconds)
	c.Logging.Dir = getEnv("HC_LOG_DIR", c.Logging.Dir)
	c.Logging.Level = getEnv("HC_LOG_LEVEL", c.Logging.Level)
	c.Devices.SensorPattern = getEnv("HC_SENSOR_PATTERN", c.Devices.SensorPattern)
	c.Devices.HeaterPattern = getEnv("HC_HEATER_PATTERN", c.Devices.HeaterPattern)
	c.Devices.TimeoutSeconds = getEnvInt("HC_DEVICE_TIMEOUT_SECONDS", c.Devices.TimeoutSeconds)
	c.Devices.Transport = getEnv("HC_DEVICE_TRANSPORT", c.Devices.Transport)
	c.MQTT.Broker = getEnv("HC_MQTT_BROKER", c.MQTT.Broker)
	c.MQTT.ClientID = getEnv("HC_MQTT_CLIENT_ID", c.MQTT.ClientID)
	c.MQTT.Username = getEnv("HC_MQTT_USERNAME", c.MQTT.Username)
	c.MQTT.Password = getEnv("HC_MQTT_PASSWORD", c.MQTT.Password)
	c.MQTT.CommandTopicPrefix = getEnv("HC_MQTT_COMMAND_TOPIC_PREFIX", c.MQTT.CommandTopicPrefix)
	c.Actions.Dir = getEnv("HC_ACTIONS_DIR", c.Actions.Dir)
	c.Actions.KafkaTopic = getEnv("HC_KAFKA_TOPIC", c.Actions.KafkaTopic)
	if v := os.Getenv("HC_KAFKA_BROKERS"); v != "" {
		c.Actions.KafkaBrokers = strings.Split(v, ",")
	}
}

// BindAddr renders the HTTP listen address.
func (c *Config) BindAddr() string {
	return fmt.Sprintf("%s:%d", c.API.Host, c.API.Port)
}

// CheckInterval converts the configured seconds into a duration with the
// 1-second floor enforced so a zero or negative value cannot spin the loop.
func (c *Config) CheckInterval() time.Duration {
	if c.CheckIntervalSeconds < 1 {
		return time.Second
	}
	return time.Duration(c.CheckIntervalSeconds) * time.Second
}

// DeviceTimeout bounds a single sensor or actuator call.
func (c *Config) DeviceTimeout() time.Duration {
	if c.Devices.TimeoutSeconds < 1 {
		return 5 * time.Second
	}
	return time.Duration(c.Devices.TimeoutSeconds) * time.Second
}

// AuthWindow is the accepted clock skew for control tokens.
func (c *Config) AuthWindow() time.Duration {
	if c.API.AuthWindowSeconds < 1 {
		return 30 * time.Second
	}
	return time.Duration(c.API.AuthWindowSeconds) * time.Second
}

// TargetOverrides flattens the per-room overrides into id → target for the
// store's Register call.
func (c *Config) TargetOverrides() map[string]float64 {
	out := make(map[string]float64, len(c.RoomOverrides))
	for id, ov := range c.RoomOverrides {
		if ov.TargetTemperature != nil {
			out[id] = *ov.TargetTemperature
		}
	}
	return out
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
