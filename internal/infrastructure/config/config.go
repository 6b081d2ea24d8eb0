package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the BLE gateway.
// All configuration is loaded from YAML and can be overridden by environment variables.
// Values are load-time constants; nothing is reconfigured at runtime.
type Config struct {
	Gateway   GatewayConfig   `yaml:"gateway"`
	Bluetooth BluetoothConfig `yaml:"bluetooth"`
	WiFi      WiFiConfig      `yaml:"wifi"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Database  DatabaseConfig  `yaml:"database"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	API       APIConfig       `yaml:"api"`
	StatusLED StatusLEDConfig `yaml:"status_led"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// GatewayConfig contains supervisory loop and retry settings.
type GatewayConfig struct {
	// ScanDuration is the length of a single BLE scan window.
	ScanDuration time.Duration `yaml:"scan_duration"`

	// MaxConnectionAttempts bounds the association and session retry loops
	// within one supervisory cycle.
	MaxConnectionAttempts int `yaml:"max_connection_attempts"`

	// RetryDelay is slept after every failed connection attempt.
	RetryDelay time.Duration `yaml:"retry_delay"`

	// CycleInterval is the pause between supervisory cycles.
	CycleInterval time.Duration `yaml:"cycle_interval"`

	// ObservationBuffer is the capacity of the scanner -> supervisor hand-off channel.
	ObservationBuffer int `yaml:"observation_buffer"`
}

// BluetoothConfig contains HCI scanner settings.
type BluetoothConfig struct {
	DeviceID   int  `yaml:"device_id"`
	ActiveScan bool `yaml:"active_scan"`
}

// WiFiConfig contains wireless association settings.
type WiFiConfig struct {
	// Enabled controls whether the gateway manages the wireless link itself.
	// When false the link is assumed to be owned by the host OS and always up.
	Enabled    bool             `yaml:"enabled"`
	Interface  string           `yaml:"interface"`
	SSID       string           `yaml:"ssid"`
	Passphrase string           `yaml:"passphrase"`
	Supplicant SupplicantConfig `yaml:"supplicant"`
}

// SupplicantConfig contains settings for a gateway-supervised wpa_supplicant.
type SupplicantConfig struct {
	// Managed starts wpa_supplicant as a child process instead of issuing
	// nl80211 connect requests directly.
	Managed    bool   `yaml:"managed"`
	Binary     string `yaml:"binary"`
	ConfigPath string `yaml:"config_path"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker      MQTTBrokerConfig `yaml:"broker"`
	Auth        MQTTAuthConfig   `yaml:"auth"`
	QoS         int              `yaml:"qos"`
	Topic       string           `yaml:"topic"`
	StatusTopic string           `yaml:"status_topic"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// DatabaseConfig contains SQLite publish journal settings.
type DatabaseConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// APIConfig contains the read-only status API settings.
type APIConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`

	// AllowedOrigins enables CORS for browser dashboards. Empty disables CORS.
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// StatusLEDConfig contains settings for the session status LED.
type StatusLEDConfig struct {
	Enabled bool `yaml:"enabled"`

	// Path is the sysfs brightness file, e.g. /sys/class/leds/led0/brightness.
	Path string `yaml:"path"`

	// ActiveLow inverts the written value (LED wired to pull the pin low).
	ActiveLow bool `yaml:"active_low"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: BLEGW_SECTION_KEY
// For example: BLEGW_MQTT_HOST, BLEGW_WIFI_PASSPHRASE
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with the firmware's defaults.
func defaultConfig() *Config {
	return &Config{
		Gateway: GatewayConfig{
			ScanDuration:          5 * time.Second,
			MaxConnectionAttempts: 30,
			RetryDelay:            time.Second,
			CycleInterval:         100 * time.Millisecond,
			ObservationBuffer:     256,
		},
		Bluetooth: BluetoothConfig{
			DeviceID:   0,
			ActiveScan: true,
		},
		WiFi: WiFiConfig{
			Enabled:   true,
			Interface: "wlan0",
			Supplicant: SupplicantConfig{
				Binary:     "/sbin/wpa_supplicant",
				ConfigPath: "/run/blegateway/wpa_supplicant.conf",
			},
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "YoswitBLEScanner",
			},
			QoS:         0,
			Topic:       "yoswit/ble/devices",
			StatusTopic: "yoswit/ble/status",
		},
		Database: DatabaseConfig{
			Path:        "./data/blegateway.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		StatusLED: StatusLEDConfig{
			Path:      "/sys/class/leds/led0/brightness",
			ActiveLow: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Secrets should always arrive this way rather than through the YAML file.
func applyEnvOverrides(cfg *Config) {
	// Wi-Fi
	if v := os.Getenv("BLEGW_WIFI_SSID"); v != "" {
		cfg.WiFi.SSID = v
	}
	if v := os.Getenv("BLEGW_WIFI_PASSPHRASE"); v != "" {
		cfg.WiFi.Passphrase = v
	}

	// MQTT
	if v := os.Getenv("BLEGW_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("BLEGW_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("BLEGW_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// Database
	if v := os.Getenv("BLEGW_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// InfluxDB
	if v := os.Getenv("BLEGW_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of every validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Gateway
	if c.Gateway.ScanDuration <= 0 {
		errs = append(errs, "gateway.scan_duration must be positive")
	}
	if c.Gateway.MaxConnectionAttempts < 1 {
		errs = append(errs, "gateway.max_connection_attempts must be at least 1")
	}
	if c.Gateway.RetryDelay < 0 {
		errs = append(errs, "gateway.retry_delay cannot be negative")
	}
	if c.Gateway.CycleInterval <= 0 {
		errs = append(errs, "gateway.cycle_interval must be positive")
	}
	if c.Gateway.ObservationBuffer < 1 {
		errs = append(errs, "gateway.observation_buffer must be at least 1")
	}

	// Bluetooth
	if c.Bluetooth.DeviceID < 0 {
		errs = append(errs, "bluetooth.device_id cannot be negative")
	}

	// Wi-Fi
	if c.WiFi.Enabled {
		if c.WiFi.Interface == "" {
			errs = append(errs, "wifi.interface is required")
		}
		if c.WiFi.SSID == "" {
			errs = append(errs, "wifi.ssid is required (set BLEGW_WIFI_SSID environment variable)")
		}
		if c.WiFi.Supplicant.Managed {
			if c.WiFi.Supplicant.Binary == "" {
				errs = append(errs, "wifi.supplicant.binary is required when managed")
			}
			if c.WiFi.Supplicant.ConfigPath == "" {
				errs = append(errs, "wifi.supplicant.config_path is required when managed")
			}
		}
	}

	// MQTT
	if c.MQTT.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required")
	}
	if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
		errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
	}
	if c.MQTT.Broker.ClientID == "" {
		errs = append(errs, "mqtt.broker.client_id is required")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Topic == "" {
		errs = append(errs, "mqtt.topic is required")
	}
	if strings.ContainsAny(c.MQTT.Topic, "+#") {
		errs = append(errs, "mqtt.topic cannot contain wildcards")
	}

	// Optional sinks
	if c.Database.Enabled && c.Database.Path == "" {
		errs = append(errs, "database.path is required when enabled")
	}
	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when enabled")
	}
	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}
	if c.StatusLED.Enabled && c.StatusLED.Path == "" {
		errs = append(errs, "status_led.path is required when enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// BrokerAddress returns the MQTT broker as host:port, for logging.
func (c *Config) BrokerAddress() string {
	return fmt.Sprintf("%s:%d", c.MQTT.Broker.Host, c.MQTT.Broker.Port)
}

// APIAddress returns the status API listen address.
func (c *Config) APIAddress() string {
	return fmt.Sprintf("%s:%d", c.API.Host, c.API.Port)
}
