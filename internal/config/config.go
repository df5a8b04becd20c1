// internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"instrument-service/internal/model"
)

// Config represents the application configuration
type Config struct {
	Server      ServerConfig                 `mapstructure:"server"`
	Database    DatabaseConfig               `mapstructure:"database"`
	Logging     LoggingConfig                `mapstructure:"logging"`
	Serial      SerialDefaults               `mapstructure:"serial"`
	Monitor     MonitorConfig                `mapstructure:"monitor"`
	Discovery   DiscoveryConfig              `mapstructure:"discovery"`
	App         AppConfig                    `mapstructure:"app"`
	Instruments []model.InstrumentDefinition `mapstructure:"instruments"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host           string        `mapstructure:"host" validate:"required"`
	Port           string        `mapstructure:"port" validate:"required"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	TLS            TLSConfig     `mapstructure:"tls"`
}

// TLSConfig represents TLS configuration
type TLSConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	CertFile string `mapstructure:"cert_file"`
	KeyFile  string `mapstructure:"key_file"`
}

// DatabaseConfig represents database configuration. When disabled,
// exchanges are kept in memory.
type DatabaseConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	User           string        `mapstructure:"user"`
	Password       string        `mapstructure:"password"`
	DBName         string        `mapstructure:"dbname"`
	SSLMode        string        `mapstructure:"sslmode"`
	MaxOpenConns   int           `mapstructure:"max_open_conns"`
	MaxIdleConns   int           `mapstructure:"max_idle_conns"`
	MaxLifetime    time.Duration `mapstructure:"max_lifetime"`
	AutoMigrate    bool          `mapstructure:"auto_migrate"`
	MemoryLimit    int           `mapstructure:"memory_limit"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level" validate:"required"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// SerialDefaults are applied to instrument settings that leave them out
type SerialDefaults struct {
	BaudRate         int           `mapstructure:"baudrate"`
	DataBits         int           `mapstructure:"data_bits"`
	StopBits         float64       `mapstructure:"stop_bits"`
	Parity           string        `mapstructure:"parity"`
	ReadTimeout      time.Duration `mapstructure:"read_timeout"`
	WriteTimeout     time.Duration `mapstructure:"write_timeout"`
	WriteTermination string        `mapstructure:"write_termination"`
	ReadTermination  string        `mapstructure:"read_termination"`
	Encoding         string        `mapstructure:"encoding"`
}

// MonitorConfig controls the background loops of the server
type MonitorConfig struct {
	HealthInterval    time.Duration `mapstructure:"health_interval"`
	CleanupInterval   time.Duration `mapstructure:"cleanup_interval"`
	ExchangeRetention time.Duration `mapstructure:"exchange_retention"`
	OperationTimeout  time.Duration `mapstructure:"operation_timeout"`
}

// DiscoveryConfig controls the port scanners
type DiscoveryConfig struct {
	SerialProbe   bool          `mapstructure:"serial_probe"`
	SerialUSBOnly bool          `mapstructure:"serial_usb_only"`
	PortPatterns  []string      `mapstructure:"port_patterns"`
	USBEnabled    bool          `mapstructure:"usb_enabled"`
	TCPHosts      []string      `mapstructure:"tcp_hosts"`
	TCPRanges     []string      `mapstructure:"tcp_ranges"`
	TCPPorts      []int         `mapstructure:"tcp_ports"`
	ScanTimeout   time.Duration `mapstructure:"scan_timeout"`
}

// AppConfig represents application metadata
type AppConfig struct {
	Name        string `mapstructure:"name" validate:"required"`
	Version     string `mapstructure:"version" validate:"required"`
	Environment string `mapstructure:"environment" validate:"required"`
	Debug       bool   `mapstructure:"debug"`
}

// Load loads configuration from file and environment variables. An empty
// path searches for config.yaml in the usual places; a missing file is not
// an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/instrument-service")
	}

	// Environment variable support
	v.SetEnvPrefix("INSTRUMENT_SERVICE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set defaults
	setDefaults(v)

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Validate configuration
	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	config.normalizeInstruments()
	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8085")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.tls.enabled", false)

	// Database defaults
	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "instrument_service")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.max_lifetime", "5m")
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("database.memory_limit", 10000)
	v.SetDefault("database.connect_timeout", "5s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.max_size", 100)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age", 28)
	v.SetDefault("logging.compress", true)

	// Serial defaults
	v.SetDefault("serial.baudrate", 9600)
	v.SetDefault("serial.data_bits", 8)
	v.SetDefault("serial.stop_bits", 1)
	v.SetDefault("serial.parity", "none")
	v.SetDefault("serial.read_timeout", "100ms")
	v.SetDefault("serial.write_timeout", "100ms")
	v.SetDefault("serial.write_termination", "\n")
	v.SetDefault("serial.read_termination", "\n")
	v.SetDefault("serial.encoding", "ascii")

	// Monitor defaults
	v.SetDefault("monitor.health_interval", "10s")
	v.SetDefault("monitor.cleanup_interval", "1h")
	v.SetDefault("monitor.exchange_retention", "168h")
	v.SetDefault("monitor.operation_timeout", "30s")

	// Discovery defaults
	v.SetDefault("discovery.serial_probe", false)
	v.SetDefault("discovery.serial_usb_only", false)
	v.SetDefault("discovery.usb_enabled", true)
	v.SetDefault("discovery.scan_timeout", "30s")

	// App defaults
	v.SetDefault("app.name", "instrument-service")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.debug", false)
}

// validate validates the configuration
func validate(config *Config) error {
	// Basic validation
	if config.Server.Host == "" {
		return fmt.Errorf("server.host is required")
	}
	if config.Server.Port == "" {
		return fmt.Errorf("server.port is required")
	}
	if config.Database.Enabled && config.Database.Host == "" {
		return fmt.Errorf("database.host is required when database is enabled")
	}

	// Validate environment
	validEnvs := []string{"development", "staging", "production", "test"}
	if !contains(validEnvs, config.App.Environment) {
		return fmt.Errorf("app.environment must be one of: %v", validEnvs)
	}

	// Validate logging level
	validLevels := []string{"debug", "info", "warn", "error", "fatal"}
	if !contains(validLevels, config.Logging.Level) {
		return fmt.Errorf("logging.level must be one of: %v", validLevels)
	}

	// Validate instruments
	seen := make(map[string]bool, len(config.Instruments))
	for i, inst := range config.Instruments {
		if inst.Name == "" {
			return fmt.Errorf("instruments[%d].name is required", i)
		}
		if inst.Kind == "" {
			return fmt.Errorf("instruments[%d] (%s): kind is required", i, inst.Name)
		}
		if seen[inst.Name] {
			return fmt.Errorf("duplicate instrument name %q", inst.Name)
		}
		seen[inst.Name] = true

		switch strings.ToUpper(string(inst.ConnectionType)) {
		case "", string(model.ConnectionTypeSerial), string(model.ConnectionTypeTCP), string(model.ConnectionTypeUSB):
		default:
			return fmt.Errorf("instruments[%d] (%s): unsupported connection type %q", i, inst.Name, inst.ConnectionType)
		}
	}

	return nil
}

// Settings returns the serial section as an instrument settings map
func (d SerialDefaults) Settings() map[string]interface{} {
	return map[string]interface{}{
		"baudrate":          d.BaudRate,
		"data_bits":         d.DataBits,
		"stop_bits":         d.StopBits,
		"parity":            d.Parity,
		"read_timeout":      d.ReadTimeout.String(),
		"write_timeout":     d.WriteTimeout.String(),
		"write_termination": d.WriteTermination,
		"read_termination":  d.ReadTermination,
		"encoding":          d.Encoding,
	}
}

// normalizeInstruments upper-cases connection types, defaulting to serial
func (c *Config) normalizeInstruments() {
	for i := range c.Instruments {
		inst := &c.Instruments[i]
		inst.ConnectionType = model.ConnectionType(strings.ToUpper(string(inst.ConnectionType)))
		if inst.ConnectionType == "" {
			inst.ConnectionType = model.ConnectionTypeSerial
		}
		if inst.Settings == nil {
			inst.Settings = model.JSONObject{}
		}
	}
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

// GetDatabaseDSN returns the database connection string
func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s connect_timeout=%d",
		c.Database.Host, c.Database.Port, c.Database.User,
		c.Database.Password, c.Database.DBName, c.Database.SSLMode,
		int(c.Database.ConnectTimeout.Seconds()))
}

// GetServerAddr returns the server address
func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%s", c.Server.Host, c.Server.Port)
}

// IsProduction checks if the environment is production
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// IsDevelopment checks if the environment is development
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// IsDebugEnabled checks if debug mode is enabled
func (c *Config) IsDebugEnabled() bool {
	return c.App.Debug || c.IsDevelopment()
}
