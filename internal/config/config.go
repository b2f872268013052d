package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"greenhouse_control/internal/models"

	"github.com/spf13/viper"
)

// Config holds all configuration for the three greenhouse nodes.
type Config struct {
	NodeID      string             `mapstructure:"node_id"`
	LogLevel    string             `mapstructure:"log_level"`
	LogFormat   string             `mapstructure:"log_format"` // console | json
	HTTP        HTTPConfig         `mapstructure:"http"`
	MQTT        MQTTConfig         `mapstructure:"mqtt"`
	DB          DBConfig           `mapstructure:"db"`
	Dispatcher  DispatcherConfig   `mapstructure:"dispatcher"`
	Links       LinksConfig        `mapstructure:"links"`
	Persistence PersistenceConfig  `mapstructure:"persistence"`
	Clock       ClockConfig        `mapstructure:"clock"`
	Thresholds  models.Thresholds  `mapstructure:"thresholds"`
	Notify      NotifyConfig       `mapstructure:"notify"`
	Auth        AuthConfig         `mapstructure:"auth"`
	Sensor      SensorNodeConfig   `mapstructure:"sensor"`
	Actuator    ActuatorNodeConfig `mapstructure:"actuator"`
	Display     DisplayConfig      `mapstructure:"display"`
}

// HTTPConfig holds the coordinator API server settings.
type HTTPConfig struct {
	Port              string        `mapstructure:"port"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
}

// MQTTConfig holds broker connection settings and topic names.
type MQTTConfig struct {
	Broker         string        `mapstructure:"broker"`
	ClientID       string        `mapstructure:"client_id"`
	Username       string        `mapstructure:"username"`
	Password       string        `mapstructure:"password"`
	QoS            byte          `mapstructure:"qos"`
	PublishTimeout time.Duration `mapstructure:"publish_timeout"`
	Topics         TopicsConfig  `mapstructure:"topics"`
}

// TopicsConfig names every topic the nodes talk over.
type TopicsConfig struct {
	Readings  string `mapstructure:"readings"`
	Commands  string `mapstructure:"commands"`
	Alerts    string `mapstructure:"alerts"`
	RemoteIn  string `mapstructure:"remote_in"`
	RemoteOut string `mapstructure:"remote_out"`
}

// DBConfig selects the telemetry store.
type DBConfig struct {
	Driver string `mapstructure:"driver"` // sqlite | timescale
	Path   string `mapstructure:"path"`
	DSN    string `mapstructure:"dsn"`
	Table  string `mapstructure:"table"`
}

// DispatcherConfig tunes the coordinator core.
type DispatcherConfig struct {
	HealthInterval time.Duration `mapstructure:"health_interval"`
	QueueSize      int           `mapstructure:"queue_size"`
}

// LinksConfig holds link liveness settings.
type LinksConfig struct {
	SensorTimeout time.Duration `mapstructure:"sensor_timeout"`
}

// PersistenceConfig holds the telemetry log cadence.
type PersistenceConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

// ClockConfig holds the software RTC guard settings.
type ClockConfig struct {
	CheckInterval  time.Duration `mapstructure:"check_interval"`
	ResyncInterval time.Duration `mapstructure:"resync_interval"`
	MinYear        int           `mapstructure:"min_year"`
	MaxYear        int           `mapstructure:"max_year"`
}

// NotifyConfig holds remote notification settings.
type NotifyConfig struct {
	PerMinute float64     `mapstructure:"per_minute"`
	Burst     int         `mapstructure:"burst"`
	Kafka     KafkaConfig `mapstructure:"kafka"`
}

// KafkaConfig enables alert fan-out to a Kafka topic when Brokers is non-empty.
type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// AuthConfig holds operator token settings.
type AuthConfig struct {
	SigningKey string        `mapstructure:"signing_key"`
	TokenTTL   time.Duration `mapstructure:"token_ttl"`
}

// SensorNodeConfig holds the sensing node cadences.
type SensorNodeConfig struct {
	SampleInterval  time.Duration `mapstructure:"sample_interval"`
	PublishInterval time.Duration `mapstructure:"publish_interval"`
	AmbientC        float64       `mapstructure:"ambient_c"`
}

// ActuatorNodeConfig holds the actuator node settings.
type ActuatorNodeConfig struct {
	StateTopic string `mapstructure:"state_topic"`
}

// DisplayConfig holds the websocket display refresh bounds.
type DisplayConfig struct {
	DefaultInterval time.Duration `mapstructure:"default_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
}

// envPrefix is prepended to every environment override, e.g. GREENHOUSE_MQTT_BROKER.
const envPrefix = "GREENHOUSE"

var (
	errNoBroker       = errors.New("mqtt.broker must be set")
	errBadDriver      = errors.New("db.driver must be sqlite or timescale")
	errBadSensorTTL   = errors.New("links.sensor_timeout must be positive")
	errBadHealthEvery = errors.New("dispatcher.health_interval must be positive")
)

// setDefaults registers every default (lowest precedence).
func setDefaults(v *viper.Viper) {
	def := models.DefaultThresholds()

	v.SetDefault("node_id", "NODE_1")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "console")

	v.SetDefault("http.port", "8080")
	v.SetDefault("http.read_header_timeout", 10*time.Second)
	v.SetDefault("http.write_timeout", 10*time.Second)
	v.SetDefault("http.idle_timeout", 60*time.Second)

	v.SetDefault("mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("mqtt.client_id", "greenhouse-edge")
	v.SetDefault("mqtt.qos", 1)
	v.SetDefault("mqtt.publish_timeout", 2*time.Second)
	v.SetDefault("mqtt.topics.readings", "greenhouse/sensors/readings")
	v.SetDefault("mqtt.topics.commands", "greenhouse/actuators/commands")
	v.SetDefault("mqtt.topics.alerts", "greenhouse/edge/alerts")
	v.SetDefault("mqtt.topics.remote_in", "greenhouse/edge/remote/in")
	v.SetDefault("mqtt.topics.remote_out", "greenhouse/edge/remote/out")

	v.SetDefault("db.driver", "sqlite")
	v.SetDefault("db.path", "greenhouse.db")
	v.SetDefault("db.table", "telemetry")

	v.SetDefault("dispatcher.health_interval", time.Second)
	v.SetDefault("dispatcher.queue_size", 64)
	v.SetDefault("links.sensor_timeout", 10*time.Second)
	v.SetDefault("persistence.interval", 10*time.Second)

	v.SetDefault("clock.check_interval", time.Minute)
	v.SetDefault("clock.resync_interval", 30*time.Minute)
	v.SetDefault("clock.min_year", 2020)
	v.SetDefault("clock.max_year", 2100)

	v.SetDefault("thresholds.soil_low", def.SoilLowPct)
	v.SetDefault("thresholds.soil_high", def.SoilHighPct)
	v.SetDefault("thresholds.temp_low", def.TempLowC)
	v.SetDefault("thresholds.temp_high", def.TempHighC)
	v.SetDefault("thresholds.co2_high", def.CO2HighPPM)
	v.SetDefault("thresholds.light_low", def.LightLow)
	v.SetDefault("thresholds.voltage_low", def.VoltageLowV)
	v.SetDefault("thresholds.signal_low", def.SignalLowDBm)

	v.SetDefault("notify.per_minute", 20.0)
	v.SetDefault("notify.burst", 5)
	v.SetDefault("notify.kafka.topic", "greenhouse.alerts")

	v.SetDefault("auth.signing_key", "change-me")
	v.SetDefault("auth.token_ttl", time.Hour)

	v.SetDefault("sensor.sample_interval", 1500*time.Millisecond)
	v.SetDefault("sensor.publish_interval", 3*time.Second)
	v.SetDefault("sensor.ambient_c", 24.0)

	v.SetDefault("actuator.state_topic", "greenhouse/actuators/state")

	v.SetDefault("display.default_interval", time.Second)
	v.SetDefault("display.max_interval", 10*time.Second)
}

// Load reads configs/config.yml (if present) from path, applies GREENHOUSE_* env overrides
// and validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the settings the nodes cannot run without.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.MQTT.Broker) == "" {
		return errNoBroker
	}
	switch c.DB.Driver {
	case "sqlite", "timescale":
	default:
		return fmt.Errorf("%w: got %q", errBadDriver, c.DB.Driver)
	}
	if c.Links.SensorTimeout <= 0 {
		return errBadSensorTTL
	}
	if c.Dispatcher.HealthInterval <= 0 {
		return errBadHealthEvery
	}
	return nil
}
