package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/creasty/defaults"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"WhaleWatch/pkg/logger"
)

// EnvPrefix is prepended to every environment override, e.g. WW_API_BASE_URL.
const EnvPrefix = "WW"

type Config struct {
	Environment string `yaml:"environment" default:"development"`

	API struct {
		BaseURL     string        `yaml:"base_url" default:"http://localhost:3001/api"`
		Timeout     time.Duration `yaml:"timeout" default:"10s"`
		RateLimit   float64       `yaml:"rate_limit" default:"10"` // requests per second, 0 disables
		Burst       int           `yaml:"burst" default:"5"`
		Email       string        `yaml:"email"`
		Password    string        `yaml:"password"`
		AdminEmails []string      `yaml:"admin_emails"`
	} `yaml:"api"`

	Session struct {
		Backend       string `yaml:"backend" default:"file"` // memory, redis or file
		Path          string `yaml:"path" default:"whalewatch.db"`
		RejectExpired bool   `yaml:"reject_expired" default:"true"`
		Redis         struct {
			Host     string `yaml:"host" default:"localhost"`
			Port     int    `yaml:"port" default:"6379"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix" default:"whalewatch"`
		} `yaml:"redis"`
	} `yaml:"session"`

	Polling struct {
		Quotes       time.Duration `yaml:"quotes" default:"15s"`
		Watchlist    time.Duration `yaml:"watchlist" default:"30s"`
		Holdings     time.Duration `yaml:"holdings" default:"30s"`
		Alerts       time.Duration `yaml:"alerts" default:"30s"`
		Management   time.Duration `yaml:"management" default:"60s"`
		SparklineTTL time.Duration `yaml:"sparkline_ttl" default:"60s"`
		PricePolicy  string        `yaml:"price_policy" default:"unavailable"` // unavailable or cost
	} `yaml:"polling"`

	Server struct {
		Host            string        `yaml:"host" default:"127.0.0.1"`
		Port            int           `yaml:"port" default:"8080"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
		SlowRequest     time.Duration `yaml:"slow_request" default:"500ms"`
		CORSOrigins     []string      `yaml:"cors_origins"`
		MutationBurst   int           `yaml:"mutation_burst" default:"10"`
		MutationRate    float64       `yaml:"mutation_rate" default:"2"` // per second per client
	} `yaml:"server"`

	Logging logger.Config `yaml:"logging"`

	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`

	Sink struct {
		Type  string `yaml:"type" default:"none"` // none, kafka or clickhouse
		Kafka struct {
			Brokers      []string      `yaml:"brokers"`
			Topic        string        `yaml:"topic" default:"whalewatch.quotes"`
			RequiredAcks int           `yaml:"required_acks" default:"1"`
			Compression  string        `yaml:"compression" default:"snappy"`
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			BatchTimeout time.Duration `yaml:"batch_timeout" default:"50ms"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"5s"`
			Async        bool          `yaml:"async"`
		} `yaml:"kafka"`
		ClickHouse struct {
			Host        string        `yaml:"host" default:"localhost"`
			Port        int           `yaml:"port" default:"9000"`
			Database    string        `yaml:"database" default:"whalewatch"`
			User        string        `yaml:"user" default:"default"`
			Password    string        `yaml:"password"`
			UseHTTP     bool          `yaml:"use_http"`
			AsyncInsert bool          `yaml:"async_insert" default:"true"`
			DialTimeout time.Duration `yaml:"dial_timeout" default:"5s"`
		} `yaml:"clickhouse"`
	} `yaml:"sink"`
}

// envOverrides holds the values that may come from the environment (or a
// .env file). Empty values leave the YAML setting untouched.
type envOverrides struct {
	Environment    string   `envconfig:"ENVIRONMENT"`
	APIBaseURL     string   `envconfig:"API_BASE_URL"`
	APIEmail       string   `envconfig:"API_EMAIL"`
	APIPassword    string   `envconfig:"API_PASSWORD"`
	SessionBackend string   `envconfig:"SESSION_BACKEND"`
	SessionPath    string   `envconfig:"SESSION_PATH"`
	RedisHost      string   `envconfig:"REDIS_HOST"`
	SinkType       string   `envconfig:"SINK_TYPE"`
	KafkaBrokers   []string `envconfig:"KAFKA_BROKERS"`
	KafkaTopic     string   `envconfig:"KAFKA_TOPIC"`
	LogLevel       string   `envconfig:"LOG_LEVEL"`
	Port           int      `envconfig:"PORT"`
}

// Default returns a config populated only from struct defaults.
func Default() *Config {
	var c Config
	if err := defaults.Set(&c); err != nil {
		// struct tags are static; a failure here is a programming error
		panic(fmt.Sprintf("config defaults: %v", err))
	}
	return &c
}

// Load reads and parses a YAML configuration file on top of the defaults.
func Load(path string) (*Config, error) {
	c, err := parse(path)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func parse(path string) (*Config, error) {
	c := Default()

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return c, nil
}

// LoadWithEnv loads config from YAML (when path is non-empty) and overrides
// it with WW_* environment variables. A .env file in the working directory is
// honoured when present. Validation runs once, after the overrides.
func LoadWithEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	c := Default()
	if path != "" {
		loaded, err := parse(path)
		if err != nil {
			return nil, err
		}
		c = loaded
	}

	var env envOverrides
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return nil, fmt.Errorf("read env: %w", err)
	}
	c.apply(env)

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) apply(env envOverrides) {
	setString(&c.Environment, env.Environment)
	setString(&c.API.BaseURL, env.APIBaseURL)
	setString(&c.API.Email, env.APIEmail)
	setString(&c.API.Password, env.APIPassword)
	setString(&c.Session.Backend, env.SessionBackend)
	setString(&c.Session.Path, env.SessionPath)
	setString(&c.Session.Redis.Host, env.RedisHost)
	setString(&c.Sink.Type, env.SinkType)
	setString(&c.Sink.Kafka.Topic, env.KafkaTopic)
	setString(&c.Logging.Level, env.LogLevel)
	if len(env.KafkaBrokers) > 0 {
		c.Sink.Kafka.Brokers = env.KafkaBrokers
	}
	if env.Port > 0 {
		c.Server.Port = env.Port
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return errors.New("environment is required")
	}
	if c.API.BaseURL == "" {
		return errors.New("api.base_url is required")
	}
	if u, err := url.Parse(c.API.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("api.base_url must be an absolute URL, got '%s'", c.API.BaseURL)
	}
	if c.API.RateLimit < 0 {
		return errors.New("api.rate_limit cannot be negative")
	}

	switch c.Session.Backend {
	case "memory", "redis":
	case "file":
		if c.Session.Path == "" {
			return errors.New("session.path is required for the file backend")
		}
	default:
		return fmt.Errorf("session.backend must be 'memory', 'redis' or 'file', got '%s'", c.Session.Backend)
	}

	for name, d := range map[string]time.Duration{
		"quotes":     c.Polling.Quotes,
		"watchlist":  c.Polling.Watchlist,
		"holdings":   c.Polling.Holdings,
		"alerts":     c.Polling.Alerts,
		"management": c.Polling.Management,
	} {
		if d <= 0 {
			return fmt.Errorf("polling.%s must be positive", name)
		}
	}
	if c.Polling.PricePolicy != "unavailable" && c.Polling.PricePolicy != "cost" {
		return fmt.Errorf("polling.price_policy must be 'unavailable' or 'cost', got '%s'", c.Polling.PricePolicy)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in 1..65535, got %d", c.Server.Port)
	}

	switch c.Sink.Type {
	case "none", "clickhouse":
	case "kafka":
		if len(c.Sink.Kafka.Brokers) == 0 {
			return errors.New("sink.kafka.brokers cannot be empty")
		}
	default:
		return fmt.Errorf("sink.type must be 'none', 'kafka' or 'clickhouse', got '%s'", c.Sink.Type)
	}
	return nil
}
