package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Log         struct {
		Level      string `yaml:"level" default:"info"`
		Format     string `yaml:"format" default:"json"`
		Output     string `yaml:"output" default:"stdout"`
		TimeFormat string `yaml:"time_format"`
		Collect    struct {
			Enabled        bool          `yaml:"enabled"`
			Interval       time.Duration `yaml:"interval" default:"30s"`
			CountThreshold int           `yaml:"count_threshold" default:"100"`
		} `yaml:"collect"`
	} `yaml:"log"`
	Server struct {
		Port            int           `yaml:"port" default:"8080"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"30s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
		CORSOrigins     []string      `yaml:"cors_origins"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Forecast struct {
		CacheTTL       time.Duration `yaml:"cache_ttl" default:"10m"`
		RateLimitRPS   float64       `yaml:"rate_limit_rps" default:"20"`
		RateLimitBurst int           `yaml:"rate_limit_burst" default:"40"`
		PublishEvents  bool          `yaml:"publish_events"`
	} `yaml:"forecast"`
	Artifacts struct {
		Dir   string `yaml:"dir" default:"artifacts"`
		Cache bool   `yaml:"cache" default:"true"`
	} `yaml:"artifacts"`
	ModelService struct {
		URL        string        `yaml:"url"`
		Timeout    time.Duration `yaml:"timeout" default:"5s"`
		Retries    int           `yaml:"retries" default:"3"`
		FitTimeout time.Duration `yaml:"fit_timeout" default:"30m"`
	} `yaml:"model_service"`
	Training struct {
		TestDays     int     `yaml:"test_days" default:"15"`
		OilLags      int     `yaml:"oil_lags" default:"25"`
		HampelWindow int     `yaml:"hampel_window" default:"7"`
		HampelSigma  float64 `yaml:"hampel_sigma" default:"3"`
		From         string  `yaml:"from"`
		To           string  `yaml:"to"`
		Queue        struct {
			Enabled    bool          `yaml:"enabled"`
			Workers    int           `yaml:"workers" default:"1"`
			RetryLimit int           `yaml:"retry_limit" default:"2"`
			RetryDelay time.Duration `yaml:"retry_delay" default:"1m"`
			JobTimeout time.Duration `yaml:"job_timeout" default:"1h"`
			Prefix     string        `yaml:"prefix" default:"storesales:train"`
		} `yaml:"queue"`
	} `yaml:"training"`
	Cache struct {
		Memory struct {
			MaxSize         int           `yaml:"max_size" default:"10000"`
			CleanupInterval time.Duration `yaml:"cleanup_interval" default:"1m"`
		} `yaml:"memory"`
		Redis struct {
			Enabled  bool   `yaml:"enabled"`
			Addr     string `yaml:"addr" default:"localhost:6379"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix" default:"storesales:"`
		} `yaml:"redis"`
	} `yaml:"cache"`
	Kafka struct {
		Enabled       bool     `yaml:"enabled"`
		Brokers       []string `yaml:"brokers"`
		ForecastTopic string   `yaml:"forecast_topic" default:"sales.forecasts"`
		SalesTopic    string   `yaml:"sales_topic" default:"sales.daily"`
		LogsTopic     string   `yaml:"logs_topic" default:"storesales.logs"`
		RequiredAcks  int      `yaml:"required_acks" default:"1"`
		Compression   string   `yaml:"compression" default:"snappy"`
		Producer      struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			Linger       time.Duration `yaml:"linger" default:"10ms"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			Enabled    bool          `yaml:"enabled"`
			GroupID    string        `yaml:"group_id" default:"storesales-ingest"`
			Workers    int           `yaml:"workers" default:"4"`
			BufferSize int           `yaml:"buffer_size" default:"1000"`
			RetryMax   int           `yaml:"retry_max" default:"3"`
			BackoffMin time.Duration `yaml:"backoff_min" default:"100ms"`
			BackoffMax time.Duration `yaml:"backoff_max" default:"5s"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes" default:"1"`
			MaxBytes   int           `yaml:"max_bytes" default:"10485760"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Enabled          bool          `yaml:"enabled"`
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"storesales"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"30s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
	} `yaml:"clickhouse"`
}

// Load reads and parses a YAML configuration file. Unset fields take their
// default tag.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	c, err := Parse(b)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// Parse decodes YAML and applies defaults without validating.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	c, err := Parse(b)
	if err != nil {
		return nil, err
	}
	if err := c.applyEnv(os.Getenv); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	if v := getenv("ENVIRONMENT"); v != "" {
		c.Environment = v
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PORT: %w", err)
		}
		c.Server.Port = port
	}
	if v := getenv("MODEL_SERVICE_URL"); v != "" {
		c.ModelService.URL = v
	}
	if v := getenv("ARTIFACT_DIR"); v != "" {
		c.Artifacts.Dir = v
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := getenv("REDIS_ADDR"); v != "" {
		c.Cache.Redis.Addr = v
	}
	if v := getenv("REDIS_PASSWORD"); v != "" {
		c.Cache.Redis.Password = v
	}
	if v := getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
	if c.Training.Queue.Enabled && !c.ClickHouse.Enabled {
		return fmt.Errorf("training.queue requires clickhouse to be enabled")
	}
	return nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in 1..65535, got %d", c.Server.Port)
	}
	if c.Artifacts.Dir == "" {
		return fmt.Errorf("artifacts.dir is required")
	}
	if c.ModelService.URL == "" {
		return fmt.Errorf("model_service.url is required")
	}
	if c.Forecast.RateLimitRPS < 0 {
		return fmt.Errorf("forecast.rate_limit_rps cannot be negative")
	}
	if c.Training.TestDays < 0 {
		return fmt.Errorf("training.test_days cannot be negative")
	}
	if c.Training.OilLags <= 0 {
		return fmt.Errorf("training.oil_lags must be positive")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.Kafka.Consumer.Enabled && (!c.Kafka.Enabled || !c.ClickHouse.Enabled) {
		return fmt.Errorf("kafka.consumer requires kafka and clickhouse to be enabled")
	}
	if c.Training.Queue.Enabled && !c.ClickHouse.Enabled {
		return fmt.Errorf("training.queue requires clickhouse to be enabled")
	}
	return nil
}
