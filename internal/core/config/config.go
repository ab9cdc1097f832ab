package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

const DefaultFile = "config/default.yaml"

type LogCfg struct {
	Level   string `yaml:"level" validate:"oneof=trace debug info warn error"`
	Console bool   `yaml:"console"`
	SampleN int    `yaml:"sample_n" validate:"min=0"`
}

type RedisCfg struct {
	URL       string        `yaml:"url" validate:"required"`
	OpTimeout time.Duration `yaml:"op_timeout" validate:"gt=0"`
}

type CacheCfg struct {
	TTLSeconds int    `yaml:"ttl_seconds" validate:"gt=0"`
	Scheme     string `yaml:"bucket_scheme" validate:"oneof=geohash h3"`
	Precision  int    `yaml:"precision" validate:"min=0,max=15"`
}

type WeatherCfg struct {
	APIKey          string        `yaml:"api_key"`
	BaseURL         string        `yaml:"base_url" validate:"required,url"`
	Timeout         time.Duration `yaml:"timeout" validate:"gt=0"`
	BreakerFailures int           `yaml:"breaker_failures" validate:"min=1"`
	BreakerTimeout  time.Duration `yaml:"breaker_timeout" validate:"gt=0"`
}

type MetricsCfg struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path" validate:"startswith=/"`
}

type HotCfg struct {
	HalfLife   time.Duration `yaml:"half_life" validate:"gt=0"`
	MaxBuckets int           `yaml:"max_buckets" validate:"gt=0"`
	Threshold  float64       `yaml:"threshold" validate:"min=0"`
	LogSample  float64       `yaml:"log_sample" validate:"min=0,max=1"`
}

type EventsCfg struct {
	Enabled bool   `yaml:"enabled"`
	Brokers string `yaml:"brokers" validate:"required_if=Enabled true"`
	Topic   string `yaml:"topic" validate:"required_if=Enabled true"`
	Queue   int    `yaml:"queue" validate:"min=0"`
}

type Config struct {
	Host    string     `yaml:"host" validate:"required"`
	Port    int        `yaml:"port" validate:"min=1,max=65535"`
	Log     LogCfg     `yaml:"log"`
	Redis   RedisCfg   `yaml:"redis"`
	Cache   CacheCfg   `yaml:"cache"`
	Weather WeatherCfg `yaml:"weather"`
	Metrics MetricsCfg `yaml:"metrics"`
	Hot     HotCfg     `yaml:"hot"`
	Events  EventsCfg  `yaml:"events"`
}

func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLSeconds) * time.Second
}

// KafkaBrokers splits the comma separated broker list.
func (c Config) KafkaBrokers() []string {
	var out []string
	for _, b := range strings.Split(c.Events.Brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

func Defaults() Config {
	return Config{
		Host: "0.0.0.0",
		Port: 8080,
		Log:  LogCfg{Level: "info"},
		Redis: RedisCfg{
			URL:       "redis://localhost:6379",
			OpTimeout: 250 * time.Millisecond,
		},
		Cache: CacheCfg{TTLSeconds: 300, Scheme: "geohash", Precision: 6},
		Weather: WeatherCfg{
			BaseURL:         "https://api.weatherapi.com/v1",
			Timeout:         10 * time.Second,
			BreakerFailures: 5,
			BreakerTimeout:  30 * time.Second,
		},
		Metrics: MetricsCfg{Enabled: true, Path: "/metrics"},
		Hot:     HotCfg{HalfLife: time.Minute, MaxBuckets: 10000, Threshold: 10, LogSample: 0.01},
		Events:  EventsCfg{Brokers: "localhost:9092", Topic: "ride-assessments", Queue: 1024},
	}
}

// Load resolves configuration from defaults, an optional .env file, an
// optional YAML file and the environment, in increasing precedence.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("config: load .env: %w", err)
	}

	cfg := Defaults()

	path, explicit := os.LookupEnv("CONFIG_FILE")
	if !explicit {
		path = DefaultFile
	}
	if err := mergeFile(&cfg, path); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return Config{}, err
		}
	}

	cfg = overlayEnv(cfg)
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// FromEnv applies environment variables over the defaults without reading
// any file.
func FromEnv() Config {
	return overlayEnv(Defaults())
}

func mergeFile(cfg *Config, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	expanded := os.ExpandEnv(string(raw))
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

func overlayEnv(c Config) Config {
	c.Host = getenv("HOST", c.Host)
	c.Port = getint("PORT", c.Port)

	c.Log.Level = strings.ToLower(getenv("LOG_LEVEL", c.Log.Level))
	c.Log.Console = getbool("LOG_CONSOLE", c.Log.Console)
	c.Log.SampleN = getint("LOG_SAMPLE_N", c.Log.SampleN)

	c.Redis.URL = getenv("REDIS_URL", c.Redis.URL)
	c.Redis.OpTimeout = getduration("CACHE_OP_TIMEOUT", c.Redis.OpTimeout)

	c.Cache.TTLSeconds = getint("CACHE_TTL_SECONDS", c.Cache.TTLSeconds)
	c.Cache.Scheme = strings.ToLower(getenv("CACHE_BUCKET_SCHEME", c.Cache.Scheme))
	c.Cache.Precision = getint("BUCKET_PRECISION", getint("GEOHASH_PRECISION", c.Cache.Precision))

	c.Weather.APIKey = getenv("WEATHERAPI_KEY", c.Weather.APIKey)
	c.Weather.BaseURL = getenv("WEATHERAPI_BASE_URL", c.Weather.BaseURL)
	c.Weather.Timeout = getduration("UPSTREAM_TIMEOUT", c.Weather.Timeout)
	c.Weather.BreakerFailures = getint("UPSTREAM_BREAKER_FAILURES", c.Weather.BreakerFailures)
	c.Weather.BreakerTimeout = getduration("UPSTREAM_BREAKER_TIMEOUT", c.Weather.BreakerTimeout)

	c.Metrics.Enabled = getbool("METRICS_ENABLED", c.Metrics.Enabled)
	c.Metrics.Path = getenv("METRICS_PATH", c.Metrics.Path)

	c.Hot.HalfLife = getduration("HOT_HALF_LIFE", c.Hot.HalfLife)
	c.Hot.MaxBuckets = getint("HOT_MAX_BUCKETS", c.Hot.MaxBuckets)
	c.Hot.Threshold = getfloat("HOT_THRESHOLD", c.Hot.Threshold)
	c.Hot.LogSample = getfloat("HOT_LOG_SAMPLE", c.Hot.LogSample)

	c.Events.Enabled = getbool("EVENTS_ENABLED", c.Events.Enabled)
	c.Events.Brokers = getenv("KAFKA_BROKERS", c.Events.Brokers)
	c.Events.Topic = getenv("KAFKA_TOPIC", c.Events.Topic)
	c.Events.Queue = getint("EVENTS_QUEUE", c.Events.Queue)
	return c
}

var validate = validator.New()

func Validate(c Config) error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "t", "true", "y", "yes":
			return true
		case "0", "f", "false", "n", "no":
			return false
		}
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v := os.Getenv(k); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getduration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
