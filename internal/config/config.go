// Package config holds the settings of the calculator daemon: where it
// listens, how the job queue and result store behave, and the policies of the
// HTTP layer. Settings come from defaults, an optional JSON file, and then
// environment variables, and are checked with Validate before use.
package config

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Validate Duration fields as time.Duration so tags like gte=1s apply.
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(Duration); ok {
			return time.Duration(d)
		}
		return nil
	}, Duration(0))
	return v
}

// Duration is a time.Duration written in JSON as a string such as "300s" or
// "1h30m". Bare numbers are rejected.
type Duration time.Duration

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// MarshalJSON encodes d as a duration string.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalJSON decodes a duration string.
func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("duration must be a string with a unit, like \"300s\", not %s", b)
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Backend names for the result store.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Config is the complete daemon configuration.
type Config struct {
	Server    ServerConfig    `json:"server"`
	Queue     QueueConfig     `json:"queue"`
	Results   ResultsConfig   `json:"results"`
	RateLimit RateLimitConfig `json:"rate_limit"`
	CORS      CORSConfig      `json:"cors"`
	Log       LogConfig       `json:"log"`
	Auth      AuthConfig      `json:"auth"`

	// Unit is the angle unit for requests that don't name one.
	Unit string `json:"unit" validate:"oneof=deg rad"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Addr            string   `json:"addr" validate:"required"`
	ReadTimeout     Duration `json:"read_timeout" validate:"gte=0"`
	WriteTimeout    Duration `json:"write_timeout" validate:"gte=0"`
	ShutdownTimeout Duration `json:"shutdown_timeout" validate:"gte=1s"`
	MaxBodyBytes    int64    `json:"max_body_bytes" validate:"gt=0"`
}

// QueueConfig controls asynchronous evaluation.
type QueueConfig struct {
	Capacity int `json:"capacity" validate:"gt=0"`
	Workers  int `json:"workers" validate:"gt=0"`
	// JobEstimate is the wait reported to clients per queued job.
	JobEstimate Duration `json:"job_estimate" validate:"gte=0"`
}

// ResultsConfig controls where finished asynchronous results are kept.
type ResultsConfig struct {
	Backend       string   `json:"backend" validate:"oneof=memory redis"`
	TTL           Duration `json:"ttl" validate:"gte=1s"`
	SweepInterval Duration `json:"sweep_interval" validate:"gte=1s"`
	RedisAddr     string   `json:"redis_addr" validate:"required_if=Backend redis"`
	RedisPassword string   `json:"-"` // Sensitive, from the environment only.
	RedisDB       int      `json:"redis_db" validate:"gte=0"`
	KeyPrefix     string   `json:"key_prefix"`
}

// RateLimitConfig controls admission of HTTP requests with a token bucket.
type RateLimitConfig struct {
	Enabled           bool    `json:"enabled"`
	RequestsPerSecond float64 `json:"requests_per_second" validate:"required_if=Enabled true,gte=0"`
	Burst             int     `json:"burst" validate:"required_if=Enabled true,gte=0"`
}

// CORSConfig lists the cross-origin policy headers.
type CORSConfig struct {
	AllowedOrigins []string `json:"allowed_origins" validate:"dive,required"`
	AllowedMethods []string `json:"allowed_methods" validate:"dive,required"`
	AllowedHeaders []string `json:"allowed_headers" validate:"dive,required"`
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level  string `json:"level" validate:"oneof=debug info warn error"`
	Format string `json:"format" validate:"oneof=text json"`
}

// AuthConfig holds the credentials accepted by the login endpoint.
type AuthConfig struct {
	Users map[string]string `json:"users" validate:"dive,keys,required,endkeys,required"`
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8000",
			ReadTimeout:     Duration(15 * time.Second),
			WriteTimeout:    Duration(15 * time.Second),
			ShutdownTimeout: Duration(10 * time.Second),
			MaxBodyBytes:    1 << 16,
		},
		Queue: QueueConfig{
			Capacity:    100,
			Workers:     1,
			JobEstimate: Duration(2 * time.Second),
		},
		Results: ResultsConfig{
			Backend:       BackendMemory,
			TTL:           Duration(300 * time.Second),
			SweepInterval: Duration(time.Hour),
			RedisAddr:     "localhost:6379",
			KeyPrefix:     "calculator:result:",
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerSecond: 50,
			Burst:             100,
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"POST", "GET"},
			AllowedHeaders: []string{"Content-Type"},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Unit: "deg",
	}
}

// Load reads a JSON configuration file over the defaults. Fields the file
// does not mention keep their default values. Unknown fields are an error.
func Load(path string) (Config, error) {
	cfg := Default()
	f, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("opening config: %w", err)
	}
	defer f.Close()
	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("decoding config %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overrides settings from environment variables. lookup is usually
// os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup("CALCD_ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := lookup("CALCD_REDIS_ADDR"); ok {
		c.Results.RedisAddr = v
	}
	if v, ok := lookup("CALCD_REDIS_PASSWORD"); ok {
		c.Results.RedisPassword = v
	}
	if v, ok := lookup("CALCD_RESULTS_BACKEND"); ok {
		c.Results.Backend = strings.ToLower(v)
	}
	if v, ok := lookup("CALCD_LOG_LEVEL"); ok {
		c.Log.Level = strings.ToLower(v)
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// SlogLevel returns the log level as a slog.Level.
func (c LogConfig) SlogLevel() slog.Level {
	switch c.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Handler creates a slog handler writing to w in the configured format.
func (c LogConfig) Handler(w io.Writer) slog.Handler {
	opts := &slog.HandlerOptions{Level: c.SlogLevel()}
	if c.Format == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}
