package config

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/YinYang-Interactive-LLC/roguelike-analytics-api/internal/ratelimit"
	"github.com/YinYang-Interactive-LLC/roguelike-analytics-api/internal/validation"
)

type Server struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port" validate:"min=1,max=65535"`
	ReadTimeoutMS  int      `yaml:"read_timeout_ms"`
	WriteTimeoutMS int      `yaml:"write_timeout_ms"`
	IdleTimeoutMS  int      `yaml:"idle_timeout_ms"`
	MaxJSONPayload int64    `yaml:"max_json_payload" validate:"gt=0"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type Observability struct {
	LogLevel       string `yaml:"log_level"`       // "debug","info","warn","error"
	PrometheusPath string `yaml:"prometheus_path"` // e.g. "/metrics"
}

type Auth struct {
	Header string `yaml:"header"`
	Secret string `yaml:"secret"`
}

type Costs struct {
	CreateSession uint64 `yaml:"create_session"`
	IngestEvent   uint64 `yaml:"ingest_event"`
}

type Limits struct {
	RatePerSecond        uint64 `yaml:"rate_per_second"`
	BucketMultiplier     uint64 `yaml:"bucket_multiplier"`
	MaxTrackedClients    int    `yaml:"max_tracked_clients"`
	SweepIntervalSeconds uint64 `yaml:"sweep_interval_seconds" validate:"lte=9223372036"`
	EntryLifetimeSeconds uint64 `yaml:"entry_lifetime_seconds" validate:"lte=9223372036"`
	Costs                Costs  `yaml:"costs"`
}

type Storage struct {
	Driver string `yaml:"driver" validate:"oneof=sqlite postgres postgresql"`
	Path   string `yaml:"path" validate:"required_if=Driver sqlite"`    // sqlite file
	DSN    string `yaml:"dsn" validate:"required_unless=Driver sqlite"` // postgres connection string
}

type Cache struct {
	RedisURL string `yaml:"redis_url"`
}

type Root struct {
	Server        Server        `yaml:"server"`
	Observability Observability `yaml:"observability"`
	Auth          Auth          `yaml:"auth"`
	Limits        Limits        `yaml:"limits"`
	Storage       Storage       `yaml:"storage"`
	Cache         Cache         `yaml:"cache"`
}

func (s Server) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

func (s Server) ReadTimeout() time.Duration {
	if s.ReadTimeoutMS == 0 {
		return 5 * time.Second
	}
	return time.Duration(s.ReadTimeoutMS) * time.Millisecond
}

func (s Server) WriteTimeout() time.Duration {
	if s.WriteTimeoutMS == 0 {
		return 10 * time.Second
	}
	return time.Duration(s.WriteTimeoutMS) * time.Millisecond
}

func (s Server) IdleTimeout() time.Duration {
	if s.IdleTimeoutMS == 0 {
		return 60 * time.Second
	}
	return time.Duration(s.IdleTimeoutMS) * time.Millisecond
}

// maxDurationSeconds is the largest whole-second count a time.Duration holds.
const maxDurationSeconds = math.MaxInt64 / int64(time.Second)

func (l Limits) SweepInterval() time.Duration {
	return time.Duration(l.SweepIntervalSeconds) * time.Second
}

func (l Limits) EntryLifetime() time.Duration {
	return time.Duration(l.EntryLifetimeSeconds) * time.Second
}

// RateLimit converts the limits block into the limiter's configuration.
func (l Limits) RateLimit() ratelimit.Config {
	return ratelimit.Config{
		RatePerSecond:     l.RatePerSecond,
		BucketMultiplier:  l.BucketMultiplier,
		MaxTrackedClients: l.MaxTrackedClients,
		EntryLifetime:     l.EntryLifetime(),
		SweepInterval:     l.SweepInterval(),
	}
}

// Load starts from Default, overlays the optional YAML file at path, then
// .env, then the process environment. A missing file is not an error; a
// malformed one is. Values explicitly set to zero are kept so Validate can
// reject them.
func Load(path string) (*Root, error) {
	cfg := Default()

	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, err
	}

	// .env never overrides variables already set in the environment
	_ = godotenv.Load()

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	if cfg.Auth.Header == "" {
		cfg.Auth.Header = "X-RLA-KEY"
	}
	if cfg.Observability.PrometheusPath == "" {
		cfg.Observability.PrometheusPath = "/metrics"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Root) error {
	str(&cfg.Auth.Secret, "SECRET_KEY")
	str(&cfg.Server.Host, "HOST")
	str(&cfg.Observability.LogLevel, "LOG_LEVEL")
	str(&cfg.Storage.Driver, "DATABASE_TYPE")
	str(&cfg.Storage.Path, "DB_PATH")
	str(&cfg.Storage.DSN, "DATABASE_URL")
	str(&cfg.Cache.RedisURL, "REDIS_URL")

	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		cfg.Server.AllowedOrigins = nil
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.Server.AllowedOrigins = append(cfg.Server.AllowedOrigins, o)
			}
		}
	}

	ints := []struct {
		env string
		set func(string) error
	}{
		{"PORT", intVar(&cfg.Server.Port)},
		{"MAX_JSON_PAYLOAD", int64Var(&cfg.Server.MaxJSONPayload)},
		{"MAX_EVENTS_PER_SECOND", uintVar(&cfg.Limits.RatePerSecond)},
		{"TOKEN_BUCKET_SIZE", uintVar(&cfg.Limits.BucketMultiplier)},
		{"MAX_RATELIMIT_ENTRIES", intVar(&cfg.Limits.MaxTrackedClients)},
		{"RATE_LIMITER_CLEANUP_INTERVAL", uintVar(&cfg.Limits.SweepIntervalSeconds)},
		{"RATELIMIT_CACHE_ENTRY_LIFETIME", uintVar(&cfg.Limits.EntryLifetimeSeconds)},
		{"CREATE_SESSION_COST", uintVar(&cfg.Limits.Costs.CreateSession)},
		{"INGEST_EVENT_COST", uintVar(&cfg.Limits.Costs.IngestEvent)},
	}
	for _, i := range ints {
		v := strings.TrimSpace(os.Getenv(i.env))
		if v == "" {
			continue
		}
		if err := i.set(v); err != nil {
			return fmt.Errorf("invalid value provided for %s: %w", i.env, err)
		}
	}
	return nil
}

// Default returns the built-in settings used when neither file nor environment sets a value.
func Default() Root {
	return Root{
		Server: Server{
			Host:           "127.0.0.1",
			Port:           8080,
			MaxJSONPayload: 4096,
		},
		Observability: Observability{
			LogLevel:       "info",
			PrometheusPath: "/metrics",
		},
		Auth: Auth{Header: "X-RLA-KEY"},
		Limits: Limits{
			RatePerSecond:        5,
			BucketMultiplier:     10,
			MaxTrackedClients:    1000,
			SweepIntervalSeconds: 60,
			EntryLifetimeSeconds: 300,
			Costs: Costs{
				CreateSession: 5,
				IngestEvent:   1,
			},
		},
		Storage: Storage{
			Driver: "sqlite",
			Path:   "analytics.db",
		},
	}
}

// Validate checks what the limiter cannot: server and storage settings and
// durations that fit in a time.Duration. Limiter bounds are checked by
// ratelimit.Config.Validate.
func (c *Root) Validate() error {
	if err := validation.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func str(dst *string, env string) {
	if v := strings.TrimSpace(os.Getenv(env)); v != "" {
		*dst = v
	}
}

func intVar(dst *int) func(string) error {
	return func(s string) error {
		n, err := strconv.Atoi(s)
		if err != nil {
			return err
		}
		*dst = n
		return nil
	}
}

func int64Var(dst *int64) func(string) error {
	return func(s string) error {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return err
		}
		*dst = n
		return nil
	}
}

func uintVar(dst *uint64) func(string) error {
	return func(s string) error {
		n, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return err
		}
		*dst = n
		return nil
	}
}
