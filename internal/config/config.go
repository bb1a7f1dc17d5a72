/*
Package config loads pipeprep settings.

Sources are applied in order: built-in defaults, the YAML file, a .env file
and finally PIPEPREP_* environment variables. Command flags are applied by the
CLI on top of the result.
*/
package config

import (
	"bytes"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultFile is the config file looked up when none is given.
const DefaultFile = "pipeprep.yaml"

// EnvPrefix prefixes every environment override.
const EnvPrefix = "PIPEPREP_"

// Session backends.
const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

type Config struct {
	PipelineID string `yaml:"pipeline_id"`
	GraphDir   string `yaml:"graph_dir"`

	Log      Log      `yaml:"log"`
	HTTP     HTTP     `yaml:"http"`
	Console  Console  `yaml:"console"`
	Preview  Preview  `yaml:"preview"`
	Sessions Sessions `yaml:"sessions"`
	Redis    Redis    `yaml:"redis"`
	Postgres Postgres `yaml:"postgres"`
	Temporal Temporal `yaml:"temporal"`
	S3       S3       `yaml:"s3"`
	Metrics  Metrics  `yaml:"metrics"`
}

type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text or json
}

type HTTP struct {
	Addr           string `yaml:"addr"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes"`
}

// Console is the pipeline console API used for processing params and,
// without Temporal, for dispatching runs.
type Console struct {
	BaseURL   string        `yaml:"base_url"`
	Token     string        `yaml:"token"`
	Timeout   time.Duration `yaml:"timeout"`
	CacheSize int           `yaml:"cache_size"`
	CacheTTL  time.Duration `yaml:"cache_ttl"`
}

type Preview struct {
	Limit int `yaml:"limit"`
}

type Sessions struct {
	Backend   string        `yaml:"backend"`
	Dir       string        `yaml:"dir"`
	TTL       time.Duration `yaml:"ttl"`
	CacheSize int           `yaml:"cache_size"`
	LockTTL   time.Duration `yaml:"lock_ttl"`

	// EncryptionKey seals stored sessions when set: 32 bytes, base64 or hex.
	EncryptionKey string   `yaml:"encryption_key"`
	FallbackKeys  []string `yaml:"fallback_keys"`
	// Redact lists regular expressions of input keys masked before storage.
	Redact []string `yaml:"redact"`
}

// Keys decodes the encryption keys. The active key is nil when encryption
// is off.
func (s Sessions) Keys() ([]byte, [][]byte, error) {
	if s.EncryptionKey == "" {
		if len(s.FallbackKeys) > 0 {
			return nil, nil, errors.New("sessions.fallback_keys requires sessions.encryption_key")
		}
		return nil, nil, nil
	}
	active, err := decodeKey(s.EncryptionKey)
	if err != nil {
		return nil, nil, fmt.Errorf("sessions.encryption_key: %w", err)
	}
	fallback := make([][]byte, 0, len(s.FallbackKeys))
	for i, raw := range s.FallbackKeys {
		k, err := decodeKey(raw)
		if err != nil {
			return nil, nil, fmt.Errorf("sessions.fallback_keys[%d]: %w", i, err)
		}
		fallback = append(fallback, k)
	}
	return active, fallback, nil
}

func decodeKey(raw string) ([]byte, error) {
	raw = strings.TrimSpace(raw)
	var key []byte
	if len(raw) == 64 {
		if k, err := hex.DecodeString(raw); err == nil {
			key = k
		}
	}
	if key == nil {
		k, err := base64.StdEncoding.DecodeString(raw)
		if err != nil {
			return nil, errors.New("key is neither hex nor base64")
		}
		key = k
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("key must be 32 bytes, got %d", len(key))
	}
	return key, nil
}

type Redis struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

type Postgres struct {
	DSN   string `yaml:"dsn"`
	Table string `yaml:"table"`
}

type Temporal struct {
	HostPort  string `yaml:"host_port"`
	Namespace string `yaml:"namespace"`
	TaskQueue string `yaml:"task_queue"`
	Workflow  string `yaml:"workflow"`
}

type S3 struct {
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	UseSSL    bool   `yaml:"use_ssl"`
}

type Metrics struct {
	Enabled bool `yaml:"enabled"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		GraphDir: ".",
		Log:      Log{Level: "info", Format: "text"},
		HTTP:     HTTP{Addr: ":8080"},
		Console: Console{
			Timeout:   30 * time.Second,
			CacheSize: 128,
			CacheTTL:  5 * time.Minute,
		},
		Preview: Preview{Limit: 20},
		Sessions: Sessions{
			Backend:   BackendMemory,
			Dir:       ".pipeprep/sessions",
			CacheSize: 1024,
			LockTTL:   30 * time.Second,
		},
		Redis:    Redis{Addr: "localhost:6379"},
		Postgres: Postgres{Table: "pipeprep_sessions"},
		Temporal: Temporal{Namespace: "default", TaskQueue: "pipeprep"},
		S3:       S3{Region: "us-east-1"},
	}
}

// Load builds the configuration. An empty path looks for DefaultFile and
// tolerates its absence; an explicit path must exist. envFile works the same
// way for ".env".
func Load(path, envFile string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := decode(raw, &cfg); err != nil {
			return nil, fmt.Errorf("config %s: %w", path, err)
		}
	case explicit || !errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := loadEnvFile(envFile); err != nil {
		return nil, err
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func decode(raw []byte, cfg *Config) error {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	return dec.Decode(cfg)
}

// loadEnvFile never overrides variables already set in the environment.
func loadEnvFile(envFile string) error {
	explicit := envFile != ""
	if !explicit {
		envFile = ".env"
	}
	err := godotenv.Load(envFile)
	if err == nil || (!explicit && errors.Is(err, fs.ErrNotExist)) {
		return nil
	}
	return fmt.Errorf("load %s: %w", envFile, err)
}

type lookupFunc func(string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := lookup(EnvPrefix + key); ok {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v, ok := lookup(EnvPrefix + key); ok {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = n
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := lookup(EnvPrefix + key); ok {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = b
		}
	}
	list := func(key string, dst *[]string) {
		if v, ok := lookup(EnvPrefix + key); ok {
			var out []string
			for _, item := range strings.Split(v, ",") {
				if item = strings.TrimSpace(item); item != "" {
					out = append(out, item)
				}
			}
			*dst = out
		}
	}
	duration := func(key string, dst *time.Duration) {
		if v, ok := lookup(EnvPrefix + key); ok {
			d, err := time.ParseDuration(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = d
		}
	}

	str("PIPELINE_ID", &c.PipelineID)
	str("GRAPH_DIR", &c.GraphDir)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)
	str("HTTP_ADDR", &c.HTTP.Addr)

	str("CONSOLE_BASE_URL", &c.Console.BaseURL)
	str("CONSOLE_TOKEN", &c.Console.Token)
	duration("CONSOLE_TIMEOUT", &c.Console.Timeout)
	num("CONSOLE_CACHE_SIZE", &c.Console.CacheSize)
	duration("CONSOLE_CACHE_TTL", &c.Console.CacheTTL)

	num("PREVIEW_LIMIT", &c.Preview.Limit)

	str("SESSION_BACKEND", &c.Sessions.Backend)
	str("SESSION_DIR", &c.Sessions.Dir)
	duration("SESSION_TTL", &c.Sessions.TTL)
	num("SESSION_CACHE_SIZE", &c.Sessions.CacheSize)
	duration("SESSION_LOCK_TTL", &c.Sessions.LockTTL)
	str("SESSION_ENCRYPTION_KEY", &c.Sessions.EncryptionKey)
	list("SESSION_FALLBACK_KEYS", &c.Sessions.FallbackKeys)
	list("SESSION_REDACT", &c.Sessions.Redact)

	str("REDIS_ADDR", &c.Redis.Addr)
	str("REDIS_PASSWORD", &c.Redis.Password)
	num("REDIS_DB", &c.Redis.DB)

	str("POSTGRES_DSN", &c.Postgres.DSN)
	str("POSTGRES_TABLE", &c.Postgres.Table)

	str("TEMPORAL_HOST_PORT", &c.Temporal.HostPort)
	str("TEMPORAL_NAMESPACE", &c.Temporal.Namespace)
	str("TEMPORAL_TASK_QUEUE", &c.Temporal.TaskQueue)
	str("TEMPORAL_WORKFLOW", &c.Temporal.Workflow)

	str("S3_ENDPOINT", &c.S3.Endpoint)
	str("S3_REGION", &c.S3.Region)
	str("S3_BUCKET", &c.S3.Bucket)
	str("S3_PREFIX", &c.S3.Prefix)
	str("S3_ACCESS_KEY", &c.S3.AccessKey)
	str("S3_SECRET_KEY", &c.S3.SecretKey)
	boolean("S3_USE_SSL", &c.S3.UseSSL)

	boolean("METRICS_ENABLED", &c.Metrics.Enabled)

	return errors.Join(errs...)
}

// Validate checks values that cannot be defaulted.
func (c *Config) Validate() error {
	var errs []error
	switch c.Sessions.Backend {
	case BackendMemory, BackendFile:
	case BackendRedis:
		if c.Redis.Addr == "" {
			errs = append(errs, errors.New("sessions.backend redis requires redis.addr"))
		}
	case BackendPostgres:
		if c.Postgres.DSN == "" {
			errs = append(errs, errors.New("sessions.backend postgres requires postgres.dsn"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown sessions.backend %q", c.Sessions.Backend))
	}
	if _, _, err := c.Sessions.Keys(); err != nil {
		errs = append(errs, err)
	}
	for _, p := range c.Sessions.Redact {
		if _, err := regexp.Compile(p); err != nil {
			errs = append(errs, fmt.Errorf("sessions.redact %q: %w", p, err))
		}
	}
	if c.Preview.Limit < 0 {
		errs = append(errs, errors.New("preview.limit must not be negative"))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log.format %q", c.Log.Format))
	}
	if c.S3.Endpoint != "" && c.S3.Bucket == "" {
		errs = append(errs, errors.New("s3.endpoint requires s3.bucket"))
	}
	return errors.Join(errs...)
}
