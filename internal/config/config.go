package config

import (
	"time"
)

// Config is the root application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Log      LogConfig      `yaml:"log"`
	Emission EmissionConfig `yaml:"emission"`
	Renderer RendererConfig `yaml:"renderer"`
	Storage  StorageConfig  `yaml:"storage"`
	Notify   NotifyConfig   `yaml:"notify"`
	Tracing  TracingConfig  `yaml:"tracing"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host               string        `yaml:"host"                  env:"SERVER_HOST"                  env-default:"0.0.0.0"`
	Port               int           `yaml:"port"                  env:"SERVER_PORT"                  env-default:"8080"`
	ReadTimeout        time.Duration `yaml:"read_timeout"          env:"SERVER_READ_TIMEOUT"          env-default:"10s"`
	WriteTimeout       time.Duration `yaml:"write_timeout"         env:"SERVER_WRITE_TIMEOUT"         env-default:"30s"`
	IdleTimeout        time.Duration `yaml:"idle_timeout"          env:"SERVER_IDLE_TIMEOUT"          env-default:"60s"`
	ShutdownTimeout    time.Duration `yaml:"shutdown_timeout"      env:"SERVER_SHUTDOWN_TIMEOUT"      env-default:"10s"`
	RateLimitPerMinute int           `yaml:"rate_limit_per_minute" env:"SERVER_RATE_LIMIT_PER_MINUTE" env-default:"120"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	DSN             string        `yaml:"dsn"                env:"DATABASE_DSN"                env-required:"true"`
	MaxConns        int32         `yaml:"max_conns"          env:"DATABASE_MAX_CONNS"          env-default:"25"`
	MinConns        int32         `yaml:"min_conns"          env:"DATABASE_MIN_CONNS"          env-default:"5"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"  env:"DATABASE_MAX_CONN_LIFETIME"  env-default:"1h"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time" env:"DATABASE_MAX_CONN_IDLE_TIME" env-default:"30m"`
}

// AuthConfig holds settings for verifying operator and system tokens.
type AuthConfig struct {
	JWTSecret      string        `yaml:"jwt_secret"       env:"AUTH_JWT_SECRET"       env-required:"true"`
	JWTIssuer      string        `yaml:"jwt_issuer"       env:"AUTH_JWT_ISSUER"       env-default:"laudo"`
	AccessTokenTTL time.Duration `yaml:"access_token_ttl" env:"AUTH_ACCESS_TOKEN_TTL" env-default:"8h"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"  env:"LOG_LEVEL"  env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"json"`
}

// EmissionConfig holds the batch lifecycle and emission pipeline parameters.
type EmissionConfig struct {
	// GraceDelay is added to the READY time before the first emission attempt.
	GraceDelay time.Duration `yaml:"grace_delay"         env:"EMISSION_GRACE_DELAY"         env-default:"10m"`
	// PollInterval is the period of the background claim loop.
	PollInterval time.Duration `yaml:"poll_interval"       env:"EMISSION_POLL_INTERVAL"       env-default:"1m"`
	ClaimLimit   int           `yaml:"claim_limit"         env:"EMISSION_CLAIM_LIMIT"         env-default:"10"`
	Workers      int           `yaml:"workers"             env:"EMISSION_WORKERS"             env-default:"4"`
	// RenderTimeout bounds a single render call; exceeding it is a transient failure.
	RenderTimeout time.Duration `yaml:"render_timeout"      env:"EMISSION_RENDER_TIMEOUT"      env-default:"60s"`
	// StaleAfter releases EMITTING claims abandoned by a crashed worker.
	StaleAfter         time.Duration `yaml:"stale_after"         env:"EMISSION_STALE_AFTER"         env-default:"15m"`
	ReprocessCooldown  time.Duration `yaml:"reprocess_cooldown"  env:"EMISSION_REPROCESS_COOLDOWN"  env-default:"5m"`
	HighExclusionRatio float64       `yaml:"high_exclusion_ratio" env:"EMISSION_HIGH_EXCLUSION_RATIO" env-default:"0.30"`
	RenderCacheSize    int           `yaml:"render_cache_size"   env:"EMISSION_RENDER_CACHE_SIZE"   env-default:"64"`
	PollerEnabled      bool          `yaml:"poller_enabled"      env:"EMISSION_POLLER_ENABLED"      env-default:"true"`
}

// RendererConfig points at the external HTML/PDF rendering service.
type RendererConfig struct {
	BaseURL string `yaml:"base_url" env:"RENDERER_BASE_URL" env-required:"true"`
}

// StorageConfig selects and configures the artifact store.
type StorageConfig struct {
	Driver         string `yaml:"driver"          env:"STORAGE_DRIVER"          env-default:"gcs"`
	Bucket         string `yaml:"bucket"          env:"STORAGE_BUCKET"`
	Prefix         string `yaml:"prefix"          env:"STORAGE_PREFIX"          env-default:"laudos/"`
	Endpoint       string `yaml:"endpoint"        env:"STORAGE_ENDPOINT"`
	UploadAttempts uint64 `yaml:"upload_attempts" env:"STORAGE_UPLOAD_ATTEMPTS" env-default:"3"`
}

// NotifyConfig configures the post-emission notification stream.
// An empty RedisAddr disables notifications.
type NotifyConfig struct {
	RedisAddr string `yaml:"redis_addr" env:"NOTIFY_REDIS_ADDR"`
	Stream    string `yaml:"stream"     env:"NOTIFY_STREAM"     env-default:"laudo-events"`
	Attempts  uint64 `yaml:"attempts"   env:"NOTIFY_ATTEMPTS"   env-default:"5"`
}

// TracingConfig toggles the stdout span exporter.
type TracingConfig struct {
	Enabled     bool   `yaml:"enabled"      env:"TRACING_ENABLED"      env-default:"false"`
	ServiceName string `yaml:"service_name" env:"TRACING_SERVICE_NAME" env-default:"laudo-backend"`
}
