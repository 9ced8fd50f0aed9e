package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config aggregates runtime configuration used across the service.
type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Email    EmailConfig    `yaml:"email"`
	LLM      LLMConfig      `yaml:"llm"`
	Storage  StorageConfig  `yaml:"storage"`
}

// HTTPConfig controls server level behavior.
type HTTPConfig struct {
	Address        string          `yaml:"address"`
	ReadTimeout    time.Duration   `yaml:"readTimeout"`
	WriteTimeout   time.Duration   `yaml:"writeTimeout"`
	AllowedOrigins []string        `yaml:"allowedOrigins"`
	RateLimit      RateLimitConfig `yaml:"rateLimit"`
	Retry          RetryConfig     `yaml:"retry"`
}

// RateLimitConfig drives the request limiting middleware.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requestsPerMinute"`
	Burst             int  `yaml:"burst"`
}

// RetryConfig configures best-effort retries for idempotent requests.
type RetryConfig struct {
	Enabled     bool          `yaml:"enabled"`
	MaxAttempts int           `yaml:"maxAttempts"`
	BaseBackoff time.Duration `yaml:"baseBackoff"`
	Exclude     []string      `yaml:"exclude"`
}

// DatabaseConfig selects and tunes the relational backend and the
// directory that holds per-tenant vector store files.
type DatabaseConfig struct {
	Type             string        `yaml:"type"` // "sqlite" or "postgresql"
	URL              string        `yaml:"url"`
	SQLitePath       string        `yaml:"sqlitePath"`
	VectorStoreDir   string        `yaml:"vectorStoreDir"`
	UploadTempDir    string        `yaml:"uploadTempDir"`
	PoolSize         int           `yaml:"poolSize"`
	MaxOverflow      int           `yaml:"maxOverflow"`
	PoolTimeout      time.Duration `yaml:"poolTimeout"`
	PoolRecycle      time.Duration `yaml:"poolRecycle"`
	Echo             bool          `yaml:"echo"`
}

// IsPostgres reports whether the configured backend is Postgres.
func (d DatabaseConfig) IsPostgres() bool {
	return strings.EqualFold(d.Type, "postgresql") || strings.EqualFold(d.Type, "postgres")
}

// LLMConfig contains default provider settings used until a tenant saves
// its own API key via POST /config.
// TODO: support a provider allow-list once a second LLM vendor is onboarded.
type LLMConfig struct {
	Model          string  `yaml:"model"`
	EmbeddingModel string  `yaml:"embeddingModel"`
	Temperature    float32 `yaml:"temperature"`
}

// AuthConfig controls authentication settings and the master key used to
// encrypt provider secrets at rest in the in-memory config store.
type AuthConfig struct {
	JWTSecret            string        `yaml:"jwtSecret"`
	AccessTokenTTL       time.Duration `yaml:"accessTokenTtl"`
	RefreshTokenTTL      time.Duration `yaml:"refreshTokenTtl"`
	MasterEncryptionKey  string        `yaml:"masterEncryptionKey"`
	Production           bool          `yaml:"production"`
}

// StorageConfig points at the S3-compatible bucket that durably holds
// uploaded document bytes after ingest extracts and chunks them.
type StorageConfig struct {
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	Bucket    string `yaml:"bucket"`
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
	UseSSL    bool   `yaml:"useSsl"`
}

// EmailConfig controls outbound verification-code delivery.
type EmailConfig struct {
	SMTPHost string `yaml:"smtpHost"`
	SMTPPort int    `yaml:"smtpPort"`
	From     string `yaml:"from"`
	Password string `yaml:"password"`
}

// Load reads configuration from a YAML file and environment variables.
func Load() (*Config, error) {
	cfg := defaultConfig()

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := hydrateFromFile(cfg, path); err != nil {
			return nil, err
		}
	} else if _, err := os.Stat("configs/config.yaml"); err == nil {
		if err := hydrateFromFile(cfg, "configs/config.yaml"); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func hydrateFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("HTTP_ADDRESS"); v != "" {
		cfg.HTTP.Address = v
	}
	if v := os.Getenv("HTTP_READ_TIMEOUT"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			cfg.HTTP.ReadTimeout = parsed
		}
	}
	if v := os.Getenv("HTTP_WRITE_TIMEOUT"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			cfg.HTTP.WriteTimeout = parsed
		}
	}
	if v := os.Getenv("HTTP_ALLOWED_ORIGINS"); v != "" {
		cfg.HTTP.AllowedOrigins = splitAndTrim(v)
	}
	if v := os.Getenv("HTTP_RATE_LIMIT_ENABLED"); v != "" {
		cfg.HTTP.RateLimit.Enabled = v == "1" || strings.EqualFold(v, "true")
	}
	if v := os.Getenv("HTTP_RATE_LIMIT_RPM"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.HTTP.RateLimit.RequestsPerMinute = parsed
		}
	}
	if v := os.Getenv("HTTP_RATE_LIMIT_BURST"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.HTTP.RateLimit.Burst = parsed
		}
	}
	if v := os.Getenv("HTTP_RETRY_ENABLED"); v != "" {
		cfg.HTTP.Retry.Enabled = v == "1" || strings.EqualFold(v, "true")
	}
	if v := os.Getenv("HTTP_RETRY_MAX_ATTEMPTS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.HTTP.Retry.MaxAttempts = parsed
		}
	}
	if v := os.Getenv("HTTP_RETRY_BASE_BACKOFF"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			cfg.HTTP.Retry.BaseBackoff = parsed
		}
	}

	if v := os.Getenv("DATABASE_TYPE"); v != "" {
		cfg.Database.Type = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := os.Getenv("DB_POOL_SIZE"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Database.PoolSize = parsed
		}
	}
	if v := os.Getenv("DB_MAX_OVERFLOW"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Database.MaxOverflow = parsed
		}
	}
	if v := os.Getenv("DB_POOL_TIMEOUT"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			cfg.Database.PoolTimeout = parsed
		} else if seconds, err := strconv.Atoi(v); err == nil {
			cfg.Database.PoolTimeout = time.Duration(seconds) * time.Second
		}
	}
	if v := os.Getenv("DB_POOL_RECYCLE"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			cfg.Database.PoolRecycle = parsed
		} else if seconds, err := strconv.Atoi(v); err == nil {
			cfg.Database.PoolRecycle = time.Duration(seconds) * time.Second
		}
	}
	if v := os.Getenv("DB_ECHO"); v != "" {
		cfg.Database.Echo = v == "1" || strings.EqualFold(v, "true")
	}
	if v := os.Getenv("VECTOR_STORE_DIR"); v != "" {
		cfg.Database.VectorStoreDir = v
	}
	if v := os.Getenv("UPLOAD_TEMP_DIR"); v != "" {
		cfg.Database.UploadTempDir = v
	}

	if v := os.Getenv("LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("LLM_EMBEDDING_MODEL"); v != "" {
		cfg.LLM.EmbeddingModel = v
	}
	if v := os.Getenv("LLM_TEMPERATURE"); v != "" {
		if parsed, err := strconv.ParseFloat(v, 32); err == nil {
			cfg.LLM.Temperature = float32(parsed)
		}
	}

	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := os.Getenv("AUTH_JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := os.Getenv("AUTH_ACCESS_TOKEN_TTL"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			cfg.Auth.AccessTokenTTL = parsed
		}
	}
	if v := os.Getenv("AUTH_REFRESH_TOKEN_TTL"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			cfg.Auth.RefreshTokenTTL = parsed
		}
	}
	if v := os.Getenv("MASTER_ENCRYPTION_KEY"); v != "" {
		cfg.Auth.MasterEncryptionKey = v
	}
	if v := os.Getenv("ENVIRONMENT"); v != "" {
		cfg.Auth.Production = strings.EqualFold(v, "production")
	}

	if v := os.Getenv("STORAGE_ENDPOINT"); v != "" {
		cfg.Storage.Endpoint = v
	}
	if v := os.Getenv("STORAGE_REGION"); v != "" {
		cfg.Storage.Region = v
	}
	if v := os.Getenv("STORAGE_BUCKET"); v != "" {
		cfg.Storage.Bucket = v
	}
	if v := os.Getenv("STORAGE_ACCESS_KEY"); v != "" {
		cfg.Storage.AccessKey = v
	}
	if v := os.Getenv("STORAGE_SECRET_KEY"); v != "" {
		cfg.Storage.SecretKey = v
	}
	if v := os.Getenv("STORAGE_USE_SSL"); v != "" {
		cfg.Storage.UseSSL = v == "1" || strings.EqualFold(v, "true")
	}

	if v := os.Getenv("EMAIL_SMTP_HOST"); v != "" {
		cfg.Email.SMTPHost = v
	}
	if v := os.Getenv("EMAIL_SMTP_PORT"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Email.SMTPPort = parsed
		}
	}
	if v := os.Getenv("EMAIL_FROM"); v != "" {
		cfg.Email.From = v
	}
	if v := os.Getenv("EMAIL_PASSWORD"); v != "" {
		cfg.Email.Password = v
	}
}

func defaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Address: ":8080",
			AllowedOrigins: []string{
				"*",
			},
			RateLimit: RateLimitConfig{
				Enabled:           true,
				RequestsPerMinute: 60,
				Burst:             20,
			},
			Retry: RetryConfig{
				Enabled:     true,
				MaxAttempts: 3,
				BaseBackoff: 150 * time.Millisecond,
				Exclude: []string{
					"/api/v1/auth/login",
					"/api/v1/auth/register",
					"/api/v1/documents/upload",
				},
			},
		},
		Database: DatabaseConfig{
			Type:           "sqlite",
			SQLitePath:     "data/ragcore.db",
			VectorStoreDir: "data/vectors",
			UploadTempDir:  "data/uploads",
			PoolSize:       10,
			MaxOverflow:    5,
			PoolTimeout:    5 * time.Second,
			PoolRecycle:    30 * time.Minute,
		},
		LLM: LLMConfig{
			Model:          "gpt-4o-mini",
			EmbeddingModel: "text-embedding-3-small",
			Temperature:    0.2,
		},
		Auth: AuthConfig{
			AccessTokenTTL:  time.Hour,
			RefreshTokenTTL: 24 * time.Hour,
		},
		Email: EmailConfig{
			SMTPPort: 587,
		},
		Storage: StorageConfig{
			Endpoint: "localhost:9000",
			Region:   "us-east-1",
			Bucket:   "ragcore-documents",
		},
	}
}

// Validate ensures the configuration is safe to use.
func (c *Config) Validate() error {
	if c.HTTP.Address == "" {
		return errors.New("http.address cannot be empty")
	}
	if c.HTTP.RateLimit.Enabled {
		if c.HTTP.RateLimit.RequestsPerMinute <= 0 {
			return errors.New("http.rateLimit.requestsPerMinute must be positive")
		}
		if c.HTTP.RateLimit.Burst <= 0 {
			return errors.New("http.rateLimit.burst must be positive")
		}
	}
	if c.HTTP.Retry.Enabled {
		if c.HTTP.Retry.MaxAttempts <= 0 {
			return errors.New("http.retry.maxAttempts must be positive")
		}
		if c.HTTP.Retry.BaseBackoff <= 0 {
			return errors.New("http.retry.baseBackoff must be positive")
		}
	}
	switch strings.ToLower(c.Database.Type) {
	case "sqlite":
		if c.Database.SQLitePath == "" {
			return errors.New("database.sqlitePath cannot be empty when database.type is sqlite")
		}
	case "postgresql", "postgres":
		if c.Database.URL == "" {
			return errors.New("database.url cannot be empty when database.type is postgresql")
		}
	default:
		return errors.New("database.type must be sqlite or postgresql")
	}
	if c.Database.VectorStoreDir == "" {
		return errors.New("database.vectorStoreDir cannot be empty")
	}
	if c.Database.PoolSize <= 0 {
		return errors.New("database.poolSize must be positive")
	}
	if strings.TrimSpace(c.LLM.EmbeddingModel) == "" {
		return errors.New("llm.embeddingModel cannot be empty")
	}
	if c.Storage.Bucket == "" {
		return errors.New("storage.bucket cannot be empty")
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("auth.jwtSecret cannot be empty")
	}
	if c.Auth.AccessTokenTTL <= 0 {
		return errors.New("auth.accessTokenTtl must be positive")
	}
	if c.Auth.RefreshTokenTTL <= 0 {
		return errors.New("auth.refreshTokenTtl must be positive")
	}
	switch len(c.Auth.MasterEncryptionKey) {
	case 0, 16, 24, 32:
	default:
		return errors.New("auth.masterEncryptionKey must be 16, 24, or 32 bytes")
	}
	return nil
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var result []string
	for _, part := range parts {
		val := strings.TrimSpace(part)
		if val != "" {
			result = append(result, val)
		}
	}
	return result
}
