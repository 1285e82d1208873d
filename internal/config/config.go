package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port        string   `mapstructure:"PORT"`
	Env         string   `mapstructure:"ENV"`
	DatabaseURL string   `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32    `mapstructure:"DB_MIN_CONNS"`
	RedisURL    string   `mapstructure:"REDIS_URL"`
	CORSOrigins []string `mapstructure:"CORS_ORIGINS"`

	AuthSigningKey string        `mapstructure:"AUTH_SIGNING_KEY"`
	AuthIssuer     string        `mapstructure:"AUTH_ISSUER"`
	AuthTokenTTL   time.Duration `mapstructure:"AUTH_TOKEN_TTL"`

	ModelDir            string `mapstructure:"MODEL_DIR"`
	RiskModelFile       string `mapstructure:"RISK_MODEL_FILE"`
	DepartmentModelFile string `mapstructure:"DEPARTMENT_MODEL_FILE"`
	ModelServerURL      string `mapstructure:"MODEL_SERVER_URL"`
	EmbeddingURL        string `mapstructure:"EMBEDDING_URL"`
	EmbeddingModel      string `mapstructure:"EMBEDDING_MODEL"`

	InferenceTimeout  time.Duration `mapstructure:"INFERENCE_TIMEOUT"`
	RequestTimeout    time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	EmbeddingCacheTTL time.Duration `mapstructure:"EMBEDDING_CACHE_TTL"`

	DepartmentConfidenceFloor float64 `mapstructure:"DEPARTMENT_CONFIDENCE_FLOOR"`
	DefaultDepartment         string  `mapstructure:"DEFAULT_DEPARTMENT"`

	RateLimitRPS   float64 `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int     `mapstructure:"RATE_LIMIT_BURST"`
	BodyLimit      string  `mapstructure:"BODY_LIMIT"`
}

var keys = []string{
	"PORT", "ENV", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS", "REDIS_URL", "CORS_ORIGINS",
	"AUTH_SIGNING_KEY", "AUTH_ISSUER", "AUTH_TOKEN_TTL",
	"MODEL_DIR", "RISK_MODEL_FILE", "DEPARTMENT_MODEL_FILE", "MODEL_SERVER_URL",
	"EMBEDDING_URL", "EMBEDDING_MODEL",
	"INFERENCE_TIMEOUT", "REQUEST_TIMEOUT", "EMBEDDING_CACHE_TTL",
	"DEPARTMENT_CONFIDENCE_FLOOR", "DEFAULT_DEPARTMENT",
	"RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "BODY_LIMIT",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("AUTH_ISSUER", "triage")
	v.SetDefault("AUTH_TOKEN_TTL", "12h")
	v.SetDefault("MODEL_DIR", "./models")
	v.SetDefault("RISK_MODEL_FILE", "risk_model.json")
	v.SetDefault("DEPARTMENT_MODEL_FILE", "department_model.json")
	v.SetDefault("EMBEDDING_MODEL", "paraphrase-multilingual-MiniLM-L12-v2")
	v.SetDefault("INFERENCE_TIMEOUT", "10s")
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("EMBEDDING_CACHE_TTL", "24h")
	v.SetDefault("DEPARTMENT_CONFIDENCE_FLOOR", 0.45)
	v.SetDefault("DEFAULT_DEPARTMENT", "General_Medicine")
	v.SetDefault("RATE_LIMIT_RPS", 10)
	v.SetDefault("RATE_LIMIT_BURST", 20)
	v.SetDefault("BODY_LIMIT", "1M")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if len(cfg.CORSOrigins) == 1 && strings.Contains(cfg.CORSOrigins[0], ",") {
		cfg.CORSOrigins = strings.Split(cfg.CORSOrigins[0], ",")
	}
	if cfg.CORSOrigins == nil {
		if origins := v.GetString("CORS_ORIGINS"); origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func (c *Config) RiskModelPath() string {
	return filepath.Join(c.ModelDir, c.RiskModelFile)
}

func (c *Config) DepartmentModelPath() string {
	return filepath.Join(c.ModelDir, c.DepartmentModelFile)
}

// Validate checks that the configuration is safe to serve traffic with.
// Outside development a signing key of at least 32 bytes is mandatory.
func (c *Config) Validate() error {
	if !c.IsDev() && len(c.AuthSigningKey) < 32 {
		return fmt.Errorf("AUTH_SIGNING_KEY must be at least 32 bytes outside development (ENV=%q)", c.Env)
	}
	if c.AuthSigningKey != "" && len(c.AuthSigningKey) < 32 {
		return fmt.Errorf("AUTH_SIGNING_KEY must be at least 32 bytes, got %d", len(c.AuthSigningKey))
	}
	if c.EmbeddingURL == "" {
		return fmt.Errorf("EMBEDDING_URL is required")
	}
	if c.DepartmentConfidenceFloor < 0 || c.DepartmentConfidenceFloor > 1 {
		return fmt.Errorf("DEPARTMENT_CONFIDENCE_FLOOR must be within [0, 1], got %v", c.DepartmentConfidenceFloor)
	}
	if c.InferenceTimeout <= 0 {
		return fmt.Errorf("INFERENCE_TIMEOUT must be positive")
	}
	if c.RequestTimeout > 0 && c.RequestTimeout < c.InferenceTimeout {
		return fmt.Errorf("REQUEST_TIMEOUT (%s) must not be shorter than INFERENCE_TIMEOUT (%s)", c.RequestTimeout, c.InferenceTimeout)
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) exceeds DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	return nil
}
