package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Storage backends
const (
	BackendDynamoDB = "dynamodb"
	BackendMemory   = "memory"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	ServerAddress string `yaml:"server_address"`
	Environment   string `yaml:"environment"`

	// AWS configuration
	AWSRegion           string `yaml:"aws_region"`
	TableName           string `yaml:"table_name"`
	UserIndexName       string `yaml:"user_index_name"`
	EntityTypeIndexName string `yaml:"entity_type_index_name"`
	EventBusName        string `yaml:"event_bus_name"`

	// Images
	ImageBucket  string        `yaml:"image_bucket"`
	ImageBaseURL string        `yaml:"image_base_url"`
	PresignTTL   time.Duration `yaml:"presign_ttl"`

	// Instruction ordering
	LockTTL         time.Duration `yaml:"lock_ttl"`
	CompactOnDelete bool          `yaml:"compact_on_delete"`

	StorageBackend string `yaml:"storage_backend"`

	// Lambda configuration
	IsLambda bool `yaml:"is_lambda"`

	// Logging
	LogLevel string `yaml:"log_level"`

	// Authentication
	JWTSecret string `yaml:"jwt_secret"`
	JWTIssuer string `yaml:"jwt_issuer"`

	// Feature flags
	EnableMetrics      bool     `yaml:"enable_metrics"`
	EnableTracing      bool     `yaml:"enable_tracing"`
	EnableCORS         bool     `yaml:"enable_cors"`
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
}

// LoadConfig loads configuration from environment variables, then overlays
// the YAML file named by CONFIG_FILE when it is set
func LoadConfig() (*Config, error) {
	cfg := &Config{
		ServerAddress: getEnv("SERVER_ADDRESS", ":8080"),
		Environment:   getEnv("ENVIRONMENT", "development"),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		TableName:           getEnv("TABLE_NAME", "recipes"),
		UserIndexName:       getEnv("USER_INDEX_NAME", "UserItemIndex"),
		EntityTypeIndexName: getEnv("ENTITY_TYPE_INDEX_NAME", "EntityTypeItemIndex"),
		EventBusName:        getEnv("EVENT_BUS_NAME", ""),

		ImageBucket:  getEnv("IMAGE_BUCKET", ""),
		ImageBaseURL: strings.TrimRight(getEnv("IMAGE_BASE_URL", ""), "/"),
		PresignTTL:   getEnvDuration("PRESIGN_TTL", 2*time.Minute),

		LockTTL:         getEnvDuration("LOCK_TTL", 10*time.Second),
		CompactOnDelete: getEnvBool("COMPACT_ON_DELETE", true),

		StorageBackend: getEnv("STORAGE_BACKEND", BackendDynamoDB),
		IsLambda:       getEnvBool("IS_LAMBDA", os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != ""),

		JWTSecret: getEnv("JWT_SECRET", ""),
		JWTIssuer: getEnv("JWT_ISSUER", ""),

		LogLevel:           getEnv("LOG_LEVEL", "info"),
		EnableMetrics:      getEnvBool("ENABLE_METRICS", false),
		EnableTracing:      getEnvBool("ENABLE_TRACING", false),
		EnableCORS:         getEnvBool("ENABLE_CORS", true),
		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.overlayFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// overlayFile replaces the fields the YAML file sets
func (c *Config) overlayFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	c.ImageBaseURL = strings.TrimRight(c.ImageBaseURL, "/")
	return nil
}

// Validate checks if all required configuration is present
func (c *Config) Validate() error {
	switch c.StorageBackend {
	case BackendDynamoDB:
		if c.TableName == "" {
			return fmt.Errorf("TABLE_NAME is required for the dynamodb backend")
		}
	case BackendMemory:
		if c.IsProduction() {
			return fmt.Errorf("the memory backend cannot be used in production")
		}
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q", c.StorageBackend)
	}

	if c.LockTTL <= 0 {
		return fmt.Errorf("LOCK_TTL must be positive")
	}
	if c.PresignTTL <= 0 || c.PresignTTL > 7*24*time.Hour {
		return fmt.Errorf("PRESIGN_TTL must be between 0 and 7 days")
	}

	if c.IsProduction() {
		if !c.IsLambda && c.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is required in production outside Lambda")
		}
		if c.ImageBucket == "" {
			return fmt.Errorf("IMAGE_BUCKET is required in production")
		}
	}
	return nil
}

// IsDevelopment checks if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("10s") or whole seconds ("10")
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs := getEnvInt(key, -1); secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
