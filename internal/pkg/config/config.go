package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type PostgresConfig struct {
	Host     string
	Port     string
	DB       string
	Username string
	Password string
	SSLMode  string
	MaxConns int32
	MinConns int32
}

type RepositoriesConfig struct {
	Postgres PostgresConfig
}

// JWTConfig configures access token issuance.
type JWTConfig struct {
	SecretKey      string
	AccessTokenTTL time.Duration
	Issuer         string
	Audience       string
}

// VisitorConfig controls the anonymous visitor cookie.
type VisitorConfig struct {
	CookieName string
	MaxAge     time.Duration
	Secure     bool
}

type ContentConfig struct {
	RecommendedLimit int
	MaxPageSize      int
}

type ObservabilityConfig struct {
	ServiceName  string
	MetricsAddr  string
	OTLPEndpoint string
	PprofAddr    string
}

// EnrichmentConfig is only read by the seeding command.
type EnrichmentConfig struct {
	GeminiAPIKey      string
	Model             string
	ImageSearchURL    string
	ImagesPerCity     int
	MaxParallelLookup int
}

type Config struct {
	AppName       string
	Environment   string
	LogLevel      string
	Repositories  RepositoriesConfig
	ServerPort    string
	CORSOrigins   []string
	JWT           JWTConfig
	Visitor       VisitorConfig
	Content       ContentConfig
	Observability ObservabilityConfig
	Enrichment    EnrichmentConfig
}

func Load() (*Config, error) {
	cfg := &Config{
		AppName:     getEnvOrDefault("APP_NAME", "Loongo Web APP API"),
		Environment: getEnvOrDefault("APP_ENV", "development"),
		LogLevel:    getEnvOrDefault("LOG_LEVEL", "info"),
		Repositories: RepositoriesConfig{
			Postgres: PostgresConfig{
				Host:     getEnvOrDefault("POSTGRES_HOST", "localhost"),
				Port:     getEnvOrDefault("POSTGRES_PORT", "5454"),
				DB:       getEnvOrDefault("POSTGRES_DB", "loongo"),
				Username: getEnvOrDefault("POSTGRES_USER", "postgres"),
				Password: getEnvOrDefault("POSTGRES_PASSWORD", ""),
				SSLMode:  getEnvOrDefault("POSTGRES_SSLMODE", "disable"),
				MaxConns: int32(getIntOrDefault("POSTGRES_MAX_CONNS", 30)),
				MinConns: int32(getIntOrDefault("POSTGRES_MIN_CONNS", 5)),
			},
		},
		ServerPort:  getEnvOrDefault("SERVER_PORT", "8091"),
		CORSOrigins: splitList(getEnvOrDefault("CORS_ORIGINS", "*")),
		JWT: JWTConfig{
			SecretKey:      getEnvOrDefault("JWT_SECRET_KEY", ""),
			AccessTokenTTL: getDurationOrDefault("JWT_ACCESS_TOKEN_TTL", 30*time.Minute),
			Issuer:         getEnvOrDefault("JWT_ISSUER", "Loongo"),
			Audience:       getEnvOrDefault("JWT_AUDIENCE", "Loongo-app"),
		},
		Visitor: VisitorConfig{
			CookieName: getEnvOrDefault("VISITOR_COOKIE_NAME", "visitor_id"),
			MaxAge:     getDurationOrDefault("VISITOR_COOKIE_MAX_AGE", 30*24*time.Hour),
			Secure:     getBoolOrDefault("VISITOR_COOKIE_SECURE", false),
		},
		Content: ContentConfig{
			RecommendedLimit: getIntOrDefault("RECOMMENDED_CITIES_LIMIT", 5),
			MaxPageSize:      getIntOrDefault("MAX_PAGE_SIZE", 100),
		},
		Observability: ObservabilityConfig{
			ServiceName:  getEnvOrDefault("OTEL_SERVICE_NAME", "loongo-api"),
			MetricsAddr:  getEnvOrDefault("METRICS_ADDR", ":9092"),
			OTLPEndpoint: getEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "otel-collector:4318"),
			PprofAddr:    getEnvOrDefault("PPROF_ADDR", ":6060"),
		},
		Enrichment: EnrichmentConfig{
			GeminiAPIKey:      getEnvOrDefault("GEMINI_API_KEY", ""),
			Model:             getEnvOrDefault("GEMINI_MODEL", "gemini-2.0-flash"),
			ImageSearchURL:    getEnvOrDefault("IMAGE_SEARCH_URL", "https://www.bing.com/images/search"),
			ImagesPerCity:     getIntOrDefault("IMAGES_PER_CITY", 3),
			MaxParallelLookup: getIntOrDefault("ENRICHMENT_PARALLELISM", 4),
		},
	}

	if cfg.Repositories.Postgres.Password == "" {
		return nil, fmt.Errorf("POSTGRES_PASSWORD environment variable is required")
	}
	if cfg.JWT.SecretKey == "" {
		return nil, fmt.Errorf("JWT_SECRET_KEY environment variable is required")
	}

	return cfg, nil
}

// IsProduction reports whether the service runs with production defaults.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		return defaultValue
	}
	return n
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return b
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return defaultValue
	}
	return d
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
