package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/floodwatch/imagery-pipeline/internal/domain"
)

// Storage backend selectors.
const (
	StorageLocal  = "local"
	StorageS3     = "s3"
	StorageMemory = "memory"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Imagery provider. Either a static token or a client id/secret pair
	// must be present before acquisition can run; Load does not enforce it
	// so the service can still boot for cache/artifact-only use.
	ProcessURL        string
	TokenURL          string
	ClientID          string
	ClientSecret      string
	StaticToken       string
	FetchTimeout      time.Duration // long: provider rendering can be slow
	TokenTimeout      time.Duration // short: token endpoint should be fast
	RetryAttempts     int
	RetryInitialDelay time.Duration

	CacheTTL time.Duration

	StorageBackend string
	ArtifactDir    string
	S3Endpoint     string
	S3AccessKey    string
	S3SecretKey    string
	S3Bucket       string
	S3Region       string

	// Optional result publishing for the downstream plan generator.
	KafkaEnabled     bool
	KafkaBrokers     []string
	KafkaResultTopic string

	Confidence domain.ConfidenceConfig
}

// Load reads configuration from environment variables, applying defaults
// where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	fetchTimeout, err := parseDuration("FETCH_TIMEOUT", "60s")
	if err != nil {
		return nil, err
	}
	tokenTimeout, err := parseDuration("TOKEN_TIMEOUT", "5s")
	if err != nil {
		return nil, err
	}
	retryDelay, err := parseDuration("RETRY_INITIAL_DELAY", "500ms")
	if err != nil {
		return nil, err
	}
	cacheTTL, err := parseDuration("CACHE_TTL", "15m")
	if err != nil {
		return nil, err
	}
	retryAttempts, err := parseInt("RETRY_ATTEMPTS", 3)
	if err != nil {
		return nil, err
	}

	confidence, err := loadConfidence()
	if err != nil {
		return nil, err
	}

	brokers := splitNonEmpty(os.Getenv("KAFKA_BROKERS"))
	kafkaEnabled := len(brokers) > 0
	if v := os.Getenv("KAFKA_ENABLED"); v != "" {
		kafkaEnabled = v == "true"
	}

	cfg := &Config{
		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		ProcessURL:        envOrDefault("SH_PROCESS_URL", "https://sh.dataspace.copernicus.eu/api/v1/process"),
		TokenURL:          envOrDefault("SH_TOKEN_URL", "https://identity.dataspace.copernicus.eu/auth/realms/CDSE/protocol/openid-connect/token"),
		ClientID:          os.Getenv("SH_CLIENT_ID"),
		ClientSecret:      os.Getenv("SH_CLIENT_SECRET"),
		StaticToken:       os.Getenv("SH_STATIC_TOKEN"),
		FetchTimeout:      fetchTimeout,
		TokenTimeout:      tokenTimeout,
		RetryAttempts:     retryAttempts,
		RetryInitialDelay: retryDelay,

		CacheTTL: cacheTTL,

		StorageBackend: envOrDefault("STORAGE_BACKEND", StorageLocal),
		ArtifactDir:    envOrDefault("ARTIFACT_DIR", "data/artifacts"),
		S3Endpoint:     os.Getenv("S3_ENDPOINT"),
		S3AccessKey:    os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey:    os.Getenv("S3_SECRET_KEY"),
		S3Bucket:       envOrDefault("S3_BUCKET", "flood-imagery-artifacts"),
		S3Region:       envOrDefault("S3_REGION", "us-east-1"),

		KafkaEnabled:     kafkaEnabled,
		KafkaBrokers:     brokers,
		KafkaResultTopic: envOrDefault("KAFKA_RESULT_TOPIC", "flood-analysis-results"),

		Confidence: confidence,
	}

	switch cfg.StorageBackend {
	case StorageLocal, StorageMemory:
	case StorageS3:
		if cfg.S3Endpoint == "" || cfg.S3AccessKey == "" || cfg.S3SecretKey == "" {
			return nil, errors.New("STORAGE_BACKEND is s3 but S3_ENDPOINT, S3_ACCESS_KEY or S3_SECRET_KEY is not set")
		}
	default:
		return nil, fmt.Errorf("invalid STORAGE_BACKEND %q", cfg.StorageBackend)
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is not set")
	}
	if cfg.RetryAttempts < 1 {
		return nil, errors.New("RETRY_ATTEMPTS must be at least 1")
	}

	return cfg, nil
}

// HasCredentials reports whether acquisition can authenticate at all.
func (c *Config) HasCredentials() bool {
	return c.StaticToken != "" || (c.ClientID != "" && c.ClientSecret != "")
}

func loadConfidence() (domain.ConfidenceConfig, error) {
	cc := domain.DefaultConfidenceConfig()

	sizeCap, err := parseInt("CONFIDENCE_SIZE_CAP_BYTES", cc.SizeCapBytes)
	if err != nil {
		return cc, err
	}
	polyCap, err := parseInt("CONFIDENCE_POLYGON_CAP", cc.PolygonCap)
	if err != nil {
		return cc, err
	}
	cc.SizeCapBytes = sizeCap
	cc.PolygonCap = polyCap

	for _, w := range []struct {
		env string
		dst *float64
	}{
		{"CONFIDENCE_WEIGHT_SATELLITE", &cc.SatelliteW},
		{"CONFIDENCE_WEIGHT_WEATHER", &cc.WeatherW},
		{"CONFIDENCE_WEIGHT_DOCUMENTS", &cc.DocumentsW},
	} {
		if s := os.Getenv(w.env); s != "" {
			v, err := strconv.ParseFloat(s, 64)
			if err != nil || v < 0 || v > 1 {
				return cc, fmt.Errorf("invalid %s", w.env)
			}
			*w.dst = v
		}
	}
	return cc, nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseDuration(key, def string) (time.Duration, error) {
	s := envOrDefault(key, def)
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}

func splitNonEmpty(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
