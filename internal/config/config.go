package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Image modes understood by the attachment normalizer.
const (
	ImageModeInline    = "inline"
	ImageModeCacheFile = "cache-file"
)

// Database drivers the sandbox can open.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Client holds the settings used by the submission client and the CLI.
type Client struct {
	APIBaseURL    string
	APIToken      string
	ImageMode     string
	ImageCacheDir string
	HTTPTimeout   time.Duration
	PreferIPv4    bool
	LogLevel      string
}

// Sandbox holds the settings of the local backend server.
type Sandbox struct {
	ListenAddr      string
	DatabaseDriver  string
	DatabaseDSN     string
	RedisAddr       string
	JWTSecret       string
	JWTAudience     string
	CORSOrigins     []string
	ListCacheTTL    time.Duration
	ShutdownTimeout time.Duration
	LogLevel        string
}

// LoadDotEnv reads variables from the given .env files (or ./.env) into the
// process environment. A missing file is not an error.
func LoadDotEnv(files ...string) error {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

// LoadClient reads the client configuration from the environment.
func LoadClient() (Client, error) {
	cfg := Client{
		APIBaseURL:    strings.TrimRight(getEnv("API_BASE_URL", "http://localhost:8080"), "/"),
		APIToken:      strings.TrimSpace(os.Getenv("API_TOKEN")),
		ImageMode:     strings.ToLower(getEnv("IMAGE_MODE", ImageModeCacheFile)),
		ImageCacheDir: getEnv("IMAGE_CACHE_DIR", os.TempDir()),
		HTTPTimeout:   time.Duration(getEnvInt("HTTP_TIMEOUT_SECONDS", 60)) * time.Second,
		PreferIPv4:    getEnvBool("PREFER_IPV4", false),
		LogLevel:      strings.ToLower(getEnv("LOG_LEVEL", "info")),
	}

	switch cfg.ImageMode {
	case ImageModeInline, ImageModeCacheFile:
	default:
		return Client{}, fmt.Errorf("IMAGE_MODE must be %q or %q, got %q", ImageModeInline, ImageModeCacheFile, cfg.ImageMode)
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 60 * time.Second
	}
	return cfg, nil
}

// LoadSandbox reads the sandbox server configuration from the environment.
func LoadSandbox() (Sandbox, error) {
	cfg := Sandbox{
		ListenAddr:      getEnv("LISTEN_ADDR", ":8080"),
		DatabaseDriver:  strings.ToLower(getEnv("DATABASE_DRIVER", DriverPostgres)),
		DatabaseDSN:     getEnv("DATABASE_DSN", "host=postgres user=postgres password=postgres dbname=atendimento port=5432 sslmode=disable"),
		RedisAddr:       getEnv("REDIS_ADDR", "redis:6379"),
		JWTSecret:       strings.TrimSpace(os.Getenv("JWT_SECRET")),
		JWTAudience:     strings.TrimSpace(os.Getenv("JWT_AUDIENCE")),
		CORSOrigins:     splitList(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		ListCacheTTL:    time.Duration(getEnvInt("LIST_CACHE_TTL_SECONDS", 60)) * time.Second,
		ShutdownTimeout: time.Duration(getEnvInt("SHUTDOWN_TIMEOUT_SECONDS", 15)) * time.Second,
		LogLevel:        strings.ToLower(getEnv("LOG_LEVEL", "info")),
	}

	if cfg.JWTSecret == "" {
		return Sandbox{}, errors.New("JWT_SECRET is required")
	}
	if len(cfg.CORSOrigins) == 0 {
		return Sandbox{}, errors.New("CORS_ALLOWED_ORIGINS must list at least one origin or \"*\"")
	}
	switch cfg.DatabaseDriver {
	case DriverPostgres, DriverSQLite:
	default:
		return Sandbox{}, fmt.Errorf("DATABASE_DRIVER must be %q or %q, got %q", DriverPostgres, DriverSQLite, cfg.DatabaseDriver)
	}
	if cfg.ListCacheTTL <= 0 {
		cfg.ListCacheTTL = time.Minute
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 15 * time.Second
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func splitList(value string) []string {
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
