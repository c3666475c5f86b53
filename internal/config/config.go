package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port     string
	Host     string
	Env      string
	LogLevel string

	DBType     string
	DBHost     string
	DBPort     string
	DBName     string
	DBUser     string
	DBPassword string
	DBPath     string

	// Storage configuration
	StorageBackend string // "disk", "memory", "s3"
	StoragePath    string // For disk backend
	S3Endpoint     string // Custom endpoint for S3-compatible services
	S3Region       string
	S3Bucket       string // S3 bucket name (required for s3 backend)
	S3AccessKey    string
	S3SecretKey    string
	S3UsePathStyle bool // Use path-style addressing (required for MinIO/rustfs)

	MaxUploadSize int64

	SessionSecret   string
	SessionDuration string
	BcryptCost      int
	CSRFEnabled     bool

	// Asset admin behaviour
	PageLength        int            // Rows per grid page
	NameMaxAttempts   int            // Upper bound for unique name candidates
	DefaultFolderName string         // Used when "add folder" is submitted without a name
	CategoriesFile    string         // Optional YAML file overriding file type categories
	Location          *time.Location // Day boundaries for created-date filters

	// Bootstrap account, created on startup when the users table is empty.
	AdminUsername string
	AdminEmail    string
	AdminPassword string

	// CORSAllowedOrigins is a list of allowed origins for the JSON API group.
	// If empty, no CORS headers are sent (same-origin only).
	CORSAllowedOrigins []string

	// TrustedProxies lists CIDRs whose X-Real-IP / X-Forwarded-For headers are
	// believed when resolving the client address for rate limiting.
	TrustedProxies []string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:               getEnv("PORT", "8080"),
		Host:               getEnv("HOST", "0.0.0.0"),
		Env:                getEnv("ENV", "development"),
		LogLevel:           getEnv("LOG_LEVEL", ""),
		DBType:             getEnv("DB_TYPE", "sqlite"),
		DBHost:             getEnv("DB_HOST", "localhost"),
		DBPort:             getEnv("DB_PORT", "5432"),
		DBName:             getEnv("DB_NAME", "assetadmin"),
		DBUser:             getEnv("DB_USER", "assetadmin"),
		DBPassword:         getEnv("DB_PASSWORD", ""),
		DBPath:             getEnv("DB_PATH", "./data/assetadmin.db"),
		StorageBackend:     getEnv("STORAGE_BACKEND", "disk"),
		StoragePath:        getEnv("STORAGE_PATH", "./data/assets"),
		S3Endpoint:         getEnv("S3_ENDPOINT", ""),
		S3Region:           getEnv("S3_REGION", "us-east-1"),
		S3Bucket:           getEnv("S3_BUCKET", ""),
		S3AccessKey:        getEnv("S3_ACCESS_KEY", ""),
		S3SecretKey:        getEnv("S3_SECRET_KEY", ""),
		S3UsePathStyle:     getEnvBool("S3_USE_PATH_STYLE", false),
		MaxUploadSize:      getEnvSize("MAX_UPLOAD_SIZE", "500M"),
		SessionSecret:      getEnv("SESSION_SECRET", "change_me_in_production_32_bytes"),
		SessionDuration:    getEnv("SESSION_DURATION", "12h"),
		BcryptCost:         getEnvInt("BCRYPT_COST", 10),
		CSRFEnabled:        getEnvBool("CSRF_ENABLED", true),
		PageLength:         getEnvInt("PAGE_LENGTH", 15),
		NameMaxAttempts:    getEnvInt("NAME_MAX_ATTEMPTS", 1000),
		DefaultFolderName:  getEnv("DEFAULT_FOLDER_NAME", "NewFolder"),
		CategoriesFile:     getEnv("CATEGORIES_FILE", ""),
		AdminUsername:      getEnv("ADMIN_USERNAME", ""),
		AdminEmail:         getEnv("ADMIN_EMAIL", ""),
		AdminPassword:      getEnv("ADMIN_PASSWORD", ""),
		CORSAllowedOrigins: getEnvStringSlice("CORS_ALLOWED_ORIGINS", nil),
		TrustedProxies:     getEnvStringSlice("TRUSTED_PROXIES", nil),
	}

	if cfg.PageLength < 1 {
		cfg.PageLength = 15
	}
	if cfg.NameMaxAttempts < 1 {
		cfg.NameMaxAttempts = 1000
	}

	loc, err := time.LoadLocation(getEnv("TIMEZONE", "UTC"))
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
	}
	cfg.Location = loc

	log.Printf("Config loaded: MaxUploadSize=%d bytes (%.2f MB), PageLength=%d, NameMaxAttempts=%d",
		cfg.MaxUploadSize, float64(cfg.MaxUploadSize)/(1024*1024), cfg.PageLength, cfg.NameMaxAttempts)

	return cfg, nil
}

// DateLocation returns the configured location, or UTC for hand-built configs.
func (c *Config) DateLocation() *time.Location {
	if c.Location == nil {
		return time.UTC
	}
	return c.Location
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

// getEnvStringSlice parses a comma-separated env var into a string slice.
// Empty entries are filtered out. Returns defaultValue if env var is empty.
func getEnvStringSlice(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	if len(result) == 0 {
		return defaultValue
	}
	return result
}

// parseSize converts human-readable sizes (e.g., "10G", "500M", "1K") to bytes
// Supports: B, K/KB, M/MB, G/GB, T/TB (case-insensitive)
func parseSize(sizeStr string) (int64, error) {
	sizeStr = strings.TrimSpace(strings.ToUpper(sizeStr))

	if val, err := strconv.ParseInt(sizeStr, 10, 64); err == nil {
		return val, nil
	}

	units := []struct {
		suffixes   []string
		multiplier int64
	}{
		{[]string{"TB", "T"}, 1024 * 1024 * 1024 * 1024},
		{[]string{"GB", "G"}, 1024 * 1024 * 1024},
		{[]string{"MB", "M"}, 1024 * 1024},
		{[]string{"KB", "K"}, 1024},
		{[]string{"B"}, 1},
	}

	for _, u := range units {
		for _, suffix := range u.suffixes {
			if !strings.HasSuffix(sizeStr, suffix) {
				continue
			}
			numStr := strings.TrimSuffix(sizeStr, suffix)
			val, err := strconv.ParseFloat(numStr, 64)
			if err != nil {
				return 0, fmt.Errorf("invalid size value: %s", sizeStr)
			}
			return int64(val * float64(u.multiplier)), nil
		}
	}

	return 0, fmt.Errorf("invalid size format: %s (use B, K/KB, M/MB, G/GB, T/TB)", sizeStr)
}

// getEnvSize parses size strings like "10G", "500M" or raw bytes
func getEnvSize(key string, defaultValue string) int64 {
	value := getEnv(key, defaultValue)
	size, err := parseSize(value)
	if err != nil {
		log.Printf("getEnvSize: parseSize failed for %s: %v, trying default", value, err)
		if defaultSize, defaultErr := parseSize(defaultValue); defaultErr == nil {
			return defaultSize
		}
		return 0
	}
	return size
}
