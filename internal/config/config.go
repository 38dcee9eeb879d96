/**
 * Configuration for the page-code scan worker
 *
 * Loads configuration from environment variables matching .env.campx
 */

package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds worker configuration
type Config struct {
	// Redis configuration (job queue + progress channel)
	RedisURL        string
	ProgressChannel string

	// PostgreSQL configuration
	DatabaseURL string

	// Expected-structure document
	StructurePath string

	// Scale ladder bounds
	MinScale     float64
	InitialScale float64
	MaxScale     float64
	ScaleStep    float64
	DetectScale  float64
	Rotation     bool

	// Worker configuration
	WorkerConcurrency int // concurrent file jobs
	PageWorkers       int // page fan-out within one file
	MaxFileSize       int64
	ProcessingTimeout int // per-file timeout in milliseconds

	// OCR recovery tier for incomplete pages
	OCRRecovery bool

	// CSV batch log output directory
	CSVOutputDir string

	// Manual review service (optional)
	ReviewServiceURL string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		RedisURL:          getEnvOrDefault("REDIS_URL", "redis://campx-redis:6379"),
		ProgressChannel:   getEnvOrDefault("PROGRESS_CHANNEL", "pagescan:progress"),
		DatabaseURL:       getEnvOrThrow("DATABASE_URL"),
		StructurePath:     getEnvOrDefault("STRUCTURE_PATH", "/etc/campx/structure.json"),
		MinScale:          getEnvAsFloatOrDefault("MIN_SCALE", 1.0),
		InitialScale:      getEnvAsFloatOrDefault("INITIAL_SCALE", 2.0),
		MaxScale:          getEnvAsFloatOrDefault("MAX_SCALE", 9.0),
		ScaleStep:         getEnvAsFloatOrDefault("SCALE_STEP", 1.5),
		DetectScale:       getEnvAsFloatOrDefault("DETECT_SCALE", 1.0),
		Rotation:          getEnvAsBoolOrDefault("ROTATION_FALLBACK", true),
		WorkerConcurrency: getEnvAsIntOrDefault("WORKER_CONCURRENCY", 2),
		PageWorkers:       getEnvAsIntOrDefault("PAGE_WORKERS", 4),
		MaxFileSize:       getEnvAsInt64OrDefault("MAX_FILE_SIZE", 536870912), // 512MB
		ProcessingTimeout: getEnvAsIntOrDefault("PROCESSING_TIMEOUT", 600000), // 10 minutes
		OCRRecovery:       getEnvAsBoolOrDefault("OCR_RECOVERY", false),
		CSVOutputDir:      getEnvOrDefault("CSV_OUTPUT_DIR", "/var/lib/pagescan/results"),
		ReviewServiceURL:  getEnvOrDefault("REVIEW_SERVICE_URL", ""),
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if c.RedisURL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.MinScale <= 0 {
		return fmt.Errorf("MIN_SCALE must be positive, got %f", c.MinScale)
	}

	if c.InitialScale < c.MinScale {
		return fmt.Errorf("INITIAL_SCALE must be >= MIN_SCALE, got %f < %f", c.InitialScale, c.MinScale)
	}

	if c.MaxScale < c.InitialScale {
		return fmt.Errorf("MAX_SCALE must be >= INITIAL_SCALE, got %f < %f", c.MaxScale, c.InitialScale)
	}

	if c.MaxScale > 16.0 {
		return fmt.Errorf("MAX_SCALE must be <= 16.0, got %f", c.MaxScale)
	}

	if c.ScaleStep <= 0 {
		return fmt.Errorf("SCALE_STEP must be positive, got %f", c.ScaleStep)
	}

	if c.DetectScale <= 0 {
		return fmt.Errorf("DETECT_SCALE must be positive, got %f", c.DetectScale)
	}

	if c.WorkerConcurrency < 1 || c.WorkerConcurrency > 32 {
		return fmt.Errorf("WORKER_CONCURRENCY must be between 1 and 32, got %d", c.WorkerConcurrency)
	}

	if c.PageWorkers < 1 || c.PageWorkers > 64 {
		return fmt.Errorf("PAGE_WORKERS must be between 1 and 64, got %d", c.PageWorkers)
	}

	if c.MaxFileSize < 1024 || c.MaxFileSize > 10737418240 { // 1KB to 10GB
		return fmt.Errorf("MAX_FILE_SIZE must be between 1KB and 10GB, got %d", c.MaxFileSize)
	}

	return nil
}

// getEnvOrDefault gets environment variable or returns default
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvOrThrow gets environment variable or panics when unset
func getEnvOrThrow(key string) string {
	value := os.Getenv(key)
	if value == "" {
		panic(fmt.Sprintf("Required environment variable %s is not set", key))
	}
	return value
}

// getEnvAsIntOrDefault gets environment variable as int or returns default
func getEnvAsIntOrDefault(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

// getEnvAsInt64OrDefault gets environment variable as int64 or returns default
func getEnvAsInt64OrDefault(key string, defaultValue int64) int64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

// getEnvAsFloatOrDefault gets environment variable as float64 or returns default
func getEnvAsFloatOrDefault(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

// getEnvAsBoolOrDefault gets environment variable as bool or returns default
func getEnvAsBoolOrDefault(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}
