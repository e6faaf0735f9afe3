// Package config loads service configuration. Environment variables are the
// primary source; an optional YAML file (MATERIO_CONFIG) fills in anything the
// environment leaves unset.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration
type Config struct {
	Environment       string `yaml:"environment"`
	LogLevel          string `yaml:"log_level"`
	Port              string `yaml:"port"`
	GraphServiceURL   string `yaml:"graph_service_url"`
	ModelDir          string `yaml:"model_dir"`
	RegistryPath      string `yaml:"registry_path"`
	RedisURL          string `yaml:"redis_url"`
	CacheTTLSeconds   int    `yaml:"cache_ttl_seconds"`
	RetrainSchedule   string `yaml:"retrain_schedule"`
	DefaultSampleSize int    `yaml:"default_sample_size"`
}

// LoadConfig loads configuration from the environment, with a YAML file as
// fallback for unset variables
func LoadConfig() (*Config, error) {
	fileCfg, err := loadFile(os.Getenv("MATERIO_CONFIG"))
	if err != nil {
		return nil, err
	}

	config := &Config{
		Environment:       getEnv("ENVIRONMENT", fileCfg.Environment, "development"),
		LogLevel:          getEnv("LOG_LEVEL", fileCfg.LogLevel, "info"),
		Port:              getEnv("PORT", fileCfg.Port, "8080"),
		GraphServiceURL:   getEnv("GRAPH_SERVICE_URL", fileCfg.GraphServiceURL, "http://localhost:8090"),
		ModelDir:          getEnv("MODEL_DIR", fileCfg.ModelDir, "data/models"),
		RegistryPath:      getEnv("REGISTRY_PATH", fileCfg.RegistryPath, "data/registry.db"),
		RedisURL:          getEnv("REDIS_URL", fileCfg.RedisURL, ""),
		CacheTTLSeconds:   getEnvAsInt("CACHE_TTL_SECONDS", fileCfg.CacheTTLSeconds, 300),
		RetrainSchedule:   getEnv("RETRAIN_SCHEDULE", fileCfg.RetrainSchedule, ""),
		DefaultSampleSize: getEnvAsInt("DEFAULT_SAMPLE_SIZE", fileCfg.DefaultSampleSize, 1000),
	}

	if config.DefaultSampleSize <= 0 {
		return nil, fmt.Errorf("DEFAULT_SAMPLE_SIZE must be positive, got %d", config.DefaultSampleSize)
	}

	return config, nil
}

// loadFile parses the YAML config file, returning an empty config when no
// path is set
func loadFile(path string) (*Config, error) {
	if path == "" {
		return &Config{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return &cfg, nil
}

// getEnv returns the environment value, then the file value, then the default
func getEnv(key, fileValue, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	if fileValue != "" {
		return fileValue
	}
	return defaultValue
}

// getEnvAsInt is getEnv for integer settings
func getEnvAsInt(key string, fileValue, defaultValue int) int {
	if valueStr := os.Getenv(key); valueStr != "" {
		if value, err := strconv.Atoi(valueStr); err == nil {
			return value
		}
	}
	if fileValue != 0 {
		return fileValue
	}
	return defaultValue
}
