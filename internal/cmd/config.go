package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Race struct {
		CountdownMs       int    `yaml:"countdown_ms"`
		CompletionCeiling string `yaml:"completion_ceiling"`
		TextDifficulty    string `yaml:"text_difficulty"`
	} `yaml:"race"`
	Stream struct {
		Enabled bool   `yaml:"enabled"`
		URL     string `yaml:"url"`
	} `yaml:"stream"`
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func loadConfig(path string) (*Config, error) {
	config := &Config{}

	// The config file is optional; env vars fill in the rest.
	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if config.Race.CountdownMs == 0 {
		config.Race.CountdownMs = getEnvAsInt("RACE_COUNTDOWN_MS", 3000)
	}
	if config.Race.CompletionCeiling == "" {
		config.Race.CompletionCeiling = getEnv("RACE_COMPLETION_CEILING", "10m")
	}
	if config.Race.TextDifficulty == "" {
		config.Race.TextDifficulty = getEnv("RACE_TEXT_DIFFICULTY", "medium")
	}
	if !config.Stream.Enabled {
		config.Stream.Enabled = getEnvAsBool("NATS_ENABLED", false)
	}
	if config.Stream.URL == "" {
		config.Stream.URL = getEnv("NATS_URL", "nats://localhost:4222")
	}

	return config, nil
}

func (c *Config) completionCeiling() (time.Duration, error) {
	d, err := time.ParseDuration(c.Race.CompletionCeiling)
	if err != nil {
		return 0, fmt.Errorf("invalid completion ceiling %q: %w", c.Race.CompletionCeiling, err)
	}
	return d, nil
}
