// Copyright (c) 2026 The Mailvault Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads configuration from config.yaml and environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the ingestion service.
type Config struct {
	// Google Cloud
	ProjectID       string
	Bucket          string
	Dataset         string
	Table           string
	TokenSecretName string
	PubSubTopic     string

	// Mailbox
	UserID     string
	MaxResults int64

	// Extraction limits
	MaxBodyBytes      int
	MaxFilenameLength int

	// Watch lifecycle
	WatchRenewBuffer time.Duration

	// Infrastructure
	DatabaseURL string
	RedisURL    string
	Port        int
}

// rawConfig mirrors the YAML structure for unmarshalling.
type rawConfig struct {
	Google struct {
		ProjectID   string `yaml:"project_id"`
		Bucket      string `yaml:"bucket"`
		Dataset     string `yaml:"dataset"`
		Table       string `yaml:"table"`
		TokenSecret string `yaml:"token_secret"`
		PubSubTopic string `yaml:"pubsub_topic"`
	} `yaml:"google"`
	Mailbox struct {
		UserID     string `yaml:"user_id"`
		MaxResults int64  `yaml:"max_results"`
	} `yaml:"mailbox"`
	Database struct {
		URL string `yaml:"url"`
	} `yaml:"database"`
	Redis struct {
		URL string `yaml:"url"`
	} `yaml:"redis"`
}

// Load reads configuration from config.yaml (with env var expansion) and
// environment variables for non-YAML settings.
func Load() (*Config, error) {
	configPath := envOrDefault("CONFIG_PATH", "/app/config/config.yaml")

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("read config file %s: %w", configPath, err)
	}

	// Expand ${VAR} references in the YAML
	expanded := os.ExpandEnv(string(data))

	var raw rawConfig
	if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
		return nil, fmt.Errorf("parse config YAML: %w", err)
	}

	cfg := &Config{
		ProjectID:         raw.Google.ProjectID,
		Bucket:            raw.Google.Bucket,
		Dataset:           firstNonEmpty(raw.Google.Dataset, "email_data"),
		Table:             firstNonEmpty(raw.Google.Table, "gmail_emails"),
		TokenSecretName:   firstNonEmpty(raw.Google.TokenSecret, "gmail-oauth-token"),
		PubSubTopic:       raw.Google.PubSubTopic,
		UserID:            firstNonEmpty(raw.Mailbox.UserID, "me"),
		MaxResults:        raw.Mailbox.MaxResults,
		MaxBodyBytes:      envOrDefaultInt("MAX_BODY_BYTES", 1000000),
		MaxFilenameLength: envOrDefaultInt("MAX_FILENAME_LENGTH", 200),
		WatchRenewBuffer:  envOrDefaultDuration("WATCH_RENEW_BUFFER", 24*time.Hour),
		DatabaseURL:       firstNonEmpty(raw.Database.URL, envOrDefault("DATABASE_URL", "")),
		RedisURL:          firstNonEmpty(raw.Redis.URL, envOrDefault("REDIS_URL", "redis://localhost:6379/0")),
		Port:              envOrDefaultInt("PORT", 8080),
	}

	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 100
	}

	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("google.project_id is required — check config.yaml and environment variables")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("google.bucket is required — attachments need an object-store destination")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrDefaultInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envOrDefaultDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
