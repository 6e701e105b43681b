package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port        string   `yaml:"port"`
		JWTSecret   string   `yaml:"jwt_secret"`
		CORSOrigins []string `yaml:"cors_origins"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		// LockTTL bounds how long a submission holds its attempt lock.
		LockTTL  string `yaml:"lock_ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	SQLite struct {
		DSN string `yaml:"dsn"`
	} `yaml:"sqlite"`
	Paper struct {
		TTL string `yaml:"ttl"`
	} `yaml:"paper"`
	Scoring struct {
		// NegativeMarking is the fraction of a question's marks deducted for a wrong option.
		NegativeMarking float64 `yaml:"negative_marking"`
	} `yaml:"scoring"`
	Scheduler struct {
		Rerank      string `yaml:"rerank"`
		ExpirySweep string `yaml:"expiry_sweep"`
		Grace       string `yaml:"grace"`
	} `yaml:"scheduler"`
	Seed struct {
		Path string `yaml:"path"`
	} `yaml:"seed"`
}

// Load reads YAML config from path. JWT_SECRET in the environment overrides the file.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		cfg.Server.JWTSecret = secret
	}
	return cfg, nil
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}

// OrDefault returns raw unless it is empty.
func OrDefault(raw, fallback string) string {
	if raw == "" {
		return fallback
	}
	return raw
}
