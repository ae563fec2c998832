package dto

import "time"

// FileConfig is the YAML configuration file of the sessiondb CLI.
// It uses "mapstructure" tags so durations can be decoded from strings like "14d".
type FileConfig struct {
	Store  StoreConfig  `json:"store" mapstructure:"store"`
	Log    LogConfig    `json:"log" mapstructure:"log"`
	Server ServerConfig `json:"server" mapstructure:"server"`
}

type StoreConfig struct {
	DefaultExpiry         time.Duration `json:"default_expiry" mapstructure:"default_expiry"`
	InMemoryOnly          bool          `json:"in_memory_only" mapstructure:"in_memory_only"`
	Filename              string        `json:"filename" mapstructure:"filename"`
	RedisURL              string        `json:"redis_url" mapstructure:"redis_url"`
	RedisPrefix           string        `json:"redis_prefix" mapstructure:"redis_prefix"`
	AutoCompactInterval   time.Duration `json:"autocompact_interval" mapstructure:"autocompact_interval"`
	CorruptAlertThreshold *float64      `json:"corrupt_alert_threshold" mapstructure:"corrupt_alert_threshold"`

	// Payload hooks (durable datafile only)
	Compression bool             `json:"compression" mapstructure:"compression"`
	Encryption  EncryptionConfig `json:"encryption" mapstructure:"encryption"`
}

// EncryptionConfig carries base64 encoded AES-256 keys.
type EncryptionConfig struct {
	ActiveKey    string   `json:"active_key" mapstructure:"active_key"`
	FallbackKeys []string `json:"fallback_keys" mapstructure:"fallback_keys"`
}

type LogConfig struct {
	Level      string `json:"level" mapstructure:"level"`
	File       string `json:"file" mapstructure:"file"`
	MaxSizeMB  int    `json:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `json:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int    `json:"max_age_days" mapstructure:"max_age_days"`
	Compress   bool   `json:"compress" mapstructure:"compress"`
	JSON       bool   `json:"json" mapstructure:"json"`
}

type ServerConfig struct {
	Addr string `json:"addr" mapstructure:"addr"`
}
