// Package config handles volkit configuration loading and management.
package config

import "time"

// Config holds all volkit settings.
type Config struct {
	Logging LoggingConfig `yaml:"logging"`
	Tools   ToolsConfig   `yaml:"tools"`
	Texture TextureConfig `yaml:"texture"`
	Output  OutputConfig  `yaml:"output"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
	NoColor bool   `yaml:"no_color"`
}

// ToolsConfig holds the external tools used for video trimming and
// texture transcoding.
type ToolsConfig struct {
	FFmpeg string `yaml:"ffmpeg"`
	Basisu string `yaml:"basisu"`
	// Timeout is the grace period between interrupt and kill when a
	// conversion is cancelled.
	Timeout time.Duration `yaml:"timeout"`
}

// TextureConfig holds texture resize settings.
type TextureConfig struct {
	MaxSize      int `yaml:"max_size"`
	UASTCQuality int `yaml:"uastc_quality"`
}

// OutputConfig holds output file policy.
type OutputConfig struct {
	DiskHeadroomMB int64 `yaml:"disk_headroom_mb"`
	KeepPartial    bool  `yaml:"keep_partial"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level: "info",
		},
		Tools: ToolsConfig{
			FFmpeg:  "ffmpeg",
			Basisu:  "basisu",
			Timeout: 5 * time.Second,
		},
		Texture: TextureConfig{
			MaxSize:      8192,
			UASTCQuality: 2,
		},
		Output: OutputConfig{
			DiskHeadroomMB: 64,
		},
	}
}
