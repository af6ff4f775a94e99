package config

import "github.com/spf13/pflag"

// Flags holds the global command-line overrides.
type Flags struct {
	Config  string
	Debug   bool
	Level   string
	LogFile string
	NoColor bool
	FFmpeg  string
	Basisu  string
}

// Register adds the global flags to fs.
func (f *Flags) Register(fs *pflag.FlagSet) {
	fs.StringVar(&f.Config, "config", "", "Path to config file")
	fs.BoolVar(&f.Debug, "debug", false, "Enable debug logging")
	fs.StringVar(&f.Level, "log-level", "", "Log level (debug, info, warn, error)")
	fs.StringVar(&f.LogFile, "log-file", "", "Also write logs to this file")
	fs.BoolVar(&f.NoColor, "no-color", false, "Disable coloured output")
	fs.StringVar(&f.FFmpeg, "ffmpeg", "", "Path to the ffmpeg binary")
	fs.StringVar(&f.Basisu, "basisu", "", "Path to the basisu binary")
}

// apply applies CLI flag overrides to the config.
func (f *Flags) apply(cfg *Config) {
	if f.Level != "" {
		cfg.Logging.Level = f.Level
	}
	if f.Debug {
		cfg.Logging.Level = "debug"
	}
	if f.LogFile != "" {
		cfg.Logging.LogFile = f.LogFile
	}
	if f.NoColor {
		cfg.Logging.NoColor = true
	}
	if f.FFmpeg != "" {
		cfg.Tools.FFmpeg = f.FFmpeg
	}
	if f.Basisu != "" {
		cfg.Tools.Basisu = f.Basisu
	}
}
