// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

const (
	AppName       = "ditdah"
	ConfigType    = "yaml"
	DefaultConfig = `# Dit-Dah Keying Trainer Configuration

# Timing
wpm: 20                  # Keying speed in words per minute (dit = 1200/wpm ms)
timeout_multiplier: 1.2  # Decode timeout as a multiple of the inter-character gap

# Sidetone
tone_frequency: 600      # Sidetone pitch in Hz
waveform: "sine"         # Oscillator waveform (sine, square, triangle)
ramp_ms: 5               # Attack/release ramp in ms (click suppression)
volume: 0.8              # Master volume (0.0-1.0)

# Audio device
device_index: -1         # -1 for default playback device
sample_rate: 48000       # Audio sample rate in Hz
buffer_size: 512         # Audio buffer size in frames

# Storage
db_path: ""              # Session database path (empty = default under the user config dir)
`
)

// Settings holds all application configuration
type Settings struct {
	// Timing
	WPM               int     `mapstructure:"wpm"`
	TimeoutMultiplier float64 `mapstructure:"timeout_multiplier"`

	// Sidetone
	ToneFrequency float64 `mapstructure:"tone_frequency"`
	Waveform      string  `mapstructure:"waveform"`
	RampMs        int     `mapstructure:"ramp_ms"`
	Volume        float64 `mapstructure:"volume"`

	// Audio device
	DeviceIndex int `mapstructure:"device_index"`
	SampleRate  int `mapstructure:"sample_rate"`
	BufferSize  int `mapstructure:"buffer_size"`

	// Storage
	DBPath string `mapstructure:"db_path"`
}

// Init initializes Viper with defaults and config file.
// Config file search order: current directory, then ~/.config/ditdah/
func Init() error {
	// Set defaults
	viper.SetDefault("wpm", 20)
	viper.SetDefault("timeout_multiplier", 1.2)
	viper.SetDefault("tone_frequency", 600)
	viper.SetDefault("waveform", "sine")
	viper.SetDefault("ramp_ms", 5)
	viper.SetDefault("volume", 0.8)
	viper.SetDefault("device_index", -1)
	viper.SetDefault("sample_rate", 48000)
	viper.SetDefault("buffer_size", 512)
	viper.SetDefault("db_path", "")

	// Support both config.yaml and .config.yaml
	viper.SetConfigType(ConfigType)

	// Priority order: current directory first, then XDG config
	viper.AddConfigPath(".")

	configDir, err := os.UserConfigDir()
	if err != nil {
		configDir = filepath.Join(os.Getenv("HOME"), ".config")
	}
	viper.AddConfigPath(filepath.Join(configDir, AppName))

	// Try .config.yaml first (hidden file), then config.yaml
	viper.SetConfigName(".config")
	if err = viper.ReadInConfig(); err != nil {
		// Try config.yaml as fallback
		viper.SetConfigName("config")
		err = viper.ReadInConfig()
	}

	// Read config file - if not found, create default in XDG config dir
	if err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			// No config found - create default in ~/.config/ditdah/
			xdgConfigPath := filepath.Join(configDir, AppName)
			if err = ensureConfigExists(xdgConfigPath); err != nil {
				return err
			}
			// Read the newly created config
			if err = viper.ReadInConfig(); err != nil {
				return fmt.Errorf("read config: %w", err)
			}
		} else {
			return fmt.Errorf("read config: %w", err)
		}
	}

	return nil
}

func ensureConfigExists(configPath string) error {
	configFile := filepath.Join(configPath, "config.yaml")

	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		if err = os.MkdirAll(configPath, 0755); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
		if err = os.WriteFile(configFile, []byte(DefaultConfig), 0644); err != nil {
			return fmt.Errorf("write default config: %w", err)
		}
	}
	return nil
}

// Get returns the current settings
func Get() (*Settings, error) {
	var s Settings
	if err := viper.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &s, nil
}

// DatabasePath returns the configured db_path, defaulting to
// sessions.db under the user config dir when empty.
func (s *Settings) DatabasePath() string {
	if s.DBPath != "" {
		return s.DBPath
	}
	configDir, err := os.UserConfigDir()
	if err != nil {
		configDir = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return filepath.Join(configDir, AppName, "sessions.db")
}

// Validate checks that all settings are within acceptable ranges
func (s *Settings) Validate() error {
	var errs []error

	// Timing
	if s.WPM < 5 || s.WPM > 60 {
		errs = append(errs, fmt.Errorf("wpm must be between 5 and 60, got %d", s.WPM))
	}
	if s.TimeoutMultiplier < 0.5 || s.TimeoutMultiplier > 3.0 {
		errs = append(errs, fmt.Errorf("timeout_multiplier must be between 0.5 and 3.0, got %v", s.TimeoutMultiplier))
	}

	// Sidetone
	if s.ToneFrequency < 100 || s.ToneFrequency > 3000 {
		errs = append(errs, fmt.Errorf("tone_frequency must be between 100 and 3000 Hz, got %v", s.ToneFrequency))
	}
	validWaveforms := map[string]bool{
		"sine":     true,
		"square":   true,
		"triangle": true,
	}
	if !validWaveforms[s.Waveform] {
		errs = append(errs, fmt.Errorf("waveform must be one of sine, square, triangle, got %q", s.Waveform))
	}
	if s.RampMs < 1 || s.RampMs > 50 {
		errs = append(errs, fmt.Errorf("ramp_ms must be between 1 and 50, got %d", s.RampMs))
	}
	if s.Volume < 0.0 || s.Volume > 1.0 {
		errs = append(errs, fmt.Errorf("volume must be between 0.0 and 1.0, got %v", s.Volume))
	}

	// Audio device
	if s.SampleRate < 8000 || s.SampleRate > 192000 {
		errs = append(errs, fmt.Errorf("sample_rate must be between 8000 and 192000 Hz, got %d", s.SampleRate))
	}
	if s.BufferSize < 64 || s.BufferSize > 8192 {
		errs = append(errs, fmt.Errorf("buffer_size must be between 64 and 8192, got %d", s.BufferSize))
	}
	if s.BufferSize&(s.BufferSize-1) != 0 {
		errs = append(errs, fmt.Errorf("buffer_size should be a power of 2, got %d", s.BufferSize))
	}

	// Nyquist check: tone frequency must be less than half the sample rate
	if s.ToneFrequency >= float64(s.SampleRate)/2 {
		errs = append(errs, fmt.Errorf("tone_frequency (%v Hz) must be less than Nyquist frequency (%v Hz)", s.ToneFrequency, float64(s.SampleRate)/2))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
