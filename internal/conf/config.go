// Package conf loads and validates application settings from config.yaml,
// environment variables (BATMAP_*) and command line flags.
package conf

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"

	"github.com/Demr1on/batmap-app/internal/logger"
)

// EnvPrefix is the prefix for environment overrides, e.g. BATMAP_MODEL_PATH.
const EnvPrefix = "BATMAP"

// Transform engines selectable in PipelineSettings.
const (
	TransformDFT = "dft"
	TransformFFT = "fft"
)

// Model formats selectable in ModelSettings.
const (
	ModelLinear = "linear"
	ModelTFLite = "tflite"
)

// PipelineSettings controls feature extraction.
type PipelineSettings struct {
	Transform string // dft (reference) or fft
	NoiseGate bool   // zero samples below the signal threshold before extraction
}

// ModelSettings selects and locates the classification model.
type ModelSettings struct {
	Type    string   // linear or tflite
	Path    string   // local model file
	URL     string   // http(s) location, used when Path is empty
	Threads int      // inference threads for tflite, 0 = auto
	Labels  []string // label order of the model output, empty = built-in bat labels
}

// QueueSettings controls the classification job scheduler.
type QueueSettings struct {
	YieldDelay time.Duration // pause between consecutive jobs
	MaxPending int           // 0 = unbounded
	Retention  time.Duration // how long finished jobs stay queryable, 0 = forever
}

// WebServerSettings configures the HTTP job API.
type WebServerSettings struct {
	Enabled       bool
	Listen        string  // address:port
	RateLimit     float64 // submissions per second, 0 = unlimited
	Burst         int     // rate limiter burst
	MaxUploadSize int64   // bytes
}

// MQTTSettings contains settings for publishing job results over MQTT.
type MQTTSettings struct {
	Enabled  bool
	Broker   string // tcp://host:port
	Topic    string
	ClientID string
	Username string
	Password string
}

// SentrySettings configures error telemetry.
type SentrySettings struct {
	Enabled bool
	DSN     string
}

// Settings is the root configuration.
type Settings struct {
	Debug     bool
	Log       logger.LoggingConfig
	Pipeline  PipelineSettings
	Model     ModelSettings
	Queue     QueueSettings
	WebServer WebServerSettings
	MQTT      MQTTSettings
	Sentry    SentrySettings
}

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads config.yaml, environment variables and bound flags from the
// global viper instance, validates the result and stores it for GetSettings.
func Load() (*Settings, error) {
	settings, err := LoadFrom(viper.GetViper())
	if err != nil {
		return nil, err
	}

	settingsMutex.Lock()
	settingsInstance = settings
	settingsMutex.Unlock()
	return settings, nil
}

// LoadFrom builds settings from v. A missing config file is not an error;
// defaults and environment apply.
func LoadFrom(v *viper.Viper) (*Settings, error) {
	if err := initViper(v); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}
	return settings, nil
}

func initViper(v *viper.Viper) error {
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, path := range DefaultConfigPaths() {
		v.AddConfigPath(path)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaultConfig(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}
	return nil
}

// DefaultConfigPaths returns the directories searched for config.yaml, in
// priority order.
func DefaultConfigPaths() []string {
	paths := []string{"."}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "batmap"))
	}
	return append(paths, "/etc/batmap")
}

// GetSettings returns the settings stored by the last successful Load.
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}
