package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Relay    RelayConfig    `mapstructure:"relay"`
	Model    ModelConfig    `mapstructure:"model"`
	Fallback FallbackConfig `mapstructure:"fallback"`
	Bridge   BridgeConfig   `mapstructure:"bridge"`
}

type RelayConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type ModelConfig struct {
	Name string `mapstructure:"name"`
}

type FallbackConfig struct {
	// PlaceholderEnabled controls the unauthenticated no-credential path:
	// when true a placeholder event is fabricated, when false the user is
	// shown setup guidance instead.
	PlaceholderEnabled bool `mapstructure:"placeholder_enabled"`
}

type BridgeConfig struct {
	AckTimeout  time.Duration `mapstructure:"ack_timeout"`
	RetryDelay  time.Duration `mapstructure:"retry_delay"`
	ReplayGuard time.Duration `mapstructure:"replay_guard"`
}

var defaultConfig = Config{
	Relay: RelayConfig{
		URL:     "https://add-to-calendar-relay.fly.dev",
		Timeout: 30 * time.Second,
	},
	Model: ModelConfig{
		Name: "gemini-2.0-flash",
	},
	Fallback: FallbackConfig{
		PlaceholderEnabled: true,
	},
	Bridge: BridgeConfig{
		AckTimeout:  2 * time.Second,
		RetryDelay:  100 * time.Millisecond,
		ReplayGuard: 5 * time.Second,
	},
}

func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("toml")
	v.SetConfigName("config")

	if configPath == "" {
		configDir, err := getDefaultConfigDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get config directory: %w", err)
		}
		configPath = configDir
	}

	v.AddConfigPath(configPath)
	v.AddConfigPath(".")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			if err := createDefaultConfig(configPath); err != nil {
				return nil, fmt.Errorf("failed to create default config: %w", err)
			}
			if err := v.ReadInConfig(); err != nil {
				// Still unreadable, fall back to defaults
				cfg := defaultConfig
				applyEnvOverrides(&cfg)
				return &cfg, nil
			}
		} else {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyEnvOverrides(&cfg)
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("relay.url", defaultConfig.Relay.URL)
	v.SetDefault("relay.timeout", defaultConfig.Relay.Timeout)

	v.SetDefault("model.name", defaultConfig.Model.Name)

	v.SetDefault("fallback.placeholder_enabled", defaultConfig.Fallback.PlaceholderEnabled)

	v.SetDefault("bridge.ack_timeout", defaultConfig.Bridge.AckTimeout)
	v.SetDefault("bridge.retry_delay", defaultConfig.Bridge.RetryDelay)
	v.SetDefault("bridge.replay_guard", defaultConfig.Bridge.ReplayGuard)
}

func applyEnvOverrides(cfg *Config) {
	if relayURL := os.Getenv("ADDTOCAL_RELAY_URL"); relayURL != "" {
		cfg.Relay.URL = relayURL
	}
	if model := os.Getenv("ADDTOCAL_MODEL"); model != "" {
		cfg.Model.Name = model
	}
	if timeout := os.Getenv("ADDTOCAL_RELAY_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			cfg.Relay.Timeout = d
		}
	}
}

func createDefaultConfig(configPath string) error {
	if err := os.MkdirAll(configPath, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	configFile := filepath.Join(configPath, "config.toml")
	if _, err := os.Stat(configFile); err == nil {
		return nil // Already exists
	}

	configContent := `# add-to-calendar configuration

[relay]
url = "https://add-to-calendar-relay.fly.dev"
timeout = "30s"

[model]
# Used by the local (own-credential) extraction strategy
name = "gemini-2.0-flash"

[fallback]
# When not signed in and no API key is set, fabricate a placeholder event
# instead of showing setup guidance
placeholder_enabled = true

[bridge]
ack_timeout = "2s"
retry_delay = "100ms"
replay_guard = "5s"
`

	if err := os.WriteFile(configFile, []byte(configContent), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func getDefaultConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "add-to-calendar"), nil
}

func GetDefaultConfigDir() (string, error) {
	return getDefaultConfigDir()
}

// GetDefaultDataDir returns where session, salt and usage files live.
func GetDefaultDataDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "add-to-calendar"), nil
}
