package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"
)

// SigningConfig configures manifest signing.
type SigningConfig struct {
	PrivateKeyFile string `mapstructure:"private_key_file"`
	PassphraseFile string `mapstructure:"passphrase_file"`
}

// Config represents the application configuration.
type Config struct {
	Repository   string        `mapstructure:"repository"`
	StagingRoots []string      `mapstructure:"staging_roots"`
	TexmfPrefix  string        `mapstructure:"texmf_prefix"`
	Series       string        `mapstructure:"series"`
	ReleaseState string        `mapstructure:"release_state"`
	DefaultLevel string        `mapstructure:"default_level"`
	PackageList  string        `mapstructure:"package_list"`
	Signing      SigningConfig `mapstructure:"signing"`
	Logging      struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"logging"`
}

// Load loads configuration from file and environment variables.
// Config file locations (in order of precedence):
//   - $XDG_CONFIG_HOME/repack/config.yaml
//   - $HOME/.config/repack/config.yaml
//
// Environment variables are prefixed with REPACK_
// (e.g., REPACK_REPOSITORY).
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
		v.AddConfigPath(filepath.Join(xdgConfigHome, "repack"))
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get user home directory: %w", err)
	}
	v.AddConfigPath(filepath.Join(homeDir, ".config", "repack"))

	v.SetEnvPrefix("REPACK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault("texmf_prefix", DefaultTexmfPrefix)
	v.SetDefault("series", DefaultSeries)
	v.SetDefault("release_state", DefaultReleaseState)
	v.SetDefault("default_level", DefaultLevel)
	v.SetDefault("logging.level", DefaultLogLevel)

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is acceptable; we use defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// ConfigDir returns the configuration directory path.
func ConfigDir() string {
	return filepath.Join(xdg.ConfigHome, "repack")
}

// ExpandPath expands ~ in a path to the user's home directory.
func ExpandPath(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(homeDir, path[1:]), nil
}
