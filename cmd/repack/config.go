package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/texmill/repack/pkg/repack/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long: `Manage repack configuration settings.

Configuration is loaded from:
  1. $XDG_CONFIG_HOME/repack/config.yaml (if set)
  2. ~/.config/repack/config.yaml

Environment variables can override config file settings using the REPACK_ prefix:
  REPACK_REPOSITORY=/srv/packages
  REPACK_SERIES=2.9
  REPACK_RELEASE_STATE=next`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the current configuration settings from all sources.`,
	RunE:  runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create default configuration file",
	Long:  `Create a default configuration file if one doesn't exist.`,
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show configuration file path",
	Long:  `Display the path to the configuration file.`,
	RunE:  runConfigPath,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
	rootCmd.AddCommand(configCmd)
}

// runConfigShow displays the current configuration.
func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	if configFile := viper.ConfigFileUsed(); configFile != "" {
		fmt.Printf("Config file: %s\n\n", configFile)
	} else {
		fmt.Println("Config file: (using defaults, no file found)")
		fmt.Println()
	}

	fmt.Println("Current Configuration:")
	fmt.Println("----------------------")
	fmt.Printf("repository:               %s\n", cfg.Repository)
	fmt.Printf("staging_roots:            %v\n", cfg.StagingRoots)
	fmt.Printf("texmf_prefix:             %s\n", cfg.TexmfPrefix)
	fmt.Printf("series:                   %s\n", cfg.Series)
	fmt.Printf("release_state:            %s\n", cfg.ReleaseState)
	fmt.Printf("default_level:            %s\n", cfg.DefaultLevel)
	fmt.Printf("package_list:             %s\n", cfg.PackageList)
	fmt.Printf("signing.private_key_file: %s\n", cfg.Signing.PrivateKeyFile)
	fmt.Printf("signing.passphrase_file:  %s\n", cfg.Signing.PassphraseFile)
	fmt.Printf("logging.level:            %s\n", cfg.Logging.Level)
	return nil
}

// runConfigInit creates a default config file if one doesn't exist.
func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configFilePath()
	if _, err := os.Stat(path); err == nil {
		fmt.Printf("Config file already exists: %s\n", path)
		return nil
	}

	if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(defaultConfigFile), 0o644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	fmt.Printf("Created config file: %s\n", path)
	return nil
}

// runConfigPath prints the configuration file path.
func runConfigPath(cmd *cobra.Command, args []string) error {
	fmt.Println(configFilePath())
	return nil
}

func configFilePath() string {
	return filepath.Join(config.ConfigDir(), "config.yaml")
}

const defaultConfigFile = `# repack configuration

# Package repository directory.
# repository: /srv/packages

# Directories scanned for staging directories.
# staging_roots:
#   - /work/staging

# Top-level payload directory prefix.
texmf_prefix: texmf

# Target repository series (major.minor).
series: "2.9"

# Release state recorded in the repository summary (stable or next).
release_state: stable

# Inclusion level for packages absent from the package list (S, M, L, T, -).
default_level: "T"

# Package selection list file.
# package_list: ~/packages.txt

# Database signing.
# signing:
#   private_key_file: ~/.ssh/repack_ed25519
#   passphrase_file: ~/.ssh/repack_passphrase

logging:
  level: warn
`
