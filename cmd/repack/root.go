package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/texmill/repack/pkg/repack/archive"
	"github.com/texmill/repack/pkg/repack/builder"
	"github.com/texmill/repack/pkg/repack/config"
	"github.com/texmill/repack/pkg/repack/logging"
	"github.com/texmill/repack/pkg/repack/sign"
	"github.com/texmill/repack/pkg/repack/types"
)

// errNoRepository is returned by commands that need a repository
// location.
var errNoRepository = errors.New("no repository location was specified")

// startTime stamps freshly built archives; --time-packaged overrides
// it.
var startTime = time.Now()

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "repack",
		Short: "Build and maintain a TeX package repository",
		Long: `Repack turns staged package directories into a package repository:
compressed package archives plus the manifest database, file index,
and summary that installers consume.

Examples:
  repack update -r /srv/repo -R /work/staging      # Full repository update
  repack create -r /srv/repo ./a0poster            # Add one staged package
  repack build-tree -R /work/staging /srv/texmf    # Merged directory structure
  repack disassemble pkg.tpm /srv/texmf ./staging  # Unpacked package -> staging dir`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.config/repack/config.yaml)")
	rootCmd.PersistentFlags().StringP("repository", "r", "", "package repository directory")
	rootCmd.PersistentFlags().StringSliceP("staging-roots", "R", nil, "directories scanned for staging directories")
	rootCmd.PersistentFlags().String("texmf-prefix", "", "top-level payload directory prefix")
	rootCmd.PersistentFlags().String("series", "", "target repository series (major.minor)")
	rootCmd.PersistentFlags().String("release-state", "", "release state recorded in the repository summary")
	rootCmd.PersistentFlags().StringP("package-list", "l", "", "package selection list file")
	rootCmd.PersistentFlags().String("default-level", "", "inclusion level for unlisted packages (S, M, L, T, -)")
	rootCmd.PersistentFlags().String("private-key-file", "", "private key for signing database files")
	rootCmd.PersistentFlags().String("passphrase-file", "", "passphrase for the private key")
	rootCmd.PersistentFlags().Int64("time-packaged", 0, "override the packaging timestamp (unix seconds)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "debug output")

	_ = viper.BindPFlag("repository", rootCmd.PersistentFlags().Lookup("repository"))
	_ = viper.BindPFlag("staging_roots", rootCmd.PersistentFlags().Lookup("staging-roots"))
	_ = viper.BindPFlag("texmf_prefix", rootCmd.PersistentFlags().Lookup("texmf-prefix"))
	_ = viper.BindPFlag("series", rootCmd.PersistentFlags().Lookup("series"))
	_ = viper.BindPFlag("release_state", rootCmd.PersistentFlags().Lookup("release-state"))
	_ = viper.BindPFlag("package_list", rootCmd.PersistentFlags().Lookup("package-list"))
	_ = viper.BindPFlag("default_level", rootCmd.PersistentFlags().Lookup("default-level"))
	_ = viper.BindPFlag("signing.private_key_file", rootCmd.PersistentFlags().Lookup("private-key-file"))
	_ = viper.BindPFlag("signing.passphrase_file", rootCmd.PersistentFlags().Lookup("passphrase-file"))
	_ = viper.BindPFlag("time_packaged", rootCmd.PersistentFlags().Lookup("time-packaged"))
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

// initConfig reads in config file and environment variables.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")

		if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
			viper.AddConfigPath(filepath.Join(xdgConfigHome, "repack"))
		}

		homeDir, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(homeDir, ".config", "repack"))
		}
	}

	viper.SetEnvPrefix("REPACK")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("texmf_prefix", config.DefaultTexmfPrefix)
	viper.SetDefault("series", config.DefaultSeries)
	viper.SetDefault("release_state", config.DefaultReleaseState)
	viper.SetDefault("default_level", config.DefaultLevel)
	viper.SetDefault("logging.level", config.DefaultLogLevel)

	// Read config file (ignore if not found)
	_ = viper.ReadInConfig()

	level := viper.GetString("logging.level")
	if viper.GetBool("verbose") {
		level = "debug"
	}
	logging.Init(level)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// runWarnings collects non-fatal diagnostics for the end-of-run
// report.
var runWarnings []string

// warn reports a non-fatal diagnostic; the run continues.
func warn(msg string) {
	runWarnings = append(runWarnings, msg)
	fmt.Fprintf(os.Stderr, "repack: warning: %s\n", msg)
}

// buildOptions assembles builder options from the effective
// configuration.
func buildOptions() (builder.Options, error) {
	series, err := types.ParseSeries(viper.GetString("series"))
	if err != nil {
		return builder.Options{}, err
	}

	level, err := types.ParseLevel(viper.GetString("default_level"))
	if err != nil {
		return builder.Options{}, err
	}

	specs := map[string]types.PackageSpec{}
	if list := viper.GetString("package_list"); list != "" {
		listPath, err := config.ExpandPath(list)
		if err != nil {
			return builder.Options{}, err
		}
		if err := builder.ReadPackageList(listPath, archive.TarLzma, specs, warn); err != nil {
			return builder.Options{}, err
		}
	}

	signer, err := sign.New(
		viper.GetString("signing.private_key_file"),
		viper.GetString("signing.passphrase_file"))
	if err != nil {
		return builder.Options{}, err
	}

	timePackaged := startTime
	if unix := viper.GetInt64("time_packaged"); unix > 0 {
		timePackaged = time.Unix(unix, 0)
	}

	return builder.Options{
		Repository:   viper.GetString("repository"),
		StagingRoots: viper.GetStringSlice("staging_roots"),
		TexmfPrefix:  viper.GetString("texmf_prefix"),
		DefaultLevel: level,
		Series:       series,
		ReleaseState: viper.GetString("release_state"),
		TimePackaged: timePackaged,
		Specs:        specs,
		Signer:       signer,
		Warn:         warn,
	}, nil
}

// newBuilder wires the archive subsystem and the builder together.
func newBuilder(opts builder.Options) (*builder.Builder, *archive.Subsystem, error) {
	arc, err := archive.New()
	if err != nil {
		return nil, nil, err
	}
	return builder.New(arc, opts), arc, nil
}
