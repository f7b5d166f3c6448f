package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/texmill/repack/pkg/repack/repodb"
)

var createCmd = &cobra.Command{
	Use:   "create [staging-dir]",
	Short: "Add a single staged package to an existing repository",
	Long: `Package one staging directory (the current directory when none is
given) and fold it into an existing repository: the archive is created
or reused and the database is rewritten without pruning, leaving
unrelated packages untouched.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCreate,
}

func init() {
	rootCmd.AddCommand(createCmd)
}

func runCreate(cmd *cobra.Command, args []string) error {
	opts, err := buildOptions()
	if err != nil {
		return err
	}
	if opts.Repository == "" {
		return errNoRepository
	}

	stagingDir := ""
	if len(args) == 1 {
		stagingDir = args[0]
	} else {
		stagingDir, err = os.Getwd()
		if err != nil {
			return err
		}
	}

	b, arc, err := newBuilder(opts)
	if err != nil {
		return err
	}

	db, err := repodb.Load(opts.Repository, opts.Series, arc, opts.Signer)
	if err != nil {
		return err
	}

	return b.CreatePackage(stagingDir, db)
}
