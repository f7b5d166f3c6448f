package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/texmill/repack/pkg/repack/output"
	"github.com/texmill/repack/pkg/repack/repodb"
)

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Update the package repository from the staging roots",
	Long: `Collect all staged packages, resolve their dependencies, create or
reuse package archives, and rewrite the repository database. Database
sections for packages that no longer exist are pruned.`,
	Args: cobra.NoArgs,
	RunE: runUpdate,
}

func init() {
	rootCmd.AddCommand(updateCmd)
}

func runUpdate(cmd *cobra.Command, args []string) error {
	opts, err := buildOptions()
	if err != nil {
		return err
	}
	if opts.Repository == "" {
		return errNoRepository
	}

	b, arc, err := newBuilder(opts)
	if err != nil {
		return err
	}

	if err := b.CollectPackages(); err != nil {
		return err
	}
	b.AutoCategorize()

	db, err := repodb.Load(opts.Repository, opts.Series, arc, opts.Signer)
	if err != nil {
		return err
	}

	if err := b.UpdateRepository(db); err != nil {
		return err
	}
	if err := b.WriteDatabase(db, true); err != nil {
		return err
	}

	result := &output.Result{
		Operation:  "Repository update",
		Repository: opts.Repository,
		Duration:   time.Since(startTime),
		Warnings:   runWarnings,
	}
	result.Summarize(b.Packages())
	return output.Render(os.Stdout, result)
}
