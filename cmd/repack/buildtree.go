package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/texmill/repack/pkg/repack/output"
	"github.com/texmill/repack/pkg/repack/repodb"
)

var manifestDir string

var buildTreeCmd = &cobra.Command{
	Use:   "build-tree <dest-dir>",
	Short: "Assemble all staged packages into one directory structure",
	Long: `Copy every staged package's payload into a merged directory structure
below dest-dir, verifying content digests on the way, and write the
manifest database into the tree. With --manifest-dir, standalone
package manifest files are written there as well.`,
	Args: cobra.ExactArgs(1),
	RunE: runBuildTree,
}

func init() {
	buildTreeCmd.Flags().StringVar(&manifestDir, "manifest-dir", "", "also write standalone manifest files here")
	rootCmd.AddCommand(buildTreeCmd)
}

func runBuildTree(cmd *cobra.Command, args []string) error {
	opts, err := buildOptions()
	if err != nil {
		return err
	}

	b, _, err := newBuilder(opts)
	if err != nil {
		return err
	}

	if err := b.CollectPackages(); err != nil {
		return err
	}

	db := repodb.New(opts.Signer)
	if err := b.BuildTree(args[0], manifestDir, db); err != nil {
		return err
	}

	result := &output.Result{
		Operation:  "Tree build",
		Repository: args[0],
		Duration:   time.Since(startTime),
		Warnings:   runWarnings,
	}
	result.Summarize(b.Packages())
	return output.Render(os.Stdout, result)
}
