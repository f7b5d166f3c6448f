package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/texmill/repack/pkg/repack/digest"
	"github.com/texmill/repack/pkg/repack/staging"
)

var disassembleCmd = &cobra.Command{
	Use:   "disassemble <manifest-file> <source-dir> <staging-dir>",
	Short: "Rebuild a staging directory from an unpacked package",
	Long: `Read a package manifest file and copy the package's payload out of an
unpacked directory tree into a fresh staging directory, regenerating
the staging metadata and digest listing along the way.`,
	Args: cobra.ExactArgs(3),
	RunE: runDisassemble,
}

func init() {
	rootCmd.AddCommand(disassembleCmd)
}

func runDisassemble(cmd *cobra.Command, args []string) error {
	_, err := staging.Disassemble(args[0], args[1], viper.GetString("texmf_prefix"), args[2], digest.New)
	return err
}
