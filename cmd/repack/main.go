// Package main provides the entry point for the repack repository
// builder CLI.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "repack: %v\n", err)
		os.Exit(1)
	}
}
