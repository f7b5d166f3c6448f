// Package output renders the end-of-run report for build operations.
package output

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/texmill/repack/pkg/repack/types"
)

// Result summarizes a build run for display.
type Result struct {
	Operation  string
	Repository string
	Packages   int
	Containers int
	Files      int
	TotalSize  int64
	Duration   time.Duration
	Warnings   []string
}

// Summarize fills package statistics from a collected package table.
func (r *Result) Summarize(packages map[string]*types.PackageInfo) {
	for _, info := range packages {
		if info.IsPureContainer() {
			r.Containers++
			continue
		}
		r.Packages++
		r.Files += info.NumFiles()
		r.TotalSize += info.TotalSize()
	}
}

// Render writes the styled run report.
func Render(w io.Writer, r *Result) error {
	var lines []string

	lines = append(lines, TitleStyle.Render(r.Operation))
	lines = append(lines, field("Repository:", r.Repository))
	lines = append(lines, field("Packages:", fmt.Sprintf("%d (+%d containers)", r.Packages, r.Containers)))
	lines = append(lines, field("Payload:", fmt.Sprintf("%d files, %s",
		r.Files, humanize.IBytes(uint64(r.TotalSize)))))
	lines = append(lines, field("Elapsed:", r.Duration.Round(time.Millisecond).String()))

	report := HeaderBox.Render(strings.Join(lines, "\n"))
	if _, err := fmt.Fprintln(w, report); err != nil {
		return err
	}

	for _, warning := range r.Warnings {
		if _, err := fmt.Fprintln(w, WarningStyle.Render("warning: "+warning)); err != nil {
			return err
		}
	}
	return nil
}

// field renders a labeled value line.
func field(label, value string) string {
	return fmt.Sprintf("%s %s", LabelStyle.Render(label), ValueStyle.Render(value))
}
