package repodb

import (
	"bytes"
	"fmt"

	"gopkg.in/ini.v1"

	"github.com/texmill/repack/pkg/repack/sign"
)

// summarySection is the single section of the repository summary file.
const summarySection = "repository"

// Summary is the repository summary being assembled: a flat key/value
// record under one section, written to the repository root. It is
// written twice per run because its listing digest covers the summary
// file itself.
type Summary struct {
	file *ini.File
}

// NewSummary returns an empty summary.
func NewSummary() *Summary {
	return &Summary{file: ini.Empty()}
}

// Set records a summary value, replacing any previous one.
func (s *Summary) Set(key, value string) {
	s.file.Section(summarySection).Key(key).SetValue(value)
}

// Get returns a recorded summary value.
func (s *Summary) Get(key string) string {
	return s.file.Section(summarySection).Key(key).String()
}

// Write serializes the summary to path, signed when a signer is given.
func (s *Summary) Write(path string, signer *sign.Signer) error {
	var buf bytes.Buffer
	if _, err := s.file.WriteTo(&buf); err != nil {
		return fmt.Errorf("serializing repository summary: %w", err)
	}
	return WriteMaybeSigned(path, buf.Bytes(), signer)
}
