// Package types provides the core data model for the repack repository
// builder: package records, inclusion levels, package-selection specs,
// and the repository series number.
package types

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/texmill/repack/pkg/repack/digest"
)

// Level is a package's inclusion tier. It decides whether the package
// is skipped entirely or which install set it belongs to.
type Level byte

// Inclusion tiers, ordered by install-set size.
const (
	LevelExcluded Level = '-'
	LevelSmall    Level = 'S'
	LevelMedium   Level = 'M'
	LevelLarge    Level = 'L'
	LevelTotal    Level = 'T'
)

// ErrInvalidLevel indicates an unrecognized level character.
var ErrInvalidLevel = errors.New("invalid package level")

// ParseLevel parses a single-character level string.
func ParseLevel(s string) (Level, error) {
	if len(s) != 1 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidLevel, s)
	}
	l := Level(s[0])
	switch l {
	case LevelExcluded, LevelSmall, LevelMedium, LevelLarge, LevelTotal:
		return l, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidLevel, s)
}

// String returns the single-character representation.
func (l Level) String() string {
	return string(byte(l))
}

// PackageSpec is one entry of the external package-selection list.
// Entries are immutable once loaded and keyed by package id; the first
// occurrence of an id wins.
type PackageSpec struct {
	// ID is the package id.
	ID string

	// Level is the inclusion tier assigned by the list.
	Level Level

	// ArchiveType is the optional preferred archive format token
	// ("MSCab", "TarBzip2", "TarLzma"). Empty means the run default.
	ArchiveType string
}

// Series identifies the target repository series (major.minor). The
// series decides the database archive format: pre-2.7 repositories
// retain bzip2-compressed tars.
type Series struct {
	Major int
	Minor int
}

// ErrInvalidSeries indicates a malformed series string.
var ErrInvalidSeries = errors.New("invalid series")

// ParseSeries parses a "major.minor" series string.
func ParseSeries(s string) (Series, error) {
	parts := strings.Split(strings.TrimSpace(s), ".")
	if len(parts) != 2 {
		return Series{}, fmt.Errorf("%w: %q", ErrInvalidSeries, s)
	}
	major, err := strconv.Atoi(parts[0])
	if err != nil || major < 0 {
		return Series{}, fmt.Errorf("%w: %q", ErrInvalidSeries, s)
	}
	minor, err := strconv.Atoi(parts[1])
	if err != nil || minor < 0 {
		return Series{}, fmt.Errorf("%w: %q", ErrInvalidSeries, s)
	}
	return Series{Major: major, Minor: minor}, nil
}

// String returns the "major.minor" form.
func (s Series) String() string {
	return fmt.Sprintf("%d.%d", s.Major, s.Minor)
}

// Before reports whether s precedes other.
func (s Series) Before(other Series) bool {
	if s.Major != other.Major {
		return s.Major < other.Major
	}
	return s.Minor < other.Minor
}

// PackageInfo is the canonical package record. It is created empty by
// the collector, populated by classification, persisted into a package
// manifest file, and mutated in place by the builder as archive
// metadata becomes known.
type PackageInfo struct {
	// ID is the package id (unique within a repository).
	ID string

	// DisplayName is the human-readable package name.
	DisplayName string

	// Creator names whoever assembled the staging directory.
	Creator string

	// Title is a one-line package title.
	Title string

	// Version is the upstream package version (may be empty).
	Version string

	// TargetSystem restricts the package to a platform (may be empty).
	TargetSystem string

	// MinTargetSystemVersion is the minimum supported platform
	// version (may be empty).
	MinTargetSystemVersion string

	// CtanPath is the package's provenance path on CTAN.
	CtanPath string

	// CopyrightOwner and CopyrightYear record provenance.
	CopyrightOwner string
	CopyrightYear  string

	// LicenseType names the license.
	LicenseType string

	// Description is free-text, taken verbatim from the staging
	// directory's Description file.
	Description string

	// RequiredPackages are outgoing dependency edges; RequiredBy are
	// incoming edges. Both are mutable during auto-categorization.
	RequiredPackages []string
	RequiredBy       []string

	// RunFiles, DocFiles, and SourceFiles partition all files under
	// the package root, with cumulative byte sizes per class.
	RunFiles        []string
	DocFiles        []string
	SourceFiles     []string
	SizeRunFiles    int64
	SizeDocFiles    int64
	SizeSourceFiles int64

	// Digest is the aggregate content digest over the three file
	// lists (the TDS digest).
	Digest digest.Digest

	// TimePackaged is when the package archive was stamped.
	TimePackaged time.Time

	// ArchiveFileSize and ArchiveFileDigest describe the package's
	// archive file in the repository.
	ArchiveFileSize   int64
	ArchiveFileDigest digest.Digest

	// Path is the package's source directory (the staging directory
	// during a build run).
	Path string
}

// NumFiles returns the total number of classified files.
func (p *PackageInfo) NumFiles() int {
	return len(p.RunFiles) + len(p.DocFiles) + len(p.SourceFiles)
}

// TotalSize returns the cumulative byte size over all three classes.
func (p *PackageInfo) TotalSize() int64 {
	return p.SizeRunFiles + p.SizeDocFiles + p.SizeSourceFiles
}

// IsPureContainer reports whether the package carries no payload of
// its own: no doc or source files, and at most its own package
// manifest file among the run files. Container packages exist only to
// group other packages under a dependency parent.
func (p *PackageInfo) IsPureContainer() bool {
	if len(p.DocFiles)+len(p.SourceFiles) > 0 {
		return false
	}
	switch len(p.RunFiles) {
	case 0:
		return true
	case 1:
		return strings.HasSuffix(strings.ToLower(p.RunFiles[0]), digest.ManifestFileSuffix)
	}
	return false
}
