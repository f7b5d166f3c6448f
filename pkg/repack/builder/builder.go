// Package builder orchestrates repository build runs: collecting
// staged packages, categorizing dependencies, creating or reusing
// package archives, and writing the repository database artifacts.
package builder

import (
	"errors"
	"fmt"
	"hash"
	"sort"
	"time"

	"github.com/texmill/repack/pkg/repack/archive"
	"github.com/texmill/repack/pkg/repack/digest"
	"github.com/texmill/repack/pkg/repack/logging"
	"github.com/texmill/repack/pkg/repack/sign"
	"github.com/texmill/repack/pkg/repack/types"
)

var logger = logging.Get("builder")

// Errors fatal to a build run.
var (
	ErrNoStagingDirs       = errors.New("no staging directories were found")
	ErrManifestTreeMissing = errors.New("the package manifest tree archive file does not exist")
	ErrInvalidPackageList  = errors.New("invalid package list file")
	ErrDigestMismatch      = errors.New("bad TDS digest")
	ErrNoStagingRoots      = errors.New("no staging roots were specified")
)

// Options configure a build run. Zero values select the documented
// defaults.
type Options struct {
	// Repository is the package repository directory.
	Repository string

	// StagingRoots are the directories scanned for staging
	// directories.
	StagingRoots []string

	// TexmfPrefix is the top-level directory prefix of package
	// payloads. Defaults to "texmf".
	TexmfPrefix string

	// DefaultLevel applies to packages absent from the selection list.
	// Defaults to the total tier.
	DefaultLevel types.Level

	// DefaultFormat is the archive format for freshly built package
	// archives. Defaults to lzma-compressed tar.
	DefaultFormat archive.Format

	// Series is the target repository series (decides the database
	// archive format).
	Series types.Series

	// ReleaseState is recorded in the repository summary. Defaults to
	// "stable".
	ReleaseState string

	// TimePackaged stamps freshly built archives. Defaults to the
	// construction time of the builder.
	TimePackaged time.Time

	// Specs is the package selection list, keyed by package id.
	Specs map[string]types.PackageSpec

	// Signer signs the database artifacts; nil disables signing.
	Signer *sign.Signer

	// HashNew constructs content hashes. Defaults to the repository
	// digest primitive.
	HashNew func() hash.Hash

	// Warn receives non-fatal diagnostics. Defaults to discarding
	// them.
	Warn func(msg string)
}

// Builder runs repository build operations over a collected package
// table. Operations run strictly sequentially.
type Builder struct {
	opts     Options
	arc      *archive.Subsystem
	packages map[string]*types.PackageInfo
}

// New returns a builder with defaults applied.
func New(arc *archive.Subsystem, opts Options) *Builder {
	if opts.TexmfPrefix == "" {
		opts.TexmfPrefix = "texmf"
	}
	if opts.DefaultLevel == 0 {
		opts.DefaultLevel = types.LevelTotal
	}
	if opts.DefaultFormat == archive.None {
		opts.DefaultFormat = archive.TarLzma
	}
	if opts.ReleaseState == "" {
		opts.ReleaseState = "stable"
	}
	if opts.TimePackaged.IsZero() {
		opts.TimePackaged = time.Now()
	}
	if opts.Specs == nil {
		opts.Specs = map[string]types.PackageSpec{}
	}
	if opts.HashNew == nil {
		opts.HashNew = digest.New
	}
	if opts.Warn == nil {
		opts.Warn = func(string) {}
	}
	return &Builder{opts: opts, arc: arc, packages: map[string]*types.PackageInfo{}}
}

// Packages returns the collected package table.
func (b *Builder) Packages() map[string]*types.PackageInfo {
	return b.packages
}

// level returns the package's inclusion tier: its selection-list entry
// when present, the run default otherwise.
func (b *Builder) level(info *types.PackageInfo) types.Level {
	if spec, ok := b.opts.Specs[info.ID]; ok {
		return spec.Level
	}
	return b.opts.DefaultLevel
}

// excluded reports whether the package is to be ignored for this run.
func (b *Builder) excluded(info *types.PackageInfo) bool {
	return b.level(info) == types.LevelExcluded
}

// archiveFormat returns the archive format for a freshly built package
// archive: the selection-list preference when present, the run default
// otherwise.
func (b *Builder) archiveFormat(info *types.PackageInfo) archive.Format {
	if spec, ok := b.opts.Specs[info.ID]; ok && spec.ArchiveType != "" {
		if f, err := archive.ParseFormat(spec.ArchiveType); err == nil {
			return f
		}
	}
	return b.opts.DefaultFormat
}

// sortedIDs returns the package ids in lexical order so runs process
// packages deterministically.
func (b *Builder) sortedIDs() []string {
	ids := make([]string, 0, len(b.packages))
	for id := range b.packages {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (b *Builder) warnf(format string, args ...interface{}) {
	b.opts.Warn(fmt.Sprintf(format, args...))
}
