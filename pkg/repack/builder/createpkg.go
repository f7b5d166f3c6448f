package builder

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/texmill/repack/pkg/repack/archive"
	"github.com/texmill/repack/pkg/repack/pkgmanifest"
	"github.com/texmill/repack/pkg/repack/repodb"
	"github.com/texmill/repack/pkg/repack/staging"
	"github.com/texmill/repack/pkg/repack/types"
)

// CreatePackage adds or refreshes a single staged package in an
// existing repository. The current package set is reconstructed from
// the manifest tree archive, the staging directory's package replaces
// its entry, and the repository is updated and rewritten without
// pruning, so unrelated sections survive untouched.
func (b *Builder) CreatePackage(stagingDir string, db *repodb.DB) error {
	packages, err := b.loadPackageManifests()
	if err != nil {
		return err
	}
	b.packages = packages

	logger.Info("reading staging directory", "dir", stagingDir)

	info, err := staging.Read(stagingDir)
	if err != nil {
		return err
	}
	if err := b.collectPackage(info); err != nil {
		return err
	}
	b.packages[info.ID] = info

	if err := b.UpdateRepository(db); err != nil {
		return err
	}
	return b.WriteDatabase(db, false)
}

// loadPackageManifests reconstructs the package table from the
// repository's manifest tree archive.
func (b *Builder) loadPackageManifests() (map[string]*types.PackageInfo, error) {
	archivePath := filepath.Join(b.opts.Repository, repodb.ArchiveName(repodb.SeriesManifestTree, b.opts.Series))
	if _, err := os.Stat(archivePath); err != nil {
		if os.IsNotExist(err) {
			return nil, ErrManifestTreeMissing
		}
		return nil, fmt.Errorf("loading package manifests: %w", err)
	}

	tempDir, err := os.MkdirTemp("", "repack-manifests-")
	if err != nil {
		return nil, fmt.Errorf("loading package manifests: %w", err)
	}
	defer os.RemoveAll(tempDir)

	if err := b.arc.Extract(archivePath, archive.DBFormat(b.opts.Series), tempDir); err != nil {
		return nil, err
	}

	manifestDir := filepath.Join(tempDir, filepath.FromSlash(pkgmanifest.Dir(b.opts.TexmfPrefix)))
	entries, err := os.ReadDir(manifestDir)
	if err != nil {
		return nil, fmt.Errorf("loading package manifests: %w", err)
	}

	packages := make(map[string]*types.PackageInfo, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, pkgmanifest.FileSuffix) {
			continue
		}
		info, err := pkgmanifest.Read(filepath.Join(manifestDir, name), b.opts.TexmfPrefix)
		if err != nil {
			return nil, err
		}
		info.ID = strings.TrimSuffix(name, pkgmanifest.FileSuffix)
		packages[info.ID] = info
	}

	logger.Debug("loaded package manifests", "count", len(packages))
	return packages, nil
}
