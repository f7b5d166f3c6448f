package builder

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strconv"

	"github.com/texmill/repack/pkg/repack/digest"
	"github.com/texmill/repack/pkg/repack/pkgmanifest"
	"github.com/texmill/repack/pkg/repack/repodb"
	"github.com/texmill/repack/pkg/repack/staging"
	"github.com/texmill/repack/pkg/repack/types"
)

// BuildTree assembles all non-excluded packages into one merged
// directory structure below destDir, verifying each package's content
// digest during the copy, and records every package in the manifest
// database. The database file itself lands inside the tree; when
// manifestDir is non-empty, standalone manifest files are written
// there as well.
func (b *Builder) BuildTree(destDir, manifestDir string, db *repodb.DB) error {
	for _, id := range b.sortedIDs() {
		info := b.packages[id]
		if b.excluded(info) {
			continue
		}

		if err := b.copyPackage(info, destDir); err != nil {
			return err
		}

		db.Put(id, "Level", b.level(info).String())
		db.Put(id, "MD5", info.Digest.String())
		db.Put(id, "TimePackaged", strconv.FormatInt(b.opts.TimePackaged.Unix(), 10))
		db.PutOrDelete(id, "Version", info.Version)
		db.PutOrDelete(id, "TargetSystem", info.TargetSystem)
		db.PutOrDelete(id, "MinTargetSystemVersion", info.MinTargetSystemVersion)
	}

	if manifestDir != "" {
		if err := b.WriteManifestFiles(manifestDir, db); err != nil {
			return err
		}
	}

	dbFile := filepath.Join(destDir, filepath.FromSlash(path.Join(b.opts.TexmfPrefix, "tpm", repodb.RepositoryManifestFile)))
	if err := os.MkdirAll(filepath.Dir(dbFile), 0o755); err != nil {
		return fmt.Errorf("building tree: %w", err)
	}
	return db.Write(dbFile)
}

// copyPackage copies one package's payload into the merged tree,
// writes its manifest file there, and verifies that the copied content
// still matches the recorded digest.
func (b *Builder) copyPackage(info *types.PackageInfo, destDir string) error {
	logger.Info("copying", "package", info.ID)

	manifestFile := filepath.Join(destDir, filepath.FromSlash(pkgmanifest.MemberPath(b.opts.TexmfPrefix, info.ID)))
	if err := os.MkdirAll(filepath.Dir(manifestFile), 0o755); err != nil {
		return fmt.Errorf("copying %s: %w", info.ID, err)
	}
	if err := pkgmanifest.Write(manifestFile, info, b.opts.TimePackaged); err != nil {
		return err
	}

	table := digest.NewTable()
	payloadDir := filepath.Join(info.Path, staging.PayloadDir)
	for _, list := range [][]string{info.RunFiles, info.DocFiles, info.SourceFiles} {
		for _, p := range list {
			src := filepath.Join(payloadDir, filepath.FromSlash(p))
			dst := filepath.Join(destDir, filepath.FromSlash(p))
			if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
				return fmt.Errorf("copying %s: %w", info.ID, err)
			}
			d, _, err := digest.HashFileCopy(src, dst, b.opts.HashNew)
			if err != nil {
				return fmt.Errorf("copying %s: %w", info.ID, err)
			}
			table.Put(p, d)
		}
	}

	if !table.Aggregate(b.opts.HashNew).Equal(info.Digest) {
		return fmt.Errorf("%w (%s)", ErrDigestMismatch, info.ID)
	}
	return nil
}
