package builder

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/texmill/repack/pkg/repack/archive"
	"github.com/texmill/repack/pkg/repack/digest"
	"github.com/texmill/repack/pkg/repack/pkgmanifest"
	"github.com/texmill/repack/pkg/repack/repodb"
	"github.com/texmill/repack/pkg/repack/staging"
	"github.com/texmill/repack/pkg/repack/types"
)

// createArchiveFile ensures the package has an up-to-date archive file
// in the repository and records its size, digest, and packaging time
// on the package record.
//
// An existing archive is reused when the package content is unchanged:
// first against the database record (digest match plus a recorded
// packaging time), then against the manifest extracted from the
// archive itself. Any digest disagreement forces a rebuild. A rebuilt
// archive keeps its old packaging time when the database digest still
// matches; otherwise it is stamped with the run time.
func (b *Builder) createArchiveFile(info *types.PackageInfo, db *repodb.DB) (archive.Format, error) {
	archiveFile, format, exists := archive.DetectPackageArchive(b.opts.Repository, info.ID)

	reuse := false
	if exists {
		if d, ok := db.Digest(info.ID); ok && d.Equal(info.Digest) {
			if t, ok := db.TimePackaged(info.ID); ok {
				info.TimePackaged = t
				reuse = true
			}
		}
		if !reuse {
			existing, err := b.readArchivedManifest(archiveFile, format, info.ID)
			if err != nil {
				return archive.None, err
			}
			if existing.Digest.Equal(info.Digest) {
				info.TimePackaged = existing.TimePackaged
				reuse = true
			} else {
				format = archive.None
			}
		}
	}

	if !reuse {
		format = b.archiveFormat(info)
		ext, err := format.Extension()
		if err != nil {
			return archive.None, err
		}

		logger.Info("creating archive", "package", info.ID, "format", format.Token())

		if err := os.MkdirAll(b.opts.Repository, 0o755); err != nil {
			return archive.None, fmt.Errorf("creating repository: %w", err)
		}

		// Keep the old packaging time when only metadata changed.
		info.TimePackaged = b.opts.TimePackaged
		if d, ok := db.Digest(info.ID); ok && d.Equal(info.Digest) {
			if t, ok := db.TimePackaged(info.ID); ok {
				info.TimePackaged = t
			}
		}

		payloadDir := filepath.Join(info.Path, staging.PayloadDir)
		manifestFile := filepath.Join(payloadDir, filepath.FromSlash(pkgmanifest.MemberPath(b.opts.TexmfPrefix, info.ID)))
		if err := os.MkdirAll(filepath.Dir(manifestFile), 0o755); err != nil {
			return archive.None, fmt.Errorf("creating %s: %w", info.ID, err)
		}
		if err := pkgmanifest.Write(manifestFile, info, info.TimePackaged); err != nil {
			return archive.None, err
		}

		tarFile := filepath.Join(b.opts.Repository, info.ID+".tar")
		archiveFile = filepath.Join(b.opts.Repository, info.ID+ext)

		if err := b.arc.TarInit(tarFile, info.Path); err != nil {
			return archive.None, err
		}
		if _, err := os.Stat(payloadDir); err == nil {
			if err := b.arc.TarAppend(tarFile, b.opts.TexmfPrefix, payloadDir); err != nil {
				return archive.None, err
			}
		}
		if err := b.arc.Compress(tarFile, format, archiveFile); err != nil {
			return archive.None, err
		}
	}

	fi, err := os.Stat(archiveFile)
	if err != nil {
		return archive.None, fmt.Errorf("inspecting archive %s: %w", archiveFile, err)
	}
	info.ArchiveFileSize = fi.Size()

	info.ArchiveFileDigest, err = digest.HashFile(archiveFile, b.opts.HashNew)
	if err != nil {
		return archive.None, err
	}

	if err := os.Chtimes(archiveFile, time.Now(), info.TimePackaged); err != nil {
		return archive.None, fmt.Errorf("touching archive %s: %w", archiveFile, err)
	}

	return format, nil
}

// readArchivedManifest extracts and parses the package's manifest file
// out of an existing archive.
func (b *Builder) readArchivedManifest(archiveFile string, format archive.Format, id string) (*types.PackageInfo, error) {
	tmp, err := os.CreateTemp("", "repack-manifest-*"+pkgmanifest.FileSuffix)
	if err != nil {
		return nil, fmt.Errorf("checking archive %s: %w", archiveFile, err)
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	member := pkgmanifest.MemberPath(b.opts.TexmfPrefix, id)
	if err := b.arc.ExtractSingleFile(archiveFile, format, member, tmpPath); err != nil {
		return nil, err
	}
	return pkgmanifest.Read(tmpPath, b.opts.TexmfPrefix)
}
