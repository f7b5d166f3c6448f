package staging

import (
	"fmt"
	"hash"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/texmill/repack/pkg/repack/collect"
	"github.com/texmill/repack/pkg/repack/digest"
	"github.com/texmill/repack/pkg/repack/logging"
	"github.com/texmill/repack/pkg/repack/pkgmanifest"
	"github.com/texmill/repack/pkg/repack/types"
)

var logger = logging.Get("staging")

// Disassemble rebuilds a staging directory from an unpacked package
// tree and its manifest file: the inverse of packaging. The package id
// is taken from the manifest file name, the manifest's own entry is
// dropped from the run-file list, and every payload file is copied
// below Files/ while its digest is computed. The staging directory
// receives fresh side-car files and a regenerated manifest with no
// packaging timestamp, ready for the next build run to stamp.
func Disassemble(manifestFile, sourceDir, texmfPrefix, stagingDir string, newHash func() hash.Hash) (*types.PackageInfo, error) {
	info, err := pkgmanifest.Read(manifestFile, texmfPrefix)
	if err != nil {
		return nil, err
	}

	id := strings.TrimSuffix(filepath.Base(manifestFile), pkgmanifest.FileSuffix)
	info.ID = id
	info.Path = stagingDir

	// The manifest file lists itself among the run files; the staging
	// copy regenerates it, so the stale entry goes.
	own := strings.ToLower(pkgmanifest.MemberPath(texmfPrefix, id))
	kept := info.RunFiles[:0]
	for _, p := range info.RunFiles {
		if strings.ToLower(p) == own {
			continue
		}
		kept = append(kept, p)
	}
	info.RunFiles = kept

	logger.Info("disassembling", "package", id, "source", sourceDir, "staging", stagingDir)

	table := digest.NewTable()
	for _, list := range [][]string{info.RunFiles, info.DocFiles, info.SourceFiles} {
		for _, p := range list {
			src := filepath.Join(sourceDir, filepath.FromSlash(p))
			dst := filepath.Join(stagingDir, PayloadDir, filepath.FromSlash(p))
			if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
				return nil, fmt.Errorf("disassembling %s: %w", id, err)
			}
			d, _, err := digest.HashFileCopy(src, dst, newHash)
			if err != nil {
				return nil, fmt.Errorf("disassembling %s: %w", id, err)
			}
			table.Put(p, d)
		}
	}
	info.Digest = table.Aggregate(newHash)

	if err := Write(stagingDir, info, table, info.Digest); err != nil {
		return nil, err
	}

	// Re-collect from the copy so sizes and lists reflect what actually
	// landed on disk.
	collected, err := collect.Collect(filepath.Join(stagingDir, PayloadDir), texmfPrefix)
	if err != nil {
		return nil, fmt.Errorf("disassembling %s: %w", id, err)
	}
	info.RunFiles = collected.RunFiles
	info.DocFiles = collected.DocFiles
	info.SourceFiles = collected.SourceFiles
	info.SizeRunFiles = collected.SizeRunFiles
	info.SizeDocFiles = collected.SizeDocFiles
	info.SizeSourceFiles = collected.SizeSourceFiles

	manifestOut := filepath.Join(stagingDir, PayloadDir, filepath.FromSlash(pkgmanifest.MemberPath(texmfPrefix, id)))
	if err := os.MkdirAll(filepath.Dir(manifestOut), 0o755); err != nil {
		return nil, fmt.Errorf("disassembling %s: %w", id, err)
	}
	if err := pkgmanifest.Write(manifestOut, info, time.Time{}); err != nil {
		return nil, err
	}

	return info, nil
}
