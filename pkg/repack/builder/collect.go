package builder

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/texmill/repack/pkg/repack/collect"
	"github.com/texmill/repack/pkg/repack/staging"
	"github.com/texmill/repack/pkg/repack/types"
)

// CollectPackages scans every staging root for staging directories and
// fills the package table. Directories without staging metadata are
// skipped silently, excluded packages are dropped, and duplicate ids
// across roots are reported and ignored (first occurrence wins). A run
// that finds no staging directories at all is an error.
func (b *Builder) CollectPackages() error {
	if len(b.opts.StagingRoots) == 0 {
		return ErrNoStagingRoots
	}
	for _, root := range b.opts.StagingRoots {
		if err := b.collectRoot(root); err != nil {
			return err
		}
	}
	if len(b.packages) == 0 {
		return ErrNoStagingDirs
	}
	return nil
}

// collectRoot collects the staging directories directly below one
// root. An absent root is not an error.
func (b *Builder) collectRoot(root string) error {
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("scanning staging root %s: %w", root, err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dir := filepath.Join(root, entry.Name())
		if !staging.Exists(dir) {
			continue
		}

		info, err := staging.Read(dir)
		if err != nil {
			return err
		}
		if b.excluded(info) {
			continue
		}

		logger.Info("collecting", "package", info.ID)

		if _, ok := b.packages[info.ID]; ok {
			b.warnf("%q already collected", info.ID)
			continue
		}

		if err := b.collectPackage(info); err != nil {
			return err
		}
		b.packages[info.ID] = info
	}
	return nil
}

// collectPackage refreshes the package's classified file lists from
// its payload tree.
func (b *Builder) collectPackage(info *types.PackageInfo) error {
	result, err := collect.Collect(filepath.Join(info.Path, staging.PayloadDir), b.opts.TexmfPrefix)
	if err != nil {
		return fmt.Errorf("collecting %s: %w", info.ID, err)
	}
	info.RunFiles = result.RunFiles
	info.DocFiles = result.DocFiles
	info.SourceFiles = result.SourceFiles
	info.SizeRunFiles = result.SizeRunFiles
	info.SizeDocFiles = result.SizeDocFiles
	info.SizeSourceFiles = result.SizeSourceFiles
	return nil
}
