package builder

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/texmill/repack/pkg/repack/archive"
	"github.com/texmill/repack/pkg/repack/pkgmanifest"
	"github.com/texmill/repack/pkg/repack/repodb"
)

// epoch2000 anchors the repository version number: days elapsed since
// 2000-01-01 00:00 +0100.
const epoch2000 = 946681200

// lastUpdatedCount is how many recently packaged ids the summary
// records.
const lastUpdatedCount = 20

// WriteDatabase writes the three database archives, the flattened file
// index, and the repository summary. With prune set, database sections
// for packages that are gone or excluded are removed first. Each
// database payload is staged as a plain file (or tree) inside the
// repository, archived, and deleted again.
func (b *Builder) WriteDatabase(db *repodb.DB, prune bool) error {
	repo := b.opts.Repository
	if err := os.MkdirAll(repo, 0o755); err != nil {
		return fmt.Errorf("creating repository: %w", err)
	}

	if prune {
		db.Prune(b.packages, b.excluded)
	}

	dbFormat := archive.DBFormat(b.opts.Series)

	// Repository manifest archive.
	manifestPath := filepath.Join(repo, repodb.RepositoryManifestFile)
	if err := db.Write(manifestPath); err != nil {
		return err
	}
	archive1 := filepath.Join(repo, repodb.ArchiveName(repodb.SeriesRepositoryManifest, b.opts.Series))
	if err := b.arc.Create(dbFormat, archive1, repodb.RepositoryManifestFile, repo); err != nil {
		return err
	}
	if err := os.Remove(manifestPath); err != nil {
		return fmt.Errorf("writing database: %w", err)
	}

	// Package manifest tree archive.
	treeDir := filepath.Join(repo, b.opts.TexmfPrefix)
	manifestDir := filepath.Join(repo, filepath.FromSlash(pkgmanifest.Dir(b.opts.TexmfPrefix)))
	if err := os.MkdirAll(manifestDir, 0o755); err != nil {
		return fmt.Errorf("writing database: %w", err)
	}
	if err := b.WriteManifestFiles(manifestDir, db); err != nil {
		return err
	}
	archive2 := filepath.Join(repo, repodb.ArchiveName(repodb.SeriesManifestTree, b.opts.Series))
	if err := b.arc.Create(dbFormat, archive2, b.opts.TexmfPrefix, repo); err != nil {
		return err
	}
	if err := os.RemoveAll(treeDir); err != nil {
		return fmt.Errorf("writing database: %w", err)
	}

	// Combined manifest dump archive.
	dumpPath := filepath.Join(repo, repodb.ManifestDumpFile)
	if err := b.dumpManifests(dumpPath, db); err != nil {
		return err
	}
	archive3 := filepath.Join(repo, repodb.ArchiveName(repodb.SeriesManifestDump, b.opts.Series))
	if err := b.arc.Create(dbFormat, archive3, repodb.ManifestDumpFile, repo); err != nil {
		return err
	}
	if err := os.Remove(dumpPath); err != nil {
		return fmt.Errorf("writing database: %w", err)
	}

	if err := b.writeFileList(); err != nil {
		return err
	}
	if err := b.cleanUp(); err != nil {
		return err
	}
	return b.writeSummary(db)
}

// WriteManifestFiles writes one manifest file per non-excluded package
// into destDir, stamped with the packaging time recorded in the
// database (zero when the database has none).
func (b *Builder) WriteManifestFiles(destDir string, db *repodb.DB) error {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return fmt.Errorf("creating manifest directory: %w", err)
	}

	logger.Info("writing package manifest files", "dir", destDir)

	for _, id := range b.sortedIDs() {
		info := b.packages[id]
		if b.excluded(info) {
			continue
		}
		timePackaged, _ := db.TimePackaged(id)
		manifestFile := filepath.Join(destDir, id+pkgmanifest.FileSuffix)
		if err := pkgmanifest.Write(manifestFile, info, timePackaged); err != nil {
			return err
		}
	}
	return nil
}

// dumpManifests writes the combined manifest dump: every non-excluded
// package's manifest section in one file, signed when a signer is
// configured.
func (b *Builder) dumpManifests(path string, db *repodb.DB) error {
	logger.Info("dumping package manifests", "path", path)

	f := pkgmanifest.NewFile()
	for _, id := range b.sortedIDs() {
		info := b.packages[id]
		if b.excluded(info) {
			continue
		}
		timePackaged, _ := db.TimePackaged(id)
		if err := pkgmanifest.Put(f, info, timePackaged); err != nil {
			return err
		}
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return fmt.Errorf("dumping package manifests: %w", err)
	}
	return repodb.WriteMaybeSigned(path, buf.Bytes(), b.opts.Signer)
}

// writeFileList writes the flattened file index: one sorted
// "path;package" line per payload file, path given without the
// top-level prefix. The plain file is replaced by its lzma-compressed
// sibling.
func (b *Builder) writeFileList() error {
	var lines []string
	for _, id := range b.sortedIDs() {
		info := b.packages[id]
		if b.excluded(info) {
			continue
		}
		for _, list := range [][]string{info.DocFiles, info.RunFiles, info.SourceFiles} {
			for _, f := range list {
				lines = append(lines, strings.TrimPrefix(f, b.opts.TexmfPrefix+"/")+";"+id)
			}
		}
	}
	sort.Strings(lines)

	csvPath := filepath.Join(b.opts.Repository, "files.csv")
	var buf bytes.Buffer
	for _, line := range lines {
		buf.WriteString(line)
		buf.WriteByte('\n')
	}
	if err := os.WriteFile(csvPath, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("writing file index: %w", err)
	}
	return b.arc.Compress(csvPath, archive.TarLzma, csvPath+".lzma")
}

// cleanUp removes package archives in stale formats: a cabinet is
// obsolete once a compressed tar with the same id exists, and a
// bzip2-compressed tar once an lzma-compressed one exists.
func (b *Builder) cleanUp() error {
	entries, err := os.ReadDir(b.opts.Repository)
	if err != nil {
		return fmt.Errorf("cleaning repository: %w", err)
	}

	var obsolete []string
	for _, entry := range entries {
		name := entry.Name()
		switch {
		case strings.HasSuffix(name, ".cab"):
			base := strings.TrimSuffix(name, ".cab")
			if b.repositoryFileExists(base+".tar.bz2") || b.repositoryFileExists(base+".tar.lzma") {
				obsolete = append(obsolete, name)
			}
		case strings.HasSuffix(name, ".tar.bz2"):
			base := strings.TrimSuffix(name, ".tar.bz2")
			if b.repositoryFileExists(base + ".tar.lzma") {
				obsolete = append(obsolete, name)
			}
		}
	}

	for _, name := range obsolete {
		logger.Info("removing stale archive", "file", name)
		if err := os.Remove(filepath.Join(b.opts.Repository, name)); err != nil {
			return fmt.Errorf("cleaning repository: %w", err)
		}
	}
	return nil
}

func (b *Builder) repositoryFileExists(name string) bool {
	_, err := os.Stat(filepath.Join(b.opts.Repository, name))
	return err == nil
}

// writeSummary writes the repository summary file twice: once so the
// file exists with its final size, then again with the listing digest
// computed over the complete repository contents (the summary file
// included).
func (b *Builder) writeSummary(db *repodb.DB) error {
	path := filepath.Join(b.opts.Repository, repodb.SummaryFile)

	days := (b.opts.TimePackaged.Unix() - epoch2000) / (60 * 60 * 24)
	emptyDigest := b.opts.HashNew().Sum(nil)

	summary := repodb.NewSummary()
	summary.Set("date", strconv.FormatInt(b.opts.TimePackaged.Unix(), 10))
	summary.Set("version", strconv.FormatInt(days, 10))
	summary.Set("lstdigest", fmt.Sprintf("%x", emptyDigest))
	summary.Set("numpkg", strconv.Itoa(db.Len()))
	summary.Set("lastupd", strings.Join(b.lastUpdated(db), " "))
	summary.Set("relstate", b.opts.ReleaseState)

	if err := summary.Write(path, b.opts.Signer); err != nil {
		return err
	}

	listingDigest, err := b.listingDigest()
	if err != nil {
		return err
	}
	summary.Set("lstdigest", listingDigest)
	return summary.Write(path, b.opts.Signer)
}

// lastUpdated returns the ids of the most recently packaged packages,
// newest first, capped at lastUpdatedCount. The packaging time comes
// from the database; ties break lexically for stable output.
func (b *Builder) lastUpdated(db *repodb.DB) []string {
	type stamped struct {
		id   string
		when time.Time
	}
	all := make([]stamped, 0, len(b.packages))
	for _, id := range b.sortedIDs() {
		when, _ := db.TimePackaged(id)
		all = append(all, stamped{id: id, when: when})
	}
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].when.After(all[j].when)
	})

	n := lastUpdatedCount
	if n > len(all) {
		n = len(all)
	}
	ids := make([]string, n)
	for i := 0; i < n; i++ {
		ids[i] = all[i].id
	}
	return ids
}

// listingDigest hashes the repository directory listing: sorted
// "name;size" lines, one per entry.
func (b *Builder) listingDigest() (string, error) {
	entries, err := os.ReadDir(b.opts.Repository)
	if err != nil {
		return "", fmt.Errorf("listing repository: %w", err)
	}

	var lines []string
	for _, entry := range entries {
		fi, err := entry.Info()
		if err != nil {
			return "", fmt.Errorf("listing repository: %w", err)
		}
		lines = append(lines, fmt.Sprintf("%s;%d\n", entry.Name(), fi.Size()))
	}
	sort.Strings(lines)

	h := b.opts.HashNew()
	for _, line := range lines {
		h.Write([]byte(line))
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}
