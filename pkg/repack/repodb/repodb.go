// Package repodb maintains the repository manifest database: one
// section per package id, each a flat key/value map, persisted as a
// structured text file inside a compressed archive and optionally
// signed.
package repodb

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/ini.v1"

	"github.com/texmill/repack/pkg/repack/archive"
	"github.com/texmill/repack/pkg/repack/digest"
	"github.com/texmill/repack/pkg/repack/logging"
	"github.com/texmill/repack/pkg/repack/sign"
	"github.com/texmill/repack/pkg/repack/types"
)

var logger = logging.Get("repodb")

func init() {
	// Repository files use key=value without padding.
	ini.PrettyFormat = false
}

// Database archive series ids. Each repository carries three archives
// whose names encode the series id and the target major.minor version.
const (
	SeriesRepositoryManifest = 1
	SeriesManifestTree       = 2
	SeriesManifestDump       = 3
)

// Well-known file names inside the database archives and repository.
const (
	RepositoryManifestFile = "repo.ini"
	ManifestDumpFile       = "package-manifests.ini"
	SummaryFile            = "pr.ini"
)

// ErrManifestArchiveMissing indicates that the repository manifest
// archive does not exist; an update run cannot proceed without it.
var ErrManifestArchiveMissing = errors.New("the repository manifest archive file does not exist")

// ArchiveName returns the database archive file name for a series id
// and target version, e.g. "repodb1-2.9.tar.lzma".
func ArchiveName(dbSeries int, series types.Series) string {
	ext, _ := archive.DBFormat(series).Extension()
	return fmt.Sprintf("repodb%d-%s%s", dbSeries, series, ext)
}

// DB is the in-memory repository manifest database.
type DB struct {
	file   *ini.File
	signer *sign.Signer
}

// New returns an empty database. A nil signer writes plain output.
func New(signer *sign.Signer) *DB {
	return &DB{file: ini.Empty(), signer: signer}
}

// Load extracts and parses the persisted repository manifest from the
// repository directory. A missing archive is fatal to the caller.
func Load(repository string, series types.Series, arc *archive.Subsystem, signer *sign.Signer) (*DB, error) {
	archivePath := filepath.Join(repository, ArchiveName(SeriesRepositoryManifest, series))
	if _, err := os.Stat(archivePath); err != nil {
		if os.IsNotExist(err) {
			return nil, ErrManifestArchiveMissing
		}
		return nil, fmt.Errorf("loading repository manifest: %w", err)
	}

	tmp, err := os.CreateTemp("", "repack-repodb-*.ini")
	if err != nil {
		return nil, fmt.Errorf("loading repository manifest: %w", err)
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	if err := arc.ExtractSingleFile(archivePath, archive.DBFormat(series), RepositoryManifestFile, tmpPath); err != nil {
		return nil, fmt.Errorf("extracting %s: %w", RepositoryManifestFile, err)
	}

	f, err := ini.Load(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", RepositoryManifestFile, err)
	}

	logger.Debug("loaded repository manifest", "archive", archivePath, "packages", len(f.SectionStrings())-1)
	return &DB{file: f, signer: signer}, nil
}

// Get returns the value for a key in a package section.
func (db *DB) Get(id, key string) (string, bool) {
	sec, err := db.file.GetSection(id)
	if err != nil || !sec.HasKey(key) {
		return "", false
	}
	return sec.Key(key).String(), true
}

// Put sets a value in a package section, creating the section if
// needed.
func (db *DB) Put(id, key, value string) {
	db.file.Section(id).Key(key).SetValue(value)
}

// PutOrDelete sets a value, or deletes the key when the value is
// empty; optional metadata never persists as empty strings.
func (db *DB) PutOrDelete(id, key, value string) {
	if value == "" {
		db.Delete(id, key)
		return
	}
	db.Put(id, key, value)
}

// Delete removes a key from a package section, if present.
func (db *DB) Delete(id, key string) {
	if sec, err := db.file.GetSection(id); err == nil {
		sec.DeleteKey(key)
	}
}

// DeleteSection removes an entire package section.
func (db *DB) DeleteSection(id string) {
	db.file.DeleteSection(id)
}

// Sections returns all package ids in the database.
func (db *DB) Sections() []string {
	var ids []string
	for _, name := range db.file.SectionStrings() {
		if name == ini.DefaultSection {
			continue
		}
		ids = append(ids, name)
	}
	return ids
}

// Len returns the number of package sections.
func (db *DB) Len() int {
	return len(db.Sections())
}

// TimePackaged returns the recorded packaging time for a package.
func (db *DB) TimePackaged(id string) (time.Time, bool) {
	s, ok := db.Get(id, "TimePackaged")
	if !ok {
		return time.Time{}, false
	}
	unix, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.Unix(unix, 0), true
}

// Digest returns the recorded content digest for a package.
func (db *DB) Digest(id string) (digest.Digest, bool) {
	s, ok := db.Get(id, "MD5")
	if !ok {
		return nil, false
	}
	d, err := digest.Parse(s)
	if err != nil {
		return nil, false
	}
	return d, true
}

// Prune removes sections whose package id is absent from the current
// package set or ignored (excluded level). After pruning, the database
// contains exactly the sections for current, non-ignored packages that
// were already present.
func (db *DB) Prune(current map[string]*types.PackageInfo, ignore func(*types.PackageInfo) bool) {
	var obsolete []string
	for _, id := range db.Sections() {
		info, ok := current[id]
		if !ok || (ignore != nil && ignore(info)) {
			obsolete = append(obsolete, id)
		}
	}
	for _, id := range obsolete {
		logger.Debug("pruning obsolete section", "package", id)
		db.DeleteSection(id)
	}
}

// Write serializes the database to path, signing in place when a
// signer is configured. The write is atomic: a temp file is renamed
// over the destination.
func (db *DB) Write(path string) error {
	var buf bytes.Buffer
	if _, err := db.file.WriteTo(&buf); err != nil {
		return fmt.Errorf("serializing repository manifest: %w", err)
	}
	return WriteMaybeSigned(path, buf.Bytes(), db.signer)
}

// WriteMaybeSigned writes serialized manifest bytes to path, appending
// a signature block when signer is non-nil. Shared by the repository
// manifest, the package-manifests dump, and the repository summary.
func WriteMaybeSigned(path string, data []byte, signer *sign.Signer) error {
	if signer != nil {
		signed, err := signer.Append(data)
		if err != nil {
			return err
		}
		data = signed
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
