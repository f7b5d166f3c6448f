// Package digest computes per-file content hashes and the aggregate
// content digest that identifies a package's classified file set.
//
// The aggregate digest is a durable compatibility contract: it hashes
// each file's relative path in a canonical DOS rendering (backslash
// separators) followed by the raw content-hash bytes, iterating the
// file table in case-insensitive path order. Two file sets with
// identical relative paths and contents therefore always produce the
// same aggregate digest, independent of directory-walk order.
package digest

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"os"
	"sort"
	"strings"
)

// copyBufferSize is the chunk size used when hashing while copying.
const copyBufferSize = 4096

// ManifestFileSuffix is the package manifest file extension. Manifest
// files are metadata, not payload, and never contribute to the
// aggregate digest.
const ManifestFileSuffix = ".tpm"

// ErrInvalidDigest indicates that a digest string could not be parsed.
var ErrInvalidDigest = errors.New("invalid digest")

// New returns the default hash constructor. Digests are MD5 for
// compatibility with existing repositories; components accept an
// injected constructor so the primitive is swappable in one place.
func New() hash.Hash {
	return md5.New()
}

// Digest is a raw content hash.
type Digest []byte

// String renders the digest as lowercase hex.
func (d Digest) String() string {
	return hex.EncodeToString(d)
}

// Equal reports whether two digests are byte-identical.
func (d Digest) Equal(other Digest) bool {
	if len(d) != len(other) {
		return false
	}
	for i := range d {
		if d[i] != other[i] {
			return false
		}
	}
	return true
}

// IsZero reports whether the digest is unset.
func (d Digest) IsZero() bool {
	return len(d) == 0
}

// Parse decodes a lowercase or uppercase hex digest string.
func Parse(s string) (Digest, error) {
	b, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDigest, s)
	}
	if len(b) == 0 {
		return nil, fmt.Errorf("%w: empty", ErrInvalidDigest)
	}
	return Digest(b), nil
}

// dosPath renders a relative path with backslash separators. The
// aggregate digest hashes this rendering for backward compatibility
// with repositories built on DOS-style platforms.
func dosPath(p string) string {
	return strings.ReplaceAll(p, "/", "\\")
}

// collate is the case-insensitive DOS collation used to order table
// keys. Separators are normalized before folding so that "a/b" and
// "A\B" compare equal.
func collate(p string) string {
	return strings.ToLower(dosPath(p))
}

// tableEntry pairs a path as first recorded with its digest.
type tableEntry struct {
	path   string
	digest Digest
}

// Table maps repository-relative file paths to content digests. Keys
// are compared case-insensitively under a fixed DOS-style collation so
// that aggregate-digest computation order is stable across platforms.
type Table struct {
	entries map[string]tableEntry
}

// NewTable returns an empty file digest table.
func NewTable() *Table {
	return &Table{entries: make(map[string]tableEntry)}
}

// Put records the digest for a path. A path that collates equal to an
// existing entry replaces it.
func (t *Table) Put(path string, d Digest) {
	t.entries[collate(path)] = tableEntry{path: path, digest: d}
}

// Get returns the digest recorded for a path, if any.
func (t *Table) Get(path string) (Digest, bool) {
	e, ok := t.entries[collate(path)]
	if !ok {
		return nil, false
	}
	return e.digest, true
}

// Len returns the number of entries.
func (t *Table) Len() int {
	return len(t.entries)
}

// Paths returns all recorded paths in collation order.
func (t *Table) Paths() []string {
	keys := make([]string, 0, len(t.entries))
	for k := range t.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	paths := make([]string, len(keys))
	for i, k := range keys {
		paths[i] = t.entries[k].path
	}
	return paths
}

// Aggregate computes the aggregate digest over the table: for each
// entry in collation order, the DOS-rendered path bytes followed by
// the raw digest bytes are fed into a single hash. Package manifest
// entries are excluded.
func (t *Table) Aggregate(newHash func() hash.Hash) Digest {
	keys := make([]string, 0, len(t.entries))
	for k := range t.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := newHash()
	for _, k := range keys {
		e := t.entries[k]
		if strings.HasSuffix(strings.ToLower(e.path), ManifestFileSuffix) {
			continue
		}
		h.Write([]byte(dosPath(e.path)))
		h.Write(e.digest)
	}
	return h.Sum(nil)
}

// HashFile computes the content digest of a single file.
func HashFile(path string, newHash func() hash.Hash) (Digest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("hashing %s: %w", path, err)
	}
	defer f.Close()

	h := newHash()
	if _, err := io.Copy(h, f); err != nil {
		return nil, fmt.Errorf("hashing %s: %w", path, err)
	}
	return h.Sum(nil), nil
}

// HashFileCopy copies src to dst in fixed-size chunks, accumulating a
// running hash, and propagates the source's access and modification
// timestamps onto the destination. It returns the content digest and
// the number of bytes copied.
func HashFileCopy(src, dst string, newHash func() hash.Hash) (Digest, int64, error) {
	from, err := os.Open(src)
	if err != nil {
		return nil, 0, fmt.Errorf("copying %s: %w", src, err)
	}
	defer from.Close()

	to, err := os.Create(dst)
	if err != nil {
		return nil, 0, fmt.Errorf("copying to %s: %w", dst, err)
	}

	h := newHash()
	buf := make([]byte, copyBufferSize)
	var copied int64
	for {
		n, readErr := from.Read(buf)
		if n > 0 {
			if _, err := to.Write(buf[:n]); err != nil {
				to.Close()
				return nil, copied, fmt.Errorf("copying to %s: %w", dst, err)
			}
			h.Write(buf[:n])
			copied += int64(n)
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			to.Close()
			return nil, copied, fmt.Errorf("copying %s: %w", src, readErr)
		}
	}
	if err := to.Close(); err != nil {
		return nil, copied, fmt.Errorf("copying to %s: %w", dst, err)
	}

	info, err := os.Stat(src)
	if err != nil {
		return nil, copied, fmt.Errorf("copying %s: %w", src, err)
	}
	if err := os.Chtimes(dst, info.ModTime(), info.ModTime()); err != nil {
		return nil, copied, fmt.Errorf("copying to %s: %w", dst, err)
	}

	return h.Sum(nil), copied, nil
}
