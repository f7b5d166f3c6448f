// Package collect walks a package's staging payload tree and
// partitions its files into run, doc, and source classes.
//
// Classification is decided solely by path prefix: a file is a doc or
// source file iff its path relative to the payload root falls under
// the platform's conventional doc/ or source/ subtree beneath the
// configured top-level prefix; every other file is a run file. The
// three classes partition the tree with no overlap.
package collect

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/charlievieth/fastwalk"
	"github.com/texmill/repack/pkg/repack/logging"
)

var logger = logging.Get("collect")

// Result holds the classified file lists and their cumulative sizes.
// Paths are relative to the walked root and use forward slashes.
type Result struct {
	RunFiles    []string
	DocFiles    []string
	SourceFiles []string

	SizeRunFiles    int64
	SizeDocFiles    int64
	SizeSourceFiles int64
}

// NumFiles returns the total number of collected files.
func (r *Result) NumFiles() int {
	return len(r.RunFiles) + len(r.DocFiles) + len(r.SourceFiles)
}

// Collect recursively walks rootDir and classifies every regular file
// against the doc/ and source/ subtrees under prefix (conventionally
// "texmf"). An absent root directory yields an empty result, not an
// error: staging directories without payload are legitimate.
//
// The walk is sequential and lexically sorted; the aggregate digest is
// order-independent anyway, but a deterministic walk keeps verbose
// output and file lists stable across runs.
func Collect(rootDir, prefix string) (*Result, error) {
	result := &Result{}

	if _, err := os.Stat(rootDir); os.IsNotExist(err) {
		return result, nil
	}

	conf := fastwalk.Config{
		NumWorkers: 1,
		Sort:       fastwalk.SortLexical,
	}

	var mu sync.Mutex
	err := fastwalk.Walk(&conf, rootDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(rootDir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		info, err := d.Info()
		if err != nil {
			return err
		}

		mu.Lock()
		defer mu.Unlock()
		switch {
		case inSubtree(rel, prefix, "doc"):
			result.DocFiles = append(result.DocFiles, rel)
			result.SizeDocFiles += info.Size()
		case inSubtree(rel, prefix, "source"):
			result.SourceFiles = append(result.SourceFiles, rel)
			result.SizeSourceFiles += info.Size()
		default:
			result.RunFiles = append(result.RunFiles, rel)
			result.SizeRunFiles += info.Size()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Debug("collected",
		"root", rootDir,
		"run", len(result.RunFiles),
		"doc", len(result.DocFiles),
		"source", len(result.SourceFiles))

	return result, nil
}

// inSubtree reports whether the slash-separated relative path begins
// with prefix/subDir, comparing path segments case-insensitively.
func inSubtree(relPath, prefix, subDir string) bool {
	want := strings.Split(filepath.ToSlash(filepath.Join(prefix, subDir)), "/")
	have := strings.Split(relPath, "/")
	if len(have) <= len(want) {
		return false
	}
	for i, seg := range want {
		if !strings.EqualFold(have[i], seg) {
			return false
		}
	}
	return true
}
