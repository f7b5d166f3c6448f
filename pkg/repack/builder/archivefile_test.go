package builder

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/texmill/repack/pkg/repack/archive"
	"github.com/texmill/repack/pkg/repack/digest"
	"github.com/texmill/repack/pkg/repack/repodb"
	"github.com/texmill/repack/pkg/repack/staging"
	"github.com/texmill/repack/pkg/repack/types"
)

// newArchiveSubsystem skips the test when the external archive tools
// are unavailable.
func newArchiveSubsystem(t *testing.T) *archive.Subsystem {
	t.Helper()
	for _, tool := range []string{"tar", "xz"} {
		if _, err := exec.LookPath(tool); err != nil {
			t.Skipf("%s not available", tool)
		}
	}
	arc, err := archive.New()
	require.NoError(t, err)
	return arc
}

// stagedPackage lays out a one-file payload and returns its record
// with the aggregate digest filled in.
func stagedPackage(t *testing.T, id string) *types.PackageInfo {
	t.Helper()
	dir := t.TempDir()
	rel := "texmf/tex/latex/" + id + "/" + id + ".sty"
	full := filepath.Join(dir, staging.PayloadDir, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte("% "+id+"\n"), 0o644))

	d, err := digest.HashFile(full, digest.New)
	require.NoError(t, err)
	table := digest.NewTable()
	table.Put(rel, d)

	return &types.PackageInfo{
		ID:          id,
		DisplayName: id,
		Path:        dir,
		RunFiles:    []string{rel},
		Digest:      table.Aggregate(digest.New),
	}
}

func TestCreateArchiveFileReusesOnDatabaseMatch(t *testing.T) {
	arc := newArchiveSubsystem(t)
	repo := t.TempDir()
	info := stagedPackage(t, "a0poster")

	archiveFile := filepath.Join(repo, "a0poster.tar.lzma")
	require.NoError(t, os.WriteFile(archiveFile, []byte("archived"), 0o644))

	db := repodb.New(nil)
	db.Put("a0poster", "MD5", info.Digest.String())
	db.Put("a0poster", "TimePackaged", "1600000000")

	var commands []string
	arc.Observer = func(cmd, _ string) { commands = append(commands, cmd) }

	b := New(arc, Options{Repository: repo, TimePackaged: time.Unix(1700000000, 0)})
	format, err := b.createArchiveFile(info, db)
	require.NoError(t, err)

	assert.Equal(t, archive.TarLzma, format)
	// No external tool ran: the existing archive was kept as is.
	assert.Empty(t, commands)
	assert.True(t, info.TimePackaged.Equal(time.Unix(1600000000, 0)))
	assert.Equal(t, int64(len("archived")), info.ArchiveFileSize)
	assert.False(t, info.ArchiveFileDigest.IsZero())

	fi, err := os.Stat(archiveFile)
	require.NoError(t, err)
	assert.True(t, fi.ModTime().Equal(time.Unix(1600000000, 0)))
}

func TestCreateArchiveFileRebuildsOnDigestMismatch(t *testing.T) {
	arc := newArchiveSubsystem(t)
	repo := t.TempDir()
	info := stagedPackage(t, "a0poster")

	// The recorded digest disagrees with the staged content.
	db := repodb.New(nil)
	db.Put("a0poster", "MD5", "d41d8cd98f00b204e9800998ecf8427e")
	db.Put("a0poster", "TimePackaged", "1600000000")

	var commands []string
	arc.Observer = func(cmd, _ string) { commands = append(commands, cmd) }

	runStart := time.Unix(1700000000, 0)
	b := New(arc, Options{Repository: repo, TimePackaged: runStart})
	format, err := b.createArchiveFile(info, db)
	require.NoError(t, err)

	assert.Equal(t, archive.TarLzma, format)
	assert.NotEmpty(t, commands)
	// The old packaging time is not kept when the content changed.
	assert.True(t, info.TimePackaged.Equal(runStart))

	archiveFile := filepath.Join(repo, "a0poster.tar.lzma")
	fi, err := os.Stat(archiveFile)
	require.NoError(t, err)
	assert.True(t, fi.ModTime().Equal(runStart))
	assert.Equal(t, fi.Size(), info.ArchiveFileSize)
}

func TestCreateArchiveFileReusesOnArchivedManifestMatch(t *testing.T) {
	arc := newArchiveSubsystem(t)
	repo := t.TempDir()

	// First run builds the archive, stamping the run time into the
	// manifest inside it.
	stamp := time.Unix(1700000000, 0)
	first := stagedPackage(t, "a0poster")
	b := New(arc, Options{Repository: repo, TimePackaged: stamp})
	_, err := b.createArchiveFile(first, repodb.New(nil))
	require.NoError(t, err)

	// A later run with an empty database and unchanged content falls
	// back to the archived manifest and reuses the archive.
	second := stagedPackage(t, "a0poster")
	require.True(t, second.Digest.Equal(first.Digest))

	var commands []string
	arc.Observer = func(cmd, _ string) { commands = append(commands, cmd) }

	b2 := New(arc, Options{Repository: repo, TimePackaged: time.Unix(1800000000, 0)})
	format, err := b2.createArchiveFile(second, repodb.New(nil))
	require.NoError(t, err)

	assert.Equal(t, archive.TarLzma, format)
	// Only the manifest extraction ran, no archiver.
	require.Len(t, commands, 1)
	assert.Contains(t, commands[0], "--decompress")
	assert.True(t, second.TimePackaged.Equal(stamp))
}
