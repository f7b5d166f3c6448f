package builder

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
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

func TestNewAppliesDefaults(t *testing.T) {
	b := New(nil, Options{})

	assert.Equal(t, "texmf", b.opts.TexmfPrefix)
	assert.Equal(t, types.LevelTotal, b.opts.DefaultLevel)
	assert.Equal(t, archive.TarLzma, b.opts.DefaultFormat)
	assert.Equal(t, "stable", b.opts.ReleaseState)
	assert.False(t, b.opts.TimePackaged.IsZero())
	assert.NotNil(t, b.opts.Specs)
	assert.NotNil(t, b.opts.HashNew)
	assert.NotNil(t, b.opts.Warn)
}

func TestLevelAndExclusion(t *testing.T) {
	b := New(nil, Options{
		DefaultLevel: types.LevelTotal,
		Specs: map[string]types.PackageSpec{
			"small": {Level: types.LevelSmall},
			"gone":  {Level: types.LevelExcluded},
		},
	})

	assert.Equal(t, types.LevelSmall, b.level(&types.PackageInfo{ID: "small"}))
	assert.Equal(t, types.LevelTotal, b.level(&types.PackageInfo{ID: "unlisted"}))
	assert.True(t, b.excluded(&types.PackageInfo{ID: "gone"}))
	assert.False(t, b.excluded(&types.PackageInfo{ID: "small"}))
}

func TestArchiveFormatPreference(t *testing.T) {
	b := New(nil, Options{
		DefaultFormat: archive.TarLzma,
		Specs: map[string]types.PackageSpec{
			"legacy": {Level: types.LevelTotal, ArchiveType: "TarBzip2"},
			"plain":  {Level: types.LevelTotal},
		},
	})

	assert.Equal(t, archive.TarBzip2, b.archiveFormat(&types.PackageInfo{ID: "legacy"}))
	assert.Equal(t, archive.TarLzma, b.archiveFormat(&types.PackageInfo{ID: "plain"}))
	assert.Equal(t, archive.TarLzma, b.archiveFormat(&types.PackageInfo{ID: "unlisted"}))
}

func TestSortedIDs(t *testing.T) {
	b := newTestBuilder(
		&types.PackageInfo{ID: "zoo"},
		&types.PackageInfo{ID: "abc"},
		&types.PackageInfo{ID: "mmm"},
	)
	assert.Equal(t, []string{"abc", "mmm", "zoo"}, b.sortedIDs())
}

// writeStagingDir lays out a minimal staging directory under root.
func writeStagingDir(t *testing.T, root, id string) {
	t.Helper()
	dir := filepath.Join(root, id)
	info := &types.PackageInfo{ID: id, DisplayName: id}
	require.NoError(t, staging.Write(dir, info, digest.NewTable(), digest.Digest{}))
	payload := filepath.Join(dir, staging.PayloadDir, "texmf", "tex", "latex", id)
	require.NoError(t, os.MkdirAll(payload, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(payload, id+".sty"), []byte("% "+id+"\n"), 0o644))
}

func TestCollectPackages(t *testing.T) {
	root := t.TempDir()
	writeStagingDir(t, root, "a0poster")
	writeStagingDir(t, root, "oldstuff")

	// A directory without staging metadata is skipped silently.
	require.NoError(t, os.MkdirAll(filepath.Join(root, "not-staging"), 0o755))

	b := New(nil, Options{
		StagingRoots: []string{root, filepath.Join(root, "absent")},
		Specs: map[string]types.PackageSpec{
			"oldstuff": {Level: types.LevelExcluded},
		},
	})
	require.NoError(t, b.CollectPackages())

	require.Len(t, b.packages, 1)
	info := b.packages["a0poster"]
	require.NotNil(t, info)
	assert.Equal(t, []string{"texmf/tex/latex/a0poster/a0poster.sty"}, info.RunFiles)
	assert.NotZero(t, info.SizeRunFiles)
}

func TestCollectPackagesDuplicateWarns(t *testing.T) {
	root1 := t.TempDir()
	root2 := t.TempDir()
	writeStagingDir(t, root1, "a0poster")
	writeStagingDir(t, root2, "a0poster")

	var warnings []string
	b := New(nil, Options{
		StagingRoots: []string{root1, root2},
		Warn:         func(msg string) { warnings = append(warnings, msg) },
	})
	require.NoError(t, b.CollectPackages())

	assert.Len(t, b.packages, 1)
	assert.Equal(t, []string{`"a0poster" already collected`}, warnings)
	assert.Equal(t, filepath.Join(root1, "a0poster"), b.packages["a0poster"].Path)
}

func TestCollectPackagesEmpty(t *testing.T) {
	b := New(nil, Options{StagingRoots: []string{t.TempDir()}})
	assert.ErrorIs(t, b.CollectPackages(), ErrNoStagingDirs)
}

func TestCollectPackagesNoRoots(t *testing.T) {
	b := New(nil, Options{})
	assert.ErrorIs(t, b.CollectPackages(), ErrNoStagingRoots)
}

func TestCleanUp(t *testing.T) {
	repo := t.TempDir()
	for _, name := range []string{
		"a0poster.cab", "a0poster.tar.bz2", "a0poster.tar.lzma",
		"legacy.tar.bz2",
		"keepme.cab",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(repo, name), nil, 0o644))
	}

	b := New(nil, Options{Repository: repo})
	require.NoError(t, b.cleanUp())

	assert.NoFileExists(t, filepath.Join(repo, "a0poster.cab"))
	assert.NoFileExists(t, filepath.Join(repo, "a0poster.tar.bz2"))
	assert.FileExists(t, filepath.Join(repo, "a0poster.tar.lzma"))
	// No newer sibling, both stay.
	assert.FileExists(t, filepath.Join(repo, "legacy.tar.bz2"))
	assert.FileExists(t, filepath.Join(repo, "keepme.cab"))
}

func TestListingDigest(t *testing.T) {
	repo := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(repo, "b.txt"), []byte("bb"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(repo, "a.txt"), []byte("a"), 0o644))

	b := New(nil, Options{Repository: repo})
	got, err := b.listingDigest()
	require.NoError(t, err)

	h := digest.New()
	h.Write([]byte("a.txt;1\n"))
	h.Write([]byte("b.txt;2\n"))
	assert.Equal(t, fmt.Sprintf("%x", h.Sum(nil)), got)
}

// newTestDB builds a database preloaded with packaging times.
func newTestDB(t *testing.T, times map[string]int64) *repodb.DB {
	t.Helper()
	db := repodb.New(nil)
	for id, when := range times {
		db.Put(id, "TimePackaged", strconv.FormatInt(when, 10))
	}
	return db
}

func TestWriteSummary(t *testing.T) {
	repo := t.TempDir()
	b := New(nil, Options{
		Repository:   repo,
		ReleaseState: "next",
		TimePackaged: time.Unix(epoch2000+3*24*60*60, 0),
	})
	b.packages["a0poster"] = &types.PackageInfo{ID: "a0poster"}
	b.packages["graphics"] = &types.PackageInfo{ID: "graphics"}

	db := newTestDB(t, map[string]int64{
		"a0poster": 1600000000,
		"graphics": 1700000000,
	})

	require.NoError(t, b.writeSummary(db))

	data, err := os.ReadFile(filepath.Join(repo, "pr.ini"))
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, "version=3")
	assert.Contains(t, text, "numpkg=2")
	assert.Contains(t, text, "relstate=next")
	assert.Contains(t, text, "lastupd=graphics a0poster")
	// The final digest covers the listing with the summary in it, so it
	// is never the digest of empty input.
	assert.NotContains(t, text, "lstdigest=d41d8cd98f00b204e9800998ecf8427e")
}

func TestLastUpdatedCapAndOrder(t *testing.T) {
	b := New(nil, Options{})
	times := map[string]int64{}
	for i := 0; i < 25; i++ {
		id := fmt.Sprintf("pkg-%02d", i)
		b.packages[id] = &types.PackageInfo{ID: id}
		times[id] = int64(1600000000 + i)
	}
	db := newTestDB(t, times)

	ids := b.lastUpdated(db)
	require.Len(t, ids, lastUpdatedCount)

	prev, _ := db.TimePackaged(ids[0])
	for _, id := range ids[1:] {
		when, _ := db.TimePackaged(id)
		assert.False(t, when.After(prev))
		prev = when
	}
}
