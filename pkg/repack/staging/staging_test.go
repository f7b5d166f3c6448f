package staging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/texmill/repack/pkg/repack/digest"
	"github.com/texmill/repack/pkg/repack/types"
)

func TestWriteReadRoundTrip(t *testing.T) {
	dir := t.TempDir()

	aggregate, _ := digest.Parse("d41d8cd98f00b204e9800998ecf8427e")
	fileDigest, _ := digest.Parse("0102030405060708090a0b0c0d0e0f10")

	table := digest.NewTable()
	table.Put("texmf/tex/latex/a0poster/a0poster.cls", fileDigest)

	info := &types.PackageInfo{
		ID:               "a0poster",
		DisplayName:      "a0poster",
		Creator:          "gub",
		Title:            "Support for designing posters on large paper",
		Version:          "1.22b",
		CtanPath:         "/macros/latex/contrib/a0poster",
		CopyrightOwner:   "Gerlinde Kettl, Matthias Weiser",
		CopyrightYear:    "2004",
		LicenseType:      "lppl",
		RequiredPackages: []string{"_latex-packages", "graphics"},
		Description:      "Provides fonts in sizes of 12pt up to 107pt.",
	}

	require.NoError(t, Write(dir, info, table, aggregate))

	got, err := Read(dir)
	require.NoError(t, err)

	assert.Equal(t, "a0poster", got.ID)
	assert.Equal(t, "a0poster", got.DisplayName)
	assert.Equal(t, "gub", got.Creator)
	assert.Equal(t, "1.22b", got.Version)
	assert.Equal(t, "/macros/latex/contrib/a0poster", got.CtanPath)
	assert.Equal(t, "lppl", got.LicenseType)
	assert.Equal(t, []string{"_latex-packages", "graphics"}, got.RequiredPackages)
	assert.True(t, got.Digest.Equal(aggregate))
	assert.Equal(t, info.Description, got.Description)
	assert.Equal(t, dir, got.Path)
}

func TestReadExternalNameFallback(t *testing.T) {
	dir := t.TempDir()
	metadata := "externalname=oldstyle\nname=Old Style\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, MetadataFile), []byte(metadata), 0o644))

	info, err := Read(dir)
	require.NoError(t, err)
	assert.Equal(t, "oldstyle", info.ID)
}

func TestReadMissingID(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, MetadataFile), []byte("name=No ID\n"), 0o644))

	_, err := Read(dir)
	assert.ErrorIs(t, err, ErrMissingID)
}

func TestReadMissingName(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, MetadataFile), []byte("id=x\n"), 0o644))

	_, err := Read(dir)
	assert.ErrorIs(t, err, ErrMissingName)
}

func TestReadSplitsRequiresOnSemicolon(t *testing.T) {
	dir := t.TempDir()
	metadata := "id=x\nname=x\nrequires=a;b\nrequires=c\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, MetadataFile), []byte(metadata), 0o644))

	info, err := Read(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, info.RequiredPackages)
}

func TestWriteEmitsLegacyExternalName(t *testing.T) {
	dir := t.TempDir()
	info := &types.PackageInfo{ID: "x", DisplayName: "x"}
	require.NoError(t, Write(dir, info, digest.NewTable(), nil))

	data, err := os.ReadFile(filepath.Join(dir, MetadataFile))
	require.NoError(t, err)
	assert.Contains(t, string(data), "externalname=x\n")
	assert.True(t, strings.HasPrefix(string(data), "id=x\n"))
}

func TestWriteChecksumListing(t *testing.T) {
	dir := t.TempDir()
	d1, _ := digest.Parse("aaaa")
	d2, _ := digest.Parse("bbbb")

	table := digest.NewTable()
	table.Put("texmf/tex/b.sty", d2)
	table.Put("texmf/tex/a.sty", d1)

	info := &types.PackageInfo{ID: "x", DisplayName: "x"}
	require.NoError(t, Write(dir, info, table, nil))

	data, err := os.ReadFile(filepath.Join(dir, ChecksumFile))
	require.NoError(t, err)
	assert.Equal(t, "aaaa texmf/tex/a.sty\nbbbb texmf/tex/b.sty\n", string(data))
}

func TestExists(t *testing.T) {
	dir := t.TempDir()
	assert.False(t, Exists(dir))
	require.NoError(t, os.WriteFile(filepath.Join(dir, MetadataFile), []byte("id=x\nname=x\n"), 0o644))
	assert.True(t, Exists(dir))
}

func TestDescriptionAbsent(t *testing.T) {
	description, err := ReadDescription(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, description)
}
