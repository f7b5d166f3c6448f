package archive

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/texmill/repack/pkg/repack/types"
)

func TestFormatExtensions(t *testing.T) {
	tests := []struct {
		format Format
		ext    string
		token  string
	}{
		{Cabinet, ".cab", "MSCab"},
		{TarBzip2, ".tar.bz2", "TarBzip2"},
		{Zip, ".zip", "Zip"},
		{Tar, ".tar", "Tar"},
		{TarLzma, ".tar.lzma", "TarLzma"},
	}

	for _, tt := range tests {
		ext, err := tt.format.Extension()
		require.NoError(t, err)
		assert.Equal(t, tt.ext, ext)
		assert.Equal(t, tt.token, tt.format.Token())
	}
}

func TestUnknownFormat(t *testing.T) {
	_, err := None.Extension()
	assert.ErrorIs(t, err, ErrUnknownFormat)
	assert.Equal(t, "unknown", None.Token())
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("TarLzma")
	require.NoError(t, err)
	assert.Equal(t, TarLzma, f)

	_, err = ParseFormat("SevenZip")
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestDBFormatSeriesBoundary(t *testing.T) {
	assert.Equal(t, TarBzip2, DBFormat(types.Series{Major: 2, Minor: 6}))
	assert.Equal(t, TarLzma, DBFormat(types.Series{Major: 2, Minor: 7}))
	assert.Equal(t, TarLzma, DBFormat(types.Series{Major: 2, Minor: 9}))
	assert.Equal(t, TarLzma, DBFormat(types.Series{Major: 3, Minor: 0}))
}

func TestDetectPackageArchiveNewestFormatWins(t *testing.T) {
	repo := t.TempDir()

	write := func(name string) {
		require.NoError(t, os.WriteFile(filepath.Join(repo, name), []byte("x"), 0o644))
	}

	_, _, found := DetectPackageArchive(repo, "a0poster")
	assert.False(t, found)

	write("a0poster.cab")
	file, format, found := DetectPackageArchive(repo, "a0poster")
	require.True(t, found)
	assert.Equal(t, Cabinet, format)
	assert.Equal(t, filepath.Join(repo, "a0poster.cab"), file)

	write("a0poster.tar.bz2")
	_, format, _ = DetectPackageArchive(repo, "a0poster")
	assert.Equal(t, TarBzip2, format)

	write("a0poster.tar.lzma")
	file, format, found = DetectPackageArchive(repo, "a0poster")
	require.True(t, found)
	assert.Equal(t, TarLzma, format)
	assert.Equal(t, filepath.Join(repo, "a0poster.tar.lzma"), file)
}

func TestQuote(t *testing.T) {
	assert.Equal(t, "'/tmp/plain'", quote("/tmp/plain"))
	assert.Equal(t, `'/tmp/o'\''brien'`, quote("/tmp/o'brien"))
}

func TestCreateRejectsReadOnlyFormats(t *testing.T) {
	s := &Subsystem{xz: "xz"}
	err := s.Create(Cabinet, "out.cab", "texmf", t.TempDir())
	assert.ErrorIs(t, err, ErrUnsupportedCreate)

	err = s.Create(Zip, "out.zip", "texmf", t.TempDir())
	assert.ErrorIs(t, err, ErrUnsupportedCreate)
}

func TestCommandErrorMessage(t *testing.T) {
	err := &CommandError{Command: "tar -cf x", Output: "tar: boom\n", Err: os.ErrInvalid}
	assert.Contains(t, err.Error(), "tar -cf x")
	assert.Contains(t, err.Error(), "tar: boom")
	assert.ErrorIs(t, err, os.ErrInvalid)
}
