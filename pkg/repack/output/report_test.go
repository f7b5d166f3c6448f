package output

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/texmill/repack/pkg/repack/types"
)

func TestSummarize(t *testing.T) {
	packages := map[string]*types.PackageInfo{
		"a0poster": {
			ID:           "a0poster",
			RunFiles:     []string{"texmf/tex/latex/a0poster/a0poster.cls"},
			DocFiles:     []string{"texmf/doc/latex/a0poster/readme.txt"},
			SizeRunFiles: 1000,
			SizeDocFiles: 500,
		},
		"_latex-packages": {
			ID:               "_latex-packages",
			RequiredPackages: []string{"a0poster"},
		},
	}

	var r Result
	r.Summarize(packages)

	assert.Equal(t, 1, r.Packages)
	assert.Equal(t, 1, r.Containers)
	assert.Equal(t, 2, r.Files)
	assert.Equal(t, int64(1500), r.TotalSize)
}

func TestRender(t *testing.T) {
	r := &Result{
		Operation:  "Update repository",
		Repository: "/srv/packages",
		Packages:   12,
		Containers: 2,
		Files:      345,
		TotalSize:  2048,
		Duration:   1500 * time.Millisecond,
		Warnings:   []string{"dependency problem: ghost is required by a0poster"},
	}

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, r))

	out := buf.String()
	assert.Contains(t, out, "Update repository")
	assert.Contains(t, out, "/srv/packages")
	assert.Contains(t, out, "12 (+2 containers)")
	assert.Contains(t, out, "345 files")
	assert.Contains(t, out, "2.0 KiB")
	assert.Contains(t, out, "1.5s")
	assert.Contains(t, out, "warning: dependency problem")
}

func TestRenderNoWarnings(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, &Result{Operation: "Create package"}))
	assert.NotContains(t, buf.String(), "warning:")
}
