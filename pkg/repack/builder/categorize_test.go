package builder

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/texmill/repack/pkg/repack/types"
)

func newTestBuilder(infos ...*types.PackageInfo) *Builder {
	b := New(nil, Options{})
	for _, info := range infos {
		b.packages[info.ID] = info
	}
	return b
}

func TestAutoCategorizeReverseEdges(t *testing.T) {
	b := newTestBuilder(
		&types.PackageInfo{ID: "graphics"},
		&types.PackageInfo{ID: "a0poster", RequiredPackages: []string{"graphics"}},
	)

	b.AutoCategorize()

	assert.Equal(t, []string{"a0poster"}, b.packages["graphics"].RequiredBy)
}

func TestAutoCategorizeDanglingRequirement(t *testing.T) {
	var warnings []string
	b := New(nil, Options{Warn: func(msg string) { warnings = append(warnings, msg) }})
	b.packages["a0poster"] = &types.PackageInfo{ID: "a0poster", RequiredPackages: []string{"ghost"}}

	b.AutoCategorize()

	assert.Equal(t, []string{"dependency problem: ghost is required by a0poster"}, warnings)
}

func TestAutoCategorizeAdoptsLatexOrphan(t *testing.T) {
	b := newTestBuilder(
		&types.PackageInfo{ID: LatexContainerID},
		&types.PackageInfo{ID: "a0poster", CtanPath: "/macros/latex/contrib/a0poster"},
	)

	b.AutoCategorize()

	assert.Equal(t, []string{LatexContainerID}, b.packages["a0poster"].RequiredBy)
	assert.Equal(t, []string{"a0poster"}, b.packages[LatexContainerID].RequiredPackages)
}

func TestAutoCategorizeAdoptsFontOrphan(t *testing.T) {
	b := newTestBuilder(
		&types.PackageInfo{ID: Type1FontsContainerID},
		&types.PackageInfo{
			ID:       "cm-super",
			CtanPath: "/fonts/cm-super",
			RunFiles: []string{"texmf/fonts/type1/public/cm-super/sfrm1000.pfb"},
		},
		&types.PackageInfo{
			ID:       "metrics-only",
			CtanPath: "/fonts/metrics-only",
			RunFiles: []string{"texmf/fonts/tfm/public/metrics-only/m.tfm"},
		},
	)

	b.AutoCategorize()

	assert.Equal(t, []string{Type1FontsContainerID}, b.packages["cm-super"].RequiredBy)
	// A font package without Type1 or TrueType run files stays orphaned.
	assert.Empty(t, b.packages["metrics-only"].RequiredBy)
}

func TestAutoCategorizeLeavesDependentsAlone(t *testing.T) {
	b := newTestBuilder(
		&types.PackageInfo{ID: LatexContainerID},
		&types.PackageInfo{ID: "graphics", CtanPath: "/macros/latex/contrib/graphics"},
		&types.PackageInfo{ID: "a0poster", RequiredPackages: []string{"graphics"}},
	)

	b.AutoCategorize()

	assert.Equal(t, []string{"a0poster"}, b.packages["graphics"].RequiredBy)
}

func TestAutoCategorizeWithoutContainers(t *testing.T) {
	b := newTestBuilder(
		&types.PackageInfo{ID: "a0poster", CtanPath: "/macros/latex/contrib/a0poster"},
	)

	b.AutoCategorize()

	assert.Empty(t, b.packages["a0poster"].RequiredBy)
}
