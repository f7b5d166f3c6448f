package builder

import (
	"path"
	"strings"
)

// Well-known container packages that adopt otherwise-orphaned
// packages, keyed off the package's CTAN provenance path.
const (
	LatexContainerID      = "_latex-packages"
	Type1FontsContainerID = "_type1-fonts"
)

// CTAN path prefixes that route orphans into the containers.
const (
	ctanLatexPrefix = "/macros/latex/contrib/"
	ctanFontsPrefix = "/fonts/"
)

// AutoCategorize resolves dependency edges and adopts orphaned
// packages into the well-known containers.
//
// First every requires entry is turned into a reverse edge on its
// target; a requirement naming an uncollected package is reported as a
// dependency problem. Then each package that no other package depends
// on is attached to at most one container, decided by its CTAN path:
// LaTeX contributions go to the LaTeX container, font packages with at
// least one Type1 or TrueType run file go to the fonts container.
// Packages that already have a dependent are never re-parented.
func (b *Builder) AutoCategorize() {
	ids := b.sortedIDs()

	for _, id := range ids {
		pkg := b.packages[id]
		for _, req := range pkg.RequiredPackages {
			target, ok := b.packages[req]
			if !ok {
				b.warnf("dependency problem: %s is required by %s", req, pkg.ID)
				continue
			}
			target.RequiredBy = append(target.RequiredBy, pkg.ID)
		}
	}

	latex := b.packages[LatexContainerID]
	fonts := b.packages[Type1FontsContainerID]

	for _, id := range ids {
		pkg := b.packages[id]
		if len(pkg.RequiredBy) > 0 {
			continue
		}
		switch {
		case latex != nil && pkg != latex && strings.HasPrefix(pkg.CtanPath, ctanLatexPrefix):
			pkg.RequiredBy = append(pkg.RequiredBy, latex.ID)
			latex.RequiredPackages = append(latex.RequiredPackages, pkg.ID)
		case fonts != nil && pkg != fonts && strings.HasPrefix(pkg.CtanPath, ctanFontsPrefix) && b.hasOutlineFont(pkg.RunFiles):
			pkg.RequiredBy = append(pkg.RequiredBy, fonts.ID)
			fonts.RequiredPackages = append(fonts.RequiredPackages, pkg.ID)
		}
	}
}

// hasOutlineFont reports whether any run file lives under the Type1 or
// TrueType font subtree of the payload prefix.
func (b *Builder) hasOutlineFont(runFiles []string) bool {
	type1 := strings.ToLower(path.Join(b.opts.TexmfPrefix, "fonts/type1")) + "/"
	truetype := strings.ToLower(path.Join(b.opts.TexmfPrefix, "fonts/truetype")) + "/"
	for _, f := range runFiles {
		lower := strings.ToLower(f)
		if strings.HasPrefix(lower, type1) || strings.HasPrefix(lower, truetype) {
			return true
		}
	}
	return false
}
