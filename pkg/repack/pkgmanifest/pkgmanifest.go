// Package pkgmanifest reads and writes per-package manifest files: the
// structured record of a package's metadata, classified file lists,
// and packaging timestamp that travels inside the package archive and
// in the repository's manifest dump archive.
package pkgmanifest

import (
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"

	"gopkg.in/ini.v1"

	"github.com/texmill/repack/pkg/repack/digest"
	"github.com/texmill/repack/pkg/repack/logging"
	"github.com/texmill/repack/pkg/repack/types"
)

var logger = logging.Get("pkgmanifest")

func init() {
	// Manifest files use key=value without padding.
	ini.PrettyFormat = false
}

// FileSuffix is the package manifest file extension.
const FileSuffix = digest.ManifestFileSuffix

// manifestSubDir is the manifest directory below the top-level prefix.
const manifestSubDir = "tpm/packages"

// ErrNoSection indicates a manifest file without a package section.
var ErrNoSection = errors.New("package manifest has no package section")

// MemberPath returns the archive member path of a package's manifest
// file below the given top-level prefix, using forward slashes.
func MemberPath(prefix, id string) string {
	return path.Join(prefix, manifestSubDir, id+FileSuffix)
}

// Dir returns the manifest directory below prefix.
func Dir(prefix string) string {
	return path.Join(prefix, manifestSubDir)
}

// loadOptions enable repeated keys for the file lists.
var loadOptions = ini.LoadOptions{AllowShadows: true}

// NewFile returns an empty INI file configured for manifest sections;
// combined with Put it builds the repository's manifest dump.
func NewFile() *ini.File {
	return ini.Empty(loadOptions)
}

// Read parses a package manifest file. The package id is taken from
// the section name. Entries in the file lists are expected to live
// under prefix; stray entries are tolerated but logged.
func Read(filePath, prefix string) (*types.PackageInfo, error) {
	f, err := ini.LoadSources(loadOptions, filePath)
	if err != nil {
		return nil, fmt.Errorf("reading package manifest %s: %w", filePath, err)
	}

	var sec *ini.Section
	for _, s := range f.Sections() {
		if s.Name() != ini.DefaultSection {
			sec = s
			break
		}
	}
	if sec == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoSection, filePath)
	}

	info := &types.PackageInfo{
		ID:                     sec.Name(),
		DisplayName:            sec.Key("displayname").String(),
		Creator:                sec.Key("creator").String(),
		Title:                  sec.Key("title").String(),
		Version:                sec.Key("version").String(),
		TargetSystem:           sec.Key("targetsystem").String(),
		MinTargetSystemVersion: sec.Key("min_target_system_version").String(),
		CtanPath:               sec.Key("ctan_path").String(),
		CopyrightOwner:         sec.Key("copyright_owner").String(),
		CopyrightYear:          sec.Key("copyright_year").String(),
		LicenseType:            sec.Key("license_type").String(),
	}

	if lines := shadows(sec, "description"); len(lines) > 0 {
		info.Description = strings.Join(lines, "\n")
	}
	info.RequiredPackages = shadows(sec, "requires")
	info.RunFiles = normalize(shadows(sec, "run"), prefix)
	info.DocFiles = normalize(shadows(sec, "doc"), prefix)
	info.SourceFiles = normalize(shadows(sec, "source"), prefix)
	info.SizeRunFiles = sec.Key("sizerunfiles").MustInt64(0)
	info.SizeDocFiles = sec.Key("sizedocfiles").MustInt64(0)
	info.SizeSourceFiles = sec.Key("sizesourcefiles").MustInt64(0)

	if s := sec.Key("md5").String(); s != "" {
		d, err := digest.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("reading package manifest %s: %w", filePath, err)
		}
		info.Digest = d
	}
	if s := sec.Key("timepackaged").String(); s != "" {
		unix, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("reading package manifest %s: bad timepackaged %q", filePath, s)
		}
		info.TimePackaged = time.Unix(unix, 0)
	}

	return info, nil
}

// Write writes a single-package manifest file, overwriting any
// existing file at the path.
func Write(filePath string, info *types.PackageInfo, timePackaged time.Time) error {
	f := ini.Empty(loadOptions)
	if err := Put(f, info, timePackaged); err != nil {
		return err
	}
	if err := f.SaveTo(filePath); err != nil {
		return fmt.Errorf("writing package manifest %s: %w", filePath, err)
	}
	return nil
}

// Put adds the package's section to an INI file. It is used both for
// standalone manifest files and for the repository's combined
// package-manifests dump.
func Put(f *ini.File, info *types.PackageInfo, timePackaged time.Time) error {
	sec, err := f.NewSection(info.ID)
	if err != nil {
		return fmt.Errorf("package manifest section %q: %w", info.ID, err)
	}

	put := func(key, value string) {
		if value != "" {
			sec.Key(key).SetValue(value)
		}
	}
	put("displayname", info.DisplayName)
	put("creator", info.Creator)
	put("title", info.Title)
	put("version", info.Version)
	put("targetsystem", info.TargetSystem)
	put("min_target_system_version", info.MinTargetSystemVersion)
	put("ctan_path", info.CtanPath)
	put("copyright_owner", info.CopyrightOwner)
	put("copyright_year", info.CopyrightYear)
	put("license_type", info.LicenseType)
	if !info.Digest.IsZero() {
		sec.Key("md5").SetValue(info.Digest.String())
	}
	if !timePackaged.IsZero() {
		sec.Key("timepackaged").SetValue(strconv.FormatInt(timePackaged.Unix(), 10))
	}
	if info.Description != "" {
		putShadows(sec, "description", strings.Split(info.Description, "\n"))
	}
	putShadows(sec, "requires", info.RequiredPackages)
	putShadows(sec, "run", info.RunFiles)
	putShadows(sec, "doc", info.DocFiles)
	putShadows(sec, "source", info.SourceFiles)
	if info.SizeRunFiles > 0 {
		sec.Key("sizerunfiles").SetValue(strconv.FormatInt(info.SizeRunFiles, 10))
	}
	if info.SizeDocFiles > 0 {
		sec.Key("sizedocfiles").SetValue(strconv.FormatInt(info.SizeDocFiles, 10))
	}
	if info.SizeSourceFiles > 0 {
		sec.Key("sizesourcefiles").SetValue(strconv.FormatInt(info.SizeSourceFiles, 10))
	}
	return nil
}

// shadows returns all values of a repeated key, dropping empties.
func shadows(sec *ini.Section, name string) []string {
	if !sec.HasKey(name) {
		return nil
	}
	var out []string
	for _, v := range sec.Key(name).ValueWithShadows() {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

// putShadows writes a repeated key, one shadow per value.
func putShadows(sec *ini.Section, name string, values []string) {
	for i, v := range values {
		if i == 0 {
			sec.Key(name).SetValue(v)
			continue
		}
		if err := sec.Key(name).AddShadow(v); err != nil {
			// AddShadow only fails when shadows are disabled, which
			// loadOptions rules out.
			logger.Error("adding shadow value", "key", name, "error", err)
		}
	}
}

// normalize converts stored entries to forward slashes and reports
// entries outside the expected prefix at debug level.
func normalize(entries []string, prefix string) []string {
	if len(entries) == 0 {
		return nil
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		e = strings.ReplaceAll(e, "\\", "/")
		if prefix != "" && !strings.HasPrefix(strings.ToLower(e), strings.ToLower(prefix)+"/") {
			logger.Debug("manifest entry outside prefix", "entry", e, "prefix", prefix)
		}
		out = append(out, e)
	}
	return out
}
