// Package staging reads and writes staging directories: the loose-file
// working copy of one package plus its side-car files (package.ini
// metadata, md5sums.txt digest listing, optional free-text
// Description), with the payload below Files/.
package staging

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/ini.v1"

	"github.com/texmill/repack/pkg/repack/digest"
	"github.com/texmill/repack/pkg/repack/types"
)

// Side-car file names within a staging directory.
const (
	MetadataFile    = "package.ini"
	ChecksumFile    = "md5sums.txt"
	DescriptionFile = "Description"

	// PayloadDir holds the package's file tree.
	PayloadDir = "Files"
)

// Errors for malformed staging metadata. Missing mandatory fields are
// fatal to the run.
var (
	ErrMissingID   = errors.New("invalid package information file (id)")
	ErrMissingName = errors.New("invalid package information file (name)")
)

// requiresSeparator splits multi-valued requires entries.
const requiresSeparator = ";"

// loadOptions allow repeated requires lines.
var loadOptions = ini.LoadOptions{AllowShadows: true}

// Exists reports whether dir looks like a staging directory (has a
// metadata file).
func Exists(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, MetadataFile))
	return err == nil
}

// Read parses a staging directory's side-car files into a PackageInfo.
// The id (with legacy externalname fallback) and name fields are
// mandatory; everything else is optional. The staging root is recorded
// as the package's source path.
func Read(dir string) (*types.PackageInfo, error) {
	f, err := ini.LoadSources(loadOptions, filepath.Join(dir, MetadataFile))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", filepath.Join(dir, MetadataFile), err)
	}
	sec := f.Section(ini.DefaultSection)

	info := &types.PackageInfo{Path: dir}

	info.ID = sec.Key("id").String()
	if info.ID == "" {
		// Legacy staging directories carry externalname instead.
		info.ID = sec.Key("externalname").String()
	}
	if info.ID == "" {
		return nil, fmt.Errorf("%w: %s", ErrMissingID, dir)
	}

	info.DisplayName = sec.Key("name").String()
	if info.DisplayName == "" {
		return nil, fmt.Errorf("%w: %s", ErrMissingName, dir)
	}

	info.Creator = sec.Key("creator").String()
	info.Title = sec.Key("title").String()
	info.Version = sec.Key("version").String()
	info.TargetSystem = sec.Key("targetsystem").String()
	info.MinTargetSystemVersion = sec.Key("min_target_system_version").String()
	info.CtanPath = sec.Key("ctan_path").String()
	info.CopyrightOwner = sec.Key("copyright_owner").String()
	info.CopyrightYear = sec.Key("copyright_year").String()
	info.LicenseType = sec.Key("license_type").String()

	if sec.HasKey("requires") {
		for _, v := range sec.Key("requires").ValueWithShadows() {
			for _, tok := range strings.Split(v, requiresSeparator) {
				if tok = strings.TrimSpace(tok); tok != "" {
					info.RequiredPackages = append(info.RequiredPackages, tok)
				}
			}
		}
	}

	if s := sec.Key("md5").String(); s != "" {
		d, err := digest.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", filepath.Join(dir, MetadataFile), err)
		}
		info.Digest = d
	}

	description, err := ReadDescription(dir)
	if err != nil {
		return nil, err
	}
	info.Description = description

	return info, nil
}

// ReadDescription returns the free-text description, or "" when the
// file is absent.
func ReadDescription(dir string) (string, error) {
	data, err := os.ReadFile(filepath.Join(dir, DescriptionFile))
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("reading description: %w", err)
	}
	return string(data), nil
}

// WriteDescription writes the free-text description file verbatim.
func WriteDescription(dir, description string) error {
	path := filepath.Join(dir, DescriptionFile)
	if err := os.WriteFile(path, []byte(description), 0o644); err != nil {
		return fmt.Errorf("writing description: %w", err)
	}
	return nil
}

// Write emits the staging side-car files: the metadata file, a sorted
// human-readable digest listing, and the description file when
// non-empty. The metadata file is written in a fixed key order so that
// successive runs produce byte-identical output.
func Write(dir string, info *types.PackageInfo, fileDigests *digest.Table, aggregate digest.Digest) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating staging directory: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "id=%s\n", info.ID)
	fmt.Fprintf(&b, "name=%s\n", info.DisplayName)
	fmt.Fprintf(&b, "creator=%s\n", info.Creator)
	fmt.Fprintf(&b, "title=%s\n", info.Title)
	fmt.Fprintf(&b, "version=%s\n", info.Version)
	fmt.Fprintf(&b, "targetsystem=%s\n", info.TargetSystem)
	fmt.Fprintf(&b, "min_target_system_version=%s\n", info.MinTargetSystemVersion)
	fmt.Fprintf(&b, "md5=%s\n", aggregate)
	fmt.Fprintf(&b, "ctan_path=%s\n", info.CtanPath)
	fmt.Fprintf(&b, "copyright_owner=%s\n", info.CopyrightOwner)
	fmt.Fprintf(&b, "copyright_year=%s\n", info.CopyrightYear)
	fmt.Fprintf(&b, "license_type=%s\n", info.LicenseType)
	for _, req := range info.RequiredPackages {
		fmt.Fprintf(&b, "requires=%s\n", req)
	}
	// Legacy consumers still read externalname.
	fmt.Fprintf(&b, "externalname=%s\n", info.ID)

	if err := os.WriteFile(filepath.Join(dir, MetadataFile), []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", MetadataFile, err)
	}

	var sums strings.Builder
	for _, p := range fileDigests.Paths() {
		d, _ := fileDigests.Get(p)
		fmt.Fprintf(&sums, "%s %s\n", d, strings.ReplaceAll(p, "\\", "/"))
	}
	if err := os.WriteFile(filepath.Join(dir, ChecksumFile), []byte(sums.String()), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", ChecksumFile, err)
	}

	if info.Description != "" {
		if err := WriteDescription(dir, info.Description); err != nil {
			return err
		}
	}
	return nil
}
