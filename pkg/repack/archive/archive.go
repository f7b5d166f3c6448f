// Package archive creates, extracts, and compresses package archives
// by shelling out to external tools (tar, bzip2, xz, cabextract,
// unzip). Every format carries its own extension and command templates
// in a single dispatch table; call sites never switch on the format.
package archive

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/texmill/repack/pkg/repack/logging"
	"github.com/texmill/repack/pkg/repack/types"
)

var logger = logging.Get("archive")

// Format identifies an archive file format.
type Format int

// Supported archive formats. TarLzma is the default for new archives;
// TarBzip2 is retained for pre-2.7-series repositories. Cabinet and
// Zip are legacy read-only formats.
const (
	None Format = iota
	Cabinet
	TarBzip2
	Zip
	Tar
	TarLzma
)

// Errors surfaced by the subsystem.
var (
	ErrXzNotFound        = errors.New("the xz utility could not be found on PATH")
	ErrUnknownFormat     = errors.New("unknown archive file type")
	ErrUnsupportedCreate = errors.New("archive file type does not support creation")
)

// CommandError reports a failed external-tool invocation, preserving
// the command line and its combined output for the operator.
type CommandError struct {
	Command string
	Output  string
	Err     error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("system command failed: %s: %s", e.Command, strings.TrimSpace(e.Output))
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// formatSpec describes one archive format: its extension, its database
// token, and command builders for each operation. A nil builder means
// the operation is not supported for the format.
type formatSpec struct {
	ext        string
	token      string
	create     func(s *Subsystem, archiveFile, filter string) string
	extract    func(s *Subsystem, archiveFile string) string
	extractOne func(s *Subsystem, archiveFile, member, outFile string) string
	compress   func(s *Subsystem, inFile, outFile string) string
}

var formats = map[Format]formatSpec{
	Cabinet: {
		ext:   ".cab",
		token: "MSCab",
		extract: func(s *Subsystem, a string) string {
			return "cabextract " + quote(a)
		},
		extractOne: func(s *Subsystem, a, m, out string) string {
			return fmt.Sprintf("cabextract --filter %s --pipe %s > %s", quote(m), quote(a), quote(out))
		},
	},
	TarBzip2: {
		ext:   ".tar.bz2",
		token: "TarBzip2",
		create: func(s *Subsystem, a, filter string) string {
			return fmt.Sprintf("tar -cjf %s %s", quote(a), filter)
		},
		extract: func(s *Subsystem, a string) string {
			return "tar --force-local -xjf " + quote(a)
		},
		extractOne: func(s *Subsystem, a, m, out string) string {
			return fmt.Sprintf("tar --force-local --to-stdout -xjf %s %s > %s", quote(a), quote(m), quote(out))
		},
		compress: func(s *Subsystem, in, out string) string {
			return fmt.Sprintf("bzip2 --keep --compress --stdout %s > %s", quote(in), quote(out))
		},
	},
	Zip: {
		ext:   ".zip",
		token: "Zip",
		extract: func(s *Subsystem, a string) string {
			return "unzip -o " + quote(a)
		},
		extractOne: func(s *Subsystem, a, m, out string) string {
			return fmt.Sprintf("unzip -p %s %s > %s", quote(a), quote(m), quote(out))
		},
	},
	Tar: {
		ext:   ".tar",
		token: "Tar",
		create: func(s *Subsystem, a, filter string) string {
			return fmt.Sprintf("tar --force-local -cf %s %s", quote(a), filter)
		},
		extract: func(s *Subsystem, a string) string {
			return "tar --force-local -xf " + quote(a)
		},
		extractOne: func(s *Subsystem, a, m, out string) string {
			return fmt.Sprintf("tar --force-local --to-stdout -xf %s %s > %s", quote(a), quote(m), quote(out))
		},
	},
	TarLzma: {
		ext:   ".tar.lzma",
		token: "TarLzma",
		create: func(s *Subsystem, a, filter string) string {
			return fmt.Sprintf("tar -cf - %s | %s --compress --format=lzma > %s", filter, quote(s.xz), quote(a))
		},
		extract: func(s *Subsystem, a string) string {
			return fmt.Sprintf("%s --decompress --format=lzma --keep --stdout %s | tar --force-local -xf -", quote(s.xz), quote(a))
		},
		extractOne: func(s *Subsystem, a, m, out string) string {
			return fmt.Sprintf("%s --decompress --format=lzma --keep --stdout %s | tar --force-local --to-stdout -xf - %s > %s",
				quote(s.xz), quote(a), quote(m), quote(out))
		},
		compress: func(s *Subsystem, in, out string) string {
			return fmt.Sprintf("%s --compress --format=lzma --keep --stdout %s > %s", quote(s.xz), quote(in), quote(out))
		},
	},
}

// Extension returns the fixed file-name suffix for the format.
func (f Format) Extension() (string, error) {
	spec, ok := formats[f]
	if !ok {
		return "", ErrUnknownFormat
	}
	return spec.ext, nil
}

// Token returns the database token for the format ("MSCab",
// "TarBzip2", ...), or "unknown".
func (f Format) Token() string {
	spec, ok := formats[f]
	if !ok {
		return "unknown"
	}
	return spec.token
}

// ParseFormat parses a database token into a Format.
func ParseFormat(token string) (Format, error) {
	for f, spec := range formats {
		if spec.token == token {
			return f, nil
		}
	}
	return None, fmt.Errorf("%w: %q", ErrUnknownFormat, token)
}

// DBFormat returns the archive format used for repository database
// archives in the given series. Pre-2.7 repositories keep TarBzip2.
func DBFormat(series types.Series) Format {
	if series.Before(types.Series{Major: 2, Minor: 7}) {
		return TarBzip2
	}
	return TarLzma
}

// Subsystem runs archive operations. It resolves the xz executable
// once at construction; a missing xz is unrecoverable because every
// current-series repository artifact is lzma-compressed.
type Subsystem struct {
	xz string

	// Observer, when set, receives the combined output of every
	// external tool invocation after it completes.
	Observer func(command, output string)
}

// New locates the required external tools and returns a Subsystem.
func New() (*Subsystem, error) {
	xz, err := exec.LookPath("xz")
	if err != nil {
		return nil, ErrXzNotFound
	}
	return &Subsystem{xz: xz}, nil
}

// run executes a shell command line with a working directory, capturing
// combined output. Tool failures surface as *CommandError.
func (s *Subsystem) run(cmdline, workdir string) error {
	logger.Debug("running", "command", cmdline, "dir", workdir)
	cmd := exec.Command("/bin/sh", "-c", cmdline)
	cmd.Dir = workdir
	out, err := cmd.CombinedOutput()
	if s.Observer != nil {
		s.Observer(cmdline, string(out))
	}
	if err != nil {
		return &CommandError{Command: cmdline, Output: string(out), Err: err}
	}
	return nil
}

// Create builds an archive from filter (a path relative to workdir).
// A pre-existing output file is deleted first.
func (s *Subsystem) Create(f Format, archiveFile, filter, workdir string) error {
	spec, ok := formats[f]
	if !ok {
		return ErrUnknownFormat
	}
	if spec.create == nil {
		return fmt.Errorf("%w: %s", ErrUnsupportedCreate, spec.token)
	}
	if err := removeIfExists(archiveFile); err != nil {
		return err
	}
	return s.run(spec.create(s, archiveFile, filter), workdir)
}

// Extract unpacks an archive into outDir.
func (s *Subsystem) Extract(archiveFile string, f Format, outDir string) error {
	spec, ok := formats[f]
	if !ok || spec.extract == nil {
		return ErrUnknownFormat
	}
	return s.run(spec.extract(s, archiveFile), outDir)
}

// ExtractSingleFile streams one archive member into outFile without a
// full extraction. The member path uses forward slashes.
func (s *Subsystem) ExtractSingleFile(archiveFile string, f Format, member, outFile string) error {
	spec, ok := formats[f]
	if !ok || spec.extractOne == nil {
		return ErrUnknownFormat
	}
	return s.run(spec.extractOne(s, archiveFile, member, outFile), "")
}

// Compress compresses a single file into outFile and removes the input
// on success. A pre-existing output file is deleted first.
func (s *Subsystem) Compress(inFile string, f Format, outFile string) error {
	spec, ok := formats[f]
	if !ok {
		return ErrUnknownFormat
	}
	if spec.compress == nil {
		return fmt.Errorf("%w: %s", ErrUnsupportedCreate, spec.token)
	}
	if err := removeIfExists(outFile); err != nil {
		return err
	}
	if err := s.run(spec.compress(s, inFile, outFile), ""); err != nil {
		return err
	}
	return os.Remove(inFile)
}

// TarInit creates an empty tar file. The tar step is split from
// compression because appends must run from different working
// directories for different content roots.
func (s *Subsystem) TarInit(tarFile, workdir string) error {
	if err := removeIfExists(tarFile); err != nil {
		return err
	}
	return s.run(fmt.Sprintf("tar --force-local -cf %s --files-from=/dev/null", quote(tarFile)), workdir)
}

// TarAppend appends path (relative to workdir) to an existing tar file.
func (s *Subsystem) TarAppend(tarFile, path, workdir string) error {
	return s.run(fmt.Sprintf("tar --force-local -rf %s %s", quote(tarFile), quote(path)), workdir)
}

// DetectPackageArchive looks for an existing archive file for the
// package id in the repository, trying known formats from oldest to
// newest so that the newest present format wins.
func DetectPackageArchive(repository, id string) (string, Format, bool) {
	found := ""
	format := None
	for _, f := range []Format{Cabinet, TarBzip2, TarLzma} {
		ext, _ := f.Extension()
		candidate := filepath.Join(repository, id+ext)
		if _, err := os.Stat(candidate); err == nil {
			found = candidate
			format = f
		}
	}
	return found, format, format != None
}

// removeIfExists deletes path if present (overwrite semantics).
func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// quote wraps a path in single quotes for /bin/sh, escaping embedded
// single quotes.
func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
