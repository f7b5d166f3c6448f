package builder

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/texmill/repack/pkg/repack/archive"
	"github.com/texmill/repack/pkg/repack/types"
)

// ReadPackageList parses a package selection list file into specs.
// Each line starts with a level character (one of -, S, M, L, T)
// followed by the package id; an optional second token, separated by a
// semicolon, names the preferred archive format. Lines starting with
// '@' include another list file. Any other leading character makes the
// line a comment. The first entry for an id wins; duplicates are
// reported through warn and skipped.
func ReadPackageList(path string, defaultFormat archive.Format, specs map[string]types.PackageSpec, warn func(msg string)) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("reading package list: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		ch := line[0]
		rest := strings.TrimLeft(line[1:], " \t")
		if rest == "" {
			continue
		}
		if ch == '@' {
			if err := ReadPackageList(rest, defaultFormat, specs, warn); err != nil {
				return err
			}
			continue
		}
		level, err := types.ParseLevel(string(ch))
		if err != nil {
			continue
		}

		tokens := strings.SplitN(rest, ";", 2)
		id := tokens[0]
		if prev, ok := specs[id]; ok {
			warn(fmt.Sprintf("ignoring '%c %s': already marked as '%s'", ch, id, prev.Level))
			continue
		}

		format := defaultFormat
		if len(tokens) > 1 && tokens[1] != "" {
			format, err = archive.ParseFormat(tokens[1])
			if err != nil {
				return fmt.Errorf("%w: %s", ErrInvalidPackageList, path)
			}
		}

		specs[id] = types.PackageSpec{ID: id, Level: level, ArchiveType: format.Token()}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading package list: %w", err)
	}
	return nil
}
