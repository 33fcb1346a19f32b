package prefix

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	condacore "github.com/condacore/conda-core"
)

const pinnedFilename = "pinned"

// LoadPinned parses <prefix>/conda-meta/pinned: one MatchSpec string per
// line, blank lines and "#"-prefixed comments ignored. The file is
// optional; a missing file yields no pins, not an error.
func LoadPinned(root string) ([]string, error) {
	f, err := os.Open(filepath.Join(root, condaMetaDir, pinnedFilename))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, &condacore.Error{Kind: condacore.ErrPrefix, Op: "prefix.LoadPinned", Inner: err}
	}
	defer f.Close()

	var pins []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		pins = append(pins, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, &condacore.Error{Kind: condacore.ErrPrefix, Op: "prefix.LoadPinned", Inner: err}
	}
	return pins, nil
}

// RequestedSpecs returns the union PrefixData exposes to the solver: the
// most recent history transaction's specs, plus the prefix's pinned
// specs, plus any globally configured pinned_packages.
// Order is history-first, then prefix pins, then global pins, with
// duplicates (by exact string) removed, preserving first occurrence.
func RequestedSpecs(h *History, prefixPins []string, globalPins []string) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(specs []string) {
		for _, s := range specs {
			if s == "" || seen[s] {
				continue
			}
			seen[s] = true
			out = append(out, s)
		}
	}
	add(h.RequestedSpecs())
	add(prefixPins)
	add(globalPins)
	return out
}
