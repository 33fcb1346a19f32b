// Package prefix implements PrefixData: the authoritative read/write
// ledger of an installed conda environment — one JSON file per installed
// package under <prefix>/conda-meta/, an append-only history log, and an
// optional pinned-specs file.
package prefix

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	condacore "github.com/condacore/conda-core"
)

const condaMetaDir = "conda-meta"

// Data is the in-memory view of an installed prefix's ledger.
type Data struct {
	Root    string // the prefix directory
	records map[string]condacore.PrefixRecord
}

// Load reads every <prefix>/conda-meta/*.json ledger file into memory.
// A missing conda-meta directory is treated as an empty, not-yet-created
// prefix rather than an error.
func Load(root string) (*Data, error) {
	d := &Data{Root: root, records: make(map[string]condacore.PrefixRecord)}
	metaDir := filepath.Join(root, condaMetaDir)
	entries, err := os.ReadDir(metaDir)
	if os.IsNotExist(err) {
		return d, nil
	}
	if err != nil {
		return nil, &condacore.Error{Kind: condacore.ErrPrefix, Op: "prefix.Load", Inner: err}
	}
	for _, ent := range entries {
		if ent.IsDir() || !strings.HasSuffix(ent.Name(), ".json") {
			continue
		}
		path := filepath.Join(metaDir, ent.Name())
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, &condacore.Error{Kind: condacore.ErrPrefix, Op: "prefix.Load", Message: path, Inner: err}
		}
		var rec condacore.PrefixRecord
		if err := json.Unmarshal(b, &rec); err != nil {
			return nil, &condacore.Error{Kind: condacore.ErrPrefix, Op: "prefix.Load", Message: path, Inner: err}
		}
		d.records[rec.Name] = rec
	}
	return d, nil
}

// Records returns the installed packages, sorted by name for determinism.
func (d *Data) Records() []condacore.PrefixRecord {
	out := make([]condacore.PrefixRecord, 0, len(d.records))
	for _, r := range d.records {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Get returns the installed record for name, if any.
func (d *Data) Get(name string) (condacore.PrefixRecord, bool) {
	r, ok := d.records[name]
	return r, ok
}

// ledgerFilename is the <name>-<version>-<build>.json path a PrefixRecord
// is stored under, matching the filename a package is fetched as.
func ledgerFilename(r condacore.PrefixRecord) string {
	return r.Name + "-" + r.Version + "-" + r.Build + ".json"
}

// Put writes rec's ledger file atomically (write-to-temp + rename) and
// updates the in-memory map. A prior ledger file for the same name, if
// its filename differs (a version/build change), is removed after the
// new one is durably in place.
func (d *Data) Put(rec condacore.PrefixRecord) error {
	metaDir := filepath.Join(d.Root, condaMetaDir)
	if err := os.MkdirAll(metaDir, 0o755); err != nil {
		return &condacore.Error{Kind: condacore.ErrPrefix, Op: "prefix.Put", Inner: err}
	}

	b, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return &condacore.Error{Kind: condacore.ErrPrefix, Op: "prefix.Put", Inner: err}
	}
	finalPath := filepath.Join(metaDir, ledgerFilename(rec))
	tmp, err := os.CreateTemp(metaDir, ".tmp-*.json")
	if err != nil {
		return &condacore.Error{Kind: condacore.ErrPrefix, Op: "prefix.Put", Inner: err}
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return &condacore.Error{Kind: condacore.ErrPrefix, Op: "prefix.Put", Inner: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return &condacore.Error{Kind: condacore.ErrPrefix, Op: "prefix.Put", Inner: err}
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return &condacore.Error{Kind: condacore.ErrPrefix, Op: "prefix.Put", Inner: err}
	}

	if prev, ok := d.records[rec.Name]; ok {
		if prevPath := filepath.Join(metaDir, ledgerFilename(prev)); prevPath != finalPath {
			os.Remove(prevPath)
		}
	}
	d.records[rec.Name] = rec
	return nil
}

// Remove deletes name's ledger file and drops it from the in-memory map.
// Removing a package that isn't installed is not an error.
func (d *Data) Remove(name string) error {
	rec, ok := d.records[name]
	if !ok {
		return nil
	}
	path := filepath.Join(d.Root, condaMetaDir, ledgerFilename(rec))
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return &condacore.Error{Kind: condacore.ErrPrefix, Op: "prefix.Remove", Message: path, Inner: err}
	}
	delete(d.records, name)
	return nil
}

// Inconsistency describes one detected problem in the installed set,
// reported as a warning rather than a hard failure.
type Inconsistency struct {
	Kind    string // "missing_dependency" or "duplicate_name"
	Package string
	Detail  string
}

func (i Inconsistency) String() string {
	return fmt.Sprintf("%s: %s: %s", i.Kind, i.Package, i.Detail)
}

// CheckConsistency reports missing dependency records; repair (adding or
// removing records to fix them) is the solver's job, not PrefixData's.
// Duplicate names cannot occur in the current map representation (keyed
// by name) but are reported if found by some other ledger-construction
// path that didn't go through Load/Put.
func (d *Data) CheckConsistency() []Inconsistency {
	var problems []Inconsistency
	seen := make(map[string]bool, len(d.records))
	for _, rec := range d.Records() {
		if seen[rec.Name] {
			problems = append(problems, Inconsistency{Kind: "duplicate_name", Package: rec.Name, Detail: "more than one ledger entry"})
		}
		seen[rec.Name] = true
		for _, dep := range rec.Depends {
			depName := dependencyName(dep)
			if depName == "" || condacore.IsVirtual(depName) {
				continue
			}
			if _, ok := d.records[depName]; !ok {
				problems = append(problems, Inconsistency{
					Kind:    "missing_dependency",
					Package: rec.Name,
					Detail:  fmt.Sprintf("depends on %q, not installed", dep),
				})
			}
		}
	}
	return problems
}

// dependencyName extracts the package name from a depends-string entry
// ("numpy >=1.7" -> "numpy"), without pulling in the full MatchSpec
// parser for what is just a lightweight presence check.
func dependencyName(dep string) string {
	dep = strings.TrimSpace(dep)
	for i, r := range dep {
		if r == ' ' || r == '=' || r == '<' || r == '>' || r == '!' || r == '~' || r == '[' {
			return dep[:i]
		}
	}
	return dep
}
