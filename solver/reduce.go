package solver

import (
	condacore "github.com/condacore/conda-core"
	"github.com/condacore/conda-core/matchspec"
)

// reducedIndex is the transitive closure of candidates reachable from a
// request, grouped by name — the single largest practical speedup
// before SAT encoding.
type reducedIndex struct {
	byName map[string][]*candidate
}

// reduceIndex prunes byName (as produced by repodata.Index.ByName) to the
// transitive closure of candidates reachable from req: start from
// installed records, requested/pinned/history specs, and virtual
// packages; iteratively add each surviving candidate's dependency
// candidates; drop a candidate once any of its depends has no surviving
// candidate.
func reduceIndex(byName map[string][]condacore.PackageRecord, req Request) (*reducedIndex, error) {
	seedSpecs := make([]string, 0, len(req.RequestedSpecs)+len(req.HistorySpecs)+len(req.Policy.PinnedSpecs))
	seedSpecs = append(seedSpecs, req.RequestedSpecs...)
	seedSpecs = append(seedSpecs, req.HistorySpecs...)
	seedSpecs = append(seedSpecs, req.Policy.PinnedSpecs...)

	installedByName := make(map[string]condacore.PrefixRecord, len(req.Installed))
	for _, r := range req.Installed {
		installedByName[r.Name] = r
	}

	needed := make(map[string]bool)
	for _, s := range seedSpecs {
		ms, err := matchspec.Parse(s)
		if err != nil {
			return nil, &condacore.Error{Kind: condacore.ErrParse, Op: "solver.reduceIndex", Message: s, Inner: err}
		}
		needed[ms.Name] = true
	}
	for name := range installedByName {
		needed[name] = true
	}
	for name, records := range byName {
		for _, r := range records {
			if r.Channel.Name == condacore.UnknownChannel || condacore.IsVirtual(r.Name) {
				needed[name] = true
			}
		}
	}

	out := &reducedIndex{byName: make(map[string][]*candidate)}
	queue := make([]string, 0, len(needed))
	for name := range needed {
		queue = append(queue, name)
	}
	visited := make(map[string]bool)
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		if visited[name] {
			continue
		}
		visited[name] = true

		records := byName[name]
		cands := make([]*candidate, 0, len(records))
		for _, r := range records {
			c := &candidate{record: r}
			for _, d := range r.Depends {
				ms, err := matchspec.Parse(d)
				if err != nil {
					continue // malformed depends strings in third-party channels are skipped, not fatal
				}
				c.depends = append(c.depends, ms)
				if !visited[ms.Name] {
					queue = append(queue, ms.Name)
				}
			}
			for _, cs := range r.Constrains {
				ms, err := matchspec.Parse(cs)
				if err != nil {
					continue
				}
				c.constrains = append(c.constrains, ms)
			}
			if installed, ok := installedByName[name]; ok && installed.Identity() == r.Identity() {
				c.wasInstalled = true
			}
			cands = append(cands, c)
		}
		out.byName[name] = cands
	}

	pruneUnreachableDependencies(out)
	return out, nil
}

// pruneUnreachableDependencies drops a candidate once some dependency
// spec of its has no surviving candidate, repeating until a fixed point:
// a candidate is dropped if no candidate of each of its depends survives.
func pruneUnreachableDependencies(idx *reducedIndex) {
	for {
		changed := false
		for name, cands := range idx.byName {
			var kept []*candidate
			for _, c := range cands {
				if allDependsSatisfiable(c, idx) {
					kept = append(kept, c)
				} else {
					changed = true
				}
			}
			idx.byName[name] = kept
		}
		if !changed {
			return
		}
	}
}

func allDependsSatisfiable(c *candidate, idx *reducedIndex) bool {
	for _, dep := range c.depends {
		if condacore.IsVirtual(dep.Name) {
			continue // virtual packages are always available as fixed candidates
		}
		if !anyMatches(dep, idx.byName[dep.Name]) {
			return false
		}
	}
	return true
}

func anyMatches(ms *matchspec.MatchSpec, cands []*candidate) bool {
	for _, c := range cands {
		if matchspec.Match(ms, &c.record) {
			return true
		}
	}
	return false
}
