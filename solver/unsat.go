package solver

import (
	"fmt"
	"sort"
	"strings"

	"github.com/condacore/conda-core/matchspec"
)

// ConflictGroup is one minimal set of requested specs whose candidate
// sets share no common ground, along with the dependency chain that
// forced each side into the index.
type ConflictGroup struct {
	Specs []string
	Chain map[string][]string // spec -> chain of specs that pulled its name into the index
}

// Explanation is the structured unsatisfiability report returned in
// place of a bare "no solution" error.
type Explanation struct {
	Groups []ConflictGroup
}

func (exp *Explanation) Error() string {
	if len(exp.Groups) == 0 {
		return "solver: request is unsatisfiable"
	}
	return fmt.Sprintf("solver: request is unsatisfiable: %d conflicting group(s), first: %v", len(exp.Groups), exp.Groups[0].Specs)
}

// specInfo is one requested spec together with the candidates (of its own
// name) that satisfy it.
type specInfo struct {
	raw   string
	ms    *matchspec.MatchSpec
	cands []*candidate
}

// inducedConstraint is a constraint on some package name that a requested
// spec forces indirectly, by way of a chain of dependency edges starting
// at that spec's own candidates.
type inducedConstraint struct {
	root  string // raw text of the requested spec this constraint traces back to
	ms    *matchspec.MatchSpec
	chain []string
}

// explainUnsatisfiable builds an Explanation by finding, among the
// requested specs: (a) specs with no matching candidate anywhere, (b)
// pairs of same-named requested specs whose candidate sets are disjoint,
// and (c) requested specs whose candidates' transitive dependencies
// induce a constraint on another name that no candidate of that name can
// satisfy together with whatever else constrains it.
func explainUnsatisfiable(e *encoded, req Request) *Explanation {
	infos := make([]specInfo, 0, len(e.requested))
	for i, ms := range e.requested {
		var cands []*candidate
		if v, ok := e.virtual[ms.Name]; ok {
			if matchspec.Match(ms, &v.record) {
				cands = []*candidate{v}
			}
		} else {
			for _, c := range e.byName[ms.Name] {
				if matchspec.Match(ms, &c.record) {
					cands = append(cands, c)
				}
			}
		}
		infos = append(infos, specInfo{raw: req.RequestedSpecs[i], ms: ms, cands: cands})
	}

	var groups []ConflictGroup
	seen := make(map[string]bool)
	addGroup := func(g ConflictGroup) {
		specs := append([]string(nil), g.Specs...)
		sort.Strings(specs)
		key := strings.Join(specs, "\x00")
		if seen[key] {
			return
		}
		seen[key] = true
		groups = append(groups, g)
	}

	for i := range infos {
		if len(infos[i].cands) == 0 {
			addGroup(ConflictGroup{
				Specs: []string{infos[i].raw},
				Chain: map[string][]string{infos[i].raw: {infos[i].raw}},
			})
		}
	}

	for i := range infos {
		if len(infos[i].cands) == 0 {
			continue
		}
		for j := i + 1; j < len(infos); j++ {
			if len(infos[j].cands) == 0 {
				continue
			}
			if infos[i].ms.Name != infos[j].ms.Name {
				continue // only specs on the same name can directly conflict at this granularity
			}
			if !candidateSetsIntersect(infos[i].cands, infos[j].cands) {
				addGroup(ConflictGroup{
					Specs: []string{infos[i].raw, infos[j].raw},
					Chain: map[string][]string{
						infos[i].raw: {infos[i].raw},
						infos[j].raw: {infos[j].raw},
					},
				})
			}
		}
	}

	inducedByName := traceInducedConstraints(e, infos)
	for name, induced := range inducedByName {
		var cands []*candidate
		if v, ok := e.virtual[name]; ok {
			cands = []*candidate{v}
		} else {
			cands = e.byName[name]
		}

		var constraints []*matchspec.MatchSpec
		specsSet := make(map[string]bool)
		chain := make(map[string][]string)
		for i := range infos {
			if infos[i].ms.Name != name || len(infos[i].cands) == 0 {
				continue
			}
			constraints = append(constraints, infos[i].ms)
			specsSet[infos[i].raw] = true
			chain[infos[i].raw] = []string{infos[i].raw}
		}
		for _, ind := range induced {
			constraints = append(constraints, ind.ms)
			specsSet[ind.root] = true
			if existing, ok := chain[ind.root]; !ok || len(ind.chain) > len(existing) {
				chain[ind.root] = ind.chain
			}
		}
		if len(specsSet) < 2 || len(constraints) < 2 {
			continue
		}
		if candidateSatisfiesAll(cands, constraints) {
			continue
		}
		specs := make([]string, 0, len(specsSet))
		for s := range specsSet {
			specs = append(specs, s)
		}
		addGroup(ConflictGroup{Specs: specs, Chain: chain})
	}

	return &Explanation{Groups: groups}
}

// traceInducedConstraints walks the dependency graph reachable from each
// requested spec's matching candidates, recording every other name's
// induced constraint together with the chain of specs that forced it.
// The walk is bounded in depth to guard against dependency cycles.
func traceInducedConstraints(e *encoded, infos []specInfo) map[string][]inducedConstraint {
	const maxDepth = 8
	out := make(map[string][]inducedConstraint)

	for _, info := range infos {
		if len(info.cands) == 0 {
			continue
		}
		visited := map[string]bool{info.ms.Name: true}
		var walk func(cands []*candidate, chain []string, depth int)
		walk = func(cands []*candidate, chain []string, depth int) {
			if depth >= maxDepth {
				return
			}
			for _, c := range cands {
				for _, dep := range c.depends {
					if dep.Name == info.ms.Name {
						continue // an edge back to the root name isn't a new induced constraint
					}
					step := c.record.Filename(false) + " depends on " + dep.Render()
					nextChain := append(append([]string(nil), chain...), step)
					out[dep.Name] = append(out[dep.Name], inducedConstraint{root: info.raw, ms: dep, chain: nextChain})

					if visited[dep.Name] {
						continue
					}
					visited[dep.Name] = true

					var depCands []*candidate
					if v, ok := e.virtual[dep.Name]; ok {
						if matchspec.Match(dep, &v.record) {
							depCands = []*candidate{v}
						}
					} else {
						for _, dc := range e.byName[dep.Name] {
							if matchspec.Match(dep, &dc.record) {
								depCands = append(depCands, dc)
							}
						}
					}
					walk(depCands, nextChain, depth+1)
				}
			}
		}
		walk(info.cands, []string{info.raw}, 0)
	}
	return out
}

// candidateSatisfiesAll reports whether some candidate in cands matches
// every spec in constraints simultaneously.
func candidateSatisfiesAll(cands []*candidate, constraints []*matchspec.MatchSpec) bool {
	for _, c := range cands {
		all := true
		for _, ms := range constraints {
			if !matchspec.Match(ms, &c.record) {
				all = false
				break
			}
		}
		if all {
			return true
		}
	}
	return false
}

func candidateSetsIntersect(a, b []*candidate) bool {
	seen := make(map[*candidate]bool, len(a))
	for _, c := range a {
		seen[c] = true
	}
	for _, c := range b {
		if seen[c] {
			return true
		}
	}
	return false
}
