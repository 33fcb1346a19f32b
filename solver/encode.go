package solver

import (
	"sort"

	condacore "github.com/condacore/conda-core"
	"github.com/condacore/conda-core/matchspec"
	"github.com/condacore/conda-core/solver/pbsolve"
)

// freezeWeight multiplies tier-4's change count when the update modifier
// is FREEZE_INSTALLED, so the objective strongly rejects touching any
// installed package outside req.Target.
const freezeWeight = 1000

// encoded is the pseudo-boolean problem built from a reducedIndex: one
// pbsolve.Domain per package name, candidates pre-sorted best-first
// (see orderCandidates), plus the closures pbsolve needs to search it.
type encoded struct {
	names       []string // domain order, matches problem.Domains
	byName      map[string][]*candidate
	nameIndex   map[string]int
	virtual     map[string]*candidate // always-on fixed candidates
	requested   []*matchspec.MatchSpec
	pinned      []*matchspec.MatchSpec
	target      map[string]bool
	freezeAll   bool
	problem     *pbsolve.Problem
}

func buildEncoded(idx *reducedIndex, req Request) (*encoded, error) {
	e := &encoded{
		byName:    make(map[string][]*candidate),
		nameIndex: make(map[string]int),
		virtual:   make(map[string]*candidate),
		target:    make(map[string]bool),
		freezeAll: req.Modifier == FreezeInstalled,
	}
	for _, t := range req.Target {
		e.target[t] = true
	}

	for name, cands := range idx.byName {
		var real []*candidate
		for _, c := range cands {
			if condacore.IsVirtual(c.record.Name) {
				e.virtual[name] = c
				continue
			}
			real = append(real, c)
		}
		if len(real) == 0 {
			continue
		}
		orderCandidates(real, req.Policy.ChannelPriority)
		e.byName[name] = real
		e.names = append(e.names, name)
	}
	sort.Strings(e.names)
	for i, name := range e.names {
		e.nameIndex[name] = i
	}

	parseAll := func(specs []string) ([]*matchspec.MatchSpec, error) {
		out := make([]*matchspec.MatchSpec, 0, len(specs))
		for _, s := range specs {
			ms, err := matchspec.Parse(s)
			if err != nil {
				return nil, &condacore.Error{Kind: condacore.ErrParse, Op: "solver.buildEncoded", Message: s, Inner: err}
			}
			out = append(out, ms)
		}
		return out, nil
	}
	var err error
	if e.requested, err = parseAll(req.RequestedSpecs); err != nil {
		return nil, err
	}
	if e.pinned, err = parseAll(req.Policy.PinnedSpecs); err != nil {
		return nil, err
	}

	domains := make([]pbsolve.Domain, len(e.names))
	for i, name := range e.names {
		domains[i] = pbsolve.Domain{Name: name, Choices: len(e.byName[name])}
	}

	e.problem = &pbsolve.Problem{
		Domains:    domains,
		Feasible:   e.feasible,
		Complete:   e.complete,
		Cost:       e.cost,
		LowerBound: e.lowerBound,
	}
	return e, nil
}

// chosen returns name -> candidate for every domain decided so far in
// assignment (choice index != -1 and != "none").
func (e *encoded) chosen(assignment []int) map[string]*candidate {
	out := make(map[string]*candidate, len(assignment))
	for i, choice := range assignment {
		if choice < 0 {
			continue
		}
		name := e.names[i]
		if choice == len(e.byName[name]) {
			continue // "none"
		}
		out[name] = e.byName[name][choice]
	}
	return out
}

// matchesDecided reports whether spec is satisfied given the currently
// decided choices. decided is false only while spec.Name's domain is not
// assigned yet. Otherwise matched reports whether the virtual package or
// the chosen candidate of spec.Name matches spec, and is false when the
// name has no candidates at all or is decided "none".
func (e *encoded) matchesDecided(spec *matchspec.MatchSpec, assignment []int, chosenMap map[string]*candidate) (matched, decided bool) {
	if v, ok := e.virtual[spec.Name]; ok {
		return matchspec.Match(spec, &v.record), true
	}
	idx, ok := e.nameIndex[spec.Name]
	if !ok {
		return false, true // no candidate of this name exists at all anywhere
	}
	if assignment[idx] < 0 {
		return false, false
	}
	c, ok := chosenMap[spec.Name]
	if !ok {
		return false, true // decided "none"
	}
	return matchspec.Match(spec, &c.record), true
}

// feasible is pbsolve's early-pruning hook: only checks constraints whose
// relevant variables are already decided.
func (e *encoded) feasible(assignment []int) bool {
	chosenMap := e.chosen(assignment)
	for _, c := range chosenMap {
		for _, dep := range c.depends {
			matched, decided := e.matchesDecided(dep, assignment, chosenMap)
			if decided && !matched {
				return false
			}
		}
		for _, cs := range c.constrains {
			if _, ok := e.virtual[cs.Name]; ok {
				continue
			}
			idx, ok := e.nameIndex[cs.Name]
			if !ok || assignment[idx] < 0 {
				continue
			}
			other, chosen := chosenMap[cs.Name]
			if chosen && other != nil && !matchspec.Match(cs, &other.record) {
				return false
			}
		}
	}
	return true
}

// complete is pbsolve's final-leaf validator: every hard dependency and
// constrains constraint, except the feature constraint, which is scored
// (not enforced) at tier 3 of the objective.
func (e *encoded) complete(assignment []int) bool {
	chosenMap := e.chosen(assignment)
	for _, c := range chosenMap {
		for _, dep := range c.depends {
			matched, _ := e.matchesDecided(dep, assignment, chosenMap)
			if !matched {
				return false
			}
		}
		for _, cs := range c.constrains {
			if _, ok := e.virtual[cs.Name]; ok {
				continue
			}
			if other, ok := chosenMap[cs.Name]; ok {
				if !matchspec.Match(cs, &other.record) {
					return false
				}
			}
		}
	}
	for _, spec := range e.requested {
		if v, ok := e.virtual[spec.Name]; ok {
			if matchspec.Match(spec, &v.record) {
				continue
			}
			return false
		}
		c, ok := chosenMap[spec.Name]
		if !ok || !matchspec.Match(spec, &c.record) {
			return false
		}
	}
	return true
}

// onFeatures returns the union of track_features provided by the chosen
// set: a feature f is on iff some chosen record lists it.
func onFeatures(chosenMap map[string]*candidate) map[string]bool {
	on := make(map[string]bool)
	for _, c := range chosenMap {
		for _, f := range c.record.TrackFeatures {
			on[f] = true
		}
	}
	return on
}

func (e *encoded) cost(assignment []int) pbsolve.Cost {
	chosenMap := e.chosen(assignment)
	on := onFeatures(chosenMap)

	var removals, pinViolations, featureMismatches, changes, compositeRank int64
	total := int64(len(chosenMap))

	for _, c := range chosenMap {
		for _, f := range c.record.Features {
			if !on[f] {
				featureMismatches++
			}
		}
	}
	for name, c := range chosenMap {
		compositeRank += int64(indexOf(e.byName[name], c))
	}
	for name, installedCand := range installedCandidates(e) {
		if e.target[name] {
			continue
		}
		chosen, ok := chosenMap[name]
		if !ok || chosen.identity() != installedCand.identity() {
			removals++
			weight := int64(1)
			if e.freezeAll {
				weight = freezeWeight
			}
			changes += weight
		}
	}
	for _, spec := range e.pinned {
		if v, ok := e.virtual[spec.Name]; ok {
			if !matchspec.Match(spec, &v.record) {
				pinViolations++
			}
			continue
		}
		c, ok := chosenMap[spec.Name]
		if !ok || !matchspec.Match(spec, &c.record) {
			pinViolations++
		}
	}

	return pbsolve.Cost{removals, pinViolations, featureMismatches, changes, compositeRank, total}
}

// lowerBound gives pbsolve a monotonic partial cost for tiers 1 and 2
// (removals and pin violations can only grow as more variables are
// decided), letting it prune branches that already exceed the best
// complete solution found so far on those two tiers alone.
func (e *encoded) lowerBound(assignment []int) pbsolve.Cost {
	chosenMap := e.chosen(assignment)
	var removals, pinViolations int64
	for name, installedCand := range installedCandidates(e) {
		if e.target[name] {
			continue
		}
		idx := e.nameIndex[name]
		if assignment[idx] < 0 {
			continue
		}
		chosen, ok := chosenMap[name]
		if !ok || chosen.identity() != installedCand.identity() {
			removals++
		}
	}
	for _, spec := range e.pinned {
		idx, ok := e.nameIndex[spec.Name]
		if !ok {
			continue
		}
		if _, isVirtual := e.virtual[spec.Name]; isVirtual {
			continue
		}
		if assignment[idx] < 0 {
			continue
		}
		c, ok := chosenMap[spec.Name]
		if !ok || !matchspec.Match(spec, &c.record) {
			pinViolations++
		}
	}
	return pbsolve.Cost{removals, pinViolations, 0, 0, 0, 0}
}

func installedCandidates(e *encoded) map[string]*candidate {
	out := make(map[string]*candidate)
	for name, cands := range e.byName {
		for _, c := range cands {
			if c.wasInstalled {
				out[name] = c
				break
			}
		}
	}
	return out
}

func indexOf(cands []*candidate, c *candidate) int {
	for i, x := range cands {
		if x == c {
			return i
		}
	}
	return 0
}
