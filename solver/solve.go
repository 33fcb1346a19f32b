package solver

import (
	"context"
	"sort"

	condacore "github.com/condacore/conda-core"
	"github.com/condacore/conda-core/repodata"
	"github.com/condacore/conda-core/solver/pbsolve"
)

// Solve runs the full solve state machine against index and req,
// returning a Plan or an error. A non-nil *Explanation can be extracted
// from the returned error with errors.As when the request proved
// unsatisfiable.
func Solve(ctx context.Context, index *repodata.Index, req Request) (*Plan, error) {
	ctx, rec := newMetricsRecorder(ctx)
	run := &solveRun{index: index, req: req, nodeBudget: defaultNodeBudget, metrics: rec}
	final, err := run.run(ctx, CollectingSpecs)
	rec.finish(final)
	if final == Unsatisfiable {
		if run.explanation != nil {
			return nil, run.explanation
		}
		return nil, err
	}
	return run.plan, nil
}

func searchEncoded(e *encoded, nodeBudget int) (*pbsolve.Result, error) {
	return pbsolve.Solve(e.problem, nodeBudget)
}

// planFromResult decodes a pbsolve.Result into an ordered Plan: unlinks
// for every installed package not surviving unchanged, links for every
// newly chosen or changed candidate, topologically sorted on the chosen
// dependency graph with lexical cycle-breaking.
func planFromResult(e *encoded, req Request, result *pbsolve.Result) *Plan {
	chosenMap := e.chosen(result.Assignment)

	installedByName := make(map[string]condacore.PrefixRecord, len(req.Installed))
	for _, r := range req.Installed {
		installedByName[r.Name] = r
	}

	plan := &Plan{}
	for name, installed := range installedByName {
		c, ok := chosenMap[name]
		if !ok || c.identity() != installed.Identity() {
			plan.Unlinks = append(plan.Unlinks, UnlinkAction{Record: installed})
		}
	}
	sort.Slice(plan.Unlinks, func(i, j int) bool {
		return plan.Unlinks[i].Record.Name < plan.Unlinks[j].Record.Name
	})

	var changedNames []string
	for name, c := range chosenMap {
		if installed, ok := installedByName[name]; ok && installed.Identity() == c.identity() {
			continue // unchanged; no link action needed
		}
		changedNames = append(changedNames, name)
	}

	order := topoSortLinks(changedNames, chosenMap)
	for _, name := range order {
		plan.Links = append(plan.Links, LinkAction{
			Record:   chosenMap[name].record,
			LinkType: condacore.LinkHard, // the transaction engine may fall back to copy/softlink
		})
	}
	return plan
}

// topoSortLinks orders names so that each chosen package's depends are
// linked before it (or were already installed and aren't being
// unlinked), breaking cycles deterministically by visiting names in
// lexical order.
func topoSortLinks(names []string, chosenMap map[string]*candidate) []string {
	sort.Strings(names)
	nameSet := make(map[string]bool, len(names))
	for _, n := range names {
		nameSet[n] = true
	}

	var order []string
	state := make(map[string]int) // 0=unvisited, 1=visiting, 2=done
	var visit func(name string)
	visit = func(name string) {
		if state[name] == 2 || state[name] == 1 {
			return // done, or a cycle: break it by simply not revisiting
		}
		state[name] = 1
		if c, ok := chosenMap[name]; ok {
			deps := make([]string, 0, len(c.depends))
			for _, d := range c.depends {
				if nameSet[d.Name] {
					deps = append(deps, d.Name)
				}
			}
			sort.Strings(deps)
			for _, d := range deps {
				visit(d)
			}
		}
		state[name] = 2
		order = append(order, name)
	}
	for _, n := range names {
		visit(n)
	}
	return order
}
