package pbsolve

import "errors"

// ErrUnsatisfiable is returned when no leaf of the search tree is both
// Feasible and Complete.
var ErrUnsatisfiable = errors.New("pbsolve: no satisfying assignment")

// ErrBudgetExceeded is returned when nodeBudget decision points were
// visited without exhausting the tree. Solve still returns the best
// solution found so far (if any) alongside this error, so a caller can
// choose to accept an approximate plan rather than fail outright.
var ErrBudgetExceeded = errors.New("pbsolve: search node budget exceeded")

// Result is one search outcome.
type Result struct {
	Assignment []int // choice index per domain, same order as Problem.Domains
	Cost       Cost
}

// Solve performs depth-first branch-and-bound over p.Domains in the given
// order: "branch" tries each domain's choices in ascending index (callers
// should order choices best-first per their objective so good solutions
// are found early), "bound" prunes once a branch's LowerBound can no
// longer beat the best complete solution found so far. nodeBudget caps
// the number of decision points visited so the search can't loop
// indefinitely on unsatisfiable input.
func Solve(p *Problem, nodeBudget int) (*Result, error) {
	n := len(p.Domains)
	assignment := make([]int, n)
	for i := range assignment {
		assignment[i] = -1
	}

	var best *Result
	nodes := 0
	budgetHit := false

	var rec func(i int)
	rec = func(i int) {
		if budgetHit {
			return
		}
		if i < n {
			nodes++
			if nodes > nodeBudget {
				budgetHit = true
				return
			}
		}
		if best != nil && p.LowerBound != nil {
			if lb := p.LowerBound(assignment); !lb.Less(best.Cost) {
				return
			}
		}
		if i == n {
			if !p.Complete(assignment) {
				return
			}
			cost := p.Cost(assignment)
			if best == nil || cost.Less(best.Cost) {
				cp := make([]int, n)
				copy(cp, assignment)
				best = &Result{Assignment: cp, Cost: cost}
			}
			return
		}
		d := p.Domains[i]
		for choice := 0; choice <= d.Choices; choice++ {
			assignment[i] = choice
			if p.Feasible(assignment) {
				rec(i + 1)
			}
			if budgetHit {
				break
			}
		}
		assignment[i] = -1
	}
	rec(0)

	switch {
	case best != nil && budgetHit:
		return best, ErrBudgetExceeded
	case best != nil:
		return best, nil
	case budgetHit:
		return nil, ErrBudgetExceeded
	default:
		return nil, ErrUnsatisfiable
	}
}
