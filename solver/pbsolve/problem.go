// Package pbsolve implements the small pseudo-boolean branch-and-bound
// search the solver package reduces a dependency problem to: one
// decision variable per package name (which candidate, if any, is chosen
// for that name), searched in a fixed variable order with feasibility
// pruning and an optional cost lower bound, optimizing a caller-supplied
// lexicographic cost.
//
// pbsolve knows nothing about MatchSpec, PackageRecord, or conda's
// semantics — that logic lives in the solver package's Problem callbacks.
package pbsolve

// Domain is one decision point: a package name and the number of real
// candidates available for it. Choice index [0, Choices) selects a
// candidate; choice index Choices means "no candidate of this name is
// installed."
type Domain struct {
	Name    string
	Choices int
}

// Cost is a lexicographic cost vector; lower values in earlier positions
// always outrank any value in later ones.
type Cost []int64

// Less reports whether a sorts strictly before b lexicographically.
func (a Cost) Less(b Cost) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}

// Problem is the search tree handed to Solve.
type Problem struct {
	Domains []Domain

	// Feasible reports whether the assignment built so far (choice index
	// per domain processed, -1 for not yet assigned) could still lead to
	// a valid complete solution. Called after every partial assignment
	// step to prune branches as early as possible.
	Feasible func(assignment []int) bool

	// Complete reports whether a fully assigned vector satisfies every
	// hard constraint (for package solver: requested specs, dependencies
	// and constrains; features only affect Cost).
	Complete func(assignment []int) bool

	// Cost scores a complete, valid assignment.
	Cost func(assignment []int) Cost

	// LowerBound optionally returns a cost that never overstates the
	// true cost of any completion of a partial assignment, used to prune
	// a branch once it cannot beat the best solution found so far. Nil
	// disables bound-based pruning (feasibility pruning alone still
	// applies).
	LowerBound func(assignment []int) Cost
}
