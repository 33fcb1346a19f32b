package pbsolve

import "testing"

// TestSolveFindsCheapestFeasibleAssignment builds two domains, "a" (2
// candidates) and "b" (2 candidates), with a hard constraint that a's
// choice 0 requires b to be assigned (not "none", index 2), and a cost
// equal to the choice indices themselves, so lower indices are cheaper.
func TestSolveFindsCheapestFeasibleAssignment(t *testing.T) {
	p := &Problem{
		Domains: []Domain{{Name: "a", Choices: 2}, {Name: "b", Choices: 2}},
		Feasible: func(assignment []int) bool {
			if len(assignment) >= 1 && assignment[0] == 0 && len(assignment) >= 2 && assignment[1] == 2 {
				return false // a=0 requires b != "none"
			}
			return true
		},
		Complete: func(assignment []int) bool {
			if assignment[0] == 0 {
				return assignment[1] != 2
			}
			return true
		},
		Cost: func(assignment []int) Cost {
			return Cost{int64(assignment[0]), int64(assignment[1])}
		},
	}

	res, err := Solve(p, 10000)
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if res.Assignment[0] != 0 {
		t.Fatalf("want a=0 (lowest cost), got %v", res.Assignment)
	}
	if res.Assignment[1] == 2 {
		t.Fatalf("want b assigned (a=0 requires it), got %v", res.Assignment)
	}
}

func TestSolveReportsUnsatisfiable(t *testing.T) {
	p := &Problem{
		Domains:  []Domain{{Name: "a", Choices: 1}},
		Feasible: func(assignment []int) bool { return true },
		Complete: func(assignment []int) bool { return false },
		Cost:     func(assignment []int) Cost { return Cost{0} },
	}
	_, err := Solve(p, 1000)
	if err != ErrUnsatisfiable {
		t.Fatalf("want ErrUnsatisfiable, got %v", err)
	}
}

func TestSolveRespectsNodeBudget(t *testing.T) {
	// Five domains with three choices each: 4^5 leaves, easily exceeding
	// a tiny budget, but always satisfiable so a best-effort result
	// should still come back.
	domains := make([]Domain, 5)
	for i := range domains {
		domains[i] = Domain{Name: "x", Choices: 3}
	}
	p := &Problem{
		Domains:  domains,
		Feasible: func(assignment []int) bool { return true },
		Complete: func(assignment []int) bool { return true },
		Cost: func(assignment []int) Cost {
			var sum int64
			for _, a := range assignment {
				sum += int64(a)
			}
			return Cost{sum}
		},
	}
	res, err := Solve(p, 5)
	if err != ErrBudgetExceeded {
		t.Fatalf("want ErrBudgetExceeded, got %v", err)
	}
	if res == nil {
		t.Fatal("want a best-effort result even when the budget is exceeded")
	}
}

func TestCostLess(t *testing.T) {
	if !(Cost{1, 5}).Less(Cost{2, 0}) {
		t.Fatal("want {1,5} < {2,0} lexicographically")
	}
	if (Cost{2, 0}).Less(Cost{1, 5}) {
		t.Fatal("want {2,0} not < {1,5}")
	}
}
