package solver

import (
	"context"
	"time"

	"github.com/condacore/conda-core/repodata"
)

// State is one stage of a solve: a State enum, a map[State]stateFunc,
// and a run loop that walks it to a terminal state.
type State int

const (
	CollectingSpecs State = iota
	ReducingIndex
	Encoding
	Searching
	Satisfied
	FrozenRetry
	FullRetry
	Unsatisfiable
)

func (s State) String() string {
	switch s {
	case CollectingSpecs:
		return "collecting_specs"
	case ReducingIndex:
		return "reducing_index"
	case Encoding:
		return "encoding"
	case Searching:
		return "searching"
	case Satisfied:
		return "satisfied"
	case FrozenRetry:
		return "frozen_retry"
	case FullRetry:
		return "full_retry"
	case Unsatisfiable:
		return "unsatisfiable"
	default:
		return "unknown"
	}
}

// terminal reports whether s ends the state machine.
func (s State) terminal() bool {
	return s == Satisfied || s == Unsatisfiable
}

// stateFunc implements the logic of one state, returning the next state
// to transition to.
type stateFunc func(ctx context.Context, run *solveRun) (State, error)

var stateToStateFunc = map[State]stateFunc{
	CollectingSpecs: doCollectingSpecs,
	ReducingIndex:   doReducingIndex,
	Encoding:        doEncoding,
	Searching:       doSearching,
	FrozenRetry:     doFrozenRetry,
	FullRetry:       doFullRetry,
}

// solveRun carries the mutable state threaded through one Solve call's
// state machine as explicit state, never a package-level global.
type solveRun struct {
	index *repodata.Index
	req   Request

	forceFreeze bool // true while attempting frozen_retry

	reduced  *reducedIndex
	enc      *encoded
	nodeBudget int

	plan        *Plan
	explanation *Explanation

	metrics *metricsRecorder
}

const defaultNodeBudget = 200_000

// run walks the state machine from start, emitting a metric per
// transition, until a terminal state is reached.
func (r *solveRun) run(ctx context.Context, start State) (State, error) {
	state := start
	for !state.terminal() {
		fn, ok := stateToStateFunc[state]
		if !ok {
			return Unsatisfiable, nil
		}
		began := time.Now()
		next, err := fn(ctx, r)
		r.metrics.observeTransition(ctx, state, next, time.Since(began))
		if err != nil {
			return Unsatisfiable, err
		}
		state = next
	}
	return state, nil
}

func doCollectingSpecs(ctx context.Context, r *solveRun) (State, error) {
	if r.req.Modifier == FreezeInstalled {
		r.forceFreeze = true
		return FrozenRetry, nil
	}
	return ReducingIndex, nil
}

func doFrozenRetry(ctx context.Context, r *solveRun) (State, error) {
	r.forceFreeze = true
	return ReducingIndex, nil
}

func doFullRetry(ctx context.Context, r *solveRun) (State, error) {
	r.forceFreeze = false
	return ReducingIndex, nil
}

func doReducingIndex(ctx context.Context, r *solveRun) (State, error) {
	reduced, err := reduceIndex(r.index.ByName(), r.req)
	if err != nil {
		return Unsatisfiable, err
	}
	r.reduced = reduced
	return Encoding, nil
}

func doEncoding(ctx context.Context, r *solveRun) (State, error) {
	req := r.req
	if r.forceFreeze {
		req.Modifier = FreezeInstalled
	}
	enc, err := buildEncoded(r.reduced, req)
	if err != nil {
		return Unsatisfiable, err
	}
	r.enc = enc
	return Searching, nil
}

func doSearching(ctx context.Context, r *solveRun) (State, error) {
	result, err := searchEncoded(r.enc, r.nodeBudget)
	switch {
	case err == nil:
		r.plan = planFromResult(r.enc, r.req, result)
		return Satisfied, nil
	case r.forceFreeze:
		// frozen_retry failed: relax and try again without holding
		// installed packages constant.
		return FullRetry, nil
	default:
		r.explanation = explainUnsatisfiable(r.enc, r.req)
		return Unsatisfiable, err
	}
}
