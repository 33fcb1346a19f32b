package transaction

import (
	"context"
	"fmt"
	"strings"
	"time"

	condacore "github.com/condacore/conda-core"
	"github.com/condacore/conda-core/prefix"
)

// State is a stage of UnlinkLinkTransaction's execution, mirroring the
// solver package's FSM shape: an explicit enum, a dispatch table of
// stateFunc, and a run loop that stops at a terminal state, realized as
// states instead of a single monolithic function.
type State int

const (
	Preparing State = iota
	Verifying
	StagingUnlinks
	ExecutingLinks
	PostLinking
	Committing
	RollingBack
	Committed
	RolledBack
	Failed
)

func (s State) String() string {
	switch s {
	case Preparing:
		return "preparing"
	case Verifying:
		return "verifying"
	case StagingUnlinks:
		return "staging_unlinks"
	case ExecutingLinks:
		return "executing_links"
	case PostLinking:
		return "post_linking"
	case Committing:
		return "committing"
	case RollingBack:
		return "rolling_back"
	case Committed:
		return "committed"
	case RolledBack:
		return "rolled_back"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

func (s State) terminal() bool {
	return s == Committed || s == RolledBack || s == Failed
}

type stateFunc func(ctx context.Context, r *txnRun) (State, error)

var stateToStateFunc = map[State]stateFunc{
	Preparing:      doPreparing,
	Verifying:      doVerifying,
	StagingUnlinks: doStagingUnlinks,
	ExecutingLinks: doExecutingLinks,
	PostLinking:    doPostLinking,
	Committing:     doCommitting,
	RollingBack:    doRollingBack,
}

// txnRun is the mutable state threaded through one UnlinkLinkTransaction
// run: the plan being applied, the actions derived from it, and the
// bookkeeping needed to roll back whatever already executed.
type txnRun struct {
	prefixDir string
	data      *prefix.Data
	history   *prefix.History
	unlinks   []Action
	links     []Action
	post      []Action
	opts      Options

	env *execEnv

	// executed records every action that successfully ran, in order,
	// for LIFO rollback.
	executed []Action

	newRecords []condacore.PrefixRecord
	err        error

	metrics *metricsRecorder
}

func (r *txnRun) run(ctx context.Context, start State) (State, error) {
	state := start
	for !state.terminal() {
		fn, ok := stateToStateFunc[state]
		if !ok {
			return Failed, fmt.Errorf("transaction: no handler for state %s", state)
		}
		began := time.Now()
		next, err := fn(ctx, r)
		r.metrics.observeTransition(ctx, state, next, time.Since(began))
		if err != nil && state != RollingBack {
			r.err = err
			state = RollingBack
			continue
		}
		state = next
	}
	if r.err != nil {
		return Failed, r.err
	}
	return state, nil
}

func doPreparing(ctx context.Context, r *txnRun) (State, error) {
	for _, a := range r.unlinks {
		// Unlinks need no preparation; their source is already in the
		// prefix. Only link-side fetches resolve a cache location here.
		_ = a
	}
	for _, a := range r.links {
		fa, ok := a.(*FetchAction)
		if !ok {
			continue
		}
		if err := fa.Execute(r.env); err != nil {
			return Failed, err
		}
		r.executed = append(r.executed, fa)
	}
	return Verifying, nil
}

func doVerifying(ctx context.Context, r *txnRun) (State, error) {
	var totalSize int64
	for _, a := range r.links {
		if la, ok := a.(*LinkAction); ok {
			totalSize += la.Record.Size
		}
	}
	margin := int64(float64(totalSize) * r.opts.DiskSpaceSlack)
	avail, err := availableBytes(r.prefixDir)
	if err == nil && int64(avail) < totalSize+margin {
		return Failed, &condacore.Error{Kind: condacore.ErrTransaction, Op: "transaction.doVerifying", Message: "insufficient disk space"}
	}
	return StagingUnlinks, nil
}

func doStagingUnlinks(ctx context.Context, r *txnRun) (State, error) {
	for _, a := range r.unlinks {
		if err := a.Execute(r.env); err != nil {
			return Failed, err
		}
		r.executed = append(r.executed, a)
	}
	return ExecutingLinks, nil
}

func doExecutingLinks(ctx context.Context, r *txnRun) (State, error) {
	for _, a := range r.links {
		if _, ok := a.(*FetchAction); ok {
			continue // already executed during Preparing
		}
		if err := a.Execute(r.env); err != nil {
			return Failed, err
		}
		r.executed = append(r.executed, a)
		if la, ok := a.(*LinkAction); ok {
			pr := condacore.PrefixRecord{
				PackageRecord: la.Record,
				LinkType:      chooseLinkType(r.env.extracted[la.Record.Identity()], r.prefixDir, r.opts.AllowSoftlinks, r.opts.AlwaysCopy),
				Files:         append([]string(nil), r.env.linkedFiles[la.Record.Identity()]...),
			}
			r.newRecords = append(r.newRecords, pr)

			if la.Record.Noarch == condacore.NoarchPython {
				if err := linkNoarchPython(r, la); err != nil {
					return Failed, err
				}
			}
		}
	}
	return PostLinking, nil
}

// linkNoarchPython handles the parts of linking a noarch: python package
// that a plain LinkAction doesn't: it reads the extracted package's
// info/link.json for entry_points and materializes a console-script shim
// for each one (executed immediately, so it rolls back with everything
// else), and it queues a batch bytecode-compile of that package's .py
// files to run once every package has finished linking.
func linkNoarchPython(r *txnRun, la *LinkAction) error {
	identity := la.Record.Identity()
	entryDir := r.env.extracted[identity]

	doc, err := loadLinkJSON(entryDir)
	if err != nil {
		return err
	}
	if doc != nil && doc.Noarch != nil {
		for _, spec := range doc.Noarch.EntryPoints {
			name, module, function, ok := parseEntryPoint(spec)
			if !ok {
				continue
			}
			ep := &CreateEntryPointAction{
				Record:     la.Record,
				Name:       name,
				Module:     module,
				Function:   function,
				ScriptsDir: scriptsDir(),
			}
			if err := ep.Execute(r.env); err != nil {
				return err
			}
			r.executed = append(r.executed, ep)
		}
	}

	var pyPaths []string
	for _, rel := range r.env.linkedFiles[identity] {
		if strings.HasSuffix(rel, ".py") {
			pyPaths = append(pyPaths, rel)
		}
	}
	if len(pyPaths) > 0 {
		r.post = append(r.post, &CompileBytecodeAction{Record: la.Record, PythonPath: pyPaths})
	}
	return nil
}

func doPostLinking(ctx context.Context, r *txnRun) (State, error) {
	for _, a := range r.post {
		sa, ok := a.(*RunScriptAction)
		if ok && sa.BestEffort {
			a.Execute(r.env) // pre-unlink scripts: best-effort, failures don't abort
			continue
		}
		if err := a.Execute(r.env); err != nil {
			return Failed, err
		}
		r.executed = append(r.executed, a)
	}
	return Committing, nil
}

func doCommitting(ctx context.Context, r *txnRun) (State, error) {
	for _, pr := range r.newRecords {
		if err := r.data.Put(pr); err != nil {
			return Failed, err
		}
	}
	for _, a := range r.unlinks {
		ua, ok := a.(*UnlinkAction)
		if !ok {
			continue
		}
		if err := r.data.Remove(ua.Record.Name); err != nil {
			return Failed, err
		}
	}
	if r.history != nil {
		var result []string
		for _, pr := range r.newRecords {
			result = append(result, "+"+pr.Name+"-"+pr.Version+"-"+pr.Build)
		}
		if err := r.history.Append(prefix.HistoryEntry{Action: "transaction", Result: result}); err != nil {
			return Failed, err
		}
	}
	return Committed, nil
}

func doRollingBack(ctx context.Context, r *txnRun) (State, error) {
	for i := len(r.executed) - 1; i >= 0; i-- {
		r.executed[i].Reverse(r.env)
	}
	return RolledBack, r.err
}
