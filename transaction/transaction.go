package transaction

import (
	"context"
	"os"
	"runtime"

	"github.com/google/uuid"

	condacore "github.com/condacore/conda-core"
	"github.com/condacore/conda-core/prefix"
	"github.com/condacore/conda-core/solver"
	"github.com/condacore/conda-core/transaction/locksource"
)

// PlanInput is everything UnlinkLinkTransaction needs beyond the plan
// itself: where to fetch each linked package's archive from, and which
// prefix to apply the plan to.
type PlanInput struct {
	Prefix   string
	Plan     *solver.Plan
	Fetcher  ArchiveFetcher
	CacheDir string
	Options  Options
	Lock     locksource.ContextLock // nil uses a process-local lock
}

// defaultLock serializes transactions within this process when
// PlanInput.Lock is nil.
var defaultLock = &locksource.Local{}

// UnlinkLinkTransaction applies plan to prefix with all-or-nothing
// semantics: prepare, verify, stage unlinks, execute links, run
// post-link scripts, then commit; any failure at or before commit rolls
// back everything already done.
func UnlinkLinkTransaction(ctx context.Context, in PlanInput) error {
	lock := in.Lock
	if lock == nil {
		lock = defaultLock
	}
	lctx, unlock := lock.Lock(ctx, in.Prefix)
	defer unlock()
	if err := lctx.Err(); err != nil {
		return &condacore.Error{Kind: condacore.ErrPrefix, Op: "transaction.UnlinkLinkTransaction", Message: "could not lock prefix", Inner: err}
	}

	data, err := prefix.Load(in.Prefix)
	if err != nil {
		return &condacore.Error{Kind: condacore.ErrPrefix, Op: "transaction.UnlinkLinkTransaction", Inner: err}
	}
	hist, err := prefix.LoadHistory(in.Prefix)
	if err != nil {
		return &condacore.Error{Kind: condacore.ErrPrefix, Op: "transaction.UnlinkLinkTransaction", Inner: err}
	}

	// A staging trash directory backs every unlink, on every platform: an
	// UnlinkAction moves removed files here instead of deleting them
	// outright, so a failure later in the transaction can still restore
	// them during rollback. It's removed once the transaction reaches a
	// terminal state, successful or not.
	trashDir := in.Prefix + "/.trash-" + uuid.NewString()
	if err := os.MkdirAll(trashDir, 0o755); err != nil {
		return &condacore.Error{Kind: condacore.ErrPrefix, Op: "transaction.UnlinkLinkTransaction", Inner: err}
	}
	defer os.RemoveAll(trashDir)

	ctx, rec := newMetricsRecorder(ctx)

	pythonVersion := ""
	if installed, ok := data.Get("python"); ok {
		pythonVersion = installed.Version
	}
	for _, l := range in.Plan.Links {
		if l.Record.Name == "python" {
			pythonVersion = l.Record.Version
			break
		}
	}

	run := &txnRun{
		prefixDir: in.Prefix,
		data:      data,
		history:   hist,
		opts:      in.Options,
		metrics:   rec,
		env: &execEnv{
			Prefix:        in.Prefix,
			Options:       in.Options,
			extracted:     make(map[condacore.RecordIdentity]string),
			linkedFiles:   make(map[condacore.RecordIdentity][]string),
			trashDir:      trashDir,
			pythonVersion: pythonVersion,
		},
	}
	for _, u := range in.Plan.Unlinks {
		run.unlinks = append(run.unlinks, &UnlinkAction{Record: u.Record})
	}
	for _, l := range in.Plan.Links {
		run.links = append(run.links,
			&FetchAction{Fetcher: in.Fetcher, Record: l.Record, CacheDir: in.CacheDir},
			&LinkAction{Record: l.Record},
		)
		run.post = append(run.post, &RunScriptAction{ScriptPath: postLinkScriptPath(in.CacheDir, l.Record), Record: l.Record, BestEffort: false})
	}
	if in.Options.EnvironmentsFile != "" {
		run.post = append(run.post, &RegisterEnvAction{EnvironmentsFile: in.Options.EnvironmentsFile, Prefix: in.Prefix})
	}

	final, err := run.run(ctx, Preparing)
	rec.finish(final)
	if final != Committed {
		if err == nil {
			err = &condacore.Error{Kind: condacore.ErrTransaction, Op: "transaction.UnlinkLinkTransaction", Message: "transaction did not commit"}
		}
		return err
	}
	return nil
}

// postLinkScriptPath is the path rec's post-link script would live at
// within its extracted cache entry, if it ships one: POSIX
// ".<name>-post-link.sh", Windows ".<name>-post-link.bat".
// RunScriptAction.Execute treats a missing file as "no script shipped",
// so this is safe to call unconditionally.
func postLinkScriptPath(cacheDir string, rec condacore.PackageRecord) string {
	ext := ".sh"
	if runtime.GOOS == "windows" {
		ext = ".bat"
	}
	return cacheEntryDir(cacheDir, rec) + "/bin/." + rec.Name + "-post-link" + ext
}
