// Package transaction executes a Plan (produced by package solver)
// against a prefix and a package cache with all-or-nothing semantics.
// FetchExtractTransaction brings one package's archive into the cache;
// UnlinkLinkTransaction applies an entire Plan to a prefix, rolling back
// on any failure at or before commit.
package transaction

import (
	condacore "github.com/condacore/conda-core"
)

// PathConflict controls how LinkAction handles a file a Link would create
// that already exists in the prefix.
type PathConflict string

const (
	PathConflictClobber PathConflict = "clobber"
	PathConflictWarn     PathConflict = "warn"
	PathConflictPrevent  PathConflict = "prevent"
)

// SafetyChecks controls per-file sha256 verification during extraction.
type SafetyChecks string

const (
	SafetyChecksEnabled  SafetyChecks = "enabled"
	SafetyChecksWarn     SafetyChecks = "warn"
	SafetyChecksDisabled SafetyChecks = "disabled"
)

// Options bundles the policy knobs for transaction execution; it's the
// transaction-engine analogue of solver.Policy.
type Options struct {
	CacheDirs      []string // not read by this package; FetchAction uses PlanInput.CacheDir
	AllowSoftlinks bool
	AlwaysCopy     bool
	PathConflict   PathConflict
	SafetyChecks   SafetyChecks
	VerifyThreads  int
	ExecuteThreads int
	DiskSpaceSlack float64 // fraction of total package size reserved as safety margin

	// EnvironmentsFile is the path to conda's environments.txt. Empty
	// disables registration.
	EnvironmentsFile string
}

// DefaultOptions returns conda's documented defaults.
func DefaultOptions() Options {
	return Options{
		PathConflict:   PathConflictClobber,
		SafetyChecks:   SafetyChecksWarn,
		VerifyThreads:  4,
		ExecuteThreads: 1,
		DiskSpaceSlack: 0.01,
	}
}

// Action is one step of an UnlinkLinkTransaction's execution, in a
// tagged-union shape: a single execute()/reverse() pair per variant
// rather than a class hierarchy.
type Action interface {
	// Execute performs the action against env, returning an error that
	// aborts the transaction.
	Execute(env *execEnv) error
	// Reverse undoes a successfully executed action, best-effort, during
	// rollback. Reverse is never called on an action whose Execute
	// didn't return nil.
	Reverse(env *execEnv) error
	// Describe is a short human-readable label used in diagnostics and
	// tests; it names what the action does, not why it's in the plan.
	Describe() string
}

// execEnv is the shared, mutable context every Action's Execute/Reverse
// operates against: the target prefix, the chosen package cache, and the
// bookkeeping each action needs to find what a previous action produced.
type execEnv struct {
	Prefix  string
	Options Options

	// extracted maps a record's identity to its extracted cache
	// directory, populated by FetchAction and consumed by LinkAction.
	extracted map[condacore.RecordIdentity]string

	// linkedFiles accumulates, per record identity, every prefix-
	// relative path a LinkAction or CreateEntryPointAction actually
	// created, so a rollback can remove exactly what was written and the
	// committed PrefixRecord lists those files. UnlinkAction does not read
	// it; it removes the files listed in its PrefixRecord.
	linkedFiles map[condacore.RecordIdentity][]string

	// trashDir is where UnlinkAction moves removed files during a run, so
	// Reverse can restore them if a later step fails.
	trashDir string

	// pythonVersion is the version of the python interpreter this prefix
	// will carry once the transaction commits (from the plan's own
	// python link if present, else from the already-installed record).
	// Empty if the prefix has no python at all.
	pythonVersion string
}
