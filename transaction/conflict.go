package transaction

import (
	"fmt"
	"os"

	condacore "github.com/condacore/conda-core"
)

// checkPathConflict implements path_conflict policy for a file a Link
// is about to create at dst: clobber silently overwrites, warn
// overwrites but the caller should surface a diagnostic (not engineered
// here; transactions don't carry a logger), and prevent returns an error
// that fails the LinkAction, and with it the transaction. The check runs
// per file while linking, so files linked before it may already exist.
func checkPathConflict(dst string, policy PathConflict) error {
	if _, err := os.Stat(dst); err != nil {
		return nil // no existing file, nothing to conflict with
	}
	switch policy {
	case PathConflictPrevent:
		return &condacore.Error{Kind: condacore.ErrTransaction, Op: "transaction.checkPathConflict", Message: fmt.Sprintf("refusing to overwrite existing file %s", dst)}
	default:
		return nil
	}
}
