package solver

import (
	"sort"

	condacore "github.com/condacore/conda-core"
	"github.com/condacore/conda-core/matchspec"
)

// orderCandidates sorts cands best-first: higher channel priority
// (numerically lower Channel.Priority index wins, unless policy disables
// channel ranking), then higher version, then higher build_number, then
// non-noarch over noarch, then higher timestamp. Ties are broken
// lexically on the record's filename for determinism.
//
// Sorting candidates this way means a domain's choice index (0 = first
// candidate) already encodes the combined preference for that name;
// pbsolve's Cost function (see encode.go) sums choice indices as a
// single composite tier rather than re-deriving each subtier separately.
func orderCandidates(cands []*candidate, priority ChannelPriority) {
	sort.SliceStable(cands, func(i, j int) bool {
		a, b := cands[i].record, cands[j].record
		if priority != ChannelPriorityDisabled && a.Channel.Priority != b.Channel.Priority {
			return a.Channel.Priority < b.Channel.Priority
		}
		av, errA := matchspec.ParseVersion(a.Version)
		bv, errB := matchspec.ParseVersion(b.Version)
		if errA == nil && errB == nil {
			if c := av.Compare(&bv); c != 0 {
				return c > 0
			}
		}
		if a.BuildNumber != b.BuildNumber {
			return a.BuildNumber > b.BuildNumber
		}
		if (a.Noarch != condacore.NoarchNone) != (b.Noarch != condacore.NoarchNone) {
			return a.Noarch == condacore.NoarchNone
		}
		if a.Timestamp != b.Timestamp {
			return a.Timestamp > b.Timestamp
		}
		return a.Filename(false) < b.Filename(false)
	})
}
