// Package solver implements conda-core's pseudo-boolean dependency solver:
// given a target prefix's installed records, a requested MatchSpec list,
// an update modifier, and a channel-priority policy, it produces a Plan —
// an ordered sequence of unlink/link actions — or a structured
// explanation of why no such plan exists.
package solver

import (
	condacore "github.com/condacore/conda-core"
	"github.com/condacore/conda-core/matchspec"
)

// UpdateModifier controls how aggressively already-installed packages may
// change during a solve.
type UpdateModifier int

const (
	FreezeInstalled UpdateModifier = iota
	UpdateSpecs
	UpdateDeps
	UpdateAll
	SpecsSatisfiedSkipSolve
)

// ChannelPriority controls how candidates from lower-priority channels
// compete with higher-priority ones.
type ChannelPriority int

const (
	ChannelPriorityStrict ChannelPriority = iota
	ChannelPriorityFlexible
	ChannelPriorityDisabled
)

// Policy bundles the solve-wide settings that aren't part of the request
// itself: the aggressive-update set, pinned specs, and channel-priority
// mode.
type Policy struct {
	ChannelPriority   ChannelPriority
	AggressiveUpdate  []string // aggressive-update package names; Solve does not read this field
	PinnedSpecs       []string // from prefix pinned file + global pinned_packages
}

// Request is the full input to one solve.
type Request struct {
	Installed      []condacore.PrefixRecord // currently linked packages
	RequestedSpecs []string                 // explicit user specs for this operation
	HistorySpecs    []string                 // specs from the most recent history entry
	Modifier        UpdateModifier
	Target          []string // names this operation directly targets (install/remove/update args)
	Policy          Policy
}

// LinkAction links record into the prefix using linkType.
type LinkAction struct {
	Record   condacore.PackageRecord
	LinkType condacore.LinkType
}

// UnlinkAction removes record from the prefix.
type UnlinkAction struct {
	Record condacore.PrefixRecord
}

// Plan is an ordered sequence of unlink and link actions that, applied in
// order, brings a prefix from Request.Installed to the requested state.
type Plan struct {
	Unlinks []UnlinkAction
	Links   []LinkAction
}

// candidate is one PackageRecord under consideration during a solve,
// tagged with the parsed dependency/constrain specs used during encoding
// so they're parsed once, not once per constraint emitted.
type candidate struct {
	record       condacore.PackageRecord
	depends      []*matchspec.MatchSpec
	constrains   []*matchspec.MatchSpec
	wasInstalled bool
}

func (c *candidate) identity() condacore.RecordIdentity { return c.record.Identity() }
