package main

import (
	"context"
	"flag"
	"fmt"
	"runtime"
	"strings"
	"time"

	condacore "github.com/condacore/conda-core"
	"github.com/condacore/conda-core/internal/config"
	"github.com/condacore/conda-core/internal/httpfetch"
	"github.com/condacore/conda-core/prefix"
	"github.com/condacore/conda-core/repodata"
	"github.com/condacore/conda-core/solver"
	"github.com/condacore/conda-core/store"
)

// Solve resolves repodata for the configured channels and runs the
// solver against the given specs, printing the resulting plan.
func Solve(ctx context.Context, cc *commonConfig, args []string) error {
	fs := flag.NewFlagSet("solve", flag.ExitOnError)
	subdir := fs.String("subdir", defaultSubdir(), "target platform subdir")
	if err := fs.Parse(args); err != nil {
		return err
	}
	specs := fs.Args()
	if len(specs) == 0 {
		return fmt.Errorf("solve: at least one package spec is required")
	}

	cache, err := openRepodataCache(cc.repoCache)
	if err != nil {
		return err
	}
	defer cache.Close()

	backoff := time.Duration(cc.cfg.RemoteBackoffFactor * float64(time.Second))
	resolver := &repodata.Resolver{
		HTTP:  httpfetch.New(cc.cfg.ProxyServers, cc.cfg.RemoteMaxRetries, backoff),
		File:  httpfetch.FileFetcher{},
		Cache: cache,
	}

	channels := resolveChannels(cc.cfg)
	idx, err := resolver.Resolve(ctx, channels, condacore.Subdir(*subdir), repodata.Options{
		Filenames:          cc.cfg.RepodataFns,
		Offline:            cc.cfg.Offline,
		LocalRepodataTTL:   cc.cfg.LocalRepodataTTL,
		MaxConcurrentFetch: cc.cfg.Threads.Repodata,
	})
	if err != nil {
		return fmt.Errorf("solve: resolving repodata: %w", err)
	}

	var installed []condacore.PrefixRecord
	if cc.prefix != "" {
		data, err := prefix.Load(cc.prefix)
		if err != nil {
			return fmt.Errorf("solve: loading prefix %s: %w", cc.prefix, err)
		}
		installed = data.Records()
	}

	req := solver.Request{
		Installed:      installed,
		RequestedSpecs: specs,
		Target:         specs,
		Modifier:       solver.UpdateSpecs,
		Policy: solver.Policy{
			ChannelPriority:  channelPriority(cc.cfg.ChannelPriority),
			AggressiveUpdate: cc.cfg.AggressiveUpdatePackages,
			PinnedSpecs:      cc.cfg.PinnedPackages,
		},
	}

	plan, err := solver.Solve(ctx, idx, req)
	if err != nil {
		return fmt.Errorf("solve: %w", err)
	}
	printPlan(plan)
	return nil
}

func printPlan(plan *solver.Plan) {
	for _, u := range plan.Unlinks {
		fmt.Printf("- %s-%s-%s\n", u.Record.Name, u.Record.Version, u.Record.Build)
	}
	for _, l := range plan.Links {
		fmt.Printf("+ %s-%s-%s (%s)\n", l.Record.Name, l.Record.Version, l.Record.Build, l.LinkType)
	}
}

func defaultSubdir() string {
	switch runtime.GOOS {
	case "windows":
		if runtime.GOARCH == "386" {
			return string(condacore.SubdirWin32)
		}
		return string(condacore.SubdirWin64)
	case "darwin":
		if runtime.GOARCH == "arm64" {
			return string(condacore.SubdirOSXArm64)
		}
		return string(condacore.SubdirOSX64)
	default:
		if runtime.GOARCH == "arm64" {
			return string(condacore.SubdirLinuxAarch64)
		}
		return string(condacore.SubdirLinux64)
	}
}

func openRepodataCache(path string) (store.RepodataCache, error) {
	if path == "" {
		path = ":memory:"
	}
	return store.OpenSQLite(path)
}

// resolveChannels builds the channel list from configuration: an
// explicitly named channel that's already a full URL is used directly;
// otherwise the configured default channels stand in. Resolving a bare
// channel alias (e.g. "conda-forge") to its anaconda.org URL is left to a
// richer front end; this CLI only has to exercise the library surface.
func resolveChannels(cfg *config.Context) []condacore.Channel {
	names := cfg.Channels
	if len(names) == 0 {
		names = cfg.DefaultChannels
	}
	channels := make([]condacore.Channel, 0, len(names))
	for i, n := range names {
		baseURLs := []string{n}
		if !strings.Contains(n, "://") {
			baseURLs = cfg.DefaultChannels
		}
		channels = append(channels, condacore.Channel{Name: n, BaseURLs: baseURLs, Priority: i})
	}
	return channels
}

func channelPriority(p config.ChannelPriority) solver.ChannelPriority {
	switch p {
	case config.ChannelPriorityStrict:
		return solver.ChannelPriorityStrict
	case config.ChannelPriorityDisabled:
		return solver.ChannelPriorityDisabled
	default:
		return solver.ChannelPriorityFlexible
	}
}
