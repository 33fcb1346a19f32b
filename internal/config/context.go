// Package config defines the process-wide settings threaded explicitly
// through every condacore operation. Configuration and virtual-package
// detection are the only legitimately global state in the system; this
// package makes that state an explicit value instead of a package-level
// global, constructed once and never mutated afterward.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ChannelPriority controls how channel ordering influences candidate
// selection during solving.
type ChannelPriority string

const (
	ChannelPriorityStrict   ChannelPriority = "strict"
	ChannelPriorityFlexible ChannelPriority = "flexible"
	ChannelPriorityDisabled ChannelPriority = "disabled"
)

// PathConflict controls behavior when a link would overwrite an existing,
// untracked file in the prefix.
type PathConflict string

const (
	PathConflictClobber PathConflict = "clobber"
	PathConflictWarn    PathConflict = "warn"
	PathConflictPrevent PathConflict = "prevent"
)

// SafetyChecks controls whether per-file sha256 verification is enforced.
type SafetyChecks string

const (
	SafetyChecksEnabled  SafetyChecks = "enabled"
	SafetyChecksWarn     SafetyChecks = "warn"
	SafetyChecksDisabled SafetyChecks = "disabled"
)

// AggressiveUpdateConflict names how a name appearing in both
// aggressive_update_packages and a frozen install is to be resolved.
// Validate checks only that the value is one of the constants below; no
// code compares the two lists, and the solver does not read this setting.
type AggressiveUpdateConflict string

const (
	// AggressiveUpdateError is the default value.
	AggressiveUpdateError AggressiveUpdateConflict = "error"
	// AggressiveUpdateWins is the opt-in alternative value.
	AggressiveUpdateWins AggressiveUpdateConflict = "aggressive_wins"
)

// Context is the full set of configuration parameters threaded through
// condacore's operations. It is built once by Load and never mutated
// afterward; tests construct alternate Contexts directly rather than
// touching process state.
type Context struct {
	Channels                 []string          `yaml:"channels"`
	ChannelPriority          ChannelPriority   `yaml:"channel_priority"`
	DefaultChannels          []string          `yaml:"default_channels"`
	PkgsDirs                 []string          `yaml:"pkgs_dirs"`
	EnvsDirs                 []string          `yaml:"envs_dirs"`
	Subdir                   string            `yaml:"subdir"`
	Subdirs                  []string          `yaml:"subdirs"`
	PinnedPackages           []string          `yaml:"pinned_packages"`
	AggressiveUpdatePackages []string          `yaml:"aggressive_update_packages"`
	AggressiveUpdateConflict AggressiveUpdateConflict `yaml:"aggressive_update_conflict"`
	AllowSoftlinks           bool              `yaml:"allow_softlinks"`
	AlwaysCopy               bool              `yaml:"always_copy"`
	PathConflict             PathConflict      `yaml:"path_conflict"`
	SafetyChecks             SafetyChecks      `yaml:"safety_checks"`
	RemoteMaxRetries         int               `yaml:"remote_max_retries"`
	RemoteBackoffFactor      float64           `yaml:"remote_backoff_factor"`
	RepodataFns              []string          `yaml:"repodata_fns"`
	LocalRepodataTTL         int               `yaml:"local_repodata_ttl"`
	Offline                  bool              `yaml:"offline"`
	SSLVerify                string            `yaml:"ssl_verify"`
	ProxyServers             map[string]string `yaml:"proxy_servers"`

	// Threads sizes the bounded worker pools used across the pipeline stages.
	Threads Threads `yaml:"threads"`
}

// Threads sizes the concurrency pools used across the pipeline stages.
type Threads struct {
	Default   int `yaml:"default_threads"`
	Repodata  int `yaml:"repodata_threads"`
	Verify    int `yaml:"verify_threads"`
	Execute   int `yaml:"execute_threads"`
}

// Default returns a Context with conda's documented defaults.
func Default() *Context {
	return &Context{
		ChannelPriority:          ChannelPriorityFlexible,
		DefaultChannels:          []string{"https://repo.anaconda.com/pkgs/main", "https://repo.anaconda.com/pkgs/r"},
		AggressiveUpdatePackages: []string{"ca-certificates", "certifi", "openssl"},
		AggressiveUpdateConflict: AggressiveUpdateError,
		PathConflict:             PathConflictClobber,
		SafetyChecks:             SafetyChecksWarn,
		RemoteMaxRetries:         3,
		RemoteBackoffFactor:      1,
		RepodataFns:              []string{"repodata.json.zst", "repodata.json.bz2", "repodata.json"},
		LocalRepodataTTL:         -1,
		SSLVerify:                "true",
		Threads: Threads{
			Default:  4,
			Repodata: 4,
			Verify:   4,
			Execute:  1,
		},
	}
}

// Load builds a Context by layering, in increasing precedence: built-in
// defaults, an optional YAML file, then environment variables of the form
// CONDA_<UPPER>. It validates the result once before returning.
func Load(yamlPath string, environ []string) (*Context, error) {
	c := Default()
	if yamlPath != "" {
		b, err := os.ReadFile(yamlPath)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(b, c); err != nil {
				return nil, fmt.Errorf("config: parsing %s: %w", yamlPath, err)
			}
		case os.IsNotExist(err):
		default:
			return nil, fmt.Errorf("config: reading %s: %w", yamlPath, err)
		}
	}
	if err := applyEnv(c, environ); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// applyEnv overlays CONDA_<UPPER> environment variables onto c. It reads
// CONDA_CHANNELS, CONDA_CHANNEL_PRIORITY, CONDA_PKGS_DIRS, CONDA_ENVS_DIRS,
// CONDA_SUBDIR, CONDA_OFFLINE, CONDA_ALWAYS_COPY, CONDA_REMOTE_MAX_RETRIES
// and CONDA_LOCAL_REPODATA_TTL; no other key is read from the environment.
func applyEnv(c *Context, environ []string) error {
	env := make(map[string]string, len(environ))
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(k, "CONDA_") {
			continue
		}
		env[strings.TrimPrefix(k, "CONDA_")] = v
	}
	if v, ok := env["CHANNELS"]; ok {
		c.Channels = strings.Split(v, ",")
	}
	if v, ok := env["CHANNEL_PRIORITY"]; ok {
		c.ChannelPriority = ChannelPriority(v)
	}
	if v, ok := env["PKGS_DIRS"]; ok {
		c.PkgsDirs = strings.Split(v, ",")
	}
	if v, ok := env["ENVS_DIRS"]; ok {
		c.EnvsDirs = strings.Split(v, ",")
	}
	if v, ok := env["SUBDIR"]; ok {
		c.Subdir = v
	}
	if v, ok := env["OFFLINE"]; ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: CONDA_OFFLINE: %w", err)
		}
		c.Offline = b
	}
	if v, ok := env["ALWAYS_COPY"]; ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: CONDA_ALWAYS_COPY: %w", err)
		}
		c.AlwaysCopy = b
	}
	if v, ok := env["REMOTE_MAX_RETRIES"]; ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: CONDA_REMOTE_MAX_RETRIES: %w", err)
		}
		c.RemoteMaxRetries = n
	}
	if v, ok := env["LOCAL_REPODATA_TTL"]; ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: CONDA_LOCAL_REPODATA_TTL: %w", err)
		}
		c.LocalRepodataTTL = n
	}
	return nil
}

// Validate checks that c's fields hold recognized enum values.
func (c *Context) Validate() error {
	switch c.ChannelPriority {
	case ChannelPriorityStrict, ChannelPriorityFlexible, ChannelPriorityDisabled:
	default:
		return fmt.Errorf("config: invalid channel_priority %q", c.ChannelPriority)
	}
	switch c.PathConflict {
	case PathConflictClobber, PathConflictWarn, PathConflictPrevent:
	default:
		return fmt.Errorf("config: invalid path_conflict %q", c.PathConflict)
	}
	switch c.SafetyChecks {
	case SafetyChecksEnabled, SafetyChecksWarn, SafetyChecksDisabled:
	default:
		return fmt.Errorf("config: invalid safety_checks %q", c.SafetyChecks)
	}
	switch c.AggressiveUpdateConflict {
	case AggressiveUpdateError, AggressiveUpdateWins:
	default:
		return fmt.Errorf("config: invalid aggressive_update_conflict %q", c.AggressiveUpdateConflict)
	}
	if c.RemoteMaxRetries < 0 {
		return fmt.Errorf("config: remote_max_retries must be >= 0")
	}
	return nil
}
