package transaction

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	condacore "github.com/condacore/conda-core"
)

// FetchAction brings a Link's source archive into the package cache and
// extracts it, recording the extracted directory in env for a later
// LinkAction to materialize files from.
type FetchAction struct {
	Fetcher  ArchiveFetcher
	Record   condacore.PackageRecord
	CacheDir string
}

func (a *FetchAction) Describe() string { return "fetch " + a.Record.Filename(false) }

func (a *FetchAction) Execute(env *execEnv) error {
	if err := FetchExtractTransaction(context.Background(), a.Fetcher, a.Record, a.CacheDir, env.Options); err != nil {
		return err
	}
	if env.extracted == nil {
		env.extracted = make(map[condacore.RecordIdentity]string)
	}
	env.extracted[a.Record.Identity()] = cacheEntryDir(a.CacheDir, a.Record)
	return nil
}

// Reverse is a no-op: a fetched, cached archive is shared across
// prefixes and outlives this one transaction. Leaving the prior cache
// untouched on failure never applies to a successfully completed fetch.
func (a *FetchAction) Reverse(env *execEnv) error { return nil }

// UnlinkAction removes an installed package's files from the prefix.
type UnlinkAction struct {
	Record condacore.PrefixRecord
}

func (a *UnlinkAction) Describe() string { return "unlink " + a.Record.Name }

func (a *UnlinkAction) Execute(env *execEnv) error {
	for _, rel := range a.Record.Files {
		full := filepath.Join(env.Prefix, rel)
		dst := filepath.Join(env.trashDir, rel)
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return err
		}
		if err := os.Rename(full, dst); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

// Reverse restores files staged into the trash directory back to their
// original prefix-relative location.
func (a *UnlinkAction) Reverse(env *execEnv) error {
	for _, rel := range a.Record.Files {
		src := filepath.Join(env.trashDir, rel)
		dst := filepath.Join(env.Prefix, rel)
		if _, err := os.Stat(src); err != nil {
			continue
		}
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return err
		}
		if err := os.Rename(src, dst); err != nil {
			return err
		}
	}
	return nil
}

// LinkAction materializes a fetched package's files into the prefix.
type LinkAction struct {
	Record condacore.PackageRecord
}

func (a *LinkAction) Describe() string { return "link " + a.Record.Filename(false) }

func (a *LinkAction) Execute(env *execEnv) error {
	entryDir, ok := env.extracted[a.Record.Identity()]
	if !ok {
		return &condacore.Error{Kind: condacore.ErrLink, Op: "transaction.LinkAction", Message: "no extracted archive available for " + a.Record.Filename(false)}
	}
	paths, err := loadPaths(entryDir)
	if err != nil {
		return err
	}

	linkType := chooseLinkType(entryDir, env.Prefix, env.Options.AllowSoftlinks, env.Options.AlwaysCopy)
	var linked []string
	for _, p := range paths {
		targetRel := remapNoarchPath(a.Record, p.Path, env.pythonVersion)
		src := filepath.Join(entryDir, p.Path)
		dst := filepath.Join(env.Prefix, targetRel)
		if err := checkPathConflict(dst, env.Options.PathConflict); err != nil {
			return err
		}
		if _, err := materializeFile(src, dst, linkType); err != nil {
			return &condacore.Error{Kind: condacore.ErrLink, Op: "transaction.LinkAction", Message: targetRel, Inner: err}
		}
		linked = append(linked, targetRel)

		if p.PrefixPlaceholder != "" {
			mode := condacore.FileModeText
			if p.FileMode == string(condacore.FileModeBinary) {
				mode = condacore.FileModeBinary
			}
			if err := rewritePlaceholder(dst, p.PrefixPlaceholder, env.Prefix, mode); err != nil {
				return &condacore.Error{Kind: condacore.ErrLink, Op: "transaction.LinkAction", Message: "placeholder rewrite: " + targetRel, Inner: err}
			}
		}
		if strings.HasPrefix(targetRel, "bin/") || strings.HasPrefix(targetRel, "Scripts/") {
			rewriteShebang(dst)
		}
	}
	if env.linkedFiles == nil {
		env.linkedFiles = make(map[condacore.RecordIdentity][]string)
	}
	env.linkedFiles[a.Record.Identity()] = linked
	return nil
}

func (a *LinkAction) Reverse(env *execEnv) error {
	for _, rel := range env.linkedFiles[a.Record.Identity()] {
		os.Remove(filepath.Join(env.Prefix, rel))
	}
	delete(env.linkedFiles, a.Record.Identity())
	return nil
}

// CompileBytecodeAction batch-compiles a noarch-python package's .py
// files after all links complete.
type CompileBytecodeAction struct {
	Record      condacore.PackageRecord
	PythonPath  []string // prefix-relative paths of .py files
	Interpreter string   // defaults to "python" on $PATH
}

func (a *CompileBytecodeAction) Describe() string { return "compile " + a.Record.Name }

func (a *CompileBytecodeAction) Execute(env *execEnv) error {
	if len(a.PythonPath) == 0 {
		return nil
	}
	interpreter := a.Interpreter
	if interpreter == "" {
		interpreter = "python"
	}
	args := append([]string{"-m", "compileall", "-q"}, a.PythonPath...)
	cmd := exec.Command(interpreter, args...)
	cmd.Dir = env.Prefix
	return cmd.Run()
}

// Reverse is best-effort: a stray .pyc left behind after rollback isn't
// a correctness problem (Python regenerates it, or the whole package
// directory is removed by the matching UnlinkAction).
func (a *CompileBytecodeAction) Reverse(env *execEnv) error { return nil }

// RunScriptAction invokes a package's post-link or pre-unlink script.
// Post-link failures are returned by Execute and abort the transaction;
// with BestEffort set (pre-unlink), Execute returns nil when the script
// fails, and the failure is not logged.
//
// Post-link scripts may mutate the prefix in ways this transaction's
// ledger can't see; that's out of scope for rollback fidelity.
type RunScriptAction struct {
	ScriptPath string
	Record     condacore.PackageRecord
	BestEffort bool // true for pre-unlink; false for post-link
}

func (a *RunScriptAction) Describe() string { return "run " + a.ScriptPath }

func (a *RunScriptAction) Execute(env *execEnv) error {
	if _, err := os.Stat(a.ScriptPath); err != nil {
		return nil // no script shipped for this package
	}
	cmd := exec.Command(a.ScriptPath)
	cmd.Dir = env.Prefix
	cmd.Env = append(os.Environ(),
		"PREFIX="+env.Prefix,
		"PKG_NAME="+a.Record.Name,
		"PKG_VERSION="+a.Record.Version,
		"PKG_BUILDNUM="+strconv.Itoa(a.Record.BuildNumber),
	)
	err := cmd.Run()
	if err != nil && a.BestEffort {
		return nil
	}
	return err
}

func (a *RunScriptAction) Reverse(env *execEnv) error { return nil }

// CreateEntryPointAction writes a console-script shim for a noarch
// package's entry_points metadata.
type CreateEntryPointAction struct {
	Record     condacore.PackageRecord
	Name       string // script name, e.g. "pip"
	Module     string // e.g. "pip._internal.cli.main"
	Function   string // e.g. "main"
	ScriptsDir string // "bin" on POSIX, "Scripts" on Windows
}

func (a *CreateEntryPointAction) Describe() string { return "entry point " + a.Name }

func (a *CreateEntryPointAction) Execute(env *execEnv) error {
	dir := filepath.Join(env.Prefix, a.ScriptsDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(dir, a.Name)
	body := "#!/usr/bin/env python\n" +
		"import sys\n" +
		"from " + a.Module + " import " + a.Function + "\n" +
		"if __name__ == '__main__':\n" +
		"    sys.exit(" + a.Function + "())\n"
	if err := os.WriteFile(path, []byte(body), 0o755); err != nil {
		return err
	}
	if env.linkedFiles == nil {
		env.linkedFiles = make(map[condacore.RecordIdentity][]string)
	}
	rel := filepath.Join(a.ScriptsDir, a.Name)
	env.linkedFiles[a.Record.Identity()] = append(env.linkedFiles[a.Record.Identity()], rel)
	return nil
}

func (a *CreateEntryPointAction) Reverse(env *execEnv) error {
	os.Remove(filepath.Join(env.Prefix, a.ScriptsDir, a.Name))
	return nil
}

// RegisterEnvAction records prefix in the user's environments list
// (conda's "environments.txt"), so `conda env list` can discover it
// without scanning every configured envs_dir.
type RegisterEnvAction struct {
	EnvironmentsFile string
	Prefix           string
}

func (a *RegisterEnvAction) Describe() string { return "register " + a.Prefix }

func (a *RegisterEnvAction) Execute(env *execEnv) error {
	if a.EnvironmentsFile == "" {
		return nil
	}
	existing, _ := os.ReadFile(a.EnvironmentsFile)
	for _, line := range splitLines(existing) {
		if line == a.Prefix {
			return nil
		}
	}
	f, err := os.OpenFile(a.EnvironmentsFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteString(a.Prefix + "\n")
	return err
}

func (a *RegisterEnvAction) Reverse(env *execEnv) error { return nil }

func splitLines(b []byte) []string {
	var out []string
	start := 0
	for i, c := range b {
		if c == '\n' {
			out = append(out, string(b[start:i]))
			start = i + 1
		}
	}
	return out
}

