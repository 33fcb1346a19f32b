// Package archspec detects the virtual packages a host provides: OS
// family, libc version and CPU micro-architecture, with explicit override
// via CONDA_OVERRIDE_<NAME> environment variables. No GPU driver probe is
// run: __cuda is reported only when CONDA_OVERRIDE_CUDA sets it.
package archspec

import (
	"os"
	"runtime"
	"strings"

	condacore "github.com/condacore/conda-core"
)

// Detect returns the virtual packages observed on the running host,
// layered with any CONDA_OVERRIDE_<NAME> environment overrides of the
// form <virtual_name>=<version>.
func Detect(environ []string) []condacore.VirtualPackage {
	var pkgs []condacore.VirtualPackage

	switch runtime.GOOS {
	case "linux":
		pkgs = append(pkgs, condacore.VirtualPackage{Name: condacore.VirtualLinux, Version: linuxKernelVersion()})
		pkgs = append(pkgs, condacore.VirtualPackage{Name: condacore.VirtualUnix, Version: "0"})
		if v := glibcVersion(); v != "" {
			pkgs = append(pkgs, condacore.VirtualPackage{Name: condacore.VirtualGLIBC, Version: v})
		}
	case "darwin":
		pkgs = append(pkgs, condacore.VirtualPackage{Name: condacore.VirtualOSX, Version: osxVersion()})
		pkgs = append(pkgs, condacore.VirtualPackage{Name: condacore.VirtualUnix, Version: "0"})
	case "windows":
		pkgs = append(pkgs, condacore.VirtualPackage{Name: condacore.VirtualWin, Version: "0"})
	}

	if arch := archspecName(runtime.GOARCH); arch != "" {
		pkgs = append(pkgs, condacore.VirtualPackage{Name: condacore.VirtualArchspec, Version: "1", Build: arch})
	}
	pkgs = append(pkgs, condacore.VirtualPackage{Name: condacore.VirtualConda, Version: condacoreVersion})

	if cuda := cudaVersion(); cuda != "" {
		pkgs = append(pkgs, condacore.VirtualPackage{Name: condacore.VirtualCUDA, Version: cuda})
	}

	return applyOverrides(pkgs, environ)
}

// condacoreVersion is the __conda virtual package's version. It tracks the
// version of this implementation, not any upstream distribution.
const condacoreVersion = "24.0.0"

// applyOverrides replaces or appends virtual packages named by
// CONDA_OVERRIDE_<NAME>=<version> entries in environ. An override value of
// the empty string removes the virtual package entirely, mirroring conda's
// documented "unset" behavior for hosts lacking the capability.
func applyOverrides(pkgs []condacore.VirtualPackage, environ []string) []condacore.VirtualPackage {
	overrides := map[string]string{}
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(k, "CONDA_OVERRIDE_") {
			continue
		}
		name := "__" + strings.ToLower(strings.TrimPrefix(k, "CONDA_OVERRIDE_"))
		overrides[name] = v
	}
	if len(overrides) == 0 {
		return pkgs
	}

	seen := make(map[string]bool, len(pkgs))
	out := make([]condacore.VirtualPackage, 0, len(pkgs))
	for _, p := range pkgs {
		seen[p.Name] = true
		if v, ok := overrides[p.Name]; ok {
			if v == "" {
				continue
			}
			p.Version = v
		}
		out = append(out, p)
	}
	for name, v := range overrides {
		if !seen[name] && v != "" {
			out = append(out, condacore.VirtualPackage{Name: name, Version: v})
		}
	}
	return out
}

// archspecName maps a Go GOARCH to the microarchitecture family name conda
// uses for the __archspec build string. Only the families conda's own
// archspec library documents are mapped; unknown arches are left unset.
func archspecName(goarch string) string {
	switch goarch {
	case "amd64":
		return "x86_64"
	case "arm64":
		return "aarch64"
	case "ppc64le":
		return "ppc64le"
	case "s390x":
		return "s390x"
	case "386":
		return "x86"
	default:
		return ""
	}
}

func linuxKernelVersion() string {
	b, err := os.ReadFile("/proc/version")
	if err != nil {
		return "0"
	}
	fields := strings.Fields(string(b))
	for i, f := range fields {
		if f == "version" && i+1 < len(fields) {
			return stripNonVersion(fields[i+1])
		}
	}
	return "0"
}

func stripNonVersion(s string) string {
	i := strings.IndexFunc(s, func(r rune) bool {
		return !(r >= '0' && r <= '9' || r == '.')
	})
	if i < 0 {
		return s
	}
	return s[:i]
}

func osxVersion() string {
	// Best-effort: a full implementation shells out to sw_vers; detecting
	// without exec is not possible from Go alone, so unknown hosts report
	// "0" rather than guessing.
	return "0"
}

func cudaVersion() string {
	// No GPU driver probe is implemented; absent strong evidence of a CUDA
	// driver, __cuda is simply not injected. Detection sources are
	// best-effort.
	return ""
}

func glibcVersion() string {
	// glibc's version is only reliably available via gnu_get_libc_version,
	// which requires cgo. Without it, fall back to the version encoded in
	// ld.so's own soname, which every glibc ships as /lib*/ld-<ver>.so on
	// older distributions; absent that, detection is skipped rather than
	// guessed.
	for _, dir := range []string{"/lib64", "/lib", "/lib/x86_64-linux-gnu", "/lib/aarch64-linux-gnu"} {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			const prefix, suffix = "ld-", ".so"
			name := e.Name()
			if strings.HasPrefix(name, prefix) && strings.HasSuffix(name, suffix) {
				if v := name[len(prefix) : len(name)-len(suffix)]; v != "" && v[0] >= '0' && v[0] <= '9' {
					return v
				}
			}
		}
	}
	return ""
}
