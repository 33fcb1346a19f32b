package transaction

import (
	"runtime"
	"strings"

	condacore "github.com/condacore/conda-core"
)

// remapNoarchPath translates an extracted payload path into its
// prefix-relative install location, applying noarch-python remapping:
// "site-packages/..." moves under the prefix's actual Python
// site-packages directory (keyed off pythonVersion), and a top-level
// "python-scripts/" entry moves under "bin/" (POSIX) or "Scripts/"
// (Windows). Every other package kind installs payload paths verbatim.
func remapNoarchPath(rec condacore.PackageRecord, payloadPath, pythonVersion string) string {
	if rec.Noarch != condacore.NoarchPython {
		return payloadPath
	}
	switch {
	case strings.HasPrefix(payloadPath, "site-packages/"):
		return sitePackagesDir(pythonVersion) + "/" + strings.TrimPrefix(payloadPath, "site-packages/")
	case strings.HasPrefix(payloadPath, "python-scripts/"):
		return scriptsDir() + "/" + strings.TrimPrefix(payloadPath, "python-scripts/")
	default:
		return payloadPath
	}
}

// sitePackagesDir is the prefix-relative Python site-packages location.
// Windows keeps a single, version-independent Lib/site-packages; POSIX
// installs into lib/pythonX.Y/site-packages, versioned by the major.minor
// of pythonVersion. An empty pythonVersion (no python known to this
// transaction) falls back to the unversioned compatibility path.
func sitePackagesDir(pythonVersion string) string {
	if runtime.GOOS == "windows" {
		return "Lib/site-packages"
	}
	if mm := pythonMajorMinor(pythonVersion); mm != "" {
		return "lib/python" + mm + "/site-packages"
	}
	return "lib/site-packages"
}

// pythonMajorMinor extracts "X.Y" from a python version string like
// "3.11.4", or "" if version has fewer than two dot-separated parts. The
// parts are not checked to be numeric.
func pythonMajorMinor(version string) string {
	parts := strings.SplitN(version, ".", 3)
	if len(parts) < 2 {
		return ""
	}
	return parts[0] + "." + parts[1]
}

// scriptsDir is the prefix-relative console-script directory.
func scriptsDir() string {
	if runtime.GOOS == "windows" {
		return "Scripts"
	}
	return "bin"
}
