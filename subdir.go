package condacore

// Subdir is a platform tag, e.g. "linux-64" or "noarch".
type Subdir string

// Recognized platform subdirs. Not exhaustive of every historical
// target, but covers every platform family conda ships for.
const (
	SubdirNoarch        Subdir = "noarch"
	SubdirLinux64        Subdir = "linux-64"
	SubdirLinuxAarch64    Subdir = "linux-aarch64"
	SubdirLinuxPPC64LE    Subdir = "linux-ppc64le"
	SubdirLinuxS390X      Subdir = "linux-s390x"
	SubdirLinux32         Subdir = "linux-32"
	SubdirOSX64           Subdir = "osx-64"
	SubdirOSXArm64        Subdir = "osx-arm64"
	SubdirWin64           Subdir = "win-64"
	SubdirWin32           Subdir = "win-32"
	SubdirZOS             Subdir = "zos-z"
)

// IsNoarch reports whether s is the noarch subdir.
func (s Subdir) IsNoarch() bool {
	return s == SubdirNoarch
}

// QuerySet returns the set of subdirs that must be queried for a target
// platform: the platform itself plus noarch, which is always queried
// alongside it.
func QuerySet(target Subdir) []Subdir {
	if target.IsNoarch() {
		return []Subdir{SubdirNoarch}
	}
	return []Subdir{target, SubdirNoarch}
}
