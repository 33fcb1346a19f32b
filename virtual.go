package condacore

// The constants below are the recognized virtual package names (spec
// §3). Virtual packages represent host capabilities; they are injected
// into the index before solving but are never linked into a prefix.
const (
	VirtualCUDA     = "__cuda"
	VirtualOSX      = "__osx"
	VirtualGLIBC    = "__glibc"
	VirtualLinux    = "__linux"
	VirtualWin      = "__win"
	VirtualUnix     = "__unix"
	VirtualArchspec = "__archspec"
	VirtualConda    = "__conda"
)

// IsVirtual reports whether name denotes a virtual package.
func IsVirtual(name string) bool {
	return len(name) > 2 && name[0] == '_' && name[1] == '_'
}

// VirtualPackage describes a detected host capability, materialized as a
// fixed-assignment PackageRecord candidate during solving.
type VirtualPackage struct {
	Name    string
	Version string
	Build   string
}

// Record returns the PackageRecord a VirtualPackage is represented as in
// the index. Virtual package records always carry the "<unknown>" channel
// since they have no repodata origin.
func (v VirtualPackage) Record(subdir Subdir) *PackageRecord {
	build := v.Build
	if build == "" {
		build = "0"
	}
	return &PackageRecord{
		Name:        v.Name,
		Version:     v.Version,
		Build:       build,
		BuildNumber: 0,
		Channel:     Channel{Name: UnknownChannel},
		Subdir:      subdir,
	}
}
