// Package condacore implements the core, language-agnostic subsystems of a
// conda-style package and environment manager: the MatchSpec query
// language, repodata acquisition/caching, the pseudo-boolean dependency
// solver, and the atomic link/unlink transaction engine. Everything else —
// command-line parsing, shell activation, build tooling, and network
// transport implementations — is an external collaborator, reachable
// through the interfaces this package and its subpackages define.
package condacore

import "github.com/package-url/packageurl-go"

// Noarch classifies a package's platform independence.
type Noarch string

const (
	NoarchNone    Noarch = ""
	NoarchGeneric Noarch = "generic"
	NoarchPython  Noarch = "python"
)

// PackageRecord is the canonical, immutable description of a package
// available to be installed, as read from repodata.
//
// Two records are equal iff (Channel, Subdir, Name, Version, Build,
// BuildNumber) match; when both MD5 and SHA256 are known they must agree.
// PackageRecord is value-typed and safe to use as a map key once reduced to
// its identity tuple (see [PackageRecord.Identity]).
type PackageRecord struct {
	Name        string
	Version     string
	Build       string
	BuildNumber int
	Channel     Channel
	Subdir      Subdir
	Depends     []string
	Constrains  []string
	Features    []string
	TrackFeatures []string
	License     string
	Timestamp   int64 // milliseconds since epoch; 0 means unknown
	MD5         Digest
	SHA256      Digest
	Size        int64
	URL         string
	Noarch      Noarch

	// LegacyBz2MD5 is the md5 of the legacy .tar.bz2 rendition of a
	// .conda package, carried for older clients that only understand the
	// tarball format. Optional; absent for packages with no .tar.bz2 build.
	LegacyBz2MD5 Digest
}

// RecordIdentity is the tuple that determines PackageRecord equality.
type RecordIdentity struct {
	Channel     string
	Subdir      Subdir
	Name        string
	Version     string
	Build       string
	BuildNumber int
}

// Identity returns the tuple used for PackageRecord equality.
func (r *PackageRecord) Identity() RecordIdentity {
	return RecordIdentity{
		Channel:     r.Channel.Name,
		Subdir:      r.Subdir,
		Name:        r.Name,
		Version:     r.Version,
		Build:       r.Build,
		BuildNumber: r.BuildNumber,
	}
}

// Equal reports whether r and o share the same identity, and that any
// checksums known to both agree.
func (r *PackageRecord) Equal(o *PackageRecord) bool {
	if r == nil || o == nil {
		return r == o
	}
	if r.Identity() != o.Identity() {
		return false
	}
	if !r.MD5.IsZero() && !o.MD5.IsZero() && r.MD5.String() != o.MD5.String() {
		return false
	}
	if !r.SHA256.IsZero() && !o.SHA256.IsZero() && r.SHA256.String() != o.SHA256.String() {
		return false
	}
	return true
}

// Filename is the archive name this record would be fetched/stored as,
// e.g. "scipy-0.11.0-np17py27_0.conda".
func (r *PackageRecord) Filename(legacy bool) string {
	ext := ".conda"
	if legacy {
		ext = ".tar.bz2"
	}
	return r.Name + "-" + r.Version + "-" + r.Build + ext
}

// PURL synthesizes a package-url identifier for this record. This is
// supplemental provenance tooling (used by the SBOM exporter and by
// structured log fields), not part of the record's identity.
func (r *PackageRecord) PURL() string {
	qualifiers := packageurl.QualifiersFromMap(map[string]string{
		"build":  r.Build,
		"subdir": string(r.Subdir),
	})
	instance := packageurl.NewPackageURL("conda", r.Channel.Name, r.Name, r.Version, qualifiers, "")
	return instance.ToString()
}
