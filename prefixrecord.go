package condacore

// LinkType describes how a package's files were materialized into a
// prefix.
type LinkType string

const (
	LinkHard      LinkType = "hard"
	LinkSoft      LinkType = "soft"
	LinkCopy      LinkType = "copy"
	LinkDirectory LinkType = "directory"
)

// FileMode classifies whether a linked file needs prefix-placeholder
// rewriting as text or as null-padded binary.
type FileMode string

const (
	FileModeText   FileMode = "text"
	FileModeBinary FileMode = "binary"
)

// PathData is the per-file record of a linked package: its path relative
// to the prefix, any prefix-placeholder rewriting metadata, and integrity
// data used by later verification.
type PathData struct {
	Path              string
	PathType          LinkType // hardlink, softlink, or directory
	PrefixPlaceholder string   // empty if this file has no placeholder to rewrite
	FileMode          FileMode
	SHA256            Digest
	Size              int64
}

// PrefixRecord is an installed PackageRecord plus the link metadata needed
// to unlink it again.
type PrefixRecord struct {
	PackageRecord

	LinkType LinkType
	// Files lists payload paths relative to the prefix, in the order
	// they were linked.
	Files []string
	// PathsData carries per-file metadata keyed by the same paths in
	// Files.
	PathsData []PathData
	// RequestedSpec is the MatchSpec string that caused installation, or
	// "" if this record was installed purely as a dependency.
	RequestedSpec string
}
