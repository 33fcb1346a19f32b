package condacore

import "strings"

// Channel is a logical name plus an ordered list of base URLs; it resolves
// to one base_url/subdir/ per target subdir plus base_url/noarch/. Channels
// carry an integer Priority index within a single resolve (lower is
// higher priority; index 0 is queried first).
type Channel struct {
	Name     string
	BaseURLs []string
	Priority int
}

// UnknownChannel is substituted for a PackageRecord's channel when the
// record was read from cache but the channel is no longer configured, so
// previously-installed packages remain reinstallable.
const UnknownChannel = "<unknown>"

// URL returns the base_url/subdir/ for the given subdir.
func (c Channel) URL(subdir Subdir) string {
	if len(c.BaseURLs) == 0 {
		return ""
	}
	base := strings.TrimRight(c.BaseURLs[0], "/")
	return base + "/" + string(subdir) + "/"
}

// IsUnknown reports whether this channel is the unknown-channel
// placeholder.
func (c Channel) IsUnknown() bool {
	return c.Name == UnknownChannel
}
