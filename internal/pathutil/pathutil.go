// Package pathutil provides path-cleaning helpers used when materializing
// package payload paths into a prefix.
package pathutil

import p "path"

// Canonicalize removes any leading '.', '..', './', or '../' and collapses
// duplicate slashes, so that a payload path read from an archive can't
// escape the prefix it's being linked into.
func Canonicalize(path string) string {
	path = p.Clean(path)
	runes := []rune(path)
	for i, r := range runes {
		if r == '.' || r == '/' {
			continue
		}
		return string(runes[i:])
	}
	return ""
}
