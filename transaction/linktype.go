package transaction

import (
	"io"
	"os"
	"runtime"

	condacore "github.com/condacore/conda-core"
)

// chooseLinkType selects how to materialize an extracted file into the
// prefix: prefer a hardlink within the same filesystem; fall back to a
// softlink if allowed; fall back to a copy otherwise. Windows disallows
// softlinks by default regardless of allowSoftlinks.
func chooseLinkType(srcDir, prefix string, allowSoftlinks, alwaysCopy bool) condacore.LinkType {
	if alwaysCopy {
		return condacore.LinkCopy
	}
	if ok, err := sameFilesystem(srcDir, prefix); err == nil && ok {
		return condacore.LinkHard
	}
	if allowSoftlinks && runtime.GOOS != "windows" {
		return condacore.LinkSoft
	}
	return condacore.LinkCopy
}

// materializeFile places src at dst using linkType, creating dst's parent
// directory as needed. It falls back to a copy if a hardlink fails for a
// reason specific to this one file (e.g. cross-device link after all,
// despite the filesystem check); a failed softlink or copy returns its
// error.
func materializeFile(src, dst string, linkType condacore.LinkType) (condacore.LinkType, error) {
	if err := os.MkdirAll(parentDir(dst), 0o755); err != nil {
		return linkType, err
	}
	var err error
	switch linkType {
	case condacore.LinkHard:
		err = os.Link(src, dst)
		if err != nil {
			return materializeFile(src, dst, condacore.LinkCopy)
		}
	case condacore.LinkSoft:
		err = os.Symlink(src, dst)
	case condacore.LinkCopy:
		err = copyFile(src, dst)
	default:
		err = copyFile(src, dst)
		linkType = condacore.LinkCopy
	}
	return linkType, err
}

func parentDir(path string) string {
	i := len(path) - 1
	for i >= 0 && path[i] != '/' && path[i] != '\\' {
		i--
	}
	if i < 0 {
		return "."
	}
	return path[:i]
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	info, err := in.Stat()
	if err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	defer out.Close()
	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
