package transaction

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"io"
	"os"
	"path/filepath"
	"strings"

	condacore "github.com/condacore/conda-core"
)

// cacheEntryDir is the extracted-package directory for rec within
// cacheDir: one subdirectory per <name>-<version>-<build>.
func cacheEntryDir(cacheDir string, rec condacore.PackageRecord) string {
	return filepath.Join(cacheDir, rec.Name+"-"+rec.Version+"-"+rec.Build)
}

// cacheArchivePath is the downloaded archive path for rec within cacheDir.
func cacheArchivePath(cacheDir string, rec condacore.PackageRecord) string {
	return filepath.Join(cacheDir, rec.Filename(false))
}

// archiveMatches reports whether the file at path matches rec's known
// digest (sha256 preferred, md5 as fallback).
func archiveMatches(path string, rec condacore.PackageRecord) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	defer f.Close()

	switch {
	case !rec.SHA256.IsZero():
		sum, err := hashFile(f, sha256.New())
		if err != nil {
			return false, err
		}
		return strings.EqualFold(sum, hex.EncodeToString(rec.SHA256.Checksum())), nil
	case !rec.MD5.IsZero():
		sum, err := hashFile(f, md5.New())
		if err != nil {
			return false, err
		}
		return strings.EqualFold(sum, hex.EncodeToString(rec.MD5.Checksum())), nil
	default:
		// No digest to check against; presence is all we can verify.
		return true, nil
	}
}

func hashFile(f *os.File, h hash.Hash) (string, error) {
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// firstWritableCacheDir returns the first directory in dirs that this
// process can create files in. Multiple caches may exist; writable and
// read-only caches are both supported.
func firstWritableCacheDir(dirs []string) (string, error) {
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			continue
		}
		probe := filepath.Join(d, ".condacore-writable")
		f, err := os.OpenFile(probe, os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			continue
		}
		f.Close()
		os.Remove(probe)
		return d, nil
	}
	return "", &condacore.Error{Kind: condacore.ErrTransaction, Op: "transaction.firstWritableCacheDir", Message: "no writable package cache directory configured"}
}
