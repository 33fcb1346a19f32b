package transaction

import (
	"archive/tar"
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/bzip2"
	"github.com/klauspost/compress/zstd"
)

// extractArchive unpacks archivePath into destDir.
// A .conda archive is an outer zip containing "pkg-*.tar.zst" (payload)
// and "info-*.tar.zst" (metadata, including paths.json); a legacy
// .tar.bz2 archive is a single bzip2-compressed tar with both payload and
// info/ interleaved at the top level.
func extractArchive(archivePath, destDir string) error {
	if strings.HasSuffix(archivePath, ".tar.bz2") {
		return extractLegacyTarBz2(archivePath, destDir)
	}
	return extractConda(archivePath, destDir)
}

func extractConda(archivePath, destDir string) error {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("transaction: opening %s: %w", archivePath, err)
	}
	defer zr.Close()

	for _, f := range zr.File {
		if !strings.HasSuffix(f.Name, ".tar.zst") {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf("transaction: opening %s in %s: %w", f.Name, archivePath, err)
		}
		err = func() error {
			defer rc.Close()
			zstr, err := zstd.NewReader(rc)
			if err != nil {
				return fmt.Errorf("transaction: opening zstd stream %s: %w", f.Name, err)
			}
			defer zstr.Close()
			return extractTar(zstr, destDir)
		}()
		if err != nil {
			return err
		}
	}
	return nil
}

func extractLegacyTarBz2(archivePath, destDir string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return err
	}
	defer f.Close()
	return extractTar(bzip2.NewReader(f), destDir)
}

// extractTar unpacks a tar stream into destDir, rejecting any entry whose
// resolved path would escape destDir.
func extractTar(r io.Reader, destDir string) error {
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		target, err := safeJoin(destDir, hdr.Name)
		if err != nil {
			return err
		}
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
		case tar.TypeSymlink:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			os.Remove(target)
			if err := os.Symlink(hdr.Linkname, target); err != nil {
				return err
			}
		default:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(hdr.Mode&0o777))
			if err != nil {
				return err
			}
			_, err = io.Copy(out, tr)
			out.Close()
			if err != nil {
				return err
			}
		}
	}
}

// safeJoin joins base and name, rejecting any result that escapes base
// (a zip-slip guard: archives are untrusted input from a package cache).
func safeJoin(base, name string) (string, error) {
	clean := filepath.Join(base, name)
	if !strings.HasPrefix(clean, filepath.Clean(base)+string(os.PathSeparator)) && clean != filepath.Clean(base) {
		return "", fmt.Errorf("transaction: archive entry %q escapes extraction directory", name)
	}
	return clean, nil
}
