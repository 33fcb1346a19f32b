package transaction

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	condacore "github.com/condacore/conda-core"
)

// ArchiveFetcher downloads one package archive's bytes. It is the
// transaction engine's analogue of repodata.Fetcher: dispatch by URL
// scheme is the caller's responsibility (internal/httpfetch.Fetcher
// satisfies this for http(s) URLs).
type ArchiveFetcher interface {
	FetchArchive(ctx context.Context, url string) (body io.ReadCloser, contentLength int64, err error)
}

// pathsEntry is one record of a package's paths.json, used for per-file
// verification and placeholder rewriting during link.
type pathsEntry struct {
	Path              string `json:"_path"`
	PathType          string `json:"path_type"`
	SHA256            string `json:"sha256"`
	SizeInBytes       int64  `json:"size_in_bytes"`
	PrefixPlaceholder string `json:"prefix_placeholder"`
	FileMode          string `json:"file_mode"`
	NoLink            bool   `json:"no_link"`
}

type pathsJSON struct {
	Paths []pathsEntry `json:"paths"`
}

// linkJSON is the subset of a package's info/link.json this engine reads:
// the noarch-python entry_points a LinkAction needs to materialize as
// console-script shims.
type linkJSON struct {
	Noarch *linkJSONNoarch `json:"noarch"`
}

type linkJSONNoarch struct {
	Type        string   `json:"type"`
	EntryPoints []string `json:"entry_points"`
}

// loadLinkJSON reads info/link.json from an extracted package directory.
// A package with no link.json yields a nil document, not an error; a
// link.json without noarch entry_points yields a document whose Noarch is
// nil or has no EntryPoints.
func loadLinkJSON(entryDir string) (*linkJSON, error) {
	b, err := os.ReadFile(entryDir + "/info/link.json")
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var doc linkJSON
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// parseEntryPoint splits a console-script spec of the form
// "name = module:function" into its three parts.
func parseEntryPoint(spec string) (name, module, function string, ok bool) {
	nameRest := strings.SplitN(spec, "=", 2)
	if len(nameRest) != 2 {
		return "", "", "", false
	}
	modFunc := strings.SplitN(strings.TrimSpace(nameRest[1]), ":", 2)
	if len(modFunc) != 2 {
		return "", "", "", false
	}
	return strings.TrimSpace(nameRest[0]), strings.TrimSpace(modFunc[0]), strings.TrimSpace(modFunc[1]), true
}

// FetchExtractTransaction brings rec's archive into cacheDir, rollback
// scope limited to this one package.
func FetchExtractTransaction(ctx context.Context, fetcher ArchiveFetcher, rec condacore.PackageRecord, cacheDir string, opts Options) error {
	archivePath := cacheArchivePath(cacheDir, rec)
	entryDir := cacheEntryDir(cacheDir, rec)

	if ok, err := archiveMatches(archivePath, rec); err == nil && ok {
		if _, err := os.Stat(entryDir); err == nil {
			return nil // already fetched and extracted
		}
	}

	partial := archivePath + ".partial"
	if err := downloadArchive(ctx, fetcher, rec.URL, partial, rec.Size); err != nil {
		os.Remove(partial)
		return &condacore.Error{Kind: condacore.ErrIntegrity, Op: "transaction.FetchExtractTransaction", Message: rec.Filename(false), Inner: err}
	}
	if ok, err := archiveMatches(partial, rec); err != nil || !ok {
		os.Remove(partial)
		if err == nil {
			err = fmt.Errorf("checksum mismatch for %s", rec.Filename(false))
		}
		return &condacore.Error{Kind: condacore.ErrIntegrity, Op: "transaction.FetchExtractTransaction", Message: rec.Filename(false), Inner: err}
	}
	if err := os.Rename(partial, archivePath); err != nil {
		os.Remove(partial)
		return &condacore.Error{Kind: condacore.ErrTransaction, Op: "transaction.FetchExtractTransaction", Inner: err}
	}

	tmpDir := entryDir + ".tmp"
	os.RemoveAll(tmpDir)
	if err := extractArchive(archivePath, tmpDir); err != nil {
		os.RemoveAll(tmpDir)
		return &condacore.Error{Kind: condacore.ErrTransaction, Op: "transaction.FetchExtractTransaction", Message: "extract", Inner: err}
	}
	if opts.SafetyChecks != SafetyChecksDisabled {
		if err := verifyExtractedPaths(tmpDir, opts.SafetyChecks == SafetyChecksEnabled); err != nil {
			os.RemoveAll(tmpDir)
			return &condacore.Error{Kind: condacore.ErrIntegrity, Op: "transaction.FetchExtractTransaction", Message: "per-file verification", Inner: err}
		}
	}
	if err := os.RemoveAll(entryDir); err != nil {
		os.RemoveAll(tmpDir)
		return &condacore.Error{Kind: condacore.ErrTransaction, Op: "transaction.FetchExtractTransaction", Inner: err}
	}
	if err := os.Rename(tmpDir, entryDir); err != nil {
		os.RemoveAll(tmpDir)
		return &condacore.Error{Kind: condacore.ErrTransaction, Op: "transaction.FetchExtractTransaction", Inner: err}
	}
	return nil
}

func downloadArchive(ctx context.Context, fetcher ArchiveFetcher, url, dest string, expectedSize int64) error {
	body, length, err := fetcher.FetchArchive(ctx, url)
	if err != nil {
		return err
	}
	defer body.Close()
	if expectedSize > 0 && length > 0 && length != expectedSize {
		return fmt.Errorf("content-length %d does not match expected size %d", length, expectedSize)
	}
	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer out.Close()
	n, err := io.Copy(out, body)
	if err != nil {
		return err
	}
	if expectedSize > 0 && n != expectedSize {
		return fmt.Errorf("downloaded %d bytes, expected %d", n, expectedSize)
	}
	return nil
}

// loadPaths reads info/paths.json from an extracted package directory.
// A package with no paths.json (older format) yields an empty list, not
// an error.
func loadPaths(entryDir string) ([]pathsEntry, error) {
	b, err := os.ReadFile(entryDir + "/info/paths.json")
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var doc pathsJSON
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, err
	}
	return doc.Paths, nil
}

// verifyExtractedPaths checks every paths.json entry's sha256 against
// the extracted file. hardFail controls whether a mismatch aborts
// extraction (SafetyChecksEnabled) or is tolerated (SafetyChecksWarn,
// which still calls this but the caller chose not to pass
// hardFail=true).
func verifyExtractedPaths(entryDir string, hardFail bool) error {
	entries, err := loadPaths(entryDir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.SHA256 == "" {
			continue
		}
		f, err := os.Open(entryDir + "/" + e.Path)
		if err != nil {
			if hardFail {
				return err
			}
			continue
		}
		h := sha256.New()
		_, err = io.Copy(h, f)
		f.Close()
		if err != nil {
			if hardFail {
				return err
			}
			continue
		}
		if sum := hex.EncodeToString(h.Sum(nil)); !strings.EqualFold(sum, e.SHA256) {
			if hardFail {
				return fmt.Errorf("sha256 mismatch for %s", e.Path)
			}
		}
	}
	return nil
}
