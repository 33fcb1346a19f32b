package repodata

import (
	"encoding/json"
	"fmt"
	"io"

	condacore "github.com/condacore/conda-core"
)

// document is the on-the-wire shape of a repodata.json file: a "packages"
// mapping (legacy .tar.bz2 entries) and an optional "packages.conda"
// mapping.
type document struct {
	Info struct {
		Subdir string `json:"subdir"`
	} `json:"info"`
	Packages      map[string]rawRecord `json:"packages"`
	PackagesConda map[string]rawRecord `json:"packages.conda"`
}

type rawRecord struct {
	Name          string   `json:"name"`
	Version       string   `json:"version"`
	Build         string   `json:"build"`
	BuildNumber   int      `json:"build_number"`
	Depends       []string `json:"depends"`
	Constrains    []string `json:"constrains"`
	Features      string   `json:"features"`
	TrackFeatures string   `json:"track_features"`
	License       string   `json:"license"`
	Timestamp     int64    `json:"timestamp"`
	MD5           string   `json:"md5"`
	SHA256        string   `json:"sha256"`
	LegacyBz2MD5  string   `json:"legacy_bz2_md5"`
	Size          int64    `json:"size"`
	Noarch        any      `json:"noarch"` // bool (legacy) or string ("python"/"generic")
}

// parseDocument parses a repodata.json body into PackageRecords, filling
// in each record's Channel, Subdir, and URL from the acquisition context.
func parseDocument(r io.Reader, channel condacore.Channel, subdir condacore.Subdir, baseURL string) ([]condacore.PackageRecord, error) {
	var doc document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("repodata: decoding document: %w", err)
	}
	if doc.Info.Subdir != "" {
		subdir = condacore.Subdir(doc.Info.Subdir)
	}

	records := make([]condacore.PackageRecord, 0, len(doc.Packages)+len(doc.PackagesConda))
	for fn, raw := range doc.Packages {
		rec, err := raw.toRecord(channel, subdir, baseURL, fn)
		if err != nil {
			return nil, fmt.Errorf("repodata: package %q: %w", fn, err)
		}
		records = append(records, rec)
	}
	byIdentity := make(map[condacore.RecordIdentity]int, len(records))
	for i, r := range records {
		byIdentity[r.Identity()] = i
	}
	for fn, raw := range doc.PackagesConda {
		rec, err := raw.toRecord(channel, subdir, baseURL, fn)
		if err != nil {
			return nil, fmt.Errorf("repodata: package %q: %w", fn, err)
		}
		// A .conda entry for the same package identity as a .tar.bz2
		// entry supersedes it and carries the legacy md5 forward, so
		// older clients that only understand the tarball format can
		// still verify it.
		if i, ok := byIdentity[rec.Identity()]; ok {
			if rec.LegacyBz2MD5.IsZero() && !records[i].MD5.IsZero() {
				rec.LegacyBz2MD5 = records[i].MD5
			}
			records[i] = rec
			continue
		}
		byIdentity[rec.Identity()] = len(records)
		records = append(records, rec)
	}
	return records, nil
}

func (raw rawRecord) toRecord(channel condacore.Channel, subdir condacore.Subdir, baseURL, filename string) (condacore.PackageRecord, error) {
	rec := condacore.PackageRecord{
		Name:        raw.Name,
		Version:     raw.Version,
		Build:       raw.Build,
		BuildNumber: raw.BuildNumber,
		Channel:     channel,
		Subdir:      subdir,
		Depends:     raw.Depends,
		Constrains:  raw.Constrains,
		License:     raw.License,
		Timestamp:   raw.Timestamp,
		Size:        raw.Size,
		URL:         baseURL + filename,
	}
	if raw.Features != "" {
		rec.Features = splitCommaSet(raw.Features)
	}
	if raw.TrackFeatures != "" {
		rec.TrackFeatures = splitCommaSet(raw.TrackFeatures)
	}
	switch n := raw.Noarch.(type) {
	case string:
		rec.Noarch = condacore.Noarch(n)
	case bool:
		if n {
			rec.Noarch = condacore.NoarchGeneric
		}
	}
	if raw.MD5 != "" {
		d, err := condacore.NewDigestFromHex(condacore.MD5, raw.MD5)
		if err != nil {
			return rec, fmt.Errorf("md5: %w", err)
		}
		rec.MD5 = d
	}
	if raw.SHA256 != "" {
		d, err := condacore.NewDigestFromHex(condacore.SHA256, raw.SHA256)
		if err != nil {
			return rec, fmt.Errorf("sha256: %w", err)
		}
		rec.SHA256 = d
	}
	if raw.LegacyBz2MD5 != "" {
		d, err := condacore.NewDigestFromHex(condacore.MD5, raw.LegacyBz2MD5)
		if err != nil {
			return rec, fmt.Errorf("legacy_bz2_md5: %w", err)
		}
		rec.LegacyBz2MD5 = d
	}
	return rec, nil
}

func splitCommaSet(s string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	return out
}
