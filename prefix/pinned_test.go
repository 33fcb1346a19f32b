package prefix

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadPinnedSkipsBlankAndCommentLines(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, condaMetaDir), 0o755); err != nil {
		t.Fatal(err)
	}
	content := "numpy ==1.7.0\n\n# keep openssl pinned\nopenssl >=1.0\n"
	if err := os.WriteFile(filepath.Join(dir, condaMetaDir, pinnedFilename), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	pins, err := LoadPinned(dir)
	if err != nil {
		t.Fatalf("LoadPinned: %v", err)
	}
	if len(pins) != 2 || pins[0] != "numpy ==1.7.0" || pins[1] != "openssl >=1.0" {
		t.Fatalf("unexpected pins: %v", pins)
	}
}

func TestLoadPinnedMissingFileIsNotError(t *testing.T) {
	pins, err := LoadPinned(t.TempDir())
	if err != nil || pins != nil {
		t.Fatalf("want (nil, nil), got (%v, %v)", pins, err)
	}
}

func TestRequestedSpecsUnionDedupesPreservingOrder(t *testing.T) {
	dir := t.TempDir()
	h, _ := LoadHistory(dir)
	_ = h.Append(HistoryEntry{Timestamp: time.Now().UTC(), Action: "install", Specs: []string{"numpy", "scipy"}})

	specs := RequestedSpecs(h, []string{"scipy >=0.11", "openssl"}, []string{"openssl", "certifi"})
	want := []string{"numpy", "scipy", "scipy >=0.11", "openssl", "certifi"}
	if len(specs) != len(want) {
		t.Fatalf("want %v, got %v", want, specs)
	}
	for i := range want {
		if specs[i] != want[i] {
			t.Fatalf("want %v, got %v", want, specs)
		}
	}
}
