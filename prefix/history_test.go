package prefix

import (
	"testing"
	"time"
)

func TestHistoryAppendAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	h, err := LoadHistory(dir)
	if err != nil {
		t.Fatalf("LoadHistory: %v", err)
	}
	if len(h.Entries) != 0 {
		t.Fatalf("want empty history, got %d entries", len(h.Entries))
	}

	entry := HistoryEntry{
		Timestamp: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Action:    "install",
		Specs:     []string{"numpy", "scipy>=0.11"},
		Result:    []string{"numpy-1.7.0-py27_0", "scipy-0.11.0-np17py27_0"},
	}
	if err := h.Append(entry); err != nil {
		t.Fatalf("Append: %v", err)
	}

	reloaded, err := LoadHistory(dir)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if len(reloaded.Entries) != 1 {
		t.Fatalf("want 1 entry, got %d", len(reloaded.Entries))
	}
	got := reloaded.Entries[0]
	if got.Action != "install" || len(got.Specs) != 2 || len(got.Result) != 2 {
		t.Fatalf("round-tripped entry mismatch: %+v", got)
	}
	if !got.Timestamp.Equal(entry.Timestamp) {
		t.Fatalf("timestamp mismatch: got %v want %v", got.Timestamp, entry.Timestamp)
	}
}

func TestHistoryRequestedSpecsReturnsLatestOnly(t *testing.T) {
	dir := t.TempDir()
	h, _ := LoadHistory(dir)
	_ = h.Append(HistoryEntry{Timestamp: time.Now().UTC(), Action: "install", Specs: []string{"numpy"}})
	_ = h.Append(HistoryEntry{Timestamp: time.Now().UTC(), Action: "install", Specs: []string{"scipy"}})

	specs := h.RequestedSpecs()
	if len(specs) != 1 || specs[0] != "scipy" {
		t.Fatalf("want [scipy], got %v", specs)
	}
}

func TestHistoryReplay(t *testing.T) {
	dir := t.TempDir()
	h, _ := LoadHistory(dir)
	_ = h.Append(HistoryEntry{Timestamp: time.Now().UTC(), Action: "install", Result: []string{"numpy-1.7.0-py27_0"}})
	_ = h.Append(HistoryEntry{Timestamp: time.Now().UTC(), Action: "install", Result: []string{"numpy-1.7.0-py27_0", "scipy-0.11.0-np17py27_0"}})

	rev0, err := h.Replay(0)
	if err != nil || len(rev0) != 1 {
		t.Fatalf("Replay(0): %v %v", rev0, err)
	}
	rev1, err := h.Replay(1)
	if err != nil || len(rev1) != 2 {
		t.Fatalf("Replay(1): %v %v", rev1, err)
	}
	if _, err := h.Replay(5); err == nil {
		t.Fatal("expected out-of-range revision to error")
	}
}
