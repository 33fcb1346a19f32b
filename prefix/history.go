package prefix

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	condacore "github.com/condacore/conda-core"
)

const historyFilename = "history"

// HistoryEntry is one append-only transaction record: a timestamp, the
// specs given, the update action, and the resulting set of installed
// packages, recorded as "name-version-build" strings exactly as conda's
// on-disk history format does.
type HistoryEntry struct {
	Timestamp  time.Time
	Action     string // "install", "remove", "update", etc.
	Specs      []string
	UpdateSpecs []string
	RemoveSpecs []string
	Result      []string // "name-version-build" strings, post-transaction
}

// History is the parsed conda-meta/history ledger for one prefix.
type History struct {
	Root    string
	Entries []HistoryEntry
}

const historyTimeLayout = "2006-01-02 15:04:05"

// LoadHistory parses <prefix>/conda-meta/history. A missing file yields
// an empty History, not an error: history never loses entries once a
// prefix exists, but none exists yet for a brand new one.
func LoadHistory(root string) (*History, error) {
	h := &History{Root: root}
	path := filepath.Join(root, condaMetaDir, historyFilename)
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return h, nil
	}
	if err != nil {
		return nil, &condacore.Error{Kind: condacore.ErrPrefix, Op: "prefix.LoadHistory", Inner: err}
	}
	defer f.Close()

	var cur *HistoryEntry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "==>") && strings.HasSuffix(line, "<=="):
			if cur != nil {
				h.Entries = append(h.Entries, *cur)
			}
			ts, action, _ := strings.Cut(strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(line, "==>"), "<==")), " # ")
			t, _ := time.Parse(historyTimeLayout, strings.TrimSpace(ts))
			cur = &HistoryEntry{Timestamp: t, Action: strings.TrimSpace(action)}
		case cur == nil:
			continue
		case strings.HasPrefix(line, "# update specs: "):
			cur.UpdateSpecs = splitHistoryList(strings.TrimPrefix(line, "# update specs: "))
		case strings.HasPrefix(line, "# remove specs: "):
			cur.RemoveSpecs = splitHistoryList(strings.TrimPrefix(line, "# remove specs: "))
		case strings.HasPrefix(line, "# specs: "):
			cur.Specs = splitHistoryList(strings.TrimPrefix(line, "# specs: "))
		case strings.HasPrefix(line, "+") || strings.HasPrefix(line, "-"):
			// Result lines use a leading '+' for additions; conda's own
			// format doesn't record removals as distinct entries per
			// line, only the resulting set, so '+' lines are kept and
			// '-' lines are dropped from the running Result.
			if strings.HasPrefix(line, "+") {
				cur.Result = append(cur.Result, strings.TrimPrefix(line, "+"))
			}
		}
	}
	if cur != nil {
		h.Entries = append(h.Entries, *cur)
	}
	if err := scanner.Err(); err != nil {
		return nil, &condacore.Error{Kind: condacore.ErrPrefix, Op: "prefix.LoadHistory", Inner: err}
	}
	return h, nil
}

func splitHistoryList(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Append adds entry to the in-memory log and durably appends it to the
// history file. History never loses entries.
func (h *History) Append(entry HistoryEntry) error {
	metaDir := filepath.Join(h.Root, condaMetaDir)
	if err := os.MkdirAll(metaDir, 0o755); err != nil {
		return &condacore.Error{Kind: condacore.ErrPrefix, Op: "prefix.History.Append", Inner: err}
	}
	f, err := os.OpenFile(filepath.Join(metaDir, historyFilename), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return &condacore.Error{Kind: condacore.ErrPrefix, Op: "prefix.History.Append", Inner: err}
	}
	defer f.Close()

	var b strings.Builder
	fmt.Fprintf(&b, "==> %s # %s <==\n", entry.Timestamp.UTC().Format(historyTimeLayout), entry.Action)
	if len(entry.Specs) > 0 {
		fmt.Fprintf(&b, "# specs: %s\n", strings.Join(entry.Specs, ","))
	}
	if len(entry.UpdateSpecs) > 0 {
		fmt.Fprintf(&b, "# update specs: %s\n", strings.Join(entry.UpdateSpecs, ","))
	}
	if len(entry.RemoveSpecs) > 0 {
		fmt.Fprintf(&b, "# remove specs: %s\n", strings.Join(entry.RemoveSpecs, ","))
	}
	for _, r := range entry.Result {
		fmt.Fprintf(&b, "+%s\n", r)
	}
	if _, err := f.WriteString(b.String()); err != nil {
		return &condacore.Error{Kind: condacore.ErrPrefix, Op: "prefix.History.Append", Inner: err}
	}
	h.Entries = append(h.Entries, entry)
	return nil
}

// Latest returns the most recent entry, or ok=false if History is empty.
func (h *History) Latest() (HistoryEntry, bool) {
	if len(h.Entries) == 0 {
		return HistoryEntry{}, false
	}
	return h.Entries[len(h.Entries)-1], true
}

// RequestedSpecs returns the specs from the most recent transaction —
// one half of the "requested specs" union (the other half is the
// pinned file, see LoadPinned).
func (h *History) RequestedSpecs() []string {
	latest, ok := h.Latest()
	if !ok {
		return nil
	}
	return latest.Specs
}

// Replay returns the installed-package set recorded for revision n, where
// revision 0 is the first recorded entry: a copy of Entries[n].Result as
// written, without folding earlier entries into it. This backs "conda
// install --revision N".
func (h *History) Replay(n int) ([]string, error) {
	if n < 0 || n >= len(h.Entries) {
		return nil, fmt.Errorf("prefix: revision %d out of range [0,%d)", n, len(h.Entries))
	}
	return append([]string(nil), h.Entries[n].Result...), nil
}
