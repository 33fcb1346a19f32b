package transaction

import (
	"os"
	"path/filepath"
	"testing"

	condacore "github.com/condacore/conda-core"
)

func prefixRecordWithFiles(files ...string) condacore.PrefixRecord {
	return condacore.PrefixRecord{
		PackageRecord: condacore.PackageRecord{Name: "tool", Version: "1.0", Build: "0"},
		Files:         files,
	}
}

func TestSplitLines(t *testing.T) {
	got := splitLines([]byte("a\nb\nc\n"))
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestSplitLinesEmpty(t *testing.T) {
	if got := splitLines(nil); got != nil {
		t.Fatalf("expected nil for empty input, got %v", got)
	}
}

func TestRegisterEnvActionAppendsOnce(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, "environments.txt")
	a := &RegisterEnvAction{EnvironmentsFile: envFile, Prefix: "/home/user/envs/myenv"}
	env := &execEnv{}

	if err := a.Execute(env); err != nil {
		t.Fatal(err)
	}
	if err := a.Execute(env); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(envFile)
	if err != nil {
		t.Fatal(err)
	}
	lines := splitLines(data)
	count := 0
	for _, l := range lines {
		if l == "/home/user/envs/myenv" {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected prefix to appear exactly once, got %d (lines=%v)", count, lines)
	}
}

func TestRegisterEnvActionNoFileConfiguredIsNoop(t *testing.T) {
	a := &RegisterEnvAction{Prefix: "/home/user/envs/myenv"}
	if err := a.Execute(&execEnv{}); err != nil {
		t.Fatalf("expected no-op with no configured file, got %v", err)
	}
}

func TestUnlinkActionStagesIntoTrash(t *testing.T) {
	prefix := t.TempDir()
	trash := filepath.Join(prefix, ".trash")
	rel := "bin/tool"
	full := filepath.Join(prefix, rel)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(full, []byte("x"), 0o755); err != nil {
		t.Fatal(err)
	}

	a := &UnlinkAction{Record: prefixRecordWithFiles(rel)}
	env := &execEnv{Prefix: prefix, trashDir: trash}
	if err := a.Execute(env); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(full); !os.IsNotExist(err) {
		t.Fatalf("expected file to be removed from prefix, stat err=%v", err)
	}
	if _, err := os.Stat(filepath.Join(trash, rel)); err != nil {
		t.Fatalf("expected file staged in trash: %v", err)
	}
}

func TestUnlinkActionMovesToTrashAndReverses(t *testing.T) {
	prefix := t.TempDir()
	trash := filepath.Join(prefix, ".trash")
	if err := os.MkdirAll(trash, 0o755); err != nil {
		t.Fatal(err)
	}
	rel := "bin/tool"
	full := filepath.Join(prefix, rel)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(full, []byte("x"), 0o755); err != nil {
		t.Fatal(err)
	}

	a := &UnlinkAction{Record: prefixRecordWithFiles(rel)}
	env := &execEnv{Prefix: prefix, trashDir: trash}
	if err := a.Execute(env); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(full); !os.IsNotExist(err) {
		t.Fatalf("expected file moved out of prefix, stat err=%v", err)
	}
	if _, err := os.Stat(filepath.Join(trash, rel)); err != nil {
		t.Fatalf("expected file staged in trash: %v", err)
	}

	if err := a.Reverse(env); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(full); err != nil {
		t.Fatalf("expected file restored after reverse: %v", err)
	}
}
