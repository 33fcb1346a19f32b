package prefix

import (
	"testing"

	condacore "github.com/condacore/conda-core"
)

func TestPutGetRemoveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	d, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(d.Records()) != 0 {
		t.Fatalf("want empty prefix, got %d records", len(d.Records()))
	}

	rec := condacore.PrefixRecord{
		PackageRecord: condacore.PackageRecord{Name: "numpy", Version: "1.7.0", Build: "py27_0"},
		RequestedSpec: "numpy",
	}
	if err := d.Put(rec); err != nil {
		t.Fatalf("Put: %v", err)
	}

	reloaded, err := Load(dir)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	got, ok := reloaded.Get("numpy")
	if !ok {
		t.Fatal("expected numpy to be loaded back")
	}
	if got.Version != "1.7.0" || got.RequestedSpec != "numpy" {
		t.Fatalf("round-tripped record mismatch: %+v", got)
	}

	if err := d.Remove("numpy"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, ok := d.Get("numpy"); ok {
		t.Fatal("expected numpy to be removed")
	}
	reloaded2, err := Load(dir)
	if err != nil {
		t.Fatalf("reload after remove: %v", err)
	}
	if len(reloaded2.Records()) != 0 {
		t.Fatalf("want empty prefix after remove, got %d", len(reloaded2.Records()))
	}
}

func TestPutReplacesOldLedgerFileOnVersionChange(t *testing.T) {
	dir := t.TempDir()
	d, _ := Load(dir)
	_ = d.Put(condacore.PrefixRecord{PackageRecord: condacore.PackageRecord{Name: "numpy", Version: "1.7.0", Build: "py27_0"}})
	_ = d.Put(condacore.PrefixRecord{PackageRecord: condacore.PackageRecord{Name: "numpy", Version: "1.8.0", Build: "py27_0"}})

	reloaded, err := Load(dir)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if len(reloaded.Records()) != 1 {
		t.Fatalf("want exactly 1 numpy record after version bump, got %d", len(reloaded.Records()))
	}
	got, _ := reloaded.Get("numpy")
	if got.Version != "1.8.0" {
		t.Fatalf("want 1.8.0, got %s", got.Version)
	}
}

func TestCheckConsistencyDetectsMissingDependency(t *testing.T) {
	dir := t.TempDir()
	d, _ := Load(dir)
	_ = d.Put(condacore.PrefixRecord{
		PackageRecord: condacore.PackageRecord{Name: "scipy", Version: "0.11.0", Build: "0", Depends: []string{"numpy >=1.7"}},
	})

	problems := d.CheckConsistency()
	if len(problems) != 1 || problems[0].Kind != "missing_dependency" {
		t.Fatalf("want 1 missing_dependency problem, got %+v", problems)
	}

	_ = d.Put(condacore.PrefixRecord{PackageRecord: condacore.PackageRecord{Name: "numpy", Version: "1.7.0", Build: "0"}})
	if problems := d.CheckConsistency(); len(problems) != 0 {
		t.Fatalf("want no problems once numpy is installed, got %+v", problems)
	}
}

func TestCheckConsistencyIgnoresVirtualDependencies(t *testing.T) {
	dir := t.TempDir()
	d, _ := Load(dir)
	_ = d.Put(condacore.PrefixRecord{
		PackageRecord: condacore.PackageRecord{Name: "tensorflow", Version: "2.0", Build: "0", Depends: []string{"__cuda >=10.0"}},
	})
	if problems := d.CheckConsistency(); len(problems) != 0 {
		t.Fatalf("want virtual dependency to be ignored, got %+v", problems)
	}
}
