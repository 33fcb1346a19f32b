package transaction

import (
	"testing"

	condacore "github.com/condacore/conda-core"
)

func TestRemapNoarchPathNonNoarchIsVerbatim(t *testing.T) {
	rec := condacore.PackageRecord{Name: "zlib"}
	if got := remapNoarchPath(rec, "site-packages/zlib/__init__.py", "3.11.4"); got != "site-packages/zlib/__init__.py" {
		t.Fatalf("non-noarch record should not be remapped, got %q", got)
	}
}

func TestRemapNoarchPathSitePackages(t *testing.T) {
	rec := condacore.PackageRecord{Name: "requests", Noarch: condacore.NoarchPython}
	got := remapNoarchPath(rec, "site-packages/requests/__init__.py", "3.11.4")
	want := sitePackagesDir("3.11.4") + "/requests/__init__.py"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestRemapNoarchPathSitePackagesUnknownPythonVersion(t *testing.T) {
	rec := condacore.PackageRecord{Name: "requests", Noarch: condacore.NoarchPython}
	got := remapNoarchPath(rec, "site-packages/requests/__init__.py", "")
	want := sitePackagesDir("") + "/requests/__init__.py"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestRemapNoarchPathScripts(t *testing.T) {
	rec := condacore.PackageRecord{Name: "pip", Noarch: condacore.NoarchPython}
	got := remapNoarchPath(rec, "python-scripts/pip", "3.11.4")
	want := scriptsDir() + "/pip"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestRemapNoarchPathOtherEntriesUnchanged(t *testing.T) {
	rec := condacore.PackageRecord{Name: "requests", Noarch: condacore.NoarchPython}
	got := remapNoarchPath(rec, "info/recipe/meta.yaml", "3.11.4")
	if got != "info/recipe/meta.yaml" {
		t.Fatalf("got %q, want verbatim path", got)
	}
}

func TestPythonMajorMinor(t *testing.T) {
	cases := map[string]string{
		"3.11.4": "3.11",
		"3.9":    "3.9",
		"3":      "",
		"":       "",
	}
	for in, want := range cases {
		if got := pythonMajorMinor(in); got != want {
			t.Fatalf("pythonMajorMinor(%q) = %q, want %q", in, got, want)
		}
	}
}
