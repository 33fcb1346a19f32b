package archspec

import "testing"

func TestDetectIncludesConda(t *testing.T) {
	pkgs := Detect(nil)
	found := false
	for _, p := range pkgs {
		if p.Name == "__conda" {
			found = true
		}
	}
	if !found {
		t.Error("Detect should always report __conda")
	}
}

func TestOverrideSetsVersion(t *testing.T) {
	pkgs := Detect([]string{"CONDA_OVERRIDE_CUDA=11.2"})
	var got string
	for _, p := range pkgs {
		if p.Name == "__cuda" {
			got = p.Version
		}
	}
	if got != "11.2" {
		t.Errorf("__cuda version = %q, want 11.2", got)
	}
}

func TestOverrideRemovesVirtualPackage(t *testing.T) {
	base := Detect(nil)
	var hadLinux bool
	for _, p := range base {
		if p.Name == "__linux" {
			hadLinux = true
		}
	}
	if !hadLinux {
		t.Skip("not running on linux; nothing to remove")
	}
	pkgs := Detect([]string{"CONDA_OVERRIDE_LINUX="})
	for _, p := range pkgs {
		if p.Name == "__linux" {
			t.Error("empty override should remove the virtual package")
		}
	}
}
