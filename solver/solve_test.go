package solver

import (
	"context"
	"testing"

	condacore "github.com/condacore/conda-core"
	"github.com/condacore/conda-core/repodata"
)

func rec(name, version, build string, buildNumber int, depends ...string) condacore.PackageRecord {
	return condacore.PackageRecord{
		Name:        name,
		Version:     version,
		Build:       build,
		BuildNumber: buildNumber,
		Channel:     condacore.Channel{Name: "defaults", Priority: 0},
		Subdir:      condacore.SubdirLinux64,
		Depends:     depends,
	}
}

func TestSolveInstallsSimpleRequest(t *testing.T) {
	idx := &repodata.Index{Records: []condacore.PackageRecord{
		rec("numpy", "1.7.0", "py27_0", 0),
		rec("numpy", "1.8.0", "py27_0", 0),
		rec("scipy", "0.11.0", "np17py27_0", 0, "numpy >=1.7"),
	}}

	req := Request{
		RequestedSpecs: []string{"scipy"},
		Target:         []string{"scipy"},
	}
	plan, err := Solve(context.Background(), idx, req)
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if len(plan.Unlinks) != 0 {
		t.Fatalf("want no unlinks on a fresh prefix, got %v", plan.Unlinks)
	}
	names := make(map[string]bool)
	for _, l := range plan.Links {
		names[l.Record.Name] = true
	}
	if !names["scipy"] || !names["numpy"] {
		t.Fatalf("want both scipy and numpy linked, got %+v", plan.Links)
	}

	scipyPos, numpyPos := -1, -1
	for i, l := range plan.Links {
		switch l.Record.Name {
		case "scipy":
			scipyPos = i
		case "numpy":
			numpyPos = i
		}
	}
	if !(numpyPos < scipyPos) {
		t.Fatalf("want numpy linked before scipy (dependency order), got numpy=%d scipy=%d", numpyPos, scipyPos)
	}

	for _, l := range plan.Links {
		if l.Record.Name == "numpy" && l.Record.Version != "1.8.0" {
			t.Fatalf("want highest available numpy version chosen, got %s", l.Record.Version)
		}
	}
}

func TestSolveUnsatisfiableProducesExplanation(t *testing.T) {
	idx := &repodata.Index{Records: []condacore.PackageRecord{
		rec("numpy", "1.7.0", "py27_0", 0),
	}}
	req := Request{
		RequestedSpecs: []string{"scipy"}, // no scipy candidate exists at all
		Target:         []string{"scipy"},
	}
	_, err := Solve(context.Background(), idx, req)
	if err == nil {
		t.Fatal("want an error for an unsatisfiable request")
	}
	exp, ok := err.(*Explanation)
	if !ok {
		t.Fatalf("want *Explanation, got %T: %v", err, err)
	}
	if len(exp.Groups) == 0 {
		t.Fatal("want at least one conflict group explaining the failure")
	}
}

func TestSolveFreezeInstalledAvoidsUnrelatedChanges(t *testing.T) {
	idx := &repodata.Index{Records: []condacore.PackageRecord{
		rec("numpy", "1.7.0", "py27_0", 0),
		rec("numpy", "1.8.0", "py27_0", 0),
		rec("requests", "2.0.0", "py27_0", 0),
	}}
	installed := []condacore.PrefixRecord{
		{PackageRecord: rec("numpy", "1.7.0", "py27_0", 0), RequestedSpec: "numpy"},
	}
	req := Request{
		Installed:      installed,
		RequestedSpecs: []string{"numpy", "requests"},
		Target:         []string{"requests"},
		Modifier:       FreezeInstalled,
	}
	plan, err := Solve(context.Background(), idx, req)
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	for _, l := range plan.Links {
		if l.Record.Name == "numpy" && l.Record.Version != "1.7.0" {
			t.Fatalf("FREEZE_INSTALLED should keep numpy at 1.7.0, got %s", l.Record.Version)
		}
	}
}
