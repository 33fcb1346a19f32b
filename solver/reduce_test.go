package solver

import (
	"testing"

	condacore "github.com/condacore/conda-core"
)

func testRecord(name, version, build string, depends ...string) condacore.PackageRecord {
	return condacore.PackageRecord{
		Name:    name,
		Version: version,
		Build:   build,
		Channel: condacore.Channel{Name: "defaults"},
		Subdir:  condacore.SubdirLinux64,
		Depends: depends,
	}
}

func TestReduceIndexDropsUnreachableName(t *testing.T) {
	byName := map[string][]condacore.PackageRecord{
		"scipy": {testRecord("scipy", "0.11.0", "np17py27_0", "numpy >=1.7")},
		"numpy": {testRecord("numpy", "1.8.0", "py27_0")},
		"django": {testRecord("django", "1.6", "py27_0")}, // unrelated to the request, never queued
	}
	req := Request{RequestedSpecs: []string{"scipy"}}

	reduced, err := reduceIndex(byName, req)
	if err != nil {
		t.Fatalf("reduceIndex: %v", err)
	}
	if _, ok := reduced.byName["django"]; ok {
		t.Fatal("want django excluded from the reduced index, it's unreachable from the request")
	}
	if len(reduced.byName["numpy"]) != 1 {
		t.Fatalf("want numpy pulled in as scipy's dependency, got %+v", reduced.byName["numpy"])
	}
	if len(reduced.byName["scipy"]) != 1 {
		t.Fatalf("want scipy present, got %+v", reduced.byName["scipy"])
	}
}

func TestPruneUnreachableDependenciesDropsUnsatisfiableCandidate(t *testing.T) {
	byName := map[string][]condacore.PackageRecord{
		"scipy": {testRecord("scipy", "0.11.0", "np17py27_0", "numpy >=99")}, // no numpy >=99 exists
		"numpy": {testRecord("numpy", "1.8.0", "py27_0")},
	}
	req := Request{RequestedSpecs: []string{"scipy"}}

	reduced, err := reduceIndex(byName, req)
	if err != nil {
		t.Fatalf("reduceIndex: %v", err)
	}
	if len(reduced.byName["scipy"]) != 0 {
		t.Fatalf("want the scipy candidate pruned, its only numpy dependency is unsatisfiable, got %+v", reduced.byName["scipy"])
	}
}
