package matchspec

import (
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	condacore "github.com/condacore/conda-core"
)

type versionTestcase struct {
	Name string
	In   string
	Err  bool
	Want Version
}

func (tc versionTestcase) Run(t *testing.T) {
	v, err := ParseVersion(tc.In)
	if (err != nil) != tc.Err {
		t.Fatalf("ParseVersion(%q) error = %v, want err=%t", tc.In, err, tc.Err)
	}
	if err != nil {
		return
	}
	if diff := cmp.Diff(tc.Want, v, cmpopts.IgnoreUnexported(Version{})); diff != "" {
		t.Error(diff)
	}
}

func TestParseVersion(t *testing.T) {
	tt := []versionTestcase{
		{Name: "Simple", In: "1.0.0", Want: Version{Release: []int{1, 0, 0}}},
		{
			Name: "All",
			In:   "1!2.3.4-a5-post_6.dev7.8",
			Want: Version{
				Epoch:   1,
				Release: []int{2, 3, 4},
				Pre: struct {
					Label string
					N     int
				}{Label: "a", N: 5},
				Post: 6,
				Dev:  7,
			},
		},
		{Name: "Date", In: "2019.3", Want: Version{Release: []int{2019, 3}}},
	}
	for _, tc := range tt {
		t.Run(tc.Name, tc.Run)
	}
}

type orderTestcase struct {
	Name string
	In   []string
	Want []string
}

func (tc orderTestcase) Run(t *testing.T) {
	vs := make([]Version, len(tc.In))
	for i, in := range tc.In {
		v, err := ParseVersion(in)
		if err != nil {
			t.Fatal(err)
		}
		vs[i] = v
	}
	sort.Sort(Versions(vs))
	got := make([]string, len(vs))
	for i, v := range vs {
		got[i] = v.String()
	}
	if diff := cmp.Diff(tc.Want, got); diff != "" {
		t.Error(diff)
	}
}

func TestVersionOrdering(t *testing.T) {
	tt := []orderTestcase{
		{
			Name: "PreDevPost",
			In:   []string{"0.9", "1.0", "1.0.dev1", "1.0.dev2", "1.0.post1", "1.0c1", "1.0c2", "1.1.dev1"},
			Want: []string{"0.9", "1.0.dev1", "1.0.dev2", "1.0rc1", "1.0rc2", "1.0", "1.0.post1", "1.1.dev1"},
		},
		{
			Name: "Epoch",
			In:   []string{"1!1.0", "1!1.1", "1!2.0", "2013.10", "2014.04"},
			Want: []string{"2013.10", "2014.4", "1!1.0", "1!1.1", "1!2.0"},
		},
		{
			Name: "Local",
			// PEP-440's local-version comparison sorts numeric segments
			// as greater than alphabetic ones, so "+abc" ranks below any
			// numeric local segment.
			In:   []string{"1.0+2", "1.0+1", "1.0", "1.0+abc"},
			Want: []string{"1.0", "1.0+abc", "1.0+1", "1.0+2"},
		},
	}
	for _, tc := range tt {
		t.Run(tc.Name, tc.Run)
	}
}

func mustParse(t *testing.T, s string) *MatchSpec {
	t.Helper()
	ms, err := Parse(s)
	if err != nil {
		t.Fatalf("Parse(%q): %v", s, err)
	}
	return ms
}

func TestParseMatch(t *testing.T) {
	record := func(mut ...func(*condacore.PackageRecord)) *condacore.PackageRecord {
		r := &condacore.PackageRecord{
			Name:        "scipy",
			Version:     "0.11.0",
			Build:       "np17py27_0",
			BuildNumber: 0,
			Channel:     condacore.Channel{Name: "defaults"},
			Subdir:      condacore.SubdirLinux64,
		}
		for _, m := range mut {
			m(r)
		}
		return r
	}

	tt := []struct {
		Name   string
		Spec   string
		Record *condacore.PackageRecord
		Want   bool
	}{
		{Name: "NameOnly", Spec: "scipy", Record: record(), Want: true},
		{Name: "WrongName", Spec: "numpy", Record: record(), Want: false},
		{Name: "ExactVersion", Spec: "scipy==0.11.0", Record: record(), Want: true},
		{Name: "Wildcard", Spec: "scipy 0.11.*", Record: record(), Want: true},
		{Name: "WildcardMiss", Spec: "scipy 0.12.*", Record: record(), Want: false},
		{Name: "Fuzzy", Spec: "scipy=0.11", Record: record(), Want: true},
		{Name: "CompatibleRelease", Spec: "scipy ~=0.11.0", Record: record(), Want: true},
		{Name: "CompatibleReleaseMiss", Spec: "scipy ~=0.12.0", Record: record(), Want: false},
		{Name: "BuildGlob", Spec: "scipy * np17*", Record: record(), Want: true},
		{
			Name:   "ChannelMatch",
			Spec:   "defaults::scipy",
			Record: record(),
			Want:   true,
		},
		{
			Name:   "ChannelMiss",
			Spec:   "conda-forge::scipy",
			Record: record(),
			Want:   false,
		},
		{
			Name:   "BracketBuildNumber",
			Spec:   "scipy[build_number=0]",
			Record: record(),
			Want:   true,
		},
		{
			Name: "TrackFeatures",
			Spec: "scipy[track_features=mkl]",
			Record: record(func(r *condacore.PackageRecord) {
				r.TrackFeatures = []string{"mkl", "nomkl"}
			}),
			Want: true,
		},
		{
			Name: "TrackFeaturesMiss",
			Spec: "scipy[track_features=mkl]",
			Record: record(func(r *condacore.PackageRecord) {
				r.TrackFeatures = []string{"nomkl"}
			}),
			Want: false,
		},
	}
	for _, tc := range tt {
		t.Run(tc.Name, func(t *testing.T) {
			ms := mustParse(t, tc.Spec)
			if got := Match(ms, tc.Record); got != tc.Want {
				t.Errorf("Match(%q, %v) = %t, want %t", tc.Spec, tc.Record.Version, got, tc.Want)
			}
		})
	}
}

func TestRenderRoundTrip(t *testing.T) {
	tt := []string{
		"scipy",
		"scipy==0.11.0",
		"defaults::scipy",
		"defaults/linux-64::scipy ==0.11.0 np17py27_0",
	}
	for _, s := range tt {
		t.Run(s, func(t *testing.T) {
			ms := mustParse(t, s)
			rendered := ms.Render()
			ms2 := mustParse(t, rendered)
			if diff := cmp.Diff(ms, ms2, cmpopts.IgnoreUnexported(MatchSpec{}, Version{})); diff != "" {
				t.Errorf("round-trip mismatch for %q -> %q:\n%s", s, rendered, diff)
			}
		})
	}
}

func TestMerge(t *testing.T) {
	a := mustParse(t, "scipy>=0.10.0")
	b := mustParse(t, "defaults::scipy<0.12.0")
	merged, err := Merge(a, b)
	if err != nil {
		t.Fatal(err)
	}
	if merged.Channel != "defaults" {
		t.Errorf("merged channel = %q, want %q (channel-carrying spec should win)", merged.Channel, "defaults")
	}
	r := &condacore.PackageRecord{Name: "scipy", Version: "0.11.0", Channel: condacore.Channel{Name: "defaults"}}
	if !Match(merged, r) {
		t.Errorf("merged spec should match 0.11.0")
	}
	outOfRange := &condacore.PackageRecord{Name: "scipy", Version: "0.9.0", Channel: condacore.Channel{Name: "defaults"}}
	if Match(merged, outOfRange) {
		t.Errorf("merged spec should not match 0.9.0")
	}

	conflicting := mustParse(t, "numpy")
	if _, err := Merge(a, conflicting); err == nil {
		t.Errorf("Merge of mismatched names should conflict")
	}
}
