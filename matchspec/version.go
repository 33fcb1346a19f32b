// Package matchspec implements conda's MatchSpec query language: parsing,
// normalization, rendering, and evaluation of package constraints against
// [condacore.PackageRecord] values. The version-comparison engine is a
// generalization of PEP-440 ordering extended with conda's local-segment and
// fuzzy-match rules.
package matchspec

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// versionPattern is the PEP-440-derived grammar, as documented at
// https://www.python.org/dev/peps/pep-0440/#id81, extended with a local
// segment that conda versions (unlike plain PEP-440) also use for ordering
// rather than discarding.
var versionPattern = regexp.MustCompile(
	`v?` +
		`(?:` +
		`(?:(?P<epoch>[0-9]+)!)?` + // epoch
		`(?P<release>[0-9]+(?:\.[0-9]+)*)` + // release segment
		`(?P<pre>[-_.]?(?P<pre_l>(a|b|c|rc|alpha|beta|pre|preview))[-_.]?(?P<pre_n>[0-9]+)?)?` +
		`(?P<post>(?:-(?P<post_n1>[0-9]+))|(?:[-_.]?(?P<post_l>post|rev|r)[-_.]?(?P<post_n2>[0-9]+)?))?` +
		`(?P<dev>[-_.]?(?P<dev_l>dev)[-_.]?(?P<dev_n>[0-9]+)?)?` +
		`)` +
		`(?:\+(?P<local>[a-z0-9]+(?:[-_.][a-z0-9]+)*))?`,
)

// Version is a parsed conda/PEP-440-like version string.
//
// Unlike bare PEP-440, the local segment is retained and used as the final
// tiebreaker in Compare, matching conda's documented behavior for `+`
// suffixed build metadata.
type Version struct {
	Epoch   int
	Release []int
	Pre     struct {
		Label string
		N     int
	}
	Post  int
	Dev    int
	Local []segment
	raw   string
}

// segment is one dot-delimited run of the local version, split further into
// alternating digit/non-digit runs for comparison.
type segment struct {
	text   string
	number int
	isNum  bool
}

// ParseVersion parses a conda version string.
func ParseVersion(s string) (Version, error) {
	var v Version
	v.raw = s
	local := s
	if i := strings.IndexByte(s, '+'); i >= 0 {
		local = s[:i]
	}
	if !versionPattern.MatchString(local) {
		return v, fmt.Errorf("matchspec: invalid version %q", s)
	}
	ms := versionPattern.FindStringSubmatch(local)
	var err error
	for i, n := range versionPattern.SubexpNames() {
		if ms[i] == "" {
			continue
		}
		switch n {
		case "epoch":
			if v.Epoch, err = strconv.Atoi(ms[i]); err != nil {
				return v, err
			}
		case "release":
			parts := strings.Split(ms[i], ".")
			v.Release = make([]int, len(parts))
			for j, p := range parts {
				if v.Release[j], err = strconv.Atoi(p); err != nil {
					return v, err
				}
			}
		case "pre_l":
			switch ms[i] {
			case "a", "alpha":
				v.Pre.Label = "a"
			case "b", "beta":
				v.Pre.Label = "b"
			case "rc", "c", "pre", "preview":
				v.Pre.Label = "rc"
			default:
				return v, fmt.Errorf("matchspec: unknown pre-release label %q", ms[i])
			}
		case "pre_n":
			if v.Pre.N, err = strconv.Atoi(ms[i]); err != nil {
				return v, err
			}
		case "post_n1", "post_n2":
			if v.Post, err = strconv.Atoi(ms[i]); err != nil {
				return v, err
			}
		case "dev_n":
			if v.Dev, err = strconv.Atoi(ms[i]); err != nil {
				return v, err
			}
		}
	}
	if i := strings.IndexByte(s, '+'); i >= 0 {
		v.Local = splitSegments(s[i+1:])
	}
	return v, nil
}

// splitSegments breaks a local/build segment into dot-delimited runs, each
// further split into alternating digit/non-digit chunks per the
// version-comparison algorithm.
func splitSegments(s string) []segment {
	var out []segment
	for _, dotPart := range strings.Split(s, ".") {
		for _, part := range splitRuns(dotPart) {
			if n, err := strconv.Atoi(part); err == nil {
				out = append(out, segment{number: n, isNum: true})
			} else {
				out = append(out, segment{text: part})
			}
		}
	}
	return out
}

func splitRuns(s string) []string {
	var runs []string
	var cur strings.Builder
	var curIsDigit bool
	for i, r := range s {
		isDigit := r >= '0' && r <= '9'
		if i > 0 && isDigit != curIsDigit {
			runs = append(runs, cur.String())
			cur.Reset()
		}
		cur.WriteRune(r)
		curIsDigit = isDigit
	}
	if cur.Len() > 0 {
		runs = append(runs, cur.String())
	}
	return runs
}

// String renders the canonical form of v.
func (v *Version) String() string {
	var b strings.Builder
	if v.Epoch != 0 {
		fmt.Fprintf(&b, "%d!", v.Epoch)
	}
	for i, n := range v.Release {
		if i != 0 {
			b.WriteByte('.')
		}
		b.WriteString(strconv.Itoa(n))
	}
	if v.Pre.Label != "" {
		b.WriteString(v.Pre.Label)
		b.WriteString(strconv.Itoa(v.Pre.N))
	}
	if v.Post != 0 {
		fmt.Fprintf(&b, ".post%d", v.Post)
	}
	if v.Dev != 0 {
		fmt.Fprintf(&b, ".dev%d", v.Dev)
	}
	if len(v.Local) > 0 {
		b.WriteByte('+')
		for i, seg := range v.Local {
			if i != 0 {
				b.WriteByte('.')
			}
			if seg.isNum {
				b.WriteString(strconv.Itoa(seg.number))
			} else {
				b.WriteString(seg.text)
			}
		}
	}
	return b.String()
}

// preRank orders the normalized pre-release labels: "a" < "b" < "rc" < ""
// (final). ParseVersion folds "alpha" into "a", "beta" into "b", and "c",
// "pre" and "preview" into "rc", so the labels within each of those groups
// rank the same. A dev release with no pre/post of its own ranks below all
// of them (see preOrd); post releases are ordered by the Post field.
func preRank(label string) int {
	switch label {
	case "a":
		return -3
	case "b":
		return -2
	case "rc":
		return -1
	default:
		return 0
	}
}

// Compare returns -1, 0, or +1 as a is less than, equal to, or greater than
// b. Epochs dominate; release segments compare element-wise with missing
// trailing elements treated as 0; pre/post/dev follow PEP-440 ordering;
// local segments are compared only when everything else is equal.
func (a *Version) Compare(b *Version) int {
	if a.Epoch != b.Epoch {
		return cmpInt(a.Epoch, b.Epoch)
	}
	n := len(a.Release)
	if len(b.Release) > n {
		n = len(b.Release)
	}
	for i := 0; i < n; i++ {
		var av, bv int
		if i < len(a.Release) {
			av = a.Release[i]
		}
		if i < len(b.Release) {
			bv = b.Release[i]
		}
		if av != bv {
			return cmpInt(av, bv)
		}
	}
	// A dev release with no pre/post sorts before the final release; promote
	// it into the pre-release slot so "1.0.dev1" < "1.0".
	ar, br := a.preOrd(), b.preOrd()
	if ar != br {
		return cmpInt(ar, br)
	}
	if a.Pre.Label == b.Pre.Label && a.Pre.N != b.Pre.N {
		return cmpInt(a.Pre.N, b.Pre.N)
	}
	if a.Post != b.Post {
		return cmpInt(a.Post, b.Post)
	}
	if a.Dev != b.Dev {
		// A present dev component always sorts below the corresponding
		// dev-less version in the same pre/post family; among two present
		// dev numbers, the larger (later) one still sorts higher.
		switch {
		case a.Dev == 0:
			return 1
		case b.Dev == 0:
			return -1
		}
		return cmpInt(a.Dev, b.Dev)
	}
	return compareLocal(a.Local, b.Local)
}

// preOrd returns a single ordinal combining the pre-release label and
// whether a dev release (with no pre/post of its own) is present, so that
// "1.0.dev1" sorts below every labeled pre-release of "1.0" and "1.0" itself.
func (v *Version) preOrd() int {
	r := preRank(v.Pre.Label)
	if v.Dev != 0 && v.Pre.Label == "" && v.Post == 0 {
		return -4
	}
	return r
}

func compareLocal(a, b []segment) int {
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		switch {
		case i >= len(a):
			return -1 // shorter local version sorts lower
		case i >= len(b):
			return 1
		}
		as, bs := a[i], b[i]
		switch {
		case as.isNum && bs.isNum:
			if as.number != bs.number {
				return cmpInt(as.number, bs.number)
			}
		case as.isNum != bs.isNum:
			if as.isNum {
				return 1 // numeric segments sort after alphabetic ones
			}
			return -1
		default:
			if as.text != bs.text {
				return strings.Compare(as.text, bs.text)
			}
		}
	}
	return 0
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Versions implements sort.Interface over a slice of Version.
type Versions []Version

func (vs Versions) Len() int           { return len(vs) }
func (vs Versions) Less(i, j int) bool { return vs[i].Compare(&vs[j]) == -1 }
func (vs Versions) Swap(i, j int)      { vs[i], vs[j] = vs[j], vs[i] }
