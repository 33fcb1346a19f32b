package matchspec

import (
	"fmt"
	"strings"
)

type op int

const (
	_ op = iota

	opMatch     // ==
	opExclusion // !=
	opLTE       // <=
	opGTE       // >=
	opLT        // <
	opGT        // >
	opFuzzy     // =
	opWildcard  // =* (internal: V is a prefix, no trailing operator rendered)
)

// criterion is one version constraint: an operator paired with the version
// (or version prefix, for wildcards) it compares against.
type criterion struct {
	V      Version
	Op     op
	Prefix string // raw dotted prefix text, used only by opWildcard
}

func (c *criterion) match(v *Version) bool {
	switch c.Op {
	case opMatch:
		return v.Compare(&c.V) == 0
	case opExclusion:
		return v.Compare(&c.V) != 0
	case opLTE:
		return v.Compare(&c.V) != 1
	case opGTE:
		return v.Compare(&c.V) != -1
	case opLT:
		return v.Compare(&c.V) == -1
	case opGT:
		return v.Compare(&c.V) == 1
	case opFuzzy:
		// "=X.Y" matches any version whose release segments begin with
		// X.Y — conda's "fuzzy" single-equals operator. Matched on
		// release-segment boundaries, not raw string prefix, so "=1.7"
		// doesn't match "1.70".
		return releasePrefixMatch(v, &c.V)
	case opWildcard:
		return releasePrefixMatch(v, &c.V)
	default:
		panic("matchspec: unhandled operator")
	}
}

// releasePrefixMatch reports whether v's release segments begin with
// prefix's release segments, epoch included, at segment boundaries: "1.7"
// matches "1.7", "1.7.0", and "1.7.3", but not "1.70".
func releasePrefixMatch(v, prefix *Version) bool {
	if v.Epoch != prefix.Epoch {
		return false
	}
	if len(v.Release) < len(prefix.Release) {
		return false
	}
	for i, p := range prefix.Release {
		if v.Release[i] != p {
			return false
		}
	}
	return true
}

func (o op) String() string {
	switch o {
	case opMatch:
		return "=="
	case opExclusion:
		return "!="
	case opLTE:
		return "<="
	case opGTE:
		return ">="
	case opLT:
		return "<"
	case opGT:
		return ">"
	case opFuzzy:
		return "="
	default:
		return ""
	}
}

// versionRange is a conjunction of criteria, one comma-separated AND group of
// a MatchSpec's version field; a full field may additionally be a
// pipe-separated disjunction of versionRanges (see [parseVersionField]).
type versionRange []criterion

func (r versionRange) String() string {
	var b strings.Builder
	for i, c := range r {
		if i != 0 {
			b.WriteByte(',')
		}
		switch c.Op {
		case opWildcard:
			b.WriteString(c.Prefix)
			b.WriteString(".*")
		default:
			b.WriteString(c.Op.String())
			b.WriteString(c.V.String())
		}
	}
	return b.String()
}

func (r versionRange) match(v *Version) bool {
	for _, c := range r {
		if !c.match(v) {
			return false
		}
	}
	return true
}

// versionField is the full value of a MatchSpec's version position: a
// pipe-separated disjunction of comma-separated conjunctions.
type versionField []versionRange

func (f versionField) match(v *Version) bool {
	if len(f) == 0 {
		return true
	}
	for _, r := range f {
		if r.match(v) {
			return true
		}
	}
	return false
}

func (f versionField) String() string {
	parts := make([]string, len(f))
	for i, r := range f {
		parts[i] = r.String()
	}
	return strings.Join(parts, "|")
}

// parseVersionField parses the version portion of a MatchSpec: bare version
// strings are treated as an exact-match fuzzy constraint ("1.7" behaves like
// "=1.7"), `.*`/`*` are wildcard suffixes, `~=` expands to a compatible
// release range, and `,`/`|` compose conjunctions/disjunctions.
func parseVersionField(s string) (versionField, error) {
	s = strings.Map(stripSpace, s)
	if s == "" || s == "*" {
		return nil, nil
	}
	var field versionField
	for _, alt := range strings.Split(s, "|") {
		r, err := parseVersionRange(alt)
		if err != nil {
			return nil, err
		}
		field = append(field, r)
	}
	return field, nil
}

func parseVersionRange(s string) (versionRange, error) {
	const opChars = `~=!<>`
	var ret versionRange
	for _, clause := range strings.Split(s, ",") {
		clause = strings.TrimSpace(clause)
		if clause == "" {
			continue
		}
		if strings.HasSuffix(clause, ".*") || strings.HasSuffix(clause, "*") {
			body := strings.TrimSuffix(strings.TrimSuffix(clause, "*"), ".")
			i := strings.LastIndexAny(body, opChars) + 1
			prefix := body[i:]
			switch body[:i] {
			case "", "==":
				var pv Version
				if prefix != "" {
					var err error
					if pv, err = ParseVersion(prefix); err != nil {
						return nil, err
					}
				}
				ret = append(ret, criterion{Op: opWildcard, Prefix: prefix, V: pv})
			default:
				return nil, fmt.Errorf("matchspec: wildcard not supported with operator %q", body[:i])
			}
			continue
		}
		i := strings.LastIndexAny(clause, opChars) + 1
		o := clause[:i]
		vs := clause[i:]
		if vs == "" {
			return nil, fmt.Errorf("matchspec: empty version in clause %q", clause)
		}
		v, err := ParseVersion(vs)
		if err != nil {
			return nil, err
		}
		switch o {
		case "":
			ret = append(ret, criterion{Op: opFuzzy, V: v})
		case "==":
			ret = append(ret, criterion{Op: opMatch, V: v})
		case "=":
			ret = append(ret, criterion{Op: opFuzzy, V: v})
		case "!=":
			ret = append(ret, criterion{Op: opExclusion, V: v})
		case "<=":
			ret = append(ret, criterion{Op: opLTE, V: v})
		case ">=":
			ret = append(ret, criterion{Op: opGTE, V: v})
		case "<":
			ret = append(ret, criterion{Op: opLT, V: v})
		case ">":
			ret = append(ret, criterion{Op: opGT, V: v})
		case "~=":
			if len(v.Release) < 2 {
				return nil, fmt.Errorf("matchspec: ~= requires at least two release segments, got %q", vs)
			}
			upper := Version{Epoch: v.Epoch, Release: append([]int(nil), v.Release[:len(v.Release)-1]...)}
			upper.Release[len(upper.Release)-1]++
			ret = append(ret,
				criterion{Op: opGTE, V: v},
				criterion{Op: opLT, V: upper},
			)
		default:
			return nil, fmt.Errorf("matchspec: unknown version operator %q", o)
		}
	}
	return ret, nil
}

// intersectVersionFields computes the version field whose match set is the
// intersection of a's and b's: the cross product of their disjunction
// branches, each branch the concatenation (AND) of the two source branches.
// An empty field is the unconstrained identity.
func intersectVersionFields(a, b versionField) versionField {
	switch {
	case len(a) == 0:
		return b
	case len(b) == 0:
		return a
	}
	out := make(versionField, 0, len(a)*len(b))
	for _, ra := range a {
		for _, rb := range b {
			combined := make(versionRange, 0, len(ra)+len(rb))
			combined = append(combined, ra...)
			combined = append(combined, rb...)
			out = append(out, combined)
		}
	}
	return out
}

func stripSpace(r rune) rune {
	if r == ' ' || r == '\t' {
		return -1
	}
	return r
}
