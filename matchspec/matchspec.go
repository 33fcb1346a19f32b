package matchspec

import (
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"

	condacore "github.com/condacore/conda-core"
)

// MatchSpec is a parsed package constraint.
//
// Two specs are equal iff their normalized fields are equal; MatchSpec is
// safe to compare with go-cmp once its slice fields are sorted. Parse does
// not sort them.
type MatchSpec struct {
	Channel string // "" means unconstrained
	Subdir  condacore.Subdir
	Name    string // "*" or "" means unconstrained
	Version versionField
	Build   string // glob pattern; "" means unconstrained

	// Fields holds the bracketed key=value filters not already captured by
	// the positional Channel/Subdir/Name/Version/Build above. Keys are
	// lower-cased PackageRecord field names; values are either a scalar
	// ("==" semantics), a version field string, or a comma-joined set for
	// list fields (features, track_features).
	Fields map[string]string

	raw string
}

// ParseError reports a syntactically invalid MatchSpec string.
type ParseError struct {
	Input string
	Err   error
}

func (e *ParseError) Error() string { return fmt.Sprintf("matchspec: parse %q: %v", e.Input, e.Err) }
func (e *ParseError) Unwrap() error { return e.Err }

// Parse parses a MatchSpec string of the canonical form
// `(channel(/subdir)::)?name(version(build))?([k=v,...])?`.
func Parse(s string) (*MatchSpec, error) {
	orig := s
	ms := &MatchSpec{raw: orig}

	body, fields, err := splitBracket(s)
	if err != nil {
		return nil, &ParseError{Input: orig, Err: err}
	}
	ms.Fields = fields

	body = strings.TrimSpace(body)
	if i := strings.Index(body, "::"); i >= 0 {
		chanPart := body[:i]
		body = body[i+2:]
		if j := strings.IndexByte(chanPart, '/'); j >= 0 {
			ms.Channel = chanPart[:j]
			ms.Subdir = condacore.Subdir(chanPart[j+1:])
		} else {
			ms.Channel = chanPart
		}
	}

	name, version, build, err := splitNameVersionBuild(body)
	if err != nil {
		return nil, &ParseError{Input: orig, Err: err}
	}
	ms.Name = name
	ms.Build = build
	if version != "" {
		ms.Version, err = parseVersionField(version)
		if err != nil {
			return nil, &ParseError{Input: orig, Err: err}
		}
	}
	if v, ok := fields["version"]; ok {
		ms.Version, err = parseVersionField(v)
		if err != nil {
			return nil, &ParseError{Input: orig, Err: err}
		}
		delete(fields, "version")
	}
	if b, ok := fields["build"]; ok {
		ms.Build = b
		delete(fields, "build")
	}
	if n, ok := fields["name"]; ok {
		ms.Name = n
		delete(fields, "name")
	}
	if c, ok := fields["channel"]; ok {
		ms.Channel = c
		delete(fields, "channel")
	}
	if sd, ok := fields["subdir"]; ok {
		ms.Subdir = condacore.Subdir(sd)
		delete(fields, "subdir")
	}
	if len(fields) == 0 {
		ms.Fields = nil
	}
	return ms, nil
}

// splitBracket separates the trailing `[key=value,...]` filter block, if
// any, respecting a single level of bracket nesting and comma-separated
// key=value pairs with optionally quoted values.
func splitBracket(s string) (body string, fields map[string]string, err error) {
	s = strings.TrimSpace(s)
	if !strings.HasSuffix(s, "]") {
		return s, nil, nil
	}
	open := strings.IndexByte(s, '[')
	if open < 0 {
		return "", nil, fmt.Errorf("unbalanced ']' with no matching '['")
	}
	body = s[:open]
	inner := s[open+1 : len(s)-1]
	fields = map[string]string{}
	if strings.TrimSpace(inner) == "" {
		return body, fields, nil
	}
	for _, pair := range splitTopLevel(inner, ',') {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) != 2 {
			return "", nil, fmt.Errorf("malformed key=value filter %q", pair)
		}
		key := strings.ToLower(strings.TrimSpace(kv[0]))
		val := strings.Trim(strings.TrimSpace(kv[1]), `'"`)
		fields[key] = val
	}
	return body, fields, nil
}

// splitTopLevel splits s on sep, ignoring separators inside a single-quoted
// or double-quoted run.
func splitTopLevel(s string, sep byte) []string {
	var parts []string
	var cur strings.Builder
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			cur.WriteByte(c)
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
			cur.WriteByte(c)
		case c == sep:
			parts = append(parts, cur.String())
			cur.Reset()
		default:
			cur.WriteByte(c)
		}
	}
	parts = append(parts, cur.String())
	return parts
}

// splitNameVersionBuild parses the `name(version(build))?` portion. Three
// surface forms are accepted: whitespace-separated ("scipy 0.11.0
// np17py27_0"), an operator immediately following the name ("scipy>=0.10.0"),
// and the legacy equals-joined shorthand ("scipy=0.11.0=np17py27_0", where
// the leading "=" is itself the fuzzy-match operator).
func splitNameVersionBuild(body string) (name, version, build string, err error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return "", "", "", fmt.Errorf("empty name")
	}
	if strings.ContainsAny(body, " \t") {
		fields := strings.Fields(body)
		name = fields[0]
		if len(fields) > 1 {
			version = fields[1]
		}
		if len(fields) > 2 {
			build = fields[2]
		}
		if len(fields) > 3 {
			return "", "", "", fmt.Errorf("too many space-separated fields in %q", body)
		}
		return name, version, build, nil
	}

	const opStart = "=<>!~"
	i := strings.IndexAny(body, opStart)
	if i < 0 {
		return body, "", "", nil
	}
	name = body[:i]
	rest := body[i:]
	if strings.HasPrefix(rest, "=") && !strings.HasPrefix(rest, "==") {
		shorthand := rest[1:]
		parts := strings.SplitN(shorthand, "=", 2)
		version = "=" + parts[0]
		if len(parts) > 1 {
			build = parts[1]
		}
		return name, version, build, nil
	}
	return name, rest, "", nil
}

// Render returns the canonical string form of ms. Parsing the result yields
// a spec equal to ms, but the text is normalized rather than kept verbatim:
// for example "~=0.11.0" renders as ">=0.11.0,<0.12" and a bare "1.7" as
// "=1.7".
func (ms *MatchSpec) Render() string {
	var b strings.Builder
	if ms.Channel != "" {
		b.WriteString(ms.Channel)
		if ms.Subdir != "" {
			b.WriteByte('/')
			b.WriteString(string(ms.Subdir))
		}
		b.WriteString("::")
	}
	name := ms.Name
	if name == "" {
		name = "*"
	}
	b.WriteString(name)
	if len(ms.Version) > 0 {
		b.WriteByte(' ')
		b.WriteString(ms.Version.String())
		if ms.Build != "" {
			b.WriteByte(' ')
			b.WriteString(ms.Build)
		}
	} else if ms.Build != "" {
		b.WriteString(" *")
		b.WriteByte(' ')
		b.WriteString(ms.Build)
	}
	if len(ms.Fields) > 0 {
		keys := make([]string, 0, len(ms.Fields))
		for k := range ms.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteByte('[')
		for i, k := range keys {
			if i != 0 {
				b.WriteByte(',')
			}
			fmt.Fprintf(&b, "%s=%s", k, ms.Fields[k])
		}
		b.WriteByte(']')
	}
	return b.String()
}

func (ms *MatchSpec) String() string { return ms.Render() }

// Match reports whether record satisfies every constraint in ms. Unspecified
// fields never reject.
func Match(ms *MatchSpec, record *condacore.PackageRecord) bool {
	if ms.Name != "" && ms.Name != "*" && !globMatch(ms.Name, record.Name) {
		return false
	}
	if ms.Channel != "" && record.Channel.Name != condacore.UnknownChannel && !strings.EqualFold(ms.Channel, record.Channel.Name) {
		return false
	}
	if ms.Subdir != "" && ms.Subdir != record.Subdir {
		return false
	}
	if len(ms.Version) > 0 {
		v, err := ParseVersion(record.Version)
		if err != nil || !ms.Version.match(&v) {
			return false
		}
	}
	if ms.Build != "" && ms.Build != "*" && !globMatch(ms.Build, record.Build) {
		return false
	}
	for key, val := range ms.Fields {
		if !matchField(key, val, record) {
			return false
		}
	}
	return true
}

func matchField(key, val string, record *condacore.PackageRecord) bool {
	switch key {
	case "build_number":
		n, err := strconv.Atoi(val)
		return err == nil && record.BuildNumber == n
	case "license":
		return globMatch(val, record.License)
	case "md5":
		return strings.EqualFold(val, hex.EncodeToString(record.MD5.Checksum()))
	case "sha256":
		return strings.EqualFold(val, hex.EncodeToString(record.SHA256.Checksum()))
	case "fn":
		return globMatch(val, record.Filename(false)) || globMatch(val, record.Filename(true))
	case "url":
		return globMatch(val, record.URL)
	case "track_features":
		return hasAllOf(record.TrackFeatures, val)
	case "features":
		return hasAllOf(record.Features, val)
	case "noarch":
		return strings.EqualFold(val, string(record.Noarch))
	default:
		// Unknown bracketed keys never reject; conda treats them as
		// forward-compatible hints.
		return true
	}
}

// hasAllOf reports whether every comma-separated name in want is present in
// have (list-field set-membership).
func hasAllOf(have []string, want string) bool {
	set := make(map[string]bool, len(have))
	for _, h := range have {
		set[h] = true
	}
	for _, w := range strings.Split(want, ",") {
		if w = strings.TrimSpace(w); w != "" && !set[w] {
			return false
		}
	}
	return true
}

// globMatch implements the restricted glob conda uses for build strings and
// similar scalar fields: '*' matches any run of characters, everything else
// matches literally.
func globMatch(pattern, s string) bool {
	if !strings.ContainsRune(pattern, '*') {
		return pattern == s
	}
	parts := strings.Split(pattern, "*")
	if !strings.HasPrefix(s, parts[0]) {
		return false
	}
	s = s[len(parts[0]):]
	for _, p := range parts[1 : len(parts)-1] {
		i := strings.Index(s, p)
		if i < 0 {
			return false
		}
		s = s[i+len(p):]
	}
	return strings.HasSuffix(s, parts[len(parts)-1])
}

// Conflict reports that two MatchSpecs could not be merged: their names
// differ, they name different channels or builds, or they give different
// values for the same bracket field. Version fields are intersected without
// an emptiness check, so disjoint version ranges do not produce a Conflict.
type Conflict struct {
	A, B *MatchSpec
}

func (c *Conflict) Error() string {
	return fmt.Sprintf("matchspec: conflicting specs for %q: %q vs %q", c.A.Name, c.A.Render(), c.B.Render())
}

// Merge intersects two MatchSpecs naming the same package, producing a spec
// whose Match accepts exactly the records both would accept. A
// channel-carrying spec's Channel/Subdir take precedence over one that
// doesn't specify a channel.
func Merge(a, b *MatchSpec) (*MatchSpec, error) {
	if a.Name != b.Name && a.Name != "*" && b.Name != "*" {
		return nil, &Conflict{A: a, B: b}
	}
	out := &MatchSpec{Name: a.Name, Fields: map[string]string{}}
	if out.Name == "*" {
		out.Name = b.Name
	}

	switch {
	case a.Channel != "" && b.Channel != "" && !strings.EqualFold(a.Channel, b.Channel):
		return nil, &Conflict{A: a, B: b}
	case a.Channel != "":
		out.Channel, out.Subdir = a.Channel, a.Subdir
	default:
		out.Channel, out.Subdir = b.Channel, b.Subdir
	}

	out.Version = intersectVersionFields(a.Version, b.Version)

	switch {
	case a.Build == "":
		out.Build = b.Build
	case b.Build == "", a.Build == b.Build:
		out.Build = a.Build
	default:
		return nil, &Conflict{A: a, B: b}
	}

	for k, v := range a.Fields {
		out.Fields[k] = v
	}
	for k, v := range b.Fields {
		if existing, ok := out.Fields[k]; ok && existing != v {
			return nil, &Conflict{A: a, B: b}
		}
		out.Fields[k] = v
	}
	if len(out.Fields) == 0 {
		out.Fields = nil
	}
	return out, nil
}
