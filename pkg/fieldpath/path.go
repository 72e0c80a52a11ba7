// Package fieldpath parses and manipulates the dot-delimited addresses used to
// identify fields inside a form value tree (for example "social.twitter" or
// "phNumbers.0.number"). Numeric segments address array elements.
package fieldpath

import (
	"fmt"
	"strconv"
	"strings"
)

// Error reports a malformed path.
type Error struct {
	Path   string
	Reason string
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("fieldpath: invalid path %q: %s", e.Path, e.Reason)
}

// Path is a validated, immutable list of segments.
type Path struct {
	segments []string
}

// Parse validates raw and splits it into segments. Index segments are
// canonicalised, so "phones.01" and "phones.1" name the same path.
func Parse(raw string) (Path, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Path{}, &Error{Path: raw, Reason: "path is empty"}
	}
	parts := strings.Split(trimmed, ".")
	for i, part := range parts {
		if part == "" {
			return Path{}, &Error{Path: raw, Reason: fmt.Sprintf("segment %d is empty", i)}
		}
		if strings.TrimSpace(part) != part {
			return Path{}, &Error{Path: raw, Reason: fmt.Sprintf("segment %q has surrounding whitespace", part)}
		}
		if strings.HasPrefix(part, "-") {
			if _, err := strconv.Atoi(part); err == nil {
				return Path{}, &Error{Path: raw, Reason: fmt.Sprintf("negative index %s", part)}
			}
		}
	}
	if _, ok := IsIndex(parts[0]); ok {
		return Path{}, &Error{Path: raw, Reason: "path cannot start with an index"}
	}
	for i, part := range parts {
		if idx, ok := IsIndex(part); ok {
			parts[i] = strconv.Itoa(idx)
		}
	}
	return Path{segments: parts}, nil
}

// MustParse is Parse for static paths; it panics on malformed input.
func MustParse(raw string) Path {
	p, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return p
}

// FromSegments builds a path from already split segments.
func FromSegments(segments ...string) (Path, error) {
	return Parse(strings.Join(segments, "."))
}

// String joins the segments with dots.
func (p Path) String() string {
	return strings.Join(p.segments, ".")
}

// Segments returns a copy of the path segments.
func (p Path) Segments() []string {
	return append([]string(nil), p.segments...)
}

// Len reports the number of segments.
func (p Path) Len() int {
	return len(p.segments)
}

// IsZero reports whether the path has no segments.
func (p Path) IsZero() bool {
	return len(p.segments) == 0
}

// Segment returns the i-th segment.
func (p Path) Segment(i int) string {
	if i < 0 || i >= len(p.segments) {
		return ""
	}
	return p.segments[i]
}

// Last returns the final segment.
func (p Path) Last() string {
	if len(p.segments) == 0 {
		return ""
	}
	return p.segments[len(p.segments)-1]
}

// Parent drops the final segment. The parent of a single-segment path is the
// zero Path.
func (p Path) Parent() Path {
	if len(p.segments) <= 1 {
		return Path{}
	}
	return Path{segments: append([]string(nil), p.segments[:len(p.segments)-1]...)}
}

// Prefixes returns every proper prefix of p, shortest first.
func (p Path) Prefixes() []Path {
	if len(p.segments) <= 1 {
		return nil
	}
	out := make([]Path, 0, len(p.segments)-1)
	for end := 1; end < len(p.segments); end++ {
		out = append(out, Path{segments: append([]string(nil), p.segments[:end]...)})
	}
	return out
}

// Child appends segments to p.
func (p Path) Child(segments ...string) Path {
	out := make([]string, 0, len(p.segments)+len(segments))
	out = append(out, p.segments...)
	out = append(out, segments...)
	return Path{segments: out}
}

// Index appends a numeric segment.
func (p Path) Index(i int) Path {
	return p.Child(strconv.Itoa(i))
}

// HasPrefix reports whether prefix addresses p or one of its ancestors.
func (p Path) HasPrefix(prefix Path) bool {
	if len(prefix.segments) > len(p.segments) {
		return false
	}
	for i, segment := range prefix.segments {
		if p.segments[i] != segment {
			return false
		}
	}
	return true
}

// TrimPrefix removes prefix from p. The boolean is false when prefix does not
// match.
func (p Path) TrimPrefix(prefix Path) (Path, bool) {
	if !p.HasPrefix(prefix) {
		return p, false
	}
	return Path{segments: append([]string(nil), p.segments[len(prefix.segments):]...)}, true
}

// Equal compares two paths segment by segment.
func (p Path) Equal(other Path) bool {
	if len(p.segments) != len(other.segments) {
		return false
	}
	for i := range p.segments {
		if p.segments[i] != other.segments[i] {
			return false
		}
	}
	return true
}

// IsIndex reports whether segment is a non-negative array index.
func IsIndex(segment string) (int, bool) {
	if segment == "" {
		return 0, false
	}
	for _, r := range segment {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	idx, err := strconv.Atoi(segment)
	if err != nil {
		return 0, false
	}
	return idx, true
}

// Join concatenates dotted strings, skipping empty parts.
func Join(parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.Trim(strings.TrimSpace(part), ".")
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return strings.Join(out, ".")
}
