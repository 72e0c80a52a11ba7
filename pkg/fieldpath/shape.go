package fieldpath

import "fmt"

// Kind describes what a node in the value tree holds.
type Kind int

const (
	KindUnknown Kind = iota
	KindLeaf
	KindObject
	KindArray
)

func (k Kind) String() string {
	switch k {
	case KindLeaf:
		return "leaf"
	case KindObject:
		return "object"
	case KindArray:
		return "array"
	default:
		return "unknown"
	}
}

// ShapeError reports a path that would reinterpret an existing node.
type ShapeError struct {
	Path     string
	Node     string
	Existing Kind
	Wanted   Kind
}

func (e *ShapeError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("fieldpath: %q treats %s %q as %s", e.Path, e.Existing, e.Node, e.Wanted)
}

// Shape records the kind of every node implied by the registered paths so
// conflicting registrations can be rejected. The zero value is not usable;
// call NewShape.
type Shape struct {
	nodes map[string]Kind
	refs  map[string]int
}

// NewShape returns an empty shape.
func NewShape() *Shape {
	return &Shape{
		nodes: make(map[string]Kind),
		refs:  make(map[string]int),
	}
}

// Check verifies that p can be added as a node of the given kind without
// changing the meaning of existing nodes. It does not modify the shape.
func (s *Shape) Check(p Path, kind Kind) error {
	_, err := s.plan(p, kind)
	return err
}

// Add records p (and its implied ancestors) in the shape.
func (s *Shape) Add(p Path, kind Kind) error {
	planned, err := s.plan(p, kind)
	if err != nil {
		return err
	}
	for key, k := range planned {
		s.nodes[key] = k
		s.refs[key]++
	}
	return nil
}

// Remove drops one reference to p and its ancestors. Nodes with no remaining
// references are forgotten.
func (s *Shape) Remove(p Path) {
	keys := make([]string, 0, p.Len())
	for _, prefix := range p.Prefixes() {
		keys = append(keys, prefix.String())
	}
	keys = append(keys, p.String())
	for _, key := range keys {
		if _, ok := s.refs[key]; !ok {
			continue
		}
		s.refs[key]--
		if s.refs[key] <= 0 {
			delete(s.refs, key)
			delete(s.nodes, key)
		}
	}
}

// Kind returns the recorded kind for the dotted key.
func (s *Shape) Kind(key string) Kind {
	return s.nodes[key]
}

func (s *Shape) plan(p Path, kind Kind) (map[string]Kind, error) {
	if p.IsZero() {
		return nil, &Error{Path: "", Reason: "path is empty"}
	}
	planned := make(map[string]Kind, p.Len())
	segments := p.segments
	for i := 0; i < len(segments); i++ {
		key := Path{segments: segments[:i+1]}.String()
		want := kind
		if i < len(segments)-1 {
			want = KindObject
			if _, ok := IsIndex(segments[i+1]); ok {
				want = KindArray
			}
		}
		if existing, ok := s.nodes[key]; ok && existing != want {
			return nil, &ShapeError{Path: p.String(), Node: key, Existing: existing, Wanted: want}
		}
		planned[key] = want
	}
	return planned, nil
}
