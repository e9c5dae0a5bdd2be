// Package matcher locates rewritable assertion call sites in JavaScript
// source text. Extraction is repeated from scratch on every pass; matchers
// are positions into the text at extraction time and are never persisted.
package matcher

import (
	"fmt"
	"sort"
)

// Kind selects the apply behavior for a matcher name. Inline matchers have
// their literal argument rewritten in the source text; artifact matchers
// leave the source alone and copy an output artifact over a reference file.
type Kind int

const (
	KindInline Kind = iota
	KindArtifact
)

func (k Kind) String() string {
	switch k {
	case KindInline:
		return "inline"
	case KindArtifact:
		return "artifact"
	}
	return fmt.Sprintf("unknown(%d)", int(k))
}

// Matcher is one located rewritable call. CallStart..CallEnd spans from the
// matcher name through the closing paren, which is the range spliced when no
// argument exists. ExprStart is the start of the enclosing call expression
// (the receiver chain included) and is used only for position matching.
type Matcher struct {
	Name      string
	Kind      Kind
	ExprStart int
	CallStart int
	CallEnd   int

	// Argument range, valid only when HasArg is true.
	HasArg   bool
	ArgStart int
	ArgEnd   int
}

// Registry is the fixed allow-list of matcher names and their kinds, chosen
// at startup. Lookup by name decides both extraction eligibility and apply
// behavior, so a name absent from the registry is simply never located.
type Registry struct {
	kinds map[string]Kind
}

// NewRegistry builds a registry from the inline and artifact name lists.
// A name appearing in both lists resolves to artifact.
func NewRegistry(inline, artifact []string) *Registry {
	kinds := make(map[string]Kind, len(inline)+len(artifact))
	for _, n := range inline {
		kinds[n] = KindInline
	}
	for _, n := range artifact {
		kinds[n] = KindArtifact
	}
	return &Registry{kinds: kinds}
}

// Kind reports the kind registered for name.
func (r *Registry) Kind(name string) (Kind, bool) {
	k, ok := r.kinds[name]
	return k, ok
}

// List is an extraction result, ordered by ascending CallStart.
type List struct {
	Matchers []Matcher
}

// At returns the matcher whose whole-call range starts exactly at offset.
// When no matcher starts there, the innermost matcher whose enclosing
// expression contains the offset is returned instead; recorded coordinates
// come from engine stack traces whose column conventions differ, so an exact
// name-start hit cannot be assumed.
func (l *List) At(offset int) (Matcher, bool) {
	ms := l.Matchers
	i := sort.Search(len(ms), func(i int) bool { return ms[i].CallStart >= offset })
	if i < len(ms) && ms[i].CallStart == offset {
		return ms[i], true
	}
	// A containing matcher can start after the offset: a coordinate into the
	// receiver chain precedes the matcher name itself. Scan every candidate
	// and keep the innermost containing call, the one with the greatest
	// ExprStart.
	best := -1
	for j, m := range ms {
		if m.ExprStart <= offset && offset < m.CallEnd {
			if best == -1 || m.ExprStart > ms[best].ExprStart {
				best = j
			}
		}
	}
	if best >= 0 {
		return ms[best], true
	}
	return Matcher{}, false
}

// ParseError reports source text that is not syntactically valid for the
// grammar. No edits are ever attempted against a file that fails to parse.
type ParseError struct {
	Path string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: source failed to parse", e.Path)
}
