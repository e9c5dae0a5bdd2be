// Package apply reconciles pending rebaseline requests against freshly
// extracted matchers and rewrites source files or reference artifacts.
package apply

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"restitch/pkg/artifact"
	"restitch/pkg/matcher"
	"restitch/pkg/request"
	"restitch/pkg/source"
)

// ErrInternal marks violated engine invariants: a matcher lookup that the
// interactive pre-filtering should have made impossible, or a live offset
// caught inside a replaced range. Never swallowed.
var ErrInternal = errors.New("internal invariant violated")

// Orchestrator wires the shared collaborators for one apply run.
type Orchestrator struct {
	Cache    *source.Cache
	Store    *request.Store
	Registry *matcher.Registry
	Policy   matcher.Policy
	Backups  *artifact.Archive
	Log      *zap.Logger
}

// Unmatched identifies one request that could not be satisfied.
type Unmatched struct {
	Path    string
	Line    int
	Matcher string
}

// UnsatisfiedError aggregates every unmatched request of a batch run. The
// message carries one path:line per request, 1-based, which the CLI prints
// verbatim.
type UnsatisfiedError struct {
	Requests []Unmatched
}

func (e *UnsatisfiedError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d rebaseline request(s) could not be applied:", len(e.Requests))
	for _, u := range e.Requests {
		fmt.Fprintf(&b, "\n%s:%d", u.Path, u.Line)
	}
	return b.String()
}

// extract runs matcher extraction for a file with the run's registry and
// literal policy.
func (o *Orchestrator) extract(ctx context.Context, f *source.File) (*matcher.List, error) {
	return matcher.Extract(ctx, f, o.Registry, o.Policy)
}

// locate finds the matcher for a bound request and checks that its name and
// kind agree with what was recorded.
func (o *Orchestrator) locate(list *matcher.List, b *request.Bound) (matcher.Matcher, bool) {
	m, ok := list.At(b.Live.Value())
	if !ok {
		return matcher.Matcher{}, false
	}
	if m.Name != b.Matcher || m.Kind != b.Payload.Kind() {
		return matcher.Matcher{}, false
	}
	return m, true
}

// applyOne performs the edit for a located matcher. Inline payloads rewrite
// the argument range; a zero-argument call has the whole matcher call
// respliced as name(value). Artifact payloads copy the new artifact over the
// reference file and leave the source text alone.
func (o *Orchestrator) applyOne(b *request.Bound, m matcher.Matcher) error {
	switch m.Kind {
	case matcher.KindArtifact:
		if err := artifact.Apply(b.Payload.ArtifactPath, b.Payload.DestinationPath, o.Backups); err != nil {
			return err
		}
	case matcher.KindInline:
		value, err := compactJSON(b.Payload.Value)
		if err != nil {
			return fmt.Errorf("%s: payload: %w", b.Key(), err)
		}
		if m.HasArg {
			if err := b.File.Replace(m.ArgStart, m.ArgEnd, value); err != nil {
				return err
			}
		} else {
			call := append([]byte(m.Name+"("), value...)
			call = append(call, ')')
			if err := b.File.Replace(m.CallStart, m.CallEnd, call); err != nil {
				return err
			}
		}
	}
	o.Log.Debug("applied rebaseline",
		zap.String("path", b.Path),
		zap.Int("line", b.Line),
		zap.String("matcher", b.Matcher),
		zap.String("kind", m.Kind.String()))
	return nil
}

func compactJSON(raw json.RawMessage) ([]byte, error) {
	if len(raw) == 0 {
		return nil, errors.New("empty inline value")
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// groupByFile partitions bound requests per source file, preserving store
// order within each group.
func groupByFile(bound []*request.Bound) map[*source.File][]*request.Bound {
	groups := make(map[*source.File][]*request.Bound)
	for _, b := range bound {
		groups[b.File] = append(groups[b.File], b)
	}
	return groups
}

// sortDescending orders one file's requests rightmost-first. Within a file
// this order is a correctness requirement: applying from the end backwards
// means no edit ever shifts a not-yet-applied earlier range.
func sortDescending(reqs []*request.Bound) {
	sort.Slice(reqs, func(i, j int) bool {
		return reqs[i].Live.Value() > reqs[j].Live.Value()
	})
}
