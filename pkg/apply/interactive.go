package apply

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
	"go.uber.org/zap"

	"restitch/pkg/matcher"
	"restitch/pkg/request"
	"restitch/pkg/source"
)

// Proposal is one edit presented for confirmation.
type Proposal struct {
	Request *request.Request
	// Site is path:line of the call site, 1-based.
	Site string
	// Preview is a rendered diff of the proposed change.
	Preview string
}

// Confirmer decides whether a proposed edit is applied. Implementations
// prompt a user; tests script the answers.
type Confirmer interface {
	Confirm(ctx context.Context, p Proposal) (bool, error)
}

// Interactive processes requests one at a time. Matchers are re-extracted
// per request because each accepted edit lands immediately; the live offsets
// of the remaining requests keep them valid. A lookup miss here is a logic
// defect, not routine staleness: requests were already filtered against the
// current file content on resolve. After every acceptance the shrunk store
// is persisted before the file is saved, so an interrupted run loses at most
// the one in-flight confirmation and re-running is always safe.
func (o *Orchestrator) Interactive(ctx context.Context, confirm Confirmer) error {
	before := o.Store.Len()
	bound, ioErrs := o.Store.Resolve(o.Cache, o.Log)
	for path, err := range ioErrs {
		o.Log.Warn("skipping unreadable file", zap.String("path", path), zap.Error(err))
	}
	// Stale requests dropped on resolve are persisted up front, so the store
	// reflects them even when every proposal is declined.
	if o.Store.Len() != before {
		if err := o.Store.Save(); err != nil {
			return err
		}
	}

	for _, b := range bound {
		list, err := o.extract(ctx, b.File)
		if err != nil {
			return err
		}
		m, ok := o.locate(list, b)
		if !ok {
			return fmt.Errorf("%w: no matcher %q at %s:%d (offset %d)",
				ErrInternal, b.Matcher, b.Path, b.Line, b.Live.Value())
		}

		accepted, err := confirm.Confirm(ctx, Proposal{
			Request: b.Request,
			Site:    fmt.Sprintf("%s:%d", b.Path, b.Line),
			Preview: o.preview(b, m),
		})
		if err != nil {
			return err
		}
		if !accepted {
			o.Log.Debug("edit declined", zap.String("site", b.Key()))
			continue
		}

		o.Store.Remove(b.Key())
		if err := o.Store.Save(); err != nil {
			return err
		}
		if err := o.applyOne(b, m); err != nil {
			return err
		}
		if err := b.File.Save(); err != nil {
			return err
		}
	}
	return nil
}

// preview renders what acceptance would change. Inline edits show a diff of
// the affected source line; artifact edits show the file replacement, since
// the source text is untouched.
func (o *Orchestrator) preview(b *request.Bound, m matcher.Matcher) string {
	if m.Kind == matcher.KindArtifact {
		return fmt.Sprintf("replace %s\n   with %s", b.Payload.DestinationPath, b.Payload.ArtifactPath)
	}

	value, err := compactJSON(b.Payload.Value)
	if err != nil {
		return fmt.Sprintf("(payload unreadable: %v)", err)
	}
	from, to := m.ArgStart, m.ArgEnd
	replacement := string(value)
	if !m.HasArg {
		from, to = m.CallStart, m.CallEnd
		replacement = m.Name + "(" + string(value) + ")"
	}

	text := b.File.Text()
	lineFrom, lineTo := lineBounds(text, from, to)
	before := string(text[lineFrom:lineTo])
	after := string(text[lineFrom:from]) + replacement + string(text[to:lineTo])

	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(before, after, false)
	return strings.TrimRight(dmp.DiffPrettyText(diffs), "\n")
}

// lineBounds widens [from, to) to whole lines of text.
func lineBounds(text []byte, from, to int) (int, int) {
	start := from
	for start > 0 && text[start-1] != '\n' {
		start--
	}
	end := to
	for end < len(text) && text[end] != '\n' {
		end++
	}
	return start, end
}

// IsInternal reports whether err is a fatal invariant violation, either a
// matcher lookup miss in interactive mode or an offset conflict during
// replacement.
func IsInternal(err error) bool {
	var conflict *source.OffsetConflictError
	return errors.Is(err, ErrInternal) || errors.As(err, &conflict)
}
