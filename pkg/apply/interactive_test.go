package apply

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"restitch/pkg/request"
	"restitch/pkg/source"
)

// scriptConfirmer answers proposals from a fixed script and records what it
// was shown.
type scriptConfirmer struct {
	answers   []bool
	proposals []Proposal
}

func (s *scriptConfirmer) Confirm(ctx context.Context, p Proposal) (bool, error) {
	s.proposals = append(s.proposals, p)
	if len(s.answers) == 0 {
		return false, nil
	}
	answer := s.answers[0]
	s.answers = s.answers[1:]
	return answer, nil
}

func TestInteractiveAcceptAndDecline(t *testing.T) {
	fx := newFixture(t)
	text := "expect(1).toBe(2);\nexpect(3).toBe(4);\n"
	path := fx.writeSource(t, "review.test.js", text)

	fx.recordInline(t, path, 1, 11, "toBe", "1")
	fx.recordInline(t, path, 2, 11, "toBe", "3")
	if err := fx.store.Save(); err != nil {
		t.Fatal(err)
	}

	confirm := &scriptConfirmer{answers: []bool{true, false}}
	if err := fx.orch.Interactive(context.Background(), confirm); err != nil {
		t.Fatalf("Interactive failed: %v", err)
	}

	if got, want := readText(t, path), "expect(1).toBe(1);\nexpect(3).toBe(4);\n"; got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
	if len(confirm.proposals) != 2 {
		t.Fatalf("presented %d proposals, want 2", len(confirm.proposals))
	}
	if !strings.HasSuffix(confirm.proposals[0].Site, ":1") {
		t.Errorf("first proposal site = %q, want line 1", confirm.proposals[0].Site)
	}

	// Declined request stays pending, and the shrunk store was persisted
	// before the accepted edit touched the file.
	if fx.store.Len() != 1 {
		t.Fatalf("store retains %d requests, want 1", fx.store.Len())
	}
	reloaded, err := request.Load(filepath.Join(fx.dir, "requests.json"))
	if err != nil {
		t.Fatal(err)
	}
	if reloaded.Len() != 1 {
		t.Errorf("persisted store has %d requests, want 1", reloaded.Len())
	}
	if reloaded.Requests()[0].Line != 2 {
		t.Errorf("persisted request line = %d, want the declined line 2", reloaded.Requests()[0].Line)
	}
}

func TestInteractiveLaterOffsetsSurviveEarlierEdit(t *testing.T) {
	// Accepting an edit early in the file must not strand the live offsets
	// of requests later in the same file: the replacement value is longer
	// than the original literal, so everything after it shifts.
	fx := newFixture(t)
	text := "expect(1).toBe(2);\nexpect(3).toBe(4);\n"
	path := fx.writeSource(t, "shift.test.js", text)

	fx.recordInline(t, path, 1, 11, "toBe", "12345")
	fx.recordInline(t, path, 2, 11, "toBe", "67890")

	confirm := &scriptConfirmer{answers: []bool{true, true}}
	if err := fx.orch.Interactive(context.Background(), confirm); err != nil {
		t.Fatalf("Interactive failed: %v", err)
	}
	want := "expect(1).toBe(12345);\nexpect(3).toBe(67890);\n"
	if got := readText(t, path); got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
	if fx.store.Len() != 0 {
		t.Errorf("store retains %d requests", fx.store.Len())
	}
}

func TestInteractivePersistsStaleDrops(t *testing.T) {
	fx := newFixture(t)
	path := fx.writeSource(t, "stale.test.js", "expect(1).toBe(2);\n")
	fx.recordInline(t, path, 1, 11, "toBe", "1")
	if err := fx.store.Save(); err != nil {
		t.Fatal(err)
	}

	// The file changes between recording and the interactive run, which
	// reads it through a fresh cache.
	fx.writeSource(t, "stale.test.js", "// edited\nexpect(1).toBe(2);\n")
	orch := *fx.orch
	orch.Cache = source.NewCache()

	confirm := &scriptConfirmer{}
	if err := orch.Interactive(context.Background(), confirm); err != nil {
		t.Fatalf("Interactive failed: %v", err)
	}
	if len(confirm.proposals) != 0 {
		t.Fatalf("stale request was proposed: %+v", confirm.proposals)
	}
	// Nothing was accepted, yet the drop reached the on-disk store.
	reloaded, err := request.Load(filepath.Join(fx.dir, "requests.json"))
	if err != nil {
		t.Fatal(err)
	}
	if reloaded.Len() != 0 {
		t.Errorf("persisted store has %d requests, want 0", reloaded.Len())
	}
}

func TestInteractiveMissIsInternalError(t *testing.T) {
	fx := newFixture(t)
	path := fx.writeSource(t, "miss.test.js", "expect(1).toBe(2);\nconsole.log(3);\n")

	// Line 2 has no matcher call at all; interactive mode treats the miss
	// as a violated invariant, not routine staleness.
	fx.recordInline(t, path, 2, 1, "toBe", "1")

	err := fx.orch.Interactive(context.Background(), &scriptConfirmer{answers: []bool{true}})
	if !errors.Is(err, ErrInternal) {
		t.Fatalf("Interactive = %v, want ErrInternal", err)
	}
	if !IsInternal(err) {
		t.Error("IsInternal = false for internal error")
	}
}

func TestInteractivePreviewShowsChange(t *testing.T) {
	fx := newFixture(t)
	path := fx.writeSource(t, "preview.test.js", "expect(1).toBe(2);\n")
	fx.recordInline(t, path, 1, 11, "toBe", "1")

	confirm := &scriptConfirmer{answers: []bool{false}}
	if err := fx.orch.Interactive(context.Background(), confirm); err != nil {
		t.Fatalf("Interactive failed: %v", err)
	}
	if len(confirm.proposals) != 1 {
		t.Fatalf("presented %d proposals, want 1", len(confirm.proposals))
	}
	preview := confirm.proposals[0].Preview
	if !strings.Contains(preview, "toBe(") {
		t.Errorf("preview %q does not show the call site", preview)
	}
}
