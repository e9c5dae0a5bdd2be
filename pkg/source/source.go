// Package source owns the text of files under rebaseline, the mapping
// between recorded line/column coordinates and byte offsets, and the live
// offsets that keep those byte positions valid while the text is edited.
package source

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"sync"
)

// File is the in-memory working copy of one source file. All edits within a
// run go through Replace so that every registered live offset is rebased in
// step with the text. A File is obtained from a Cache and shared for the
// duration of the run; edits to one File must be issued sequentially.
type File struct {
	path string
	mode fs.FileMode

	mu      sync.Mutex
	text    []byte
	dirty   bool
	fp      string
	fpValid bool

	// lineStarts indexes the original text and is never rebuilt. Recorded
	// coordinates always refer to the text as it was read; everything that
	// must survive edits is expressed as a live offset instead. origLen
	// bounds the last line of that original text.
	lineStarts []int
	origLen    int

	// offsets is the arena of live offset cells. Offset handles hold indices
	// into this slice, never raw pointers, so Replace can rebase the whole
	// arena in one pass.
	offsets []int
}

// NewFile builds a File around text that did not come from disk. Used by
// tests and by callers that already hold the content.
func NewFile(path string, text []byte) *File {
	return &File{
		path:       path,
		mode:       0o644,
		text:       append([]byte(nil), text...),
		lineStarts: buildLineStarts(text),
		origLen:    len(text),
	}
}

func buildLineStarts(text []byte) []int {
	starts := []int{0}
	for i, b := range text {
		if b == '\n' {
			starts = append(starts, i+1)
		}
	}
	return starts
}

// Path returns the path the file was loaded from.
func (f *File) Path() string { return f.path }

// Text returns the current text. The returned slice is a copy.
func (f *File) Text() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]byte(nil), f.text...)
}

// Len returns the current text length in bytes.
func (f *File) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.text)
}

// Dirty reports whether the text differs from the last persisted state.
func (f *File) Dirty() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dirty
}

// PositionToOffset maps a 0-based line/column in the original text to a byte
// offset. The line table is built once at load time and never rebuilt;
// positions recorded before any edit remain meaningful only through the live
// offsets registered against them.
func (f *File) PositionToOffset(line, column int) (int, error) {
	if line < 0 || column < 0 || line >= len(f.lineStarts) {
		return 0, fmt.Errorf("%s: position %d:%d out of range", f.path, line, column)
	}
	off := f.lineStarts[line] + column
	limit := f.origLen
	if line+1 < len(f.lineStarts) {
		// The line's own newline is the last addressable column; the next
		// line's start belongs to the next line.
		limit = f.lineStarts[line+1] - 1
	}
	if off > limit {
		return 0, fmt.Errorf("%s: column %d past end of line %d", f.path, column, line)
	}
	return off, nil
}

// OffsetToPosition maps a byte offset in the original text back to a 0-based
// line/column pair. Inverse of PositionToOffset for in-range positions.
func (f *File) OffsetToPosition(offset int) (line, column int) {
	line = sort.Search(len(f.lineStarts), func(i int) bool {
		return f.lineStarts[i] > offset
	}) - 1
	return line, offset - f.lineStarts[line]
}

// RegisterLiveOffset returns a handle to a tracked byte offset. The handle
// stays valid across Replace calls on this file: offsets at or past a
// replaced range slide with the edit, offsets before it are untouched.
func (f *File) RegisterLiveOffset(offset int) *Offset {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.offsets = append(f.offsets, offset)
	return &Offset{file: f, idx: len(f.offsets) - 1}
}

// Replace splices text into [from, to). Every live offset registered against
// the file is rebased: values >= to shift by the length delta, values <= from
// are untouched. A live offset strictly inside the replaced range means the
// caller issued overlapping edits; that is a fatal ordering bug surfaced as
// *OffsetConflictError with no mutation performed.
func (f *File) Replace(from, to int, text []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if from < 0 || to < from || to > len(f.text) {
		return fmt.Errorf("%s: replace range [%d,%d) out of bounds (len %d)", f.path, from, to, len(f.text))
	}
	for _, v := range f.offsets {
		if v > from && v < to {
			return &OffsetConflictError{Path: f.path, Offset: v, From: from, To: to}
		}
	}

	delta := len(text) - (to - from)
	for i, v := range f.offsets {
		if v >= to {
			f.offsets[i] = v + delta
		}
	}

	next := make([]byte, 0, len(f.text)+delta)
	next = append(next, f.text[:from]...)
	next = append(next, text...)
	next = append(next, f.text[to:]...)
	f.text = next

	f.dirty = true
	f.fpValid = false
	return nil
}

// Fingerprint returns the SHA-256 hex digest of the current text, memoized
// until the next Replace.
func (f *File) Fingerprint() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.fpValid {
		sum := sha256.Sum256(f.text)
		f.fp = hex.EncodeToString(sum[:])
		f.fpValid = true
	}
	return f.fp
}

// Save writes the current text back to disk if the file is dirty, preserving
// the original file mode, and clears the dirty flag. A clean file is a no-op.
func (f *File) Save() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.dirty {
		return nil
	}
	if err := os.WriteFile(f.path, f.text, f.mode); err != nil {
		return fmt.Errorf("save %s: %w", f.path, err)
	}
	f.dirty = false
	return nil
}

// Offset is a handle to one cell in the owning file's live offset arena.
type Offset struct {
	file *File
	idx  int
}

// Value returns the current byte offset, reflecting every edit applied to
// the owning file since registration.
func (o *Offset) Value() int {
	o.file.mu.Lock()
	defer o.file.mu.Unlock()
	return o.file.offsets[o.idx]
}

// File returns the file the offset is registered against.
func (o *Offset) File() *File { return o.file }

// OffsetConflictError reports a live offset caught strictly inside a replaced
// range. It indicates two edits with overlapping ranges were issued, which
// the apply ordering is supposed to make impossible.
type OffsetConflictError struct {
	Path     string
	Offset   int
	From, To int
}

func (e *OffsetConflictError) Error() string {
	return fmt.Sprintf("%s: live offset %d inside replaced range [%d,%d)", e.Path, e.Offset, e.From, e.To)
}
