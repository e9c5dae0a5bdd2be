// Package request records pending rebaseline instructions and persists them
// between the recording run and the apply run.
package request

import (
	"bytes"
	"encoding/json"
	"fmt"

	"restitch/pkg/matcher"
	"restitch/pkg/source"
)

// Payload carries what to apply. Exactly one shape is populated: an inline
// JSON value for inline matchers, or an artifact/destination path pair for
// artifact matchers.
type Payload struct {
	Value           json.RawMessage `json:"value,omitempty"`
	ArtifactPath    string          `json:"artifact_path,omitempty"`
	DestinationPath string          `json:"destination_path,omitempty"`
}

// UnmarshalJSON normalizes the inline value to its compact encoding. The
// store is written indented, which reformats embedded raw values; compacting
// on decode keeps the payload bytes identical across a save/load cycle.
func (p *Payload) UnmarshalJSON(data []byte) error {
	type payload Payload
	var q payload
	if err := json.Unmarshal(data, &q); err != nil {
		return err
	}
	if len(q.Value) > 0 {
		v, err := compactValue(q.Value)
		if err != nil {
			return err
		}
		q.Value = v
	}
	*p = Payload(q)
	return nil
}

func compactValue(raw json.RawMessage) (json.RawMessage, error) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Kind reports which apply behavior the payload selects.
func (p Payload) Kind() matcher.Kind {
	if p.ArtifactPath != "" || p.DestinationPath != "" {
		return matcher.KindArtifact
	}
	return matcher.KindInline
}

// Request is one recorded mismatch awaiting resolution. Line and Column are
// the 1-based coordinates reported by the test runner; Offset is the byte
// offset they resolved to against the text current at recording time.
// Fingerprint pins the file content the request was recorded against.
type Request struct {
	Matcher     string  `json:"matcher"`
	Path        string  `json:"path"`
	Line        int     `json:"line"`
	Column      int     `json:"column"`
	Offset      int     `json:"offset"`
	Fingerprint string  `json:"fingerprint"`
	Payload     Payload `json:"payload"`
}

// Key is the store key: at most one live request per file position, later
// recordings for the same position overwrite earlier ones.
func (r *Request) Key() string {
	return fmt.Sprintf("%s:%d:%d", r.Path, r.Line, r.Column)
}

// New resolves the recorded 1-based coordinates against the file's original
// text and captures its current fingerprint. An inline value is stored in
// compact form.
func New(file *source.File, line, column int, name string, payload Payload) (*Request, error) {
	off, err := file.PositionToOffset(line-1, column-1)
	if err != nil {
		return nil, err
	}
	if len(payload.Value) > 0 {
		v, err := compactValue(payload.Value)
		if err != nil {
			return nil, fmt.Errorf("%s: invalid payload value: %w", file.Path(), err)
		}
		payload.Value = v
	}
	return &Request{
		Matcher:     name,
		Path:        file.Path(),
		Line:        line,
		Column:      column,
		Offset:      off,
		Fingerprint: file.Fingerprint(),
		Payload:     payload,
	}, nil
}

// Bound is a request attached to its live source file. Live tracks the
// recorded offset across edits applied during the run.
type Bound struct {
	*Request
	File *source.File
	Live *source.Offset
}
