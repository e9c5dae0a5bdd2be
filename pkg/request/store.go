package request

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"restitch/pkg/source"
)

// Store is the durable ordered collection of pending requests, keyed by
// file:line:column. The on-disk form is a JSON array in key order; the
// schema is stable between the recording and apply runs of one engine
// version.
type Store struct {
	path  string
	order []string
	items map[string]*Request
}

// Load reads the store file at path. A missing file yields an empty store.
func Load(path string) (*Store, error) {
	s := &Store{path: path, items: make(map[string]*Request)}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return nil, fmt.Errorf("load store: %w", err)
	}

	var reqs []*Request
	if err := json.Unmarshal(data, &reqs); err != nil {
		return nil, fmt.Errorf("load store: unmarshal: %w", err)
	}
	for _, r := range reqs {
		s.Put(r)
	}
	return s, nil
}

// Len returns the number of pending requests.
func (s *Store) Len() int { return len(s.order) }

// Requests returns the pending requests in store order.
func (s *Store) Requests() []*Request {
	out := make([]*Request, 0, len(s.order))
	for _, k := range s.order {
		out = append(out, s.items[k])
	}
	return out
}

// Put inserts a request, overwriting any earlier request recorded for the
// same file position. An overwrite keeps the key's original position in the
// store order. The inline value is held compact so requests compare equal
// across a save/load cycle.
func (s *Store) Put(r *Request) {
	if len(r.Payload.Value) > 0 {
		if v, err := compactValue(r.Payload.Value); err == nil {
			r.Payload.Value = v
		}
	}
	key := r.Key()
	if _, ok := s.items[key]; !ok {
		s.order = append(s.order, key)
	}
	s.items[key] = r
}

// Remove drops the request for key, if present.
func (s *Store) Remove(key string) {
	if _, ok := s.items[key]; !ok {
		return
	}
	delete(s.items, key)
	for i, k := range s.order {
		if k == key {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// Save atomically writes the store to its path via temp file + rename, so a
// crash mid-write never truncates the previous state.
func (s *Store) Save() error {
	data, err := json.MarshalIndent(s.Requests(), "", "  ")
	if err != nil {
		return fmt.Errorf("save store: marshal: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("save store: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".requests-tmp-*")
	if err != nil {
		return fmt.Errorf("save store: tmpfile: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("save store: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("save store: close: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("save store: rename: %w", err)
	}
	return nil
}

// Resolve binds every pending request to its live source file. Requests
// whose recorded fingerprint no longer matches the file are stale: the call
// site's surroundings may have shifted in ways live offsets cannot
// reconstruct, so they are dropped from the store without error. Requests
// against unreadable files are skipped and their errors collected per file;
// the remaining files keep processing.
func (s *Store) Resolve(cache *source.Cache, log *zap.Logger) ([]*Bound, map[string]error) {
	var bound []*Bound
	ioErrs := make(map[string]error)

	for _, r := range s.Requests() {
		if _, failed := ioErrs[r.Path]; failed {
			continue
		}
		f, err := cache.Read(r.Path)
		if err != nil {
			ioErrs[r.Path] = err
			continue
		}
		if f.Fingerprint() != r.Fingerprint {
			log.Info("dropping stale request",
				zap.String("path", r.Path),
				zap.Int("line", r.Line),
				zap.String("matcher", r.Matcher))
			s.Remove(r.Key())
			continue
		}
		bound = append(bound, &Bound{
			Request: r,
			File:    f,
			Live:    f.RegisterLiveOffset(r.Offset),
		})
	}
	if len(ioErrs) == 0 {
		return bound, nil
	}
	return bound, ioErrs
}
