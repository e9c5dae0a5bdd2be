package artifact

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"
)

// Archive is a content-addressed store of superseded baselines. Blobs are
// zstd-compressed under <dir>/<hash[:2]>/<hash>, and a journal of JSON lines
// records which path pointed at which blob, newest last.
type Archive struct {
	dir string
}

type journalEntry struct {
	Path string    `json:"path"`
	Hash string    `json:"hash"`
	Time time.Time `json:"time"`
}

// Open returns the archive rooted at dir, creating it if necessary.
func Open(dir string) (*Archive, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	return &Archive{dir: dir}, nil
}

func (a *Archive) journalPath() string {
	return filepath.Join(a.dir, "journal")
}

func (a *Archive) blobPath(hash string) string {
	return filepath.Join(a.dir, hash[:2], hash)
}

// Put archives data as the superseded baseline for path. Identical content
// shares one blob; the journal line is appended regardless so Restore always
// finds the most recent supersession.
func (a *Archive) Put(path string, data []byte) error {
	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])

	blob := a.blobPath(hash)
	if _, err := os.Stat(blob); errors.Is(err, os.ErrNotExist) {
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return fmt.Errorf("archive %s: %w", path, err)
		}
		compressed := enc.EncodeAll(data, nil)
		enc.Close()

		if err := os.MkdirAll(filepath.Dir(blob), 0o755); err != nil {
			return fmt.Errorf("archive %s: %w", path, err)
		}
		if err := os.WriteFile(blob, compressed, 0o644); err != nil {
			return fmt.Errorf("archive %s: %w", path, err)
		}
	}

	line, err := json.Marshal(journalEntry{Path: path, Hash: hash, Time: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("archive %s: %w", path, err)
	}
	j, err := os.OpenFile(a.journalPath(), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("archive %s: %w", path, err)
	}
	defer j.Close()
	if _, err := j.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("archive %s: %w", path, err)
	}
	return nil
}

// Restore writes the most recently archived baseline for path back to path.
func (a *Archive) Restore(path string) error {
	data, err := os.ReadFile(a.journalPath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("restore %s: no archived baseline", path)
		}
		return fmt.Errorf("restore %s: %w", path, err)
	}

	var latest *journalEntry
	dec := json.NewDecoder(bytes.NewReader(data))
	for {
		var e journalEntry
		if err := dec.Decode(&e); err != nil {
			break
		}
		if e.Path == path {
			entry := e
			latest = &entry
		}
	}
	if latest == nil {
		return fmt.Errorf("restore %s: no archived baseline", path)
	}

	compressed, err := os.ReadFile(a.blobPath(latest.Hash))
	if err != nil {
		return fmt.Errorf("restore %s: %w", path, err)
	}
	rdr, err := zstd.NewReader(nil)
	if err != nil {
		return fmt.Errorf("restore %s: %w", path, err)
	}
	defer rdr.Close()
	blob, err := rdr.DecodeAll(compressed, nil)
	if err != nil {
		return fmt.Errorf("restore %s: %w", path, err)
	}

	if err := os.WriteFile(path, blob, 0o644); err != nil {
		return fmt.Errorf("restore %s: %w", path, err)
	}
	return nil
}
