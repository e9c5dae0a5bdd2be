package apply

import (
	"context"
	"errors"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Batch applies every pending request without confirmation. Distinct files
// are processed concurrently; within one file requests are applied in
// descending position order with matchers extracted once, since right-to-left
// application never shifts an earlier matcher. Satisfiable requests are
// always applied and saved even when others fail; unmatched requests are
// reported together at the end as *UnsatisfiedError.
func (o *Orchestrator) Batch(ctx context.Context) error {
	bound, ioErrs := o.Store.Resolve(o.Cache, o.Log)

	var (
		mu        sync.Mutex
		applied   []string
		unmatched []Unmatched
		fileErrs  []error
	)
	for path, err := range ioErrs {
		o.Log.Warn("skipping unreadable file", zap.String("path", path), zap.Error(err))
		fileErrs = append(fileErrs, err)
	}

	g, ctx := errgroup.WithContext(ctx)
	for file, reqs := range groupByFile(bound) {
		file, reqs := file, reqs
		g.Go(func() error {
			list, err := o.extract(ctx, file)
			if err != nil {
				// Parse failure aborts this file entirely; no best-effort
				// edits against malformed text.
				mu.Lock()
				fileErrs = append(fileErrs, err)
				mu.Unlock()
				return nil
			}

			sortDescending(reqs)
			for _, b := range reqs {
				m, ok := o.locate(list, b)
				if !ok {
					mu.Lock()
					unmatched = append(unmatched, Unmatched{Path: b.Path, Line: b.Line, Matcher: b.Matcher})
					mu.Unlock()
					continue
				}
				if err := o.applyOne(b, m); err != nil {
					return err
				}
				mu.Lock()
				applied = append(applied, b.Key())
				mu.Unlock()
			}
			return file.Save()
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, key := range applied {
		o.Store.Remove(key)
	}
	if err := o.Store.Save(); err != nil {
		return err
	}
	o.Log.Info("batch apply finished",
		zap.Int("applied", len(applied)),
		zap.Int("unmatched", len(unmatched)))

	var errs []error
	errs = append(errs, fileErrs...)
	if len(unmatched) > 0 {
		sort.Slice(unmatched, func(i, j int) bool {
			if unmatched[i].Path != unmatched[j].Path {
				return unmatched[i].Path < unmatched[j].Path
			}
			return unmatched[i].Line < unmatched[j].Line
		})
		errs = append(errs, &UnsatisfiedError{Requests: unmatched})
	}
	return errors.Join(errs...)
}
