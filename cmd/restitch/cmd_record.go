package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"restitch/pkg/config"
	"restitch/pkg/matcher"
	"restitch/pkg/request"
	"restitch/pkg/source"
)

// stepReport is the per-failure event delivered by the test runner, one JSON
// object per line. Line and column are 1-based.
type stepReport struct {
	File        string          `json:"file"`
	Line        int             `json:"line"`
	Column      int             `json:"column"`
	MatcherName string          `json:"matcherName"`
	Payload     json.RawMessage `json:"payload"`
}

type artifactPayload struct {
	ArtifactPath    string `json:"artifactPath"`
	DestinationPath string `json:"destinationPath"`
}

func newRecordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "record [report-file]",
		Short: "Record failing-step reports as pending rebaseline requests",
		Long: "Reads step reports (one JSON object per line) from the given file or\n" +
			"stdin and appends them to the request store. A later report for the\n" +
			"same file position overwrites the earlier one.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := io.Reader(os.Stdin)
			if len(args) == 1 {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			return record(in)
		},
	}
}

func record(in io.Reader) error {
	cfg, err := config.Load(".")
	if err != nil {
		return err
	}
	reg := matcher.NewRegistry(cfg.Matchers.Inline, cfg.Matchers.Artifact)

	store, err := request.Load(cfg.StorePath)
	if err != nil {
		return err
	}
	cache := source.NewCache()

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	recorded := 0
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var step stepReport
		if err := json.Unmarshal(line, &step); err != nil {
			return fmt.Errorf("record: bad step report: %w", err)
		}
		req, err := buildRequest(cache, reg, step)
		if err != nil {
			return err
		}
		store.Put(req)
		recorded++
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("record: %w", err)
	}

	if err := store.Save(); err != nil {
		return err
	}
	logger.Info("recorded requests", zap.Int("count", recorded), zap.Int("pending", store.Len()))
	fmt.Printf("recorded %d request(s), %d pending\n", recorded, store.Len())
	return nil
}

func buildRequest(cache *source.Cache, reg *matcher.Registry, step stepReport) (*request.Request, error) {
	kind, ok := reg.Kind(step.MatcherName)
	if !ok {
		return nil, fmt.Errorf("record: unknown matcher %q at %s:%d", step.MatcherName, step.File, step.Line)
	}

	var payload request.Payload
	switch kind {
	case matcher.KindArtifact:
		var ap artifactPayload
		if err := json.Unmarshal(step.Payload, &ap); err != nil {
			return nil, fmt.Errorf("record: artifact payload for %s:%d: %w", step.File, step.Line, err)
		}
		if ap.ArtifactPath == "" || ap.DestinationPath == "" {
			return nil, fmt.Errorf("record: artifact payload for %s:%d missing paths", step.File, step.Line)
		}
		payload = request.Payload{ArtifactPath: ap.ArtifactPath, DestinationPath: ap.DestinationPath}
	case matcher.KindInline:
		if !json.Valid(step.Payload) {
			return nil, fmt.Errorf("record: inline payload for %s:%d is not valid JSON", step.File, step.Line)
		}
		payload = request.Payload{Value: append(json.RawMessage(nil), step.Payload...)}
	}

	f, err := cache.Read(step.File)
	if err != nil {
		return nil, err
	}
	return request.New(f, step.Line, step.Column, step.MatcherName, payload)
}
