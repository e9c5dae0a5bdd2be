package main

import (
	"github.com/spf13/cobra"

	"restitch/pkg/apply"
	"restitch/pkg/artifact"
	"restitch/pkg/config"
	"restitch/pkg/matcher"
	"restitch/pkg/request"
	"restitch/pkg/source"
)

func newApplyCmd() *cobra.Command {
	var interactive bool

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Apply pending rebaseline requests to source and reference files",
		Long: "Batch mode applies every satisfiable request and exits non-zero if any\n" +
			"request could not be matched, printing one path:line per miss.\n" +
			"Interactive mode asks before every edit and keeps declined requests\n" +
			"pending.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			orch, err := newOrchestrator()
			if err != nil {
				return err
			}
			if interactive {
				return orch.Interactive(cmd.Context(), newTerminalConfirmer())
			}
			return orch.Batch(cmd.Context())
		},
	}
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "confirm each edit before applying")
	return cmd
}

func newOrchestrator() (*apply.Orchestrator, error) {
	cfg, err := config.Load(".")
	if err != nil {
		return nil, err
	}
	store, err := request.Load(cfg.StorePath)
	if err != nil {
		return nil, err
	}
	backups, err := artifact.Open(cfg.BackupDir)
	if err != nil {
		return nil, err
	}
	return &apply.Orchestrator{
		Cache:    source.NewCache(),
		Store:    store,
		Registry: matcher.NewRegistry(cfg.Matchers.Inline, cfg.Matchers.Artifact),
		Policy:   matcher.Policy{AllowCompound: cfg.Literals.AllowCompound},
		Backups:  backups,
		Log:      logger,
	}, nil
}
