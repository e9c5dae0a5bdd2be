package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"restitch/pkg/artifact"
	"restitch/pkg/config"
)

func newUndoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "undo <reference-file>",
		Short: "Restore the most recently replaced baseline for a reference file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(".")
			if err != nil {
				return err
			}
			backups, err := artifact.Open(cfg.BackupDir)
			if err != nil {
				return err
			}
			if err := backups.Restore(args[0]); err != nil {
				return err
			}
			fmt.Printf("restored %s\n", args[0])
			return nil
		},
	}
}
