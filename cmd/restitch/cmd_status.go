package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"restitch/pkg/config"
	"restitch/pkg/request"
	"restitch/pkg/source"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "List pending rebaseline requests",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(".")
			if err != nil {
				return err
			}
			store, err := request.Load(cfg.StorePath)
			if err != nil {
				return err
			}
			if store.Len() == 0 {
				fmt.Println("no pending requests")
				return nil
			}

			cache := source.NewCache()
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SITE\tMATCHER\tKIND\tSTATE")
			for _, r := range store.Requests() {
				state := "pending"
				f, err := cache.Read(r.Path)
				switch {
				case err != nil:
					state = "unreadable"
				case f.Fingerprint() != r.Fingerprint:
					state = "stale"
				}
				fmt.Fprintf(w, "%s:%d:%d\t%s\t%s\t%s\n",
					r.Path, r.Line, r.Column, r.Matcher, r.Payload.Kind(), state)
			}
			return w.Flush()
		},
	}
}
