package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newStatusCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show stored reload progress per card",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()

			accounts, err := a.cfg.Accounts()
			if err != nil {
				return err
			}
			statuses, err := a.runner.Status(cmd.Context(), accounts)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "CARD\tDONE\tNEXT\tLAST")
			for _, s := range statuses {
				next, last := "now", "-"
				if s.NextEligible != nil {
					next = s.NextEligible.Format("2006-01-02")
				}
				if s.LastReload != nil {
					ok := "ok"
					if !s.LastReload.Succeeded {
						ok = "failed"
					}
					last = fmt.Sprintf("%.2f %s %s", s.LastReload.Amount, ok, s.LastReload.Timestamp.Format("2006-01-02 15:04"))
				}
				fmt.Fprintf(w, "%s\t%d/%d\t%s\t%s\n", s.Account, s.Completed, s.Target, next, last)
			}
			return w.Flush()
		},
	}
}
