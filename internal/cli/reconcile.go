package cli

import (
	"encoding/json"
	"time"

	"github.com/spf13/cobra"
)

func newReconcileCmd() *cobra.Command {
	var (
		olderThan time.Duration
		limit     int
	)
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Run one reconciliation sweep over open saga intents and print the counts",
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer func() {
				if cerr := a.Close(cmd.Context()); err == nil {
					err = cerr
				}
			}()

			in := a.reconcileInput()
			if cmd.Flags().Changed("older-than") {
				if err := cfg.CheckSweepCutoff(olderThan); err != nil {
					return err
				}
				in.OlderThan = olderThan
			}
			if cmd.Flags().Changed("limit") {
				in.Limit = limit
			}

			res, err := a.reconcile.Execute(cmd.Context(), in)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "only look at intents untouched for this long (default from config)")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum intents to examine")
	return cmd
}
