package cmd

import (
	"github.com/brk3/habitcal/pkg/habit"
	"github.com/spf13/cobra"
)

func newTrackCmd(a *app) *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "track <habit-id> <value>",
		Short: "Record an entry for a habit",
		Long: `The "track" command records one entry. Yes/no habits take yes or no, scale
habits a whole number from 1 to 10 and numeric habits any value.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if date != "" {
				if _, err := habit.ParseDate(date); err != nil {
					return err
				}
			}
			e, err := a.client().AddEntry(cmd.Context(), args[0], date, args[1])
			if err != nil {
				return err
			}
			cmd.Printf("Tracked %s on %s\n", e.Display, e.Date)
			return nil
		},
	}
	cmd.Flags().StringVarP(&date, "date", "d", "", "entry date as YYYY-MM-DD (default today)")
	return cmd
}
