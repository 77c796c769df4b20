package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newStatsCmd(a *app) *cobra.Command {
	var showSeries bool
	cmd := &cobra.Command{
		Use:   "stats <habit-id>",
		Short: "Show streaks and statistics for a habit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := a.client().GetHabitSummary(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			s := resp.HabitSummary

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "Habit\t%s\n", s.Name)
			fmt.Fprintf(w, "Entries\t%d\n", s.Entries)
			fmt.Fprintf(w, "Current streak\t%d\n", s.CurrentStreak)
			fmt.Fprintf(w, "Longest streak\t%d\n", s.LongestStreak)
			fmt.Fprintf(w, "Days done\t%d\n", s.TotalDaysDone)
			fmt.Fprintf(w, "This month\t%d\n", s.ThisMonth)
			fmt.Fprintf(w, "Best month\t%d\n", s.BestMonth)
			if s.Entries > 0 {
				fmt.Fprintf(w, "First logged\t%s\n", s.FirstLogged)
				fmt.Fprintf(w, "Average\t%.2f\n", s.Average)
				fmt.Fprintf(w, "Highest\t%g\n", s.Highest)
				fmt.Fprintf(w, "Lowest\t%g\n", s.Lowest)
			}
			if showSeries {
				fmt.Fprintln(w)
				for _, p := range resp.Series {
					fmt.Fprintf(w, "%s\t%g\n", p.Label, p.Value)
				}
			}
			return w.Flush()
		},
	}
	cmd.Flags().BoolVar(&showSeries, "series", false, "also print every entry's score")
	return cmd
}
