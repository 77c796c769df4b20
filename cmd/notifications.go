package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/brk3/habitcal/pkg/habit"
	"github.com/spf13/cobra"
)

func newNotificationsCmd(a *app) *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:     "notifications",
		Aliases: []string{"reminders"},
		Short:   "List scheduled reminders",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ns, err := a.client().Notifications(cmd.Context(), date)
			if err != nil {
				return err
			}
			if len(ns) == 0 {
				cmd.Println("No reminders scheduled")
				return nil
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, n := range ns {
				fmt.Fprintf(w, "%02d:%02d\t%s\t%s\n", n.Trigger.Hour, n.Trigger.Minute, repeats(n.Trigger), n.HabitName)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVarP(&date, "date", "d", "", "only reminders firing on YYYY-MM-DD")
	return cmd
}

func repeats(tr habit.Trigger) string {
	switch {
	case tr.Day != 0:
		return fmt.Sprintf("monthly on day %d", tr.Day)
	case tr.Weekday != 0:
		return fmt.Sprintf("weekly on day %d", tr.Weekday)
	default:
		return "daily"
	}
}
