package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/brk3/habitcal/pkg/habit"
	"github.com/spf13/cobra"
)

type habitFlags struct {
	response  string
	frequency string
	times     int
	at        []string
}

func (f *habitFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.response, "type", "t", string(habit.YesNoType), "response type: yes_no, scale or numeric")
	cmd.Flags().StringVarP(&f.frequency, "frequency", "f", string(habit.Daily), "reminder frequency: daily, weekly or monthly")
	cmd.Flags().IntVarP(&f.times, "times", "n", 1, "reminders per day for daily habits")
	cmd.Flags().StringSliceVar(&f.at, "at", nil, "reminder times as HH:MM, comma separated")
}

// apply copies the flags the user set onto h.
func (f *habitFlags) apply(cmd *cobra.Command, h *habit.Habit) {
	if cmd.Flags().Changed("type") || h.ResponseType == "" {
		h.ResponseType = habit.ResponseType(f.response)
	}
	if cmd.Flags().Changed("frequency") || h.NotificationFrequency == "" {
		h.NotificationFrequency = habit.Frequency(f.frequency)
	}
	if cmd.Flags().Changed("times") || h.TimesPerDay == 0 {
		h.TimesPerDay = f.times
	}
	if cmd.Flags().Changed("at") {
		h.NotificationTimes = f.at
	}
}

func newHabitCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "habit",
		Short: "Create, list, edit and delete habits",
	}
	cmd.AddCommand(newHabitAddCmd(a), newHabitListCmd(a), newHabitEditCmd(a), newHabitDeleteCmd(a))
	return cmd
}

func newHabitAddCmd(a *app) *cobra.Command {
	var f habitFlags
	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Create a habit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h := habit.Habit{Name: args[0]}
			f.apply(cmd, &h)
			// catch bad input before it reaches the server
			if _, err := habit.Normalize(h); err != nil {
				return err
			}
			created, err := a.client().CreateHabit(cmd.Context(), h)
			if err != nil {
				return err
			}
			cmd.Printf("Created %s (%s)\n", created.Name, created.ID)
			return nil
		},
	}
	f.register(cmd)
	return cmd
}

func newHabitListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List habits",
		Long:  `The "list" command lets you list your tracked habits.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			habits, err := a.client().ListHabits(cmd.Context())
			if err != nil {
				return err
			}
			if len(habits) == 0 {
				cmd.Println("No habits yet")
				return nil
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tTYPE\tFREQUENCY\tREMINDERS")
			for _, h := range habits {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", h.ID, h.Name, typeLabel(h.ResponseType), h.NotificationFrequency, strings.Join(h.NotificationTimes, ","))
			}
			return w.Flush()
		},
	}
}

func newHabitEditCmd(a *app) *cobra.Command {
	var (
		f    habitFlags
		name string
	)
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change a habit's name, type or reminders",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := a.client()
			h, err := c.GetHabit(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("name") {
				h.Name = name
			}
			f.apply(cmd, h)
			if _, err := habit.Normalize(*h); err != nil {
				return err
			}
			updated, err := c.UpdateHabit(cmd.Context(), *h)
			if err != nil {
				return err
			}
			cmd.Printf("Updated %s: %s %s at %s\n", updated.Name, updated.ResponseType, updated.NotificationFrequency, strings.Join(updated.NotificationTimes, ","))
			return nil
		},
	}
	f.register(cmd)
	cmd.Flags().StringVar(&name, "name", "", "new habit name")
	return cmd
}

func newHabitDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a habit with all its entries and reminders",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.client().DeleteHabit(cmd.Context(), args[0]); err != nil {
				return err
			}
			cmd.Printf("Deleted %s\n", args[0])
			return nil
		},
	}
}

func typeLabel(t habit.ResponseType) string {
	r, err := t.Response()
	if err != nil {
		return string(t)
	}
	return r.Label()
}
