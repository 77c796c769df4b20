package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"
	"text/tabwriter"

	"github.com/brk3/habitcal/internal/apiclient"
	"github.com/brk3/habitcal/internal/server"
	"github.com/brk3/habitcal/pkg/habit"
	"github.com/spf13/cobra"
)

func newCalendarCmd(a *app) *cobra.Command {
	var selected string
	cmd := &cobra.Command{
		Use:   "calendar",
		Short: "Show logged entries and upcoming reminders by date",
		Long: `The "calendar" command lists every date with a marking. Past dates show how
many entries were logged, today and the next 30 days show how many reminders
are due. Today shows both as "logged • due" when entries exist.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cal, err := a.client().Calendar(cmd.Context(), selected)
			if err != nil {
				return err
			}
			printCalendar(cmd.OutOrStdout(), cal)
			return nil
		},
	}
	cmd.Flags().StringVarP(&selected, "select", "s", "", "date to highlight as YYYY-MM-DD")
	return cmd
}

func printCalendar(out io.Writer, cal *server.CalendarResponse) {
	for _, e := range cal.Errors {
		fmt.Fprintf(out, "warning: %s\n", e)
	}
	if len(cal.Markings) == 0 {
		fmt.Fprintln(out, "Nothing logged or scheduled")
		return
	}

	dates := make([]string, 0, len(cal.Markings))
	for d := range cal.Markings {
		dates = append(dates, d)
	}
	slices.Sort(dates)

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, d := range dates {
		m := cal.Markings[d]
		mark := ""
		switch {
		case d == cal.Today:
			mark = "today"
		case m.Selected:
			mark = "*"
		}
		habits := make([]string, 0, len(m.Dots))
		for _, dot := range m.Dots {
			habits = append(habits, strings.TrimPrefix(dot.Key, d+"-"))
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", d, m.Text, strings.Join(habits, ", "), mark)
	}
	w.Flush()
}

func newDayCmd(a *app) *cobra.Command {
	var interactive bool
	cmd := &cobra.Command{
		Use:   "day [date]",
		Short: "Show entries and reminders for one date",
		Long: `The "day" command shows what was logged on a past date, what is due on a
future date, and both for today. With --interactive it reads dates from stdin,
one per line, and only the most recently requested date is shown.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := a.client()
			if interactive {
				return browseDays(cmd.Context(), c, cmd.InOrStdin(), cmd.OutOrStdout())
			}
			date := ""
			if len(args) == 1 {
				date = args[0]
			} else {
				loc, err := a.cfg.Location()
				if err != nil {
					return err
				}
				date = todayIn(loc)
			}
			day, err := c.Day(cmd.Context(), date)
			if err != nil {
				return err
			}
			printDay(cmd.OutOrStdout(), day)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "read dates from stdin")
	return cmd
}

// browseDays loads the detail of each date read from in. A newer date
// cancels the load of the previous one and only the last date read is
// printed once loads overlap.
func browseDays(ctx context.Context, c *apiclient.Client, in io.Reader, out io.Writer) error {
	var (
		latest apiclient.Latest[*server.DayResponse]
		wg     sync.WaitGroup
		mu     sync.Mutex
	)
	sc := bufio.NewScanner(in)
	for sc.Scan() {
		date := strings.TrimSpace(sc.Text())
		if date == "" {
			continue
		}
		if _, err := habit.ParseDate(date); err != nil {
			mu.Lock()
			fmt.Fprintln(out, err)
			mu.Unlock()
			continue
		}
		// the ticket is taken here so requests rank in input order
		reqCtx, ticket := latest.Start(ctx)
		wg.Add(1)
		go func() {
			defer wg.Done()
			day, err := c.Day(reqCtx, date)
			day, err = latest.Finish(ticket, day, err)
			if errors.Is(err, apiclient.ErrSuperseded) {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				fmt.Fprintf(out, "%s: %v\n", date, err)
				return
			}
			printDay(out, day)
		}()
	}
	wg.Wait()
	return sc.Err()
}

func printDay(out io.Writer, day *server.DayResponse) {
	fmt.Fprintf(out, "%s (%s)\n", day.Date, day.Kind)
	for _, e := range day.Errors {
		fmt.Fprintf(out, "warning: %s\n", e)
	}

	if day.Kind != habit.Future {
		if len(day.Entries) == 0 {
			fmt.Fprintln(out, "  no entries")
		}
		for _, e := range day.Entries {
			fmt.Fprintf(out, "  %s: %s\n", e.HabitName, e.Display)
		}
	}
	if day.Kind != habit.Past {
		if len(day.Slots) == 0 {
			fmt.Fprintln(out, "  no reminders")
		}
		for _, s := range day.Slots {
			fmt.Fprintf(out, "  %s  %s\n", s.Time, s.HabitName)
		}
	}
	if len(day.Notifications) > 0 {
		fmt.Fprintf(out, "  %d reminder(s) scheduled\n", len(day.Notifications))
	}
}
