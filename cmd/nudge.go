package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/brk3/habitcal/internal/nudge"
	"github.com/brk3/habitcal/internal/nudge/resend"
	"github.com/spf13/cobra"
)

func newNudgeCmd(a *app) *cobra.Command {
	var (
		threshold time.Duration
		dryRun    bool
	)
	cmd := &cobra.Command{
		Use:   "nudge",
		Short: "Email a digest of expiring streaks and reminders still due today",
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if dryRun {
				return nil
			}
			if a.cfg.ResendAPIKey == "" {
				return fmt.Errorf("HABITS_RESEND_API_KEY is not set")
			}
			if a.cfg.NotifyEmail == "" {
				return fmt.Errorf("HABITS_NOTIFY_EMAIL is not set")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			loc, err := a.cfg.Location()
			if err != nil {
				return err
			}
			var n nudge.Notifier = printNotifier{cmd}
			if !dryRun {
				n = resend.New(a.cfg.ResendAPIKey, a.cfg.NotifyFrom, a.cfg.NotifyEmail)
			}
			_, err = nudge.Nudge(cmd.Context(), a.client(), n, threshold, todayIn(loc))
			return err
		},
	}
	cmd.Flags().DurationVar(&threshold, "threshold", 4*time.Hour, "warn about streaks ending within this window")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the digest instead of emailing it")
	return cmd
}

// printNotifier writes the digest to the command's output.
type printNotifier struct {
	cmd *cobra.Command
}

func (p printNotifier) SendNudge(_ context.Context, d nudge.Digest) error {
	if len(d.Expiring) > 0 {
		p.cmd.Printf("Streaks expiring within %dh: %s\n", d.Hours, strings.Join(d.Expiring, ", "))
	}
	for _, pend := range d.Pending {
		p.cmd.Printf("Still to track on %s: %s (%s)\n", d.Date, pend.Habit, strings.Join(pend.Times, ", "))
	}
	return nil
}
