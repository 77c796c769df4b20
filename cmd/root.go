package cmd

import (
	"os"

	"github.com/brk3/habitcal/internal/apiclient"
	"github.com/brk3/habitcal/internal/config"
	"github.com/brk3/habitcal/internal/logger"
	"github.com/spf13/cobra"
)

// app carries what every subcommand shares once the root has run.
type app struct {
	cfg      *config.Config
	logLevel string
}

func (a *app) client() *apiclient.Client {
	return apiclient.New(a.cfg.APIBaseURL, a.cfg.AuthToken)
}

func (a *app) setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	if err := logger.Setup(cfg.LogLevel, cfg.LogFormat, cfg.LogFile); err != nil {
		return err
	}
	a.cfg = cfg
	return nil
}

func NewRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "habitcal",
		Short: "Track habits, reminders and their calendar",
		Long: `
	Habitcal tracks habits answered yes/no, on a 1-10 scale or with a number. It
	schedules reminders for each habit and shows logged entries and upcoming
	reminders together on a calendar.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
	}
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override the configured log level")

	root.AddCommand(
		newServerCmd(a),
		newHabitCmd(a),
		newTrackCmd(a),
		newCalendarCmd(a),
		newDayCmd(a),
		newStatsCmd(a),
		newNotificationsCmd(a),
		newNudgeCmd(a),
		newVersionCmd(a),
	)
	return root
}

func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
