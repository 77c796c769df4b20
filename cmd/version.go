package cmd

import (
	"github.com/brk3/habitcal/pkg/versioninfo"
	"github.com/spf13/cobra"
)

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long: `The "version" command displays the current version info for both client
and server if available.`,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("Client Version: %s\n", versioninfo.Version)

			v, err := a.client().Version(cmd.Context())
			if err != nil {
				cmd.Println("Error fetching server version:", err)
				return
			}
			cmd.Printf("Server Version: %s\n", v.Version)
		},
	}
}
