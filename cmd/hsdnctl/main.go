// Command hsdnctl is the hybrid SDN controller daemon: it runs the
// NETCONF and OpenFlow drivers, fuses their topology views, compiles
// policy against that topology, and pushes both to the operator
// façade while draining its command queue.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/hsdnet/controller/internal/apibridge"
	"github.com/hsdnet/controller/internal/settings"
	"github.com/hsdnet/controller/pkg/version"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "hsdnctl",
		Short: "Hybrid SDN controller",
		Long: `hsdnctl runs and operates the hybrid NETCONF/OpenFlow controller.

  hsdnctl run                         # run the controller daemon
  hsdnctl queue <command...>          # inject a command into the façade's queue
  hsdnctl version                     # print build version`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		CompletionOptions: cobra.CompletionOptions{HiddenDefaultCmd: true},
	}

	rootCmd.AddCommand(
		newRunCmd(),
		newQueueCmd(),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Println(version.Info())
			},
		},
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newQueueCmd() *cobra.Command {
	var settingsPath string
	cmd := &cobra.Command{
		Use:   "queue <command words...>",
		Short: "Append a command to the façade's command queue (e.g. hsdnctl queue policy new disable r1 eth0)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if settingsPath == "" {
				settingsPath = settings.DefaultPath
			}
			s, err := settings.Load(settingsPath)
			if err != nil {
				return fmt.Errorf("loading settings: %w", err)
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()
			client := apibridge.NewHTTPClient()
			return apibridge.PostCommand(client, ctx, s.FacadeBaseURL, strings.Join(args, " "))
		},
	}
	cmd.Flags().StringVar(&settingsPath, "settings", "", "path to settings.yaml (default config/settings.yaml)")
	return cmd
}
