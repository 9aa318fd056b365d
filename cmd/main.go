// FilePath: server/watchdog/cmd/main.go
package main

import (
	"fmt"
	"os"

	tm "github.com/buger/goterm"
	"github.com/itsatony/w4b_v3/server/watchdog/internal/config"
	"github.com/itsatony/w4b_v3/server/watchdog/internal/server"
	"github.com/spf13/cobra"
	nuts "github.com/vaudience/go-nuts"
)

func main() {
	// Initialize version info
	nuts.InitVersion()

	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "watchdog",
		Short:         "W4B sensor watchdog: limit, health and leak alerting",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runServe,
	}
	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the alert engine and HTTP API",
			RunE:  runServe,
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the version",
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintln(cmd.OutOrStdout(), nuts.GetVersion())
			},
		},
		&cobra.Command{
			Use:   "check-config",
			Short: "Load and validate the configuration, then exit",
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, err := config.Load()
				if err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "configuration invalid: %v\n", err)
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "configuration ok: limits=%t health=%t leak=%t mqtt=%t\n",
					cfg.Alerting.Limits.Enabled, cfg.Alerting.Health.Enabled, cfg.Alerting.Leak.Enabled, cfg.MQTT.Enabled)
				return nil
			},
		},
	)
	return root
}

func runServe(_ *cobra.Command, _ []string) error {
	// Clear console and draw logo
	ClearConsole()
	DrawLogo()
	nuts.L.Infof("[Main] Starting W4B Watchdog v%s", nuts.GetVersion())

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		nuts.L.Errorf("[Main] Failed to load configuration: %v", err)
		return err
	}

	// Create and start server
	srv := server.New(cfg)
	if err := srv.Start(); err != nil {
		nuts.L.Errorf("[Main] Server error: %v", err)
		return err
	}
	return nil
}

// ClearConsole clears the console screen and draws the logo.
func ClearConsole() {
	tm.Clear()
	tm.MoveCursor(1, 1)
	tm.Flush()
}

func DrawLogo() {
	fmt.Println()
	lines := []string{
		" _      __     __       __     __            ",
		"| | /| / /__ _/ /_____ / /  ___/ /__  ___ _  ",
		"| |/ |/ / _ `/ __/ __// _ \\/ _  / _ \\/ _ `/  ",
		"|__/|__/\\_,_/\\__/\\__//_//_/\\_,_/\\___/\\_, /   ",
		"                                    /___/    ",
		"..........................................  " + nuts.GetVersion(),
	}

	for _, line := range lines {
		fmt.Println(line)
	}
}
