// Package cli implements the smartstudent command tree.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/debuck1718/smartstudent/internal/config"
	"github.com/debuck1718/smartstudent/internal/logging"
)

// version can be overridden at build time via:
// go build -ldflags "-X github.com/debuck1718/smartstudent/internal/cli.version=1.2.3"
var version = "0.3.0"

// env is shared by every subcommand after PersistentPreRunE.
var env struct {
	cfg    *config.Config
	logger *slog.Logger
}

var rootCmd = &cobra.Command{
	Use:           "smartstudent",
	Short:         "SmartStudent background agent and dashboard tools",
	Long:          color.CyanString("SmartStudent") + " runs the offline agent and drives the dashboard, teacher and admin views from the terminal.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		env.cfg = cfg
		env.logger = logging.Setup(cfg.LogLevel, cfg.LogFormat)
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("smartstudent %s\n", version)
	},
}

var envCmd = &cobra.Command{
	Use:   "env",
	Short: "List recognized environment variables",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return config.Usage()
	},
}

// Execute runs the root command. SIGINT and SIGTERM cancel the command's context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("Error:"), err)
	}
	return err
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(envCmd)
	rootCmd.AddCommand(agentCmd)
	rootCmd.AddCommand(outboxCmd)
	rootCmd.AddCommand(adminCmd)
	rootCmd.AddCommand(dashboardCmd)
	rootCmd.AddCommand(assignmentCmd)
	rootCmd.AddCommand(expenseCmd)
	rootCmd.AddCommand(goalCmd)
	rootCmd.AddCommand(feedbackCmd)
	rootCmd.AddCommand(teacherCmd)
	rootCmd.AddCommand(pushCmd)
}
