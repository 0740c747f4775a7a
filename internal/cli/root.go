// Package cli wires the exporter's commands together.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/cantalupo555/enotifikasi-exporter/internal/browser"
	"github.com/cantalupo555/enotifikasi-exporter/internal/config"
	"github.com/cantalupo555/enotifikasi-exporter/internal/observability"
)

// app carries state shared by all commands of one invocation.
type app struct {
	version string
	v       *viper.Viper
	cfgFile string

	cfg    *config.Config
	logger *zap.Logger

	stdin *os.File

	launch        func(context.Context, browser.Config, *zap.Logger) (session, error)
	detectBrowser func() string
	detector      func(config.DownloadConfig, *zap.Logger) fileAwaiter
}

func newApp(version string) *app {
	return &app{
		version:       version,
		v:             viper.New(),
		stdin:         os.Stdin,
		launch:        launchChrome,
		detectBrowser: browser.DetectBrowser,
		detector:      newDetector,
	}
}

// newRootCmd builds the command tree for a.
func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "enotifikasi-exporter",
		Short:         "Exports the notification register from the eNotifikasi portal.",
		Version:       a.version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.initialize()
		},
	}
	root.SetVersionTemplate(`{{printf "enotifikasi-exporter version %s\n" .Version}}`)

	root.PersistentFlags().StringVarP(&a.cfgFile, "config", "c", "", "config file (default is ./config.yaml)")
	root.PersistentFlags().StringP("username", "u", "", "portal account name")
	_ = a.v.BindPFlag("portal.username", root.PersistentFlags().Lookup("username"))

	root.AddCommand(
		newExportCmd(a),
		newWaitCmd(a),
		newCredentialsCmd(a),
		newVersionCmd(a),
	)
	return root
}

// initialize loads configuration and starts the logger.
func (a *app) initialize() error {
	if err := config.Init(a.v, a.cfgFile); err != nil {
		return err
	}
	cfg, err := config.NewConfigFromViper(a.v)
	if err != nil {
		observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "enotifikasi-exporter"})
		return err
	}
	a.cfg = cfg

	observability.InitializeLogger(cfg.Logger)
	a.logger = observability.GetLogger()
	a.logger.Debug("Configuration loaded", zap.String("config_file", a.v.ConfigFileUsed()))
	return nil
}

// Execute runs the command line and returns the process exit code.
func Execute(ctx context.Context, version string) int {
	defer observability.Sync()

	a := newApp(version)
	root := newRootCmd(a)
	if err := root.ExecuteContext(ctx); err != nil {
		if a.logger != nil {
			a.logger.Error("Command failed", zap.Error(err))
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		return exitCode(err)
	}
	return 0
}

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		// Skip config loading.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "enotifikasi-exporter version %s\n", a.version)
		},
	}
}
