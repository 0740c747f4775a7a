package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cantalupo555/enotifikasi-exporter/internal/auth"
	"github.com/cantalupo555/enotifikasi-exporter/internal/browser"
	"github.com/cantalupo555/enotifikasi-exporter/internal/download"
	"github.com/cantalupo555/enotifikasi-exporter/internal/navigation"
	"github.com/cantalupo555/enotifikasi-exporter/internal/observability"
	"github.com/cantalupo555/enotifikasi-exporter/internal/report"
)

// Exit codes returned by Execute.
const (
	exitFailure    = 1
	exitNavigation = 2
	exitDownload   = 3
)

// ErrNoBrowser is returned when no browser executable can be found.
var ErrNoBrowser = errors.New("could not find Chrome, Chromium or Edge; install one or set browser.exec_path")

func exitCode(err error) int {
	switch {
	case errors.Is(err, navigation.ErrElementNotReady), errors.Is(err, navigation.ErrNavigationFailed):
		return exitNavigation
	case errors.Is(err, download.ErrTimeout):
		return exitDownload
	default:
		return exitFailure
	}
}

func newExportCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Sign in, trigger the export and wait for the file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runExport(cmd.Context(), cmd.OutOrStdout())
		},
	}

	flags := cmd.Flags()
	flags.StringP("dir", "d", "", "download directory")
	flags.String("exec", "", "browser executable (auto-detect if empty)")
	flags.String("profile", "", "browser profile directory")
	flags.Bool("headless", true, "run the browser without a window")
	flags.Duration("timeout", download.DefaultTimeout, "how long to wait for the file after clicking export")
	flags.Duration("step-timeout", navigation.DefaultStepTimeout, "how long each page element may take to become ready")

	for key, name := range map[string]string{
		"download.dir":            "dir",
		"browser.exec_path":       "exec",
		"browser.profile_dir":     "profile",
		"browser.headless":        "headless",
		"download.timeout":        "timeout",
		"navigation.step_timeout": "step-timeout",
	} {
		_ = a.v.BindPFlag(key, flags.Lookup(name))
	}
	return cmd
}

// runExport drives one full export: browser, step script, detector, report.
func (a *app) runExport(ctx context.Context, out io.Writer) error {
	cfg := a.cfg
	runID := observability.NewRunID()
	logger := observability.ForRun(runID)

	creds, err := auth.Resolve(cfg.Portal.Username, cfg.Portal.Password)
	if err != nil {
		return err
	}
	logger.Info("Using credentials",
		zap.String("username", creds.Username),
		zap.String("source", string(creds.Source)))

	dir, err := filepath.Abs(cfg.Download.Dir)
	if err != nil {
		return fmt.Errorf("resolving download directory: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating download directory: %w", err)
	}

	execPath := cfg.Browser.ExecPath
	if execPath == "" {
		execPath = a.detectBrowser()
		if execPath == "" {
			return ErrNoBrowser
		}
		logger.Info("Auto-detected browser", zap.String("exec", execPath))
	}

	profile := cfg.Browser.ProfileDir
	if profile == "" {
		profile = browser.DefaultProfilePath()
	}

	steps := navigation.ExportScript(cfg.Portal.URL, creds.Username, creds.Secret)
	stats := report.New(runID, len(steps))
	stats.DownloadDir = dir
	defer func() {
		stats.Print(out)
		logger.Info("Run finished",
			zap.Bool("succeeded", stats.Succeeded()),
			zap.String("summary", stats.Summary()))
	}()

	bcfg := browser.DefaultConfig()
	bcfg.ExecPath = execPath
	bcfg.ProfilePath = profile
	bcfg.DownloadDir = dir
	bcfg.Headless = cfg.Browser.Headless
	bcfg.WindowWidth = cfg.Browser.WindowWidth
	bcfg.WindowHeight = cfg.Browser.WindowHeight
	bcfg.Timeout = cfg.Browser.Timeout

	logger.Info("Starting browser",
		zap.String("exec", execPath),
		zap.String("profile", profile),
		zap.Bool("headless", bcfg.Headless))
	sess, err := a.launch(ctx, bcfg, logger)
	if err != nil {
		stats.AddError("browser", err)
		return err
	}
	defer sess.Close()

	controller := navigation.NewController(
		sess.Engine(logger),
		cfg.Navigation.StepTimeout,
		navigation.WithLogger(logger),
	)
	cutoff, err := controller.Run(sess.Context(), steps)
	if err != nil {
		stats.AddError("navigation", err)
		if i, ok := navigation.FailedStep(err); ok {
			stats.StepsCompleted = i
			stats.FailedStep = steps[i].Name
		}
		diagnose(sess, err, logger)
		return err
	}
	stats.StepsCompleted = len(steps)
	stats.Cutoff = cutoff

	detector := a.detector(cfg.Download, logger)
	deadline := time.Now().Add(cfg.Download.Timeout)
	path, err := detector.AwaitFile(ctx, dir, cutoff, cfg.Download.PollInterval, deadline)
	var timeout *download.TimeoutError
	if errors.As(err, &timeout) {
		stats.Polls = timeout.Polls
	}
	if err != nil {
		stats.AddError("download", err)
		return err
	}

	stats.SetFile(path)
	logger.Info("Export complete", zap.String("file", path), zap.Int64("bytes", stats.FileSize))
	return nil
}

// diagnose logs operator hints for a failed navigation.
func diagnose(s session, err error, logger *zap.Logger) {
	if browser.IsBrowserClosed(err) {
		logger.Error("Browser closed or crashed during the run")
		return
	}
	if url, uerr := s.CurrentURL(); uerr == nil {
		logger.Info("Page at failure", zap.String("url", url))
	}
	if i, ok := navigation.FailedStep(err); ok && navigation.PastLogin(i) {
		if loggedIn, lerr := s.LoggedIn(); lerr == nil && !loggedIn {
			logger.Warn("Still on the login page; the portal probably rejected the credentials")
		}
	}
}
