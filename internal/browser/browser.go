// Package browser provides Chrome/Chromedp initialization and configuration.
package browser

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// Config holds browser configuration options.
type Config struct {
	ExecPath     string
	ProfilePath  string
	DownloadDir  string
	Headless     bool
	WindowWidth  int
	WindowHeight int
	Timeout      time.Duration
}

// DefaultConfig returns default browser configuration.
func DefaultConfig() Config {
	return Config{
		Headless:     true,
		WindowWidth:  1920,
		WindowHeight: 1080,
		Timeout:      15 * time.Minute,
	}
}

// allocatorOptions builds the exec allocator flags for cfg.
func allocatorOptions(cfg Config) []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(cfg.WindowWidth, cfg.WindowHeight),
	)
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	if cfg.ProfilePath != "" {
		opts = append(opts, chromedp.UserDataDir(cfg.ProfilePath))
	}
	return opts
}

// Context holds the browser contexts and cancel functions.
type Context struct {
	Ctx         context.Context
	AllocCancel context.CancelFunc
	CtxCancel   context.CancelFunc
}

// New launches the browser under parent and returns its context. The
// browser process is started eagerly so a missing executable is reported
// here. When cfg.DownloadDir is set, downloads are saved there without
// prompting. Callers must Close the returned Context on every path.
func New(parent context.Context, cfg Config, logger *zap.Logger) (*Context, error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(parent, allocatorOptions(cfg)...)

	sugar := logger.Sugar()
	ctx, ctxCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(sugar.Debugf),
		chromedp.WithErrorf(sugar.Warnf),
	)

	timeoutCancel := context.CancelFunc(func() {})
	if cfg.Timeout > 0 {
		ctx, timeoutCancel = context.WithTimeout(ctx, cfg.Timeout)
	}

	// Wrap both cancels
	combinedCancel := func() {
		timeoutCancel()
		ctxCancel()
	}

	c := &Context{
		Ctx:         ctx,
		AllocCancel: allocCancel,
		CtxCancel:   combinedCancel,
	}

	if err := chromedp.Run(ctx); err != nil {
		c.Close()
		return nil, fmt.Errorf("starting browser: %w", err)
	}
	if cfg.DownloadDir != "" {
		if err := ConfigureDownloads(ctx, cfg.DownloadDir, logger); err != nil {
			c.Close()
			return nil, err
		}
	}
	return c, nil
}

// Close closes all browser contexts.
func (c *Context) Close() {
	if c.CtxCancel != nil {
		c.CtxCancel()
	}
	if c.AllocCancel != nil {
		c.AllocCancel()
	}
}

// ConfigureDownloads makes the browser save downloads into downloadDir
// without prompting and emit download events.
func ConfigureDownloads(ctx context.Context, downloadDir string, logger *zap.Logger) error {
	abs, err := filepath.Abs(downloadDir)
	if err != nil {
		return fmt.Errorf("resolving download directory: %w", err)
	}
	if err := chromedp.Run(ctx,
		browser.SetDownloadBehavior(browser.SetDownloadBehaviorBehaviorAllow).
			WithDownloadPath(abs).
			WithEventsEnabled(true),
	); err != nil {
		return fmt.Errorf("setting download behavior: %w", err)
	}
	logger.Info("Downloads will be saved", zap.String("dir", abs))
	return nil
}

// WatchDownloads logs the browser's own download events. It is purely
// informational; completion is decided from the filesystem.
func WatchDownloads(ctx context.Context, logger *zap.Logger) {
	names := make(map[string]string)
	chromedp.ListenBrowser(ctx, func(ev interface{}) {
		switch e := ev.(type) {
		case *browser.EventDownloadWillBegin:
			names[e.GUID] = e.SuggestedFilename
			logger.Info("Browser started download",
				zap.String("guid", e.GUID),
				zap.String("file", e.SuggestedFilename),
				zap.String("url", e.URL))
		case *browser.EventDownloadProgress:
			switch e.State {
			case browser.DownloadProgressStateCompleted:
				logger.Info("Browser finished download",
					zap.String("guid", e.GUID),
					zap.String("file", names[e.GUID]),
					zap.Float64("bytes", e.ReceivedBytes))
			case browser.DownloadProgressStateCanceled:
				logger.Warn("Browser canceled download",
					zap.String("guid", e.GUID),
					zap.String("file", names[e.GUID]))
			}
		}
	})
}

// CurrentURL returns the current page URL.
func CurrentURL(ctx context.Context) (string, error) {
	var url string
	if err := chromedp.Run(ctx, chromedp.Location(&url)); err != nil {
		return "", err
	}
	return url, nil
}
