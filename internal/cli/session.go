package cli

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/cantalupo555/enotifikasi-exporter/internal/auth"
	"github.com/cantalupo555/enotifikasi-exporter/internal/browser"
	"github.com/cantalupo555/enotifikasi-exporter/internal/config"
	"github.com/cantalupo555/enotifikasi-exporter/internal/download"
	"github.com/cantalupo555/enotifikasi-exporter/internal/navigation"
)

// session is a running browser an export drives.
type session interface {
	// Context is the context every browser call must descend from.
	Context() context.Context
	Engine(logger *zap.Logger) navigation.Engine
	CurrentURL() (string, error)
	// LoggedIn reports whether the page has left the sign-in form.
	LoggedIn() (bool, error)
	Close()
}

// chromeSession is a session backed by a chromedp browser.
type chromeSession struct {
	bc *browser.Context
}

// launchChrome starts the browser described by cfg and logs its download
// events.
func launchChrome(ctx context.Context, cfg browser.Config, logger *zap.Logger) (session, error) {
	bc, err := browser.New(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	browser.WatchDownloads(bc.Ctx, logger)
	return chromeSession{bc}, nil
}

func (s chromeSession) Context() context.Context { return s.bc.Ctx }

func (s chromeSession) Close() { s.bc.Close() }

func (s chromeSession) Engine(logger *zap.Logger) navigation.Engine {
	return browser.NewEngine(logger)
}

func (s chromeSession) CurrentURL() (string, error) { return browser.CurrentURL(s.bc.Ctx) }

func (s chromeSession) LoggedIn() (bool, error) { return auth.CheckLoginStatus(s.bc.Ctx) }

// fileAwaiter waits for a finished export in a directory.
type fileAwaiter interface {
	AwaitFile(ctx context.Context, dir string, cutoff time.Time, pollInterval time.Duration, deadline time.Time) (string, error)
}

func newDetector(cfg config.DownloadConfig, logger *zap.Logger) fileAwaiter {
	return download.NewDetector(
		download.WithExtension(cfg.Extension),
		download.WithMarkers(cfg.Markers...),
		download.WithLogger(logger),
	)
}
