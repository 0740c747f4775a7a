package cli

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
)

func newWaitCmd(a *app) *cobra.Command {
	var (
		dir     string
		since   string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "wait",
		Short: "Wait for a finished export to appear in a directory",
		Long: `Polls a directory until a finished export modified at or after --since
appears, then prints its path. Useful when a browser was driven by hand.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg
			if dir == "" {
				dir = cfg.Download.Dir
			}
			watchDir, err := filepath.Abs(dir)
			if err != nil {
				return fmt.Errorf("resolving directory: %w", err)
			}
			if timeout <= 0 {
				timeout = cfg.Download.Timeout
			}

			cutoff := time.Now()
			if since != "" {
				t, err := time.Parse(time.RFC3339, since)
				if err != nil {
					return fmt.Errorf("invalid --since %q, want RFC3339: %w", since, err)
				}
				cutoff = t
			}

			detector := a.detector(cfg.Download, a.logger)
			deadline := time.Now().Add(timeout)

			path, err := detector.AwaitFile(cmd.Context(), watchDir, cutoff, cfg.Download.PollInterval, deadline)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "d", "", "directory to watch (default download.dir)")
	cmd.Flags().StringVar(&since, "since", "", "only accept files modified at or after this RFC3339 time (default now)")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "how long to wait (default download.timeout)")
	return cmd
}
