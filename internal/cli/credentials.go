package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cantalupo555/enotifikasi-exporter/internal/auth"
)

func newCredentialsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credentials",
		Short: "Manage the portal password in the system keyring",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set",
		Short: "Prompt for the portal password and store it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			username := a.cfg.Portal.Username
			if username == "" {
				return auth.ErrNoUsername
			}
			secret, err := auth.ReadSecret(a.stdin, cmd.ErrOrStderr(), fmt.Sprintf("Password for %s: ", username))
			if err != nil {
				return err
			}
			if err := auth.Store(username, secret); err != nil {
				return err
			}
			a.logger.Info("Stored password in keyring", zap.String("username", username))
			fmt.Fprintf(cmd.OutOrStdout(), "Password for %s saved.\n", username)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete",
		Short: "Remove the stored portal password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			username := a.cfg.Portal.Username
			if username == "" {
				return auth.ErrNoUsername
			}
			if err := auth.Forget(username); err != nil {
				return err
			}
			a.logger.Info("Removed password from keyring", zap.String("username", username))
			fmt.Fprintf(cmd.OutOrStdout(), "Password for %s removed.\n", username)
			return nil
		},
	})
	return cmd
}
