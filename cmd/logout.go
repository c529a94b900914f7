package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newLogoutCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session and remove the stored token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			hadSession := app.session.State().HasToken()
			if err := app.session.Logout(cmd.Context()); err != nil {
				return err
			}

			// The server-side revoke runs in the background; give it a
			// chance to finish before the process exits.
			select {
			case <-app.logoutDone:
			case <-time.After(logoutTimeout + time.Second):
				app.logger.Warnf("server-side logout did not finish in time")
			case <-cmd.Context().Done():
			}

			message := "Logged out."
			if !hadSession {
				message = "No active session."
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), message)
			return err
		},
	}
}
