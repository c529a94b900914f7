package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

type loginOptions struct {
	username      string
	password      string
	passwordStdin bool
}

func newLoginCmd(app *app) *cobra.Command {
	opts := &loginOptions{}

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the session token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			password := opts.password
			if opts.passwordStdin {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("read password from stdin: %w", err)
				}
				password = strings.TrimRight(line, "\r\n")
			}
			if password == "" {
				return errors.New("password is required: use --password or --password-stdin")
			}

			label := fmt.Sprintf("Logging in as %s...", opts.username)
			err := runSpinner(cmd.Context(), cmd.ErrOrStderr(), label, func(ctx context.Context) (string, error) {
				if err := app.session.Login(ctx, opts.username, password); err != nil {
					return "", err
				}
				return loginSummary(app, opts.username), nil
			})
			if err != nil {
				return fmt.Errorf("login failed: %w", err)
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), loginSummary(app, opts.username))
			return err
		},
	}

	cmd.Flags().StringVarP(&opts.username, "username", "u", "", "Username")
	cmd.Flags().StringVarP(&opts.password, "password", "p", "", "Password")
	cmd.Flags().BoolVar(&opts.passwordStdin, "password-stdin", false, "Read the password from stdin")
	_ = cmd.MarkFlagRequired("username")
	cmd.MarkFlagsMutuallyExclusive("password", "password-stdin")

	return cmd
}

// loginSummary names the signed-in user by the profile the server returned,
// falling back to the username given on the command line.
func loginSummary(app *app, username string) string {
	name := app.session.State().User.DisplayName()
	if name == "" {
		name = username
	}
	return "Logged in as " + name
}
