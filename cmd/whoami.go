package cmd

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/bnema/sessionkit/internal/adapters/render/format"
	"github.com/bnema/sessionkit/internal/domain"
	"github.com/spf13/cobra"
)

var (
	errNotLoggedIn     = errors.New("not logged in: run `sk login`")
	errSessionRejected = errors.New("session is no longer valid: run `sk login`")
)

func newWhoamiCmd(app *app) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the profile of the logged in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !app.session.State().HasToken() {
				return errNotLoggedIn
			}

			app.session.LoadUser(cmd.Context())
			state := app.session.State()
			if !state.IsAuthenticated || state.User == nil {
				return errSessionRejected
			}

			if output == "text" {
				return writeUser(cmd.OutOrStdout(), state.User)
			}
			return format.Encode(cmd.OutOrStdout(), output, map[string]any(state.User))
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "text", "Output format: text, json, yaml, toml")
	return cmd
}

func writeUser(w io.Writer, user domain.User) error {
	var b strings.Builder
	fmt.Fprintln(&b, user.DisplayName())

	keys := make([]string, 0, len(user))
	for key := range user {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	for _, key := range keys {
		fmt.Fprintf(&b, "  %s: %v\n", key, user[key])
	}

	_, err := io.WriteString(w, b.String())
	return err
}
