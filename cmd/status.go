package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bnema/sessionkit/internal/adapters/render/format"
	"github.com/bnema/sessionkit/internal/adapters/render/status"
	"github.com/bnema/sessionkit/internal/application"
	"github.com/bnema/sessionkit/internal/domain"
	"github.com/spf13/cobra"
)

type statusOptions struct {
	check  bool
	output string
}

type statusReport struct {
	BaseURL       string         `json:"base_url" yaml:"base_url"`
	Storage       string         `json:"storage" yaml:"storage"`
	Authenticated bool           `json:"authenticated" yaml:"authenticated"`
	TokenPresent  bool           `json:"token_present" yaml:"token_present"`
	Subject       string         `json:"subject,omitempty" yaml:"subject,omitempty"`
	ExpiresAt     *time.Time     `json:"expires_at,omitempty" yaml:"expires_at,omitempty"`
	Expired       bool           `json:"expired" yaml:"expired"`
	User          map[string]any `json:"user" yaml:"user"`
	Error         string         `json:"error,omitempty" yaml:"error,omitempty"`
}

func newStatusCmd(app *app) *cobra.Command {
	opts := &statusOptions{}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the local session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.check && app.session.State().HasToken() {
				err := runSpinner(cmd.Context(), cmd.ErrOrStderr(), "Checking session...", func(ctx context.Context) (string, error) {
					app.session.LoadUser(ctx)
					return "", nil
				})
				if err != nil {
					return err
				}
			}

			state := app.session.State()
			claims, err := sessionClaims(app.session)
			if err != nil {
				return err
			}

			if opts.output == "text" {
				out, err := status.Render(status.Session{
					State:   state,
					Claims:  claims,
					BaseURL: app.settings.BaseURL,
					Storage: app.settings.StorageBackend,
				}, status.RenderOptions{Now: app.now()})
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), out)
				return err
			}

			return format.Encode(cmd.OutOrStdout(), opts.output, newStatusReport(app, state, claims))
		},
	}

	cmd.Flags().BoolVar(&opts.check, "check", false, "Validate the token against the backend first")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "text", "Output format: text, json, yaml")
	return cmd
}

// sessionClaims decodes the current token. Opaque tokens and missing
// sessions yield nil claims.
func sessionClaims(session *application.SessionStore) (*application.TokenClaims, error) {
	claims, err := session.TokenClaims()
	switch {
	case err == nil:
		return &claims, nil
	case errors.Is(err, domain.ErrNoSession), errors.Is(err, domain.ErrOpaqueToken):
		return nil, nil
	default:
		return nil, err
	}
}

func newStatusReport(app *app, state domain.SessionState, claims *application.TokenClaims) statusReport {
	report := statusReport{
		BaseURL:       app.settings.BaseURL,
		Storage:       app.settings.StorageBackend,
		Authenticated: state.IsAuthenticated,
		TokenPresent:  state.HasToken(),
		User:          state.User,
		Error:         state.Error,
	}
	if claims != nil {
		report.Subject = claims.Subject
		if !claims.ExpiresAt.IsZero() {
			expires := claims.ExpiresAt.UTC()
			report.ExpiresAt = &expires
		}
		report.Expired = claims.Expired(app.now())
	}
	return report
}
