package cmd

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/bnema/sessionkit/internal/devserver"
	"github.com/bnema/sessionkit/internal/logging"
	"github.com/spf13/cobra"
)

type devServerOptions struct {
	addr     string
	users    []string
	tokenTTL time.Duration
}

func newDevServerCmd() *cobra.Command {
	opts := &devServerOptions{}

	cmd := &cobra.Command{
		Use:   "dev-server",
		Short: "Run an in-memory backend to try sk against",
		Long: "dev-server serves login, profile, item CRUD and live events under " + devserver.PathPrefix +
			". Accounts are seeded with --user; demo:demo is used when none are given.",
		Args: cobra.NoArgs,
		Annotations: map[string]string{
			skipWireAnnotation: "true",
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			users, err := parseUsers(opts.users)
			if err != nil {
				return err
			}

			logLevel := "info"
			if flag := cmd.Flags().Lookup("log-level"); flag != nil && flag.Changed {
				logLevel = flag.Value.String()
			}

			server, err := devserver.New(devserver.Config{
				Users:    users,
				TokenTTL: opts.tokenTTL,
				Logger:   logging.New(cmd.ErrOrStderr(), logLevel),
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			return server.ListenAndServe(cmd.Context(), opts.addr, func(addr net.Addr) {
				_, _ = fmt.Fprintf(out, "Serving on http://%s%s\n", addr, devserver.PathPrefix)
			})
		},
	}

	cmd.Flags().StringVar(&opts.addr, "addr", devserver.DefaultAddr, "Listen address")
	cmd.Flags().StringArrayVar(&opts.users, "user", nil, "Seed account as username:password (repeatable)")
	cmd.Flags().DurationVar(&opts.tokenTTL, "token-ttl", devserver.DefaultTokenTTL, "Lifetime of issued tokens")
	return cmd
}

func parseUsers(values []string) ([]devserver.Credentials, error) {
	users := make([]devserver.Credentials, 0, len(values))
	for _, value := range values {
		username, password, ok := strings.Cut(value, ":")
		if !ok || username == "" || password == "" {
			return nil, fmt.Errorf("invalid --user %q: want username:password", value)
		}
		users = append(users, devserver.Credentials{
			Username: username,
			Password: password,
			Name:     username,
		})
	}
	return users, nil
}
