package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// skipWireAnnotation marks commands that run without settings or storage.
const skipWireAnnotation = "sessionkit/skip-wire"

func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return newRootCmd().ExecuteContext(ctx)
}

type rootOptions struct {
	configPath     string
	baseURL        string
	logLevel       string
	storageBackend string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	shared := &app{}

	rootCmd := &cobra.Command{
		Use:   "sk",
		Short: "sessionkit CLI (sk): bearer-token sessions against JSON backends",
		Long: "sk logs in to a JSON backend, keeps the session token in local storage, " +
			"sends authenticated requests and follows the backend's live event channel.",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Annotations[skipWireAnnotation] == "true" {
				return nil
			}

			v, err := newViper(opts.configPath, cmd.Flags())
			if err != nil {
				return err
			}
			wired, err := wireApp(cmd.Context(), v, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			*shared = *wired
			return nil
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "Config file (default ~/.sessionkit/config.toml)")
	flags.StringVar(&opts.baseURL, "base-url", "", "Backend base URL, e.g. http://127.0.0.1:8787/api")
	flags.StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	flags.StringVar(&opts.storageBackend, "storage", "", "Token storage backend: toml, file, pass, chain")

	rootCmd.AddCommand(
		newVersionCmd(),
		newLoginCmd(shared),
		newLogoutCmd(shared),
		newWhoamiCmd(shared),
		newStatusCmd(shared),
		newEventsCmd(shared),
		newDevServerCmd(),
	)
	rootCmd.AddCommand(newRequestCmds(shared)...)

	return rootCmd
}
