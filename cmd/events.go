package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/bnema/sessionkit/internal/adapters/events"
	"github.com/bnema/sessionkit/internal/domain"
	"github.com/spf13/cobra"
)

type eventsOptions struct {
	path      string
	limit     int
	noAuth    bool
	websocket bool
}

func newEventsCmd(app *app) *cobra.Command {
	opts := &eventsOptions{}

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Follow the backend's live event channel",
		Long: "Print every event pushed by the backend as one JSON line. " +
			"The stream runs until interrupted, the server closes it or --limit events were seen.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := opts.path
			if path == "" {
				path = app.settings.EventsPath
			}
			baseURL := app.settings.BaseURL
			if opts.websocket {
				baseURL = websocketURL(baseURL)
			}

			received := make(chan domain.Event, 16)
			failed := make(chan error, 1)
			stop := make(chan struct{})
			sub, err := events.Connect(cmd.Context(), events.Config{
				BaseURL:    baseURL,
				Path:       path,
				SkipAuth:   opts.noAuth,
				TokenKey:   app.settings.TokenKey,
				Storage:    app.storage,
				HTTPClient: streamingClient(app),
				Logger:     app.logger,
				OnEvent: func(event domain.Event) {
					select {
					case received <- event:
					case <-stop:
					}
				},
				OnError: func(err error) { failed <- err },
			})
			if err != nil {
				return err
			}
			defer func() { _ = sub.Close() }()
			defer close(stop)

			out := cmd.OutOrStdout()
			seen := 0
			for {
				select {
				case event := <-received:
					line, err := json.Marshal(event)
					if err != nil {
						return fmt.Errorf("encode event: %w", err)
					}
					if _, err := fmt.Fprintln(out, string(line)); err != nil {
						return err
					}
					seen++
					if opts.limit > 0 && seen >= opts.limit {
						return nil
					}
				case err := <-failed:
					if errors.Is(err, events.ErrStreamEnded) {
						return nil
					}
					return fmt.Errorf("event stream: %w", err)
				case <-cmd.Context().Done():
					return nil
				}
			}
		},
	}

	cmd.Flags().StringVar(&opts.path, "path", "", "Event channel path (default from config, /events)")
	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 0, "Stop after this many events (0 follows forever)")
	cmd.Flags().BoolVar(&opts.noAuth, "no-auth", false, "Do not send the session token")
	cmd.Flags().BoolVar(&opts.websocket, "ws", false, "Use the websocket transport instead of Server-Sent Events")
	return cmd
}

func websocketURL(baseURL string) string {
	switch {
	case strings.HasPrefix(baseURL, "https://"):
		return "wss://" + strings.TrimPrefix(baseURL, "https://")
	case strings.HasPrefix(baseURL, "http://"):
		return "ws://" + strings.TrimPrefix(baseURL, "http://")
	default:
		return baseURL
	}
}
