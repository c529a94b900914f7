package events

import (
	"context"
	"fmt"
	"io"
	"net/http"

	sse "github.com/tmaxmax/go-sse"
)

const maxEventSize = 1 << 20

func openEventStream(ctx context.Context, cfg Config, target string, deliver func([]byte)) (func() error, func() error, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("create event stream request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := cfg.HTTPClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("open event stream: %w", err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		_ = resp.Body.Close()
		return nil, nil, fmt.Errorf("open event stream: HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	read := func() error {
		return readEventStream(resp.Body, func(event, data string) {
			if event != "" && event != "message" {
				return
			}
			deliver([]byte(data))
		})
	}
	return read, resp.Body.Close, nil
}

// readEventStream parses text/event-stream framing from r and calls dispatch
// for every event that carries data. It returns nil on a clean end of
// stream, so a trailing event cut off by EOF is still dispatched.
func readEventStream(r io.Reader, dispatch func(event, data string)) error {
	for event, err := range sse.Read(r, &sse.ReadConfig{MaxEventSize: maxEventSize}) {
		if err != nil {
			return fmt.Errorf("read event stream: %w", err)
		}
		if event.Data == "" {
			continue
		}
		dispatch(event.Type, event.Data)
	}
	return nil
}
