package events

import (
	"context"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
)

func dialWebsocket(ctx context.Context, cfg Config, target string, deliver func([]byte)) (func() error, func() error, error) {
	conn, resp, err := cfg.Dialer.DialContext(ctx, target, nil)
	if err != nil {
		if resp != nil {
			return nil, nil, fmt.Errorf("open event socket: HTTP %d: %w", resp.StatusCode, err)
		}
		return nil, nil, fmt.Errorf("open event socket: %w", err)
	}

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })

	read := func() error {
		defer stop()
		for {
			messageType, payload, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					return nil
				}
				return err
			}
			if messageType != websocket.TextMessage {
				continue
			}
			deliver(payload)
		}
	}

	closeConn := func() error {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		return conn.Close()
	}
	return read, closeConn, nil
}
