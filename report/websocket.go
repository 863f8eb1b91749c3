package report

import (
	"context"
	"fmt"
	"net/http"

	"golang.org/x/net/websocket"
)

// WebSocket sends each report as a single JSON message on a fresh websocket
// connection, the way a device announces itself to its hub
type WebSocket struct {
	url    string
	origin string
	user   string
	passwd string
}

// NewWebSocket returns a reporter dialing url.  user may be empty to skip
// basic auth.
func NewWebSocket(url, user, passwd string) *WebSocket {
	return &WebSocket{url: url, origin: "http://localhost/", user: user, passwd: passwd}
}

func (w *WebSocket) Report(ctx context.Context, r Report) error {
	config, err := websocket.NewConfig(w.url, w.origin)
	if err != nil {
		return fmt.Errorf("websocket config: %w", err)
	}

	if w.user != "" {
		// Set the basic auth header for the request
		req, err := http.NewRequest("GET", w.url, nil)
		if err != nil {
			return err
		}
		req.SetBasicAuth(w.user, w.passwd)
		config.Header = req.Header
	}

	conn, err := websocket.DialConfig(config)
	if err != nil {
		return fmt.Errorf("websocket dial %s: %w", w.url, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	return websocket.JSON.Send(conn, r)
}
