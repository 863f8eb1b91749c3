package report

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/merliot/station"
	"golang.org/x/net/websocket"
)

func TestWebSocketReport(t *testing.T) {
	c := qt.New(t)

	got := make(chan Report, 1)
	auth := make(chan string, 1)
	srv := httptest.NewServer(websocket.Handler(func(ws *websocket.Conn) {
		user, passwd, _ := ws.Request().BasicAuth()
		auth <- user + ":" + passwd
		var r Report
		if err := websocket.JSON.Receive(ws, &r); err == nil {
			got <- r
		}
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	w := NewWebSocket(url, "user", "passwd")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := w.Report(ctx, Report{SSID: "lab", Outcome: station.OutcomeConnected, Addr: "192.168.4.2"})
	c.Assert(err, qt.IsNil)

	select {
	case r := <-got:
		c.Assert(r.SSID, qt.Equals, "lab")
		c.Assert(r.Outcome, qt.Equals, station.OutcomeConnected)
		c.Assert(r.Addr, qt.Equals, "192.168.4.2")
	case <-time.After(5 * time.Second):
		c.Fatal("no report received")
	}
	c.Assert(<-auth, qt.Equals, "user:passwd")
}

func TestWebSocketDialError(t *testing.T) {
	c := qt.New(t)
	srv := httptest.NewServer(http.NotFoundHandler())
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	srv.Close()

	err := NewWebSocket(url, "", "").Report(context.Background(), Report{})
	c.Assert(err, qt.ErrorMatches, "websocket dial .*")
}
