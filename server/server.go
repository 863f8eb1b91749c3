// Package server exposes a station's current attempt over HTTP: a JSON
// status page, a websocket that delivers the report once the attempt is
// over, and optionally the Prometheus metrics.
package server

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"time"

	"golang.org/x/net/websocket"

	"github.com/merliot/station"
	"github.com/merliot/station/report"
)

type Server struct {
	http.Server
	station *station.Station
	mux     *http.ServeMux
	user    string
	passwd  string
}

// New returns a server for s listening on addr.  metrics may be nil.
func New(addr string, s *station.Station, metrics http.Handler) *Server {
	srv := &Server{station: s, mux: http.NewServeMux()}
	srv.Addr = addr
	srv.Handler = srv.mux
	srv.ReadHeaderTimeout = 5 * time.Second

	srv.HandleFunc("/status", srv.status)
	srv.mux.Handle("/ws", srv.basicAuth(websocket.Handler(srv.outcome).ServeHTTP))
	if metrics != nil {
		srv.HandleFunc("/metrics", metrics.ServeHTTP)
	}
	return srv
}

func (s *Server) BasicAuth(user, passwd string) {
	s.user, s.passwd = user, passwd
}

func (s *Server) HandleFunc(pattern string, handler http.HandlerFunc) {
	s.mux.HandleFunc(pattern, s.basicAuth(handler))
}

// current returns the report for the current attempt as it stands, or false
// before the first attempt
func (s *Server) current() (report.Report, bool) {
	attempt := s.station.Attempt()
	if attempt == nil {
		return report.Report{}, false
	}
	outcome, _ := attempt.Outcome().Outcome()
	return report.New(s.station.Config(), attempt, outcome), true
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	rep, ok := s.current()
	if !ok {
		http.Error(w, "no connection attempt", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rep)
}

// outcome waits for the current attempt to finish and sends its report
func (s *Server) outcome(ws *websocket.Conn) {
	defer ws.Close()
	attempt := s.station.Attempt()
	if attempt == nil {
		return
	}
	if rep, ok := s.awaitReport(ws.Request().Context(), attempt); ok {
		websocket.JSON.Send(ws, rep)
	}
}

// awaitReport waits for attempt to finish and returns its report, or false
// if ctx ends first.  A later Start does not change which attempt is
// reported.
func (s *Server) awaitReport(ctx context.Context, attempt *station.Attempt) (report.Report, bool) {
	outcome := attempt.Outcome().Wait(ctx)
	if !outcome.Terminal() {
		return report.Report{}, false
	}
	return report.New(s.station.Config(), attempt, outcome), true
}

func (s *Server) basicAuth(next http.HandlerFunc) http.HandlerFunc {
	return http.HandlerFunc(func(writer http.ResponseWriter, r *http.Request) {

		// skip basic authentication if no user
		if s.user == "" {
			next.ServeHTTP(writer, r)
			return
		}

		ruser, rpasswd, ok := r.BasicAuth()

		if ok {
			userHash := sha256.Sum256([]byte(s.user))
			passHash := sha256.Sum256([]byte(s.passwd))
			ruserHash := sha256.Sum256([]byte(ruser))
			rpassHash := sha256.Sum256([]byte(rpasswd))

			userMatch := (subtle.ConstantTimeCompare(userHash[:], ruserHash[:]) == 1)
			passMatch := (subtle.ConstantTimeCompare(passHash[:], rpassHash[:]) == 1)

			if userMatch && passMatch {
				next.ServeHTTP(writer, r)
				return
			}
		}

		writer.Header().Set("WWW-Authenticate", `Basic realm="restricted", charset="UTF-8"`)
		http.Error(writer, "Unauthorized", http.StatusUnauthorized)
	})
}
