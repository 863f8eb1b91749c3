//go:build !tinygo

package server

import (
	"golang.org/x/crypto/acme/autocert"
)

// ServeTLS serves on host's port 443 with a Let's Encrypt certificate
func (s *Server) ServeTLS(host string) error {
	return s.Serve(autocert.NewListener(host))
}
