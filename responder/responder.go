// Package responder serves a fixed greeting body over plain HTTP or TLS.
package responder

import (
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"

	"golang.org/x/net/http2"
)

const (
	HTTPPort  = 8080
	HTTPSPort = 8443
)

// Handler answers every request, whatever the method or path, with 200 and
// body as text/plain.
func Handler(body string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, body)
	})
}

// Addr joins host and port. host is the machine hostname, so the listener
// binds to whatever address it resolves to rather than a wildcard.
func Addr(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}

type Server struct {
	Server   *http.Server
	Listener net.Listener
	scheme   string
}

func NewHTTP(addr string, h http.Handler) (*Server, error) {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}
	return &Server{
		Server:   &http.Server{Addr: addr, Handler: h},
		Listener: l,
		scheme:   "http",
	}, nil
}

// NewHTTPS binds addr and terminates TLS with cfg. HTTP/2 is negotiated via
// ALPN alongside HTTP/1.1.
func NewHTTPS(addr string, h http.Handler, cfg *tls.Config) (*Server, error) {
	s := &http.Server{
		Addr:      addr,
		Handler:   h,
		TLSConfig: cfg.Clone(),
	}
	if err := http2.ConfigureServer(s, &http2.Server{}); err != nil {
		return nil, fmt.Errorf("configure http2: %w", err)
	}
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}
	return &Server{
		Server:   s,
		Listener: tls.NewListener(l, s.TLSConfig),
		scheme:   "https",
	}, nil
}

// Run serves until the server is closed.
func (s *Server) Run() error {
	err := s.Server.Serve(s.Listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Close drops the listener and every open connection immediately.
func (s *Server) Close() error {
	return s.Server.Close()
}

// URL is the address announced in the startup line, using host instead of
// the numeric listener address.
func (s *Server) URL(host string) string {
	_, port, err := net.SplitHostPort(s.Listener.Addr().String())
	if err != nil {
		return s.scheme + "://" + s.Listener.Addr().String() + "/"
	}
	return s.scheme + "://" + net.JoinHostPort(host, port) + "/"
}
