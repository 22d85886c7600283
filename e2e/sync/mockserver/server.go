// Package mockserver provides mock Polygon and S3 servers for testing.
// Both run on a random local port and are routed with gorilla/mux.
package mockserver

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/mux"
)

// server holds the listener plumbing shared by the mocks.
type server struct {
	httpServer *http.Server
	listener   net.Listener
}

func (s *server) start(address string, router *mux.Router) error {
	if address == "" {
		address = "127.0.0.1:0"
	}

	listener, err := net.Listen("tcp", address)
	if err != nil {
		return fmt.Errorf("failed to create listener: %w", err)
	}

	s.listener = listener
	s.httpServer = &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.httpServer.Serve(listener); err != http.ErrServerClosed {
			fmt.Printf("HTTP server error: %v\n", err)
		}
	}()

	return nil
}

// Stop shuts the server down.
func (s *server) Stop() error {
	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		return s.httpServer.Shutdown(ctx)
	}

	return nil
}

// Address returns the address the server is listening on.
func (s *server) Address() string {
	if s.listener == nil {
		return ""
	}

	return s.listener.Addr().String()
}

// BaseURL returns the base URL for the server.
func (s *server) BaseURL() string {
	return "http://" + s.Address()
}

// RedirectTransport sends every request to target regardless of the host the client asked for.
// It lets clients with a hard-coded base URL talk to a mock server.
type RedirectTransport struct {
	Target *url.URL
	Base   http.RoundTripper
}

// RoundTrip implements http.RoundTripper.
func (t *RedirectTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	clone.URL.Scheme = t.Target.Scheme
	clone.URL.Host = t.Target.Host
	clone.Host = t.Target.Host

	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	return base.RoundTrip(clone)
}

// HTTPClient returns a client whose requests all land on baseURL.
func HTTPClient(baseURL string) (*http.Client, error) {
	target, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}

	return &http.Client{
		Transport: &RedirectTransport{Target: target},
		Timeout:   10 * time.Second,
	}, nil
}
