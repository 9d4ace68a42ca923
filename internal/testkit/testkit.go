// Package testkit runs the manual server end to end for tests: real flags,
// real settings loading and a real HTTP listener on a free port.
package testkit

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sha1n/mcp-manual-server/internal/app"
	"github.com/sha1n/mcp-manual-server/internal/config"
	"github.com/sha1n/mcp-manual-server/internal/library"
	"github.com/spf13/pflag"
)

// GetFreePort returns a free port from the kernel
func GetFreePort() (int, error) {
	addr, err := net.ResolveTCPAddr("tcp", "localhost:0")
	if err != nil {
		return 0, err
	}
	l, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return 0, err
	}
	defer func() { _ = l.Close() }()
	return l.Addr().(*net.TCPAddr).Port, nil
}

// MustGetFreePort returns a free port or fails the test
func MustGetFreePort(t testing.TB) int {
	t.Helper()
	port, err := GetFreePort()
	if err != nil {
		t.Fatalf("Failed to get free port: %v", err)
	}
	return port
}

// FlagOptions configures NewTestFlags
type FlagOptions struct {
	Port     int      // Uses free port if 0
	AuthType string   // Defaults to "none"
	APIKeys  []string // Used with AuthType "apikey"
	Sources  []string
	BaseDir  string // Defaults to a temp dir
}

// NewTestFlags creates a parsed SSE flag set for the given options.
func NewTestFlags(t testing.TB, opts FlagOptions) *pflag.FlagSet {
	t.Helper()

	if opts.Port == 0 {
		opts.Port = MustGetFreePort(t)
	}
	if opts.AuthType == "" {
		opts.AuthType = config.AuthTypeNone
	}
	if opts.BaseDir == "" {
		opts.BaseDir = t.TempDir()
	}

	args := []string{
		"--transport", config.TransportSSE,
		"--host", "localhost",
		"--port", fmt.Sprint(opts.Port),
		"--auth-type", opts.AuthType,
		"--base-dir", opts.BaseDir,
		"--debounce-delay", "10ms",
	}
	for _, s := range opts.Sources {
		args = append(args, "--sources", s)
	}
	for _, k := range opts.APIKeys {
		args = append(args, "--auth-api-keys", k)
	}

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	app.RegisterFlags(flags)
	if err := flags.Parse(args); err != nil {
		t.Fatalf("Failed to parse flags: %v", err)
	}
	return flags
}

// WritePage writes an HTML page into dir and returns its path.
func WritePage(t testing.TB, dir, name, html string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(html), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
	return path
}

// Server is a running manual server.
type Server struct {
	URL string

	mu   sync.Mutex
	srv  *http.Server
	done chan error
}

// StartServer runs the server with production dependencies except for the
// HTTP listener, which it keeps so Stop can shut it down. It returns once
// /health answers and registers Stop as test cleanup.
func StartServer(t testing.TB, flags *pflag.FlagSet) *Server {
	t.Helper()

	s := &Server{done: make(chan error, 1)}
	params := app.DefaultRunParams()
	params.StartSSEServer = func(ms *mcp.Server, svc *library.Service, settings *config.Settings) error {
		srv, err := app.NewSSEServer(ms, svc, settings)
		if err != nil {
			return err
		}
		s.mu.Lock()
		s.srv = srv
		s.URL = "http://" + srv.Addr
		s.mu.Unlock()
		return srv.ListenAndServe()
	}

	go func() {
		s.done <- app.RunWithDeps(context.Background(), params, flags, "test")
	}()
	t.Cleanup(func() {
		if err := s.Stop(); err != nil {
			t.Errorf("Failed to stop server: %v", err)
		}
	})

	if err := s.waitHealthy(10 * time.Second); err != nil {
		t.Fatalf("Server did not start: %v", err)
	}
	return s
}

func (s *Server) waitHealthy(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		select {
		case err := <-s.done:
			s.done <- err
			return fmt.Errorf("server exited: %w", err)
		default:
		}

		s.mu.Lock()
		url := s.URL
		s.mu.Unlock()
		if url != "" {
			if resp, err := http.Get(url + "/health"); err == nil {
				_ = resp.Body.Close()
				if resp.StatusCode == http.StatusOK {
					return nil
				}
			}
		}
		time.Sleep(20 * time.Millisecond)
	}
	return errors.New("timed out waiting for /health")
}

// Stop shuts the HTTP server down and waits for the run to return.
func (s *Server) Stop() error {
	s.mu.Lock()
	srv := s.srv
	s.srv = nil
	s.mu.Unlock()
	if srv == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		// open SSE streams never go idle
		_ = srv.Close()
	}
	if err := <-s.done; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Connect opens an MCP client session over SSE. The session is closed on
// test cleanup.
func (s *Server) Connect(t testing.TB, httpClient *http.Client) *mcp.ClientSession {
	t.Helper()
	client := mcp.NewClient(&mcp.Implementation{Name: "testkit", Version: "1.0.0"}, nil)
	session, err := client.Connect(context.Background(), &mcp.SSEClientTransport{
		Endpoint:   s.URL + "/sse",
		HTTPClient: httpClient,
	}, nil)
	if err != nil {
		t.Fatalf("Failed to connect MCP client: %v", err)
	}
	t.Cleanup(func() { _ = session.Close() })
	return session
}
