// Package server wires the forms runtime and HTTP lifecycle.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/mw/forms/internal/platform/config"
	"github.com/mw/forms/internal/platform/timeouts"
	adminhttp "github.com/mw/forms/internal/services/forms/api/http/formadmin"
	"github.com/mw/forms/internal/services/forms/formadmin"
	formsqlite "github.com/mw/forms/internal/services/forms/storage/sqlite"
)

type serverEnv struct {
	DBPath string `env:"DB_PATH"`
}

func loadServerEnv() serverEnv {
	var cfg serverEnv
	_ = config.ParseEnv(&cfg)
	if strings.TrimSpace(cfg.DBPath) == "" {
		cfg.DBPath = filepath.Join("data", "forms.db")
	}
	return cfg
}

// Server hosts the forms admin HTTP API and storage lifecycle.
type Server struct {
	listener   net.Listener
	httpServer *http.Server
	store      *formsqlite.Store
}

// NewWithAddr creates a configured forms server for the provided address.
// jwtSecret signs and verifies admin bearer tokens.
func NewWithAddr(addr, jwtSecret string) (*Server, error) {
	auth, err := adminhttp.NewAuthenticator(jwtSecret)
	if err != nil {
		return nil, err
	}
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	store, err := OpenStore(loadServerEnv().DBPath)
	if err != nil {
		_ = listener.Close()
		return nil, err
	}

	handler := adminhttp.NewHandler(NewService(store), auth)
	httpServer := &http.Server{
		Handler:           http.TimeoutHandler(handler, timeouts.Request, "request timed out"),
		ReadHeaderTimeout: timeouts.ReadHeader,
	}

	return &Server{
		listener:   listener,
		httpServer: httpServer,
		store:      store,
	}, nil
}

// NewService builds the admin service over one SQLite store.
func NewService(store *formsqlite.Store) *formadmin.Service {
	return formadmin.NewService(formadmin.Stores{
		Forms:       store,
		Structures:  store,
		Permissions: store,
		Roles:       store,
	})
}

// OpenStore opens the SQLite store at path, creating its directory when needed.
func OpenStore(path string) (*formsqlite.Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}
	store, err := formsqlite.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open forms sqlite store: %w", err)
	}
	return store, nil
}

// Addr returns the listener address for the server.
func (s *Server) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Run creates and serves a forms server until context cancellation.
func Run(ctx context.Context, addr, jwtSecret string) error {
	server, err := NewWithAddr(addr, jwtSecret)
	if err != nil {
		return err
	}
	return server.Serve(ctx)
}

// Serve starts the HTTP server until context cancellation.
func (s *Server) Serve(ctx context.Context) error {
	if s == nil {
		return errors.New("server is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	defer s.Close()

	log.Printf("forms server listening at %v", s.listener.Addr())
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.httpServer.Serve(s.listener)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown HTTP: %w", err)
		}
		err := <-serveErr
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve HTTP: %w", err)
	case err := <-serveErr:
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve HTTP: %w", err)
	}
}

// Close releases forms server resources.
func (s *Server) Close() {
	if s == nil {
		return
	}
	if s.httpServer != nil {
		_ = s.httpServer.Close()
	}
	if s.listener != nil {
		_ = s.listener.Close()
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			log.Printf("close forms store: %v", err)
		}
		s.store = nil
	}
}
