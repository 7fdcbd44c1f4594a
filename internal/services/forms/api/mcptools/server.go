package mcptools

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	serverName    = "forms-mcp"
	serverVersion = "0.1.0"
)

// Server hosts the forms MCP tools.
type Server struct {
	mcpServer *mcp.Server
	closer    io.Closer
}

// New creates an MCP server exposing the form administration tools. closer,
// when set, is closed once serving ends.
func New(service Service, closer io.Closer) (*Server, error) {
	if service == nil {
		return nil, fmt.Errorf("form admin service is required")
	}
	mcpServer := mcp.NewServer(&mcp.Implementation{Name: serverName, Version: serverVersion}, nil)
	registerTools(mcpServer, service)
	return &Server{mcpServer: mcpServer, closer: closer}, nil
}

// Serve starts the MCP server on stdio and blocks until it stops or the context ends.
func (s *Server) Serve(ctx context.Context) error {
	return s.serveWithTransport(ctx, &mcp.StdioTransport{})
}

// Close releases the resources held by the server.
func (s *Server) Close() error {
	if s == nil || s.closer == nil {
		return nil
	}
	if err := s.closer.Close(); err != nil {
		return err
	}
	s.closer = nil
	return nil
}

// serveWithTransport starts the MCP server using the provided transport.
func (s *Server) serveWithTransport(ctx context.Context, transport mcp.Transport) error {
	if s == nil || s.mcpServer == nil {
		return fmt.Errorf("MCP server is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	err := s.mcpServer.Run(ctx, transport)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		err = nil
	}
	closeErr := s.Close()
	if err != nil {
		return err
	}
	return closeErr
}
