// Package server hosts the memory tools over one of the supported MCP
// transports and binds the caller identity on every inbound request.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/Protocol-Lattice/memory-mcp/src/config"
	"github.com/Protocol-Lattice/memory-mcp/src/identity"
	"github.com/Protocol-Lattice/memory-mcp/src/tools"
)

const (
	Name = "memory-mcp"

	shutdownTimeout   = 10 * time.Second
	readHeaderTimeout = 15 * time.Second
)

// Version is set at build time via ldflags.
var Version = "dev"

type Options struct {
	Transport string
	Addr      string
	// BaseURL is advertised to SSE clients as the origin of the message
	// endpoint. Empty derives it from Addr.
	BaseURL string
	Logger  *slog.Logger
}

type Server struct {
	opts        Options
	logger      *slog.Logger
	interceptor *identity.Interceptor
	mcp         *mcpserver.MCPServer

	sse        *mcpserver.SSEServer
	streamable *mcpserver.StreamableHTTPServer
	handler    http.Handler
}

// New registers the memory tools on a fresh MCP server and prepares the
// transport named in opts.
func New(opts Options, svc tools.MemoryService, interceptor *identity.Interceptor) (*Server, error) {
	switch opts.Transport {
	case config.TransportSSE, config.TransportStreamableHTTP, config.TransportStdio:
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownTransport, opts.Transport)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		opts:        opts,
		logger:      logger,
		interceptor: interceptor,
	}
	s.mcp = mcpserver.NewMCPServer(Name, Version,
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithRecovery(),
		mcpserver.WithToolHandlerMiddleware(s.logToolCalls),
		mcpserver.WithInstructions("Long-term memory scoped to the calling user. "+
			"Use save_memory to remember, search_memories to recall, get_all_memories to list "+
			"and delete_all_memories (confirm=true) to forget."),
	)
	tools.Register(s.mcp, svc, interceptor, logger)

	if opts.Transport != config.TransportStdio {
		s.handler = s.routes()
	}
	return s, nil
}

// MCP exposes the underlying MCP server.
func (s *Server) MCP() *mcpserver.MCPServer { return s.mcp }

// Handler returns the HTTP handler for the sse and streamable-http
// transports; it is nil for stdio.
func (s *Server) Handler() http.Handler { return s.handler }

func (s *Server) routes() http.Handler {
	router := mux.NewRouter()
	router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	switch s.opts.Transport {
	case config.TransportSSE:
		s.sse = mcpserver.NewSSEServer(s.mcp,
			mcpserver.WithBaseURL(s.baseURL()),
			mcpserver.WithSSEContextFunc(s.interceptor.HTTPContextFunc),
		)
		router.Handle("/sse", s.sse.SSEHandler()).Methods(http.MethodGet)
		router.Handle("/message", s.sse.MessageHandler()).Methods(http.MethodPost)
	case config.TransportStreamableHTTP:
		s.streamable = mcpserver.NewStreamableHTTPServer(s.mcp,
			mcpserver.WithEndpointPath("/mcp"),
			mcpserver.WithHTTPContextFunc(s.interceptor.HTTPContextFunc),
		)
		router.Handle("/mcp", s.streamable)
	}

	// The interceptor sits outside the access log so log lines carry the
	// resolved user.
	var h http.Handler = handlers.CustomLoggingHandler(io.Discard, router, s.logRequest)
	h = s.interceptor.Middleware(h)
	return handlers.RecoveryHandler(
		handlers.RecoveryLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelError)),
	)(h)
}

func (s *Server) baseURL() string {
	if s.opts.BaseURL != "" {
		return s.opts.BaseURL
	}
	host, port, err := net.SplitHostPort(s.opts.Addr)
	if err != nil {
		return "http://" + s.opts.Addr
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, port)
}

// Run serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.logger.InfoContext(ctx, "starting memory server",
		"transport", s.opts.Transport,
		"addr", s.opts.Addr,
		"default_user_id", s.interceptor.Process().ID,
		"version", Version,
	)
	if s.opts.Transport == config.TransportStdio {
		return s.ServeStdio(ctx, os.Stdin, os.Stdout)
	}
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.opts.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve runs the HTTP transport on ln and shuts it down gracefully once ctx
// is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	if s.handler == nil {
		return fmt.Errorf("transport %q does not serve http", s.opts.Transport)
	}
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down memory server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs []error
	if s.sse != nil {
		errs = append(errs, s.sse.Shutdown(shutdownCtx))
	}
	if s.streamable != nil {
		errs = append(errs, s.streamable.Shutdown(shutdownCtx))
	}
	errs = append(errs, srv.Shutdown(shutdownCtx))
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// ServeStdio speaks MCP over in and out. A pipe carries no headers, so every
// call runs as the process default user unless it passes user_id.
func (s *Server) ServeStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := mcpserver.NewStdioServer(s.mcp)
	stdio.SetContextFunc(s.interceptor.StdioContextFunc)
	stdio.SetErrorLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelError))

	err := stdio.Listen(ctx, in, out)
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

type healthResponse struct {
	Status    string `json:"status"`
	Transport string `json:"transport"`
	Version   string `json:"version"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(healthResponse{
		Status:    "ok",
		Transport: s.opts.Transport,
		Version:   Version,
	})
}

func (s *Server) logRequest(_ io.Writer, p handlers.LogFormatterParams) {
	s.logger.InfoContext(p.Request.Context(), "http request",
		slog.String("method", p.Request.Method),
		slog.String("path", p.URL.Path),
		slog.Int("status", p.StatusCode),
		slog.Int("size", p.Size),
		slog.Duration("elapsed", time.Since(p.TimeStamp)),
	)
}

func (s *Server) logToolCalls(next mcpserver.ToolHandlerFunc) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()
		res, err := next(ctx, req)
		attrs := []any{
			slog.String("tool", req.Params.Name),
			slog.Duration("elapsed", time.Since(start)),
		}
		switch {
		case err != nil:
			s.logger.ErrorContext(ctx, "tool call failed", append(attrs, slog.Any("error", err))...)
		case res != nil && res.IsError:
			s.logger.WarnContext(ctx, "tool call returned error", attrs...)
		default:
			s.logger.InfoContext(ctx, "tool call", attrs...)
		}
		return res, err
	}
}
