package identity

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
)

// Interceptor is the single point where inbound requests get their identity.
// Middleware covers plain HTTP; HTTPContextFunc and StdioContextFunc plug
// into the mcp-go transports so the binding survives the hand-off to the
// goroutine that runs the tool handler.
type Interceptor struct {
	headers    HeaderNames
	envDefault string
	logger     *slog.Logger
}

// Option configures an Interceptor.
type Option func(*Interceptor)

// WithHeaderNames overrides the header tiers. Empty tiers keep the default.
func WithHeaderNames(names HeaderNames) Option {
	return func(i *Interceptor) {
		if len(names.Primary) > 0 {
			i.headers.Primary = names.Primary
		}
		if len(names.Secondary) > 0 {
			i.headers.Secondary = names.Secondary
		}
	}
}

// WithLogger sets the logger used for the per-request resolution record.
func WithLogger(logger *slog.Logger) Option {
	return func(i *Interceptor) {
		if logger != nil {
			i.logger = logger
		}
	}
}

// NewInterceptor builds an interceptor. envDefault is the process-level
// default (DEFAULT_USER_ID); it may be empty.
func NewInterceptor(envDefault string, opts ...Option) *Interceptor {
	i := &Interceptor{
		headers:    DefaultHeaderNames(),
		envDefault: strings.TrimSpace(envDefault),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(i)
		}
	}
	return i
}

// EnvDefault returns the configured process-level default.
func (i *Interceptor) EnvDefault() string {
	return i.envDefault
}

// Resolve runs the header extractors against r and applies the policy. The
// explicit tier is not known at this layer.
func (i *Interceptor) Resolve(r *http.Request) Resolution {
	sig, err := ExtractFromHTTPHeader(r.Header, i.headers)
	if err != nil {
		i.logger.DebugContext(r.Context(), "ignoring identity header", "error", err)
	}
	sig.EnvDefault = i.envDefault
	return Resolve(sig)
}

// Process returns the resolution used when no per-request channel exists.
func (i *Interceptor) Process() Resolution {
	return Resolve(Signals{EnvDefault: i.envDefault})
}

// ForCall resolves the identity at handler entry.
func (i *Interceptor) ForCall(ctx context.Context, explicit string) Resolution {
	return ForCall(ctx, explicit, i.envDefault)
}

// Middleware resolves the identity of every request and binds it to the
// request context before calling next. The request itself is forwarded
// unchanged.
func (i *Interceptor) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := i.bind(r.Context(), r)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// HTTPContextFunc matches server.SSEContextFunc and server.HTTPContextFunc.
// It copies the binding made by Middleware into the dispatch context and
// resolves from r directly when the middleware is not installed.
func (i *Interceptor) HTTPContextFunc(ctx context.Context, r *http.Request) context.Context {
	if res, ok := FromContext(r.Context()); ok {
		return WithResolution(ctx, res)
	}
	return i.bind(ctx, r)
}

// StdioContextFunc matches server.StdioContextFunc. A pipe has no headers,
// so the process-wide resolution applies to every call.
func (i *Interceptor) StdioContextFunc(ctx context.Context) context.Context {
	return WithResolution(ctx, i.Process())
}

func (i *Interceptor) bind(ctx context.Context, r *http.Request) context.Context {
	res := i.Resolve(r)
	i.logger.InfoContext(ctx, "identity resolved",
		slog.String("source", string(res.Source)),
		slog.String("user_id", res.ID),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
	)
	return WithResolution(ctx, res)
}
