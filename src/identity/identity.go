// Package identity resolves the acting user for every MCP tool call and
// carries the result through the request context.
//
// Signals are combined by a fixed precedence:
//
//  1. explicit user_id tool argument
//  2. primary header (X-User-ID)
//  3. secondary header (X-User-Email, X-LibreChat-User-ID)
//  4. DEFAULT_USER_ID from the process environment
//  5. the constant Fallback
//
// The resolved value is bound into a context.Context by the Interceptor and
// read back at handler entry with ForCall. Nothing is kept in package state,
// so concurrent requests never observe each other's identity.
package identity

// Fallback is the identity used when no signal is present at any tier.
const Fallback = "default"

// ArgumentUserID is the tool argument that overrides every other signal.
const ArgumentUserID = "user_id"

// Source names the tier that produced a resolved identity.
type Source string

const (
	SourceExplicit        Source = "explicit"
	SourceHeaderPrimary   Source = "header-primary"
	SourceHeaderSecondary Source = "header-secondary"
	SourceEnvDefault      Source = "env-default"
	SourceFallback        Source = "fallback"
)

// Resolution is the identity chosen for one logical request.
type Resolution struct {
	ID     string
	Source Source
}

// IsZero reports whether r carries no identity.
func (r Resolution) IsZero() bool {
	return r.ID == ""
}

// Signals holds the candidate values collected for one request. Empty
// fields are absent.
type Signals struct {
	Explicit        string
	HeaderPrimary   string
	HeaderSecondary string
	EnvDefault      string
}
