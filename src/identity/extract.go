package identity

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"
)

// Header names understood by the interceptor.
const (
	HeaderUserID          = "X-User-ID"
	HeaderUserEmail       = "X-User-Email"
	HeaderLibreChatUserID = "X-LibreChat-User-ID"
)

// ErrMalformedSignal marks a header value that could not be used. It is only
// ever logged; the tier falls through as if the header were absent.
var ErrMalformedSignal = errors.New("identity: malformed signal")

// HeaderNames lists the headers read for each header tier. Within a tier the
// first header carrying a usable value wins. The tiers are never merged.
type HeaderNames struct {
	Primary   []string
	Secondary []string
}

// DefaultHeaderNames matches the headers LibreChat forwards for
// {{LIBRECHAT_USER_ID}} and {{LIBRECHAT_USER_EMAIL}}.
func DefaultHeaderNames() HeaderNames {
	return HeaderNames{
		Primary:   []string{HeaderUserID},
		Secondary: []string{HeaderUserEmail, HeaderLibreChatUserID},
	}
}

// ExtractFromHTTPHeader reads the header tiers from h. The returned error
// joins every malformed value that was skipped; it never means the signals
// are unusable.
func ExtractFromHTTPHeader(h http.Header, names HeaderNames) (Signals, error) {
	if h == nil {
		return Signals{}, nil
	}
	primary, perr := headerValue(h, names.Primary)
	secondary, serr := headerValue(h, names.Secondary)
	return Signals{HeaderPrimary: primary, HeaderSecondary: secondary}, errors.Join(perr, serr)
}

// ExtractExplicit reads the user_id tool argument. Non-string and blank
// values are absent.
func ExtractExplicit(args map[string]any) string {
	v, ok := args[ArgumentUserID].(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(v)
}

func headerValue(h http.Header, names []string) (string, error) {
	var errs []error
	for _, name := range names {
		for _, raw := range h.Values(name) {
			v := strings.TrimSpace(raw)
			if v == "" {
				continue
			}
			if !utf8.ValidString(v) {
				errs = append(errs, fmt.Errorf("%w: header %s is not valid UTF-8", ErrMalformedSignal, name))
				continue
			}
			return v, nil
		}
	}
	return "", errors.Join(errs...)
}
