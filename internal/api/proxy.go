package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"net/url"

	"pomflow/backend/internal/auth"
	"pomflow/backend/internal/logging"
)

// upstreamError carries a backend 5xx through ReverseProxy.ModifyResponse to
// the error handler.
type upstreamError struct {
	status  int
	message string
}

func (e *upstreamError) Error() string {
	return fmt.Sprintf("backend returned %d: %s", e.status, e.message)
}

// NewBackendProxy forwards /api/<rest> requests unchanged to the backend,
// keeping method, query string, body and content type. The caller's
// credentials are not forwarded. Backend 5xx responses
// and transport failures become HTTP 500 with an ErrorEnvelope; other
// statuses pass through untouched.
func NewBackendProxy(backendURL string, logger *logging.Logger) (http.Handler, error) {
	target, err := url.Parse(backendURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse backend url: %w", err)
	}
	if target.Scheme == "" || target.Host == "" {
		return nil, fmt.Errorf("backend url %q must be absolute", backendURL)
	}
	log := logger.With("component", "proxy", "backend", target.Host)

	proxy := &httputil.ReverseProxy{
		Rewrite: func(r *httputil.ProxyRequest) {
			r.SetURL(target)
			r.SetXForwarded()
			stripCredentials(r.Out)
		},
		ModifyResponse: func(resp *http.Response) error {
			if resp.StatusCode < http.StatusInternalServerError {
				return nil
			}
			data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
			resp.Body.Close()
			var envelope ErrorEnvelope
			_ = json.Unmarshal(data, &envelope)
			return &upstreamError{status: resp.StatusCode, message: envelope.Error}
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			log.Error("proxy request failed", "method", r.Method, "path", r.URL.Path, "error", err)

			message := "Failed to send data to API"
			if r.Method == http.MethodGet || r.Method == http.MethodHead {
				message = "Failed to fetch data from API"
			}
			var upstream *upstreamError
			if errors.As(err, &upstream) && upstream.message != "" {
				message = upstream.message
			}
			writeError(w, http.StatusInternalServerError, message)
		},
	}
	return proxy, nil
}

// stripCredentials removes the bearer token and the session cookie; other
// cookies are kept.
func stripCredentials(out *http.Request) {
	out.Header.Del("Authorization")
	cookies := out.Cookies()
	out.Header.Del("Cookie")
	for _, c := range cookies {
		if c.Name != auth.SessionCookie {
			out.AddCookie(c)
		}
	}
}
