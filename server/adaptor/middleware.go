package adaptor

import (
	"bufio"
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/ponyo877/livedeck/server/domain"
)

const (
	identityCookie  = "session-token"
	presenterCookie = "presenter-token"
	sessionCookie   = "livedeck_session"
)

type Middleware func(http.Handler) http.Handler

// Chain wraps h so the first middleware handles the request first.
func Chain(h http.Handler, middlewares ...Middleware) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

type contextKey string

const reqMetaKey = contextKey("r-metadata")

type RequestMetadata struct {
	IP             string
	UserAgent      string
	Identity       *domain.Identity
	PresenterUIDs  []string
	PresenterToken string
}

func (m *RequestMetadata) PresenterContext() domain.PresenterContext {
	return domain.NewPresenterContext(m.Identity, m.PresenterUIDs)
}

func (m *RequestMetadata) Device() domain.DeviceInfo {
	return domain.DeviceInfo{UserAgent: m.UserAgent, IP: m.IP}
}

func ReqMetadataFrom(ctx context.Context) (*RequestMetadata, bool) {
	reqMeta, ok := ctx.Value(reqMetaKey).(*RequestMetadata)
	return reqMeta, ok
}

// metadataFrom never returns nil, so handlers work without the middleware.
func metadataFrom(ctx context.Context) *RequestMetadata {
	if reqMeta, ok := ReqMetadataFrom(ctx); ok {
		return reqMeta
	}
	return &RequestMetadata{}
}

// RequestMetadataMiddleware must be first in the chain.
func RequestMetadataMiddleware() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				ip = r.RemoteAddr
			}
			reqMeta := &RequestMetadata{
				IP:        ip,
				UserAgent: r.UserAgent(),
			}
			ctx := context.WithValue(r.Context(), reqMetaKey, reqMeta)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// Hijack lets the WebSocket upgrade through the recorder.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return hj.Hijack()
}

func NewRequestLogger(logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			logger.Info("HTTP request",
				slog.String("method", r.Method),
				slog.String("uri", r.RequestURI),
				slog.String("ip", metadataFrom(r.Context()).IP),
				slog.Int("status", rec.status),
				slog.Duration("elapsed", time.Since(start)),
			)
		})
	}
}

// NewAuthMiddleware attaches the caller's identity and presenter grants when
// valid tokens are present. Requests without them pass through anonymously;
// each operation decides what it requires.
func NewAuthMiddleware(logger *slog.Logger, tokens *TokenService) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqMeta, ok := ReqMetadataFrom(r.Context())
			if !ok {
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}

			if raw := identityToken(r); raw != "" {
				identity, err := tokens.ParseIdentity(raw)
				if err != nil {
					logger.Warn("Invalid identity token presented", slog.String("ip", reqMeta.IP), slog.Any("error", err))
				} else {
					reqMeta.Identity = identity
				}
			}

			if cookie, err := r.Cookie(presenterCookie); err == nil && cookie.Value != "" {
				uids, err := tokens.ParsePresenter(cookie.Value)
				if err != nil {
					logger.Warn("Invalid presenter token presented", slog.String("ip", reqMeta.IP), slog.Any("error", err))
				} else {
					reqMeta.PresenterUIDs = uids
					reqMeta.PresenterToken = cookie.Value
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func identityToken(r *http.Request) string {
	if cookie, err := r.Cookie(identityCookie); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}
