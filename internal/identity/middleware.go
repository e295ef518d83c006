package identity

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/tokenvault/tokenvault/internal/platform/httpx"
)

type callerContextKey struct{}

// ContextWithCaller stores the resolved caller in context.
func ContextWithCaller(ctx context.Context, caller Address) context.Context {
	return context.WithValue(ctx, callerContextKey{}, caller)
}

// CallerFromContext extracts the resolved caller from context.
func CallerFromContext(ctx context.Context) (Address, bool) {
	caller, ok := ctx.Value(callerContextKey{}).(Address)
	return caller, ok
}

// maxBodyBytes bounds body buffering in the resolver middleware.
const maxBodyBytes = 1 << 20

// Middleware authenticates the direct caller and applies the trusted
// forwarder rule before handlers run.
type Middleware struct {
	Service  *Service
	Resolver *Resolver
	Logger   *slog.Logger
}

// ResolveCaller authenticates the bearer API key, then, when the direct
// caller is the trusted forwarder, reads the effective identity from the
// trailing 20 bytes of the request body and truncates the body so the
// handler decodes the original payload.
func (m Middleware) ResolveCaller(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing bearer token")
			return
		}
		direct, err := m.Service.Authenticate(r.Context(), token)
		if err != nil {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "invalid api key")
			return
		}

		caller := direct
		if m.Resolver.IsTrustedForwarder(direct) && r.Body != nil {
			body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
			if err != nil {
				if m.Logger != nil {
					m.Logger.Error("read forwarded body", slog.Any("error", err))
				}
				httpx.Problem(w, http.StatusBadRequest, "Bad Request", "unreadable body")
				return
			}
			if len(body) > maxBodyBytes {
				httpx.Problem(w, http.StatusRequestEntityTooLarge, "Payload Too Large", "forwarded body exceeds limit")
				return
			}
			var stripped []byte
			caller, stripped = m.Resolver.Resolve(direct, body)
			r.Body = io.NopCloser(bytes.NewReader(stripped))
			r.ContentLength = int64(len(stripped))
		}

		ctx := ContextWithCaller(r.Context(), caller)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	return token, token != ""
}
