package auth

import (
	"context"
	"net/http"
	"strings"
)

// contextKey is unexported so no other package can read or overwrite the
// caller ID stored in a request context.
type contextKey string

const userIDKey contextKey = "userID"

// IdentityConfig controls how Identity resolves the caller.
type IdentityConfig struct {
	// Tokens validates bearer/cookie tokens. Nil means tokens are not
	// accepted and any presented token is ignored.
	Tokens *TokenService

	// DefaultUserID is the caller when no token is presented. 0 leaves the
	// request anonymous.
	DefaultUserID int64
}

// Identity stores the caller's user ID in the request context. It never
// blocks an anonymous request; use RequireIdentity for that. A token that is
// presented but invalid is answered with 401.
func Identity(cfg IdentityConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.Tokens != nil {
				if raw := tokenFromRequest(r); raw != "" {
					userID, err := cfg.Tokens.Validate(raw)
					if err != nil {
						unauthorized(w, "invalid or expired token")
						return
					}
					next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
					return
				}
			}

			if cfg.DefaultUserID > 0 {
				r = r.WithContext(WithUserID(r.Context(), cfg.DefaultUserID))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireIdentity rejects requests that Identity left anonymous.
func RequireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := UserIDFromContext(r.Context()); !ok {
			unauthorized(w, "caller identity required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// WithUserID returns a copy of ctx carrying userID.
func WithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserIDFromContext returns the caller's user ID, or (0, false) for an
// anonymous request.
//
//	userID, ok := auth.UserIDFromContext(r.Context())
//	if !ok {
//	    // anonymous
//	}
func UserIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(userIDKey).(int64)
	return id, ok && id > 0
}

// tokenFromRequest prefers the Authorization header over the cookie.
func tokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if raw, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(raw)
		}
	}
	if c, err := r.Cookie("token"); err == nil {
		return c.Value
	}
	return ""
}

// unauthorized writes the same {"error","message"} body the handler package
// uses. It is inlined here because handler imports auth.
func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized","message":"` + message + `"}`))
}
