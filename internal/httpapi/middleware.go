package httpapi

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"alibi/internal/domain"
	"alibi/internal/identity"
	"alibi/internal/platform/config"
	"alibi/internal/ratelimit"
	"alibi/pkg/apierrors"
	"alibi/pkg/httputil"
)

type claimsKey struct{}

const minute = time.Minute

// authenticate extracts a bearer token from the Authorization header or,
// failing that, the ?token= query parameter (SSE clients cannot set
// headers), validates it, and stashes the claims in the request context.
func (h *handlers) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			h.d.Metrics.AuthFailures.Inc()
			httputil.WriteError(w, domain.ErrAuthFailed)
			return
		}
		claims, err := h.d.Tokens.Validate(token)
		if err != nil {
			h.d.Metrics.AuthFailures.Inc()
			httputil.WriteError(w, err)
			return
		}
		ctx := context.WithValue(r.Context(), claimsKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		if rest, ok := strings.CutPrefix(auth, "Bearer "); ok {
			return rest
		}
		return ""
	}
	return r.URL.Query().Get("token")
}

func claimsFrom(ctx context.Context) (*identity.Claims, bool) {
	claims, ok := ctx.Value(claimsKey{}).(*identity.Claims)
	return claims, ok
}

// rateLimited bounds the webhook ingestion endpoint to settings.rate_limit's
// per-minute allowance per source IP. limiter may be nil, in which case the
// check is skipped entirely (used by tests that don't configure Redis).
func rateLimited(limiter *ratelimit.Limiter, settings *config.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limiter == nil {
				next.ServeHTTP(w, r)
				return
			}
			perMinute := settings.Get().RateLimit.PerMinute
			if perMinute <= 0 {
				next.ServeHTTP(w, r)
				return
			}
			result, err := limiter.Allow(r.Context(), sourceIP(r), perMinute, minute)
			if err != nil {
				httputil.WriteError(w, apierrors.New(apierrors.CodeStorageUnavailable, "rate limiter unavailable"))
				return
			}
			if !result.Allowed {
				w.Header().Set("Retry-After", fmt.Sprintf("%d", result.RetryAfter))
				httputil.WriteJSON(w, http.StatusTooManyRequests, map[string]string{
					"error":   "rate_limited",
					"message": "too many camera events from this source",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func sourceIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// requireRole rejects requests whose caller's role doesn't carry at least
// min's authority. Must run after authenticate.
func requireRole(min domain.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := claimsFrom(r.Context())
			if !ok {
				httputil.WriteError(w, domain.ErrAuthFailed)
				return
			}
			if !claims.Role.Atleast(min) {
				httputil.WriteError(w, domain.ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
