package ratelimit

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"time"

	"pack-store/internal/model"

	"github.com/rs/zerolog"
)

// Config describes how to derive a rate limit key and thresholds.
type Config struct {
	Name   string
	Key    func(*http.Request) string
	Limit  int
	Window time.Duration

	// OnLimited is called for each rejected request.
	OnLimited func(r *http.Request)
}

// ClientIP keys requests by the remote address host.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Middleware enforces cfg using store. Store errors fail open.
func Middleware(store Store, cfg Config, logger zerolog.Logger) func(http.Handler) http.Handler {
	logger = logger.With().Str("component", "rate-limiter").Str("limit", cfg.Name).Logger()
	if cfg.Key == nil {
		cfg.Key = ClientIP
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := cfg.Name + ":" + cfg.Key(r)

			res, err := store.Allow(r.Context(), key, cfg.Limit, cfg.Window)
			if err != nil {
				logger.Error().Err(err).Str("key", key).Msg("rate limit check failed, allowing request")
				next.ServeHTTP(w, r)
				return
			}

			headers := w.Header()
			headers.Set("X-RateLimit-Limit", strconv.Itoa(cfg.Limit))
			headers.Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
			headers.Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))

			if !res.Allowed {
				retryAfter := int(time.Until(res.ResetAt).Seconds())
				if retryAfter < 0 {
					retryAfter = 0
				}
				headers.Set("Retry-After", strconv.Itoa(retryAfter))

				logger.Warn().Str("key", key).Msg("rate limit exceeded")
				if cfg.OnLimited != nil {
					cfg.OnLimited(r)
				}

				headers.Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				json.NewEncoder(w).Encode(model.ErrorResponse{
					Error: "Too many requests, please try again later",
					Code:  model.ErrCodeRateLimited,
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
