package ratelimit

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-identity-go/internal/audit"
)

// Guard applies rules to handlers, keyed by a per-client string.
type Guard struct {
	limiter Limiter
	audit   *audit.Logger
	logger  *zap.SugaredLogger
	key     func(*http.Request) string
}

func NewGuard(l Limiter, a *audit.Logger, logger *zap.SugaredLogger, key func(*http.Request) string) *Guard {
	return &Guard{limiter: l, audit: a, logger: logger, key: key}
}

// Wrap rejects requests over rule's budget with 429. A limiter backend
// failure lets the request through and is logged.
func (g *Guard) Wrap(rule Rule, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, err := g.limiter.Allow(r.Context(), rule, g.key(r))
		if err != nil {
			g.logger.Errorw("rate limiter unavailable", "rule", rule.Name, "err", err)
			next.ServeHTTP(w, r)
			return
		}
		if !allowed {
			g.audit.Log(r.Context(), audit.Event{
				Name:    rule.Event,
				Message: "Rate limit exceeded for " + rule.Name,
				Status:  "blocked",
			})
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "error", "message": rule.Message})
			return
		}
		next.ServeHTTP(w, r)
	})
}
