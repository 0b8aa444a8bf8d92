package handlers

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"bizconnect/db"
	"bizconnect/internal/auth"
	"bizconnect/models"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type (
	adminClaimsKey struct{}
	peerAddrKey    struct{}
)

// PeerAddr запоминает адрес соединения до того, как RealIP подменит
// RemoteAddr значением из X-Forwarded-For. Лимиты считаются по нему.
func PeerAddr(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), peerAddrKey{}, r.RemoteAddr)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func peerHost(r *http.Request) string {
	addr, ok := r.Context().Value(peerAddrKey{}).(string)
	if !ok {
		addr = r.RemoteAddr
	}
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

// RequireAdmin пропускает только запросы с действующим токеном администратора
// в заголовке Authorization: Bearer <token>.
func (h *Handler) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		token = strings.TrimSpace(token)
		if !ok || token == "" {
			writeError(w, http.StatusUnauthorized, "Admin token required")
			return
		}

		claims, err := h.Tokens.Verify(token)
		if err != nil {
			h.Log.Warn("admin access denied",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Error(err),
			)
			writeError(w, http.StatusForbidden, "Admin access required")
			return
		}

		// токен живёт долго, поэтому учётная запись проверяется на каждом запросе:
		// заблокированный или разжалованный администратор теряет доступ сразу
		userID, err := strconv.ParseInt(claims.Subject, 10, 64)
		if err != nil {
			writeError(w, http.StatusForbidden, "Admin access required")
			return
		}
		user, err := h.Store.GetUserByID(r.Context(), userID)
		if err != nil && !errors.Is(err, db.ErrNotFound) {
			h.serverError(w, r, err)
			return
		}
		if user == nil || user.Type != models.UserTypeAdmin || user.Status != models.UserStatusActive {
			h.Log.Warn("admin token for inactive account",
				zap.String("subject", claims.Subject),
				zap.String("path", r.URL.Path),
			)
			writeError(w, http.StatusForbidden, "Admin access required")
			return
		}

		ctx := context.WithValue(r.Context(), adminClaimsKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// adminEmail: email администратора из проверенного токена.
func adminEmail(r *http.Request) string {
	if claims, ok := r.Context().Value(adminClaimsKey{}).(*auth.AdminClaims); ok {
		return claims.Email
	}
	return ""
}

// RequestLogger пишет в лог каждый запрос.
func (h *Handler) RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		h.Log.Info("request",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

// RateLimiter ограничивает частоту запросов с одного адреса.
type RateLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.Mutex
	rate     rate.Limit
	burst    int
	log      *zap.Logger
}

func NewRateLimiter(perSecond float64, burst int, log *zap.Logger) *RateLimiter {
	return &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Limit(perSecond),
		burst:    burst,
		log:      log,
	}
}

func (rl *RateLimiter) getLimiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	// TODO: вытеснять давно неактивные адреса вместо полного сброса
	if len(rl.limiters) > 10000 {
		rl.limiters = make(map[string]*rate.Limiter)
	}
	limiter, exists := rl.limiters[key]
	if !exists {
		limiter = rate.NewLimiter(rl.rate, rl.burst)
		rl.limiters[key] = limiter
	}
	return limiter
}

func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := peerHost(r)

		if !rl.getLimiter(key).Allow() {
			rl.log.Warn("rate limit exceeded",
				zap.String("key", key),
				zap.String("path", r.URL.Path),
			)
			writeError(w, http.StatusTooManyRequests, "Too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}
