package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"olympus.fund/internal/auth"
	"olympus.fund/internal/metrics"
	"olympus.fund/internal/ratelimit"
	"olympus.fund/internal/store"
)

// memberRoles may call member-facing operations; the narrower sets gate the
// processing endpoints.
var (
	memberRoles     = []string{store.RoleMember, store.RoleMerchant, store.RoleAccounting, store.RoleAccountingHead, store.RoleAdmin}
	depositRoles    = []string{store.RoleMerchant, store.RoleAdmin}
	accountingRoles = []string{store.RoleAccounting, store.RoleAccountingHead, store.RoleAdmin}
)

type Server struct {
	store    *store.Store
	identity auth.Identity
	limiter  ratelimit.Limiter
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

func NewServer(st *store.Store, identity auth.Identity, limiter ratelimit.Limiter, m *metrics.Metrics, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if limiter == nil {
		limiter = ratelimit.Unlimited{}
	}
	return &Server{
		store:    st,
		identity: identity,
		limiter:  limiter,
		metrics:  m,
		logger:   logger,
	}
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/v1/packages", s.authMiddleware(http.HandlerFunc(s.handlePackages)))
	mux.Handle("/v1/packages/", s.authMiddleware(http.HandlerFunc(s.handlePackageByID)))
	mux.Handle("/v1/enrollments", s.authMiddleware(http.HandlerFunc(s.handleEnrollments)))
	mux.Handle("/v1/enrollments/", s.authMiddleware(http.HandlerFunc(s.handleEnrollmentAction)))
	mux.Handle("/v1/deposits", s.authMiddleware(http.HandlerFunc(s.handleDeposits)))
	mux.Handle("/v1/deposits/", s.authMiddleware(http.HandlerFunc(s.handleDepositAction)))
	mux.Handle("/v1/withdrawals", s.authMiddleware(http.HandlerFunc(s.handleWithdrawals)))
	mux.Handle("/v1/withdrawals/", s.authMiddleware(http.HandlerFunc(s.handleWithdrawalAction)))
	return mux
}

type contextKey int

const memberContextKey contextKey = iota

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractBearerToken(r.Header.Get("Authorization"))
		member, err := s.identity.ResolveCaller(r.Context(), token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		ctx := context.WithValue(r.Context(), memberContextKey, member)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func callerFromContext(ctx context.Context) store.Member {
	member, _ := ctx.Value(memberContextKey).(store.Member)
	return member
}

// requireRole enforces the role gate and writes the refusal itself.
func (s *Server) requireRole(w http.ResponseWriter, member store.Member, roles []string) bool {
	if !auth.RoleAllowed(member.Role, roles...) {
		writeError(w, http.StatusForbidden, "forbidden")
		return false
	}
	return true
}

// allow applies the advisory rate limit before any transaction opens. A
// limiter failure lets the request through: backpressure never blocks a
// correct operation.
func (s *Server) allow(r *http.Request, key string, limit int, window time.Duration) bool {
	ok, err := s.limiter.Allow(r.Context(), key, limit, window)
	if err != nil {
		s.logger.Warn("rate limiter unavailable", zap.Error(err))
		return true
	}
	return ok
}

func extractBearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
