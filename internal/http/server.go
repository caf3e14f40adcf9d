// Package http exposes the JSON API: authentication, per-entity CRUD, the
// sync protocol, and the dashboard summary.
package http

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"carteira/internal/auth"
	"carteira/internal/cache"
	"carteira/internal/core"
	"carteira/internal/ledger"
	"carteira/internal/middleware/ratelimit"
	"carteira/internal/middleware/security"
	"carteira/internal/middleware/trace"
	"carteira/internal/recurrence"
	"carteira/internal/storage"
	syncpkg "carteira/internal/sync"
)

// Publisher emits change notifications after successful mutations. A nil
// Publisher disables them.
type Publisher interface {
	PublishDataChanged(ctx context.Context, userID, source string) error
}

type Server struct {
	http.Server

	store     *storage.Store
	authority *auth.Authority
	syncEng   *syncpkg.Engine
	scheduler *recurrence.Scheduler
	ledger    ledger.Engine
	publisher Publisher

	summaryCache *cache.LRU[core.Summary]
	limiter      *ratelimit.Limiter
	clientIP     func(*http.Request) string

	stopCacheCleanup chan struct{}
	shutdownOnce     sync.Once
}

type Options struct {
	Addr               string
	Store              *storage.Store
	Authority          *auth.Authority
	SyncEngine         *syncpkg.Engine
	Scheduler          *recurrence.Scheduler
	Ledger             ledger.Engine
	Publisher          Publisher
	RateLimitPerMinute int

	// TrustProxyHeaders enables X-Forwarded-For / X-Real-IP when resolving
	// the client address. Only safe behind a proxy that overwrites them.
	TrustProxyHeaders bool
}

// NewServer wires routes and middleware, returning a ready-to-run server.
func NewServer(opts Options) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:              opts.Addr,
			Handler:           nil, // set below, after middleware wrapping
			ReadHeaderTimeout: 10 * time.Second,
		},
		store:     opts.Store,
		authority: opts.Authority,
		syncEng:   opts.SyncEngine,
		scheduler: opts.Scheduler,
		ledger:    opts.Ledger,
		publisher: opts.Publisher,

		summaryCache: cache.NewLRU[core.Summary](100, 5*time.Minute),
		limiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: opts.RateLimitPerMinute,
		}),
		stopCacheCleanup: make(chan struct{}),
	}

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleReady)

	mux.HandleFunc("POST /auth/register", s.handleRegister)
	mux.HandleFunc("POST /auth/login", s.handleLogin)
	mux.Handle("GET /auth/validate", s.withAuth(s.handleValidate))
	mux.Handle("POST /auth/logout", s.withAuth(s.handleLogout))

	mux.Handle("GET /data/sync", s.withAuth(s.handleSyncPull))
	mux.Handle("POST /data/sync", s.withAuth(s.handleSyncPush))

	mux.Handle("GET /pessoas", s.withAuth(s.handleListPessoas))
	mux.Handle("POST /pessoas", s.withAuth(s.handleCreatePessoa))
	mux.Handle("GET /pessoas/{id}", s.withAuth(s.handleGetPessoa))
	mux.Handle("PUT /pessoas/{id}", s.withAuth(s.handleUpdatePessoa))
	mux.Handle("DELETE /pessoas/{id}", s.withAuth(s.handleDeletePessoa))

	mux.Handle("GET /cartoes", s.withAuth(s.handleListCartoes))
	mux.Handle("POST /cartoes", s.withAuth(s.handleCreateCartao))
	mux.Handle("GET /cartoes/{id}", s.withAuth(s.handleGetCartao))
	mux.Handle("PUT /cartoes/{id}", s.withAuth(s.handleUpdateCartao))
	mux.Handle("DELETE /cartoes/{id}", s.withAuth(s.handleDeleteCartao))
	mux.Handle("GET /cartoes/{id}/parcelas", s.withAuth(s.handleListParcelas))
	mux.Handle("POST /cartoes/{id}/pay-installment", s.withAuth(s.handlePayInstallment))
	mux.Handle("POST /cartoes/{id}/unpay-installment", s.withAuth(s.handleUnpayInstallment))

	mux.Handle("GET /gastos", s.withAuth(s.handleListGastos))
	mux.Handle("POST /gastos", s.withAuth(s.handleCreateGasto))
	mux.Handle("GET /gastos/{id}", s.withAuth(s.handleGetGasto))
	mux.Handle("PUT /gastos/{id}", s.withAuth(s.handleUpdateGasto))
	mux.Handle("DELETE /gastos/{id}", s.withAuth(s.handleDeleteGasto))

	mux.Handle("GET /recorrencias", s.withAuth(s.handleListRecorrencias))
	mux.Handle("POST /recorrencias", s.withAuth(s.handleCreateRecorrencia))
	mux.Handle("GET /recorrencias/{id}", s.withAuth(s.handleGetRecorrencia))
	mux.Handle("PUT /recorrencias/{id}", s.withAuth(s.handleUpdateRecorrencia))
	mux.Handle("DELETE /recorrencias/{id}", s.withAuth(s.handleDeleteRecorrencia))

	mux.Handle("GET /settings", s.withAuth(s.handleGetSettings))
	mux.Handle("PUT /settings", s.withAuth(s.handleUpdateSettings))

	mux.Handle("GET /dashboard/summary", s.withAuth(s.handleDashboardSummary))

	s.clientIP = clientIPExtractor(opts.TrustProxyHeaders)
	tracer := trace.NewMiddleware(s.clientIP)
	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	handler := tracer.Middleware(
		headers.Middleware(
			s.limiter.Middleware(s.clientIP)(mux)))
	s.Server.Handler = handler

	go s.startCacheCleanup()

	return s
}

// clientIPExtractor resolves the client address for logging and rate
// limiting. Proxy headers are consulted only when trustProxy is set; anyone
// can write X-Forwarded-For, so without a proxy in front the socket address
// is the only value that cannot be spoofed.
func clientIPExtractor(trustProxy bool) func(*http.Request) string {
	return func(r *http.Request) string {
		if trustProxy {
			if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
				if comma := strings.IndexByte(ip, ','); comma >= 0 {
					ip = ip[:comma]
				}
				return strings.TrimSpace(ip)
			}
			if ip := r.Header.Get("X-Real-IP"); ip != "" {
				return ip
			}
		}
		return r.RemoteAddr
	}
}

func (s *Server) startCacheCleanup() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.summaryCache.CleanExpired()
		case <-s.stopCacheCleanup:
			return
		}
	}
}

// Shutdown stops the cleanup goroutines and then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		close(s.stopCacheCleanup)
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
