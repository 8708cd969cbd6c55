// Package http exposes the advisor, ledger and goal services as a JSON
// API. Read endpoints are cached per user; every write invalidates the
// user's cached views.
package http

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"milecard/internal/cache"
	"milecard/internal/services"
)

const (
	readCacheSize = 500
	readCacheTTL  = 30 * time.Second
)

type Server struct {
	http.Server

	ledger  *services.LedgerService
	goals   *services.GoalService
	advisor *services.AdvisorService
	store   services.Store

	validate        *validator.Validate
	limiter         *rateLimiter
	alertWindowDays int

	// Cached JSON bodies for the advisor read endpoints, keyed by
	// user and query. Writes invalidate by user prefix.
	readCache *cache.Cache[[]byte]

	stopPurge    chan struct{}
	shutdownOnce sync.Once
}

// NewServer wires routes and middleware, returning a ready-to-run server.
func NewServer(addr string, ledger *services.LedgerService, goals *services.GoalService,
	advisor *services.AdvisorService, store services.Store, alertWindowDays int) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server:          http.Server{Addr: addr, Handler: mux},
		ledger:          ledger,
		goals:           goals,
		advisor:         advisor,
		store:           store,
		validate:        newValidator(),
		limiter:         newRateLimiter(),
		alertWindowDays: alertWindowDays,
		readCache:       cache.New[[]byte](readCacheSize, readCacheTTL),
		stopPurge:       make(chan struct{}),
	}

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleReady)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /api/categories", s.wrap(s.handleListCategories))
	mux.HandleFunc("GET /api/cards", s.wrap(s.handleListCards))
	mux.HandleFunc("GET /api/cards/{cardID}/alerts", s.wrap(s.handleCardAlerts))

	mux.HandleFunc("GET /api/users/{userID}/cards", s.wrap(s.handleListUserCards))
	mux.HandleFunc("POST /api/users/{userID}/cards", s.wrap(s.handleAddCard))
	mux.HandleFunc("DELETE /api/users/{userID}/cards/{cardID}", s.wrap(s.handleRemoveCard))

	mux.HandleFunc("POST /api/users/{userID}/transactions", s.wrap(s.handleRecordTransaction))
	mux.HandleFunc("GET /api/users/{userID}/transactions", s.wrap(s.handleListTransactions))
	mux.HandleFunc("GET /api/users/{userID}/recommendations", s.wrap(s.handleRecommend))

	mux.HandleFunc("GET /api/users/{userID}/portfolio", s.wrap(s.handlePortfolio))
	mux.HandleFunc("PUT /api/users/{userID}/balances/{programID}", s.wrap(s.handleSetBalance))
	mux.HandleFunc("POST /api/users/{userID}/redemptions", s.wrap(s.handleRecordRedemption))

	mux.HandleFunc("GET /api/users/{userID}/programs/{programID}/transfers", s.wrap(s.handleTransferOptions))
	mux.HandleFunc("GET /api/users/{userID}/programs/{programID}/potential", s.wrap(s.handlePotentialMiles))
	mux.HandleFunc("GET /api/users/{userID}/nudge", s.wrap(s.handleNudge))

	mux.HandleFunc("GET /api/users/{userID}/programs/{programID}/goals", s.wrap(s.handleListGoals))
	mux.HandleFunc("POST /api/users/{userID}/programs/{programID}/goals", s.wrap(s.handleCreateGoal))
	mux.HandleFunc("DELETE /api/users/{userID}/goals/{goalID}", s.wrap(s.handleDeleteGoal))

	mux.HandleFunc("GET /api/users/{userID}/alerts", s.wrap(s.handleUserAlerts))
	mux.HandleFunc("POST /api/users/{userID}/alerts/{alertID}/dismiss", s.wrap(s.handleDismissAlert))

	go s.purgeLoop()
	return s
}

func (s *Server) purgeLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.readCache.PurgeExpired()
		case <-s.stopPurge:
			return
		}
	}
}

// Shutdown stops the background routines and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		close(s.stopPurge)
		s.limiter.stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func (s *Server) userCachePrefix(userID int64) string {
	return "u" + strconv.FormatInt(userID, 10) + ":"
}

func (s *Server) invalidateUser(userID int64) {
	s.readCache.InvalidatePrefix(s.userCachePrefix(userID))
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
