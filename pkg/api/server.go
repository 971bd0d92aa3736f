package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/catjump/catjump/pkg/api/handlers"
	"github.com/catjump/catjump/pkg/api/middleware"
	authproviders "github.com/catjump/catjump/pkg/auth/providers"
	"github.com/catjump/catjump/pkg/leaderboard"
	"github.com/catjump/catjump/pkg/log"
	"github.com/catjump/catjump/pkg/ratelimit"
	"github.com/catjump/catjump/pkg/rewards"
	"github.com/catjump/catjump/pkg/store"
	"github.com/gorilla/mux"
)

type APIServer struct {
	server *http.Server
	tls    *TLSConfig
}

type TLSConfig struct {
	CertFile string
	KeyFile  string
}

type NewAPIServerOptions struct {
	Port         int
	TLS          *TLSConfig
	AuthProvider authproviders.AuthProvider
	Store        store.Store
	Limiter      *ratelimit.Limiter
	Rewards      *rewards.Processor
	Leaderboard  *leaderboard.Service
}

// NewRouter builds the API route table. Everything under /v1 requires a
// verified bearer token.
func NewRouter(opts NewAPIServerOptions) http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", handlers.HandleHealthz()).Methods(http.MethodGet)

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.Use(middleware.NewAuthMiddleware(opts.AuthProvider))
	v1.HandleFunc("/save", handlers.HandleGetSave(opts.Store)).Methods(http.MethodGet)
	v1.HandleFunc("/save", handlers.HandlePutSave(opts.Store)).Methods(http.MethodPut)
	v1.HandleFunc("/scores/validate", handlers.HandleValidateScore(opts.Limiter)).Methods(http.MethodPost)
	v1.HandleFunc("/rewards/grant", handlers.HandleGrantReward(opts.Limiter, opts.Rewards)).Methods(http.MethodPost)
	v1.HandleFunc("/leaderboard", handlers.HandleSubmitScore(opts.Limiter, opts.Leaderboard)).Methods(http.MethodPost)
	v1.HandleFunc("/leaderboard", handlers.HandleGetLeaderboard(opts.Leaderboard)).Methods(http.MethodGet)

	return r
}

// NewAPIServer creates a new http.Server for handling API requests
func NewAPIServer(opts NewAPIServerOptions) *APIServer {
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", opts.Port),
		Handler: NewRouter(opts),
	}
	return &APIServer{
		server: server,
		tls:    opts.TLS,
	}
}

// Start starts the APIServer
func (s *APIServer) Start() {
	var listenAndServe func() error
	if s.tls != nil {
		log.Info("API server listening on %s with TLS", s.server.Addr)
		listenAndServe = func() error {
			return s.server.ListenAndServeTLS(s.tls.CertFile, s.tls.KeyFile)
		}
	} else {
		log.Info("API server listening on %s", s.server.Addr)
		listenAndServe = s.server.ListenAndServe
	}
	if err := listenAndServe(); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			log.Info("API server closed")
			return
		}
		log.Error("API server error: %v", err)
	}
}

// Stop stops the APIServer
func (s *APIServer) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
