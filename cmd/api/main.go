package main

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"moneylend/pkg/auth"
	"moneylend/pkg/config"
	"moneylend/pkg/ledger"
	"moneylend/pkg/store"
)

// Server holds the ledger instance and its collaborators.
type Server struct {
	ledger  *ledger.Ledger
	storage store.Storage // Keep a reference to the storage to close it
	tokens  *auth.TokenIssuer
}

func NewServer(s store.Storage, tokens *auth.TokenIssuer) *Server {
	return &Server{
		ledger:  ledger.NewLedger(s),
		storage: s,
		tokens:  tokens,
	}
}

func (s *Server) routes(cfg config.Config) *mux.Router {
	router := mux.NewRouter()

	limiter := NewRateLimiter(cfg.RateLimitBurst, time.Minute)
	router.Use(requestIDMiddleware)
	router.Use(corsMiddleware(cfg.AllowedOrigin))
	router.Use(rateLimitMiddleware(limiter))

	router.HandleFunc("/", s.rootHandler).Methods("GET")

	router.HandleFunc("/auth/register", s.registerHandler).Methods("POST")
	router.HandleFunc("/auth/login", s.loginHandler).Methods("POST")

	router.HandleFunc("/loans", s.listLoansHandler).Methods("GET")
	router.HandleFunc("/loans/summary", s.loanSummaryHandler).Methods("GET")
	router.HandleFunc("/loans/{id}/details", s.loanDetailsHandler).Methods("GET")
	router.HandleFunc("/loans/issue", s.requireRole("agent", s.issueLoanHandler)).Methods("POST")

	router.HandleFunc("/payments", s.listPaymentsHandler).Methods("GET")
	router.HandleFunc("/payments/pay", s.payHandler).Methods("POST")

	return router
}

func main() {
	cfg := config.Load()

	sqliteStore, err := store.NewSQLiteStore(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to initialize SQLite store: %v", err)
	}
	defer sqliteStore.Close()

	tokens := auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL)
	server := NewServer(sqliteStore, tokens)
	router := server.routes(cfg)

	log.Printf("Server starting on %s", cfg.ListenAddr)
	log.Fatal(http.ListenAndServe(cfg.ListenAddr, router))
}
