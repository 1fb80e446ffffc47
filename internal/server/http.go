package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"math/big"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"FarmLedger/internal/ingestion"
	"FarmLedger/internal/observability"
	"FarmLedger/internal/projection"
	"FarmLedger/internal/query"
)

// HTTPServer serves the JSON query API, admin endpoints, health checks,
// and Prometheus metrics.
type HTTPServer struct {
	httpServer    *http.Server
	db            *sql.DB
	queryService  *query.QueryService
	ingestService *ingestion.AdminIngestService
	healthChecker *observability.HealthChecker
}

func NewHTTPServer(addr string, db *sql.DB, qs *query.QueryService, is *ingestion.AdminIngestService, hc *observability.HealthChecker) *HTTPServer {
	s := &HTTPServer{
		db:            db,
		queryService:  qs,
		ingestService: is,
		healthChecker: hc,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/holders/{address}/balances", s.handleHolderBalances)
	mux.HandleFunc("GET /v1/farms/{farm}/pool", s.handlePoolState)
	mux.HandleFunc("GET /v1/rewards", s.handleRewardHistory)
	mux.HandleFunc("GET /v1/rewards/total", s.handleRewardsPaidTotal)
	mux.HandleFunc("GET /v1/journal", s.handleJournalHistory)
	mux.HandleFunc("GET /v1/admin/integrity", s.handleVerifyIntegrity)
	mux.HandleFunc("POST /v1/admin/projections/rebuild", s.handleRebuildProjections)
	mux.HandleFunc("POST /v1/admin/inject/stake", s.handleInjectStake)
	mux.HandleFunc("POST /v1/admin/inject/rate", s.handleInjectRate)
	mux.Handle("GET /metrics", promhttp.Handler())

	if hc != nil {
		mux.HandleFunc("GET /healthz", hc.LivenessHandler)
		mux.HandleFunc("GET /readyz", hc.ReadinessHandler)
	}

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s
}

// Start runs the HTTP server until ctx is cancelled (blocking).
func (s *HTTPServer) Start(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		log.Println("INFO: HTTP server shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	log.Printf("INFO: HTTP server listening on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *HTTPServer) handleHolderBalances(w http.ResponseWriter, r *http.Request) {
	addr := r.PathValue("address")
	if !common.IsHexAddress(addr) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid address: %s", addr))
		return
	}

	resp, err := s.queryService.GetHolderBalances(r.Context(), common.HexToAddress(addr))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *HTTPServer) handlePoolState(w http.ResponseWriter, r *http.Request) {
	farm := r.PathValue("farm")

	resp, err := s.queryService.GetPoolState(r.Context(), farm)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *HTTPServer) handleRewardHistory(w http.ResponseWriter, r *http.Request) {
	account := r.URL.Query().Get("account")
	if account == "" {
		writeError(w, http.StatusBadRequest, "account is required")
		return
	}

	var farm *string
	if f := r.URL.Query().Get("farm"); f != "" {
		farm = &f
	}

	limit := parseLimit(r, 50, 100)
	before := parseBefore(r)

	history, err := s.queryService.GetRewardHistory(r.Context(), account, farm, limit, before)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"rewards": history})
}

func (s *HTTPServer) handleRewardsPaidTotal(w http.ResponseWriter, r *http.Request) {
	account := r.URL.Query().Get("account")
	if account == "" {
		writeError(w, http.StatusBadRequest, "account is required")
		return
	}

	var farm *string
	if f := r.URL.Query().Get("farm"); f != "" {
		farm = &f
	}

	resp, err := s.queryService.GetRewardsPaidTotal(r.Context(), account, farm)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *HTTPServer) handleJournalHistory(w http.ResponseWriter, r *http.Request) {
	account := r.URL.Query().Get("account")
	if account == "" {
		writeError(w, http.StatusBadRequest, "account is required")
		return
	}

	limit := parseLimit(r, 100, 500)
	before := parseBefore(r)

	entries, err := s.queryService.GetJournalHistory(r.Context(), account, limit, before)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"entries": entries})
}

func (s *HTTPServer) handleVerifyIntegrity(w http.ResponseWriter, r *http.Request) {
	report, err := s.queryService.VerifyIntegrity(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *HTTPServer) handleRebuildProjections(w http.ResponseWriter, r *http.Request) {
	if err := projection.RebuildProjections(r.Context(), s.db); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "rebuilt"})
}

func (s *HTTPServer) handleInjectStake(w http.ResponseWriter, r *http.Request) {
	if s.ingestService == nil {
		writeError(w, http.StatusServiceUnavailable, "ingest service not available")
		return
	}

	var req struct {
		Farm    string `json:"farm"`
		Account string `json:"account"`
		Amount  string `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !common.IsHexAddress(req.Account) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid account: %s", req.Account))
		return
	}
	amount, ok := new(big.Int).SetString(req.Amount, 10)
	if !ok {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid amount: %s", req.Amount))
		return
	}

	if err := s.ingestService.InjectStake(r.Context(), req.Farm, common.HexToAddress(req.Account), amount); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (s *HTTPServer) handleInjectRate(w http.ResponseWriter, r *http.Request) {
	if s.ingestService == nil {
		writeError(w, http.StatusServiceUnavailable, "ingest service not available")
		return
	}

	var req struct {
		Farm         string `json:"farm"`
		Rate         string `json:"rate"`
		RateSequence int64  `json:"rate_sequence"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	rate, ok := new(big.Int).SetString(req.Rate, 10)
	if !ok {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid rate: %s", req.Rate))
		return
	}

	if err := s.ingestService.InjectRewardRate(r.Context(), req.Farm, rate, req.RateSequence); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// --- helpers ---

func parseLimit(r *http.Request, def, max int) int {
	limit := def
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			limit = v
		}
	}
	if limit > max {
		limit = max
	}
	return limit
}

func parseBefore(r *http.Request) *int64 {
	if raw := r.URL.Query().Get("before"); raw != "" {
		if v, err := strconv.ParseInt(raw, 10, 64); err == nil && v > 0 {
			return &v
		}
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("WARN: write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
