package app

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/pepdex-hq/pepdex-price-harvester/internal/domain"
	"github.com/pepdex-hq/pepdex-price-harvester/internal/logger"
	"github.com/pepdex-hq/pepdex-price-harvester/internal/pipeline"
	"github.com/pepdex-hq/pepdex-price-harvester/internal/storage"
)

const defaultHistoryLimit = 30

// Router builds the HTTP surface: the consumer read API and the refresh
// trigger.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Get("/healthz", s.handleHealthz)
	r.Get("/api/prices", s.handlePrices)
	r.Get("/api/prices/history", s.handlePriceHistory)
	r.Get("/api/cron/update-prices", s.handleUpdatePrices)
	r.Post("/api/cron/update-prices", s.handleUpdatePrices)

	return r
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

type refreshResponse struct {
	Success   bool                `json:"success"`
	Summary   refreshCounts       `json:"summary"`
	Results   []domain.PairResult `json:"results"`
	Timestamp string              `json:"timestamp"`
}

type refreshCounts struct {
	Total   int `json:"total"`
	Success int `json:"success"`
	Errors  int `json:"errors"`
	Skipped int `json:"skipped"`
}

type pricesResponse struct {
	Peptides  []domain.Peptide          `json:"peptides"`
	Resellers []domain.Reseller         `json:"resellers"`
	Prices    []domain.PriceObservation `json:"prices"`
}

// handleUpdatePrices triggers a refresh run and holds the connection until
// it finishes. The run budget caps wall-clock time via the request context.
func (s *Server) handleUpdatePrices(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RunBudget)
	defer cancel()

	summary, err := s.refresher.Run(ctx, s.cfg.BatchSize)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, pipeline.ErrRunInProgress) {
			status = http.StatusConflict
		}
		logger.ErrorObj("refresh run failed", "error", err.Error())
		writeJSON(w, status, errorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, refreshResponse{
		Success: true,
		Summary: refreshCounts{
			Total:   summary.Total,
			Success: summary.Success,
			Errors:  summary.Errors,
			Skipped: summary.Skipped,
		},
		Results:   summary.Results,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// handlePrices serves the full comparison payload: catalog plus the latest
// observation per pair, memoized in the latest-prices cache.
func (s *Server) handlePrices(w http.ResponseWriter, r *http.Request) {
	if payload, ok := s.cache.Get(); ok {
		writeRawJSON(w, http.StatusOK, payload)
		return
	}

	ctx := r.Context()

	peptides, err := s.store.ListPeptides(ctx)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to load catalog"})
		return
	}
	resellers, err := s.store.ListResellers(ctx)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to load catalog"})
		return
	}
	prices, err := s.store.LatestPrices(ctx)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to load prices"})
		return
	}

	payload, err := json.Marshal(pricesResponse{
		Peptides:  peptides,
		Resellers: resellers,
		Prices:    prices,
	})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to encode prices"})
		return
	}

	s.cache.Set(payload)
	writeRawJSON(w, http.StatusOK, payload)
}

// handlePriceHistory serves one pair's recent observations, newest first.
func (s *Server) handlePriceHistory(w http.ResponseWriter, r *http.Request) {
	peptideID := strings.TrimSpace(r.URL.Query().Get("peptide"))
	resellerID := strings.TrimSpace(r.URL.Query().Get("reseller"))
	if peptideID == "" || resellerID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "peptide and reseller query parameters are required"})
		return
	}

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "limit must be a positive integer"})
			return
		}
		limit = n
	}

	if _, err := s.store.GetPeptide(r.Context(), peptideID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "unknown peptide"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to load history"})
		return
	}

	history, err := s.store.PriceHistory(r.Context(), peptideID, resellerID, limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to load history"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"peptide":  peptideID,
		"reseller": resellerID,
		"history":  history,
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// authorized validates the trigger's bearer token. A valid token always
// passes; anything else passes only in development mode.
func (s *Server) authorized(r *http.Request) bool {
	secret := strings.TrimSpace(s.cfg.CronSecret)
	if secret != "" {
		auth := r.Header.Get("Authorization")
		if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
			if subtle.ConstantTimeCompare([]byte(token), []byte(secret)) == 1 {
				return true
			}
		}
	}
	return s.cfg.Development()
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.ErrorObj("response encode failed", "error", err.Error())
	}
}

func writeRawJSON(w http.ResponseWriter, status int, payload []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(payload); err != nil {
		logger.ErrorObj("response write failed", "error", err.Error())
	}
}
