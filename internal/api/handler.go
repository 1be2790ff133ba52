// Package api provides the HTTP surface for the question answering
// service: the query endpoint plus health and dataset statistics.
package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"courtql/internal/domain"
	"courtql/internal/pipeline"
)

// Version is reported by the health endpoint.
const Version = "1.0.0"

// maxQuestionLen bounds the accepted question size.
const maxQuestionLen = 500

// Handler serves the REST API. The read pool is used directly for the
// health and stats endpoints; questions go through the pipeline.
type Handler struct {
	pipeline *pipeline.Pipeline
	readDB   *sql.DB
	table    string
	ragReady bool
	logger   *slog.Logger
}

func NewHandler(p *pipeline.Pipeline, readDB *sql.DB, table string, ragReady bool, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		pipeline: p,
		readDB:   readDB,
		table:    table,
		ragReady: ragReady,
		logger:   logger.With("component", "api"),
	}
}

type queryRequest struct {
	Query string `json:"query"`
}

// HandleQuery answers a natural-language question.
func (h *Handler) HandleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "request body must be JSON with a \"query\" field")
		return
	}
	question := strings.TrimSpace(req.Query)
	if question == "" {
		writeError(w, http.StatusBadRequest, "query must not be empty")
		return
	}
	if len(question) > maxQuestionLen {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("query exceeds %d characters", maxQuestionLen))
		return
	}

	result := h.pipeline.Process(r.Context(), question)
	h.logger.Info("question processed",
		"request_id", result.RequestID,
		"tier", result.TierName,
		"success", result.Success)
	writeJSON(w, http.StatusOK, result)
}

type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Records  int64  `json:"records"`
	Version  string `json:"version"`
}

// HandleHealth reports liveness and whether the statistics store is
// reachable.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "healthy", Database: "connected", Version: Version}

	var count int64
	err := h.readDB.QueryRowContext(r.Context(),
		fmt.Sprintf("SELECT COUNT(*) FROM %s", h.table)).Scan(&count)
	if err != nil {
		h.logger.Error("health check query failed", "error", err)
		resp.Status = "degraded"
		resp.Database = "unavailable"
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	resp.Records = count
	writeJSON(w, http.StatusOK, resp)
}

type statsResponse struct {
	GamesInDB      int64   `json:"games_in_db"`
	PlayersTracked int64   `json:"players_tracked"`
	AvgPoints      float64 `json:"avg_points"`
	RAGStatus      string  `json:"rag_status"`
}

// HandleStats reports dataset-level aggregates.
func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.datasetStats(r.Context())
	if err != nil {
		h.logger.Error("stats query failed", "error", err)
		writeError(w, httpStatusFromDomainError(err), "statistics are unavailable")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) datasetStats(ctx context.Context) (*statsResponse, error) {
	stats := &statsResponse{RAGStatus: "unavailable"}
	if h.ragReady {
		stats.RAGStatus = "ready"
	}

	row := h.readDB.QueryRowContext(ctx, fmt.Sprintf(`SELECT
		COUNT(DISTINCT game_date),
		COUNT(DISTINCT CASE WHEN Name NOT IN ('Totals', 'TM', 'Team') THEN Name END),
		COALESCE(AVG(CASE WHEN Name = 'Totals' THEN Pts END), 0)
		FROM %s`, h.table))
	if err := row.Scan(&stats.GamesInDB, &stats.PlayersTracked, &stats.AvgPoints); err != nil {
		return nil, domain.ErrExecution("dataset stats: %v", err)
	}
	return stats, nil
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
