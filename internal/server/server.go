// Package server exposes the calculation engine and the venture dashboard
// over a JSON HTTP API.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/iwvelando/venture-calc/internal/worksheet"
	"github.com/iwvelando/venture-calc/pkg/calc"
	"github.com/iwvelando/venture-calc/pkg/constants"
	"go.uber.org/zap"
)

type handler struct {
	logger      *zap.Logger
	svc         *worksheet.Service
	maxBodySize int64
	version     string
	limiter     *RateLimiter
}

// Handler serves the API. Close releases the rate limiter.
type Handler struct {
	mux     *http.ServeMux
	limiter *RateLimiter
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// Close stops background work started by NewHandler.
func (h *Handler) Close() {
	if h.limiter != nil {
		h.limiter.Stop()
	}
}

// NewHandler constructs the HTTP handler for the calculation and worksheet API.
func NewHandler(svc *worksheet.Service, logger *zap.Logger, opts Options) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}

	if opts.MaxBodySize <= 0 {
		opts.MaxBodySize = constants.DefaultMaxBodySizeBytes
	}

	version := strings.TrimSpace(opts.Version)
	if version == "" {
		version = "dev"
	}

	h := &handler{logger: logger, svc: svc, maxBodySize: opts.MaxBodySize, version: version}
	if opts.RateLimitRequests > 0 && opts.RateLimitWindow > 0 {
		h.limiter = NewRateLimiter(opts.RateLimitRequests, opts.RateLimitWindow)
	}

	mux := http.NewServeMux()

	mux.HandleFunc("/api/version", h.handleVersion)

	// Stateless calculations
	mux.HandleFunc("/api/calculations", h.handleCalculations)
	mux.HandleFunc("/api/calculate/{kind}", h.rateLimit(h.handleCalculate))

	// Ventures and KPIs
	mux.HandleFunc("/api/ventures", h.handleVentures)
	mux.HandleFunc("/api/ventures/{id}", h.handleVenture)
	mux.HandleFunc("/api/ventures/{id}/kpis", h.handleVentureKPIs)
	mux.HandleFunc("/api/kpis/{id}", h.handleKPI)

	// Worksheets
	mux.HandleFunc("/api/worksheets", h.rateLimitWrites(h.handleWorksheets))
	mux.HandleFunc("/api/worksheets/{id}", h.rateLimitWrites(h.handleWorksheet))
	mux.HandleFunc("/api/worksheets/{id}/export", h.handleWorksheetExport)

	return &Handler{mux: mux, limiter: h.limiter}
}

// rateLimitWrites applies the limiter to requests that evaluate a worksheet.
func (h *handler) rateLimitWrites(next http.HandlerFunc) http.HandlerFunc {
	limited := h.rateLimit(next)
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost || r.Method == http.MethodPut {
			limited(w, r)
			return
		}
		next(w, r)
	}
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
}

func (h *handler) handleVersion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{
		"version": h.version,
	})
}

type calculationInfo struct {
	Kind           calc.Kind `json:"kind"`
	RequiredFields []string  `json:"requiredFields"`
}

func (h *handler) handleCalculations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	kinds := calc.Kinds()
	infos := make([]calculationInfo, 0, len(kinds))
	for _, kind := range kinds {
		fields, err := calc.RequiredFields(kind)
		if err != nil {
			h.respondErrorWithOp(w, http.StatusInternalServerError, err.Error(), "server.handleCalculations")
			return
		}
		infos = append(infos, calculationInfo{Kind: kind, RequiredFields: fields})
	}
	h.writeJSON(w, http.StatusOK, infos)
}

func (h *handler) handleCalculate(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleCalculate"
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	kind, err := calc.ParseKind(r.PathValue("kind"))
	if err != nil {
		h.respondErrorWithOp(w, http.StatusNotFound, err.Error(), op)
		return
	}

	start := time.Now()
	var params map[string]interface{}
	if status, err := h.decodeBody(w, r, &params); err != nil {
		h.respondErrorWithOp(w, status, err.Error(), op)
		return
	}
	if params == nil {
		params = make(map[string]interface{})
	}

	result := h.svc.Evaluate(r.Context(), kind, params)
	status := http.StatusOK
	if !result.OK() {
		status = http.StatusBadRequest
	}

	h.logger.Info("calculation computed",
		zap.String("op", op),
		zap.String("kind", string(kind)),
		zap.Bool("ok", result.OK()),
		zap.Duration("duration", time.Since(start)),
	)
	h.writeJSON(w, status, result)
}

func (h *handler) handleVentures(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleVentures"
	switch r.Method {
	case http.MethodGet:
		ventures, err := h.svc.ListVentures(r.Context())
		if err != nil {
			h.respondServiceError(w, err, op)
			return
		}
		h.writeJSON(w, http.StatusOK, ventures)
	case http.MethodPost:
		var in worksheet.VentureInput
		if status, err := h.decodeBody(w, r, &in); err != nil {
			h.respondErrorWithOp(w, status, err.Error(), op)
			return
		}
		venture, err := h.svc.CreateVenture(r.Context(), in)
		if err != nil {
			h.respondServiceError(w, err, op)
			return
		}
		h.writeJSON(w, http.StatusCreated, venture)
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

func (h *handler) handleVenture(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleVenture"
	id := r.PathValue("id")
	switch r.Method {
	case http.MethodGet:
		venture, err := h.svc.GetVenture(r.Context(), id)
		if err != nil {
			h.respondServiceError(w, err, op)
			return
		}
		h.writeJSON(w, http.StatusOK, venture)
	case http.MethodPut:
		var in worksheet.VentureInput
		if status, err := h.decodeBody(w, r, &in); err != nil {
			h.respondErrorWithOp(w, status, err.Error(), op)
			return
		}
		venture, err := h.svc.UpdateVenture(r.Context(), id, in)
		if err != nil {
			h.respondServiceError(w, err, op)
			return
		}
		h.writeJSON(w, http.StatusOK, venture)
	case http.MethodDelete:
		if err := h.svc.DeleteVenture(r.Context(), id); err != nil {
			h.respondServiceError(w, err, op)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}

func (h *handler) handleVentureKPIs(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleVentureKPIs"
	ventureID := r.PathValue("id")
	switch r.Method {
	case http.MethodGet:
		kpis, err := h.svc.ListKPIs(r.Context(), ventureID)
		if err != nil {
			h.respondServiceError(w, err, op)
			return
		}
		h.writeJSON(w, http.StatusOK, kpis)
	case http.MethodPost:
		var in worksheet.KPIInput
		if status, err := h.decodeBody(w, r, &in); err != nil {
			h.respondErrorWithOp(w, status, err.Error(), op)
			return
		}
		kpi, err := h.svc.UpsertKPI(r.Context(), ventureID, in)
		if err != nil {
			h.respondServiceError(w, err, op)
			return
		}
		h.writeJSON(w, http.StatusOK, kpi)
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

func (h *handler) handleKPI(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		methodNotAllowed(w, http.MethodDelete)
		return
	}
	if err := h.svc.DeleteKPI(r.Context(), r.PathValue("id")); err != nil {
		h.respondServiceError(w, err, "server.handleKPI")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) handleWorksheets(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleWorksheets"
	switch r.Method {
	case http.MethodGet:
		worksheets, err := h.svc.ListWorksheets(r.Context(), r.URL.Query().Get("ventureId"))
		if err != nil {
			h.respondServiceError(w, err, op)
			return
		}
		h.writeJSON(w, http.StatusOK, worksheets)
	case http.MethodPost:
		var in worksheet.WorksheetInput
		if status, err := h.decodeBody(w, r, &in); err != nil {
			h.respondErrorWithOp(w, status, err.Error(), op)
			return
		}
		sheet, err := h.svc.CreateWorksheet(r.Context(), in)
		if err != nil {
			h.respondServiceError(w, err, op)
			return
		}
		h.writeJSON(w, http.StatusCreated, sheet)
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

func (h *handler) handleWorksheet(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleWorksheet"
	id := r.PathValue("id")
	switch r.Method {
	case http.MethodGet:
		sheet, err := h.svc.GetWorksheet(r.Context(), id)
		if err != nil {
			h.respondServiceError(w, err, op)
			return
		}
		h.writeJSON(w, http.StatusOK, sheet)
	case http.MethodPut:
		var upd worksheet.WorksheetUpdate
		if status, err := h.decodeBody(w, r, &upd); err != nil {
			h.respondErrorWithOp(w, status, err.Error(), op)
			return
		}
		sheet, err := h.svc.UpdateWorksheet(r.Context(), id, upd)
		if err != nil {
			h.respondServiceError(w, err, op)
			return
		}
		h.writeJSON(w, http.StatusOK, sheet)
	case http.MethodDelete:
		if err := h.svc.DeleteWorksheet(r.Context(), id); err != nil {
			h.respondServiceError(w, err, op)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}

func (h *handler) handleWorksheetExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	id := r.PathValue("id")
	yamlBytes, err := h.svc.ExportYAML(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, err, "server.handleWorksheetExport")
		return
	}

	w.Header().Set("Content-Type", "application/yaml")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "worksheet-"+id+".yaml"))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(yamlBytes); err != nil {
		h.logger.Error("failed to write export", zap.String("op", "server.handleWorksheetExport"), zap.Error(err))
	}
}

// decodeBody reads a JSON request body capped at the configured size. The
// returned status is meaningful only when err is non-nil.
func (h *handler) decodeBody(w http.ResponseWriter, r *http.Request, target interface{}) (int, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return http.StatusRequestEntityTooLarge, fmt.Errorf("request body exceeds limit of %d bytes", h.maxBodySize)
		}
		return http.StatusBadRequest, fmt.Errorf("failed to decode request body: %v", err)
	}
	return 0, nil
}

func statusFor(err error) int {
	var validationErr *worksheet.ValidationError
	switch {
	case errors.Is(err, worksheet.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &validationErr), calc.IsInputError(err), errors.Is(err, calc.ErrUnknownKind):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (h *handler) respondServiceError(w http.ResponseWriter, err error, op string) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("op", op),
			zap.Error(err),
		)
		msg = "internal error"
	}
	h.respondErrorWithOp(w, status, msg, op)
}

func (h *handler) respondErrorWithOp(w http.ResponseWriter, status int, msg string, op string) {
	h.logger.Warn("request rejected",
		zap.String("op", op),
		zap.Int("status", status),
		zap.String("error", msg),
	)

	h.writeJSON(w, status, map[string]string{"error": msg})
}

// writeJSON encodes payload before committing status so that an
// unencodable payload becomes a 500 instead of an empty success.
func (h *handler) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	body, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("failed to encode JSON response",
			zap.String("op", "server.writeJSON"),
			zap.Int("status", status),
			zap.Error(err),
		)
		status = http.StatusInternalServerError
		body = []byte(`{"error":"internal error"}`)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(append(body, '\n')); err != nil {
		h.logger.Error("failed to write JSON response", zap.String("op", "server.writeJSON"), zap.Error(err))
	}
}
