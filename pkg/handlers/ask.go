package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/ekaya-inc/herdwise/pkg/apperrors"
	"github.com/ekaya-inc/herdwise/pkg/logging"
	"github.com/ekaya-inc/herdwise/pkg/models"
	"github.com/ekaya-inc/herdwise/pkg/services"
)

// maxRequestBytes bounds request bodies. Chart spec payloads carry sample rows.
const maxRequestBytes = 1 << 20

// AskHandler serves the question-answering API.
type AskHandler struct {
	pipeline  services.Pipeline
	specifier services.ChartSpecifier
	// specURLs are the chart services a request may name in spec_service_url.
	specURLs []string
	logger   *zap.Logger
}

// NewAskHandler creates a handler. specifier answers /generate-chart-spec and
// must not itself call a remote specification service. A request naming a
// spec_service_url outside specURLs is rejected.
func NewAskHandler(pipeline services.Pipeline, specifier services.ChartSpecifier, specURLs []string, logger *zap.Logger) *AskHandler {
	return &AskHandler{
		pipeline:  pipeline,
		specifier: specifier,
		specURLs:  specURLs,
		logger:    logger.Named("ask"),
	}
}

// RegisterRoutes registers the ask handler's routes on the given mux.
func (h *AskHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/ask", h.Ask)
	mux.HandleFunc("POST "+services.ChartSpecPath, h.GenerateChartSpec)
}

// Ask handles POST /api/ask. The body is a models.AskRequest and the response
// is always a models.PipelineResult; the status code reflects its error
// category.
func (h *AskHandler) Ask(w http.ResponseWriter, r *http.Request) {
	var req models.AskRequest
	if !h.decode(w, r, &req) {
		return
	}

	switch req.Force {
	case models.ForceNone, models.ForceChart, models.ForceText:
	default:
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", `force_intent must be "chart", "text" or empty`)
		return
	}
	if req.SpecServiceURL != "" && !slices.Contains(h.specURLs, strings.TrimRight(strings.TrimSpace(req.SpecServiceURL), "/")) {
		h.logger.Warn("Rejected spec_service_url outside the allow list", zap.String("spec_service_url", req.SpecServiceURL))
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "spec_service_url is not an allowed chart specification service")
		return
	}

	result := h.pipeline.Run(r.Context(), &req)

	if err := WriteJSON(w, StatusForResult(result), result); err != nil {
		h.logger.Error("Failed to encode ask response", zap.Error(err))
	}
}

// GenerateChartSpec handles POST /generate-chart-spec, letting this service act
// as the remote specification service for another instance.
func (h *AskHandler) GenerateChartSpec(w http.ResponseWriter, r *http.Request) {
	var payload services.ChartSpecPayload
	if !h.decode(w, r, &payload) {
		return
	}

	results := &models.ResultSet{
		Columns: payload.Columns,
		Rows:    payload.Results,
	}
	if len(results.Columns) == 0 && len(results.Rows) > 0 {
		results.Columns = columnsOf(results.Rows[0])
	}

	spec, err := h.specifier.Specify(r.Context(), services.ChartSpecRequest{
		Question: payload.Query,
		SQL:      payload.SQL,
		Results:  results,
	})
	switch {
	case err == nil:
	case errors.Is(err, apperrors.ErrEmptyResult):
		_ = ErrorResponse(w, http.StatusUnprocessableEntity, string(models.ErrEmptyResult), err.Error())
		return
	default:
		h.logger.Warn("Chart spec generation failed", zap.Error(err))
		_ = ErrorResponse(w, http.StatusUnprocessableEntity, string(models.ErrSpecificationFailed), logging.SanitizeError(err))
		return
	}

	if err := WriteJSON(w, http.StatusOK, spec); err != nil {
		h.logger.Error("Failed to encode chart spec response", zap.Error(err))
	}
}

func (h *AskHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.logger.Debug("Rejected request body", zap.String("path", r.URL.Path), zap.Error(err))
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "request body must be valid JSON")
		return false
	}
	return true
}

// StatusForResult maps a pipeline result to an HTTP status.
func StatusForResult(result *models.PipelineResult) int {
	if result.Success || result.Error == nil {
		return http.StatusOK
	}
	switch result.Error.Category {
	case models.ErrSecurityBlocked:
		return http.StatusForbidden
	case models.ErrConnectivityFailed:
		return http.StatusServiceUnavailable
	default:
		return http.StatusUnprocessableEntity
	}
}

func columnsOf(row map[string]any) []string {
	cols := make([]string, 0, len(row))
	for k := range row {
		if strings.TrimSpace(k) != "" {
			cols = append(cols, k)
		}
	}
	sort.Strings(cols)
	return cols
}
