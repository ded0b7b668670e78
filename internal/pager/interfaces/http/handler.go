package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"quake-pager/internal/audit"
	"quake-pager/internal/auth"
	pagerapp "quake-pager/internal/pager/application"
	pager "quake-pager/internal/pager/domain"
	"quake-pager/internal/pager/interfaces"
	"quake-pager/internal/pipeline"
)

// PipelineRunner triggers a processing run for one event version.
type PipelineRunner interface {
	ProcessEvent(ctx context.Context, req pipeline.Request) (*pager.Version, error)
}

// VersionsHandler serves published version queries and exports under
// /api/v1/events/.
type VersionsHandler struct {
	service *pagerapp.PublishService
}

// NewVersionsHandler constructs a VersionsHandler.
func NewVersionsHandler(service *pagerapp.PublishService) (*VersionsHandler, error) {
	if service == nil {
		return nil, errors.New("pager handler: nil service")
	}
	return &VersionsHandler{service: service}, nil
}

// ServeHTTP routes version requests.
func (h *VersionsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !strings.HasPrefix(r.URL.Path, "/api/v1/events/") {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/events/")
	parts := strings.Split(path, "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] != "versions" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	eventCode := parts[0]

	switch {
	case len(parts) == 2:
		h.handleHistory(w, r, eventCode)
	case len(parts) == 3 && parts[2] == "latest":
		h.handleLatest(w, r, eventCode)
	case len(parts) == 3:
		h.handleVersion(w, r, eventCode, parts[2])
	case len(parts) == 4 && strings.HasPrefix(parts[3], "export."):
		h.handleExport(w, r, eventCode, parts[2], strings.TrimPrefix(parts[3], "export."))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *VersionsHandler) handleHistory(w http.ResponseWriter, r *http.Request, eventCode string) {
	history, err := h.service.History(r.Context(), eventCode)
	if err != nil {
		respondVersionError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(history)
}

func (h *VersionsHandler) handleLatest(w http.ResponseWriter, r *http.Request, eventCode string) {
	latest, err := h.service.Latest(r.Context(), eventCode)
	if err != nil {
		respondVersionError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(latest)
}

func (h *VersionsHandler) handleVersion(w http.ResponseWriter, r *http.Request, eventCode, raw string) {
	version, err := h.lookupVersion(r.Context(), eventCode, raw)
	if err != nil {
		respondVersionError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(version)
}

func (h *VersionsHandler) handleExport(w http.ResponseWriter, r *http.Request, eventCode, raw, format string) {
	version, err := h.lookupVersion(r.Context(), eventCode, raw)
	if err != nil {
		respondVersionError(w, err)
		return
	}

	switch format {
	case "pdf":
		data, err := interfaces.BuildVersionPDF(version)
		if err != nil {
			http.Error(w, "export failed", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", "attachment; filename="+exportFilename(version, "pdf"))
		_, _ = w.Write(data)
	case "xlsx":
		data, err := interfaces.BuildVersionXLSX(version)
		if err != nil {
			http.Error(w, "export failed", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", "attachment; filename="+exportFilename(version, "xlsx"))
		_, _ = w.Write(data)
	default:
		http.Error(w, "format must be pdf or xlsx", http.StatusBadRequest)
	}
}

func (h *VersionsHandler) lookupVersion(ctx context.Context, eventCode, raw string) (*pager.Version, error) {
	number, err := strconv.Atoi(raw)
	if err != nil || number <= 0 {
		return nil, errInvalidVersionNumber
	}
	history, err := h.service.History(ctx, eventCode)
	if err != nil {
		return nil, err
	}
	for i := range history {
		if history[i].Number == number {
			return &history[i], nil
		}
	}
	return nil, pager.ErrNotFound
}

var errInvalidVersionNumber = errors.New("version number must be a positive integer")

func respondVersionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, pager.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, errInvalidVersionNumber):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, "query versions error", http.StatusInternalServerError)
	}
}

func exportFilename(version *pager.Version, ext string) string {
	return version.EventCode + "-v" + strconv.Itoa(version.Number) + "." + ext
}

// RunsHandler triggers processing runs via POST /api/v1/runs.
type RunsHandler struct {
	runner      PipelineRunner
	auditLogger audit.Logger
}

// NewRunsHandler constructs a RunsHandler.
func NewRunsHandler(runner PipelineRunner, auditLogger audit.Logger) (*RunsHandler, error) {
	if runner == nil {
		return nil, errors.New("pager handler: nil runner")
	}
	return &RunsHandler{runner: runner, auditLogger: auditLogger}, nil
}

// ServeHTTP handles POST /api/v1/runs.
func (h *RunsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		EventCode     string `json:"event_code"`
		ShakeGridPath string `json:"shake_grid_path"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.EventCode == "" || req.ShakeGridPath == "" {
		http.Error(w, "event_code and shake_grid_path are required", http.StatusBadRequest)
		return
	}

	version, err := h.runner.ProcessEvent(r.Context(), pipeline.Request{
		EventCode:     req.EventCode,
		ShakeGridPath: req.ShakeGridPath,
	})
	if err != nil {
		if errors.Is(err, pipeline.ErrBadInput) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, "processing run failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(version)
	h.logAudit(r, req.EventCode, version.Number)
}

func (h *RunsHandler) logAudit(r *http.Request, eventCode string, number int) {
	if h.auditLogger == nil {
		return
	}
	payload, _ := json.Marshal(map[string]any{"version": number})
	_ = h.auditLogger.Log(r.Context(), audit.Entry{
		Actor:        auth.SubjectFromContext(r.Context()),
		Role:         string(auth.RoleFromContext(r.Context())),
		Action:       "pipeline.run",
		ResourceType: "event",
		ResourceID:   eventCode,
		EventCode:    eventCode,
		Metadata:     payload,
		IP:           audit.ClientIP(r),
		UserAgent:    r.UserAgent(),
	})
}
