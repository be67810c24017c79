package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"capatrack/internal/bootstrap/logging"
	"capatrack/internal/domain/lifecycle"
	"capatrack/internal/errs"
	"capatrack/internal/ports"
	"capatrack/internal/usecase/tracker"
)

type transitionRequest struct {
	Target         string `json:"target"`
	ActorID        string `json:"actorId"`
	Reason         string `json:"reason,omitempty"`
	OverrideReason string `json:"overrideReason,omitempty"`
}

type createEntityRequest struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	FindingID   string `json:"findingId,omitempty"`
	ActorID     string `json:"actorId"`
}

type taskStatusRequest struct {
	Target  string `json:"target"`
	ActorID string `json:"actorId"`
}

func (s *Server) handleFindingTransition(w http.ResponseWriter, r *http.Request) {
	s.handleTransition(w, r, lifecycle.KindIssue, chi.URLParam(r, "findingID"))
}

func (s *Server) handleCapaTransition(w http.ResponseWriter, r *http.Request) {
	s.handleTransition(w, r, lifecycle.KindCapa, chi.URLParam(r, "capaID"))
}

func (s *Server) handleTransition(w http.ResponseWriter, r *http.Request, kind lifecycle.EntityKind, entityID string) {
	var req transitionRequest
	if !decodeBody(w, r, &req) {
		return
	}

	target, err := lifecycle.ParseStatus(kind, req.Target)
	if err != nil {
		writeError(w, http.StatusBadRequest, "unknown_status", err.Error(), nil)
		return
	}

	result, err := s.svc.RequestTransition(r.Context(), tracker.RequestTransitionInput{
		TenantID:       tenantID(r),
		Kind:           kind,
		EntityID:       entityID,
		Target:         target,
		ActorID:        req.ActorID,
		Reason:         req.Reason,
		OverrideReason: req.OverrideReason,
	})
	if err != nil {
		writeDomainError(r, w, err)
		return
	}

	body := map[string]any{"noOp": result.NoOp}
	switch result.Kind {
	case lifecycle.KindCapa:
		body["capa"] = capaJSON(*result.Capa)
	case lifecycle.KindIssue:
		body["finding"] = findingJSON(*result.Finding)
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleFindingAllowedNext(w http.ResponseWriter, r *http.Request) {
	detail, err := s.svc.GetFindingDetail(r.Context(), tenantID(r), chi.URLParam(r, "findingID"))
	if err != nil {
		writeDomainError(r, w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"current": detail.Finding.Status,
		"allowed": detail.AllowedNext,
	})
}

func (s *Server) handleCapaAllowedNext(w http.ResponseWriter, r *http.Request) {
	detail, err := s.svc.GetCapaDetail(r.Context(), tenantID(r), chi.URLParam(r, "capaID"))
	if err != nil {
		writeDomainError(r, w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"current": detail.Capa.Status,
		"allowed": detail.AllowedNext,
	})
}

func (s *Server) handleFindingHistory(w http.ResponseWriter, r *http.Request) {
	s.handleHistory(w, r, lifecycle.KindIssue, chi.URLParam(r, "findingID"))
}

func (s *Server) handleCapaHistory(w http.ResponseWriter, r *http.Request) {
	s.handleHistory(w, r, lifecycle.KindCapa, chi.URLParam(r, "capaID"))
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request, kind lifecycle.EntityKind, entityID string) {
	entries, err := s.svc.ListHistory(r.Context(), tenantID(r), kind, entityID)
	if err != nil {
		writeDomainError(r, w, err)
		return
	}

	out := make([]map[string]any, 0, len(entries))
	for _, entry := range entries {
		out = append(out, historyJSON(entry))
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": out})
}

func (s *Server) handleListFindings(w http.ResponseWriter, r *http.Request) {
	findings, err := s.svc.ListFindings(r.Context(), tenantID(r))
	if err != nil {
		writeDomainError(r, w, err)
		return
	}
	out := make([]map[string]any, 0, len(findings))
	for _, finding := range findings {
		out = append(out, findingJSON(finding))
	}
	writeJSON(w, http.StatusOK, map[string]any{"findings": out})
}

func (s *Server) handleListCapas(w http.ResponseWriter, r *http.Request) {
	capas, err := s.svc.ListCorrectiveActions(r.Context(), tenantID(r))
	if err != nil {
		writeDomainError(r, w, err)
		return
	}
	out := make([]map[string]any, 0, len(capas))
	for _, capa := range capas {
		out = append(out, capaJSON(capa))
	}
	writeJSON(w, http.StatusOK, map[string]any{"capas": out})
}

func (s *Server) handleGetFinding(w http.ResponseWriter, r *http.Request) {
	detail, err := s.svc.GetFindingDetail(r.Context(), tenantID(r), chi.URLParam(r, "findingID"))
	if err != nil {
		writeDomainError(r, w, err)
		return
	}

	capas := make([]map[string]any, 0, len(detail.Capas))
	for _, capa := range detail.Capas {
		capas = append(capas, capaJSON(capa))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"finding": findingJSON(detail.Finding),
		"capas":   capas,
		"allowed": detail.AllowedNext,
	})
}

func (s *Server) handleGetCapa(w http.ResponseWriter, r *http.Request) {
	detail, err := s.svc.GetCapaDetail(r.Context(), tenantID(r), chi.URLParam(r, "capaID"))
	if err != nil {
		writeDomainError(r, w, err)
		return
	}

	tasks := make([]map[string]any, 0, len(detail.Tasks))
	for _, task := range detail.Tasks {
		tasks = append(tasks, taskJSON(task))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"capa":    capaJSON(detail.Capa),
		"tasks":   tasks,
		"allowed": detail.AllowedNext,
	})
}

func (s *Server) handleCreateFinding(w http.ResponseWriter, r *http.Request) {
	var req createEntityRequest
	if !decodeBody(w, r, &req) {
		return
	}

	finding, err := s.svc.CreateFinding(r.Context(), tracker.CreateFindingInput{
		TenantID:    tenantID(r),
		Title:       req.Title,
		Description: req.Description,
		ActorID:     req.ActorID,
	})
	if err != nil {
		writeDomainError(r, w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"finding": findingJSON(finding)})
}

func (s *Server) handleCreateCapa(w http.ResponseWriter, r *http.Request) {
	var req createEntityRequest
	if !decodeBody(w, r, &req) {
		return
	}

	capa, err := s.svc.CreateCorrectiveAction(r.Context(), tracker.CreateCorrectiveActionInput{
		TenantID:    tenantID(r),
		Title:       req.Title,
		Description: req.Description,
		FindingID:   req.FindingID,
		ActorID:     req.ActorID,
	})
	if err != nil {
		writeDomainError(r, w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"capa": capaJSON(capa)})
}

func (s *Server) handleAddTask(w http.ResponseWriter, r *http.Request) {
	var req createEntityRequest
	if !decodeBody(w, r, &req) {
		return
	}

	task, err := s.svc.AddTask(r.Context(), tracker.AddTaskInput{
		TenantID: tenantID(r),
		CapaID:   chi.URLParam(r, "capaID"),
		Title:    req.Title,
		ActorID:  req.ActorID,
	})
	if err != nil {
		writeDomainError(r, w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"task": taskJSON(task)})
}

func (s *Server) handleSetTaskStatus(w http.ResponseWriter, r *http.Request) {
	var req taskStatusRequest
	if !decodeBody(w, r, &req) {
		return
	}

	target, err := lifecycle.ParseTaskStatus(req.Target)
	if err != nil {
		writeError(w, http.StatusBadRequest, "unknown_status", err.Error(), nil)
		return
	}

	result, err := s.svc.SetTaskStatus(r.Context(), tracker.SetTaskStatusInput{
		TenantID: tenantID(r),
		CapaID:   chi.URLParam(r, "capaID"),
		TaskID:   chi.URLParam(r, "taskID"),
		Target:   target,
		ActorID:  req.ActorID,
	})
	if err != nil {
		writeDomainError(r, w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"task":       taskJSON(result.Task),
		"noOp":       result.NoOp,
		"capaClosed": result.CapaClosed,
	})
}

func (s *Server) handleExportHistory(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="history.csv"`)
	if err := s.svc.ExportHistoryCSV(r.Context(), tenantID(r), w); err != nil {
		// Headers are out; all we can do is log.
		logging.Error(r.Context(), "history export failed", slog.Any("err", errs.Loggable(err)))
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, target any) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid request body: "+err.Error(), nil)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, message string, details map[string]any) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": message,
			"details": details,
		},
	})
}

// writeDomainError maps the domain taxonomy onto HTTP statuses with
// the structured detail the caller needs to act.
func writeDomainError(r *http.Request, w http.ResponseWriter, err error) {
	var invalid *lifecycle.InvalidTransitionError
	var precond *lifecycle.ClosurePreconditionError

	switch {
	case errors.Is(err, ports.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "entity not found", nil)
	case errors.As(err, &invalid):
		writeError(w, http.StatusConflict, "invalid_transition", invalid.Error(), map[string]any{
			"from":    invalid.From,
			"to":      invalid.To,
			"allowed": invalid.Allowed,
		})
	case errors.As(err, &precond):
		writeError(w, http.StatusUnprocessableEntity, "closure_precondition_failed", precond.Error(), map[string]any{
			"violations": precond.Violations,
		})
	case errors.Is(err, ports.ErrVersionConflict):
		writeError(w, http.StatusConflict, "version_conflict", err.Error(), nil)
	case errors.Is(err, lifecycle.ErrUnknownStatus), errors.Is(err, lifecycle.ErrUnknownEntityKind):
		writeError(w, http.StatusBadRequest, "bad_request", err.Error(), nil)
	default:
		logging.Error(r.Context(), "request failed", slog.Any("err", errs.Loggable(err)))
		writeError(w, http.StatusInternalServerError, "internal", "internal error", nil)
	}
}

func findingJSON(finding ports.Finding) map[string]any {
	return map[string]any{
		"findingId":      finding.FindingID,
		"title":          finding.Title,
		"description":    finding.Description,
		"status":         finding.Status,
		"closedBy":       finding.ClosedBy,
		"closedAt":       finding.ClosedAt,
		"reopenedCount":  finding.ReopenedCount,
		"lastReopenedAt": finding.LastReopenedAt,
		"createdAt":      finding.CreatedAt,
		"updatedAt":      finding.UpdatedAt,
	}
}

func capaJSON(capa ports.CorrectiveAction) map[string]any {
	return map[string]any{
		"capaId":         capa.CapaID,
		"title":          capa.Title,
		"description":    capa.Description,
		"status":         capa.Status,
		"findingId":      capa.FindingID,
		"verifiedBy":     capa.VerifiedBy,
		"verifiedAt":     capa.VerifiedAt,
		"closedBy":       capa.ClosedBy,
		"closedAt":       capa.ClosedAt,
		"reopenedCount":  capa.ReopenedCount,
		"lastReopenedAt": capa.LastReopenedAt,
		"createdAt":      capa.CreatedAt,
		"updatedAt":      capa.UpdatedAt,
	}
}

func taskJSON(task ports.CorrectiveActionTask) map[string]any {
	return map[string]any{
		"taskId":    task.TaskID,
		"capaId":    task.CapaID,
		"title":     task.Title,
		"status":    task.Status,
		"createdAt": task.CreatedAt,
		"updatedAt": task.UpdatedAt,
	}
}

func historyJSON(entry ports.StatusHistoryEntry) map[string]any {
	return map[string]any{
		"entryId":        entry.EntryID,
		"entityKind":     entry.EntityKind,
		"entityId":       entry.EntityID,
		"previousStatus": entry.PreviousStatus,
		"newStatus":      entry.NewStatus,
		"changedBy":      entry.ChangedBy,
		"reason":         entry.Reason,
		"source":         entry.Source,
		"metadata":       entry.Metadata,
		"createdAt":      entry.CreatedAt,
	}
}
