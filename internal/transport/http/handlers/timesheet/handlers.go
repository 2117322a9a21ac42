package timesheethandler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"timesheets/internal/domain/auth"
	"timesheets/internal/domain/employee"
	"timesheets/internal/domain/export"
	"timesheets/internal/domain/timesheet"
	"timesheets/internal/platform/jobs"
	"timesheets/internal/transport/http/api"
	"timesheets/internal/transport/http/middleware"
	"timesheets/internal/transport/http/shared"
)

// ExportMetrics counts export outcomes.
type ExportMetrics interface {
	RecordExport(outcome string)
}

type Handler struct {
	Workflow *timesheet.Workflow
	Exporter *export.Exporter
	Jobs     *jobs.Service
	Perms    middleware.PermissionStore
	Metrics  ExportMetrics
	// ExportLimit throttles the export endpoints. Nil means unlimited.
	ExportLimit func(http.Handler) http.Handler
}

func NewHandler(workflow *timesheet.Workflow, exporter *export.Exporter, jobsSvc *jobs.Service, perms middleware.PermissionStore) *Handler {
	return &Handler{Workflow: workflow, Exporter: exporter, Jobs: jobsSvc, Perms: perms}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	punch := middleware.RequirePermission(auth.PermTimesheetPunch, h.Perms)
	read := middleware.RequirePermission(auth.PermTimesheetRead, h.Perms)
	approve := middleware.RequirePermission(auth.PermTimesheetApprove, h.Perms)
	exportPerm := middleware.RequirePermission(auth.PermTimesheetExport, h.Perms)
	limit := h.ExportLimit
	if limit == nil {
		limit = func(next http.Handler) http.Handler { return next }
	}

	r.Route("/timesheets", func(r chi.Router) {
		r.With(punch).Post("/clock-in", h.handleClockIn)
		r.With(punch).Post("/breaks/start", h.handleStartBreak)
		r.With(punch).Post("/breaks/end", h.handleEndBreak)
		r.With(punch).Post("/clock-out", h.handleClockOut)

		r.With(read).Get("/entries", h.handleListEntries)
		r.Route("/entries/{employeeID}/{date}", func(r chi.Router) {
			r.With(read).Get("/", h.handleGetEntry)
			r.With(punch).Patch("/", h.handleUpdateEntry)
			r.With(punch).Post("/submit", h.handleSubmit)
			r.With(punch).Post("/approve/employee", h.handleEmployeeApprove)
			r.With(approve).Post("/approve/manager", h.handleManagerApprove)
			r.With(approve).Post("/reject", h.handleReject)
			r.With(approve).Post("/reopen", h.handleReopen)
		})

		r.With(exportPerm).Get("/summary", h.handleSummary)
		r.With(exportPerm, limit).Get("/export", h.handleExport)
		r.With(exportPerm, limit).Post("/exports", h.handleSubmitExport)
		r.With(exportPerm).Get("/exports/{runID}", h.handleGetExport)
		r.With(exportPerm).Get("/exports/{runID}/download", h.handleDownloadExport)
		r.With(exportPerm).Delete("/exports/{runID}", h.handleCancelExport)
	})
}

type punchPayload struct {
	EmployeeID string `json:"employeeId" validate:"omitempty,max=64"`
}

type punchFunc func(ctx context.Context, actor auth.Actor, employeeID string) (timesheet.TimeEntry, error)

func (h *Handler) handleClockIn(w http.ResponseWriter, r *http.Request) {
	h.punch(w, r, h.Workflow.ClockIn, http.StatusCreated)
}

func (h *Handler) handleStartBreak(w http.ResponseWriter, r *http.Request) {
	h.punch(w, r, h.Workflow.StartBreak, http.StatusOK)
}

func (h *Handler) handleEndBreak(w http.ResponseWriter, r *http.Request) {
	h.punch(w, r, h.Workflow.EndBreak, http.StatusOK)
}

func (h *Handler) handleClockOut(w http.ResponseWriter, r *http.Request) {
	h.punch(w, r, h.Workflow.ClockOut, http.StatusOK)
}

func (h *Handler) punch(w http.ResponseWriter, r *http.Request, fn punchFunc, status int) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var payload punchPayload
	if !decodeOptional(w, r, &payload) {
		return
	}
	entry, err := fn(r.Context(), actor, strings.TrimSpace(payload.EmployeeID))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if status == http.StatusCreated {
		api.Created(w, entry, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, entry, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListEntries(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	filter, ok := parseFilter(w, r, r.URL.Query())
	if !ok {
		return
	}
	entries, err := h.Workflow.List(r.Context(), actor, filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if entries == nil {
		entries = []timesheet.TimeEntry{}
	}
	api.Success(w, entries, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGetEntry(w http.ResponseWriter, r *http.Request) {
	h.onEntry(w, r, func(ctx context.Context, actor auth.Actor, employeeID string, date time.Time) (timesheet.TimeEntry, error) {
		return h.Workflow.Get(ctx, actor, employeeID, date)
	})
}

type detailsPayload struct {
	JobCode        *string `json:"jobCode" validate:"omitempty,max=64"`
	Rate           *string `json:"rate"`
	Shift          *string `json:"shift" validate:"omitempty,max=64"`
	TimesheetNotes *string `json:"timesheetNotes" validate:"omitempty,max=2000"`
}

func (h *Handler) handleUpdateEntry(w http.ResponseWriter, r *http.Request) {
	var payload detailsPayload
	if !decodeRequired(w, r, &payload) {
		return
	}
	v := shared.NewValidator()
	v.Struct(payload)
	details := timesheet.Details{JobCode: payload.JobCode, Shift: payload.Shift, TimesheetNotes: payload.TimesheetNotes}
	if payload.Rate != nil {
		rate, err := decimal.NewFromString(strings.TrimSpace(*payload.Rate))
		if err != nil {
			v.Add("rate", "must be a decimal number")
		} else {
			details.Rate = &rate
		}
	}
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}
	h.onEntry(w, r, func(ctx context.Context, actor auth.Actor, employeeID string, date time.Time) (timesheet.TimeEntry, error) {
		return h.Workflow.UpdateDetails(ctx, actor, employeeID, date, details)
	})
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	h.onEntry(w, r, h.Workflow.Submit)
}

func (h *Handler) handleEmployeeApprove(w http.ResponseWriter, r *http.Request) {
	h.onEntry(w, r, h.Workflow.EmployeeApprove)
}

func (h *Handler) handleManagerApprove(w http.ResponseWriter, r *http.Request) {
	h.onEntry(w, r, h.Workflow.ManagerApprove)
}

func (h *Handler) handleReopen(w http.ResponseWriter, r *http.Request) {
	h.onEntry(w, r, h.Workflow.Reopen)
}

type rejectPayload struct {
	Note string `json:"note" validate:"required,max=2000"`
}

func (h *Handler) handleReject(w http.ResponseWriter, r *http.Request) {
	var payload rejectPayload
	if !decodeRequired(w, r, &payload) {
		return
	}
	payload.Note = strings.TrimSpace(payload.Note)
	v := shared.NewValidator()
	v.Struct(payload)
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}
	h.onEntry(w, r, func(ctx context.Context, actor auth.Actor, employeeID string, date time.Time) (timesheet.TimeEntry, error) {
		return h.Workflow.Reject(ctx, actor, employeeID, date, payload.Note)
	})
}

type entryFunc func(ctx context.Context, actor auth.Actor, employeeID string, date time.Time) (timesheet.TimeEntry, error)

func (h *Handler) onEntry(w http.ResponseWriter, r *http.Request, fn entryFunc) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	employeeID := chi.URLParam(r, "employeeID")
	v := shared.NewValidator()
	date, _ := v.Date("date", chi.URLParam(r, "date"))
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}
	entry, err := fn(r.Context(), actor, employeeID, date)
	if err != nil {
		writeError(w, r, err)
		return
	}
	api.Success(w, entry, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	filter, ok := parseFilter(w, r, r.URL.Query())
	if !ok {
		return
	}
	summary, err := h.Exporter.Summarize(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	api.Success(w, summary, middleware.GetRequestID(r.Context()))
}

type exportPayload struct {
	Format     string `json:"format" validate:"required"`
	StartDate  string `json:"startDate" validate:"required"`
	EndDate    string `json:"endDate" validate:"required"`
	Department string `json:"department" validate:"omitempty,max=128"`
	Status     string `json:"status"`
	EmployeeID string `json:"employeeId" validate:"omitempty,max=64"`
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req, ok := h.exportRequest(w, r, exportPayload{
		Format:     q.Get("format"),
		StartDate:  q.Get("startDate"),
		EndDate:    q.Get("endDate"),
		Department: q.Get("department"),
		Status:     q.Get("status"),
		EmployeeID: q.Get("employeeId"),
	})
	if !ok {
		return
	}

	file, err := h.Exporter.Export(r.Context(), req)
	if err != nil {
		h.recordExport(string(req.Format) + ".failed")
		writeError(w, r, err)
		return
	}
	h.recordExport(string(req.Format) + ".completed")
	writeFile(w, file.Name, file.ContentType, file.Data)
}

func (h *Handler) handleSubmitExport(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var payload exportPayload
	if !decodeRequired(w, r, &payload) {
		return
	}
	req, ok := h.exportRequest(w, r, payload)
	if !ok {
		return
	}

	exporter := h.Exporter
	run, err := h.Jobs.Submit(jobs.JobTimesheetExport, actor.UserID, func(ctx context.Context) (jobs.Output, error) {
		file, err := exporter.Export(ctx, req)
		if err != nil {
			return jobs.Output{}, err
		}
		return jobs.Output{
			Name:        file.Name,
			ContentType: file.ContentType,
			Data:        file.Data,
			Details:     map[string]any{"fileName": file.Name, "format": req.Format, "rows": file.Rows, "bytes": len(file.Data)},
		}, nil
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/v1/timesheets/exports/"+run.ID)
	api.Accepted(w, run, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGetExport(w http.ResponseWriter, r *http.Request) {
	run, ok := h.ownedRun(w, r)
	if !ok {
		return
	}
	api.Success(w, run, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleDownloadExport(w http.ResponseWriter, r *http.Request) {
	run, ok := h.ownedRun(w, r)
	if !ok {
		return
	}
	out, err := h.Jobs.Result(r.Context(), run.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeFile(w, out.Name, out.ContentType, out.Data)
}

func (h *Handler) handleCancelExport(w http.ResponseWriter, r *http.Request) {
	run, ok := h.ownedRun(w, r)
	if !ok {
		return
	}
	run, err := h.Jobs.Cancel(run.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	api.Success(w, run, middleware.GetRequestID(r.Context()))
}

// ownedRun loads a run visible to the caller. Other users' runs read as missing.
func (h *Handler) ownedRun(w http.ResponseWriter, r *http.Request) (jobs.Run, bool) {
	actor, ok := requireActor(w, r)
	if !ok {
		return jobs.Run{}, false
	}
	run, err := h.Jobs.Get(chi.URLParam(r, "runID"))
	if err == nil && run.OwnerID != actor.UserID && !actor.IsAdmin() {
		err = jobs.ErrRunNotFound
	}
	if err != nil {
		writeError(w, r, err)
		return jobs.Run{}, false
	}
	return run, true
}

func (h *Handler) exportRequest(w http.ResponseWriter, r *http.Request, payload exportPayload) (export.Request, bool) {
	v := shared.NewValidator()
	v.Struct(payload)
	format, err := export.ParseFormat(payload.Format)
	if err != nil {
		format = export.Format(strings.ToLower(strings.TrimSpace(payload.Format)))
	}
	var start, end time.Time
	if payload.StartDate != "" {
		start, _ = v.Date("startDate", payload.StartDate)
	}
	if payload.EndDate != "" {
		end, _ = v.Date("endDate", payload.EndDate)
	}
	v.DateOrder("startDate", start, "endDate", end)
	v.Enum("status", payload.Status, statusNames(), "must be a valid time entry status")
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return export.Request{}, false
	}

	req := export.Request{
		Format:     format,
		StartDate:  start,
		EndDate:    end,
		Department: strings.TrimSpace(payload.Department),
		Status:     strings.ToLower(strings.TrimSpace(payload.Status)),
		EmployeeID: strings.TrimSpace(payload.EmployeeID),
	}
	if err := req.Validate(h.Exporter.MaxDays); err != nil {
		writeError(w, r, err)
		return export.Request{}, false
	}
	return req, true
}

func parseFilter(w http.ResponseWriter, r *http.Request, q url.Values) (timesheet.Filter, bool) {
	v := shared.NewValidator()
	var filter timesheet.Filter
	if raw := q.Get("from"); raw != "" {
		filter.From, _ = v.Date("from", raw)
	}
	if raw := q.Get("to"); raw != "" {
		filter.To, _ = v.Date("to", raw)
	}
	v.DateOrder("from", filter.From, "to", filter.To)
	v.Enum("status", q.Get("status"), statusNames(), "must be a valid time entry status")
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return timesheet.Filter{}, false
	}
	filter.Status, _ = timesheet.ParseStatus(strings.ToLower(strings.TrimSpace(q.Get("status"))))
	filter.EmployeeID = strings.TrimSpace(q.Get("employeeId"))
	filter.Department = strings.TrimSpace(q.Get("department"))
	return filter, true
}

func statusNames() []string {
	names := make([]string, 0, len(timesheet.Statuses))
	for _, status := range timesheet.Statuses {
		names = append(names, string(status))
	}
	return names
}

func (h *Handler) recordExport(outcome string) {
	if h.Metrics != nil {
		h.Metrics.RecordExport(outcome)
	}
}

func requireActor(w http.ResponseWriter, r *http.Request) (auth.Actor, bool) {
	actor, ok := middleware.GetActor(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return auth.Actor{}, false
	}
	return actor, true
}

// decodeOptional accepts an empty body.
func decodeOptional(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.Body == nil {
		return true
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return false
	}
	return true
}

func decodeRequired(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.Body == nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return false
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return false
	}
	return true
}

func writeFile(w http.ResponseWriter, name, contentType string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		slog.Warn("write export failed", "file", name, "err", err)
	}
}

// writeError maps domain error categories onto HTTP statuses. Domain errors
// carry user-facing reasons; anything else is logged and reported generically.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	requestID := middleware.GetRequestID(r.Context())
	status, code := classify(err)
	if status == http.StatusInternalServerError && code == "internal_error" {
		slog.Error("request failed", "path", r.URL.Path, "requestId", requestID, "err", err)
		api.Fail(w, status, code, "internal error", requestID)
		return
	}
	api.Fail(w, status, code, err.Error(), requestID)
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, timesheet.ErrConcurrentModification):
		return http.StatusConflict, "concurrent_modification"
	case errors.Is(err, timesheet.ErrValidation):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, timesheet.ErrState):
		return http.StatusConflict, "invalid_state"
	case errors.Is(err, timesheet.ErrAuthorization):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, timesheet.ErrNotFound), errors.Is(err, employee.ErrEmployeeNotFound), errors.Is(err, jobs.ErrRunNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, export.ErrUnsupportedFormat):
		return http.StatusBadRequest, "unsupported_format"
	case errors.Is(err, export.ErrExport):
		return http.StatusInternalServerError, "export_failed"
	case errors.Is(err, jobs.ErrQueueFull):
		return http.StatusServiceUnavailable, "queue_full"
	case errors.Is(err, jobs.ErrRunNotFinished), errors.Is(err, jobs.ErrRunFinished):
		return http.StatusConflict, "export_not_ready"
	case errors.Is(err, jobs.ErrResultNotFound):
		return http.StatusGone, "export_expired"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable, "request_cancelled"
	}
	return http.StatusInternalServerError, "internal_error"
}
