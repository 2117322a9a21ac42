package timesheethandler

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timesheets/internal/domain/auth"
	"timesheets/internal/domain/employee"
	"timesheets/internal/domain/export"
	"timesheets/internal/domain/timesheet"
	"timesheets/internal/platform/jobs"
	"timesheets/internal/platform/metrics"
	"timesheets/internal/transport/http/middleware"
)

const secret = "handler-secret"

type testEnv struct {
	t       *testing.T
	router  chi.Router
	now     time.Time
	metrics *metrics.Collector
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{t: t, now: time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC), metrics: metrics.New()}

	store := timesheet.NewMemoryStore()
	svc := timesheet.NewService(store, timesheet.DefaultPolicy(), time.Monday, time.UTC)
	svc.Now = func() time.Time { return env.now }
	directory := employee.NewMemoryDirectory(
		employee.Employee{ID: "e1", FirstName: "Ada", LastName: "Lovelace", Department: "Engineering", Position: "Engineer"},
		employee.Employee{ID: "m1", FirstName: "Grace", LastName: "Hopper", Department: "Engineering", Position: "Manager"},
	)
	exporter := export.NewExporter(export.NewAggregator(store, directory, time.Monday, time.UTC), 366)

	ctx, cancel := context.WithCancel(context.Background())
	runner := jobs.New(jobs.Options{Workers: 1, QueueSize: 4, ResultTTL: time.Hour}, nil, nil)
	runner.Start(ctx)
	t.Cleanup(func() {
		cancel()
		runner.Wait()
	})

	h := NewHandler(timesheet.NewWorkflow(svc), exporter, runner, auth.StaticPermissions{})
	h.Metrics = env.metrics
	h.ExportLimit = middleware.RateLimit(100, time.Minute)

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Auth(secret))
	r.Route("/api/v1", h.RegisterRoutes)
	env.router = r
	return env
}

var (
	employeeClaims = auth.Claims{UserID: "u1", EmployeeID: "e1", RoleName: auth.RoleEmployee}
	managerClaims  = auth.Claims{UserID: "u2", EmployeeID: "m1", RoleName: auth.RoleManager}
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (env *testEnv) do(claims *auth.Claims, method, path string, body any) (*httptest.ResponseRecorder, envelope) {
	env.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(env.t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if claims != nil {
		token, err := auth.GenerateToken(secret, *claims, time.Hour)
		require.NoError(env.t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	var out envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(env.t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func (env *testEnv) workDay() {
	env.t.Helper()
	rec, _ := env.do(&employeeClaims, http.MethodPost, "/api/v1/timesheets/clock-in", nil)
	require.Equal(env.t, http.StatusCreated, rec.Code)
	env.now = env.now.Add(3 * time.Hour)
	rec, _ = env.do(&employeeClaims, http.MethodPost, "/api/v1/timesheets/breaks/start", nil)
	require.Equal(env.t, http.StatusOK, rec.Code)
	env.now = env.now.Add(30 * time.Minute)
	rec, _ = env.do(&employeeClaims, http.MethodPost, "/api/v1/timesheets/breaks/end", nil)
	require.Equal(env.t, http.StatusOK, rec.Code)
	env.now = env.now.Add(4*time.Hour + 30*time.Minute)
	rec, _ = env.do(&employeeClaims, http.MethodPost, "/api/v1/timesheets/clock-out", nil)
	require.Equal(env.t, http.StatusOK, rec.Code)
}

func TestUnauthenticated(t *testing.T) {
	env := newEnv(t)
	rec, out := env.do(nil, http.MethodPost, "/api/v1/timesheets/clock-in", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", out.Error.Code)
}

func TestDuplicateClockInReportsReason(t *testing.T) {
	env := newEnv(t)
	rec, _ := env.do(&employeeClaims, http.MethodPost, "/api/v1/timesheets/clock-in", nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, out := env.do(&employeeClaims, http.MethodPost, "/api/v1/timesheets/clock-in", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "invalid_state", out.Error.Code)
	assert.Equal(t, "already clocked in for this date", out.Error.Message)
}

func TestBreakAlreadyOpen(t *testing.T) {
	env := newEnv(t)
	env.do(&employeeClaims, http.MethodPost, "/api/v1/timesheets/clock-in", nil)
	env.now = env.now.Add(time.Hour)
	rec, _ := env.do(&employeeClaims, http.MethodPost, "/api/v1/timesheets/breaks/start", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, out := env.do(&employeeClaims, http.MethodPost, "/api/v1/timesheets/breaks/start", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "a break is already open", out.Error.Message)
}

func TestPunchForAnotherEmployeeIsForbidden(t *testing.T) {
	env := newEnv(t)
	rec, out := env.do(&managerClaims, http.MethodPost, "/api/v1/timesheets/clock-in", map[string]string{"employeeId": "e1"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "forbidden", out.Error.Code)
}

func TestApprovalFlow(t *testing.T) {
	env := newEnv(t)
	env.workDay()
	base := "/api/v1/timesheets/entries/e1/2024-03-04"

	rec, out := env.do(&employeeClaims, http.MethodPatch, base, map[string]string{"jobCode": "ENG", "rate": "30.00"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec, _ = env.do(&employeeClaims, http.MethodPost, base+"/submit", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = env.do(&employeeClaims, http.MethodPost, base+"/approve/manager", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = env.do(&employeeClaims, http.MethodPost, base+"/approve/employee", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec, out = env.do(&managerClaims, http.MethodPost, base+"/approve/manager", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var entry timesheet.TimeEntry
	require.NoError(t, json.Unmarshal(out.Data, &entry))
	assert.Equal(t, timesheet.StatusApproved, entry.Status)
	assert.Equal(t, 450, entry.TotalWorkTime)
	assert.Equal(t, "ENG", entry.JobCode)
	assert.NotNil(t, entry.ApprovalDate)

	rec, out = env.do(&managerClaims, http.MethodPost, base+"/reject", map[string]string{"note": "late"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "invalid_state", out.Error.Code)
}

func TestRejectRequiresNote(t *testing.T) {
	env := newEnv(t)
	env.workDay()
	rec, out := env.do(&managerClaims, http.MethodPost, "/api/v1/timesheets/entries/e1/2024-03-04/reject", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_error", out.Error.Code)
}

func TestNegativeRateIsValidationError(t *testing.T) {
	env := newEnv(t)
	env.workDay()
	rec, out := env.do(&employeeClaims, http.MethodPatch, "/api/v1/timesheets/entries/e1/2024-03-04", map[string]string{"rate": "-1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "rate must not be negative", out.Error.Message)
}

func TestEntryNotFound(t *testing.T) {
	env := newEnv(t)
	rec, out := env.do(&managerClaims, http.MethodGet, "/api/v1/timesheets/entries/e1/2024-03-04", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "time entry not found", out.Error.Message)
}

func TestListEntriesScopedToEmployee(t *testing.T) {
	env := newEnv(t)
	env.workDay()

	rec, out := env.do(&employeeClaims, http.MethodGet, "/api/v1/timesheets/entries?from=2024-03-01&to=2024-03-31", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var entries []timesheet.TimeEntry
	require.NoError(t, json.Unmarshal(out.Data, &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, 450, entries[0].WeekTotal)

	rec, _ = env.do(&employeeClaims, http.MethodGet, "/api/v1/timesheets/entries?employeeId=m1", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = env.do(&employeeClaims, http.MethodGet, "/api/v1/timesheets/entries?status=done", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSynchronousExport(t *testing.T) {
	env := newEnv(t)
	env.workDay()

	rec, _ := env.do(&managerClaims, http.MethodGet, "/api/v1/timesheets/export?format=csv&startDate=2024-03-01&endDate=2024-03-31&department=Engineering", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `attachment; filename="timesheets_2024-03-01_to_2024-03-31_Engineering.csv"`, rec.Header().Get("Content-Disposition"))
	assert.Contains(t, rec.Body.String(), `"Ada Lovelace","e1","Engineering"`)
	assert.Equal(t, map[string]uint64{"csv.completed": 1}, env.metrics.Snapshot()["exportsTotal"])

	rec, _ = env.do(&employeeClaims, http.MethodGet, "/api/v1/timesheets/export?format=csv&startDate=2024-03-01&endDate=2024-03-31", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestExportValidation(t *testing.T) {
	env := newEnv(t)
	rec, out := env.do(&managerClaims, http.MethodGet, "/api/v1/timesheets/export?format=docx&startDate=2024-03-31&endDate=2024-03-01", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_error", out.Error.Code)

	rec, out = env.do(&managerClaims, http.MethodGet, "/api/v1/timesheets/export?format=docx&startDate=2024-03-01&endDate=2024-03-07", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "unsupported_format", out.Error.Code)
	assert.Contains(t, out.Error.Message, "2024-03-01 to 2024-03-07")

	rec, _ = env.do(&managerClaims, http.MethodPost, "/api/v1/timesheets/exports", map[string]string{
		"format": "html", "startDate": "2024-03-01", "endDate": "2024-03-07",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSummary(t *testing.T) {
	env := newEnv(t)
	env.workDay()
	rec, out := env.do(&managerClaims, http.MethodGet, "/api/v1/timesheets/summary?from=2024-03-01&to=2024-03-31", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var summary export.Summary
	require.NoError(t, json.Unmarshal(out.Data, &summary))
	assert.Equal(t, 1, summary.Entries)
	assert.Equal(t, 450, summary.TotalWorkMinutes)
}

func TestBackgroundExport(t *testing.T) {
	env := newEnv(t)
	env.workDay()

	rec, out := env.do(&managerClaims, http.MethodPost, "/api/v1/timesheets/exports", map[string]string{
		"format": "spreadsheet", "startDate": "2024-03-01", "endDate": "2024-03-31",
	})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	var run jobs.Run
	require.NoError(t, json.Unmarshal(out.Data, &run))

	path := "/api/v1/timesheets/exports/" + run.ID
	require.Eventually(t, func() bool {
		_, out := env.do(&managerClaims, http.MethodGet, path, nil)
		var current jobs.Run
		if err := json.Unmarshal(out.Data, &current); err != nil {
			return false
		}
		return current.Status == jobs.StatusCompleted
	}, 5*time.Second, 10*time.Millisecond)

	rec, _ = env.do(&managerClaims, http.MethodGet, path+"/download", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")))

	other := auth.Claims{UserID: "u9", EmployeeID: "m9", RoleName: auth.RoleManager}
	rec, _ = env.do(&other, http.MethodGet, path, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, out = env.do(&managerClaims, http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "export_not_ready", out.Error.Code)
}
