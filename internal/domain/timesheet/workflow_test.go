package timesheet

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timesheets/internal/domain/auth"
)

var (
	employee = auth.Actor{UserID: "u1", EmployeeID: "e1", Role: auth.RoleEmployee}
	other    = auth.Actor{UserID: "u2", EmployeeID: "e2", Role: auth.RoleEmployee}
	manager  = auth.Actor{UserID: "u3", EmployeeID: "m1", Role: auth.RoleManager}
	admin    = auth.Actor{UserID: "u4", Role: auth.RoleAdmin}
)

func newTestWorkflow(t *testing.T) (*Workflow, *clock) {
	t.Helper()
	svc, c, _ := newTestService(t)
	return NewWorkflow(svc), c
}

func TestWorkflowPunchForOthersRequiresAdmin(t *testing.T) {
	ctx := context.Background()
	wf, _ := newTestWorkflow(t)

	_, err := wf.ClockIn(ctx, other, "e1")
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = wf.ClockIn(ctx, manager, "e1")
	assert.ErrorIs(t, err, ErrAuthorization)

	entry, err := wf.ClockIn(ctx, admin, "e1")
	require.NoError(t, err)
	assert.Equal(t, "e1", entry.EmployeeID)
}

func TestWorkflowPunchDefaultsToCaller(t *testing.T) {
	wf, _ := newTestWorkflow(t)
	entry, err := wf.ClockIn(context.Background(), employee, "")
	require.NoError(t, err)
	assert.Equal(t, "e1", entry.EmployeeID)

	_, err = wf.ClockIn(context.Background(), admin, "")
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestWorkflowApprovalRoles(t *testing.T) {
	ctx := context.Background()
	wf, c := newTestWorkflow(t)

	entry, err := wf.ClockIn(ctx, employee, "")
	require.NoError(t, err)
	c.set(at("17:00"))
	_, err = wf.ClockOut(ctx, employee, "")
	require.NoError(t, err)

	_, err = wf.Submit(ctx, other, "e1", entry.Date)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = wf.Submit(ctx, employee, "e1", entry.Date)
	require.NoError(t, err)

	_, err = wf.ManagerApprove(ctx, employee, "e1", entry.Date)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = wf.EmployeeApprove(ctx, manager, "e1", entry.Date)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = wf.EmployeeApprove(ctx, employee, "e1", entry.Date)
	require.NoError(t, err)
	approved, err := wf.ManagerApprove(ctx, manager, "e1", entry.Date)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, approved.Status)
	assert.Equal(t, "m1", approved.ApprovedBy)
}

func TestWorkflowRejectAndReopenAreManagerOnly(t *testing.T) {
	ctx := context.Background()
	wf, c := newTestWorkflow(t)

	entry, err := wf.ClockIn(ctx, employee, "")
	require.NoError(t, err)
	c.set(at("17:00"))
	_, err = wf.ClockOut(ctx, employee, "")
	require.NoError(t, err)
	_, err = wf.Submit(ctx, employee, "e1", entry.Date)
	require.NoError(t, err)

	_, err = wf.Reject(ctx, employee, "e1", entry.Date, "self reject")
	assert.ErrorIs(t, err, ErrForbidden)

	rejected, err := wf.Reject(ctx, admin, "e1", entry.Date, "missing clock-out")
	require.NoError(t, err)
	assert.Equal(t, "u4", rejected.ApprovedBy)

	_, err = wf.Reopen(ctx, employee, "e1", entry.Date)
	assert.ErrorIs(t, err, ErrForbidden)
	reopened, err := wf.Reopen(ctx, manager, "e1", entry.Date)
	require.NoError(t, err)
	assert.Equal(t, StatusClockedOut, reopened.Status)
}

func TestWorkflowListScopesEmployees(t *testing.T) {
	ctx := context.Background()
	wf, _ := newTestWorkflow(t)

	_, err := wf.ClockIn(ctx, employee, "")
	require.NoError(t, err)
	_, err = wf.ClockIn(ctx, other, "")
	require.NoError(t, err)

	own, err := wf.List(ctx, employee, Filter{})
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.Equal(t, "e1", own[0].EmployeeID)

	_, err = wf.List(ctx, employee, Filter{EmployeeID: "e2"})
	assert.ErrorIs(t, err, ErrForbidden)

	all, err := wf.List(ctx, manager, Filter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
