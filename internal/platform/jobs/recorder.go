package jobs

import (
	"context"

	"github.com/goccy/go-json"

	"timesheets/internal/platform/querier"
)

// RunRecorder persists run history.
type RunRecorder interface {
	Started(ctx context.Context, run Run) error
	Finished(ctx context.Context, run Run) error
}

type PGRecorder struct {
	DB querier.Querier
}

func NewPGRecorder(db querier.Querier) *PGRecorder {
	return &PGRecorder{DB: db}
}

func (r *PGRecorder) Started(ctx context.Context, run Run) error {
	_, err := r.DB.Exec(ctx, `
    INSERT INTO job_runs (id, job_type, owner_id, status, started_at)
    VALUES ($1,$2,$3,$4,COALESCE($5, now()))
    ON CONFLICT (id) DO UPDATE SET status = EXCLUDED.status, started_at = EXCLUDED.started_at
  `, run.ID, run.Type, run.OwnerID, string(run.Status), run.StartedAt)
	return err
}

// Finished upserts so runs cancelled while queued are recorded too.
func (r *PGRecorder) Finished(ctx context.Context, run Run) error {
	details := map[string]any{}
	if run.Details != nil {
		details["result"] = run.Details
	}
	if run.Error != "" {
		details["error"] = run.Error
	}
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		return err
	}
	_, err = r.DB.Exec(ctx, `
    INSERT INTO job_runs (id, job_type, owner_id, status, details_json, started_at, completed_at)
    VALUES ($1,$2,$3,$4,$5,COALESCE($6, now()),$7)
    ON CONFLICT (id) DO UPDATE
    SET status = EXCLUDED.status, details_json = EXCLUDED.details_json, completed_at = EXCLUDED.completed_at
  `, run.ID, run.Type, run.OwnerID, string(run.Status), detailsJSON, run.StartedAt, run.CompletedAt)
	return err
}
