package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"timesheets/internal/platform/querier"
	"timesheets/internal/requestctx"
)

type Event struct {
	ID         string          `json:"id"`
	ActorID    string          `json:"actorId"`
	Action     string          `json:"action"`
	EntityType string          `json:"entityType"`
	EntityID   string          `json:"entityId"`
	RequestID  string          `json:"requestId"`
	CreatedAt  time.Time       `json:"createdAt"`
	Before     json.RawMessage `json:"before,omitempty"`
	After      json.RawMessage `json:"after,omitempty"`
}

type Filter struct {
	Action     string
	EntityType string
	EntityID   string
	ActorID    string
}

func (f Filter) matches(evt Event) bool {
	return (f.Action == "" || evt.Action == f.Action) &&
		(f.EntityType == "" || evt.EntityType == f.EntityType) &&
		(f.EntityID == "" || evt.EntityID == f.EntityID) &&
		(f.ActorID == "" || evt.ActorID == f.ActorID)
}

// Log is the read and write side of the audit trail.
type Log interface {
	Record(ctx context.Context, action, entityType, entityID string, before, after any) error
	List(ctx context.Context, filter Filter, limit, offset int) ([]Event, error)
}

type Service struct {
	DB querier.Querier
}

func New(db querier.Querier) *Service {
	return &Service{DB: db}
}

// Record stores a before/after snapshot. The actor and request id come from ctx.
func (s *Service) Record(ctx context.Context, action, entityType, entityID string, before, after any) error {
	evt, err := newEvent(ctx, action, entityType, entityID, before, after)
	if err != nil {
		return err
	}
	_, err = s.DB.Exec(ctx, `
    INSERT INTO audit_events (actor_id, action, entity_type, entity_id, before_json, after_json, request_id)
    VALUES ($1,$2,$3,$4,$5,$6,$7)
  `, evt.ActorID, evt.Action, evt.EntityType, evt.EntityID, nullJSON(evt.Before), nullJSON(evt.After), evt.RequestID)
	return err
}

func (s *Service) List(ctx context.Context, filter Filter, limit, offset int) ([]Event, error) {
	query, args := buildListQuery(filter)
	query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Event{}
	for rows.Next() {
		var (
			evt           Event
			before, after []byte
		)
		if err := rows.Scan(&evt.ID, &evt.ActorID, &evt.Action, &evt.EntityType, &evt.EntityID, &evt.RequestID, &evt.CreatedAt, &before, &after); err != nil {
			return nil, err
		}
		evt.Before, evt.After = before, after
		out = append(out, evt)
	}
	return out, rows.Err()
}

func buildListQuery(filter Filter) (string, []any) {
	query := "SELECT id::text, actor_id, action, entity_type, entity_id, request_id, created_at, before_json, after_json FROM audit_events WHERE 1=1"
	args := []any{}
	add := func(column, value string) {
		if value == "" {
			return
		}
		args = append(args, value)
		query += fmt.Sprintf(" AND %s = $%d", column, len(args))
	}
	add("action", filter.Action)
	add("entity_type", filter.EntityType)
	add("entity_id", filter.EntityID)
	add("actor_id", filter.ActorID)
	return query, args
}

func newEvent(ctx context.Context, action, entityType, entityID string, before, after any) (Event, error) {
	evt := Event{
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		RequestID:  requestctx.GetRequestID(ctx),
		CreatedAt:  time.Now().UTC(),
	}
	if actor, ok := requestctx.GetActor(ctx); ok {
		evt.ActorID = actor.UserID
	}
	var err error
	if evt.Before, err = marshalSnapshot(before); err != nil {
		return Event{}, err
	}
	if evt.After, err = marshalSnapshot(after); err != nil {
		return Event{}, err
	}
	return evt, nil
}

func marshalSnapshot(value any) (json.RawMessage, error) {
	if value == nil {
		return nil, nil
	}
	return json.Marshal(value)
}

func nullJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}
