package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"pesantren/internal/core"
	"pesantren/internal/storage"
	"pesantren/internal/table"
)

// Activities is the audit trail of user actions.
type Activities struct {
	store  storage.Store
	logger *slog.Logger
}

func NewActivities(store storage.Store, logger *slog.Logger) *Activities {
	if logger == nil {
		logger = slog.Default()
	}
	return &Activities{store: store, logger: logger.With("component", "activity")}
}

// Record appends an activity. Failures are logged and otherwise ignored.
func (a *Activities) Record(ctx context.Context, userID, activityType, description string, metadata map[string]any) {
	meta := ""
	if len(metadata) > 0 {
		if b, err := json.Marshal(metadata); err == nil {
			meta = string(b)
		}
	}
	rec, err := storage.Encode(core.UserActivity{
		UserID:       userID,
		ActivityType: activityType,
		Description:  description,
		Metadata:     meta,
		CreatedAt:    core.Now(),
	})
	if err == nil {
		_, err = a.store.Insert(ctx, storage.Activities, storage.Without(rec, "id"))
	}
	if err != nil {
		a.logger.WarnContext(ctx, "Failed to record activity",
			"user_id", userID,
			"activity_type", activityType,
			"error", err)
	}
}

// List returns activities newest first, optionally for one user.
func (a *Activities) List(ctx context.Context, userID string) ([]table.Record, error) {
	q := storage.Query{OrderBy: "created_at", Descending: true}
	if userID != "" {
		q.Where = []storage.Predicate{storage.Eq("user_id", userID)}
	}
	recs, err := a.store.Find(ctx, storage.Activities, q)
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	return recs, nil
}
