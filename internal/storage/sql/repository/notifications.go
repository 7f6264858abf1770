package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/retrack-engine/retrack/internal/domain"
)

// notificationDestination and notificationContent are the wire shapes
// persisted into notifications.destination_blob/content_blob: a
// simplified view of a Task's type, independent of the tasks table's
// own retry bookkeeping.
type notificationDestination struct {
	Kind string   `json:"kind"`
	To   []string `json:"to,omitempty"`
	URL  string   `json:"url,omitempty"`
}

type notificationContent struct {
	Ok    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// RecordNotification implements tasks.Recorder, writing an audit row to
// the notifications table independent of the task queue's own retry
// bookkeeping.
func (s *Store) RecordNotification(ctx context.Context, task domain.Task, outcome error) error {
	dest := notificationDestination{Kind: string(task.Type.Kind)}
	switch task.Type.Kind {
	case domain.TaskKindEmail:
		dest.To = task.Type.Email.To
	case domain.TaskKindHTTP:
		dest.URL = task.Type.HTTP.URL
	}
	destBlob, err := json.Marshal(dest)
	if err != nil {
		return fmt.Errorf("marshal destination: %w", err)
	}

	content := notificationContent{Ok: outcome == nil}
	if outcome != nil {
		content.Error = outcome.Error()
	}
	contentBlob, err := json.Marshal(content)
	if err != nil {
		return fmt.Errorf("marshal content: %w", err)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO notifications (id, destination_blob, content_blob, scheduled_at)
		VALUES ($1, $2, $3, $4)`, id.String(), destBlob, contentBlob, time.Now().UTC())
	return err
}
