// Package notify fans alert transitions out to the operator-facing sinks.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"greenhouse_control/internal/logger"
	"greenhouse_control/internal/models"

	"github.com/google/uuid"
)

// Notifier receives alert transitions.
type Notifier interface {
	Notify(ctx context.Context, a models.Alert) error
}

// Multi delivers to every notifier and joins the errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, a models.Alert) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, a); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Log writes every alert to the structured log.
type Log struct {
	Log *logger.Logger
}

func (l Log) Notify(_ context.Context, a models.Alert) error {
	if l.Log == nil {
		return nil
	}
	l.Log.Infow("alert",
		"alert_id", a.ID,
		"state", a.State.String(),
		"active", a.Active,
	)
	return nil
}

// EventAppender is the slice of the event repository used for alerts.
type EventAppender interface {
	Append(ctx context.Context, e models.Event) error
}

// EventLog records every alert in the event log.
type EventLog struct {
	Repo EventAppender
}

func (e EventLog) Notify(ctx context.Context, a models.Alert) error {
	id := a.ID
	if id == "" {
		id = uuid.NewString()
	}
	err := e.Repo.Append(ctx, models.Event{
		EventID:     id,
		OccurredAt:  a.OccurredAt,
		Type:        models.EventAlert,
		Description: Describe(a),
		Metadata: map[string]any{
			"system_state": a.State.String(),
			"active":       a.Active,
		},
	})
	if err != nil {
		return fmt.Errorf("event log: %w", err)
	}
	return nil
}

// Publisher sends a payload to a message topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}

// Topic publishes every alert as JSON on one topic of a Publisher.
type Topic struct {
	Pub   Publisher
	Topic string
}

func (t Topic) Notify(ctx context.Context, a models.Alert) error {
	b, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encode alert: %w", err)
	}
	if err := t.Pub.Publish(ctx, t.Topic, b); err != nil {
		return fmt.Errorf("publish alert to %s: %w", t.Topic, err)
	}
	return nil
}

// Describe renders a one-line operator message for an alert.
func Describe(a models.Alert) string {
	if len(a.Active) == 0 {
		return fmt.Sprintf("System %s: all conditions within bounds", a.State)
	}
	return fmt.Sprintf("System %s: %s", a.State, strings.Join(a.Active, ", "))
}
