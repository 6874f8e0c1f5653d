// Package events publishes check lifecycle events on typed NATS subjects
// so downstream collaborators (reporting, persistence) can react without
// polling the coordinator.
package events

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/planwerk/planwerk/model"
)

// Lifecycle subjects.
const (
	SubjectCheckStarted   = "planwerk.check.started"
	SubjectCheckCompleted = "planwerk.check.completed"
	SubjectCheckFailed    = "planwerk.check.failed"
)

// CheckStartedEvent is published when a check order enters running.
type CheckStartedEvent struct {
	OrderID       string        `json:"order_id"`
	ProjectID     string        `json:"project_id"`
	DocumentCount int           `json:"document_count"`
	Trades        []model.Trade `json:"trades"`
	StartedAt     time.Time     `json:"started_at"`
}

// CheckCompletedEvent is published when a check order completes.
type CheckCompletedEvent struct {
	OrderID          string                 `json:"order_id"`
	ProjectID        string                 `json:"project_id"`
	FindingCount     int                    `json:"finding_count"`
	BySeverity       map[model.Severity]int `json:"by_severity"`
	FailedEvaluators []string               `json:"failed_evaluators,omitempty"`
	Duration         time.Duration          `json:"duration"`
}

// CheckFailedEvent is published when a check order fails as a whole.
type CheckFailedEvent struct {
	OrderID string `json:"order_id"`
	Reason  string `json:"reason"`
}

// Publisher emits check lifecycle events. Implementations must be safe
// for concurrent use.
type Publisher interface {
	CheckStarted(ev CheckStartedEvent)
	CheckCompleted(ev CheckCompletedEvent)
	CheckFailed(ev CheckFailedEvent)
}

// NATSPublisher publishes events to a NATS connection.
type NATSPublisher struct {
	conn   *nats.Conn
	logger *slog.Logger
}

// NewNATSPublisher creates a publisher over an established connection.
func NewNATSPublisher(conn *nats.Conn, logger *slog.Logger) *NATSPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &NATSPublisher{conn: conn, logger: logger}
}

// CheckStarted publishes a started event.
func (p *NATSPublisher) CheckStarted(ev CheckStartedEvent) {
	p.publish(SubjectCheckStarted, ev)
}

// CheckCompleted publishes a completed event.
func (p *NATSPublisher) CheckCompleted(ev CheckCompletedEvent) {
	p.publish(SubjectCheckCompleted, ev)
}

// CheckFailed publishes a failed event.
func (p *NATSPublisher) CheckFailed(ev CheckFailedEvent) {
	p.publish(SubjectCheckFailed, ev)
}

// publish marshals and sends one event. Publish failures are logged, not
// propagated: eventing is observability, never part of the check result.
func (p *NATSPublisher) publish(subject string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		p.logger.Warn("Event marshal failed", slog.String("subject", subject), slog.String("error", err.Error()))
		return
	}
	if err := p.conn.Publish(subject, data); err != nil {
		p.logger.Warn("Event publish failed", slog.String("subject", subject), slog.String("error", err.Error()))
	}
}

// Connect dials NATS and wraps the connection in a publisher.
func Connect(url string, logger *slog.Logger) (*NATSPublisher, func(), error) {
	conn, err := nats.Connect(url, nats.Name("planwerk"))
	if err != nil {
		return nil, nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return NewNATSPublisher(conn, logger), conn.Close, nil
}

// NopPublisher discards all events. Used when no NATS URL is configured.
type NopPublisher struct{}

// CheckStarted implements Publisher.
func (NopPublisher) CheckStarted(CheckStartedEvent) {}

// CheckCompleted implements Publisher.
func (NopPublisher) CheckCompleted(CheckCompletedEvent) {}

// CheckFailed implements Publisher.
func (NopPublisher) CheckFailed(CheckFailedEvent) {}
