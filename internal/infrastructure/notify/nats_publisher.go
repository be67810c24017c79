// Package notify pushes committed status-history entries to downstream
// read-model consumers over NATS. The tracker treats publication as
// best-effort; nothing here may fail a request.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"

	"capatrack/internal/errs"
	"capatrack/internal/ports"
)

// NATSPublisher publishes one JSON message per history entry on
// capatrack.history.<tenant>.<kind>.
type NATSPublisher struct {
	conn *nats.Conn
}

var _ ports.HistoryPublisher = (*NATSPublisher)(nil)

func NewNATSPublisher(url string) (*NATSPublisher, error) {
	trimmed := strings.TrimSpace(url)
	if trimmed == "" {
		return nil, errors.New("nats url is required")
	}

	conn, err := nats.Connect(trimmed, nats.Name("capatrack"))
	if err != nil {
		return nil, errs.Wrap(err, "connect nats")
	}
	return &NATSPublisher{conn: conn}, nil
}

type historyMessage struct {
	EntryID        uint64            `json:"entryId"`
	TenantID       string            `json:"tenantId"`
	EntityKind     string            `json:"entityKind"`
	EntityID       string            `json:"entityId"`
	PreviousStatus *string           `json:"previousStatus"`
	NewStatus      string            `json:"newStatus"`
	ChangedBy      string            `json:"changedBy"`
	Reason         string            `json:"reason,omitempty"`
	Source         string            `json:"source"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	CreatedAt      string            `json:"createdAt"`
}

func (p *NATSPublisher) PublishHistory(ctx context.Context, entry ports.StatusHistoryEntry) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}

	msg := historyMessage{
		EntryID:    entry.EntryID,
		TenantID:   entry.TenantID,
		EntityKind: string(entry.EntityKind),
		EntityID:   entry.EntityID,
		NewStatus:  string(entry.NewStatus),
		ChangedBy:  entry.ChangedBy,
		Reason:     entry.Reason,
		Source:     string(entry.Source),
		Metadata:   entry.Metadata,
		CreatedAt:  entry.CreatedAt,
	}
	if entry.PreviousStatus != nil {
		value := string(*entry.PreviousStatus)
		msg.PreviousStatus = &value
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return errs.Wrap(err, "encode history message")
	}

	subject := fmt.Sprintf("capatrack.history.%s.%s", entry.TenantID, entry.EntityKind)
	if err := p.conn.Publish(subject, payload); err != nil {
		return errs.Wrapf(err, "publish history entry %d", entry.EntryID)
	}
	return nil
}

func (p *NATSPublisher) Close() {
	if p.conn != nil {
		p.conn.Close()
	}
}

// Disabled is the publisher used when no NATS URL is configured.
type Disabled struct{}

var _ ports.HistoryPublisher = Disabled{}

func (Disabled) PublishHistory(context.Context, ports.StatusHistoryEntry) error {
	return nil
}
