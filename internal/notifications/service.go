package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/angelmondragon/miyf-books/pkg/logger"
	"github.com/shopspring/decimal"
)

// EventRecordApproved is the event_type attribute on approval messages.
const EventRecordApproved = "record.approved"

// RecordApproved tells the creator of a transaction that it was approved.
type RecordApproved struct {
	Key          string          `json:"key"`
	Account      string          `json:"account"`
	Type         string          `json:"type"`
	Amount       decimal.Decimal `json:"amount"`
	Description  string          `json:"description"`
	CreatedBy    string          `json:"createdBy"`
	ApprovedBy   string          `json:"approvedBy"`
	ApprovedDate string          `json:"approvedDate"`
}

// Notifier delivers best-effort notifications. Callers log and drop errors.
type Notifier interface {
	RecordApproved(ctx context.Context, event RecordApproved) error
}

type publisher interface {
	Publish(ctx context.Context, data []byte, attrs map[string]string) (string, error)
}

type envelope struct {
	EventType  string         `json:"event_type"`
	OccurredAt time.Time      `json:"occurred_at"`
	Data       RecordApproved `json:"data"`
}

type pubsubNotifier struct {
	pub  publisher
	logg *logger.Logger
	now  func() time.Time
}

// NewPubSubNotifier publishes approval events on the notification topic.
func NewPubSubNotifier(pub publisher, logg *logger.Logger) (Notifier, error) {
	if pub == nil {
		return nil, fmt.Errorf("publisher required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &pubsubNotifier{pub: pub, logg: logg, now: time.Now}, nil
}

func (n *pubsubNotifier) RecordApproved(ctx context.Context, event RecordApproved) error {
	payload, err := json.Marshal(envelope{
		EventType:  EventRecordApproved,
		OccurredAt: n.now().UTC(),
		Data:       event,
	})
	if err != nil {
		return fmt.Errorf("encode approval event: %w", err)
	}
	id, err := n.pub.Publish(ctx, payload, map[string]string{
		"event_type": EventRecordApproved,
		"record_key": event.Key,
		"recipient":  event.CreatedBy,
	})
	if err != nil {
		return err
	}
	n.logg.Info(n.logg.WithFields(ctx, map[string]any{
		"message_id": id,
		"record_key": event.Key,
	}), "approval notification published")
	return nil
}

type logNotifier struct {
	logg *logger.Logger
}

// NewLogNotifier is used when no topic is configured; it only logs.
func NewLogNotifier(logg *logger.Logger) Notifier {
	if logg == nil {
		logg = logger.Nop()
	}
	return &logNotifier{logg: logg}
}

func (n *logNotifier) RecordApproved(ctx context.Context, event RecordApproved) error {
	n.logg.Info(n.logg.WithFields(ctx, map[string]any{
		"record_key":  event.Key,
		"recipient":   event.CreatedBy,
		"approved_by": event.ApprovedBy,
	}), "record approved")
	return nil
}
