package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventTransferCompleted EventType = "transfer.completed"
	EventTransferFailed    EventType = "transfer.failed"
)

type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "pending"
	OutboxStatusPublished OutboxStatus = "published"
	OutboxStatusFailed    OutboxStatus = "failed"
)

type OutboxEvent struct {
	ID          uuid.UUID
	AggregateID string
	EventType   EventType
	Payload     json.RawMessage
	Status      OutboxStatus
	Attempts    int
	CreatedAt   time.Time
	PublishedAt *time.Time
}

type TransferEventPayload struct {
	Reference     string         `json:"reference"`
	FromAccount   string         `json:"from_account,omitempty"`
	ToAccount     string         `json:"to_account,omitempty"`
	Amount        string         `json:"amount"`
	Status        TransferStatus `json:"status"`
	Type          TransferType   `json:"type"`
	FailureReason string         `json:"failure_reason,omitempty"`
	TransferredOn time.Time      `json:"transferred_on"`
}

func NewTransferEvent(t *TransferRecord) (*OutboxEvent, error) {
	eventType := EventTransferCompleted
	if t.Status == TransferStatusFailed {
		eventType = EventTransferFailed
	}

	p := TransferEventPayload{
		Reference:     t.Reference,
		FromAccount:   t.FromAccount,
		ToAccount:     t.ToAccount,
		Amount:        t.Amount.StringFixed(2),
		Status:        t.Status,
		Type:          t.Type,
		TransferredOn: t.TransferredOn,
	}
	if t.FailureReason != nil {
		p.FailureReason = *t.FailureReason
	}

	payload, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}

	return &OutboxEvent{
		ID:          uuid.New(),
		AggregateID: t.Reference,
		EventType:   eventType,
		Payload:     payload,
		Status:      OutboxStatusPending,
		CreatedAt:   time.Now().UTC(),
	}, nil
}
