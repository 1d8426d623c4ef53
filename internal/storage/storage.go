package storage

import (
	"context"
	"time"
)

// Event outcomes recorded in the audit log.
const (
	OutcomeRouted  = "routed"
	OutcomeIgnored = "ignored"
)

// EventRecord is the audit trail of one verified, decoded webhook event.
// Display names are bookkept here, at the ingestion layer, so welcome
// dispatch stays free of identity side effects.
type EventRecord struct {
	ID          string    `json:"id"`
	EventType   string    `json:"event_type"`
	ExternalID  string    `json:"external_id"`
	DisplayName string    `json:"display_name"`
	Outcome     string    `json:"outcome"`
	CreatedAt   time.Time `json:"created_at"`
}

type Storage interface {
	RecordEvent(ctx context.Context, rec *EventRecord) error
	ListEvents(ctx context.Context, limit, offset int) ([]EventRecord, error)
	GetStats(ctx context.Context) (*Stats, error)

	Migrate(ctx context.Context) error
	Close() error
}

type Stats struct {
	TotalEvents       int64 `json:"total_events"`
	AuthorizedCount   int64 `json:"authorized_count"`
	DeauthorizedCount int64 `json:"deauthorized_count"`
	IgnoredCount      int64 `json:"ignored_count"`
	UniqueUsers       int64 `json:"unique_users"`
}
