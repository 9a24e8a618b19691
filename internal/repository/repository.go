package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/fjod/storefront-checkout/domain"
)

var (
	ErrSessionNotFound = errors.New("archived checkout session not found")
	ErrAlreadyArchived = errors.New("checkout session already archived")
)

type Credentials struct {
	Host              string
	Port              int
	User              string
	Password          string
	DBName            string
	MigrationsDirPath string
}

// SessionRecord is a finished checkout session as stored in the archive.
type SessionRecord struct {
	ID              string
	UserID          string
	Status          domain.ArchiveStatus
	State           domain.CheckoutState
	OrderID         string
	OrderType       domain.OrderType
	PaymentAttempts int
	FinalTotal      string
	Session         json.RawMessage
	ArchivedAt      time.Time
}

type OutboxEvent struct {
	ID          int
	AggregateId string
	EventType   string
	Payload     json.RawMessage
	CreatedAt   time.Time
}

// Archive stores finished sessions together with their outbox event.
type Archive interface {
	ArchiveSession(ctx context.Context, rec *SessionRecord, payload json.RawMessage) error
	GetArchivedSession(ctx context.Context, id string) (*SessionRecord, error)
}

type Outbox interface {
	GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error)
	MarkEventAsProcessed(ctx context.Context, id int) error
}

type RepoInterface interface {
	Archive
	Outbox
	RunMigrations(*Credentials) error
	Close() error
}
