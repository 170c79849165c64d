package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Broker is a human agent participating in the rotation queue.
type Broker struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	Phone         string    `json:"phone"`
	Active        bool      `json:"active"`
	QueuePosition int       `json:"queuePosition"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// CreateParams are the fields for inserting a broker at the queue tail.
type CreateParams struct {
	Name  string
	Phone string
}

// UpdateParams are the optional fields for updating a broker.
type UpdateParams struct {
	ID    uuid.UUID
	Name  *string
	Phone *string
}

// PositionUpdate assigns one broker its new queue position.
type PositionUpdate struct {
	ID            uuid.UUID
	QueuePosition int
}

// Repository is the storage port for brokers. The queue discipline itself
// (dense renumbering, move-to-tail ordering) lives in the service; the
// repository only persists the outcome.
type Repository interface {
	Create(ctx context.Context, params CreateParams) (Broker, error)
	GetByID(ctx context.Context, id uuid.UUID) (Broker, error)
	// FindByPhones returns the broker whose canonical phone matches any of
	// the given forms. apperr.NotFound when none does.
	FindByPhones(ctx context.Context, phones []string) (Broker, error)
	// List returns all brokers ordered by ascending queue position.
	List(ctx context.Context) ([]Broker, error)
	Update(ctx context.Context, params UpdateParams) (Broker, error)
	Delete(ctx context.Context, id uuid.UUID) error
	// NextActive returns the active broker with the smallest queue position;
	// apperr.NotFound when no active broker exists.
	NextActive(ctx context.Context) (Broker, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) (Broker, error)
	// UpdatePositions applies a dense renumbering in one transaction.
	UpdatePositions(ctx context.Context, updates []PositionUpdate) error
}
