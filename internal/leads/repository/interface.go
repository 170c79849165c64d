package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"leadrouter_backend/internal/leads/domain"
)

// Lead is an inbound contact moving through the distribution engine.
type Lead struct {
	ID               uuid.UUID         `json:"id"`
	Name             string            `json:"name"`
	Phone            string            `json:"phone"`
	Status           domain.LeadStatus `json:"status"`
	AssignedBrokerID *uuid.UUID        `json:"assignedBrokerId,omitempty"`
	AssignedAt       *time.Time        `json:"assignedAt,omitempty"`
	LastContactAt    time.Time         `json:"lastContactAt"`
	CreatedAt        time.Time         `json:"createdAt"`
	UpdatedAt        time.Time         `json:"updatedAt"`
}

// Interaction is one offer-and-response cycle between a lead and a broker.
type Interaction struct {
	ID          uuid.UUID                `json:"id"`
	LeadID      uuid.UUID                `json:"leadId"`
	BrokerID    uuid.UUID                `json:"brokerId"`
	Status      domain.InteractionStatus `json:"status"`
	SentAt      time.Time                `json:"sentAt"`
	RespondedAt *time.Time               `json:"respondedAt,omitempty"`
	TimedOutAt  *time.Time               `json:"timedOutAt,omitempty"`
	CreatedAt   time.Time                `json:"createdAt"`
	UpdatedAt   time.Time                `json:"updatedAt"`
}

// UpsertParams identifies a lead by canonical phone; Name may be empty when
// the sender carried no usable name.
type UpsertParams struct {
	Name  string
	Phone string
}

// ListParams filters and pages the lead listing.
type ListParams struct {
	Status   *domain.LeadStatus
	Page     int
	PageSize int
}

// InteractionListParams filters and pages the interaction listing.
type InteractionListParams struct {
	LeadID   *uuid.UUID
	BrokerID *uuid.UUID
	Status   *domain.InteractionStatus
	Page     int
	PageSize int
}

// Repository is the storage port for leads and their interactions.
type Repository interface {
	// Upsert inserts a pending lead or refreshes last_contact_at (and the
	// name, when non-empty) of an existing one matched by any phone form.
	Upsert(ctx context.Context, params UpsertParams, phoneForms []string) (Lead, error)
	GetByID(ctx context.Context, id uuid.UUID) (Lead, error)
	FindByPhones(ctx context.Context, phones []string) (Lead, error)
	// PhoneInUse reports whether any lead holds one of the phone forms.
	PhoneInUse(ctx context.Context, phones []string) (bool, error)
	List(ctx context.Context, params ListParams) ([]Lead, int, error)
	// Assign marks the lead assigned to the broker and stamps assigned_at.
	Assign(ctx context.Context, leadID, brokerID uuid.UUID) (Lead, error)
	// ResetToPending clears the assignment so the rotation can restart.
	ResetToPending(ctx context.Context, leadID uuid.UUID) (Lead, error)

	// CreateInteraction opens a new cycle in the sent state. apperr.Conflict
	// when the lead already has an open interaction.
	CreateInteraction(ctx context.Context, leadID, brokerID uuid.UUID) (Interaction, error)
	GetInteraction(ctx context.Context, id uuid.UUID) (Interaction, error)
	// FindOpenByBroker returns the broker's most recent sent interaction;
	// apperr.NotFound when the broker has none open.
	FindOpenByBroker(ctx context.Context, brokerID uuid.UUID) (Interaction, error)
	// CloseInteraction moves a sent interaction to a terminal status.
	// apperr.InvalidState when the interaction is already terminal: the
	// caller lost a reply-versus-timer race and must leave state alone.
	CloseInteraction(ctx context.Context, id uuid.UUID, to domain.InteractionStatus) (Interaction, error)
	ListInteractions(ctx context.Context, params InteractionListParams) ([]Interaction, int, error)
}
