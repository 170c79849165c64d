// Package transport defines the request/response DTOs for the leads API.
package transport

import "github.com/google/uuid"

// ListLeadsRequest filters and pages the lead listing.
type ListLeadsRequest struct {
	Status   string `form:"status" validate:"omitempty,oneof=pending assigned finalized"`
	Page     int    `form:"page" validate:"omitempty,min=1"`
	PageSize int    `form:"pageSize" validate:"omitempty,min=1,max=100"`
}

// ListInteractionsRequest filters and pages the interaction listing.
type ListInteractionsRequest struct {
	LeadID   *uuid.UUID `form:"leadId"`
	BrokerID *uuid.UUID `form:"brokerId"`
	Status   string     `form:"status" validate:"omitempty,oneof=sent error accepted declined timed_out"`
	Page     int        `form:"page" validate:"omitempty,min=1"`
	PageSize int        `form:"pageSize" validate:"omitempty,min=1,max=100"`
}

// LeadResponse is the API shape of a lead.
type LeadResponse struct {
	ID               uuid.UUID  `json:"id"`
	Name             string     `json:"name"`
	Phone            string     `json:"phone"`
	Status           string     `json:"status"`
	AssignedBrokerID *uuid.UUID `json:"assignedBrokerId,omitempty"`
	AssignedAt       *string    `json:"assignedAt,omitempty"`
	LastContactAt    string     `json:"lastContactAt"`
	CreatedAt        string     `json:"createdAt"`
	UpdatedAt        string     `json:"updatedAt"`
}

// InteractionResponse is the API shape of an offer-and-response cycle.
type InteractionResponse struct {
	ID          uuid.UUID `json:"id"`
	LeadID      uuid.UUID `json:"leadId"`
	BrokerID    uuid.UUID `json:"brokerId"`
	Status      string    `json:"status"`
	SentAt      string    `json:"sentAt"`
	RespondedAt *string   `json:"respondedAt,omitempty"`
	TimedOutAt  *string   `json:"timedOutAt,omitempty"`
}

// ListLeadsResponse is a page of leads.
type ListLeadsResponse struct {
	Leads      []LeadResponse `json:"leads"`
	Total      int            `json:"total"`
	Page       int            `json:"page"`
	PageSize   int            `json:"pageSize"`
	TotalPages int            `json:"totalPages"`
}

// ListInteractionsResponse is a page of interactions.
type ListInteractionsResponse struct {
	Interactions []InteractionResponse `json:"interactions"`
	Total        int                   `json:"total"`
	Page         int                   `json:"page"`
	PageSize     int                   `json:"pageSize"`
	TotalPages   int                   `json:"totalPages"`
}
