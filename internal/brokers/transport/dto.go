// Package transport defines the request/response DTOs for the brokers API.
package transport

import "github.com/google/uuid"

// CreateBrokerRequest creates a broker at the tail of the rotation queue.
type CreateBrokerRequest struct {
	Name  string `json:"name" binding:"required" validate:"required,min=2,max=120"`
	Phone string `json:"phone" binding:"required" validate:"required,min=8,max=20"`
}

// UpdateBrokerRequest updates broker fields; nil fields are left untouched.
type UpdateBrokerRequest struct {
	Name  *string `json:"name,omitempty" validate:"omitempty,min=2,max=120"`
	Phone *string `json:"phone,omitempty" validate:"omitempty,min=8,max=20"`
}

// SetActiveRequest flips a broker's rotation flag.
type SetActiveRequest struct {
	Active *bool `json:"active" binding:"required" validate:"required"`
}

// BrokerResponse is the API shape of a broker.
type BrokerResponse struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	Phone         string    `json:"phone"`
	Active        bool      `json:"active"`
	QueuePosition int       `json:"queuePosition"`
	CreatedAt     string    `json:"createdAt"`
	UpdatedAt     string    `json:"updatedAt"`
}

// QueueEntryResponse is one slot of the active rotation.
type QueueEntryResponse struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Phone    string    `json:"phone"`
	Position int       `json:"position"`
}

// QueueStatusResponse summarizes the rotation queue.
type QueueStatusResponse struct {
	Total    int                  `json:"total"`
	Active   int                  `json:"active"`
	Inactive int                  `json:"inactive"`
	Queue    []QueueEntryResponse `json:"queue"`
}
