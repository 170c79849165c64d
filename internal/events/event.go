// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"leadrouter_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Lead Domain Events
// =============================================================================

// LeadReceived is published when an inbound contact is stored as a pending lead.
type LeadReceived struct {
	BaseEvent
	LeadID uuid.UUID `json:"leadId"`
	Phone  string    `json:"phone"`
	Name   string    `json:"name,omitempty"`
}

func (e LeadReceived) EventName() string { return "leads.lead.received" }

// LeadAssigned is published when a broker accepts a lead.
type LeadAssigned struct {
	BaseEvent
	LeadID        uuid.UUID `json:"leadId"`
	BrokerID      uuid.UUID `json:"brokerId"`
	InteractionID uuid.UUID `json:"interactionId"`
}

func (e LeadAssigned) EventName() string { return "leads.lead.assigned" }

// QueueExhausted is published when a pending lead cannot be offered because
// no active broker exists. The lead stays pending until retriggered.
type QueueExhausted struct {
	BaseEvent
	LeadID    uuid.UUID `json:"leadId"`
	LeadPhone string    `json:"leadPhone"`
	LeadName  string    `json:"leadName,omitempty"`
}

func (e QueueExhausted) EventName() string { return "leads.queue.exhausted" }

// =============================================================================
// Interaction Domain Events
// =============================================================================

// InteractionTimedOut is published when a broker misses the response window.
type InteractionTimedOut struct {
	BaseEvent
	InteractionID uuid.UUID `json:"interactionId"`
	LeadID        uuid.UUID `json:"leadId"`
	BrokerID      uuid.UUID `json:"brokerId"`
}

func (e InteractionTimedOut) EventName() string { return "interactions.timed_out" }

// InteractionDeclined is published when a broker declines an offer.
type InteractionDeclined struct {
	BaseEvent
	InteractionID uuid.UUID `json:"interactionId"`
	LeadID        uuid.UUID `json:"leadId"`
	BrokerID      uuid.UUID `json:"brokerId"`
}

func (e InteractionDeclined) EventName() string { return "interactions.declined" }

// OfferDeliveryFailed is published when the availability question could not
// be delivered to a broker. The affected interaction is marked error and the
// lead halts until operators intervene.
type OfferDeliveryFailed struct {
	BaseEvent
	InteractionID uuid.UUID `json:"interactionId"`
	LeadID        uuid.UUID `json:"leadId"`
	BrokerID      uuid.UUID `json:"brokerId"`
	BrokerName    string    `json:"brokerName"`
}

func (e OfferDeliveryFailed) EventName() string { return "interactions.offer_delivery_failed" }
