// Package domain holds the lead distribution engine's core types: lead and
// interaction lifecycles and the broker reply classification rule.
package domain

// LeadStatus is the lifecycle state of a lead.
type LeadStatus string

const (
	// LeadPending means the lead awaits assignment; it is the only state
	// from which the rotation may be (re)started.
	LeadPending LeadStatus = "pending"
	// LeadAssigned means a broker accepted the lead.
	LeadAssigned LeadStatus = "assigned"
	// LeadFinalized means the engagement was closed out by an operator.
	LeadFinalized LeadStatus = "finalized"
)

// InteractionStatus is the state of one offer-and-response cycle.
type InteractionStatus string

const (
	// InteractionSent is the only open state: the offer reached the broker
	// and the response window is running. At most one interaction per lead
	// may be in this state.
	InteractionSent InteractionStatus = "sent"
	// InteractionError means the offer could not be delivered. Terminal;
	// the lead halts until operators intervene.
	InteractionError InteractionStatus = "error"
	// InteractionAccepted means the broker took the lead. Terminal.
	InteractionAccepted InteractionStatus = "accepted"
	// InteractionDeclined means the broker passed. Terminal.
	InteractionDeclined InteractionStatus = "declined"
	// InteractionTimedOut means the response window elapsed. Terminal.
	InteractionTimedOut InteractionStatus = "timed_out"
)

// Terminal reports whether the status permits no further transition.
func (s InteractionStatus) Terminal() bool {
	return s != InteractionSent
}
