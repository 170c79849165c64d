// Package service implements the lead assignment state machine: it walks
// the broker rotation, opens offer interactions, arms response timers and
// resolves broker replies.
package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	brokerrepo "leadrouter_backend/internal/brokers/repository"
	"leadrouter_backend/internal/events"
	"leadrouter_backend/internal/leads/domain"
	"leadrouter_backend/internal/leads/repository"
	"leadrouter_backend/internal/leads/transport"
	"leadrouter_backend/internal/whatsapp"
	"leadrouter_backend/platform/apperr"
	"leadrouter_backend/platform/config"
	"leadrouter_backend/platform/logger"
)

// BrokerQueue is the rotation port implemented by the brokers service.
type BrokerQueue interface {
	NextActive(ctx context.Context) (brokerrepo.Broker, error)
	Get(ctx context.Context, id uuid.UUID) (brokerrepo.Broker, error)
	MoveToTail(ctx context.Context, id uuid.UUID) error
}

// Messenger delivers outbound WhatsApp messages.
type Messenger interface {
	SendText(ctx context.Context, phone, text string) error
}

// TimerArena is the response-window scheduler port.
type TimerArena interface {
	Arm(id uuid.UUID, delay time.Duration, fn func(uuid.UUID))
	Cancel(id uuid.UUID)
}

// timeoutHandlerBudget bounds the work done by a fired timer, whose context
// is not tied to any request.
const timeoutHandlerBudget = 30 * time.Second

// Service drives leads through the rotation until a broker accepts.
type Service struct {
	repo      repository.Repository
	queue     BrokerQueue
	messenger Messenger
	timers    TimerArena
	bus       events.Bus
	cfg       config.EngineConfig
	log       *logger.Logger
	locks     leadLocks
}

// New creates a new lead assignment service.
func New(
	repo repository.Repository,
	queue BrokerQueue,
	messenger Messenger,
	timers TimerArena,
	bus events.Bus,
	cfg config.EngineConfig,
	log *logger.Logger,
) *Service {
	return &Service{
		repo:      repo,
		queue:     queue,
		messenger: messenger,
		timers:    timers,
		bus:       bus,
		cfg:       cfg,
		log:       log,
	}
}

// ProcessNewLead starts (or restarts) the rotation for a pending lead. Any
// other lead status is rejected with InvalidState so concurrent triggers
// and manual retriggers cannot double-run the rotation.
func (s *Service) ProcessNewLead(ctx context.Context, leadID uuid.UUID) error {
	unlock := s.locks.lock(leadID)
	defer unlock()

	lead, err := s.repo.GetByID(ctx, leadID)
	if err != nil {
		return err
	}
	if lead.Status != domain.LeadPending {
		return apperr.InvalidState("lead is not pending")
	}

	return s.offerToNextBroker(ctx, lead)
}

// offerToNextBroker opens a sent interaction against the head of the
// rotation, delivers the availability question and arms the response timer.
// Caller must hold the lead lock.
func (s *Service) offerToNextBroker(ctx context.Context, lead repository.Lead) error {
	broker, err := s.queue.NextActive(ctx)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			s.log.Warn("no active broker for lead", "lead_id", lead.ID, "phone", lead.Phone)
			s.bus.Publish(ctx, events.QueueExhausted{
				BaseEvent: events.NewBaseEvent(),
				LeadID:    lead.ID,
				LeadPhone: lead.Phone,
				LeadName:  lead.Name,
			})
		}
		return err
	}

	interaction, err := s.repo.CreateInteraction(ctx, lead.ID, broker.ID)
	if err != nil {
		return err
	}

	if err := s.messenger.SendText(ctx, broker.Phone, whatsapp.AvailabilityQuestion(broker.Name)); err != nil {
		s.log.TransportError("send availability question", broker.Phone, err)
		if _, closeErr := s.repo.CloseInteraction(ctx, interaction.ID, domain.InteractionError); closeErr != nil {
			s.log.Error("mark interaction error", "interaction_id", interaction.ID, "error", closeErr)
		}
		s.bus.Publish(ctx, events.OfferDeliveryFailed{
			BaseEvent:     events.NewBaseEvent(),
			InteractionID: interaction.ID,
			LeadID:        lead.ID,
			BrokerID:      broker.ID,
			BrokerName:    broker.Name,
		})
		// The rotation halts here. Escalating past an unreachable broker
		// would hide a transport outage behind queue churn.
		return apperr.Wrap(apperr.KindInternal, "offer delivery failed", err)
	}

	s.timers.Arm(interaction.ID, s.cfg.GetResponseTimeout(), s.onTimerFired)

	s.log.Info("offer sent",
		"lead_id", lead.ID,
		"interaction_id", interaction.ID,
		"broker_id", broker.ID,
		"broker", broker.Name,
	)
	return nil
}

// onTimerFired adapts the scheduler callback to HandleTimeout with a fresh
// bounded context.
func (s *Service) onTimerFired(interactionID uuid.UUID) {
	ctx, cancel := context.WithTimeout(context.Background(), timeoutHandlerBudget)
	defer cancel()

	if err := s.HandleTimeout(ctx, interactionID); err != nil {
		if apperr.Is(err, apperr.KindInvalidState) {
			return
		}
		s.log.Error("handle interaction timeout", "interaction_id", interactionID, "error", err)
	}
}

// HandleTimeout expires an open interaction: the broker is sent a notice and
// moved to the tail, and the lead is offered to the next broker. A reply that
// won the race leaves the interaction terminal and this becomes a no-op.
func (s *Service) HandleTimeout(ctx context.Context, interactionID uuid.UUID) error {
	interaction, err := s.repo.GetInteraction(ctx, interactionID)
	if err != nil {
		return err
	}

	unlock := s.locks.lock(interaction.LeadID)
	defer unlock()

	interaction, err = s.repo.CloseInteraction(ctx, interactionID, domain.InteractionTimedOut)
	if err != nil {
		return err
	}

	s.log.Info("interaction timed out",
		"interaction_id", interaction.ID,
		"lead_id", interaction.LeadID,
		"broker_id", interaction.BrokerID,
	)
	s.bus.Publish(ctx, events.InteractionTimedOut{
		BaseEvent:     events.NewBaseEvent(),
		InteractionID: interaction.ID,
		LeadID:        interaction.LeadID,
		BrokerID:      interaction.BrokerID,
	})

	if broker, err := s.queue.Get(ctx, interaction.BrokerID); err == nil {
		if err := s.messenger.SendText(ctx, broker.Phone, whatsapp.TimeoutNotice()); err != nil {
			s.log.TransportError("send timeout notice", broker.Phone, err)
		}
	}

	if err := s.queue.MoveToTail(ctx, interaction.BrokerID); err != nil {
		s.log.Error("move broker to tail", "broker_id", interaction.BrokerID, "error", err)
	}

	lead, err := s.repo.GetByID(ctx, interaction.LeadID)
	if err != nil {
		return err
	}
	if lead.Status != domain.LeadPending {
		return nil
	}

	err = s.offerToNextBroker(ctx, lead)
	if apperr.Is(err, apperr.KindNotFound) {
		// Queue exhausted mid rotation; the lead stays pending.
		return nil
	}
	return err
}

// HandleBrokerReply resolves an inbound message from a broker against their
// open interaction. Unrecognized text is ignored entirely.
func (s *Service) HandleBrokerReply(ctx context.Context, broker brokerrepo.Broker, text string) error {
	verdict := domain.ClassifyReply(text)
	if verdict == domain.VerdictUnrecognized {
		return nil
	}

	interaction, err := s.repo.FindOpenByBroker(ctx, broker.ID)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			// Late answer to an offer that already expired.
			return nil
		}
		return err
	}

	unlock := s.locks.lock(interaction.LeadID)
	defer unlock()

	switch verdict {
	case domain.VerdictAccept:
		return s.acceptOffer(ctx, broker, interaction)
	case domain.VerdictDecline:
		return s.declineOffer(ctx, broker, interaction)
	}
	return nil
}

// HasOpenInteraction reports whether the broker currently holds an offer.
// The webhook uses this to route a broker message to the reply handler.
func (s *Service) HasOpenInteraction(ctx context.Context, brokerID uuid.UUID) (bool, error) {
	_, err := s.repo.FindOpenByBroker(ctx, brokerID)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *Service) acceptOffer(ctx context.Context, broker brokerrepo.Broker, interaction repository.Interaction) error {
	closed, err := s.repo.CloseInteraction(ctx, interaction.ID, domain.InteractionAccepted)
	if err != nil {
		if apperr.Is(err, apperr.KindInvalidState) {
			// Timer won the race; the lead already moved on.
			return nil
		}
		return err
	}
	s.timers.Cancel(closed.ID)

	lead, err := s.repo.Assign(ctx, closed.LeadID, broker.ID)
	if err != nil {
		return err
	}

	if err := s.messenger.SendText(ctx, broker.Phone, whatsapp.LeadContactCard(lead.Name, lead.Phone)); err != nil {
		s.log.TransportError("send lead contact card", broker.Phone, err)
	}

	if err := s.queue.MoveToTail(ctx, broker.ID); err != nil {
		s.log.Error("move broker to tail", "broker_id", broker.ID, "error", err)
	}

	s.log.Info("lead assigned", "lead_id", lead.ID, "broker_id", broker.ID, "interaction_id", closed.ID)
	s.bus.Publish(ctx, events.LeadAssigned{
		BaseEvent:     events.NewBaseEvent(),
		LeadID:        lead.ID,
		BrokerID:      broker.ID,
		InteractionID: closed.ID,
	})
	return nil
}

func (s *Service) declineOffer(ctx context.Context, broker brokerrepo.Broker, interaction repository.Interaction) error {
	closed, err := s.repo.CloseInteraction(ctx, interaction.ID, domain.InteractionDeclined)
	if err != nil {
		if apperr.Is(err, apperr.KindInvalidState) {
			return nil
		}
		return err
	}
	s.timers.Cancel(closed.ID)

	if err := s.messenger.SendText(ctx, broker.Phone, whatsapp.DeclineAck()); err != nil {
		s.log.TransportError("send decline ack", broker.Phone, err)
	}

	if err := s.queue.MoveToTail(ctx, broker.ID); err != nil {
		s.log.Error("move broker to tail", "broker_id", broker.ID, "error", err)
	}

	s.log.Info("offer declined", "lead_id", closed.LeadID, "broker_id", broker.ID, "interaction_id", closed.ID)
	s.bus.Publish(ctx, events.InteractionDeclined{
		BaseEvent:     events.NewBaseEvent(),
		InteractionID: closed.ID,
		LeadID:        closed.LeadID,
		BrokerID:      broker.ID,
	})

	lead, err := s.repo.GetByID(ctx, closed.LeadID)
	if err != nil {
		return err
	}
	if lead.Status != domain.LeadPending {
		return nil
	}

	err = s.offerToNextBroker(ctx, lead)
	if apperr.Is(err, apperr.KindNotFound) {
		return nil
	}
	return err
}

// RegisterContact stores an inbound contact as a lead, inserting a pending
// one or refreshing the last contact timestamp of an existing one.
func (s *Service) RegisterContact(ctx context.Context, name, canonicalPhone string, phoneForms []string) (repository.Lead, bool, error) {
	existing, err := s.repo.FindByPhones(ctx, phoneForms)
	isNew := apperr.Is(err, apperr.KindNotFound)
	if err != nil && !isNew {
		return repository.Lead{}, false, err
	}

	lead, err := s.repo.Upsert(ctx, repository.UpsertParams{Name: name, Phone: canonicalPhone}, phoneForms)
	if err != nil {
		return repository.Lead{}, false, err
	}

	if isNew {
		s.log.Info("lead received", "lead_id", lead.ID, "phone", lead.Phone)
		s.bus.Publish(ctx, events.LeadReceived{
			BaseEvent: events.NewBaseEvent(),
			LeadID:    lead.ID,
			Phone:     lead.Phone,
			Name:      lead.Name,
		})
	} else {
		// Preserve the pre-upsert contact timestamp for window checks.
		lead.LastContactAt = existing.LastContactAt
	}
	return lead, isNew, nil
}

// ReleaseAssignment resets an assigned lead back to pending. Used when a
// returning lead's redirect window has expired and the rotation restarts.
func (s *Service) ReleaseAssignment(ctx context.Context, leadID uuid.UUID) (repository.Lead, error) {
	unlock := s.locks.lock(leadID)
	defer unlock()

	return s.repo.ResetToPending(ctx, leadID)
}

// List returns a page of leads.
func (s *Service) List(ctx context.Context, req transport.ListLeadsRequest) (transport.ListLeadsResponse, error) {
	params := repository.ListParams{Page: pageOrDefault(req.Page), PageSize: pageSizeOrDefault(req.PageSize)}
	if req.Status != "" {
		status := domain.LeadStatus(req.Status)
		params.Status = &status
	}

	leads, total, err := s.repo.List(ctx, params)
	if err != nil {
		return transport.ListLeadsResponse{}, err
	}

	items := make([]transport.LeadResponse, 0, len(leads))
	for _, lead := range leads {
		items = append(items, toLeadResponse(lead))
	}
	return transport.ListLeadsResponse{
		Leads:      items,
		Total:      total,
		Page:       params.Page,
		PageSize:   params.PageSize,
		TotalPages: totalPages(total, params.PageSize),
	}, nil
}

// GetByID returns one lead.
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (transport.LeadResponse, error) {
	lead, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return transport.LeadResponse{}, err
	}
	return toLeadResponse(lead), nil
}

// ListInteractions returns a page of interactions.
func (s *Service) ListInteractions(ctx context.Context, req transport.ListInteractionsRequest) (transport.ListInteractionsResponse, error) {
	params := repository.InteractionListParams{
		LeadID:   req.LeadID,
		BrokerID: req.BrokerID,
		Page:     pageOrDefault(req.Page),
		PageSize: pageSizeOrDefault(req.PageSize),
	}
	if req.Status != "" {
		status := domain.InteractionStatus(req.Status)
		params.Status = &status
	}

	interactions, total, err := s.repo.ListInteractions(ctx, params)
	if err != nil {
		return transport.ListInteractionsResponse{}, err
	}

	items := make([]transport.InteractionResponse, 0, len(interactions))
	for _, interaction := range interactions {
		items = append(items, toInteractionResponse(interaction))
	}
	return transport.ListInteractionsResponse{
		Interactions: items,
		Total:        total,
		Page:         params.Page,
		PageSize:     params.PageSize,
		TotalPages:   totalPages(total, params.PageSize),
	}, nil
}

func pageOrDefault(page int) int {
	if page < 1 {
		return 1
	}
	return page
}

func pageSizeOrDefault(pageSize int) int {
	if pageSize < 1 || pageSize > 100 {
		return 20
	}
	return pageSize
}

func totalPages(total, pageSize int) int {
	if pageSize < 1 {
		return 0
	}
	pages := total / pageSize
	if total%pageSize != 0 {
		pages++
	}
	return pages
}

func toLeadResponse(lead repository.Lead) transport.LeadResponse {
	resp := transport.LeadResponse{
		ID:            lead.ID,
		Name:          lead.Name,
		Phone:         lead.Phone,
		Status:        string(lead.Status),
		LastContactAt: lead.LastContactAt.Format(time.RFC3339),
		CreatedAt:     lead.CreatedAt.Format(time.RFC3339),
		UpdatedAt:     lead.UpdatedAt.Format(time.RFC3339),
	}
	resp.AssignedBrokerID = lead.AssignedBrokerID
	if lead.AssignedAt != nil {
		assignedAt := lead.AssignedAt.Format(time.RFC3339)
		resp.AssignedAt = &assignedAt
	}
	return resp
}

func toInteractionResponse(interaction repository.Interaction) transport.InteractionResponse {
	resp := transport.InteractionResponse{
		ID:       interaction.ID,
		LeadID:   interaction.LeadID,
		BrokerID: interaction.BrokerID,
		Status:   string(interaction.Status),
		SentAt:   interaction.SentAt.Format(time.RFC3339),
	}
	if interaction.RespondedAt != nil {
		respondedAt := interaction.RespondedAt.Format(time.RFC3339)
		resp.RespondedAt = &respondedAt
	}
	if interaction.TimedOutAt != nil {
		timedOutAt := interaction.TimedOutAt.Format(time.RFC3339)
		resp.TimedOutAt = &timedOutAt
	}
	return resp
}
