package webhook

import (
	"context"
	"time"

	"github.com/google/uuid"

	brokerrepo "leadrouter_backend/internal/brokers/repository"
	"leadrouter_backend/internal/leads/domain"
	leadrepo "leadrouter_backend/internal/leads/repository"
	"leadrouter_backend/internal/whatsapp"
	"leadrouter_backend/platform/apperr"
	"leadrouter_backend/platform/config"
	"leadrouter_backend/platform/logger"
	"leadrouter_backend/platform/phone"
)

// BrokerDirectory resolves inbound senders against the broker roster.
type BrokerDirectory interface {
	FindByPhone(ctx context.Context, raw string) (brokerrepo.Broker, error)
	Get(ctx context.Context, id uuid.UUID) (brokerrepo.Broker, error)
}

// LeadEngine is the assignment state machine port.
type LeadEngine interface {
	RegisterContact(ctx context.Context, name, canonicalPhone string, phoneForms []string) (leadrepo.Lead, bool, error)
	ProcessNewLead(ctx context.Context, leadID uuid.UUID) error
	HandleBrokerReply(ctx context.Context, broker brokerrepo.Broker, text string) error
	HasOpenInteraction(ctx context.Context, brokerID uuid.UUID) (bool, error)
	ReleaseAssignment(ctx context.Context, leadID uuid.UUID) (leadrepo.Lead, error)
}

// Messenger sends the lead-facing notices.
type Messenger interface {
	SendText(ctx context.Context, phone, text string) error
}

// Outcome describes how one inbound message was routed, for logging and tests.
type Outcome string

const (
	OutcomeIgnored       Outcome = "ignored"
	OutcomeDuplicate     Outcome = "duplicate"
	OutcomeBrokerReply   Outcome = "broker_reply"
	OutcomeBrokerDropped Outcome = "broker_dropped"
	OutcomeRedirected    Outcome = "redirected"
	OutcomeWaiting       Outcome = "waiting"
	OutcomeProcessed     Outcome = "processed"
)

// Service routes inbound messages: broker replies go to the state machine,
// everything else becomes (or refreshes) a lead.
type Service struct {
	brokers   BrokerDirectory
	engine    LeadEngine
	messenger Messenger
	dedup     Deduper
	cfg       config.EngineConfig
	log       *logger.Logger
}

// New creates a new webhook service.
func New(
	brokers BrokerDirectory,
	engine LeadEngine,
	messenger Messenger,
	dedup Deduper,
	cfg config.EngineConfig,
	log *logger.Logger,
) *Service {
	return &Service{
		brokers:   brokers,
		engine:    engine,
		messenger: messenger,
		dedup:     dedup,
		cfg:       cfg,
		log:       log,
	}
}

// HandleMessage processes one messages.upsert event.
func (s *Service) HandleMessage(ctx context.Context, payload Payload) (Outcome, error) {
	in := Extract(payload)

	if in.FromMe || in.Group || in.Phone == "" || in.Text == "" {
		return OutcomeIgnored, nil
	}

	if in.MessageID != "" {
		seen, err := s.dedup.Seen(ctx, in.MessageID)
		if err != nil {
			// A dedup outage must not drop real traffic; the state machine
			// guards make a duplicate harmless.
			s.log.Error("webhook dedup check", "message_id", in.MessageID, "error", err)
		} else if seen {
			return OutcomeDuplicate, nil
		}
	}

	broker, err := s.brokers.FindByPhone(ctx, in.Phone)
	if err == nil {
		return s.handleBrokerMessage(ctx, broker, in)
	}
	if !apperr.Is(err, apperr.KindNotFound) {
		return OutcomeIgnored, err
	}

	return s.handleLeadMessage(ctx, in)
}

// handleBrokerMessage forwards a broker's text to the reply handler, but
// only while the broker holds an open offer. Anything else a broker writes
// is ordinary conversation and is dropped.
func (s *Service) handleBrokerMessage(ctx context.Context, broker brokerrepo.Broker, in Inbound) (Outcome, error) {
	open, err := s.engine.HasOpenInteraction(ctx, broker.ID)
	if err != nil {
		return OutcomeIgnored, err
	}
	if !open {
		return OutcomeBrokerDropped, nil
	}

	if err := s.engine.HandleBrokerReply(ctx, broker, in.Text); err != nil {
		return OutcomeBrokerReply, err
	}
	return OutcomeBrokerReply, nil
}

func (s *Service) handleLeadMessage(ctx context.Context, in Inbound) (Outcome, error) {
	// A sender registered as broker between the first lookup and here must
	// never be stored as a lead.
	if _, err := s.brokers.FindByPhone(ctx, in.Phone); err == nil {
		return OutcomeBrokerDropped, nil
	}

	canonical := phone.Normalize(in.Phone)
	forms := phone.Candidates(in.Phone)
	name := SenderName(in)

	lead, isNew, err := s.engine.RegisterContact(ctx, name, canonical, forms)
	if err != nil {
		return OutcomeIgnored, err
	}

	if isNew {
		s.sendNotice(ctx, lead.Phone, whatsapp.Welcome(lead.Name))
		return OutcomeProcessed, s.startRotation(ctx, lead)
	}

	return s.handleReturningLead(ctx, lead)
}

func (s *Service) handleReturningLead(ctx context.Context, lead leadrepo.Lead) (Outcome, error) {
	now := time.Now()

	// Redirecting to the assigned broker beats the wait notice: the lead
	// already has a contact, so pointing them there is never wrong.
	if lead.Status == domain.LeadAssigned && lead.AssignedAt != nil &&
		now.Sub(*lead.AssignedAt) < s.cfg.GetLeadRedirectWindow() {
		return s.redirectToBroker(ctx, lead)
	}

	// Rapid re-contact damping. This fires before any rotation restart,
	// so a stale assignment does not bypass the wait notice.
	if now.Sub(lead.LastContactAt) < s.cfg.GetLeadWaitWindow() {
		s.sendNotice(ctx, lead.Phone, whatsapp.PleaseWait())
		return OutcomeWaiting, nil
	}

	if lead.Status == domain.LeadFinalized ||
		(lead.Status == domain.LeadAssigned && lead.AssignedAt != nil) {
		// A finalized lead or a stale assignment writing again is a brand
		// new engagement; restart the rotation from scratch.
		reset, err := s.engine.ReleaseAssignment(ctx, lead.ID)
		if err != nil {
			return OutcomeIgnored, err
		}
		s.sendNotice(ctx, reset.Phone, whatsapp.Welcome(reset.Name))
		return OutcomeProcessed, s.startRotation(ctx, reset)
	}

	err := s.engine.ProcessNewLead(ctx, lead.ID)
	if apperr.Is(err, apperr.KindConflict) || apperr.Is(err, apperr.KindInvalidState) {
		// Rotation already running for this lead.
		s.sendNotice(ctx, lead.Phone, whatsapp.PleaseWait())
		return OutcomeWaiting, nil
	}
	if err != nil {
		return OutcomeProcessed, err
	}
	return OutcomeProcessed, nil
}

func (s *Service) redirectToBroker(ctx context.Context, lead leadrepo.Lead) (Outcome, error) {
	broker, err := s.brokers.Get(ctx, *lead.AssignedBrokerID)
	if err != nil {
		// The broker was deleted; restart the rotation instead.
		reset, resetErr := s.engine.ReleaseAssignment(ctx, lead.ID)
		if resetErr != nil {
			return OutcomeIgnored, resetErr
		}
		return OutcomeProcessed, s.startRotation(ctx, reset)
	}

	s.sendNotice(ctx, lead.Phone, whatsapp.RedirectNote(broker.Name, broker.Phone))
	return OutcomeRedirected, nil
}

// startRotation kicks the state machine; an exhausted queue is already
// handled (event published, lead pending) and is not a webhook failure.
func (s *Service) startRotation(ctx context.Context, lead leadrepo.Lead) error {
	err := s.engine.ProcessNewLead(ctx, lead.ID)
	if err != nil && apperr.Is(err, apperr.KindNotFound) {
		return nil
	}
	return err
}

func (s *Service) sendNotice(ctx context.Context, phoneNumber, text string) {
	if err := s.messenger.SendText(ctx, phoneNumber, text); err != nil {
		s.log.TransportError("send lead notice", phoneNumber, err)
	}
}
