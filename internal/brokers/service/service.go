// Package service implements broker management and the rotation queue
// discipline: dense 1..N positions, head-of-queue selection, and
// move-to-tail renumbering on every terminal interaction outcome.
package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	qrcode "github.com/skip2/go-qrcode"

	"leadrouter_backend/internal/brokers/repository"
	"leadrouter_backend/internal/brokers/transport"
	"leadrouter_backend/platform/apperr"
	"leadrouter_backend/platform/logger"
	"leadrouter_backend/platform/phone"
)

// LeadPhoneChecker reports whether a phone is already registered as a lead.
// Implemented by the leads repository; injected to keep the broker/lead
// phone-collision rule without importing the leads module.
type LeadPhoneChecker interface {
	PhoneInUse(ctx context.Context, phones []string) (bool, error)
}

// Service provides broker management and queue operations.
type Service struct {
	repo       repository.Repository
	leadPhones LeadPhoneChecker
	log        *logger.Logger

	// queueMu serializes every queue mutation. Renumbering is a
	// read-compute-write over the whole broker list; two interleaved runs
	// (say, two offer timers expiring together) would each snapshot the
	// same ordering and the later commit would undo the earlier move.
	queueMu sync.Mutex
}

// New creates a new brokers service.
func New(repo repository.Repository, leadPhones LeadPhoneChecker, log *logger.Logger) *Service {
	return &Service{repo: repo, leadPhones: leadPhones, log: log}
}

// Create registers a broker at the tail of the queue. The phone is stored in
// canonical form and must not collide with an existing lead in either form.
func (s *Service) Create(ctx context.Context, req transport.CreateBrokerRequest) (transport.BrokerResponse, error) {
	if !phone.IsPlausible(req.Phone) {
		return transport.BrokerResponse{}, apperr.Validation("phone is not a valid Brazilian number")
	}

	canonical := phone.Normalize(req.Phone)
	if err := s.ensureNotLead(ctx, canonical); err != nil {
		return transport.BrokerResponse{}, err
	}

	s.queueMu.Lock()
	defer s.queueMu.Unlock()

	broker, err := s.repo.Create(ctx, repository.CreateParams{Name: req.Name, Phone: canonical})
	if err != nil {
		return transport.BrokerResponse{}, err
	}

	s.log.Info("broker created", "id", broker.ID, "name", broker.Name, "position", broker.QueuePosition)
	return toBrokerResponse(broker), nil
}

// Update modifies a broker; a phone change re-runs normalization and the
// lead-collision check.
func (s *Service) Update(ctx context.Context, id uuid.UUID, req transport.UpdateBrokerRequest) (transport.BrokerResponse, error) {
	params := repository.UpdateParams{ID: id, Name: req.Name}

	if req.Phone != nil {
		if !phone.IsPlausible(*req.Phone) {
			return transport.BrokerResponse{}, apperr.Validation("phone is not a valid Brazilian number")
		}
		canonical := phone.Normalize(*req.Phone)
		if err := s.ensureNotLead(ctx, canonical); err != nil {
			return transport.BrokerResponse{}, err
		}
		params.Phone = &canonical
	}

	broker, err := s.repo.Update(ctx, params)
	if err != nil {
		return transport.BrokerResponse{}, err
	}

	s.log.Info("broker updated", "id", broker.ID)
	return toBrokerResponse(broker), nil
}

// Delete removes a broker and renumbers the survivors into a dense 1..N.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	s.queueMu.Lock()
	defer s.queueMu.Unlock()

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	if err := s.renumber(ctx, nil); err != nil {
		return err
	}

	s.log.Info("broker deleted", "id", id)
	return nil
}

// List returns all brokers in rotation order.
func (s *Service) List(ctx context.Context) ([]transport.BrokerResponse, error) {
	brokers, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]transport.BrokerResponse, 0, len(brokers))
	for _, broker := range brokers {
		out = append(out, toBrokerResponse(broker))
	}
	return out, nil
}

// GetByID retrieves one broker.
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (transport.BrokerResponse, error) {
	broker, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return transport.BrokerResponse{}, err
	}
	return toBrokerResponse(broker), nil
}

// NextActive returns the active broker at the head of the rotation.
// Read-only; the queue is not mutated.
func (s *Service) NextActive(ctx context.Context) (repository.Broker, error) {
	return s.repo.NextActive(ctx)
}

// Get returns the raw broker record for other modules.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (repository.Broker, error) {
	return s.repo.GetByID(ctx, id)
}

// FindByPhone resolves a raw phone to a broker, trying both the normalized
// and the ninth-digit-stripped form.
func (s *Service) FindByPhone(ctx context.Context, raw string) (repository.Broker, error) {
	return s.repo.FindByPhones(ctx, phone.Candidates(raw))
}

// MoveToTail sends the broker to the back of the rotation and renumbers all
// brokers into a dense 1..N. Renumbering on every move keeps ties impossible
// and collapses gaps left by deletes.
func (s *Service) MoveToTail(ctx context.Context, id uuid.UUID) error {
	s.queueMu.Lock()
	defer s.queueMu.Unlock()

	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return err
	}

	if err := s.renumber(ctx, &id); err != nil {
		return err
	}

	s.log.Info("broker moved to tail", "id", id)
	return nil
}

// SetActive flips the rotation flag; the position is untouched so the broker
// resumes at the same relative place when reactivated.
func (s *Service) SetActive(ctx context.Context, id uuid.UUID, active bool) (transport.BrokerResponse, error) {
	broker, err := s.repo.SetActive(ctx, id, active)
	if err != nil {
		return transport.BrokerResponse{}, err
	}

	s.log.Info("broker active flag set", "id", id, "active", active)
	return toBrokerResponse(broker), nil
}

// QueueStatus summarizes the rotation for the admin UI.
func (s *Service) QueueStatus(ctx context.Context) (transport.QueueStatusResponse, error) {
	brokers, err := s.repo.List(ctx)
	if err != nil {
		return transport.QueueStatusResponse{}, err
	}

	status := transport.QueueStatusResponse{
		Total: len(brokers),
		Queue: make([]transport.QueueEntryResponse, 0),
	}
	for _, broker := range brokers {
		if !broker.Active {
			status.Inactive++
			continue
		}
		status.Active++
		status.Queue = append(status.Queue, transport.QueueEntryResponse{
			ID:       broker.ID,
			Name:     broker.Name,
			Phone:    broker.Phone,
			Position: broker.QueuePosition,
		})
	}
	return status, nil
}

// ContactQR renders a wa.me deep-link QR code for the broker's phone.
func (s *Service) ContactQR(ctx context.Context, id uuid.UUID) ([]byte, error) {
	broker, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return qrcode.Encode("https://wa.me/"+broker.Phone, qrcode.Medium, 256)
}

// renumber reloads all brokers in position order and reassigns a dense
// 1..N. When tailID is set, that broker is ordered last before numbering,
// which implements move-to-tail.
func (s *Service) renumber(ctx context.Context, tailID *uuid.UUID) error {
	brokers, err := s.repo.List(ctx)
	if err != nil {
		return err
	}

	ordered := make([]repository.Broker, 0, len(brokers))
	var tail *repository.Broker
	for i := range brokers {
		if tailID != nil && brokers[i].ID == *tailID {
			tail = &brokers[i]
			continue
		}
		ordered = append(ordered, brokers[i])
	}
	if tail != nil {
		ordered = append(ordered, *tail)
	}

	updates := make([]repository.PositionUpdate, 0, len(ordered))
	for i, broker := range ordered {
		if broker.QueuePosition == i+1 {
			continue
		}
		updates = append(updates, repository.PositionUpdate{ID: broker.ID, QueuePosition: i + 1})
	}

	return s.repo.UpdatePositions(ctx, updates)
}

func (s *Service) ensureNotLead(ctx context.Context, canonical string) error {
	if s.leadPhones == nil {
		return nil
	}

	inUse, err := s.leadPhones.PhoneInUse(ctx, phone.Candidates(canonical))
	if err != nil {
		return err
	}
	if inUse {
		return apperr.Conflict("phone already registered as a lead")
	}
	return nil
}

func toBrokerResponse(broker repository.Broker) transport.BrokerResponse {
	return transport.BrokerResponse{
		ID:            broker.ID,
		Name:          broker.Name,
		Phone:         broker.Phone,
		Active:        broker.Active,
		QueuePosition: broker.QueuePosition,
		CreatedAt:     broker.CreatedAt.Format(time.RFC3339),
		UpdatedAt:     broker.UpdatedAt.Format(time.RFC3339),
	}
}
