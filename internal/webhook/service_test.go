package webhook

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	brokerrepo "leadrouter_backend/internal/brokers/repository"
	"leadrouter_backend/internal/leads/domain"
	leadrepo "leadrouter_backend/internal/leads/repository"
	"leadrouter_backend/platform/apperr"
	"leadrouter_backend/platform/logger"
	"leadrouter_backend/platform/phone"
)

type fakeBrokers struct {
	brokers []brokerrepo.Broker
}

func (f *fakeBrokers) FindByPhone(ctx context.Context, raw string) (brokerrepo.Broker, error) {
	for _, candidate := range phone.Candidates(raw) {
		for _, b := range f.brokers {
			if b.Phone == candidate {
				return b, nil
			}
		}
	}
	return brokerrepo.Broker{}, apperr.NotFound("broker not found")
}

func (f *fakeBrokers) Get(ctx context.Context, id uuid.UUID) (brokerrepo.Broker, error) {
	for _, b := range f.brokers {
		if b.ID == id {
			return b, nil
		}
	}
	return brokerrepo.Broker{}, apperr.NotFound("broker not found")
}

type engineCall struct {
	Method string
	Arg    string
}

type fakeEngine struct {
	leads     map[string]*leadrepo.Lead
	openFor   map[uuid.UUID]bool
	calls     []engineCall
	processed []uuid.UUID
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		leads:   make(map[string]*leadrepo.Lead),
		openFor: make(map[uuid.UUID]bool),
	}
}

func (f *fakeEngine) addLead(name, phone string, status domain.LeadStatus, lastContact time.Time) *leadrepo.Lead {
	lead := &leadrepo.Lead{
		ID: uuid.New(), Name: name, Phone: phone, Status: status,
		LastContactAt: lastContact,
	}
	f.leads[phone] = lead
	return lead
}

func (f *fakeEngine) RegisterContact(ctx context.Context, name, canonicalPhone string, phoneForms []string) (leadrepo.Lead, bool, error) {
	for _, form := range phoneForms {
		if lead, ok := f.leads[form]; ok {
			return *lead, false, nil
		}
	}
	lead := f.addLead(name, canonicalPhone, domain.LeadPending, time.Now())
	return *lead, true, nil
}

func (f *fakeEngine) ProcessNewLead(ctx context.Context, leadID uuid.UUID) error {
	f.processed = append(f.processed, leadID)
	return nil
}

func (f *fakeEngine) HandleBrokerReply(ctx context.Context, broker brokerrepo.Broker, text string) error {
	f.calls = append(f.calls, engineCall{Method: "HandleBrokerReply", Arg: text})
	return nil
}

func (f *fakeEngine) HasOpenInteraction(ctx context.Context, brokerID uuid.UUID) (bool, error) {
	return f.openFor[brokerID], nil
}

func (f *fakeEngine) ReleaseAssignment(ctx context.Context, leadID uuid.UUID) (leadrepo.Lead, error) {
	for _, lead := range f.leads {
		if lead.ID == leadID {
			lead.Status = domain.LeadPending
			lead.AssignedBrokerID = nil
			lead.AssignedAt = nil
			return *lead, nil
		}
	}
	return leadrepo.Lead{}, apperr.NotFound("lead not found")
}

type fakeSender struct {
	sent []string
}

func (f *fakeSender) SendText(ctx context.Context, phone, text string) error {
	f.sent = append(f.sent, text)
	return nil
}

type memDeduper struct {
	seen map[string]bool
}

func (m *memDeduper) Seen(ctx context.Context, id string) (bool, error) {
	if m.seen[id] {
		return true, nil
	}
	m.seen[id] = true
	return false, nil
}

type engineCfg struct{}

func (engineCfg) GetResponseTimeout() time.Duration    { return 5 * time.Minute }
func (engineCfg) GetLeadWaitWindow() time.Duration     { return 6 * time.Hour }
func (engineCfg) GetLeadRedirectWindow() time.Duration { return 720 * time.Hour }

type fixture struct {
	brokers *fakeBrokers
	engine  *fakeEngine
	sender  *fakeSender
	svc     *Service
}

func newFixture(brokers ...brokerrepo.Broker) *fixture {
	f := &fixture{
		brokers: &fakeBrokers{brokers: brokers},
		engine:  newFakeEngine(),
		sender:  &fakeSender{},
	}
	f.svc = New(f.brokers, f.engine, f.sender, &memDeduper{seen: map[string]bool{}}, engineCfg{}, logger.New("test"))
	return f
}

func message(jid, text, msgID string) Payload {
	return Payload{
		Event: "messages.upsert",
		Data: PayloadData{
			Key:     MessageKey{RemoteJid: jid, ID: msgID},
			Message: MessageContent{Conversation: text},
		},
	}
}

func TestFromMeIsIgnored(t *testing.T) {
	f := newFixture()
	payload := message("5562987777777@s.whatsapp.net", "oi", "M1")
	payload.Data.Key.FromMe = true

	outcome, err := f.svc.HandleMessage(context.Background(), payload)
	if err != nil || outcome != OutcomeIgnored {
		t.Fatalf("fromMe should be ignored, got %s err=%v", outcome, err)
	}
	if len(f.engine.leads) != 0 {
		t.Fatalf("fromMe must not create a lead")
	}
}

func TestGroupMessageIsIgnored(t *testing.T) {
	f := newFixture()
	outcome, err := f.svc.HandleMessage(context.Background(), message("123-456@g.us", "oi", "M1"))
	if err != nil || outcome != OutcomeIgnored {
		t.Fatalf("group message should be ignored, got %s err=%v", outcome, err)
	}
}

func TestDuplicateMessageIsDropped(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	payload := message("5562987777777@s.whatsapp.net", "oi", "M1")

	if _, err := f.svc.HandleMessage(ctx, payload); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	outcome, err := f.svc.HandleMessage(ctx, payload)
	if err != nil || outcome != OutcomeDuplicate {
		t.Fatalf("redelivery should be dropped, got %s err=%v", outcome, err)
	}
	if len(f.engine.processed) != 1 {
		t.Fatalf("rotation must start once, got %d", len(f.engine.processed))
	}
}

func TestNewLeadGetsWelcomeAndRotation(t *testing.T) {
	f := newFixture()
	payload := message("5562987777777@s.whatsapp.net", "Olá, tenho interesse", "M1")
	payload.Data.PushName = "Carlos"

	outcome, err := f.svc.HandleMessage(context.Background(), payload)
	if err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if outcome != OutcomeProcessed {
		t.Fatalf("new lead should be processed, got %s", outcome)
	}

	lead, ok := f.engine.leads["5562987777777"]
	if !ok {
		t.Fatalf("lead should be stored under the canonical phone")
	}
	if lead.Name != "Carlos" {
		t.Fatalf("push name should become the lead name, got %q", lead.Name)
	}
	if len(f.engine.processed) != 1 || f.engine.processed[0] != lead.ID {
		t.Fatalf("rotation should start for the new lead")
	}
	if len(f.sender.sent) != 1 || !strings.Contains(f.sender.sent[0], "Carlos") {
		t.Fatalf("welcome notice should greet the lead, sent=%v", f.sender.sent)
	}
}

func TestBrokerWithOpenOfferGoesToReplyHandler(t *testing.T) {
	b := brokerrepo.Broker{ID: uuid.New(), Name: "Ana", Phone: "5562981111111", Active: true}
	f := newFixture(b)
	f.engine.openFor[b.ID] = true

	outcome, err := f.svc.HandleMessage(context.Background(), message("5562981111111@s.whatsapp.net", "sim", "M1"))
	if err != nil || outcome != OutcomeBrokerReply {
		t.Fatalf("broker reply should be forwarded, got %s err=%v", outcome, err)
	}
	if len(f.engine.calls) != 1 || f.engine.calls[0].Arg != "sim" {
		t.Fatalf("reply handler should receive the text, calls=%v", f.engine.calls)
	}
	if len(f.engine.leads) != 0 {
		t.Fatalf("a broker must never be stored as lead")
	}
}

func TestBrokerWithoutOpenOfferIsDropped(t *testing.T) {
	b := brokerrepo.Broker{ID: uuid.New(), Name: "Ana", Phone: "5562981111111", Active: true}
	f := newFixture(b)

	outcome, err := f.svc.HandleMessage(context.Background(), message("5562981111111@s.whatsapp.net", "bom dia", "M1"))
	if err != nil || outcome != OutcomeBrokerDropped {
		t.Fatalf("idle broker chatter should be dropped, got %s err=%v", outcome, err)
	}
	if len(f.engine.calls) != 0 {
		t.Fatalf("no reply handling for idle brokers")
	}
}

func TestBrokerMatchedByLegacyPhoneForm(t *testing.T) {
	// Broker stored canonical, webhook delivers without the ninth digit.
	b := brokerrepo.Broker{ID: uuid.New(), Name: "Ana", Phone: "5562981804477", Active: true}
	f := newFixture(b)
	f.engine.openFor[b.ID] = true

	outcome, err := f.svc.HandleMessage(context.Background(), message("556281804477@s.whatsapp.net", "nao", "M1"))
	if err != nil || outcome != OutcomeBrokerReply {
		t.Fatalf("legacy form should still match the broker, got %s err=%v", outcome, err)
	}
}

func TestReturningPendingLeadInsideWaitWindowGetsNotice(t *testing.T) {
	f := newFixture()
	f.engine.addLead("Carlos", "5562987777777", domain.LeadPending, time.Now().Add(-time.Hour))

	outcome, err := f.svc.HandleMessage(context.Background(), message("5562987777777@s.whatsapp.net", "alguém aí?", "M1"))
	if err != nil || outcome != OutcomeWaiting {
		t.Fatalf("recent pending lead should get a wait notice, got %s err=%v", outcome, err)
	}
	if len(f.engine.processed) != 0 {
		t.Fatalf("the rotation must not restart inside the wait window")
	}
	if len(f.sender.sent) != 1 {
		t.Fatalf("exactly the wait notice should be sent, got %v", f.sender.sent)
	}
}

func TestReturningPendingLeadAfterWaitWindowRestartsRotation(t *testing.T) {
	f := newFixture()
	lead := f.engine.addLead("Carlos", "5562987777777", domain.LeadPending, time.Now().Add(-7*time.Hour))

	outcome, err := f.svc.HandleMessage(context.Background(), message("5562987777777@s.whatsapp.net", "ainda quero", "M1"))
	if err != nil || outcome != OutcomeProcessed {
		t.Fatalf("stale pending lead should restart, got %s err=%v", outcome, err)
	}
	if len(f.engine.processed) != 1 || f.engine.processed[0] != lead.ID {
		t.Fatalf("rotation should restart for the lead")
	}
}

func TestAssignedLeadInsideRedirectWindowIsRedirected(t *testing.T) {
	b := brokerrepo.Broker{ID: uuid.New(), Name: "Ana", Phone: "5562981111111", Active: true}
	f := newFixture(b)
	assignedAt := time.Now().Add(-24 * time.Hour)
	lead := f.engine.addLead("Carlos", "5562987777777", domain.LeadAssigned, time.Now().Add(-24*time.Hour))
	lead.AssignedBrokerID = &b.ID
	lead.AssignedAt = &assignedAt

	outcome, err := f.svc.HandleMessage(context.Background(), message("5562987777777@s.whatsapp.net", "oi de novo", "M1"))
	if err != nil || outcome != OutcomeRedirected {
		t.Fatalf("assigned lead should be redirected, got %s err=%v", outcome, err)
	}
	if len(f.sender.sent) != 1 || !strings.Contains(f.sender.sent[0], b.Phone) {
		t.Fatalf("redirect note should carry the broker contact, sent=%v", f.sender.sent)
	}
	if len(f.engine.processed) != 0 {
		t.Fatalf("no new rotation for a redirected lead")
	}
}

func TestAssignedLeadAfterRedirectWindowRestarts(t *testing.T) {
	b := brokerrepo.Broker{ID: uuid.New(), Name: "Ana", Phone: "5562981111111", Active: true}
	f := newFixture(b)
	assignedAt := time.Now().Add(-31 * 24 * time.Hour)
	lead := f.engine.addLead("Carlos", "5562987777777", domain.LeadAssigned, assignedAt)
	lead.AssignedBrokerID = &b.ID
	lead.AssignedAt = &assignedAt

	outcome, err := f.svc.HandleMessage(context.Background(), message("5562987777777@s.whatsapp.net", "preciso de ajuda", "M1"))
	if err != nil || outcome != OutcomeProcessed {
		t.Fatalf("expired assignment should restart, got %s err=%v", outcome, err)
	}
	if lead.Status != domain.LeadPending {
		t.Fatalf("lead should be released back to pending")
	}
	if len(f.engine.processed) != 1 {
		t.Fatalf("rotation should restart after release")
	}
}

func TestExpiredAssignmentWithRecentContactGetsWaitNotice(t *testing.T) {
	b := brokerrepo.Broker{ID: uuid.New(), Name: "Ana", Phone: "5562981111111", Active: true}
	f := newFixture(b)
	assignedAt := time.Now().Add(-31 * 24 * time.Hour)
	lead := f.engine.addLead("Carlos", "5562987777777", domain.LeadAssigned, time.Now().Add(-time.Hour))
	lead.AssignedBrokerID = &b.ID
	lead.AssignedAt = &assignedAt

	outcome, err := f.svc.HandleMessage(context.Background(), message("5562987777777@s.whatsapp.net", "e agora?", "M1"))
	if err != nil || outcome != OutcomeWaiting {
		t.Fatalf("recent contact should get the wait notice even past the redirect window, got %s err=%v", outcome, err)
	}
	if lead.Status != domain.LeadAssigned {
		t.Fatalf("the stale assignment must not be released inside the wait window")
	}
	if len(f.engine.processed) != 0 {
		t.Fatalf("the rotation must not restart inside the wait window")
	}
}
