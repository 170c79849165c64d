// Package email delivers operational alert mails to the ops mailbox when
// the engine needs human attention.
package email

import (
	"context"
	"fmt"
	"time"

	gomail "github.com/wneessen/go-mail"

	"leadrouter_backend/internal/events"
	"leadrouter_backend/platform/config"
	"leadrouter_backend/platform/logger"
)

// Sender delivers alert mails.
type Sender interface {
	SendQueueExhaustedAlert(ctx context.Context, leadName, leadPhone string) error
	SendDeliveryFailureAlert(ctx context.Context, brokerName string) error
}

// NoopSender drops all alerts. Used when SMTP is not configured.
type NoopSender struct{}

func (NoopSender) SendQueueExhaustedAlert(ctx context.Context, leadName, leadPhone string) error {
	return nil
}

func (NoopSender) SendDeliveryFailureAlert(ctx context.Context, brokerName string) error {
	return nil
}

// SMTPSender implements Sender over a direct SMTP connection via go-mail.
type SMTPSender struct {
	cfg config.AlertConfig
}

// NewSMTPSender creates an alert sender for the configured SMTP server.
func NewSMTPSender(cfg config.AlertConfig) *SMTPSender {
	return &SMTPSender{cfg: cfg}
}

func (s *SMTPSender) SendQueueExhaustedAlert(ctx context.Context, leadName, leadPhone string) error {
	name := leadName
	if name == "" {
		name = "(sem nome)"
	}
	body := fmt.Sprintf(
		"Um lead está aguardando sem nenhum corretor ativo na fila.\n\nLead: %s\nTelefone: %s\n\nAtive um corretor e reprocesse o lead pelo painel.",
		name, leadPhone,
	)
	return s.send(ctx, "Fila de corretores esgotada", body)
}

func (s *SMTPSender) SendDeliveryFailureAlert(ctx context.Context, brokerName string) error {
	body := fmt.Sprintf(
		"A oferta de um lead não pôde ser entregue ao corretor %s. O lead ficou parado até intervenção manual.\n\nVerifique a instância do WhatsApp e reprocesse o lead.",
		brokerName,
	)
	return s.send(ctx, "Falha na entrega de oferta", body)
}

func (s *SMTPSender) send(ctx context.Context, subject, body string) error {
	msg := gomail.NewMsg()
	if err := msg.From(s.cfg.GetAlertFromAddress()); err != nil {
		return fmt.Errorf("smtp from: %w", err)
	}
	if err := msg.To(s.cfg.GetAlertToAddress()); err != nil {
		return fmt.Errorf("smtp to: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextPlain, body)

	client, err := gomail.NewClient(s.cfg.GetAlertSMTPHost(),
		gomail.WithPort(s.cfg.GetAlertSMTPPort()),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(s.cfg.GetAlertSMTPUsername()),
		gomail.WithPassword(s.cfg.GetAlertSMTPPassword()),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(15*time.Second),
	)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

// NewSender picks the SMTP sender when alerts are configured.
func NewSender(cfg config.AlertConfig) Sender {
	if cfg.IsAlertEnabled() {
		return NewSMTPSender(cfg)
	}
	return NoopSender{}
}

// SubscribeAlerts wires the alert sender to the engine events that need a
// human response.
func SubscribeAlerts(bus events.Bus, sender Sender, log *logger.Logger) {
	bus.Subscribe(events.QueueExhausted{}.EventName(), events.HandlerFunc(
		func(ctx context.Context, event events.Event) error {
			e, ok := event.(events.QueueExhausted)
			if !ok {
				return nil
			}
			if err := sender.SendQueueExhaustedAlert(ctx, e.LeadName, e.LeadPhone); err != nil {
				log.Error("queue exhausted alert", "lead_id", e.LeadID, "error", err)
			}
			return nil
		},
	))

	bus.Subscribe(events.OfferDeliveryFailed{}.EventName(), events.HandlerFunc(
		func(ctx context.Context, event events.Event) error {
			e, ok := event.(events.OfferDeliveryFailed)
			if !ok {
				return nil
			}
			if err := sender.SendDeliveryFailureAlert(ctx, e.BrokerName); err != nil {
				log.Error("delivery failure alert", "interaction_id", e.InteractionID, "error", err)
			}
			return nil
		},
	))
}
