package whatsapp

import "fmt"

// Message templates sent by the engine. All copy is pt-BR because both
// brokers and leads are Brazilian WhatsApp users.

// AvailabilityQuestion asks a broker whether they can take a new lead.
// Only the literal replies "sim" and "não"/"nao" resolve the offer.
func AvailabilityQuestion(brokerName string) string {
	return fmt.Sprintf(
		"Olá %s! Temos um novo cliente interessado. Você está disponível para atendê-lo agora?\n\nResponda *sim* para aceitar ou *não* para recusar.",
		brokerName,
	)
}

// LeadContactCard gives the accepting broker the lead's contact details.
func LeadContactCard(leadName, leadPhone string) string {
	name := leadName
	if name == "" {
		name = "Cliente"
	}
	return fmt.Sprintf(
		"Atendimento confirmado! Seguem os dados do cliente:\n\n*Nome:* %s\n*Telefone:* %s\nhttps://wa.me/%s\n\nBom atendimento!",
		name, leadPhone, leadPhone,
	)
}

// DeclineAck acknowledges a broker's refusal.
func DeclineAck() string {
	return "Tudo bem! O cliente será direcionado para outro corretor. Até a próxima!"
}

// TimeoutNotice tells a broker the offer expired unanswered.
func TimeoutNotice() string {
	return "O tempo de resposta expirou e o cliente foi direcionado para outro corretor."
}

// Welcome greets a first-time or returning lead before a broker is found.
func Welcome(leadName string) string {
	if leadName != "" {
		return fmt.Sprintf("Olá %s! Recebemos seu contato. Em instantes um de nossos corretores falará com você.", leadName)
	}
	return "Olá! Recebemos seu contato. Em instantes um de nossos corretores falará com você."
}

// PleaseWait answers a lead who writes again while still in the queue.
func PleaseWait() string {
	return "Já recebemos seu contato e estamos localizando um corretor disponível. Por favor, aguarde um instante."
}

// RedirectNote points a returning lead back to the broker already handling them.
func RedirectNote(brokerName, brokerPhone string) string {
	return fmt.Sprintf(
		"Você já está sendo atendido pelo corretor *%s*. Fale diretamente com ele:\nhttps://wa.me/%s",
		brokerName, brokerPhone,
	)
}
