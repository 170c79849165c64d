package domain

import "strings"

// Verdict is the classification of a broker's free-text reply.
type Verdict int

const (
	// VerdictUnrecognized means the text matched neither answer. The engine
	// must leave all state untouched: the broker can still answer properly
	// or let the timer expire.
	VerdictUnrecognized Verdict = iota
	// VerdictAccept means the broker takes the lead.
	VerdictAccept
	// VerdictDecline means the broker passes the lead on.
	VerdictDecline
)

// ClassifyReply maps a broker reply to a verdict. The match is exact after
// trimming and lower-casing: only "sim" accepts, only "não" or "nao"
// declines. Intentionally strict so casual conversation never resolves an
// offer by accident.
func ClassifyReply(text string) Verdict {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "sim":
		return VerdictAccept
	case "não", "nao":
		return VerdictDecline
	default:
		return VerdictUnrecognized
	}
}
