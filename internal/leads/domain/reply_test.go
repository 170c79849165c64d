package domain

import "testing"

func TestClassifyReply(t *testing.T) {
	cases := []struct {
		input string
		want  Verdict
	}{
		{"sim", VerdictAccept},
		{"SIM", VerdictAccept},
		{"  Sim \n", VerdictAccept},
		{"não", VerdictDecline},
		{"nao", VerdictDecline},
		{"NÃO", VerdictDecline},
		{" nao ", VerdictDecline},
		{"talvez", VerdictUnrecognized},
		{"sim, posso", VerdictUnrecognized},
		{"s", VerdictUnrecognized},
		{"", VerdictUnrecognized},
		{"[Áudio]", VerdictUnrecognized},
	}

	for _, tc := range cases {
		if got := ClassifyReply(tc.input); got != tc.want {
			t.Fatalf("ClassifyReply(%q) = %v, want %v", tc.input, got, tc.want)
		}
	}
}

func TestInteractionStatusTerminal(t *testing.T) {
	if InteractionSent.Terminal() {
		t.Fatal("sent must be the open state")
	}
	for _, s := range []InteractionStatus{InteractionError, InteractionAccepted, InteractionDeclined, InteractionTimedOut} {
		if !s.Terminal() {
			t.Fatalf("%s must be terminal", s)
		}
	}
}
