package amqp

import (
	"encoding/json"
	"testing"
)

func TestWrapAndParse(t *testing.T) {
	msg := TransactionRecordedMessage{TransactionID: 42, UserID: 1, CardID: 10, ProgramID: 3}
	body, err := wrap(TypeTransactionRecorded, msg)
	if err != nil {
		t.Fatalf("wrap() error = %v", err)
	}

	env, err := EnvelopeFromJSON(body)
	if err != nil {
		t.Fatalf("EnvelopeFromJSON() error = %v", err)
	}
	if env.Type != TypeTransactionRecorded {
		t.Errorf("Type = %q, want %q", env.Type, TypeTransactionRecorded)
	}
	if env.Timestamp.IsZero() {
		t.Error("Timestamp not set")
	}

	var got TransactionRecordedMessage
	if err := json.Unmarshal(env.Payload, &got); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if got != msg {
		t.Errorf("payload = %+v, want %+v", got, msg)
	}
}

func TestEnvelopeFromJSONErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "not json", body: "not json at all"},
		{name: "missing type", body: `{"timestamp":"2026-03-01T00:00:00Z","payload":{}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := EnvelopeFromJSON([]byte(tt.body)); err == nil {
				t.Error("EnvelopeFromJSON() error = nil, want error")
			}
		})
	}
}
