package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

const (
	TypeTransactionRecorded = "transaction_recorded"
	TypeBalanceUpdated      = "balance_updated"
	TypeGoalAchieved        = "goal_achieved"
)

// Envelope wraps every message on the ledger-events queue so consumers
// can dispatch on Type before unmarshaling the payload.
type Envelope struct {
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// TransactionRecordedMessage announces a new spend transaction. Carries
// only identifiers; consumers fetch the full row from storage.
type TransactionRecordedMessage struct {
	TransactionID int64 `json:"transaction_id"`
	UserID        int64 `json:"user_id"`
	CardID        int64 `json:"card_id"`
	ProgramID     int64 `json:"program_id"`
}

// BalanceUpdatedMessage announces a manual balance write or a redemption
// for one (user, program) pair.
type BalanceUpdatedMessage struct {
	UserID    int64 `json:"user_id"`
	ProgramID int64 `json:"program_id"`
}

// GoalAchievedMessage announces that a savings goal crossed its target.
// The out-of-scope notification layer consumes it.
type GoalAchievedMessage struct {
	GoalID    int64  `json:"goal_id"`
	UserID    int64  `json:"user_id"`
	ProgramID int64  `json:"program_id"`
	Target    int64  `json:"target"`
	Title     string `json:"title"`
}

func wrap(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return json.Marshal(Envelope{
		Type:      msgType,
		Timestamp: time.Now(),
		Payload:   raw,
	})
}

// EnvelopeFromJSON parses a raw delivery body.
func EnvelopeFromJSON(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	if env.Type == "" {
		return nil, fmt.Errorf("envelope without type")
	}
	return &env, nil
}
