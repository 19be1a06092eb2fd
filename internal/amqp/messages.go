package amqp

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"zlotowka/internal/core"
)

// TransactionKind distinguishes the source of a settled amount.
type TransactionKind string

const (
	KindOneTime   TransactionKind = "one_time"
	KindRecurring TransactionKind = "recurring"
)

// SettlementMessage is emitted once per transaction applied to a stored
// budget by the settlement job. Amount is the converted home-currency value
// as a decimal string.
type SettlementMessage struct {
	Kind          TransactionKind `json:"kind"`
	TransactionID int64           `json:"transactionId"`
	UserID        int64           `json:"userId"`
	Name          string          `json:"name"`
	Amount        string          `json:"amount"`
	Currency      string          `json:"currency"`
	Date          string          `json:"date"`
	IsIncome      bool            `json:"isIncome"`
	Timestamp     time.Time       `json:"timestamp"`
}

func NewSettlementMessage(kind TransactionKind, transactionID, userID int64, name string, amount decimal.Decimal, currency string, date core.Date, isIncome bool) SettlementMessage {
	return SettlementMessage{
		Kind:          kind,
		TransactionID: transactionID,
		UserID:        userID,
		Name:          name,
		Amount:        amount.String(),
		Currency:      currency,
		Date:          date.String(),
		IsIncome:      isIncome,
		Timestamp:     time.Now(),
	}
}

func (m SettlementMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func SettlementMessageFromJSON(data []byte) (*SettlementMessage, error) {
	var msg SettlementMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
