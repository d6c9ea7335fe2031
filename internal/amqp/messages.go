package amqp

import (
	"encoding/json"
	"time"
)

// TransactionSyncMessage asks the worker to export one transaction to the
// external ledger. It carries only the ID; the worker fetches the full
// transaction from the database so the queue never holds stale data.
type TransactionSyncMessage struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
}

func NewTransactionSyncMessage(id int64) *TransactionSyncMessage {
	return &TransactionSyncMessage{
		ID:        id,
		Timestamp: time.Now(),
	}
}

func (m *TransactionSyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func TransactionSyncMessageFromJSON(data []byte) (*TransactionSyncMessage, error) {
	var msg TransactionSyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
