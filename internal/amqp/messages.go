package amqp

import (
	"encoding/json"
	"time"
)

// DataChangedMessage announces that a user's dataset changed. It carries no
// payload: interested consumers pull the fresh state through the API.
type DataChangedMessage struct {
	UserID    string    `json:"user_id"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
}

func NewDataChangedMessage(userID, source string) *DataChangedMessage {
	return &DataChangedMessage{
		UserID:    userID,
		Source:    source,
		Timestamp: time.Now().UTC(),
	}
}

func (m *DataChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func DataChangedMessageFromJSON(data []byte) (*DataChangedMessage, error) {
	var msg DataChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
