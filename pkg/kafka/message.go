package kafka

import (
	"encoding/json"
	"time"

	"github.com/midfield-app/clover/pkg/models"
)

// IncomingMessage represents a parsed Kafka message
type IncomingMessage struct {
	Key       string
	Value     []byte
	Headers   map[string]string
	Partition int
	Offset    int64
	Timestamp time.Time
	Topic     string
}

// ParseBatchRequest decodes the message value as a scraped roster batch
func (m *IncomingMessage) ParseBatchRequest() (*models.SyncBatchRequest, error) {
	var batch models.SyncBatchRequest
	if err := json.Unmarshal(m.Value, &batch); err != nil {
		return nil, err
	}
	return &batch, nil
}
