package kafka

import (
	"fmt"
	"time"

	"github.com/IBM/sarama"
)

// ClientConfig contains the settings needed to produce progress events.
type ClientConfig struct {
	Brokers  []string
	ClientID string
	Timeout  time.Duration
}

// NewProducer creates a synchronous producer that waits for all in-sync
// replicas and routes by key, so every event of a run lands on one partition.
func NewProducer(cfg *ClientConfig) (sarama.SyncProducer, error) {
	config := sarama.NewConfig()
	config.ClientID = cfg.ClientID

	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Return.Successes = true
	config.Producer.Partitioner = sarama.NewHashPartitioner
	if cfg.Timeout > 0 {
		config.Producer.Timeout = cfg.Timeout
		config.Net.DialTimeout = cfg.Timeout
	}

	// Version should be consistent across all components
	config.Version = sarama.V3_6_0_0

	producer, err := sarama.NewSyncProducer(cfg.Brokers, config)
	if err != nil {
		return nil, fmt.Errorf("creating producer: %w", err)
	}
	return producer, nil
}
