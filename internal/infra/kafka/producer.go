package kafka

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/arklim/weather-auth/internal/infra/config"
)

var ErrNoBrokers = errors.New("kafka: no brokers configured")

// Producer wraps a Sarama AsyncProducer. Delivery errors are logged and counted;
// publishing never blocks the auth flow on broker acknowledgements.
type Producer struct {
	producer sarama.AsyncProducer
	logger   *zap.Logger
	prefix   string
	done     chan struct{}
	failures func()
}

// NewProducer dials the configured brokers. onFailure, when set, is invoked for
// every message the broker rejected.
func NewProducer(cfg config.KafkaSettings, logger *zap.Logger, onFailure func()) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, ErrNoBrokers
	}

	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V3_5_0_0
	saramaConfig.ClientID = "weather-auth"

	saramaConfig.Producer.RequiredAcks = sarama.WaitForLocal
	saramaConfig.Producer.Compression = sarama.CompressionSnappy
	saramaConfig.Producer.Flush.Frequency = 100 * time.Millisecond
	saramaConfig.Producer.Flush.Messages = 100
	saramaConfig.Producer.Retry.Max = 3
	saramaConfig.Producer.Return.Successes = false
	saramaConfig.Producer.Return.Errors = true

	saramaConfig.Metadata.Retry.Max = 3
	saramaConfig.Metadata.Retry.Backoff = 250 * time.Millisecond

	asyncProducer, err := sarama.NewAsyncProducer(cfg.Brokers, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}

	logger.Info("kafka producer initialized",
		zap.Strings("brokers", cfg.Brokers),
		zap.String("topic_prefix", cfg.TopicPrefix),
	)

	return newProducer(asyncProducer, cfg.TopicPrefix, logger, onFailure), nil
}

func newProducer(asyncProducer sarama.AsyncProducer, prefix string, logger *zap.Logger, onFailure func()) *Producer {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Producer{
		producer: asyncProducer,
		logger:   logger,
		prefix:   prefix,
		done:     make(chan struct{}),
		failures: onFailure,
	}
	go p.handleErrors()
	return p
}

func (p *Producer) handleErrors() {
	for {
		select {
		case perr, ok := <-p.producer.Errors():
			if !ok {
				return
			}
			if perr == nil {
				continue
			}
			p.logger.Error("kafka delivery failed",
				zap.Error(perr.Err),
				zap.String("topic", perr.Msg.Topic),
			)
			if p.failures != nil {
				p.failures()
			}
		case <-p.done:
			return
		}
	}
}

// Input exposes the producer's message channel.
func (p *Producer) Input() chan<- *sarama.ProducerMessage {
	return p.producer.Input()
}

// Close flushes pending messages and stops the error loop.
func (p *Producer) Close() error {
	p.logger.Info("closing kafka producer")
	close(p.done)

	if err := p.producer.Close(); err != nil {
		return fmt.Errorf("close kafka producer: %w", err)
	}
	return nil
}

// TopicName prefixes an event type unless it already carries the prefix.
func (p *Producer) TopicName(eventType string) string {
	if p.prefix == "" {
		return eventType
	}

	prefix := p.prefix + "."
	if strings.HasPrefix(eventType, prefix) {
		return eventType
	}
	return prefix + eventType
}
