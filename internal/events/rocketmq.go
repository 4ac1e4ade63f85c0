package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	rocketmq "github.com/apache/rocketmq-client-go/v2"
	"github.com/apache/rocketmq-client-go/v2/consumer"
	"github.com/apache/rocketmq-client-go/v2/primitive"
	"github.com/apache/rocketmq-client-go/v2/producer"
	"github.com/sirupsen/logrus"

	"github.com/R3E-Network/rental_settlement/internal/app/domain/settlement"
	"github.com/R3E-Network/rental_settlement/internal/config"
	"github.com/R3E-Network/rental_settlement/pkg/logger"
)

// RocketMQ publishes and consumes notification events through RocketMQ.
type RocketMQ struct {
	cfg config.EventsConfig
	log *logger.Logger

	mu      sync.Mutex
	prod    rocketmq.Producer
	cons    rocketmq.PushConsumer
	started bool
	consUp  bool
}

// NewRocketMQ creates an unstarted RocketMQ transport.
func NewRocketMQ(cfg config.EventsConfig, log *logger.Logger) *RocketMQ {
	if log == nil {
		log = logger.NewDefault("events")
	}
	return &RocketMQ{cfg: cfg, log: log}
}

func (m *RocketMQ) Name() string { return "events-rocketmq" }

func (m *RocketMQ) credentials() primitive.Credentials {
	return primitive.Credentials{AccessKey: m.cfg.AccessKey, SecretKey: m.cfg.SecretKey}
}

// Start creates and starts the producer.
func (m *RocketMQ) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return nil
	}
	if len(m.cfg.NameServers) == 0 {
		return fmt.Errorf("no rocketmq name servers configured")
	}
	prod, err := rocketmq.NewProducer(
		producer.WithNameServer(m.cfg.NameServers),
		producer.WithCredentials(m.credentials()),
		producer.WithNamespace(strings.TrimSpace(m.cfg.Namespace)),
		producer.WithRetry(2),
	)
	if err != nil {
		return fmt.Errorf("create rocketmq producer: %w", err)
	}
	if err := prod.Start(); err != nil {
		return fmt.Errorf("start rocketmq producer: %w", err)
	}
	m.prod = prod
	m.started = true
	return nil
}

// Stop shuts down producer and consumer.
func (m *RocketMQ) Stop(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.prod != nil {
		_ = m.prod.Shutdown()
		m.prod = nil
	}
	if m.cons != nil {
		_ = m.cons.Shutdown()
		m.cons = nil
	}
	m.started = false
	m.consUp = false
	return nil
}

type envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
	SentAt  time.Time       `json:"sent_at"`
}

// Publish sends the event synchronously.
func (m *RocketMQ) Publish(ctx context.Context, event settlement.NotificationEvent) error {
	msg, err := m.message(event)
	if err != nil {
		return err
	}

	m.mu.Lock()
	prod := m.prod
	m.mu.Unlock()
	if prod == nil {
		return ErrNotStarted
	}

	if _, err := prod.SendSync(ctx, msg); err != nil {
		return fmt.Errorf("rocketmq send: %w", err)
	}
	return nil
}

func (m *RocketMQ) message(event settlement.NotificationEvent) (*primitive.Message, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	body, err := json.Marshal(envelope{Event: NotificationEvent, Payload: payload, SentAt: time.Now().UTC()})
	if err != nil {
		return nil, fmt.Errorf("encode envelope: %w", err)
	}

	msg := &primitive.Message{
		Topic: m.topicFor(NotificationEvent),
		Body:  body,
	}
	msg.WithProperty("event", NotificationEvent)
	msg.WithProperty("type", string(event.Type))
	if m.cfg.Namespace != "" {
		msg.WithProperty("namespace", m.cfg.Namespace)
	}
	return msg, nil
}

// Subscribe registers handler on the notification topic and starts the
// consumer on first use.
func (m *RocketMQ) Subscribe(ctx context.Context, handler Handler) error {
	if handler == nil {
		return fmt.Errorf("handler required")
	}
	topic := m.topicFor(NotificationEvent)

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cons == nil {
		cons, err := rocketmq.NewPushConsumer(
			consumer.WithGroupName(m.consumerGroup()),
			consumer.WithNameServer(m.cfg.NameServers),
			consumer.WithCredentials(m.credentials()),
			consumer.WithNamespace(strings.TrimSpace(m.cfg.Namespace)),
			consumer.WithConsumeFromWhere(consumer.ConsumeFromLastOffset),
		)
		if err != nil {
			return fmt.Errorf("create rocketmq consumer: %w", err)
		}
		m.cons = cons
	}

	if err := m.cons.Subscribe(topic, consumer.MessageSelector{}, m.consume(handler)); err != nil {
		return fmt.Errorf("subscribe to topic %s: %w", topic, err)
	}

	if !m.consUp {
		if err := m.cons.Start(); err != nil {
			return fmt.Errorf("start rocketmq consumer: %w", err)
		}
		m.consUp = true
	}
	return nil
}

// consume decodes each message and hands it to handler. Undecodable
// messages are logged and acknowledged; handler errors are retried later.
func (m *RocketMQ) consume(handler Handler) func(context.Context, ...*primitive.MessageExt) (consumer.ConsumeResult, error) {
	return func(ctx context.Context, msgs ...*primitive.MessageExt) (consumer.ConsumeResult, error) {
		for _, msg := range msgs {
			event, err := decodeEvent(msg.Body)
			if err != nil {
				m.log.WithError(err).WithField("msg_id", msg.MsgId).Warn("dropping undecodable notification message")
				continue
			}
			if err := handler(ctx, event); err != nil {
				m.log.WithError(err).WithFields(logrus.Fields{
					"msg_id":     msg.MsgId,
					"event_type": event.Type,
				}).Warn("notification handler failed; will retry")
				return consumer.ConsumeRetryLater, nil
			}
		}
		return consumer.ConsumeSuccess, nil
	}
}

func decodeEvent(body []byte) (settlement.NotificationEvent, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return settlement.NotificationEvent{}, fmt.Errorf("decode envelope: %w", err)
	}
	raw := []byte(env.Payload)
	if len(raw) == 0 {
		raw = body
	}
	var event settlement.NotificationEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		return settlement.NotificationEvent{}, fmt.Errorf("decode event: %w", err)
	}
	if event.Type == "" {
		return settlement.NotificationEvent{}, fmt.Errorf("event type missing")
	}
	return event, nil
}

func (m *RocketMQ) consumerGroup() string {
	if strings.TrimSpace(m.cfg.ConsumerGroup) != "" {
		return m.cfg.ConsumerGroup
	}
	return "notification-service"
}

func (m *RocketMQ) topicFor(event string) string {
	event = sanitize(event)
	prefix := strings.TrimSpace(m.cfg.TopicPrefix)
	if prefix == "" {
		prefix = "realestate"
	}
	if ns := strings.TrimSpace(m.cfg.Namespace); ns != "" {
		prefix = sanitize(ns) + "." + prefix
	}
	return fmt.Sprintf("%s.%s", prefix, event)
}

func sanitize(in string) string {
	in = strings.TrimSpace(strings.ToLower(in))
	in = strings.ReplaceAll(in, " ", "-")
	return in
}
