package services

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// Event subjects flowing through the scan pipeline.
const (
	SubjectFileUploaded = "shares.uploaded"
	SubjectObjectTagged = "shares.tagged"

	streamName = "share-events"
)

// FileUploadedEvent announces a completed upload awaiting a scan.
type FileUploadedEvent struct {
	ShareID   string `json:"share_id"`
	ObjectKey string `json:"object_key"`
	FileSize  int64  `json:"file_size"`
}

// ObjectTaggedEvent announces that the scanner tagged an object.
type ObjectTaggedEvent struct {
	ObjectKey string `json:"object_key"`
}

// EventBus is the JetStream-backed event pipeline between upload, scan
// worker and scan-result processor.
type EventBus struct {
	nc     *nats.Conn
	js     nats.JetStreamContext
	logger *zap.Logger
}

// ConnectNATS connects to NATS, initializes JetStream and ensures the
// share-events stream exists.
func ConnectNATS(url string, logger *zap.Logger) (*EventBus, error) {
	opts := []nats.Option{
		nats.Name("share-service"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			logger.Info("nats connection closed")
		}),
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("init jetstream: %w", err)
	}

	bus := &EventBus{nc: nc, js: js, logger: logger}
	if err := bus.ensureStream(); err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure stream: %w", err)
	}

	logger.Info("nats connected, jetstream ready")
	return bus, nil
}

func (b *EventBus) ensureStream() error {
	if _, err := b.js.StreamInfo(streamName); err == nil {
		return nil
	}

	_, err := b.js.AddStream(&nats.StreamConfig{
		Name:     streamName,
		Subjects: []string{"shares.*"},
		Storage:  nats.FileStorage,
		MaxAge:   72 * time.Hour,
	})
	return err
}

// Publish sends a durable event with a uuid MsgId for idempotency.
func (b *EventBus) Publish(subject string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if _, err := b.js.Publish(subject, data, nats.MsgId(uuid.New().String())); err != nil {
		b.logger.Error("event publish failed", zap.String("subject", subject), zap.Error(err))
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

// Subscribe creates a durable, manual-ack consumer. The handler owns
// Ack/Nak.
func (b *EventBus) Subscribe(subject, durableName string, handler nats.MsgHandler) (*nats.Subscription, error) {
	sub, err := b.js.Subscribe(subject, handler, nats.Durable(durableName), nats.ManualAck())
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", subject, err)
	}
	b.logger.Info("subscribed", zap.String("subject", subject), zap.String("durable", durableName))
	return sub, nil
}

// Connected is used by the health endpoint.
func (b *EventBus) Connected() bool {
	return b != nil && b.nc != nil && b.nc.IsConnected()
}

// Close drains the connection.
func (b *EventBus) Close() {
	if b.nc != nil {
		b.nc.Close()
	}
}
