package scan

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/File-Sharing-BondBridg/Share-Service/internal/access"
	"github.com/File-Sharing-BondBridg/Share-Service/internal/models"
	"github.com/File-Sharing-BondBridg/Share-Service/internal/services"
)

type processorObjectStore interface {
	ScanTag(ctx context.Context, key string) (string, bool, error)
	Delete(ctx context.Context, key string) error
}

// Processor consumes tag events and transitions file-record scan state,
// deleting infected objects.
type Processor struct {
	objects  processorObjectStore
	store    scannerMetadataStore
	logger   *zap.Logger
	infected prometheus.Counter // optional
	now      func() time.Time
}

// NewProcessor wires the scan-result processor. infectedCounter may be
// nil.
func NewProcessor(objects processorObjectStore, store scannerMetadataStore, infectedCounter prometheus.Counter, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{objects: objects, store: store, infected: infectedCounter, logger: logger, now: time.Now}
}

// HandleTagged is the NATS handler for shares.tagged events.
func (p *Processor) HandleTagged(msg *nats.Msg) {
	var ev services.ObjectTaggedEvent
	if err := json.Unmarshal(msg.Data, &ev); err != nil {
		p.logger.Error("shares.tagged: invalid payload", zap.Error(err))
		_ = msg.Ack()
		return
	}

	if err := p.Process(context.Background(), ev.ObjectKey); err != nil {
		p.logger.Error("scan result processing failed",
			zap.String("object_key", ev.ObjectKey), zap.Error(err))
		_ = msg.Nak() // surrounding retry infrastructure reacts
		return
	}
	_ = msg.Ack()
}

// Process reads the object's verdict tag and applies the transition:
// clean tag marks the record clean; anything else marks it infected and
// removes the object. Metadata is updated before the delete so a racing
// download sees infected, never a dangling clean record.
func (p *Processor) Process(ctx context.Context, objectKey string) error {
	shareID, ok := access.ShareIDFromKey(objectKey)
	if !ok {
		// Not one of ours; not an error.
		return nil
	}

	tag, ok, err := p.objects.ScanTag(ctx, objectKey)
	if err != nil {
		p.markError(ctx, shareID, err)
		return fmt.Errorf("read scan tag: %w", err)
	}
	if !ok {
		// Scan not complete yet.
		return nil
	}

	if tag == VerdictClean {
		if _, err := p.store.UpdateScanStatus(ctx, shareID, models.ScanClean, "", p.now()); err != nil {
			return fmt.Errorf("mark clean: %w", err)
		}
		p.logger.Info("scan clean", zap.String("share_id", shortID(shareID)))
		return nil
	}

	// Threat found, unsupported type, scanner error: all unreleasable.
	if _, err := p.store.UpdateScanStatus(ctx, shareID, models.ScanInfected, tag, p.now()); err != nil {
		return fmt.Errorf("mark infected: %w", err)
	}
	if err := p.objects.Delete(ctx, objectKey); err != nil {
		// Record already reads infected, so no download escapes; the
		// object removal must still be retried.
		return fmt.Errorf("delete infected object: %w", err)
	}

	if p.infected != nil {
		p.infected.Inc()
	}
	p.logger.Warn("infected object removed",
		zap.String("share_id", shortID(shareID)), zap.String("verdict", tag))
	return nil
}

func (p *Processor) markError(ctx context.Context, shareID string, cause error) {
	if _, err := p.store.UpdateScanStatus(ctx, shareID, models.ScanError, cause.Error(), p.now()); err != nil {
		p.logger.Warn("failed to mark scan error",
			zap.String("share_id", shortID(shareID)), zap.Error(err))
	}
}

func shortID(s string) string {
	if len(s) > 8 {
		return s[:8]
	}
	return s
}
