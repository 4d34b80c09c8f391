// Package scan holds the malware-scan pipeline: a ClamAV worker that
// tags stored objects with a verdict, and a processor that turns tag
// events into file-record state transitions.
package scan

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	clamd "github.com/dutchcoders/go-clamd"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/File-Sharing-BondBridg/Share-Service/internal/models"
	"github.com/File-Sharing-BondBridg/Share-Service/internal/services"
)

// Verdict tag values written onto objects.
const (
	VerdictClean = "clean"

	verdictInfectedPrefix = "infected: "
	verdictErrorPrefix    = "error: "
)

type scannerObjectStore interface {
	FGet(ctx context.Context, key, localPath string) error
	SetScanTag(ctx context.Context, key, value string) error
}

type scannerMetadataStore interface {
	UpdateScanStatus(ctx context.Context, shareID string, status models.ScanStatus, scanResult string, scanDate time.Time) (bool, error)
}

type virusScanner interface {
	ScanFile(path string) (chan *clamd.ScanResult, error)
}

// Scanner downloads uploaded objects, runs ClamAV over them and writes
// the verdict back as an object tag.
type Scanner struct {
	objects scannerObjectStore
	store   scannerMetadataStore
	events  interface {
		Publish(subject string, payload interface{}) error
	}
	clam    virusScanner
	logger  *zap.Logger
	tempDir string
}

// NewScanner builds the scan worker against a ClamAV daemon address
// such as tcp://localhost:3310.
func NewScanner(objects scannerObjectStore, store scannerMetadataStore, events *services.EventBus, clamURL string, logger *zap.Logger) *Scanner {
	return &Scanner{
		objects: objects,
		store:   store,
		events:  events,
		clam:    clamd.NewClamd(clamURL),
		logger:  logger,
		tempDir: os.TempDir(),
	}
}

// HandleUploaded is the NATS handler for shares.uploaded events.
func (s *Scanner) HandleUploaded(msg *nats.Msg) {
	var ev services.FileUploadedEvent
	if err := json.Unmarshal(msg.Data, &ev); err != nil {
		s.logger.Error("shares.uploaded: invalid payload", zap.Error(err))
		_ = msg.Ack() // malformed payloads never become valid, drop
		return
	}

	if err := s.Scan(context.Background(), ev.ShareID, ev.ObjectKey); err != nil {
		s.logger.Error("scan failed",
			zap.String("object_key", ev.ObjectKey), zap.Error(err))
		_ = msg.Nak()
		return
	}
	_ = msg.Ack()
}

// Scan runs one object through ClamAV and tags it with the verdict.
func (s *Scanner) Scan(ctx context.Context, shareID, objectKey string) error {
	if _, err := s.store.UpdateScanStatus(ctx, shareID, models.ScanScanning, "", time.Now()); err != nil {
		s.logger.Warn("failed to mark record scanning",
			zap.String("object_key", objectKey), zap.Error(err))
	}

	tempPath := filepath.Join(s.tempDir, "scan-"+uuid.New().String())
	if err := s.objects.FGet(ctx, objectKey, tempPath); err != nil {
		return fmt.Errorf("download for scanning: %w", err)
	}
	defer os.Remove(tempPath)

	verdict := sanitizeVerdict(s.verdict(tempPath))

	if err := s.objects.SetScanTag(ctx, objectKey, verdict); err != nil {
		return fmt.Errorf("tag object: %w", err)
	}
	if err := s.events.Publish(services.SubjectObjectTagged, services.ObjectTaggedEvent{ObjectKey: objectKey}); err != nil {
		return fmt.Errorf("publish tagged event: %w", err)
	}

	s.logger.Info("object scanned",
		zap.String("object_key", objectKey), zap.String("verdict", verdict))
	return nil
}

func (s *Scanner) verdict(path string) string {
	response, err := s.clam.ScanFile(path)
	if err != nil {
		return verdictErrorPrefix + err.Error()
	}
	for res := range response {
		switch res.Status {
		case clamd.RES_FOUND:
			return verdictInfectedPrefix + res.Description
		case clamd.RES_OK:
		default:
			return verdictErrorPrefix + res.Raw
		}
	}
	return VerdictClean
}

// Object-tag values allow only a narrow character set and at most 256
// bytes; clamd verdict text is normalised to fit so tagging never fails
// on an exotic error string.
func sanitizeVerdict(v string) string {
	const maxTagValue = 256

	var b strings.Builder
	for _, r := range v {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case strings.ContainsRune(" +-=._:/@", r):
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
		if b.Len() >= maxTagValue {
			break
		}
	}
	return b.String()
}
