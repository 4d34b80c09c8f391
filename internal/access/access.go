// Package access implements the access-control core: every upload,
// download and delete decision flows through here. Downloads are
// two-phase: a validated request yields a short-lived single-use token,
// and only redeeming that token yields a transfer URL, so the first
// response never carries a credential worth stealing.
package access

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/File-Sharing-BondBridg/Share-Service/internal/apperrors"
	"github.com/File-Sharing-BondBridg/Share-Service/internal/ident"
	"github.com/File-Sharing-BondBridg/Share-Service/internal/models"
	"github.com/File-Sharing-BondBridg/Share-Service/internal/password"
	"github.com/File-Sharing-BondBridg/Share-Service/internal/ratelimit"
	"github.com/File-Sharing-BondBridg/Share-Service/internal/services"
)

type metadataStore interface {
	SaveFileRecord(ctx context.Context, rec *models.FileRecord) error
	GetFileRecord(ctx context.Context, shareID string) (*models.FileRecord, bool, error)
	IncrementDownloadCount(ctx context.Context, shareID string) (int64, error)
	DeleteFileRecord(ctx context.Context, shareID string) (bool, error)
	CreateDownloadToken(ctx context.Context, tok *models.DownloadToken) error
	ConsumeDownloadToken(ctx context.Context, tokenID string, now time.Time) (*models.DownloadToken, bool, error)
}

type objectStore interface {
	PresignPut(ctx context.Context, key string, ttl time.Duration) (string, error)
	PresignGet(ctx context.Context, key, filename string, ttl time.Duration) (string, error)
	Exists(ctx context.Context, key string) (bool, int64, error)
	DeleteByPrefix(ctx context.Context, prefix string) error
}

type limiter interface {
	Check(ctx context.Context, shareID, clientAddr string) ratelimit.Result
	Record(ctx context.Context, shareID, clientAddr string, success bool) error
	CheckGeneric(ctx context.Context, scope, clientAddr string, window time.Duration, maxRequests int64) bool
}

type eventPublisher interface {
	Publish(subject string, payload interface{}) error
}

// Config holds the tunables of the core.
type Config struct {
	// BaseURL is the public origin share links are built from.
	BaseURL string
	// MaxFileSize caps declared upload sizes.
	MaxFileSize int64
	// FileTTL is the share lifetime (48h).
	FileTTL time.Duration
	// TokenTTL is the download-token lifetime.
	TokenTTL time.Duration
	// UploadURLTTL bounds the presigned PUT.
	UploadURLTTL time.Duration
	// DownloadURLTTL bounds the presigned GET.
	DownloadURLTTL time.Duration

	// ThrottleWindow / ThrottleMax bound anonymous per-client traffic on
	// the metadata, token-issuance and upload paths.
	ThrottleWindow time.Duration
	ThrottleMax    int64
}

// DefaultConfig returns the production tunables.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:        baseURL,
		MaxFileSize:    200 << 20,
		FileTTL:        48 * time.Hour,
		TokenTTL:       5 * time.Minute,
		UploadURLTTL:   time.Hour,
		DownloadURLTTL: 5 * time.Minute,
		ThrottleWindow: time.Minute,
		ThrottleMax:    30,
	}
}

// Service is the access-control core.
type Service struct {
	cfg     Config
	store   metadataStore
	objects objectStore
	limiter limiter
	events  eventPublisher
	logger  *zap.Logger
	now     func() time.Time
}

// NewService wires the core to its collaborators.
func NewService(cfg Config, store metadataStore, objects objectStore, lim limiter, events eventPublisher, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		cfg:     cfg,
		store:   store,
		objects: objects,
		limiter: lim,
		events:  events,
		logger:  logger,
		now:     time.Now,
	}
}

// CreateUpload registers a new share and returns a presigned upload URL.
func (s *Service) CreateUpload(ctx context.Context, req *models.UploadRequest, clientAddr string) (*models.UploadResponse, error) {
	if !s.limiter.CheckGeneric(ctx, "upload", clientAddr, s.cfg.ThrottleWindow, s.cfg.ThrottleMax) {
		return nil, apperrors.ErrRateLimited
	}

	if req.FileSize <= 0 || req.FileSize > s.cfg.MaxFileSize {
		return nil, apperrors.WithMessage(apperrors.ErrValidation, "file size out of range")
	}

	var hash string
	if req.Password != "" {
		if _, err := password.CheckStrength(req.Password); err != nil {
			return nil, apperrors.WithMessage(apperrors.ErrValidation, err.Error())
		}
		var err error
		hash, err = password.Hash(req.Password)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrUploadFailed, err)
		}
	}

	shareID, err := ident.NewShareID()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrUploadFailed, err)
	}

	now := s.now()
	rec := &models.FileRecord{
		ShareID:          shareID,
		OriginalFilename: req.FileName,
		StorageKey:       StorageKey(now, shareID, req.FileName),
		FileSize:         req.FileSize,
		MimeType:         req.ContentType,
		PasswordHash:     hash,
		UploadedAt:       now.Unix(),
		ExpiresAt:        now.Add(s.cfg.FileTTL).Unix(),
		ScanStatus:       models.ScanPending,
	}
	if err := s.store.SaveFileRecord(ctx, rec); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrUploadFailed, err)
	}

	uploadURL, err := s.objects.PresignPut(ctx, rec.StorageKey, s.cfg.UploadURLTTL)
	if err != nil {
		// Best-effort rollback so an unusable record does not linger.
		if _, delErr := s.store.DeleteFileRecord(ctx, shareID); delErr != nil {
			s.logger.Warn("failed to roll back record after presign failure",
				zap.String("share_id", truncateID(shareID)), zap.Error(delErr))
		}
		return nil, apperrors.Wrap(apperrors.ErrUploadFailed, err)
	}

	s.logger.Info("share created",
		zap.String("share_id", truncateID(shareID)),
		zap.Int64("size", req.FileSize),
		zap.Bool("password_protected", hash != ""))

	return &models.UploadResponse{
		ShareID:   shareID,
		ShareURL:  s.cfg.BaseURL + "/s/" + shareID,
		UploadURL: uploadURL,
		ExpiresAt: rec.ExpiresAt,
		FileName:  rec.OriginalFilename,
		FileSize:  rec.FileSize,
	}, nil
}

// CompleteUpload confirms the object landed in storage and kicks off
// the malware scan.
func (s *Service) CompleteUpload(ctx context.Context, shareID, clientAddr string) error {
	if !ident.ValidShareID(shareID) {
		return apperrors.ErrValidation
	}
	if !s.limiter.CheckGeneric(ctx, "complete", clientAddr, s.cfg.ThrottleWindow, s.cfg.ThrottleMax) {
		return apperrors.ErrRateLimited
	}

	rec, err := s.lookup(ctx, shareID)
	if err != nil {
		return err
	}

	exists, size, err := s.objects.Exists(ctx, rec.StorageKey)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrStorage, err)
	}
	if !exists {
		return apperrors.WithMessage(apperrors.ErrUploadFailed, "uploaded object not found in storage")
	}

	if err := s.events.Publish(services.SubjectFileUploaded, services.FileUploadedEvent{
		ShareID:   rec.ShareID,
		ObjectKey: rec.StorageKey,
		FileSize:  size,
	}); err != nil {
		return apperrors.Wrap(apperrors.ErrUploadFailed, err)
	}
	return nil
}

// FileInfo returns the public metadata view of a share.
func (s *Service) FileInfo(ctx context.Context, shareID, clientAddr string) (*models.FileInfoResponse, error) {
	if !ident.ValidShareID(shareID) {
		return nil, apperrors.ErrValidation
	}
	if !s.limiter.CheckGeneric(ctx, "info", clientAddr, s.cfg.ThrottleWindow, s.cfg.ThrottleMax) {
		return nil, apperrors.ErrRateLimited
	}

	rec, err := s.lookup(ctx, shareID)
	if err != nil {
		return nil, err
	}
	if rec.ScanStatus == models.ScanInfected {
		return nil, apperrors.ErrAccessDenied
	}

	return &models.FileInfoResponse{
		FileName:            rec.OriginalFilename,
		FileSize:            rec.FileSize,
		UploadedAt:          rec.UploadedAt,
		ExpiresAt:           rec.ExpiresAt,
		IsPasswordProtected: rec.PasswordProtected(),
	}, nil
}

// RequestDownload is download step 1: validate, gate, and mint a
// single-use token. No transfer URL is returned here.
func (s *Service) RequestDownload(ctx context.Context, shareID, pw, clientAddr string) (*models.DownloadTokenResponse, error) {
	if !ident.ValidShareID(shareID) {
		return nil, apperrors.ErrValidation
	}
	if !s.limiter.CheckGeneric(ctx, "download", clientAddr, s.cfg.ThrottleWindow, s.cfg.ThrottleMax) {
		return nil, apperrors.ErrRateLimited
	}

	rec, err := s.lookup(ctx, shareID)
	if err != nil {
		return nil, err
	}

	switch rec.ScanStatus {
	case models.ScanInfected:
		return nil, apperrors.ErrAccessDenied
	case models.ScanClean:
	default:
		// pending, scanning, or a scan error: the verdict is unresolved
		// and an unscanned file is never released.
		return nil, apperrors.ErrScanPending
	}

	if err := s.passwordGate(ctx, rec, pw, clientAddr); err != nil {
		return nil, err
	}

	tokenID, err := ident.NewDownloadToken()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorage, err)
	}
	now := s.now()
	tok := &models.DownloadToken{
		TokenID:       tokenID,
		ShareID:       rec.ShareID,
		CreatedAt:     now.Unix(),
		ExpiresAt:     now.Add(s.cfg.TokenTTL).Unix(),
		ClientAddress: clientAddr,
	}
	if err := s.store.CreateDownloadToken(ctx, tok); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorage, err)
	}

	return &models.DownloadTokenResponse{
		DownloadToken: tokenID,
		FileName:      rec.OriginalFilename,
		FileSize:      rec.FileSize,
		MimeType:      rec.MimeType,
	}, nil
}

// RedeemToken is download step 2: consume the token exactly once and
// issue the short-lived transfer URL.
func (s *Service) RedeemToken(ctx context.Context, tokenID, clientAddr string) (*models.DownloadURLResponse, error) {
	if !ident.ValidDownloadToken(tokenID) {
		return nil, apperrors.ErrValidation
	}

	tok, ok, err := s.store.ConsumeDownloadToken(ctx, tokenID, s.now())
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorage, err)
	}
	// Absent, expired, already used and wrong client are one and the
	// same to the caller.
	if !ok || tok.ClientAddress != clientAddr {
		return nil, apperrors.WithMessage(apperrors.ErrValidation, "download token invalid, expired or already used")
	}

	// The record may have expired or been deleted between the phases.
	rec, err := s.lookup(ctx, tok.ShareID)
	if err != nil {
		return nil, err
	}
	switch rec.ScanStatus {
	case models.ScanInfected:
		return nil, apperrors.ErrAccessDenied
	case models.ScanClean:
	default:
		return nil, apperrors.ErrScanPending
	}

	// A dangling record (object gone, metadata not) reads as not found.
	exists, _, err := s.objects.Exists(ctx, rec.StorageKey)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorage, err)
	}
	if !exists {
		if _, delErr := s.store.DeleteFileRecord(ctx, rec.ShareID); delErr != nil {
			s.logger.Warn("failed to clear dangling record",
				zap.String("share_id", truncateID(rec.ShareID)), zap.Error(delErr))
		}
		return nil, apperrors.ErrFileNotFound
	}

	downloadURL, err := s.objects.PresignGet(ctx, rec.StorageKey, rec.OriginalFilename, s.cfg.DownloadURLTTL)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorage, err)
	}

	if _, err := s.store.IncrementDownloadCount(ctx, rec.ShareID); err != nil {
		s.logger.Warn("failed to increment download count",
			zap.String("share_id", truncateID(rec.ShareID)), zap.Error(err))
	}

	s.logger.Info("download granted", zap.String("share_id", truncateID(rec.ShareID)))

	return &models.DownloadURLResponse{
		DownloadURL: downloadURL,
		FileName:    rec.OriginalFilename,
		FileSize:    rec.FileSize,
		MimeType:    rec.MimeType,
	}, nil
}

// Delete removes the share: same password gate as downloads, then the
// object, then the record. The two deletions are not atomic; a crash in
// between leaves a dangling record the read path tolerates.
func (s *Service) Delete(ctx context.Context, shareID, pw, clientAddr string) (*models.DeleteResponse, error) {
	if !ident.ValidShareID(shareID) {
		return nil, apperrors.ErrValidation
	}
	if !s.limiter.CheckGeneric(ctx, "delete", clientAddr, s.cfg.ThrottleWindow, s.cfg.ThrottleMax) {
		return nil, apperrors.ErrRateLimited
	}

	rec, err := s.lookup(ctx, shareID)
	if err != nil {
		return nil, err
	}
	if err := s.passwordGate(ctx, rec, pw, clientAddr); err != nil {
		return nil, err
	}

	if err := s.objects.DeleteByPrefix(ctx, SharePrefix(rec.StorageKey)); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorage, err)
	}

	deleted, err := s.store.DeleteFileRecord(ctx, shareID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorage, err)
	}
	if !deleted {
		// A concurrent delete won the record removal.
		return nil, apperrors.ErrFileNotFound
	}

	s.logger.Info("share deleted", zap.String("share_id", truncateID(shareID)))
	return &models.DeleteResponse{Success: true}, nil
}

// lookup fetches a record, folding absence and expiry into one
// indistinguishable FILE_NOT_FOUND.
func (s *Service) lookup(ctx context.Context, shareID string) (*models.FileRecord, error) {
	rec, found, err := s.store.GetFileRecord(ctx, shareID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorage, err)
	}
	if !found || rec.Expired(s.now()) {
		return nil, apperrors.ErrFileNotFound
	}
	return rec, nil
}

// passwordGate applies the credential check plus the per-(share,client)
// attempt limiter. No-op for unprotected shares.
func (s *Service) passwordGate(ctx context.Context, rec *models.FileRecord, pw, clientAddr string) error {
	if !rec.PasswordProtected() {
		return nil
	}
	if pw == "" {
		return apperrors.WithMessage(apperrors.ErrInvalidPassword, "password required")
	}

	res := s.limiter.Check(ctx, rec.ShareID, clientAddr)
	if !res.Allowed {
		return apperrors.ErrRateLimited
	}

	ok := password.Verify(pw, rec.PasswordHash)
	if err := s.limiter.Record(ctx, rec.ShareID, clientAddr, ok); err != nil {
		s.logger.Warn("failed to record password attempt",
			zap.String("share_id", truncateID(rec.ShareID)), zap.Error(err))
	}
	if !ok {
		return apperrors.ErrInvalidPassword
	}
	return nil
}

func truncateID(s string) string {
	if len(s) > 8 {
		return s[:8]
	}
	return s
}
