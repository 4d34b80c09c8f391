package models

import "time"

// ScanStatus is the malware-scan lifecycle state of an uploaded object.
type ScanStatus string

const (
	ScanPending  ScanStatus = "pending"
	ScanScanning ScanStatus = "scanning"
	ScanClean    ScanStatus = "clean"
	ScanInfected ScanStatus = "infected"
	ScanError    ScanStatus = "error"
)

// FileRecord is the metadata record for one uploaded file, stored as a
// Redis hash under file#<shareId>.
type FileRecord struct {
	ShareID          string     `redis:"share_id" json:"shareId"`
	OriginalFilename string     `redis:"original_filename" json:"fileName"`
	StorageKey       string     `redis:"storage_key" json:"-"`
	FileSize         int64      `redis:"file_size" json:"fileSize"`
	MimeType         string     `redis:"mime_type" json:"mimeType"`
	PasswordHash     string     `redis:"password_hash" json:"-"` // empty = unprotected
	UploadedAt       int64      `redis:"uploaded_at" json:"uploadedAt"`
	ExpiresAt        int64      `redis:"expires_at" json:"expiresAt"`
	DownloadCount    int64      `redis:"download_count" json:"downloadCount"`
	ScanStatus       ScanStatus `redis:"scan_status" json:"scanStatus"`
	ScanDate         int64      `redis:"scan_date" json:"scanDate,omitempty"`
	ScanResult       string     `redis:"scan_result" json:"-"`
}

// PasswordProtected reports whether a password gate applies to downloads.
func (r *FileRecord) PasswordProtected() bool {
	return r.PasswordHash != ""
}

// Expired reports whether the record's lifetime has elapsed at now.
func (r *FileRecord) Expired(now time.Time) bool {
	return r.ExpiresAt < now.Unix()
}

// RateLimitRecord tracks failed password attempts for one
// (shareId, clientAddress) pair, stored under ratelimit#<shareId>#<addr>.
type RateLimitRecord struct {
	Attempts    int64 `redis:"attempts"`
	WindowStart int64 `redis:"window_start"`
	LastAttempt int64 `redis:"last_attempt"`
	LockedUntil int64 `redis:"locked_until"` // zero = no lockout
}

// DownloadToken is a single-use grant bridging the two download phases,
// stored under token#<tokenId>.
type DownloadToken struct {
	TokenID       string `redis:"token_id"`
	ShareID       string `redis:"share_id"`
	CreatedAt     int64  `redis:"created_at"`
	ExpiresAt     int64  `redis:"expires_at"`
	Used          bool   `redis:"used"`
	UsedAt        int64  `redis:"used_at"`
	ClientAddress string `redis:"client_address"`
}
