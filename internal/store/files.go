package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/File-Sharing-BondBridg/Share-Service/internal/models"
)

// updateScanStatusScript sets scan fields only while the record still
// exists, so a racing TTL expiry cannot resurrect a partial hash.
var updateScanStatusScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
    return 0
end
redis.call('HSET', KEYS[1], 'scan_status', ARGV[1], 'scan_date', ARGV[2], 'scan_result', ARGV[3])
return 1
`)

// SaveFileRecord writes the full record hash and arms its TTL.
func (s *Store) SaveFileRecord(ctx context.Context, rec *models.FileRecord) error {
	key := fileKey(rec.ShareID)
	fields := map[string]interface{}{
		"share_id":          rec.ShareID,
		"original_filename": rec.OriginalFilename,
		"storage_key":       rec.StorageKey,
		"file_size":         rec.FileSize,
		"mime_type":         rec.MimeType,
		"password_hash":     rec.PasswordHash,
		"uploaded_at":       rec.UploadedAt,
		"expires_at":        rec.ExpiresAt,
		"download_count":    rec.DownloadCount,
		"scan_status":       string(rec.ScanStatus),
		"scan_date":         rec.ScanDate,
		"scan_result":       rec.ScanResult,
	}
	if err := s.rdb.HSet(ctx, key, fields).Err(); err != nil {
		return fmt.Errorf("save file record: %w", err)
	}
	expireAt := time.Unix(rec.ExpiresAt, 0).Add(ttlSlack)
	if err := s.rdb.ExpireAt(ctx, key, expireAt).Err(); err != nil {
		return fmt.Errorf("arm file record ttl: %w", err)
	}
	return nil
}

// GetFileRecord fetches a record by share ID. The second return value is
// false when no record exists.
func (s *Store) GetFileRecord(ctx context.Context, shareID string) (*models.FileRecord, bool, error) {
	raw, err := s.rdb.HGetAll(ctx, fileKey(shareID)).Result()
	if err != nil {
		return nil, false, fmt.Errorf("get file record: %w", err)
	}
	if len(raw) == 0 {
		return nil, false, nil
	}
	return fileRecordFromHash(raw), true, nil
}

// IncrementDownloadCount atomically bumps the counter and returns the
// new value.
func (s *Store) IncrementDownloadCount(ctx context.Context, shareID string) (int64, error) {
	n, err := s.rdb.HIncrBy(ctx, fileKey(shareID), "download_count", 1).Result()
	if err != nil {
		return 0, fmt.Errorf("increment download count: %w", err)
	}
	return n, nil
}

// UpdateScanStatus transitions the scan fields of an existing record.
// Returns false when the record has already expired.
func (s *Store) UpdateScanStatus(ctx context.Context, shareID string, status models.ScanStatus, scanResult string, scanDate time.Time) (bool, error) {
	res, err := updateScanStatusScript.Run(ctx, s.rdb, []string{fileKey(shareID)},
		string(status), scanDate.Unix(), scanResult).Int64()
	if err != nil {
		return false, fmt.Errorf("update scan status: %w", err)
	}
	return res == 1, nil
}

// DeleteFileRecord removes the record. Returns true for the caller that
// actually deleted it; a concurrent second delete sees false.
func (s *Store) DeleteFileRecord(ctx context.Context, shareID string) (bool, error) {
	n, err := s.rdb.Del(ctx, fileKey(shareID)).Result()
	if err != nil {
		return false, fmt.Errorf("delete file record: %w", err)
	}
	return n == 1, nil
}

func fileRecordFromHash(raw map[string]string) *models.FileRecord {
	return &models.FileRecord{
		ShareID:          raw["share_id"],
		OriginalFilename: raw["original_filename"],
		StorageKey:       raw["storage_key"],
		FileSize:         parseInt(raw["file_size"]),
		MimeType:         raw["mime_type"],
		PasswordHash:     raw["password_hash"],
		UploadedAt:       parseInt(raw["uploaded_at"]),
		ExpiresAt:        parseInt(raw["expires_at"]),
		DownloadCount:    parseInt(raw["download_count"]),
		ScanStatus:       models.ScanStatus(raw["scan_status"]),
		ScanDate:         parseInt(raw["scan_date"]),
		ScanResult:       raw["scan_result"],
	}
}

func parseInt(s string) int64 {
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}
