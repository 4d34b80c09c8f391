package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/File-Sharing-BondBridg/Share-Service/internal/models"
)

// consumeTokenScript flips used 0 -> 1 exactly once. Concurrent
// redeemers race on this script; Redis serialises them so exactly one
// sees 1.
//
// Returns: 1 consumed, 0 already used, -1 no such token.
var consumeTokenScript = redis.NewScript(`
local used = redis.call('HGET', KEYS[1], 'used')
if used == false then
    return -1
end
if used ~= '0' then
    return 0
end
redis.call('HSET', KEYS[1], 'used', '1', 'used_at', ARGV[1])
return 1
`)

// CreateDownloadToken persists a freshly minted token with its TTL.
func (s *Store) CreateDownloadToken(ctx context.Context, tok *models.DownloadToken) error {
	key := tokenKey(tok.TokenID)
	used := "0"
	if tok.Used {
		used = "1"
	}
	fields := map[string]interface{}{
		"token_id":       tok.TokenID,
		"share_id":       tok.ShareID,
		"created_at":     tok.CreatedAt,
		"expires_at":     tok.ExpiresAt,
		"used":           used,
		"used_at":        tok.UsedAt,
		"client_address": tok.ClientAddress,
	}
	if err := s.rdb.HSet(ctx, key, fields).Err(); err != nil {
		return fmt.Errorf("create download token: %w", err)
	}
	expireAt := time.Unix(tok.ExpiresAt, 0).Add(ttlSlack)
	if err := s.rdb.ExpireAt(ctx, key, expireAt).Err(); err != nil {
		return fmt.Errorf("arm token ttl: %w", err)
	}
	return nil
}

// ConsumeDownloadToken atomically marks the token used and returns it.
// The second return value is false when the token is absent, expired or
// already consumed; the caller cannot tell which, and must not.
func (s *Store) ConsumeDownloadToken(ctx context.Context, tokenID string, now time.Time) (*models.DownloadToken, bool, error) {
	key := tokenKey(tokenID)
	res, err := consumeTokenScript.Run(ctx, s.rdb, []string{key}, now.Unix()).Int64()
	if err != nil {
		return nil, false, fmt.Errorf("consume download token: %w", err)
	}
	if res != 1 {
		return nil, false, nil
	}

	raw, err := s.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		// Token is burned either way; restrictive by construction.
		return nil, false, fmt.Errorf("read consumed token: %w", err)
	}
	tok := &models.DownloadToken{
		TokenID:       raw["token_id"],
		ShareID:       raw["share_id"],
		CreatedAt:     parseInt(raw["created_at"]),
		ExpiresAt:     parseInt(raw["expires_at"]),
		Used:          raw["used"] == "1",
		UsedAt:        parseInt(raw["used_at"]),
		ClientAddress: raw["client_address"],
	}
	if tok.ExpiresAt < now.Unix() {
		return nil, false, nil
	}
	return tok, true, nil
}
