package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// revokedFallbackTTL is used when the token key has no TTL left to copy
const revokedFallbackTTL = 7 * 24 * time.Hour

// RedisRepository keeps refresh tokens in Redis, keyed by their SHA-256 digest
type RedisRepository struct {
	client redis.Cmdable
}

var _ RefreshTokenRepository = (*RedisRepository)(nil)

func NewRedisRepository(client redis.Cmdable) *RedisRepository {
	return &RedisRepository{client: client}
}

func tokenKey(tokenHash string) string {
	return "refresh_token:" + tokenHash
}

func revokedKey(tokenHash string) string {
	return "refresh_token:revoked:" + tokenHash
}

func userTokensKey(userID uuid.UUID) string {
	return "user_tokens:" + userID.String()
}

// StoreRefreshToken stores a refresh token with a TTL matching its expiry
func (r *RedisRepository) StoreRefreshToken(ctx context.Context, userID uuid.UUID, token string, expiresAt time.Time) error {
	tokenHash := hashToken(token)

	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return errors.New("token expiration time is in the past")
	}

	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, tokenKey(tokenHash), map[string]any{
		"user_id":    userID.String(),
		"expires_at": expiresAt.Unix(),
		"created_at": time.Now().Unix(),
	})
	pipe.Expire(ctx, tokenKey(tokenHash), ttl)

	// the per-user set lets a password change revoke every session at once
	pipe.SAdd(ctx, userTokensKey(userID), tokenHash)
	pipe.Expire(ctx, userTokensKey(userID), ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store refresh token: %w", err)
	}

	return nil
}

// GetRefreshToken returns the stored record of an unrevoked, unexpired token
func (r *RedisRepository) GetRefreshToken(ctx context.Context, token string) (*RefreshToken, error) {
	tokenHash := hashToken(token)

	revoked, err := r.client.Exists(ctx, revokedKey(tokenHash)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to check revocation: %w", err)
	}
	if revoked > 0 {
		return nil, ErrRefreshTokenRevoked
	}

	data, err := r.client.HGetAll(ctx, tokenKey(tokenHash)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get refresh token: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrRefreshTokenNotFound
	}

	rt, err := parseRefreshToken(tokenHash, data)
	if err != nil {
		return nil, err
	}
	if rt.IsExpired() {
		return nil, ErrRefreshTokenExpired
	}

	return rt, nil
}

func parseRefreshToken(tokenHash string, data map[string]string) (*RefreshToken, error) {
	userID, err := uuid.Parse(data["user_id"])
	if err != nil {
		return nil, ErrInvalidToken
	}

	expiresAt, err := strconv.ParseInt(data["expires_at"], 10, 64)
	if err != nil {
		return nil, ErrInvalidToken
	}

	createdAt, err := strconv.ParseInt(data["created_at"], 10, 64)
	if err != nil {
		return nil, ErrInvalidToken
	}

	return &RefreshToken{
		UserID:    userID,
		TokenHash: tokenHash,
		ExpiresAt: time.Unix(expiresAt, 0),
		CreatedAt: time.Unix(createdAt, 0),
	}, nil
}

// RevokeRefreshToken marks a refresh token as revoked
func (r *RedisRepository) RevokeRefreshToken(ctx context.Context, token string) error {
	tokenHash := hashToken(token)

	exists, err := r.client.Exists(ctx, tokenKey(tokenHash)).Result()
	if err != nil {
		return fmt.Errorf("failed to check token existence: %w", err)
	}
	if exists == 0 {
		return ErrRefreshTokenNotFound
	}

	if err := r.client.Set(ctx, revokedKey(tokenHash), "1", r.remainingTTL(ctx, tokenHash)).Err(); err != nil {
		return fmt.Errorf("failed to revoke refresh token: %w", err)
	}

	return nil
}

// RevokeAllUserTokens revokes all refresh tokens for a user
func (r *RedisRepository) RevokeAllUserTokens(ctx context.Context, userID uuid.UUID) error {
	tokenHashes, err := r.client.SMembers(ctx, userTokensKey(userID)).Result()
	if err != nil {
		return fmt.Errorf("failed to get user tokens: %w", err)
	}
	if len(tokenHashes) == 0 {
		return nil
	}

	pipe := r.client.TxPipeline()
	for _, tokenHash := range tokenHashes {
		pipe.Set(ctx, revokedKey(tokenHash), "1", r.remainingTTL(ctx, tokenHash))
	}
	pipe.Del(ctx, userTokensKey(userID))

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to revoke all user tokens: %w", err)
	}

	return nil
}

// remainingTTL keeps revocation markers alive exactly as long as the token
func (r *RedisRepository) remainingTTL(ctx context.Context, tokenHash string) time.Duration {
	ttl, err := r.client.TTL(ctx, tokenKey(tokenHash)).Result()
	if err != nil || ttl <= 0 {
		return revokedFallbackTTL
	}
	return ttl
}
