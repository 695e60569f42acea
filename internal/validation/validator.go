package validation

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// Validator checks storefront keys against Postgres, with a short-lived
// Redis cache, and enforces a per-storefront request rate. Deployments tied
// to a single store run without it.
type Validator struct {
	db                *pgxpool.Pool
	redis             *redis.Client
	requestsPerSecond int
}

func NewValidator(ctx context.Context, dsn string, rdb *redis.Client, requestsPerSecond int) (*Validator, error) {
	db, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}

	return &Validator{
		db:                db,
		redis:             rdb,
		requestsPerSecond: requestsPerSecond,
	}, nil
}

// ValidateKey resolves a storefront key to its store id.
func (v *Validator) ValidateKey(ctx context.Context, key string) (string, error) {
	if len(key) < 12 {
		return "", errors.New("invalid storefront key format")
	}

	cacheKey := "melingo:key:" + key[:12]
	storeID, err := v.redis.Get(ctx, cacheKey).Result()
	if err == nil {
		return storeID, nil
	}

	hash := sha256.Sum256([]byte(key))
	keyHash := hex.EncodeToString(hash[:])

	var id string
	err = v.db.QueryRow(ctx, `
		SELECT store_id::text FROM storefront_keys
		WHERE key_hash = $1 AND is_active = true
		AND (expires_at IS NULL OR expires_at > NOW())
	`, keyHash).Scan(&id)
	if err != nil {
		return "", errors.New("invalid storefront key")
	}

	v.redis.Set(ctx, cacheKey, id, 5*time.Minute)

	return id, nil
}

// CheckRateLimit reports whether the store is still under its per-second
// request budget. Errors allow the request through.
func (v *Validator) CheckRateLimit(ctx context.Context, storeID string) bool {
	key := "melingo:ratelimit:" + storeID

	count, err := v.redis.Incr(ctx, key).Result()
	if err != nil {
		return true
	}
	if count == 1 {
		v.redis.Expire(ctx, key, time.Second)
	}
	return count <= int64(v.requestsPerSecond)
}

func (v *Validator) Close() {
	if v.db != nil {
		v.db.Close()
	}
}
