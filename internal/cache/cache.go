// Package cache layers domain-specific Redis caches on top of
// pkg/database/redis.go's SetLayered/GetLayered, keeping the teacher's
// L1/L2/L3 TTL idiom but giving each layer a concrete engine use: L1 for
// in-flight position hashes (ingestion dedup), L2 for pool snapshots, L3
// for near-static token/chain metadata.
package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/riskmonitor/engine/internal/domain"
	"github.com/riskmonitor/engine/internal/errs"
	"github.com/riskmonitor/engine/pkg/database"
)

// PositionHashCache holds the last-seen content hash (domain.Position.Hash)
// per position, so the ingestion pipeline can skip writes for positions
// that have not changed since the last poll.
type PositionHashCache struct {
	redis *database.RedisClient
}

func NewPositionHashCache(r *database.RedisClient) *PositionHashCache {
	return &PositionHashCache{redis: r}
}

func positionHashKey(positionID string) string {
	return "position_hash:" + positionID
}

// Get returns the cached hash for a position, if present.
func (c *PositionHashCache) Get(ctx context.Context, positionID string) (string, bool, error) {
	v, found, err := c.redis.GetLayered(ctx, positionHashKey(positionID))
	if err != nil {
		return "", false, errs.New(errs.Internal, "cache.PositionHash.Get", err)
	}
	if !found {
		return "", false, nil
	}
	hash, _ := v.(string)
	return hash, true, nil
}

// Set records the current hash for a position.
func (c *PositionHashCache) Set(ctx context.Context, positionID, hash string) error {
	if err := c.redis.SetLayered(ctx, positionHashKey(positionID), hash, database.L1Cache); err != nil {
		return errs.New(errs.Internal, "cache.PositionHash.Set", err)
	}
	return nil
}

// PoolSnapshotCache caches the most recent observed pool state so the risk
// calculators can avoid a store round-trip on every ingestion tick.
type PoolSnapshotCache struct {
	redis *database.RedisClient
}

func NewPoolSnapshotCache(r *database.RedisClient) *PoolSnapshotCache {
	return &PoolSnapshotCache{redis: r}
}

func poolSnapshotKey(chainID uint64, poolAddress string) string {
	return fmt.Sprintf("pool_snapshot:%d:%s", chainID, poolAddress)
}

func (c *PoolSnapshotCache) Get(ctx context.Context, chainID uint64, poolAddress string) (domain.PoolSnapshot, bool, error) {
	v, found, err := c.redis.GetLayered(ctx, poolSnapshotKey(chainID, poolAddress))
	if err != nil {
		return domain.PoolSnapshot{}, false, errs.New(errs.Internal, "cache.PoolSnapshot.Get", err)
	}
	if !found {
		return domain.PoolSnapshot{}, false, nil
	}
	raw, ok := v.(string)
	if !ok {
		return domain.PoolSnapshot{}, false, nil
	}
	var s domain.PoolSnapshot
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return domain.PoolSnapshot{}, false, errs.New(errs.Decoding, "cache.PoolSnapshot.Get", err)
	}
	return s, true, nil
}

func (c *PoolSnapshotCache) Set(ctx context.Context, s domain.PoolSnapshot) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return errs.New(errs.Internal, "cache.PoolSnapshot.Set", err)
	}
	if err := c.redis.SetLayered(ctx, poolSnapshotKey(s.ChainID, s.PoolAddress), string(raw), database.L2Cache); err != nil {
		return errs.New(errs.Internal, "cache.PoolSnapshot.Set", err)
	}
	return nil
}

// TokenMetadataCache caches near-static token decimals and chain metadata,
// which changes on the order of protocol upgrades rather than block time.
type TokenMetadataCache struct {
	redis *database.RedisClient
}

func NewTokenMetadataCache(r *database.RedisClient) *TokenMetadataCache {
	return &TokenMetadataCache{redis: r}
}

func tokenKey(t domain.Token) string {
	return "token_meta:" + t.Key()
}

func (c *TokenMetadataCache) Get(ctx context.Context, token domain.Token) (domain.Token, bool, error) {
	v, found, err := c.redis.GetLayered(ctx, tokenKey(token))
	if err != nil {
		return domain.Token{}, false, errs.New(errs.Internal, "cache.TokenMetadata.Get", err)
	}
	if !found {
		return domain.Token{}, false, nil
	}
	raw, ok := v.(string)
	if !ok {
		return domain.Token{}, false, nil
	}
	var out domain.Token
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return domain.Token{}, false, errs.New(errs.Decoding, "cache.TokenMetadata.Get", err)
	}
	return out, true, nil
}

func (c *TokenMetadataCache) Set(ctx context.Context, t domain.Token) error {
	raw, err := json.Marshal(t)
	if err != nil {
		return errs.New(errs.Internal, "cache.TokenMetadata.Set", err)
	}
	if err := c.redis.SetLayered(ctx, tokenKey(t), string(raw), database.L3Cache); err != nil {
		return errs.New(errs.Internal, "cache.TokenMetadata.Set", err)
	}
	return nil
}
