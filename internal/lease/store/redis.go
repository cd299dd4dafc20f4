package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"turf/internal/lease/models"
	id "turf/pkg/domain"
	"turf/pkg/platform/sentinel"
	"turf/pkg/requestcontext"
)

const leaseKeyPrefix = "lease:"

// Redis implements the lease store on Redis. SET NX with a TTL is the
// store-level compare-and-set the acquire path needs: two concurrent
// acquirers of the same territory get exactly one success, and expiry is
// enforced by Redis itself so a crashed checkout never wedges a territory.
type Redis struct {
	client redis.UniversalClient
}

// NewRedis constructs a Redis-backed lease store.
func NewRedis(client redis.UniversalClient) *Redis {
	return &Redis{client: client}
}

func leaseKey(territoryID id.TerritoryID) string {
	return leaseKeyPrefix + territoryID.String()
}

func (s *Redis) Acquire(ctx context.Context, l *models.Lease) error {
	ttl := l.ExpiresAt.Sub(requestcontext.Now(ctx))
	if ttl <= 0 {
		return sentinel.ErrExpired
	}
	payload, err := json.Marshal(l)
	if err != nil {
		return fmt.Errorf("marshal lease: %w", err)
	}
	ok, err := s.client.SetNX(ctx, leaseKey(l.TerritoryID), payload, ttl).Result()
	if err != nil {
		return fmt.Errorf("acquire lease: %w", err)
	}
	if !ok {
		return sentinel.ErrConflict
	}
	return nil
}

func (s *Redis) Get(ctx context.Context, territoryID id.TerritoryID) (*models.Lease, error) {
	raw, err := s.client.Get(ctx, leaseKey(territoryID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get lease: %w", err)
	}
	var l models.Lease
	if err := json.Unmarshal(raw, &l); err != nil {
		return nil, fmt.Errorf("unmarshal lease: %w", err)
	}
	return &l, nil
}

func (s *Redis) Release(ctx context.Context, territoryID id.TerritoryID) error {
	if err := s.client.Del(ctx, leaseKey(territoryID)).Err(); err != nil {
		return fmt.Errorf("release lease: %w", err)
	}
	return nil
}

func (s *Redis) SetCheckoutRef(ctx context.Context, territoryID id.TerritoryID, ref string) error {
	l, err := s.Get(ctx, territoryID)
	if err != nil {
		return err
	}
	l.CheckoutRef = ref
	payload, err := json.Marshal(l)
	if err != nil {
		return fmt.Errorf("marshal lease: %w", err)
	}
	// KeepTTL preserves the original expiry; attaching a checkout session
	// must not extend the hold.
	err = s.client.SetArgs(ctx, leaseKey(territoryID), payload, redis.SetArgs{KeepTTL: true}).Err()
	if err != nil {
		return fmt.Errorf("set checkout ref: %w", err)
	}
	return nil
}

func (s *Redis) Held(ctx context.Context, territoryID id.TerritoryID) (bool, error) {
	n, err := s.client.Exists(ctx, leaseKey(territoryID)).Result()
	if err != nil {
		return false, fmt.Errorf("check lease: %w", err)
	}
	return n > 0, nil
}

func (s *Redis) HeldSet(ctx context.Context) (map[id.TerritoryID]bool, error) {
	out := make(map[id.TerritoryID]bool)
	iter := s.client.Scan(ctx, 0, leaseKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		raw := strings.TrimPrefix(iter.Val(), leaseKeyPrefix)
		tid, err := id.ParseTerritoryID(raw)
		if err != nil {
			continue
		}
		out[tid] = true
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan leases: %w", err)
	}
	return out, nil
}

// DeleteExpired is a no-op for Redis: key TTLs reap for us. The service's
// reap pass still resets stale catalog hints.
func (s *Redis) DeleteExpired(ctx context.Context) ([]id.TerritoryID, error) {
	return nil, nil
}
