// Package redishold keeps parked sessions in Redis. Each snapshot lives at
// hold:{id} as JSON and a sorted set indexes ids by creation time.
package redishold

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"

	"hhmart/billing/internal/billing"
	"hhmart/billing/internal/domain"
	"hhmart/billing/internal/store"
	"hhmart/billing/internal/xid"
)

const (
	indexKey  = "holds"
	keyPrefix = "hold:"
	maxList   = 200
)

type Store struct {
	client redis.UniversalClient
}

func New(client redis.UniversalClient) *Store {
	return &Store{client: client}
}

func (s *Store) CreateHold(ctx context.Context, hold domain.HoldBill) (*domain.HoldBill, error) {
	if len(hold.Items) == 0 {
		return nil, billing.Invalid("items", "cart is empty")
	}
	if hold.ID == "" {
		hold.ID = xid.New("hold")
	}
	if hold.CreatedAt.IsZero() {
		hold.CreatedAt = time.Now().UTC()
	}

	payload, err := json.Marshal(hold)
	if err != nil {
		return nil, err
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, keyPrefix+hold.ID, payload, 0)
		pipe.ZAdd(ctx, indexKey, redis.Z{Score: float64(hold.CreatedAt.UnixNano()), Member: hold.ID})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &hold, nil
}

// ListHolds reads the index newest first and skips ids whose snapshot is
// already gone.
func (s *Store) ListHolds(ctx context.Context, terminalID string, limit int) ([]domain.HoldBill, error) {
	if limit <= 0 || limit > maxList {
		limit = maxList
	}

	ids, err := s.client.ZRevRange(ctx, indexKey, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	holds := make([]domain.HoldBill, 0, min(len(ids), limit))
	if len(ids) == 0 {
		return holds, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = keyPrefix + id
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	for _, value := range values {
		raw, ok := value.(string)
		if !ok {
			continue
		}
		var hold domain.HoldBill
		if err := json.Unmarshal([]byte(raw), &hold); err != nil {
			return nil, err
		}
		if terminalID != "" && hold.TerminalID != terminalID {
			continue
		}
		holds = append(holds, hold)
		if len(holds) == limit {
			break
		}
	}
	return holds, nil
}

// PopHold relies on GETDEL, a single atomic command, so a snapshot is handed
// to at most one caller.
func (s *Store) PopHold(ctx context.Context, holdID string) (*domain.HoldBill, error) {
	raw, err := s.client.GetDel(ctx, keyPrefix+holdID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	_ = s.client.ZRem(ctx, indexKey, holdID).Err()

	var hold domain.HoldBill
	if err := json.Unmarshal(raw, &hold); err != nil {
		return nil, err
	}
	return &hold, nil
}

func (s *Store) DeleteHold(ctx context.Context, holdID string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, keyPrefix+holdID)
		pipe.ZRem(ctx, indexKey, holdID)
		return nil
	})
	return err
}
