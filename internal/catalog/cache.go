package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/goddeus/caixa-premiada-sub004/internal/logger"
	"github.com/goddeus/caixa-premiada-sub004/internal/metrics"

	"github.com/redis/go-redis/v9"
)

// Service layers a redis cache over the catalog repository. The
// catalog is read-only during a purchase, so cached pools only go
// stale through admin edits, which invalidate explicitly.
type Service struct {
	repo Repository
	rdb  *redis.Client
	ttl  time.Duration
}

func NewService(repo Repository, rdb *redis.Client, ttl time.Duration) *Service {
	return &Service{repo: repo, rdb: rdb, ttl: ttl}
}

func boxKey(boxID int) string {
	return fmt.Sprintf("catalog:box:%d", boxID)
}

// GetBoxWithPrizes returns the box and its full display pool,
// cache-aside. Cache failures degrade to a database read, never to an
// error.
func (s *Service) GetBoxWithPrizes(ctx context.Context, boxID int) (*BoxWithPrizes, error) {
	if s.rdb != nil {
		data, err := s.rdb.Get(ctx, boxKey(boxID)).Bytes()
		if err == nil {
			var cached BoxWithPrizes
			if err := json.Unmarshal(data, &cached); err == nil {
				metrics.RecordCatalogCache("hit")
				return &cached, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			logger.Errorf("catalog cache read failed for box %d: %v", boxID, err)
		}
		metrics.RecordCatalogCache("miss")
	}

	box, err := s.repo.GetBoxByID(ctx, boxID)
	if err != nil {
		return nil, err
	}

	prizes, err := s.repo.GetPrizes(ctx, boxID)
	if err != nil {
		return nil, err
	}

	result := &BoxWithPrizes{Box: *box, Prizes: prizes}

	if s.rdb != nil {
		if data, err := json.Marshal(result); err == nil {
			if err := s.rdb.Set(ctx, boxKey(boxID), data, s.ttl).Err(); err != nil {
				logger.Errorf("catalog cache write failed for box %d: %v", boxID, err)
			}
		}
	}

	return result, nil
}

// Invalidate drops the cached pool for a box. Called after every admin
// mutation of the box or its prizes.
func (s *Service) Invalidate(ctx context.Context, boxID int) error {
	if s.rdb == nil {
		return nil
	}
	return s.rdb.Del(ctx, boxKey(boxID)).Err()
}
