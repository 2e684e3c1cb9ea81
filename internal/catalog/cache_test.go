package catalog

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/goddeus/caixa-premiada-sub004/internal/logger"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRepo struct {
	Repository
	box    *Box
	prizes []Prize
	calls  int
}

func (s *stubRepo) GetBoxByID(ctx context.Context, id int) (*Box, error) {
	s.calls++
	if s.box == nil {
		return nil, ErrBoxNotFound
	}
	return s.box, nil
}

func (s *stubRepo) GetPrizes(ctx context.Context, boxID int) ([]Prize, error) {
	return s.prizes, nil
}

func testBox() *Box {
	return &Box{ID: 1, Name: "Caixa Bronze", PriceCents: 400, Active: true}
}

func TestGetBoxWithPrizes_CacheMissLoadsAndStores(t *testing.T) {
	logger.Init()
	rdb, mock := redismock.NewClientMock()
	repo := &stubRepo{box: testBox(), prizes: []Prize{{ID: 1, BoxID: 1, Name: "R$2", ValueCents: 200, Weight: 0.7}}}
	svc := NewService(repo, rdb, 5*time.Minute)

	expected, err := json.Marshal(&BoxWithPrizes{Box: *testBox(), Prizes: repo.prizes})
	require.NoError(t, err)

	mock.ExpectGet("catalog:box:1").RedisNil()
	mock.ExpectSet("catalog:box:1", expected, 5*time.Minute).SetVal("OK")

	result, err := svc.GetBoxWithPrizes(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "Caixa Bronze", result.Name)
	assert.Equal(t, 1, repo.calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetBoxWithPrizes_CacheHitSkipsRepository(t *testing.T) {
	logger.Init()
	rdb, mock := redismock.NewClientMock()
	repo := &stubRepo{box: testBox()}
	svc := NewService(repo, rdb, 5*time.Minute)

	cached, err := json.Marshal(&BoxWithPrizes{Box: *testBox(), Prizes: []Prize{}})
	require.NoError(t, err)

	mock.ExpectGet("catalog:box:1").SetVal(string(cached))

	result, err := svc.GetBoxWithPrizes(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "Caixa Bronze", result.Name)
	assert.Equal(t, 0, repo.calls, "repository must not be hit on cache hit")
}

func TestGetBoxWithPrizes_NilClientGoesStraightToRepo(t *testing.T) {
	logger.Init()
	repo := &stubRepo{box: testBox(), prizes: []Prize{}}
	svc := NewService(repo, nil, time.Minute)

	result, err := svc.GetBoxWithPrizes(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, result.ID)
	assert.Equal(t, 1, repo.calls)
}

func TestInvalidate(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	svc := NewService(&stubRepo{}, rdb, time.Minute)

	mock.ExpectDel("catalog:box:7").SetVal(1)

	err := svc.Invalidate(context.Background(), 7)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
