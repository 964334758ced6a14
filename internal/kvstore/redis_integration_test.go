//go:build integration

package kvstore_test

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"

	"breachscan/internal/kvstore"
	"breachscan/pkg/sentinel"
	"breachscan/pkg/testutil/containers"
)

type RedisStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *kvstore.Redis
}

func TestRedisStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupSuite() {
	s.redis = containers.NewRedisContainer(s.T())
	s.store = kvstore.NewRedis(s.redis.Client, nil)
}

func (s *RedisStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisStoreSuite) TestGetSetRoundtrip() {
	ctx := context.Background()

	_, err := s.store.Get(ctx, "missing")
	s.ErrorIs(err, sentinel.ErrNotFound)

	s.Require().NoError(s.store.Set(ctx, "k", []byte(`{"a":1}`)))
	got, err := s.store.Get(ctx, "k")
	s.Require().NoError(err)
	s.Equal([]byte(`{"a":1}`), got)
}

func (s *RedisStoreSuite) TestIsAvailable() {
	s.True(s.store.IsAvailable(context.Background()))
}

// TestSwapConcurrentAppends verifies the WATCH/MULTI path keeps every
// concurrent append despite optimistic-lock conflicts.
func (s *RedisStoreSuite) TestSwapConcurrentAppends() {
	ctx := context.Background()

	const writers = 20
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			err := s.store.Swap(ctx, "list", func(old []byte) ([]byte, error) {
				var items []string
				if len(old) > 0 {
					if err := json.Unmarshal(old, &items); err != nil {
						return nil, err
					}
				}
				return json.Marshal(append(items, fmt.Sprintf("item-%d", n)))
			})
			s.NoError(err)
		}(i)
	}
	wg.Wait()

	raw, err := s.store.Get(ctx, "list")
	s.Require().NoError(err)
	var items []string
	s.Require().NoError(json.Unmarshal(raw, &items))
	s.Len(items, writers)
}
