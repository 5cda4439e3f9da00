package services

import (
	"context"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/username/ledgerly/backend/src/logger"
	"github.com/username/ledgerly/backend/src/money"
	"github.com/username/ledgerly/backend/src/storage"
)

type fxServiceImpl struct {
	store storage.Store
	cache *cache.Cache
}

// NewFxService returns an FxService backed by the fx_rates table with a
// day-keyed in-memory cache in front of it.
func NewFxService(store storage.Store) FxService {
	return &fxServiceImpl{
		store: store,
		cache: cache.New(24*time.Hour, 1*time.Hour),
	}
}

func (s *fxServiceImpl) Quotes(ctx context.Context) map[string]money.FxQuote {
	cacheKey := fmt.Sprintf("fx-quotes-%s", time.Now().UTC().Format("2006-01-02"))
	if cached, found := s.cache.Get(cacheKey); found {
		return cached.(map[string]money.FxQuote)
	}

	quotes, err := s.store.FxQuotes(ctx)
	if err != nil {
		logger.WarnFromContext(ctx, "failed to load fx quotes, conversions will degrade to synthetic", "error", err)
		return map[string]money.FxQuote{}
	}

	s.cache.Set(cacheKey, quotes, cache.DefaultExpiration)
	return quotes
}
