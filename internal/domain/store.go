package domain

import "context"

// MarketStore persists the market registry so identifiers keep resolving
// while the indexer is unreachable.
type MarketStore interface {
	UpsertBatch(ctx context.Context, markets []Market) error
	GetByID(ctx context.Context, id string) (Market, error)
	GetByTicker(ctx context.Context, ticker string) (Market, error)
	List(ctx context.Context) ([]Market, error)
	Count(ctx context.Context) (int64, error)
}
