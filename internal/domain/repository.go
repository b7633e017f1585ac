package domain

import "context"

// ProductRepository defines persistence for products.
type ProductRepository interface {
	Create(ctx context.Context, product *Product) error
	GetByID(ctx context.Context, id string) (*Product, error)
	List(ctx context.Context) ([]Product, error)
	Update(ctx context.Context, product *Product) error
	Delete(ctx context.Context, id string) error
}

// PromptSetRepository defines persistence for saved prompt lists.
type PromptSetRepository interface {
	Create(ctx context.Context, set *PromptSet) error
	GetByID(ctx context.Context, id string) (*PromptSet, error)
	ListByProduct(ctx context.Context, productID string) ([]PromptSet, error)
	Delete(ctx context.Context, id string) error
}

// StatsRepository updates and reads daily usage counters.
type StatsRepository interface {
	IncrementCounters(ctx context.Context, day string, counters map[string]int) error
	Summary(ctx context.Context, days int) (map[string]int, error)
}
