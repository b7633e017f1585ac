package repo

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/caabsu/outlight-img2img/internal/domain"
	"github.com/caabsu/outlight-img2img/internal/infra"
	"github.com/caabsu/outlight-img2img/internal/sqlinline"
)

// PromptSetRepositoryPG implements domain.PromptSetRepository using PostgreSQL.
type PromptSetRepositoryPG struct {
	db infra.SQLExecutor
}

// NewPromptSetRepository constructs a new prompt set repository instance.
func NewPromptSetRepository(db infra.SQLExecutor) *PromptSetRepositoryPG {
	return &PromptSetRepositoryPG{db: db}
}

// Create inserts the prompt set and fills in its creation time.
func (r *PromptSetRepositoryPG) Create(ctx context.Context, set *domain.PromptSet) error {
	row := r.db.QueryRow(ctx, sqlinline.QInsertPromptSet, set.ID, set.ProductID, set.Name, set.Prompts)
	return row.Scan(&set.CreatedAt)
}

// GetByID fetches a prompt set by id.
func (r *PromptSetRepositoryPG) GetByID(ctx context.Context, id string) (*domain.PromptSet, error) {
	return scanPromptSet(r.db.QueryRow(ctx, sqlinline.QSelectPromptSetByID, id))
}

// ListByProduct returns the product's prompt sets, newest first.
func (r *PromptSetRepositoryPG) ListByProduct(ctx context.Context, productID string) ([]domain.PromptSet, error) {
	rows, err := r.db.Query(ctx, sqlinline.QSelectPromptSetsByProduct, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sets []domain.PromptSet
	for rows.Next() {
		var set domain.PromptSet
		if err := rows.Scan(&set.ID, &set.ProductID, &set.Name, &set.Prompts, &set.CreatedAt); err != nil {
			return nil, err
		}
		sets = append(sets, set)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sets, nil
}

// Delete removes a prompt set by id.
func (r *PromptSetRepositoryPG) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, sqlinline.QDeletePromptSet, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanPromptSet(row pgx.Row) (*domain.PromptSet, error) {
	var set domain.PromptSet
	if err := row.Scan(&set.ID, &set.ProductID, &set.Name, &set.Prompts, &set.CreatedAt); err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &set, nil
}
