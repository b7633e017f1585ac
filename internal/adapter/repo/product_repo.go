package repo

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/caabsu/outlight-img2img/internal/domain"
	"github.com/caabsu/outlight-img2img/internal/infra"
	"github.com/caabsu/outlight-img2img/internal/sqlinline"
)

// ProductRepositoryPG implements domain.ProductRepository using PostgreSQL.
type ProductRepositoryPG struct {
	db infra.SQLExecutor
}

// NewProductRepository constructs a new product repository instance.
func NewProductRepository(db infra.SQLExecutor) *ProductRepositoryPG {
	return &ProductRepositoryPG{db: db}
}

// Create inserts the product and fills in its timestamps.
func (r *ProductRepositoryPG) Create(ctx context.Context, product *domain.Product) error {
	row := r.db.QueryRow(ctx, sqlinline.QInsertProduct, product.ID, product.Name, product.ReferenceURL, product.Notes)
	return row.Scan(&product.CreatedAt, &product.UpdatedAt)
}

// GetByID fetches a product by id.
func (r *ProductRepositoryPG) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	return scanProduct(r.db.QueryRow(ctx, sqlinline.QSelectProductByID, id))
}

// List returns all products, newest first.
func (r *ProductRepositoryPG) List(ctx context.Context) ([]domain.Product, error) {
	rows, err := r.db.Query(ctx, sqlinline.QSelectProducts)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []domain.Product
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.ReferenceURL, &p.Notes, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

// Update rewrites the mutable fields and refreshes UpdatedAt.
func (r *ProductRepositoryPG) Update(ctx context.Context, product *domain.Product) error {
	row := r.db.QueryRow(ctx, sqlinline.QUpdateProduct, product.ID, product.Name, product.ReferenceURL, product.Notes)
	if err := row.Scan(&product.UpdatedAt); err != nil {
		if infra.IsNoRows(err) {
			return domain.ErrNotFound
		}
		return err
	}
	return nil
}

// Delete removes a product by id.
func (r *ProductRepositoryPG) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, sqlinline.QDeleteProduct, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanProduct(row pgx.Row) (*domain.Product, error) {
	var p domain.Product
	if err := row.Scan(&p.ID, &p.Name, &p.ReferenceURL, &p.Notes, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}
