// internal/storage/products.go
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"crm-agent/internal/models"
)

var productUpdatable = []string{"nombre", "descripcion", "precio", "stock"}

const productColumns = "id, nombre, COALESCE(descripcion, ''), precio, stock, fecha_creacion"

func scanProduct(row interface{ Scan(...interface{}) error }) (*models.Product, error) {
	var p models.Product
	err := row.Scan(&p.ID, &p.Nombre, &p.Descripcion, &p.Precio, &p.Stock, &p.FechaCreacion)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListProducts returns the whole catalog ordered by id.
func (s *Store) ListProducts(ctx context.Context) ([]*models.Product, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+productColumns+" FROM productos ORDER BY id")
	if err != nil {
		return nil, s.queryErr("producto", err)
	}
	defer rows.Close()

	products := []*models.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, s.queryErr("producto", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, s.queryErr("producto", err)
	}
	return products, nil
}

// GetProduct returns the product with the given id, or nil when absent.
func (s *Store) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	p, err := scanProduct(s.db.QueryRowContext(ctx,
		"SELECT "+productColumns+" FROM productos WHERE id = $1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, s.queryErr("producto", err)
	}
	return p, nil
}

// CreateProduct inserts a product and returns the persisted record.
func (s *Store) CreateProduct(ctx context.Context, p *models.Product) (*models.Product, error) {
	created := *p
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO productos (nombre, descripcion, precio, stock, fecha_creacion)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, fecha_creacion`,
		p.Nombre, p.Descripcion, p.Precio, p.Stock, time.Now().UTC(),
	).Scan(&created.ID, &created.FechaCreacion)
	if err != nil {
		return nil, s.queryErr("producto", err)
	}
	return &created, nil
}

// UpdateProduct applies a partial update. Returns nil when the id is unknown.
func (s *Store) UpdateProduct(ctx context.Context, id int64, data map[string]interface{}) (*models.Product, error) {
	set, args, ok := buildUpdateSet(data, productUpdatable)
	if !ok {
		return s.GetProduct(ctx, id)
	}
	args = append(args, id)

	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf("UPDATE productos SET %s WHERE id = $%d", set, len(args)), args...)
	if err != nil {
		return nil, s.queryErr("producto", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, nil
	}
	return s.GetProduct(ctx, id)
}

// AdjustStock adds delta to a product's stock. Callers validate that the
// result stays non-negative. Returns nil when the id is unknown.
func (s *Store) AdjustStock(ctx context.Context, id int64, delta int) (*models.Product, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE productos SET stock = stock + $1 WHERE id = $2", delta, id)
	if err != nil {
		return nil, s.queryErr("producto", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, nil
	}
	return s.GetProduct(ctx, id)
}

// DeleteProduct removes a product. Returns false when the id is unknown.
func (s *Store) DeleteProduct(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM productos WHERE id = $1", id)
	if err != nil {
		return false, s.queryErr("producto", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}
