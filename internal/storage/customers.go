// internal/storage/customers.go
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"crm-agent/internal/models"
)

var customerUpdatable = []string{"nombre", "email", "telefono", "direccion"}

const customerColumns = "id, nombre, COALESCE(email, ''), COALESCE(telefono, ''), COALESCE(direccion, ''), fecha_registro"

func scanCustomer(row interface{ Scan(...interface{}) error }) (*models.Customer, error) {
	var c models.Customer
	err := row.Scan(&c.ID, &c.Nombre, &c.Email, &c.Telefono, &c.Direccion, &c.FechaRegistro)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListCustomers returns every registered customer ordered by id.
func (s *Store) ListCustomers(ctx context.Context) ([]*models.Customer, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+customerColumns+" FROM clientes ORDER BY id")
	if err != nil {
		return nil, s.queryErr("cliente", err)
	}
	defer rows.Close()

	customers := []*models.Customer{}
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, s.queryErr("cliente", err)
		}
		customers = append(customers, c)
	}
	if err := rows.Err(); err != nil {
		return nil, s.queryErr("cliente", err)
	}
	return customers, nil
}

// GetCustomer returns the customer with the given id, or nil when absent.
func (s *Store) GetCustomer(ctx context.Context, id int64) (*models.Customer, error) {
	c, err := scanCustomer(s.db.QueryRowContext(ctx,
		"SELECT "+customerColumns+" FROM clientes WHERE id = $1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, s.queryErr("cliente", err)
	}
	return c, nil
}

// CreateCustomer inserts a customer and returns the persisted record with
// generated fields populated.
func (s *Store) CreateCustomer(ctx context.Context, c *models.Customer) (*models.Customer, error) {
	created := *c
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO clientes (nombre, email, telefono, direccion, fecha_registro)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, fecha_registro`,
		c.Nombre, c.Email, c.Telefono, c.Direccion, time.Now().UTC(),
	).Scan(&created.ID, &created.FechaRegistro)
	if err != nil {
		return nil, s.queryErr("cliente", err)
	}
	return &created, nil
}

// UpdateCustomer applies a partial update. Fields absent from data keep
// their current values. Returns nil (not an error) when the id is unknown.
func (s *Store) UpdateCustomer(ctx context.Context, id int64, data map[string]interface{}) (*models.Customer, error) {
	set, args, ok := buildUpdateSet(data, customerUpdatable)
	if !ok {
		return s.GetCustomer(ctx, id)
	}
	args = append(args, id)

	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf("UPDATE clientes SET %s WHERE id = $%d", set, len(args)), args...)
	if err != nil {
		return nil, s.queryErr("cliente", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, nil
	}
	return s.GetCustomer(ctx, id)
}

// DeleteCustomer removes a customer. Returns false when the id is unknown.
func (s *Store) DeleteCustomer(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM clientes WHERE id = $1", id)
	if err != nil {
		return false, s.queryErr("cliente", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}
