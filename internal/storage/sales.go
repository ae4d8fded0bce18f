// internal/storage/sales.go
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	apperrors "crm-agent/internal/common/errors"
	"crm-agent/internal/models"
)

var saleUpdatable = []string{"cliente_id", "total", "estado"}

const saleColumns = "id, cliente_id, fecha_venta, total, COALESCE(estado, 'pendiente')"

// SaleLine is one product/quantity pair requested in a sale.
type SaleLine struct {
	ProductoID int64
	Cantidad   int
}

func scanSale(row interface{ Scan(...interface{}) error }) (*models.Sale, error) {
	var v models.Sale
	err := row.Scan(&v.ID, &v.ClienteID, &v.FechaVenta, &v.Total, &v.Estado)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// ListSales returns every recorded sale ordered by id.
func (s *Store) ListSales(ctx context.Context) ([]*models.Sale, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+saleColumns+" FROM ventas ORDER BY id")
	if err != nil {
		return nil, s.queryErr("venta", err)
	}
	defer rows.Close()

	sales := []*models.Sale{}
	for rows.Next() {
		v, err := scanSale(rows)
		if err != nil {
			return nil, s.queryErr("venta", err)
		}
		sales = append(sales, v)
	}
	if err := rows.Err(); err != nil {
		return nil, s.queryErr("venta", err)
	}
	return sales, nil
}

// GetSale returns the sale with the given id, or nil when absent.
func (s *Store) GetSale(ctx context.Context, id int64) (*models.Sale, error) {
	v, err := scanSale(s.db.QueryRowContext(ctx,
		"SELECT "+saleColumns+" FROM ventas WHERE id = $1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, s.queryErr("venta", err)
	}
	return v, nil
}

// CreateSale records a sale atomically: it locks each product row, verifies
// stock, inserts the sale with its computed total, inserts line items with
// the price captured at sale time, and decrements stock. Any shortfall
// rolls the whole transaction back with a validation error.
func (s *Store) CreateSale(ctx context.Context, clienteID int64, lines []SaleLine) (*models.Sale, []*models.SaleItem, error) {
	if len(lines) == 0 {
		return nil, nil, apperrors.NewValidationError("la venta requiere al menos un producto")
	}

	tx, err := s.beginTx(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback()

	var exists bool
	err = tx.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM clientes WHERE id = $1)", clienteID).Scan(&exists)
	if err != nil {
		return nil, nil, s.queryErr("venta", err)
	}
	if !exists {
		return nil, nil, apperrors.NewValidationError(
			fmt.Sprintf("cliente con id %d no existe", clienteID))
	}

	type pricedLine struct {
		SaleLine
		precio float64
	}
	priced := make([]pricedLine, 0, len(lines))
	total := 0.0
	for _, line := range lines {
		if line.Cantidad <= 0 {
			return nil, nil, apperrors.NewValidationError(
				fmt.Sprintf("cantidad inválida para producto %d", line.ProductoID))
		}

		var precio float64
		var stock int
		err := tx.QueryRowContext(ctx,
			"SELECT precio, stock FROM productos WHERE id = $1 FOR UPDATE",
			line.ProductoID).Scan(&precio, &stock)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, apperrors.NewValidationError(
				fmt.Sprintf("producto con id %d no existe", line.ProductoID))
		}
		if err != nil {
			return nil, nil, s.queryErr("venta", err)
		}
		if stock < line.Cantidad {
			return nil, nil, apperrors.NewValidationError(
				fmt.Sprintf("stock insuficiente para producto %d: disponible %d, solicitado %d",
					line.ProductoID, stock, line.Cantidad))
		}

		priced = append(priced, pricedLine{SaleLine: line, precio: precio})
		total += precio * float64(line.Cantidad)
	}

	sale := &models.Sale{ClienteID: clienteID, Estado: "pendiente", Total: total}
	err = tx.QueryRowContext(ctx, `
		INSERT INTO ventas (cliente_id, fecha_venta, total, estado)
		VALUES ($1, $2, $3, $4)
		RETURNING id, fecha_venta`,
		clienteID, time.Now().UTC(), total, "pendiente",
	).Scan(&sale.ID, &sale.FechaVenta)
	if err != nil {
		return nil, nil, s.queryErr("venta", err)
	}

	items := make([]*models.SaleItem, 0, len(priced))
	for _, line := range priced {
		item := &models.SaleItem{
			VentaID:        sale.ID,
			ProductoID:     line.ProductoID,
			Cantidad:       line.Cantidad,
			PrecioUnitario: line.precio,
			Subtotal:       line.precio * float64(line.Cantidad),
		}
		err := tx.QueryRowContext(ctx, `
			INSERT INTO detalles_venta (venta_id, producto_id, cantidad, precio_unitario, subtotal)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id`,
			item.VentaID, item.ProductoID, item.Cantidad, item.PrecioUnitario, item.Subtotal,
		).Scan(&item.ID)
		if err != nil {
			return nil, nil, s.queryErr("detalle_venta", err)
		}

		_, err = tx.ExecContext(ctx,
			"UPDATE productos SET stock = stock - $1 WHERE id = $2",
			line.Cantidad, line.ProductoID)
		if err != nil {
			return nil, nil, s.queryErr("producto", err)
		}
		items = append(items, item)
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, s.queryErr("venta", err)
	}
	return sale, items, nil
}

// UpdateSale applies a partial update. Returns nil when the id is unknown.
func (s *Store) UpdateSale(ctx context.Context, id int64, data map[string]interface{}) (*models.Sale, error) {
	set, args, ok := buildUpdateSet(data, saleUpdatable)
	if !ok {
		return s.GetSale(ctx, id)
	}
	args = append(args, id)

	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf("UPDATE ventas SET %s WHERE id = $%d", set, len(args)), args...)
	if err != nil {
		return nil, s.queryErr("venta", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, nil
	}
	return s.GetSale(ctx, id)
}

// DeleteSale removes a sale. Returns false when the id is unknown.
func (s *Store) DeleteSale(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM ventas WHERE id = $1", id)
	if err != nil {
		return false, s.queryErr("venta", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// ListSaleItems returns the line items of one sale.
func (s *Store) ListSaleItems(ctx context.Context, ventaID int64) ([]*models.SaleItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, venta_id, producto_id, cantidad, precio_unitario, subtotal
		FROM detalles_venta WHERE venta_id = $1 ORDER BY id`, ventaID)
	if err != nil {
		return nil, s.queryErr("detalle_venta", err)
	}
	defer rows.Close()

	items := []*models.SaleItem{}
	for rows.Next() {
		var it models.SaleItem
		if err := rows.Scan(&it.ID, &it.VentaID, &it.ProductoID, &it.Cantidad, &it.PrecioUnitario, &it.Subtotal); err != nil {
			return nil, s.queryErr("detalle_venta", err)
		}
		items = append(items, &it)
	}
	if err := rows.Err(); err != nil {
		return nil, s.queryErr("detalle_venta", err)
	}
	return items, nil
}
