// internal/storage/invoices.go
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "crm-agent/internal/common/errors"
	"crm-agent/internal/models"
)

var invoiceUpdatable = []string{"estado", "total"}

const invoiceColumns = "id, venta_id, numero_factura, fecha_emision, COALESCE(estado, 'pendiente'), total"

func scanInvoice(row interface{ Scan(...interface{}) error }) (*models.Invoice, error) {
	var f models.Invoice
	err := row.Scan(&f.ID, &f.VentaID, &f.NumeroFactura, &f.FechaEmision, &f.Estado, &f.Total)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// newInvoiceNumber builds a unique invoice number like FACT-20260831-1A2B3C4D.
func newInvoiceNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("FACT-%s-%s", now.Format("20060102"), suffix)
}

// ListInvoices returns every issued invoice ordered by id.
func (s *Store) ListInvoices(ctx context.Context) ([]*models.Invoice, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+invoiceColumns+" FROM facturas ORDER BY id")
	if err != nil {
		return nil, s.queryErr("factura", err)
	}
	defer rows.Close()

	invoices := []*models.Invoice{}
	for rows.Next() {
		f, err := scanInvoice(rows)
		if err != nil {
			return nil, s.queryErr("factura", err)
		}
		invoices = append(invoices, f)
	}
	if err := rows.Err(); err != nil {
		return nil, s.queryErr("factura", err)
	}
	return invoices, nil
}

// GetInvoice returns the invoice with the given id, or nil when absent.
func (s *Store) GetInvoice(ctx context.Context, id int64) (*models.Invoice, error) {
	f, err := scanInvoice(s.db.QueryRowContext(ctx,
		"SELECT "+invoiceColumns+" FROM facturas WHERE id = $1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, s.queryErr("factura", err)
	}
	return f, nil
}

// GenerateInvoice issues an invoice for an existing sale. The amount is
// taken from the sale record, never from user input. A sale can carry at
// most one invoice.
func (s *Store) GenerateInvoice(ctx context.Context, ventaID int64) (*models.Invoice, error) {
	tx, err := s.beginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var total float64
	err = tx.QueryRowContext(ctx,
		"SELECT total FROM ventas WHERE id = $1", ventaID).Scan(&total)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewValidationError(
			fmt.Sprintf("venta con id %d no existe", ventaID))
	}
	if err != nil {
		return nil, s.queryErr("factura", err)
	}

	var already bool
	err = tx.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM facturas WHERE venta_id = $1)", ventaID).Scan(&already)
	if err != nil {
		return nil, s.queryErr("factura", err)
	}
	if already {
		return nil, apperrors.NewValidationError(
			fmt.Sprintf("la venta %d ya tiene factura emitida", ventaID))
	}

	now := time.Now().UTC()
	invoice := &models.Invoice{
		VentaID:       ventaID,
		NumeroFactura: newInvoiceNumber(now),
		Estado:        "pendiente",
		Total:         total,
	}
	err = tx.QueryRowContext(ctx, `
		INSERT INTO facturas (venta_id, numero_factura, fecha_emision, estado, total)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, fecha_emision`,
		ventaID, invoice.NumeroFactura, now, invoice.Estado, total,
	).Scan(&invoice.ID, &invoice.FechaEmision)
	if err != nil {
		return nil, s.queryErr("factura", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, s.queryErr("factura", err)
	}
	return invoice, nil
}

// UpdateInvoice applies a partial update. Returns nil when the id is unknown.
func (s *Store) UpdateInvoice(ctx context.Context, id int64, data map[string]interface{}) (*models.Invoice, error) {
	set, args, ok := buildUpdateSet(data, invoiceUpdatable)
	if !ok {
		return s.GetInvoice(ctx, id)
	}
	args = append(args, id)

	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf("UPDATE facturas SET %s WHERE id = $%d", set, len(args)), args...)
	if err != nil {
		return nil, s.queryErr("factura", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, nil
	}
	return s.GetInvoice(ctx, id)
}

// DeleteInvoice removes an invoice. Returns false when the id is unknown.
func (s *Store) DeleteInvoice(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM facturas WHERE id = $1", id)
	if err != nil {
		return false, s.queryErr("factura", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}
