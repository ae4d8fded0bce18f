// internal/agent/dispatcher.go
package agent

import (
	"context"
	"fmt"
	"strconv"

	"crm-agent/internal/agent/intent"
	apperrors "crm-agent/internal/common/errors"
	"crm-agent/internal/common/logger"
	"crm-agent/internal/common/metrics"
	"crm-agent/internal/models"
	"crm-agent/internal/storage"
)

// Storage is the persistence surface the dispatcher drives.
type Storage interface {
	ListCustomers(ctx context.Context) ([]*models.Customer, error)
	CreateCustomer(ctx context.Context, c *models.Customer) (*models.Customer, error)
	UpdateCustomer(ctx context.Context, id int64, data map[string]interface{}) (*models.Customer, error)
	DeleteCustomer(ctx context.Context, id int64) (bool, error)

	ListProducts(ctx context.Context) ([]*models.Product, error)
	CreateProduct(ctx context.Context, p *models.Product) (*models.Product, error)
	UpdateProduct(ctx context.Context, id int64, data map[string]interface{}) (*models.Product, error)
	DeleteProduct(ctx context.Context, id int64) (bool, error)

	ListSales(ctx context.Context) ([]*models.Sale, error)
	CreateSale(ctx context.Context, clienteID int64, lines []storage.SaleLine) (*models.Sale, []*models.SaleItem, error)
	UpdateSale(ctx context.Context, id int64, data map[string]interface{}) (*models.Sale, error)
	DeleteSale(ctx context.Context, id int64) (bool, error)

	ListInvoices(ctx context.Context) ([]*models.Invoice, error)
	GenerateInvoice(ctx context.Context, ventaID int64) (*models.Invoice, error)
	UpdateInvoice(ctx context.Context, id int64, data map[string]interface{}) (*models.Invoice, error)
	DeleteInvoice(ctx context.Context, id int64) (bool, error)
}

// InvoiceNotifier is told when a new invoice is issued. Delivery problems
// never fail the action that produced the invoice.
type InvoiceNotifier interface {
	InvoiceIssued(ctx context.Context, invoice *models.Invoice) error
}

// Dispatcher maps a confirmed intent plus its extracted data onto storage
// primitives.
type Dispatcher struct {
	store    Storage
	notifier InvoiceNotifier
	logger   logger.Logger
}

func NewDispatcher(store Storage, log logger.Logger) *Dispatcher {
	return &Dispatcher{
		store:  store,
		logger: log.WithFields(map[string]interface{}{"component": "dispatcher"}),
	}
}

// WithNotifier attaches an invoice notifier and returns the dispatcher.
func (d *Dispatcher) WithNotifier(n InvoiceNotifier) *Dispatcher {
	d.notifier = n
	return d
}

// ==========================
// 1. Extracted-Data Helpers
// ==========================

func entityData(data map[string]map[string]interface{}, entity intent.Entity) map[string]interface{} {
	if data == nil {
		return map[string]interface{}{}
	}
	if d, ok := data[string(entity)]; ok && d != nil {
		return d
	}
	return map[string]interface{}{}
}

// asInt64 accepts the numeric shapes that survive a JSON round trip.
func asInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	case string:
		parsed, err := strconv.ParseInt(n, 10, 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}

func asFloat64(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	case string:
		parsed, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}

func asString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%v", v)
}

func requireID(fields map[string]interface{}, entity intent.Entity) (int64, error) {
	id, ok := asInt64(fields["id"])
	if !ok || id == 0 {
		return 0, apperrors.NewValidationError(
			fmt.Sprintf("se requiere 'id' para operar sobre %s", entity))
	}
	return id, nil
}

func checkRequiredFields(it *intent.Intent, data map[string]map[string]interface{}) error {
	for entity, fields := range it.RequiredFields {
		present := entityData(data, entity)
		for _, f := range fields {
			if v, ok := present[f]; !ok || v == nil || asString(v) == "" {
				return apperrors.NewValidationError(
					fmt.Sprintf("falta el campo requerido '%s' de %s", f, entity))
			}
		}
	}
	return nil
}

func notImplemented(action intent.Action) map[string]interface{} {
	return map[string]interface{}{
		"status":  "error",
		"message": fmt.Sprintf("Acción '%s' no implementada.", action),
	}
}

func notFoundPayload(entity intent.Entity, id int64) map[string]interface{} {
	label := string(entity)
	return map[string]interface{}{
		"success": false,
		"message": fmt.Sprintf("%s con ID %d no encontrado.", titleForEntity(label), id),
	}
}

// ==========================
// 2. Execution
// ==========================

// Execute runs the intent's action against storage. Validation problems are
// converted to structured error payloads and never returned as errors; only
// storage and infrastructure failures propagate, so the state machine can
// reset while surfacing a generic failure.
func (d *Dispatcher) Execute(ctx context.Context, it *intent.Intent, data map[string]map[string]interface{}) (map[string]interface{}, error) {
	d.logger.Info("executing action", map[string]interface{}{
		"intent": it.Key,
		"action": string(it.Action),
	})

	result, err := d.execute(ctx, it, data)
	if err != nil {
		if apperrors.IsValidation(err) {
			metrics.ActionsExecuted.WithLabelValues(string(it.Action), it.Key, "validation_error").Inc()
			return map[string]interface{}{
				"status":  "error",
				"message": fmt.Sprintf("Error de datos: %s", validationDetails(err)),
			}, nil
		}
		metrics.ActionsExecuted.WithLabelValues(string(it.Action), it.Key, "error").Inc()
		return nil, err
	}
	metrics.ActionsExecuted.WithLabelValues(string(it.Action), it.Key, "success").Inc()
	return result, nil
}

func validationDetails(err error) string {
	if stdErr, ok := err.(*apperrors.StandardError); ok && stdErr.Details != "" {
		return stdErr.Details
	}
	return err.Error()
}

func (d *Dispatcher) execute(ctx context.Context, it *intent.Intent, data map[string]map[string]interface{}) (map[string]interface{}, error) {
	switch it.Action {
	case intent.ActionListar:
		return d.executeList(ctx, it)
	case intent.ActionCrear:
		return d.executeCreate(ctx, it, data)
	case intent.ActionActualizar:
		return d.executeUpdate(ctx, it, data)
	case intent.ActionEliminar:
		return d.executeDelete(ctx, it, data)
	case intent.ActionProcesarVenta:
		return d.executeProcessSale(ctx, data)
	case intent.ActionGenerarFactura:
		return d.executeGenerateInvoice(ctx, data)
	default:
		d.logger.Warn("action not implemented", map[string]interface{}{
			"action": string(it.Action),
		})
		return notImplemented(it.Action), nil
	}
}

func hasEntity(it *intent.Intent, entity intent.Entity) bool {
	for _, e := range it.Entities {
		if e == entity {
			return true
		}
	}
	return false
}

func (d *Dispatcher) executeList(ctx context.Context, it *intent.Intent) (map[string]interface{}, error) {
	switch {
	case hasEntity(it, intent.EntityCliente):
		customers, err := d.store.ListCustomers(ctx)
		if err != nil {
			return nil, err
		}
		out := make([]map[string]interface{}, len(customers))
		for i, c := range customers {
			out[i] = c.ToMap()
		}
		return map[string]interface{}{"clientes": out}, nil

	case hasEntity(it, intent.EntityProducto):
		products, err := d.store.ListProducts(ctx)
		if err != nil {
			return nil, err
		}
		out := make([]map[string]interface{}, len(products))
		for i, p := range products {
			out[i] = p.ToMap()
		}
		return map[string]interface{}{"productos": out}, nil

	case hasEntity(it, intent.EntityVenta):
		sales, err := d.store.ListSales(ctx)
		if err != nil {
			return nil, err
		}
		out := make([]map[string]interface{}, len(sales))
		for i, v := range sales {
			out[i] = v.ToMap()
		}
		return map[string]interface{}{"ventas": out}, nil

	case hasEntity(it, intent.EntityFactura):
		invoices, err := d.store.ListInvoices(ctx)
		if err != nil {
			return nil, err
		}
		out := make([]map[string]interface{}, len(invoices))
		for i, f := range invoices {
			out[i] = f.ToMap()
		}
		return map[string]interface{}{"facturas": out}, nil
	}
	return notImplemented(it.Action), nil
}

func (d *Dispatcher) executeCreate(ctx context.Context, it *intent.Intent, data map[string]map[string]interface{}) (map[string]interface{}, error) {
	if err := checkRequiredFields(it, data); err != nil {
		return nil, err
	}

	switch {
	case hasEntity(it, intent.EntityCliente):
		fields := entityData(data, intent.EntityCliente)
		created, err := d.store.CreateCustomer(ctx, &models.Customer{
			Nombre:    asString(fields["nombre"]),
			Email:     asString(fields["email"]),
			Telefono:  asString(fields["telefono"]),
			Direccion: asString(fields["direccion"]),
		})
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"cliente": created.ToMap()}, nil

	case hasEntity(it, intent.EntityProducto):
		fields := entityData(data, intent.EntityProducto)
		precio, _ := asFloat64(fields["precio"])
		stock, _ := asInt64(fields["stock"])
		created, err := d.store.CreateProduct(ctx, &models.Product{
			Nombre:      asString(fields["nombre"]),
			Descripcion: asString(fields["descripcion"]),
			Precio:      precio,
			Stock:       int(stock),
		})
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"producto": created.ToMap()}, nil
	}
	return notImplemented(it.Action), nil
}

func (d *Dispatcher) executeUpdate(ctx context.Context, it *intent.Intent, data map[string]map[string]interface{}) (map[string]interface{}, error) {
	switch {
	case hasEntity(it, intent.EntityCliente):
		fields := entityData(data, intent.EntityCliente)
		id, err := requireID(fields, intent.EntityCliente)
		if err != nil {
			return nil, err
		}
		updated, err := d.store.UpdateCustomer(ctx, id, fields)
		if err != nil {
			return nil, err
		}
		if updated == nil {
			return notFoundPayload(intent.EntityCliente, id), nil
		}
		return map[string]interface{}{"cliente": updated.ToMap()}, nil

	case hasEntity(it, intent.EntityProducto):
		fields := entityData(data, intent.EntityProducto)
		id, err := requireID(fields, intent.EntityProducto)
		if err != nil {
			return nil, err
		}
		updated, err := d.store.UpdateProduct(ctx, id, fields)
		if err != nil {
			return nil, err
		}
		if updated == nil {
			return notFoundPayload(intent.EntityProducto, id), nil
		}
		return map[string]interface{}{"producto": updated.ToMap()}, nil

	case hasEntity(it, intent.EntityVenta):
		fields := entityData(data, intent.EntityVenta)
		id, err := requireID(fields, intent.EntityVenta)
		if err != nil {
			return nil, err
		}
		updated, err := d.store.UpdateSale(ctx, id, fields)
		if err != nil {
			return nil, err
		}
		if updated == nil {
			return notFoundPayload(intent.EntityVenta, id), nil
		}
		return map[string]interface{}{"venta": updated.ToMap()}, nil

	case hasEntity(it, intent.EntityFactura):
		fields := entityData(data, intent.EntityFactura)
		id, err := requireID(fields, intent.EntityFactura)
		if err != nil {
			return nil, err
		}
		updated, err := d.store.UpdateInvoice(ctx, id, fields)
		if err != nil {
			return nil, err
		}
		if updated == nil {
			return notFoundPayload(intent.EntityFactura, id), nil
		}
		return map[string]interface{}{"factura": updated.ToMap()}, nil
	}
	return notImplemented(it.Action), nil
}

func (d *Dispatcher) executeDelete(ctx context.Context, it *intent.Intent, data map[string]map[string]interface{}) (map[string]interface{}, error) {
	type deleter struct {
		entity intent.Entity
		del    func(context.Context, int64) (bool, error)
	}
	deleters := []deleter{
		{intent.EntityCliente, d.store.DeleteCustomer},
		{intent.EntityProducto, d.store.DeleteProduct},
		{intent.EntityVenta, d.store.DeleteSale},
		{intent.EntityFactura, d.store.DeleteInvoice},
	}

	for _, del := range deleters {
		if !hasEntity(it, del.entity) {
			continue
		}
		fields := entityData(data, del.entity)
		id, err := requireID(fields, del.entity)
		if err != nil {
			return nil, err
		}
		deleted, err := del.del(ctx, id)
		if err != nil {
			return nil, err
		}
		outcome := "no encontrado"
		if deleted {
			outcome = "eliminado"
		}
		return map[string]interface{}{
			"success": deleted,
			"message": fmt.Sprintf("%s con ID %d %s.", titleForEntity(string(del.entity)), id, outcome),
		}, nil
	}
	return notImplemented(it.Action), nil
}

func (d *Dispatcher) executeProcessSale(ctx context.Context, data map[string]map[string]interface{}) (map[string]interface{}, error) {
	clienteFields := entityData(data, intent.EntityCliente)
	clienteID, err := requireID(clienteFields, intent.EntityCliente)
	if err != nil {
		return nil, err
	}

	productoFields := entityData(data, intent.EntityProducto)
	productoID, err := requireID(productoFields, intent.EntityProducto)
	if err != nil {
		return nil, err
	}
	cantidad, ok := asInt64(productoFields["cantidad"])
	if !ok || cantidad <= 0 {
		return nil, apperrors.NewValidationError("se requiere 'cantidad' del producto para procesar la venta")
	}

	sale, items, err := d.store.CreateSale(ctx, clienteID, []storage.SaleLine{
		{ProductoID: productoID, Cantidad: int(cantidad)},
	})
	if err != nil {
		return nil, err
	}

	detalles := make([]map[string]interface{}, len(items))
	for i, item := range items {
		detalles[i] = item.ToMap()
	}
	return map[string]interface{}{
		"venta":    sale.ToMap(),
		"detalles": detalles,
	}, nil
}

func (d *Dispatcher) executeGenerateInvoice(ctx context.Context, data map[string]map[string]interface{}) (map[string]interface{}, error) {
	ventaFields := entityData(data, intent.EntityVenta)
	ventaID, err := requireID(ventaFields, intent.EntityVenta)
	if err != nil {
		return nil, err
	}

	invoice, err := d.store.GenerateInvoice(ctx, ventaID)
	if err != nil {
		return nil, err
	}

	if d.notifier != nil {
		if err := d.notifier.InvoiceIssued(ctx, invoice); err != nil {
			d.logger.WithError(err).Warn("invoice notification failed", map[string]interface{}{
				"factura": invoice.NumeroFactura,
			})
		}
	}
	return map[string]interface{}{"factura": invoice.ToMap()}, nil
}
