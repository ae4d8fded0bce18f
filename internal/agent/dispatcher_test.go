package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crm-agent/internal/agent/intent"
	apperrors "crm-agent/internal/common/errors"
	"crm-agent/internal/common/logger"
	"crm-agent/internal/models"
	"crm-agent/internal/storage"
)

// fakeStorage provides canned records and records the calls it receives.
type fakeStorage struct {
	customers []*models.Customer
	products  []*models.Product
	sales     []*models.Sale
	invoices  []*models.Invoice

	createdCustomer *models.Customer
	saleClienteID   int64
	saleLines       []storage.SaleLine
	deletedIDs      []int64

	missingUpdate bool
	deleteResult  bool
	err           error
}

func (f *fakeStorage) ListCustomers(ctx context.Context) ([]*models.Customer, error) {
	return f.customers, f.err
}

func (f *fakeStorage) CreateCustomer(ctx context.Context, c *models.Customer) (*models.Customer, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.createdCustomer = c
	created := *c
	created.ID = 42
	return &created, nil
}

func (f *fakeStorage) UpdateCustomer(ctx context.Context, id int64, data map[string]interface{}) (*models.Customer, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.missingUpdate {
		return nil, nil
	}
	return &models.Customer{ID: id, Nombre: "Ana", Email: "ana@example.com"}, nil
}

func (f *fakeStorage) DeleteCustomer(ctx context.Context, id int64) (bool, error) {
	f.deletedIDs = append(f.deletedIDs, id)
	return f.deleteResult, f.err
}

func (f *fakeStorage) ListProducts(ctx context.Context) ([]*models.Product, error) {
	return f.products, f.err
}

func (f *fakeStorage) CreateProduct(ctx context.Context, p *models.Product) (*models.Product, error) {
	if f.err != nil {
		return nil, f.err
	}
	created := *p
	created.ID = 7
	return &created, nil
}

func (f *fakeStorage) UpdateProduct(ctx context.Context, id int64, data map[string]interface{}) (*models.Product, error) {
	if f.missingUpdate {
		return nil, nil
	}
	return &models.Product{ID: id, Nombre: "Teclado"}, f.err
}

func (f *fakeStorage) DeleteProduct(ctx context.Context, id int64) (bool, error) {
	f.deletedIDs = append(f.deletedIDs, id)
	return f.deleteResult, f.err
}

func (f *fakeStorage) ListSales(ctx context.Context) ([]*models.Sale, error) {
	return f.sales, f.err
}

func (f *fakeStorage) CreateSale(ctx context.Context, clienteID int64, lines []storage.SaleLine) (*models.Sale, []*models.SaleItem, error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	f.saleClienteID = clienteID
	f.saleLines = lines
	return &models.Sale{ID: 9, ClienteID: clienteID, Total: 150, Estado: "pendiente"},
		[]*models.SaleItem{{ID: 1, VentaID: 9, ProductoID: lines[0].ProductoID, Cantidad: lines[0].Cantidad, PrecioUnitario: 50, Subtotal: 150}},
		nil
}

func (f *fakeStorage) UpdateSale(ctx context.Context, id int64, data map[string]interface{}) (*models.Sale, error) {
	if f.missingUpdate {
		return nil, nil
	}
	return &models.Sale{ID: id, ClienteID: 1, Total: 99, Estado: "pendiente"}, f.err
}

func (f *fakeStorage) DeleteSale(ctx context.Context, id int64) (bool, error) {
	f.deletedIDs = append(f.deletedIDs, id)
	return f.deleteResult, f.err
}

func (f *fakeStorage) ListInvoices(ctx context.Context) ([]*models.Invoice, error) {
	return f.invoices, f.err
}

func (f *fakeStorage) GenerateInvoice(ctx context.Context, ventaID int64) (*models.Invoice, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.Invoice{ID: 3, VentaID: ventaID, NumeroFactura: "FACT-20260831-ABCDEF01", Estado: "pendiente", Total: 150}, nil
}

func (f *fakeStorage) UpdateInvoice(ctx context.Context, id int64, data map[string]interface{}) (*models.Invoice, error) {
	if f.missingUpdate {
		return nil, nil
	}
	return &models.Invoice{ID: id, VentaID: 1, NumeroFactura: "FACT-20260831-ABCDEF01", Estado: "pagada", Total: 150}, f.err
}

func (f *fakeStorage) DeleteInvoice(ctx context.Context, id int64) (bool, error) {
	f.deletedIDs = append(f.deletedIDs, id)
	return f.deleteResult, f.err
}

func newTestDispatcher(store Storage) *Dispatcher {
	return NewDispatcher(store, logger.NewNoOpLogger())
}

func TestExecute_ListCustomers(t *testing.T) {
	store := &fakeStorage{customers: []*models.Customer{
		{ID: 1, Nombre: "Ana", Email: "ana@example.com"},
		{ID: 2, Nombre: "Luis", Email: "luis@example.com"},
	}}
	d := newTestDispatcher(store)

	result, err := d.Execute(context.Background(), intent.Lookup(intent.KeyListarClientes), nil)
	require.NoError(t, err)

	clientes, ok := result["clientes"].([]map[string]interface{})
	require.True(t, ok)
	require.Len(t, clientes, 2)
	assert.Equal(t, "Ana", clientes[0]["nombre"])
}

func TestExecute_ListProductsEmpty(t *testing.T) {
	d := newTestDispatcher(&fakeStorage{products: []*models.Product{}})

	result, err := d.Execute(context.Background(), intent.Lookup(intent.KeyListarProductos), nil)
	require.NoError(t, err)

	productos, ok := result["productos"].([]map[string]interface{})
	require.True(t, ok)
	assert.Empty(t, productos)
}

func TestExecute_CreateCustomer(t *testing.T) {
	store := &fakeStorage{}
	d := newTestDispatcher(store)

	result, err := d.Execute(context.Background(), intent.Lookup(intent.KeyCrearCliente), map[string]map[string]interface{}{
		"cliente": {"nombre": "Ana", "email": "ana@example.com", "telefono": "555-1234"},
	})
	require.NoError(t, err)

	cliente, ok := result["cliente"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, int64(42), cliente["id"])
	assert.Equal(t, "Ana", store.createdCustomer.Nombre)
	assert.Equal(t, "555-1234", store.createdCustomer.Telefono)
}

func TestExecute_CreateCustomerMissingRequiredField(t *testing.T) {
	store := &fakeStorage{}
	d := newTestDispatcher(store)

	result, err := d.Execute(context.Background(), intent.Lookup(intent.KeyCrearCliente), map[string]map[string]interface{}{
		"cliente": {"nombre": "Ana"},
	})
	require.NoError(t, err)

	assert.Equal(t, "error", result["status"])
	assert.Contains(t, result["message"], "Error de datos:")
	assert.Contains(t, result["message"], "email")
	assert.Nil(t, store.createdCustomer)
}

func TestExecute_ProcessSale(t *testing.T) {
	store := &fakeStorage{}
	d := newTestDispatcher(store)

	result, err := d.Execute(context.Background(), intent.Lookup(intent.KeyCrearVenta), map[string]map[string]interface{}{
		"cliente":  {"id": float64(5)},
		"producto": {"id": "3", "cantidad": float64(3)},
	})
	require.NoError(t, err)

	assert.Equal(t, int64(5), store.saleClienteID)
	require.Len(t, store.saleLines, 1)
	assert.Equal(t, int64(3), store.saleLines[0].ProductoID)
	assert.Equal(t, 3, store.saleLines[0].Cantidad)

	venta, ok := result["venta"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, int64(9), venta["id"])
	detalles, ok := result["detalles"].([]map[string]interface{})
	require.True(t, ok)
	require.Len(t, detalles, 1)
}

func TestExecute_ProcessSaleMissingQuantity(t *testing.T) {
	d := newTestDispatcher(&fakeStorage{})

	result, err := d.Execute(context.Background(), intent.Lookup(intent.KeyCrearVenta), map[string]map[string]interface{}{
		"cliente":  {"id": float64(5)},
		"producto": {"id": float64(3)},
	})
	require.NoError(t, err)

	assert.Equal(t, "error", result["status"])
	assert.Contains(t, result["message"], "cantidad")
}

func TestExecute_GenerateInvoice(t *testing.T) {
	d := newTestDispatcher(&fakeStorage{})

	result, err := d.Execute(context.Background(), intent.Lookup(intent.KeyGenerarFactura), map[string]map[string]interface{}{
		"venta": {"id": float64(9)},
	})
	require.NoError(t, err)

	factura, ok := result["factura"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, int64(9), factura["venta_id"])
	assert.Equal(t, "FACT-20260831-ABCDEF01", factura["numero_factura"])
}

type fakeNotifier struct {
	invoice *models.Invoice
	err     error
}

func (f *fakeNotifier) InvoiceIssued(ctx context.Context, invoice *models.Invoice) error {
	f.invoice = invoice
	return f.err
}

func TestExecute_GenerateInvoiceNotifies(t *testing.T) {
	notifier := &fakeNotifier{}
	d := newTestDispatcher(&fakeStorage{}).WithNotifier(notifier)

	_, err := d.Execute(context.Background(), intent.Lookup(intent.KeyGenerarFactura), map[string]map[string]interface{}{
		"venta": {"id": float64(9)},
	})
	require.NoError(t, err)

	require.NotNil(t, notifier.invoice)
	assert.Equal(t, "FACT-20260831-ABCDEF01", notifier.invoice.NumeroFactura)
}

func TestExecute_GenerateInvoiceNotifierFailureIsNonFatal(t *testing.T) {
	notifier := &fakeNotifier{err: errors.New("ses unavailable")}
	d := newTestDispatcher(&fakeStorage{}).WithNotifier(notifier)

	result, err := d.Execute(context.Background(), intent.Lookup(intent.KeyGenerarFactura), map[string]map[string]interface{}{
		"venta": {"id": float64(9)},
	})
	require.NoError(t, err)
	assert.Contains(t, result, "factura")
}

func TestExecute_GenerateInvoiceUnknownSale(t *testing.T) {
	d := newTestDispatcher(&fakeStorage{err: apperrors.NewValidationError("venta con id 99 no existe")})

	result, err := d.Execute(context.Background(), intent.Lookup(intent.KeyGenerarFactura), map[string]map[string]interface{}{
		"venta": {"id": float64(99)},
	})
	require.NoError(t, err)

	assert.Equal(t, "error", result["status"])
	assert.Contains(t, result["message"], "venta con id 99 no existe")
}

func TestExecute_SearchNotImplemented(t *testing.T) {
	d := newTestDispatcher(&fakeStorage{})

	result, err := d.Execute(context.Background(), intent.Lookup(intent.KeyBuscarCliente), map[string]map[string]interface{}{
		"cliente": {"nombre": "Ana", "email": "ana@example.com"},
	})
	require.NoError(t, err)

	assert.Equal(t, "error", result["status"])
	assert.Equal(t, "Acción 'buscar' no implementada.", result["message"])
}

func TestExecute_StorageErrorPropagates(t *testing.T) {
	boom := errors.New("connection reset")
	d := newTestDispatcher(&fakeStorage{err: apperrors.NewQueryExecutionFailedError("cliente", boom)})

	result, err := d.Execute(context.Background(), intent.Lookup(intent.KeyListarClientes), nil)
	assert.Nil(t, result)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeQueryExecutionFailed, apperrors.CodeOf(err))
}

func TestExecuteUpdate_NotFound(t *testing.T) {
	d := newTestDispatcher(&fakeStorage{missingUpdate: true})
	it := &intent.Intent{
		Key:      "actualizar_cliente",
		Category: intent.CategoryModificacion,
		Entities: []intent.Entity{intent.EntityCliente},
		Action:   intent.ActionActualizar,
	}

	result, err := d.Execute(context.Background(), it, map[string]map[string]interface{}{
		"cliente": {"id": float64(77), "email": "nuevo@example.com"},
	})
	require.NoError(t, err)

	assert.Equal(t, false, result["success"])
	assert.Equal(t, "Cliente con ID 77 no encontrado.", result["message"])
}

func TestExecuteUpdate_MissingID(t *testing.T) {
	d := newTestDispatcher(&fakeStorage{})
	it := &intent.Intent{
		Key:      "actualizar_producto",
		Category: intent.CategoryModificacion,
		Entities: []intent.Entity{intent.EntityProducto},
		Action:   intent.ActionActualizar,
	}

	result, err := d.Execute(context.Background(), it, map[string]map[string]interface{}{
		"producto": {"precio": float64(10)},
	})
	require.NoError(t, err)

	assert.Equal(t, "error", result["status"])
	assert.Contains(t, result["message"], "id")
}

func TestExecuteDelete(t *testing.T) {
	tests := []struct {
		name    string
		deleted bool
		want    string
	}{
		{"existing record", true, "Cliente con ID 4 eliminado."},
		{"unknown record", false, "Cliente con ID 4 no encontrado."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeStorage{deleteResult: tt.deleted}
			d := newTestDispatcher(store)
			it := &intent.Intent{
				Key:      "eliminar_cliente",
				Category: intent.CategoryEliminacion,
				Entities: []intent.Entity{intent.EntityCliente},
				Action:   intent.ActionEliminar,
			}

			result, err := d.Execute(context.Background(), it, map[string]map[string]interface{}{
				"cliente": {"id": float64(4)},
			})
			require.NoError(t, err)

			assert.Equal(t, tt.deleted, result["success"])
			assert.Equal(t, tt.want, result["message"])
			assert.Equal(t, []int64{4}, store.deletedIDs)
		})
	}
}

func TestAsInt64(t *testing.T) {
	tests := []struct {
		name string
		in   interface{}
		want int64
		ok   bool
	}{
		{"float64", float64(5), 5, true},
		{"int", 5, 5, true},
		{"numeric string", "12", 12, true},
		{"garbage string", "doce", 0, false},
		{"nil", nil, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := asInt64(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
