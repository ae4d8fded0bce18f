// internal/agent/intent/catalog.go
package intent

import "sort"

// ==========================
// 1. Closed Vocabulary
// ==========================

// Category is the high-level purpose of an utterance.
type Category string

const (
	CategoryConsulta     Category = "consulta"
	CategoryRegistro     Category = "registro"
	CategoryModificacion Category = "modificacion"
	CategoryEliminacion  Category = "eliminacion"
	CategoryVenta        Category = "venta"
	CategoryFacturacion  Category = "facturacion"
	CategoryInventario   Category = "inventario"
	CategoryConversacion Category = "conversacion"
)

// Entity is a business object the engine can operate on.
type Entity string

const (
	EntityCliente      Entity = "cliente"
	EntityProducto     Entity = "producto"
	EntityVenta        Entity = "venta"
	EntityFactura      Entity = "factura"
	EntityDetalleVenta Entity = "detalle_venta"
	EntityAsistente    Entity = "asistente"
)

// Action is the concrete operation an intent requests.
type Action string

const (
	ActionListar          Action = "listar"
	ActionBuscar          Action = "buscar"
	ActionCrear           Action = "crear"
	ActionActualizar      Action = "actualizar"
	ActionEliminar        Action = "eliminar"
	ActionProcesarVenta   Action = "procesar_venta"
	ActionGenerarFactura  Action = "generar_factura"
	ActionActualizarStock Action = "actualizar_stock"
	ActionConversar       Action = "conversar"
)

// ==========================
// 2. Intent Catalog
// ==========================

// Intent key constants.
const (
	KeyListarClientes      = "listar_clientes"
	KeyBuscarCliente       = "buscar_cliente"
	KeyCrearCliente        = "crear_cliente"
	KeyListarProductos     = "listar_productos"
	KeyCrearVenta          = "crear_venta"
	KeyGenerarFactura      = "generar_factura"
	KeyConversacionGeneral = "conversacion_general"
)

// Intent is one catalog entry: what the user wants, over which entities,
// and which fields the downstream action needs.
type Intent struct {
	Key              string
	Category         Category
	Entities         []Entity
	Action           Action
	RequiredFields   map[Entity][]string
	OptionalFields   map[Entity][]string
	ResponseTemplate string
}

// Catalog lists every recognizable intent. It is populated once and treated
// as read-only afterwards, so it is shared across conversations without
// synchronization.
var Catalog = []Intent{
	{
		Key:              KeyListarClientes,
		Category:         CategoryConsulta,
		Entities:         []Entity{EntityCliente},
		Action:           ActionListar,
		RequiredFields:   map[Entity][]string{},
		OptionalFields:   map[Entity][]string{},
		ResponseTemplate: "Listando todos los clientes registrados.",
	},
	{
		Key:              KeyBuscarCliente,
		Category:         CategoryConsulta,
		Entities:         []Entity{EntityCliente},
		Action:           ActionBuscar,
		RequiredFields:   map[Entity][]string{EntityCliente: {"nombre", "email"}},
		OptionalFields:   map[Entity][]string{},
		ResponseTemplate: "Buscando cliente con los criterios proporcionados.",
	},
	{
		Key:              KeyCrearCliente,
		Category:         CategoryRegistro,
		Entities:         []Entity{EntityCliente},
		Action:           ActionCrear,
		RequiredFields:   map[Entity][]string{EntityCliente: {"nombre", "email"}},
		OptionalFields:   map[Entity][]string{EntityCliente: {"telefono", "direccion"}},
		ResponseTemplate: "Creando nuevo cliente con los datos proporcionados.",
	},
	{
		Key:              KeyListarProductos,
		Category:         CategoryConsulta,
		Entities:         []Entity{EntityProducto},
		Action:           ActionListar,
		RequiredFields:   map[Entity][]string{},
		OptionalFields:   map[Entity][]string{},
		ResponseTemplate: "Listando todos los productos disponibles.",
	},
	{
		Key:      KeyCrearVenta,
		Category: CategoryVenta,
		Entities: []Entity{EntityVenta, EntityCliente, EntityProducto},
		Action:   ActionProcesarVenta,
		RequiredFields: map[Entity][]string{
			EntityCliente:  {"id"},
			EntityProducto: {"id", "cantidad"},
		},
		OptionalFields:   map[Entity][]string{},
		ResponseTemplate: "Procesando nueva venta.",
	},
	{
		Key:              KeyGenerarFactura,
		Category:         CategoryFacturacion,
		Entities:         []Entity{EntityFactura, EntityVenta},
		Action:           ActionGenerarFactura,
		RequiredFields:   map[Entity][]string{EntityVenta: {"id"}},
		OptionalFields:   map[Entity][]string{},
		ResponseTemplate: "Generando factura para la venta especificada.",
	},
	{
		Key:              KeyConversacionGeneral,
		Category:         CategoryConversacion,
		Entities:         []Entity{EntityAsistente},
		Action:           ActionConversar,
		RequiredFields:   map[Entity][]string{},
		OptionalFields:   map[Entity][]string{},
		ResponseTemplate: "Conversación general con el asistente.",
	},
}

var catalogByKey = func() map[string]*Intent {
	m := make(map[string]*Intent, len(Catalog))
	for i := range Catalog {
		m[Catalog[i].Key] = &Catalog[i]
	}
	return m
}()

// Lookup returns the catalog entry for a key, or nil.
func Lookup(key string) *Intent {
	return catalogByKey[key]
}

// entitySetEqual compares two entity lists as sets.
func entitySetEqual(a, b []Entity) bool {
	if len(a) != len(b) {
		return false
	}
	as := make([]string, len(a))
	bs := make([]string, len(b))
	for i := range a {
		as[i] = string(a[i])
		bs[i] = string(b[i])
	}
	sort.Strings(as)
	sort.Strings(bs)
	for i := range as {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}

// FindByTriple scans the catalog for the entry whose category, action, and
// entity set match. Entity order is irrelevant. Returns nil when no entry
// matches; session state referencing an unknown triple reconstructs to nil.
func FindByTriple(category Category, entities []Entity, action Action) *Intent {
	for i := range Catalog {
		it := &Catalog[i]
		if it.Category == category && it.Action == action && entitySetEqual(it.Entities, entities) {
			return it
		}
	}
	return nil
}
