// internal/agent/intent/matcher.go
package intent

import "strings"

// Confirmation and negation vocabularies, already in normalized form.
var (
	ConfirmationKeywords = []string{"si", "s", "yes", "confirmo", "confirmar", "ok", "dale", "adelante"}
	NegationKeywords     = []string{"no", "n", "cancel", "cancelar", "cancelado", "nope", "negativo"}
)

// Recognition phrases per intent key, stored pre-normalized (lowercase, no
// diacritics) so they compare directly against normalized input. Iteration
// order is significant: the first phrase hit anywhere in the list wins.
var patternCatalog = []struct {
	key     string
	phrases []string
}{
	{KeyListarClientes, []string{
		"listar clientes", "mostrar clientes", "ver clientes",
		"dame los clientes", "quiero ver los clientes",
		"clientes registrados", "todos los clientes",
		"consultar clientes", "buscar todos los clientes",
		"listar cliente", "ver cliente",
	}},
	{KeyBuscarCliente, []string{
		"buscar cliente", "encontrar cliente", "cliente especifico", "datos del cliente",
		"informacion de cliente", "buscar un cliente", "cliente por nombre", "cliente por email",
		"buscar un cliente por", "informacion de un cliente", "datos de cliente", "cliente con nombre",
	}},
	{KeyCrearCliente, []string{
		"crear cliente", "nuevo cliente", "anadir cliente", "registrar cliente",
		"dar de alta cliente", "agregar cliente", "insertar cliente", "cliente nuevo",
		"crear un cliente", "registrar un nuevo cliente", "anadir un cliente nuevo",
	}},
	{KeyListarProductos, []string{
		"listar productos", "mostrar productos", "ver productos", "dame los productos",
		"quiero ver los productos", "productos disponibles", "todos los productos",
		"lista de productos", "catalogo de productos", "inventario", "que productos hay",
	}},
	{KeyCrearVenta, []string{
		"crear venta", "nueva venta", "registrar venta", "hacer una venta",
		"procesar venta", "vender producto", "registrar una venta", "anadir venta",
		"generar venta", "realizar venta", "vender", "procesar una venta",
	}},
	{KeyGenerarFactura, []string{
		"generar factura", "crear factura", "nueva factura", "emitir factura",
		"facturar venta", "factura para venta", "facturacion", "generar la factura",
		"necesito una factura", "crear una factura", "emitir una factura",
	}},
	{KeyConversacionGeneral, []string{
		"hola", "buenos dias", "buenas tardes", "buenas noches", "saludos",
		"que tal", "como estas", "como va", "que hay",
		"ayuda", "ayudame", "que puedes hacer", "como funciona", "cuales son tus funciones",
		"que sabes hacer", "como te uso", "instrucciones", "manual", "guia",
		"quien eres", "como te llamas", "tu nombre", "que eres", "que tipo de asistente",
		"gracias", "muchas gracias", "te agradezco", "excelente", "genial",
		"adios", "hasta luego", "nos vemos", "chao", "bye", "hasta pronto",
	}},
}

// questionPrefixes detect interrogative openings. Normalized input collapses
// the accented variants, so only the base forms are listed.
var questionPrefixes = []string{
	"que ", "como ", "donde ", "cuando ", "por que ", "porque ", "cual ", "quien ",
}

// EntityKeywords are the synonym lists used by the short-message check.
var EntityKeywords = map[Entity][]string{
	EntityCliente:  {"cliente", "clientes", "usuario", "usuarios"},
	EntityProducto: {"producto", "productos", "articulo", "articulos"},
	EntityVenta:    {"venta", "ventas", "pedido", "pedidos"},
	EntityFactura:  {"factura", "facturas", "comprobante"},
}

var businessKeywords = func() []string {
	var all []string
	for _, e := range []Entity{EntityCliente, EntityProducto, EntityVenta, EntityFactura} {
		all = append(all, EntityKeywords[e]...)
	}
	return all
}()

// Keyword fallbacks, checked in this fixed order after phrase and question
// detection both miss.
var keywordFallbacks = []struct {
	words []string
	key   string
}{
	{[]string{"cliente", "clientes"}, KeyListarClientes},
	{[]string{"producto", "productos", "inventario"}, KeyListarProductos},
	{[]string{"venta", "ventas", "vender"}, KeyCrearVenta},
	{[]string{"factura", "facturas", "facturacion"}, KeyGenerarFactura},
}

func containsWord(message string, words []string) bool {
	for _, w := range words {
		if strings.Contains(message, w) {
			return true
		}
	}
	return false
}

// IsConfirmation reports whether the normalized message is exactly a
// confirmation keyword.
func IsConfirmation(normalized string) bool {
	for _, k := range ConfirmationKeywords {
		if normalized == k {
			return true
		}
	}
	return false
}

// IsNegation reports whether the normalized message is exactly a negation
// keyword.
func IsNegation(normalized string) bool {
	for _, k := range NegationKeywords {
		if normalized == k {
			return true
		}
	}
	return false
}

// Match resolves a raw message to a catalog intent. A nil result means the
// message is a bare confirmation or negation, which the state machine
// handles before intent resolution.
//
// The cascade order is a behavioral contract:
//  1. confirmation/negation keywords short-circuit to nil
//  2. ordered phrase substring scan over the pattern catalog
//  3. interrogative prefix check routes to general conversation
//  4. short messages without business keywords route to general conversation
//  5. entity keyword fallback picks each entity's default intent
//  6. anything else is general conversation
func Match(message string) *Intent {
	normalized := Normalize(message)

	if IsConfirmation(normalized) || IsNegation(normalized) {
		return nil
	}

	for _, entry := range patternCatalog {
		for _, phrase := range entry.phrases {
			if strings.Contains(normalized, phrase) {
				return Lookup(entry.key)
			}
		}
	}

	for _, prefix := range questionPrefixes {
		if strings.HasPrefix(normalized, prefix) {
			return Lookup(KeyConversacionGeneral)
		}
	}

	if len(strings.Fields(normalized)) < 4 && !containsWord(normalized, businessKeywords) {
		return Lookup(KeyConversacionGeneral)
	}

	for _, fb := range keywordFallbacks {
		if containsWord(normalized, fb.words) {
			return Lookup(fb.key)
		}
	}

	return Lookup(KeyConversacionGeneral)
}
