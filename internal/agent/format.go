// internal/agent/format.go
package agent

import (
	"encoding/json"
	"fmt"
	"strings"
)

var entityTitles = map[string]string{
	"cliente":       "Cliente",
	"producto":      "Producto",
	"venta":         "Venta",
	"factura":       "Factura",
	"detalle_venta": "Detalle de venta",
}

func titleForEntity(label string) string {
	if t, ok := entityTitles[label]; ok {
		return t
	}
	return label
}

func field(record map[string]interface{}, key string) interface{} {
	if record == nil {
		return nil
	}
	return record[key]
}

func asRecordList(v interface{}) []map[string]interface{} {
	switch list := v.(type) {
	case []map[string]interface{}:
		return list
	case []interface{}:
		out := make([]map[string]interface{}, 0, len(list))
		for _, item := range list {
			if m, ok := item.(map[string]interface{}); ok {
				out = append(out, m)
			}
		}
		return out
	default:
		return nil
	}
}

func asRecord(v interface{}) map[string]interface{} {
	if m, ok := v.(map[string]interface{}); ok {
		return m
	}
	return nil
}

// FormatResult renders a dispatcher result as a user-facing Spanish message.
// Unrecognized shapes fall back to indented JSON.
func FormatResult(result map[string]interface{}) string {
	if len(result) == 0 {
		return "No se encontraron resultados."
	}

	if v, ok := result["clientes"]; ok {
		clientes := asRecordList(v)
		if len(clientes) == 0 {
			return "No hay clientes registrados en el sistema."
		}
		var b strings.Builder
		b.WriteString("LISTA DE CLIENTES\n\n")
		for i, c := range clientes {
			fmt.Fprintf(&b, "Cliente #%d\n", i+1)
			fmt.Fprintf(&b, "- ID: %v\n", field(c, "id"))
			fmt.Fprintf(&b, "- Nombre: %v\n", field(c, "nombre"))
			fmt.Fprintf(&b, "- Email: %v\n", field(c, "email"))
			if tel := field(c, "telefono"); tel != nil && tel != "" {
				fmt.Fprintf(&b, "- Teléfono: %v\n", tel)
			}
			if dir := field(c, "direccion"); dir != nil && dir != "" {
				fmt.Fprintf(&b, "- Dirección: %v\n", dir)
			}
			b.WriteString("\n")
		}
		return b.String()
	}

	if v, ok := result["productos"]; ok {
		productos := asRecordList(v)
		if len(productos) == 0 {
			return "No hay productos registrados en el sistema."
		}
		var b strings.Builder
		b.WriteString("LISTA DE PRODUCTOS\n\n")
		for i, p := range productos {
			fmt.Fprintf(&b, "Producto #%d\n", i+1)
			fmt.Fprintf(&b, "- ID: %v\n", field(p, "id"))
			fmt.Fprintf(&b, "- Nombre: %v\n", field(p, "nombre"))
			fmt.Fprintf(&b, "- Precio: $%v\n", field(p, "precio"))
			fmt.Fprintf(&b, "- Stock: %v unidades\n", field(p, "stock"))
			b.WriteString("\n")
		}
		return b.String()
	}

	if v, ok := result["ventas"]; ok {
		ventas := asRecordList(v)
		if len(ventas) == 0 {
			return "No hay ventas registradas en el sistema."
		}
		var b strings.Builder
		b.WriteString("LISTA DE VENTAS\n\n")
		for i, venta := range ventas {
			fmt.Fprintf(&b, "Venta #%d\n", i+1)
			fmt.Fprintf(&b, "- ID: %v\n", field(venta, "id"))
			fmt.Fprintf(&b, "- Cliente ID: %v\n", field(venta, "cliente_id"))
			fmt.Fprintf(&b, "- Fecha: %v\n", field(venta, "fecha_venta"))
			fmt.Fprintf(&b, "- Total: $%v\n", field(venta, "total"))
			b.WriteString("\n")
		}
		return b.String()
	}

	if v, ok := result["facturas"]; ok {
		facturas := asRecordList(v)
		if len(facturas) == 0 {
			return "No hay facturas registradas en el sistema."
		}
		var b strings.Builder
		b.WriteString("LISTA DE FACTURAS\n\n")
		for i, f := range facturas {
			fmt.Fprintf(&b, "Factura #%d\n", i+1)
			fmt.Fprintf(&b, "- ID: %v\n", field(f, "id"))
			fmt.Fprintf(&b, "- Venta ID: %v\n", field(f, "venta_id"))
			fmt.Fprintf(&b, "- Número: %v\n", field(f, "numero_factura"))
			fmt.Fprintf(&b, "- Fecha: %v\n", field(f, "fecha_emision"))
			fmt.Fprintf(&b, "- Total: $%v\n", field(f, "total"))
			b.WriteString("\n")
		}
		return b.String()
	}

	// Sale processing returns the sale plus its line items.
	if v, ok := result["venta"]; ok {
		venta := asRecord(v)
		var b strings.Builder
		b.WriteString("Venta registrada/actualizada exitosamente:\n")
		fmt.Fprintf(&b, "- ID: %v\n", field(venta, "id"))
		fmt.Fprintf(&b, "- Cliente ID: %v\n", field(venta, "cliente_id"))
		fmt.Fprintf(&b, "- Total: $%v\n", field(venta, "total"))
		fmt.Fprintf(&b, "- Estado: %v\n", field(venta, "estado"))
		if detalles := asRecordList(result["detalles"]); len(detalles) > 0 {
			b.WriteString("Detalle:\n")
			for _, item := range detalles {
				fmt.Fprintf(&b, "- Producto %v x%v ($%v)\n",
					field(item, "producto_id"), field(item, "cantidad"), field(item, "subtotal"))
			}
		}
		return b.String()
	}

	if v, ok := result["factura"]; ok {
		factura := asRecord(v)
		var b strings.Builder
		b.WriteString("Factura generada/actualizada exitosamente:\n")
		fmt.Fprintf(&b, "- Número: %v\n", field(factura, "numero_factura"))
		fmt.Fprintf(&b, "- Venta ID: %v\n", field(factura, "venta_id"))
		fmt.Fprintf(&b, "- Total: $%v\n", field(factura, "total"))
		return b.String()
	}

	if v, ok := result["cliente"]; ok {
		cliente := asRecord(v)
		return fmt.Sprintf("Cliente creado/actualizado exitosamente:\n- ID: %v\n- Nombre: %v\n- Email: %v\n",
			field(cliente, "id"), field(cliente, "nombre"), field(cliente, "email"))
	}

	if v, ok := result["producto"]; ok {
		producto := asRecord(v)
		return fmt.Sprintf("Producto creado/actualizado exitosamente:\n- ID: %v\n- Nombre: %v\n- Precio: $%v\n- Stock: %v unidades\n",
			field(producto, "id"), field(producto, "nombre"), field(producto, "precio"), field(producto, "stock"))
	}

	// Deletion results and locally recovered errors carry their own message.
	if msg, ok := result["message"].(string); ok {
		return msg
	}

	raw, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "No se encontraron resultados."
	}
	return string(raw)
}
