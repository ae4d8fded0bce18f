// internal/models/entities.go
package models

import "time"

// Customer mirrors the clientes table. JSON keys keep the Spanish column
// names the downstream channels already consume.
type Customer struct {
	ID            int64     `json:"id" db:"id"`
	Nombre        string    `json:"nombre" db:"nombre"`
	Email         string    `json:"email" db:"email"`
	Telefono      string    `json:"telefono,omitempty" db:"telefono"`
	Direccion     string    `json:"direccion,omitempty" db:"direccion"`
	FechaRegistro time.Time `json:"fecha_registro" db:"fecha_registro"`
}

// Product mirrors the productos table.
type Product struct {
	ID            int64     `json:"id" db:"id"`
	Nombre        string    `json:"nombre" db:"nombre"`
	Descripcion   string    `json:"descripcion,omitempty" db:"descripcion"`
	Precio        float64   `json:"precio" db:"precio"`
	Stock         int       `json:"stock" db:"stock"`
	FechaCreacion time.Time `json:"fecha_creacion" db:"fecha_creacion"`
}

// Sale mirrors the ventas table.
type Sale struct {
	ID         int64     `json:"id" db:"id"`
	ClienteID  int64     `json:"cliente_id" db:"cliente_id"`
	FechaVenta time.Time `json:"fecha_venta" db:"fecha_venta"`
	Total      float64   `json:"total" db:"total"`
	Estado     string    `json:"estado" db:"estado"`
}

// SaleItem mirrors the detalles_venta table.
type SaleItem struct {
	ID             int64   `json:"id" db:"id"`
	VentaID        int64   `json:"venta_id" db:"venta_id"`
	ProductoID     int64   `json:"producto_id" db:"producto_id"`
	Cantidad       int     `json:"cantidad" db:"cantidad"`
	PrecioUnitario float64 `json:"precio_unitario" db:"precio_unitario"`
	Subtotal       float64 `json:"subtotal" db:"subtotal"`
}

// Invoice mirrors the facturas table.
type Invoice struct {
	ID            int64     `json:"id" db:"id"`
	VentaID       int64     `json:"venta_id" db:"venta_id"`
	NumeroFactura string    `json:"numero_factura" db:"numero_factura"`
	FechaEmision  time.Time `json:"fecha_emision" db:"fecha_emision"`
	Estado        string    `json:"estado" db:"estado"`
	Total         float64   `json:"total" db:"total"`
}

// ToMap renders the record as a generic map with ISO-8601 datetimes, the
// shape serialized into response payloads and session state.
func (c *Customer) ToMap() map[string]interface{} {
	m := map[string]interface{}{
		"id":             c.ID,
		"nombre":         c.Nombre,
		"email":          c.Email,
		"fecha_registro": c.FechaRegistro.Format(time.RFC3339),
	}
	if c.Telefono != "" {
		m["telefono"] = c.Telefono
	}
	if c.Direccion != "" {
		m["direccion"] = c.Direccion
	}
	return m
}

func (p *Product) ToMap() map[string]interface{} {
	m := map[string]interface{}{
		"id":             p.ID,
		"nombre":         p.Nombre,
		"precio":         p.Precio,
		"stock":          p.Stock,
		"fecha_creacion": p.FechaCreacion.Format(time.RFC3339),
	}
	if p.Descripcion != "" {
		m["descripcion"] = p.Descripcion
	}
	return m
}

func (s *Sale) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"id":          s.ID,
		"cliente_id":  s.ClienteID,
		"fecha_venta": s.FechaVenta.Format(time.RFC3339),
		"total":       s.Total,
		"estado":      s.Estado,
	}
}

func (i *SaleItem) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"id":              i.ID,
		"venta_id":        i.VentaID,
		"producto_id":     i.ProductoID,
		"cantidad":        i.Cantidad,
		"precio_unitario": i.PrecioUnitario,
		"subtotal":        i.Subtotal,
	}
}

func (f *Invoice) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"id":             f.ID,
		"venta_id":       f.VentaID,
		"numero_factura": f.NumeroFactura,
		"fecha_emision":  f.FechaEmision.Format(time.RFC3339),
		"estado":         f.Estado,
		"total":          f.Total,
	}
}
