package intent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "lowercases", input: "Listar Clientes", expected: "listar clientes"},
		{name: "strips accents", input: "Sí, añadir artículo", expected: "si, anadir articulo"},
		{name: "trims whitespace", input: "  hola  ", expected: "hola"},
		{name: "question with accents", input: "¿Qué productos hay?", expected: "¿que productos hay?"},
		{name: "empty string", input: "", expected: ""},
		{name: "already normalized", input: "crear venta", expected: "crear venta"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Normalize(tt.input))
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{
		"Sí", "¿Cómo estás?", "AÑADIR UN CLIENTE NUEVO", "  facturación  ", "ok",
	}
	for _, in := range inputs {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once), "input %q", in)
	}
}
