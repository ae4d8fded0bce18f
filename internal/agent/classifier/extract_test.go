package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractPayload_StrictJSON(t *testing.T) {
	p := ExtractPayload(`{
		"intention": "registro",
		"entities": ["cliente"],
		"action": "crear",
		"extracted_data": {"cliente": {"nombre": "Juan", "email": "juan@example.com"}}
	}`)
	require.NotNil(t, p)
	assert.Equal(t, "registro", p.Intention)
	assert.Equal(t, []string{"cliente"}, p.Entities)
	assert.Equal(t, "crear", p.Action)
	assert.Equal(t, "Juan", p.ExtractedData["cliente"]["nombre"])
}

func TestExtractPayload_EmbeddedObject(t *testing.T) {
	p := ExtractPayload(`Claro, aquí está el análisis solicitado:
		{"intention": "consulta", "entities": ["producto"], "action": "listar", "extracted_data": {}}
		Espero que sea útil.`)
	assert.Equal(t, "consulta", p.Intention)
	assert.Equal(t, "listar", p.Action)
	assert.NotNil(t, p.ExtractedData)
}

func TestExtractPayload_EmbeddedList(t *testing.T) {
	p := ExtractPayload(`[{"intention": "venta", "entities": ["venta", "cliente"], "action": "procesar_venta"}]`)
	assert.Equal(t, "venta", p.Intention)
	assert.Equal(t, []string{"venta", "cliente"}, p.Entities)
	assert.NotNil(t, p.ExtractedData)
}

func TestExtractPayload_Defaults(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "plain prose", input: "No puedo determinar la intención del mensaje."},
		{name: "empty string", input: ""},
		{name: "unbalanced object", input: `{"intention": "consulta"`},
		{name: "wrong shape entities", input: `{"intention": "x", "entities": [1, 2], "action": "y"}`},
		{name: "missing required keys", input: `{"intention": "consulta"}`},
		{name: "extracted_data not nested", input: `{"intention": "x", "entities": ["cliente"], "action": "y", "extracted_data": {"cliente": "Juan"}}`},
		{name: "list without valid object", input: `["uno", "dos"]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := ExtractPayload(tt.input)
			require.NotNil(t, p)
			assert.Equal(t, DefaultPayload(), p)
		})
	}
}

func TestExtractPayload_MissingExtractedData(t *testing.T) {
	// extracted_data is optional in the model output; it decodes to an
	// empty map, never nil.
	p := ExtractPayload(`{"intention": "consulta", "entities": ["cliente"], "action": "listar"}`)
	assert.Equal(t, "consulta", p.Intention)
	assert.NotNil(t, p.ExtractedData)
	assert.Empty(t, p.ExtractedData)
}

func TestDefaultPayload(t *testing.T) {
	p := DefaultPayload()
	assert.Equal(t, "otro", p.Intention)
	assert.Equal(t, []string{"otro"}, p.Entities)
	assert.Equal(t, "otro", p.Action)
	assert.NotNil(t, p.ExtractedData)
	assert.Empty(t, p.ExtractedData)
}

func TestBalancedSlice(t *testing.T) {
	assert.Equal(t, `{"a": {"b": 1}}`, balancedSlice(`texto {"a": {"b": 1}} cola`, '{', '}'))
	assert.Equal(t, "", balancedSlice(`sin objeto`, '{', '}'))
	assert.Equal(t, "", balancedSlice(`{"abierto": 1`, '{', '}'))
	assert.Equal(t, `[1, [2, 3]]`, balancedSlice(`x [1, [2, 3]] y`, '[', ']'))
}
