package session

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crm-agent/internal/agent/intent"
	"crm-agent/internal/common/logger"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewStore(client, time.Hour, logger.NewNoOpLogger()), mr
}

func TestStore_LoadMissingIsIdle(t *testing.T) {
	store, _ := newTestStore(t)

	state, err := store.Load(context.Background(), "conv-absent")
	assert.NoError(t, err)
	require.NotNil(t, state)
	assert.True(t, state.Idle())
	assert.Empty(t, state.CurrentPurpose)
}

func TestStore_RoundTrip(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	pending := intent.Lookup(intent.KeyCrearCliente)
	require.NotNil(t, pending)

	err := store.Save(ctx, "conv-1", &State{
		PendingIntent: pending,
		PendingData: map[string]map[string]interface{}{
			"cliente": {"nombre": "Ana", "email": "ana@example.com"},
		},
		CurrentPurpose: "crear cliente",
	})
	require.NoError(t, err)

	state, err := store.Load(ctx, "conv-1")
	require.NoError(t, err)
	require.NotNil(t, state.PendingIntent)
	assert.Equal(t, intent.KeyCrearCliente, state.PendingIntent.Key)
	assert.Equal(t, "Ana", state.PendingData["cliente"]["nombre"])
	assert.Equal(t, "crear cliente", state.CurrentPurpose)
}

func TestStore_RoundTrip_MultiEntityIntent(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	err := store.Save(ctx, "conv-2", &State{
		PendingIntent:  intent.Lookup(intent.KeyCrearVenta),
		CurrentPurpose: "procesar_venta venta, cliente, producto",
	})
	require.NoError(t, err)

	state, err := store.Load(ctx, "conv-2")
	require.NoError(t, err)
	require.NotNil(t, state.PendingIntent)
	assert.Equal(t, intent.KeyCrearVenta, state.PendingIntent.Key)
}

func TestStore_SaveIdleOverwritesPending(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "conv-3", &State{
		PendingIntent: intent.Lookup(intent.KeyCrearCliente),
	}))
	require.NoError(t, store.Save(ctx, "conv-3", &State{}))

	state, err := store.Load(ctx, "conv-3")
	require.NoError(t, err)
	assert.True(t, state.Idle())
}

func TestStore_WireFormat(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "conv-4", &State{
		PendingIntent:  intent.Lookup(intent.KeyGenerarFactura),
		PendingData:    map[string]map[string]interface{}{"venta": {"id": 7}},
		CurrentPurpose: "generar_factura factura, venta",
	}))

	raw, err := mr.Get("session:conv-4")
	require.NoError(t, err)

	var rec map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(raw), &rec))

	action, ok := rec["pending_action"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "facturacion", action["type"])
	assert.Equal(t, "generar_factura", action["action"])
	assert.ElementsMatch(t, []interface{}{"factura", "venta"}, action["entities"])
	// Only the triple is stored, never the full catalog entry.
	assert.NotContains(t, rec, "required_fields")
}

func TestStore_UnknownTripleResetsToIdle(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	mr.Set("session:conv-5", `{
		"pending_action": {"type": "consulta", "entities": ["factura"], "action": "listar"},
		"pending_data": {"factura": {"id": 1}},
		"current_purpose": "listar factura"
	}`)

	state, err := store.Load(ctx, "conv-5")
	require.NoError(t, err)
	assert.True(t, state.Idle())
	assert.Nil(t, state.PendingData)
	assert.Empty(t, state.CurrentPurpose)
}

func TestStore_Delete(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "conv-6", &State{
		PendingIntent: intent.Lookup(intent.KeyCrearCliente),
	}))
	require.NoError(t, store.Delete(ctx, "conv-6"))

	state, err := store.Load(ctx, "conv-6")
	require.NoError(t, err)
	assert.True(t, state.Idle())
}
