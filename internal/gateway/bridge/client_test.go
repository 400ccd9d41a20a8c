package bridge

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	bcfg "bastion/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client, err := NewClient(bcfg.BridgeConfig{
		Enabled:        true,
		APIURL:         server.URL + "/api/v1",
		Username:       "admin",
		Password:       "secret",
		TimeoutSeconds: 5,
	})
	require.NoError(t, err)
	return client
}

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient(bcfg.BridgeConfig{Enabled: false})
	assert.Error(t, err)
	_, err = NewClient(bcfg.BridgeConfig{Enabled: true, APIURL: "  "})
	assert.Error(t, err)
}

func TestExecuteSendsAuthAndPayload(t *testing.T) {
	var gotPath, gotAuthUser string
	var gotPayload ExecutePayload
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuthUser, _, _ = r.BasicAuth()
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))
		json.NewEncoder(w).Encode(ExecuteResponse{OrderID: "ord-1", FilledQty: 0.5, AvgPrice: 50000})
	}))

	price := 50000.0
	resp, err := client.Execute(context.Background(), ExecutePayload{
		SignalID: "sig-1",
		Pair:     "BTC/USDT:USDT",
		Side:     "long",
		Price:    &price,
	})
	require.NoError(t, err)
	assert.Equal(t, "ord-1", resp.OrderID)
	assert.Equal(t, "/api/v1/execute", gotPath)
	assert.Equal(t, "admin", gotAuthUser)
	assert.Equal(t, "BTC/USDT:USDT", gotPayload.Pair)
	assert.Equal(t, "long", gotPayload.Side)
}

func TestExecuteRejectsMissingOrderID(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(ExecuteResponse{})
	}))
	_, err := client.Execute(context.Background(), ExecutePayload{SignalID: "sig-1", Pair: "BTC/USDT", Side: "long"})
	assert.ErrorContains(t, err, "no order_id")
}

func TestExecuteSurfacesHTTPError(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"insufficient balance"}`, http.StatusBadRequest)
	}))
	_, err := client.Execute(context.Background(), ExecutePayload{SignalID: "sig-1", Pair: "BTC/USDT", Side: "long"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insufficient balance")
}

func TestConnectionsParsesEnvelopeAndEpochMillis(t *testing.T) {
	hb := time.Now().Add(-2 * time.Second)
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/connections", r.URL.Path)
		w.Write([]byte(`{"connections":[
			{"instance_id":"ft-1","status":"Connected","api_version":"v1","last_heartbeat":` + jsonInt(hb.UnixMilli()) + `},
			{"id":"ft-2","status":"disconnected","last_heartbeat":"2026-08-01T10:00:00Z"}
		]}`))
	}))

	conns, err := client.Connections(context.Background())
	require.NoError(t, err)
	require.Len(t, conns, 2)
	assert.Equal(t, "connected", string(conns["ft-1"].Status))
	assert.WithinDuration(t, hb, conns["ft-1"].LastHeartbeat, time.Second)
	assert.Equal(t, "disconnected", string(conns["ft-2"].Status))
	assert.Equal(t, 2026, conns["ft-2"].LastHeartbeat.Year())
}

func TestStrategyStateParsesNestedRecord(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/strategies/trend_follow_btc", r.URL.Path)
		w.Write([]byte(`{"strategy":{
			"total_trades": 42,
			"total_pnl": 1234.5,
			"fill_rate": 0.97,
			"parameters": {"stoploss": "-0.1", "roi": 0.05},
			"updated_at": "2026-08-01 10:00:00"
		}}`))
	}))

	rec, err := client.StrategyState(context.Background(), "trend_follow_btc")
	require.NoError(t, err)
	assert.Equal(t, int64(42), rec.TotalTrades)
	assert.InDelta(t, 1234.5, rec.TotalPnL, 1e-9)
	assert.InDelta(t, -0.1, rec.Parameters["stoploss"], 1e-9)
	assert.InDelta(t, 0.05, rec.Parameters["roi"], 1e-9)
	assert.False(t, rec.UpdatedAt.IsZero())
}

func TestListTradesHandlesBareArrayAndEnvelope(t *testing.T) {
	payloads := []string{
		`[{"trade_id":"t-1","pair":"BTC/USDT","side":"long","amount":0.5}]`,
		`{"data":[{"trade_id":"t-1","pair":"BTC/USDT","side":"long","amount":0.5}]}`,
	}
	for _, payload := range payloads {
		body := payload
		client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(body))
		}))
		trades, err := client.ListTrades(context.Background())
		require.NoError(t, err)
		require.Len(t, trades, 1)
		assert.Equal(t, "t-1", trades[0].TradeID)
	}
}

func TestPingReturnsDescriptorForInstance(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/health":
			w.WriteHeader(http.StatusOK)
		case "/api/v1/connections":
			w.Write([]byte(`[{"instance_id":"ft-1","status":"connected"}]`))
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))

	desc, err := client.Ping(context.Background(), "ft-1")
	require.NoError(t, err)
	assert.Equal(t, "ft-1", desc.InstanceID)

	_, err = client.Ping(context.Background(), "ft-9")
	assert.ErrorContains(t, err, "no connection for instance")
}

func TestPingFailsWhenHealthUnreachable(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
	}))
	_, err := client.Ping(context.Background(), "ft-1")
	assert.Error(t, err)
}

func jsonInt(v int64) string {
	raw, _ := json.Marshal(v)
	return string(raw)
}
