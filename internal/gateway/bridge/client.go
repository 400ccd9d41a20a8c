package bridge

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	bcfg "bastion/internal/config"
	"bastion/internal/gateway/exchange"
	"bastion/internal/pkg/convert"

	"github.com/tidwall/gjson"
)

// Client wraps the bridge REST API interactions required by bastion.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	username   string
	password   string
	token      string
}

var errStrategyNotFound = errors.New("bridge strategy not found")

// NewClient constructs a bridge client from configuration.
func NewClient(cfg bcfg.BridgeConfig) (*Client, error) {
	if !cfg.Enabled {
		return nil, fmt.Errorf("bridge is disabled")
	}
	raw := strings.TrimSpace(cfg.APIURL)
	if raw == "" {
		return nil, fmt.Errorf("bridge.api_url cannot be empty")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing bridge.api_url failed: %w", err)
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.InsecureSkipVerify {
		if transport.TLSClientConfig == nil {
			transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} // #nosec G402
		} else {
			transport.TLSClientConfig.InsecureSkipVerify = true // #nosec G402
		}
	}
	httpClient := &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
	return &Client{
		baseURL:    parsed,
		httpClient: httpClient,
		username:   strings.TrimSpace(cfg.Username),
		password:   strings.TrimSpace(cfg.Password),
		token:      strings.TrimSpace(cfg.APIToken),
	}, nil
}

// SetHTTPClient sets the HTTP client for testing.
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// ExecutePayload mirrors the bridge's /execute schema.
type ExecutePayload struct {
	SignalID   string   `json:"signal_id"`
	StrategyID string   `json:"strategy_id,omitempty"`
	Pair       string   `json:"pair"`
	Side       string   `json:"side"`
	Price      *float64 `json:"price,omitempty"`
	Confidence float64  `json:"confidence,omitempty"`
	Source     string   `json:"source,omitempty"`
}

// ExecuteResponse contains the order identifiers returned by the bridge.
type ExecuteResponse struct {
	OrderID   string  `json:"order_id"`
	FilledQty float64 `json:"filled_qty"`
	AvgPrice  float64 `json:"avg_price"`
}

// Execute submits a signal for execution on the bridge.
func (c *Client) Execute(ctx context.Context, payload ExecutePayload) (*ExecuteResponse, error) {
	var resp ExecuteResponse
	if err := c.doRequest(ctx, http.MethodPost, "/execute", payload, &resp); err != nil {
		return nil, err
	}
	if strings.TrimSpace(resp.OrderID) == "" {
		return nil, fmt.Errorf("bridge returned no order_id")
	}
	return &resp, nil
}

// Connections fetches the bridge's view of its logical connections.
// Payload shape varies across bridge versions, so fields are read
// leniently.
func (c *Client) Connections(ctx context.Context) (map[string]exchange.ConnectionDescriptor, error) {
	var raw json.RawMessage
	if err := c.doRequest(ctx, http.MethodGet, "/connections", nil, &raw); err != nil {
		return nil, err
	}
	out := make(map[string]exchange.ConnectionDescriptor)
	if len(raw) == 0 {
		return out, nil
	}
	root := gjson.ParseBytes(raw)
	list := root
	if root.IsObject() {
		for _, key := range []string{"connections", "data", "result", "items"} {
			if v := root.Get(key); v.Exists() {
				list = v
				break
			}
		}
	}
	list.ForEach(func(_, item gjson.Result) bool {
		desc := parseConnection(item)
		if desc.InstanceID != "" {
			out[desc.InstanceID] = desc
		}
		return true
	})
	return out, nil
}

func parseConnection(item gjson.Result) exchange.ConnectionDescriptor {
	desc := exchange.ConnectionDescriptor{
		InstanceID: strings.TrimSpace(item.Get("instance_id").String()),
		Status:     exchange.ConnectionStatus(strings.ToLower(strings.TrimSpace(item.Get("status").String()))),
		APIVersion: strings.TrimSpace(item.Get("api_version").String()),
		Endpoint:   strings.TrimSpace(item.Get("endpoint").String()),
	}
	if desc.InstanceID == "" {
		desc.InstanceID = strings.TrimSpace(item.Get("id").String())
	}
	hb := item.Get("last_heartbeat")
	switch {
	case hb.Type == gjson.String:
		desc.LastHeartbeat = parseBridgeTime(hb.String())
	case hb.Exists():
		// epoch millis
		if ms := hb.Int(); ms > 0 {
			desc.LastHeartbeat = time.UnixMilli(ms)
		}
	}
	return desc
}

// StrategyState fetches the authoritative execution record for one
// strategy.
func (c *Client) StrategyState(ctx context.Context, strategyID string) (*exchange.StrategyExecutionRecord, error) {
	strategyID = strings.TrimSpace(strategyID)
	if strategyID == "" {
		return nil, fmt.Errorf("strategy id required")
	}
	var raw json.RawMessage
	path := "/strategies/" + url.PathEscape(strategyID)
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &raw); err != nil {
		return nil, err
	}
	root := gjson.ParseBytes(raw)
	if !root.Exists() || root.Type == gjson.Null {
		return nil, errStrategyNotFound
	}
	if v := root.Get("strategy"); v.Exists() {
		root = v
	}
	rec := &exchange.StrategyExecutionRecord{
		StrategyID:  strategyID,
		TotalTrades: root.Get("total_trades").Int(),
		TotalVolume: root.Get("total_volume").Float(),
		TotalPnL:    root.Get("total_pnl").Float(),
		FillRate:    root.Get("fill_rate").Float(),
		MaxDrawdown: root.Get("max_drawdown").Float(),
	}
	if params := root.Get("parameters"); params.IsObject() {
		rec.Parameters = make(map[string]float64)
		params.ForEach(func(key, val gjson.Result) bool {
			rec.Parameters[key.String()] = convert.ToFloat64(val.Value())
			return true
		})
	}
	if v := root.Get("updated_at"); v.Exists() {
		if v.Type == gjson.String {
			rec.UpdatedAt = parseBridgeTime(v.String())
		} else if ms := v.Int(); ms > 0 {
			rec.UpdatedAt = time.UnixMilli(ms)
		}
	}
	return rec, nil
}

// Trade mirrors the subset of bridge trade fields used for
// consistency checks.
type Trade struct {
	TradeID    string  `json:"trade_id"`
	OrderID    string  `json:"order_id"`
	StrategyID string  `json:"strategy_id"`
	Pair       string  `json:"pair"`
	Side       string  `json:"side"`
	Amount     float64 `json:"amount"`
	Price      float64 `json:"price"`
	ExecutedAt string  `json:"executed_at"`
}

// ListTrades fetches the bridge's executed trades.
func (c *Client) ListTrades(ctx context.Context) ([]Trade, error) {
	var raw json.RawMessage
	if err := c.doRequest(ctx, http.MethodGet, "/trades", nil, &raw); err != nil {
		return nil, err
	}
	if len(raw) == 0 || string(bytes.TrimSpace(raw)) == "null" {
		return nil, nil
	}
	var trades []Trade
	if err := json.Unmarshal(raw, &trades); err == nil {
		return trades, nil
	}
	type tradeEnvelope struct {
		Trades []Trade `json:"trades"`
		Data   []Trade `json:"data"`
		Result []Trade `json:"result"`
	}
	var env tradeEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("cannot parse bridge trades response: %w", err)
	}
	switch {
	case len(env.Trades) > 0:
		return env.Trades, nil
	case len(env.Data) > 0:
		return env.Data, nil
	case len(env.Result) > 0:
		return env.Result, nil
	default:
		return nil, nil
	}
}

// Ping probes /health and returns the descriptor the bridge reports
// for the given instance. Used as the recovery connection factory.
func (c *Client) Ping(ctx context.Context, instanceID string) (*exchange.ConnectionDescriptor, error) {
	if err := c.doRequest(ctx, http.MethodGet, "/health", nil, nil); err != nil {
		return nil, err
	}
	conns, err := c.Connections(ctx)
	if err != nil {
		return nil, err
	}
	if desc, ok := conns[instanceID]; ok {
		return &desc, nil
	}
	return nil, fmt.Errorf("bridge reports no connection for instance %s", instanceID)
}

func (c *Client) doRequest(ctx context.Context, method, path string, payload any, out any) error {
	if c == nil {
		return fmt.Errorf("bridge client not initialized")
	}
	endpoint, err := c.resolveEndpoint(path)
	if err != nil {
		return err
	}

	var body io.Reader
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encoding request failed: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), body)
	if err != nil {
		return fmt.Errorf("building request failed: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	} else if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("calling bridge failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if len(data) == 0 {
			return fmt.Errorf("bridge returned error: %s", resp.Status)
		}
		return fmt.Errorf("bridge returned error (%s): %s", resp.Status, strings.TrimSpace(string(data)))
	}
	if out == nil {
		return nil
	}
	dec := json.NewDecoder(resp.Body)
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("decoding bridge response failed: %w", err)
	}
	return nil
}

func (c *Client) resolveEndpoint(path string) (*url.URL, error) {
	if c.baseURL == nil {
		return nil, fmt.Errorf("bridge API URL not set")
	}
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		trimmed = "/"
	}
	query := ""
	if idx := strings.Index(trimmed, "?"); idx >= 0 {
		query = trimmed[idx+1:]
		trimmed = trimmed[:idx]
	}
	if !strings.HasPrefix(trimmed, "/") {
		trimmed = "/" + trimmed
	}
	base := *c.baseURL
	base.Path = strings.TrimSuffix(base.Path, "/") + trimmed
	base.RawPath = ""
	base.RawQuery = query
	base.Fragment = ""
	return &base, nil
}

func parseBridgeTime(raw string) time.Time {
	layouts := []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02T15:04:05"}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t
		}
	}
	return time.Time{}
}
