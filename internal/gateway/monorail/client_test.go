package monorail

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"monorail/internal/config"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := NewClient(config.UpstreamConfig{BaseURL: srv.URL, TimeoutSeconds: 2})
	require.NoError(t, err)
	return c, srv
}

func TestNewClient_RequiresBaseURL(t *testing.T) {
	_, err := NewClient(config.UpstreamConfig{})
	require.Error(t, err)
}

func TestTrade_PostsToPairPath(t *testing.T) {
	var gotPath, gotCT string
	var gotBody []byte
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotCT = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"success":true}`))
	})

	resp, err := c.Trade(context.Background(), "ETH-USDC", []byte(`{"side":"buy"}`))
	require.NoError(t, err)
	assert.Equal(t, "/v1/trade/ETH-USDC", gotPath)
	assert.Equal(t, "application/json", gotCT)
	assert.Equal(t, `{"side":"buy"}`, string(gotBody))
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, `{"success":true}`, string(resp.Body))
}

// 非 2xx 不是客户端错误：状态码与 body 原样上交，由分类器裁决。
func TestTrade_NonSuccessStatusIsNotAnError(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"insufficient liquidity"}`))
	})

	resp, err := c.Trade(context.Background(), "ETH-USDC", []byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.Status)
	assert.Equal(t, `{"error":"insufficient liquidity"}`, string(resp.Body))
}

func TestTrade_EmptyPairRejected(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
	_, err := c.Trade(context.Background(), "  ", nil)
	require.Error(t, err)
}

func TestTrade_TransportErrorSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()
	c, err := NewClient(config.UpstreamConfig{BaseURL: srv.URL, TimeoutSeconds: 1})
	require.NoError(t, err)

	_, err = c.Trade(context.Background(), "ETH-USDC", nil)
	require.Error(t, err)
}

func TestQuote_QueryEncoding(t *testing.T) {
	var got map[string][]string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/quote", r.URL.Path)
		got = r.URL.Query()
		w.Write([]byte(`{"quote":"1"}`))
	})

	_, err := c.Quote(context.Background(), QuoteParams{
		Amount:    decimal.RequireFromString("1.5"),
		FromToken: "ETH",
		ToToken:   "USDC",
		Slippage:  50,
		Deadline:  60,
		MaxHops:   3,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"1.5"}, got["amount"])
	assert.Equal(t, []string{"ETH"}, got["from"])
	assert.Equal(t, []string{"USDC"}, got["to"])
	assert.Equal(t, []string{"50"}, got["slippage"])
	assert.NotContains(t, got, "sender")
	assert.NotContains(t, got, "source")
}

func TestResolveEndpoint_JoinsBasePath(t *testing.T) {
	c, err := NewClient(config.UpstreamConfig{BaseURL: "http://example.com/gateway/"})
	require.NoError(t, err)

	endpoint, err := c.resolveEndpoint("/v1/trade/ETH-USDC")
	require.NoError(t, err)
	assert.Equal(t, "http://example.com/gateway/v1/trade/ETH-USDC", endpoint.String())
}
