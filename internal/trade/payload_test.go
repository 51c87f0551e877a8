package trade

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestParsePayload_MinimalWithDefaults(t *testing.T) {
	raw := []byte(`{"side":"buy","amount":1.5}`)
	p, err := ParsePayload(raw)
	require.NoError(t, err)

	assert.Equal(t, raw, p.Raw())

	body, err := p.UpstreamBody()
	require.NoError(t, err)
	assert.Equal(t, "buy", gjson.GetBytes(body, "side").String())
	assert.Equal(t, 1.5, gjson.GetBytes(body, "amount").Float())
	assert.Equal(t, int64(50), gjson.GetBytes(body, "slippage").Int())
	assert.Equal(t, int64(60), gjson.GetBytes(body, "deadline").Int())
	assert.Equal(t, int64(3), gjson.GetBytes(body, "max_hops").Int())
}

func TestParsePayload_ExplicitValuesKept(t *testing.T) {
	raw := []byte(`{"side":"sell","amount":2,"sender":"0xdead","slippage":10,"deadline":30,"max_hops":1}`)
	p, err := ParsePayload(raw)
	require.NoError(t, err)

	body, err := p.UpstreamBody()
	require.NoError(t, err)
	assert.Equal(t, int64(10), gjson.GetBytes(body, "slippage").Int())
	assert.Equal(t, int64(30), gjson.GetBytes(body, "deadline").Int())
	assert.Equal(t, int64(1), gjson.GetBytes(body, "max_hops").Int())
	assert.Equal(t, "0xdead", gjson.GetBytes(body, "sender").String())
}

// 未知嵌套字段放行，并出现在转发文档中；原始字节保持逐字节不变。
func TestParsePayload_ExtraNestedFieldsPreserved(t *testing.T) {
	raw := []byte(`{"side":"buy","amount":0.25,"route_hint":{"pools":["a","b"],"weights":[0.3,0.7]}}`)
	p, err := ParsePayload(raw)
	require.NoError(t, err)

	assert.Equal(t, raw, p.Raw())

	body, err := p.UpstreamBody()
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(body, &doc))
	assert.Contains(t, doc, "route_hint")
	assert.Equal(t, "a", gjson.GetBytes(body, "route_hint.pools.0").String())
}

func TestParsePayload_Invalid(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"not json", `side=buy`},
		{"not an object", `[1,2]`},
		{"missing side", `{"amount":1}`},
		{"empty side", `{"side":"  ","amount":1}`},
		{"missing amount", `{"side":"buy"}`},
		{"amount as string", `{"side":"buy","amount":"1.5"}`},
		{"slippage as string", `{"side":"buy","amount":1,"slippage":"50"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParsePayload([]byte(tc.raw))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidPayload)
		})
	}
}
