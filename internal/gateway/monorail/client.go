package monorail

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"monorail/internal/config"

	"github.com/shopspring/decimal"
)

// Client wraps the Monorail execution venue REST API.
// 响应一律以原始状态码+原始 body 返回，成败判定交给上层分类器。
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
}

// Response 承载一次上游调用的原始结果。
type Response struct {
	Status int
	Body   []byte
}

const maxResponseBytes = 1 << 20

// NewClient constructs a Monorail client from configuration.
func NewClient(cfg config.UpstreamConfig) (*Client, error) {
	raw := strings.TrimSpace(cfg.BaseURL)
	if raw == "" {
		return nil, fmt.Errorf("upstream.base_url 不能为空")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("解析 upstream.base_url 失败: %w", err)
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    parsed,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// SetHTTPClient sets the HTTP client for testing.
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// QuoteParams mirrors Monorail's /v1/quote query schema.
type QuoteParams struct {
	Amount    decimal.Decimal
	FromToken string
	ToToken   string
	Sender    string
	Slippage  int
	Deadline  int
	MaxHops   int
	Source    string
}

// Quote 透传报价查询，不做失败捕获。
func (c *Client) Quote(ctx context.Context, p QuoteParams) (*Response, error) {
	q := url.Values{}
	q.Set("amount", p.Amount.String())
	q.Set("from", p.FromToken)
	q.Set("to", p.ToToken)
	q.Set("slippage", strconv.Itoa(p.Slippage))
	q.Set("deadline", strconv.Itoa(p.Deadline))
	q.Set("max_hops", strconv.Itoa(p.MaxHops))
	if p.Sender != "" {
		q.Set("sender", p.Sender)
	}
	if p.Source != "" {
		q.Set("source", p.Source)
	}
	return c.do(ctx, http.MethodGet, "/v1/quote?"+q.Encode(), nil)
}

// Trade 提交一笔交易，body 为已套用默认值的交易指令。
func (c *Client) Trade(ctx context.Context, pair string, body []byte) (*Response, error) {
	pair = strings.TrimSpace(pair)
	if pair == "" {
		return nil, fmt.Errorf("pair 必填")
	}
	return c.do(ctx, http.MethodPost, "/v1/trade/"+pair, body)
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) (*Response, error) {
	if c == nil || c.httpClient == nil {
		return nil, fmt.Errorf("monorail client 未初始化")
	}
	endpoint, err := c.resolveEndpoint(path)
	if err != nil {
		return nil, err
	}
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), reader)
	if err != nil {
		return nil, fmt.Errorf("构造请求失败: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("调用 monorail 失败: %w", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("读取 monorail 响应失败: %w", err)
	}
	return &Response{Status: resp.StatusCode, Body: data}, nil
}

func (c *Client) resolveEndpoint(path string) (*url.URL, error) {
	if c.baseURL == nil {
		return nil, fmt.Errorf("monorail API 地址未设置")
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
	endpoint := *c.baseURL
	endpoint.Path = strings.TrimRight(endpoint.Path, "/") + trimmed
	endpoint.RawQuery = query
	return &endpoint, nil
}
