package server

import (
	"errors"
	"io"
	"net/http"

	"monorail/internal/fanout"
	gwmonorail "monorail/internal/gateway/monorail"
	"monorail/internal/logger"
	"monorail/internal/store"
	"monorail/internal/store/model"
	"monorail/internal/trade"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// Router 暴露交易网关的对外接口。
type Router struct {
	Trades   *trade.Service
	Quotes   QuoteClient
	Failures store.FailureStore
	Registry *fanout.Registry
}

const maxTradeBodyBytes = 1 << 20

// Register 挂载全部路由。
func (r *Router) Register(engine *gin.Engine) {
	if engine == nil {
		return
	}
	if r.Quotes != nil {
		engine.GET("/quote", r.handleQuote)
	}
	engine.POST("/trade/:pair", r.handleTrade)
	engine.GET("/failed-trades", r.handleFailedTrades)
	engine.POST("/webhooks/register", r.handleRegisterWebhook)
}

type quoteQuery struct {
	Amount    string `form:"amount" binding:"required"`
	FromToken string `form:"from" binding:"required"`
	ToToken   string `form:"to" binding:"required"`
	Sender    string `form:"sender"`
	Slippage  *int   `form:"slippage"`
	Deadline  *int   `form:"deadline"`
	MaxHops   *int   `form:"max_hops"`
	Source    string `form:"source"`
}

// handleQuote 纯透传：上游报价原样返回，不做失败捕获。
func (r *Router) handleQuote(c *gin.Context) {
	var q quoteQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	amount, err := decimal.NewFromString(q.Amount)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "amount 必须是数值"})
		return
	}
	params := gwmonorail.QuoteParams{
		Amount:    amount,
		FromToken: q.FromToken,
		ToToken:   q.ToToken,
		Sender:    q.Sender,
		Slippage:  50,
		Deadline:  60,
		MaxHops:   3,
		Source:    q.Source,
	}
	if q.Slippage != nil {
		params.Slippage = *q.Slippage
	}
	if q.Deadline != nil {
		params.Deadline = *q.Deadline
	}
	if q.MaxHops != nil {
		params.MaxHops = *q.MaxHops
	}
	resp, err := r.Quotes.Quote(c.Request.Context(), params)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.Data(resp.Status, "application/json", resp.Body)
}

// handleTrade 代理交易提交。
// 分类失败返回 {status:"failed",error}；存储等内部故障返回 500，
// 形态与交易失败应答可区分。
func (r *Router) handleTrade(c *gin.Context) {
	pair := c.Param("pair")
	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxTradeBodyBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "读取请求体失败"})
		return
	}
	res, err := r.Trades.SubmitTrade(c.Request.Context(), pair, raw)
	switch {
	case errors.Is(err, trade.ErrInvalidPayload), errors.Is(err, trade.ErrInvalidPair):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case err != nil:
		logger.Errorf("SubmitTrade 内部错误 pair=%s: %v", pair, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if res.Failed {
		c.JSON(http.StatusOK, gin.H{"status": "failed", "error": res.Error})
		return
	}
	c.Data(http.StatusOK, "application/json", res.Body)
}

// handleFailedTrades 返回全部失败记录，最近的在前。
func (r *Router) handleFailedTrades(c *gin.Context) {
	recs, err := r.Failures.ListAll(c.Request.Context())
	if err != nil {
		logger.Errorf("查询失败记录出错: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch trades"})
		return
	}
	if recs == nil {
		recs = []model.FailedTrade{}
	}
	c.JSON(http.StatusOK, gin.H{"failed_trades": recs})
}

type registerRequest struct {
	URL string `json:"url" binding:"required"`
}

// handleRegisterWebhook 追加一个订阅端点，无注销操作。
func (r *Router) handleRegisterWebhook(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	registered, err := r.Registry.Register(req.URL)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"registered": registered})
}
