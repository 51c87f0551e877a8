package fanout

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"monorail/internal/gateway/notifier"
	"monorail/internal/logger"
	"monorail/internal/store/model"

	"golang.org/x/sync/errgroup"
)

// 中文说明：
// Fanout 把一条失败记录分发到聊天通道与全部已注册的 webhook。
// 每个投递目标相互隔离：单个目标超时/报错只记日志，不影响其余目标，
// 也永远不把错误抛回交易调用方。每个目标仅尝试一次。

type Fanout struct {
	chat    notifier.TextNotifier
	reg     *Registry
	client  *http.Client
	timeout time.Duration
}

// New 构造 Fanout。chat 可以为 nil（聊天通道关闭时）。
func New(chat notifier.TextNotifier, reg *Registry, timeout time.Duration) *Fanout {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Fanout{
		chat:    chat,
		reg:     reg,
		client:  &http.Client{Timeout: timeout},
		timeout: timeout,
	}
}

// Notify 投递一条失败记录，永不返回错误。
func (f *Fanout) Notify(ctx context.Context, rec model.FailedTrade) {
	f.notifyChat(rec)
	f.notifyWebhooks(ctx, rec)
}

func (f *Fanout) notifyChat(rec model.FailedTrade) {
	if f.chat == nil {
		return
	}
	defer recoverSink("chat")
	text := fmt.Sprintf("❌ 交易失败：%s\n错误：%s", rec.Pair, rec.Error)
	if err := f.chat.SendText(text); err != nil {
		logger.Warnf("聊天通道推送失败(%s): %v", rec.Pair, err)
	}
}

func (f *Fanout) notifyWebhooks(ctx context.Context, rec model.FailedTrade) {
	if f.reg == nil {
		return
	}
	urls := f.reg.Snapshot()
	if len(urls) == 0 {
		return
	}
	body, err := json.Marshal(rec)
	if err != nil {
		logger.Warnf("序列化失败记录失败(id=%d): %v", rec.ID, err)
		return
	}
	var group errgroup.Group
	for _, u := range urls {
		u := u
		group.Go(func() error {
			defer recoverSink(u)
			f.deliver(ctx, u, body)
			return nil
		})
	}
	_ = group.Wait()
}

func (f *Fanout) deliver(ctx context.Context, endpoint string, body []byte) {
	cctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(cctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		logger.Warnf("webhook 构造请求失败(%s): %v", endpoint, err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := f.client.Do(req)
	if err != nil {
		logger.Warnf("webhook 推送失败(%s): %v", endpoint, err)
		return
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		logger.Warnf("webhook 返回非 2xx(%s): status=%d", endpoint, resp.StatusCode)
	}
}

func recoverSink(tag string) {
	if r := recover(); r != nil {
		logger.Errorf("notify sink panic(%s): %v", tag, r)
	}
}
