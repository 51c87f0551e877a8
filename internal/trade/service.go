package trade

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	gwmonorail "monorail/internal/gateway/monorail"
	"monorail/internal/logger"
	"monorail/internal/store"
	"monorail/internal/store/model"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// ErrInvalidPair 标记交易对标识为空。
var ErrInvalidPair = errors.New("invalid pair")

// Upstream 是执行端的最小依赖面。
type Upstream interface {
	Trade(ctx context.Context, pair string, body []byte) (*gwmonorail.Response, error)
}

// Notifier 异构侧信道的统一入口，永不向调用方返回错误。
type Notifier interface {
	Notify(ctx context.Context, rec model.FailedTrade)
}

// Result 是 SubmitTrade 的统一出参。
// Failed=true 表示被分类为交易失败（非服务错误），Error 携带失败原因；
// Failed=false 时 Body 为上游成功响应，原样透传。
type Result struct {
	Failed bool
	Error  string
	Body   []byte
}

// Service 负责交易代理主流程：转发 → 分类 → 落库 → 分发 → 应答。
type Service struct {
	upstream Upstream
	failures store.FailureStore
	notifier Notifier
}

func NewService(upstream Upstream, failures store.FailureStore, notifier Notifier) *Service {
	return &Service{upstream: upstream, failures: failures, notifier: notifier}
}

// SubmitTrade 提交一笔交易。
// 上游网络故障被折算成分类失败；存储故障是请求级致命错误并原样上抛；
// 侧信道分发尽力而为，不影响应答。落库与分发使用与调用方断连无关的
// context，调用方提前断开不会丢记录。
func (s *Service) SubmitTrade(ctx context.Context, pair string, raw []byte) (Result, error) {
	pair = strings.TrimSpace(pair)
	if pair == "" {
		return Result{}, fmt.Errorf("%w: pair 不能为空", ErrInvalidPair)
	}
	payload, err := ParsePayload(raw)
	if err != nil {
		return Result{}, err
	}
	body, err := payload.UpstreamBody()
	if err != nil {
		return Result{}, fmt.Errorf("序列化上游指令失败: %w", err)
	}

	traceID := uuid.NewString()
	var outcome Outcome
	resp, err := s.upstream.Trade(ctx, pair, body)
	if err != nil {
		// 传输层故障按分类失败处理，绝不作为未处理错误抛给调用方。
		outcome = Outcome{Failed: true, Error: fmt.Sprintf("upstream request failed: %v", err)}
	} else {
		outcome = Classify(resp.Status, resp.Body)
	}

	if !outcome.Failed {
		logger.Debugf("交易成功 trace=%s pair=%s", traceID, pair)
		return Result{Body: outcome.Body}, nil
	}

	// 副作用以落库为准，不绑定调用方连接生命周期。
	detached := context.WithoutCancel(ctx)
	rec := model.FailedTrade{
		Pair:      pair,
		Payload:   datatypes.JSON(payload.Raw()),
		Error:     outcome.Error,
		Timestamp: time.Now().UTC(),
	}
	id, err := s.failures.Insert(detached, rec)
	if err != nil {
		return Result{}, fmt.Errorf("持久化失败记录失败 trace=%s: %w", traceID, err)
	}
	rec.ID = id
	logger.Infof("交易失败已落库 trace=%s pair=%s id=%d err=%s", traceID, pair, id, outcome.Error)

	if s.notifier != nil {
		s.notifier.Notify(detached, rec)
	}
	return Result{Failed: true, Error: outcome.Error}, nil
}
