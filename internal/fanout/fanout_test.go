package fanout

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"monorail/internal/store/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

type captureSink struct {
	mu     sync.Mutex
	bodies [][]byte
	status int
	srv    *httptest.Server
}

func newCaptureSink(status int) *captureSink {
	s := &captureSink{status: status}
	s.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		s.mu.Lock()
		s.bodies = append(s.bodies, body)
		s.mu.Unlock()
		w.WriteHeader(s.status)
	}))
	return s
}

func (s *captureSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.bodies)
}

type failingChat struct{ calls int }

func (f *failingChat) SendText(text string) error {
	f.calls++
	return fmt.Errorf("chat down")
}

type captureChat struct{ texts []string }

func (c *captureChat) SendText(text string) error {
	c.texts = append(c.texts, text)
	return nil
}

func testRecord() model.FailedTrade {
	return model.FailedTrade{
		ID:        7,
		Pair:      "ETH-USDC",
		Payload:   datatypes.JSON(`{"side":"buy","amount":1.5}`),
		Error:     "insufficient liquidity",
		Timestamp: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

// 两个端点各收到恰好一次投递，内容是完整记录。
func TestNotify_DeliversFullRecordToEachEndpoint(t *testing.T) {
	a := newCaptureSink(http.StatusOK)
	defer a.srv.Close()
	b := newCaptureSink(http.StatusOK)
	defer b.srv.Close()

	reg := NewRegistry()
	_, err := reg.Register(a.srv.URL)
	require.NoError(t, err)
	_, err = reg.Register(b.srv.URL)
	require.NoError(t, err)

	f := New(nil, reg, time.Second)
	f.Notify(context.Background(), testRecord())

	require.Equal(t, 1, a.count())
	require.Equal(t, 1, b.count())

	var got model.FailedTrade
	require.NoError(t, json.Unmarshal(a.bodies[0], &got))
	assert.Equal(t, int64(7), got.ID)
	assert.Equal(t, "ETH-USDC", got.Pair)
	assert.Equal(t, "insufficient liquidity", got.Error)
	assert.JSONEq(t, `{"side":"buy","amount":1.5}`, string(got.Payload))
}

// 单个端点故障不影响其余端点。
func TestNotify_SinkFaultIsIsolated(t *testing.T) {
	dead := newCaptureSink(http.StatusInternalServerError)
	dead.srv.Close() // 连接直接拒绝

	alive := newCaptureSink(http.StatusOK)
	defer alive.srv.Close()

	reg := NewRegistry()
	_, err := reg.Register(dead.srv.URL)
	require.NoError(t, err)
	_, err = reg.Register(alive.srv.URL)
	require.NoError(t, err)

	f := New(nil, reg, time.Second)
	f.Notify(context.Background(), testRecord())

	assert.Equal(t, 1, alive.count())
}

// 聊天通道故障不影响 webhook 投递，也不上抛。
func TestNotify_ChatFaultDoesNotBlockWebhooks(t *testing.T) {
	sink := newCaptureSink(http.StatusOK)
	defer sink.srv.Close()

	reg := NewRegistry()
	_, err := reg.Register(sink.srv.URL)
	require.NoError(t, err)

	chat := &failingChat{}
	f := New(chat, reg, time.Second)
	f.Notify(context.Background(), testRecord())

	assert.Equal(t, 1, chat.calls)
	assert.Equal(t, 1, sink.count())
}

func TestNotify_ChatSummaryContainsPairAndError(t *testing.T) {
	chat := &captureChat{}
	f := New(chat, NewRegistry(), time.Second)
	f.Notify(context.Background(), testRecord())

	require.Len(t, chat.texts, 1)
	assert.Contains(t, chat.texts[0], "ETH-USDC")
	assert.Contains(t, chat.texts[0], "insufficient liquidity")
}

func TestNotify_NoSinksIsNoop(t *testing.T) {
	f := New(nil, NewRegistry(), time.Second)
	// 不应 panic，也没有任何可观测副作用
	f.Notify(context.Background(), testRecord())
}

// 慢端点受单次投递超时约束，不会无限拖住 Notify。
func TestNotify_SlowSinkIsBounded(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// 必须先读完 body：否则服务端不会启动后台读，客户端断开时
		// r.Context() 不会取消，handler 永久阻塞导致 srv.Close() 死锁。
		io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	}))
	defer slow.Close()

	reg := NewRegistry()
	_, err := reg.Register(slow.URL)
	require.NoError(t, err)

	f := New(nil, reg, 100*time.Millisecond)
	start := time.Now()
	f.Notify(context.Background(), testRecord())
	assert.Less(t, time.Since(start), 2*time.Second)
}
