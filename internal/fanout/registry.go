package fanout

import (
	"fmt"
	"net/url"
	"strings"
	"sync"
)

// Registry 保存订阅失败事件的 webhook 地址。
// 生命周期与服务实例一致，不持久化；重复注册不会去重。
type Registry struct {
	mu   sync.RWMutex
	urls []string
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Register 追加一个订阅地址，要求是绝对 http(s) URL。
func (r *Registry) Register(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("url 不能为空")
	}
	parsed, err := url.ParseRequestURI(raw)
	if err != nil {
		return "", fmt.Errorf("url 无效: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", fmt.Errorf("url 必须是 http 或 https 地址")
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("url 缺少主机名")
	}
	r.mu.Lock()
	r.urls = append(r.urls, raw)
	r.mu.Unlock()
	return raw, nil
}

// Snapshot 返回当前订阅列表的拷贝，供迭代投递使用。
func (r *Registry) Snapshot() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.urls))
	copy(out, r.urls)
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.urls)
}
