package store

import (
	"context"
	"errors"

	"monorail/internal/store/model"
)

// ErrStorage 标记持久层不可用或写入失败，调用方据此返回服务级错误。
var ErrStorage = errors.New("storage fault")

// FailureStore 持有失败交易记录的唯一写入与读取入口。
type FailureStore interface {
	// Insert 原子写入一条失败记录并返回自增 id。
	Insert(ctx context.Context, rec model.FailedTrade) (int64, error)
	// ListAll 按 timestamp 倒序（同刻按 id 倒序）返回全部记录。
	ListAll(ctx context.Context) ([]model.FailedTrade, error)
	Close() error
}
