package model

import (
	"time"

	"gorm.io/datatypes"
)

// FailedTrade 是一条落库的失败交易记录。
// Payload 原样保存提交时的请求文档，存储层不做任何改写。
type FailedTrade struct {
	ID        int64          `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Pair      string         `gorm:"column:pair;index" json:"pair"`
	Payload   datatypes.JSON `gorm:"column:payload;type:TEXT" json:"payload"`
	Error     string         `gorm:"column:error" json:"error"`
	Timestamp time.Time      `gorm:"column:timestamp;index" json:"timestamp"`
}

func (FailedTrade) TableName() string { return "failed_trades" }
