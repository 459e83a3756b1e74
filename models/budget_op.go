package models

import (
	"time"
)

// 预算账户操作类型
const (
	BudgetOpDebit  = "debit"
	BudgetOpCredit = "credit"
)

// BudgetOperation 预算账户的操作去重记录
// 每次成功的扣减/返还按操作令牌落一条记录，唯一索引保证同一令牌
// 重试时不会重复作用于账户余额；只有成功的操作才会被记录，
// 业务拒绝（余额不足）不消耗令牌
type BudgetOperation struct {
	ID              uint      `json:"id" gorm:"primaryKey"`
	Token           string    `json:"token" gorm:"size:70;not null;uniqueIndex"`
	BudgetAccountID uint      `json:"budget_account_id" gorm:"index;not null"`
	Kind            string    `json:"kind" gorm:"size:10;not null"`
	Amount          float64   `json:"amount" gorm:"type:decimal(12,2);not null"`
	CreatedAt       time.Time `json:"created_at"`
}

// TableName 设置表名
func (BudgetOperation) TableName() string {
	return "budget_operations"
}
