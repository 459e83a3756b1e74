package models

import (
	"time"
)

// 划拨记录状态
const (
	// TransferStatusReserved 令牌占位，三步写入尚未完成
	TransferStatusReserved = "reserved"
	// TransferStatusCommitted 三步写入全部完成
	TransferStatusCommitted = "committed"
	// TransferStatusPartial 部分写入：三步中后段失败且无法补偿，等待对账修复
	TransferStatusPartial = "partial"
)

// 划拨方向
const (
	// TransferKindIn 预算 -> 成本中心
	TransferKindIn = "in"
	// TransferKindReversal 结项/取消时成本中心余额返还预算
	TransferKindReversal = "reversal"
)

// FundTransfer 资金划拨记录
// Token 为幂等令牌，唯一索引保证同一令牌绝不重复入账；
// 重放同一令牌的调用返回原记录，不再产生任何资金变动
type FundTransfer struct {
	ID              uint      `json:"id" gorm:"primaryKey"`
	Token           string    `json:"token" gorm:"size:64;not null;uniqueIndex"`
	CostCenterID    uint      `json:"cost_center_id" gorm:"index;not null"`
	BudgetAccountID uint      `json:"budget_account_id" gorm:"index;not null"`
	Kind            string    `json:"kind" gorm:"size:20;not null;default:in"`
	Amount          float64   `json:"amount" gorm:"type:decimal(12,2);not null"`
	CashEntryID     uint      `json:"cash_entry_id"`
	Status          string    `json:"status" gorm:"size:20;not null;default:reserved;index"`
	FailureReason   string    `json:"failure_reason,omitempty" gorm:"size:255"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// TableName 设置表名
func (FundTransfer) TableName() string {
	return "fund_transfers"
}
