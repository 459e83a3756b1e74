package models

import (
	"time"
)

// 现金账方向
const (
	// CashDirectionIn 入账（结项返还）
	CashDirectionIn = "in"
	// CashDirectionOut 出账（划拨到成本中心）
	CashDirectionOut = "out"
)

// CashLedgerEntry 现金流水账（外部协作方，只追加）
// 本系统只向该表追加记录，任何代码路径不得修改或删除已有流水；
// 对账时以现金账为资金变动的最终事实依据
type CashLedgerEntry struct {
	ID            uint      `json:"id" gorm:"primaryKey"`
	Direction     string    `json:"direction" gorm:"size:10;not null;index"`
	Amount        float64   `json:"amount" gorm:"type:decimal(12,2);not null"`
	Origin        string    `json:"origin" gorm:"size:100;not null"` // 来源标签，通常为成本中心名称
	EntryDate     time.Time `json:"entry_date" gorm:"not null;index"`
	Note          string    `json:"note" gorm:"size:255"`
	TransferToken string    `json:"transfer_token" gorm:"size:64;index"` // 关联的划拨幂等令牌
	CreatedAt     time.Time `json:"created_at"`
}

// TableName 设置表名
func (CashLedgerEntry) TableName() string {
	return "cash_ledger_entries"
}
