package models

import (
	"time"

	"gorm.io/gorm"
)

// 成本中心状态
const (
	// CostCenterStatusPending 待启用：已创建但尚未收到首笔划拨
	CostCenterStatusPending = "pending"
	// CostCenterStatusActive 进行中：可提交费用、可划拨资金
	CostCenterStatusActive = "active"
	// CostCenterStatusAwaitingFunds 待拨款：负责人已申请资金，等待划拨
	CostCenterStatusAwaitingFunds = "awaiting_funds"
	// CostCenterStatusUnderReview 审核中：已封账，禁止提交新费用
	CostCenterStatusUnderReview = "under_review"
	// CostCenterStatusFinalized 已结项：余额已返还预算，终态
	CostCenterStatusFinalized = "finalized"
	// CostCenterStatusCancelled 已取消：管理操作，终态
	CostCenterStatusCancelled = "cancelled"
)

// CostCenter 成本中心模型
// 通过 BudgetAccountID 外键关联预算账户，不依赖名称匹配
type CostCenter struct {
	ID              uint           `json:"id" gorm:"primaryKey"`
	Title           string         `json:"title" gorm:"size:100;not null"`
	ClientName      string         `json:"client_name" gorm:"size:100"`
	Status          string         `json:"status" gorm:"size:20;not null;default:pending;index"`
	AllocatedBudget float64        `json:"allocated_budget" gorm:"type:decimal(12,2);default:0"` // 项目计划金额副本，仅展示用
	Balance         float64        `json:"balance" gorm:"type:decimal(12,2);not null;default:0"` // 当前可用余额，任何时刻 >= 0
	SpentTotal      float64        `json:"spent_total" gorm:"type:decimal(12,2);not null;default:0"`
	BudgetAccountID uint           `json:"budget_account_id" gorm:"index;not null"`
	ResponsibleID   uint           `json:"responsible_id" gorm:"index;not null"`
	Version         uint           `json:"version" gorm:"not null;default:0"` // 乐观锁版本号，每次已提交写入严格递增
	ReviewNote      string         `json:"review_note" gorm:"size:255"`       // 最近一次驳回理由
	FinalizedAt     *time.Time     `json:"finalized_at"`
	ApprovedAt      *time.Time     `json:"approved_at"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `json:"-" gorm:"index"`
	BudgetAccount   BudgetAccount  `json:"-" gorm:"foreignKey:BudgetAccountID"`
}

// TableName 设置表名
func (CostCenter) TableName() string {
	return "cost_centers"
}

// IsTerminal 是否处于终态
func (cc *CostCenter) IsTerminal() bool {
	return cc.Status == CostCenterStatusFinalized || cc.Status == CostCenterStatusCancelled
}

// AcceptsFunds 当前状态是否允许接收资金划拨
func (cc *CostCenter) AcceptsFunds() bool {
	switch cc.Status {
	case CostCenterStatusPending, CostCenterStatusActive, CostCenterStatusAwaitingFunds:
		return true
	}
	return false
}

// AcceptsExpenses 当前状态是否允许提交费用
func (cc *CostCenter) AcceptsExpenses() bool {
	return cc.Status == CostCenterStatusActive || cc.Status == CostCenterStatusAwaitingFunds
}
