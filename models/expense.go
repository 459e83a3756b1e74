package models

import (
	"time"

	"gorm.io/gorm"
)

// 费用审批状态
const (
	// ExpenseStatusPending 待审批
	ExpenseStatusPending = "pending"
	// ExpenseStatusApproved 已批准：金额已从成本中心余额扣除
	ExpenseStatusApproved = "approved"
	// ExpenseStatusRejected 已驳回：不产生资金变动
	ExpenseStatusRejected = "rejected"
)

// Expense 费用申报模型
// 审批完成后记录不可再修改，只有已批准的费用计入 spent_total
type Expense struct {
	ID           uint            `json:"id" gorm:"primaryKey"`
	CostCenterID uint            `json:"cost_center_id" gorm:"index;not null"`
	CategoryID   uint            `json:"category_id" gorm:"index;not null"`
	Description  string          `json:"description" gorm:"size:255"`
	Amount       float64         `json:"amount" gorm:"type:decimal(12,2);not null"`
	ExpenseDate  time.Time       `json:"expense_date" gorm:"not null"`
	Status       string          `json:"status" gorm:"size:20;not null;default:pending;index"`
	ReviewerID   *uint           `json:"reviewer_id"`
	ReviewNote   string          `json:"review_note" gorm:"size:255"`
	ReviewedAt   *time.Time      `json:"reviewed_at"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	DeletedAt    gorm.DeletedAt  `json:"-" gorm:"index"`
	CostCenter   CostCenter      `json:"-" gorm:"foreignKey:CostCenterID"`
	Category     ExpenseCategory `json:"-" gorm:"foreignKey:CategoryID"`
}

// TableName 设置表名
func (Expense) TableName() string {
	return "expenses"
}
