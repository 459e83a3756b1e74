package models

import (
	"time"
)

// BudgetAccount 预算账户（外部协作方，每个项目一个）
// 本系统只通过划拨扣减、结项返还增加其余额，从不创建或删除账户
type BudgetAccount struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	ProjectName string    `json:"project_name" gorm:"size:100;not null"`
	Remaining   float64   `json:"remaining" gorm:"type:decimal(12,2);not null;default:0"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName 设置表名
func (BudgetAccount) TableName() string {
	return "budget_accounts"
}
