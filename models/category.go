package models

import (
	"time"

	"gorm.io/gorm"
)

// ExpenseCategory 费用申报类别
// 首次启动时写入默认类别，费用提交必须挂在已存在的类别上
type ExpenseCategory struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	Name      string         `json:"name" gorm:"size:50;not null;uniqueIndex"`
	Sort      int            `json:"sort" gorm:"default:0;index"` // 列表展示顺序，越小越靠前
	Color     string         `json:"color" gorm:"size:20;default:#64748b"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

// TableName 设置表名
func (ExpenseCategory) TableName() string {
	return "expense_categories"
}
