package models

import (
	"time"
)

// 工作流事件类型
const (
	EventCostCenterActivated = "activated"
	EventCostCenterFinalized = "finalized"
	EventCostCenterApproved  = "approved"
	EventCostCenterRejected  = "rejected"
	EventCostCenterCancelled = "cancelled"
	EventFundsRequested      = "funds_requested"
	EventFundsReceived       = "funds_received"
)

// WorkflowEvent 工作流事件
// 核心只负责记录事件，推送/展示由协作方自行消费
type WorkflowEvent struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	CostCenterID uint      `json:"cost_center_id" gorm:"index;not null"`
	Type         string    `json:"type" gorm:"size:30;not null;index"`
	ActorID      uint      `json:"actor_id" gorm:"index"`
	Note         string    `json:"note" gorm:"size:255"`
	CreatedAt    time.Time `json:"created_at"`
}

// TableName 设置表名
func (WorkflowEvent) TableName() string {
	return "workflow_events"
}
