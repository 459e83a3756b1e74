package service

import (
	"errors"
	"strings"
	"time"

	"costcenter/database"
	"costcenter/models"

	"gorm.io/gorm"
)

// costCenterTransitions 成本中心状态机
// pending -> active（首笔划拨触发，仅一次）
// active <-> awaiting_funds（申请资金/收到资金的信息性切换）
// active/awaiting_funds -> under_review（封账）
// under_review -> finalized（审批通过，余额返还预算，不可逆）
// under_review -> active（驳回，重新放开费用提交）
// 任意非终态 -> cancelled（管理操作）
var costCenterTransitions = map[string][]string{
	models.CostCenterStatusPending: {
		models.CostCenterStatusActive,
		models.CostCenterStatusCancelled,
	},
	models.CostCenterStatusActive: {
		models.CostCenterStatusAwaitingFunds,
		models.CostCenterStatusUnderReview,
		models.CostCenterStatusCancelled,
	},
	models.CostCenterStatusAwaitingFunds: {
		models.CostCenterStatusActive,
		models.CostCenterStatusUnderReview,
		models.CostCenterStatusCancelled,
	},
	models.CostCenterStatusUnderReview: {
		models.CostCenterStatusFinalized,
		models.CostCenterStatusActive,
		models.CostCenterStatusCancelled,
	},
}

// CanTransition 判断状态流转是否合法
func CanTransition(from, to string) bool {
	for _, t := range costCenterTransitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// Registry 成本中心登记处，持有聚合及其状态机
// 所有状态变更都经过版本号守卫，绕过登记处的写入路径不存在
type Registry struct{}

// NewRegistry 创建成本中心登记处
func NewRegistry() *Registry {
	return &Registry{}
}

// CreateCostCenter 创建成本中心，初始状态 pending
// 通过外键显式关联预算账户，allocated_budget 记录创建时的预算余额快照
func (r *Registry) CreateCostCenter(title, clientName string, budgetAccountID, responsibleID uint) (*models.CostCenter, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, &ValidationError{Field: "title", Msg: "不能为空"}
	}
	if budgetAccountID == 0 {
		return nil, &ValidationError{Field: "budget_account_id", Msg: "必须指定预算账户"}
	}

	var acct models.BudgetAccount
	if err := database.DB.First(&acct, budgetAccountID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Entity: "预算账户", ID: budgetAccountID}
		}
		return nil, &GatewayUnavailableError{Op: "query_budget_account", Err: err}
	}

	cc := models.CostCenter{
		Title:           title,
		ClientName:      strings.TrimSpace(clientName),
		Status:          models.CostCenterStatusPending,
		AllocatedBudget: acct.Remaining,
		BudgetAccountID: budgetAccountID,
		ResponsibleID:   responsibleID,
	}
	if err := database.DB.Create(&cc).Error; err != nil {
		return nil, err
	}
	return &cc, nil
}

// GetCostCenter 获取成本中心（含余额、已支出、状态、版本号）
func (r *Registry) GetCostCenter(id uint) (*models.CostCenter, error) {
	var cc models.CostCenter
	if err := database.DB.First(&cc, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Entity: "成本中心", ID: id}
		}
		return nil, err
	}
	return &cc, nil
}

// ListCostCenters 分页查询成本中心列表
func (r *Registry) ListCostCenters(page, pageSize int, status string) ([]models.CostCenter, int64, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 10
	}
	if pageSize > 100 {
		pageSize = 100
	}

	query := database.DB.Model(&models.CostCenter{})
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	query.Count(&total)

	var list []models.CostCenter
	offset := (page - 1) * pageSize
	if err := query.Order("id DESC").Offset(offset).Limit(pageSize).Find(&list).Error; err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

// Transition 执行一次版本号守卫的状态流转
// extra 中的字段随状态一并更新；版本不匹配返回 ConcurrentModificationError，
// 非法流转返回 InvalidTransitionError，两种情况下存储状态均保持不变
func (r *Registry) Transition(db *gorm.DB, cc *models.CostCenter, to string, extra map[string]interface{}) error {
	if !CanTransition(cc.Status, to) {
		return &InvalidTransitionError{From: cc.Status, To: to}
	}

	updates := map[string]interface{}{
		"status":     to,
		"version":    cc.Version + 1,
		"updated_at": time.Now(),
	}
	for k, v := range extra {
		updates[k] = v
	}

	res := db.Model(&models.CostCenter{}).
		Where("id = ? AND version = ?", cc.ID, cc.Version).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return &ConcurrentModificationError{Entity: "成本中心", ID: cc.ID}
	}

	cc.Status = to
	cc.Version++
	return nil
}

// CountPendingExpenses 统计待审批费用数量，封账与审批通过前的守卫条件
func (r *Registry) CountPendingExpenses(costCenterID uint) (int64, error) {
	var count int64
	err := database.DB.Model(&models.Expense{}).
		Where("cost_center_id = ? AND status = ?", costCenterID, models.ExpenseStatusPending).
		Count(&count).Error
	return count, err
}
