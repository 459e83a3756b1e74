package service

import (
	"errors"
	"strings"
	"time"

	"costcenter/database"
	"costcenter/models"

	"gorm.io/gorm"
)

// 审批决定
const (
	DecisionApprove = "approve"
	DecisionReject  = "reject"
)

// ExpenseLedger 费用台账
// 费用提交不动余额；批准时在同库事务内扣减余额、累加已支出并翻转费用状态，
// 两条 UPDATE 都带守卫条件，并发审批只有一个能成功
type ExpenseLedger struct{}

// NewExpenseLedger 创建费用台账
func NewExpenseLedger() *ExpenseLedger {
	return &ExpenseLedger{}
}

// SubmitExpense 提交费用申报，初始状态待审批，不产生余额变动
// 仅 active/awaiting_funds 状态的成本中心可以提交
func (l *ExpenseLedger) SubmitExpense(costCenterID, categoryID uint, description string, amount float64, expenseDate time.Time) (*models.Expense, error) {
	if amount <= 0 {
		return nil, &ValidationError{Field: "amount", Msg: "必须大于 0"}
	}
	if categoryID == 0 {
		return nil, &ValidationError{Field: "category_id", Msg: "必须指定费用类别"}
	}
	amount = round2(amount)

	var cc models.CostCenter
	if err := database.DB.First(&cc, costCenterID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Entity: "成本中心", ID: costCenterID}
		}
		return nil, err
	}
	if !cc.AcceptsExpenses() {
		return nil, &InvalidStateError{Op: "提交费用", Status: cc.Status}
	}

	// 校验类别是否存在（来源于数据库）
	var cat models.ExpenseCategory
	if err := database.DB.First(&cat, categoryID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Entity: "费用类别", ID: categoryID}
		}
		return nil, err
	}

	if expenseDate.IsZero() {
		expenseDate = time.Now()
	}

	expense := models.Expense{
		CostCenterID: costCenterID,
		CategoryID:   categoryID,
		Description:  strings.TrimSpace(description),
		Amount:       amount,
		ExpenseDate:  expenseDate,
		Status:       models.ExpenseStatusPending,
	}
	if err := database.DB.Create(&expense).Error; err != nil {
		return nil, err
	}
	return &expense, nil
}

// ReviewExpense 审批一条待审批费用，审批后记录不可再变更
// 批准要求成本中心余额充足；余额不足时费用保持待审批，由人工处理，
// 不会被自动驳回
func (l *ExpenseLedger) ReviewExpense(expenseID uint, decision, note string, reviewerID uint) (*models.Expense, error) {
	var expense models.Expense
	if err := database.DB.First(&expense, expenseID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Entity: "费用记录", ID: expenseID}
		}
		return nil, err
	}
	if expense.Status != models.ExpenseStatusPending {
		return nil, &InvalidTransitionError{
			From:   expense.Status,
			To:     decision,
			Reason: "该费用已完成审批",
		}
	}

	switch decision {
	case DecisionApprove:
		return l.approve(&expense, note, reviewerID)
	case DecisionReject:
		return l.reject(&expense, note, reviewerID)
	default:
		return nil, &ValidationError{Field: "decision", Msg: "只能为 approve 或 reject"}
	}
}

// ListExpenses 分页查询成本中心的费用列表
func (l *ExpenseLedger) ListExpenses(costCenterID uint, status string, page, pageSize int) ([]models.Expense, int64, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 10
	}
	if pageSize > 100 {
		pageSize = 100
	}

	query := database.DB.Model(&models.Expense{}).Where("cost_center_id = ?", costCenterID)
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	query.Count(&total)

	var list []models.Expense
	offset := (page - 1) * pageSize
	if err := query.Order("id DESC").Offset(offset).Limit(pageSize).Find(&list).Error; err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

// approve 批准：同库事务内扣减余额、累加已支出、翻转费用状态
func (l *ExpenseLedger) approve(expense *models.Expense, note string, reviewerID uint) (*models.Expense, error) {
	var cc models.CostCenter
	if err := database.DB.First(&cc, expense.CostCenterID).Error; err != nil {
		return nil, err
	}
	if round2(cc.Balance) < expense.Amount {
		return nil, &InsufficientBalanceError{Requested: expense.Amount, Balance: cc.Balance}
	}

	now := time.Now()
	err := database.DB.Transaction(func(tx *gorm.DB) error {
		// 余额扣减带双重守卫：版本号 + 余额充足，杜绝负余额
		res := tx.Model(&models.CostCenter{}).
			Where("id = ? AND version = ? AND balance >= ?", cc.ID, cc.Version, expense.Amount).
			Updates(map[string]interface{}{
				"balance":     gorm.Expr("balance - ?", expense.Amount),
				"spent_total": gorm.Expr("spent_total + ?", expense.Amount),
				"version":     cc.Version + 1,
				"updated_at":  now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return &ConcurrentModificationError{Entity: "成本中心", ID: cc.ID}
		}

		// 费用状态翻转守卫在待审批上，并发审批的后到者在这里失败
		res = tx.Model(&models.Expense{}).
			Where("id = ? AND status = ?", expense.ID, models.ExpenseStatusPending).
			Updates(map[string]interface{}{
				"status":      models.ExpenseStatusApproved,
				"reviewer_id": reviewerID,
				"review_note": note,
				"reviewed_at": now,
				"updated_at":  now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return &InvalidTransitionError{
				From:   models.ExpenseStatusPending,
				To:     models.ExpenseStatusApproved,
				Reason: "该费用已被其他审批人处理",
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	expense.Status = models.ExpenseStatusApproved
	expense.ReviewerID = &reviewerID
	expense.ReviewNote = note
	expense.ReviewedAt = &now
	return expense, nil
}

// reject 驳回：必须填写理由，不产生资金变动
func (l *ExpenseLedger) reject(expense *models.Expense, note string, reviewerID uint) (*models.Expense, error) {
	note = strings.TrimSpace(note)
	if note == "" {
		return nil, &ValidationError{Field: "note", Msg: "驳回必须填写理由"}
	}

	now := time.Now()
	res := database.DB.Model(&models.Expense{}).
		Where("id = ? AND status = ?", expense.ID, models.ExpenseStatusPending).
		Updates(map[string]interface{}{
			"status":      models.ExpenseStatusRejected,
			"reviewer_id": reviewerID,
			"review_note": note,
			"reviewed_at": now,
			"updated_at":  now,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, &InvalidTransitionError{
			From:   models.ExpenseStatusPending,
			To:     models.ExpenseStatusRejected,
			Reason: "该费用已被其他审批人处理",
		}
	}

	expense.Status = models.ExpenseStatusRejected
	expense.ReviewerID = &reviewerID
	expense.ReviewNote = note
	expense.ReviewedAt = &now
	return expense, nil
}
