package service

import (
	"errors"

	"costcenter/models"

	"gorm.io/gorm"
)

// LedgerGateway 预算账户与现金流水账两个外部存储的薄封装
// 预算账户的扣减/返还都以操作令牌为幂等键：同一令牌重试直接成功，
// 不会重复作用于余额。预算扣减用单条带条件的 UPDATE 完成，
// 余额不足时不产生任何写入；现金账只允许追加
type LedgerGateway struct{}

// NewLedgerGateway 创建账务网关
func NewLedgerGateway() *LedgerGateway {
	return &LedgerGateway{}
}

// DebitBudget 按操作令牌幂等地扣减预算账户余额
// 余额不足返回 InsufficientBudgetError 且不消耗令牌，账户不存在返回 NotFoundError
func (g *LedgerGateway) DebitBudget(db *gorm.DB, budgetID uint, amount float64, token string) error {
	return db.Transaction(func(tx *gorm.DB) error {
		applied, err := g.alreadyApplied(tx, token)
		if err != nil {
			return err
		}
		if applied {
			return nil
		}

		res := tx.Model(&models.BudgetAccount{}).
			Where("id = ? AND remaining >= ?", budgetID, amount).
			UpdateColumn("remaining", gorm.Expr("remaining - ?", amount))
		if res.Error != nil {
			return &GatewayUnavailableError{Op: "debit_budget", Err: res.Error}
		}
		if res.RowsAffected == 0 {
			// 区分账户不存在与余额不足
			var acct models.BudgetAccount
			if err := tx.First(&acct, budgetID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return &NotFoundError{Entity: "预算账户", ID: budgetID}
				}
				return &GatewayUnavailableError{Op: "debit_budget", Err: err}
			}
			return &InsufficientBudgetError{Requested: amount, Remaining: acct.Remaining}
		}

		return g.recordOperation(tx, token, budgetID, models.BudgetOpDebit, amount)
	})
}

// CreditBudget 按操作令牌幂等地返还预算账户余额
func (g *LedgerGateway) CreditBudget(db *gorm.DB, budgetID uint, amount float64, token string) error {
	return db.Transaction(func(tx *gorm.DB) error {
		applied, err := g.alreadyApplied(tx, token)
		if err != nil {
			return err
		}
		if applied {
			return nil
		}

		res := tx.Model(&models.BudgetAccount{}).
			Where("id = ?", budgetID).
			UpdateColumn("remaining", gorm.Expr("remaining + ?", amount))
		if res.Error != nil {
			return &GatewayUnavailableError{Op: "credit_budget", Err: res.Error}
		}
		if res.RowsAffected == 0 {
			return &NotFoundError{Entity: "预算账户", ID: budgetID}
		}

		return g.recordOperation(tx, token, budgetID, models.BudgetOpCredit, amount)
	})
}

// CompensateDebit 回滚一次已执行的预算扣减
// 先删除该令牌的扣减登记再返还余额，二者同一事务提交，
// 令牌随之释放，调用方携带同一令牌整体重试时会重新扣减；
// 登记不存在说明扣减未落地或已补偿过，直接成功
func (g *LedgerGateway) CompensateDebit(db *gorm.DB, budgetID uint, amount float64, token string) error {
	return db.Transaction(func(tx *gorm.DB) error {
		res := tx.Where("token = ? AND kind = ?", token, models.BudgetOpDebit).
			Delete(&models.BudgetOperation{})
		if res.Error != nil {
			return &GatewayUnavailableError{Op: "compensate_debit", Err: res.Error}
		}
		if res.RowsAffected == 0 {
			return nil
		}

		cres := tx.Model(&models.BudgetAccount{}).
			Where("id = ?", budgetID).
			UpdateColumn("remaining", gorm.Expr("remaining + ?", amount))
		if cres.Error != nil {
			return &GatewayUnavailableError{Op: "compensate_debit", Err: cres.Error}
		}
		if cres.RowsAffected == 0 {
			return &NotFoundError{Entity: "预算账户", ID: budgetID}
		}
		return nil
	})
}

// AppendCashEntry 向现金流水账追加一条记录，返回流水ID
func (g *LedgerGateway) AppendCashEntry(db *gorm.DB, entry *models.CashLedgerEntry) (uint, error) {
	if err := db.Create(entry).Error; err != nil {
		return 0, &GatewayUnavailableError{Op: "append_cash_entry", Err: err}
	}
	return entry.ID, nil
}

// QueryBudgetBalance 查询预算账户剩余金额
func (g *LedgerGateway) QueryBudgetBalance(db *gorm.DB, budgetID uint) (float64, error) {
	var acct models.BudgetAccount
	if err := db.First(&acct, budgetID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, &NotFoundError{Entity: "预算账户", ID: budgetID}
		}
		return 0, &GatewayUnavailableError{Op: "query_budget_balance", Err: err}
	}
	return acct.Remaining, nil
}

// alreadyApplied 判断操作令牌是否已成功执行过
func (g *LedgerGateway) alreadyApplied(tx *gorm.DB, token string) (bool, error) {
	var count int64
	if err := tx.Model(&models.BudgetOperation{}).
		Where("token = ?", token).Count(&count).Error; err != nil {
		return false, &GatewayUnavailableError{Op: "check_budget_op", Err: err}
	}
	return count > 0, nil
}

// recordOperation 登记已成功执行的操作，与余额变更同一事务提交
func (g *LedgerGateway) recordOperation(tx *gorm.DB, token string, budgetID uint, kind string, amount float64) error {
	op := models.BudgetOperation{
		Token:           token,
		BudgetAccountID: budgetID,
		Kind:            kind,
		Amount:          amount,
	}
	if err := tx.Create(&op).Error; err != nil {
		return &GatewayUnavailableError{Op: "record_budget_op", Err: err}
	}
	return nil
}
