package service

import (
	"errors"
	"log"
	"time"

	"costcenter/database"
	"costcenter/models"

	"gorm.io/gorm"
)

// ReconcileReport 单个成本中心的对账结果
type ReconcileReport struct {
	CostCenterID    uint     `json:"cost_center_id"`
	LedgerIn        float64  `json:"ledger_in"`       // 现金账划入合计
	LedgerReturned  float64  `json:"ledger_returned"` // 现金账返还合计
	ApprovedSpent   float64  `json:"approved_spent"`  // 已批准费用合计
	ExpectedBalance float64  `json:"expected_balance"`
	StoredBalance   float64  `json:"stored_balance"`
	Repaired        bool     `json:"repaired"`
	ResolvedTokens  []string `json:"resolved_tokens,omitempty"` // 本轮修复的部分写入令牌
}

// Reconciler 对账器
// 现金流水账是资金变动的最终事实依据：从流水重推成本中心余额，
// 修复部分写入留下的不一致；任何不一致存活不超过一个对账周期
type Reconciler struct {
	gateway *LedgerGateway
}

// NewReconciler 创建对账器
func NewReconciler() *Reconciler {
	return &Reconciler{gateway: NewLedgerGateway()}
}

// ReconcileCostCenter 对账单个成本中心
// 余额 = Σ划入 − Σ返还 − Σ已批准费用，差异时按流水修复聚合
func (r *Reconciler) ReconcileCostCenter(costCenterID uint) (*ReconcileReport, error) {
	var cc models.CostCenter
	if err := database.DB.First(&cc, costCenterID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Entity: "成本中心", ID: costCenterID}
		}
		return nil, err
	}

	report := &ReconcileReport{CostCenterID: cc.ID, StoredBalance: round2(cc.Balance)}

	// 从现金账重推：出账方向 = 划入成本中心，入账方向 = 返还预算
	var ledgerIn, ledgerReturned float64
	if err := database.DB.Model(&models.CashLedgerEntry{}).
		Joins("JOIN fund_transfers ON fund_transfers.token = cash_ledger_entries.transfer_token").
		Where("fund_transfers.cost_center_id = ? AND cash_ledger_entries.direction = ?",
			cc.ID, models.CashDirectionOut).
		Select("COALESCE(SUM(cash_ledger_entries.amount), 0)").
		Scan(&ledgerIn).Error; err != nil {
		return nil, &GatewayUnavailableError{Op: "sum_ledger_in", Err: err}
	}
	if err := database.DB.Model(&models.CashLedgerEntry{}).
		Joins("JOIN fund_transfers ON fund_transfers.token = cash_ledger_entries.transfer_token").
		Where("fund_transfers.cost_center_id = ? AND cash_ledger_entries.direction = ?",
			cc.ID, models.CashDirectionIn).
		Select("COALESCE(SUM(cash_ledger_entries.amount), 0)").
		Scan(&ledgerReturned).Error; err != nil {
		return nil, &GatewayUnavailableError{Op: "sum_ledger_returned", Err: err}
	}

	var approvedSpent float64
	if err := database.DB.Model(&models.Expense{}).
		Where("cost_center_id = ? AND status = ?", cc.ID, models.ExpenseStatusApproved).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&approvedSpent).Error; err != nil {
		return nil, err
	}

	report.LedgerIn = round2(ledgerIn)
	report.LedgerReturned = round2(ledgerReturned)
	report.ApprovedSpent = round2(approvedSpent)
	report.ExpectedBalance = round2(ledgerIn - ledgerReturned - approvedSpent)

	if report.ExpectedBalance != report.StoredBalance || round2(cc.SpentTotal) != report.ApprovedSpent {
		updates := map[string]interface{}{
			"balance":     report.ExpectedBalance,
			"spent_total": report.ApprovedSpent,
			"version":     cc.Version + 1,
			"updated_at":  time.Now(),
		}
		// 部分写入可能发生在首笔划拨，账上有钱则聚合应已启用
		if cc.Status == models.CostCenterStatusPending && report.ExpectedBalance > 0 {
			updates["status"] = models.CostCenterStatusActive
		}
		res := database.DB.Model(&models.CostCenter{}).
			Where("id = ? AND version = ?", cc.ID, cc.Version).
			Updates(updates)
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 0 {
			// 对账期间聚合被并发修改，下一轮再处理
			return nil, &ConcurrentModificationError{Entity: "成本中心", ID: cc.ID}
		}
		report.Repaired = true
		log.Printf("对账修复 cc=%d: 余额 %.2f -> %.2f", cc.ID, report.StoredBalance, report.ExpectedBalance)
	}

	// 现金账存在对应流水的部分写入，其资金缺口已在上面补齐，可以销账
	resolved, err := r.resolvePartials(cc.ID)
	if err != nil {
		return nil, err
	}
	report.ResolvedTokens = resolved

	return report, nil
}

// ReconcileAll 对账所有非终态成本中心
func (r *Reconciler) ReconcileAll() ([]ReconcileReport, error) {
	var ids []uint
	if err := database.DB.Model(&models.CostCenter{}).
		Where("status NOT IN ?", []string{
			models.CostCenterStatusFinalized,
			models.CostCenterStatusCancelled,
		}).
		Pluck("id", &ids).Error; err != nil {
		return nil, err
	}

	var reports []ReconcileReport
	for _, id := range ids {
		report, err := r.ReconcileCostCenter(id)
		if err != nil {
			// 单个失败不中断整轮对账
			log.Printf("对账失败 cc=%d: %v", id, err)
			continue
		}
		reports = append(reports, *report)
	}
	return reports, nil
}

// resolvePartials 将已在现金账落账的部分写入划拨标记为已提交
func (r *Reconciler) resolvePartials(costCenterID uint) ([]string, error) {
	var partials []models.FundTransfer
	if err := database.DB.
		Where("cost_center_id = ? AND status = ?", costCenterID, models.TransferStatusPartial).
		Find(&partials).Error; err != nil {
		return nil, err
	}

	var resolved []string
	for _, t := range partials {
		var entry models.CashLedgerEntry
		if err := database.DB.Where("transfer_token = ?", t.Token).First(&entry).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				// 流水缺失，说明失败发生在现金账之前，留待人工处理
				continue
			}
			return nil, err
		}
		// 返还方向的部分写入卡在最后一步预算返还：
		// 现金已入账，这里把缺的预算入账补上（按令牌幂等）再销账
		if t.Kind == models.TransferKindReversal {
			if err := r.gateway.CreditBudget(database.DB, t.BudgetAccountID, t.Amount, t.Token); err != nil {
				return nil, err
			}
		}
		if err := database.DB.Model(&t).Updates(map[string]interface{}{
			"status":         models.TransferStatusCommitted,
			"cash_entry_id":  entry.ID,
			"failure_reason": "",
		}).Error; err != nil {
			return nil, err
		}
		resolved = append(resolved, t.Token)
	}
	return resolved, nil
}
