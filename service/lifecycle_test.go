package service

import (
	"testing"
	"time"

	"costcenter/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 完整生命周期：创建 -> 划拨启用 -> 费用审批 -> 封账 -> 审批结项（余额返还）。
// 每一步之后核对聚合的余额、已支出与版本号
func TestCostCenterLifecycle(t *testing.T) {
	mock, cleanup := setupMockDB(t)
	defer cleanup()

	registry := NewRegistry()
	coordinator := NewTransferCoordinator(nil)
	ledger := NewExpenseLedger()
	wf := NewWorkflow(nil)

	// 1. 创建：pending，记录预算快照
	mock.ExpectQuery("SELECT .* FROM `budget_accounts`").
		WillReturnRows(sqlmock.NewRows([]string{"id", "project_name", "remaining"}).
			AddRow(1, "华东仓改造", 5000.0))
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `cost_centers`").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	cc, err := registry.CreateCostCenter("华东仓改造项目", "华东物流", 1, 1)
	require.NoError(t, err)
	assert.Equal(t, models.CostCenterStatusPending, cc.Status)
	assert.Equal(t, 5000.0, cc.AllocatedBudget)

	// 2. 首笔划拨 2000：预算扣减、现金出账、余额入账，pending -> active
	mock.ExpectQuery("SELECT .* FROM `fund_transfers`").
		WillReturnRows(sqlmock.NewRows([]string{}))
	mock.ExpectQuery("SELECT .* FROM `cost_centers`").
		WillReturnRows(costCenterRows(1, "华东仓改造项目", models.CostCenterStatusPending, 0, 0, 1, 0))
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `fund_transfers`").
		WillReturnResult(sqlmock.NewResult(10, 1))
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `budget_operations`").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec("UPDATE `budget_accounts`").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO `budget_operations`").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `cash_ledger_entries`").
		WillReturnResult(sqlmock.NewResult(7, 1))
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `cost_centers`").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `fund_transfers`").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `workflow_events`").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	transfer, err := coordinator.TransferFunds(1, 2000, "tok-lifecycle")
	require.NoError(t, err)
	assert.Equal(t, models.TransferStatusCommitted, transfer.Status)

	// 3. 提交费用 800：待审批，不动余额
	mock.ExpectQuery("SELECT .* FROM `cost_centers`").
		WillReturnRows(costCenterRows(1, "华东仓改造项目", models.CostCenterStatusActive, 2000, 0, 1, 1))
	mock.ExpectQuery("SELECT .* FROM `expense_categories`").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "sort", "color"}).
			AddRow(2, "差旅", 3, "#a855f7"))
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `expenses`").
		WillReturnResult(sqlmock.NewResult(5, 1))
	mock.ExpectCommit()

	expense, err := ledger.SubmitExpense(1, 2, "差旅报销", 800, time.Now())
	require.NoError(t, err)
	assert.Equal(t, models.ExpenseStatusPending, expense.Status)

	// 4. 批准费用：余额 2000 -> 1200，已支出 0 -> 800
	mock.ExpectQuery("SELECT .* FROM `expenses`").
		WillReturnRows(expenseRows(5, 1, 800, models.ExpenseStatusPending))
	mock.ExpectQuery("SELECT .* FROM `cost_centers`").
		WillReturnRows(costCenterRows(1, "华东仓改造项目", models.CostCenterStatusActive, 2000, 0, 1, 1))
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `cost_centers`").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE `expenses`").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	expense, err = ledger.ReviewExpense(5, DecisionApprove, "凭证齐全", 9)
	require.NoError(t, err)
	assert.Equal(t, models.ExpenseStatusApproved, expense.Status)

	// 5. 封账：无待审批费用，active -> under_review
	mock.ExpectQuery("SELECT .* FROM `cost_centers`").
		WillReturnRows(costCenterRows(1, "华东仓改造项目", models.CostCenterStatusActive, 1200, 800, 1, 2))
	mock.ExpectQuery("SELECT count.* FROM `expenses`").
		WillReturnRows(countRows(0))
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `cost_centers`").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `workflow_events`").
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	cc, err = wf.Finalize(1, 9)
	require.NoError(t, err)
	assert.Equal(t, models.CostCenterStatusUnderReview, cc.Status)

	// 6. 审批结项：未支出的 1200 返还预算，under_review -> finalized
	mock.ExpectQuery("SELECT .* FROM `cost_centers`").
		WillReturnRows(costCenterRows(1, "华东仓改造项目", models.CostCenterStatusUnderReview, 1200, 800, 1, 3))
	mock.ExpectQuery("SELECT count.* FROM `expenses`").
		WillReturnRows(countRows(0))
	mock.ExpectQuery("SELECT .* FROM `fund_transfers`").
		WillReturnRows(sqlmock.NewRows([]string{}))
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `fund_transfers`").
		WillReturnResult(sqlmock.NewResult(20, 1))
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `cost_centers`").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `cash_ledger_entries`").
		WillReturnResult(sqlmock.NewResult(8, 1))
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `budget_operations`").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec("UPDATE `budget_accounts`").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO `budget_operations`").
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `fund_transfers`").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `cost_centers`").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `workflow_events`").
		WillReturnResult(sqlmock.NewResult(3, 1))
	mock.ExpectCommit()

	cc, err = wf.Approve(1, 9)
	require.NoError(t, err)
	assert.Equal(t, models.CostCenterStatusFinalized, cc.Status)
	assert.Equal(t, 0.0, cc.Balance)
	assert.Equal(t, 800.0, cc.SpentTotal)
	require.NotNil(t, cc.ApprovedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}
