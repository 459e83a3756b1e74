package service

import (
	"testing"
	"time"

	"costcenter/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func transferRows(id uint, token string, ccID uint, amount float64, status string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "token", "cost_center_id", "budget_account_id", "kind", "amount",
		"cash_entry_id", "status", "failure_reason", "created_at", "updated_at",
	}).AddRow(id, token, ccID, 1, models.TransferKindIn, amount, 7, status, "", time.Now(), time.Now())
}

func TestTransferFunds_Success(t *testing.T) {
	mock, cleanup := setupMockDB(t)
	defer cleanup()

	coordinator := NewTransferCoordinator(nil)

	// 令牌尚未使用
	mock.ExpectQuery("SELECT .* FROM `fund_transfers`").
		WillReturnRows(sqlmock.NewRows([]string{}))

	// 成本中心待启用
	mock.ExpectQuery("SELECT .* FROM `cost_centers`").
		WillReturnRows(costCenterRows(1, "华东仓改造项目", models.CostCenterStatusPending, 0, 0, 1, 0))

	// 令牌占位
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `fund_transfers`").
		WillReturnResult(sqlmock.NewResult(10, 1))
	mock.ExpectCommit()

	// 预算扣减：令牌去重检查、守卫更新、操作登记同一事务
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `budget_operations`").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec("UPDATE `budget_accounts`").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO `budget_operations`").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	// 现金出账
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `cash_ledger_entries`").
		WillReturnResult(sqlmock.NewResult(7, 1))
	mock.ExpectCommit()

	// 余额入账 + pending -> active
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `cost_centers`").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	// 划拨记录提交
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `fund_transfers`").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	// 启用事件
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `workflow_events`").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	transfer, err := coordinator.TransferFunds(1, 2000, "token-1")
	require.NoError(t, err)
	assert.Equal(t, models.TransferStatusCommitted, transfer.Status)
	assert.Equal(t, uint(7), transfer.CashEntryID)
	assert.Equal(t, 2000.0, transfer.Amount)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTransferFunds_IdempotentReplay(t *testing.T) {
	mock, cleanup := setupMockDB(t)
	defer cleanup()

	coordinator := NewTransferCoordinator(nil)

	// 同一令牌已成功划拨：返回原记录，不再产生任何写入
	mock.ExpectQuery("SELECT .* FROM `fund_transfers`").
		WillReturnRows(transferRows(10, "token-1", 1, 2000, models.TransferStatusCommitted))

	transfer, err := coordinator.TransferFunds(1, 2000, "token-1")
	require.NoError(t, err)
	assert.Equal(t, uint(10), transfer.ID)
	assert.Equal(t, 2000.0, transfer.Amount)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTransferFunds_InvalidAmount(t *testing.T) {
	_, cleanup := setupMockDB(t)
	defer cleanup()

	coordinator := NewTransferCoordinator(nil)

	_, err := coordinator.TransferFunds(1, 0, "token-1")
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)

	_, err = coordinator.TransferFunds(1, -100, "token-1")
	require.ErrorAs(t, err, &vErr)
}

func TestTransferFunds_InsufficientBudget(t *testing.T) {
	mock, cleanup := setupMockDB(t)
	defer cleanup()

	coordinator := NewTransferCoordinator(nil)

	mock.ExpectQuery("SELECT .* FROM `fund_transfers`").
		WillReturnRows(sqlmock.NewRows([]string{}))
	mock.ExpectQuery("SELECT .* FROM `cost_centers`").
		WillReturnRows(costCenterRows(1, "华东仓改造项目", models.CostCenterStatusActive, 0, 0, 1, 1))

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `fund_transfers`").
		WillReturnResult(sqlmock.NewResult(10, 1))
	mock.ExpectCommit()

	// 预算守卫条件未命中：区分余额不足与账户不存在后回滚，令牌未被消耗
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `budget_operations`").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec("UPDATE `budget_accounts`").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT .* FROM `budget_accounts`").
		WillReturnRows(sqlmock.NewRows([]string{"id", "project_name", "remaining"}).
			AddRow(1, "华东仓改造", 100.0))
	mock.ExpectRollback()

	// 释放令牌占位，整体无净效果
	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM `fund_transfers`").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	_, err := coordinator.TransferFunds(1, 2000, "token-1")
	var bErr *InsufficientBudgetError
	require.ErrorAs(t, err, &bErr)
	assert.Equal(t, 2000.0, bErr.Requested)
	assert.Equal(t, 100.0, bErr.Remaining)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTransferFunds_CashFailureCompensatesDebit(t *testing.T) {
	mock, cleanup := setupMockDB(t)
	defer cleanup()

	coordinator := NewTransferCoordinator(nil)

	mock.ExpectQuery("SELECT .* FROM `fund_transfers`").
		WillReturnRows(sqlmock.NewRows([]string{}))
	mock.ExpectQuery("SELECT .* FROM `cost_centers`").
		WillReturnRows(costCenterRows(1, "华东仓改造项目", models.CostCenterStatusActive, 500, 0, 1, 2))

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `fund_transfers`").
		WillReturnResult(sqlmock.NewResult(10, 1))
	mock.ExpectCommit()

	// 预算扣减成功
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `budget_operations`").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec("UPDATE `budget_accounts`").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO `budget_operations`").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	// 现金出账失败
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `cash_ledger_entries`").
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	// 补偿：删除扣减登记并返还预算，同一事务
	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM `budget_operations`").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE `budget_accounts`").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	// 释放令牌占位，同一令牌可整体重试
	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM `fund_transfers`").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	_, err := coordinator.TransferFunds(1, 300, "token-3")
	var gErr *GatewayUnavailableError
	require.ErrorAs(t, err, &gErr)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTransferFunds_InvalidState(t *testing.T) {
	mock, cleanup := setupMockDB(t)
	defer cleanup()

	coordinator := NewTransferCoordinator(nil)

	mock.ExpectQuery("SELECT .* FROM `fund_transfers`").
		WillReturnRows(sqlmock.NewRows([]string{}))
	mock.ExpectQuery("SELECT .* FROM `cost_centers`").
		WillReturnRows(costCenterRows(1, "华东仓改造项目", models.CostCenterStatusUnderReview, 500, 0, 1, 3))

	_, err := coordinator.TransferFunds(1, 2000, "token-1")
	var sErr *InvalidStateError
	require.ErrorAs(t, err, &sErr)
	assert.Equal(t, models.CostCenterStatusUnderReview, sErr.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTransferFunds_PartialCommit(t *testing.T) {
	mock, cleanup := setupMockDB(t)
	defer cleanup()

	coordinator := NewTransferCoordinator(nil)

	mock.ExpectQuery("SELECT .* FROM `fund_transfers`").
		WillReturnRows(sqlmock.NewRows([]string{}))
	mock.ExpectQuery("SELECT .* FROM `cost_centers`").
		WillReturnRows(costCenterRows(1, "华东仓改造项目", models.CostCenterStatusActive, 1000, 0, 1, 2))

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

	// 余额入账版本冲突
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `cost_centers`").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	// 重读发现已进入审核，资金不再可入账
	mock.ExpectQuery("SELECT .* FROM `cost_centers`").
		WillReturnRows(costCenterRows(1, "华东仓改造项目", models.CostCenterStatusUnderReview, 1000, 0, 1, 3))

	// 标记部分写入，留待对账
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `fund_transfers`").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	_, err := coordinator.TransferFunds(1, 500, "token-2")
	var pErr *PartialCommitError
	require.ErrorAs(t, err, &pErr)
	assert.Equal(t, "token-2", pErr.Token)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReverseFunds_Success(t *testing.T) {
	mock, cleanup := setupMockDB(t)
	defer cleanup()

	coordinator := NewTransferCoordinator(nil)
	cc := &models.CostCenter{
		ID:              1,
		Title:           "华东仓改造项目",
		Status:          models.CostCenterStatusUnderReview,
		Balance:         1200,
		BudgetAccountID: 1,
		Version:         3,
	}

	mock.ExpectQuery("SELECT .* FROM `fund_transfers`").
		WillReturnRows(sqlmock.NewRows([]string{}))

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `fund_transfers`").
		WillReturnResult(sqlmock.NewResult(20, 1))
	mock.ExpectCommit()

	// 余额清零
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `cost_centers`").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	// 现金入账
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `cash_ledger_entries`").
		WillReturnResult(sqlmock.NewResult(8, 1))
	mock.ExpectCommit()

	// 预算返还（按令牌幂等）
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

	transfer, err := coordinator.ReverseFunds(cc, "cc-1-approve-v3", "结项返还")
	require.NoError(t, err)
	assert.Equal(t, models.TransferKindReversal, transfer.Kind)
	assert.Equal(t, 1200.0, transfer.Amount)
	assert.Equal(t, 0.0, cc.Balance)
	assert.Equal(t, uint(4), cc.Version)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReverseFunds_NothingToReverse(t *testing.T) {
	_, cleanup := setupMockDB(t)
	defer cleanup()

	coordinator := NewTransferCoordinator(nil)
	cc := &models.CostCenter{ID: 1, Balance: 0, Version: 3}

	transfer, err := coordinator.ReverseFunds(cc, "cc-1-approve-v3", "结项返还")
	require.NoError(t, err)
	assert.Nil(t, transfer)
}

func TestReverseFunds_ConcurrentModification(t *testing.T) {
	mock, cleanup := setupMockDB(t)
	defer cleanup()

	coordinator := NewTransferCoordinator(nil)
	cc := &models.CostCenter{
		ID:              1,
		Title:           "华东仓改造项目",
		Status:          models.CostCenterStatusUnderReview,
		Balance:         1200,
		BudgetAccountID: 1,
		Version:         3,
	}

	mock.ExpectQuery("SELECT .* FROM `fund_transfers`").
		WillReturnRows(sqlmock.NewRows([]string{}))

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `fund_transfers`").
		WillReturnResult(sqlmock.NewResult(20, 1))
	mock.ExpectCommit()

	// 版本守卫未命中，此时尚无任何资金变动
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `cost_centers`").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	// 释放占位
	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM `fund_transfers`").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	_, err := coordinator.ReverseFunds(cc, "cc-1-approve-v3", "结项返还")
	var cErr *ConcurrentModificationError
	require.ErrorAs(t, err, &cErr)
	require.NoError(t, mock.ExpectationsWereMet())
}
