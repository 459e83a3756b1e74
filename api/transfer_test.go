package api

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"costcenter/config"
	"costcenter/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransferHandler_Create(t *testing.T) {
	mock, cleanup := setupMockDB(t)
	defer cleanup()

	cfg := testConfig()
	config.GlobalConfig = cfg
	defer func() { config.GlobalConfig = nil }()

	// 令牌未使用
	mock.ExpectQuery("SELECT .* FROM `fund_transfers`").
		WillReturnRows(sqlmock.NewRows([]string{}))
	mock.ExpectQuery("SELECT .* FROM `cost_centers`").
		WillReturnRows(ccRows(1, "华东仓改造项目", models.CostCenterStatusPending, 0, 0))

	// saga：占位 -> 预算扣减 -> 现金出账 -> 余额入账 -> 提交 -> 启用事件
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

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(setUserIDMiddleware(1))
	router.POST("/cost-centers/:id/transfers", NewTransferHandler(cfg).Create)

	body := `{"amount":2000,"token":"token-1"}`
	req := httptest.NewRequest("POST", "/cost-centers/1/transfers", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, 200, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "划拨成功", resp["message"])
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, models.TransferStatusCommitted, data["status"])
	assert.Equal(t, "token-1", data["token"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTransferHandler_Create_InsufficientBudget(t *testing.T) {
	mock, cleanup := setupMockDB(t)
	defer cleanup()

	cfg := testConfig()
	config.GlobalConfig = cfg
	defer func() { config.GlobalConfig = nil }()

	mock.ExpectQuery("SELECT .* FROM `fund_transfers`").
		WillReturnRows(sqlmock.NewRows([]string{}))
	mock.ExpectQuery("SELECT .* FROM `cost_centers`").
		WillReturnRows(ccRows(1, "华东仓改造项目", models.CostCenterStatusActive, 0, 1))

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `fund_transfers`").
		WillReturnResult(sqlmock.NewResult(10, 1))
	mock.ExpectCommit()

	// 预算不足：守卫 UPDATE 未命中，整个扣减事务回滚
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `budget_operations`").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec("UPDATE `budget_accounts`").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT .* FROM `budget_accounts`").
		WillReturnRows(sqlmock.NewRows([]string{"id", "project_name", "remaining"}).
			AddRow(1, "华东仓改造", 100.0))
	mock.ExpectRollback()
	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM `fund_transfers`").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(setUserIDMiddleware(1))
	router.POST("/cost-centers/:id/transfers", NewTransferHandler(cfg).Create)

	body := `{"amount":2000,"token":"token-1"}`
	req := httptest.NewRequest("POST", "/cost-centers/1/transfers", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, 400, w.Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTransferHandler_Create_InvalidAmount(t *testing.T) {
	_, cleanup := setupMockDB(t)
	defer cleanup()

	cfg := testConfig()
	config.GlobalConfig = cfg
	defer func() { config.GlobalConfig = nil }()

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(setUserIDMiddleware(1))
	router.POST("/cost-centers/:id/transfers", NewTransferHandler(cfg).Create)

	body := `{"amount":-50}`
	req := httptest.NewRequest("POST", "/cost-centers/1/transfers", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, 400, w.Code)
}
