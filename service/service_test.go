package service

import (
	"testing"
	"time"

	"costcenter/database"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func setupMockDB(t *testing.T) (sqlmock.Sqlmock, func()) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{})
	require.NoError(t, err)

	oldDB := database.DB
	database.DB = gormDB
	return mock, func() {
		database.DB = oldDB
		sqlDB.Close()
	}
}

// costCenterRows 构造成本中心查询结果
func costCenterRows(id uint, title, status string, balance, spent float64, budgetID uint, version uint) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "title", "client_name", "status", "allocated_budget", "balance",
		"spent_total", "budget_account_id", "responsible_id", "version",
		"created_at", "updated_at",
	}).AddRow(id, title, "测试客户", status, 5000.0, balance, spent, budgetID, 1, version, time.Now(), time.Now())
}
