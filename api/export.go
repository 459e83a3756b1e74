package api

import (
	"fmt"
	"net/http"

	"costcenter/database"
	"costcenter/models"
	"costcenter/service"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
)

// ExportHandler 对账单导出处理器
type ExportHandler struct {
	registry *service.Registry
}

// NewExportHandler 创建导出处理器
func NewExportHandler() *ExportHandler {
	return &ExportHandler{
		registry: service.NewRegistry(),
	}
}

// ExportStatement 导出成本中心对账单
// @Summary 导出成本中心对账单
// @Description 导出成本中心的资金对账单为 Excel 文件，包含划拨、返还、费用明细与期末余额
// @Tags 导出
// @Accept json
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security BearerAuth
// @Param id path int true "成本中心ID"
// @Success 200 {file} file "Excel 文件"
// @Failure 401 {object} Response "未授权"
// @Failure 404 {object} Response "成本中心不存在"
// @Router /api/v1/export/cost-centers/{id}/statement [get]
func (h *ExportHandler) ExportStatement(c *gin.Context) {
	id, err := parseIDParam(c)
	if err != nil {
		BadRequest(c, "无效的ID")
		return
	}

	cc, err := h.registry.GetCostCenter(id)
	if err != nil {
		DomainError(c, err, "查询失败")
		return
	}

	var transfers []models.FundTransfer
	database.DB.Where("cost_center_id = ?", cc.ID).Order("id ASC").Find(&transfers)

	type ExpenseWithCategory struct {
		models.Expense
		CategoryName string
	}
	var expenses []ExpenseWithCategory
	database.DB.Model(&models.Expense{}).
		Select("expenses.*, expense_categories.name AS category_name").
		Joins("LEFT JOIN expense_categories ON expenses.category_id = expense_categories.id").
		Where("expenses.cost_center_id = ?", cc.ID).
		Order("expenses.id ASC").
		Scan(&expenses)

	// 创建 Excel 文件
	f := excelize.NewFile()
	defer f.Close()

	sheetName := "对账单"
	f.SetSheetName("Sheet1", sheetName)

	// 设置表头样式
	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 12, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"4F81BD"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
	})

	// 数据样式
	dataStyle, _ := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
	})

	// 设置列宽
	f.SetColWidth(sheetName, "A", "A", 12)
	f.SetColWidth(sheetName, "B", "B", 14)
	f.SetColWidth(sheetName, "C", "C", 12)
	f.SetColWidth(sheetName, "D", "D", 30)
	f.SetColWidth(sheetName, "E", "E", 14)
	f.SetColWidth(sheetName, "F", "F", 20)

	// 写入表头
	headers := []string{"类型", "金额", "状态", "说明", "审批状态", "时间"}
	for i, header := range headers {
		cell := fmt.Sprintf("%c1", 'A'+i)
		f.SetCellValue(sheetName, cell, header)
		f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}

	row := 2
	var totalIn, totalBack float64
	for _, t := range transfers {
		kind := "划拨"
		if t.Kind == models.TransferKindReversal {
			kind = "返还"
			totalBack += t.Amount
		} else {
			totalIn += t.Amount
		}
		f.SetCellValue(sheetName, fmt.Sprintf("A%d", row), kind)
		f.SetCellValue(sheetName, fmt.Sprintf("B%d", row), t.Amount)
		f.SetCellValue(sheetName, fmt.Sprintf("C%d", row), t.Status)
		f.SetCellValue(sheetName, fmt.Sprintf("D%d", row), fmt.Sprintf("令牌 %s", t.Token))
		f.SetCellValue(sheetName, fmt.Sprintf("E%d", row), "-")
		f.SetCellValue(sheetName, fmt.Sprintf("F%d", row), t.CreatedAt.Format("2006-01-02 15:04:05"))
		f.SetCellStyle(sheetName, fmt.Sprintf("A%d", row), fmt.Sprintf("F%d", row), dataStyle)
		row++
	}
	for _, e := range expenses {
		f.SetCellValue(sheetName, fmt.Sprintf("A%d", row), "费用")
		f.SetCellValue(sheetName, fmt.Sprintf("B%d", row), e.Amount)
		f.SetCellValue(sheetName, fmt.Sprintf("C%d", row), e.CategoryName)
		f.SetCellValue(sheetName, fmt.Sprintf("D%d", row), e.Description)
		f.SetCellValue(sheetName, fmt.Sprintf("E%d", row), e.Status)
		f.SetCellValue(sheetName, fmt.Sprintf("F%d", row), e.ExpenseDate.Format("2006-01-02"))
		f.SetCellStyle(sheetName, fmt.Sprintf("A%d", row), fmt.Sprintf("F%d", row), dataStyle)
		row++
	}

	// 汇总行
	summaryStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"FFC000"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
	})
	f.SetCellValue(sheetName, fmt.Sprintf("A%d", row), "汇总")
	f.SetCellValue(sheetName, fmt.Sprintf("B%d", row),
		fmt.Sprintf("划入 %.2f / 返还 %.2f", totalIn, totalBack))
	f.MergeCell(sheetName, fmt.Sprintf("B%d", row), fmt.Sprintf("C%d", row))
	f.SetCellValue(sheetName, fmt.Sprintf("D%d", row),
		fmt.Sprintf("已支出 %.2f，期末余额 %.2f", cc.SpentTotal, cc.Balance))
	f.MergeCell(sheetName, fmt.Sprintf("D%d", row), fmt.Sprintf("F%d", row))
	f.SetCellStyle(sheetName, fmt.Sprintf("A%d", row), fmt.Sprintf("F%d", row), summaryStyle)

	// 设置响应头
	filename := fmt.Sprintf("对账单_%s.xlsx", cc.Title)
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename*=UTF-8''%s", filename))

	// 写入响应
	if err := f.Write(c.Writer); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "生成 Excel 失败"})
		return
	}
}
