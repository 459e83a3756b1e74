package api

import (
	"time"

	"costcenter/config"
	"costcenter/database"
	"costcenter/middleware"
	"costcenter/models"
	"costcenter/service"

	"github.com/gin-gonic/gin"
)

// ExpenseHandler 费用申报处理器
type ExpenseHandler struct {
	ledger *service.ExpenseLedger
}

// NewExpenseHandler 创建费用申报处理器
func NewExpenseHandler() *ExpenseHandler {
	return &ExpenseHandler{
		ledger: service.NewExpenseLedger(),
	}
}

// SubmitExpenseRequest 提交费用请求
type SubmitExpenseRequest struct {
	CategoryID  uint    `json:"category_id" binding:"required" example:"1"`
	Description string  `json:"description" binding:"max=255" example:"项目差旅"`
	Amount      float64 `json:"amount" binding:"required,gt=0" example:"500"`
	ExpenseDate string  `json:"expense_date" binding:"omitempty" example:"2024-01-15"`
}

// ReviewExpenseRequest 审批费用请求
type ReviewExpenseRequest struct {
	Decision string `json:"decision" binding:"required,oneof=approve reject" example:"approve"`
	Note     string `json:"note" binding:"max=255" example:"凭证齐全"`
}

// ExpenseListRequest 费用列表请求
type ExpenseListRequest struct {
	Page     int    `form:"page" example:"1"`
	PageSize int    `form:"page_size" example:"10"`
	Status   string `form:"status" example:"pending"`
}

// Submit 提交费用申报
// @Summary 提交费用申报
// @Description 对成本中心余额提交一笔费用申报，初始状态待审批，不产生余额变动。仅进行中/待拨款状态可提交。
// @Tags 费用
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "成本中心ID"
// @Param request body SubmitExpenseRequest true "费用信息"
// @Success 200 {object} Response{data=models.Expense} "提交成功"
// @Failure 400 {object} Response "请求参数错误"
// @Failure 401 {object} Response "未授权"
// @Failure 409 {object} Response "状态不允许提交"
// @Router /api/v1/cost-centers/{id}/expenses [post]
func (h *ExpenseHandler) Submit(c *gin.Context) {
	id, err := parseIDParam(c)
	if err != nil {
		BadRequest(c, "无效的ID")
		return
	}

	var req SubmitExpenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, config.SafeErrorMessage(err, "参数错误"))
		return
	}

	var expenseDate time.Time
	if req.ExpenseDate != "" {
		expenseDate, err = time.ParseInLocation("2006-01-02", req.ExpenseDate, time.Local)
		if err != nil {
			BadRequest(c, "时间格式错误，应为: 2006-01-02")
			return
		}
	}

	expense, err := h.ledger.SubmitExpense(id, req.CategoryID, req.Description, req.Amount, expenseDate)
	if err != nil {
		DomainError(c, err, "提交费用失败")
		return
	}

	SuccessWithMessage(c, "提交成功", expense)
}

// List 获取费用列表
// @Summary 获取费用列表
// @Description 分页获取成本中心的费用申报列表，支持按审批状态筛选
// @Tags 费用
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "成本中心ID"
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(10)
// @Param status query string false "审批状态筛选"
// @Success 200 {object} Response{data=PageResponse{list=[]models.Expense}} "获取成功"
// @Failure 401 {object} Response "未授权"
// @Router /api/v1/cost-centers/{id}/expenses [get]
func (h *ExpenseHandler) List(c *gin.Context) {
	id, err := parseIDParam(c)
	if err != nil {
		BadRequest(c, "无效的ID")
		return
	}

	var req ExpenseListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		BadRequest(c, config.SafeErrorMessage(err, "参数错误"))
		return
	}
	if req.Page <= 0 {
		req.Page = 1
	}
	if req.PageSize <= 0 {
		req.PageSize = 10
	}

	list, total, err := h.ledger.ListExpenses(id, req.Status, req.Page, req.PageSize)
	if err != nil {
		InternalError(c, config.SafeErrorMessage(err, "查询失败"))
		return
	}

	Success(c, PageResponse{
		Total:    total,
		Page:     req.Page,
		PageSize: req.PageSize,
		List:     list,
	})
}

// Review 审批费用
// @Summary 审批费用
// @Description 批准或驳回一条待审批费用。批准要求成本中心余额充足并原子扣减余额；余额不足时费用保持待审批。驳回必须填写理由。审批后记录不可再变更。
// @Tags 费用
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "费用ID"
// @Param request body ReviewExpenseRequest true "审批决定"
// @Success 200 {object} Response{data=models.Expense} "审批成功"
// @Failure 400 {object} Response "参数错误或余额不足"
// @Failure 401 {object} Response "未授权"
// @Failure 409 {object} Response "费用已被处理或并发冲突"
// @Router /api/v1/expenses/{id}/review [post]
func (h *ExpenseHandler) Review(c *gin.Context) {
	reviewerID := middleware.GetCurrentUserID(c)
	id, err := parseIDParam(c)
	if err != nil {
		BadRequest(c, "无效的ID")
		return
	}

	var req ReviewExpenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, config.SafeErrorMessage(err, "参数错误"))
		return
	}

	expense, err := h.ledger.ReviewExpense(id, req.Decision, req.Note, reviewerID)
	if err != nil {
		DomainError(c, err, "审批失败")
		return
	}

	SuccessWithMessage(c, "审批完成", expense)
}

// GetCategories 获取费用类别列表
// @Summary 获取费用类别列表
// @Description 获取所有可用的费用类别，按排序字段升序排列
// @Tags 费用
// @Accept json
// @Produce json
// @Success 200 {object} Response{data=[]models.ExpenseCategory} "获取成功"
// @Failure 500 {object} Response "查询失败"
// @Router /api/v1/categories [get]
func (h *ExpenseHandler) GetCategories(c *gin.Context) {
	var list []models.ExpenseCategory
	if err := database.DB.Order("sort ASC, id ASC").Find(&list).Error; err != nil {
		InternalError(c, config.SafeErrorMessage(err, "查询失败"))
		return
	}
	Success(c, list)
}
