package api

import (
	"costcenter/config"
	"costcenter/database"
	"costcenter/models"
	"costcenter/service"

	"github.com/gin-gonic/gin"
)

// LedgerHandler 预算账户与现金流水账的只读查询
type LedgerHandler struct {
	gateway    *service.LedgerGateway
	reconciler *service.Reconciler
}

// NewLedgerHandler 创建账务查询处理器
func NewLedgerHandler() *LedgerHandler {
	return &LedgerHandler{
		gateway:    service.NewLedgerGateway(),
		reconciler: service.NewReconciler(),
	}
}

// CashLedgerListRequest 现金流水列表请求
type CashLedgerListRequest struct {
	Page      int    `form:"page" example:"1"`
	PageSize  int    `form:"page_size" example:"10"`
	Direction string `form:"direction" example:"out"`
}

// GetBudgetAccount 查询预算账户
// @Summary 查询预算账户
// @Description 查询预算账户的剩余金额
// @Tags 账务
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "预算账户ID"
// @Success 200 {object} Response{data=models.BudgetAccount} "获取成功"
// @Failure 401 {object} Response "未授权"
// @Failure 404 {object} Response "预算账户不存在"
// @Router /api/v1/budget-accounts/{id} [get]
func (h *LedgerHandler) GetBudgetAccount(c *gin.Context) {
	id, err := parseIDParam(c)
	if err != nil {
		BadRequest(c, "无效的ID")
		return
	}

	remaining, err := h.gateway.QueryBudgetBalance(database.DB, id)
	if err != nil {
		DomainError(c, err, "查询失败")
		return
	}

	Success(c, gin.H{
		"id":        id,
		"remaining": remaining,
	})
}

// ListCashLedger 获取现金流水
// @Summary 获取现金流水
// @Description 分页获取现金流水账（只读，流水只追加不修改）
// @Tags 账务
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(10)
// @Param direction query string false "方向筛选 in/out"
// @Success 200 {object} Response{data=PageResponse{list=[]models.CashLedgerEntry}} "获取成功"
// @Failure 401 {object} Response "未授权"
// @Router /api/v1/cash-ledger [get]
func (h *LedgerHandler) ListCashLedger(c *gin.Context) {
	var req CashLedgerListRequest
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
	if req.PageSize > 100 {
		req.PageSize = 100
	}

	query := database.DB.Model(&models.CashLedgerEntry{})
	if req.Direction != "" {
		query = query.Where("direction = ?", req.Direction)
	}

	var total int64
	query.Count(&total)

	var list []models.CashLedgerEntry
	offset := (req.Page - 1) * req.PageSize
	if err := query.Order("id DESC").Offset(offset).Limit(req.PageSize).Find(&list).Error; err != nil {
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

// Reconcile 对账单个成本中心
// @Summary 对账单个成本中心
// @Description 以现金流水账为事实依据重推成本中心余额，修复部分写入留下的不一致
// @Tags 账务
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "成本中心ID"
// @Success 200 {object} Response{data=service.ReconcileReport} "对账完成"
// @Failure 401 {object} Response "未授权"
// @Failure 404 {object} Response "成本中心不存在"
// @Router /api/v1/cost-centers/{id}/reconcile [post]
func (h *LedgerHandler) Reconcile(c *gin.Context) {
	id, err := parseIDParam(c)
	if err != nil {
		BadRequest(c, "无效的ID")
		return
	}

	report, err := h.reconciler.ReconcileCostCenter(id)
	if err != nil {
		DomainError(c, err, "对账失败")
		return
	}
	SuccessWithMessage(c, "对账完成", report)
}

// ReconcileAll 对账所有非终态成本中心
// @Summary 对账所有非终态成本中心
// @Description 扫描所有非终态成本中心并逐个对账
// @Tags 账务
// @Accept json
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response{data=[]service.ReconcileReport} "对账完成"
// @Failure 401 {object} Response "未授权"
// @Router /api/v1/reconcile [post]
func (h *LedgerHandler) ReconcileAll(c *gin.Context) {
	reports, err := h.reconciler.ReconcileAll()
	if err != nil {
		InternalError(c, config.SafeErrorMessage(err, "对账失败"))
		return
	}
	SuccessWithMessage(c, "对账完成", reports)
}
