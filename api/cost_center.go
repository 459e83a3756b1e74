package api

import (
	"strconv"

	"costcenter/config"
	"costcenter/middleware"
	"costcenter/models"
	"costcenter/service"

	"github.com/gin-gonic/gin"
)

// CostCenterHandler 成本中心处理器
type CostCenterHandler struct {
	registry *service.Registry
	workflow *service.Workflow
}

// NewCostCenterHandler 创建成本中心处理器
func NewCostCenterHandler(cfg *config.Config) *CostCenterHandler {
	return &CostCenterHandler{
		registry: service.NewRegistry(),
		workflow: service.NewWorkflow(cfg),
	}
}

// CreateCostCenterRequest 创建成本中心请求
type CreateCostCenterRequest struct {
	Title           string `json:"title" binding:"required,max=100" example:"华东仓改造项目"`
	ClientName      string `json:"client_name" binding:"max=100" example:"华东物流"`
	BudgetAccountID uint   `json:"budget_account_id" binding:"required" example:"1"`
}

// CostCenterListRequest 成本中心列表请求
type CostCenterListRequest struct {
	Page     int    `form:"page" example:"1"`
	PageSize int    `form:"page_size" example:"10"`
	Status   string `form:"status" example:"active"`
}

// RejectRequest 驳回请求
type RejectRequest struct {
	Reason string `json:"reason" binding:"required,max=255" example:"差旅费用凭证不全"`
}

// CancelRequest 取消请求
type CancelRequest struct {
	Note string `json:"note" binding:"max=255" example:"项目终止"`
}

// Create 创建成本中心
// @Summary 创建成本中心
// @Description 创建成本中心并通过外键绑定预算账户，初始状态为待启用(pending)，收到首笔划拨后自动启用
// @Tags 成本中心
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateCostCenterRequest true "成本中心信息"
// @Success 200 {object} Response{data=models.CostCenter} "创建成功"
// @Failure 400 {object} Response "请求参数错误"
// @Failure 401 {object} Response "未授权"
// @Failure 404 {object} Response "预算账户不存在"
// @Router /api/v1/cost-centers [post]
func (h *CostCenterHandler) Create(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)

	var req CreateCostCenterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, config.SafeErrorMessage(err, "参数错误"))
		return
	}

	cc, err := h.registry.CreateCostCenter(req.Title, req.ClientName, req.BudgetAccountID, userID)
	if err != nil {
		DomainError(c, err, "创建成本中心失败")
		return
	}

	SuccessWithMessage(c, "创建成功", cc)
}

// List 获取成本中心列表
// @Summary 获取成本中心列表
// @Description 分页获取成本中心列表，支持按状态筛选
// @Tags 成本中心
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(10)
// @Param status query string false "状态筛选"
// @Success 200 {object} Response{data=PageResponse{list=[]models.CostCenter}} "获取成功"
// @Failure 401 {object} Response "未授权"
// @Router /api/v1/cost-centers [get]
func (h *CostCenterHandler) List(c *gin.Context) {
	var req CostCenterListRequest
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

	list, total, err := h.registry.ListCostCenters(req.Page, req.PageSize, req.Status)
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

// Get 获取成本中心详情
// @Summary 获取成本中心详情
// @Description 获取成本中心详情，包含余额、已支出、状态与版本号
// @Tags 成本中心
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "成本中心ID"
// @Success 200 {object} Response{data=models.CostCenter} "获取成功"
// @Failure 401 {object} Response "未授权"
// @Failure 404 {object} Response "成本中心不存在"
// @Router /api/v1/cost-centers/{id} [get]
func (h *CostCenterHandler) Get(c *gin.Context) {
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

	Success(c, cc)
}

// Finalize 封账
// @Summary 封账
// @Description 成本中心进入审核状态，要求没有待审批费用，封账后禁止提交新费用
// @Tags 结项工作流
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "成本中心ID"
// @Success 200 {object} Response{data=models.CostCenter} "封账成功"
// @Failure 401 {object} Response "未授权"
// @Failure 409 {object} Response "存在待审批费用或状态不允许"
// @Router /api/v1/cost-centers/{id}/finalize [post]
func (h *CostCenterHandler) Finalize(c *gin.Context) {
	h.runWorkflow(c, h.workflow.Finalize, "封账成功")
}

// Approve 审批通过
// @Summary 审批通过
// @Description 成本中心结项，未支出余额按幂等划拨纪律返还预算账户，不可逆
// @Tags 结项工作流
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "成本中心ID"
// @Success 200 {object} Response{data=models.CostCenter} "审批成功"
// @Failure 401 {object} Response "未授权"
// @Failure 409 {object} Response "状态不允许"
// @Router /api/v1/cost-centers/{id}/approve [post]
func (h *CostCenterHandler) Approve(c *gin.Context) {
	h.runWorkflow(c, h.workflow.Approve, "审批通过，成本中心已结项")
}

// Reject 驳回
// @Summary 驳回
// @Description 成本中心退回进行中状态，必须填写驳回理由，不产生资金变动
// @Tags 结项工作流
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "成本中心ID"
// @Param request body RejectRequest true "驳回理由"
// @Success 200 {object} Response{data=models.CostCenter} "驳回成功"
// @Failure 400 {object} Response "缺少驳回理由"
// @Failure 401 {object} Response "未授权"
// @Failure 409 {object} Response "状态不允许"
// @Router /api/v1/cost-centers/{id}/reject [post]
func (h *CostCenterHandler) Reject(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)
	id, err := parseIDParam(c)
	if err != nil {
		BadRequest(c, "无效的ID")
		return
	}

	var req RejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, config.SafeErrorMessage(err, "必须填写驳回理由"))
		return
	}

	cc, err := h.workflow.Reject(id, userID, req.Reason)
	if err != nil {
		DomainError(c, err, "驳回失败")
		return
	}
	SuccessWithMessage(c, "已驳回", cc)
}

// Cancel 取消成本中心
// @Summary 取消成本中心
// @Description 管理操作，任意非终态可取消；余额未清零时先强制返还预算
// @Tags 结项工作流
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "成本中心ID"
// @Param request body CancelRequest false "取消备注"
// @Success 200 {object} Response{data=models.CostCenter} "取消成功"
// @Failure 401 {object} Response "未授权"
// @Failure 409 {object} Response "状态不允许"
// @Router /api/v1/cost-centers/{id}/cancel [post]
func (h *CostCenterHandler) Cancel(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)
	id, err := parseIDParam(c)
	if err != nil {
		BadRequest(c, "无效的ID")
		return
	}

	var req CancelRequest
	_ = c.ShouldBindJSON(&req)

	cc, err := h.workflow.Cancel(id, userID, req.Note)
	if err != nil {
		DomainError(c, err, "取消失败")
		return
	}
	SuccessWithMessage(c, "已取消", cc)
}

// RequestFunds 申请资金
// @Summary 申请资金
// @Description 进行中 -> 待拨款的信息性切换，不产生余额变动
// @Tags 结项工作流
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "成本中心ID"
// @Success 200 {object} Response{data=models.CostCenter} "操作成功"
// @Failure 401 {object} Response "未授权"
// @Failure 409 {object} Response "状态不允许"
// @Router /api/v1/cost-centers/{id}/request-funds [post]
func (h *CostCenterHandler) RequestFunds(c *gin.Context) {
	h.runWorkflow(c, h.workflow.RequestFunds, "资金申请已提交")
}

// FundsReceived 确认到款
// @Summary 确认到款
// @Description 待拨款 -> 进行中的信息性切换，不产生余额变动
// @Tags 结项工作流
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "成本中心ID"
// @Success 200 {object} Response{data=models.CostCenter} "操作成功"
// @Failure 401 {object} Response "未授权"
// @Failure 409 {object} Response "状态不允许"
// @Router /api/v1/cost-centers/{id}/funds-received [post]
func (h *CostCenterHandler) FundsReceived(c *gin.Context) {
	h.runWorkflow(c, h.workflow.FundsReceived, "已确认到款")
}

// ListEvents 获取工作流事件
// @Summary 获取工作流事件
// @Description 获取成本中心的工作流事件列表，推送由协作方自行消费
// @Tags 结项工作流
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "成本中心ID"
// @Success 200 {object} Response{data=[]models.WorkflowEvent} "获取成功"
// @Failure 401 {object} Response "未授权"
// @Router /api/v1/cost-centers/{id}/events [get]
func (h *CostCenterHandler) ListEvents(c *gin.Context) {
	id, err := parseIDParam(c)
	if err != nil {
		BadRequest(c, "无效的ID")
		return
	}

	events, err := h.workflow.ListEvents(id)
	if err != nil {
		InternalError(c, config.SafeErrorMessage(err, "查询失败"))
		return
	}
	Success(c, events)
}

// runWorkflow 无请求体的工作流操作公共入口
func (h *CostCenterHandler) runWorkflow(c *gin.Context, op func(uint, uint) (*models.CostCenter, error), okMsg string) {
	userID := middleware.GetCurrentUserID(c)
	id, err := parseIDParam(c)
	if err != nil {
		BadRequest(c, "无效的ID")
		return
	}

	cc, err := op(id, userID)
	if err != nil {
		DomainError(c, err, "操作失败")
		return
	}
	SuccessWithMessage(c, okMsg, cc)
}

// parseIDParam 解析路径中的ID参数
func parseIDParam(c *gin.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return 0, err
	}
	return uint(id), nil
}
