package api

import (
	"costcenter/config"
	"costcenter/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// TransferHandler 资金划拨处理器
type TransferHandler struct {
	coordinator *service.TransferCoordinator
}

// NewTransferHandler 创建资金划拨处理器
func NewTransferHandler(cfg *config.Config) *TransferHandler {
	return &TransferHandler{
		coordinator: service.NewTransferCoordinator(cfg),
	}
}

// TransferRequest 划拨请求
// Token 为调用方提供的幂等令牌，超时重试时携带同一令牌可避免重复入账；
// 不提供时由服务端生成（此时重试不具备幂等保障）
type TransferRequest struct {
	Amount float64 `json:"amount" binding:"required,gt=0" example:"2000"`
	Token  string  `json:"token" binding:"omitempty,max=64" example:"f5a1c9e0-6a8b-4c3d-9e2f-1b7d8c4a5e6f"`
}

// Create 划拨资金
// @Summary 划拨资金
// @Description 从预算账户向成本中心划拨资金：扣减预算、现金账出账、余额入账三步构成一次幂等操作，同一令牌重放返回原记录。待启用的成本中心收到首笔划拨后自动启用。
// @Tags 资金划拨
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "成本中心ID"
// @Param request body TransferRequest true "划拨信息"
// @Success 200 {object} Response{data=models.FundTransfer} "划拨成功"
// @Failure 400 {object} Response "参数错误或预算余额不足"
// @Failure 401 {object} Response "未授权"
// @Failure 409 {object} Response "状态不允许或并发冲突"
// @Failure 500 {object} Response "部分写入，已转入对账"
// @Failure 503 {object} Response "账务网关不可用"
// @Router /api/v1/cost-centers/{id}/transfers [post]
func (h *TransferHandler) Create(c *gin.Context) {
	id, err := parseIDParam(c)
	if err != nil {
		BadRequest(c, "无效的ID")
		return
	}

	var req TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, config.SafeErrorMessage(err, "参数错误"))
		return
	}
	if req.Token == "" {
		req.Token = uuid.NewString()
	}

	transfer, err := h.coordinator.TransferFunds(id, req.Amount, req.Token)
	if err != nil {
		DomainError(c, err, "划拨失败")
		return
	}

	SuccessWithMessage(c, "划拨成功", transfer)
}

// List 获取划拨记录
// @Summary 获取划拨记录
// @Description 获取成本中心的资金划拨记录（含返还记录）
// @Tags 资金划拨
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "成本中心ID"
// @Success 200 {object} Response{data=[]models.FundTransfer} "获取成功"
// @Failure 401 {object} Response "未授权"
// @Router /api/v1/cost-centers/{id}/transfers [get]
func (h *TransferHandler) List(c *gin.Context) {
	id, err := parseIDParam(c)
	if err != nil {
		BadRequest(c, "无效的ID")
		return
	}

	list, err := h.coordinator.ListTransfers(id)
	if err != nil {
		InternalError(c, config.SafeErrorMessage(err, "查询失败"))
		return
	}
	Success(c, list)
}
