package service

import (
	"fmt"
	"log"
	"strings"
	"time"

	"costcenter/config"
	"costcenter/database"
	"costcenter/models"
)

// Workflow 结项工作流
// finalize（封账）-> approve（审批通过并返还余额）或 reject（驳回回到进行中），
// 另含取消与资金申请的信息性切换；所有流转经过登记处的版本号守卫
type Workflow struct {
	registry    *Registry
	coordinator *TransferCoordinator
	notifier    *NotifyService
}

// NewWorkflow 创建结项工作流
func NewWorkflow(cfg *config.Config) *Workflow {
	var notifier *NotifyService
	if cfg != nil {
		notifier = NewNotifyService(&cfg.Email)
	}
	return &Workflow{
		registry:    NewRegistry(),
		coordinator: NewTransferCoordinator(cfg),
		notifier:    notifier,
	}
}

// Finalize 封账：进行中/待拨款 -> 审核中
// 守卫条件为没有任何待审批费用，封账后禁止提交新费用
func (w *Workflow) Finalize(costCenterID, actorID uint) (*models.CostCenter, error) {
	cc, err := w.registry.GetCostCenter(costCenterID)
	if err != nil {
		return nil, err
	}
	if !CanTransition(cc.Status, models.CostCenterStatusUnderReview) {
		return nil, &InvalidTransitionError{From: cc.Status, To: models.CostCenterStatusUnderReview}
	}

	pending, err := w.registry.CountPendingExpenses(cc.ID)
	if err != nil {
		return nil, err
	}
	if pending > 0 {
		return nil, &InvalidTransitionError{
			From:   cc.Status,
			To:     models.CostCenterStatusUnderReview,
			Reason: fmt.Sprintf("还有 %d 条待审批费用", pending),
		}
	}

	now := time.Now()
	if err := w.registry.Transition(database.DB, cc, models.CostCenterStatusUnderReview, map[string]interface{}{
		"finalized_at": now,
	}); err != nil {
		return nil, err
	}
	cc.FinalizedAt = &now

	w.emit(cc, models.EventCostCenterFinalized, actorID, "成本中心封账，进入审核")
	return cc, nil
}

// Approve 审批通过：审核中 -> 已结项，不可逆
// 未支出余额按与划拨相同的 saga/幂等纪律返还预算账户；
// 幂等令牌由成本中心ID推导，超时后整体重试安全
func (w *Workflow) Approve(costCenterID, actorID uint) (*models.CostCenter, error) {
	cc, err := w.registry.GetCostCenter(costCenterID)
	if err != nil {
		return nil, err
	}
	if cc.Status != models.CostCenterStatusUnderReview {
		return nil, &InvalidTransitionError{From: cc.Status, To: models.CostCenterStatusFinalized}
	}

	// 封账时已禁止存在待审批费用，这里再守卫一次
	pending, err := w.registry.CountPendingExpenses(cc.ID)
	if err != nil {
		return nil, err
	}
	if pending > 0 {
		return nil, &InvalidTransitionError{
			From:   cc.Status,
			To:     models.CostCenterStatusFinalized,
			Reason: fmt.Sprintf("还有 %d 条待审批费用", pending),
		}
	}

	// 返还未支出余额；重试进入时余额已为零则直接跳过
	// 令牌带上版本号：驳回后再次结项时聚合版本已变，
	// 新一轮返还不会被上一轮的已提交记录当作重放吞掉
	if round2(cc.Balance) > 0 {
		token := fmt.Sprintf("cc-%d-approve-v%d", cc.ID, cc.Version)
		note := fmt.Sprintf("成本中心「%s」结项，未支出余额返还预算", cc.Title)
		if _, err := w.coordinator.ReverseFunds(cc, token, note); err != nil {
			return nil, err
		}
	}

	now := time.Now()
	if err := w.registry.Transition(database.DB, cc, models.CostCenterStatusFinalized, map[string]interface{}{
		"approved_at": now,
	}); err != nil {
		return nil, err
	}
	cc.ApprovedAt = &now

	w.emit(cc, models.EventCostCenterApproved, actorID, "审批通过，成本中心结项")
	return cc, nil
}

// Reject 驳回：审核中 -> 进行中，必须填写理由，不产生资金变动
// 费用提交随状态恢复重新放开
func (w *Workflow) Reject(costCenterID, actorID uint, reason string) (*models.CostCenter, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, &ValidationError{Field: "reason", Msg: "驳回必须填写理由"}
	}

	cc, err := w.registry.GetCostCenter(costCenterID)
	if err != nil {
		return nil, err
	}
	if cc.Status != models.CostCenterStatusUnderReview {
		return nil, &InvalidTransitionError{From: cc.Status, To: models.CostCenterStatusActive}
	}

	if err := w.registry.Transition(database.DB, cc, models.CostCenterStatusActive, map[string]interface{}{
		"review_note":  reason,
		"finalized_at": nil,
	}); err != nil {
		return nil, err
	}
	cc.ReviewNote = reason

	w.emit(cc, models.EventCostCenterRejected, actorID, reason)
	return cc, nil
}

// Cancel 取消：任意非终态 -> 已取消
// 余额未清零时先强制返还预算，保证资金守恒
func (w *Workflow) Cancel(costCenterID, actorID uint, note string) (*models.CostCenter, error) {
	cc, err := w.registry.GetCostCenter(costCenterID)
	if err != nil {
		return nil, err
	}
	if cc.IsTerminal() {
		return nil, &InvalidTransitionError{From: cc.Status, To: models.CostCenterStatusCancelled}
	}

	if round2(cc.Balance) > 0 {
		token := fmt.Sprintf("cc-%d-cancel-v%d", cc.ID, cc.Version)
		reverseNote := fmt.Sprintf("成本中心「%s」取消，余额返还预算", cc.Title)
		if _, err := w.coordinator.ReverseFunds(cc, token, reverseNote); err != nil {
			return nil, err
		}
	}

	if err := w.registry.Transition(database.DB, cc, models.CostCenterStatusCancelled, nil); err != nil {
		return nil, err
	}

	w.emit(cc, models.EventCostCenterCancelled, actorID, note)
	return cc, nil
}

// RequestFunds 申请资金：进行中 -> 待拨款，信息性切换，不动余额
func (w *Workflow) RequestFunds(costCenterID, actorID uint) (*models.CostCenter, error) {
	cc, err := w.registry.GetCostCenter(costCenterID)
	if err != nil {
		return nil, err
	}
	if cc.Status != models.CostCenterStatusActive {
		return nil, &InvalidTransitionError{From: cc.Status, To: models.CostCenterStatusAwaitingFunds}
	}
	if err := w.registry.Transition(database.DB, cc, models.CostCenterStatusAwaitingFunds, nil); err != nil {
		return nil, err
	}
	w.emit(cc, models.EventFundsRequested, actorID, "")
	return cc, nil
}

// FundsReceived 确认到款：待拨款 -> 进行中，信息性切换，不动余额
func (w *Workflow) FundsReceived(costCenterID, actorID uint) (*models.CostCenter, error) {
	cc, err := w.registry.GetCostCenter(costCenterID)
	if err != nil {
		return nil, err
	}
	if cc.Status != models.CostCenterStatusAwaitingFunds {
		return nil, &InvalidTransitionError{From: cc.Status, To: models.CostCenterStatusActive}
	}
	if err := w.registry.Transition(database.DB, cc, models.CostCenterStatusActive, nil); err != nil {
		return nil, err
	}
	w.emit(cc, models.EventFundsReceived, actorID, "")
	return cc, nil
}

// ListEvents 查询成本中心的工作流事件
func (w *Workflow) ListEvents(costCenterID uint) ([]models.WorkflowEvent, error) {
	var list []models.WorkflowEvent
	err := database.DB.Where("cost_center_id = ?", costCenterID).
		Order("id DESC").Find(&list).Error
	return list, err
}

// emit 记录工作流事件并尝试通知负责人，通知失败只记日志，不影响主流程
func (w *Workflow) emit(cc *models.CostCenter, eventType string, actorID uint, note string) {
	ev := models.WorkflowEvent{
		CostCenterID: cc.ID,
		Type:         eventType,
		ActorID:      actorID,
		Note:         note,
	}
	if err := database.DB.Create(&ev).Error; err != nil {
		log.Printf("记录工作流事件失败 cc=%d type=%s: %v", cc.ID, eventType, err)
	}

	if w.notifier == nil {
		return
	}
	var responsible models.User
	if err := database.DB.First(&responsible, cc.ResponsibleID).Error; err != nil {
		return
	}
	if responsible.Email == "" {
		return
	}
	if err := w.notifier.SendWorkflowNotice(responsible.Email, responsible.Username, cc, eventType, note); err != nil {
		log.Printf("发送工作流通知失败 cc=%d: %v", cc.ID, err)
	}
}
