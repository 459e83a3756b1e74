package service

import (
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"costcenter/config"
	"costcenter/database"
	"costcenter/models"

	"gorm.io/gorm"
)

// round2 金额统一保留两位小数再比较，避免浮点尾差
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// TransferCoordinator 资金划拨协调器
// 预算账户、现金流水账、成本中心余额三个存储不共享事务边界，
// 按固定顺序（预算扣减 -> 现金出账 -> 余额入账）执行短 saga，
// 幂等令牌保证调用方超时重试时绝不重复入账
type TransferCoordinator struct {
	gateway    *LedgerGateway
	maxRetries int
}

// NewTransferCoordinator 创建划拨协调器
func NewTransferCoordinator(cfg *config.Config) *TransferCoordinator {
	retries := 3
	if cfg != nil && cfg.Transfer.MaxVersionRetries > 0 {
		retries = cfg.Transfer.MaxVersionRetries
	}
	return &TransferCoordinator{
		gateway:    NewLedgerGateway(),
		maxRetries: retries,
	}
}

// TransferFunds 从预算账户向成本中心划拨资金
// 同一令牌重放时返回原记录，不再产生任何资金变动；
// pending 状态的成本中心收到首笔划拨后转为 active
func (c *TransferCoordinator) TransferFunds(costCenterID uint, amount float64, token string) (*models.FundTransfer, error) {
	if amount <= 0 {
		return nil, &ValidationError{Field: "amount", Msg: "必须大于 0"}
	}
	if token == "" {
		return nil, &ValidationError{Field: "token", Msg: "缺少幂等令牌"}
	}
	amount = round2(amount)

	// 令牌重放检查：已成功的划拨直接返回原记录
	if existing, err := c.findByToken(token); err != nil {
		return nil, err
	} else if existing != nil {
		return c.replay(existing)
	}

	var cc models.CostCenter
	if err := database.DB.First(&cc, costCenterID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Entity: "成本中心", ID: costCenterID}
		}
		return nil, err
	}
	if !cc.AcceptsFunds() {
		return nil, &InvalidStateError{Op: "划拨资金", Status: cc.Status}
	}

	// 用唯一索引先占住令牌，并发重放会在这里撞上重复键
	transfer := models.FundTransfer{
		Token:           token,
		CostCenterID:    cc.ID,
		BudgetAccountID: cc.BudgetAccountID,
		Kind:            models.TransferKindIn,
		Amount:          amount,
		Status:          models.TransferStatusReserved,
	}
	if err := database.DB.Create(&transfer).Error; err != nil {
		// 重复键说明另一调用已持有该令牌
		if existing, ferr := c.findByToken(token); ferr == nil && existing != nil {
			return c.replay(existing)
		}
		return nil, &GatewayUnavailableError{Op: "reserve_transfer", Err: err}
	}

	// 步骤一：扣减预算，余额不足时在任何写入前失败
	if err := c.gateway.DebitBudget(database.DB, cc.BudgetAccountID, amount, token); err != nil {
		c.releaseReservation(&transfer)
		return nil, err
	}

	// 步骤二：现金账出账
	entry := models.CashLedgerEntry{
		Direction:     models.CashDirectionOut,
		Amount:        amount,
		Origin:        cc.Title,
		EntryDate:     time.Now(),
		Note:          fmt.Sprintf("划拨至成本中心「%s」", cc.Title),
		TransferToken: token,
	}
	cashEntryID, err := c.gateway.AppendCashEntry(database.DB, &entry)
	if err != nil {
		// 补偿已扣减的预算后返回，调用方可携带同一令牌整体重试
		if cerr := c.gateway.CompensateDebit(database.DB, cc.BudgetAccountID, amount, token); cerr != nil {
			c.markPartial(&transfer, "现金出账失败且预算补偿失败: "+cerr.Error())
			return nil, &PartialCommitError{Token: token, Reason: "预算已扣减但现金出账失败，补偿亦失败"}
		}
		c.releaseReservation(&transfer)
		return nil, err
	}

	// 步骤三：余额入账（版本号守卫），只有版本冲突会被有限次重试
	activated, err := c.creditBalance(&cc, amount)
	if err != nil {
		c.markPartial(&transfer, err.Error())
		return nil, &PartialCommitError{Token: token, Reason: "预算已扣减、现金已出账，但成本中心余额入账失败"}
	}

	// 提交划拨记录
	if err := database.DB.Model(&transfer).Updates(map[string]interface{}{
		"status":        models.TransferStatusCommitted,
		"cash_entry_id": cashEntryID,
	}).Error; err != nil {
		return nil, &GatewayUnavailableError{Op: "commit_transfer", Err: err}
	}
	transfer.Status = models.TransferStatusCommitted
	transfer.CashEntryID = cashEntryID

	if activated {
		c.recordEvent(cc.ID, models.EventCostCenterActivated, 0, "首笔划拨到账，成本中心启用")
	}

	return &transfer, nil
}

// ReverseFunds 将成本中心的未支出余额返还预算账户
// 与正向划拨同一套 saga/幂等纪律，顺序相反：余额清零 -> 现金入账 -> 预算返还；
// 成功后就地更新 cc 的余额与版本号
func (c *TransferCoordinator) ReverseFunds(cc *models.CostCenter, token, note string) (*models.FundTransfer, error) {
	if token == "" {
		return nil, &ValidationError{Field: "token", Msg: "缺少幂等令牌"}
	}
	amount := round2(cc.Balance)
	if amount <= 0 {
		return nil, nil
	}

	if existing, err := c.findByToken(token); err != nil {
		return nil, err
	} else if existing != nil {
		return c.replay(existing)
	}

	transfer := models.FundTransfer{
		Token:           token,
		CostCenterID:    cc.ID,
		BudgetAccountID: cc.BudgetAccountID,
		Kind:            models.TransferKindReversal,
		Amount:          amount,
		Status:          models.TransferStatusReserved,
	}
	if err := database.DB.Create(&transfer).Error; err != nil {
		if existing, ferr := c.findByToken(token); ferr == nil && existing != nil {
			return c.replay(existing)
		}
		return nil, &GatewayUnavailableError{Op: "reserve_reversal", Err: err}
	}

	// 步骤一：余额清零（版本号守卫），失败时尚无任何资金变动
	res := database.DB.Model(&models.CostCenter{}).
		Where("id = ? AND version = ?", cc.ID, cc.Version).
		Updates(map[string]interface{}{
			"balance":    0,
			"version":    cc.Version + 1,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		c.releaseReservation(&transfer)
		return nil, &GatewayUnavailableError{Op: "zero_balance", Err: res.Error}
	}
	if res.RowsAffected == 0 {
		c.releaseReservation(&transfer)
		return nil, &ConcurrentModificationError{Entity: "成本中心", ID: cc.ID}
	}
	cc.Balance = 0
	cc.Version++

	// 步骤二：现金账入账
	entry := models.CashLedgerEntry{
		Direction:     models.CashDirectionIn,
		Amount:        amount,
		Origin:        cc.Title,
		EntryDate:     time.Now(),
		Note:          note,
		TransferToken: token,
	}
	cashEntryID, err := c.gateway.AppendCashEntry(database.DB, &entry)
	if err != nil {
		// 补偿：恢复余额
		rres := database.DB.Model(&models.CostCenter{}).
			Where("id = ? AND version = ?", cc.ID, cc.Version).
			Updates(map[string]interface{}{
				"balance":    amount,
				"version":    cc.Version + 1,
				"updated_at": time.Now(),
			})
		if rres.Error != nil || rres.RowsAffected == 0 {
			c.markPartial(&transfer, "现金入账失败且余额恢复失败")
			return nil, &PartialCommitError{Token: token, Reason: "余额已清零但现金入账失败，补偿亦失败"}
		}
		cc.Balance = amount
		cc.Version++
		c.releaseReservation(&transfer)
		return nil, err
	}

	// 步骤三：预算返还
	if err := c.gateway.CreditBudget(database.DB, cc.BudgetAccountID, amount, token); err != nil {
		c.markPartial(&transfer, "余额已清零、现金已入账，但预算返还失败")
		return nil, &PartialCommitError{Token: token, Reason: "余额已清零、现金已入账，但预算返还失败"}
	}

	if err := database.DB.Model(&transfer).Updates(map[string]interface{}{
		"status":        models.TransferStatusCommitted,
		"cash_entry_id": cashEntryID,
	}).Error; err != nil {
		return nil, &GatewayUnavailableError{Op: "commit_reversal", Err: err}
	}
	transfer.Status = models.TransferStatusCommitted
	transfer.CashEntryID = cashEntryID

	return &transfer, nil
}

// ListTransfers 查询成本中心的划拨记录
func (c *TransferCoordinator) ListTransfers(costCenterID uint) ([]models.FundTransfer, error) {
	var list []models.FundTransfer
	err := database.DB.Where("cost_center_id = ?", costCenterID).
		Order("id DESC").Find(&list).Error
	return list, err
}

// creditBalance 余额入账并在首笔划拨时激活成本中心
// 只重试版本冲突：重读聚合后重新套用，最多 maxRetries 次
func (c *TransferCoordinator) creditBalance(cc *models.CostCenter, amount float64) (activated bool, err error) {
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		updates := map[string]interface{}{
			"balance":    gorm.Expr("balance + ?", amount),
			"version":    cc.Version + 1,
			"updated_at": time.Now(),
		}
		activated = cc.Status == models.CostCenterStatusPending
		if activated {
			updates["status"] = models.CostCenterStatusActive
		}

		res := database.DB.Model(&models.CostCenter{}).
			Where("id = ? AND version = ?", cc.ID, cc.Version).
			Updates(updates)
		if res.Error != nil {
			return false, res.Error
		}
		if res.RowsAffected > 0 {
			cc.Balance = round2(cc.Balance + amount)
			cc.Version++
			if activated {
				cc.Status = models.CostCenterStatusActive
			}
			return activated, nil
		}

		// 版本冲突：重读后再试
		var fresh models.CostCenter
		if rerr := database.DB.First(&fresh, cc.ID).Error; rerr != nil {
			return false, rerr
		}
		if !fresh.AcceptsFunds() {
			return false, &InvalidStateError{Op: "余额入账", Status: fresh.Status}
		}
		*cc = fresh
	}
	return false, &ConcurrentModificationError{Entity: "成本中心", ID: cc.ID}
}

// findByToken 按幂等令牌查找划拨记录，不存在返回 nil
func (c *TransferCoordinator) findByToken(token string) (*models.FundTransfer, error) {
	var t models.FundTransfer
	err := database.DB.Where("token = ?", token).First(&t).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, &GatewayUnavailableError{Op: "find_transfer", Err: err}
	}
	return &t, nil
}

// replay 处理令牌重放：成功的划拨返回原记录，未完成的划拨拒绝
func (c *TransferCoordinator) replay(t *models.FundTransfer) (*models.FundTransfer, error) {
	switch t.Status {
	case models.TransferStatusCommitted:
		return t, nil
	case models.TransferStatusPartial:
		return nil, &PartialCommitError{Token: t.Token, Reason: t.FailureReason}
	default:
		// 另一调用正在执行中
		return nil, &ConcurrentModificationError{Entity: "划拨记录", ID: t.ID}
	}
}

// releaseReservation 前置条件失败时释放令牌占位，整体无净效果
func (c *TransferCoordinator) releaseReservation(t *models.FundTransfer) {
	if err := database.DB.Delete(t).Error; err != nil {
		log.Printf("释放划拨占位失败 token=%s: %v", t.Token, err)
	}
}

// markPartial 标记部分写入，绝不自动重试，由对账流程基于现金账修复
func (c *TransferCoordinator) markPartial(t *models.FundTransfer, reason string) {
	if err := database.DB.Model(t).Updates(map[string]interface{}{
		"status":         models.TransferStatusPartial,
		"failure_reason": reason,
	}).Error; err != nil {
		log.Printf("标记部分写入失败 token=%s: %v", t.Token, err)
	}
	log.Printf("划拨部分写入 token=%s: %s", t.Token, reason)
}

// recordEvent 记录工作流事件
func (c *TransferCoordinator) recordEvent(costCenterID uint, eventType string, actorID uint, note string) {
	ev := models.WorkflowEvent{
		CostCenterID: costCenterID,
		Type:         eventType,
		ActorID:      actorID,
		Note:         note,
	}
	if err := database.DB.Create(&ev).Error; err != nil {
		log.Printf("记录工作流事件失败 cc=%d type=%s: %v", costCenterID, eventType, err)
	}
}
