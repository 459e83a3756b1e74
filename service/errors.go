package service

import (
	"fmt"
)

// 领域错误以具体类型返回，调用方用 errors.As 区分处理，
// 拒绝原因必须说明“为什么”，而不是笼统的失败提示

// ValidationError 参数校验失败（金额非正、必填字段缺失等），可由调用方修正后重试
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("参数校验失败: %s %s", e.Field, e.Msg)
	}
	return "参数校验失败: " + e.Msg
}

// NotFoundError 目标记录不存在
type NotFoundError struct {
	Entity string
	ID     uint
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s不存在 (id=%d)", e.Entity, e.ID)
}

// InvalidTransitionError 非法状态流转，状态保持不变，调用方可选择合法操作
type InvalidTransitionError struct {
	From   string
	To     string
	Reason string
}

func (e *InvalidTransitionError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("非法状态流转 %s -> %s: %s", e.From, e.To, e.Reason)
	}
	return fmt.Sprintf("非法状态流转 %s -> %s", e.From, e.To)
}

// InvalidStateError 当前状态不允许该操作（如对已结项的成本中心划拨资金）
type InvalidStateError struct {
	Op     string
	Status string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("当前状态 %s 不允许%s", e.Status, e.Op)
}

// InsufficientBudgetError 预算余额不足，未产生任何写入
type InsufficientBudgetError struct {
	Requested float64
	Remaining float64
}

func (e *InsufficientBudgetError) Error() string {
	return fmt.Sprintf("预算余额不足: 申请 %.2f，剩余 %.2f", e.Requested, e.Remaining)
}

// InsufficientBalanceError 成本中心余额不足，费用保持待审批，需人工处理
type InsufficientBalanceError struct {
	Requested float64
	Balance   float64
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("成本中心余额不足: 费用 %.2f，余额 %.2f", e.Requested, e.Balance)
}

// ConcurrentModificationError 版本号不匹配，内部有限次重试后仍冲突时抛出
type ConcurrentModificationError struct {
	Entity string
	ID     uint
}

func (e *ConcurrentModificationError) Error() string {
	return fmt.Sprintf("%s已被其他操作修改，请刷新后重试 (id=%d)", e.Entity, e.ID)
}

// PartialCommitError 跨存储写入只完成了一部分，绝不自动重试，留待对账修复
type PartialCommitError struct {
	Token  string
	Reason string
}

func (e *PartialCommitError) Error() string {
	return fmt.Sprintf("划拨 %s 部分写入: %s，已转入对账队列", e.Token, e.Reason)
}

// GatewayUnavailableError 外部账务存储暂时不可用，与领域错误区分；
// 只有携带幂等令牌的操作才可安全地整体重试
type GatewayUnavailableError struct {
	Op  string
	Err error
}

func (e *GatewayUnavailableError) Error() string {
	return fmt.Sprintf("账务网关不可用 (%s): %v", e.Op, e.Err)
}

func (e *GatewayUnavailableError) Unwrap() error {
	return e.Err
}
