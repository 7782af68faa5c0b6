package order

import (
	"fmt"
	"sync"
)

// Status 订单生命周期状态。
type Status string

const (
	StatusFresh           Status = "FRESH"            // 创建周期内，不可触碰
	StatusPending         Status = "PENDING"          // 正常等待
	StatusAwaitingTrigger Status = "AWAITING_TRIGGER" // 止损限价单未触发
	StatusTriggered       Status = "TRIGGERED"        // 止损限价单已触发，等待限价
	StatusExecuted        Status = "EXECUTED"
	StatusExpired         Status = "EXPIRED"
	StatusCanceled        Status = "CANCELED"
)

// StateTransition 状态转换
type StateTransition struct {
	From Status
	To   Status
}

// StateMachine 订单状态机：合法状态转换表。
type StateMachine struct {
	transitions map[StateTransition]bool
	mu          sync.RWMutex
}

// NewStateMachine 创建新的状态机
func NewStateMachine() *StateMachine {
	sm := &StateMachine{
		transitions: make(map[StateTransition]bool),
	}
	sm.initializeTransitions()
	return sm
}

func (sm *StateMachine) initializeTransitions() {
	legalTransitions := []StateTransition{
		// 新建周期结束后进入等待
		{StatusFresh, StatusPending},
		{StatusFresh, StatusAwaitingTrigger},
		{StatusFresh, StatusCanceled},

		{StatusPending, StatusExecuted},
		{StatusPending, StatusExpired},
		{StatusPending, StatusCanceled},

		// 未触发的止损限价单永远不能直接成交
		{StatusAwaitingTrigger, StatusTriggered},
		{StatusAwaitingTrigger, StatusExpired},
		{StatusAwaitingTrigger, StatusCanceled},

		{StatusTriggered, StatusExecuted},
		{StatusTriggered, StatusExpired},
		{StatusTriggered, StatusCanceled},

		// 终态不能转换（EXECUTED, EXPIRED, CANCELED）
	}

	for _, t := range legalTransitions {
		sm.transitions[t] = true
	}
}

// ValidateTransition 验证状态转换是否合法
func (sm *StateMachine) ValidateTransition(from, to Status) error {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if from == to {
		return nil
	}
	if !sm.transitions[StateTransition{From: from, To: to}] {
		return fmt.Errorf("illegal state transition: %s -> %s", from, to)
	}
	return nil
}

// IsFinalState 判断是否是终态
func (sm *StateMachine) IsFinalState(status Status) bool {
	switch status {
	case StatusExecuted, StatusExpired, StatusCanceled:
		return true
	default:
		return false
	}
}

// StatusOf 由订单字段推导当前状态。
func StatusOf(o *PendingOrder) Status {
	if o.Fresh {
		return StatusFresh
	}
	if k, ok := o.Kind.(StopLimit); ok {
		if k.Triggered {
			return StatusTriggered
		}
		return StatusAwaitingTrigger
	}
	return StatusPending
}

// stopRises 触发方向：buy 在价格升破触发价时触发，其余方向在跌破时触发。
func stopRises(s Side) bool { return s == SideBuy }

// limitBelow 限价方向：买入类要求价格不高于限价，卖出类要求不低于限价。
func limitBelow(s Side) bool { return s == SideBuy || s == SideBuyToCover }

func stopHit(s Side, price, stop float64) bool {
	if stopRises(s) {
		return price >= stop
	}
	return price <= stop
}

func limitHit(s Side, price, limit float64) bool {
	if limitBelow(s) {
		return price <= limit
	}
	return price >= limit
}

// ShouldTrigger 未触发的止损限价单在价格穿越触发价时返回 true。
func ShouldTrigger(o *PendingOrder, price float64) bool {
	k, ok := o.Kind.(StopLimit)
	if !ok || k.Triggered || o.Fresh {
		return false
	}
	return stopHit(o.Side(), price, k.StopPrice)
}

// Trigger 打上触发标记（单向锁存）。
func Trigger(o *PendingOrder) {
	if k, ok := o.Kind.(StopLimit); ok {
		k.Triggered = true
		o.Kind = k
	}
}

// CanExecute 价格条件判断，不含周期门控。
func CanExecute(o *PendingOrder, price float64) bool {
	switch k := o.Kind.(type) {
	case Market:
		return true
	case Limit:
		return limitHit(o.Side(), price, k.LimitPrice)
	case Stop:
		return stopHit(o.Side(), price, k.StopPrice)
	case StopLimit:
		if !k.Triggered {
			return false
		}
		return limitHit(o.Side(), price, k.LimitPrice)
	}
	return false
}

// Ready 周期门控：新建订单不执行；市价单需等到剩余延迟 ≤ 1。
func Ready(o *PendingOrder) bool {
	if o.Fresh {
		return false
	}
	if _, ok := o.Kind.(Market); ok {
		return o.RemainingCycles <= 1
	}
	return true
}

// Executable = Ready && CanExecute。
func Executable(o *PendingOrder, price float64) bool {
	return Ready(o) && CanExecute(o, price)
}

// Tick 推进一个周期，返回订单是否因此过期。
// 新建订单只清除 Fresh 标记；市价单计数下限为 0 且永不过期；
// 其余订单递减，计数小于 0 即过期。
func Tick(o *PendingOrder) (expired bool) {
	if o.Fresh {
		o.Fresh = false
		return false
	}
	if _, ok := o.Kind.(Market); ok {
		if o.RemainingCycles > 0 {
			o.RemainingCycles--
		}
		return false
	}
	o.RemainingCycles--
	return o.RemainingCycles < 0
}

// UnmetCondition 描述过期订单未满足的条件，用于终止通知。
func UnmetCondition(o *PendingOrder) (reason string, threshold float64) {
	switch k := o.Kind.(type) {
	case Limit:
		return "limit_not_reached", k.LimitPrice
	case Stop:
		return "stop_not_triggered", k.StopPrice
	case StopLimit:
		if !k.Triggered {
			return "stop_not_triggered", k.StopPrice
		}
		return "limit_not_reached", k.LimitPrice
	}
	return "validity_elapsed", o.OrderPrice
}
