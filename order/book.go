package order

import (
	"fmt"
	"math"
	"sync"

	"stocksim-go/cost"
)

// Book 按创建顺序保存待执行订单，并维护本周期已交易标的标记。
type Book struct {
	mu     sync.RWMutex
	orders []*PendingOrder
	index  map[string]int
	traded map[string]bool
	sm     *StateMachine
}

func NewBook() *Book {
	return &Book{
		index:  make(map[string]int),
		traded: make(map[string]bool),
		sm:     NewStateMachine(),
	}
}

// Add 追加订单（保持插入顺序）。
func (b *Book) Add(o *PendingOrder) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.index[o.ID] = len(b.orders)
	b.orders = append(b.orders, o)
}

// Get 返回订单副本。
func (b *Book) Get(id string) (*PendingOrder, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	i, ok := b.index[id]
	if !ok {
		return nil, false
	}
	return b.orders[i].Clone(), true
}

// List 按插入顺序返回全部订单（拷贝）。
func (b *Book) List() []*PendingOrder {
	b.mu.RLock()
	defer b.mu.RUnlock()
	res := make([]*PendingOrder, 0, len(b.orders))
	for _, o := range b.orders {
		res = append(res, o.Clone())
	}
	return res
}

// IDs 按插入顺序返回订单 ID 快照。
func (b *Book) IDs() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	ids := make([]string, 0, len(b.orders))
	for _, o := range b.orders {
		ids = append(ids, o.ID)
	}
	return ids
}

func (b *Book) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.orders)
}

// Update 在锁内修改订单。
func (b *Book) Update(id string, fn func(o *PendingOrder)) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	i, ok := b.index[id]
	if !ok {
		return ErrUnknownOrder
	}
	fn(b.orders[i])
	return nil
}

// Finish 以终态移除订单，状态转换必须合法（例如未触发的止损限价单不能成交）。
func (b *Book) Finish(id string, to Status) (*PendingOrder, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	i, ok := b.index[id]
	if !ok {
		return nil, ErrUnknownOrder
	}
	o := b.orders[i]
	if !b.sm.IsFinalState(to) {
		return nil, fmt.Errorf("%w: %s is not terminal", ErrInvalidOrder, to)
	}
	if err := b.sm.ValidateTransition(StatusOf(o), to); err != nil {
		return nil, err
	}
	b.removeLocked(i)
	return o, nil
}

func (b *Book) removeLocked(i int) {
	id := b.orders[i].ID
	b.orders = append(b.orders[:i], b.orders[i+1:]...)
	delete(b.index, id)
	for j := i; j < len(b.orders); j++ {
		b.index[b.orders[j].ID] = j
	}
}

// Cancel 撤单；若该标的已无其他挂单，同时释放本周期已交易标记。
func (b *Book) Cancel(id string) (*PendingOrder, error) {
	o, err := b.Finish(id, StatusCanceled)
	if err != nil {
		return nil, err
	}
	b.mu.Lock()
	if !b.hasSymbolLocked(o.Symbol) {
		delete(b.traded, o.Symbol)
	}
	b.mu.Unlock()
	return o, nil
}

// Replace 用 orders 覆盖订单簿（恢复存档时使用）。
func (b *Book) Replace(orders []*PendingOrder) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.orders = make([]*PendingOrder, 0, len(orders))
	b.index = make(map[string]int, len(orders))
	for _, o := range orders {
		b.index[o.ID] = len(b.orders)
		b.orders = append(b.orders, o.Clone())
	}
}

// HasSymbol 是否存在该标的的挂单。
func (b *Book) HasSymbol(symbol string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.hasSymbolLocked(symbol)
}

func (b *Book) hasSymbolLocked(symbol string) bool {
	for _, o := range b.orders {
		if o.Symbol == symbol {
			return true
		}
	}
	return false
}

// MarkTraded 标记本周期已交易的标的。
func (b *Book) MarkTraded(symbol string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.traded[symbol] = true
}

// TradedThisCycle 标的本周期是否已有交易。
func (b *Book) TradedThisCycle(symbol string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.traded[symbol]
}

// ResetCycleMarkers 周期结束时清空已交易标记。
func (b *Book) ResetCycleMarkers() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.traded = make(map[string]bool)
}

// ReservedCash 全部待执行买入类订单按参考价估算的占用现金（扣除附带贷款额）。
// 上层展示“可用现金”时需从现金中减去该值。
func (b *Book) ReservedCash(p cost.Params) float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	total := 0.0
	for _, o := range b.orders {
		if !o.IsBuySide() {
			continue
		}
		need := cost.Calculate(o.ReferencePrice(), o.Shares, cost.Buy, p).Total
		if lr := o.Loan(); lr != nil {
			need -= lr.Amount
		}
		total += math.Max(0, need)
	}
	return cost.RoundCents(total)
}

// ReservedShares 该标的待卖出股数。
func (b *Book) ReservedShares(symbol string) int {
	return b.sumShares(symbol, SideSell)
}

// ReservedCover 该标的待回补股数。
func (b *Book) ReservedCover(symbol string) int {
	return b.sumShares(symbol, SideBuyToCover)
}

func (b *Book) sumShares(symbol string, side Side) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	n := 0
	for _, o := range b.orders {
		if o.Symbol == symbol && o.Side() == side {
			n += o.Shares
		}
	}
	return n
}

// PendingLoanCommitment 未执行订单附带的贷款申请额之和，无申请的订单计 0。
func (b *Book) PendingLoanCommitment() float64 {
	return b.PendingLoanCommitmentExcept("")
}

// PendingLoanCommitmentExcept 同上，但不计 exceptID 自身。
func (b *Book) PendingLoanCommitmentExcept(exceptID string) float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	total := 0.0
	for _, o := range b.orders {
		if o.ID == exceptID {
			continue
		}
		if lr := o.Loan(); lr != nil {
			total += lr.Amount
		}
	}
	return total
}

// ApplySplit 拆股：股数 × ratio，各价格 ÷ ratio，名义价值不变。
func (b *Book) ApplySplit(symbol string, ratio float64) int {
	if ratio <= 0 {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, o := range b.orders {
		if o.Symbol != symbol {
			continue
		}
		splitOrder(o, ratio)
		n++
	}
	return n
}

func splitOrder(o *PendingOrder, ratio float64) {
	o.Shares = int(math.Round(float64(o.Shares) * ratio))
	o.OrderPrice /= ratio
	if o.LastObservedPrice > 0 {
		o.LastObservedPrice /= ratio
	}
	switch k := o.Kind.(type) {
	case Limit:
		k.LimitPrice /= ratio
		o.Kind = k
	case Stop:
		k.StopPrice /= ratio
		o.Kind = k
	case StopLimit:
		k.StopPrice /= ratio
		k.LimitPrice /= ratio
		o.Kind = k
	}
}
