package inventory

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"stocksim-go/cost"
)

// Holding 一条多头持仓视图。
type Holding struct {
	Symbol  string  `json:"symbol"`
	Shares  int     `json:"shares"`
	AvgCost float64 `json:"avgCost"`
}

// ShortPosition 一条空头仓位视图。
type ShortPosition struct {
	Symbol string `json:"symbol"`
	Short
}

// Portfolio 玩家账户。所有金额以美元计，按分取整。
type Portfolio struct {
	mu             sync.RWMutex
	cash           float64
	initialCapital float64
	realized       float64
	holdings       map[string]*Tracker
	shorts         map[string]*Short
}

// NewPortfolio 以 initialCash 作为现金与声明的初始资金。
func NewPortfolio(initialCash float64) *Portfolio {
	return &Portfolio{
		cash:           cost.RoundCents(initialCash),
		initialCapital: initialCash,
		holdings:       make(map[string]*Tracker),
		shorts:         make(map[string]*Short),
	}
}

func (p *Portfolio) Cash() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cash
}

// InitialCapital 声明的初始资金（基础抵押品的计算依据）。
func (p *Portfolio) InitialCapital() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.initialCapital
}

// RealizedPnL 累计已实现盈亏（多头卖出 + 空头回补）。
func (p *Portfolio) RealizedPnL() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.realized
}

// Deposit 入账（贷款放款等）。
func (p *Portfolio) Deposit(amount float64) {
	if amount <= 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cash = cost.RoundCents(p.cash + amount)
}

// Withdraw 出账（还款等），现金不足返回 ErrInsufficientCash。
func (p *Portfolio) Withdraw(amount float64) error {
	if amount <= 0 {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if amount > p.cash+1e-9 {
		return fmt.Errorf("%w: need %.2f have %.2f", ErrInsufficientCash, amount, p.cash)
	}
	p.cash = cost.RoundCents(p.cash - amount)
	return nil
}

// Buy 买入 shares 股，total 为含全部成本的支付额。
func (p *Portfolio) Buy(symbol string, shares int, total float64) error {
	if shares <= 0 {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if total > p.cash+1e-9 {
		return fmt.Errorf("%w: need %.2f have %.2f", ErrInsufficientCash, total, p.cash)
	}
	p.cash = cost.RoundCents(p.cash - total)
	tr, ok := p.holdings[symbol]
	if !ok {
		tr = &Tracker{}
		p.holdings[symbol] = tr
	}
	tr.Add(shares, total/float64(shares))
	return nil
}

// Sell 卖出持仓，proceeds 为扣除成本后的到账额。返回实现盈亏。
func (p *Portfolio) Sell(symbol string, shares int, proceeds float64) (float64, error) {
	if shares <= 0 {
		return 0, nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	tr, ok := p.holdings[symbol]
	if !ok || tr.Shares() < shares {
		have := 0
		if ok {
			have = tr.Shares()
		}
		return 0, fmt.Errorf("%w: %s need %d have %d", ErrInsufficientShares, symbol, shares, have)
	}
	pnl := tr.Remove(shares, proceeds/float64(shares))
	if tr.Shares() == 0 {
		delete(p.holdings, symbol)
	}
	p.cash = cost.RoundCents(p.cash + proceeds)
	p.realized += pnl
	return pnl, nil
}

// OpenShort 做空：到账 proceeds，同时从现金中锁定 collateral。
func (p *Portfolio) OpenShort(symbol string, shares int, proceeds, collateral float64) error {
	if shares <= 0 {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if collateral > p.cash+proceeds+1e-9 {
		return fmt.Errorf("%w: collateral %.2f exceeds cash %.2f", ErrInsufficientCash, collateral, p.cash+proceeds)
	}
	p.cash = cost.RoundCents(p.cash + proceeds - collateral)
	s, ok := p.shorts[symbol]
	if !ok {
		s = &Short{}
		p.shorts[symbol] = s
	}
	s.add(shares, proceeds/float64(shares), collateral)
	return nil
}

// CoverRelease 回补 shares 股时释放的保证金估算。
func (p *Portfolio) CoverRelease(symbol string, shares int) float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s, ok := p.shorts[symbol]
	if !ok {
		return 0
	}
	return s.release(shares)
}

// Cover 买入回补：释放对应比例保证金后支付 total。返回实现盈亏。
func (p *Portfolio) Cover(symbol string, shares int, total float64) (float64, error) {
	if shares <= 0 {
		return 0, nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.shorts[symbol]
	if !ok || s.Shares == 0 {
		return 0, fmt.Errorf("%w: %s", ErrNoShortPosition, symbol)
	}
	if shares > s.Shares {
		return 0, fmt.Errorf("%w: %s cover %d short %d", ErrInsufficientShares, symbol, shares, s.Shares)
	}
	release := s.release(shares)
	if total > p.cash+release+1e-9 {
		return 0, fmt.Errorf("%w: need %.2f have %.2f", ErrInsufficientCash, total, p.cash+release)
	}
	pnl := s.EntryPrice*float64(shares) - total
	s.Shares -= shares
	s.Collateral = cost.RoundCents(s.Collateral - release)
	if s.Shares == 0 {
		delete(p.shorts, symbol)
	}
	p.cash = cost.RoundCents(p.cash + release - total)
	p.realized += pnl
	return pnl, nil
}

// Shares 多头持股数。
func (p *Portfolio) Shares(symbol string) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if tr, ok := p.holdings[symbol]; ok {
		return tr.Shares()
	}
	return 0
}

// ShortShares 空头股数。
func (p *Portfolio) ShortShares(symbol string) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if s, ok := p.shorts[symbol]; ok {
		return s.Shares
	}
	return 0
}

// Holdings 按 symbol 排序的多头持仓。
func (p *Portfolio) Holdings() []Holding {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.holdingsLocked()
}

func (p *Portfolio) holdingsLocked() []Holding {
	out := make([]Holding, 0, len(p.holdings))
	for sym, tr := range p.holdings {
		out = append(out, Holding{Symbol: sym, Shares: tr.Shares(), AvgCost: tr.AvgCost()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// Shorts 按 symbol 排序的空头仓位。
func (p *Portfolio) Shorts() []ShortPosition {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]ShortPosition, 0, len(p.shorts))
	for sym, s := range p.shorts {
		out = append(out, ShortPosition{Symbol: sym, Short: *s})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// ApplySplit 拆股：多头股数 × r、成本 ÷ r；空头股数 × r、开仓价 ÷ r。
func (p *Portfolio) ApplySplit(symbol string, ratio float64) {
	if ratio <= 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if tr, ok := p.holdings[symbol]; ok {
		tr.Split(ratio)
	}
	if s, ok := p.shorts[symbol]; ok {
		s.Shares = int(math.Round(float64(s.Shares) * ratio))
		s.EntryPrice /= ratio
	}
}
