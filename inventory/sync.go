package inventory

import "stocksim-go/cost"

// State 账户持久化快照。
type State struct {
	Cash           float64         `json:"cash"`
	InitialCapital float64         `json:"initialCapital"`
	Realized       float64         `json:"realizedPnL"`
	Holdings       []HoldingState  `json:"holdings"`
	Shorts         []ShortPosition `json:"shorts"`
}

// HoldingState 持仓快照，包含单标的累计实现盈亏。
type HoldingState struct {
	Holding
	Realized float64 `json:"realized,omitempty"`
}

// Snapshot 导出当前账户状态。
func (p *Portfolio) Snapshot() State {
	st := State{
		Cash:           p.Cash(),
		InitialCapital: p.InitialCapital(),
		Realized:       p.RealizedPnL(),
		Shorts:         p.Shorts(),
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, h := range p.holdingsLocked() {
		st.Holdings = append(st.Holdings, HoldingState{Holding: h, Realized: p.holdings[h.Symbol].Realized()})
	}
	return st
}

// Restore 从快照还原出新账户。
func Restore(st State) *Portfolio {
	p := NewPortfolio(st.InitialCapital)
	p.Load(st)
	return p
}

// Load 用快照原地覆盖账户（保持指针不变，供已持有该账户的组件继续使用）。
func (p *Portfolio) Load(st State) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cash = cost.RoundCents(st.Cash)
	p.initialCapital = st.InitialCapital
	p.realized = st.Realized
	p.holdings = make(map[string]*Tracker, len(st.Holdings))
	for _, h := range st.Holdings {
		if h.Shares <= 0 {
			continue
		}
		p.holdings[h.Symbol] = &Tracker{shares: h.Shares, cost: h.AvgCost, realized: h.Realized}
	}
	p.shorts = make(map[string]*Short, len(st.Shorts))
	for _, s := range st.Shorts {
		if s.Shares <= 0 {
			continue
		}
		sh := s.Short
		p.shorts[s.Symbol] = &sh
	}
}
