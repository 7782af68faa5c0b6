package order

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"stocksim-go/cost"
)

// Params 下单相关常量。
type Params struct {
	DefaultValidityCycles     int     `yaml:"defaultValidityCycles" json:"defaultValidityCycles"`
	ShortCollateralRatio      float64 `yaml:"shortCollateralRatio" json:"shortCollateralRatio"`
	OneOrderPerSymbolPerCycle bool    `yaml:"oneOrderPerSymbolPerCycle" json:"oneOrderPerSymbolPerCycle"`
}

// SubmitRequest 下单请求。ValidityCycles 为 0 时使用默认有效期，对市价单无效。
type SubmitRequest struct {
	Symbol         string
	Side           Side
	Kind           KindName
	Shares         int
	Price          float64 // 下单时的当前价
	LimitPrice     float64
	StopPrice      float64
	ValidityCycles int
	Loan           *LoanRequest
}

// Manager 校验下单请求并登记到 Book。
type Manager struct {
	book        *Book
	cost        cost.Params
	params      Params
	mu          sync.RWMutex
	constraints map[string]SymbolConstraints
	newID       func() string
}

func NewManager(book *Book, cp cost.Params, p Params) *Manager {
	return &Manager{
		book:   book,
		cost:   cp,
		params: p,
		newID:  uuid.NewString,
	}
}

// Book 返回底层订单簿。
func (m *Manager) Book() *Book { return m.book }

// Submit 创建待执行订单。市价单创建即非新建状态（剩余延迟 = orderDelayCycles），
// 其余订单创建周期内为新建状态，下一周期起才参与执行与递减。
func (m *Manager) Submit(req SubmitRequest, cycle int) (*PendingOrder, error) {
	if err := m.validate(req); err != nil {
		return nil, err
	}
	if m.params.OneOrderPerSymbolPerCycle && m.book.TradedThisCycle(req.Symbol) {
		return nil, fmt.Errorf("%w: %s", ErrSymbolBusy, req.Symbol)
	}

	o := &PendingOrder{
		ID:           m.newID(),
		Symbol:       req.Symbol,
		Shares:       req.Shares,
		OrderPrice:   req.Price,
		CreatedCycle: cycle,
	}

	switch req.Kind {
	case KindMarket:
		o.Kind = Market{}
		o.RemainingCycles = m.cost.OrderDelayCycles
		o.Fresh = false
	case KindLimit:
		o.Kind = Limit{LimitPrice: req.LimitPrice}
	case KindStopBuy:
		o.Kind = Stop{StopPrice: req.StopPrice}
	case KindStopBuyLimit:
		o.Kind = StopLimit{StopPrice: req.StopPrice, LimitPrice: req.LimitPrice}
	}
	if req.Kind != KindMarket {
		o.Fresh = true
		o.RemainingCycles = req.ValidityCycles
		if o.RemainingCycles == 0 {
			o.RemainingCycles = m.params.DefaultValidityCycles
		}
	}

	switch req.Side {
	case SideBuy:
		o.Action = Buy{}
	case SideSell:
		o.Action = Sell{}
	case SideShortSell:
		o.Action = ShortSell{CollateralLock: cost.RoundCents(float64(req.Shares) * req.Price * m.params.ShortCollateralRatio)}
	case SideBuyToCover:
		var lr *LoanRequest
		if req.Loan != nil {
			c := *req.Loan
			lr = &c
		}
		o.Action = BuyToCover{Loan: lr}
	}

	m.book.Add(o)
	m.book.MarkTraded(o.Symbol)
	return o.Clone(), nil
}

// Cancel 撤销待执行订单。
func (m *Manager) Cancel(id string) (*PendingOrder, error) {
	return m.book.Cancel(id)
}

// SetConstraints 设置各标的的精度/数量限制。
func (m *Manager) SetConstraints(c map[string]SymbolConstraints) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.constraints = make(map[string]SymbolConstraints, len(c))
	for sym, sc := range c {
		m.constraints[sym] = sc
	}
}

func (m *Manager) validate(req SubmitRequest) error {
	if req.Symbol == "" {
		return fmt.Errorf("%w: symbol required", ErrInvalidOrder)
	}
	if req.Shares <= 0 {
		return fmt.Errorf("%w: shares must be > 0", ErrInvalidOrder)
	}
	if req.Price <= 0 {
		return fmt.Errorf("%w: reference price must be > 0", ErrInvalidOrder)
	}
	if req.ValidityCycles < 0 {
		return fmt.Errorf("%w: validity must be >= 0", ErrInvalidOrder)
	}
	switch req.Kind {
	case KindMarket:
	case KindLimit:
		if req.LimitPrice <= 0 {
			return fmt.Errorf("%w: limit order needs limitPrice", ErrInvalidOrder)
		}
	case KindStopBuy:
		if req.StopPrice <= 0 {
			return fmt.Errorf("%w: stop order needs stopPrice", ErrInvalidOrder)
		}
	case KindStopBuyLimit:
		if req.StopPrice <= 0 || req.LimitPrice <= 0 {
			return fmt.Errorf("%w: stop-limit order needs stopPrice and limitPrice", ErrInvalidOrder)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidOrder, req.Kind)
	}
	switch req.Side {
	case SideBuy, SideSell, SideShortSell:
		if req.Loan != nil {
			return fmt.Errorf("%w: loan request only allowed on buyToCover", ErrInvalidOrder)
		}
	case SideBuyToCover:
		if req.Loan != nil && (req.Loan.Amount < 0 || req.Loan.DurationCycles <= 0) {
			return fmt.Errorf("%w: loan request needs amount >= 0 and duration > 0", ErrInvalidOrder)
		}
	default:
		return fmt.Errorf("%w: unknown side %q", ErrInvalidOrder, req.Side)
	}

	m.mu.RLock()
	c, ok := m.constraints[req.Symbol]
	m.mu.RUnlock()
	if !ok {
		return nil
	}
	for _, p := range []float64{req.LimitPrice, req.StopPrice} {
		if p > 0 {
			if err := c.Validate(p, req.Shares); err != nil {
				return fmt.Errorf("%w: %v", ErrInvalidOrder, err)
			}
		}
	}
	if req.Kind == KindMarket {
		if err := c.Validate(0, req.Shares); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidOrder, err)
		}
	}
	return nil
}
