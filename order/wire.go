package order

import (
	"encoding/json"
	"fmt"
)

// wireOrder 持久化格式：扁平字段，显式保存 stopTriggered 与 isFreshlyCreated。
type wireOrder struct {
	ID                      string       `json:"id"`
	Symbol                  string       `json:"symbol"`
	Side                    Side         `json:"side"`
	Kind                    KindName     `json:"kind"`
	Shares                  int          `json:"shares"`
	OrderPrice              float64      `json:"orderPrice"`
	LimitPrice              *float64     `json:"limitPrice,omitempty"`
	StopPrice               *float64     `json:"stopPrice,omitempty"`
	StopTriggered           bool         `json:"stopTriggered"`
	RemainingValidityCycles int          `json:"remainingValidityCycles"`
	IsFreshlyCreated        bool         `json:"isFreshlyCreated"`
	LoanRequest             *LoanRequest `json:"loanRequest,omitempty"`
	CollateralToLock        *float64     `json:"collateralToLock,omitempty"`
	CreatedCycle            int          `json:"createdCycle"`
	LastObservedPrice       float64      `json:"lastObservedPrice,omitempty"`
	ParentID                string       `json:"parentId,omitempty"`
	PartialFilled           bool         `json:"partialFilled,omitempty"`
}

// MarshalJSON 输出扁平持久化格式。
func (o PendingOrder) MarshalJSON() ([]byte, error) {
	w := wireOrder{
		ID:                      o.ID,
		Symbol:                  o.Symbol,
		Side:                    o.Action.Side(),
		Kind:                    o.Kind.Name(),
		Shares:                  o.Shares,
		OrderPrice:              o.OrderPrice,
		RemainingValidityCycles: o.RemainingCycles,
		IsFreshlyCreated:        o.Fresh,
		CreatedCycle:            o.CreatedCycle,
		LastObservedPrice:       o.LastObservedPrice,
		ParentID:                o.ParentID,
		PartialFilled:           o.PartialFilled,
	}
	switch k := o.Kind.(type) {
	case Limit:
		w.LimitPrice = &k.LimitPrice
	case Stop:
		w.StopPrice = &k.StopPrice
	case StopLimit:
		w.StopPrice = &k.StopPrice
		w.LimitPrice = &k.LimitPrice
		w.StopTriggered = k.Triggered
	}
	switch a := o.Action.(type) {
	case ShortSell:
		w.CollateralToLock = &a.CollateralLock
	case BuyToCover:
		w.LoanRequest = a.Loan
	}
	return json.Marshal(w)
}

// UnmarshalJSON 还原和类型，拒绝字段与类型不匹配的记录。
func (o *PendingOrder) UnmarshalJSON(data []byte) error {
	var w wireOrder
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	kind, err := decodeKind(w)
	if err != nil {
		return err
	}
	action, err := decodeAction(w)
	if err != nil {
		return err
	}
	*o = PendingOrder{
		ID:                w.ID,
		Symbol:            w.Symbol,
		Action:            action,
		Kind:              kind,
		Shares:            w.Shares,
		OrderPrice:        w.OrderPrice,
		RemainingCycles:   w.RemainingValidityCycles,
		Fresh:             w.IsFreshlyCreated,
		CreatedCycle:      w.CreatedCycle,
		LastObservedPrice: w.LastObservedPrice,
		ParentID:          w.ParentID,
		PartialFilled:     w.PartialFilled,
	}
	return nil
}

func decodeKind(w wireOrder) (Kind, error) {
	switch w.Kind {
	case KindMarket:
		return Market{}, nil
	case KindLimit:
		if w.LimitPrice == nil {
			return nil, fmt.Errorf("%w: order %s limit without limitPrice", ErrInvalidOrder, w.ID)
		}
		return Limit{LimitPrice: *w.LimitPrice}, nil
	case KindStopBuy:
		if w.StopPrice == nil {
			return nil, fmt.Errorf("%w: order %s stop without stopPrice", ErrInvalidOrder, w.ID)
		}
		return Stop{StopPrice: *w.StopPrice}, nil
	case KindStopBuyLimit:
		if w.StopPrice == nil || w.LimitPrice == nil {
			return nil, fmt.Errorf("%w: order %s stop-limit needs both prices", ErrInvalidOrder, w.ID)
		}
		return StopLimit{StopPrice: *w.StopPrice, LimitPrice: *w.LimitPrice, Triggered: w.StopTriggered}, nil
	}
	return nil, fmt.Errorf("%w: order %s unknown kind %q", ErrInvalidOrder, w.ID, w.Kind)
}

func decodeAction(w wireOrder) (Action, error) {
	switch w.Side {
	case SideBuy:
		return Buy{}, nil
	case SideSell:
		return Sell{}, nil
	case SideShortSell:
		lock := 0.0
		if w.CollateralToLock != nil {
			lock = *w.CollateralToLock
		}
		return ShortSell{CollateralLock: lock}, nil
	case SideBuyToCover:
		return BuyToCover{Loan: w.LoanRequest}, nil
	}
	return nil, fmt.Errorf("%w: order %s unknown side %q", ErrInvalidOrder, w.ID, w.Side)
}
