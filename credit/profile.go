package credit

import (
	"math"
	"time"
)

// ScoreParams 信用评分常量。
type ScoreParams struct {
	Min                  float64 `yaml:"min" json:"min"`
	Max                  float64 `yaml:"max" json:"max"`
	Default              float64 `yaml:"default" json:"default"`
	EarlyRepayment       float64 `yaml:"earlyRepayment" json:"earlyRepayment"`
	OnTimeRepayment      float64 `yaml:"onTimeRepayment" json:"onTimeRepayment"`
	AutoRepaid           float64 `yaml:"autoRepaid" json:"autoRepaid"`
	OverduePenalty       float64 `yaml:"overduePenalty" json:"overduePenalty"`             // 每个逾期周期的基础扣分
	ProgressiveThreshold int     `yaml:"progressiveThreshold" json:"progressiveThreshold"` // 每逾期多少周期扣分倍数加一
	MaxPenaltyMultiplier float64 `yaml:"maxPenaltyMultiplier" json:"maxPenaltyMultiplier"`
}

// OverduePenaltyAt 逾期第 depth 个周期的扣分（正数）。逾期越久单周期扣分越重。
func (p ScoreParams) OverduePenaltyAt(depth int) float64 {
	if depth <= 0 {
		return 0
	}
	mult := 1.0
	if p.ProgressiveThreshold > 0 {
		mult += float64((depth - 1) / p.ProgressiveThreshold)
	}
	if p.MaxPenaltyMultiplier > 0 {
		mult = math.Min(mult, p.MaxPenaltyMultiplier)
	}
	return p.OverduePenalty * mult
}

// CumulativeOverduePenalty 单笔贷款连续逾期 depth 个周期的累计扣分。
func (p ScoreParams) CumulativeOverduePenalty(depth int) float64 {
	total := 0.0
	for d := 1; d <= depth; d++ {
		total += p.OverduePenaltyAt(d)
	}
	return total
}

// EventKind 信用历史事件类型。
type EventKind string

const (
	EventEarlyRepayment  EventKind = "early_repayment"
	EventOnTimeRepayment EventKind = "on_time_repayment"
	EventOverduePenalty  EventKind = "overdue_penalty"
	EventAutoRepaid      EventKind = "auto_repaid"
)

// HistoryEntry 一条信用历史（只追加）。
type HistoryEntry struct {
	Kind       EventKind `json:"kind"`
	LoanID     string    `json:"loanId"`
	Delta      float64   `json:"delta"`
	ScoreAfter float64   `json:"scoreAfter"`
	Cycle      int       `json:"cycle"`
	At         time.Time `json:"at"`
}

// DelinquencyRecord 一次逾期经历（只追加，解决时写入 Resolved*）。
type DelinquencyRecord struct {
	LoanID           string     `json:"loanId"`
	MaxOverdueCycles int        `json:"maxOverdueCycles"`
	StartCycle       int        `json:"startCycle"`
	StartedAt        time.Time  `json:"startedAt"`
	ResolvedCycle    int        `json:"resolvedCycle,omitempty"`
	ResolvedAt       *time.Time `json:"resolvedAt,omitempty"`
}

// Open 是否仍未解决。
func (d DelinquencyRecord) Open() bool { return d.ResolvedAt == nil }

// Profile 玩家唯一的信用档案。
type Profile struct {
	Score               float64             `json:"score"`
	History             []HistoryEntry      `json:"history"`
	Delinquencies       []DelinquencyRecord `json:"delinquencies"`
	CyclesSinceInterest int                 `json:"cyclesSinceInterest"`
}

// NewProfile 返回默认评分的空档案。
func NewProfile(p ScoreParams) *Profile {
	return &Profile{Score: p.Default}
}

// Record 追加一条历史并按 delta 调整评分（夹在 [Min,Max]）。
func (pr *Profile) Record(p ScoreParams, kind EventKind, loanID string, delta float64, cycle int, at time.Time) HistoryEntry {
	pr.Score = math.Max(p.Min, math.Min(p.Max, pr.Score+delta))
	e := HistoryEntry{
		Kind:       kind,
		LoanID:     loanID,
		Delta:      delta,
		ScoreAfter: pr.Score,
		Cycle:      cycle,
		At:         at,
	}
	pr.History = append(pr.History, e)
	return e
}

// OpenDelinquency 为 loanID 开启逾期记录；已有未解决记录时直接返回它。
func (pr *Profile) OpenDelinquency(loanID string, cycle int, at time.Time) *DelinquencyRecord {
	if d := pr.openDelinquency(loanID); d != nil {
		return d
	}
	pr.Delinquencies = append(pr.Delinquencies, DelinquencyRecord{
		LoanID:     loanID,
		StartCycle: cycle,
		StartedAt:  at,
	})
	return &pr.Delinquencies[len(pr.Delinquencies)-1]
}

// ObserveOverdue 更新逾期记录观察到的最大逾期深度。
func (pr *Profile) ObserveOverdue(loanID string, depth int) {
	if d := pr.openDelinquency(loanID); d != nil && depth > d.MaxOverdueCycles {
		d.MaxOverdueCycles = depth
	}
}

// ResolveDelinquency 结束 loanID 的逾期记录，没有未解决记录时返回 false。
func (pr *Profile) ResolveDelinquency(loanID string, cycle int, at time.Time) bool {
	d := pr.openDelinquency(loanID)
	if d == nil {
		return false
	}
	t := at
	d.ResolvedCycle = cycle
	d.ResolvedAt = &t
	return true
}

// OpenDelinquencies 未解决的逾期数。
func (pr *Profile) OpenDelinquencies() int {
	n := 0
	for _, d := range pr.Delinquencies {
		if d.Open() {
			n++
		}
	}
	return n
}

func (pr *Profile) openDelinquency(loanID string) *DelinquencyRecord {
	for i := len(pr.Delinquencies) - 1; i >= 0; i-- {
		d := &pr.Delinquencies[i]
		if d.LoanID == loanID && d.Open() {
			return d
		}
	}
	return nil
}
