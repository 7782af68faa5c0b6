package loan

import "stocksim-go/credit"

// State 台账持久化快照。
type State struct {
	Loans      []Loan         `json:"loans"`
	NextNumber int            `json:"nextLoanNumber,omitempty"`
	Profile    credit.Profile `json:"creditProfile"`
}

// Snapshot 导出贷款与信用档案。
func (l *Ledger) Snapshot() State {
	st := State{Loans: l.Loans(), Profile: l.Profile()}
	l.mu.Lock()
	st.NextNumber = l.nextNumber
	l.mu.Unlock()
	return st
}

// Restore 从快照恢复。缺少 loanNumber 的旧记录按数组顺序从 1 编号，
// 下一个编号总是大于已有最大编号。
func (l *Ledger) Restore(st State) {
	loans := NumberLegacy(st.Loans)
	l.mu.Lock()
	defer l.mu.Unlock()
	l.loans = make([]*Loan, 0, len(loans))
	next := st.NextNumber
	for i := range loans {
		ln := loans[i]
		l.loans = append(l.loans, &ln)
		if ln.Number >= next {
			next = ln.Number + 1
		}
	}
	if next < 1 {
		next = 1
	}
	l.nextNumber = next
	p := st.Profile
	if p.Score == 0 && len(p.History) == 0 {
		p.Score = l.cfg.Score.Default
	}
	l.profile = &p
}

// NumberLegacy 为缺少编号的贷款按数组位置补编号（第 i 条为 i+1）。
func NumberLegacy(loans []Loan) []Loan {
	out := make([]Loan, len(loans))
	copy(out, loans)
	for i := range out {
		if out[i].Number == 0 {
			out[i].Number = i + 1
		}
	}
	return out
}
