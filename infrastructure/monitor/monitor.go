package monitor

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Monitor 模拟引擎的 Prometheus 指标。所有方法允许 nil 接收者。
type Monitor struct {
	registry *prometheus.Registry

	// 订单指标
	ordersSubmitted prometheus.Counter
	ordersExecuted  *prometheus.CounterVec
	ordersPartial   prometheus.Counter
	ordersExpired   prometheus.Counter
	ordersCanceled  prometheus.Counter
	execFailures    *prometheus.CounterVec

	// 信用指标
	loansOriginated  prometheus.Counter
	loansRepaid      prometheus.Counter
	interestCharged  prometheus.Counter
	overduePenalties prometheus.Counter

	// 账户指标
	cash          prometheus.Gauge
	debt          prometheus.Gauge
	creditScore   prometheus.Gauge
	pendingOrders prometheus.Gauge
	cycle         prometheus.Gauge

	cycleDuration prometheus.Histogram
}

// Config 监控配置
type Config struct {
	Namespace string `yaml:"namespace"`
	Subsystem string `yaml:"subsystem"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		Namespace: "stocksim",
		Subsystem: "engine",
	}
}

// New 创建新的Monitor实例，使用独立 registry。
func New(cfg Config) *Monitor {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	counter := func(name, help string) prometheus.Counter {
		return factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace, Subsystem: cfg.Subsystem, Name: name, Help: help,
		})
	}
	gauge := func(name, help string) prometheus.Gauge {
		return factory.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace, Subsystem: cfg.Subsystem, Name: name, Help: help,
		})
	}

	return &Monitor{
		registry: reg,

		ordersSubmitted: counter("orders_submitted_total", "提交订单总数"),
		ordersExecuted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "orders_executed_total",
			Help:      "成交订单数（按方向）",
		}, []string{"side"}),
		ordersPartial:  counter("orders_partial_total", "部分成交次数"),
		ordersExpired:  counter("orders_expired_total", "过期订单数"),
		ordersCanceled: counter("orders_canceled_total", "撤单数"),
		execFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "execution_failures_total",
			Help:      "可重试的执行失败（按原因，去重后）",
		}, []string{"reason"}),

		loansOriginated:  counter("loans_originated_total", "放款笔数"),
		loansRepaid:      counter("loans_repaid_total", "结清贷款笔数"),
		interestCharged:  counter("interest_charged_total", "累计计息金额"),
		overduePenalties: counter("overdue_penalties_total", "累计逾期扣分"),

		cash:          gauge("cash", "当前现金"),
		debt:          gauge("debt", "贷款余额合计"),
		creditScore:   gauge("credit_score", "信用分"),
		pendingOrders: gauge("pending_orders", "待执行订单数"),
		cycle:         gauge("cycle", "当前周期"),

		cycleDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "cycle_duration_seconds",
			Help:      "单周期处理耗时（秒）",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}),
	}
}

// RecordSubmitted 记录提交订单
func (m *Monitor) RecordSubmitted() {
	if m == nil {
		return
	}
	m.ordersSubmitted.Inc()
}

// RecordExecuted 记录成交
func (m *Monitor) RecordExecuted(side string) {
	if m == nil {
		return
	}
	m.ordersExecuted.WithLabelValues(side).Inc()
}

// RecordPartial 记录部分成交
func (m *Monitor) RecordPartial() {
	if m == nil {
		return
	}
	m.ordersPartial.Inc()
}

// RecordExpired 记录过期
func (m *Monitor) RecordExpired() {
	if m == nil {
		return
	}
	m.ordersExpired.Inc()
}

// RecordCanceled 记录撤单
func (m *Monitor) RecordCanceled() {
	if m == nil {
		return
	}
	m.ordersCanceled.Inc()
}

// RecordFailure 记录执行失败
func (m *Monitor) RecordFailure(reason string) {
	if m == nil {
		return
	}
	m.execFailures.WithLabelValues(reason).Inc()
}

// RecordLoanOriginated 记录放款
func (m *Monitor) RecordLoanOriginated() {
	if m == nil {
		return
	}
	m.loansOriginated.Inc()
}

// RecordLoanRepaid 记录结清
func (m *Monitor) RecordLoanRepaid(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.loansRepaid.Add(float64(n))
}

// RecordInterest 记录计息金额
func (m *Monitor) RecordInterest(amount float64) {
	if m == nil || amount <= 0 {
		return
	}
	m.interestCharged.Add(amount)
}

// RecordPenalty 记录逾期扣分
func (m *Monitor) RecordPenalty(points float64) {
	if m == nil || points <= 0 {
		return
	}
	m.overduePenalties.Add(points)
}

// AccountSnapshot 周期结束时的账户状态
type AccountSnapshot struct {
	Cycle         int
	Cash          float64
	Debt          float64
	CreditScore   float64
	PendingOrders int
}

// UpdateAccount 更新账户类 gauge
func (m *Monitor) UpdateAccount(s AccountSnapshot) {
	if m == nil {
		return
	}
	m.cycle.Set(float64(s.Cycle))
	m.cash.Set(s.Cash)
	m.debt.Set(s.Debt)
	m.creditScore.Set(s.CreditScore)
	m.pendingOrders.Set(float64(s.PendingOrders))
}

// ObserveCycle 记录单周期耗时
func (m *Monitor) ObserveCycle(d time.Duration) {
	if m == nil {
		return
	}
	m.cycleDuration.Observe(d.Seconds())
}

// Handler 返回 /metrics 处理器
func (m *Monitor) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry 返回底层 registry
func (m *Monitor) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}
