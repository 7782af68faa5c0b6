package alert

import (
	"fmt"
	"sync"
	"time"
)

// Level 通知级别
type Level string

const (
	LevelInfo    Level = "info"    // 部分成交等提示
	LevelWarning Level = "warning" // 可重试失败，按订单去重
	LevelSuccess Level = "success" // 仓位完全平掉
)

// Kind 通知类型
type Kind string

const (
	KindInsufficientFunds  Kind = "insufficient_funds"
	KindInsufficientShares Kind = "insufficient_shares"
	KindPartialFill        Kind = "partial_fill"
	KindExpired            Kind = "expired"
	KindPositionClosed     Kind = "position_closed"
	KindLoanDueSoon        Kind = "loan_due_soon"
	KindLoanOverdue        Kind = "loan_overdue"
	KindLoanAutoRepaid     Kind = "loan_auto_repaid"
)

// Alert 一条通知。Fields 携带渲染所需的结构化上下文（所需/可用金额、阈值与观测价等）。
type Alert struct {
	Level     Level                  `json:"level"`
	Kind      Kind                   `json:"kind"`
	OrderID   string                 `json:"orderId,omitempty"`
	Symbol    string                 `json:"symbol,omitempty"`
	Message   string                 `json:"message"`
	Timestamp time.Time              `json:"timestamp"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// Channel 通知通道接口
type Channel interface {
	Send(alert Alert) error
	Name() string
}

// Manager 通知中心：维护未解决的订单警告集合，并向各通道分发。
type Manager struct {
	channels []Channel
	open     map[string]Alert // orderID -> 未解决的警告
	recent   []Alert
	limit    int
	now      func() time.Time
	mu       sync.RWMutex
}

// NewManager 创建通知中心，recentLimit 为保留的最近通知条数。
func NewManager(channels []Channel, recentLimit int) *Manager {
	if recentLimit <= 0 {
		recentLimit = 200
	}
	return &Manager{
		channels: channels,
		open:     make(map[string]Alert),
		limit:    recentLimit,
		now:      time.Now,
	}
}

// HasOpen 订单是否已有未解决的警告。
func (m *Manager) HasOpen(orderID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.open[orderID]
	return ok
}

// Resolve 订单成交、撤销或过期后清除其未解决警告。
func (m *Manager) Resolve(orderID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.open[orderID]
	delete(m.open, orderID)
	return ok
}

// Notify 发送通知。带订单号的警告若已存在未解决记录则不再发送，返回 sent=false。
func (m *Manager) Notify(alert Alert) (bool, error) {
	if alert.Timestamp.IsZero() {
		alert.Timestamp = m.now()
	}

	m.mu.Lock()
	if alert.Level == LevelWarning && alert.OrderID != "" {
		if _, exists := m.open[alert.OrderID]; exists {
			m.mu.Unlock()
			return false, nil
		}
		m.open[alert.OrderID] = alert
	}
	m.recent = append(m.recent, alert)
	if len(m.recent) > m.limit {
		m.recent = m.recent[len(m.recent)-m.limit:]
	}
	channels := append([]Channel(nil), m.channels...)
	m.mu.Unlock()

	// 发送到所有通道
	var lastErr error
	successCount := 0
	for _, ch := range channels {
		if err := ch.Send(alert); err != nil {
			lastErr = fmt.Errorf("channel %s failed: %w", ch.Name(), err)
		} else {
			successCount++
		}
	}

	// 如果所有通道都失败，返回最后一个错误
	if successCount == 0 && lastErr != nil {
		return true, lastErr
	}
	return true, nil
}

// Info 发送 info 级别通知
func (m *Manager) Info(kind Kind, orderID, symbol, message string, fields map[string]interface{}) error {
	_, err := m.Notify(Alert{Level: LevelInfo, Kind: kind, OrderID: orderID, Symbol: symbol, Message: message, Fields: fields})
	return err
}

// Warning 发送 warning 级别通知（按订单去重），返回是否实际发送。
func (m *Manager) Warning(kind Kind, orderID, symbol, message string, fields map[string]interface{}) (bool, error) {
	return m.Notify(Alert{Level: LevelWarning, Kind: kind, OrderID: orderID, Symbol: symbol, Message: message, Fields: fields})
}

// Success 发送 success 级别通知
func (m *Manager) Success(kind Kind, orderID, symbol, message string, fields map[string]interface{}) error {
	_, err := m.Notify(Alert{Level: LevelSuccess, Kind: kind, OrderID: orderID, Symbol: symbol, Message: message, Fields: fields})
	return err
}

// Recent 最近 n 条通知（旧在前），n<=0 返回全部。
func (m *Manager) Recent(n int) []Alert {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if n <= 0 || n > len(m.recent) {
		n = len(m.recent)
	}
	return append([]Alert(nil), m.recent[len(m.recent)-n:]...)
}

// OpenAlerts 当前未解决的警告。
func (m *Manager) OpenAlerts() map[string]Alert {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]Alert, len(m.open))
	for k, v := range m.open {
		out[k] = v
	}
	return out
}

// RestoreOpen 从存档还原未解决警告集合，还原的记录不会重新发送。
func (m *Manager) RestoreOpen(open map[string]Alert) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.open = make(map[string]Alert, len(open))
	for k, v := range open {
		m.open[k] = v
	}
}

// AddChannel 添加通知通道
func (m *Manager) AddChannel(ch Channel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels = append(m.channels, ch)
}

// RemoveChannel 移除通知通道
func (m *Manager) RemoveChannel(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	filtered := make([]Channel, 0, len(m.channels))
	for _, ch := range m.channels {
		if ch.Name() != name {
			filtered = append(filtered, ch)
		}
	}
	m.channels = filtered
}

// GetChannels 获取所有通道
func (m *Manager) GetChannels() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.channels))
	for _, ch := range m.channels {
		names = append(names, ch.Name())
	}
	return names
}
