package alert

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	"stocksim-go/infrastructure/logger"
)

// ZapChannel 把通知写入结构化日志
type ZapChannel struct {
	log  *logger.Logger
	name string
}

// NewZapChannel 创建日志通知通道
func NewZapChannel(name string, log *logger.Logger) *ZapChannel {
	if log == nil {
		log = logger.NewNop()
	}
	return &ZapChannel{log: log, name: name}
}

// Send 按级别写日志：warning 用 Warn，其余用 Info。
func (c *ZapChannel) Send(alert Alert) error {
	fields := map[string]interface{}{
		"level":   string(alert.Level),
		"kind":    string(alert.Kind),
		"message": alert.Message,
	}
	if alert.OrderID != "" {
		fields["order_id"] = alert.OrderID
	}
	if alert.Symbol != "" {
		fields["symbol"] = alert.Symbol
	}
	for k, v := range alert.Fields {
		fields[k] = v
	}
	zf := c.log.WithFields(fields)
	if alert.Level == LevelWarning {
		zf.Warn("notification")
	} else {
		zf.Info("notification")
	}
	return nil
}

// Name 返回通道名称
func (c *ZapChannel) Name() string {
	return c.name
}

// ConsoleChannel 控制台通知通道（彩色输出）
type ConsoleChannel struct {
	name string
	out  io.Writer
}

// NewConsoleChannel 创建控制台通知通道，out 为空时写 stdout。
func NewConsoleChannel(name string, out io.Writer) *ConsoleChannel {
	if out == nil {
		out = os.Stdout
	}
	return &ConsoleChannel{name: name, out: out}
}

// Send 发送通知到控制台（带颜色）
func (c *ConsoleChannel) Send(alert Alert) error {
	colorReset := "\033[0m"
	colorCode := colorReset
	switch alert.Level {
	case LevelInfo:
		colorCode = "\033[36m" // 青色
	case LevelWarning:
		colorCode = "\033[33m" // 黄色
	case LevelSuccess:
		colorCode = "\033[32m" // 绿色
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s[%s]%s %s - %s",
		colorCode,
		strings.ToUpper(string(alert.Level)),
		colorReset,
		alert.Timestamp.Format("2006-01-02 15:04:05"),
		alert.Message,
	)
	if len(alert.Fields) > 0 {
		keys := make([]string, 0, len(alert.Fields))
		for k := range alert.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString(" |")
		for _, k := range keys {
			fmt.Fprintf(&b, " %s=%v", k, alert.Fields[k])
		}
	}
	_, err := fmt.Fprintln(c.out, b.String())
	return err
}

// Name 返回通道名称
func (c *ConsoleChannel) Name() string {
	return c.name
}

// MockChannel 模拟通知通道（用于测试）
type MockChannel struct {
	name      string
	alerts    []Alert
	shouldErr bool
	mu        sync.Mutex
}

// NewMockChannel 创建模拟通知通道
func NewMockChannel(name string) *MockChannel {
	return &MockChannel{
		name:   name,
		alerts: make([]Alert, 0),
	}
}

// Send 记录通知（用于测试验证）
func (c *MockChannel) Send(alert Alert) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.shouldErr {
		return fmt.Errorf("mock error")
	}
	c.alerts = append(c.alerts, alert)
	return nil
}

// Name 返回通道名称
func (c *MockChannel) Name() string {
	return c.name
}

// GetAlerts 获取所有接收到的通知
func (c *MockChannel) GetAlerts() []Alert {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Alert(nil), c.alerts...)
}

// CountLevel 某一级别的通知数量
func (c *MockChannel) CountLevel(level Level) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, a := range c.alerts {
		if a.Level == level {
			n++
		}
	}
	return n
}

// SetShouldError 设置是否返回错误
func (c *MockChannel) SetShouldError(shouldErr bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.shouldErr = shouldErr
}

// Clear 清空通知记录
func (c *MockChannel) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.alerts = make([]Alert, 0)
}

// Count 返回接收到的通知数量
func (c *MockChannel) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.alerts)
}
