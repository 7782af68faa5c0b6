package logschema

import (
	"fmt"
	"sort"
	"strings"
)

// Schema 定义每个日志事件所需的关键字段，便于集中校验。
type Schema struct {
	Event    string
	Required []string
}

var schemas = map[string]Schema{}

func register(event string, required ...string) {
	schemas[event] = Schema{Event: event, Required: required}
}

func init() {
	// 订单
	register("order_submitted", "symbol", "side", "kind", "shares")
	register("order_triggered", "symbol", "price", "stopPrice")
	register("order_executed", "symbol", "side", "shares", "price", "total")
	register("order_partial", "symbol", "executed", "remaining", "remainderId")
	register("order_expired", "symbol", "reason", "threshold", "lastPrice")
	register("order_canceled", "symbol")
	register("order_skipped", "symbol", "reason")
	// 成交
	register("trade_failed", "symbol", "side", "reason", "required", "available")
	register("split_applied", "symbol", "ratio", "orders")
	// 信用
	register("loan_originated", "loan_id", "amount", "rate", "fee", "duration")
	register("loan_repaid", "loan_id", "amount", "balance")
	register("loan_auto_repaid", "loan_id", "amount")
	register("loan_overdue", "loan_id", "overdue_cycles", "penalty", "score")
	register("loan_due_soon", "loan_id", "remaining")
	register("interest_charged", "loans", "total")
	register("delinquency_resolved", "loan_id")
}

// Known 返回所有事件名，便于外部生成文档。
func Known() []string {
	names := make([]string, 0, len(schemas))
	for k := range schemas {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Required 返回事件要求的字段。
func Required(event string) []string {
	return append([]string(nil), schemas[event].Required...)
}

// Validate 检查日志字段是否包含 schema 中要求的 key。未登记的事件不校验。
func Validate(event string, fields map[string]interface{}) error {
	s, ok := schemas[event]
	if !ok {
		return nil
	}
	var missing []string
	for _, key := range s.Required {
		if _, exists := fields[key]; !exists {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing fields: %s", strings.Join(missing, ","))
	}
	return nil
}
