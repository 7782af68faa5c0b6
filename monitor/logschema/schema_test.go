package logschema

import "testing"

func TestValidate(t *testing.T) {
	err := Validate("order_executed", map[string]interface{}{
		"symbol": "ACME",
		"side":   "buy",
		"shares": 5,
		"price":  100.0,
		"total":  502.5,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err = Validate("order_executed", map[string]interface{}{
		"symbol": "ACME",
	})
	if err == nil {
		t.Fatalf("expected error for missing fields")
	}
	if err := Validate("not_registered", nil); err != nil {
		t.Fatalf("unknown events are not checked: %v", err)
	}
}

func TestKnownSorted(t *testing.T) {
	names := Known()
	if len(names) == 0 {
		t.Fatalf("no events registered")
	}
	for i := 1; i < len(names); i++ {
		if names[i-1] > names[i] {
			t.Fatalf("not sorted: %v", names)
		}
	}
	if len(Required("loan_originated")) != 5 {
		t.Fatalf("unexpected required fields for loan_originated")
	}
}
