package marketcache

import "testing"

func TestKey(t *testing.T) {
	tests := []struct {
		op     string
		params []any
		want   string
	}{
		{"getMarketStatus", nil, "getMarketStatus"},
		{"getStockInfo", []any{"AAPL"}, "getStockInfo:AAPL"},
		{"getStockHistory", []any{"AAPL", "daily", 30}, "getStockHistory:AAPL:daily:30"},
		{"getIndicators", []any{"MSFT", 1.5, true}, "getIndicators:MSFT:1.5:true"},
	}
	for _, tt := range tests {
		if got := Key(tt.op, tt.params...); got != tt.want {
			t.Errorf("Key(%q, %v) = %q, want %q", tt.op, tt.params, got, tt.want)
		}
	}
}
