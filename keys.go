package marketcache

import (
	"fmt"
	"strings"
)

// KeyDelimiter separates the operation name and parameters in a cache key.
const KeyDelimiter = ":"

// Key builds a cache key from an operation name and its parameters, e.g.
// Key("getStockHistory", "AAPL", "daily") == "getStockHistory:AAPL:daily".
// Parameters are formatted with fmt.Sprint.
func Key(op string, params ...any) string {
	parts := make([]string, 0, len(params)+1)
	parts = append(parts, op)
	for _, p := range params {
		parts = append(parts, fmt.Sprint(p))
	}
	return strings.Join(parts, KeyDelimiter)
}
