package market

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	// ErrInvalidKey is returned when a market key string cannot be parsed.
	ErrInvalidKey = errors.New("market: invalid market key format")
)

// Key identifies one market on one exchange.
type Key struct {
	Exchange string `json:"exchange"`
	Symbol   string `json:"symbol"`
}

// symbolRegex matches exchange symbols like BTCUSDT or KRW-BTC.
var symbolRegex = regexp.MustCompile(`^[A-Z0-9]+(-[A-Z0-9]+)?$`)

// ParseKey parses "exchange:SYMBOL" into a Key.
// Example: "binance:BTCUSDT", "upbit:KRW-BTC".
func ParseKey(s string) (Key, error) {
	exchange, symbol, ok := strings.Cut(s, ":")
	if !ok || exchange == "" {
		return Key{}, ErrInvalidKey
	}
	symbol = strings.ToUpper(symbol)
	if !symbolRegex.MatchString(symbol) {
		return Key{}, ErrInvalidKey
	}
	return Key{Exchange: strings.ToLower(exchange), Symbol: symbol}, nil
}

// String renders the key in "exchange:SYMBOL" form.
func (k Key) String() string {
	return fmt.Sprintf("%s:%s", k.Exchange, k.Symbol)
}
