package symbol

import "strings"

// Symbol is the internal BASE/QUOTE representation used across bastion.
type Symbol struct {
	Base  string
	Quote string
}

func (s Symbol) Internal() string {
	if s.Base == "" || s.Quote == "" {
		return ""
	}
	return s.Base + "/" + s.Quote
}

func (s Symbol) Binance() string {
	if s.Base == "" || s.Quote == "" {
		return ""
	}
	return s.Base + s.Quote
}

// Bridge renders the pair the way the execution bridge expects
// (BASE/QUOTE:SETTLE for futures pairs when a settle currency is known).
func (s Symbol) Bridge(settle string) string {
	internal := s.Internal()
	if internal == "" {
		return ""
	}
	settle = strings.ToUpper(strings.TrimSpace(settle))
	if settle == "" {
		return internal
	}
	return internal + ":" + settle
}

// Parse accepts "BTC/USDT", "BTC/USDT:USDT" or "BTCUSDT" and
// normalizes to a Symbol. Unknown quote currencies yield a zero value.
func Parse(s string) Symbol {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return Symbol{}
	}
	if idx := strings.Index(s, ":"); idx >= 0 {
		s = s[:idx]
	}
	if parts := strings.SplitN(s, "/", 2); len(parts) == 2 {
		return Symbol{
			Base:  strings.TrimSpace(parts[0]),
			Quote: strings.TrimSpace(parts[1]),
		}
	}
	quoteCurrencies := []string{"USDT", "BUSD", "USDC", "TUSD", "BTC", "ETH", "BNB"}
	for _, quote := range quoteCurrencies {
		if strings.HasSuffix(s, quote) && len(s) > len(quote) {
			return Symbol{Base: s[:len(s)-len(quote)], Quote: quote}
		}
	}
	return Symbol{}
}

// Normalize returns the canonical internal form, or "" when unparseable.
func Normalize(s string) string {
	return Parse(s).Internal()
}
