package domain

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// MinCompareMarkets and MaxCompareMarkets bound a comparison request.
const (
	MinCompareMarkets = 2
	MaxCompareMarkets = 5
)

var tickerPattern = regexp.MustCompile(`^[A-Za-z0-9]+-[A-Za-z0-9]+$`)

// MarketRef is a validated market identifier: either a 32-byte hex market id
// or a BASE-QUOTE ticker.
type MarketRef struct {
	Raw    string
	ID     string // normalised 0x-prefixed lower-case hex, empty for tickers
	Ticker string // upper-case BASE-QUOTE, empty for hex ids
}

// IsHex reports whether the reference is a hex market id.
func (r MarketRef) IsHex() bool { return r.ID != "" }

// Key is the canonical form used for de-duplication.
func (r MarketRef) Key() string {
	if r.IsHex() {
		return r.ID
	}
	return r.Ticker
}

// ParseMarketID validates raw as either a 64 hex digit id (0x optional) or a
// BASE-QUOTE ticker. Failures wrap ErrValidation.
func ParseMarketID(raw string) (MarketRef, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return MarketRef{}, fmt.Errorf("%w: market id is empty", ErrValidation)
	}

	hexPart := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(hexPart) == 2*common.HashLength {
		b, err := hexutil.Decode("0x" + hexPart)
		if err == nil && len(b) == common.HashLength {
			return MarketRef{Raw: raw, ID: common.BytesToHash(b).Hex()}, nil
		}
	}

	if tickerPattern.MatchString(s) {
		return MarketRef{Raw: raw, Ticker: strings.ToUpper(s)}, nil
	}
	return MarketRef{}, fmt.Errorf("%w: %q is neither a 64 hex digit market id nor a BASE-QUOTE ticker", ErrValidation, raw)
}

// ParseMarketList splits a comma separated list and validates it as a
// comparison set: 2 to 5 distinct identifiers.
func ParseMarketList(raw string) ([]MarketRef, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("%w: markets parameter is required", ErrValidation)
	}
	parts := strings.Split(raw, ",")
	return ParseMarketRefs(parts)
}

// ParseMarketRefs validates each identifier and the size of the set.
func ParseMarketRefs(ids []string) ([]MarketRef, error) {
	if len(ids) < MinCompareMarkets || len(ids) > MaxCompareMarkets {
		return nil, fmt.Errorf("%w: comparison takes %d to %d markets, got %d",
			ErrValidation, MinCompareMarkets, MaxCompareMarkets, len(ids))
	}
	seen := make(map[string]bool, len(ids))
	refs := make([]MarketRef, 0, len(ids))
	for _, id := range ids {
		ref, err := ParseMarketID(id)
		if err != nil {
			return nil, err
		}
		if seen[ref.Key()] {
			return nil, fmt.Errorf("%w: duplicate market %q", ErrValidation, id)
		}
		seen[ref.Key()] = true
		refs = append(refs, ref)
	}
	return refs, nil
}
