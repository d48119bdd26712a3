package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const hexID = "0x0611780ba69656949525013d947713300f56c37b6175e02f26bffa495c3208fe"

func TestParseMarketID(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		id     string
		ticker string
	}{
		{"hex with prefix", hexID, hexID, ""},
		{"hex without prefix", strings.TrimPrefix(hexID, "0x"), hexID, ""},
		{"upper-case hex", "0X" + strings.ToUpper(hexID[2:]), hexID, ""},
		{"ticker", "inj-usdt", "", "INJ-USDT"},
		{"padded ticker", "  ATOM-USDT ", "", "ATOM-USDT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref, err := ParseMarketID(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.id, ref.ID)
			assert.Equal(t, tt.ticker, ref.Ticker)
			assert.Equal(t, tt.id != "", ref.IsHex())
		})
	}
}

func TestParseMarketID_Invalid(t *testing.T) {
	for _, raw := range []string{"", "   ", "0x1234", "INJ/USDT", "INJ-", "0x" + strings.Repeat("g", 64), "a-b-c"} {
		_, err := ParseMarketID(raw)
		assert.ErrorIs(t, err, ErrValidation, "raw %q", raw)
	}
}

func TestParseMarketList(t *testing.T) {
	refs, err := ParseMarketList("INJ-USDT," + hexID)
	require.NoError(t, err)
	require.Len(t, refs, 2)
	assert.Equal(t, "INJ-USDT", refs[0].Key())
	assert.Equal(t, hexID, refs[1].Key())

	_, err = ParseMarketList("")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = ParseMarketList("INJ-USDT")
	assert.ErrorIs(t, err, ErrValidation, "one market is too few")

	_, err = ParseMarketList("A-B,C-D,E-F,G-H,I-J,K-L")
	assert.ErrorIs(t, err, ErrValidation, "six markets are too many")

	_, err = ParseMarketList("inj-usdt,INJ-USDT")
	assert.ErrorContains(t, err, "duplicate market")

	_, err = ParseMarketList(hexID + "," + strings.TrimPrefix(hexID, "0x"))
	assert.ErrorContains(t, err, "duplicate market", "same id with and without prefix")
}

func TestMarket_MatchesTicker(t *testing.T) {
	m := Market{Ticker: "INJ/USDT"}
	assert.True(t, m.MatchesTicker("inj-usdt"))
	assert.True(t, m.MatchesTicker("INJ/USDT"))
	assert.False(t, m.MatchesTicker("INJ-USDC"))
}
