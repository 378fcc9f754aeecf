package pricing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fracmarket/internal/market/models"
	id "fracmarket/pkg/domain"
	dErrors "fracmarket/pkg/domain-errors"
)

func newListing(t *testing.T, initialPrice, shareSupply uint64) *models.Listing {
	t.Helper()
	l, err := models.NewListing(id.NewListingID(), "alice", "item-1", models.ListingParams{
		InitialPrice: initialPrice,
		ShareSupply:  shareSupply,
	}, time.Now())
	require.NoError(t, err)
	return l
}

func TestStep(t *testing.T) {
	assert.Equal(t, uint64(1000), Step(1_000_000, 1000))
	assert.Equal(t, uint64(1), Step(10, 1000), "step never collapses to zero")
}

func TestQuoteBuy(t *testing.T) {
	t.Run("strictly increases the price", func(t *testing.T) {
		l := newListing(t, 1_000_000, 1000)
		q, err := QuoteBuy(l, 100)
		require.NoError(t, err)
		assert.Greater(t, q.NewPrice, l.CurrentPrice)
		assert.Equal(t, uint64(1_100_000), q.NewPrice)
	})

	t.Run("cost sums the post-step marginal prices", func(t *testing.T) {
		l := newListing(t, 1_000_000, 1000)
		q, err := QuoteBuy(l, 3)
		require.NoError(t, err)
		// 1_001_000 + 1_002_000 + 1_003_000
		assert.Equal(t, uint64(3_006_000), q.Total)
	})

	t.Run("single unit pays the next marginal price", func(t *testing.T) {
		l := newListing(t, 1_000_000, 1000)
		q, err := QuoteBuy(l, 1)
		require.NoError(t, err)
		assert.Equal(t, uint64(1_001_000), q.Total)
		assert.Equal(t, q.Total, q.NewPrice)
	})

	t.Run("rejects zero amount", func(t *testing.T) {
		l := newListing(t, 1_000_000, 1000)
		_, err := QuoteBuy(l, 0)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidAmount))
	})

	t.Run("reports overflow instead of wrapping", func(t *testing.T) {
		l := newListing(t, 1<<62, 1)
		l.ApplyPrice(1<<63, time.Now())
		_, err := QuoteBuy(l, 4)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeArithmeticOverflow))
	})
}

func TestQuoteSell(t *testing.T) {
	t.Run("strictly decreases the price", func(t *testing.T) {
		l := newListing(t, 1_000_000, 1000)
		q, err := QuoteSell(l, 100)
		require.NoError(t, err)
		assert.Less(t, q.NewPrice, l.CurrentPrice)
		assert.Equal(t, uint64(900_000), q.NewPrice)
	})

	t.Run("proceeds walk the curve downward from the current price", func(t *testing.T) {
		l := newListing(t, 1_000_000, 1000)
		q, err := QuoteSell(l, 3)
		require.NoError(t, err)
		// 1_000_000 + 999_000 + 998_000
		assert.Equal(t, uint64(2_997_000), q.Total)
	})

	t.Run("clamps at the price floor", func(t *testing.T) {
		l := newListing(t, 10, 1000) // step = 1
		l.ApplyPrice(3, time.Now())
		q, err := QuoteSell(l, 10)
		require.NoError(t, err)
		assert.Equal(t, Floor, q.NewPrice)
		// 3 + 2 + 1 above the floor, then 7 units at the floor
		assert.Equal(t, uint64(3+2+1+7), q.Total)
	})

	t.Run("rejects zero amount", func(t *testing.T) {
		l := newListing(t, 1_000_000, 1000)
		_, err := QuoteSell(l, 0)
		require.Error(t, err)
	})
}

// Buying then selling the same amount with no intervening trades restores the
// pre-buy price and moves the same total value, as long as the floor clamp
// never engages. This is the round-trip law the curve is designed around.
func TestRoundTrip(t *testing.T) {
	cases := []struct {
		name         string
		initialPrice uint64
		shareSupply  uint64
		amount       uint64
	}{
		{"reference scenario", 1_000_000, 1000, 100},
		{"single unit", 1_000_000, 1000, 1},
		{"full supply", 1_000_000, 1000, 1000},
		{"tiny price", 500, 100, 7},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			l := newListing(t, tc.initialPrice, tc.shareSupply)
			before := l.CurrentPrice

			buy, err := QuoteBuy(l, tc.amount)
			require.NoError(t, err)
			l.ApplyPrice(buy.NewPrice, time.Now())

			sell, err := QuoteSell(l, tc.amount)
			require.NoError(t, err)

			assert.Equal(t, before, sell.NewPrice, "price must return to its pre-buy value")
			assert.Equal(t, buy.Total, sell.Total, "value moved must be symmetric")
		})
	}
}

func TestBuyoutPrice(t *testing.T) {
	t.Run("full valuation plus five percent", func(t *testing.T) {
		l := newListing(t, 1_000_000, 1000)
		price, err := BuyoutPrice(l)
		require.NoError(t, err)
		assert.Equal(t, uint64(1_050_000_000), price)
	})

	t.Run("never below the full fractional valuation", func(t *testing.T) {
		l := newListing(t, 3, 7)
		price, err := BuyoutPrice(l)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, price, l.CurrentPrice*l.ShareSupply)
	})

	t.Run("reports overflow on extreme valuations", func(t *testing.T) {
		l := newListing(t, 1<<63, 1<<2)
		_, err := BuyoutPrice(l)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeArithmeticOverflow))
	})
}

func TestRedemptionPayout(t *testing.T) {
	t.Run("proportional share of proceeds", func(t *testing.T) {
		payout, err := RedemptionPayout(1_050_000_000, 100, 1000)
		require.NoError(t, err)
		assert.Equal(t, uint64(105_000_000), payout)
	})

	t.Run("rounds down in the marketplace's favor", func(t *testing.T) {
		payout, err := RedemptionPayout(100, 1, 3)
		require.NoError(t, err)
		assert.Equal(t, uint64(33), payout)
	})

	t.Run("payouts never exceed proceeds in aggregate", func(t *testing.T) {
		const proceeds, supply = 1_000_003, 7
		var total uint64
		for _, h := range []uint64{1, 2, 4} { // all shares across three holders
			p, err := RedemptionPayout(proceeds, h, supply)
			require.NoError(t, err)
			total += p
		}
		assert.LessOrEqual(t, total, uint64(proceeds))
	})

	t.Run("handles wide intermediate products", func(t *testing.T) {
		payout, err := RedemptionPayout(1<<62, 1<<10, 1<<11)
		require.NoError(t, err)
		assert.Equal(t, uint64(1<<61), payout)
	})
}
