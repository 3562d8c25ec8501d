package strategy

import (
	"testing"

	"github.com/alejandrodnm/phantomfill/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSnap(offsetMs int64, oracle, yesDepth, noDepth float64) domain.BookSnapshot {
	side := func(depth float64) domain.SideState {
		return domain.SideState{
			BestBid: 0.49, BestBidSize: depth, BestAsk: 0.51, BestAskSize: 100,
			Depth:         []domain.PriceLevel{{Price: 0.49, CumulativeSize: depth}},
			TotalBidDepth: depth, TotalAskDepth: 100,
		}
	}
	return domain.BookSnapshot{
		MarketID:    "test-market",
		OffsetMs:    offsetMs,
		TimestampMs: 1_700_000_000_000 + offsetMs,
		Yes:         side(yesDepth),
		No:          side(noDepth),
		OraclePrice: oracle,
	}
}

func TestSpreadArb_BidsBothOnce(t *testing.T) {
	s := NewSpreadArb(DefaultParams())

	acts, err := s.OnTick(testSnap(0, 0, 100, 100))
	require.NoError(t, err)
	require.Len(t, acts, 2)
	assert.Equal(t, domain.PlaceBid(domain.SideYes, 0.49, 10), acts[0])
	assert.Equal(t, domain.PlaceBid(domain.SideNo, 0.49, 10), acts[1])

	acts, _ = s.OnTick(testSnap(1000, 0, 100, 100))
	assert.Empty(t, acts)

	require.NoError(t, s.OnReset())
	acts, _ = s.OnTick(testSnap(0, 0, 100, 100))
	assert.Len(t, acts, 2)
}

func TestMomentum(t *testing.T) {
	p := DefaultParams()
	p.MinBps = 20

	t.Run("no action before signal", func(t *testing.T) {
		s := NewMomentum(p)
		require.NoError(t, s.OnMarketOpen(testSnap(0, 50000, 500, 500)))
		acts, err := s.OnTick(testSnap(30_000, 50100, 500, 500))
		require.NoError(t, err)
		assert.Empty(t, acts)
	})

	t.Run("bets yes on positive move", func(t *testing.T) {
		s := NewMomentum(p)
		require.NoError(t, s.OnMarketOpen(testSnap(0, 50000, 500, 500)))
		acts, _ := s.OnTick(testSnap(90_000, 50200, 500, 500))
		require.Len(t, acts, 1)
		assert.Equal(t, domain.SideYes, acts[0].Side)
	})

	t.Run("bets no on negative move", func(t *testing.T) {
		s := NewMomentum(p)
		require.NoError(t, s.OnMarketOpen(testSnap(0, 50000, 500, 500)))
		acts, _ := s.OnTick(testSnap(90_000, 49800, 500, 500))
		require.Len(t, acts, 1)
		assert.Equal(t, domain.SideNo, acts[0].Side)
	})

	t.Run("weak signal skips and does not retry", func(t *testing.T) {
		s := NewMomentum(p)
		require.NoError(t, s.OnMarketOpen(testSnap(0, 50000, 500, 500)))
		acts, _ := s.OnTick(testSnap(90_000, 50050, 500, 500))
		assert.Empty(t, acts)
		acts, _ = s.OnTick(testSnap(95_000, 51000, 500, 500))
		assert.Empty(t, acts)
	})

	t.Run("missing oracle", func(t *testing.T) {
		s := NewMomentum(p)
		require.NoError(t, s.OnMarketOpen(testSnap(0, 0, 500, 500)))
		acts, _ := s.OnTick(testSnap(90_000, 50200, 500, 500))
		assert.Empty(t, acts)
	})
}

func TestPostCancel(t *testing.T) {
	p := DefaultParams()
	p.MinBps = 20

	s := NewPostCancel(p)
	require.NoError(t, s.OnMarketOpen(testSnap(0, 50000, 500, 500)))

	acts, _ := s.OnTick(testSnap(0, 50000, 500, 500))
	require.Len(t, acts, 2)

	acts, _ = s.OnTick(testSnap(90_000, 50200, 500, 500))
	require.Len(t, acts, 1)
	assert.Equal(t, domain.Cancel(domain.SideNo), acts[0])

	require.NoError(t, s.OnReset())
	require.NoError(t, s.OnMarketOpen(testSnap(0, 50000, 500, 500)))
	_, _ = s.OnTick(testSnap(0, 50000, 500, 500))
	acts, _ = s.OnTick(testSnap(90_000, 50010, 500, 500))
	assert.Equal(t, []domain.Action{domain.Cancel(domain.SideYes), domain.Cancel(domain.SideNo)}, acts)
}

func TestDepth_RequiresAgreement(t *testing.T) {
	p := DefaultParams()
	p.MinBps = 20

	agree := NewDepth(p)
	require.NoError(t, agree.OnMarketOpen(testSnap(0, 50000, 500, 500)))
	acts, _ := agree.OnTick(testSnap(90_000, 50200, 800, 300))
	require.Len(t, acts, 1)
	assert.Equal(t, domain.SideYes, acts[0].Side)

	disagree := NewDepth(p)
	require.NoError(t, disagree.OnMarketOpen(testSnap(0, 50000, 500, 500)))
	acts, _ = disagree.OnTick(testSnap(90_000, 50200, 300, 800))
	assert.Empty(t, acts)

	tie := NewDepth(p)
	require.NoError(t, tie.OnMarketOpen(testSnap(0, 50000, 500, 500)))
	acts, _ = tie.OnTick(testSnap(90_000, 50200, 500, 500))
	assert.Empty(t, acts)
}

func TestLast15s(t *testing.T) {
	s := NewLast15s(DefaultParams())

	early := testSnap(800_000, 0, 100, 100)
	early.Yes.BestBid = 0.99
	acts, _ := s.OnTick(early)
	assert.Empty(t, acts)

	low := testSnap(886_000, 0, 100, 100)
	acts, _ = s.OnTick(low)
	assert.Empty(t, acts)

	late := testSnap(890_000, 0, 100, 100)
	late.No.BestBid = 0.985
	acts, _ = s.OnTick(late)
	require.Len(t, acts, 1)
	assert.Equal(t, domain.PlaceBid(domain.SideNo, 0.985, 10), acts[0])

	acts, _ = s.OnTick(late)
	assert.Empty(t, acts)
}

func TestGabagool_TwoLegs(t *testing.T) {
	s := NewGabagool(DefaultParams())

	wide := testSnap(0, 0, 100, 100)
	wide.Yes.BestBid, wide.No.BestBid = 0.55, 0.50
	acts, _ := s.OnTick(wide)
	assert.Empty(t, acts)

	cheap := testSnap(1000, 0, 100, 100)
	cheap.Yes.BestBid, cheap.No.BestBid = 0.45, 0.50
	acts, _ = s.OnTick(cheap)
	require.Len(t, acts, 1)
	assert.Equal(t, domain.PlaceBid(domain.SideYes, 0.45, 10), acts[0])

	acts, _ = s.OnTick(cheap)
	require.Len(t, acts, 1)
	assert.Equal(t, domain.PlaceBid(domain.SideNo, 0.50, 10), acts[0])

	acts, _ = s.OnTick(cheap)
	assert.Empty(t, acts)
}

func TestParams_Validate(t *testing.T) {
	require.NoError(t, DefaultParams().Validate())

	for name, mutate := range map[string]func(*Params){
		"zero shares":      func(p *Params) { p.Shares = 0 },
		"bid at one":       func(p *Params) { p.BidPrice = 1 },
		"negative bps":     func(p *Params) { p.MinBps = -1 },
		"no window length": func(p *Params) { p.WindowDurationMs = 0 },
	} {
		p := DefaultParams()
		mutate(&p)
		err := p.Validate()
		require.Error(t, err, name)
		assert.ErrorIs(t, err, domain.ErrInvalidConfig, name)
	}
}
