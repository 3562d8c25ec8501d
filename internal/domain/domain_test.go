package domain

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSide(t *testing.T) {
	for _, in := range []string{"yes", "Yes", "YES", "up", " UP "} {
		s, err := ParseSide(in)
		require.NoError(t, err, in)
		assert.Equal(t, SideYes, s)
	}
	for _, in := range []string{"no", "No", "NO", "down"} {
		s, err := ParseSide(in)
		require.NoError(t, err, in)
		assert.Equal(t, SideNo, s)
	}
	_, err := ParseSide("maybe")
	assert.Error(t, err)
}

func TestSide_Opposite(t *testing.T) {
	assert.Equal(t, SideNo, SideYes.Opposite())
	assert.Equal(t, SideYes, SideNo.Opposite())
	assert.False(t, Side("up").Valid())
}

func TestOutcome_Matches(t *testing.T) {
	assert.True(t, OutcomeYes.Matches(SideYes))
	assert.False(t, OutcomeYes.Matches(SideNo))
	assert.False(t, OutcomeUnresolved.Matches(SideYes))
	assert.False(t, OutcomeUnresolved.Resolved())
}

func TestSideState_BidDepthAt(t *testing.T) {
	s := SideState{Depth: []PriceLevel{
		{Price: 0.49, CumulativeSize: 300},
		{Price: 0.50, CumulativeSize: 200},
		{Price: 0.51, CumulativeSize: 50},
	}}

	assert.Equal(t, 200.0, s.BidDepthAt(0.50))
	// sin nivel exacto: el más cercano por encima
	assert.Equal(t, 200.0, s.BidDepthAt(0.495))
	assert.Equal(t, 0.0, s.BidDepthAt(0.60))
	assert.Equal(t, 0.0, SideState{}.BidDepthAt(0.5))
}

func TestAction_Validate(t *testing.T) {
	assert.NoError(t, PlaceBid(SideYes, 0.5, 10).Validate())
	assert.NoError(t, Cancel(SideNo).Validate())

	bad := []Action{
		PlaceBid(SideYes, -0.5, 10),
		PlaceBid(SideYes, 0, 10),
		PlaceBid(SideYes, 1.2, 10),
		PlaceBid(SideYes, math.NaN(), 10),
		PlaceBid(SideYes, 0.5, 0),
		PlaceBid(SideYes, 0.5, math.Inf(1)),
		PlaceBid(Side("MAYBE"), 0.5, 10),
		Cancel(Side("")),
		{Kind: "market_buy", Side: SideYes, Price: 0.5, Size: 1},
	}
	for _, a := range bad {
		err := a.Validate()
		require.Error(t, err, "%+v", a)
		assert.True(t, errors.Is(err, ErrInvalidAction))
	}
}

func TestOrder_ReduceQueueClamps(t *testing.T) {
	o := Order{QueueAhead: 30}
	o.ReduceQueue(10)
	assert.Equal(t, 20.0, o.QueueAhead)
	o.ReduceQueue(-5)
	assert.Equal(t, 20.0, o.QueueAhead)
	o.ReduceQueue(100)
	assert.Equal(t, 0.0, o.QueueAhead)
}

func TestPnL(t *testing.T) {
	assert.InDelta(t, 5.0, PnL(OutcomeYes, SideYes, 0.5, 10), 1e-9)
	assert.InDelta(t, -4.9, PnL(OutcomeYes, SideNo, 0.49, 10), 1e-9)
}

func TestNewReport(t *testing.T) {
	results := []ReplayResult{
		{Traded: true, NaivePnL: 5, RealisticPnL: 5, NaiveCorrect: true, Correct: true, Filled: true, FirstFillMs: 1000, QueueAheadAtPlace: 10},
		{Traded: true, NaivePnL: -5, RealisticPnL: 0, QueueAheadAtPlace: 30},
		{Traded: false},
		{Failed: true, Fault: "boom"},
	}

	r := NewReport("spread_arb", 0, 42, results)

	assert.Equal(t, 4, r.TotalWindows)
	assert.Equal(t, 2, r.TradesTaken)
	assert.Equal(t, 1, r.Skipped)
	assert.Equal(t, 1, r.Failed)
	assert.Equal(t, 1, r.Fills)
	assert.Equal(t, 1, r.Correct)
	assert.InDelta(t, 0.5, r.FillRate, 1e-9)
	assert.InDelta(t, 0.5, r.NaiveWinRate, 1e-9)
	assert.InDelta(t, 1.0, r.RealisticWinRate, 1e-9)
	assert.InDelta(t, 0.0, r.NaiveTotalPnL, 1e-9)
	assert.InDelta(t, 5.0, r.RealisticTotalPnL, 1e-9)
	assert.InDelta(t, -5.0, r.PhantomGap, 1e-9)
	assert.InDelta(t, 20.0, r.AvgQueueAhead, 1e-9)
	assert.InDelta(t, 1000.0, r.AvgFillTimeMs, 1e-9)
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "btc-updown-5m", TruncateID("", "btc-updown-5m", 40))
	assert.Equal(t, "Bitcoi...", TruncateID("Bitcoin Up or Down", "x", 10))
}

func TestSnapshotsFromTicks_CarriesMissingSide(t *testing.T) {
	yes := func(offset int64, bid float64) Tick {
		return Tick{Side: SideYes, OffsetMs: offset, TimestampMs: 1000 + offset, State: SideState{BestBid: bid}, OraclePrice: 50000}
	}
	no := func(offset int64, bid float64) Tick {
		return Tick{Side: SideNo, OffsetMs: offset, TimestampMs: 1000 + offset, State: SideState{BestBid: bid}}
	}

	snaps := SnapshotsFromTicks("m1", []Tick{
		no(0, 0.50), yes(0, 0.48),
		yes(1000, 0.47),
		no(2000, 0.52),
	})

	require.Len(t, snaps, 3)
	assert.Equal(t, "m1", snaps[0].MarketID)
	assert.Equal(t, 0.48, snaps[0].Yes.BestBid)
	assert.Equal(t, 0.50, snaps[0].No.BestBid)
	assert.Equal(t, 50000.0, snaps[0].OraclePrice)

	assert.Equal(t, 0.47, snaps[1].Yes.BestBid)
	assert.Equal(t, 0.50, snaps[1].No.BestBid, "NO arrastrado")

	assert.Equal(t, 0.47, snaps[2].Yes.BestBid, "YES arrastrado")
	assert.Equal(t, 0.52, snaps[2].No.BestBid)
	assert.Equal(t, 0.0, snaps[2].OraclePrice)
	assert.Equal(t, int64(3000), snaps[2].TimestampMs)

	assert.Nil(t, SnapshotsFromTicks("m1", nil))
}

func TestSplitSnapshot_RoundTrip(t *testing.T) {
	snap := BookSnapshot{MarketID: "m1", OffsetMs: 5, Yes: SideState{BestBid: 0.4}, No: SideState{BestBid: 0.6}, OraclePrice: 1}
	ticks := SplitSnapshot(snap)
	got := SnapshotsFromTicks("m1", ticks[:])
	require.Len(t, got, 1)
	assert.Equal(t, snap, got[0])
}

func TestOutcomeFromPrices(t *testing.T) {
	assert.Equal(t, OutcomeYes, OutcomeFromPrices(100, 101))
	assert.Equal(t, OutcomeNo, OutcomeFromPrices(100, 100))
	assert.Equal(t, OutcomeNo, OutcomeFromPrices(100, 99))
	assert.Equal(t, OutcomeUnresolved, OutcomeFromPrices(0, 99))
}

func TestNewReport_SumsRealisticOfEveryUsableWindow(t *testing.T) {
	results := []ReplayResult{
		// órdenes llenadas y después canceladas: el bid naive ya no cuenta
		{Traded: true, OrdersPlaced: 2, NaivePnL: 0, RealisticPnL: -5, Filled: true, FirstFillMs: 2000},
		{Traded: false, RealisticPnL: -2},
		{Failed: true, RealisticPnL: -100},
	}

	r := NewReport("post_cancel", 0, 1, results)

	assert.Equal(t, 1, r.TradesTaken)
	assert.Equal(t, 1, r.Skipped)
	assert.Equal(t, 1, r.Failed)
	assert.InDelta(t, -7.0, r.RealisticTotalPnL, 1e-9)
	assert.InDelta(t, 0.0, r.NaiveTotalPnL, 1e-9)
	assert.InDelta(t, 7.0, r.PhantomGap, 1e-9)
}
