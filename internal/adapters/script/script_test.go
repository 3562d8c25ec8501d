package script

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/phantomfill/internal/domain"
	"github.com/alejandrodnm/phantomfill/internal/domain/strategy"
)

const spreadArbLua = `
local done = false

function on_tick(snap)
  if done then return nil end
  done = true
  return { bid("yes", BID_PRICE, SHARES), bid("no", BID_PRICE, SHARES) }
end

function on_reset()
  done = false
end
`

func snap(offsetMs int64) domain.BookSnapshot {
	side := domain.SideState{
		BestBid: 0.49, BestBidSize: 300, BestAsk: 0.51, BestAskSize: 100,
		Depth:         []domain.PriceLevel{{Price: 0.49, CumulativeSize: 300}, {Price: 0.50, CumulativeSize: 120}},
		TotalBidDepth: 300, TotalAskDepth: 100,
	}
	return domain.BookSnapshot{MarketID: "m1", OffsetMs: offsetMs, Yes: side, No: side, OraclePrice: 50000}
}

func compile(t *testing.T, src string) *Program {
	t.Helper()
	p, err := Compile("test", src, strategy.DefaultParams(), Options{CallTimeout: 200 * time.Millisecond})
	require.NoError(t, err)
	return p
}

func newStrategy(t *testing.T, p *Program) *Strategy {
	t.Helper()
	s, err := p.NewStrategy()
	require.NoError(t, err)
	st := s.(*Strategy)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestScript_SpreadArb(t *testing.T) {
	s := newStrategy(t, compile(t, spreadArbLua))
	assert.Equal(t, "test", s.Name())

	acts, err := s.OnTick(snap(0))
	require.NoError(t, err)
	assert.Equal(t, []domain.Action{
		domain.PlaceBid(domain.SideYes, 0.49, 10),
		domain.PlaceBid(domain.SideNo, 0.49, 10),
	}, acts)

	acts, err = s.OnTick(snap(1000))
	require.NoError(t, err)
	assert.Empty(t, acts)

	require.NoError(t, s.OnReset())
	acts, err = s.OnTick(snap(0))
	require.NoError(t, err)
	assert.Len(t, acts, 2)
}

func TestScript_InstancesDoNotShareState(t *testing.T) {
	p := compile(t, spreadArbLua)
	a := newStrategy(t, p)
	b := newStrategy(t, p)

	acts, _ := a.OnTick(snap(0))
	assert.Len(t, acts, 2)
	acts, _ = b.OnTick(snap(0))
	assert.Len(t, acts, 2)
}

func TestScript_SnapshotFields(t *testing.T) {
	s := newStrategy(t, compile(t, `
function on_tick(snap)
  if snap.market_id ~= "m1" or snap.yes_bid ~= 0.49 or snap.no_ask ~= 0.51 then
    return nil
  end
  return { bid("no", snap.yes_depth[2].price, yes_depth_at(snap, 0.495)) }
end
function on_reset() end
`))

	acts, err := s.OnTick(snap(0))
	require.NoError(t, err)
	require.Len(t, acts, 1)
	assert.Equal(t, domain.PlaceBid(domain.SideNo, 0.50, 120), acts[0])
}

func TestScript_MarketOpen(t *testing.T) {
	s := newStrategy(t, compile(t, `
local open = 0
function on_market_open(snap) open = snap.oracle_price end
function on_tick(snap)
  if open > 0 then return { cancel("yes") } end
end
function on_reset() open = 0 end
`))

	acts, err := s.OnTick(snap(0))
	require.NoError(t, err)
	assert.Empty(t, acts)

	require.NoError(t, s.OnMarketOpen(snap(0)))
	acts, err = s.OnTick(snap(0))
	require.NoError(t, err)
	assert.Equal(t, []domain.Action{domain.Cancel(domain.SideYes)}, acts)
}

func TestScript_MalformedActionsFailValidation(t *testing.T) {
	s := newStrategy(t, compile(t, `
function on_tick(snap)
  return { bid("maybe", 0.5, 10), bid("yes", "cheap", 10), { type = "sell", side = "yes" }, 42 }
end
function on_reset() end
`))

	acts, err := s.OnTick(snap(0))
	require.NoError(t, err)
	require.Len(t, acts, 4)
	for _, a := range acts {
		err := a.Validate()
		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrInvalidAction))
	}
}

func TestScript_ConstantsAreReadOnly(t *testing.T) {
	s := newStrategy(t, compile(t, `
function on_tick(snap)
  SHARES = 1000
  return nil
end
function on_reset() end
`))

	_, err := s.OnTick(snap(0))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read-only")
}

func TestScript_Sandbox(t *testing.T) {
	s := newStrategy(t, compile(t, `
function on_tick(snap)
  if io ~= nil or os ~= nil or require ~= nil or loadstring ~= nil then
    return { bid("yes", 0.5, 1) }
  end
  return {}
end
function on_reset() end
`))

	acts, err := s.OnTick(snap(0))
	require.NoError(t, err)
	assert.Empty(t, acts)
}

func TestScript_Errors(t *testing.T) {
	t.Run("syntax error", func(t *testing.T) {
		_, err := Compile("bad", "function on_tick(", strategy.DefaultParams(), Options{})
		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrInvalidConfig))
	})

	t.Run("missing callbacks", func(t *testing.T) {
		_, err := Compile("bad", "function on_tick(snap) end", strategy.DefaultParams(), Options{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "on_reset")
	})

	t.Run("runtime error", func(t *testing.T) {
		s := newStrategy(t, compile(t, `
function on_tick(snap) error("boom") end
function on_reset() end
`))
		_, err := s.OnTick(snap(0))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "boom")
	})

	t.Run("non-table return", func(t *testing.T) {
		s := newStrategy(t, compile(t, `
function on_tick(snap) return 7 end
function on_reset() end
`))
		_, err := s.OnTick(snap(0))
		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrStrategyFault))
	})

	t.Run("timeout", func(t *testing.T) {
		s := newStrategy(t, compile(t, `
function on_tick(snap) while true do end end
function on_reset() end
`))
		_, err := s.OnTick(snap(0))
		require.Error(t, err)
	})
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "my_arb.lua")
	require.NoError(t, os.WriteFile(path, []byte(spreadArbLua), 0o644))

	p, err := Load(path, strategy.DefaultParams(), Options{})
	require.NoError(t, err)
	assert.Equal(t, "my_arb", p.Name())

	_, err = Load(filepath.Join(t.TempDir(), "missing.lua"), strategy.DefaultParams(), Options{})
	assert.Error(t, err)
}
