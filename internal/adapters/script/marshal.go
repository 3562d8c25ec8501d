package script

import (
	"fmt"
	"log/slog"
	"math"
	"strings"

	lua "github.com/yuin/gopher-lua"

	"github.com/alejandrodnm/phantomfill/internal/domain"
)

// snapshotTable convierte un snapshot en una tabla Lua nueva. El script
// puede mutarla sin afectar al snapshot original.
func snapshotTable(L *lua.LState, snap domain.BookSnapshot) *lua.LTable {
	t := L.NewTable()
	t.RawSetString("market_id", lua.LString(snap.MarketID))
	t.RawSetString("offset_ms", lua.LNumber(snap.OffsetMs))
	t.RawSetString("timestamp_ms", lua.LNumber(snap.TimestampMs))
	t.RawSetString("oracle_price", lua.LNumber(snap.OraclePrice))
	t.RawSetString("reference_price", lua.LNumber(snap.ReferencePrice))
	sideFields(L, t, "yes", snap.Yes)
	sideFields(L, t, "no", snap.No)
	return t
}

func sideFields(L *lua.LState, t *lua.LTable, prefix string, s domain.SideState) {
	t.RawSetString(prefix+"_bid", lua.LNumber(s.BestBid))
	t.RawSetString(prefix+"_bid_size", lua.LNumber(s.BestBidSize))
	t.RawSetString(prefix+"_ask", lua.LNumber(s.BestAsk))
	t.RawSetString(prefix+"_ask_size", lua.LNumber(s.BestAskSize))
	t.RawSetString(prefix+"_total_bid_depth", lua.LNumber(s.TotalBidDepth))
	t.RawSetString(prefix+"_total_ask_depth", lua.LNumber(s.TotalAskDepth))

	levels := L.NewTable()
	for _, l := range s.Depth {
		lt := L.NewTable()
		lt.RawSetString("price", lua.LNumber(l.Price))
		lt.RawSetString("size", lua.LNumber(l.CumulativeSize))
		levels.Append(lt)
	}
	t.RawSetString(prefix+"_depth", levels)
}

// luaBid: bid(side, price, shares) -> action table
func luaBid(L *lua.LState) int {
	t := L.NewTable()
	t.RawSetString("type", lua.LString("bid"))
	t.RawSetString("side", L.Get(1))
	t.RawSetString("price", L.Get(2))
	t.RawSetString("shares", L.Get(3))
	L.Push(t)
	return 1
}

// luaCancel: cancel(side) -> action table
func luaCancel(L *lua.LState) int {
	t := L.NewTable()
	t.RawSetString("type", lua.LString("cancel"))
	t.RawSetString("side", L.Get(1))
	L.Push(t)
	return 1
}

// depthAt devuelve yes_depth_at/no_depth_at: (snap, price) -> size,
// con la misma búsqueda que SideState.BidDepthAt.
func depthAt(key string) lua.LGFunction {
	return func(L *lua.LState) int {
		snap := L.CheckTable(1)
		price := float64(L.CheckNumber(2))

		var state domain.SideState
		if levels, ok := snap.RawGetString(key).(*lua.LTable); ok {
			levels.ForEach(func(_, v lua.LValue) {
				lt, ok := v.(*lua.LTable)
				if !ok {
					return
				}
				p, pok := lt.RawGetString("price").(lua.LNumber)
				sz, sok := lt.RawGetString("size").(lua.LNumber)
				if pok && sok {
					state.Depth = append(state.Depth, domain.PriceLevel{Price: float64(p), CumulativeSize: float64(sz)})
				}
			})
		}
		L.Push(lua.LNumber(state.BidDepthAt(price)))
		return 1
	}
}

// toActions convierte el valor devuelto por on_tick en Actions.
// nil significa ninguna action; cualquier otro valor que no sea una tabla
// es un fallo de la estrategia. Las entradas mal formadas no se descartan
// aquí: se convierten en Actions que Validate rechaza, para que el replay
// las cuente como inválidas.
func toActions(name string, ret lua.LValue) ([]domain.Action, error) {
	if ret == lua.LNil {
		return nil, nil
	}
	list, ok := ret.(*lua.LTable)
	if !ok {
		return nil, fmt.Errorf("script %s: on_tick returned %s, want table: %w", name, ret.Type(), domain.ErrStrategyFault)
	}

	n := list.Len()
	actions := make([]domain.Action, 0, n)
	for i := 1; i <= n; i++ {
		a := toAction(list.RawGetInt(i))
		if err := a.Validate(); err != nil {
			slog.Debug("script: malformed action", "script", name, "index", i, "err", err)
		}
		actions = append(actions, a)
	}
	return actions, nil
}

func toAction(v lua.LValue) domain.Action {
	t, ok := v.(*lua.LTable)
	if !ok {
		return domain.Action{}
	}

	side := domain.Side(strings.ToUpper(lua.LVAsString(t.RawGetString("side"))))
	switch lua.LVAsString(t.RawGetString("type")) {
	case "bid":
		return domain.PlaceBid(side, number(t.RawGetString("price")), number(t.RawGetString("shares")))
	case "cancel":
		return domain.Cancel(side)
	default:
		return domain.Action{Kind: domain.ActionKind(lua.LVAsString(t.RawGetString("type"))), Side: side}
	}
}

func number(v lua.LValue) float64 {
	if n, ok := v.(lua.LNumber); ok {
		return float64(n)
	}
	return math.NaN()
}
