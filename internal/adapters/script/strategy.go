package script

import (
	"context"
	"fmt"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/alejandrodnm/phantomfill/internal/domain"
)

// Strategy es una instancia de un script con su propio LState.
// Implementa strategy.Strategy, strategy.MarketOpener e io.Closer.
type Strategy struct {
	name    string
	L       *lua.LState
	timeout time.Duration

	onOpen  *lua.LFunction // nil si el script no lo define
	onTick  *lua.LFunction
	onReset *lua.LFunction
}

func (s *Strategy) Name() string { return s.name }

func (s *Strategy) OnMarketOpen(snap domain.BookSnapshot) error {
	if s.onOpen == nil {
		return nil
	}
	_, err := s.call(s.onOpen, 0, snapshotTable(s.L, snap))
	return err
}

func (s *Strategy) OnTick(snap domain.BookSnapshot) ([]domain.Action, error) {
	ret, err := s.call(s.onTick, 1, snapshotTable(s.L, snap))
	if err != nil {
		return nil, err
	}
	return toActions(s.name, ret)
}

func (s *Strategy) OnReset() error {
	_, err := s.call(s.onReset, 0)
	return err
}

// Close libera el LState.
func (s *Strategy) Close() error {
	s.L.Close()
	return nil
}

// call ejecuta fn en modo protegido con límite de tiempo de reloj. gopher-lua
// no expone un hook por instrucción, así que un script cerca del límite puede
// fallar o no según la carga de la máquina.
func (s *Strategy) call(fn *lua.LFunction, nret int, args ...lua.LValue) (lua.LValue, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	s.L.SetContext(ctx)
	defer s.L.RemoveContext()

	if err := s.L.CallByParam(lua.P{Fn: fn, NRet: nret, Protect: true}, args...); err != nil {
		return lua.LNil, fmt.Errorf("script %s: %w", s.name, err)
	}
	if nret == 0 {
		return lua.LNil, nil
	}
	ret := s.L.Get(-1)
	s.L.Pop(1)
	return ret, nil
}
