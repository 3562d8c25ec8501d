package domain

import "errors"

var (
	// ErrDataExhausted: la fuente no produjo ninguna ventana. No es fatal.
	ErrDataExhausted = errors.New("data source yielded no windows")

	// ErrStrategyFault: un callback de la estrategia falló. Aborta solo la ventana actual.
	ErrStrategyFault = errors.New("strategy fault")

	// ErrInvalidAction: una Action con lado desconocido o precio/tamaño inválido.
	ErrInvalidAction = errors.New("invalid action")

	// ErrInvalidConfig: parámetros del fill model fuera de rango. Fatal en construcción.
	ErrInvalidConfig = errors.New("invalid configuration")

	ErrEmptyWindow     = errors.New("window has no snapshots")
	ErrUnresolved      = errors.New("window outcome is unresolved")
	ErrUnknownStrategy = errors.New("unknown strategy")
)
