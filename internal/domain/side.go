package domain

import (
	"fmt"
	"strings"
)

// Side es uno de los dos tokens de un mercado binario.
type Side string

const (
	SideYes Side = "YES"
	SideNo  Side = "NO"
)

// Valid devuelve true solo para YES o NO.
func (s Side) Valid() bool {
	return s == SideYes || s == SideNo
}

// Opposite devuelve el otro lado del mercado.
func (s Side) Opposite() Side {
	if s == SideYes {
		return SideNo
	}
	return SideYes
}

func (s Side) String() string {
	return string(s)
}

// ParseSide acepta yes/no en cualquier capitalización, y UP/DOWN tal como
// los escriben los recorders de mercados crypto.
func ParseSide(s string) (Side, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "YES", "UP":
		return SideYes, nil
	case "NO", "DOWN":
		return SideNo, nil
	}
	return "", fmt.Errorf("domain.ParseSide: unknown side %q", s)
}

// Outcome es el resultado resuelto de una ventana. El valor cero significa
// que el mercado no se resolvió y la ventana no es utilizable.
type Outcome string

const (
	OutcomeUnresolved Outcome = ""
	OutcomeYes        Outcome = "YES"
	OutcomeNo         Outcome = "NO"
)

// Resolved devuelve true si el outcome es YES o NO.
func (o Outcome) Resolved() bool {
	return o == OutcomeYes || o == OutcomeNo
}

// Winner devuelve el lado ganador.
func (o Outcome) Winner() Side {
	return Side(o)
}

// Matches devuelve true si el lado dado gana con este outcome.
func (o Outcome) Matches(s Side) bool {
	return o.Resolved() && Side(o) == s
}
