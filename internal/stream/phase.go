package stream

import "fmt"

// Phase is the lifecycle state of one subscription.
type Phase int

const (
	Connecting Phase = iota
	Connected
	Disconnected
	Error
)

var phaseNames = [...]string{"connecting", "connected", "disconnected", "error"}

// Phases lists every phase in declaration order.
var Phases = []Phase{Connecting, Connected, Disconnected, Error}

func (p Phase) String() string {
	if p < Connecting || p > Error {
		return fmt.Sprintf("phase(%d)", int(p))
	}
	return phaseNames[p]
}

func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Phase) UnmarshalText(text []byte) error {
	for i, name := range phaseNames {
		if string(text) == name {
			*p = Phase(i)
			return nil
		}
	}
	return fmt.Errorf("unknown phase %q", text)
}
