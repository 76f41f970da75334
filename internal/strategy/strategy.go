// Package strategy defines the tick-processor contract and the
// name-keyed registry strategies are created from.
package strategy

import (
	"winter/internal/model"
)

// Strategy consumes ticks and emits signals. ProcessTick must be
// deterministic given the strategy's state and the tick, must not
// block, and must not perform I/O. A strategy owns its state; only
// the strategy stage touches it after the engine starts.
type Strategy interface {
	Name() string
	Enabled() bool
	Initialize() error
	Shutdown()
	ProcessTick(tick model.Tick) []model.Signal
}

// Configurable is implemented by strategies that accept string
// parameters before initialization.
type Configurable interface {
	Configure(params map[string]string) error
}
