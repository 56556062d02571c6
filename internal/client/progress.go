package client

import (
	"sync/atomic"

	"github.com/rs/zerolog"
)

// Progress receives a Start when an exchange begins and exactly one Done
// when it settles, whichever way it settles.
type Progress interface {
	Start()
	Done()
}

// NopProgress ignores lifecycle signals.
type NopProgress struct{}

func (NopProgress) Start() {}
func (NopProgress) Done()  {}

// LogProgress counts exchanges in flight and logs when the client becomes
// busy or idle.
type LogProgress struct {
	logger   zerolog.Logger
	inFlight atomic.Int64
}

func NewLogProgress(logger zerolog.Logger) *LogProgress {
	return &LogProgress{logger: logger}
}

func (p *LogProgress) Start() {
	if p.inFlight.Add(1) == 1 {
		p.logger.Debug().Msg("⏳ Requests in flight")
	}
}

func (p *LogProgress) Done() {
	if p.inFlight.Add(-1) == 0 {
		p.logger.Debug().Msg("Requests settled")
	}
}

// InFlight returns the number of exchanges that started but have not settled.
func (p *LogProgress) InFlight() int64 {
	return p.inFlight.Load()
}
