package mdg

import (
	"winter/internal/ingest"
	"winter/internal/model"
)

// ToFrame maps a tick onto the feed socket's wire frame.
func ToFrame(tick model.Tick) ingest.Frame {
	return ingest.Frame{
		Symbol: tick.Symbol,
		Price:  tick.Price,
		Size:   tick.Volume,
	}
}

// FromFrame maps a wire frame back to a tick, stamped with tsUs.
func FromFrame(frame ingest.Frame, tsUs int64) model.Tick {
	return model.Tick{
		Symbol:      frame.Symbol,
		Price:       frame.Price,
		Volume:      frame.Size,
		TimestampUs: tsUs,
	}
}
