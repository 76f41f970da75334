// Package ingest consumes tick frames from the market-data socket and
// forwards them into the engine.
package ingest

import (
	"context"
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/pkg/sys"
	"github.com/yanun0323/pkg/ws"

	"winter/internal/model"
	"winter/internal/obs"
)

// Frame is one tick message on the feed socket.
type Frame struct {
	Symbol string  `json:"Symbol"`
	Price  float64 `json:"Price"`
	Size   int64   `json:"Size"`
}

// Feed is a live tick source backed by a websocket endpoint.
type Feed struct {
	wss     *ws.WebSocket
	metrics *obs.Metrics
}

func NewFeed(ctx context.Context, endpoint string, metrics *obs.Metrics) *Feed {
	return &Feed{
		wss:     ws.New(ctx, endpoint),
		metrics: metrics,
	}
}

func (f *Feed) Start(ctx context.Context) error {
	if err := f.wss.Start(ctx); err != nil {
		return errors.Wrap(err, "start feed socket")
	}
	return nil
}

func (f *Feed) Close() {
	f.wss.Close()
}

// ObserveTicks forwards parsed frames to handler, stamped with the
// local wall clock in microseconds. Malformed frames are skipped and
// counted; they never stop the observer.
func (f *Feed) ObserveTicks(ctx context.Context, handler func(model.Tick)) (unsubscribe func()) {
	ch, cancel := f.wss.Subscribe()

	go func() {
		defer cancel()
		for {
			select {
			case <-sys.Shutdown():
				return
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok {
					return
				}

				frame, ok := ws.ReadMessage[Frame](m)
				if !ok {
					f.metrics.IncParseError()
					continue
				}

				tick := model.Tick{
					Symbol:      frame.Symbol,
					Price:       frame.Price,
					Volume:      frame.Size,
					TimestampUs: time.Now().UnixMicro(),
				}
				if !tick.Valid() {
					f.metrics.IncParseError()
					continue
				}

				handler(tick)
			}
		}
	}()

	return cancel
}
