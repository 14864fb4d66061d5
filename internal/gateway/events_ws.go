package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

const wsWriteTimeout = 5 * time.Second

// handleEvents returns GET /ws/events: a websocket streaming the event
// bus (ingest progress, chat activity) as JSON envelopes. Slow readers
// miss events rather than stalling publishers.
func (g *Gateway) handleEvents() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if g.bus == nil {
			http.Error(w, "event bus unavailable", http.StatusServiceUnavailable)
			return
		}

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			g.logger.Debug("websocket accept failed", "error", err)
			return
		}
		defer conn.Close(websocket.StatusInternalError, "")

		// The client never sends data; CloseRead watches for disconnect.
		ctx := conn.CloseRead(r.Context())

		ch, unsubscribe := g.bus.Subscribe()
		defer unsubscribe()

		g.logger.Debug("event stream client connected")
		for {
			select {
			case <-ctx.Done():
				_ = conn.Close(websocket.StatusNormalClosure, "")
				return
			case ev := <-ch:
				writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
				err := wsjson.Write(writeCtx, conn, ev)
				cancel()
				if err != nil {
					g.logger.Debug("event stream write failed", "error", err)
					return
				}
			}
		}
	}
}
