package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ebogdum/dslockd/core"
)

const watchWriteTimeout = 10 * time.Second

var watchUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// V1WatchLocks handles GET /v1/watch, streaming lock transitions to the
// client as JSON messages over a websocket until the client disconnects.
func V1WatchLocks(engine *core.Engine, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := watchUpgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn("Failed to upgrade watch websocket", zap.Error(err))
			return
		}
		defer conn.Close()

		events := engine.Hub().Subscribe()
		defer engine.Hub().Unsubscribe(events)

		// Drain client frames so closes and pings are processed; the watch
		// stream itself is one-way.
		done := make(chan struct{})
		go func() {
			defer close(done)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		logger.Debug("Watch subscriber connected", zap.String("remote_addr", r.RemoteAddr))

		for {
			select {
			case ev, ok := <-events:
				if !ok {
					return
				}
				if err := conn.SetWriteDeadline(time.Now().Add(watchWriteTimeout)); err != nil {
					return
				}
				if err := conn.WriteJSON(ev); err != nil {
					logger.Debug("Watch subscriber write failed", zap.Error(err))
					return
				}
			case <-done:
				logger.Debug("Watch subscriber disconnected", zap.String("remote_addr", r.RemoteAddr))
				return
			case <-r.Context().Done():
				return
			}
		}
	}
}
