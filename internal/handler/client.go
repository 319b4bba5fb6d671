package handler

import (
	"net/http"

	"github.com/gorilla/websocket"

	"sorter/internal/logger"
	wshub "sorter/internal/service/websocket"
)

// Upgrader upgrades HTTP connections to WebSocket; CheckOrigin allows all origins.
var Upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ObserverWebsocketHandler attaches a dashboard to the hub. It returns when the
// observer disconnects.
func ObserverWebsocketHandler(hub *wshub.HubService, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		connection, err := Upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Error("WebSocket upgrade error: %v", err)
			return
		}

		logger.Info("Observer connected from %s", r.RemoteAddr)
		hub.Serve(r.Context(), connection)
		logger.Info("Observer %s disconnected", r.RemoteAddr)
	}
}
