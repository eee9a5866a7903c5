package stream

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/tradecore/backend/pkg/logger"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Serve upgrades r to a WebSocket connection and relays sub's events to
// it as JSON text frames until the connection closes, sub is
// disconnected (OverflowDisconnect), or the client goes away. The
// caller is responsible for calling h.Unsubscribe(sub) once Serve
// returns if it hasn't already been removed.
func Serve(w http.ResponseWriter, r *http.Request, hub *Hub, sub *Subscriber) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	done := make(chan struct{})
	go readPump(conn, done)

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-sub.Events():
			if !ok {
				return nil
			}
			body, err := json.Marshal(event.Payload)
			if err != nil {
				logger.Warn("failed to marshal stream event", zap.String("channel", event.Channel), zap.Error(err))
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, body); err != nil {
				hub.Unsubscribe(sub)
				return err
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				hub.Unsubscribe(sub)
				return err
			}

		case <-done:
			hub.Unsubscribe(sub)
			return nil
		}
	}
}

// readPump discards inbound frames (this hub is publish-only to
// subscribers) but must keep reading so the pong handler fires and a
// client-initiated close is detected promptly.
func readPump(conn *websocket.Conn, done chan struct{}) {
	defer close(done)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
