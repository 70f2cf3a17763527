package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/caseclosed/backend/internal/hub"
	"github.com/caseclosed/backend/pkg/types"
)

const writeTimeout = 3 * time.Second

// Handler upgrades to a websocket and bridges it to the hub: a writer
// goroutine drains the outbox, the reader loop decodes frames and forwards
// them. Malformed payloads are logged and dropped; the connection stays open.
func Handler(h *hub.Hub, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusInternalError, "server error")

		connID := uuid.NewString()
		outbox := make(chan []byte, 16)

		h.Inbox() <- hub.Join{ConnID: connID, Outbox: outbox}
		defer func() { h.Inbox() <- hub.Leave{ConnID: connID} }()

		writeCtx, writeCancel := context.WithCancel(context.Background())
		defer writeCancel()
		go func() {
			for frame := range outbox {
				ctx, cancel := context.WithTimeout(writeCtx, writeTimeout)
				_ = conn.Write(ctx, websocket.MessageText, frame)
				cancel()
			}
			// Outbox closed by the hub: the room ended or we were dropped.
			conn.Close(websocket.StatusNormalClosure, "bye")
		}()

		for {
			_, data, err := conn.Read(r.Context())
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				default:
					log.Debug("read ended", zap.String("conn", connID), zap.Error(err))
				}
				return
			}

			var cm types.ClientMessage
			if err := json.Unmarshal(data, &cm); err != nil {
				log.Warn("invalid message", zap.String("conn", connID), zap.Error(err))
				continue
			}

			h.Inbox() <- hub.FromClient{ConnID: connID, Msg: cm}
		}
	}
}
