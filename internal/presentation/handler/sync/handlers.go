package sync

import (
	"log"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/parleychat/parley/internal/infrastructure/configs"
	"github.com/parleychat/parley/internal/infrastructure/ws"
)

type Handler struct {
	cfg      configs.WSConfig
	core     *ws.Core
	upgrader websocket.Upgrader
}

func NewHandler(cfg configs.WSConfig, core *ws.Core) *Handler {
	return &Handler{
		cfg:  cfg,
		core: core,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Browsers connect straight from the chat frontend; origin
			// policy is enforced at the gateway.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// ConnectHandler upgrades the request and starts the connection's
// pumps. The connection is anonymous until its join event arrives.
func (h *Handler) ConnectHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	client := ws.NewClient(conn, uuid.NewString(), h.cfg)

	h.core.Connect(client)

	go client.WritePump()
	go client.ReadPump(h.core)
}
