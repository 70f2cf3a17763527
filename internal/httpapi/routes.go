package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/caseclosed/backend/internal/hub"
	"github.com/caseclosed/backend/internal/ws"
)

// SetupRoutes builds the router with the hub injected. Everything except the
// websocket endpoint falls through to the static SPA bundle.
func SetupRoutes(h *hub.Hub, log *zap.Logger, publicDir string) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", Healthz)
	r.Get("/ws", ws.Handler(h, log))
	r.NotFound(SPAHandler(publicDir))
	return r
}
