package websocket

import (
	"net/http"
	"strings"
	"time"

	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/ehr/benefits-gateway/internal/platform/auth"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

type HandlerOptions struct {
	SendBuffer int
	// CheckOrigin defaults to gorilla's same-origin check.
	CheckOrigin func(r *http.Request) bool
}

// AllowedOrigins returns an upgrade origin check that accepts the listed
// browser origins, or any origin when the list contains "*". Requests
// without an Origin header come from non-browser clients and are accepted.
func AllowedOrigins(origins []string) func(r *http.Request) bool {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o != "" {
			allowed[strings.ToLower(o)] = true
		}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || allowed["*"] {
			return true
		}
		return allowed[strings.ToLower(strings.TrimRight(origin, "/"))]
	}
}

// Handler upgrades authenticated requests and runs the per-connection pumps.
type Handler struct {
	hub        *Hub
	router     *Router
	verifier   auth.Verifier
	upgrader   gorillawebsocket.Upgrader
	sendBuffer int
	log        zerolog.Logger
}

func NewHandler(hub *Hub, router *Router, verifier auth.Verifier, logger zerolog.Logger, opts HandlerOptions) *Handler {
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = 256
	}
	return &Handler{
		hub:      hub,
		router:   router,
		verifier: verifier,
		upgrader: gorillawebsocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     opts.CheckOrigin,
		},
		sendBuffer: opts.SendBuffer,
		log:        logger.With().Str("component", "ws_handler").Logger(),
	}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/ws", h.HandleConnect)
}

// HandleConnect authenticates the upgrade request from its subprotocol
// header, upgrades it, and serves the connection until it closes.
func (h *Handler) HandleConnect(c echo.Context) error {
	req := c.Request()

	scheme, token, err := auth.TokenFromProtocol(req)
	var identity auth.Identity
	if err == nil {
		identity, err = h.verifier.Verify(req.Context(), token)
	}
	if err != nil {
		h.log.Warn().Err(err).Str("remote_ip", c.RealIP()).Msg("websocket authentication failed")
		return h.reject(c)
	}
	c.Set("identity_id", identity.ID)

	hdr := http.Header{}
	hdr.Set(auth.ProtocolHeader, scheme)
	ws, err := h.upgrader.Upgrade(c.Response(), req, hdr)
	if err != nil {
		// The upgrader has already written the HTTP error.
		h.log.Debug().Err(err).Msg("websocket upgrade failed")
		return nil
	}

	client := NewClient(identity, h.sendBuffer)
	h.hub.Register(client)
	h.log.Info().
		Str("client_id", client.ID).
		Str("identity_id", identity.ID).
		Str("kind", string(identity.Kind)).
		Msg("websocket connected")

	go h.writePump(client, ws)
	h.readPump(client, ws)
	return nil
}

// reject drops the connection below the WebSocket layer: the raw socket is
// closed without a response. Writers that cannot be hijacked get a 401.
func (h *Handler) reject(c echo.Context) error {
	hj, ok := c.Response().Writer.(http.Hijacker)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	conn, _, err := hj.Hijack()
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	return conn.Close()
}

// readPump processes frames in arrival order, each to completion, until the
// socket fails. It owns unregistration.
func (h *Handler) readPump(client *Client, ws *gorillawebsocket.Conn) {
	defer func() {
		h.hub.Unregister(client)
		ws.Close()
		h.log.Info().Str("client_id", client.ID).Str("identity_id", client.Identity.ID).Msg("websocket disconnected")
	}()

	ws.SetReadLimit(maxMessageSize)
	ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if gorillawebsocket.IsUnexpectedCloseError(err, gorillawebsocket.CloseGoingAway, gorillawebsocket.CloseNormalClosure) {
				h.log.Debug().Err(err).Str("client_id", client.ID).Msg("websocket read error")
			}
			return
		}
		h.router.Dispatch(client, data)
	}
}

// writePump drains client.Send onto the socket and keeps the connection
// alive with pings. Closing Send ends it.
func (h *Handler) writePump(client *Client, ws *gorillawebsocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		ws.Close()
	}()

	for {
		select {
		case message, ok := <-client.Send:
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				ws.WriteMessage(gorillawebsocket.CloseMessage, gorillawebsocket.FormatCloseMessage(gorillawebsocket.CloseNormalClosure, ""))
				return
			}
			if err := ws.WriteMessage(gorillawebsocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(gorillawebsocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
