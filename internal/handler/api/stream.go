package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"WhaleWatch/internal/usecase"
	xhttp "WhaleWatch/pkg/http"
	xlogger "WhaleWatch/pkg/logger"
)

const (
	streamWriteWait  = 5 * time.Second
	streamPongWait   = 60 * time.Second
	streamPingPeriod = streamPongWait * 9 / 10
)

// StreamHandler pushes every dashboard snapshot to WebSocket clients. A slow
// client only ever sees the latest snapshot; older ones are dropped.
type StreamHandler struct {
	logger   *xlogger.Logger
	dash     Dashboard
	upgrader websocket.Upgrader
}

func NewStreamHandler(logger *xlogger.Logger, dash Dashboard, allowedOrigins []string) *StreamHandler {
	h := &StreamHandler{logger: logger, dash: dash}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 8192,
	}
	if len(allowedOrigins) > 0 {
		h.upgrader.CheckOrigin = func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			for _, o := range allowedOrigins {
				if o == "*" || o == origin {
					return true
				}
			}
			return false
		}
	}
	return h
}

func (h *StreamHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/api/stream", h.Stream)
}

func (h *StreamHandler) Stream(c echo.Context) error {
	if !h.dash.Snapshot().Authenticated {
		return xhttp.AppErrorResponse(c, xhttp.UnauthorizedError("not signed in"))
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade has already written the error response.
		h.logger.Warn("websocket upgrade failed", xlogger.Error(err))
		return nil
	}
	defer conn.Close()

	latest := make(chan usecase.Snapshot, 1)
	push := func(s usecase.Snapshot) {
		for {
			select {
			case latest <- s:
				return
			default:
			}
			select {
			case <-latest:
			default:
			}
		}
	}
	unsubscribe := h.dash.Subscribe(push)
	defer unsubscribe()
	push(h.dash.Snapshot())

	closed := make(chan struct{})
	go h.readPump(conn, closed)

	ping := time.NewTicker(streamPingPeriod)
	defer ping.Stop()

	remote := c.RealIP()
	h.logger.Debug("stream client connected", xlogger.String("remote", remote))
	for {
		select {
		case <-closed:
			h.logger.Debug("stream client disconnected", xlogger.String("remote", remote))
			return nil
		case <-c.Request().Context().Done():
			return nil
		case snap := <-latest:
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteJSON(snap); err != nil {
				h.logger.Debug("stream write failed", xlogger.Error(err))
				return nil
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteWait)); err != nil {
				return nil
			}
		}
	}
}

// readPump discards client messages and notices when the peer goes away.
func (h *StreamHandler) readPump(conn *websocket.Conn, closed chan<- struct{}) {
	defer close(closed)
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(streamPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(streamPongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
