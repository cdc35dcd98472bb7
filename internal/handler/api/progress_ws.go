package api

import (
	"net/http"
	"time"

	"NarraPulse/internal/usecase"
	xlogger "NarraPulse/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

const (
	wsWriteTimeout = 5 * time.Second
	wsPingInterval = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ProgressWSHandler streams per-narrative progress events over a websocket.
type ProgressWSHandler struct {
	logger *xlogger.Logger
	orch   *usecase.AnalysisOrchestrator
}

func NewProgressWSHandler(l *xlogger.Logger, orch *usecase.AnalysisOrchestrator) *ProgressWSHandler {
	return &ProgressWSHandler{logger: l, orch: orch}
}

func (h *ProgressWSHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/ws/progress", h.Stream)
}

func (h *ProgressWSHandler) Stream(c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	events, unsubscribe := h.orch.Subscribe()
	defer unsubscribe()

	// Drain client frames so close/ping handling works; any read error
	// means the peer is gone.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	// Current snapshot first, so late subscribers see where the run is.
	if err := h.writeJSON(conn, h.orch.Status()); err != nil {
		return nil
	}

	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()

	for {
		select {
		case p := <-events:
			if err := h.writeJSON(conn, p); err != nil {
				return nil
			}
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return nil
			}
		case <-closed:
			return nil
		case <-c.Request().Context().Done():
			return nil
		}
	}
}

func (h *ProgressWSHandler) writeJSON(conn *websocket.Conn, v interface{}) error {
	conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	if err := conn.WriteJSON(v); err != nil {
		h.logger.Debug("progress socket write failed", xlogger.Error(err))
		return err
	}
	return nil
}
