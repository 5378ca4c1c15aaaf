package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"holdem-service/internal/service/game"
	appErr "holdem-service/pkg/errors"
	"holdem-service/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type Handler struct {
	gameSvc *game.Service
}

func NewHandler(gameSvc *game.Service) *Handler {
	return &Handler{gameSvc: gameSvc}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for dev
	},
}

// OutgoingMessage is every frame the server writes.
type OutgoingMessage struct {
	Type string      `json:"type"` // state / result / error
	Seq  int64       `json:"seq"`
	Data interface{} `json:"data"`
}

type incomingAction struct {
	Action string `json:"action"`
	Amount int64  `json:"amount"`
	Token  string `json:"token"`
}

// HandleHandWS streams one hand's state. With ?seat=N the connection
// sees that seat's hole cards and may act for it.
func (h *Handler) HandleHandWS(c *gin.Context) {
	handID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || handID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid hand id"})
		return
	}
	var viewer *int
	if raw := strings.TrimSpace(c.Query("seat")); raw != "" {
		seat, err := strconv.Atoi(raw)
		if err != nil || seat < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid seat"})
			return
		}
		viewer = &seat
	}

	if _, err := h.gameSvc.GetState(c.Request.Context(), handID, viewer); err != nil {
		if errors.Is(err, appErr.ErrHandNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "hand not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load hand"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Log.Error("Failed to upgrade websocket", zap.Error(err))
		return
	}

	logger.Log.Info("New WebSocket connection",
		zap.Int64("handID", handID),
		zap.Bool("seated", viewer != nil),
	)

	client := newClient(conn, h.gameSvc, handID, viewer)
	client.run()
}

type client struct {
	conn      *websocket.Conn
	svc       *game.Service
	handID    int64
	viewer    *int
	events    <-chan game.Event
	cancel    func()
	replies   chan OutgoingMessage
	done      chan struct{}
	pingEvery time.Duration
}

func newClient(conn *websocket.Conn, svc *game.Service, handID int64, viewer *int) *client {
	conn.SetReadLimit(1 << 16)
	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})
	events, cancel := svc.Notifier().Subscribe(context.Background(), handID)
	return &client{
		conn:      conn,
		svc:       svc,
		handID:    handID,
		viewer:    viewer,
		events:    events,
		cancel:    cancel,
		replies:   make(chan OutgoingMessage, 4),
		done:      make(chan struct{}),
		pingEvery: 25 * time.Second,
	}
}

func (c *client) run() {
	go c.writePump()
	c.readPump()
}

func (c *client) readPump() {
	defer func() {
		close(c.done)
		c.cancel()
		c.conn.Close()
	}()

	for {
		mt, message, err := c.conn.ReadMessage()
		if err != nil {
			logger.Log.Info("WS read error", zap.Error(err), zap.Int64("handID", c.handID))
			return
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}

		var incoming struct {
			Type string          `json:"type"`
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(message, &incoming); err != nil {
			c.reply(OutgoingMessage{Type: "error", Data: gin.H{"message": "invalid payload"}})
			continue
		}

		switch incoming.Type {
		case "":
			continue
		case "action":
			c.reply(c.handleAction(incoming.Data))
		default:
			c.reply(OutgoingMessage{Type: "error", Data: gin.H{"message": "unknown message type"}})
		}
	}
}

func (c *client) handleAction(raw json.RawMessage) OutgoingMessage {
	if c.viewer == nil {
		return OutgoingMessage{Type: "error", Data: gin.H{"message": "connect with ?seat= to act"}}
	}
	var body incomingAction
	if err := json.Unmarshal(raw, &body); err != nil {
		return OutgoingMessage{Type: "error", Data: gin.H{"message": "invalid action payload"}}
	}
	out, err := c.svc.ApplyAction(context.Background(), game.ActionRequest{
		HandID:     c.handID,
		SeatIndex:  *c.viewer,
		Action:     body.Action,
		Amount:     body.Amount,
		DedupToken: body.Token,
	})
	if err != nil {
		return OutgoingMessage{Type: "error", Data: gin.H{"message": err.Error()}}
	}
	return OutgoingMessage{Type: "result", Data: out}
}

func (c *client) reply(msg OutgoingMessage) {
	select {
	case c.replies <- msg:
	case <-c.done:
	}
}

// writePump owns every write on the connection.
func (c *client) writePump() {
	ticker := time.NewTicker(c.pingEvery)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	if !c.pushState() {
		return
	}
	for {
		select {
		case _, ok := <-c.events:
			if !ok {
				return
			}
			if !c.pushState() {
				return
			}
		case msg := <-c.replies:
			if err := c.conn.WriteJSON(msg); err != nil {
				logger.Log.Info("WS write error", zap.Error(err), zap.Int64("handID", c.handID))
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(5*time.Second)); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *client) pushState() bool {
	state, err := c.svc.GetState(context.Background(), c.handID, c.viewer)
	if err != nil {
		logger.Log.Warn("WS state load failed", zap.Error(err), zap.Int64("handID", c.handID))
		return true
	}
	msg := OutgoingMessage{Type: "state", Seq: state.Seq, Data: state}
	if err := c.conn.WriteJSON(msg); err != nil {
		logger.Log.Info("WS write error", zap.Error(err), zap.Int64("handID", c.handID))
		return false
	}
	return true
}
