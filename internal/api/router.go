package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"holdem-service/internal/middleware"
	"holdem-service/internal/service"
	"holdem-service/internal/service/game"
	"holdem-service/internal/service/table"
	"holdem-service/internal/ws"
	"holdem-service/pkg/logger"
	"holdem-service/pkg/response"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Handler struct {
	services *service.Container
}

func RegisterRoutes(r *gin.Engine, services *service.Container) {
	handler := &Handler{services: services}
	wsHandler := ws.NewHandler(services.Game)

	r.Use(middleware.RequestLogger())
	r.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Idempotency-Key", middleware.HeaderRequestID},
		ExposeHeaders:   []string{middleware.HeaderRequestID},
	}))

	r.GET("/ping", func(c *gin.Context) {
		response.Success(c, gin.H{"message": "pong"})
	})

	v1 := r.Group("/v1")
	{
		tables := v1.Group("/tables")
		{
			tables.POST("", handler.CreateTable)
			tables.GET("", handler.ListTables)
			tables.GET("/:id", handler.GetTable)
			tables.POST("/:id/seats/:seat", handler.SitDown)
			tables.DELETE("/:id/seats/:seat", handler.StandUp)
			tables.PUT("/:id/seats/:seat/sitout", handler.SetSatOut)
			tables.POST("/:id/hands", handler.StartHand)
			tables.GET("/:id/hands", handler.ListHands)
		}

		hands := v1.Group("/hands")
		{
			hands.GET("/:id", handler.GetHand)
			hands.POST("/:id/actions", handler.ApplyAction)
			hands.POST("/:id/advance", handler.AdvanceStreet)
			hands.POST("/:id/tick", handler.Tick)
		}
	}

	r.GET("/ws/hands/:id", wsHandler.HandleHandWS)
}

type createTableBody struct {
	Name       string `json:"name"`
	SeatCount  int    `json:"seatCount" binding:"required,min=2,max=10"`
	SmallBlind int64  `json:"smallBlind" binding:"required,min=1"`
	BigBlind   int64  `json:"bigBlind" binding:"required,min=1"`
}

type sitDownBody struct {
	PlayerName string `json:"playerName" binding:"required"`
	BuyIn      int64  `json:"buyIn" binding:"required,min=1"`
}

type sitOutBody struct {
	SatOut bool `json:"satOut"`
}

type actionBody struct {
	Seat   *int   `json:"seat" binding:"required,min=0"`
	Action string `json:"action" binding:"required"`
	Amount int64  `json:"amount" binding:"min=0"`
	Token  string `json:"token"`
}

func (h *Handler) CreateTable(c *gin.Context) {
	var body createTableBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	view, err := h.services.Table.CreateTable(c.Request.Context(), table.CreateTableParams{
		Name:       strings.TrimSpace(body.Name),
		SeatCount:  body.SeatCount,
		SmallBlind: body.SmallBlind,
		BigBlind:   body.BigBlind,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, view)
}

func (h *Handler) ListTables(c *gin.Context) {
	tables, err := h.services.Table.ListTables(c.Request.Context())
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, gin.H{"items": tables})
}

func (h *Handler) GetTable(c *gin.Context) {
	tableID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	view, err := h.services.Table.GetTable(c.Request.Context(), tableID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, view)
}

func (h *Handler) SitDown(c *gin.Context) {
	tableID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	seat, ok := parseSeatParam(c)
	if !ok {
		return
	}
	var body sitDownBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	record, err := h.services.Table.SitDown(c.Request.Context(), tableID, seat, body.PlayerName, body.BuyIn)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, record)
}

func (h *Handler) StandUp(c *gin.Context) {
	tableID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	seat, ok := parseSeatParam(c)
	if !ok {
		return
	}

	cashOut, err := h.services.Table.StandUp(c.Request.Context(), tableID, seat)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, gin.H{"cashOut": cashOut})
}

func (h *Handler) SetSatOut(c *gin.Context) {
	tableID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	seat, ok := parseSeatParam(c)
	if !ok {
		return
	}
	var body sitOutBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.services.Table.SetSatOut(c.Request.Context(), tableID, seat, body.SatOut); err != nil {
		writeServiceError(c, err)
		return
	}
	response.SuccessWithMsg(c, gin.H{"satOut": body.SatOut}, "updated")
}

func (h *Handler) StartHand(c *gin.Context) {
	tableID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	res, err := h.services.Game.StartHand(c.Request.Context(), tableID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, res)
}

func (h *Handler) ListHands(c *gin.Context) {
	tableID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	limit, err := parsePositiveIntQuery(c, "limit", 20)
	if err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}
	hands, err := h.services.Game.ListHands(c.Request.Context(), tableID, limit)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, gin.H{"items": hands})
}

func (h *Handler) GetHand(c *gin.Context) {
	handID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	viewer, err := parseViewerQuery(c)
	if err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	state, err := h.services.Game.GetState(c.Request.Context(), handID, viewer)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, state)
}

func (h *Handler) ApplyAction(c *gin.Context) {
	handID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var body actionBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}
	token := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
	if token == "" {
		token = strings.TrimSpace(body.Token)
	}

	out, err := h.services.Game.ApplyAction(c.Request.Context(), game.ActionRequest{
		HandID:     handID,
		SeatIndex:  *body.Seat,
		Action:     body.Action,
		Amount:     body.Amount,
		DedupToken: token,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, out)
}

func (h *Handler) AdvanceStreet(c *gin.Context) {
	handID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	res, err := h.services.Game.AdvanceStreet(c.Request.Context(), handID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, res)
}

func (h *Handler) Tick(c *gin.Context) {
	handID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	res, err := h.services.Game.Tick(c.Request.Context(), handID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, res)
}

func writeServiceError(c *gin.Context, err error) {
	if status := response.Fail(c, err); status >= http.StatusInternalServerError {
		logger.Log.Error("request failed",
			zap.String("requestID", middleware.GetRequestID(c)),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
	}
}

func parseIDParam(c *gin.Context, key string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(key), 10, 64)
	if err != nil || id <= 0 {
		response.Error(c, http.StatusBadRequest, fmt.Sprintf("invalid %s", key))
		return 0, false
	}
	return id, true
}

func parseSeatParam(c *gin.Context) (int, bool) {
	seat, err := strconv.Atoi(c.Param("seat"))
	if err != nil || seat < 0 {
		response.Error(c, http.StatusBadRequest, "invalid seat")
		return 0, false
	}
	return seat, true
}

// parseViewerQuery reads the optional ?seat= viewer.
func parseViewerQuery(c *gin.Context) (*int, error) {
	raw := strings.TrimSpace(c.Query("seat"))
	if raw == "" {
		return nil, nil
	}
	seat, err := strconv.Atoi(raw)
	if err != nil || seat < 0 {
		return nil, fmt.Errorf("invalid seat")
	}
	return &seat, nil
}

func parsePositiveIntQuery(c *gin.Context, key string, defaultVal int) (int, error) {
	val := c.Query(key)
	if val == "" {
		return defaultVal, nil
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return parsed, nil
}
