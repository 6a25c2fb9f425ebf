package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/langchou/fleetgazer/internal/repository"
	"github.com/langchou/fleetgazer/internal/service"
	"github.com/langchou/fleetgazer/pkg/ws"
)

// Handler HTTP 处理器
type Handler struct {
	logger     *zap.Logger
	store      *repository.FleetStore
	dispatcher *service.Dispatcher
	board      *service.Board
	wsHub      *ws.Hub
	upgrader   websocket.Upgrader
}

// NewHandler 创建处理器
func NewHandler(
	logger *zap.Logger,
	store *repository.FleetStore,
	dispatcher *service.Dispatcher,
	board *service.Board,
	wsHub *ws.Hub,
) *Handler {
	return &Handler{
		logger:     logger,
		store:      store,
		dispatcher: dispatcher,
		board:      board,
		wsHub:      wsHub,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // 开发环境允许所有来源
			},
		},
	}
}

// RegisterRoutes 注册路由
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	// API 路由
	api := r.Group("/api")
	{
		// 预订
		api.POST("/reservations", h.CreateReservation)
		api.POST("/reservations/batch", h.CreateReservationBatch)
		api.GET("/reservations/upcoming", h.ListUpcomingReservations)
		api.DELETE("/reservations/:id", h.CancelReservation)

		// 车辆
		api.GET("/cars", h.ListCars)
		api.POST("/cars", h.CreateCar)
		api.GET("/cars/:number", h.GetCar)
		api.PUT("/cars/:number", h.UpdateCar)
		api.DELETE("/cars/:number", h.DeleteCar)
		api.GET("/cars/:number/branch", h.GetCarBranch)
		api.GET("/cars/:number/logs", h.GetCarLogs)

		// 门店与距离
		api.GET("/branches", h.ListBranches)
		api.POST("/branches", h.CreateBranch)
		api.GET("/distances", h.ListDistances)
		api.POST("/distances", h.CreateDistance)

		// 看板
		api.GET("/fleet/states", h.GetFleetStates)
	}

	// WebSocket
	r.GET("/ws", h.HandleWebSocket)

	// 健康检查
	r.GET("/health", h.HealthCheck)
}

// HandleWebSocket WebSocket 处理
func (h *Handler) HandleWebSocket(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade websocket", zap.Error(err))
		return
	}

	client := ws.NewClient(h.wsHub, conn)
	client.Register()

	// 启动读写协程
	go client.ReadPump()
	go client.WritePump()
}

// HealthCheck 健康检查
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":     "ok",
		"ws_clients": h.wsHub.ClientCount(),
	})
}

// GetFleetStates 获取车队看板状态
func (h *Handler) GetFleetStates(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": h.board.GetAllStates()})
}

// bookingError 预订错误到 HTTP 状态码的映射
func (h *Handler) bookingError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidTime),
		errors.Is(err, service.ErrInsufficientDuration),
		errors.Is(err, service.ErrNoRoute):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrUnknownBranch):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrNoCarAvailable),
		errors.Is(err, service.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrTimeout):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": err.Error()})
	default:
		h.logger.Error("Reservation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
	}
}
