package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/langchou/fleetgazer/internal/repository"
	"github.com/langchou/fleetgazer/internal/service"
)

// CreateReservation 创建单个预订
// POST /api/reservations
func (h *Handler) CreateReservation(c *gin.Context) {
	var req service.ReserveRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	reservation, err := h.dispatcher.ReserveOne(c.Request.Context(), req)
	if err != nil {
		h.bookingError(c, err)
		return
	}

	h.board.NotifyReservationCreated(c.Request.Context(), reservation)
	c.JSON(http.StatusCreated, gin.H{"data": reservation})
}

// CreateReservationBatch 原子创建一组预订，任一失败则全部回滚
// POST /api/reservations/batch
func (h *Handler) CreateReservationBatch(c *gin.Context) {
	var req struct {
		Reservations []service.ReserveRequest `json:"reservations" binding:"required"`
	}
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	reservations, err := h.dispatcher.ReserveBatch(c.Request.Context(), req.Reservations)
	if err != nil {
		h.bookingError(c, err)
		return
	}

	for i := range reservations {
		h.board.NotifyReservationCreated(c.Request.Context(), &reservations[i])
	}
	c.JSON(http.StatusCreated, gin.H{"data": reservations})
}

// ListUpcomingReservations 尚未开始的预订，按开始时间升序
// GET /api/reservations/upcoming
func (h *Handler) ListUpcomingReservations(c *gin.Context) {
	reservations, err := h.dispatcher.UpcomingReservations(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to list upcoming reservations", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list reservations"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": reservations})
}

// CancelReservation 取消预订并清理它的两条位置日志
// DELETE /api/reservations/:id
func (h *Handler) CancelReservation(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid reservation ID"})
		return
	}

	err = h.store.InTx(c.Request.Context(), func(s repository.Store) error {
		return s.CancelReservation(c.Request.Context(), id)
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Reservation not found"})
			return
		}
		h.logger.Error("Failed to cancel reservation", zap.Int64("reservation_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to cancel reservation"})
		return
	}

	h.logger.Info("Reservation cancelled", zap.Int64("reservation_id", id))
	h.board.NotifyReservationCancelled(c.Request.Context(), id)
	c.JSON(http.StatusOK, gin.H{"message": "Reservation cancelled", "reservation_id": id})
}
