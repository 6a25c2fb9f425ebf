package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/langchou/fleetgazer/internal/models"
	"github.com/langchou/fleetgazer/internal/repository"
)

// ListBranches 获取门店列表
func (h *Handler) ListBranches(c *gin.Context) {
	branches, err := h.store.Branches.List(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to list branches", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list branches"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": branches})
}

// CreateBranch 创建门店
// POST /api/branches
func (h *Handler) CreateBranch(c *gin.Context) {
	var req struct {
		City string `json:"city" binding:"required"`
	}
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	branch := &models.Branch{City: req.City}
	if err := h.store.Branches.Create(c.Request.Context(), branch); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			c.JSON(http.StatusConflict, gin.H{"error": "Branch already exists"})
			return
		}
		h.logger.Error("Failed to create branch", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create branch"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": branch})
}

// ListDistances 获取距离列表
func (h *Handler) ListDistances(c *gin.Context) {
	distances, err := h.store.Distances.List(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to list distances", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list distances"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": distances})
}

// CreateDistance 创建两个城市间的有向距离
// POST /api/distances
func (h *Handler) CreateDistance(c *gin.Context) {
	var req struct {
		FromCity   string `json:"from_city" binding:"required"`
		ToCity     string `json:"to_city" binding:"required"`
		DistanceKm int    `json:"distance_km" binding:"min=0"`
	}
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	from, err := h.store.Branches.GetByCity(c.Request.Context(), req.FromCity)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "From branch not found"})
		return
	}
	to, err := h.store.Branches.GetByCity(c.Request.Context(), req.ToCity)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "To branch not found"})
		return
	}

	distance := &models.Distance{FromBranch: from.ID, ToBranch: to.ID, DistanceKm: req.DistanceKm}
	if err := h.store.Distances.Create(c.Request.Context(), distance); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			c.JSON(http.StatusConflict, gin.H{"error": "Distance already exists"})
			return
		}
		h.logger.Error("Failed to create distance", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": distance})
}
