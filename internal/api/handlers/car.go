package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/langchou/fleetgazer/internal/models"
	"github.com/langchou/fleetgazer/internal/repository"
)

// ListCars 获取车辆列表
func (h *Handler) ListCars(c *gin.Context) {
	cars, err := h.store.Cars.List(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to list cars", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list cars"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": cars})
}

// CreateCar 创建车辆并写入初始位置日志
// POST /api/cars
func (h *Handler) CreateCar(c *gin.Context) {
	var req struct {
		CarNumber string `json:"car_number" binding:"required"`
		Make      string `json:"make" binding:"required"`
		Model     string `json:"model" binding:"required"`
		City      string `json:"city" binding:"required"`
	}
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	branch, err := h.store.Branches.GetByCity(c.Request.Context(), req.City)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Branch not found"})
			return
		}
		h.logger.Error("Failed to resolve branch", zap.String("city", req.City), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create car"})
		return
	}

	car := &models.Car{CarNumber: req.CarNumber, Make: req.Make, Model: req.Model}
	err = h.store.InTx(c.Request.Context(), func(s repository.Store) error {
		return s.ProvisionCar(c.Request.Context(), car, branch.ID, time.Now())
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			c.JSON(http.StatusConflict, gin.H{"error": "Car number already exists"})
			return
		}
		h.logger.Error("Failed to create car", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.logger.Info("Car created", zap.String("car_number", car.CarNumber), zap.String("city", branch.City))
	c.JSON(http.StatusCreated, gin.H{"data": car})
}

// GetCar 获取车辆详情及其当前所在门店
func (h *Handler) GetCar(c *gin.Context) {
	car, err := h.store.Cars.GetByCarNumber(c.Request.Context(), c.Param("number"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Car not found"})
		return
	}

	resp := gin.H{"car": car}
	branchID, err := h.store.Movements.LatestBranchBefore(c.Request.Context(), car.ID, time.Now())
	if err == nil {
		if branch, err := h.store.Branches.GetByID(c.Request.Context(), branchID); err == nil {
			resp["current_branch"] = branch
		}
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// UpdateCar 更新车辆品牌与型号
// PUT /api/cars/:number
func (h *Handler) UpdateCar(c *gin.Context) {
	var req struct {
		Make  string `json:"make" binding:"required"`
		Model string `json:"model" binding:"required"`
	}
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	car := &models.Car{CarNumber: c.Param("number"), Make: req.Make, Model: req.Model}
	if err := h.store.Cars.Update(c.Request.Context(), car); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Car not found"})
			return
		}
		h.logger.Error("Failed to update car", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update car"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": car})
}

// DeleteCar 删除车辆
// DELETE /api/cars/:number
func (h *Handler) DeleteCar(c *gin.Context) {
	carNumber := c.Param("number")
	if err := h.store.Cars.Delete(c.Request.Context(), carNumber); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Car not found"})
			return
		}
		h.logger.Error("Failed to delete car", zap.String("car_number", carNumber), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete car"})
		return
	}

	h.logger.Info("Car deleted", zap.String("car_number", carNumber))
	c.JSON(http.StatusOK, gin.H{"message": "Car deleted", "car_number": carNumber})
}

// GetCarLogs 车辆的位置日志，按时间升序
// GET /api/cars/:number/logs
func (h *Handler) GetCarLogs(c *gin.Context) {
	car, err := h.store.Cars.GetByCarNumber(c.Request.Context(), c.Param("number"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Car not found"})
		return
	}

	logs, err := h.store.Movements.ListByCar(c.Request.Context(), car.ID)
	if err != nil {
		h.logger.Error("Failed to list car logs", zap.Int64("car_id", car.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list car logs"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": logs})
}

// GetCarBranch 车辆在指定时刻所在的门店
// GET /api/cars/:number/branch?at=RFC3339，at 缺省为当前时间
func (h *Handler) GetCarBranch(c *gin.Context) {
	car, err := h.store.Cars.GetByCarNumber(c.Request.Context(), c.Param("number"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Car not found"})
		return
	}

	at := time.Now()
	if raw := c.Query("at"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid 'at' timestamp"})
			return
		}
		at = parsed
	}

	branchID, err := h.dispatcher.CurrentBranchOf(c.Request.Context(), car.ID, at)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Car has no known location before this time"})
			return
		}
		h.logger.Error("Failed to locate car", zap.Int64("car_id", car.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to locate car"})
		return
	}

	branch, err := h.store.Branches.GetByID(c.Request.Context(), branchID)
	if err != nil {
		h.logger.Error("Failed to load branch", zap.Int64("branch_id", branchID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load branch"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"car": car, "branch": branch, "at": at}})
}
