// internal/handler/units_handler.go
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"instrument-service/internal/units"
	"instrument-service/internal/utils"
)

// UnitsHandler exposes the unit registry
type UnitsHandler struct {
	converter *units.Converter
	logger    *utils.ServiceLogger
}

// NewUnitsHandler creates a new units handler
func NewUnitsHandler(converter *units.Converter, logger *zap.Logger) *UnitsHandler {
	return &UnitsHandler{
		converter: converter,
		logger:    utils.NewServiceLogger(logger, "units-handler"),
	}
}

// ConvertRequest is a quantity and the unit to express it in
type ConvertRequest struct {
	Quantity string `json:"quantity" binding:"required" example:"115 mW"`
	To       string `json:"to" binding:"required" example:"W"`
}

// RegisterRoutes registers unit routes
func (h *UnitsHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.POST("/units/convert", h.Convert)
	router.GET("/units/:symbol", h.Lookup)
}

// Convert converts a quantity to another unit of the same dimension
// @Summary Convert quantity
// @Tags Units
// @Accept json
// @Produce json
// @Param request body ConvertRequest true "Conversion request"
// @Success 200 {object} utils.APIResponse{data=units.Quantity} "Quantity converted"
// @Failure 400 {object} utils.APIResponse "Invalid quantity or incompatible units"
// @Router /units/convert [post]
func (h *UnitsHandler) Convert(c *gin.Context) {
	var req ConvertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	q, err := h.converter.Parse(req.Quantity, req.To)
	if err != nil {
		utils.ErrorResponse(c, statusFor(err), "Conversion failed", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Quantity converted", q)
}

// Lookup describes a registered unit
// @Summary Describe unit
// @Tags Units
// @Produce json
// @Param symbol path string true "Unit symbol"
// @Success 200 {object} utils.APIResponse{data=units.Unit} "Unit retrieved"
// @Failure 400 {object} utils.APIResponse "Unknown unit"
// @Router /units/{symbol} [get]
func (h *UnitsHandler) Lookup(c *gin.Context) {
	u, err := h.converter.Lookup(c.Param("symbol"))
	if err != nil {
		utils.ErrorResponse(c, statusFor(err), "Unknown unit", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Unit retrieved", u)
}
