// internal/handler/exchange_handler.go
package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"instrument-service/internal/service"
	"instrument-service/internal/utils"
)

// ExchangeHandler serves the recorded exchange history
type ExchangeHandler struct {
	exchangeService   *service.ExchangeService
	instrumentService *service.InstrumentService
	logger            *utils.ServiceLogger
}

// NewExchangeHandler creates a new exchange handler
func NewExchangeHandler(exchangeService *service.ExchangeService, instrumentService *service.InstrumentService, logger *zap.Logger) *ExchangeHandler {
	return &ExchangeHandler{
		exchangeService:   exchangeService,
		instrumentService: instrumentService,
		logger:            utils.NewServiceLogger(logger, "exchange-handler"),
	}
}

// RegisterRoutes registers exchange routes
func (h *ExchangeHandler) RegisterRoutes(router *gin.RouterGroup) {
	exchanges := router.Group("/exchanges")
	{
		exchanges.GET("/stats", h.GetAllStats)
		exchanges.GET("/:id", h.GetExchange)
		exchanges.DELETE("", h.PurgeExchanges)
	}

	router.GET("/instruments/:name/exchanges", h.ListInstrumentExchanges)
	router.GET("/instruments/:name/exchanges/stats", h.GetInstrumentStats)
}

// GetExchange retrieves one exchange
// @Summary Get exchange
// @Tags Exchanges
// @Produce json
// @Param id path string true "Exchange ID"
// @Success 200 {object} utils.APIResponse{data=model.Exchange} "Exchange retrieved successfully"
// @Failure 400 {object} utils.APIResponse "Invalid exchange ID"
// @Failure 404 {object} utils.APIResponse "Exchange not found"
// @Router /exchanges/{id} [get]
func (h *ExchangeHandler) GetExchange(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid exchange ID", err)
		return
	}

	exchange, err := h.exchangeService.Get(c.Request.Context(), id)
	if err != nil {
		utils.ErrorResponse(c, statusFor(err), "Exchange not found", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Exchange retrieved successfully", exchange)
}

// ListInstrumentExchanges lists the recent exchanges of an instrument
// @Summary List instrument exchanges
// @Tags Exchanges
// @Produce json
// @Param name path string true "Instrument name"
// @Param limit query int false "Maximum number of exchanges" default(50)
// @Success 200 {object} utils.APIResponse{data=[]model.Exchange} "Exchanges retrieved successfully"
// @Failure 404 {object} utils.APIResponse "Instrument not found"
// @Router /instruments/{name}/exchanges [get]
func (h *ExchangeHandler) ListInstrumentExchanges(c *gin.Context) {
	limit := 50
	if limitStr := c.Query("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 1000 {
			limit = l
		}
	}

	exchanges, err := h.instrumentService.Exchanges(c.Request.Context(), c.Param("name"), limit)
	if err != nil {
		h.logger.Error("Failed to list exchanges", zap.Error(err))
		utils.ErrorResponse(c, statusFor(err), "Failed to list exchanges", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Exchanges retrieved successfully", exchanges)
}

// GetInstrumentStats summarises the exchanges of an instrument
// @Summary Instrument exchange statistics
// @Tags Exchanges
// @Produce json
// @Param name path string true "Instrument name"
// @Success 200 {object} utils.APIResponse{data=repository.ExchangeStats} "Statistics retrieved successfully"
// @Failure 404 {object} utils.APIResponse "Instrument not found"
// @Router /instruments/{name}/exchanges/stats [get]
func (h *ExchangeHandler) GetInstrumentStats(c *gin.Context) {
	stats, err := h.instrumentService.ExchangeStats(c.Request.Context(), c.Param("name"))
	if err != nil {
		utils.ErrorResponse(c, statusFor(err), "Failed to get exchange statistics", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Statistics retrieved successfully", stats)
}

// GetAllStats summarises every exchange
// @Summary Exchange statistics
// @Tags Exchanges
// @Produce json
// @Success 200 {object} utils.APIResponse{data=repository.ExchangeStats} "Statistics retrieved successfully"
// @Router /exchanges/stats [get]
func (h *ExchangeHandler) GetAllStats(c *gin.Context) {
	stats, err := h.exchangeService.Stats(c.Request.Context(), "")
	if err != nil {
		h.logger.Error("Failed to get exchange statistics", zap.Error(err))
		utils.ErrorResponse(c, statusFor(err), "Failed to get exchange statistics", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Statistics retrieved successfully", stats)
}

// PurgeExchanges deletes exchanges older than a duration
// @Summary Purge exchanges
// @Tags Exchanges
// @Produce json
// @Param older_than query string true "Retention window, e.g. 24h"
// @Success 200 {object} utils.APIResponse{data=object{deleted=int}} "Exchanges purged"
// @Failure 400 {object} utils.APIResponse "Invalid duration"
// @Router /exchanges [delete]
func (h *ExchangeHandler) PurgeExchanges(c *gin.Context) {
	retention, err := time.ParseDuration(c.Query("older_than"))
	if err != nil || retention < 0 {
		utils.ErrorResponse(c, http.StatusBadRequest, "older_than must be a positive duration", err)
		return
	}

	deleted, err := h.instrumentService.PurgeExchanges(c.Request.Context(), retention)
	if err != nil {
		h.logger.Error("Failed to purge exchanges", zap.Error(err))
		utils.ErrorResponse(c, statusFor(err), "Failed to purge exchanges", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Exchanges purged", gin.H{"deleted": deleted})
}
