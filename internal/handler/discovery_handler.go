// internal/handler/discovery_handler.go
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"instrument-service/internal/service"
	"instrument-service/internal/utils"
)

// DiscoveryHandler handles port discovery requests
type DiscoveryHandler struct {
	discoveryService *service.DiscoveryService
	logger           *utils.ServiceLogger
}

// NewDiscoveryHandler creates a new discovery handler
func NewDiscoveryHandler(discoveryService *service.DiscoveryService, logger *zap.Logger) *DiscoveryHandler {
	return &DiscoveryHandler{
		discoveryService: discoveryService,
		logger:           utils.NewServiceLogger(logger, "discovery-handler"),
	}
}

// RegisterRoutes registers discovery routes
func (h *DiscoveryHandler) RegisterRoutes(router *gin.RouterGroup) {
	discovery := router.Group("/discovery")
	{
		discovery.GET("/scan", h.ScanPorts)
		discovery.GET("/suggest", h.Suggest)
		discovery.GET("/scanners", h.GetScanners)
		discovery.GET("/kinds", h.GetSupportedKinds)
	}
}

// scanContext bounds a scan by the timeout query parameter
func scanContext(c *gin.Context) (context.Context, context.CancelFunc, error) {
	timeout, err := time.ParseDuration(c.DefaultQuery("timeout", "30s"))
	if err != nil {
		return nil, nil, err
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
	return ctx, cancel, nil
}

// ScanPorts scans for ports instruments could be connected on
// @Summary Scan for ports
// @Description Scan serial ports, USB devices and configured TCP targets
// @Tags Discovery
// @Produce json
// @Param type query string false "Scan type" Enums(all, serial, usb, tcp) default(all)
// @Param timeout query string false "Scan timeout" default(30s)
// @Success 200 {object} utils.APIResponse{data=object{ports_found=int,ports=[]service.DiscoveredInstrument}} "Port scan completed"
// @Failure 400 {object} utils.APIResponse "Invalid scan type"
// @Failure 500 {object} utils.APIResponse "Scan failed"
// @Router /discovery/scan [get]
func (h *DiscoveryHandler) ScanPorts(c *gin.Context) {
	ctx, cancel, err := scanContext(c)
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid timeout", err)
		return
	}
	defer cancel()

	ports, err := h.discoveryService.Scan(ctx, c.DefaultQuery("type", "all"))
	if err != nil {
		h.logger.Error("Failed to scan ports", zap.Error(err))
		utils.ErrorResponse(c, statusFor(err), "Failed to scan ports", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Port scan completed", gin.H{
		"ports_found": len(ports),
		"ports":       ports,
	})
}

// Suggest proposes instrument definitions for unconfigured ports
// @Summary Suggest instrument definitions
// @Description Scan and propose config entries for supported ports no instrument uses yet
// @Tags Discovery
// @Produce json
// @Param type query string false "Scan type" Enums(all, serial, usb, tcp) default(all)
// @Param timeout query string false "Scan timeout" default(30s)
// @Success 200 {object} utils.APIResponse{data=service.SuggestResult} "Suggestions prepared"
// @Failure 500 {object} utils.APIResponse "Scan failed"
// @Router /discovery/suggest [get]
func (h *DiscoveryHandler) Suggest(c *gin.Context) {
	ctx, cancel, err := scanContext(c)
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid timeout", err)
		return
	}
	defer cancel()

	result, err := h.discoveryService.Suggest(ctx, c.DefaultQuery("type", "all"))
	if err != nil {
		h.logger.Error("Failed to prepare suggestions", zap.Error(err))
		utils.ErrorResponse(c, statusFor(err), "Failed to prepare suggestions", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Suggestions prepared", result)
}

// GetScanners lists the available scanners
// @Summary Available scanners
// @Tags Discovery
// @Produce json
// @Success 200 {object} utils.APIResponse{data=[]string} "Scanners retrieved"
// @Router /discovery/scanners [get]
func (h *DiscoveryHandler) GetScanners(c *gin.Context) {
	utils.SuccessResponse(c, http.StatusOK, "Scanners retrieved", h.discoveryService.AvailableScanners())
}

// GetSupportedKinds lists the instrument kinds that can be configured
// @Summary Supported instrument kinds
// @Tags Discovery
// @Produce json
// @Success 200 {object} utils.APIResponse{data=[]string} "Kinds retrieved"
// @Router /discovery/kinds [get]
func (h *DiscoveryHandler) GetSupportedKinds(c *gin.Context) {
	utils.SuccessResponse(c, http.StatusOK, "Kinds retrieved", h.discoveryService.SupportedKinds())
}
