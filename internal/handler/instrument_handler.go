// internal/handler/instrument_handler.go
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"instrument-service/internal/service"
	"instrument-service/internal/units"
	"instrument-service/internal/utils"
)

// InstrumentHandler handles instrument-related HTTP requests
type InstrumentHandler struct {
	instrumentService *service.InstrumentService
	logger            *utils.ServiceLogger
}

// NewInstrumentHandler creates a new instrument handler
func NewInstrumentHandler(instrumentService *service.InstrumentService, logger *zap.Logger) *InstrumentHandler {
	return &InstrumentHandler{
		instrumentService: instrumentService,
		logger:            utils.NewServiceLogger(logger, "instrument-handler"),
	}
}

// CommandRequest carries one command line
type CommandRequest struct {
	Command string `json:"command" binding:"required" example:"*IDN?"`
}

// PowerRequest carries a power with its unit, e.g. "25 mW"
type PowerRequest struct {
	Power string `json:"power" binding:"required" example:"25 mW"`
}

// EnableRequest switches an output
type EnableRequest struct {
	On *bool `json:"on" binding:"required"`
}

// RegisterRoutes registers instrument routes
func (h *InstrumentHandler) RegisterRoutes(router *gin.RouterGroup) {
	instruments := router.Group("/instruments")
	{
		instruments.GET("", h.ListInstruments)

		instrumentRoutes := instruments.Group("/:name")
		{
			instrumentRoutes.GET("", h.GetInstrument)
			instrumentRoutes.POST("/connect", h.Connect)
			instrumentRoutes.POST("/disconnect", h.Disconnect)
			instrumentRoutes.GET("/health", h.GetHealth)
			instrumentRoutes.POST("/query", h.Query)
			instrumentRoutes.POST("/write", h.Write)
			instrumentRoutes.POST("/read", h.Read)
			instrumentRoutes.GET("/idn", h.Idn)
			instrumentRoutes.GET("/power/setpoint", h.GetPowerSetpoint)
			instrumentRoutes.PUT("/power/setpoint", h.SetPowerSetpoint)
			instrumentRoutes.GET("/power", h.GetPower)
			instrumentRoutes.GET("/output", h.GetOutput)
			instrumentRoutes.PUT("/output", h.SetOutput)
			instrumentRoutes.GET("/fault", h.GetFault)
			instrumentRoutes.POST("/fault/clear", h.ClearFault)
			instrumentRoutes.GET("/interlock", h.GetInterlock)
		}
	}
}

// fail logs and writes an error response with the mapped status
func (h *InstrumentHandler) fail(c *gin.Context, message string, err error) {
	status := statusFor(err)
	logger := utils.LoggerWithRequestID(h.logger.Logger, c.GetString("request_id"))
	if status >= http.StatusInternalServerError {
		utils.LogError(logger, message, err, zap.String("instrument", c.Param("name")))
	} else {
		logger.Warn(message, zap.String("instrument", c.Param("name")), zap.Error(err))
	}
	utils.ErrorResponse(c, status, message, err)
}

// ListInstruments lists configured instruments
// @Summary List instruments
// @Description Get every configured instrument with its link status and capabilities
// @Tags Instruments
// @Produce json
// @Success 200 {object} utils.APIResponse{data=[]model.Instrument} "Instruments retrieved successfully"
// @Router /instruments [get]
func (h *InstrumentHandler) ListInstruments(c *gin.Context) {
	utils.SuccessResponse(c, http.StatusOK, "Instruments retrieved successfully",
		h.instrumentService.List(c.Request.Context()))
}

// GetInstrument retrieves one instrument
// @Summary Get instrument details
// @Tags Instruments
// @Produce json
// @Param name path string true "Instrument name"
// @Success 200 {object} utils.APIResponse{data=model.Instrument} "Instrument retrieved successfully"
// @Failure 404 {object} utils.APIResponse "Instrument not found"
// @Router /instruments/{name} [get]
func (h *InstrumentHandler) GetInstrument(c *gin.Context) {
	inst, err := h.instrumentService.Get(c.Request.Context(), c.Param("name"))
	if err != nil {
		h.fail(c, "Instrument not found", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Instrument retrieved successfully", inst)
}

// Connect opens the instrument link
// @Summary Connect instrument
// @Tags Instruments
// @Produce json
// @Param name path string true "Instrument name"
// @Success 200 {object} utils.APIResponse{data=model.Instrument} "Instrument connected"
// @Failure 404 {object} utils.APIResponse "Instrument not found"
// @Failure 500 {object} utils.APIResponse "Connection failed"
// @Router /instruments/{name}/connect [post]
func (h *InstrumentHandler) Connect(c *gin.Context) {
	name := c.Param("name")
	if err := h.instrumentService.Connect(c.Request.Context(), name); err != nil {
		h.fail(c, "Failed to connect instrument", err)
		return
	}

	inst, _ := h.instrumentService.Get(c.Request.Context(), name)
	utils.SuccessResponse(c, http.StatusOK, "Instrument connected", inst)
}

// Disconnect closes the instrument link
// @Summary Disconnect instrument
// @Tags Instruments
// @Produce json
// @Param name path string true "Instrument name"
// @Success 200 {object} utils.APIResponse{data=model.Instrument} "Instrument disconnected"
// @Failure 404 {object} utils.APIResponse "Instrument not found"
// @Router /instruments/{name}/disconnect [post]
func (h *InstrumentHandler) Disconnect(c *gin.Context) {
	name := c.Param("name")
	if err := h.instrumentService.Disconnect(c.Request.Context(), name); err != nil {
		h.fail(c, "Failed to disconnect instrument", err)
		return
	}

	inst, _ := h.instrumentService.Get(c.Request.Context(), name)
	utils.SuccessResponse(c, http.StatusOK, "Instrument disconnected", inst)
}

// GetHealth pings the instrument link
// @Summary Instrument health
// @Tags Instruments
// @Produce json
// @Param name path string true "Instrument name"
// @Success 200 {object} utils.APIResponse{data=driver.HealthMetrics} "Health retrieved"
// @Failure 404 {object} utils.APIResponse "Instrument not found"
// @Router /instruments/{name}/health [get]
func (h *InstrumentHandler) GetHealth(c *gin.Context) {
	metrics, err := h.instrumentService.Health(c.Request.Context(), c.Param("name"))
	if err != nil {
		h.fail(c, "Failed to get instrument health", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Health retrieved", metrics)
}

// Query writes a command and reads the answer
// @Summary Query instrument
// @Description Write a command and collect answer lines until a terminator or the read timeout
// @Tags Instruments
// @Accept json
// @Produce json
// @Param name path string true "Instrument name"
// @Param request body CommandRequest true "Command"
// @Success 200 {object} utils.APIResponse{data=model.Exchange} "Query completed"
// @Failure 400 {object} utils.APIResponse "Invalid request"
// @Failure 409 {object} utils.APIResponse "Instrument not connected"
// @Router /instruments/{name}/query [post]
func (h *InstrumentHandler) Query(c *gin.Context) {
	var req CommandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	exchange, err := h.instrumentService.Query(c.Request.Context(), c.Param("name"), req.Command)
	if err != nil {
		h.fail(c, "Query failed", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Query completed", exchange)
}

// Write sends a command
// @Summary Write to instrument
// @Tags Instruments
// @Accept json
// @Produce json
// @Param name path string true "Instrument name"
// @Param request body CommandRequest true "Command"
// @Success 200 {object} utils.APIResponse{data=model.Exchange} "Command written"
// @Failure 400 {object} utils.APIResponse "Invalid request"
// @Failure 409 {object} utils.APIResponse "Instrument not connected"
// @Router /instruments/{name}/write [post]
func (h *InstrumentHandler) Write(c *gin.Context) {
	var req CommandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	exchange, err := h.instrumentService.Write(c.Request.Context(), c.Param("name"), req.Command)
	if err != nil {
		h.fail(c, "Write failed", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Command written", exchange)
}

// Read collects pending answer lines
// @Summary Read from instrument
// @Tags Instruments
// @Produce json
// @Param name path string true "Instrument name"
// @Success 200 {object} utils.APIResponse{data=model.Exchange} "Read completed"
// @Failure 409 {object} utils.APIResponse "Instrument not connected"
// @Router /instruments/{name}/read [post]
func (h *InstrumentHandler) Read(c *gin.Context) {
	exchange, err := h.instrumentService.Read(c.Request.Context(), c.Param("name"))
	if err != nil {
		h.fail(c, "Read failed", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Read completed", exchange)
}

// Idn asks the instrument to identify itself
// @Summary Identify instrument
// @Tags Instruments
// @Produce json
// @Param name path string true "Instrument name"
// @Success 200 {object} utils.APIResponse{data=model.Exchange} "Identification received"
// @Failure 409 {object} utils.APIResponse "Instrument not connected"
// @Router /instruments/{name}/idn [get]
func (h *InstrumentHandler) Idn(c *gin.Context) {
	exchange, err := h.instrumentService.Idn(c.Request.Context(), c.Param("name"))
	if err != nil {
		h.fail(c, "Identification failed", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Identification received", exchange)
}

// GetPowerSetpoint reads the power setpoint
// @Summary Get power setpoint
// @Tags Instruments
// @Produce json
// @Param name path string true "Instrument name"
// @Param unit query string false "Unit to express the power in" default(W)
// @Success 200 {object} utils.APIResponse{data=units.Quantity} "Setpoint retrieved"
// @Failure 501 {object} utils.APIResponse "Capability not supported"
// @Router /instruments/{name}/power/setpoint [get]
func (h *InstrumentHandler) GetPowerSetpoint(c *gin.Context) {
	q, err := h.instrumentService.PowerSetpoint(c.Request.Context(), c.Param("name"), c.Query("unit"))
	if err != nil {
		h.fail(c, "Failed to read power setpoint", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Setpoint retrieved", q)
}

// SetPowerSetpoint changes the power setpoint
// @Summary Set power setpoint
// @Tags Instruments
// @Accept json
// @Produce json
// @Param name path string true "Instrument name"
// @Param request body PowerRequest true "Power with unit"
// @Success 200 {object} utils.APIResponse{data=units.Quantity} "Setpoint changed"
// @Failure 400 {object} utils.APIResponse "Invalid power"
// @Failure 422 {object} utils.APIResponse "Command rejected"
// @Failure 501 {object} utils.APIResponse "Capability not supported"
// @Router /instruments/{name}/power/setpoint [put]
func (h *InstrumentHandler) SetPowerSetpoint(c *gin.Context) {
	var req PowerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	power, err := units.ParseQuantity(req.Power)
	if err != nil {
		h.fail(c, "Invalid power", err)
		return
	}

	if err := h.instrumentService.SetPowerSetpoint(c.Request.Context(), c.Param("name"), power); err != nil {
		h.fail(c, "Failed to set power setpoint", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Setpoint changed", power)
}

// GetPower reads the measured output power
// @Summary Get output power
// @Tags Instruments
// @Produce json
// @Param name path string true "Instrument name"
// @Param unit query string false "Unit to express the power in" default(W)
// @Success 200 {object} utils.APIResponse{data=units.Quantity} "Power retrieved"
// @Failure 501 {object} utils.APIResponse "Capability not supported"
// @Router /instruments/{name}/power [get]
func (h *InstrumentHandler) GetPower(c *gin.Context) {
	q, err := h.instrumentService.Power(c.Request.Context(), c.Param("name"), c.Query("unit"))
	if err != nil {
		h.fail(c, "Failed to read power", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Power retrieved", q)
}

// GetOutput reports whether the output is on
// @Summary Get output state
// @Tags Instruments
// @Produce json
// @Param name path string true "Instrument name"
// @Success 200 {object} utils.APIResponse{data=object{on=bool}} "Output state retrieved"
// @Failure 501 {object} utils.APIResponse "Capability not supported"
// @Router /instruments/{name}/output [get]
func (h *InstrumentHandler) GetOutput(c *gin.Context) {
	on, err := h.instrumentService.Enabled(c.Request.Context(), c.Param("name"))
	if err != nil {
		h.fail(c, "Failed to read output state", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Output state retrieved", gin.H{"on": on})
}

// SetOutput switches the output
// @Summary Switch output
// @Tags Instruments
// @Accept json
// @Produce json
// @Param name path string true "Instrument name"
// @Param request body EnableRequest true "Output state"
// @Success 200 {object} utils.APIResponse{data=object{on=bool}} "Output switched"
// @Failure 501 {object} utils.APIResponse "Capability not supported"
// @Router /instruments/{name}/output [put]
func (h *InstrumentHandler) SetOutput(c *gin.Context) {
	var req EnableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if err := h.instrumentService.Enable(c.Request.Context(), c.Param("name"), *req.On); err != nil {
		h.fail(c, "Failed to switch output", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Output switched", gin.H{"on": *req.On})
}

// GetFault reads the fault register
// @Summary Get fault status
// @Tags Instruments
// @Produce json
// @Param name path string true "Instrument name"
// @Success 200 {object} utils.APIResponse{data=driver.FaultStatus} "Fault status retrieved"
// @Failure 501 {object} utils.APIResponse "Capability not supported"
// @Router /instruments/{name}/fault [get]
func (h *InstrumentHandler) GetFault(c *gin.Context) {
	status, err := h.instrumentService.Fault(c.Request.Context(), c.Param("name"))
	if err != nil {
		h.fail(c, "Failed to read fault status", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Fault status retrieved", status)
}

// ClearFault resets the fault register
// @Summary Clear fault
// @Tags Instruments
// @Produce json
// @Param name path string true "Instrument name"
// @Success 200 {object} utils.APIResponse "Fault cleared"
// @Failure 501 {object} utils.APIResponse "Capability not supported"
// @Router /instruments/{name}/fault/clear [post]
func (h *InstrumentHandler) ClearFault(c *gin.Context) {
	if err := h.instrumentService.ClearFault(c.Request.Context(), c.Param("name")); err != nil {
		h.fail(c, "Failed to clear fault", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Fault cleared", nil)
}

// GetInterlock reports whether the interlock is open
// @Summary Get interlock state
// @Tags Instruments
// @Produce json
// @Param name path string true "Instrument name"
// @Success 200 {object} utils.APIResponse{data=object{open=bool}} "Interlock state retrieved"
// @Failure 501 {object} utils.APIResponse "Capability not supported"
// @Router /instruments/{name}/interlock [get]
func (h *InstrumentHandler) GetInterlock(c *gin.Context) {
	open, err := h.instrumentService.InterlockOpen(c.Request.Context(), c.Param("name"))
	if err != nil {
		h.fail(c, "Failed to read interlock state", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Interlock state retrieved", gin.H{"open": open})
}
