package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"instrument-service/internal/config"
	internalDriver "instrument-service/internal/driver"
	"instrument-service/internal/middleware"
	"instrument-service/internal/model"
	"instrument-service/internal/protocol"
	"instrument-service/internal/repository"
	"instrument-service/internal/service"
	"instrument-service/internal/units"
	"instrument-service/pkg/driver"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type nopPublisher struct{}

func (nopPublisher) Publish(*model.InstrumentEvent) {}

type apiResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newTestService(t *testing.T) *service.InstrumentService {
	t.Helper()

	cfg := &config.Config{
		Monitor: config.MonitorConfig{OperationTimeout: 5 * time.Second},
		Instruments: []model.InstrumentDefinition{
			{
				Name:           "uno",
				Kind:           internalDriver.KindArduino,
				ConnectionType: model.ConnectionTypeSerial,
				Settings:       model.JSONObject{"dummy": true, "read_timeout": "200ms"},
			},
			{
				Name:           "laser",
				Kind:           internalDriver.KindCobolt08NLD,
				ConnectionType: model.ConnectionTypeSerial,
				Settings:       model.JSONObject{"dummy": true, "max_power": "100mW"},
			},
		},
	}

	logger := zap.NewNop()
	converter := units.NewConverter()
	registry := internalDriver.NewRegistry(converter, logger)
	internalDriver.RegisterDefaultDrivers(registry, logger)

	exchanges := service.NewExchangeService(repository.NewMemoryRepository(100, logger), nopPublisher{}, logger)
	is, err := service.NewInstrumentService(cfg, registry, converter, exchanges, nopPublisher{}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = is.Shutdown(context.Background()) })
	return is
}

func newTestRouter(t *testing.T) (*gin.Engine, *service.InstrumentService) {
	t.Helper()

	is := newTestService(t)
	logger := zap.NewNop()

	router := gin.New()
	router.Use(middleware.RequestIDMiddleware())
	api := router.Group("/api/v1")
	NewInstrumentHandler(is, logger).RegisterRoutes(api)
	NewUnitsHandler(units.NewConverter(), logger).RegisterRoutes(api)
	return router, is
}

func do(t *testing.T, router http.Handler, method, path string, body interface{}) (*httptest.ResponseRecorder, apiResponse) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var resp apiResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return w, resp
}

func TestInstrumentHandler_List(t *testing.T) {
	router, _ := newTestRouter(t)

	w, resp := do(t, router, http.MethodGet, "/api/v1/instruments", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var list []model.Instrument
	require.NoError(t, json.Unmarshal(resp.Data, &list))
	require.Len(t, list, 2)
	assert.Equal(t, "laser", list[0].Name)
	assert.Equal(t, "uno", list[1].Name)
}

func TestInstrumentHandler_UnknownInstrument(t *testing.T) {
	router, _ := newTestRouter(t)

	w, resp := do(t, router, http.MethodGet, "/api/v1/instruments/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.False(t, resp.Success)
}

func TestInstrumentHandler_QueryBeforeConnect(t *testing.T) {
	router, _ := newTestRouter(t)

	w, _ := do(t, router, http.MethodPost, "/api/v1/instruments/uno/query", CommandRequest{Command: "hello"})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestInstrumentHandler_ConnectAndQuery(t *testing.T) {
	router, _ := newTestRouter(t)

	w, _ := do(t, router, http.MethodPost, "/api/v1/instruments/uno/connect", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, resp := do(t, router, http.MethodPost, "/api/v1/instruments/uno/query", CommandRequest{Command: "hello"})
	require.Equal(t, http.StatusOK, w.Code)

	var exchange model.Exchange
	require.NoError(t, json.Unmarshal(resp.Data, &exchange))
	assert.Equal(t, model.ExchangeKindQuery, exchange.Kind)
	assert.Equal(t, []string{protocol.DefaultDummyAnswer}, exchange.ResponseLines)
	assert.True(t, exchange.Terminated)
}

func TestInstrumentHandler_QueryMissingCommand(t *testing.T) {
	router, _ := newTestRouter(t)

	w, _ := do(t, router, http.MethodPost, "/api/v1/instruments/uno/query", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestInstrumentHandler_PowerSetpoint(t *testing.T) {
	router, _ := newTestRouter(t)

	w, _ := do(t, router, http.MethodPost, "/api/v1/instruments/laser/connect", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = do(t, router, http.MethodPut, "/api/v1/instruments/laser/power/setpoint", PowerRequest{Power: "25 mW"})
	require.Equal(t, http.StatusOK, w.Code)

	w, resp := do(t, router, http.MethodGet, "/api/v1/instruments/laser/power/setpoint?unit=mW", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var q units.Quantity
	require.NoError(t, json.Unmarshal(resp.Data, &q))
	assert.InDelta(t, 25.0, q.Float(), 1e-9)
	assert.Equal(t, "mW", q.Unit)
}

func TestInstrumentHandler_CapabilityNotSupported(t *testing.T) {
	router, _ := newTestRouter(t)

	w, _ := do(t, router, http.MethodPost, "/api/v1/instruments/uno/connect", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = do(t, router, http.MethodGet, "/api/v1/instruments/uno/power/setpoint", nil)
	assert.Equal(t, http.StatusNotImplemented, w.Code)
}

func TestInstrumentHandler_FaultAndInterlock(t *testing.T) {
	router, _ := newTestRouter(t)

	w, _ := do(t, router, http.MethodPost, "/api/v1/instruments/laser/connect", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, resp := do(t, router, http.MethodGet, "/api/v1/instruments/laser/fault", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var status driver.FaultStatus
	require.NoError(t, json.Unmarshal(resp.Data, &status))
	assert.Equal(t, "no fault", status.Description)
	assert.False(t, status.Active)

	w, _ = do(t, router, http.MethodPost, "/api/v1/instruments/laser/fault/clear", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, resp = do(t, router, http.MethodGet, "/api/v1/instruments/laser/interlock", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"open":false}`, string(resp.Data))

	w, _ = do(t, router, http.MethodGet, "/api/v1/instruments/uno/fault", nil)
	assert.Equal(t, http.StatusNotImplemented, w.Code)
}

func TestUnitsHandler_Convert(t *testing.T) {
	router, _ := newTestRouter(t)

	w, resp := do(t, router, http.MethodPost, "/api/v1/units/convert", ConvertRequest{Quantity: "115 mW", To: "W"})
	require.Equal(t, http.StatusOK, w.Code)

	var q units.Quantity
	require.NoError(t, json.Unmarshal(resp.Data, &q))
	assert.InDelta(t, 0.115, q.Float(), 1e-9)
	assert.Equal(t, "W", q.Unit)
}

func TestUnitsHandler_Incompatible(t *testing.T) {
	router, _ := newTestRouter(t)

	w, _ := do(t, router, http.MethodPost, "/api/v1/units/convert", ConvertRequest{Quantity: "115 mW", To: "V"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
