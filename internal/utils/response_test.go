package utils

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"instrument-service/internal/controller"
	"instrument-service/internal/instrument"
	"instrument-service/internal/repository"
	"instrument-service/internal/units"
)

func TestStatusForError(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{nil, http.StatusOK},
		{fmt.Errorf("x: %w", repository.ErrNotFound), http.StatusNotFound},
		{controller.ErrNotInitialized, http.StatusConflict},
		{fmt.Errorf("set: %w", units.ErrIncompatible), http.StatusBadRequest},
		{instrument.ErrRejected, http.StatusUnprocessableEntity},
		{instrument.ErrUnexpectedResponse, http.StatusBadGateway},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.status, StatusForError(tt.err), "%v", tt.err)
	}
}

func TestErrorResponse(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Set("request_id", "req-1")

	ErrorResponse(c, http.StatusGatewayTimeout, "Query failed", instrument.ErrNoResponse)

	assert.Equal(t, http.StatusGatewayTimeout, w.Code)

	var body APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.False(t, body.Success)
	assert.Equal(t, "req-1", body.RequestID)
	require.NotNil(t, body.Error)
	assert.Equal(t, "INSTRUMENT_TIMEOUT", body.Error.Code)
	assert.Equal(t, instrument.ErrNoResponse.Error(), body.Error.Details)
}
