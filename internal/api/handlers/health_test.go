package handlers

import (
	"net/http"
	"testing"

	"email-marketing-backend/internal/testutils"

	"github.com/stretchr/testify/assert"
)

func TestHealthHandler(t *testing.T) {
	db := testutils.NewSQLiteDB(t)
	handler := NewHealthHandler(db, "1.2.3")
	httpSuite := testutils.SetupHTTPTest()
	httpSuite.Router.GET("/health", handler.Health)
	httpSuite.Router.GET("/health/ready", handler.Ready)
	httpSuite.Router.GET("/health/live", handler.Live)
	httpSuite.Router.GET("/api/healthz", handler.APIHealth)

	t.Run("health", func(t *testing.T) {
		var response HealthResponse
		testutils.AssertJSONResponse(t, httpSuite.MakeRequest(http.MethodGet, "/health", nil), http.StatusOK, &response)
		assert.Equal(t, "healthy", response.Status)
		assert.Equal(t, "healthy", response.Services["database"])
		assert.Equal(t, "1.2.3", response.Version)
	})

	t.Run("ready", func(t *testing.T) {
		assert.Equal(t, http.StatusOK, httpSuite.MakeRequest(http.MethodGet, "/health/ready", nil).Code)
	})

	t.Run("live", func(t *testing.T) {
		assert.Equal(t, http.StatusOK, httpSuite.MakeRequest(http.MethodGet, "/health/live", nil).Code)
	})

	t.Run("api healthz", func(t *testing.T) {
		var response APIHealthResponse
		testutils.AssertJSONResponse(t, httpSuite.MakeRequest(http.MethodGet, "/api/healthz", nil), http.StatusOK, &response)
		assert.Equal(t, "ok", response.Status)
		assert.Equal(t, ServiceName, response.Service)
	})

	t.Run("unhealthy database", func(t *testing.T) {
		sqlDB, err := db.DB()
		assert.NoError(t, err)
		assert.NoError(t, sqlDB.Close())

		recorder := httpSuite.MakeRequest(http.MethodGet, "/health", nil)
		assert.Equal(t, http.StatusServiceUnavailable, recorder.Code)
	})
}
