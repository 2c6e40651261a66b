package observability

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthChecker_Liveness(t *testing.T) {
	h := NewHealthChecker("1.2.3", nil, nil)
	rec := httptest.NewRecorder()
	h.Liveness(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	var status HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, StatusHealthy, status.Status)
	assert.Equal(t, "1.2.3", status.Version)
}

func TestHealthChecker_Readiness(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	h := NewHealthChecker("dev", db, rdb)
	router := mux.NewRouter()
	h.RegisterRoutes(router)

	t.Run("healthy", func(t *testing.T) {
		mock.ExpectPing()
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		var status HealthStatus
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
		assert.Equal(t, StatusHealthy, status.Status)
		assert.Contains(t, status.Dependencies, "database")
		assert.Contains(t, status.Dependencies, "redis")
	})

	t.Run("redis down degrades", func(t *testing.T) {
		mock.ExpectPing()
		mr.SetError("ERR redis unavailable")
		defer mr.SetError("")

		status := h.Check(httptest.NewRequest(http.MethodGet, "/", nil).Context())
		assert.Equal(t, StatusDegraded, status.Status)
	})

	t.Run("database down is unavailable", func(t *testing.T) {
		mock.ExpectPing().WillReturnError(errors.New("connection refused"))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}
