package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"inkwell/internal/config"
	"inkwell/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// setupMockDB creates a GORM *gorm.DB backed by sqlmock for unit tests.
func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	// gorm pings on open.
	mock.ExpectPing()
	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: db}), &gorm.Config{})
	require.NoError(t, err)
	return gormDB, mock
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{models.NewValidationError("x"), fiber.StatusBadRequest},
		{models.NewUnauthorizedError("x"), fiber.StatusUnauthorized},
		{models.NewPermissionError("x"), fiber.StatusForbidden},
		{models.NewNotFoundError("Post", 1), fiber.StatusNotFound},
		{models.NewConflictError("username", nil), fiber.StatusConflict},
		{models.NewUpstreamError("identity provider", nil), fiber.StatusBadGateway},
		{models.NewPartialFailureError([]uint{1}, nil), fiber.StatusInternalServerError},
		{models.NewConsistencyDriftError("notify", nil), fiber.StatusInternalServerError},
		{errors.New("plain"), fiber.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}

func TestHumanizeParam(t *testing.T) {
	assert.Equal(t, "ID", humanizeParam("id"))
	assert.Equal(t, "post id", humanizeParam("post_id"))
}

func TestPageParams_Clamps(t *testing.T) {
	app := fiber.New()
	app.Get("/items", func(c *fiber.Ctx) error {
		page, deleted := pageParams(c)
		return c.JSON(fiber.Map{"page": page, "deleted": deleted})
	})

	tests := []struct {
		query       string
		page, delet int
	}{
		{"", 1, 0},
		{"?page=3&deleted_doc_count=2", 3, 2},
		{"?page=-1&deleted_doc_count=-4", 1, 0},
		{"?page=abc", 1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/items"+tt.query, nil))
			require.NoError(t, err)
			defer func() { _ = resp.Body.Close() }()

			var got map[string]int
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
			assert.Equal(t, tt.page, got["page"])
			assert.Equal(t, tt.delet, got["deleted"])
		})
	}
}

func TestOptionalAuth_RejectsBadToken(t *testing.T) {
	ts := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/posts/some-slug", nil)
	req.Header.Set("Authorization", "Bearer garbage")

	resp, err := ts.app.Test(req, -1)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestReadinessCheck(t *testing.T) {
	t.Run("healthy database without redis is degraded", func(t *testing.T) {
		db, mock := setupMockDB(t)
		mock.ExpectPing()

		srv := &Server{config: &config.Config{}, db: db}
		app := fiber.New()
		app.Get("/health/ready", srv.ReadinessCheck)

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health/ready", nil), -1)
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "degraded", body["status"])
	})

	t.Run("database down", func(t *testing.T) {
		db, mock := setupMockDB(t)
		mock.ExpectPing().WillReturnError(errors.New("connection refused"))

		srv := &Server{config: &config.Config{}, db: db}
		app := fiber.New()
		app.Get("/health/ready", srv.ReadinessCheck)

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health/ready", nil), -1)
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	})
}
