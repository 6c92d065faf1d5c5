package middleware

import (
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/seu-repo/mirror-voice/pkg/config"
)

func newApp() *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(zap.NewNop())})
	app.Use(RequestID())
	return app
}

func TestErrorHandler_FiberError(t *testing.T) {
	app := newApp()
	app.Get("/missing", func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusNotFound, "no such route")
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/missing", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "no such route", body["error"])
}

func TestErrorHandler_HidesInternalErrors(t *testing.T) {
	app := newApp()
	app.Get("/boom", func(c *fiber.Ctx) error {
		return errors.New("dial tcp 10.0.0.3:6379: connection refused")
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/boom", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "Internal Server Error", body["error"])
}

func TestRequestID(t *testing.T) {
	app := newApp()
	app.Get("/id", func(c *fiber.Ctx) error {
		return c.SendString(RequestIDFrom(c))
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/id", nil))
	require.NoError(t, err)
	generated := resp.Header.Get(fiber.HeaderXRequestID)
	assert.Len(t, generated, 36)

	req := httptest.NewRequest("GET", "/id", nil)
	req.Header.Set(fiber.HeaderXRequestID, "abc-123")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, "abc-123", resp.Header.Get(fiber.HeaderXRequestID))
}

func TestNewCORS_Defaults(t *testing.T) {
	app := fiber.New()
	app.Use(NewCORS(config.CORSConfig{Credentials: true}))
	app.Get("/status", func(c *fiber.Ctx) error { return c.SendString("ok") })

	req := httptest.NewRequest("GET", "/status", nil)
	req.Header.Set("Origin", "http://mirror.local")
	resp, err := app.Test(req)
	require.NoError(t, err)

	assert.Equal(t, "*", resp.Header.Get(fiber.HeaderAccessControlAllowOrigin))
}

func TestNewCORS_Preflight(t *testing.T) {
	app := fiber.New()
	app.Use(NewCORS(config.CORSConfig{AllowedOrigins: []string{"http://mirror.local"}}))
	app.Post("/process", func(c *fiber.Ctx) error { return c.SendString("ok") })

	req := httptest.NewRequest("OPTIONS", "/process", nil)
	req.Header.Set("Origin", "http://mirror.local")
	req.Header.Set(fiber.HeaderAccessControlRequestMethod, "POST")
	resp, err := app.Test(req)
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "http://mirror.local", resp.Header.Get(fiber.HeaderAccessControlAllowOrigin))
	assert.Contains(t, resp.Header.Get(fiber.HeaderAccessControlAllowMethods), "POST")
}
