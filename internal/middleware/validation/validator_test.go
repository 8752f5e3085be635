package validation_test

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/reviq/backend/internal/middleware/validation"
)

func newApp(cfg validation.Config) *fiber.App {
	app := fiber.New()
	app.Use(validation.Middleware(cfg))
	app.All("/x", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })
	return app
}

func TestMiddleware_ContentType(t *testing.T) {
	app := newApp(validation.Config{})

	tests := []struct {
		name        string
		method      string
		contentType string
		body        string
		want        int
	}{
		{"json accepted", "POST", "application/json", `{}`, fiber.StatusOK},
		{"multipart accepted", "POST", "multipart/form-data; boundary=x", "--x\r\nContent-Disposition: form-data; name=\"f\"\r\n\r\ndata\r\n--x--\r\n", fiber.StatusOK},
		{"xml rejected", "POST", "application/xml", "<x/>", fiber.StatusUnsupportedMediaType},
		{"get passes untyped", "GET", "", "", fiber.StatusOK},
		{"empty post passes untyped", "POST", "", "", fiber.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/x", strings.NewReader(tt.body))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			resp.Body.Close()
			require.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestMiddleware_BodySize(t *testing.T) {
	app := newApp(validation.Config{MaxBodySize: 8})

	req := httptest.NewRequest("POST", "/x", strings.NewReader(`{"k": "way too large"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, fiber.StatusRequestEntityTooLarge, resp.StatusCode)
}
