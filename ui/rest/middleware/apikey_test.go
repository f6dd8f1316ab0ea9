package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func credentialsOf(t *testing.T, target, contentType, body string, headers map[string]string) credentials {
	t.Helper()
	var got credentials
	app := fiber.New()
	app.Post("/", func(c *fiber.Ctx) error {
		got = requestCredentials(c)
		return c.SendStatus(fiber.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	return got
}

func TestRequestCredentials_FormBody(t *testing.T) {
	got := credentialsOf(t, "/", fiber.MIMEApplicationForm, "api_key=key-c1&client=c1&to=123", nil)
	assert.Equal(t, "key-c1", got.APIKey)
	assert.Equal(t, "c1", got.Client)
}

func TestRequestCredentials_JSONBody(t *testing.T) {
	got := credentialsOf(t, "/", fiber.MIMEApplicationJSON, `{"api_key":"key-c1","client":"c1"}`, nil)
	assert.Equal(t, "key-c1", got.APIKey)
	assert.Equal(t, "c1", got.Client)
}

func TestRequestCredentials_Precedence(t *testing.T) {
	got := credentialsOf(t, "/?api_key=from-query", fiber.MIMEApplicationJSON,
		`{"api_key":"from-body","client":"c2"}`, map[string]string{"x-api-key": "from-header"})
	assert.Equal(t, "from-query", got.APIKey)
	assert.Equal(t, "c2", got.Client)

	got = credentialsOf(t, "/?client=c3", fiber.MIMEApplicationJSON,
		`{"api_key":"from-body","client":"c2"}`, map[string]string{"x-api-key": "from-header"})
	assert.Equal(t, "from-header", got.APIKey)
	assert.Equal(t, "c3", got.Client)
}

func TestRequestCredentials_UnparsableBodyIsIgnored(t *testing.T) {
	got := credentialsOf(t, "/", "text/plain", "api_key=nope", map[string]string{"x-api-key": "key-c1"})
	assert.Equal(t, "key-c1", got.APIKey)
	assert.Empty(t, got.Client)
}
