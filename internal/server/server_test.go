package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finaki/finaki/internal/auth"
	"github.com/finaki/finaki/internal/config"
	"github.com/finaki/finaki/internal/logging"
)

const secret = "integration-secret"

func testConfig() config.Config {
	return config.Config{
		AppName:         "finaki-test",
		AppEnv:          "test",
		JWTSecret:       secret,
		DefaultTimezone: "UTC",
		IdempotencyTTL:  time.Minute,
		WriteRateLimit:  1000,
	}
}

type client struct {
	t     *testing.T
	app   *fiber.App
	token string
}

func (c *client) call(method, path, body string, headers ...string) (int, map[string]any) {
	c.t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if c.token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+c.token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := c.app.Test(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()
	out := map[string]any{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(c.t, err)
	if strings.HasPrefix(resp.Header.Get(fiber.HeaderContentType), fiber.MIMEApplicationJSON) {
		require.NoError(c.t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func TestServerEndToEnd(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { cache.Close() })

	srv, err := New(testConfig(), nil, cache, logging.Discard())
	require.NoError(t, err)
	token, err := auth.NewSigner(secret).Sign(uuid.New(), time.Hour)
	require.NoError(t, err)
	api := &client{t: t, app: srv.App(), token: token}

	status, body := api.call(http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "disabled", body["status"].(map[string]any)["postgres"])

	status, _ = api.call(http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, status)

	status, body = api.call(http.MethodPost, "/api/v1/wallets", `{"name":"Bank","balance":1000}`)
	require.Equal(t, http.StatusCreated, status, body)
	bank := body["id"].(string)
	status, body = api.call(http.MethodPost, "/api/v1/wallets", `{"name":"Cash"}`)
	require.Equal(t, http.StatusCreated, status, body)
	cash := body["id"].(string)

	payload := `{"wallet_id":"` + bank + `","amount":250,"type":"OUT","description":"rent"}`
	status, first := api.call(http.MethodPost, "/api/v1/transactions", payload, "Idempotency-Key", "rent-march")
	require.Equal(t, http.StatusCreated, status, first)
	status, replay := api.call(http.MethodPost, "/api/v1/transactions", payload, "Idempotency-Key", "rent-march")
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, first["transaction"].(map[string]any)["id"], replay["transaction"].(map[string]any)["id"])

	status, body = api.call(http.MethodPost, "/api/v1/transfers", `{"from_wallet_id":"`+bank+`","to_wallet_id":"`+cash+`","amount":100}`)
	require.Equal(t, http.StatusCreated, status, body)

	status, body = api.call(http.MethodGet, "/api/v1/wallets/"+bank, "")
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 650, body["balance"])

	status, body = api.call(http.MethodGet, "/api/v1/wallets/"+bank+"/recompute", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["consistent"])

	status, body = api.call(http.MethodGet, "/api/v1/transactions", "")
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 2, body["total"], "transfer legs stay out of listings")

	status, body = api.call(http.MethodPost, "/api/v1/transactions", `{"wallet_id":"`+cash+`","amount":101,"type":"OUT"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, status, body)

	anonymous := &client{t: t, app: srv.App()}
	status, _ = anonymous.call(http.MethodGet, "/api/v1/wallets", "")
	assert.Equal(t, http.StatusUnauthorized, status)
	status, body = anonymous.call(http.MethodGet, "/api/v1/ping", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])
}

func TestNewRequiresBackendsOutsideDev(t *testing.T) {
	cfg := testConfig()
	cfg.AppEnv = "production"
	_, err := New(cfg, nil, nil, logging.Discard())
	assert.Error(t, err)
}
