package wallet

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finaki/finaki/internal/apierr"
	"github.com/finaki/finaki/internal/auth"
	"github.com/finaki/finaki/internal/ledger"
	"github.com/finaki/finaki/internal/logging"
	"github.com/finaki/finaki/internal/middleware"
)

type testAPI struct {
	app    *fiber.App
	signer *auth.Signer
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	logger := logging.Discard()
	signer := auth.NewSigner("test-secret")
	h := NewHandler(NewService(ledger.NewEngine(ledger.NewMemoryStore()), logger))

	app := fiber.New(fiber.Config{ErrorHandler: apierr.Handler(logger)})
	r := app.Group("/wallets", middleware.JWTAuth(signer))
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/:walletId", h.Get)
	r.Patch("/:walletId", h.Update)
	r.Delete("/:walletId", h.Delete)
	r.Get("/:walletId/history", h.History)
	r.Get("/:walletId/recompute", h.Recompute)
	return &testAPI{app: app, signer: signer}
}

func (a *testAPI) do(t *testing.T, owner uuid.UUID, method, path, body string) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if owner != uuid.Nil {
		token, err := a.signer.Sign(owner, time.Hour)
		require.NoError(t, err)
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	resp, err := a.app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	out := map[string]any{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func TestWalletLifecycle(t *testing.T) {
	api := newTestAPI(t)
	owner := uuid.New()

	status, body := api.do(t, owner, http.MethodPost, "/wallets", `{"name":"Cash","color":"green","balance":1000}`)
	require.Equal(t, http.StatusCreated, status, body)
	assert.EqualValues(t, 1000, body["balance"])
	assert.Len(t, body["transaction_ids"], 1)
	id := body["id"].(string)

	status, body = api.do(t, owner, http.MethodPatch, "/wallets/"+id, `{"name":"Pocket","is_credit":true}`)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "Pocket", body["name"])
	assert.Equal(t, "green", body["color"])
	assert.Equal(t, true, body["is_credit"])
	assert.EqualValues(t, 1000, body["balance"])

	status, body = api.do(t, owner, http.MethodGet, "/wallets/"+id+"/history", "")
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["history"], 1)

	status, body = api.do(t, owner, http.MethodGet, "/wallets/"+id+"/recompute", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["consistent"])
	assert.EqualValues(t, 1000, body["computed"])

	status, body = api.do(t, owner, http.MethodGet, "/wallets", "")
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["wallets"], 1)

	status, body = api.do(t, owner, http.MethodDelete, "/wallets/"+id+"?deleteTransactions=true", "")
	require.Equal(t, http.StatusOK, status, body)
	assert.EqualValues(t, 1, body["deleted_transactions"])

	status, _ = api.do(t, owner, http.MethodGet, "/wallets/"+id, "")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestWalletCreateValidation(t *testing.T) {
	api := newTestAPI(t)
	owner := uuid.New()

	status, body := api.do(t, owner, http.MethodPost, "/wallets", `{"color":"red"}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "validation failed", body["error"])

	status, _ = api.do(t, owner, http.MethodPost, "/wallets", `{"name":"Cash","balance":10.5}`)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = api.do(t, owner, http.MethodPost, "/wallets", `{"name":"Cash","balance":-3}`)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = api.do(t, owner, http.MethodPost, "/wallets", `{"name":`)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestWalletAccessIsOwnerScoped(t *testing.T) {
	api := newTestAPI(t)
	owner, stranger := uuid.New(), uuid.New()

	status, body := api.do(t, owner, http.MethodPost, "/wallets", `{"name":"Cash"}`)
	require.Equal(t, http.StatusCreated, status)
	id := body["id"].(string)

	status, _ = api.do(t, stranger, http.MethodGet, "/wallets/"+id, "")
	assert.Equal(t, http.StatusNotFound, status)
	status, _ = api.do(t, stranger, http.MethodDelete, "/wallets/"+id, "")
	assert.Equal(t, http.StatusNotFound, status)
	status, _ = api.do(t, uuid.Nil, http.MethodGet, "/wallets/"+id, "")
	assert.Equal(t, http.StatusUnauthorized, status)
	status, _ = api.do(t, owner, http.MethodGet, "/wallets/not-an-id", "")
	assert.Equal(t, http.StatusBadRequest, status)
}
