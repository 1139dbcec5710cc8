package payments

import (
	"context"
	"encoding/json"
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

func TestTransferHandler(t *testing.T) {
	engine, svc, _ := setup(t)
	signer := auth.NewSigner("test-secret")
	app := fiber.New(fiber.Config{ErrorHandler: apierr.Handler(logging.Discard())})
	app.Post("/transfers", middleware.JWTAuth(signer), NewHandler(svc).Transfer)

	ctx := context.Background()
	owner := uuid.New()
	from, err := engine.CreateWallet(ctx, ledger.NewWallet{OwnerID: owner, Name: "Bank", Balance: 300})
	require.NoError(t, err)
	to, err := engine.CreateWallet(ctx, ledger.NewWallet{OwnerID: owner, Name: "Cash"})
	require.NoError(t, err)
	token, err := signer.Sign(owner, time.Hour)
	require.NoError(t, err)

	send := func(body string) (int, map[string]any) {
		req := httptest.NewRequest(http.MethodPost, "/transfers", strings.NewReader(body))
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
		resp, err := app.Test(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		out := map[string]any{}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		return resp.StatusCode, out
	}

	status, body := send(`{"from_wallet_id":"` + from.ID.String() + `","to_wallet_id":"` + to.ID.String() + `","amount":120,"note":"pocket money"}`)
	require.Equal(t, http.StatusCreated, status, body)
	assert.EqualValues(t, 180, body["from"].(map[string]any)["balance"])
	assert.EqualValues(t, 120, body["to"].(map[string]any)["balance"])
	assert.Equal(t, body["transfer_id"], body["out"].(map[string]any)["transfer_id"])
	assert.Equal(t, "pocket money", body["in"].(map[string]any)["note"])

	status, _ = send(`{"from_wallet_id":"` + from.ID.String() + `","to_wallet_id":"` + to.ID.String() + `","amount":181}`)
	assert.Equal(t, http.StatusUnprocessableEntity, status)

	status, body = send(`{"from_wallet_id":"` + from.ID.String() + `","to_wallet_id":"` + from.ID.String() + `","amount":1}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "validation failed", body["error"])

	status, _ = send(`{"from_wallet_id":"` + from.ID.String() + `","to_wallet_id":"` + to.ID.String() + `","amount":0}`)
	assert.Equal(t, http.StatusBadRequest, status)
}
