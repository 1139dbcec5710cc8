package wallet

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/finaki/finaki/internal/apierr"
	"github.com/finaki/finaki/internal/ledger"
	"github.com/finaki/finaki/internal/middleware"
)

// Handler exposes wallet HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a wallet HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Create opens a wallet for the authenticated owner.
func (h *Handler) Create(c *fiber.Ctx) error {
	ownerID, err := middleware.UserID(c)
	if err != nil {
		return err
	}
	var req createRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}
	if err := apierr.Validate(req); err != nil {
		return err
	}
	balance, err := apierr.Amount("balance", req.Balance)
	if err != nil {
		return err
	}

	w, err := h.service.Create(c.UserContext(), ledger.NewWallet{
		OwnerID:  ownerID,
		Name:     req.Name,
		Color:    ledger.Color(req.Color),
		Balance:  balance,
		IsCredit: req.IsCredit,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(NewResponse(w))
}

// List returns the owner's wallets.
func (h *Handler) List(c *fiber.Ctx) error {
	ownerID, err := middleware.UserID(c)
	if err != nil {
		return err
	}
	wallets, err := h.service.List(c.UserContext(), ownerID)
	if err != nil {
		return err
	}
	out := make([]Response, 0, len(wallets))
	for _, w := range wallets {
		out = append(out, NewResponse(w))
	}
	return c.JSON(fiber.Map{"wallets": out})
}

// Get returns a single wallet.
func (h *Handler) Get(c *fiber.Ctx) error {
	ownerID, id, err := walletParams(c)
	if err != nil {
		return err
	}
	w, err := h.service.Get(c.UserContext(), ownerID, id)
	if err != nil {
		return err
	}
	return c.JSON(NewResponse(w))
}

// Update patches wallet metadata.
func (h *Handler) Update(c *fiber.Ctx) error {
	ownerID, id, err := walletParams(c)
	if err != nil {
		return err
	}
	var req updateRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}
	if err := apierr.Validate(req); err != nil {
		return err
	}
	patch := ledger.WalletPatch{Name: req.Name, IsCredit: req.IsCredit}
	if req.Color != nil {
		color := ledger.Color(*req.Color)
		patch.Color = &color
	}

	w, err := h.service.Update(c.UserContext(), ownerID, id, patch)
	if err != nil {
		return err
	}
	return c.JSON(NewResponse(w))
}

// Delete removes a wallet. ?deleteTransactions=true deletes its transactions
// too, otherwise they are kept without a wallet.
func (h *Handler) Delete(c *fiber.Ctx) error {
	ownerID, id, err := walletParams(c)
	if err != nil {
		return err
	}
	res, err := h.service.Delete(c.UserContext(), ownerID, id, c.QueryBool("deleteTransactions", false))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"wallet":                NewResponse(res.Wallet),
		"deleted_transactions":  res.Deleted,
		"detached_transactions": res.Detached,
	})
}

// History returns the balance after each of the wallet's transactions.
func (h *Handler) History(c *fiber.Ctx) error {
	ownerID, id, err := walletParams(c)
	if err != nil {
		return err
	}
	points, err := h.service.History(c.UserContext(), ownerID, id)
	if err != nil {
		return err
	}
	out := make([]historyPoint, 0, len(points))
	for _, p := range points {
		out = append(out, historyPoint{TransactionID: p.TransactionID, Timestamp: p.Timestamp, Value: int64(p.Value)})
	}
	return c.JSON(fiber.Map{"wallet_id": id, "history": out})
}

// Recompute compares the stored balance with the one implied by the log.
func (h *Handler) Recompute(c *fiber.Ctx) error {
	ownerID, id, err := walletParams(c)
	if err != nil {
		return err
	}
	w, computed, err := h.service.Recompute(c.UserContext(), ownerID, id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"wallet_id":  id,
		"stored":     int64(w.Balance),
		"computed":   int64(computed),
		"consistent": w.Balance == computed,
	})
}

func walletParams(c *fiber.Ctx) (uuid.UUID, uuid.UUID, error) {
	ownerID, err := middleware.UserID(c)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	id, err := uuid.Parse(c.Params("walletId"))
	if err != nil {
		return uuid.Nil, uuid.Nil, fiber.NewError(http.StatusBadRequest, "invalid wallet id")
	}
	return ownerID, id, nil
}
