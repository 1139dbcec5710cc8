package payments

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/finaki/finaki/internal/apierr"
	"github.com/finaki/finaki/internal/ledger"
	"github.com/finaki/finaki/internal/middleware"
	"github.com/finaki/finaki/internal/transactions"
	"github.com/finaki/finaki/internal/wallet"
)

// Handler exposes payment endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a payment handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type transferRequest struct {
	FromWalletID string           `json:"from_wallet_id" validate:"required,uuid"`
	ToWalletID   string           `json:"to_wallet_id" validate:"required,uuid,nefield=FromWalletID"`
	Amount       *decimal.Decimal `json:"amount" validate:"required"`
	Note         string           `json:"note" validate:"max=1000"`
}

type transferResponse struct {
	TransferID uuid.UUID             `json:"transfer_id"`
	Out        transactions.Response `json:"out"`
	In         transactions.Response `json:"in"`
	From       wallet.Response       `json:"from"`
	To         wallet.Response       `json:"to"`
}

// Transfer moves funds between two of the caller's wallets.
func (h *Handler) Transfer(c *fiber.Ctx) error {
	ownerID, err := middleware.UserID(c)
	if err != nil {
		return err
	}
	var req transferRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}
	if err := apierr.Validate(req); err != nil {
		return err
	}
	amount, err := apierr.Amount("amount", req.Amount)
	if err != nil {
		return err
	}

	res, err := h.service.Transfer(c.UserContext(), ledger.TransferInput{
		OwnerID:      ownerID,
		FromWalletID: uuid.MustParse(req.FromWalletID),
		ToWalletID:   uuid.MustParse(req.ToWalletID),
		Amount:       amount,
		Note:         req.Note,
	})
	if err != nil {
		return err
	}

	return c.Status(http.StatusCreated).JSON(transferResponse{
		TransferID: res.TransferID,
		Out:        transactions.NewResponse(res.Out),
		In:         transactions.NewResponse(res.In),
		From:       wallet.NewResponse(res.From),
		To:         wallet.NewResponse(res.To),
	})
}
