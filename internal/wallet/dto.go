package wallet

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/finaki/finaki/internal/ledger"
)

type createRequest struct {
	Name     string           `json:"name" validate:"required,max=100"`
	Color    string           `json:"color" validate:"max=32"`
	Balance  *decimal.Decimal `json:"balance"`
	IsCredit bool             `json:"is_credit"`
}

type updateRequest struct {
	Name     *string `json:"name" validate:"omitempty,min=1,max=100"`
	Color    *string `json:"color" validate:"omitempty,max=32"`
	IsCredit *bool   `json:"is_credit"`
}

// Response is the JSON shape of a wallet.
type Response struct {
	ID             uuid.UUID   `json:"id"`
	Name           string      `json:"name"`
	Color          string      `json:"color"`
	Balance        int64       `json:"balance"`
	IsCredit       bool        `json:"is_credit"`
	TransactionIDs []uuid.UUID `json:"transaction_ids"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// NewResponse renders w.
func NewResponse(w ledger.Wallet) Response {
	ids := w.TransactionIDs
	if ids == nil {
		ids = []uuid.UUID{}
	}
	return Response{
		ID:             w.ID,
		Name:           w.Name,
		Color:          string(w.Color),
		Balance:        int64(w.Balance),
		IsCredit:       w.IsCredit,
		TransactionIDs: ids,
		CreatedAt:      w.CreatedAt,
		UpdatedAt:      w.UpdatedAt,
	}
}

type historyPoint struct {
	TransactionID uuid.UUID `json:"transaction_id"`
	Timestamp     time.Time `json:"timestamp"`
	Value         int64     `json:"value"`
}
