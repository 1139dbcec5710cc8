package transactions

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/finaki/finaki/internal/ledger"
)

type createRequest struct {
	WalletID    *string          `json:"wallet_id" validate:"omitempty,uuid"`
	Amount      *decimal.Decimal `json:"amount" validate:"required"`
	Type        string           `json:"type" validate:"required,oneof=IN OUT in out"`
	Description string           `json:"description" validate:"max=255"`
	Category    string           `json:"category" validate:"max=64"`
	Note        string           `json:"note" validate:"max=1000"`
}

type updateRequest struct {
	Amount      *decimal.Decimal `json:"amount"`
	Type        *string          `json:"type" validate:"omitempty,oneof=IN OUT in out"`
	Description *string          `json:"description" validate:"omitempty,max=255"`
	Category    *string          `json:"category" validate:"omitempty,max=64"`
	Note        *string          `json:"note" validate:"omitempty,max=1000"`
}

// Response is the JSON shape of a transaction.
type Response struct {
	ID                   uuid.UUID     `json:"id"`
	WalletID             uuid.NullUUID `json:"wallet_id"`
	TransferID           uuid.NullUUID `json:"transfer_id"`
	Amount               int64         `json:"amount"`
	Type                 string        `json:"type"`
	Description          string        `json:"description"`
	Category             string        `json:"category"`
	Note                 string        `json:"note"`
	IncludeInCalculation bool          `json:"include_in_calculation"`
	CreatedAt            time.Time     `json:"created_at"`
}

// NewResponse renders t.
func NewResponse(t ledger.Transaction) Response {
	return Response{
		ID:                   t.ID,
		WalletID:             t.WalletID,
		TransferID:           t.TransferID,
		Amount:               int64(t.Amount),
		Type:                 string(t.Type),
		Description:          t.Description,
		Category:             t.Category,
		Note:                 t.Note,
		IncludeInCalculation: t.IncludeInCalculation,
		CreatedAt:            t.CreatedAt,
	}
}

type walletBalance struct {
	ID      uuid.UUID `json:"id"`
	Balance int64     `json:"balance"`
}

type postingResponse struct {
	Transaction Response       `json:"transaction"`
	Wallet      *walletBalance `json:"wallet,omitempty"`
}

func newPostingResponse(p ledger.Posting) postingResponse {
	out := postingResponse{Transaction: NewResponse(p.Transaction)}
	if p.Wallet != nil {
		out.Wallet = &walletBalance{ID: p.Wallet.ID, Balance: int64(p.Wallet.Balance)}
	}
	return out
}

type bucketEntry struct {
	Response
	Time string `json:"time"`
}

type dayBucket struct {
	Day          string        `json:"day"`
	Timestamp    time.Time     `json:"timestamp"`
	Transactions []bucketEntry `json:"transactions"`
}

type walletSummary struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Color    string    `json:"color"`
	IsCredit bool      `json:"is_credit"`
}

type monthlyEntry struct {
	Response
	Wallet *walletSummary `json:"wallet"`
}

type periodTotal struct {
	Day         string    `json:"day"`
	Timestamp   time.Time `json:"timestamp"`
	In          int64     `json:"in"`
	Out         int64     `json:"out"`
	TotalAmount int64     `json:"total_amount"`
}
