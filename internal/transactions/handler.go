package transactions

import (
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/finaki/finaki/internal/apierr"
	"github.com/finaki/finaki/internal/ledger"
	"github.com/finaki/finaki/internal/middleware"
)

const (
	defaultPageSize   = 20
	defaultRecentSize = 5
	maxPageSize       = 100
)

var intervalPresets = map[string]int{
	"week":  7,
	"month": 30,
}

// Handler exposes transaction endpoints.
type Handler struct {
	service  *Service
	location *time.Location
	now      func() time.Time
}

// NewHandler constructs a transaction handler. loc is used when a request
// does not name a timezone.
func NewHandler(service *Service, loc *time.Location) *Handler {
	if loc == nil {
		loc = time.UTC
	}
	return &Handler{service: service, location: loc, now: time.Now}
}

// Create records a transaction, adjusting its wallet's balance.
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
	amount, err := apierr.Amount("amount", req.Amount)
	if err != nil {
		return err
	}
	kind, err := ledger.ParseDirection(req.Type)
	if err != nil {
		return err
	}
	var walletID uuid.NullUUID
	if req.WalletID != nil && *req.WalletID != "" {
		id, err := uuid.Parse(*req.WalletID)
		if err != nil {
			return fiber.NewError(http.StatusBadRequest, "invalid wallet id")
		}
		walletID = uuid.NullUUID{UUID: id, Valid: true}
	}

	p, err := h.service.Create(c.UserContext(), ledger.NewTransaction{
		OwnerID:     ownerID,
		WalletID:    walletID,
		Amount:      amount,
		Type:        kind,
		Description: req.Description,
		Category:    req.Category,
		Note:        req.Note,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(newPostingResponse(p))
}

// List pages through the owner's transactions, newest first.
func (h *Handler) List(c *fiber.Ctx) error {
	ownerID, err := middleware.UserID(c)
	if err != nil {
		return err
	}
	limit := c.QueryInt("limit", defaultPageSize)
	if limit > maxPageSize {
		limit = maxPageSize
	}
	page, err := h.service.List(c.UserContext(), ledger.ListQuery{
		OwnerID: ownerID,
		Page:    c.QueryInt("page", 1),
		Limit:   limit,
		Search:  strings.TrimSpace(c.Query("search")),
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"transactions": responses(page.Items),
		"total":        page.Total,
		"page":         page.Page,
		"limit":        page.Limit,
	})
}

// Recent returns the latest few transactions.
func (h *Handler) Recent(c *fiber.Ctx) error {
	ownerID, err := middleware.UserID(c)
	if err != nil {
		return err
	}
	limit := c.QueryInt("limit", defaultRecentSize)
	if limit < 1 || limit > maxPageSize {
		return fiber.NewError(http.StatusBadRequest, "limit must be between 1 and 100")
	}
	page, err := h.service.List(c.UserContext(), ledger.ListQuery{OwnerID: ownerID, Page: 1, Limit: limit})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"transactions": responses(page.Items)})
}

// Daily groups transactions by calendar day in the requested timezone.
func (h *Handler) Daily(c *fiber.Ctx) error {
	ownerID, err := middleware.UserID(c)
	if err != nil {
		return err
	}
	loc, err := h.timezone(c)
	if err != nil {
		return err
	}
	buckets, err := h.service.Daily(c.UserContext(), ownerID, loc)
	if err != nil {
		return err
	}
	out := make([]dayBucket, 0, len(buckets))
	for _, b := range buckets {
		entries := make([]bucketEntry, 0, len(b.Entries))
		for _, e := range b.Entries {
			entries = append(entries, bucketEntry{Response: NewResponse(e.Transaction), Time: e.Time})
		}
		out = append(out, dayBucket{Day: b.Day, Timestamp: b.Timestamp, Transactions: entries})
	}
	return c.JSON(fiber.Map{"days": out, "timezone": loc.String()})
}

// Monthly lists a calendar month's transactions with their wallet summary.
// Month and year default to the current month.
func (h *Handler) Monthly(c *fiber.Ctx) error {
	ownerID, err := middleware.UserID(c)
	if err != nil {
		return err
	}
	loc, err := h.timezone(c)
	if err != nil {
		return err
	}
	now := h.now().In(loc)
	month := c.QueryInt("month", int(now.Month()))
	year := c.QueryInt("year", now.Year())

	entries, err := h.service.Monthly(c.UserContext(), ownerID, time.Month(month), year, loc)
	if err != nil {
		return err
	}
	out := make([]monthlyEntry, 0, len(entries))
	for _, e := range entries {
		entry := monthlyEntry{Response: NewResponse(e.Transaction)}
		if e.Wallet != nil {
			entry.Wallet = &walletSummary{ID: e.Wallet.ID, Name: e.Wallet.Name, Color: string(e.Wallet.Color), IsCredit: e.Wallet.IsCredit}
		}
		out = append(out, entry)
	}
	return c.JSON(fiber.Map{"month": month, "year": year, "transactions": out})
}

// Totals returns per-day IN/OUT sums for the trailing window, oldest first.
// The window is ?interval=week|month or ?days=N.
func (h *Handler) Totals(c *fiber.Ctx) error {
	ownerID, err := middleware.UserID(c)
	if err != nil {
		return err
	}
	loc, err := h.timezone(c)
	if err != nil {
		return err
	}
	days := intervalPresets["week"]
	if interval := c.Query("interval"); interval != "" {
		n, ok := intervalPresets[strings.ToLower(interval)]
		if !ok {
			return fiber.NewError(http.StatusBadRequest, "interval must be week or month")
		}
		days = n
	}
	days = c.QueryInt("days", days)

	rows, err := h.service.Totals(c.UserContext(), ownerID, days, loc)
	if err != nil {
		return err
	}
	out := make([]periodTotal, 0, len(rows))
	for _, r := range rows {
		out = append(out, periodTotal{Day: r.Day, Timestamp: r.Timestamp, In: int64(r.In), Out: int64(r.Out), TotalAmount: int64(r.Total)})
	}
	return c.JSON(fiber.Map{"days": days, "timezone": loc.String(), "totals": out})
}

// Get returns a single transaction.
func (h *Handler) Get(c *fiber.Ctx) error {
	ownerID, id, err := transactionParams(c)
	if err != nil {
		return err
	}
	t, err := h.service.Get(c.UserContext(), ownerID, id)
	if err != nil {
		return err
	}
	return c.JSON(NewResponse(t))
}

// Update edits a transaction. Changing amount or type goes through the
// balance checks of its wallet.
func (h *Handler) Update(c *fiber.Ctx) error {
	ownerID, id, err := transactionParams(c)
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
	patch := ledger.TransactionPatch{Description: req.Description, Category: req.Category, Note: req.Note}
	if req.Amount != nil {
		amount, err := apierr.Amount("amount", req.Amount)
		if err != nil {
			return err
		}
		patch.Amount = &amount
	}
	if req.Type != nil {
		kind, err := ledger.ParseDirection(*req.Type)
		if err != nil {
			return err
		}
		patch.Type = &kind
	}

	p, err := h.service.Update(c.UserContext(), ownerID, id, patch)
	if err != nil {
		return err
	}
	return c.JSON(newPostingResponse(p))
}

// Delete removes a transaction and reverts its effect on the wallet.
func (h *Handler) Delete(c *fiber.Ctx) error {
	ownerID, id, err := transactionParams(c)
	if err != nil {
		return err
	}
	p, err := h.service.Delete(c.UserContext(), ownerID, id)
	if err != nil {
		return err
	}
	return c.JSON(newPostingResponse(p))
}

func (h *Handler) timezone(c *fiber.Ctx) (*time.Location, error) {
	name := c.Query("tz")
	if name == "" {
		return h.location, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil || name == "Local" {
		return nil, fiber.NewError(http.StatusBadRequest, "unknown timezone "+name)
	}
	return loc, nil
}

func transactionParams(c *fiber.Ctx) (uuid.UUID, uuid.UUID, error) {
	ownerID, err := middleware.UserID(c)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return uuid.Nil, uuid.Nil, fiber.NewError(http.StatusBadRequest, "invalid transaction id")
	}
	return ownerID, id, nil
}

func responses(items []ledger.Transaction) []Response {
	out := make([]Response, 0, len(items))
	for _, t := range items {
		out = append(out, NewResponse(t))
	}
	return out
}
