package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/finaki/finaki/internal/transactions"
)

// RegisterTransactionRoutes wires transaction endpoints. Fixed paths are
// registered before /:id so they are not taken for ids.
func RegisterTransactionRoutes(r fiber.Router, h *transactions.Handler) {
	r.Post("/transactions", h.Create)
	r.Get("/transactions", h.List)
	r.Get("/transactions/recent", h.Recent)
	r.Get("/transactions/daily", h.Daily)
	r.Get("/transactions/monthly", h.Monthly)
	r.Get("/transactions/totals", h.Totals)
	r.Get("/transactions/:id", h.Get)
	r.Patch("/transactions/:id", h.Update)
	r.Delete("/transactions/:id", h.Delete)
}
