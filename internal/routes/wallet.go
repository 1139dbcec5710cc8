package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/finaki/finaki/internal/wallet"
)

// RegisterWalletRoutes wires wallet-related endpoints.
func RegisterWalletRoutes(r fiber.Router, h *wallet.Handler) {
	r.Post("/wallets", h.Create)
	r.Get("/wallets", h.List)
	r.Get("/wallets/:walletId", h.Get)
	r.Patch("/wallets/:walletId", h.Update)
	r.Delete("/wallets/:walletId", h.Delete)
	r.Get("/wallets/:walletId/history", h.History)
	r.Get("/wallets/:walletId/recompute", h.Recompute)
}
