// handlers/routes.go
package handlers

import (
	"game-arena-system/middleware"
	"game-arena-system/services"

	"github.com/gofiber/fiber/v2"
)

// Services bundles everything the router wires up.
type Services struct {
	Auth          *services.AuthService
	Games         *services.GameService
	Matches       *services.MatchService
	Wallet        *services.WalletService
	Subscriptions *services.SubscriptionService
	Chat          *services.ChatService
}

func SetupRoutes(app *fiber.App, s *Services) {
	// 🔓 Public routes
	app.Post("/auth/register", s.Auth.Register)
	app.Post("/auth/login", s.Auth.Login)
	app.Get("/games", s.Games.GetGames)
	app.Get("/games/:id", s.Games.GetGame)
	app.Get("/users/leaderboard", s.Auth.Leaderboard)

	// 🔐 Secured routes, session token required
	secured := app.Group("/", middleware.SessionAuth(s.Auth))

	secured.Post("/auth/logout", s.Auth.Logout)
	secured.Get("/users/me", s.Auth.GetMe)
	secured.Put("/users/me", s.Auth.UpdateMe)

	secured.Post("/matches", s.Matches.Create)
	secured.Get("/matches/open", s.Matches.Open)
	secured.Get("/matches/:id", s.Matches.Get)
	secured.Post("/matches/:id/join", s.Matches.Join)
	secured.Post("/matches/:id/start", s.Matches.Start)
	secured.Post("/matches/:id/complete", s.Matches.Complete)

	secured.Get("/wallet", s.Wallet.GetWallet)
	secured.Get("/wallet/transactions", s.Wallet.GetTransactions)
	secured.Post("/wallet/deposit", s.Wallet.Deposit)
	secured.Post("/wallet/deposit/:id/proof", s.Wallet.AttachDepositProof)
	secured.Post("/wallet/withdraw", s.Wallet.Withdraw)
	secured.Post("/wallet/redeem-points", s.Wallet.RedeemPoints)

	secured.Get("/subscriptions", s.Subscriptions.GetPlans)
	secured.Post("/subscriptions", s.Subscriptions.Buy)
	secured.Get("/subscriptions/me", s.Subscriptions.GetMine)

	secured.Get("/chat/stream", s.Chat.Stream)
	secured.Post("/chat/join", s.Chat.Join)
	secured.Post("/chat/leave", s.Chat.Leave)
	secured.Post("/chat/send", s.Chat.Send)
	secured.Get("/chat/:room/history", s.Chat.History)

	// 👑 Admin routes
	admin := secured.Group("/admin", middleware.RequireAdmin())

	admin.Post("/games", s.Games.CreateGame)
	admin.Put("/games/:id", s.Games.UpdateGame)
	admin.Post("/wallet/approve-deposit/:id", s.Wallet.ApproveDeposit)
	admin.Get("/transactions", s.Wallet.AdminTransactions)
	admin.Get("/reconcile", s.Wallet.Reconcile)
	admin.Post("/process-subscription-rewards", s.Subscriptions.ProcessRewards)
}
