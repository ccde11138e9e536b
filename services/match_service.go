package services

import (
	"errors"
	"fmt"
	"log"
	"time"

	"game-arena-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MinPlayableBalance is the platform-wide floor a wallet must hold to create
// or join any match, independent of the entry amount.
const MinPlayableBalance = 50.0

// Rank thresholds: wins required per rank.
// Bronze(1)→Silver(2)→Gold(3)→Platinum(4)→Diamond(5)
var rankThresholds = map[int]int64{
	1: 0,
	2: 10,
	3: 25,
	4: 50,
	5: 100,
}

func rankForWins(wins int64) int {
	for rank := 5; rank >= 1; rank-- {
		if wins >= rankThresholds[rank] {
			return rank
		}
	}
	return 1
}

// MatchService drives the match state machine: waiting → in_progress →
// completed. Money moves only on start (entry debits) and complete (winner
// payout); every move pairs with a Transaction row in the same DB
// transaction. A per-match keyed mutex serializes the read-check-write
// sections across concurrent requests.
type MatchService struct {
	DB     *gorm.DB
	Wallet *WalletService
	Bots   *BotScheduler // nil disables the practice opponent

	locks *keyedMutex
}

func NewMatchService(db *gorm.DB, wallet *WalletService) *MatchService {
	return &MatchService{DB: db, Wallet: wallet, locks: newKeyedMutex()}
}

// Settlement summarizes a completed match for the API response.
type Settlement struct {
	Match      *models.GameMatch `json:"match"`
	PrizePool  float64           `json:"prize_pool"`
	Commission float64           `json:"commission"`
	Payout     float64           `json:"payout"`
}

// CreateMatch opens a match in waiting and joins the creator. No funds move.
func (s *MatchService) CreateMatch(gameID string, entryAmount float64, userID string) (*models.GameMatch, error) {
	var game models.Game
	if err := s.DB.First(&game, "id = ? AND is_active = ?", gameID, true).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fail(ErrNotFound, "game not found")
		}
		return nil, err
	}
	if entryAmount < game.MinEntry || entryAmount > game.MaxEntry {
		return nil, fail(ErrValidation,
			fmt.Sprintf("entry amount must be between %.2f and %.2f", game.MinEntry, game.MaxEntry))
	}
	if err := s.checkPlayable(userID, entryAmount); err != nil {
		return nil, err
	}

	match := &models.GameMatch{
		ID:          uuid.NewString(),
		GameID:      game.ID,
		EntryAmount: entryAmount,
		Status:      models.MatchWaiting,
		CreatedBy:   userID,
	}
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(match).Error; err != nil {
			return err
		}
		return tx.Create(&models.PlayerMatch{
			ID:      uuid.NewString(),
			MatchID: match.ID,
			UserID:  userID,
			Status:  models.PlayerJoined,
		}).Error
	})
	if err != nil {
		return nil, err
	}

	log.Printf("🎮 match %s created: game=%s entry=%.2f by=%s", match.ID, game.Slug, entryAmount, userID)
	if s.Bots != nil {
		s.Bots.ScheduleAutoJoin(match.ID)
	}
	return match, nil
}

// JoinMatch adds a player to a waiting match. No funds move; the balance is
// only checked so hopeless joins fail early.
func (s *MatchService) JoinMatch(matchID, userID string) (*models.PlayerMatch, error) {
	unlock := s.locks.Lock(matchID)
	defer unlock()

	var match models.GameMatch
	if err := s.DB.First(&match, "id = ?", matchID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fail(ErrNotFound, "match not found")
		}
		return nil, err
	}
	if match.Status != models.MatchWaiting {
		return nil, fail(ErrInvalidState, "match is not open for joining")
	}

	var existing models.PlayerMatch
	if err := s.DB.Where("match_id = ? AND user_id = ?", matchID, userID).
		First(&existing).Error; err == nil {
		return nil, fail(ErrConflict, "already joined this match")
	}

	if err := s.checkPlayable(userID, match.EntryAmount); err != nil {
		return nil, err
	}

	var joiner models.User
	if err := s.DB.First(&joiner, "id = ?", userID).Error; err != nil {
		return nil, fail(ErrNotFound, "user not found")
	}

	pm := &models.PlayerMatch{
		ID:      uuid.NewString(),
		MatchID: matchID,
		UserID:  userID,
		Status:  models.PlayerJoined,
		IsBot:   joiner.IsBot,
	}
	if err := s.DB.Create(pm).Error; err != nil {
		return nil, err
	}
	log.Printf("👥 user %s joined match %s", userID, matchID)
	return pm, nil
}

// StartMatch deducts the entry fee from every joined player and moves the
// match to in_progress. All balances are pre-checked before any deduction,
// then every debit and its game_entry row commit in one DB transaction, so
// a mid-loop shortfall charges nobody.
func (s *MatchService) StartMatch(matchID, requestingUserID string) (*models.GameMatch, error) {
	unlock := s.locks.Lock(matchID)
	defer unlock()

	var match models.GameMatch
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := lockForUpdate(tx).First(&match, "id = ?", matchID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fail(ErrNotFound, "match not found")
			}
			return err
		}
		if match.Status != models.MatchWaiting {
			return fail(ErrInvalidState, "match has already started or finished")
		}

		var players []models.PlayerMatch
		if err := tx.Where("match_id = ? AND status = ?", matchID, models.PlayerJoined).
			Find(&players).Error; err != nil {
			return err
		}
		if len(players) < 2 {
			return fail(ErrValidation, "at least 2 players are required to start")
		}
		if !containsPlayer(players, requestingUserID) {
			return fail(ErrForbidden, "only a joined player can start the match")
		}

		// Pre-flight: verify every wallet before touching any of them.
		for _, p := range players {
			var w models.Wallet
			if err := tx.Where("user_id = ?", p.UserID).First(&w).Error; err != nil {
				return fmt.Errorf("wallet lookup for player %s: %w", p.UserID, err)
			}
			if w.Balance < match.EntryAmount {
				log.Printf("🚫 start %s refused: player %s short (%.2f < %.2f)",
					matchID, p.UserID, w.Balance, match.EntryAmount)
				return fail(ErrInsufficientFunds, "a joined player no longer covers the entry fee")
			}
		}

		for _, p := range players {
			if _, err := s.Wallet.adjustBalance(tx, p.UserID, -match.EntryAmount); err != nil {
				return fmt.Errorf("entry debit for player %s: %w", p.UserID, err)
			}
			if err := tx.Create(&models.Transaction{
				ID:      uuid.NewString(),
				UserID:  p.UserID,
				Type:    models.TxGameEntry,
				Amount:  -match.EntryAmount,
				Status:  models.TxCompleted,
				MatchID: &match.ID,
			}).Error; err != nil {
				return err
			}
		}

		now := time.Now()
		return tx.Model(&match).Updates(map[string]interface{}{
			"status":     models.MatchInProgress,
			"started_at": &now,
		}).Error
	})
	if err != nil {
		return nil, err
	}

	log.Printf("🏁 match %s started: entry=%.2f deducted from each player", matchID, match.EntryAmount)
	match.Status = models.MatchInProgress
	return &match, nil
}

// CompleteMatch pays the winner the prize pool minus commission and closes
// the match. Terminal and one-time: a second call fails with invalid state
// and has no side effects. Any pending practice-opponent timers for the
// match are cancelled first, so a manual completion supersedes the
// automated one.
func (s *MatchService) CompleteMatch(matchID, winnerID string) (*Settlement, error) {
	if s.Bots != nil {
		s.Bots.Cancel(matchID)
	}

	unlock := s.locks.Lock(matchID)
	defer unlock()

	var settlement Settlement
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var match models.GameMatch
		if err := lockForUpdate(tx).First(&match, "id = ?", matchID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fail(ErrNotFound, "match not found")
			}
			return err
		}
		if match.Status != models.MatchInProgress {
			return fail(ErrInvalidState, "match is not in progress")
		}

		var players []models.PlayerMatch
		if err := tx.Where("match_id = ? AND status = ?", matchID, models.PlayerJoined).
			Find(&players).Error; err != nil {
			return err
		}
		if !containsPlayer(players, winnerID) {
			return fail(ErrValidation, "winner is not a joined player")
		}

		var game models.Game
		if err := tx.First(&game, "id = ?", match.GameID).Error; err != nil {
			return err
		}
		var winner models.User
		if err := tx.First(&winner, "id = ?", winnerID).Error; err != nil {
			return err
		}

		prizePool := Round2(match.EntryAmount * float64(len(players)))
		commission := PrizeCommission(prizePool, game.CommissionPct, subscriberActive(&winner))
		payout := Round2(prizePool - commission)

		if _, err := s.Wallet.adjustBalance(tx, winnerID, payout); err != nil {
			return fmt.Errorf("winner payout: %w", err)
		}
		if err := tx.Create(&models.Transaction{
			ID:               uuid.NewString(),
			UserID:           winnerID,
			Type:             models.TxGameWin,
			Amount:           payout,
			Status:           models.TxCompleted,
			CommissionAmount: commission,
			MatchID:          &match.ID,
		}).Error; err != nil {
			return err
		}

		for _, p := range players {
			status := models.PlayerLost
			if p.UserID == winnerID {
				status = models.PlayerWon
			}
			if err := tx.Model(&models.PlayerMatch{}).
				Where("id = ?", p.ID).
				Update("status", status).Error; err != nil {
				return err
			}
			if err := s.applyMatchStats(tx, p.UserID, p.UserID == winnerID); err != nil {
				return err
			}
		}

		now := time.Now()
		if err := tx.Model(&match).Updates(map[string]interface{}{
			"status":    models.MatchCompleted,
			"winner_id": winnerID,
			"ended_at":  &now,
		}).Error; err != nil {
			return err
		}

		match.Status = models.MatchCompleted
		match.WinnerID = &winnerID
		match.EndedAt = &now
		settlement = Settlement{
			Match:      &match,
			PrizePool:  prizePool,
			Commission: commission,
			Payout:     payout,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("🏆 match %s completed: winner=%s pool=%.2f commission=%.2f payout=%.2f",
		matchID, winnerID, settlement.PrizePool, settlement.Commission, settlement.Payout)
	return &settlement, nil
}

// applyMatchStats bumps win/loss counters and recomputes rank. The practice
// opponent keeps no stats.
func (s *MatchService) applyMatchStats(tx *gorm.DB, userID string, won bool) error {
	var user models.User
	if err := tx.First(&user, "id = ?", userID).Error; err != nil {
		return err
	}
	if user.IsBot {
		return nil
	}
	if won {
		user.Wins++
	} else {
		user.Losses++
	}
	return tx.Model(&user).Updates(map[string]interface{}{
		"wins":   user.Wins,
		"losses": user.Losses,
		"rank":   rankForWins(user.Wins),
	}).Error
}

// checkPlayable enforces the platform floor plus entry-amount cover.
func (s *MatchService) checkPlayable(userID string, entryAmount float64) error {
	w, err := s.Wallet.WalletByUser(userID)
	if err != nil {
		return err
	}
	if w.Balance < MinPlayableBalance {
		return fail(ErrInsufficientFunds,
			fmt.Sprintf("a minimum balance of %.2f is required to play", MinPlayableBalance))
	}
	if w.Balance < entryAmount {
		return fail(ErrInsufficientFunds, "balance does not cover the entry amount")
	}
	return nil
}

func containsPlayer(players []models.PlayerMatch, userID string) bool {
	for _, p := range players {
		if p.UserID == userID {
			return true
		}
	}
	return false
}

func subscriberActive(u *models.User) bool {
	return u.IsSubscribed && u.SubscriptionExpiry != nil && u.SubscriptionExpiry.After(time.Now())
}

// --- Handlers ---

// Create handles POST /matches.
func (s *MatchService) Create(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	var req struct {
		GameID      string  `json:"game_id"`
		EntryAmount float64 `json:"entry_amount"`
	}
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, fail(ErrValidation, "invalid JSON"))
	}
	if req.GameID == "" || req.EntryAmount <= 0 {
		return respondError(c, fail(ErrValidation, "game_id and a positive entry_amount are required"))
	}
	match, err := s.CreateMatch(req.GameID, Round2(req.EntryAmount), userID)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(match)
}

// Join handles POST /matches/:id/join.
func (s *MatchService) Join(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	pm, err := s.JoinMatch(c.Params("id"), userID)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(pm)
}

// Start handles POST /matches/:id/start.
func (s *MatchService) Start(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	match, err := s.StartMatch(c.Params("id"), userID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(match)
}

// Complete handles POST /matches/:id/complete.
func (s *MatchService) Complete(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	matchID := c.Params("id")

	var req struct {
		WinnerID string `json:"winner_id"`
	}
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, fail(ErrValidation, "invalid JSON"))
	}
	if req.WinnerID == "" {
		return respondError(c, fail(ErrValidation, "winner_id is required"))
	}

	// Only participants may settle their own match.
	var pm models.PlayerMatch
	if err := s.DB.Where("match_id = ? AND user_id = ?", matchID, userID).
		First(&pm).Error; err != nil {
		return respondError(c, fail(ErrForbidden, "only a match participant can complete it"))
	}

	settlement, err := s.CompleteMatch(matchID, req.WinnerID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(settlement)
}

// Open handles GET /matches/open. Lists joinable and running matches,
// optionally filtered by game.
func (s *MatchService) Open(c *fiber.Ctx) error {
	q := s.DB.Preload("Game").Preload("Players").
		Where("status IN ?", []string{models.MatchWaiting, models.MatchInProgress}).
		Order("created_at DESC").Limit(100)
	if gameID := c.Query("game_id"); gameID != "" {
		q = q.Where("game_id = ?", gameID)
	}
	var matches []models.GameMatch
	if err := q.Find(&matches).Error; err != nil {
		return respondError(c, err)
	}
	return c.JSON(matches)
}

// Get handles GET /matches/:id.
func (s *MatchService) Get(c *fiber.Ctx) error {
	var match models.GameMatch
	err := s.DB.Preload("Game").Preload("Players").
		First(&match, "id = ?", c.Params("id")).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return respondError(c, fail(ErrNotFound, "match not found"))
		}
		return respondError(c, err)
	}
	return c.JSON(&match)
}
