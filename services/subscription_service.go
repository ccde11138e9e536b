package services

import (
	"errors"
	"log"
	"time"

	"game-arena-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SubscriptionService sells plans and drips the daily cashback. A purchase
// creates the subscription plus one pending reward row per day up front;
// the daily batch then flips due rows to paid and credits the wallet. The
// flip is a guarded UPDATE, so re-running a batch never pays twice.
type SubscriptionService struct {
	DB     *gorm.DB
	Wallet *WalletService
}

func NewSubscriptionService(db *gorm.DB, wallet *WalletService) *SubscriptionService {
	return &SubscriptionService{DB: db, Wallet: wallet}
}

// Purchase debits the plan price and sets up the reward schedule in one
// transaction.
func (s *SubscriptionService) Purchase(userID, planID string) (*models.Subscription, error) {
	plan := models.PlanByID(planID)
	if plan == nil {
		return nil, fail(ErrNotFound, "unknown subscription plan")
	}

	now := time.Now()
	end := now.AddDate(0, 0, plan.DurationDays)
	sub := &models.Subscription{
		ID:           uuid.NewString(),
		UserID:       userID,
		PlanID:       plan.ID,
		Amount:       plan.Price,
		RewardTotal:  plan.RewardTotal,
		DurationDays: plan.DurationDays,
		StartDate:    now,
		EndDate:      end,
		Status:       models.SubscriptionActive,
	}
	daily := Round2(plan.RewardTotal / float64(plan.DurationDays))

	unlock := s.Wallet.locks.Lock(userID)
	defer unlock()

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		// checked under the lock so two concurrent purchases can't both pass
		var active int64
		if err := tx.Model(&models.Subscription{}).
			Where("user_id = ? AND status = ?", userID, models.SubscriptionActive).
			Count(&active).Error; err != nil {
			return err
		}
		if active > 0 {
			return fail(ErrConflict, "an active subscription already exists")
		}
		if _, err := s.Wallet.adjustBalance(tx, userID, -plan.Price); err != nil {
			return err
		}
		if err := tx.Create(sub).Error; err != nil {
			return err
		}
		if err := tx.Create(&models.Transaction{
			ID:             uuid.NewString(),
			UserID:         userID,
			Type:           models.TxSubscriptionPurchase,
			Amount:         -plan.Price,
			Status:         models.TxCompleted,
			SubscriptionID: &sub.ID,
		}).Error; err != nil {
			return err
		}
		for day := 1; day <= plan.DurationDays; day++ {
			if err := tx.Create(&models.SubscriptionReward{
				ID:             uuid.NewString(),
				SubscriptionID: sub.ID,
				UserID:         userID,
				Day:            day,
				Amount:         daily,
				Status:         models.RewardPending,
			}).Error; err != nil {
				return err
			}
		}
		return tx.Model(&models.User{}).Where("id = ?", userID).
			Updates(map[string]interface{}{
				"is_subscribed":       true,
				"subscription_expiry": &end,
			}).Error
	})
	if err != nil {
		return nil, err
	}

	log.Printf("💳 user %s bought plan %s: paid=%.2f reward=%.2f over %d days",
		userID, plan.ID, plan.Price, plan.RewardTotal, plan.DurationDays)
	return sub, nil
}

// ProcessRewardsForDate pays every pending reward whose day has arrived by
// the given date, then closes subscriptions with nothing left to pay.
// Day granularity: reward N of a subscription started on D is due from
// D + N - 1 days onward, compared by calendar date.
func (s *SubscriptionService) ProcessRewardsForDate(date time.Time) (int, error) {
	cutoff := date.Truncate(24 * time.Hour)

	var subs []models.Subscription
	if err := s.DB.Where("status = ?", models.SubscriptionActive).Find(&subs).Error; err != nil {
		return 0, err
	}

	paid := 0
	for i := range subs {
		sub := &subs[i]
		start := sub.StartDate.Truncate(24 * time.Hour)

		var rewards []models.SubscriptionReward
		if err := s.DB.Where("subscription_id = ? AND status = ?",
			sub.ID, models.RewardPending).Order("day ASC").Find(&rewards).Error; err != nil {
			return paid, err
		}

		for _, r := range rewards {
			due := start.AddDate(0, 0, r.Day-1)
			if due.After(cutoff) {
				break
			}
			if err := s.payReward(sub, &r); err != nil {
				log.Printf("⚠️ reward %s (day %d) for subscription %s failed: %v",
					r.ID, r.Day, sub.ID, err)
				continue
			}
			paid++
		}

		var remaining int64
		if err := s.DB.Model(&models.SubscriptionReward{}).
			Where("subscription_id = ? AND status = ?", sub.ID, models.RewardPending).
			Count(&remaining).Error; err != nil {
			return paid, err
		}
		if remaining == 0 {
			if err := s.DB.Model(sub).Update("status", models.SubscriptionCompleted).Error; err != nil {
				return paid, err
			}
			log.Printf("✅ subscription %s fully paid out", sub.ID)
		}
	}
	if paid > 0 {
		log.Printf("💰 paid %d subscription rewards up to %s", paid, cutoff.Format("2006-01-02"))
	}
	return paid, nil
}

// payReward flips one pending row to paid and credits the wallet. The
// guarded UPDATE makes the flip the idempotency gate: zero rows affected
// means another run already claimed it.
func (s *SubscriptionService) payReward(sub *models.Subscription, r *models.SubscriptionReward) error {
	unlock := s.Wallet.locks.Lock(sub.UserID)
	defer unlock()

	return s.DB.Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		res := tx.Model(&models.SubscriptionReward{}).
			Where("id = ? AND status = ?", r.ID, models.RewardPending).
			Updates(map[string]interface{}{
				"status":  models.RewardPaid,
				"paid_at": &now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil // already paid by a concurrent run
		}
		if _, err := s.Wallet.adjustBalance(tx, sub.UserID, r.Amount); err != nil {
			return err
		}
		return tx.Create(&models.Transaction{
			ID:             uuid.NewString(),
			UserID:         sub.UserID,
			Type:           models.TxSubscriptionReward,
			Amount:         r.Amount,
			Status:         models.TxCompleted,
			SubscriptionID: &sub.ID,
		}).Error
	})
}

// --- Handlers ---

// GetPlans returns the static plan catalog.
func (s *SubscriptionService) GetPlans(c *fiber.Ctx) error {
	return c.JSON(models.SubscriptionPlans)
}

// Buy handles POST /subscriptions.
func (s *SubscriptionService) Buy(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	var req struct {
		PlanID string `json:"plan_id"`
	}
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, fail(ErrValidation, "invalid JSON"))
	}
	if req.PlanID == "" {
		return respondError(c, fail(ErrValidation, "plan_id is required"))
	}
	sub, err := s.Purchase(userID, req.PlanID)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(sub)
}

// GetMine lists the caller's subscriptions with their reward schedules.
func (s *SubscriptionService) GetMine(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	var subs []models.Subscription
	err := s.DB.Preload("Rewards", func(db *gorm.DB) *gorm.DB {
		return db.Order("day ASC")
	}).Where("user_id = ?", userID).Order("created_at DESC").Find(&subs).Error
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(subs)
}

// ProcessRewards is the manual admin trigger for the daily batch.
func (s *SubscriptionService) ProcessRewards(c *fiber.Ctx) error {
	date := time.Now()
	if raw := c.Query("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return respondError(c, fail(ErrValidation, "date must be YYYY-MM-DD"))
		}
		date = parsed
	}
	paid, err := s.ProcessRewardsForDate(date)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return respondError(c, fail(ErrNotFound, "no rewards found"))
		}
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"rewards_paid": paid})
}
