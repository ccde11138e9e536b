package services

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"
	"time"

	"game-arena-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	// SessionTTL bounds how long a login token stays valid in Redis.
	SessionTTL = 72 * time.Hour

	sessionKeyPrefix = "session:"

	referralBonusAmount = 50.0
	streakBasePoints    = 10
	streakBonusPoints   = 5
	streakPointsCap     = 50
)

// SessionData is what Redis stores per token.
type SessionData struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

// AuthService owns registration, login sessions, and the profile surface.
// Sessions live in Redis under session:<token> so any instance can verify
// a token issued by another.
type AuthService struct {
	DB     *gorm.DB
	Wallet *WalletService
	Redis  *redis.Client
}

func NewAuthService(db *gorm.DB, wallet *WalletService, rdb *redis.Client) *AuthService {
	return &AuthService{DB: db, Wallet: wallet, Redis: rdb}
}

// Register handles POST /auth/register. Creates the user and their empty
// wallet together; an optional referral code credits the referrer.
func (s *AuthService) Register(c *fiber.Ctx) error {
	var req struct {
		Username     string `json:"username"`
		Email        string `json:"email"`
		Password     string `json:"password"`
		Phone        string `json:"phone"`
		ReferralCode string `json:"referral_code"`
	}
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, fail(ErrValidation, "invalid JSON"))
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Username == "" || req.Email == "" {
		return respondError(c, fail(ErrValidation, "username and email are required"))
	}
	if len(req.Password) < 8 {
		return respondError(c, fail(ErrValidation, "password must be at least 8 characters"))
	}

	var referrer *models.User
	if req.ReferralCode != "" {
		var u models.User
		if err := s.DB.Where("referral_code = ?", strings.ToUpper(req.ReferralCode)).
			First(&u).Error; err != nil {
			return respondError(c, fail(ErrValidation, "unknown referral code"))
		}
		referrer = &u
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return respondError(c, err)
	}

	user := &models.User{
		ID:           uuid.NewString(),
		Username:     req.Username,
		Email:        req.Email,
		Password:     string(hash),
		Phone:        req.Phone,
		Role:         models.RoleUser,
		Rank:         1,
		ReferralCode: newReferralCode(),
	}
	if referrer != nil {
		user.ReferredBy = &referrer.ID
	}

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(user).Error; err != nil {
			return err
		}
		if _, err := s.Wallet.CreateWallet(tx, user.ID); err != nil {
			return err
		}
		if referrer != nil {
			if _, err := s.Wallet.adjustBalance(tx, referrer.ID, referralBonusAmount); err != nil {
				return err
			}
			return tx.Create(&models.Transaction{
				ID:     uuid.NewString(),
				UserID: referrer.ID,
				Type:   models.TxReferralBonus,
				Amount: referralBonusAmount,
				Status: models.TxCompleted,
				Notes:  "referral signup: " + user.Username,
			}).Error
		}
		return nil
	})
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "unique") ||
			strings.Contains(strings.ToLower(err.Error()), "duplicate") {
			return respondError(c, fail(ErrConflict, "username or email already taken"))
		}
		return respondError(c, err)
	}

	log.Printf("🆕 user registered: %s (%s)", user.Username, user.ID)
	return c.Status(fiber.StatusCreated).JSON(user)
}

// Login handles POST /auth/login. A successful login updates the daily
// streak, grants its reward points, and issues a Redis-backed token.
func (s *AuthService) Login(c *fiber.Ctx) error {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, fail(ErrValidation, "invalid JSON"))
	}

	var user models.User
	err := s.DB.Where("email = ?", strings.ToLower(strings.TrimSpace(req.Email))).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return respondError(c, fail(ErrUnauthorized, "invalid credentials"))
		}
		return respondError(c, err)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)) != nil {
		return respondError(c, fail(ErrUnauthorized, "invalid credentials"))
	}

	if err := s.touchLoginStreak(&user); err != nil {
		log.Printf("⚠️ streak update for %s failed: %v", user.ID, err)
	}

	token := uuid.NewString()
	payload, _ := json.Marshal(SessionData{UserID: user.ID, Role: user.Role})
	if err := s.Redis.SetEx(context.Background(),
		sessionKeyPrefix+token, payload, SessionTTL).Err(); err != nil {
		return respondError(c, err)
	}

	log.Printf("🔑 user %s logged in (streak %d)", user.ID, user.LoginStreak)
	return c.JSON(fiber.Map{
		"token": token,
		"user":  user,
	})
}

// Logout revokes the presented session token.
func (s *AuthService) Logout(c *fiber.Ctx) error {
	token := c.Get("X-Session-Token")
	if token == "" {
		return respondError(c, fail(ErrUnauthorized, "missing session token"))
	}
	if err := s.Redis.Del(context.Background(), sessionKeyPrefix+token).Err(); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "logged out"})
}

// Session resolves a token back to its session data. Used by middleware.
func (s *AuthService) Session(ctx context.Context, token string) (*SessionData, error) {
	raw, err := s.Redis.Get(ctx, sessionKeyPrefix+token).Result()
	if err == redis.Nil {
		return nil, fail(ErrUnauthorized, "invalid or expired session")
	}
	if err != nil {
		return nil, err
	}
	var data SessionData
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// touchLoginStreak bumps the consecutive-day counter on the first login of
// a calendar day and grants the day's reward points. Later logins the same
// day are no-ops.
func (s *AuthService) touchLoginStreak(user *models.User) error {
	now := time.Now()
	today := now.Truncate(24 * time.Hour)

	if user.LastLoginAt != nil && user.LastLoginAt.Truncate(24*time.Hour).Equal(today) {
		return nil
	}

	streak := 1
	if user.LastLoginAt != nil &&
		user.LastLoginAt.Truncate(24*time.Hour).Equal(today.AddDate(0, 0, -1)) {
		streak = user.LoginStreak + 1
	}

	points := int64(streakBasePoints + streakBonusPoints*(streak-1))
	if points > streakPointsCap {
		points = streakPointsCap
	}

	user.LoginStreak = streak
	user.LastLoginAt = &now
	user.RewardPoints += points

	return s.DB.Model(user).Updates(map[string]interface{}{
		"login_streak":  streak,
		"last_login_at": &now,
		"reward_points": user.RewardPoints,
	}).Error
}

// GetMe handles GET /users/me.
func (s *AuthService) GetMe(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	var user models.User
	if err := s.DB.First(&user, "id = ?", userID).Error; err != nil {
		return respondError(c, fail(ErrNotFound, "user not found"))
	}
	return c.JSON(user)
}

// UpdateMe edits the caller's profile. Username, avatar, and phone only.
func (s *AuthService) UpdateMe(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	var req struct {
		Username  string `json:"username"`
		AvatarURL string `json:"avatar_url"`
		Phone     string `json:"phone"`
	}
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, fail(ErrValidation, "invalid JSON"))
	}

	var user models.User
	if err := s.DB.First(&user, "id = ?", userID).Error; err != nil {
		return respondError(c, fail(ErrNotFound, "user not found"))
	}
	if req.Username != "" {
		user.Username = strings.TrimSpace(req.Username)
	}
	if req.AvatarURL != "" {
		user.AvatarURL = req.AvatarURL
	}
	if req.Phone != "" {
		user.Phone = req.Phone
	}
	if err := s.DB.Save(&user).Error; err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "unique") ||
			strings.Contains(strings.ToLower(err.Error()), "duplicate") {
			return respondError(c, fail(ErrConflict, "username already taken"))
		}
		return respondError(c, err)
	}
	return c.JSON(user)
}

// LeaderboardEntry is the public slice of a user for rankings.
type LeaderboardEntry struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	AvatarURL string `json:"avatar_url"`
	Wins      int64  `json:"wins"`
	Losses    int64  `json:"losses"`
	Rank      int    `json:"rank"`
}

// Leaderboard returns the top players by wins, practice opponents
// excluded.
func (s *AuthService) Leaderboard(c *fiber.Ctx) error {
	var users []models.User
	err := s.DB.Where("is_bot = ?", false).
		Order("wins DESC, losses ASC").Limit(50).Find(&users).Error
	if err != nil {
		return respondError(c, err)
	}

	res := make([]LeaderboardEntry, len(users))
	for i, u := range users {
		res[i] = LeaderboardEntry{
			ID:        u.ID,
			Username:  u.Username,
			AvatarURL: u.AvatarURL,
			Wins:      u.Wins,
			Losses:    u.Losses,
			Rank:      u.Rank,
		}
	}
	return c.JSON(res)
}

// newReferralCode returns a short shareable code.
func newReferralCode() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}
