package services

import (
	"fmt"
	"testing"
	"time"

	"game-arena-system/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Wallet{},
		&models.Transaction{},
		&models.Game{},
		&models.GameMatch{},
		&models.PlayerMatch{},
		&models.Subscription{},
		&models.SubscriptionReward{},
	))
	return db
}

func seedUser(t *testing.T, db *gorm.DB, name string, balance float64) *models.User {
	t.Helper()
	u := &models.User{
		ID:           uuid.NewString(),
		Username:     name,
		Email:        name + "@test.local",
		Password:     "x",
		Role:         models.RoleUser,
		Rank:         1,
		ReferralCode: newReferralCode(),
	}
	require.NoError(t, db.Create(u).Error)
	require.NoError(t, db.Create(&models.Wallet{
		ID:      uuid.NewString(),
		UserID:  u.ID,
		Balance: balance,
	}).Error)
	return u
}

func seedSubscriber(t *testing.T, db *gorm.DB, name string, balance float64) *models.User {
	t.Helper()
	u := seedUser(t, db, name, balance)
	expiry := time.Now().AddDate(0, 0, 30)
	require.NoError(t, db.Model(u).Updates(map[string]interface{}{
		"is_subscribed":       true,
		"subscription_expiry": &expiry,
	}).Error)
	u.IsSubscribed = true
	u.SubscriptionExpiry = &expiry
	return u
}

func seedGame(t *testing.T, db *gorm.DB, name string, minEntry, maxEntry, commissionPct float64) *models.Game {
	t.Helper()
	g := &models.Game{
		ID:            uuid.NewString(),
		Name:          name,
		Slug:          name,
		MinEntry:      minEntry,
		MaxEntry:      maxEntry,
		CommissionPct: commissionPct,
		IsActive:      true,
	}
	require.NoError(t, db.Create(g).Error)
	return g
}

func balanceOf(t *testing.T, db *gorm.DB, userID string) float64 {
	t.Helper()
	var w models.Wallet
	require.NoError(t, db.Where("user_id = ?", userID).First(&w).Error)
	return w.Balance
}
