package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User is the platform identity plus gaming stats. Created at registration,
// never deleted. Balance lives on the Wallet, not here.
type User struct {
	ID       string `gorm:"primaryKey;type:uuid" json:"id"`
	Username string `gorm:"uniqueIndex;not null" json:"username"`
	Email    string `gorm:"uniqueIndex;not null" json:"email"`
	Password string `gorm:"not null" json:"-"` // bcrypt hash
	Role     string `gorm:"type:varchar(16);default:'user'" json:"role"`

	AvatarURL string `json:"avatar_url,omitempty"`
	Phone     string `json:"phone,omitempty"`

	// Gaming stats, bumped at match completion
	Wins   int64 `gorm:"default:0" json:"wins"`
	Losses int64 `gorm:"default:0" json:"losses"`
	Rank   int   `gorm:"default:1" json:"rank"` // Bronze(1)→Silver(2)→Gold(3)→Platinum(4)→Diamond(5)

	// Subscription state (denormalized from Subscription rows for fast checks)
	IsSubscribed       bool       `gorm:"default:false" json:"is_subscribed"`
	SubscriptionExpiry *time.Time `json:"subscription_expiry,omitempty"`

	// Referral linkage
	ReferralCode string  `gorm:"size:32;uniqueIndex" json:"referral_code"`
	ReferredBy   *string `gorm:"index" json:"referred_by,omitempty"`

	// Engagement
	RewardPoints int64      `gorm:"default:0" json:"reward_points"`
	LoginStreak  int        `gorm:"default:0" json:"login_streak"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`

	// The practice opponent account; excluded from leaderboards and payouts
	IsBot bool `gorm:"default:false" json:"-"`

	Timestamps
}

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}
