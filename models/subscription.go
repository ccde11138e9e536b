package models

import "time"

// Subscription statuses
const (
	SubscriptionActive    = "active"
	SubscriptionCompleted = "completed"
)

// Subscription is a purchased reward package: the user pays Amount up front
// and receives RewardTotal back as equal daily wallet credits over
// DurationDays. The daily schedule is generated at purchase time.
type Subscription struct {
	ID     string `gorm:"primaryKey;type:uuid" json:"id"`
	UserID string `gorm:"type:uuid;not null;index" json:"user_id"`

	PlanID       string  `gorm:"type:varchar(32);not null" json:"plan_id"`
	Amount       float64 `gorm:"not null" json:"amount"`
	RewardTotal  float64 `gorm:"not null" json:"reward_total"`
	DurationDays int     `gorm:"not null" json:"duration_days"`

	StartDate time.Time `gorm:"not null" json:"start_date"`
	EndDate   time.Time `gorm:"not null" json:"end_date"`
	Status    string    `gorm:"type:varchar(16);not null;default:'active';index" json:"status"`

	Timestamps

	Rewards []SubscriptionReward `json:"rewards,omitempty" gorm:"foreignKey:SubscriptionID"`
}

// SubscriptionReward statuses
const (
	RewardPending = "pending"
	RewardPaid    = "paid"
)

// SubscriptionReward is one day's credit of a subscription. Amount is fixed
// at purchase (RewardTotal / DurationDays), never re-derived. The batch
// payout marks a reward paid exactly once.
type SubscriptionReward struct {
	ID             string `gorm:"primaryKey;type:uuid" json:"id"`
	SubscriptionID string `gorm:"type:uuid;not null;index" json:"subscription_id"`
	UserID         string `gorm:"type:uuid;not null;index" json:"user_id"`

	Day    int     `gorm:"not null" json:"day"` // 1..DurationDays
	Amount float64 `gorm:"not null" json:"amount"`
	Status string  `gorm:"type:varchar(16);not null;default:'pending';index" json:"status"`

	PaidAt *time.Time `json:"paid_at,omitempty"`

	Timestamps
}

// SubscriptionPlan is static catalog config, not a DB row.
type SubscriptionPlan struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Price        float64 `json:"price"`
	RewardTotal  float64 `json:"reward_total"`
	DurationDays int     `json:"duration_days"`
}

// SubscriptionPlans is the purchasable catalog. Reward totals exceed the
// price; the platform recoups through the subscriber commission volume.
var SubscriptionPlans = []SubscriptionPlan{
	{ID: "starter-7", Name: "Starter Pack", Price: 99, RewardTotal: 112, DurationDays: 7},
	{ID: "silver-15", Name: "Silver Pack", Price: 249, RewardTotal: 285, DurationDays: 15},
	{ID: "gold-30", Name: "Gold Pack", Price: 499, RewardTotal: 600, DurationDays: 30},
}

// PlanByID looks up a plan in the static catalog.
func PlanByID(id string) *SubscriptionPlan {
	for i := range SubscriptionPlans {
		if SubscriptionPlans[i].ID == id {
			return &SubscriptionPlans[i]
		}
	}
	return nil
}
